package chunk

import (
    "testing"

    "github.com/stretchr/testify/require"
)

func TestCount(t *testing.T) {
    require.Equal(t, uint32(0), Count(4, 0))
    require.Equal(t, uint32(1), Count(4, 1))
    require.Equal(t, uint32(1), Count(4, 4))
    require.Equal(t, uint32(3), Count(4, 10))
    require.Equal(t, uint32(3), Count(4, 12))

    require.Equal(t, uint32(4), Length(4, 10, 0))
    require.Equal(t, uint32(4), Length(4, 10, 1))
    require.Equal(t, uint32(2), Length(4, 10, 2))
    require.Equal(t, uint32(0), Length(4, 10, 3))
    require.Equal(t, uint32(4), Length(4, 12, 2))
}

func TestResolveSpanning(t *testing.T) {
    // chunks of 4, 4 and 2 bytes
    plan := Resolve(3, 5, 4, 10)
    require.Equal(t, ReadPlan{{0, 3, 1}, {1, 0, 4}}, plan)
    require.Equal(t, uint64(5), plan.Size())
}

func TestResolveEmpty(t *testing.T) {
    require.Empty(t, Resolve(0, 0, 4, 10))
    require.Empty(t, Resolve(10, 5, 4, 10))
    require.Empty(t, Resolve(11, 5, 4, 10))
    require.Empty(t, Resolve(0, 5, 4, 0))
}

func TestResolveLastChunk(t *testing.T) {
    require.Equal(t, ReadPlan{{1, 2, 2}, {2, 0, 2}}, Resolve(6, 100, 4, 10))
    require.Equal(t, ReadPlan{{2, 1, 1}}, Resolve(9, 4, 4, 10))
    require.Equal(t, ReadPlan{{0, 0, 4}, {1, 0, 4}, {2, 0, 2}}, Resolve(0, 10, 4, 10))
}

func TestResolveInsideChunk(t *testing.T) {
    require.Equal(t, ReadPlan{{1, 1, 2}}, Resolve(5, 2, 4, 10))
    require.Equal(t, ReadPlan{{0, 0, 4}}, Resolve(0, 4, 4, 10))
}

func TestResolveZeroChunkSize(t *testing.T) {
    require.Panics(t, func() { Resolve(0, 1, 0, 10) })
}

func TestResolveInvariants(t *testing.T) {
    for _, cs := range []uint32{1, 3, 4, 7} {
        for total := uint64(0); total < 30; total++ {
            for off := uint64(0); off <= total+2; off++ {
                for length := uint64(0); length <= total+2; length++ {
                    plan := Resolve(off, length, cs, total)
                    var want uint64
                    if off < total {
                        want = min(length, total-off)
                    }
                    require.Equal(t, want, plan.Size(), "cs=%d total=%d off=%d len=%d", cs, total, off, length)
                    for i, s := range plan {
                        require.Less(t, s.Off, Length(cs, total, s.Indx))
                        require.LessOrEqual(t, s.Off+s.Len, Length(cs, total, s.Indx))
                        require.NotZero(t, s.Len)
                        if i == 0 {
                            require.Equal(t, uint32(off/uint64(cs)), s.Indx)
                            require.Equal(t, uint32(off%uint64(cs)), s.Off)
                        } else {
                            require.Equal(t, plan[i-1].Indx+1, s.Indx)
                            require.Zero(t, s.Off)
                        }
                    }
                }
            }
        }
    }
}
