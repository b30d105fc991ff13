package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	w := NewBuffer(1 + 2 + 4 + 8 + 3)
	w.Put8(7)
	w.Put16(0x0102)
	w.Put32(0x03040506)
	w.Put64(1 << 40)
	w.Put([]byte("abc"))
	require.False(t, w.HasMore())
	require.Equal(t, []byte{7, 1, 2, 3, 4, 5, 6}, w.Bytes()[:7])

	r := FromBuffer(w.Bytes())
	require.Equal(t, uint8(7), r.Get8())
	require.Equal(t, uint16(0x0102), r.Get16())
	require.Equal(t, uint32(0x03040506), r.Get32())
	require.Equal(t, uint64(1<<40), r.Get64())
	require.Equal(t, 3, r.Left())
	require.Equal(t, "abc", string(r.Get(3)))
	require.Zero(t, r.Left())
}
