// pkg/chunk/plan.go

package chunk

// Slice is the part of one chunk needed by a read.
type Slice struct {
    Indx uint32 // index of the chunk
    Off  uint32 // offset inside the chunk
    Len  uint32 // number of bytes to copy
}

// ReadPlan lists the slices to copy, in file order.
type ReadPlan []Slice

// Size returns the number of bytes covered by the plan.
func (p ReadPlan) Size() uint64 {
    var n uint64
    for _, s := range p {
        n += uint64(s.Len)
    }
    return n
}

// Resolve maps the byte range [offset, offset+length) of a file onto its
// chunks. The range is clipped at the end of the file, so the plan is empty
// when length is zero or offset is at or beyond the end.
func Resolve(offset, length uint64, chunkSize uint32, total uint64) ReadPlan {
    if chunkSize == 0 {
        panic("chunk size should > 0")
    }
    if length == 0 || offset >= total {
        return nil
    }
    cs := uint64(chunkSize)
    count := Count(chunkSize, total)
    indx := uint32(offset / cs)
    var plan ReadPlan
    var planned uint64
    for planned < length && indx < count {
        var off uint32
        if len(plan) == 0 {
            off = uint32(offset % cs)
        }
        cl := Length(chunkSize, total, indx)
        n := min(uint64(cl-off), length-planned)
        plan = append(plan, Slice{Indx: indx, Off: off, Len: uint32(n)})
        planned += n
        indx++
    }
    return plan
}
