// pkg/chunk/chunk.go

package chunk

import (
    "context"
    "fmt"
)

// Source is a file laid out as an ordered sequence of chunks. Every chunk
// holds ChunkSize bytes except possibly the last one.
type Source interface {
    ChunkSize() uint32
    Length() uint64
    Chunk(ctx context.Context, indx uint32) ([]byte, error)
}

// FetchError reports a chunk that could not be produced by the store,
// which means the file is truncated or corrupted.
type FetchError struct {
    Indx uint32
    Err  error
}

func (e *FetchError) Error() string {
    return fmt.Sprintf("chunk %d: %s", e.Indx, e.Err)
}

func (e *FetchError) Unwrap() error {
    return e.Err
}

// Count returns the number of chunks of a file with the given layout.
func Count(chunkSize uint32, length uint64) uint32 {
    if chunkSize == 0 {
        panic("chunk size should > 0")
    }
    return uint32((length + uint64(chunkSize) - 1) / uint64(chunkSize))
}

// Length returns the real length of chunk indx, which is chunkSize for all
// the chunks but the last one.
func Length(chunkSize uint32, length uint64, indx uint32) uint32 {
    n := Count(chunkSize, length)
    if indx >= n {
        return 0
    }
    if indx < n-1 {
        return chunkSize
    }
    return uint32(length - uint64(chunkSize)*uint64(n-1))
}
