// pkg/chunk/reader.go

package chunk

import (
    "context"

    "github.com/pkg/errors"
)

// ReadAt fills buf with the content of src starting at off. It returns the
// number of bytes copied, which is less than len(buf) only at the end of
// the file or when a chunk could not be fetched. In the latter case the
// bytes assembled so far are still valid and a *FetchError is returned.
func ReadAt(ctx context.Context, src Source, buf []byte, off uint64) (int, error) {
    plan := Resolve(off, uint64(len(buf)), src.ChunkSize(), src.Length())
    var n int
    for _, s := range plan {
        data, err := src.Chunk(ctx, s.Indx)
        if err != nil {
            return n, &FetchError{s.Indx, errors.Wrapf(err, "fetch at offset %d", off+uint64(n))}
        }
        if uint64(len(data)) < uint64(s.Off)+uint64(s.Len) {
            if len(data) > int(s.Off) {
                n += copy(buf[n:], data[s.Off:])
            }
            return n, &FetchError{s.Indx, errors.Errorf("short chunk: %d bytes, expect at least %d", len(data), s.Off+s.Len)}
        }
        n += copy(buf[n:], data[s.Off:s.Off+s.Len])
    }
    return n, nil
}
