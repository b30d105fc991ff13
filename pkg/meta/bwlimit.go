// pkg/meta/bwlimit.go

package meta

import (
    "github.com/juju/ratelimit"
)

type bwlimit struct {
    Meta
    downLimit *ratelimit.Bucket
}

// NewLimited caps the download bandwidth of chunk fetches to down bytes
// per second.
func NewLimited(m Meta, down int64) Meta {
    bw := &bwlimit{m, nil}
    if down > 0 {
        // there are overheads coming from TCP/IP and the protocol
        bw.downLimit = ratelimit.NewBucketWithRate(float64(down)*0.85, down)
    }
    return bw
}

func (p *bwlimit) GetChunk(ctx Context, f *FileHandle, indx uint32) ([]byte, error) {
    data, err := p.Meta.GetChunk(ctx, f, indx)
    if p.downLimit != nil && len(data) > 0 {
        p.downLimit.Wait(int64(len(data)))
    }
    return data, err
}
