// pkg/fuse/context.go

package fuse

import (
	"context"
	"sync"
	"time"

	"ChunkFS/pkg/vfs"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// Context is an alias to vfs.LogContext
type Context = vfs.LogContext

type fuseContext struct {
	context.Context
	start    time.Time
	caller   fuse.Caller
	canceled bool
}

var contextPool = sync.Pool{
	New: func() interface{} {
		return &fuseContext{}
	},
}

func newContext(ctx context.Context) *fuseContext {
	c := contextPool.Get().(*fuseContext)
	c.Context = ctx
	c.start = time.Now()
	c.canceled = false
	c.caller = fuse.Caller{}
	if caller, ok := fuse.FromContext(ctx); ok {
		c.caller = *caller
	}
	return c
}

func releaseContext(ctx *fuseContext) {
	ctx.Context = nil
	contextPool.Put(ctx)
}

func (c *fuseContext) Uid() uint32 {
	return c.caller.Uid
}

func (c *fuseContext) Gid() uint32 {
	return c.caller.Gid
}

func (c *fuseContext) Gids() []uint32 {
	return []uint32{c.caller.Gid}
}

func (c *fuseContext) Pid() uint32 {
	return c.caller.Pid
}

func (c *fuseContext) Duration() time.Duration {
	return time.Since(c.start)
}

func (c *fuseContext) Cancel() {
	c.canceled = true
}

func (c *fuseContext) Canceled() bool {
	if c.canceled {
		return true
	}
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

func (c *fuseContext) WithValue(k, v interface{}) {
	c.Context = context.WithValue(c.Context, k, v)
}
