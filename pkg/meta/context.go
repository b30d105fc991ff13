// pkg/meta/context.go

package meta

import (
    "context"
)

type CtxKey string

// Context carries the identity of the caller along with the request.
type Context interface {
    context.Context
    Gid() uint32
    Gids() []uint32
    Uid() uint32
    Pid() uint32
    WithValue(k, v interface{})
    Cancel()
    Canceled() bool
}

type emptyContext struct {
    context.Context
}

func (ctx emptyContext) Gid() uint32 {
    return 0
}
func (ctx emptyContext) Gids() []uint32 {
    return []uint32{0}
}
func (ctx emptyContext) Uid() uint32 {
    return 0
}
func (ctx emptyContext) Pid() uint32 {
    return 1
}
func (ctx emptyContext) Cancel() {}
func (ctx emptyContext) Canceled() bool {
    return false
}
func (ctx emptyContext) WithValue(k, v interface{}) {}

var Background Context = emptyContext{context.Background()}

type myContext struct {
    context.Context
    pid  uint32
    uid  uint32
    gids []uint32
}

func (c *myContext) Uid() uint32 {
    return c.uid
}
func (c *myContext) Gid() uint32 {
    return c.gids[0]
}
func (c *myContext) Gids() []uint32 {
    return c.gids
}
func (c *myContext) Pid() uint32 {
    return c.pid
}
func (c *myContext) Cancel() {}
func (c *myContext) Canceled() bool {
    return c.Err() != nil
}
func (c *myContext) WithValue(k, v interface{}) {
    c.Context = context.WithValue(c.Context, k, v)
}

func NewContext(pid, uid uint32, gids []uint32) Context {
    return &myContext{context.Background(), pid, uid, gids}
}

// WithContext returns a Context with the caller identity of c whose
// deadline, cancellation and values come from parent.
func WithContext(parent context.Context, c Context) Context {
    return &myContext{parent, c.Pid(), c.Uid(), c.Gids()}
}
