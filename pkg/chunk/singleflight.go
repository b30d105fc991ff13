// pkg/chunk/singleflight.go

package chunk

import (
    "context"
    "fmt"
    "sync"
)

type request struct {
    done    chan struct{}
    cancel  context.CancelFunc
    waiters int
    val     []byte
    err     error
}

// Controller merges concurrent fetches of the same key into one call.
// Nothing is kept once the call returns.
//
// The merged call runs on a context detached from its callers. Each caller
// stops waiting when its own ctx is done, and the call is cancelled once no
// caller is left waiting for it.
type Controller struct {
    sync.Mutex
    rs map[string]*request
}

func (con *Controller) Execute(ctx context.Context, key string, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
    con.Lock()
    if con.rs == nil {
        con.rs = make(map[string]*request)
    }
    c, ok := con.rs[key]
    if !ok {
        shared, cancel := context.WithCancel(context.WithoutCancel(ctx))
        c = &request{done: make(chan struct{}), cancel: cancel}
        con.rs[key] = c
        go con.run(shared, key, c, fn)
    }
    c.waiters++
    con.Unlock()

    select {
    case <-c.done:
        return c.val, c.err
    case <-ctx.Done():
        con.Lock()
        c.waiters--
        if c.waiters == 0 {
            c.cancel()
            if con.rs[key] == c {
                delete(con.rs, key)
            }
        }
        con.Unlock()
        return nil, ctx.Err()
    }
}

func (con *Controller) run(ctx context.Context, key string, c *request, fn func(ctx context.Context) ([]byte, error)) {
    defer func() {
        if r := recover(); r != nil {
            c.val, c.err = nil, fmt.Errorf("fetch %s: panic: %v", key, r)
        }
        c.cancel()
        con.Lock()
        if con.rs[key] == c {
            delete(con.rs, key)
        }
        con.Unlock()
        close(c.done)
    }()
    c.val, c.err = fn(ctx)
}
