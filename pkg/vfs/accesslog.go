// pkg/vfs/accesslog.go

package vfs

import (
	"fmt"
	"sync"
	"time"

	"ChunkFS/pkg/utils"
)

type logReader struct {
	sync.Mutex
	buffer chan []byte
	last   []byte
}

type accessLog struct {
	sync.Mutex
	readers map[uint64]*logReader
}

func newAccessLog() *accessLog {
	return &accessLog{readers: make(map[uint64]*logReader)}
}

func (v *VFS) logit(ctx LogContext, format string, args ...interface{}) {
	used := ctx.Duration()
	opsDurationsHistogram.Observe(used.Seconds())
	al := v.accessLog
	al.Lock()
	defer al.Unlock()
	if len(al.readers) == 0 && used < time.Second*10 {
		return
	}

	cmd := fmt.Sprintf(format, args...)
	t := utils.Now()
	ts := t.Format("2006.01.02 15:04:05.000000")
	cmd += fmt.Sprintf(" <%.6f>", used.Seconds())
	if ctx.Pid() != 0 && used >= time.Second*10 {
		logger.Infof("slow operation: %s", cmd)
	}
	line := []byte(fmt.Sprintf("%s [uid:%d,gid:%d,pid:%d] %s\n", ts, ctx.Uid(), ctx.Gid(), ctx.Pid(), cmd))

	for _, r := range al.readers {
		select {
		case r.buffer <- line:
		default:
		}
	}
}

func (al *accessLog) open(fh uint64) {
	al.Lock()
	defer al.Unlock()
	al.readers[fh] = &logReader{buffer: make(chan []byte, 10240)}
}

func (al *accessLog) close(fh uint64) {
	al.Lock()
	defer al.Unlock()
	delete(al.readers, fh)
}

func (al *accessLog) read(fh uint64, buf []byte) int {
	al.Lock()
	r, ok := al.readers[fh]
	al.Unlock()
	if !ok {
		return 0
	}
	r.Lock()
	defer r.Unlock()
	var n int
	if len(r.last) > 0 {
		n = copy(buf, r.last)
		r.last = r.last[n:]
	}
	var t = time.NewTimer(time.Second)
	defer t.Stop()
	for n < len(buf) {
		select {
		case line := <-r.buffer:
			l := copy(buf[n:], line)
			n += l
			if l < len(line) {
				r.last = line[l:]
				return n
			}
		case <-t.C:
			if n == 0 {
				n = copy(buf, []byte("#\n"))
			}
			return n
		}
	}
	return n
}
