// pkg/vfs/vfs.go

package vfs

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"ChunkFS/pkg/chunk"
	"ChunkFS/pkg/meta"
	"ChunkFS/pkg/utils"
)

var logger = utils.GetLogger("chunkfs")

type Attr = meta.Attr

const (
	rootMode = 0555
	fileMode = 0555
)

// Config of a mount.
type Config struct {
	Meta       *meta.Config
	Name       string
	Mountpoint string
	AccessLog  bool
	Uid        uint32
	Gid        uint32
}

// LogContext is a meta.Context that knows when the operation started.
type LogContext interface {
	meta.Context
	Duration() time.Duration
}

type logContext struct {
	meta.Context
	start time.Time
}

func (ctx *logContext) Duration() time.Duration {
	return time.Since(ctx.start)
}

// NewLogContext wraps ctx, starting the clock now.
func NewLogContext(ctx meta.Context) LogContext {
	return &logContext{ctx, time.Now()}
}

// FileSystem is what the kernel dispatch layer calls into.
type FileSystem interface {
	GetAttr(ctx LogContext, path string) (*Attr, syscall.Errno)
	Readdir(ctx LogContext, path string) (iter.Seq[*meta.Entry], syscall.Errno)
	Open(ctx LogContext, path string, flags uint32) (uint64, syscall.Errno)
	Read(ctx LogContext, path string, fh uint64, buf []byte, off uint64) (int, syscall.Errno)
	Release(ctx LogContext, path string, fh uint64)
}

// VFS exposes the files of a store as a flat read-only directory.
type VFS struct {
	Conf *Config
	Meta meta.Meta

	fetches    chunk.Controller
	accessLog  *accessLog
	nextHandle uint64
}

var _ FileSystem = &VFS{}

func NewVFS(conf *Config, m meta.Meta) *VFS {
	return &VFS{
		Conf:      conf,
		Meta:      m,
		accessLog: newAccessLog(),
	}
}

func errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var eno syscall.Errno
	if errors.As(err, &eno) {
		return eno
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return syscall.EINTR
	}
	logger.Errorf("error: %s", err)
	return syscall.EIO
}

func strerr(errno syscall.Errno) string {
	if errno == 0 {
		return "OK"
	}
	return errno.Error()
}

func debugAttr(attr *Attr) string {
	if attr == nil {
		return ""
	}
	return fmt.Sprintf(" (%o,%d,%d)", attr.SMode(), attr.Nlink, attr.Length)
}

// entryName turns a stored name into a directory entry, or reports that it
// cannot live in a flat directory.
func entryName(stored string) (string, bool) {
	name := strings.TrimPrefix(stored, "/")
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}

func (v *VFS) rootAttr() *Attr {
	return &Attr{
		Typ:   meta.TypeDirectory,
		Mode:  rootMode,
		Uid:   v.Conf.Uid,
		Gid:   v.Conf.Gid,
		Nlink: 2,
	}
}

func (v *VFS) fileAttr(f *meta.FileHandle) *Attr {
	attr := &Attr{
		Typ:    meta.TypeFile,
		Mode:   fileMode,
		Uid:    v.Conf.Uid,
		Gid:    v.Conf.Gid,
		Nlink:  1,
		Length: f.Length,
	}
	if !f.UploadDate.IsZero() {
		attr.Mtime = f.UploadDate.Unix()
		attr.Mtimensec = uint32(f.UploadDate.Nanosecond())
		attr.Atime, attr.Atimensec = attr.Mtime, attr.Mtimensec
		attr.Ctime, attr.Ctimensec = attr.Mtime, attr.Mtimensec
	}
	return attr
}

func (v *VFS) GetAttr(ctx LogContext, path string) (attr *Attr, err syscall.Errno) {
	defer func() { v.logit(ctx, "getattr (%s): %s%s", path, strerr(err), debugAttr(attr)) }()
	if path == "/" {
		return v.rootAttr(), 0
	}
	if v.isSpecial(path) {
		return v.specialAttr(), 0
	}
	f, e := v.Meta.FindFile(ctx, path)
	if e != nil {
		return nil, errno(e)
	}
	return v.fileAttr(f), 0
}

// Readdir lists the root directory: "." and ".." then one entry per stored
// file, in the order of the store. Entries are produced while iterating
// and every iteration queries the store again.
func (v *VFS) Readdir(ctx LogContext, path string) (entries iter.Seq[*meta.Entry], err syscall.Errno) {
	defer func() { v.logit(ctx, "readdir (%s): %s", path, strerr(err)) }()
	if path != "/" {
		return nil, syscall.ENOENT
	}
	return func(yield func(*meta.Entry) bool) {
		dir := v.rootAttr()
		if !yield(&meta.Entry{Name: []byte("."), Attr: dir}) {
			return
		}
		if !yield(&meta.Entry{Name: []byte(".."), Attr: dir}) {
			return
		}
		for f, err := range v.Meta.ListFiles(ctx) {
			if err != nil {
				logger.Errorf("list files: %s", err)
				return
			}
			name, ok := entryName(f.Name)
			if !ok {
				logger.Debugf("skip %q: not a valid name in a flat directory", f.Name)
				continue
			}
			if !yield(&meta.Entry{Name: []byte(name), Attr: v.fileAttr(f)}) {
				return
			}
		}
	}, 0
}

func (v *VFS) newHandle() uint64 {
	return atomic.AddUint64(&v.nextHandle, 1)
}

func (v *VFS) Open(ctx LogContext, path string, flags uint32) (fh uint64, err syscall.Errno) {
	defer func() { v.logit(ctx, "open (%s): %s [fh:%d]", path, strerr(err), fh) }()
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC|syscall.O_APPEND) != 0 {
		return 0, syscall.EROFS
	}
	if v.isSpecial(path) {
		fh = v.newHandle()
		v.accessLog.open(fh)
		return fh, 0
	}
	if path == "/" {
		return 0, syscall.EISDIR
	}
	if _, e := v.Meta.FindFile(ctx, path); e != nil {
		return 0, errno(e)
	}
	return v.newHandle(), 0
}

// fileSource reads the chunks of one file from the store.
type fileSource struct {
	v   *VFS
	ctx meta.Context
	f   *meta.FileHandle
}

func (s *fileSource) ChunkSize() uint32 {
	return s.f.ChunkSize
}

func (s *fileSource) Length() uint64 {
	return s.f.Length
}

func (s *fileSource) Chunk(ctx context.Context, indx uint32) ([]byte, error) {
	key := fmt.Sprintf("%v_%d", s.f.ID, indx)
	return s.v.fetches.Execute(ctx, key, func(shared context.Context) ([]byte, error) {
		chunkFetches.Inc()
		data, err := s.v.Meta.GetChunk(meta.WithContext(shared, s.ctx), s.f, indx)
		if err != nil {
			chunkFetchErrors.Inc()
		}
		return data, err
	})
}

// Read copies the content of path at off into buf. A missing file reads
// as empty, and a chunk missing from the store ends the read early. A read
// interrupted before any byte arrived returns EINTR.
func (v *VFS) Read(ctx LogContext, path string, fh uint64, buf []byte, off uint64) (n int, err syscall.Errno) {
	if v.isSpecial(path) {
		return v.accessLog.read(fh, buf), 0
	}
	defer func() {
		readSizeHistogram.Observe(float64(n))
		v.logit(ctx, "read (%s,%d,%d): %s (%d)", path, len(buf), off, strerr(err), n)
	}()
	if len(buf) == 0 {
		return 0, 0
	}
	f, e := v.Meta.FindFile(ctx, path)
	if e != nil {
		if !errors.Is(e, syscall.ENOENT) {
			logger.Warnf("find %s: %s", path, e)
		}
		return 0, 0
	}
	n, e = chunk.ReadAt(ctx, &fileSource{v, ctx, f}, buf, off)
	if e != nil {
		if n == 0 && ctx.Err() != nil {
			return 0, syscall.EINTR
		}
		logger.Warnf("read %s at %d: %s, got %d bytes", f, off, e, n)
	}
	return n, 0
}

func (v *VFS) Release(ctx LogContext, path string, fh uint64) {
	if v.isSpecial(path) {
		v.accessLog.close(fh)
		return
	}
	v.logit(ctx, "release (%s): OK [fh:%d]", path, fh)
}
