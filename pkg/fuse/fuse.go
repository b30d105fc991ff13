// pkg/fuse/fuse.go

package fuse

import (
	"context"
	"iter"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ChunkFS/pkg/meta"
	"ChunkFS/pkg/utils"
	"ChunkFS/pkg/vfs"

	"github.com/cespare/xxhash/v2"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

var logger = utils.GetLogger("chunkfs")

type fileSystem struct {
	v    vfs.FileSystem
	conf *vfs.Config
}

// inodeOf gives the file at path the same inode number on every lookup.
// Numbers below 2 belong to the root.
func inodeOf(path string) uint64 {
	ino := xxhash.Sum64String(path)
	if ino < 2 {
		ino += 2
	}
	return ino
}

// rootNode is the only directory of the mount.
type rootNode struct {
	gofuse.Inode
	fs *fileSystem
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeGetattrer = (*rootNode)(nil)
var _ gofuse.NodeLookuper = (*rootNode)(nil)
var _ gofuse.NodeReaddirer = (*rootNode)(nil)

func (r *rootNode) Getattr(cx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	ctx := newContext(cx)
	defer releaseContext(ctx)
	attr, err := r.fs.v.GetAttr(ctx, "/")
	if err != 0 {
		return err
	}
	attrToStat(attr, &out.Attr)
	return 0
}

func (r *rootNode) Lookup(cx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	ctx := newContext(cx)
	defer releaseContext(ctx)
	path := "/" + name
	attr, err := r.fs.v.GetAttr(ctx, path)
	if err != 0 {
		return nil, err
	}
	attrToStat(attr, &out.Attr)
	child := r.NewInode(cx, &fileNode{fs: r.fs, path: path}, gofuse.StableAttr{Mode: syscall.S_IFREG, Ino: inodeOf(path)})
	return child, 0
}

func (r *rootNode) Readdir(cx context.Context) (gofuse.DirStream, syscall.Errno) {
	ctx := newContext(cx)
	defer releaseContext(ctx)
	// the stream outlives this request, so it gets a context of its own
	sctx := vfs.NewLogContext(meta.NewContext(ctx.Pid(), ctx.Uid(), ctx.Gids()))
	entries, err := r.fs.v.Readdir(sctx, "/")
	if err != 0 {
		return nil, err
	}
	return newDirStream(entries), 0
}

// dirStream pulls the entries of a listing one at a time.
type dirStream struct {
	entries iter.Seq[*meta.Entry]
	next    func() (*meta.Entry, bool)
	stop    func()
	peek    *meta.Entry
}

var _ gofuse.DirStream = (*dirStream)(nil)
var _ gofuse.FileSeekdirer = (*dirStream)(nil)

func newDirStream(entries iter.Seq[*meta.Entry]) *dirStream {
	d := &dirStream{entries: entries}
	d.next, d.stop = iter.Pull(entries)
	return d
}

func (d *dirStream) HasNext() bool {
	if d.peek == nil {
		e, ok := d.next()
		if !ok {
			return false
		}
		d.peek = e
	}
	return true
}

func (d *dirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if !d.HasNext() {
		return fuse.DirEntry{}, syscall.ENOENT
	}
	e := d.peek
	d.peek = nil
	de := fuse.DirEntry{Name: string(e.Name), Mode: e.Attr.SMode()}
	if de.Name != "." && de.Name != ".." {
		de.Ino = inodeOf("/" + de.Name)
	}
	return de, 0
}

// Seekdir restarts the listing and skips the first off entries.
func (d *dirStream) Seekdir(ctx context.Context, off uint64) syscall.Errno {
	d.stop()
	d.peek = nil
	d.next, d.stop = iter.Pull(d.entries)
	for i := uint64(0); i < off; i++ {
		if _, ok := d.next(); !ok {
			break
		}
	}
	return 0
}

func (d *dirStream) Close() {
	d.stop()
}

// fileNode is one stored file, looked up by name.
type fileNode struct {
	gofuse.Inode
	fs   *fileSystem
	path string
}

var _ gofuse.InodeEmbedder = (*fileNode)(nil)
var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)
var _ gofuse.NodeReader = (*fileNode)(nil)
var _ gofuse.NodeReleaser = (*fileNode)(nil)

type fileHandle struct {
	fh uint64
}

func (n *fileNode) Getattr(cx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	ctx := newContext(cx)
	defer releaseContext(ctx)
	attr, err := n.fs.v.GetAttr(ctx, n.path)
	if err != 0 {
		return err
	}
	attrToStat(attr, &out.Attr)
	return 0
}

func (n *fileNode) Open(cx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	ctx := newContext(cx)
	defer releaseContext(ctx)
	fh, err := n.fs.v.Open(ctx, n.path, flags)
	if err != 0 {
		return nil, 0, err
	}
	var fuseFlags uint32 = fuse.FOPEN_KEEP_CACHE
	if vfs.IsSpecialName(n.path[1:]) {
		fuseFlags = fuse.FOPEN_DIRECT_IO
	}
	return &fileHandle{fh}, fuseFlags, 0
}

func (n *fileNode) Read(cx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	ctx := newContext(cx)
	defer releaseContext(ctx)
	var fh uint64
	if h, ok := f.(*fileHandle); ok {
		fh = h.fh
	}
	if off < 0 {
		return nil, syscall.EINVAL
	}
	got, err := n.fs.v.Read(ctx, n.path, fh, dest, uint64(off))
	if err != 0 {
		return nil, err
	}
	return fuse.ReadResultData(dest[:got]), 0
}

func (n *fileNode) Release(cx context.Context, f gofuse.FileHandle) syscall.Errno {
	ctx := newContext(cx)
	defer releaseContext(ctx)
	if h, ok := f.(*fileHandle); ok {
		n.fs.v.Release(ctx, n.path, h.fh)
	}
	return 0
}

func seconds(s float64) *time.Duration {
	d := time.Duration(s * float64(time.Second))
	return &d
}

func mountOptions(conf *vfs.Config, options string) fuse.MountOptions {
	opt := fuse.MountOptions{
		FsName:       "ChunkFS:" + conf.Name,
		Name:         "chunkfs",
		MaxWrite:     1 << 20,
		MaxReadAhead: 1 << 20,
		Options:      []string{"ro", "default_permissions"},
	}
	for _, n := range strings.Split(options, ",") {
		switch n = strings.TrimSpace(n); {
		case n == "":
		case n == "allow_other" || n == "allow_root":
			opt.AllowOther = true
		case n == "debug":
			opt.Debug = true
		case strings.HasPrefix(n, "fsname="):
			opt.FsName = n[len("fsname="):]
		case n == "rw":
			logger.Warnf("ignore option rw: the mount is read-only")
		default:
			opt.Options = append(opt.Options, n)
		}
	}
	return opt
}

// Mount exposes v at conf.Mountpoint. The caller waits on the returned server.
func Mount(v vfs.FileSystem, conf *vfs.Config, options string, attrCacheTimeout, entryCacheTimeout, negativeCacheTimeout float64) (*fuse.Server, error) {
	root := &rootNode{fs: &fileSystem{v: v, conf: conf}}
	uid, gid := conf.Uid, conf.Gid
	return gofuse.Mount(conf.Mountpoint, root, &gofuse.Options{
		MountOptions:    mountOptions(conf, options),
		AttrTimeout:     seconds(attrCacheTimeout),
		EntryTimeout:    seconds(entryCacheTimeout),
		NegativeTimeout: seconds(negativeCacheTimeout),
		UID:             uid,
		GID:             gid,
	})
}

// Serve mounts v and blocks until the mount point is unmounted or the
// process is interrupted.
func Serve(v vfs.FileSystem, conf *vfs.Config, options string, attrCacheTimeout, entryCacheTimeout, negativeCacheTimeout float64) error {
	server, err := Mount(v, conf, options, attrCacheTimeout, entryCacheTimeout, negativeCacheTimeout)
	if err != nil {
		return err
	}
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		sig := <-signals
		logger.Infof("received signal %s, unmounting %s", sig, conf.Mountpoint)
		if err := server.Unmount(); err != nil {
			logger.Errorf("unmount %s: %s", conf.Mountpoint, err)
		}
	}()
	server.Wait()
	signal.Stop(signals)
	return nil
}
