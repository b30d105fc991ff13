package fuse

import (
	"context"
	"strings"
	"syscall"
	"testing"

	"ChunkFS/pkg/meta"
	"ChunkFS/pkg/vfs"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/require"
)

func TestAttrToStat(t *testing.T) {
	var out fuse.Attr
	attrToStat(&Attr{Typ: meta.TypeFile, Mode: 0555, Uid: 7, Gid: 8, Nlink: 1, Length: 1025, Mtime: 100, Mtimensec: 5}, &out)
	require.Equal(t, uint32(syscall.S_IFREG|0555), out.Mode)
	require.Equal(t, uint64(1025), out.Size)
	require.Equal(t, uint64(3), out.Blocks)
	require.Equal(t, uint32(1), out.Nlink)
	require.Equal(t, uint32(7), out.Uid)
	require.Equal(t, uint32(8), out.Gid)
	require.Equal(t, uint64(100), out.Mtime)
	require.Equal(t, uint32(5), out.Mtimensec)

	out = fuse.Attr{}
	attrToStat(&Attr{Typ: meta.TypeDirectory, Mode: 0555, Nlink: 2}, &out)
	require.Equal(t, uint32(syscall.S_IFDIR|0555), out.Mode)
	require.Equal(t, uint32(2), out.Nlink)
	require.Equal(t, uint64(0), out.Size)
}

func TestMountOptions(t *testing.T) {
	conf := &vfs.Config{Name: "media"}
	opt := mountOptions(conf, "")
	require.Equal(t, "ChunkFS:media", opt.FsName)
	require.Equal(t, "chunkfs", opt.Name)
	require.False(t, opt.AllowOther)
	require.Contains(t, opt.Options, "ro")

	opt = mountOptions(conf, "allow_other, debug,fsname=other,noatime,rw")
	require.True(t, opt.AllowOther)
	require.True(t, opt.Debug)
	require.Equal(t, "other", opt.FsName)
	require.Contains(t, opt.Options, "noatime")
	require.NotContains(t, opt.Options, "rw")
}

func TestDirStream(t *testing.T) {
	m := meta.NewClient("mem://", &meta.Config{})
	for _, name := range []string{"/alpha", "/beta"} {
		_, err := m.PutFile(meta.Background, name, 4, strings.NewReader("content"))
		require.NoError(t, err)
	}
	v := vfs.NewVFS(&vfs.Config{Meta: &meta.Config{}}, m)
	entries, eno := v.Readdir(vfs.NewLogContext(meta.Background), "/")
	require.Equal(t, syscall.Errno(0), eno)

	d := newDirStream(entries)
	list := func() []string {
		var names []string
		for d.HasNext() {
			e, eno := d.Next()
			require.Equal(t, syscall.Errno(0), eno)
			if e.Name == "." || e.Name == ".." {
				require.Equal(t, uint32(syscall.S_IFDIR|0555), e.Mode)
			} else {
				require.Equal(t, uint32(syscall.S_IFREG|0555), e.Mode)
				require.Equal(t, inodeOf("/"+e.Name), e.Ino)
			}
			names = append(names, e.Name)
		}
		return names
	}
	require.Equal(t, []string{".", "..", "alpha", "beta"}, list())
	_, eno = d.Next()
	require.Equal(t, syscall.ENOENT, eno)

	require.Equal(t, syscall.Errno(0), d.Seekdir(context.Background(), 0))
	require.Equal(t, []string{".", "..", "alpha", "beta"}, list())
	require.Equal(t, syscall.Errno(0), d.Seekdir(context.Background(), 3))
	require.Equal(t, []string{"beta"}, list())
	d.Close()
}

func TestDirStreamCloseEarly(t *testing.T) {
	m := meta.NewClient("mem://", &meta.Config{})
	for _, name := range []string{"/a", "/b", "/c"} {
		_, err := m.PutFile(meta.Background, name, 4, strings.NewReader("content"))
		require.NoError(t, err)
	}
	v := vfs.NewVFS(&vfs.Config{Meta: &meta.Config{}}, m)
	entries, _ := v.Readdir(vfs.NewLogContext(meta.Background), "/")
	d := newDirStream(entries)
	require.True(t, d.HasNext())
	e, _ := d.Next()
	require.Equal(t, ".", e.Name)
	d.Close()
	require.False(t, d.HasNext())
}

func TestContext(t *testing.T) {
	ctx := newContext(context.Background())
	require.Equal(t, uint32(0), ctx.Uid())
	require.False(t, ctx.Canceled())
	ctx.Cancel()
	require.True(t, ctx.Canceled())
	require.GreaterOrEqual(t, ctx.Duration().Nanoseconds(), int64(0))
	releaseContext(ctx)

	cx, cancel := context.WithCancel(context.Background())
	ctx = newContext(cx)
	cancel()
	require.True(t, ctx.Canceled())
	releaseContext(ctx)
}

func TestInodeOf(t *testing.T) {
	require.Equal(t, inodeOf("/alpha"), inodeOf("/alpha"))
	require.NotEqual(t, inodeOf("/alpha"), inodeOf("/beta"))
	for _, name := range []string{"/", "/a", "/.accesslog", "/alpha"} {
		require.GreaterOrEqual(t, inodeOf(name), uint64(2))
	}
}
