package vfs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"ChunkFS/pkg/meta"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// brokenMeta loses some chunks of the files it stores.
type brokenMeta struct {
	meta.Meta
	lost map[string]uint32
}

func (m *brokenMeta) GetChunk(ctx meta.Context, f *meta.FileHandle, indx uint32) ([]byte, error) {
	if l, ok := m.lost[f.Name]; ok && l == indx {
		return nil, errors.New("chunk lost")
	}
	return m.Meta.GetChunk(ctx, f, indx)
}

func sample(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	return data
}

func newTestVFS(t *testing.T, conf *Config) (*VFS, meta.Meta) {
	m, err := meta.Connect("mem://", nil)
	require.NoError(t, err)
	if conf == nil {
		conf = &Config{}
	}
	return NewVFS(conf, m), m
}

func put(t *testing.T, m meta.Meta, name string, chunkSize uint32, data []byte) {
	_, err := m.PutFile(meta.Background, name, chunkSize, bytes.NewReader(data))
	require.NoError(t, err)
}

func ctx() LogContext {
	return NewLogContext(meta.NewContext(1, 1000, []uint32{1000}))
}

func TestGetAttr(t *testing.T) {
	v, m := newTestVFS(t, &Config{Uid: 1000, Gid: 100})
	put(t, m, "/alpha", 4, sample(10))

	attr, err := v.GetAttr(ctx(), "/")
	require.Zero(t, err)
	require.Equal(t, uint8(meta.TypeDirectory), attr.Typ)
	require.Equal(t, uint32(syscall.S_IFDIR|0555), attr.SMode())
	require.Equal(t, uint32(2), attr.Nlink)
	require.Equal(t, uint32(1000), attr.Uid)

	attr, err = v.GetAttr(ctx(), "/alpha")
	require.Zero(t, err)
	require.Equal(t, uint32(syscall.S_IFREG|0555), attr.SMode())
	require.Equal(t, uint32(1), attr.Nlink)
	require.Equal(t, uint64(10), attr.Length)
	require.NotZero(t, attr.Mtime)

	_, err = v.GetAttr(ctx(), "/unknown")
	require.Equal(t, syscall.ENOENT, err)
	_, err = v.GetAttr(ctx(), "/"+AccessLogName)
	require.Equal(t, syscall.ENOENT, err)
}

func names(v *VFS) []string {
	entries, err := v.Readdir(ctx(), "/")
	if err != 0 {
		return nil
	}
	var ns []string
	for e := range entries {
		ns = append(ns, string(e.Name))
	}
	return ns
}

func TestReaddir(t *testing.T) {
	v, m := newTestVFS(t, &Config{AccessLog: true})
	put(t, m, "/alpha", 4, sample(10))
	put(t, m, "/beta", 4, nil)
	put(t, m, "/nested/file", 4, sample(1))
	put(t, m, "plain", 4, sample(1))
	put(t, m, "/", 4, sample(1))

	require.Equal(t, []string{".", "..", "alpha", "beta", "plain"}, names(v))

	entries, err := v.Readdir(ctx(), "/")
	require.Zero(t, err)
	for e := range entries {
		switch string(e.Name) {
		case ".", "..":
			require.Equal(t, uint8(meta.TypeDirectory), e.Attr.Typ)
		case "alpha":
			require.Equal(t, uint64(10), e.Attr.Length)
		}
	}

	// enumerating again sees new files
	put(t, m, "/gamma", 4, sample(3))
	require.Equal(t, []string{".", "..", "alpha", "beta", "plain", "gamma"}, names(v))

	_, err = v.Readdir(ctx(), "/alpha")
	require.Equal(t, syscall.ENOENT, err)
}

func TestReaddirStopEarly(t *testing.T) {
	v, m := newTestVFS(t, nil)
	put(t, m, "/alpha", 4, sample(10))
	put(t, m, "/beta", 4, sample(10))
	entries, err := v.Readdir(ctx(), "/")
	require.Zero(t, err)
	var seen int
	for range entries {
		seen++
		if seen == 3 {
			break
		}
	}
	require.Equal(t, 3, seen)
}

func TestOpen(t *testing.T) {
	v, m := newTestVFS(t, nil)
	put(t, m, "/alpha", 4, sample(10))

	fh, err := v.Open(ctx(), "/alpha", syscall.O_RDONLY)
	require.Zero(t, err)
	require.NotZero(t, fh)
	fh2, err := v.Open(ctx(), "/alpha", syscall.O_RDONLY)
	require.Zero(t, err)
	require.NotEqual(t, fh, fh2)
	v.Release(ctx(), "/alpha", fh)

	_, err = v.Open(ctx(), "/missing", syscall.O_RDONLY)
	require.Equal(t, syscall.ENOENT, err)
	_, err = v.Open(ctx(), "/alpha", syscall.O_RDWR)
	require.Equal(t, syscall.EROFS, err)
	_, err = v.Open(ctx(), "/", syscall.O_RDONLY)
	require.Equal(t, syscall.EISDIR, err)
}

func TestRead(t *testing.T) {
	v, m := newTestVFS(t, nil)
	data := sample(10)
	put(t, m, "/alpha", 4, data)

	buf := make([]byte, 5)
	n, err := v.Read(ctx(), "/alpha", 0, buf, 3)
	require.Zero(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, data[3:8], buf)

	buf = make([]byte, 100)
	n, err = v.Read(ctx(), "/alpha", 0, buf, 0)
	require.Zero(t, err)
	require.Equal(t, data, buf[:n])

	for _, off := range []uint64{10, 11, 1 << 40} {
		n, err = v.Read(ctx(), "/alpha", 0, buf, off)
		require.Zero(t, err)
		require.Zero(t, n)
	}

	n, err = v.Read(ctx(), "/alpha", 0, nil, 0)
	require.Zero(t, err)
	require.Zero(t, n)

	n, err = v.Read(ctx(), "/missing", 0, buf, 0)
	require.Zero(t, err)
	require.Zero(t, n)
}

func TestReadRoundTrip(t *testing.T) {
	v, m := newTestVFS(t, nil)
	data := sample(23)
	put(t, m, "/f", 5, data)
	for off := 0; off <= len(data); off++ {
		for size := 1; size <= len(data)+1; size++ {
			buf := make([]byte, size)
			n, err := v.Read(ctx(), "/f", 0, buf, uint64(off))
			require.Zero(t, err)
			end := min(off+size, len(data))
			require.Equal(t, data[off:end], buf[:n])
		}
	}
}

func TestReadLostChunk(t *testing.T) {
	m, err := meta.Connect("mem://", nil)
	require.NoError(t, err)
	bm := &brokenMeta{Meta: m, lost: map[string]uint32{"/alpha": 2}}
	v := NewVFS(&Config{}, bm)
	data := sample(10)
	put(t, bm, "/alpha", 4, data)

	before := testutil.ToFloat64(chunkFetchErrors)
	buf := make([]byte, 10)
	n, eno := v.Read(ctx(), "/alpha", 0, buf, 1)
	require.Zero(t, eno)
	require.Equal(t, 7, n)
	require.Equal(t, data[1:8], buf[:n])
	require.Equal(t, before+1, testutil.ToFloat64(chunkFetchErrors))
}

func TestReadRedis(t *testing.T) {
	s := miniredis.RunT(t)
	m, err := meta.Connect("redis://"+s.Addr(), nil)
	require.NoError(t, err)
	defer m.Close()
	v := NewVFS(&Config{}, m)
	data := sample(1000)
	put(t, m, "/big", 64, data)

	require.Equal(t, []string{".", "..", "big"}, names(v))
	attr, eno := v.GetAttr(ctx(), "/big")
	require.Zero(t, eno)
	require.Equal(t, uint64(1000), attr.Length)

	buf := make([]byte, 300)
	n, eno := v.Read(ctx(), "/big", 0, buf, 900)
	require.Zero(t, eno)
	require.Equal(t, data[900:], buf[:n])

	n, eno = v.Read(ctx(), "/big", 0, buf, 63)
	require.Zero(t, eno)
	require.Equal(t, 300, n)
	require.Equal(t, data[63:363], buf)
}

func TestAccessLog(t *testing.T) {
	v, m := newTestVFS(t, &Config{AccessLog: true})
	put(t, m, "/alpha", 4, sample(10))

	path := "/" + AccessLogName
	attr, err := v.GetAttr(ctx(), path)
	require.Zero(t, err)
	require.Equal(t, uint32(syscall.S_IFREG|0400), attr.SMode())

	fh, err := v.Open(ctx(), path, syscall.O_RDONLY)
	require.Zero(t, err)
	_, err = v.GetAttr(ctx(), "/alpha")
	require.Zero(t, err)

	buf := make([]byte, 4096)
	n, err := v.Read(ctx(), path, fh, buf, 0)
	require.Zero(t, err)
	line := string(buf[:n])
	require.Contains(t, line, "getattr (/alpha): OK")
	require.Contains(t, line, "[uid:1000,gid:1000,pid:1]")
	require.True(t, strings.HasSuffix(line, "\n"))

	v.Release(ctx(), path, fh)
	n, err = v.Read(ctx(), path, fh, buf, 0)
	require.Zero(t, err)
	require.Zero(t, n)
	require.NotContains(t, names(v), AccessLogName)
}

func TestCheck(t *testing.T) {
	m, err := meta.Connect("mem://", nil)
	require.NoError(t, err)
	bm := &brokenMeta{Meta: m, lost: map[string]uint32{"/bad": 1}}
	v := NewVFS(&Config{}, bm)
	put(t, bm, "/good", 4, sample(10))
	put(t, bm, "/bad", 4, sample(10))
	put(t, bm, "/empty", 4, nil)

	var checked int32
	broken, err := v.Check(meta.Background, nil, 2, func(f *meta.FileHandle) { atomic.AddInt32(&checked, 1) })
	require.NoError(t, err)
	require.Equal(t, []string{"/bad"}, broken)
	require.Equal(t, int32(3), checked)

	broken, err = v.Check(meta.Background, []string{"/good", "/missing"}, 1, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"/missing"}, broken)
}

// slowMeta holds every chunk fetch until its context is done or release is
// closed.
type slowMeta struct {
	meta.Meta
	release chan struct{}
	calls   int32
}

func (m *slowMeta) GetChunk(ctx meta.Context, f *meta.FileHandle, indx uint32) ([]byte, error) {
	atomic.AddInt32(&m.calls, 1)
	select {
	case <-m.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return m.Meta.GetChunk(ctx, f, indx)
}

func TestReadSharedFetchCancelled(t *testing.T) {
	m, err := meta.Connect("mem://", nil)
	require.NoError(t, err)
	sm := &slowMeta{Meta: m, release: make(chan struct{})}
	v := NewVFS(&Config{}, sm)
	data := sample(10)
	put(t, sm, "/alpha", 4, data)

	cx, cancel := context.WithCancel(context.Background())
	interrupted := NewLogContext(meta.WithContext(cx, meta.NewContext(2, 1000, []uint32{1000})))
	type result struct {
		n   int
		eno syscall.Errno
		buf []byte
	}
	first := make(chan result, 1)
	go func() {
		buf := make([]byte, 4)
		n, eno := v.Read(interrupted, "/alpha", 0, buf, 0)
		first <- result{n, eno, buf}
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&sm.calls) == 1 }, time.Second, time.Millisecond)

	second := make(chan result, 1)
	go func() {
		buf := make([]byte, 4)
		n, eno := v.Read(ctx(), "/alpha", 0, buf, 0)
		second <- result{n, eno, buf}
	}()
	// let the second reader join the fetch in flight
	time.Sleep(50 * time.Millisecond)

	cancel()
	r := <-first
	require.Equal(t, syscall.EINTR, r.eno)
	require.Zero(t, r.n)

	close(sm.release)
	r = <-second
	require.Zero(t, r.eno)
	require.Equal(t, 4, r.n)
	require.Equal(t, data[:4], r.buf)
}
