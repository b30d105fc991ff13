// pkg/fuse/utils.go

package fuse

import (
	"ChunkFS/pkg/meta"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// Attr is an alias to meta.Attr
type Attr = meta.Attr

func attrToStat(attr *Attr, out *fuse.Attr) {
	out.Uid = attr.Uid
	out.Gid = attr.Gid
	out.Mode = attr.SMode()
	out.Nlink = attr.Nlink
	out.Atime = uint64(attr.Atime)
	out.Atimensec = attr.Atimensec
	out.Mtime = uint64(attr.Mtime)
	out.Mtimensec = attr.Mtimensec
	out.Ctime = uint64(attr.Ctime)
	out.Ctimensec = attr.Ctimensec

	var size, blocks uint64
	switch attr.Typ {
	case meta.TypeDirectory:
		fallthrough
	case meta.TypeFile:
		size = attr.Length
		blocks = (size + 511) / 512
	}
	out.Size = size
	out.Blocks = blocks
	out.Blksize = 0x10000
}
