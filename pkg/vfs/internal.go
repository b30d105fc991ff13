// pkg/vfs/internal.go

package vfs

import "ChunkFS/pkg/meta"

// AccessLogName is the hidden file streaming the operations of the mount.
// It is not listed, and exists only when Config.AccessLog is set.
const AccessLogName = ".accesslog"

// IsSpecialName tells whether name is served by the mount itself.
func IsSpecialName(name string) bool {
	return name == AccessLogName
}

func (v *VFS) isSpecial(path string) bool {
	return v.Conf.AccessLog && len(path) > 1 && path[0] == '/' && IsSpecialName(path[1:])
}

func (v *VFS) specialAttr() *Attr {
	return &Attr{
		Typ:   meta.TypeFile,
		Mode:  0400,
		Uid:   v.Conf.Uid,
		Gid:   v.Conf.Gid,
		Nlink: 1,
	}
}
