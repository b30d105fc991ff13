// pkg/meta/interface.go

package meta

import (
    "fmt"
    "io"
    "iter"
    "strings"
    "syscall"
    "time"

    "ChunkFS/pkg/chunk"
    "ChunkFS/pkg/utils"
)

var logger = utils.GetLogger("chunkfs")

const (
    // TypeFile is type of regular file
    TypeFile = 1
    // TypeDirectory is type of directory
    TypeDirectory = 2
)

// DefaultChunkSize is the chunk size GridFS drivers use, 255 KiB.
const DefaultChunkSize = 255 << 10

// FileHandle describes how one stored file is laid out in chunks.
type FileHandle struct {
    ID         interface{} // identifier of the file in the backend
    Name       string
    ChunkSize  uint32
    Length     uint64
    UploadDate time.Time
}

// Chunks returns the number of chunks of the file.
func (f *FileHandle) Chunks() uint32 {
    return chunk.Count(f.ChunkSize, f.Length)
}

// ChunkLength returns the length of chunk indx; the last chunk may be short.
func (f *FileHandle) ChunkLength(indx uint32) uint32 {
    return chunk.Length(f.ChunkSize, f.Length, indx)
}

func (f *FileHandle) String() string {
    return fmt.Sprintf("%s (%v, %d bytes in %d chunks of %d)", f.Name, f.ID, f.Length, f.Chunks(), f.ChunkSize)
}

// Attr represents attributes of a node.
type Attr struct {
    Typ       uint8  // type of a node
    Mode      uint16 // permission mode
    Uid       uint32 // owner id
    Gid       uint32 // group id of owner
    Atime     int64  // last access time
    Mtime     int64  // last modified time
    Ctime     int64  // last change time for meta
    Atimensec uint32 // nanosecond part of atime
    Mtimensec uint32 // nanosecond part of mtime
    Ctimensec uint32 // nanosecond part of ctime
    Nlink     uint32 // number of links (sub-directories or hardlinks)
    Length    uint64 // length of regular file
}

func typeToStatType(_type uint8) uint32 {
    switch _type & 0x7F {
    case TypeDirectory:
        return syscall.S_IFDIR
    case TypeFile:
        return syscall.S_IFREG
    default:
        panic(_type)
    }
}

// SMode is the file mode including type and unix permission.
func (a Attr) SMode() uint32 {
    return typeToStatType(a.Typ) | uint32(a.Mode)
}

// Entry is an entry inside a directory.
type Entry struct {
    Name []byte
    Attr *Attr
}

// Meta is a client of a chunked object store.
type Meta interface {
    // Name of the backend.
    Name() string

    // FindFile returns the file stored under name, or syscall.ENOENT.
    FindFile(ctx Context, name string) (*FileHandle, error)
    // ListFiles enumerates the stored files in the native order of the
    // backend. Every iteration queries the store again.
    ListFiles(ctx Context) iter.Seq2[*FileHandle, error]
    // GetChunk returns the content of chunk indx of the file.
    GetChunk(ctx Context, f *FileHandle, indx uint32) ([]byte, error)

    // PutFile stores the content of r under name, replacing any file
    // with the same name.
    PutFile(ctx Context, name string, chunkSize uint32, r io.Reader) (*FileHandle, error)

    // Close releases the connection to the store.
    Close() error
}

type Creator func(driver, addr string, conf *Config) (Meta, error)

var metaDrivers = make(map[string]Creator)

func Register(name string, register Creator) {
    metaDrivers[name] = register
}

// Connect opens a client for the store at uri.
func Connect(uri string, conf *Config) (Meta, error) {
    if !strings.Contains(uri, "://") {
        uri = "redis://" + uri
    }
    p := strings.Index(uri, "://")
    if p < 0 {
        return nil, fmt.Errorf("invalid uri: %s", uri)
    }
    driver := uri[:p]
    f, ok := metaDrivers[driver]
    if !ok {
        return nil, fmt.Errorf("invalid meta driver: %s", driver)
    }
    if conf == nil {
        conf = &Config{}
    }
    m, err := f(driver, uri[p+3:], conf)
    if err != nil {
        return nil, fmt.Errorf("meta %s: %s", driver, err)
    }
    if conf.DownLimit > 0 {
        m = NewLimited(m, conf.DownLimit)
    }
    return m, nil
}

// NewClient connects to the store at uri and exits the process on failure.
func NewClient(uri string, conf *Config) Meta {
    m, err := Connect(uri, conf)
    if err != nil {
        logger.Fatalf("%s", err)
    }
    return m
}

// readChunks splits r into chunks of chunkSize and hands them to put
// in order. It returns the total length.
func readChunks(r io.Reader, chunkSize uint32, put func(indx uint32, data []byte) error) (uint64, error) {
    if chunkSize == 0 {
        return 0, fmt.Errorf("chunk size should > 0")
    }
    var total uint64
    for indx := uint32(0); ; indx++ {
        buf := make([]byte, chunkSize)
        n, err := io.ReadFull(r, buf)
        if n > 0 {
            if perr := put(indx, buf[:n]); perr != nil {
                return total, perr
            }
            total += uint64(n)
        }
        if err == io.EOF || err == io.ErrUnexpectedEOF {
            return total, nil
        }
        if err != nil {
            return total, err
        }
    }
}
