// pkg/meta/mem.go

package meta

import (
    "io"
    "iter"
    "sync"
    "syscall"
    "time"
)

type memFile struct {
    handle FileHandle
    chunks [][]byte
}

// memMeta keeps everything in process memory, in insertion order.
type memMeta struct {
    sync.RWMutex
    files  []*memFile
    nextID int64
}

func init() {
    Register("mem", newMemMeta)
}

func newMemMeta(driver, addr string, conf *Config) (Meta, error) {
    return &memMeta{}, nil
}

func (mm *memMeta) Name() string {
    return "mem"
}

func (mm *memMeta) find(name string) *memFile {
    for _, f := range mm.files {
        if f.handle.Name == name {
            return f
        }
    }
    return nil
}

func (mm *memMeta) FindFile(ctx Context, name string) (*FileHandle, error) {
    mm.RLock()
    defer mm.RUnlock()
    if f := mm.find(name); f != nil {
        h := f.handle
        return &h, nil
    }
    return nil, syscall.ENOENT
}

func (mm *memMeta) ListFiles(ctx Context) iter.Seq2[*FileHandle, error] {
    return func(yield func(*FileHandle, error) bool) {
        mm.RLock()
        files := append([]*memFile(nil), mm.files...)
        mm.RUnlock()
        for _, f := range files {
            h := f.handle
            if !yield(&h, nil) {
                return
            }
        }
    }
}

func (mm *memMeta) GetChunk(ctx Context, fh *FileHandle, indx uint32) ([]byte, error) {
    mm.RLock()
    defer mm.RUnlock()
    for _, f := range mm.files {
        if f.handle.ID == fh.ID {
            if int(indx) >= len(f.chunks) {
                return nil, syscall.ENOENT
            }
            return f.chunks[indx], nil
        }
    }
    return nil, syscall.ENOENT
}

func (mm *memMeta) PutFile(ctx Context, name string, chunkSize uint32, r io.Reader) (*FileHandle, error) {
    var chunks [][]byte
    length, err := readChunks(r, chunkSize, func(indx uint32, data []byte) error {
        chunks = append(chunks, data)
        return nil
    })
    if err != nil {
        return nil, err
    }
    mm.Lock()
    defer mm.Unlock()
    mm.nextID++
    f := &memFile{
        handle: FileHandle{ID: mm.nextID, Name: name, ChunkSize: chunkSize, Length: length, UploadDate: time.Now()},
        chunks: chunks,
    }
    if old := mm.find(name); old != nil {
        *old = *f
    } else {
        mm.files = append(mm.files, f)
    }
    h := f.handle
    return &h, nil
}

func (mm *memMeta) Close() error {
    return nil
}
