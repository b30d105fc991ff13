// pkg/vfs/check.go

package vfs

import (
	"fmt"
	"sync"
	"time"

	"ChunkFS/pkg/meta"
)

// Check fetches every chunk of the given files (all the files when paths is
// empty) with concurrent workers and verifies their lengths. It returns the
// names of the files that are truncated or corrupted. done is called after
// each file when not nil.
func (v *VFS) Check(ctx meta.Context, paths []string, concurrent int, done func(f *meta.FileHandle)) ([]string, error) {
	if concurrent <= 0 {
		concurrent = 1
	}
	logger.Infof("start to check %d paths with %d workers", len(paths), concurrent)
	start := time.Now()
	todo := make(chan *meta.FileHandle, 10240)
	var mu sync.Mutex
	var broken []string
	wg := sync.WaitGroup{}
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range todo {
				if err := v.checkFile(ctx, f); err != nil {
					logger.Errorf("File %s could be corrupted: %s", f.Name, err)
					mu.Lock()
					broken = append(broken, f.Name)
					mu.Unlock()
				}
				if done != nil {
					done(f)
				}
			}
		}()
	}

	var err error
	var count int
	if len(paths) == 0 {
		for f, lerr := range v.Meta.ListFiles(ctx) {
			if lerr != nil {
				err = fmt.Errorf("list files: %w", lerr)
				break
			}
			todo <- f
			count++
		}
	}
	for _, p := range paths {
		f, ferr := v.Meta.FindFile(ctx, p)
		if ferr != nil {
			logger.Warnf("Failed to find %s: %s", p, ferr)
			mu.Lock()
			broken = append(broken, p)
			mu.Unlock()
			continue
		}
		logger.Debugf("Checking %s", f)
		todo <- f
		count++
	}
	close(todo)
	wg.Wait()
	logger.Infof("Checked %d files in %s, %d broken", count, time.Since(start), len(broken))
	return broken, err
}

func (v *VFS) checkFile(ctx meta.Context, f *meta.FileHandle) error {
	for indx := uint32(0); indx < f.Chunks(); indx++ {
		data, err := v.Meta.GetChunk(ctx, f, indx)
		if err != nil {
			return fmt.Errorf("chunk %d: %s", indx, err)
		}
		if expect := f.ChunkLength(indx); uint32(len(data)) != expect {
			return fmt.Errorf("chunk %d has %d bytes, expect %d", indx, len(data), expect)
		}
	}
	return nil
}
