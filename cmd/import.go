// cmd/import.go

package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"ChunkFS/pkg/meta"
	"ChunkFS/pkg/utils"

	"github.com/urfave/cli/v2"
)

func importFile(m meta.Meta, src, name string, chunkSize uint32, quiet bool) error {
	fp, err := os.Open(src)
	if err != nil {
		return err
	}
	defer fp.Close()
	st, err := fp.Stat()
	if err != nil {
		return err
	}
	progress, bar := utils.NewProgressBar(name, st.Size(), quiet)
	start := time.Now()
	f, err := m.PutFile(meta.Background, name, chunkSize, bar.ProxyReader(fp))
	bar.SetTotal(-1, true)
	progress.Wait()
	if err != nil {
		return err
	}
	logger.Infof("Imported %s in %s", f, time.Since(start))
	return nil
}

func importCmd(c *cli.Context) error {
	setLoggerLevel(c)
	requireArgs(c, 2, "META-URL FILE...")
	size := c.Uint("chunk-size")
	if size == 0 || size > 16<<20 {
		logger.Fatalf("invalid chunk size: %d", size)
	}
	m := meta.NewClient(c.Args().Get(0), &meta.Config{Retries: 10, Prefix: c.String("prefix")})
	defer m.Close()

	var failed int
	for i := 1; i < c.Args().Len(); i++ {
		src := c.Args().Get(i)
		name := c.String("name")
		if name == "" || c.Args().Len() > 2 {
			name = filepath.Base(src)
		}
		if err := importFile(m, src, "/"+strings.TrimPrefix(name, "/"), uint32(size), c.Bool("quiet")); err != nil {
			logger.Errorf("import %s: %s", src, err)
			failed++
		}
	}
	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func importFlags() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "store local files as chunks",
		ArgsUsage: "META-URL FILE...",
		Action:    importCmd,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "prefix",
				Value: "fs",
				Usage: "name of the bucket the files are stored under",
			},
			&cli.UintFlag{
				Name:  "chunk-size",
				Value: meta.DefaultChunkSize,
				Usage: "size of chunks in bytes",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "name of the file in the store (single file only)",
			},
		},
	}
}
