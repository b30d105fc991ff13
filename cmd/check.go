// cmd/check.go

package main

import (
	"fmt"
	"strings"

	"ChunkFS/pkg/meta"
	"ChunkFS/pkg/utils"
	"ChunkFS/pkg/vfs"

	"github.com/urfave/cli/v2"
)

func checkFlags() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "fetch every chunk of files to find missing or truncated ones",
		ArgsUsage: "META-URL [NAME...]",
		Action:    check,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "prefix",
				Value: "fs",
				Usage: "name of the bucket the files are stored under",
			},
			&cli.IntFlag{
				Name:    "threads",
				Aliases: []string{"p"},
				Value:   10,
				Usage:   "number of concurrent workers",
			},
			&cli.Int64Flag{
				Name:  "download-limit",
				Value: 0,
				Usage: "bandwidth limit for download in Mbps",
			},
		},
	}
}

func check(c *cli.Context) error {
	setLoggerLevel(c)
	requireArgs(c, 1, "META-URL [NAME...]")
	conf := &meta.Config{
		Retries:   10,
		Prefix:    c.String("prefix"),
		DownLimit: c.Int64("download-limit") * 1e6 / 8,
	}
	m := meta.NewClient(c.Args().Get(0), conf)
	defer m.Close()

	var names []string
	for i := 1; i < c.Args().Len(); i++ {
		name := c.Args().Get(i)
		if !strings.HasPrefix(name, "/") {
			name = "/" + name
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		for f, err := range m.ListFiles(meta.Background) {
			if err != nil {
				logger.Fatalf("list files: %s", err)
			}
			names = append(names, f.Name)
		}
	}

	v := vfs.NewVFS(&vfs.Config{Meta: conf, Name: conf.Prefix}, m)
	progress, bar := utils.NewDynProgressBar("checking: ", c.Bool("quiet"))
	bar.SetTotal(int64(len(names)), false)
	broken, err := v.Check(meta.Background, names, c.Int("threads"), func(f *meta.FileHandle) {
		bar.Increment()
	})
	bar.SetTotal(-1, true)
	progress.Wait()
	if err != nil {
		logger.Fatalf("check: %s", err)
	}
	if len(broken) > 0 {
		for _, name := range broken {
			fmt.Println(name)
		}
		return cli.Exit(fmt.Sprintf("%d of %d files are broken", len(broken), len(names)), 1)
	}
	logger.Infof("All %d files are intact", len(names))
	return nil
}
