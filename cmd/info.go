// cmd/info.go

package main

import (
	"fmt"
	"strings"

	"ChunkFS/pkg/meta"

	"github.com/urfave/cli/v2"
)

func infoFlags() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "show how files are laid out in chunks",
		ArgsUsage: "META-URL NAME...",
		Action:    info,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "prefix",
				Value: "fs",
				Usage: "name of the bucket the files are stored under",
			},
			&cli.BoolFlag{
				Name:    "chunks",
				Aliases: []string{"c"},
				Usage:   "print the length of every chunk",
			},
		},
	}
}

func info(ctx *cli.Context) error {
	setLoggerLevel(ctx)
	if ctx.Args().Len() < 2 {
		logger.Infof("META-URL and NAME are needed")
		return nil
	}
	m := meta.NewClient(ctx.Args().Get(0), &meta.Config{Retries: 10, Prefix: ctx.String("prefix")})
	defer m.Close()
	for i := 1; i < ctx.Args().Len(); i++ {
		name := ctx.Args().Get(i)
		if !strings.HasPrefix(name, "/") {
			name = "/" + name
		}
		f, err := m.FindFile(meta.Background, name)
		if err != nil {
			logger.Errorf("lookup %s: %s", name, err)
			continue
		}
		fmt.Println(name, ":")
		fmt.Printf("      id: %v\n", f.ID)
		fmt.Printf("  length: %d\n", f.Length)
		fmt.Printf("   chunk: %d\n", f.ChunkSize)
		fmt.Printf("  chunks: %d\n", f.Chunks())
		if n := f.Chunks(); n > 0 {
			fmt.Printf("    last: %d\n", f.ChunkLength(n-1))
		}
		if !f.UploadDate.IsZero() {
			fmt.Printf("  upload: %s\n", f.UploadDate.Format("2006-01-02 15:04:05"))
		}
		if ctx.Bool("chunks") {
			fmt.Println(" objects:")
			for indx := uint32(0); indx < f.Chunks(); indx++ {
				fmt.Printf("\t%d\t%d\n", indx, f.ChunkLength(indx))
			}
		}
	}
	return nil
}
