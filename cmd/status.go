// cmd/status.go

package main

import (
	"encoding/json"
	"fmt"
	"time"

	"ChunkFS/pkg/meta"

	"github.com/urfave/cli/v2"
)

type summary struct {
	Backend    string
	Prefix     string
	Files      int
	Length     uint64
	Chunks     uint64
	LastUpload string `json:",omitempty"`
}

type sections struct {
	Summary *summary
	Files   []*meta.FileHandle `json:",omitempty"`
}

func printJson(v interface{}) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatalf("json: %s", err)
	}
	fmt.Println(string(output))
}

func status(ctx *cli.Context) error {
	setLoggerLevel(ctx)
	if ctx.Args().Len() < 1 {
		return fmt.Errorf("META-URL is needed")
	}
	conf := &meta.Config{Retries: 10, Prefix: ctx.String("prefix")}
	m := meta.NewClient(ctx.Args().Get(0), conf)
	defer m.Close()

	s := &summary{Backend: m.Name(), Prefix: conf.Prefix}
	var files []*meta.FileHandle
	var last time.Time
	for f, err := range m.ListFiles(meta.Background) {
		if err != nil {
			logger.Fatalf("list files: %s", err)
		}
		s.Files++
		s.Length += f.Length
		s.Chunks += uint64(f.Chunks())
		if f.UploadDate.After(last) {
			last = f.UploadDate
		}
		if ctx.Bool("files") {
			files = append(files, f)
		}
	}
	if !last.IsZero() {
		s.LastUpload = last.Format(time.RFC3339)
	}
	printJson(&sections{s, files})
	return nil
}

func statusFlags() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "show a summary of the files in a store",
		ArgsUsage: "META-URL",
		Action:    status,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "prefix",
				Value: "fs",
				Usage: "name of the bucket the files are stored under",
			},
			&cli.BoolFlag{
				Name:    "files",
				Aliases: []string{"f"},
				Usage:   "list every file",
			},
		},
	}
}
