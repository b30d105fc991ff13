// cmd/main.go

package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"ChunkFS/pkg/utils"
	"ChunkFS/pkg/version"

	"github.com/google/gops/agent"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var logger = utils.GetLogger("chunkfs")

func main() {
	cli.VersionFlag = &cli.BoolFlag{
		Name: "version", Aliases: []string{"V"},
		Usage: "print only the version",
	}
	app := &cli.App{
		Name:                 "chunkfs",
		Usage:                "A read-only FUSE view over files stored as chunks.",
		Version:              version.Version(),
		Copyright:            "Apache License 2.0",
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"debug", "v"},
				Usage:   "enable debug log",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "only warning and errors",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "enable trace log",
			},
			&cli.BoolFlag{
				Name:  "no-agent",
				Usage: "disable gops agent",
			},
		},
		Commands: []*cli.Command{
			mountFlags(),
			umountFlags(),
			statusFlags(),
			infoFlags(),
			importFlags(),
			checkFlags(),
		},
	}

	err := app.Run(reorderOptions(app, os.Args))
	if err != nil {
		log.Fatal(err)
	}
}

func setLoggerLevel(c *cli.Context) {
	if c.Bool("trace") {
		utils.SetLogLevel(logrus.TraceLevel)
	} else if c.Bool("verbose") {
		utils.SetLogLevel(logrus.DebugLevel)
	} else if c.Bool("quiet") {
		utils.SetLogLevel(logrus.WarnLevel)
	} else {
		utils.SetLogLevel(logrus.InfoLevel)
	}
	if !c.Bool("no-agent") {
		if err := agent.Listen(agent.Options{}); err != nil {
			logger.Debugf("gops agent: %s", err)
		}
	}
}

func isFlag(flags []cli.Flag, option string) (bool, bool) {
	if !strings.HasPrefix(option, "-") {
		return false, false
	}
	// --V or -v work the same
	option = strings.TrimLeft(option, "-")
	for _, flag := range flags {
		_, isBool := flag.(*cli.BoolFlag)
		for _, name := range flag.Names() {
			if option == name || strings.HasPrefix(option, name+"=") {
				return true, !isBool && !strings.Contains(option, "=")
			}
		}
	}
	return false, false
}

// reorderOptions moves the flags of a command in front of its arguments,
// so that "chunkfs mount META-URL MP -d" works.
func reorderOptions(app *cli.App, args []string) []string {
	var newArgs = []string{args[0]}
	var globalFlags []string
	var cmdFlags []string
	var cmdArgs []string
	var cmd *cli.Command
	for i := 1; i < len(args); i++ {
		option := args[i]
		if ok, hasValue := isFlag(app.Flags, option); ok && cmd == nil {
			globalFlags = append(globalFlags, option)
			if hasValue && i+1 < len(args) {
				i++
				globalFlags = append(globalFlags, args[i])
			}
			continue
		}
		if cmd == nil {
			if c := app.Command(option); c != nil {
				cmd = c
				continue
			}
			cmdArgs = append(cmdArgs, option)
			continue
		}
		if ok, hasValue := isFlag(cmd.Flags, option); ok {
			cmdFlags = append(cmdFlags, option)
			if hasValue && i+1 < len(args) {
				i++
				cmdFlags = append(cmdFlags, args[i])
			}
		} else if ok, hasValue := isFlag(app.Flags, option); ok {
			globalFlags = append(globalFlags, option)
			if hasValue && i+1 < len(args) {
				i++
				globalFlags = append(globalFlags, args[i])
			}
		} else {
			cmdArgs = append(cmdArgs, option)
		}
	}
	newArgs = append(newArgs, globalFlags...)
	if cmd != nil {
		newArgs = append(newArgs, cmd.Name)
	}
	newArgs = append(newArgs, cmdFlags...)
	newArgs = append(newArgs, cmdArgs...)
	return newArgs
}

func requireArgs(c *cli.Context, n int, usage string) {
	if c.Args().Len() < n {
		fmt.Fprintf(os.Stderr, "Usage: chunkfs %s %s\n", c.Command.Name, usage)
		os.Exit(1)
	}
}
