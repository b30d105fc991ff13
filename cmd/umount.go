// cmd/umount.go

package main

import (
	"fmt"
	"log"
	"os/exec"
	"runtime"

	"ChunkFS/pkg/utils"

	"github.com/urfave/cli/v2"
)

func umountFlags() *cli.Command {
	return &cli.Command{
		Name:      "umount",
		Usage:     "unmount a mount point",
		ArgsUsage: "MOUNTPOINT",
		Action:    umount,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "unmount a busy mount point by force",
			},
		},
	}
}

func umount(ctx *cli.Context) error {
	if ctx.Args().Len() < 1 {
		return fmt.Errorf("MOUNTPOINT is needed")
	}
	mp := ctx.Args().Get(0)
	force := ctx.Bool("force")
	if !force && !isMounted(mp) {
		return fmt.Errorf("%s is not a ChunkFS mount point", mp)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		if force {
			cmd = exec.Command("diskutil", "umount", "force", mp)
		} else {
			cmd = exec.Command("diskutil", "umount", mp)
		}
	case "linux":
		if _, err := exec.LookPath("fusermount"); err == nil {
			if force {
				cmd = exec.Command("fusermount", "-uz", mp)
			} else {
				cmd = exec.Command("fusermount", "-u", mp)
			}
		} else {
			if force {
				cmd = exec.Command("umount", "-l", mp)
			} else {
				cmd = exec.Command("umount", mp)
			}
		}
	default:
		return fmt.Errorf("OS %s is not supported", runtime.GOOS)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		log.Print(string(out))
	}
	return err
}

// isMounted tells whether mp is the root of a mounted file system.
func isMounted(mp string) bool {
	inode, err := utils.GetFileInode(mp)
	return err == nil && inode == 1
}
