// cmd/mount_unix.go

package main

import (
	"bytes"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"ChunkFS/pkg/fuse"
	"ChunkFS/pkg/meta"
	"ChunkFS/pkg/utils"
	"ChunkFS/pkg/vfs"

	"github.com/juicedata/godaemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func checkMountpoint(name, mp string) {
	for i := 0; i < 20; i++ {
		time.Sleep(time.Millisecond * 500)
		st, err := os.Stat(mp)
		if err == nil {
			if sys, ok := st.Sys().(*syscall.Stat_t); ok && sys.Ino == 1 {
				logger.Infof("\033[92mOK\033[0m, %s is ready at %s", name, mp)
				return
			}
		}
		os.Stdout.WriteString(".")
		os.Stdout.Sync()
	}
	os.Stdout.WriteString("\n")
	logger.Fatalf("fail to mount after 10 seconds, please mount in foreground")
}

func makeDaemon(c *cli.Context, name, mp string) error {
	var attrs godaemon.DaemonAttr
	attrs.OnExit = func(stage int) error {
		if stage != 0 {
			return nil
		}
		checkMountpoint(name, mp)
		return nil
	}

	// the current dir will be changed to root in daemon,
	// so the mount point has to be an absolute path.
	if godaemon.Stage() == 0 {
		for i, a := range os.Args {
			if a == mp {
				amp, err := filepath.Abs(mp)
				if err == nil {
					os.Args[i] = amp
				} else {
					logger.Warnf("abs of %s: %s", mp, err)
				}
			}
		}
		var err error
		logfile := c.String("log")
		attrs.Stdout, err = os.OpenFile(logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logger.Errorf("open log file %s: %s", logfile, err)
		}
	}
	_, _, err := godaemon.MakeDaemon(&attrs)
	return err
}

func mountFlags() *cli.Command {
	var defaultLogDir = "/var/log"
	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Fatalf("%v", err)
			return nil
		}
		defaultLogDir = path.Join(homeDir, ".chunkfs")
	}
	return &cli.Command{
		Name:      "mount",
		Usage:     "mount the files of a store as a read-only directory",
		ArgsUsage: "META-URL MOUNTPOINT",
		Action:    mount,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "d",
				Aliases: []string{"background"},
				Usage:   "run in background",
			},
			&cli.BoolFlag{
				Name:  "no-syslog",
				Usage: "disable syslog",
			},
			&cli.StringFlag{
				Name:  "log",
				Value: path.Join(defaultLogDir, "chunkfs.log"),
				Usage: "path of log file when running in background",
			},
			&cli.StringFlag{
				Name:  "o",
				Usage: "other FUSE options",
			},
			&cli.StringFlag{
				Name:  "prefix",
				Value: "fs",
				Usage: "name of the bucket the files are stored under",
			},
			&cli.IntFlag{
				Name:  "io-retries",
				Value: 10,
				Usage: "number of retries after network failure",
			},
			&cli.Int64Flag{
				Name:  "download-limit",
				Value: 0,
				Usage: "bandwidth limit for download in Mbps",
			},
			&cli.Float64Flag{
				Name:  "attr-cache",
				Value: 1.0,
				Usage: "attributes cache timeout in seconds",
			},
			&cli.Float64Flag{
				Name:  "entry-cache",
				Value: 1.0,
				Usage: "file entry cache timeout in seconds",
			},
			&cli.Float64Flag{
				Name:  "negative-cache",
				Value: 0.1,
				Usage: "cache timeout in seconds for names that do not exist",
			},
			&cli.BoolFlag{
				Name:  "access-log",
				Usage: "expose the operations of the mount in " + vfs.AccessLogName,
			},
			&cli.StringFlag{
				Name:  "metrics",
				Usage: "address to export metrics (e.g. 127.0.0.1:9567)",
			},
		},
	}
}

func disableUpdateDb() {
	p := "/etc/updatedb.conf"
	data, err := os.ReadFile(p)
	if err != nil {
		return
	}
	fstype := "fuse.chunkfs"
	if bytes.Contains(data, []byte(fstype)) {
		return
	}
	// assume that fuse.sshfs is already in PRUNEFS
	knownFS := "fuse.sshfs"
	p1 := bytes.Index(data, []byte("PRUNEFS"))
	p2 := bytes.Index(data, []byte(knownFS))
	if p1 > 0 && p2 > p1 {
		var nd []byte
		nd = append(nd, data[:p2]...)
		nd = append(nd, fstype...)
		nd = append(nd, ' ')
		nd = append(nd, data[p2:]...)
		err = os.WriteFile(p, nd, 0644)
		if err != nil {
			logger.Warnf("update %s: %s", p, err)
		} else {
			logger.Infof("Add %s into PRUNEFS of %s", fstype, p)
		}
	}
}

func exposeMetrics(addr string) {
	registry := prometheus.NewRegistry()
	registerer := prometheus.WrapRegistererWithPrefix("chunkfs_", registry)
	registerer.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registerer.MustRegister(prometheus.NewGoCollector())
	vfs.InitMetrics(registerer)
	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Errorf("metrics server at %s: %s", addr, err)
		}
	}()
	logger.Infof("Prometheus metrics listening on %s", addr)
}

func mount(c *cli.Context) error {
	setLoggerLevel(c)
	requireArgs(c, 2, "META-URL MOUNTPOINT")
	addr := c.Args().Get(0)
	mp := c.Args().Get(1)
	if !utils.Exists(mp) {
		if err := os.MkdirAll(mp, 0777); err != nil {
			logger.Fatalf("create %s: %s", mp, err)
		}
	}

	metaConf := &meta.Config{
		Retries:    c.Int("io-retries"),
		Prefix:     c.String("prefix"),
		DownLimit:  c.Int64("download-limit") * 1e6 / 8,
		MountPoint: mp,
	}
	name := metaConf.Prefix
	if c.Bool("d") {
		if err := makeDaemon(c, name, mp); err != nil {
			logger.Fatalf("Make daemon: %s", err)
		}
		utils.SetOutFile(c.String("log"))
	}
	utils.InitLoggers(!c.Bool("no-syslog"))

	m, err := meta.Connect(addr, metaConf)
	if err != nil {
		logger.Fatalf("connect: %s", err)
	}
	defer m.Close()
	logger.Infof("Data uses %s backend", m.Name())

	conf := &vfs.Config{
		Meta:       metaConf,
		Name:       name,
		Mountpoint: mp,
		AccessLog:  c.Bool("access-log"),
		Uid:        uint32(os.Getuid()),
		Gid:        uint32(os.Getgid()),
	}
	if addr := c.String("metrics"); addr != "" {
		exposeMetrics(addr)
	}
	mountMain(vfs.NewVFS(conf, m), conf, c)
	return nil
}

func mountMain(v *vfs.VFS, conf *vfs.Config, c *cli.Context) {
	if os.Getuid() == 0 && os.Getpid() != 1 {
		disableUpdateDb()
	}

	logger.Infof("Mounting %s at %s ...", conf.Name, conf.Mountpoint)
	err := fuse.Serve(v, conf, c.String("o"), c.Float64("attr-cache"), c.Float64("entry-cache"), c.Float64("negative-cache"))
	if err != nil {
		logger.Fatalf("fuse: %s", err)
	}
}
