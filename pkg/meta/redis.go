// pkg/meta/redis.go

package meta

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"ChunkFS/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

/*
	Redis keeps the GridFS layout in two kinds of keys:

	<prefix>.files               hash of filename -> file record
	<prefix>.c<id>_<n>           content of chunk n of file id

	A file record is: id (16 bytes) | chunkSize (4) | length (8) | uploadDate in ns (8)
*/

const fileRecordSize = 16 + 4 + 8 + 8

type redisMeta struct {
	conf   *Config
	prefix string
	rdb    *redis.Client
}

var _ Meta = &redisMeta{}

func init() {
	Register("redis", newRedisMeta)
	Register("rediss", newRedisMeta)
}

// newRedisMeta return a meta-store using Redis.
func newRedisMeta(driver, addr string, conf *Config) (Meta, error) {
	url := driver + "://" + addr
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %s", url, err)
	}

	var rdb *redis.Client
	if strings.Contains(opt.Addr, ",") {
		var fopt redis.FailoverOptions
		ps := strings.Split(opt.Addr, ",")
		fopt.MasterName = ps[0]
		fopt.SentinelAddrs = ps[1:]

		defaultSentinelPort := "26379"
		for i, saddr := range fopt.SentinelAddrs {
			h, p, err := net.SplitHostPort(saddr)
			if err != nil {
				// If SplitHostPort fails, assume it's just a host and add the default port
				fopt.SentinelAddrs[i] = net.JoinHostPort(saddr, defaultSentinelPort)
			} else if p == "" {
				fopt.SentinelAddrs[i] = net.JoinHostPort(h, defaultSentinelPort)
			}
		}

		fopt.Username = opt.Username
		fopt.Password = opt.Password
		if fopt.Password == "" && os.Getenv("REDIS_PASSWORD") != "" {
			fopt.Password = os.Getenv("REDIS_PASSWORD")
		}
		fopt.SentinelPassword = os.Getenv("SENTINEL_PASSWORD")
		fopt.DB = opt.DB
		fopt.TLSConfig = opt.TLSConfig
		fopt.MaxRetries = conf.Retries
		fopt.MinRetryBackoff = time.Millisecond * 100
		fopt.MaxRetryBackoff = time.Minute * 1
		fopt.ReadTimeout = time.Second * 30
		fopt.WriteTimeout = time.Second * 5
		rdb = redis.NewFailoverClient(&fopt)
	} else {
		if opt.Password == "" && os.Getenv("REDIS_PASSWORD") != "" {
			opt.Password = os.Getenv("REDIS_PASSWORD")
		}
		opt.MaxRetries = conf.Retries
		opt.MinRetryBackoff = time.Millisecond * 100
		opt.MaxRetryBackoff = time.Minute * 1
		opt.ReadTimeout = time.Second * 30
		opt.WriteTimeout = time.Second * 5
		rdb = redis.NewClient(opt)
	}

	m := &redisMeta{
		conf:   conf,
		prefix: conf.prefix(),
		rdb:    rdb,
	}
	m.checkServerConfig()
	return m, nil
}

func (rm *redisMeta) Name() string {
	return "redis"
}

func (rm *redisMeta) filesKey() string {
	return rm.prefix + ".files"
}

func (rm *redisMeta) chunkKey(id interface{}, indx uint32) string {
	return fmt.Sprintf("%s.c%v_%d", rm.prefix, id, indx)
}

func (rm *redisMeta) marshal(f *FileHandle) []byte {
	id, _ := f.ID.(uuid.UUID)
	w := utils.NewBuffer(fileRecordSize)
	w.Put(id[:])
	w.Put32(f.ChunkSize)
	w.Put64(f.Length)
	w.Put64(uint64(f.UploadDate.UnixNano()))
	return w.Bytes()
}

func (rm *redisMeta) parseFile(name string, buf []byte) (*FileHandle, error) {
	if len(buf) < fileRecordSize {
		return nil, fmt.Errorf("invalid file record of %s: %d bytes", name, len(buf))
	}
	rb := utils.FromBuffer(buf)
	id, _ := uuid.FromBytes(rb.Get(16))
	f := &FileHandle{ID: id, Name: name}
	f.ChunkSize = rb.Get32()
	f.Length = rb.Get64()
	f.UploadDate = time.Unix(0, int64(rb.Get64()))
	if f.ChunkSize == 0 {
		return nil, fmt.Errorf("invalid file record of %s: zero chunk size", name)
	}
	logger.Tracef("file: %+v -> %s", buf, f)
	return f, nil
}

func (rm *redisMeta) FindFile(ctx Context, name string) (*FileHandle, error) {
	buf, err := rm.rdb.HGet(ctx, rm.filesKey(), name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, syscall.ENOENT
	}
	if err != nil {
		return nil, err
	}
	return rm.parseFile(name, buf)
}

func (rm *redisMeta) ListFiles(ctx Context) iter.Seq2[*FileHandle, error] {
	return func(yield func(*FileHandle, error) bool) {
		var keys []string
		var cursor uint64
		var err error
		for {
			keys, cursor, err = rm.rdb.HScan(ctx, rm.filesKey(), cursor, "*", 10000).Result()
			if err != nil {
				yield(nil, err)
				return
			}
			for i := 0; i+1 < len(keys); i += 2 {
				f, err := rm.parseFile(keys[i], []byte(keys[i+1]))
				if err != nil {
					logger.Warnf("skip %s: %s", keys[i], err)
					continue
				}
				if !yield(f, nil) {
					return
				}
			}
			if cursor == 0 {
				break
			}
		}
	}
}

func (rm *redisMeta) GetChunk(ctx Context, f *FileHandle, indx uint32) ([]byte, error) {
	data, err := rm.rdb.Get(ctx, rm.chunkKey(f.ID, indx)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, syscall.ENOENT
	}
	return data, err
}

func (rm *redisMeta) PutFile(ctx Context, name string, chunkSize uint32, r io.Reader) (*FileHandle, error) {
	f := &FileHandle{ID: uuid.New(), Name: name, ChunkSize: chunkSize}
	var err error
	f.Length, err = readChunks(r, chunkSize, func(indx uint32, data []byte) error {
		return rm.rdb.Set(ctx, rm.chunkKey(f.ID, indx), data, 0).Err()
	})
	if err != nil {
		rm.removeChunks(ctx, f)
		return nil, err
	}
	f.UploadDate = time.Now()

	old, err := rm.FindFile(ctx, name)
	if err != nil && !errors.Is(err, syscall.ENOENT) {
		return nil, err
	}
	// the record is written last, so that a file is visible only when complete
	if err = rm.rdb.HSet(ctx, rm.filesKey(), name, rm.marshal(f)).Err(); err != nil {
		rm.removeChunks(ctx, f)
		return nil, err
	}
	if old != nil {
		rm.removeChunks(ctx, old)
	}
	return f, nil
}

func (rm *redisMeta) removeChunks(ctx Context, f *FileHandle) {
	var keys []string
	for indx := uint32(0); indx < f.Chunks(); indx++ {
		keys = append(keys, rm.chunkKey(f.ID, indx))
	}
	if len(keys) == 0 {
		return
	}
	if err := rm.rdb.Del(ctx, keys...).Err(); err != nil {
		logger.Warnf("remove chunks of %s: %s", f, err)
	}
}

func (rm *redisMeta) Close() error {
	return rm.rdb.Close()
}

type redisVersion struct {
	ver          string
	major, minor int
}

func parseRedisVersion(v string) (ver redisVersion, err error) {
	ver.ver = v
	ps := strings.Split(v, ".")
	if len(ps) < 2 {
		return ver, fmt.Errorf("invalid redis version: %s", v)
	}
	if ver.major, err = strconv.Atoi(ps[0]); err != nil {
		return ver, fmt.Errorf("invalid redis version: %s", v)
	}
	if ver.minor, err = strconv.Atoi(ps[1]); err != nil {
		return ver, fmt.Errorf("invalid redis version: %s", v)
	}
	return ver, nil
}

type redisInfo struct {
	maxMemoryPolicy string
	redisVersion    string
}

func checkRedisInfo(rawInfo string) (info redisInfo, err error) {
	lines := strings.Split(strings.TrimSpace(rawInfo), "\n")
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		kvPair := strings.SplitN(l, ":", 2)
		if len(kvPair) < 2 {
			continue
		}
		key, val := kvPair[0], kvPair[1]
		switch key {
		case "maxmemory_policy":
			info.maxMemoryPolicy = val
			if val != "noeviction" {
				logger.Warnf("maxmemory_policy is %q, please set it to 'noeviction' or chunks may be evicted.", val)
			}
		case "redis_version":
			info.redisVersion = val
			ver, verr := parseRedisVersion(val)
			if verr != nil {
				err = verr
			} else if ver.major < 4 {
				logger.Warnf("Redis version %s is too old, please upgrade to 4.0 or newer.", val)
			}
		}
	}
	return
}

func (rm *redisMeta) checkServerConfig() {
	rawInfo, err := rm.rdb.Info(Background).Result()
	if err != nil {
		logger.Warnf("parse info: %s", err)
		return
	}
	_, err = checkRedisInfo(rawInfo)
	if err != nil {
		logger.Warnf("parse info: %s", err)
	}

	start := time.Now()
	_ = rm.rdb.Ping(Background)
	logger.Infof("Ping redis: %s", time.Since(start))
}
