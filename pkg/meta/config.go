// pkg/meta/config.go

package meta

// Config for clients.
type Config struct {
    Retries int
    // Prefix is the name of the GridFS bucket, "fs" when empty.
    Prefix string
    // DownLimit caps the bandwidth used to fetch chunks, in bytes per second.
    DownLimit  int64
    MountPoint string
}

func (c *Config) prefix() string {
    if c == nil || c.Prefix == "" {
        return "fs"
    }
    return c.Prefix
}
