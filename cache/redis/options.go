package redis

import (
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultAddr = "127.0.0.1:6379"

// Options controls how the Redis store connects.
type Options struct {
	// URL such as "redis://:secret@localhost:6379/0". It wins over Addr.
	URL  string
	Addr string
	// Prefix namespaces every key, so one database can hold several deployments.
	Prefix string
	// Timeout bounds dialing and each read or write. Token mirroring should
	// fail fast rather than stall an authentication.
	Timeout  time.Duration
	PoolSize int
}

func (o Options) client() (*goredis.Options, error) {
	var ro *goredis.Options
	switch {
	case o.URL != "":
		parsed, err := goredis.ParseURL(o.URL)
		if err != nil {
			return nil, fmt.Errorf("redis: invalid url: %w", err)
		}
		ro = parsed
	case o.Addr != "":
		ro = &goredis.Options{Addr: o.Addr}
	default:
		ro = &goredis.Options{Addr: defaultAddr}
	}

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ro.DialTimeout = 2 * timeout
	ro.ReadTimeout = timeout
	ro.WriteTimeout = timeout
	ro.PoolSize = max(o.PoolSize, 4)
	return ro, nil
}
