package connector

import (
	"time"

	"github.com/mediocregopher/radix.v2/pool"
	"github.com/mediocregopher/radix.v2/redis"
	"github.com/mediocregopher/radix.v2/util"
)

// A connector for a single redis instance
type Single struct {
	pool *pool.Pool
}

// Generate a connector for the given single redis instance
func NewSingle(addr string, poolsize int, timeout time.Duration) (*Single, error) {
	df := func(network, addr string) (*redis.Client, error) {
		return redis.DialTimeout(network, addr, timeout)
	}
	p, err := pool.NewCustom("tcp", addr, poolsize, df)
	if err != nil {
		return nil, err
	}
	return &Single{pool: p}, nil
}

// Route to a pooled single redis instance, regardless of the key
func (c *Single) Route(key []byte) (util.Cmder, func(), int64, error) {
	client, err := c.pool.Get()
	if err != nil {
		return nil, nil, 0, err
	}
	disconnect := func() {
		c.pool.Put(client)
	}
	return client, disconnect, 0, nil
}

// Dispose the connector
func (c *Single) Shutdown() {
	c.pool.Empty()
}

var _ Connector = (*Single)(nil)
