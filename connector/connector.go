package connector

import (
	"time"

	"github.com/mediocregopher/radix.v2/redis"
	"github.com/mediocregopher/radix.v2/util"
)

// Connector interface to get a redis client for a key
type Connector interface {
	// Route takes a key of []byte form.
	// It returns a client for the key with its disconnect function,
	// also its validity serial which could be used
	// for the cache invalidation, possibly consistent, checks.
	Route([]byte) (util.Cmder, func(), int64, error)

	// Dispose the connector
	Shutdown()
}

// Conn is a transport connection to a single redis node.
// *redis.Client satisfies it.
type Conn interface {
	Cmd(cmd string, args ...interface{}) *redis.Resp
	PipeAppend(cmd string, args ...interface{})
	PipeResp() *redis.Resp
	Close() error
}

// Type of a function opening a connection to a node
type DialFunc func(network, addr string, timeout time.Duration) (Conn, error)

// DialTimeout opens a radix client. The timeout also applies to reads and writes.
func DialTimeout(network, addr string, timeout time.Duration) (Conn, error) {
	client, err := redis.DialTimeout(network, addr, timeout)
	if err != nil {
		return nil, err
	}
	return client, nil
}

var _ Conn = (*redis.Client)(nil)
