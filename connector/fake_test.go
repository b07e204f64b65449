package connector

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mediocregopher/radix.v2/redis"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeServer is one member of a fakeNet
type fakeServer struct {
	addr string
	down bool

	// replies to commands other than PING, CLUSTER and ASKING;
	// nil echoes the server address
	handler func(cmd string, args []string) *redis.Resp

	dials  int
	closes int
	log    []string
}

func (s *fakeServer) commands() []string {
	return s.log
}

// fakeNet is an in-process redis cluster answering CLUSTER SLOTS with topology
type fakeNet struct {
	servers  map[string]*fakeServer
	topology []interface{}
}

func newFakeNet() *fakeNet {
	return &fakeNet{servers: make(map[string]*fakeServer)}
}

func (f *fakeNet) server(addr string) *fakeServer {
	s, ok := f.servers[addr]
	if !ok {
		s = &fakeServer{addr: addr}
		f.servers[addr] = s
	}
	return s
}

func (f *fakeNet) dial(network, addr string, timeout time.Duration) (Conn, error) {
	s := f.server(addr)
	if s.down {
		return nil, fmt.Errorf("dial tcp %s: connection refused", addr)
	}
	s.dials++
	return &fakeConn{net: f, server: s}, nil
}

// slotRange builds a CLUSTER SLOTS element; nodes are "host:port" strings,
// the first one being the master
func slotRange(start, end int, nodes ...string) []interface{} {
	elem := []interface{}{start, end}
	for _, n := range nodes {
		i := strings.LastIndexByte(n, ':')
		var port int
		fmt.Sscanf(n[i+1:], "%d", &port)
		elem = append(elem, []interface{}{n[:i], port, "id-" + n})
	}
	return elem
}

func threeMasters() []interface{} {
	return []interface{}{
		slotRange(0, 5460, "127.0.0.1:7000"),
		slotRange(5461, 10922, "127.0.0.1:7001"),
		slotRange(10923, 16383, "127.0.0.1:7002"),
	}
}

func ioErr() *redis.Resp {
	return redis.NewRespReader(bytes.NewReader(nil)).Read()
}

type fakeConn struct {
	net    *fakeNet
	server *fakeServer
	closed bool
	bad    bool
	piped  [][]interface{}
}

func (c *fakeConn) Cmd(cmd string, args ...interface{}) *redis.Resp {
	sargs := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case []byte:
			sargs[i] = string(v)
		default:
			sargs[i] = fmt.Sprint(v)
		}
	}
	c.server.log = append(c.server.log, strings.TrimSpace(cmd+" "+strings.Join(sargs, " ")))

	if c.closed || c.bad || c.server.down {
		return ioErr()
	}
	switch strings.ToUpper(cmd) {
	case "PING":
		return redis.NewRespSimple("PONG")
	case "ASKING":
		return redis.NewRespSimple("OK")
	case "CLUSTER":
		if len(sargs) == 1 && strings.ToUpper(sargs[0]) == "SLOTS" {
			if c.net.topology == nil {
				return redis.NewResp(errors.New("ERR This instance has cluster support disabled"))
			}
			return redis.NewResp(c.net.topology)
		}
	}
	if c.server.handler != nil {
		return c.server.handler(cmd, sargs)
	}
	return redis.NewResp(c.server.addr)
}

func (c *fakeConn) PipeAppend(cmd string, args ...interface{}) {
	c.piped = append(c.piped, append([]interface{}{cmd}, args...))
}

func (c *fakeConn) PipeResp() *redis.Resp {
	if len(c.piped) == 0 {
		return redis.NewResp(errors.New("pipeline empty"))
	}
	next := c.piped[0]
	c.piped = c.piped[1:]
	return c.Cmd(next[0].(string), next[1:]...)
}

func (c *fakeConn) Close() error {
	if !c.closed {
		c.closed = true
		c.server.closes++
	}
	return nil
}

// newTestCluster connects a cluster to the fake network through the first server
func newTestCluster(t *testing.T, f *fakeNet, opts *Options) *Cluster {
	t.Helper()
	if opts == nil {
		opts = &Options{}
	}
	opts.Dial = f.dial
	opts.Logger = zaptest.NewLogger(t)

	c, err := Dial(opts, "127.0.0.1:7000")
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return c
}

// idleConns returns the fake connections idle in the pool of the node with addr
func idleConns(c *Cluster, addr string) []*fakeConn {
	for i := 0; i < c.registry.Len(); i++ {
		n := c.registry.At(i)
		if n == nil || n.addr != addr {
			continue
		}
		var conns []*fakeConn
		for k := 0; k < n.pool.Len(); k++ {
			pc := n.pool.buf[(n.pool.head+k)%len(n.pool.buf)]
			conns = append(conns, pc.Conn.(*fakeConn))
		}
		return conns
	}
	return nil
}

// movedOnce returns a handler replying MOVED the first time it is called
func movedOnce(slot int, to string) func(string, []string) *redis.Resp {
	sent := false
	return func(cmd string, args []string) *redis.Resp {
		if !sent {
			sent = true
			return redis.NewResp(fmt.Errorf("MOVED %d %s", slot, to))
		}
		return redis.NewResp("late")
	}
}

// alwaysMoved returns a handler replying MOVED to every command
func alwaysMoved(slot int, to string) func(string, []string) *redis.Resp {
	return func(string, []string) *redis.Resp {
		return redis.NewResp(fmt.Errorf("MOVED %d %s", slot, to))
	}
}

// replies returns a handler going through the given replies, then echoing the server
func replies(addr string, resps ...*redis.Resp) func(string, []string) *redis.Resp {
	return func(string, []string) *redis.Resp {
		if len(resps) == 0 {
			return redis.NewResp(addr)
		}
		r := resps[0]
		resps = resps[1:]
		return r
	}
}
