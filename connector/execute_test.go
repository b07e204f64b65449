package connector

import (
	"fmt"
	"testing"

	"github.com/beatuslapis/gorecluster.v0/connector/cluster"

	"github.com/cenkalti/backoff/v4"
	"github.com/mediocregopher/radix.v2/redis"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slots of the keys used below, see cluster.Slot
const (
	slotFoo   = 12182
	slotHello = 866
)

func TestDoRoutesToOwner(t *testing.T) {
	f := newFakeNet()
	f.topology = threeMasters()
	c := newTestCluster(t, f, nil)

	for key, expected := range map[string]string{
		"foo":   "127.0.0.1:7002",
		"hello": "127.0.0.1:7000",
		"bar":   "127.0.0.1:7000",
	} {
		resp, err := c.Cmd([]byte(key), "GET", key)
		require.NoError(t, err, key)
		s, err := resp.Str()
		require.NoError(t, err)
		assert.Equal(t, expected, s, key)
	}

	resp, err := c.DoSlot(12000, NewCommand("GET", "x"))
	require.NoError(t, err)
	s, _ := resp.Str()
	assert.Equal(t, "127.0.0.1:7002", s)

	// the connection goes back to its pool
	assert.Equal(t, 1, c.registry.At(2).Idle())
	assert.Equal(t, 1, f.server("127.0.0.1:7002").dials)

	_, err = c.DoSlot(cluster.NumSlots, NewCommand("GET", "x"))
	assert.Error(t, err)
	_, err = c.DoSlot(-1, NewCommand("GET", "x"))
	assert.Error(t, err)
}

func TestDoApplicationError(t *testing.T) {
	f := newFakeNet()
	f.topology = threeMasters()
	c := newTestCluster(t, f, nil)

	f.server("127.0.0.1:7002").handler = func(string, []string) *redis.Resp {
		return redis.NewResp(errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"))
	}
	resp, err := c.Cmd([]byte("foo"), "GET", "foo")
	require.NoError(t, err)
	require.True(t, resp.IsType(redis.AppErr))
	assert.Contains(t, resp.Err.Error(), "WRONGTYPE")
	assert.Equal(t, 1, c.registry.At(2).Idle())
}

func TestDoMovedToKnownNode(t *testing.T) {
	f := newFakeNet()
	f.topology = threeMasters()
	c := newTestCluster(t, f, nil)

	f.server("127.0.0.1:7000").handler = movedOnce(slotHello, "127.0.0.1:7001")
	resp, err := c.Cmd([]byte("hello"), "GET", "hello")
	require.NoError(t, err)
	s, _ := resp.Str()
	assert.Equal(t, "127.0.0.1:7001", s)

	owner, _ := c.Owner(slotHello)
	assert.Equal(t, addr(7001), owner)
	// only the redirected slot moves
	owner, _ = c.Owner(slotHello + 1)
	assert.Equal(t, addr(7000), owner)

	// a known target needs no refresh, the only CLUSTER SLOTS came from the seed
	assert.Equal(t, []string{"CLUSTER SLOTS", "GET hello"}, f.server("127.0.0.1:7000").commands())
	assert.Equal(t, 1, c.registry.At(0).Idle())

	resp, err = c.Cmd([]byte("hello"), "GET", "hello")
	require.NoError(t, err)
	s, _ = resp.Str()
	assert.Equal(t, "127.0.0.1:7001", s)
}

func TestDoMovedToUnknownNode(t *testing.T) {
	f := newFakeNet()
	f.topology = threeMasters()
	c := newTestCluster(t, f, nil)

	f.topology = []interface{}{
		slotRange(0, 5460, "10.0.0.5:7000"),
		slotRange(5461, 10922, "127.0.0.1:7001"),
		slotRange(10923, 16383, "127.0.0.1:7002"),
	}
	f.server("127.0.0.1:7000").handler = alwaysMoved(slotHello, "10.0.0.5:7000")

	resp, err := c.Cmd([]byte("hello"), "GET", "hello")
	require.NoError(t, err)
	s, _ := resp.Str()
	assert.Equal(t, "10.0.0.5:7000", s)

	owner, _ := c.Owner(slotHello)
	assert.Equal(t, cluster.Addr{Host: "10.0.0.5", Port: 7000}, owner)
	assert.Equal(t, 0, c.registry.Find(cluster.Addr{Host: "10.0.0.5", Port: 7000}))
	assert.Equal(t, -1, c.registry.Find(addr(7000)))
	assert.True(t, c.slots.Covered())

	// the connection which learned the new topology is closed with its node
	old := f.server("127.0.0.1:7000")
	assert.Equal(t, old.dials, old.closes)
}

func TestDoMovedToUnlistedNode(t *testing.T) {
	f := newFakeNet()
	f.topology = threeMasters()
	c := newTestCluster(t, f, nil)

	f.server("127.0.0.1:7000").handler = alwaysMoved(slotHello, "10.0.0.9:7000")
	_, err := c.Cmd([]byte("hello"), "GET", "hello")
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestDoAsk(t *testing.T) {
	f := newFakeNet()
	f.topology = threeMasters()
	c := newTestCluster(t, f, nil)

	f.server("127.0.0.1:7000").handler = replies("127.0.0.1:7000",
		redis.NewResp(fmt.Errorf("ASK %d 127.0.0.1:7001", slotHello)))

	resp, err := c.Cmd([]byte("hello"), "GET", "hello")
	require.NoError(t, err)
	s, _ := resp.Str()
	assert.Equal(t, "127.0.0.1:7001", s)
	assert.Equal(t, []string{"ASKING", "GET hello"}, f.server("127.0.0.1:7001").commands())

	// ASK leaves the slot with its owner
	owner, _ := c.Owner(slotHello)
	assert.Equal(t, addr(7000), owner)

	resp, err = c.Cmd([]byte("hello"), "GET", "hello")
	require.NoError(t, err)
	s, _ = resp.Str()
	assert.Equal(t, "127.0.0.1:7000", s)
}

func TestDoTooManyRedirects(t *testing.T) {
	f := newFakeNet()
	f.topology = threeMasters()
	c := newTestCluster(t, f, &Options{MaxRedirects: 2})

	f.server("127.0.0.1:7000").handler = alwaysMoved(slotHello, "127.0.0.1:7001")
	f.server("127.0.0.1:7001").handler = alwaysMoved(slotHello, "127.0.0.1:7000")

	_, err := c.Cmd([]byte("hello"), "GET", "hello")
	require.ErrorIs(t, err, ErrTooManyRedirects)

	// 1 + MaxRedirects attempts in total
	n := countCommands(f.server("127.0.0.1:7000"), "GET hello") +
		countCommands(f.server("127.0.0.1:7001"), "GET hello")
	assert.Equal(t, 3, n)
}

func TestDoInvalidRedirect(t *testing.T) {
	for name, reply := range map[string]string{
		"slot mismatch": "MOVED 1 127.0.0.1:7001",
		"no address":    "MOVED 866",
		"bad slot":      "ASK x 127.0.0.1:7001",
		"bad port":      "MOVED 866 127.0.0.1:http",
	} {
		t.Run(name, func(t *testing.T) {
			f := newFakeNet()
			f.topology = threeMasters()
			c := newTestCluster(t, f, nil)

			f.server("127.0.0.1:7000").handler = replies("127.0.0.1:7000", redis.NewResp(errors.New(reply)))
			_, err := c.Cmd([]byte("hello"), "GET", "hello")
			require.ErrorIs(t, err, cluster.ErrInvalidRedirect)

			owner, _ := c.Owner(slotHello)
			assert.Equal(t, addr(7000), owner)
		})
	}
}

func TestDoRecoversFromDeadNode(t *testing.T) {
	f := newFakeNet()
	f.topology = threeMasters()
	c := newTestCluster(t, f, nil)

	f.server("127.0.0.1:7002").down = true
	f.topology = []interface{}{
		slotRange(0, 5460, "127.0.0.1:7000"),
		slotRange(5461, 10922, "127.0.0.1:7001"),
		slotRange(10923, 16383, "127.0.0.1:7001"),
	}

	// the pooled connection breaks first
	_, err := c.Cmd([]byte("foo"), "GET", "foo")
	require.ErrorIs(t, err, ErrTransport)

	// then the node can't be dialed and the topology is refreshed
	resp, err := c.Cmd([]byte("foo"), "GET", "foo")
	require.NoError(t, err)
	s, _ := resp.Str()
	assert.Equal(t, "127.0.0.1:7001", s)

	assert.Equal(t, 2, c.registry.Len())
	assert.Equal(t, -1, c.registry.Find(addr(7002)))
	assert.True(t, c.slots.Covered())
}

func TestDoStalePooledConnection(t *testing.T) {
	f := newFakeNet()
	f.topology = threeMasters()
	c := newTestCluster(t, f, nil)

	s := f.server("127.0.0.1:7002")
	conns := idleConns(c, s.addr)
	require.Len(t, conns, 1)
	conns[0].bad = true
	dials := s.dials

	// the command is not replayed on another connection
	_, err := c.Cmd([]byte("foo"), "GET", "foo")
	require.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 1, countCommands(s, "GET foo"))
	assert.True(t, conns[0].closed)
	assert.Equal(t, dials, s.dials)

	resp, err := c.Cmd([]byte("foo"), "GET", "foo")
	require.NoError(t, err)
	str, _ := resp.Str()
	assert.Equal(t, s.addr, str)
	assert.Equal(t, dials+1, s.dials)
	assert.Len(t, idleConns(c, s.addr), 1)
}

func TestDoSlotOutOfRange(t *testing.T) {
	f := newFakeNet()
	f.topology = threeMasters()
	c := newTestCluster(t, f, nil)

	for _, slot := range []int{-1, cluster.NumSlots} {
		_, err := c.DoSlot(slot, NewCommand("GET", "x"))
		assert.ErrorIs(t, err, ErrInvalidSlot, slot)
	}
}

func TestDoClusterDown(t *testing.T) {
	f := newFakeNet()
	f.topology = threeMasters()
	c := newTestCluster(t, f, nil)

	for _, s := range f.servers {
		s.down = true
	}
	for i := 0; i < 3; i++ {
		for _, pc := range idleConns(c, c.registry.At(i).addr) {
			pc.bad = true
		}
	}

	_, err := c.Cmd([]byte("foo"), "GET", "foo")
	require.ErrorIs(t, err, ErrTransport)
	_, err = c.Cmd([]byte("foo"), "GET", "foo")
	require.ErrorIs(t, err, ErrClusterDown)
}

func TestDoTryAgain(t *testing.T) {
	f := newFakeNet()
	f.topology = threeMasters()
	c := newTestCluster(t, f, &Options{
		TryAgainBackoff: func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	})

	tryAgain := redis.NewResp(errors.New("TRYAGAIN Multiple keys request during rehashing of slot"))
	f.server("127.0.0.1:7002").handler = replies("127.0.0.1:7002", tryAgain, tryAgain)

	resp, err := c.Cmd([]byte("foo"), "MGET", "foo", "{foo}2")
	require.NoError(t, err)
	s, _ := resp.Str()
	assert.Equal(t, "127.0.0.1:7002", s)
	assert.Len(t, f.server("127.0.0.1:7002").commands(), 3)
}

func TestDoTryAgainGivesUp(t *testing.T) {
	f := newFakeNet()
	f.topology = threeMasters()
	c := newTestCluster(t, f, &Options{
		TryAgainBackoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1)
		},
	})

	f.server("127.0.0.1:7002").handler = func(string, []string) *redis.Resp {
		return redis.NewResp(errors.New("TRYAGAIN Multiple keys request during rehashing of slot"))
	}
	resp, err := c.Cmd([]byte("foo"), "GET", "foo")
	require.NoError(t, err)
	require.Error(t, resp.Err)
	assert.Contains(t, resp.Err.Error(), "TRYAGAIN")
	assert.Len(t, f.server("127.0.0.1:7002").commands(), 2)
}

func countCommands(s *fakeServer, cmd string) int {
	n := 0
	for _, c := range s.commands() {
		if c == cmd {
			n++
		}
	}
	return n
}
