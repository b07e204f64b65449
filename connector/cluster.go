package connector

import (
	"time"

	. "github.com/beatuslapis/gorecluster.v0/connector/cluster"

	"github.com/beatuslapis/gorecluster.v0/checker"

	"github.com/cenkalti/backoff/v4"
	"github.com/mediocregopher/radix.v2/redis"
	"github.com/mediocregopher/radix.v2/util"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// A connector with a redis cluster.
// It keeps the slot to node mapping learned from CLUSTER SLOTS up to date
// by following MOVED redirections and by refreshing the topology
// when a node can't be reached.
//
// A Cluster is not safe for concurrent use. Callers either serialize access
// or run a Cluster per worker.
type Cluster struct {
	registry Registry
	slots    SlotMap

	timeout      time.Duration
	poolSize     int
	maxRedirects int
	hashfn       HashFunc

	dial     DialFunc
	prober   checker.Prober
	tryAgain func() backoff.BackOff

	log     *zap.Logger
	metrics ClusterMetrics

	closed bool
}

// Generate a cluster connector with given options.
// No connection is made until Connect is called.
func NewCluster(options *Options) *Cluster {
	opts := options.withDefaults()

	c := &Cluster{
		timeout:      opts.Timeout,
		poolSize:     opts.PoolSize,
		maxRedirects: opts.MaxRedirects,
		hashfn:       Slot,
		dial:         opts.Dial,
		prober:       opts.Prober,
		tryAgain:     opts.TryAgainBackoff,
		log:          opts.Logger,
		metrics:      opts.Metrics,
	}
	if opts.HashTags {
		c.hashfn = TaggedSlot
	}
	return c
}

// Dial creates a cluster connector and connects it with the given seeds.
func Dial(options *Options, seeds ...string) (*Cluster, error) {
	c := NewCluster(options)
	if err := c.Connect(seeds...); err != nil {
		c.Shutdown()
		return nil, err
	}
	return c, nil
}

// Connect tries the seed addresses in order until one of them answers
// CLUSTER SLOTS with a valid topology, then builds the registry and
// the slot map from it.
func (c *Cluster) Connect(seeds ...string) error {
	if c.closed {
		return ErrShutdown
	}

	lastErr := errors.New("empty seed list")
	for _, seed := range seeds {
		shards, err := c.readSeed(seed)
		if err != nil {
			c.log.Warn("seed failed", zap.String("seed", seed), zap.Error(err))
			lastErr = err
			continue
		}

		if err := c.reconcile(shards); err != nil {
			c.metrics.TopologyRefreshed(false)
			return errors.Wrapf(err, "build topology from %s", seed)
		}
		c.metrics.TopologyRefreshed(true)
		c.log.Info("cluster connected",
			zap.String("seed", seed),
			zap.Int("shards", len(shards)),
			zap.Int("nodes", c.registry.Len()))
		return nil
	}

	return errors.Wrap(ErrNoSeed, lastErr.Error())
}

// Read the topology from a seed through a temporary connection
func (c *Cluster) readSeed(seed string) ([]Shard, error) {
	conn, err := c.dial("tcp", seed, c.timeout)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "dial %s: %v", seed, err)
	}
	defer conn.Close()

	resp := conn.Cmd("CLUSTER", "SLOTS")
	if resp.IsType(redis.IOErr) {
		return nil, errors.Wrapf(ErrTransport, "cluster slots on %s: %v", seed, resp.Err)
	}
	return ParseSlots(resp)
}

// Dispose the connector, closing every node and its connections.
func (c *Cluster) Shutdown() {
	if c.closed {
		return
	}
	c.closed = true

	for i := 0; i < MaxNodes; i++ {
		if n := c.registry.remove(i); n != nil {
			c.destroy(n, "shutdown")
		}
	}
	c.registry.count = 0
	c.slots = SlotMap{}
}

// Slot returns the hash slot of a key with the configured hash function
func (c *Cluster) Slot(key []byte) int {
	return c.hashfn(key)
}

// Owner returns the address of the node serving a slot
func (c *Cluster) Owner(slot int) (Addr, bool) {
	if slot < 0 || slot >= NumSlots || c.slots[slot] == nil {
		return Addr{}, false
	}
	return c.slots[slot].Addr, true
}

// Nodes returns a snapshot of the registry in position order
func (c *Cluster) Nodes() []NodeInfo {
	infos := make([]NodeInfo, 0, c.registry.Len())
	for i := 0; i < c.registry.Len(); i++ {
		if n := c.registry.At(i); n != nil {
			infos = append(infos, n.info())
		}
	}
	return infos
}

// Route returns a client bound to the slot of the key.
// Every command sent through it is executed by the cluster, following redirections.
// The serial is the time the serving node became a master.
func (c *Cluster) Route(key []byte) (util.Cmder, func(), int64, error) {
	if c.closed {
		return nil, nil, 0, ErrShutdown
	}
	slot := c.Slot(key)
	var serial int64
	if n := c.slots[slot]; n != nil {
		serial = n.Since()
	}
	return &slotClient{cluster: c, slot: slot}, func() {}, serial, nil
}

// A client sending every command to the node serving a slot
type slotClient struct {
	cluster *Cluster
	slot    int
}

func (s *slotClient) Cmd(cmd string, args ...interface{}) *redis.Resp {
	resp, err := s.cluster.DoSlot(s.slot, NewCommand(cmd, args...))
	if err != nil {
		return redis.NewResp(err)
	}
	return resp
}

var _ Connector = (*Cluster)(nil)
