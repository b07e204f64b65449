package connector

import (
	. "github.com/beatuslapis/gorecluster.v0/connector/cluster"

	"github.com/mediocregopher/radix.v2/redis"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// reconcile brings the registry, the slot map and the pools in agreement
// with a topology snapshot. Nodes are reused by address, so connections
// to members which stay in the cluster survive a refresh.
func (c *Cluster) reconcile(shards []Shard) error {
	masters := 0
	seen := make(map[Addr]bool, len(shards))
	for _, s := range shards {
		if !seen[s.Master] {
			seen[s.Master] = true
			masters++
		}
	}
	if masters > MaxNodes {
		return ErrTooManyNodes
	}

	var assigned [NumSlots]bool
	placed := make(map[Addr]*Node, len(shards))
	index, cursor := 0, masters
	for _, s := range shards {
		// a master may serve several ranges, it keeps its first position
		n, ok := placed[s.Master]
		if !ok {
			n = c.place(index, s.Master)
			n.setMaster(true)
			if err := c.refill(n, c.poolSize); err != nil {
				return err
			}
			placed[s.Master] = n
			index++
		}
		for k := s.Start; k <= s.End; k++ {
			c.slots[k] = n
			assigned[k] = true
		}
		c.log.Debug("master",
			zap.Int("id", n.ID),
			zap.Int("start", s.Start),
			zap.Int("end", s.End),
			zap.String("addr", n.addr))

		for _, ra := range s.Replicas {
			if _, ok := placed[ra]; ok {
				continue
			}
			if cursor >= MaxNodes {
				return ErrTooManyNodes
			}
			rn := c.place(cursor, ra)
			rn.setMaster(false)
			if err := c.refill(rn, 1); err != nil {
				return err
			}
			placed[ra] = rn
			c.log.Debug("replica", zap.Int("id", rn.ID), zap.String("addr", rn.addr))
			cursor++
		}
	}

	// nodes left over from the previous topology
	for i := cursor; i < MaxNodes; i++ {
		if n := c.registry.remove(i); n != nil {
			c.log.Info("node removed", zap.String("addr", n.addr))
			c.destroy(n, "removed")
		}
	}
	c.registry.count = cursor

	// ranges the snapshot no longer covers
	for k := range c.slots {
		if !assigned[k] {
			c.slots[k] = nil
		}
	}

	c.metrics.NodesKnown(masters, cursor-masters)
	return nil
}

// place puts the node with the address at position i.
// An existing node is swapped into place; otherwise the current occupant
// is moved to a free position, or destroyed if the registry is full,
// and a new node is created.
func (c *Cluster) place(i int, addr Addr) *Node {
	r := &c.registry
	if j := r.Find(addr); j >= 0 {
		if j != i {
			r.swap(i, j)
		}
		return r.At(i)
	}

	if old := r.At(i); old != nil {
		if k := r.free(r.count); k >= 0 {
			r.swap(i, k)
		} else {
			r.remove(i)
			c.destroy(old, "removed")
		}
	}

	n := newNode(addr)
	r.set(i, n)
	c.log.Debug("node added", zap.Int("id", i), zap.String("addr", n.addr))
	return n
}

// refill probes every idle connection of a node, keeps at most target
// healthy ones, then opens new connections until target is reached.
func (c *Cluster) refill(n *Node, target int) error {
	healthy := 0
	for k, idle := 0, n.pool.Len(); k < idle; k++ {
		pc, ok := n.pool.Pop()
		if !ok {
			break
		}
		if err := c.prober.Probe(pc); err != nil {
			c.log.Warn("probe failed", zap.String("addr", n.addr), zap.Error(err))
			c.discard(pc, "probe")
			continue
		}
		if healthy >= target {
			c.discard(pc, "surplus")
			continue
		}
		n.pool.Push(pc)
		healthy++
	}

	for n.pool.Len() < target {
		pc, err := c.open(n)
		if err != nil {
			return err
		}
		n.pool.Push(pc)
	}
	return nil
}

// refreshWith fetches a topology snapshot through a connection and applies it.
// The connection is left checked out.
func (c *Cluster) refreshWith(pc *PooledConn) error {
	resp := pc.Cmd("CLUSTER", "SLOTS")
	if resp.IsType(redis.IOErr) {
		c.metrics.TopologyRefreshed(false)
		return errors.Wrapf(ErrTransport, "cluster slots on %s: %v", pc.node.addr, resp.Err)
	}
	shards, err := ParseSlots(resp)
	if err == nil {
		err = c.reconcile(shards)
	}
	c.metrics.TopologyRefreshed(err == nil)
	if err != nil {
		return errors.Wrapf(err, "refresh from %s", pc.node.addr)
	}
	c.log.Info("topology refreshed", zap.String("from", pc.node.addr), zap.Int("nodes", c.registry.Len()))
	return nil
}

// recover refreshes the topology through any node other than skip.
// Nodes which can't be reached are passed over.
func (c *Cluster) recover(skip *Node) error {
	for i := 0; i < c.registry.Len(); i++ {
		n := c.registry.At(i)
		if n == nil || n == skip {
			continue
		}
		pc, err := c.acquire(n)
		if err != nil {
			c.log.Warn("refresh candidate unreachable", zap.String("addr", n.addr), zap.Error(err))
			continue
		}
		if err := c.refreshWith(pc); err != nil {
			c.discard(pc, "transport")
			if errors.Is(err, ErrTransport) {
				continue
			}
			return err
		}
		c.release(pc)
		return nil
	}
	return ErrClusterDown
}

// acquire takes an idle connection of a node, or opens a new one
func (c *Cluster) acquire(n *Node) (*PooledConn, error) {
	if pc, ok := n.pool.Pop(); ok {
		return pc, nil
	}
	return c.open(n)
}

// open makes a new connection to a node
func (c *Cluster) open(n *Node) (*PooledConn, error) {
	conn, err := c.dial("tcp", n.addr, c.timeout)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "dial %s: %v", n.addr, err)
	}
	c.metrics.ConnectionOpened()
	return &PooledConn{Conn: conn, node: n}, nil
}

// release returns a connection to the pool of its node.
// Connections of destroyed nodes are closed instead.
func (c *Cluster) release(pc *PooledConn) {
	if pc.node.closed {
		c.discard(pc, "removed")
		return
	}
	pc.node.pool.Push(pc)
}

func (c *Cluster) discard(pc *PooledConn, reason string) {
	pc.Close()
	c.metrics.ConnectionClosed(reason)
}

// destroy closes every idle connection of a node and marks it closed
func (c *Cluster) destroy(n *Node, reason string) {
	n.closed = true
	for {
		pc, ok := n.pool.Pop()
		if !ok {
			return
		}
		c.discard(pc, reason)
	}
}
