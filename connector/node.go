package connector

import (
	"time"

	"github.com/beatuslapis/gorecluster.v0/connector/cluster"
)

// Node represents a member of a redis cluster.
// Its identity is the address; ID is only its current position in the registry.
type Node struct {
	ID   int
	Addr cluster.Addr

	addr   string
	pool   ConnPool
	master bool
	since  int64
	closed bool
}

func newNode(addr cluster.Addr) *Node {
	return &Node{
		Addr: addr,
		addr: addr.String(),
	}
}

// Return whether the node served a slot range in the last topology
func (n *Node) IsMaster() bool {
	return n.master
}

// Idle returns the number of pooled connections
func (n *Node) Idle() int {
	return n.pool.Len()
}

// Since returns the time in micros the node became a master, zero for replicas
func (n *Node) Since() int64 {
	return n.since
}

// Set the role of a node, adjusting its valid timestamp when promoted
func (n *Node) setMaster(master bool) {
	if master && !n.master {
		n.since = time.Now().UnixNano() / 1000
	}
	if !master {
		n.since = 0
	}
	n.master = master
}

// NodeInfo is a snapshot of a node for diagnostics
type NodeInfo struct {
	ID     int
	Addr   string
	Master bool
	Idle   int
}

func (n *Node) info() NodeInfo {
	return NodeInfo{
		ID:     n.ID,
		Addr:   n.addr,
		Master: n.master,
		Idle:   n.pool.Len(),
	}
}
