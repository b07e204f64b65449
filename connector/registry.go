package connector

import "github.com/beatuslapis/gorecluster.v0/connector/cluster"

// Capacity of a node registry
const MaxNodes = 256

// Registry is a bounded collection of nodes.
// After a refresh, positions [0, masters) hold masters in topology order,
// followed by replicas in the order their masters were processed.
// A node's ID always equals its position.
type Registry struct {
	nodes  [MaxNodes]*Node
	byAddr map[cluster.Addr]int
	count  int
}

// Len returns the number of live nodes
func (r *Registry) Len() int {
	return r.count
}

// At returns the node at a position, or nil
func (r *Registry) At(i int) *Node {
	if i < 0 || i >= MaxNodes {
		return nil
	}
	return r.nodes[i]
}

// Find returns the position of the node with the address, or -1
func (r *Registry) Find(addr cluster.Addr) int {
	if i, ok := r.byAddr[addr]; ok {
		return i
	}
	return -1
}

func (r *Registry) set(i int, n *Node) {
	if r.byAddr == nil {
		r.byAddr = make(map[cluster.Addr]int)
	}
	r.nodes[i] = n
	if n != nil {
		n.ID = i
		r.byAddr[n.Addr] = i
	}
}

// remove clears a position and returns the node which was there
func (r *Registry) remove(i int) *Node {
	n := r.nodes[i]
	if n != nil {
		delete(r.byAddr, n.Addr)
		r.nodes[i] = nil
	}
	return n
}

// swap exchanges two positions keeping IDs in sync
func (r *Registry) swap(i, j int) {
	ni, nj := r.nodes[i], r.nodes[j]
	r.set(i, nj)
	r.set(j, ni)
}

// free returns the first empty position at or after from, or -1
func (r *Registry) free(from int) int {
	for i := from; i < MaxNodes; i++ {
		if r.nodes[i] == nil {
			return i
		}
	}
	return -1
}

// SlotMap maps every hash slot to the node serving it.
// It never owns the nodes, the registry does.
type SlotMap [cluster.NumSlots]*Node

// Covered reports whether every slot is served by a live node
func (m *SlotMap) Covered() bool {
	for _, n := range m {
		if n == nil || n.closed {
			return false
		}
	}
	return true
}
