package connector

import (
	"testing"

	"github.com/beatuslapis/gorecluster.v0/connector/cluster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(port int) cluster.Addr {
	return cluster.Addr{Host: "127.0.0.1", Port: port}
}

func TestRegistrySetFindSwap(t *testing.T) {
	var r Registry
	a, b := newNode(addr(7000)), newNode(addr(7001))
	r.set(0, a)
	r.set(3, b)

	assert.Equal(t, 0, r.Find(addr(7000)))
	assert.Equal(t, 3, r.Find(addr(7001)))
	assert.Equal(t, -1, r.Find(addr(7002)))
	assert.Equal(t, 3, b.ID)

	r.swap(0, 3)
	assert.Same(t, b, r.At(0))
	assert.Same(t, a, r.At(3))
	assert.Equal(t, 0, b.ID)
	assert.Equal(t, 3, a.ID)
	assert.Equal(t, 3, r.Find(addr(7000)))

	// swapping with an empty position moves the node
	r.swap(3, 5)
	assert.Nil(t, r.At(3))
	assert.Same(t, a, r.At(5))
	assert.Equal(t, 5, a.ID)
	assert.Equal(t, 5, r.Find(addr(7000)))
}

func TestRegistryRemoveAndFree(t *testing.T) {
	var r Registry
	r.set(0, newNode(addr(7000)))
	r.set(1, newNode(addr(7001)))

	assert.Equal(t, 2, r.free(0))
	assert.Equal(t, 2, r.free(1))

	n := r.remove(0)
	require.NotNil(t, n)
	assert.Equal(t, -1, r.Find(addr(7000)))
	assert.Equal(t, 0, r.free(0))
	assert.Nil(t, r.remove(0))

	assert.Nil(t, r.At(-1))
	assert.Nil(t, r.At(MaxNodes))
}

func TestRegistryFull(t *testing.T) {
	var r Registry
	for i := 0; i < MaxNodes; i++ {
		r.set(i, newNode(addr(10000+i)))
	}
	assert.Equal(t, -1, r.free(0))
}

func TestSlotMapCovered(t *testing.T) {
	var m SlotMap
	assert.False(t, m.Covered())

	n := newNode(addr(7000))
	for i := range m {
		m[i] = n
	}
	assert.True(t, m.Covered())

	n.closed = true
	assert.False(t, m.Covered())
}
