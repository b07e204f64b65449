package connector

// A connection owned by a node.
// It is either idle in the node's pool or checked out by exactly one caller.
type PooledConn struct {
	Conn
	node *Node
}

// Node returns the node the connection was opened against
func (c *PooledConn) Node() *Node {
	return c.node
}

// ConnPool is a FIFO queue of idle connections backed by a ring buffer.
// It never blocks and never bounds its size: the target size is enforced
// only when a topology refresh checks the pool.
type ConnPool struct {
	buf  []*PooledConn
	head int
	n    int
}

// Len returns the number of idle connections
func (p *ConnPool) Len() int {
	return p.n
}

// Push puts a connection at the tail
func (p *ConnPool) Push(c *PooledConn) {
	if p.n == len(p.buf) {
		p.grow()
	}
	p.buf[(p.head+p.n)%len(p.buf)] = c
	p.n++
}

// Pop takes the connection at the head. It returns false when the pool is empty.
func (p *ConnPool) Pop() (*PooledConn, bool) {
	if p.n == 0 {
		return nil, false
	}
	c := p.buf[p.head]
	p.buf[p.head] = nil
	p.head = (p.head + 1) % len(p.buf)
	p.n--
	return c, true
}

func (p *ConnPool) grow() {
	size := 2 * len(p.buf)
	if size == 0 {
		size = 4
	}
	buf := make([]*PooledConn, size)
	for i := 0; i < p.n; i++ {
		buf[i] = p.buf[(p.head+i)%len(p.buf)]
	}
	p.buf = buf
	p.head = 0
}
