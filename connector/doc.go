// Package connector is a collection of Connector implementations for redis.
//
// The package includes following implementations
//
// single - A connector for a single redis instance with the radix pool.
// Just a simple wrapper.
//
// cluster - A connector for a redis cluster.
// Keys are hashed into one of 16384 slots with crc16, and every slot is
// served by a master. The topology is read from CLUSTER SLOTS of a seed node
// and kept in a registry of nodes, each owning a FIFO pool of connections.
// MOVED and ASK redirections are followed transparently; MOVED also updates
// the slot map so the next command goes straight to the new owner.
// When a node can't be reached, the topology is refreshed through another one.
// There is no background activity: every refresh is triggered by a command.
//
//	c, err := connector.Dial(&connector.Options{PoolSize: 2}, "10.0.0.1:7000", "10.0.0.2:7000")
//	if err != nil {
//		return err
//	}
//	defer c.Shutdown()
//
//	resp, err := c.Cmd([]byte("user:1"), "GET", "user:1")
//
package connector
