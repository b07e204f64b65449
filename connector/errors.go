package connector

import (
	"github.com/pkg/errors"
)

// Error definitions.
// Malformed topologies and redirections are reported with
// cluster.ErrInvalidSnapshot and cluster.ErrInvalidRedirect.
var (
	ErrNoSeed           = errors.New("no seed node returned a usable topology")
	ErrTransport        = errors.New("transport failure")
	ErrNodeNotFound     = errors.New("redirection target is not part of the cluster")
	ErrClusterDown      = errors.New("no node is reachable for the slot")
	ErrSlotUnassigned   = errors.New("the slot is not served by any node")
	ErrTooManyRedirects = errors.New("too many redirections")
	ErrTooManyNodes     = errors.New("the topology has more nodes than the registry can hold")
	ErrShutdown         = errors.New("the connector is shut down")
	ErrInvalidSlot      = errors.New("slot out of range")
)
