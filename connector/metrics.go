package connector

import "github.com/beatuslapis/gorecluster.v0/metrics"

// ClusterMetrics defines the instrumentation hooks of a Cluster.
// Implementations don't need to be safe for concurrent use beyond what the
// Cluster itself guarantees, but the Prometheus one is.
type ClusterMetrics interface {
	// Command execution
	CommandDuration(cmd string) metrics.Timer
	CommandCompleted(cmd string, success bool)

	// Redirections followed: moved, ask, tryagain
	Redirected(kind string)

	// Topology
	TopologyRefreshed(success bool)
	NodesKnown(masters, replicas int)

	// Connections. Close reasons: probe, transport, surplus, removed, shutdown
	ConnectionOpened()
	ConnectionClosed(reason string)
}

// nopClusterMetrics is a no-op implementation of ClusterMetrics.
type nopClusterMetrics struct{}

func (nopClusterMetrics) CommandDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopClusterMetrics) CommandCompleted(string, bool)        {}
func (nopClusterMetrics) Redirected(string)                    {}
func (nopClusterMetrics) TopologyRefreshed(bool)               {}
func (nopClusterMetrics) NodesKnown(int, int)                  {}
func (nopClusterMetrics) ConnectionOpened()                    {}
func (nopClusterMetrics) ConnectionClosed(string)              {}

// NopClusterMetrics returns a no-op ClusterMetrics implementation.
func NopClusterMetrics() ClusterMetrics { return nopClusterMetrics{} }
