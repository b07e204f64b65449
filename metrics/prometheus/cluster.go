package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/beatuslapis/gorecluster.v0/connector"
	"github.com/beatuslapis/gorecluster.v0/metrics"
)

// clusterMetrics implements connector.ClusterMetrics using Prometheus.
type clusterMetrics struct {
	commandDuration   *prometheus.HistogramVec
	commandsTotal     *prometheus.CounterVec
	redirectsTotal    *prometheus.CounterVec
	refreshesTotal    *prometheus.CounterVec
	nodesKnown        *prometheus.GaugeVec
	connectionsOpened prometheus.Counter
	connectionsClosed *prometheus.CounterVec
}

// NewClusterMetrics creates a Prometheus implementation of connector.ClusterMetrics
// and registers its collectors.
func NewClusterMetrics(reg prometheus.Registerer) connector.ClusterMetrics {
	m := &clusterMetrics{
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gorecluster_command_duration_seconds",
			Help:    "Command latency in seconds, redirections included",
			Buckets: defaultBuckets,
		}, []string{"command"}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gorecluster_commands_total",
			Help: "Total number of commands executed",
		}, []string{"command", "success"}),

		redirectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gorecluster_redirects_total",
			Help: "Total number of redirections followed",
		}, []string{"kind"}),

		refreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gorecluster_topology_refreshes_total",
			Help: "Total number of topology refreshes",
		}, []string{"success"}),

		nodesKnown: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gorecluster_nodes",
			Help: "Number of nodes in the registry",
		}, []string{"role"}),

		connectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gorecluster_connections_opened_total",
			Help: "Total number of connections opened",
		}),

		connectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gorecluster_connections_closed_total",
			Help: "Total number of connections closed",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.commandDuration,
		m.commandsTotal,
		m.redirectsTotal,
		m.refreshesTotal,
		m.nodesKnown,
		m.connectionsOpened,
		m.connectionsClosed,
	)

	return m
}

func (m *clusterMetrics) CommandDuration(cmd string) metrics.Timer {
	return newTimer(m.commandDuration.WithLabelValues(cmd))
}

func (m *clusterMetrics) CommandCompleted(cmd string, success bool) {
	m.commandsTotal.WithLabelValues(cmd, boolToStr(success)).Inc()
}

func (m *clusterMetrics) Redirected(kind string) {
	m.redirectsTotal.WithLabelValues(kind).Inc()
}

func (m *clusterMetrics) TopologyRefreshed(success bool) {
	m.refreshesTotal.WithLabelValues(boolToStr(success)).Inc()
}

func (m *clusterMetrics) NodesKnown(masters, replicas int) {
	m.nodesKnown.WithLabelValues("master").Set(float64(masters))
	m.nodesKnown.WithLabelValues("replica").Set(float64(replicas))
}

func (m *clusterMetrics) ConnectionOpened() {
	m.connectionsOpened.Inc()
}

func (m *clusterMetrics) ConnectionClosed(reason string) {
	m.connectionsClosed.WithLabelValues(reason).Inc()
}

var _ connector.ClusterMetrics = (*clusterMetrics)(nil)
