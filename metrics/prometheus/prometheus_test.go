package prometheus

import (
	"fmt"
	"testing"
	"time"

	"github.com/mediocregopher/radix.v2/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatuslapis/gorecluster.v0/connector"
)

func TestNewClusterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClusterMetrics(reg).(*clusterMetrics)

	timer := m.CommandDuration("GET")
	assert.NotNil(t, timer)
	timer.ObserveDuration()

	m.CommandCompleted("GET", true)
	m.CommandCompleted("GET", false)
	m.CommandCompleted("GET", true)
	m.Redirected("moved")
	m.TopologyRefreshed(true)
	m.NodesKnown(3, 2)
	m.ConnectionOpened()
	m.ConnectionClosed("probe")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("GET", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("GET", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.redirectsTotal.WithLabelValues("moved")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.nodesKnown.WithLabelValues("master")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.nodesKnown.WithLabelValues("replica")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsOpened))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsClosed.WithLabelValues("probe")))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["gorecluster_command_duration_seconds"])
	assert.True(t, names["gorecluster_topology_refreshes_total"])
	assert.True(t, names["gorecluster_connections_closed_total"])
}

func TestDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewClusterMetrics(reg)
	assert.Panics(t, func() { NewClusterMetrics(reg) })
}

// echoConn serves every slot from one master and echoes its address
type echoConn struct {
	host string
	port int
}

func (c *echoConn) Cmd(cmd string, args ...interface{}) *redis.Resp {
	if cmd == "CLUSTER" {
		return redis.NewResp([]interface{}{
			[]interface{}{0, 16383, []interface{}{c.host, c.port}},
		})
	}
	return redis.NewResp(fmt.Sprintf("%s:%d", c.host, c.port))
}

func (c *echoConn) PipeAppend(string, ...interface{}) {}
func (c *echoConn) PipeResp() *redis.Resp          { return redis.NewResp(nil) }
func (c *echoConn) Close() error                   { return nil }

func TestWithCluster(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewClusterMetrics(reg).(*clusterMetrics)

	c, err := connector.Dial(&connector.Options{
		Metrics:  m,
		PoolSize: 2,
		Dial: func(network, addr string, timeout time.Duration) (connector.Conn, error) {
			return &echoConn{host: "127.0.0.1", port: 7000}, nil
		},
	}, "127.0.0.1:7000")
	require.NoError(t, err)

	_, err = c.Cmd([]byte("foo"), "GET", "foo")
	require.NoError(t, err)
	c.Shutdown()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshesTotal.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nodesKnown.WithLabelValues("master")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsOpened))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsClosed.WithLabelValues("shutdown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("GET", "true")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.commandDuration))
}
