package zkcluster

import (
	"encoding/json"
	"path"
	"strconv"
	"time"

	"github.com/beatuslapis/gorecluster.v0/connector"

	"github.com/pkg/errors"
	"github.com/samuel/go-zookeeper/zk"
	"go.uber.org/zap"
)

const (
	ZK_ROOT   = "/goreclusters"
	DEF_FLAGS = int32(0)
)

var (
	DEF_ACL = zk.WorldACL(zk.PermAll)

	ErrClusterExists   = errors.New("the cluster is already registered")
	ErrClusterNotFound = errors.New("the cluster is not registered")
	ErrInvalidInfo     = errors.New("invalid cluster information")
)

// Client options stored on the zookeeper.
// Zero fields leave the local options untouched.
type ZKClusterOptions struct {
	TimeoutMillis int64 `json:"timeout_ms,omitempty"`
	PoolSize      int   `json:"pool_size,omitempty"`
	MaxRedirects  int   `json:"max_redirects,omitempty"`
	HashTags      bool  `json:"hash_tags,omitempty"`
}

// Apply copies the stored options over connector options
func (o ZKClusterOptions) Apply(opts *connector.Options) {
	if o.TimeoutMillis > 0 {
		opts.Timeout = time.Duration(o.TimeoutMillis) * time.Millisecond
	}
	if o.PoolSize > 0 {
		opts.PoolSize = o.PoolSize
	}
	if o.MaxRedirects > 0 {
		opts.MaxRedirects = o.MaxRedirects
	}
	if o.HashTags {
		opts.HashTags = true
	}
}

// Cluster information stored on the zookeeper.
// Version is the time in micros of the last registration or update.
type ZKClusterInfo struct {
	Name    string
	Version int64
	Options ZKClusterOptions
	Seeds   []string
}

func clusterPath(name string) string {
	return path.Join(ZK_ROOT, name)
}

// The subset of *zk.Conn used here
type zkConn interface {
	Exists(path string) (bool, *zk.Stat, error)
	Get(path string) ([]byte, *zk.Stat, error)
	Children(path string) ([]string, *zk.Stat, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Multi(ops ...interface{}) ([]zk.MultiResponse, error)
	Close()
}

// Connector interface to zookeeper servers.
type ZKConnector struct {
	conn zkConn
	log  *zap.Logger
}

// zap as the zookeeper client logger
type zkLogger struct {
	*zap.SugaredLogger
}

func (l zkLogger) Printf(format string, args ...interface{}) {
	l.Debugf(format, args...)
}

func NewZKConnector(servers []string, timeout time.Duration, logger *zap.Logger) (*ZKConnector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("zookeeper")

	conn, _, err := zk.Connect(servers, timeout, zk.WithLogger(zkLogger{logger.Sugar()}))
	if err != nil {
		return nil, errors.Wrapf(err, "connect zookeeper %v", servers)
	}
	return &ZKConnector{conn: conn, log: logger}, nil
}

// GetCluster reads the information of a registered cluster
func (zc *ZKConnector) GetCluster(name string) (*ZKClusterInfo, error) {
	root := clusterPath(name)
	c := &ZKClusterInfo{Name: name}

	version, _, err := zc.conn.Get(root)
	if err == zk.ErrNoNode {
		return nil, errors.Wrap(ErrClusterNotFound, name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", root)
	}
	c.Version, _ = strconv.ParseInt(string(version), 10, 64)

	if err := zc.getJSON(root+"/seeds", &c.Seeds); err != nil {
		return nil, err
	}
	if err := zc.getJSON(root+"/options", &c.Options); err != nil {
		return nil, err
	}
	return c, nil
}

func (zc *ZKConnector) getJSON(p string, v interface{}) error {
	data, _, err := zc.conn.Get(p)
	if err != nil {
		return errors.Wrapf(err, "get %s", p)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(ErrInvalidInfo, "%s: %v", p, err)
	}
	return nil
}

// GetClusters reads every registered cluster. Unreadable ones are skipped.
func (zc *ZKConnector) GetClusters() ([]*ZKClusterInfo, error) {
	names, _, err := zc.conn.Children(ZK_ROOT)
	if err == zk.ErrNoNode {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "children of %s", ZK_ROOT)
	}

	cs := make([]*ZKClusterInfo, 0, len(names))
	for _, name := range names {
		c, err := zc.GetCluster(name)
		if err != nil {
			zc.log.Warn("skipping cluster", zap.String("name", name), zap.Error(err))
			continue
		}
		cs = append(cs, c)
	}
	return cs, nil
}

func (zc *ZKConnector) Shutdown() {
	if zc.conn != nil {
		zc.conn.Close()
		zc.conn = nil
	}
}
