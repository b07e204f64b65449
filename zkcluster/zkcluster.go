// zkcluster - seed discovery for redis clusters through zookeeper.
//
// A cluster is registered under /goreclusters/<name> with two child nodes:
// "seeds" holds a JSON list of host:port addresses to bootstrap from,
// "options" holds client options shared by every user of the cluster.
// The data of the cluster node itself is the registration time in micros.
package zkcluster

import (
	"time"

	"github.com/beatuslapis/gorecluster.v0/connector"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewZKCluster reads a registered cluster from the zookeeper and returns
// a cluster connector connected through its seeds.
// The stored options override the corresponding fields of the given ones.
func NewZKCluster(servers []string, name string, timeout time.Duration, options *connector.Options) (*connector.Cluster, error) {
	var logger *zap.Logger
	if options != nil {
		logger = options.Logger
	}
	zc, err := NewZKConnector(servers, timeout, logger)
	if err != nil {
		return nil, err
	}
	defer zc.Shutdown()

	return connectCluster(zc, name, options)
}

func connectCluster(zc *ZKConnector, name string, options *connector.Options) (*connector.Cluster, error) {
	info, err := zc.GetCluster(name)
	if err != nil {
		return nil, err
	}

	var opts connector.Options
	if options != nil {
		opts = *options
	}
	info.Options.Apply(&opts)

	zc.log.Info("connecting cluster",
		zap.String("name", name),
		zap.Int64("version", info.Version),
		zap.Strings("seeds", info.Seeds))

	c, err := connector.Dial(&opts, info.Seeds...)
	if err != nil {
		return nil, errors.Wrapf(err, "cluster %s", name)
	}
	return c, nil
}
