package zkcluster

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/samuel/go-zookeeper/zk"
	"go.uber.org/zap"
)

// ZKManager registers redis clusters on the zookeeper
type ZKManager struct {
	zc *ZKConnector
}

func NewZKManager(servers []string, timeout time.Duration, logger *zap.Logger) (*ZKManager, error) {
	zc, err := NewZKConnector(servers, timeout, logger)
	if err != nil {
		return nil, err
	}
	zm, err := newZKManager(zc)
	if err != nil {
		zc.Shutdown()
		return nil, err
	}
	return zm, nil
}

func newZKManager(zc *ZKConnector) (*ZKManager, error) {
	exists, _, err := zc.conn.Exists(ZK_ROOT)
	if err != nil {
		return nil, errors.Wrapf(err, "exists %s", ZK_ROOT)
	}
	if !exists {
		_, err := zc.conn.Create(ZK_ROOT, []byte("goreclusters"), DEF_FLAGS, DEF_ACL)
		if err != nil && err != zk.ErrNodeExists {
			return nil, errors.Wrapf(err, "create %s", ZK_ROOT)
		}
	}
	return &ZKManager{zc: zc}, nil
}

func marshalInfo(cluster *ZKClusterInfo) (version, seeds, options []byte, err error) {
	if cluster == nil || cluster.Name == "" || len(cluster.Seeds) == 0 {
		return nil, nil, nil, ErrInvalidInfo
	}
	version = strconv.AppendInt(nil, time.Now().UnixNano()/1000, 10)
	if seeds, err = json.Marshal(cluster.Seeds); err != nil {
		return nil, nil, nil, errors.Wrap(err, "marshal seeds")
	}
	if options, err = json.Marshal(cluster.Options); err != nil {
		return nil, nil, nil, errors.Wrap(err, "marshal options")
	}
	return version, seeds, options, nil
}

// CreateCluster registers a new cluster, its nodes are created at once
func (zm *ZKManager) CreateCluster(cluster *ZKClusterInfo) error {
	version, seeds, options, err := marshalInfo(cluster)
	if err != nil {
		return err
	}

	root := clusterPath(cluster.Name)
	_, err = zm.zc.conn.Multi(
		&zk.CreateRequest{Path: root, Data: version, Acl: DEF_ACL, Flags: DEF_FLAGS},
		&zk.CreateRequest{Path: root + "/seeds", Data: seeds, Acl: DEF_ACL, Flags: DEF_FLAGS},
		&zk.CreateRequest{Path: root + "/options", Data: options, Acl: DEF_ACL, Flags: DEF_FLAGS},
	)
	if err == zk.ErrNodeExists {
		return errors.Wrap(ErrClusterExists, cluster.Name)
	}
	if err != nil {
		return errors.Wrapf(err, "create %s", root)
	}
	zm.zc.log.Info("cluster registered", zap.String("name", cluster.Name), zap.Strings("seeds", cluster.Seeds))
	return nil
}

// UpdateCluster replaces the seeds and options of a registered cluster
func (zm *ZKManager) UpdateCluster(cluster *ZKClusterInfo) error {
	version, seeds, options, err := marshalInfo(cluster)
	if err != nil {
		return err
	}

	root := clusterPath(cluster.Name)
	_, err = zm.zc.conn.Multi(
		&zk.SetDataRequest{Path: root + "/seeds", Data: seeds, Version: -1},
		&zk.SetDataRequest{Path: root + "/options", Data: options, Version: -1},
		&zk.SetDataRequest{Path: root, Data: version, Version: -1},
	)
	if err == zk.ErrNoNode {
		return errors.Wrap(ErrClusterNotFound, cluster.Name)
	}
	if err != nil {
		return errors.Wrapf(err, "update %s", root)
	}
	zm.zc.log.Info("cluster updated", zap.String("name", cluster.Name), zap.Strings("seeds", cluster.Seeds))
	return nil
}

// DeleteCluster removes a cluster with every node under it
func (zm *ZKManager) DeleteCluster(name string) error {
	root := clusterPath(name)
	children, _, err := zm.zc.conn.Children(root)
	if err == zk.ErrNoNode {
		return errors.Wrap(ErrClusterNotFound, name)
	}
	if err != nil {
		return errors.Wrapf(err, "children of %s", root)
	}

	ops := make([]interface{}, 0, len(children)+1)
	for _, child := range children {
		ops = append(ops, &zk.DeleteRequest{Path: root + "/" + child, Version: -1})
	}
	ops = append(ops, &zk.DeleteRequest{Path: root, Version: -1})
	if _, err := zm.zc.conn.Multi(ops...); err != nil {
		return errors.Wrapf(err, "delete %s", root)
	}
	zm.zc.log.Info("cluster deleted", zap.String("name", name))
	return nil
}

// GetCluster reads a registered cluster
func (zm *ZKManager) GetCluster(name string) (*ZKClusterInfo, error) {
	return zm.zc.GetCluster(name)
}

// GetClusters reads every registered cluster
func (zm *ZKManager) GetClusters() ([]*ZKClusterInfo, error) {
	return zm.zc.GetClusters()
}

func (zm *ZKManager) Shutdown() {
	if zm.zc != nil {
		zm.zc.Shutdown()
	}
}
