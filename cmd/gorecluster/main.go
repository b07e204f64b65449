package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/beatuslapis/gorecluster.v0/config"
	"github.com/beatuslapis/gorecluster.v0/connector"
	prommetrics "github.com/beatuslapis/gorecluster.v0/metrics/prometheus"
	"github.com/beatuslapis/gorecluster.v0/zkcluster"
)

var rootCmd = &cobra.Command{
	Use:   "gorecluster",
	Short: "A one-shot client for redis clusters",

	SilenceUsage: true,
}

var execCmd = &cobra.Command{
	Use:   "exec <key> <command> [args...]",
	Short: "Execute a command on the node serving the key",
	Args:  cobra.MinimumNArgs(2),

	RunE: func(cmd *cobra.Command, args []string) error {
		return withCluster(func(c *connector.Cluster) error {
			cargs := make([]interface{}, len(args)-2)
			for i, a := range args[2:] {
				cargs[i] = a
			}
			resp, err := c.Cmd([]byte(args[0]), args[1], cargs...)
			if err != nil {
				return err
			}
			return writeReply(os.Stdout, resp)
		})
	},
}

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Print the nodes and the slot ranges they serve",
	Args:  cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		return withCluster(func(c *connector.Cluster) error {
			return writeTopology(os.Stdout, c)
		})
	},
}

var cfgFile string
var dumpMetrics bool

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "specifies a config file to load")
	rootCmd.PersistentFlags().BoolVar(&dumpMetrics, "metrics", false, "print the client metrics to stderr on exit")
	rootCmd.PersistentFlags().AddFlagSet(configFlags)

	rootCmd.AddCommand(execCmd, slotsCmd)
}

var configFlags = config.Flags()

// withCluster connects a cluster from the configuration, runs fn and shuts it down
func withCluster(fn func(*connector.Cluster) error) error {
	v, err := config.NewViper(configFlags)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	_, logger := cfg.NewLogger()
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	opts := cfg.Options(logger, prommetrics.NewClusterMetrics(reg))

	var c *connector.Cluster
	if len(cfg.Seeds) > 0 {
		c, err = connector.Dial(opts, cfg.Seeds...)
	} else {
		c, err = zkcluster.NewZKCluster(cfg.ZooKeeper.Servers, cfg.ZooKeeper.Cluster, cfg.ZooKeeper.Timeout, opts)
	}
	if err != nil {
		logger.Error("failed to connect the cluster", zap.Error(err))
		return err
	}

	err = fn(c)
	c.Shutdown()

	if dumpMetrics {
		if merr := writeMetrics(reg); merr != nil {
			logger.Warn("failed to dump metrics", zap.Error(merr))
		}
	}
	return err
}

func writeMetrics(reg *prometheus.Registry) error {
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(os.Stderr, mf); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
