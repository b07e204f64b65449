// Package config loads the settings of a cluster client from flags,
// the environment (GRC_ prefix) and an optional configuration file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/beatuslapis/gorecluster.v0/connector"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvPrefix = "grc"

var ErrNoSeeds = errors.New("either seeds or a zookeeper registry is required")

// ZooKeeper locates a cluster registered with zkcluster
type ZooKeeper struct {
	Servers []string      `mapstructure:"servers"`
	Cluster string        `mapstructure:"cluster"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Config struct {
	Seeds        []string      `mapstructure:"seeds"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PoolSize     int           `mapstructure:"pool-size"`
	MaxRedirects int           `mapstructure:"max-redirects"`
	HashTags     bool          `mapstructure:"hash-tags"`
	LogLevel     string        `mapstructure:"log-level"`
	ZooKeeper    ZooKeeper     `mapstructure:"zookeeper"`
}

// Flags returns the flag set of every setting, with their defaults
func Flags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("config", pflag.ContinueOnError)
	flags.StringSlice("seeds", nil, "seed node addresses, host:port")
	flags.Duration("timeout", connector.DefaultTimeout, "connect, read and write timeout")
	flags.Int("pool-size", connector.DefaultPoolSize, "idle connections kept per master")
	flags.Int("max-redirects", connector.DefaultMaxRedirects, "redirections followed by a single command")
	flags.Bool("hash-tags", false, "hash only the {tag} part of keys")
	flags.String("log-level", "info", "the log level to run at")
	flags.StringSlice("zk-servers", nil, "zookeeper servers holding the cluster registry")
	flags.String("zk-cluster", "", "name of the registered cluster")
	flags.Duration("zk-timeout", 10*time.Second, "zookeeper session timeout")
	return flags
}

// flag names differing from their keys
var flagKeys = map[string]string{
	"zk-servers": "zookeeper.servers",
	"zk-cluster": "zookeeper.cluster",
	"zk-timeout": "zookeeper.timeout",
}

// NewViper returns a viper instance reading the environment and bound to the flags
func NewViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			key = f.Name
		}
		if berr := v.BindPFlag(key, f); berr != nil && err == nil {
			err = errors.Wrapf(berr, "bind flag %s", f.Name)
		}
	})
	return v, err
}

// Load reads the configuration file, if any, and decodes every setting
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return &c, nil
}

// Validate checks the cluster can be located
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 && (len(c.ZooKeeper.Servers) == 0 || c.ZooKeeper.Cluster == "") {
		return ErrNoSeeds
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log-level")
	}
	return nil
}

// Options converts the settings to connector options
func (c *Config) Options(logger *zap.Logger, metrics connector.ClusterMetrics) *connector.Options {
	return &connector.Options{
		Timeout:      c.Timeout,
		PoolSize:     c.PoolSize,
		MaxRedirects: c.MaxRedirects,
		HashTags:     c.HashTags,
		Logger:       logger,
		Metrics:      metrics,
	}
}

// NewLogger builds a JSON logger on stderr at the configured level.
// The level can be changed later through the returned AtomicLevel.
func (c *Config) NewLogger() (zap.AtomicLevel, *zap.Logger) {
	logLevel := zap.NewAtomicLevel()
	if lvl, err := zapcore.ParseLevel(c.LogLevel); err == nil {
		logLevel.SetLevel(lvl)
	}

	logConfig := zap.NewProductionEncoderConfig()
	logConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(logConfig), zapcore.Lock(os.Stderr), logLevel)
	return logLevel, zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}
