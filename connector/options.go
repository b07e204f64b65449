package connector

import (
	"time"

	"github.com/beatuslapis/gorecluster.v0/checker"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Default values applied to zero fields of Options
const (
	DefaultTimeout      = time.Second
	DefaultPoolSize     = 1
	DefaultMaxRedirects = 5
)

// An option structure to create a cluster connector
type Options struct {
	// Connect, read and write timeout of every connection
	Timeout time.Duration

	// Number of idle connections kept for each master. Replicas keep one.
	PoolSize int

	// Maximum number of redirections followed by a single command
	MaxRedirects int

	// Hash only the {tag} part of keys having one
	HashTags bool

	// Transport and health probe, mostly replaced by tests
	Dial   DialFunc
	Prober checker.Prober

	// Pacing of retries on TRYAGAIN replies
	TryAgainBackoff func() backoff.BackOff

	Logger  *zap.Logger
	Metrics ClusterMetrics
}

func defaultTryAgainBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	return backoff.WithMaxRetries(b, 3)
}

// withDefaults returns a copy of the options with every zero field set.
func (o *Options) withDefaults() Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = DefaultPoolSize
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if opts.Dial == nil {
		opts.Dial = DialTimeout
	}
	if opts.Prober == nil {
		opts.Prober = checker.PingProber{}
	}
	if opts.TryAgainBackoff == nil {
		opts.TryAgainBackoff = defaultTryAgainBackoff
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopClusterMetrics()
	}
	return opts
}
