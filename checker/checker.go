package checker

import (
	"github.com/mediocregopher/radix.v2/util"
	"github.com/pkg/errors"
)

// ErrProbeFailed is returned when a connection answers a probe with an unexpected reply.
var ErrProbeFailed = errors.New("health probe failed")

// An interface for a health checker to verify a pooled connection
type Prober interface {
	Probe(c util.Cmder) error
}

// An adapter to use an ordinary function as a Prober
type ProbeFunc func(c util.Cmder) error

// Probe calls f(c)
func (f ProbeFunc) Probe(c util.Cmder) error {
	return f(c)
}

// A prober sending a redis "PING" command and expecting "PONG"
type PingProber struct{}

// Probe sends PING and checks its response.
func (PingProber) Probe(c util.Cmder) error {
	resp := c.Cmd("PING")
	if resp.Err != nil {
		return errors.Wrap(resp.Err, "ping")
	}
	if result, err := resp.Str(); err != nil || result != "PONG" {
		return errors.Wrapf(ErrProbeFailed, "unexpected reply %s", resp)
	}
	return nil
}
