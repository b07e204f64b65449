package connector

import (
	"strings"
	"time"

	. "github.com/beatuslapis/gorecluster.v0/connector/cluster"

	"github.com/cenkalti/backoff/v4"
	"github.com/mediocregopher/radix.v2/redis"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Do executes a command on the node serving the slot of the key.
//
// Redis errors other than redirections are returned as the reply, so callers
// check resp.Err as with a plain radix client. The error is set only when
// the cluster itself failed: unreachable nodes, malformed topologies or
// redirections, or too many redirections.
func (c *Cluster) Do(key []byte, cmd *Command) (*redis.Resp, error) {
	return c.DoSlot(c.Slot(key), cmd)
}

// Cmd is a shorthand of Do building the command from its name and arguments
func (c *Cluster) Cmd(key []byte, name string, args ...interface{}) (*redis.Resp, error) {
	return c.Do(key, NewCommand(name, args...))
}

// DoSlot executes a command on the node serving a slot
func (c *Cluster) DoSlot(slot int, cmd *Command) (*redis.Resp, error) {
	if c.closed {
		return nil, ErrShutdown
	}
	if slot < 0 || slot >= NumSlots {
		return nil, errors.Wrapf(ErrInvalidSlot, "slot %d", slot)
	}

	defer c.metrics.CommandDuration(cmd.Name()).ObserveDuration()

	resp, err := c.execute(slot, cmd)
	c.metrics.CommandCompleted(cmd.Name(), err == nil)
	return resp, err
}

func (c *Cluster) execute(slot int, cmd *Command) (*redis.Resp, error) {
	pc, err := c.acquireSlot(slot)
	if err != nil {
		return nil, err
	}

	var (
		asking   bool
		tryAgain backoff.BackOff
	)
	for hops := 0; ; {
		c.log.Debug("execute",
			zap.Int("slot", slot),
			zap.String("cmd", cmd.Name()),
			zap.String("addr", pc.node.addr))

		resp, err := c.send(pc, cmd, asking)
		if err != nil {
			return nil, err
		}
		if !resp.IsType(redis.AppErr) {
			c.release(pc)
			return resp, nil
		}

		msg := resp.Err.Error()
		if strings.HasPrefix(msg, "TRYAGAIN") {
			if tryAgain == nil {
				tryAgain = c.tryAgain()
			}
			wait := tryAgain.NextBackOff()
			if wait == backoff.Stop {
				c.release(pc)
				return resp, nil
			}
			c.metrics.Redirected("tryagain")
			time.Sleep(wait)
			continue
		}
		if !IsRedirect(msg) {
			c.release(pc)
			return resp, nil
		}

		rd, err := ParseRedirect(msg)
		if err == nil && rd.Slot != slot {
			err = errors.Wrapf(ErrInvalidRedirect, "%q for slot %d", msg, slot)
		}
		if err != nil {
			c.release(pc)
			return nil, err
		}

		hops++
		if hops > c.maxRedirects {
			c.release(pc)
			return nil, errors.Wrapf(ErrTooManyRedirects, "slot %d after %d hops", slot, c.maxRedirects)
		}
		c.metrics.Redirected(rd.Kind.String())
		c.log.Warn("redirected",
			zap.Stringer("kind", rd.Kind),
			zap.Int("slot", slot),
			zap.String("from", pc.node.addr),
			zap.Stringer("to", rd.Addr))

		target, err := c.resolve(rd.Addr, pc)
		if err != nil {
			return nil, err
		}
		// ASK only moves this request, the slot still belongs to its owner
		if rd.Kind == Moved {
			c.slots[slot] = target
		}
		asking = rd.Kind == Ask

		if pc, err = c.acquire(target); err != nil {
			return nil, err
		}
	}
}

// send writes a command, preceded by ASKING when following an ASK redirection.
// The connection is discarded on a transport failure.
func (c *Cluster) send(pc *PooledConn, cmd *Command, asking bool) (*redis.Resp, error) {
	if asking {
		if resp := pc.Cmd("ASKING"); resp.Err != nil {
			if resp.IsType(redis.IOErr) {
				c.discard(pc, "transport")
				return nil, errors.Wrapf(ErrTransport, "asking on %s: %v", pc.node.addr, resp.Err)
			}
			c.release(pc)
			return nil, errors.Wrapf(resp.Err, "asking on %s", pc.node.addr)
		}
	}

	resp := pc.Cmd(cmd.Name(), cmd.argv()...)
	if resp.IsType(redis.IOErr) {
		c.discard(pc, "transport")
		return nil, errors.Wrapf(ErrTransport, "%s on %s: %v", cmd.Name(), pc.node.addr, resp.Err)
	}
	return resp, nil
}

// acquireSlot checks out a connection to the node serving a slot.
// If that node can't be reached, the topology is refreshed through
// another node and the acquisition is retried once.
func (c *Cluster) acquireSlot(slot int) (*PooledConn, error) {
	n := c.slots[slot]
	if n != nil {
		pc, err := c.acquire(n)
		if err == nil {
			return pc, nil
		}
		c.log.Warn("node unreachable, refreshing topology", zap.String("addr", n.addr), zap.Error(err))
	}

	if err := c.recover(n); err != nil {
		return nil, errors.Wrapf(err, "slot %d", slot)
	}
	if n = c.slots[slot]; n == nil {
		return nil, errors.Wrapf(ErrSlotUnassigned, "slot %d", slot)
	}
	pc, err := c.acquire(n)
	if err != nil {
		return nil, errors.Wrapf(ErrClusterDown, "slot %d: %v", slot, err)
	}
	return pc, nil
}

// resolve finds the node with the address, refreshing the topology through
// the given connection if it is unknown. The connection is given back.
func (c *Cluster) resolve(addr Addr, pc *PooledConn) (*Node, error) {
	if i := c.registry.Find(addr); i >= 0 {
		c.release(pc)
		return c.registry.At(i), nil
	}

	if err := c.refreshWith(pc); err != nil {
		if errors.Is(err, ErrTransport) {
			c.discard(pc, "transport")
		} else {
			c.release(pc)
		}
		return nil, err
	}
	c.release(pc)

	if i := c.registry.Find(addr); i >= 0 {
		return c.registry.At(i), nil
	}
	return nil, errors.Wrapf(ErrNodeNotFound, "%s", addr)
}
