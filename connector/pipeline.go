package connector

import (
	"strings"

	. "github.com/beatuslapis/gorecluster.v0/connector/cluster"

	"github.com/mediocregopher/radix.v2/redis"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Pipeline batches commands for a Cluster.
// Commands are grouped by serving node and written in one go per node;
// replies are returned in the order the commands were appended.
// A command which is redirected, or whose node fails, is executed again
// on its own with DoSlot, so the cluster redirection rules still apply.
type Pipeline struct {
	cluster *Cluster
	cmds    []pipelined
}

type pipelined struct {
	slot int
	cmd  *Command
	conn *PooledConn
}

// Pipeline returns an empty pipeline bound to the cluster
func (c *Cluster) Pipeline() *Pipeline {
	return &Pipeline{cluster: c}
}

// Append queues a command for the slot of the key
func (p *Pipeline) Append(key []byte, cmd *Command) {
	p.AppendSlot(p.cluster.Slot(key), cmd)
}

// AppendSlot queues a command for a slot
func (p *Pipeline) AppendSlot(slot int, cmd *Command) {
	p.cmds = append(p.cmds, pipelined{slot: slot, cmd: cmd})
}

// Len returns the number of queued commands
func (p *Pipeline) Len() int {
	return len(p.cmds)
}

// Exec sends every queued command and collects the replies.
// The pipeline is empty afterwards. On failure, the replies of the commands
// which succeeded are still returned along with the first error.
func (p *Pipeline) Exec() ([]*redis.Resp, error) {
	c := p.cluster
	cmds := p.cmds
	p.cmds = nil
	if c.closed {
		return nil, ErrShutdown
	}

	conns := make(map[*Node]*PooledConn)
	broken := make(map[*PooledConn]bool)
	for i := range cmds {
		pl := &cmds[i]
		if pl.slot < 0 || pl.slot >= NumSlots {
			continue
		}
		n := c.slots[pl.slot]
		if n == nil {
			continue
		}
		pc, ok := conns[n]
		if !ok {
			var err error
			if pc, err = c.acquire(n); err != nil {
				c.log.Warn("pipeline node unreachable", zap.String("addr", n.addr), zap.Error(err))
				continue
			}
			conns[n] = pc
		}
		pc.PipeAppend(pl.cmd.Name(), pl.cmd.argv()...)
		pl.conn = pc
	}

	var firstErr error
	replies := make([]*redis.Resp, len(cmds))
	for i := range cmds {
		pl := &cmds[i]
		if pc := pl.conn; pc != nil && !broken[pc] {
			resp := pc.PipeResp()
			switch {
			case resp.IsType(redis.IOErr):
				broken[pc] = true
			case resp.IsType(redis.AppErr) && redirected(resp):
			default:
				replies[i] = resp
				continue
			}
		}

		resp, err := c.DoSlot(pl.slot, pl.cmd)
		if err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "pipelined command #%d", i)
		}
		replies[i] = resp
	}

	for _, pc := range conns {
		if broken[pc] {
			c.discard(pc, "transport")
		} else {
			c.release(pc)
		}
	}
	return replies, firstErr
}

// redirected reports whether a reply has to be retried through DoSlot
func redirected(resp *redis.Resp) bool {
	msg := resp.Err.Error()
	return IsRedirect(msg) || strings.HasPrefix(msg, "TRYAGAIN")
}
