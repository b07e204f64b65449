package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mediocregopher/radix.v2/redis"

	"github.com/beatuslapis/gorecluster.v0/connector"
	"github.com/beatuslapis/gorecluster.v0/connector/cluster"
)

// writeReply prints a reply the way redis-cli does
func writeReply(w io.Writer, resp *redis.Resp) error {
	return writeIndented(w, resp, "")
}

func writeIndented(w io.Writer, resp *redis.Resp, indent string) error {
	var err error
	switch {
	case resp.IsType(redis.Err):
		_, err = fmt.Fprintf(w, "(error) %v\n", resp.Err)
	case resp.IsType(redis.Nil):
		_, err = fmt.Fprintln(w, "(nil)")
	case resp.IsType(redis.Int):
		n, _ := resp.Int64()
		_, err = fmt.Fprintf(w, "(integer) %d\n", n)
	case resp.IsType(redis.SimpleStr):
		s, _ := resp.Str()
		_, err = fmt.Fprintln(w, s)
	case resp.IsType(redis.Str):
		s, _ := resp.Str()
		_, err = fmt.Fprintf(w, "%q\n", s)
	case resp.IsType(redis.Array):
		elems, _ := resp.Array()
		if len(elems) == 0 {
			_, err = fmt.Fprintln(w, "(empty array)")
			break
		}
		for i, e := range elems {
			prefix := fmt.Sprintf("%d) ", i+1)
			if i > 0 {
				if _, err = io.WriteString(w, indent); err != nil {
					return err
				}
			}
			if _, err = io.WriteString(w, prefix); err != nil {
				return err
			}
			if err = writeIndented(w, e, indent+strings.Repeat(" ", len(prefix))); err != nil {
				return err
			}
		}
	default:
		_, err = fmt.Fprintln(w, resp.String())
	}
	return err
}

type slotRange struct {
	start, end int
	owner      cluster.Addr
}

// ownedRanges compresses the slot map into contiguous ranges
func ownedRanges(owner func(int) (cluster.Addr, bool)) []slotRange {
	var ranges []slotRange
	for slot := 0; slot < cluster.NumSlots; slot++ {
		addr, ok := owner(slot)
		if !ok {
			continue
		}
		if n := len(ranges); n > 0 && ranges[n-1].end == slot-1 && ranges[n-1].owner == addr {
			ranges[n-1].end = slot
			continue
		}
		ranges = append(ranges, slotRange{start: slot, end: slot, owner: addr})
	}
	return ranges
}

func writeTopology(w io.Writer, c *connector.Cluster) error {
	for _, n := range c.Nodes() {
		role := "replica"
		if n.Master {
			role = "master"
		}
		if _, err := fmt.Fprintf(w, "node %d %s %s idle=%d\n", n.ID, n.Addr, role, n.Idle); err != nil {
			return err
		}
	}
	for _, r := range ownedRanges(c.Owner) {
		if _, err := fmt.Fprintf(w, "slots %d-%d %s\n", r.start, r.end, r.owner); err != nil {
			return err
		}
	}
	return nil
}
