package cluster

import (
	"net"
	"strconv"

	"github.com/mediocregopher/radix.v2/redis"
	"github.com/pkg/errors"
)

// ErrInvalidSnapshot is returned for a topology reply which doesn't look like a CLUSTER SLOTS reply.
var ErrInvalidSnapshot = errors.New("invalid cluster slots reply")

// Addr identifies a cluster member by its host and port
type Addr struct {
	Host string
	Port int
}

// String returns the address in the host:port form used for dialing
func (a Addr) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Shard describes a contiguous slot range served by a master and its replicas.
// Both ends of the range are inclusive.
type Shard struct {
	Start    int
	End      int
	Master   Addr
	Replicas []Addr
}

// ParseSlots parses a CLUSTER SLOTS reply into shard descriptors.
// Each element must look like [start, end, [host, port, ...], [host, port, ...]*].
// The whole reply is validated before anything is returned.
func ParseSlots(resp *redis.Resp) ([]Shard, error) {
	if resp == nil {
		return nil, errors.Wrap(ErrInvalidSnapshot, "nil reply")
	}
	if resp.Err != nil {
		return nil, errors.Wrap(resp.Err, "cluster slots")
	}
	elems, err := resp.Array()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSnapshot, err.Error())
	}

	shards := make([]Shard, 0, len(elems))
	for i, elem := range elems {
		shard, err := parseShard(elem)
		if err != nil {
			return nil, errors.Wrapf(err, "shard #%d", i)
		}
		shards = append(shards, shard)
	}
	return shards, nil
}

func parseShard(elem *redis.Resp) (Shard, error) {
	fields, err := elem.Array()
	if err != nil || len(fields) < 3 {
		return Shard{}, errors.Wrap(ErrInvalidSnapshot, "malformed descriptor")
	}
	if !fields[0].IsType(redis.Int) || !fields[1].IsType(redis.Int) {
		return Shard{}, errors.Wrap(ErrInvalidSnapshot, "slot range is not an integer pair")
	}
	start, _ := fields[0].Int()
	end, _ := fields[1].Int()
	if start < 0 || end < start || end >= NumSlots {
		return Shard{}, errors.Wrapf(ErrInvalidSnapshot, "slot range %d-%d out of bounds", start, end)
	}

	master, err := parseAddr(fields[2])
	if err != nil {
		return Shard{}, errors.Wrap(err, "master")
	}
	shard := Shard{
		Start:  start,
		End:    end,
		Master: master,
	}
	for _, f := range fields[3:] {
		replica, err := parseAddr(f)
		if err != nil {
			return Shard{}, errors.Wrap(err, "replica")
		}
		shard.Replicas = append(shard.Replicas, replica)
	}
	return shard, nil
}

func parseAddr(elem *redis.Resp) (Addr, error) {
	fields, err := elem.Array()
	if err != nil || len(fields) < 2 {
		return Addr{}, errors.Wrap(ErrInvalidSnapshot, "malformed node entry")
	}
	if !fields[0].IsType(redis.Str) || !fields[1].IsType(redis.Int) {
		return Addr{}, errors.Wrap(ErrInvalidSnapshot, "node entry is not a host/port pair")
	}
	host, _ := fields[0].Str()
	port, _ := fields[1].Int()
	return Addr{Host: host, Port: port}, nil
}

// Covered reports whether the shards cover every slot exactly once.
func Covered(shards []Shard) bool {
	var seen [NumSlots]bool
	n := 0
	for _, s := range shards {
		for k := s.Start; k <= s.End; k++ {
			if seen[k] {
				return false
			}
			seen[k] = true
			n++
		}
	}
	return n == NumSlots
}
