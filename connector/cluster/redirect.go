package cluster

import (
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidRedirect is returned when a MOVED or ASK error can't be parsed.
var ErrInvalidRedirect = errors.New("invalid redirection")

// Kind of a redirection sent by a cluster member
type RedirectKind int

const (
	// The slot has been reassigned for good
	Moved RedirectKind = iota + 1
	// The slot is being migrated, retry only this request elsewhere
	Ask
)

func (k RedirectKind) String() string {
	switch k {
	case Moved:
		return "moved"
	case Ask:
		return "ask"
	default:
		return "unknown"
	}
}

// Redirect is a parsed "MOVED <slot> <host>:<port>" or "ASK <slot> <host>:<port>" error.
type Redirect struct {
	Kind RedirectKind
	Slot int
	Addr Addr
}

// IsRedirect reports whether an error message is a cluster redirection.
func IsRedirect(msg string) bool {
	return strings.HasPrefix(msg, "MOVED ") || strings.HasPrefix(msg, "ASK ")
}

// ParseRedirect parses the text of a redirection error.
// The message is never modified.
func ParseRedirect(msg string) (Redirect, error) {
	fields := strings.Fields(msg)
	if len(fields) != 3 {
		return Redirect{}, errors.Wrapf(ErrInvalidRedirect, "%q", msg)
	}

	var r Redirect
	switch fields[0] {
	case "MOVED":
		r.Kind = Moved
	case "ASK":
		r.Kind = Ask
	default:
		return Redirect{}, errors.Wrapf(ErrInvalidRedirect, "%q", msg)
	}

	slot, err := strconv.Atoi(fields[1])
	if err != nil || slot < 0 || slot >= NumSlots {
		return Redirect{}, errors.Wrapf(ErrInvalidRedirect, "bad slot in %q", msg)
	}
	r.Slot = slot

	host, portstr, err := net.SplitHostPort(fields[2])
	if err != nil {
		return Redirect{}, errors.Wrapf(ErrInvalidRedirect, "bad address in %q", msg)
	}
	port, err := strconv.Atoi(portstr)
	if err != nil || port <= 0 || port > 65535 {
		return Redirect{}, errors.Wrapf(ErrInvalidRedirect, "bad port in %q", msg)
	}
	r.Addr = Addr{Host: host, Port: port}

	return r, nil
}
