// Package host models candidate servers for connection attempts: their
// identity, their last observed status, and the role requirement a
// connection request places on them.
package host

import (
	"fmt"
	"net"
	"strconv"
)

// Spec identifies one candidate server. It is immutable and usable as a map
// key.
type Spec struct {
	Host string
	Port uint16
}

// Addr returns the spec in host:port dial form.
func (s Spec) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

func (s Spec) String() string {
	return s.Addr()
}

// Status is the last observed state of a host. It defaults to StatusUnknown
// and is overwritten whenever a connection attempt reaches a conclusive
// outcome.
type Status int

const (
	StatusUnknown Status = iota
	StatusConnectFailed
	StatusConnectOK // connected, role not probed
	StatusPrimary
	StatusSecondary
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusConnectFailed:
		return "connect-failed"
	case StatusConnectOK:
		return "connect-ok"
	case StatusPrimary:
		return "primary"
	case StatusSecondary:
		return "secondary"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Requirement constrains which server role a connection request accepts.
type Requirement int

const (
	RequireAny Requirement = iota
	RequirePrimary
	RequireSecondary
)

// ParseRequirement parses a requirement string. An unrecognized value is a
// configuration error.
func ParseRequirement(s string) (Requirement, error) {
	switch s {
	case "", "any":
		return RequireAny, nil
	case "primary":
		return RequirePrimary, nil
	case "secondary":
		return RequireSecondary, nil
	default:
		return RequireAny, fmt.Errorf("invalid target session role %q", s)
	}
}

func (r Requirement) String() string {
	switch r {
	case RequireAny:
		return "any"
	case RequirePrimary:
		return "primary"
	case RequireSecondary:
		return "secondary"
	default:
		return fmt.Sprintf("requirement(%d)", int(r))
	}
}

// Allows reports whether a host with the given observed status satisfies
// the requirement.
func (r Requirement) Allows(st Status) bool {
	switch r {
	case RequireAny:
		return st == StatusConnectOK || st == StatusPrimary || st == StatusSecondary
	case RequirePrimary:
		return st == StatusPrimary
	case RequireSecondary:
		return st == StatusSecondary
	default:
		return false
	}
}
