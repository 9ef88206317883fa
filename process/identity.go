// Package process resolves the identity of the process behind a connection.
package process

import "strconv"

type Kind string

const (
	KindApplication Kind = "application"
	KindService     Kind = "service"
	KindDaemon      Kind = "daemon"
	KindSystem      Kind = "system"
	KindUnknown     Kind = "unknown"
)

// Identity is a classified process.
type Identity struct {
	Kind     Kind   `json:"kind"`
	Name     string `json:"name"`
	BundleID string `json:"bundleId,omitempty"`
	Path     string `json:"path,omitempty"`
	PID      int    `json:"pid,omitempty"`
}

// ID is the stable identifier of the process: the bundle id when known,
// then the executable path, then the name ("unknown."+name for unknown processes).
func (p Identity) ID() string {
	switch {
	case p.BundleID != "":
		return p.BundleID
	case p.Path != "":
		return p.Path
	case p.Kind == KindUnknown:
		return "unknown." + p.Name
	}
	return p.Name
}

func (p Identity) String() string {
	if p.PID > 0 {
		return p.Name + "[" + strconv.Itoa(p.PID) + "]"
	}
	return p.Name
}

// Unknown is the identity used when a process cannot be resolved.
func Unknown(pid int) Identity {
	name := "pid-" + strconv.Itoa(pid)
	if pid <= 0 {
		name = "anonymous"
	}
	return Identity{
		Kind: KindUnknown,
		Name: name,
		PID:  pid,
	}
}
