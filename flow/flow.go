// Package flow holds the connection-hook boundary types.
package flow

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

var (
	ErrInvalidEndpoint = errors.New("flow: invalid endpoint")
)

type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
)

func (d Direction) Valid() bool {
	return d == Outbound || d == Inbound
}

// Key fingerprints a flow for decision caching. Connections with the same
// tuple share one cached decision.
type Key struct {
	RemoteHost string    `json:"remoteHost"`
	RemotePort int       `json:"remotePort"`
	LocalPort  int       `json:"localPort"`
	Direction  Direction `json:"direction"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s %s local:%d", k.Direction, net.JoinHostPort(k.RemoteHost, strconv.Itoa(k.RemotePort)), k.LocalPort)
}

// Event is a new connection reported by the OS hook.
type Event struct {
	// Caller is the opaque credential token of the process that opened the flow.
	Caller []byte
	// PID is used when the hook already resolved the caller.
	PID        int
	RemoteHost string
	RemotePort int
	LocalPort  int
	Direction  Direction
	// URL is set when the hook already knows the request URL.
	URL string
}

// Key returns the cache fingerprint of the event.
// Endpoint data missing from the event is taken from URL when present.
func (e *Event) Key() (Key, error) {
	k := Key{
		RemoteHost: strings.ToLower(strings.TrimSuffix(e.RemoteHost, ".")),
		RemotePort: e.RemotePort,
		LocalPort:  e.LocalPort,
		Direction:  e.Direction,
	}
	if k.Direction == "" {
		k.Direction = Outbound
	}
	if !k.Direction.Valid() {
		return Key{}, fmt.Errorf("%w: direction %q", ErrInvalidEndpoint, e.Direction)
	}
	if (k.RemoteHost == "" || k.RemotePort == 0) && e.URL != "" {
		host, port, err := endpointFromURL(e.URL)
		if err != nil {
			return Key{}, err
		}
		if k.RemoteHost == "" {
			k.RemoteHost = host
		}
		if k.RemotePort == 0 {
			k.RemotePort = port
		}
	}
	if k.RemoteHost == "" {
		return Key{}, fmt.Errorf("%w: missing remote host", ErrInvalidEndpoint)
	}
	if !validPort(k.RemotePort) || (k.LocalPort != 0 && !validPort(k.LocalPort)) {
		return Key{}, fmt.Errorf("%w: port %d/%d", ErrInvalidEndpoint, k.RemotePort, k.LocalPort)
	}
	return k, nil
}

// ParseEndpoint splits "host:port" as delivered by the hook.
func ParseEndpoint(s string) (string, int, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(s))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || !validPort(n) {
		return "", 0, fmt.Errorf("%w: port %q", ErrInvalidEndpoint, port)
	}
	if host == "" {
		return "", 0, fmt.Errorf("%w: empty host", ErrInvalidEndpoint)
	}
	return host, n, nil
}

func endpointFromURL(s string) (string, int, error) {
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return "", 0, fmt.Errorf("%w: url %q", ErrInvalidEndpoint, s)
	}
	host := strings.ToLower(u.Hostname())
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("%w: url port %q", ErrInvalidEndpoint, p)
		}
		return host, n, nil
	}
	switch u.Scheme {
	case "http", "ws":
		return host, 80, nil
	case "https", "wss":
		return host, 443, nil
	}
	return host, 0, nil
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// Verdict is returned to the OS hook.
type Verdict string

const (
	VerdictAllow   Verdict = "allow"
	VerdictDrop    Verdict = "drop"
	VerdictInspect Verdict = "inspect"
)
