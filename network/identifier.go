package network

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/netwarden/warden/internal/matcher"
)

var (
	ErrInvalidIdentifier = errors.New("network: invalid identifier")
)

type IdentifierType string

const (
	TypeName      IdentifierType = "name"
	TypeHardware  IdentifierType = "bssid"
	TypeSubnet    IdentifierType = "subnet"
	TypeGateway   IdentifierType = "gateway"
	TypeInterface IdentifierType = "interface"
	TypeOverlay   IdentifierType = "overlay"
	TypeAll       IdentifierType = "all"
)

// Identifier recognises a network. The set of variants is closed:
// Name, HardwareAddr, Subnet, Gateway, Interface, Overlay and All.
type Identifier interface {
	Type() IdentifierType
	String() string
	match(n *Network) bool
}

// Match reports whether id recognises n. A nil network or identifier never matches.
func Match(id Identifier, n *Network) bool {
	if id == nil || n == nil {
		return false
	}
	return id.match(n)
}

// MatchAny reports whether any of ids recognises n.
func MatchAny(ids []Identifier, n *Network) bool {
	for _, id := range ids {
		if Match(id, n) {
			return true
		}
	}
	return false
}

// Name matches the network name (SSID) exactly.
type Name string

func (Name) Type() IdentifierType { return TypeName }
func (v Name) String() string     { return "name=" + string(v) }
func (v Name) match(n *Network) bool {
	return n.Name != "" && n.Name == string(v)
}

// HardwareAddr matches the BSSID or gateway MAC, ignoring case and separator style.
type HardwareAddr string

func (HardwareAddr) Type() IdentifierType { return TypeHardware }
func (v HardwareAddr) String() string     { return "bssid=" + string(v) }
func (v HardwareAddr) match(n *Network) bool {
	want := NormalizeMAC(string(v))
	return want != "" && want == NormalizeMAC(n.HardwareAddr)
}

// Gateway matches the default gateway address.
type Gateway string

func (Gateway) Type() IdentifierType { return TypeGateway }
func (v Gateway) String() string     { return "gateway=" + string(v) }
func (v Gateway) match(n *Network) bool {
	if n.Gateway == "" {
		return false
	}
	if ip := net.ParseIP(string(v)); ip != nil {
		return matcher.IPMatcher([]net.IP{ip}).Match(n.Gateway)
	}
	return string(v) == n.Gateway
}

// Interface matches the interface name, e.g. en0 or wlan0.
type Interface string

func (Interface) Type() IdentifierType { return TypeInterface }
func (v Interface) String() string     { return "interface=" + string(v) }
func (v Interface) match(n *Network) bool {
	return n.Interface != "" && n.Interface == string(v)
}

// Overlay matches the name of an active overlay network (VPN, mesh).
type Overlay string

func (Overlay) Type() IdentifierType { return TypeOverlay }
func (v Overlay) String() string     { return "overlay=" + string(v) }
func (v Overlay) match(n *Network) bool {
	return n.Overlay && n.OverlayName == string(v)
}

// Subnet matches when any host address lies inside the prefix.
type Subnet struct {
	prefix  *net.IPNet
	matcher matcher.Matcher
}

// NewSubnet builds a Subnet identifier from a network address and prefix length.
func NewSubnet(addr string, prefixLen int) (Subnet, error) {
	ip := net.ParseIP(strings.TrimSpace(addr))
	if ip == nil {
		return Subnet{}, fmt.Errorf("%w: subnet address %q", ErrInvalidIdentifier, addr)
	}
	bits := 128
	if v4 := ip.To4(); v4 != nil {
		ip, bits = v4, 32
	}
	if prefixLen < 0 || prefixLen > bits {
		return Subnet{}, fmt.Errorf("%w: prefix length %d", ErrInvalidIdentifier, prefixLen)
	}
	mask := net.CIDRMask(prefixLen, bits)
	inet := &net.IPNet{IP: ip.Mask(mask), Mask: mask}
	return Subnet{
		prefix:  inet,
		matcher: matcher.CIDRMatcher([]*net.IPNet{inet}),
	}, nil
}

// ParseSubnet parses CIDR notation, e.g. 192.168.1.0/24.
func ParseSubnet(cidr string) (Subnet, error) {
	_, inet, err := net.ParseCIDR(strings.TrimSpace(cidr))
	if err != nil {
		return Subnet{}, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}
	ones, _ := inet.Mask.Size()
	return NewSubnet(inet.IP.String(), ones)
}

func (Subnet) Type() IdentifierType { return TypeSubnet }

func (v Subnet) String() string {
	if v.prefix == nil {
		return "subnet=<nil>"
	}
	return "subnet=" + v.prefix.String()
}

// Prefix returns the network address and prefix length.
func (v Subnet) Prefix() (string, int) {
	if v.prefix == nil {
		return "", 0
	}
	ones, _ := v.prefix.Mask.Size()
	return v.prefix.IP.String(), ones
}

func (v Subnet) match(n *Network) bool {
	if v.matcher == nil {
		return false
	}
	for _, addr := range n.Addrs {
		if v.matcher.Match(addr) {
			return true
		}
	}
	return false
}

// All matches only when every sub-identifier matches. An empty All never matches.
type All []Identifier

func (All) Type() IdentifierType { return TypeAll }

func (v All) String() string {
	parts := make([]string, 0, len(v))
	for _, id := range v {
		if id != nil {
			parts = append(parts, id.String())
		}
	}
	return "all(" + strings.Join(parts, ", ") + ")"
}

func (v All) match(n *Network) bool {
	if len(v) == 0 {
		return false
	}
	for _, id := range v {
		if !Match(id, n) {
			return false
		}
	}
	return true
}
