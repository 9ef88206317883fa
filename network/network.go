// Package network describes the network a host is attached to and the
// identifiers used to recognise a configured network.
package network

import (
	"slices"
	"strings"
)

type InterfaceKind string

const (
	KindWiFi     InterfaceKind = "wifi"
	KindEthernet InterfaceKind = "ethernet"
	KindCellular InterfaceKind = "cellular"
	KindLoopback InterfaceKind = "loopback"
	KindOther    InterfaceKind = "other"
)

// Network is a point-in-time snapshot of the attached network.
// A Network is never modified once published, a change produces a new snapshot.
type Network struct {
	// Name is the SSID for wireless networks.
	Name string `json:"name,omitempty"`
	// HardwareAddr is the BSSID, or the gateway MAC for wired networks.
	HardwareAddr  string        `json:"hardwareAddr,omitempty"`
	SignalQuality int           `json:"signalQuality,omitempty"`
	Interface     string        `json:"interface,omitempty"`
	Kind          InterfaceKind `json:"kind,omitempty"`
	// Addrs are the host addresses on Interface, with or without prefix length.
	Addrs       []string `json:"addrs,omitempty"`
	Gateway     string   `json:"gateway,omitempty"`
	Overlay     bool     `json:"overlay,omitempty"`
	OverlayName string   `json:"overlayName,omitempty"`
}

// Clone returns a deep copy of n.
func (n *Network) Clone() *Network {
	if n == nil {
		return nil
	}
	c := *n
	c.Addrs = slices.Clone(n.Addrs)
	return &c
}

// Label is a short human readable name for logs.
func (n *Network) Label() string {
	if n == nil {
		return "none"
	}
	switch {
	case n.Name != "":
		return n.Name
	case n.Interface != "":
		return n.Interface
	case n.Gateway != "":
		return n.Gateway
	}
	return string(n.Kind)
}

// NormalizeMAC lower-cases a hardware address, accepts '-' separators
// and restores dropped leading zeros (0:1a:... becomes 00:1a:...).
func NormalizeMAC(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ':' || r == '-'
	})
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	return strings.Join(parts, ":")
}
