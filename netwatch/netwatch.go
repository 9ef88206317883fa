// Package netwatch observes the network the host is attached to.
package netwatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gost/core/logger"
	"github.com/netwarden/warden/network"
)

var (
	ErrUnsupported = errors.New("netwatch: not supported on this platform")
	ErrNoRoute     = errors.New("netwatch: no default route")
)

const (
	defaultSysfs    = "/sys/class/net"
	defaultDebounce = 500 * time.Millisecond
)

type options struct {
	namespace string
	sysfs     string
	reload    time.Duration
	debounce  time.Duration
	logger    logger.Logger
}

type Option func(opts *options)

// NamespaceOption observes the named network namespace instead of the current one.
func NamespaceOption(ns string) Option {
	return func(opts *options) {
		opts.namespace = ns
	}
}

// SysfsOption sets the root of the network class directory, /sys/class/net by default.
func SysfsOption(root string) Option {
	return func(opts *options) {
		opts.sysfs = root
	}
}

// ReloadOption makes Watch re-detect periodically in addition to route events.
func ReloadOption(d time.Duration) Option {
	return func(opts *options) {
		opts.reload = d
	}
}

func DebounceOption(d time.Duration) Option {
	return func(opts *options) {
		opts.debounce = d
	}
}

func LoggerOption(logger logger.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

var (
	overlayTypes    = []string{"wireguard", "tuntap", "tun", "ipip", "gre", "vxlan"}
	overlayPrefixes = []string{"wg", "tun", "utun", "tailscale", "zt", "nordlynx", "proton", "ppp"}
	cellularPrefix  = []string{"wwan", "rmnet", "ccmni", "usb"}
	ethernetPrefix  = []string{"eth", "en", "em", "bond", "br"}
)

// isOverlay reports whether a link is a VPN or tunnel interface.
func isOverlay(name, linkType string) bool {
	linkType = strings.ToLower(linkType)
	for _, t := range overlayTypes {
		if linkType == t {
			return true
		}
	}
	return hasPrefix(strings.ToLower(name), overlayPrefixes)
}

// interfaceKind classifies a link. sysfs is consulted for the
// wireless and wwan markers the kernel exposes per interface.
func interfaceKind(sysfs, name, linkType string) network.InterfaceKind {
	lname := strings.ToLower(name)
	switch {
	case linkType == "loopback" || lname == "lo":
		return network.KindLoopback
	case exists(filepath.Join(sysfs, name, "wireless")), exists(filepath.Join(sysfs, name, "phy80211")):
		return network.KindWiFi
	case devType(sysfs, name) == "wwan", hasPrefix(lname, cellularPrefix):
		return network.KindCellular
	case hasPrefix(lname, ethernetPrefix):
		return network.KindEthernet
	case linkType == "device" && exists(filepath.Join(sysfs, name, "device")):
		return network.KindEthernet
	}
	return network.KindOther
}

// devType reads DEVTYPE from the uevent file of the interface.
func devType(sysfs, name string) string {
	b, err := os.ReadFile(filepath.Join(sysfs, name, "uevent"))
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(b), "\n") {
		if v, ok := strings.CutPrefix(line, "DEVTYPE="); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func hasPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// signalQuality maps the link quality of /proc/net/wireless (0-70) to 0-100.
func signalQuality(link int) int {
	q := link * 100 / 70
	switch {
	case q < 0:
		return 0
	case q > 100:
		return 100
	}
	return q
}

func sameNetwork(a, b *network.Network) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Name != b.Name || a.HardwareAddr != b.HardwareAddr || a.Interface != b.Interface ||
		a.Kind != b.Kind || a.Gateway != b.Gateway || a.Overlay != b.Overlay || a.OverlayName != b.OverlayName {
		return false
	}
	if len(a.Addrs) != len(b.Addrs) {
		return false
	}
	for i := range a.Addrs {
		if a.Addrs[i] != b.Addrs[i] {
			return false
		}
	}
	return true
}

// tracker reports detected networks to fn, once per change. A lost default
// route reports nil, other detection errors keep the last network.
type tracker struct {
	detect func(context.Context) (*network.Network, error)
	fn     func(*network.Network)
	logger logger.Logger

	last *network.Network
	seen bool
}

func (t *tracker) update(ctx context.Context) {
	n, err := t.detect(ctx)
	switch {
	case errors.Is(err, ErrNoRoute):
		n = nil
	case err != nil:
		t.logger.Warnf("detect: %v", err)
		return
	}
	if t.seen && sameNetwork(t.last, n) {
		return
	}
	t.seen = true
	t.last = n
	t.fn(n)
}
