//go:build linux

package netwatch

import (
	"context"
	"fmt"
	"net"
	"time"

	xlogger "github.com/netwarden/warden/logger"
	"github.com/netwarden/warden/network"
	"github.com/prometheus/procfs"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
)

// Detector reads the attached network from the kernel routing table.
type Detector struct {
	handle *netlink.Handle
	ns     *netns.NsHandle
	proc   *procfs.FS
	options options
}

func NewDetector(opts ...Option) (*Detector, error) {
	options := options{
		sysfs:    defaultSysfs,
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = xlogger.Nop()
	}

	d := &Detector{options: options}

	if options.namespace != "" {
		ns, err := netns.GetFromName(options.namespace)
		if err != nil {
			return nil, fmt.Errorf("netns.GetFromName(%s): %v", options.namespace, err)
		}
		h, err := netlink.NewHandleAt(ns)
		if err != nil {
			ns.Close()
			return nil, err
		}
		d.handle, d.ns = h, &ns
	} else {
		h, err := netlink.NewHandle()
		if err != nil {
			return nil, err
		}
		d.handle = h
	}

	if fs, err := procfs.NewDefaultFS(); err == nil {
		d.proc = &fs
	}

	return d, nil
}

// Detect returns the network behind the default IPv4 route.
func (d *Detector) Detect(ctx context.Context) (*network.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	routes, err := d.handle.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return nil, err
	}

	var route *netlink.Route
	for i := range routes {
		r := &routes[i]
		if r.Dst == nil || (r.Dst.IP.IsUnspecified() && isZeroMask(r.Dst.Mask)) {
			if route == nil || r.Priority < route.Priority {
				route = r
			}
		}
	}
	if route == nil {
		return nil, ErrNoRoute
	}

	link, err := d.handle.LinkByIndex(route.LinkIndex)
	if err != nil {
		return nil, err
	}
	attrs := link.Attrs()

	n := &network.Network{
		Interface: attrs.Name,
		Kind:      interfaceKind(d.options.sysfs, attrs.Name, link.Type()),
	}
	if route.Gw != nil {
		n.Gateway = route.Gw.String()
	}

	addrs, err := d.handle.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		if addr.IPNet != nil {
			n.Addrs = append(n.Addrs, addr.IPNet.String())
		}
	}

	if isOverlay(attrs.Name, link.Type()) {
		n.Overlay, n.OverlayName = true, attrs.Name
	} else if name, ok := d.overlay(); ok {
		n.Overlay, n.OverlayName = true, name
	}

	if route.Gw != nil {
		n.HardwareAddr = d.gatewayMAC(route.LinkIndex, route.Gw)
	}
	if n.Kind == network.KindWiFi {
		n.SignalQuality = d.signal(attrs.Name)
	}

	return n, nil
}

// overlay finds an active tunnel interface not carrying the default route,
// e.g. a split tunnel VPN.
func (d *Detector) overlay() (string, bool) {
	links, err := d.handle.LinkList()
	if err != nil {
		return "", false
	}
	for _, link := range links {
		attrs := link.Attrs()
		if attrs.Flags&net.FlagUp == 0 {
			continue
		}
		if isOverlay(attrs.Name, link.Type()) {
			return attrs.Name, true
		}
	}
	return "", false
}

func (d *Detector) gatewayMAC(linkIndex int, gw net.IP) string {
	neighs, err := d.handle.NeighList(linkIndex, netlink.FAMILY_V4)
	if err != nil {
		d.options.logger.Debugf("neighbours: %v", err)
		return ""
	}
	for _, neigh := range neighs {
		if neigh.IP.Equal(gw) && len(neigh.HardwareAddr) > 0 {
			return network.NormalizeMAC(neigh.HardwareAddr.String())
		}
	}
	return ""
}

func (d *Detector) signal(ifname string) int {
	if d.proc == nil {
		return 0
	}
	ws, err := d.proc.Wireless()
	if err != nil {
		return 0
	}
	for _, w := range ws {
		if w.Name == ifname {
			return signalQuality(w.QualityLink)
		}
	}
	return 0
}

// Watch calls fn with the detected network on every route change,
// and every reload period if set, until ctx is done. fn is only
// called when the network differs from the previous call.
func (d *Detector) Watch(ctx context.Context, fn func(*network.Network)) error {
	updates := make(chan netlink.RouteUpdate, 16)
	subOpts := netlink.RouteSubscribeOptions{
		ErrorCallback: func(err error) {
			d.options.logger.Warnf("route subscription: %v", err)
		},
	}
	if d.ns != nil {
		subOpts.Namespace = d.ns
	}
	if err := netlink.RouteSubscribeWithOptions(updates, ctx.Done(), subOpts); err != nil {
		return err
	}

	var tick <-chan time.Time
	if d.options.reload > 0 {
		ticker := time.NewTicker(d.options.reload)
		defer ticker.Stop()
		tick = ticker.C
	}

	t := &tracker{detect: d.Detect, fn: fn, logger: d.options.logger}
	t.update(ctx)

	debounce := time.NewTimer(d.options.debounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return ctx.Err()
			}
			debounce.Reset(d.options.debounce)
		case <-debounce.C:
			t.update(ctx)
		case <-tick:
			t.update(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Detector) Close() error {
	d.handle.Delete()
	if d.ns != nil {
		return d.ns.Close()
	}
	return nil
}

func isZeroMask(m net.IPMask) bool {
	for _, b := range m {
		if b != 0 {
			return false
		}
	}
	return true
}
