package netwatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	xlogger "github.com/netwarden/warden/logger"
	"github.com/netwarden/warden/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sysfs(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	mk := func(parts ...string) {
		require.NoError(t, os.MkdirAll(filepath.Join(append([]string{root}, parts...)...), 0o755))
	}
	mk("wlp2s0", "wireless")
	mk("wlan1", "phy80211")
	mk("eno1", "device")
	mk("foo0", "device")
	mk("mbim0")
	require.NoError(t, os.WriteFile(filepath.Join(root, "mbim0", "uevent"), []byte("INTERFACE=mbim0\nDEVTYPE=wwan\n"), 0o644))
	return root
}

func TestInterfaceKind(t *testing.T) {
	root := sysfs(t)
	tests := []struct {
		name     string
		linkType string
		want     network.InterfaceKind
	}{
		{"lo", "device", network.KindLoopback},
		{"wlp2s0", "device", network.KindWiFi},
		{"wlan1", "device", network.KindWiFi},
		{"mbim0", "device", network.KindCellular},
		{"wwan0", "device", network.KindCellular},
		{"eno1", "device", network.KindEthernet},
		{"eth0", "veth", network.KindEthernet},
		{"foo0", "device", network.KindEthernet},
		{"docker0", "bridge", network.KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, interfaceKind(root, tt.name, tt.linkType))
		})
	}
}

func TestIsOverlay(t *testing.T) {
	assert.True(t, isOverlay("home", "wireguard"))
	assert.True(t, isOverlay("tun0", "tuntap"))
	assert.True(t, isOverlay("wg0", "device"))
	assert.True(t, isOverlay("tailscale0", "tun"))
	assert.False(t, isOverlay("eth0", "device"))
	assert.False(t, isOverlay("wlp2s0", "device"))
}

func TestSignalQuality(t *testing.T) {
	assert.Equal(t, 0, signalQuality(-5))
	assert.Equal(t, 50, signalQuality(35))
	assert.Equal(t, 100, signalQuality(70))
	assert.Equal(t, 100, signalQuality(90))
}

func TestSameNetwork(t *testing.T) {
	a := &network.Network{Interface: "eth0", Gateway: "10.0.0.1", Addrs: []string{"10.0.0.2/24"}}
	b := a.Clone()
	assert.True(t, sameNetwork(a, b))
	assert.True(t, sameNetwork(nil, nil))
	assert.False(t, sameNetwork(a, nil))

	b.SignalQuality = 80
	assert.True(t, sameNetwork(a, b))
	b.Addrs = []string{"10.0.0.3/24"}
	assert.False(t, sameNetwork(a, b))
}

type result struct {
	n   *network.Network
	err error
}

func TestTrackerKeepsNetworkOnError(t *testing.T) {
	home := &network.Network{Interface: "wlan0", Kind: network.KindWiFi, Gateway: "192.168.1.1"}
	office := &network.Network{Interface: "eth0", Kind: network.KindEthernet, Gateway: "10.0.0.1"}

	results := []result{
		{err: errors.New("netlink: resource temporarily unavailable")},
		{n: home},
		{n: home},
		{err: errors.New("netlink: interrupted")},
		{n: office},
		{err: ErrNoRoute},
		{err: ErrNoRoute},
		{n: office},
	}
	var i int
	var got []*network.Network
	tr := &tracker{
		detect: func(context.Context) (*network.Network, error) {
			r := results[i]
			i++
			return r.n, r.err
		},
		fn:     func(n *network.Network) { got = append(got, n) },
		logger: xlogger.Nop(),
	}
	for range results {
		tr.update(context.Background())
	}

	assert.Equal(t, []*network.Network{home, office, nil, office}, got)
}
