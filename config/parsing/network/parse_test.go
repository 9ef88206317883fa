package network

import (
	"testing"

	"github.com/netwarden/warden/config"
	"github.com/netwarden/warden/network"
	"github.com/netwarden/warden/rule"
	"github.com/netwarden/warden/trust"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNetworks(t *testing.T) {
	disabled := false
	cfgs := []*config.NetworkConfig{
		{
			ID:   "home",
			Name: "Home",
			Identifiers: []*config.IdentifierConfig{
				{Type: "name", Value: "HomeWiFi"},
				{Type: "BSSID", Value: "aa:bb:cc:dd:ee:ff"},
			},
		},
		{
			Name:    "Office",
			Enabled: &disabled,
			Level:   "Restricted",
			Identifiers: []*config.IdentifierConfig{
				{Type: "all", All: []*config.IdentifierConfig{
					{Type: "subnet", Value: "10.0.0.0/8"},
					{Type: "gateway", Value: "10.0.0.1"},
				}},
			},
			Rules: []*config.RuleConfig{{Target: "Slack", Action: "allow"}},
		},
		nil,
	}

	networks, err := ParseNetworks(cfgs)
	require.NoError(t, err)
	require.Len(t, networks, 2)

	home := networks[0]
	assert.Equal(t, "home", home.ID)
	assert.True(t, home.Enabled)
	assert.Equal(t, []network.Identifier{network.Name("HomeWiFi"), network.HardwareAddr("aa:bb:cc:dd:ee:ff")}, home.Identifiers)

	office := networks[1]
	assert.NotEmpty(t, office.ID)
	assert.False(t, office.Enabled)
	assert.Equal(t, trust.LevelRestricted, office.Level)
	assert.Equal(t, []rule.Rule{{Target: "Slack", Action: rule.ActionAllow}}, office.Rules)
	assert.True(t, network.MatchAny(office.Identifiers, &network.Network{Addrs: []string{"10.9.9.9"}, Gateway: "10.0.0.1"}))

	// round trip
	again, err := ParseNetworks(FormatNetworks(networks))
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, FormatNetworks(networks), FormatNetworks(again))
	assert.Equal(t, "all(subnet=10.0.0.0/8, gateway=10.0.0.1)", again[1].Identifiers[0].String())
}

func TestParseNetworksInvalid(t *testing.T) {
	tests := [][]*config.NetworkConfig{
		{{Name: "a", Identifiers: []*config.IdentifierConfig{{Type: "bssid", Value: "zz"}}}},
		{{Name: "a", Identifiers: []*config.IdentifierConfig{{Type: "ssid", Value: "x"}}}},
		{{Name: "a", Rules: []*config.RuleConfig{{Target: "x", Action: "deny"}}}},
	}
	for _, cfgs := range tests {
		_, err := ParseNetworks(cfgs)
		assert.Error(t, err)
	}
}

func TestParseNetworksNestedAll(t *testing.T) {
	cfgs := []*config.NetworkConfig{{
		Name: "Lab",
		Identifiers: []*config.IdentifierConfig{
			{Type: "ALL", All: []*config.IdentifierConfig{
				{Type: "interface", Value: "eth1"},
				{Type: "all", All: []*config.IdentifierConfig{
					{Type: "subnet", Value: "192.168.50.0", Prefix: 24},
					{Type: "gateway", Value: "192.168.50.1"},
				}},
				nil,
			}},
		},
	}}

	networks, err := ParseNetworks(cfgs)
	require.NoError(t, err)
	require.Len(t, networks, 1)
	ids := networks[0].Identifiers
	require.Len(t, ids, 1)
	assert.Equal(t, "all(interface=eth1, all(subnet=192.168.50.0/24, gateway=192.168.50.1))", ids[0].String())

	lab := &network.Network{Interface: "eth1", Addrs: []string{"192.168.50.20"}, Gateway: "192.168.50.1"}
	assert.True(t, network.MatchAny(ids, lab))
	lab.Gateway = "192.168.50.254"
	assert.False(t, network.MatchAny(ids, lab))

	cfgs[0].Identifiers[0].All[1].All[1].Value = "not-an-ip"
	_, err = ParseNetworks(cfgs)
	assert.ErrorIs(t, err, network.ErrInvalidIdentifier)
}
