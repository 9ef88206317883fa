package trust

import (
	"strings"
	"time"

	"github.com/netwarden/warden/network"
	"github.com/netwarden/warden/rule"
)

// State is the outcome of a trust evaluation. A State is immutable once published.
type State struct {
	Trusted bool   `json:"trusted"`
	Level   Level  `json:"level,omitempty"`
	Reason  string `json:"reason"`
	// Public is set when the network looks like a public hotspot.
	Public      bool             `json:"public,omitempty"`
	NetworkID   string           `json:"networkId,omitempty"`
	NetworkName string           `json:"networkName,omitempty"`
	Network     *network.Network `json:"network,omitempty"`
	Since       time.Time        `json:"since"`

	overrides *rule.RuleSet
}

// Rule converts s into the trust input of the rule engine.
func (s *State) Rule() rule.Trust {
	if s == nil {
		return rule.Trust{}
	}
	name := s.NetworkName
	if name == "" {
		name = s.Network.Label()
	}
	return rule.Trust{
		Trusted:    s.Trusted,
		Restricted: s.Level == LevelRestricted,
		Network:    name,
		Overrides:  s.overrides,
	}
}

var publicKeywords = []string{
	"public", "guest", "hotel", "airport", "free", "cafe", "starbucks", "wifi-free",
}

// IsPublic reports whether n looks like a public Wi-Fi network.
func IsPublic(n *network.Network) bool {
	if n == nil {
		return false
	}
	name := strings.ToLower(n.Name)
	for _, kw := range publicKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return n.Kind == network.KindWiFi && n.HardwareAddr == ""
}

func evaluate(configs []compiledConfig, n *network.Network) State {
	if n == nil {
		return State{Reason: "no network"}
	}
	for i := range configs {
		cfg := &configs[i]
		if !cfg.Enabled || !network.MatchAny(cfg.Identifiers, n) {
			continue
		}
		reason := "matched trusted network " + cfg.label()
		if cfg.Level == LevelRestricted {
			reason = "matched restricted network " + cfg.label()
		}
		return State{
			Trusted:     true,
			Level:       cfg.Level,
			Reason:      reason,
			NetworkID:   cfg.ID,
			NetworkName: cfg.label(),
			Network:     n,
			overrides:   cfg.overrides,
		}
	}

	switch {
	case IsPublic(n):
		return State{Reason: "public network", Public: true, Network: n}
	case n.Kind == network.KindCellular:
		return State{Reason: "cellular network", Network: n}
	}
	return State{Reason: "unknown network", Network: n}
}
