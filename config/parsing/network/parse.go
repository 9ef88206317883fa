package network

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/netwarden/warden/config"
	rule_parser "github.com/netwarden/warden/config/parsing/rule"
	"github.com/netwarden/warden/network"
	"github.com/netwarden/warden/trust"
)

// ParseNetworks converts the configured trusted networks.
// Networks without an id get a generated one.
func ParseNetworks(cfgs []*config.NetworkConfig) ([]trust.NetworkConfig, error) {
	networks := make([]trust.NetworkConfig, 0, len(cfgs))
	for i, cfg := range cfgs {
		if cfg == nil {
			continue
		}
		n, err := ParseNetwork(cfg)
		if err != nil {
			return nil, fmt.Errorf("network #%d: %w", i, err)
		}
		networks = append(networks, n)
	}
	return networks, nil
}

func ParseNetwork(cfg *config.NetworkConfig) (trust.NetworkConfig, error) {
	ids, err := network.ParseIdentifiers(specs(cfg.Identifiers))
	if err != nil {
		return trust.NetworkConfig{}, err
	}
	rules, err := rule_parser.ParseRules(cfg.Rules)
	if err != nil {
		return trust.NetworkConfig{}, err
	}

	id := strings.TrimSpace(cfg.ID)
	if id == "" {
		id = uuid.NewString()
	}
	enabled := true
	if cfg.Enabled != nil {
		enabled = *cfg.Enabled
	}

	return trust.NetworkConfig{
		ID:          id,
		Name:        cfg.Name,
		Identifiers: ids,
		Enabled:     enabled,
		Level:       trust.Level(strings.ToLower(cfg.Level)),
		Rules:       rules,
	}, nil
}

func specs(cfgs []*config.IdentifierConfig) []network.IdentifierSpec {
	out := make([]network.IdentifierSpec, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg == nil {
			continue
		}
		out = append(out, network.IdentifierSpec{
			Type:   network.IdentifierType(strings.ToLower(cfg.Type)),
			Value:  cfg.Value,
			Prefix: cfg.Prefix,
			All:    specs(cfg.All),
		})
	}
	return out
}

// FormatNetworks is the inverse of ParseNetworks.
func FormatNetworks(networks []trust.NetworkConfig) []*config.NetworkConfig {
	cfgs := make([]*config.NetworkConfig, 0, len(networks))
	for _, n := range networks {
		enabled := n.Enabled
		cfgs = append(cfgs, &config.NetworkConfig{
			ID:          n.ID,
			Name:        n.Name,
			Identifiers: identifierConfigs(network.SpecsOf(n.Identifiers)),
			Enabled:     &enabled,
			Level:       string(n.Level),
			Rules:       rule_parser.FormatRules(n.Rules),
		})
	}
	return cfgs
}

func identifierConfigs(specs []network.IdentifierSpec) []*config.IdentifierConfig {
	var cfgs []*config.IdentifierConfig
	for _, spec := range specs {
		cfgs = append(cfgs, &config.IdentifierConfig{
			Type:   string(spec.Type),
			Value:  spec.Value,
			Prefix: spec.Prefix,
			All:    identifierConfigs(spec.All),
		})
	}
	return cfgs
}
