// Package trust decides whether the attached network is trusted.
package trust

import (
	"errors"
	"fmt"
	"strings"

	"github.com/netwarden/warden/network"
	"github.com/netwarden/warden/rule"
)

var (
	ErrInvalidNetwork = errors.New("trust: invalid network config")
	ErrNoDetector     = errors.New("trust: no network detector")
)

type Level string

const (
	LevelTrusted Level = "trusted"
	// LevelRestricted networks are trusted but flows are still evaluated against rules.
	LevelRestricted Level = "restricted"
)

// NetworkConfig is a configured trusted network.
// It matches when any of its identifiers matches.
type NetworkConfig struct {
	ID          string
	Name        string
	Identifiers []network.Identifier
	Enabled     bool
	Level       Level
	// Rules override the user rules while this network is attached.
	Rules []rule.Rule
}

func (c *NetworkConfig) label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

type compiledConfig struct {
	NetworkConfig
	overrides *rule.RuleSet
}

func compile(cfgs []NetworkConfig) ([]compiledConfig, error) {
	ids := make(map[string]struct{}, len(cfgs))
	compiled := make([]compiledConfig, 0, len(cfgs))
	for i, cfg := range cfgs {
		if cfg.ID == "" && cfg.Name == "" {
			return nil, fmt.Errorf("%w: network #%d has neither id nor name", ErrInvalidNetwork, i)
		}
		if cfg.ID == "" {
			cfg.ID = cfg.Name
		}
		if _, ok := ids[cfg.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidNetwork, cfg.ID)
		}
		ids[cfg.ID] = struct{}{}

		switch Level(strings.ToLower(string(cfg.Level))) {
		case "", LevelTrusted:
			cfg.Level = LevelTrusted
		case LevelRestricted:
			cfg.Level = LevelRestricted
		default:
			return nil, fmt.Errorf("%w: network %s: level %q", ErrInvalidNetwork, cfg.ID, cfg.Level)
		}

		overrides, err := rule.Compile(cfg.Rules)
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", cfg.ID, err)
		}
		compiled = append(compiled, compiledConfig{
			NetworkConfig: cfg,
			overrides:     overrides,
		})
	}
	return compiled, nil
}
