package rule

import (
	"fmt"
	"strings"

	"github.com/netwarden/warden/config"
	"github.com/netwarden/warden/filter"
	"github.com/netwarden/warden/internal/loader"
	"github.com/netwarden/warden/rule"
)

func ParseRules(cfgs []*config.RuleConfig) ([]rule.Rule, error) {
	var rules []rule.Rule
	for i, cfg := range cfgs {
		if cfg == nil {
			continue
		}
		action, err := rule.ParseAction(cfg.Action)
		if err != nil {
			return nil, fmt.Errorf("rule #%d: %w", i, err)
		}
		r := rule.Rule{
			Target:   strings.TrimSpace(cfg.Target),
			Action:   action,
			Priority: cfg.Priority,
			Reason:   cfg.Reason,
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule #%d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func FormatRules(rules []rule.Rule) []*config.RuleConfig {
	var cfgs []*config.RuleConfig
	for _, r := range rules {
		cfgs = append(cfgs, &config.RuleConfig{
			Target:   r.Target,
			Action:   string(r.Action),
			Priority: r.Priority,
			Reason:   r.Reason,
		})
	}
	return cfgs
}

// ParseSources converts the rule sources into filter options.
func ParseSources(cfg *config.RuleSourceConfig) []filter.Option {
	if cfg == nil {
		return nil
	}

	opts := []filter.Option{
		filter.ReloadPeriodOption(cfg.Reload),
	}
	if cfg.File != nil && cfg.File.Path != "" {
		opts = append(opts, filter.FileLoaderOption(loader.FileLoader(cfg.File.Path)))
	}
	if cfg.Redis != nil && cfg.Redis.Addr != "" {
		redisOpts := []loader.RedisLoaderOption{
			loader.DBRedisLoaderOption(cfg.Redis.DB),
			loader.UsernameRedisLoaderOption(cfg.Redis.Username),
			loader.PasswordRedisLoaderOption(cfg.Redis.Password),
			loader.KeyRedisLoaderOption(cfg.Redis.Key),
		}
		switch strings.ToLower(cfg.Redis.Type) {
		case "list":
			opts = append(opts, filter.RedisLoaderOption(loader.RedisListLoader(cfg.Redis.Addr, redisOpts...)))
		default:
			opts = append(opts, filter.RedisLoaderOption(loader.RedisStringLoader(cfg.Redis.Addr, redisOpts...)))
		}
	}
	if cfg.HTTP != nil && cfg.HTTP.URL != "" {
		opts = append(opts, filter.HTTPLoaderOption(loader.HTTPLoader(
			cfg.HTTP.URL,
			loader.TimeoutHTTPLoaderOption(cfg.HTTP.Timeout),
		)))
	}
	return opts
}
