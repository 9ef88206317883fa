// Package loader assembles a Filter from configuration.
package loader

import (
	"fmt"

	"github.com/go-gost/core/logger"
	"github.com/netwarden/warden/cache"
	"github.com/netwarden/warden/config"
	"github.com/netwarden/warden/config/parsing"
	logger_parser "github.com/netwarden/warden/config/parsing/logger"
	network_parser "github.com/netwarden/warden/config/parsing/network"
	rule_parser "github.com/netwarden/warden/config/parsing/rule"
	"github.com/netwarden/warden/filter"
	"github.com/netwarden/warden/observer"
	"github.com/netwarden/warden/process"
	"github.com/netwarden/warden/rule"
	"github.com/netwarden/warden/trust"
)

type options struct {
	detector  trust.Detector
	inspector process.Inspector
	logger    logger.Logger
}

type Option func(opts *options)

func DetectorOption(d trust.Detector) Option {
	return func(opts *options) {
		opts.detector = d
	}
}

// InspectorOption replaces the platform process inspector.
func InspectorOption(i process.Inspector) Option {
	return func(opts *options) {
		opts.inspector = i
	}
}

// LoggerOption skips installing the configured default logger.
func LoggerOption(logger logger.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// Load installs the configured logger and builds a Filter from cfg.
func Load(cfg *config.Config, opts ...Option) (*filter.Filter, error) {
	var options options
	for _, opt := range opts {
		opt(&options)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	log := options.logger
	if log == nil {
		logCfg := cfg.Log
		if logCfg == nil {
			logCfg = &config.LogConfig{}
		}
		log = logger_parser.ParseLogger(&config.LoggerConfig{Log: logCfg})
		logger.SetDefault(log)
	}

	engineCfg := cfg.Engine
	if engineCfg == nil {
		engineCfg = &config.EngineConfig{}
	}
	cacheCfg := engineCfg.Cache
	if cacheCfg == nil {
		cacheCfg = &config.CacheConfig{}
	}
	policy, err := cache.ParsePolicy(cacheCfg.Eviction)
	if err != nil {
		return nil, err
	}

	var burst uint64
	if engineCfg.BurstThreshold != "" {
		if burst, err = parsing.ParseSize(engineCfg.BurstThreshold); err != nil {
			return nil, fmt.Errorf("burst threshold: %w", err)
		}
	}

	networks, err := network_parser.ParseNetworks(cfg.Networks)
	if err != nil {
		return nil, err
	}
	rules, err := rule_parser.ParseRules(cfg.Rules)
	if err != nil {
		return nil, err
	}

	inspector := options.inspector
	if inspector == nil {
		if inspector, err = process.NewInspector(); err != nil {
			log.Warnf("process inspector: %v, processes will be unknown", err)
			inspector = nil
		}
	}

	resolver := process.NewResolver(inspector,
		process.CacheOption(cache.New[int, process.Identity](cacheCfg.Identities, cache.PolicyOption(policy))),
		process.LoggerOption(log.WithFields(map[string]any{"kind": "process"})),
	)
	grouperOpts := []process.GrouperOption{
		process.GroupCacheSizeOption(cacheCfg.Groups),
	}
	if finder, ok := inspector.(process.AppFinder); ok {
		grouperOpts = append(grouperOpts, process.AppFinderOption(finder))
	}

	obsOpts := []observer.Option{
		observer.HistoryOption(engineCfg.History),
		observer.MaxFlowsOption(engineCfg.MaxFlows),
		observer.LoggerOption(log.WithFields(map[string]any{"kind": "observer"})),
	}
	if burst > 0 {
		obsOpts = append(obsOpts, observer.BurstThresholdOption(burst))
	}

	trustOpts := []trust.Option{
		trust.LoggerOption(log.WithFields(map[string]any{"kind": "trust"})),
	}
	if options.detector != nil {
		trustOpts = append(trustOpts, trust.DetectorOption(options.detector))
	}
	trustEngine := trust.NewEngine(trustOpts...)
	if err := trustEngine.SetNetworks(networks); err != nil {
		return nil, err
	}

	filterOpts := []filter.Option{
		filter.TrustEngineOption(trustEngine),
		filter.RuleEngineOption(rule.NewEngine(rule.LoggerOption(log.WithFields(map[string]any{"kind": "rule"})))),
		filter.ResolverOption(resolver),
		filter.GrouperOption(process.NewGrouper(grouperOpts...)),
		filter.ObserverOption(observer.New(obsOpts...)),
		filter.DecisionCacheOption(cacheCfg.Decisions, policy),
		filter.LoggerOption(log.WithFields(map[string]any{"kind": "filter"})),
	}
	if engineCfg.Enabled != nil {
		filterOpts = append(filterOpts, filter.EnabledOption(*engineCfg.Enabled))
	}
	if engineCfg.LatencyBudget > 0 {
		filterOpts = append(filterOpts, filter.LatencyBudgetOption(engineCfg.LatencyBudget))
	}
	if len(engineCfg.ExemptHosts) > 0 {
		filterOpts = append(filterOpts, filter.ExemptHostsOption(engineCfg.ExemptHosts))
	}
	filterOpts = append(filterOpts, rule_parser.ParseSources(cfg.RuleSources)...)

	f := filter.New(filterOpts...)
	if err := f.UpdateRules(rules); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Apply pushes the reloadable parts of cfg into a running Filter:
// trusted networks, user rules and the enabled flag.
// Cache sizes and rule sources take effect on restart only.
func Apply(f *filter.Filter, cfg *config.Config) error {
	if f == nil || cfg == nil {
		return nil
	}

	networks, err := network_parser.ParseNetworks(cfg.Networks)
	if err != nil {
		return err
	}
	rules, err := rule_parser.ParseRules(cfg.Rules)
	if err != nil {
		return err
	}

	if err := f.UpdateNetworks(networks); err != nil {
		return err
	}
	if err := f.UpdateRules(rules); err != nil {
		return err
	}
	if cfg.Engine != nil && cfg.Engine.Enabled != nil {
		f.SetEnabled(*cfg.Engine.Enabled)
	}
	return nil
}
