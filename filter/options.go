package filter

import (
	"time"

	"github.com/go-gost/core/logger"
	"github.com/netwarden/warden/cache"
	"github.com/netwarden/warden/internal/loader"
	"github.com/netwarden/warden/observer"
	"github.com/netwarden/warden/process"
	"github.com/netwarden/warden/rule"
	"github.com/netwarden/warden/trust"
)

const (
	DefaultLatencyBudget = time.Millisecond
	DefaultWarnInterval  = time.Minute
)

// DefaultExemptHosts are never filtered.
var DefaultExemptHosts = []string{
	"localhost",
	"127.0.0.0/8",
	"::1/128",
}

type options struct {
	enabled       bool
	latencyBudget time.Duration
	decisionCache int
	cachePolicy   cache.Policy
	exemptHosts   []string
	exemptPIDs    []int

	trust    *trust.Engine
	rules    *rule.Engine
	resolver *process.Resolver
	grouper  *process.Grouper
	observer *observer.Observer

	fileLoader  loader.Loader
	redisLoader loader.Loader
	httpLoader  loader.Loader
	period      time.Duration

	logger logger.Logger
}

type Option func(opts *options)

func EnabledOption(b bool) Option {
	return func(opts *options) {
		opts.enabled = b
	}
}

// LatencyBudgetOption sets the decision time above which a warning is logged.
func LatencyBudgetOption(d time.Duration) Option {
	return func(opts *options) {
		opts.latencyBudget = d
	}
}

func DecisionCacheOption(size int, policy cache.Policy) Option {
	return func(opts *options) {
		opts.decisionCache = size
		opts.cachePolicy = policy
	}
}

// ExemptHostsOption replaces the destinations that bypass filtering.
// Entries are domains (.example.com for subdomains), IP addresses or CIDR prefixes.
func ExemptHostsOption(hosts []string) Option {
	return func(opts *options) {
		opts.exemptHosts = hosts
	}
}

// ExemptPIDsOption adds process ids whose flows bypass filtering.
func ExemptPIDsOption(pids ...int) Option {
	return func(opts *options) {
		opts.exemptPIDs = append(opts.exemptPIDs, pids...)
	}
}

func TrustEngineOption(e *trust.Engine) Option {
	return func(opts *options) {
		opts.trust = e
	}
}

func RuleEngineOption(e *rule.Engine) Option {
	return func(opts *options) {
		opts.rules = e
	}
}

func ResolverOption(r *process.Resolver) Option {
	return func(opts *options) {
		opts.resolver = r
	}
}

func GrouperOption(g *process.Grouper) Option {
	return func(opts *options) {
		opts.grouper = g
	}
}

func ObserverOption(o *observer.Observer) Option {
	return func(opts *options) {
		opts.observer = o
	}
}

func FileLoaderOption(l loader.Loader) Option {
	return func(opts *options) {
		opts.fileLoader = l
	}
}

func RedisLoaderOption(l loader.Loader) Option {
	return func(opts *options) {
		opts.redisLoader = l
	}
}

func HTTPLoaderOption(l loader.Loader) Option {
	return func(opts *options) {
		opts.httpLoader = l
	}
}

// ReloadPeriodOption sets the reload period of the rule sources.
func ReloadPeriodOption(period time.Duration) Option {
	return func(opts *options) {
		opts.period = period
	}
}

func LoggerOption(logger logger.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}
