package reporter

import (
	"net/http"

	"github.com/netwarden/warden/config"
	"github.com/netwarden/warden/config/parsing"
	"github.com/netwarden/warden/reporter"
)

// ParseExporter builds an exporter for the configured sinks.
// It returns nil when no sink is configured.
func ParseExporter(src reporter.Source, cfg *config.ReporterConfig) (*reporter.Exporter, error) {
	if cfg == nil {
		return nil, nil
	}

	var sinks []reporter.Sink
	if cfg.HTTP != nil && cfg.HTTP.URL != "" {
		header := http.Header{}
		for k, v := range cfg.HTTP.Header {
			header.Set(k, v)
		}
		sinks = append(sinks, reporter.HTTPSink(cfg.HTTP.URL,
			reporter.TimeoutHTTPSinkOption(cfg.HTTP.Timeout),
			reporter.HeaderHTTPSinkOption(header),
		))
	}
	if cfg.Redis != nil && cfg.Redis.Addr != "" {
		sinks = append(sinks, reporter.RedisSink(cfg.Redis.Addr,
			reporter.DBRedisSinkOption(cfg.Redis.DB),
			reporter.UsernameRedisSinkOption(cfg.Redis.Username),
			reporter.PasswordRedisSinkOption(cfg.Redis.Password),
			reporter.KeyRedisSinkOption(cfg.Redis.Key),
			reporter.MaxLenRedisSinkOption(cfg.Redis.MaxLen),
		))
	}
	if cfg.SQLite != nil && cfg.SQLite.Path != "" {
		sink, err := reporter.SQLiteSink(cfg.SQLite.Path)
		if err != nil {
			for _, s := range sinks {
				s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, sink)
	}
	if len(sinks) == 0 {
		return nil, nil
	}

	return reporter.NewExporter(src,
		reporter.IntervalOption(cfg.Interval),
		reporter.SinksOption(sinks...),
		reporter.LoggerOption(parsing.Logger().WithFields(map[string]any{"kind": "reporter"})),
	), nil
}
