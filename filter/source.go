package filter

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/netwarden/warden/internal/loader"
	"github.com/netwarden/warden/rule"
)

func (f *Filter) hasSources() bool {
	return f.options.fileLoader != nil ||
		f.options.redisLoader != nil ||
		f.options.httpLoader != nil
}

func (f *Filter) periodReload(ctx context.Context) error {
	period := f.options.period
	if period < time.Second {
		period = time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := f.reload(ctx); err != nil {
				f.options.logger.Warnf("reload: %v", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// reload loads the rules of every source. A source failing to load keeps
// contributing nothing, an invalid rule rejects the whole reload.
func (f *Filter) reload(ctx context.Context) error {
	loaded, err := f.load(ctx)
	if err != nil {
		return err
	}

	f.rulesMu.Lock()
	defer f.rulesMu.Unlock()

	if err := f.applyRules(f.staticRules, loaded); err != nil {
		return err
	}
	f.loadedRules = loaded
	return nil
}

func (f *Filter) load(ctx context.Context) (rules []rule.Rule, err error) {
	sources := []struct {
		name   string
		loader loader.Loader
	}{
		{"file", f.options.fileLoader},
		{"redis", f.options.redisLoader},
		{"http", f.options.httpLoader},
	}
	for _, src := range sources {
		if src.loader == nil {
			continue
		}
		v, err := f.loadSource(ctx, src.loader)
		if err != nil {
			var ie *invalidError
			if errors.As(err, &ie) {
				return nil, err
			}
			f.options.logger.Warnf("%s loader: %v", src.name, err)
			continue
		}
		rules = append(rules, v...)
	}

	f.options.logger.Debugf("load rules %d", len(rules))
	return
}

type invalidError struct {
	err error
}

func (e *invalidError) Error() string { return e.err.Error() }
func (e *invalidError) Unwrap() error { return e.err }

func (f *Filter) loadSource(ctx context.Context, l loader.Loader) ([]rule.Rule, error) {
	if lister, ok := l.(loader.Lister); ok {
		list, err := lister.List(ctx)
		if err != nil {
			return nil, err
		}
		rules := make([]rule.Rule, 0, len(list))
		for _, s := range list {
			r, err := rule.ParseLine(s)
			if err != nil {
				return nil, &invalidError{err: err}
			}
			rules = append(rules, r)
		}
		return rules, nil
	}

	r, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	return parseRules(r)
}

func parseRules(r io.Reader) ([]rule.Rule, error) {
	rules, err := rule.Parse(r)
	if err != nil {
		return nil, &invalidError{err: err}
	}
	return rules, nil
}
