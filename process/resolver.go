package process

import (
	"path/filepath"

	"github.com/go-gost/core/logger"
	"github.com/netwarden/warden/cache"
	xlogger "github.com/netwarden/warden/logger"
)

type resolverOptions struct {
	packages PackageDetector
	cache    *cache.Cache[int, Identity]
	logger   logger.Logger
}

type ResolverOption func(opts *resolverOptions)

func PackageDetectorOption(d PackageDetector) ResolverOption {
	return func(opts *resolverOptions) {
		opts.packages = d
	}
}

// CacheOption sets the identity cache shared with the caller.
func CacheOption(c *cache.Cache[int, Identity]) ResolverOption {
	return func(opts *resolverOptions) {
		opts.cache = c
	}
}

func LoggerOption(logger logger.Logger) ResolverOption {
	return func(opts *resolverOptions) {
		opts.logger = logger
	}
}

// Resolver maps process ids to classified identities, cache first.
type Resolver struct {
	inspector Inspector
	options   resolverOptions
}

func NewResolver(inspector Inspector, opts ...ResolverOption) *Resolver {
	var options resolverOptions
	for _, opt := range opts {
		opt(&options)
	}
	if inspector == nil {
		inspector = nopInspector{}
	}
	if options.packages == nil {
		options.packages = RootPackageDetector()
	}
	if options.cache == nil {
		options.cache = cache.New[int, Identity](cache.DefaultCapacity)
	}
	if options.logger == nil {
		options.logger = xlogger.Nop()
	}

	return &Resolver{
		inspector: inspector,
		options:   options,
	}
}

// Identify never fails, unresolvable processes yield an unknown identity.
func (r *Resolver) Identify(pid int) Identity {
	if pid <= 0 {
		return Unknown(pid)
	}
	if id, ok := r.options.cache.Get(pid); ok {
		return id
	}

	id := r.resolve(pid)
	r.options.cache.Put(pid, id)
	return id
}

// IdentifyCaller resolves the process behind an opaque caller token.
func (r *Resolver) IdentifyCaller(token []byte) Identity {
	pid, err := PIDFromToken(token)
	if err != nil {
		r.options.logger.Debugf("caller token: %v", err)
		return Unknown(0)
	}
	return r.Identify(pid)
}

func (r *Resolver) resolve(pid int) (id Identity) {
	defer func() {
		if v := recover(); v != nil {
			r.options.logger.Errorf("inspect pid %d: %v", pid, v)
			id = Unknown(pid)
		}
	}()

	if app, ok := r.inspector.Application(pid); ok {
		name := app.Name
		if name == "" {
			name = filepath.Base(app.Path)
		}
		return Identity{
			Kind:     classifyApplication(app),
			Name:     name,
			BundleID: app.BundleID,
			Path:     app.Path,
			PID:      pid,
		}
	}

	if proc, ok := r.inspector.Process(pid); ok {
		name := proc.Name
		if name == "" && proc.Path != "" {
			name = filepath.Base(proc.Path)
		}
		if name == "" {
			return Unknown(pid)
		}
		return Identity{
			Kind: classifyProcess(proc, r.options.packages),
			Name: name,
			Path: proc.Path,
			PID:  pid,
		}
	}

	r.options.logger.Debugf("pid %d not found", pid)
	return Unknown(pid)
}

// Forget drops the cached identity of pid, e.g. when the process exited.
func (r *Resolver) Forget(pid int) {
	r.options.cache.Delete(pid)
}

func (r *Resolver) Purge() {
	r.options.cache.Purge()
}

func (r *Resolver) CacheStats() cache.Stats {
	return r.options.cache.Stats()
}

// Inspector returns the OS inspector backing r.
func (r *Resolver) Inspector() Inspector {
	return r.inspector
}
