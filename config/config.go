package config

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	v = viper.GetViper()
)

func init() {
	v.SetConfigName("warden")
	v.AddConfigPath("/etc/warden/")
	v.AddConfigPath("$HOME/.warden/")
	v.AddConfigPath(".")
}

var (
	global    = &Config{}
	globalMux sync.RWMutex
)

func Global() *Config {
	globalMux.RLock()
	defer globalMux.RUnlock()

	cfg := &Config{}
	*cfg = *global
	return cfg
}

func Set(c *Config) {
	globalMux.Lock()
	defer globalMux.Unlock()

	global = c
}

func OnUpdate(f func(c *Config) error) error {
	globalMux.Lock()
	defer globalMux.Unlock()

	return f(global)
}

// File returns the path of the config file in use, if any.
func File() string {
	return v.ConfigFileUsed()
}

type LogConfig struct {
	Output   string             `yaml:",omitempty" json:"output,omitempty"`
	Level    string             `yaml:",omitempty" json:"level,omitempty"`
	Format   string             `yaml:",omitempty" json:"format,omitempty"`
	Rotation *LogRotationConfig `yaml:",omitempty" json:"rotation,omitempty"`
}

type LogRotationConfig struct {
	// MaxSize is the maximum size in megabytes of the log file before it gets
	// rotated. It defaults to 100 megabytes.
	MaxSize int `yaml:"maxSize,omitempty" json:"maxSize,omitempty"`
	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `yaml:"maxAge,omitempty" json:"maxAge,omitempty"`
	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int  `yaml:"maxBackups,omitempty" json:"maxBackups,omitempty"`
	LocalTime  bool `yaml:"localTime,omitempty" json:"localTime,omitempty"`
	Compress   bool `yaml:"compress,omitempty" json:"compress,omitempty"`
}

type LoggerConfig struct {
	Name string     `json:"name"`
	Log  *LogConfig `yaml:",omitempty" json:"log,omitempty"`
}

type AuthConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type APIConfig struct {
	Addr       string      `json:"addr"`
	PathPrefix string      `yaml:"pathPrefix,omitempty" json:"pathPrefix,omitempty"`
	AccessLog  bool        `yaml:"accesslog,omitempty" json:"accesslog,omitempty"`
	Auth       *AuthConfig `yaml:",omitempty" json:"auth,omitempty"`
	// AllowOrigins are the CORS origins, all origins when empty.
	AllowOrigins []string `yaml:"allowOrigins,omitempty" json:"allowOrigins,omitempty"`
}

type MetricsConfig struct {
	Addr string      `json:"addr"`
	Path string      `yaml:",omitempty" json:"path,omitempty"`
	Auth *AuthConfig `yaml:",omitempty" json:"auth,omitempty"`
}

type CacheConfig struct {
	Decisions  int `yaml:",omitempty" json:"decisions,omitempty"`
	Identities int `yaml:",omitempty" json:"identities,omitempty"`
	Groups     int `yaml:",omitempty" json:"groups,omitempty"`
	// Eviction is lru (default) or lfu.
	Eviction string `yaml:",omitempty" json:"eviction,omitempty"`
}

type EngineConfig struct {
	Enabled       *bool         `yaml:",omitempty" json:"enabled,omitempty"`
	LatencyBudget time.Duration `yaml:"latencyBudget,omitempty" json:"latencyBudget,omitempty"`
	Cache         *CacheConfig  `yaml:",omitempty" json:"cache,omitempty"`
	History       int           `yaml:",omitempty" json:"history,omitempty"`
	MaxFlows      int           `yaml:"maxFlows,omitempty" json:"maxFlows,omitempty"`
	// BurstThreshold is a size such as 10MiB.
	BurstThreshold string   `yaml:"burstThreshold,omitempty" json:"burstThreshold,omitempty"`
	ExemptHosts    []string `yaml:"exemptHosts,omitempty" json:"exemptHosts,omitempty"`
}

type IdentifierConfig struct {
	Type   string              `json:"type"`
	Value  string              `yaml:",omitempty" json:"value,omitempty"`
	Prefix int                 `yaml:",omitempty" json:"prefix,omitempty"`
	All    []*IdentifierConfig `yaml:",omitempty" json:"all,omitempty"`
}

type RuleConfig struct {
	Target   string `json:"target"`
	Action   string `json:"action"`
	Priority int    `yaml:",omitempty" json:"priority,omitempty"`
	Reason   string `yaml:",omitempty" json:"reason,omitempty"`
}

type NetworkConfig struct {
	ID          string              `yaml:",omitempty" json:"id,omitempty"`
	Name        string              `json:"name"`
	Identifiers []*IdentifierConfig `json:"identifiers"`
	Enabled     *bool               `yaml:",omitempty" json:"enabled,omitempty"`
	// Level is trusted (default) or restricted.
	Level string        `yaml:",omitempty" json:"level,omitempty"`
	Rules []*RuleConfig `yaml:",omitempty" json:"rules,omitempty"`
}

type FileLoader struct {
	Path string `json:"path"`
}

type RedisLoader struct {
	Addr     string `json:"addr"`
	DB       int    `yaml:",omitempty" json:"db,omitempty"`
	Username string `yaml:",omitempty" json:"username,omitempty"`
	Password string `yaml:",omitempty" json:"password,omitempty"`
	Key      string `yaml:",omitempty" json:"key,omitempty"`
	// Type is list or string (default).
	Type string `yaml:",omitempty" json:"type,omitempty"`
}

type HTTPLoader struct {
	URL     string        `yaml:"url" json:"url"`
	Timeout time.Duration `yaml:",omitempty" json:"timeout,omitempty"`
}

type RuleSourceConfig struct {
	Reload time.Duration `yaml:",omitempty" json:"reload,omitempty"`
	File   *FileLoader   `yaml:",omitempty" json:"file,omitempty"`
	Redis  *RedisLoader  `yaml:",omitempty" json:"redis,omitempty"`
	HTTP   *HTTPLoader   `yaml:"http,omitempty" json:"http,omitempty"`
}

type HTTPSinkConfig struct {
	URL     string            `yaml:"url" json:"url"`
	Timeout time.Duration     `yaml:",omitempty" json:"timeout,omitempty"`
	Header  map[string]string `yaml:",omitempty" json:"header,omitempty"`
}

type RedisSinkConfig struct {
	Addr     string `json:"addr"`
	DB       int    `yaml:",omitempty" json:"db,omitempty"`
	Username string `yaml:",omitempty" json:"username,omitempty"`
	Password string `yaml:",omitempty" json:"password,omitempty"`
	Key      string `yaml:",omitempty" json:"key,omitempty"`
	MaxLen   int64  `yaml:"maxLen,omitempty" json:"maxLen,omitempty"`
}

type SQLiteSinkConfig struct {
	Path string `json:"path"`
}

type ReporterConfig struct {
	Interval time.Duration     `yaml:",omitempty" json:"interval,omitempty"`
	HTTP     *HTTPSinkConfig   `yaml:"http,omitempty" json:"http,omitempty"`
	Redis    *RedisSinkConfig  `yaml:",omitempty" json:"redis,omitempty"`
	SQLite   *SQLiteSinkConfig `yaml:"sqlite,omitempty" json:"sqlite,omitempty"`
}

type NetwatchConfig struct {
	Enabled bool `json:"enabled"`
	// Namespace is the name of a network namespace to observe instead of the current one.
	Namespace string        `yaml:",omitempty" json:"namespace,omitempty"`
	Reload    time.Duration `yaml:",omitempty" json:"reload,omitempty"`
}

type Config struct {
	Log         *LogConfig        `yaml:",omitempty" json:"log,omitempty"`
	API         *APIConfig        `yaml:",omitempty" json:"api,omitempty"`
	Metrics     *MetricsConfig    `yaml:",omitempty" json:"metrics,omitempty"`
	Engine      *EngineConfig     `yaml:",omitempty" json:"engine,omitempty"`
	Networks    []*NetworkConfig  `yaml:",omitempty" json:"networks,omitempty"`
	Rules       []*RuleConfig     `yaml:",omitempty" json:"rules,omitempty"`
	RuleSources *RuleSourceConfig `yaml:"ruleSources,omitempty" json:"ruleSources,omitempty"`
	Reporter    *ReporterConfig   `yaml:",omitempty" json:"reporter,omitempty"`
	Netwatch    *NetwatchConfig   `yaml:",omitempty" json:"netwatch,omitempty"`
}

func (c *Config) Load() error {
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	return v.Unmarshal(c)
}

// Read reads the config from r, format is yaml or json.
func (c *Config) Read(r io.Reader, format string) error {
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return err
	}

	return v.Unmarshal(c)
}

func (c *Config) ReadFile(file string) error {
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	return v.Unmarshal(c)
}

func (c *Config) Write(w io.Writer, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	case "yaml":
		fallthrough
	default:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		enc.SetIndent(2)

		return enc.Encode(c)
	}
}
