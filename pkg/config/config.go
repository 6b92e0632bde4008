// Package config loads the service configuration.
//
// Values come from three places, later ones winning: the built-in defaults,
// a JSON5 file (plus an optional "<name>.local.<ext>" override next to it),
// and a handful of environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/Sternrassler/beu-results/pkg/batch"
	"github.com/Sternrassler/beu-results/pkg/client"
	"github.com/Sternrassler/beu-results/pkg/logging"
	"github.com/Sternrassler/beu-results/pkg/parser"
	"github.com/Sternrassler/beu-results/pkg/peer"
	"github.com/Sternrassler/beu-results/pkg/ratelimit"
	"github.com/rs/zerolog/log"
	"github.com/titanous/json5"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Server modes.
const (
	ModeCore = "core"
	ModeEdge = "edge"
)

// Duration is a time.Duration read from "1m30s" style strings or from a
// plain number of seconds.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		v, err := time.ParseDuration(s[1 : len(s)-1])
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}

	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("duration %s: %w", s, err)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Duration(d).String())), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr"`
	Mode string `json:"mode"`
}

// PortalConfig configures access to the results portal.
type PortalConfig struct {
	// Years maps a batch year to the base URL of its result page.
	Years          map[string]string `json:"years"`
	UserAgent      string            `json:"user_agent"`
	Timeout        Duration          `json:"timeout"`
	NotFoundMarker string            `json:"not_found_marker"`
}

// RetryConfig configures portal retries.
type RetryConfig struct {
	MaxAttempts       int      `json:"max_attempts"`
	InitialBackoff    Duration `json:"initial_backoff"`
	MaxBackoff        Duration `json:"max_backoff"`
	BackoffMultiplier float64  `json:"backoff_multiplier"`
	Jitter            float64  `json:"jitter"`
}

// EdgeConfig configures the edge aggregation mode.
type EdgeConfig struct {
	// PeerURLTemplate has one %s verb for the semester token.
	PeerURLTemplate string   `json:"peer_url_template"`
	PeerTimeout     Duration `json:"peer_timeout"`
	MaxConcurrency  int      `json:"max_concurrency"`

	// Local runs sub-batches in this process instead of calling peers.
	Local bool `json:"local"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Enabled    bool     `json:"enabled"`
	RedisAddr  string   `json:"redis_addr"`
	RedisDB    int      `json:"redis_db"`
	MemorySize int      `json:"memory_size"`
	TTL        Duration `json:"ttl"`
}

// FailureBudgetConfig configures the shared portal failure budget.
// It needs Redis and is only active together with the cache.
type FailureBudgetConfig struct {
	Enabled  bool     `json:"enabled"`
	Window   Duration `json:"window"`
	Warning  int      `json:"warning"`
	Critical int      `json:"critical"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

// Config is the complete service configuration.
type Config struct {
	Server        ServerConfig        `json:"server"`
	Portal        PortalConfig        `json:"portal"`
	Retry         RetryConfig         `json:"retry"`
	Edge          EdgeConfig          `json:"edge"`
	Cache         CacheConfig         `json:"cache"`
	FailureBudget FailureBudgetConfig `json:"failure_budget"`
	Log           LogConfig           `json:"log"`

	// Layout overrides parts of the default portal layout.
	Layout *parser.Layout `json:"layout,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	retry := client.DefaultRetryConfig()
	budget := ratelimit.DefaultThresholds()

	return Config{
		Server: ServerConfig{
			Addr: ":8080",
			Mode: ModeCore,
		},
		Portal: PortalConfig{
			Years:          batch.DefaultYears(),
			UserAgent:      "beu-results/0.1.0",
			Timeout:        Duration(30 * time.Second),
			NotFoundMarker: client.NotFoundMarker,
		},
		Retry: RetryConfig{
			MaxAttempts:       retry.MaxAttempts,
			InitialBackoff:    Duration(retry.InitialBackoff),
			MaxBackoff:        Duration(retry.MaxBackoff),
			BackoffMultiplier: retry.BackoffMultiplier,
		},
		Edge: EdgeConfig{
			PeerURLTemplate: peer.DefaultURLTemplate,
			PeerTimeout:     Duration(2 * time.Minute),
			MaxConcurrency:  batch.DefaultMaxConcurrency,
		},
		Cache: CacheConfig{
			RedisAddr:  "localhost:6379",
			MemorySize: 4096,
			TTL:        Duration(6 * time.Hour),
		},
		FailureBudget: FailureBudgetConfig{
			Window:   Duration(budget.Window),
			Warning:  budget.Warning,
			Critical: budget.Critical,
		},
		Log: LogConfig{
			Level: string(logging.LevelInfo),
		},
	}
}

// Load reads path on top of the defaults. An empty path returns Default().
// A "<name>.local.<ext>" file next to path is merged over it when present.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	fileCfg, err := readFile(path)
	if err != nil {
		return cfg, err
	}
	if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
		return cfg, fmt.Errorf("merge config: %w", err)
	}
	return cfg, nil
}

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// LocalPath returns the override file that belongs to path.
func LocalPath(path string) string {
	prefix, ext := splitExt(filepath.Base(path))
	return filepath.Join(filepath.Dir(path), fmt.Sprintf("%s.local.%s", prefix, ext))
}

func readFile(path string) (Config, error) {
	var out Config
	found := false

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return out, fmt.Errorf("read config %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := json5.Unmarshal(data, &out); err != nil {
			return out, fmt.Errorf("parse config %s: %w", path, err)
		}
		found = true
	}

	localPath := LocalPath(path)
	local, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return out, fmt.Errorf("read config %s: %w", localPath, err)
	}
	if len(local) > 0 {
		var override Config
		if err := json5.Unmarshal(local, &override); err != nil {
			return out, fmt.Errorf("parse config %s: %w", localPath, err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("merge config %s: %w", localPath, err)
		}
		log.Info().Str("local", localPath).Msg("Merging config with local overrides")
		found = true
	}

	if !found {
		return out, fmt.Errorf("config %s: %w", path, os.ErrNotExist)
	}
	return out, nil
}

// ApplyEnv overrides cfg from environment variables.
// getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if port := getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if mode := getenv("MODE"); mode != "" {
		c.Server.Mode = strings.ToLower(mode)
	}
	if redisURL := getenv("REDIS_URL"); redisURL != "" {
		c.Cache.RedisAddr = redisURL
		c.Cache.Enabled = true
	}
	if level := getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if tmpl := getenv("PEER_URL_TEMPLATE"); tmpl != "" {
		c.Edge.PeerURLTemplate = tmpl
	}
	if ua := getenv("USER_AGENT"); ua != "" {
		c.Portal.UserAgent = ua
	}
}

// Validate reports every broken value, each wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Server.Addr == "" {
		bad("server.addr is required")
	}
	if c.Server.Mode != ModeCore && c.Server.Mode != ModeEdge {
		bad("server.mode must be %q or %q, got %q", ModeCore, ModeEdge, c.Server.Mode)
	}

	if len(c.Portal.Years) == 0 {
		bad("portal.years must name at least one year")
	}
	for year, base := range c.Portal.Years {
		u, err := url.Parse(base)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			bad("portal.years[%s]: %q is not an http(s) URL", year, base)
		}
	}
	if strings.TrimSpace(c.Portal.UserAgent) == "" {
		bad("portal.user_agent is required")
	}
	if c.Portal.Timeout <= 0 {
		bad("portal.timeout must be positive")
	}

	if c.Retry.MaxAttempts < 1 {
		bad("retry.max_attempts must be at least 1")
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < 0 {
		bad("retry backoff must not be negative")
	}
	if c.Retry.BackoffMultiplier < 1 {
		bad("retry.backoff_multiplier must be at least 1")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter >= 1 {
		bad("retry.jitter must be in [0, 1)")
	}

	if c.Server.Mode == ModeEdge && !c.Edge.Local {
		if strings.Count(c.Edge.PeerURLTemplate, "%s") != 1 {
			bad("edge.peer_url_template must contain exactly one %%s")
		}
	}
	if c.Edge.MaxConcurrency < 0 {
		bad("edge.max_concurrency must not be negative")
	}

	if c.Cache.Enabled {
		if c.Cache.RedisAddr == "" {
			bad("cache.redis_addr is required when the cache is enabled")
		}
		if c.Cache.TTL <= 0 {
			bad("cache.ttl must be positive")
		}
	}
	if c.Cache.MemorySize < 0 {
		bad("cache.memory_size must not be negative")
	}

	if c.FailureBudget.Enabled {
		if c.FailureBudget.Window <= 0 {
			bad("failure_budget.window must be positive")
		}
		if c.FailureBudget.Warning > 0 && c.FailureBudget.Critical > 0 && c.FailureBudget.Warning > c.FailureBudget.Critical {
			bad("failure_budget.warning must not exceed failure_budget.critical")
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		bad("log.level %q is unknown", c.Log.Level)
	}

	return errors.Join(errs...)
}

// FetcherConfig returns the portal fetcher settings.
func (c Config) FetcherConfig() client.Config {
	return client.Config{
		UserAgent:      c.Portal.UserAgent,
		Timeout:        c.Portal.Timeout.Std(),
		NotFoundMarker: c.Portal.NotFoundMarker,
		Retry: client.RetryConfig{
			MaxAttempts:       c.Retry.MaxAttempts,
			InitialBackoff:    c.Retry.InitialBackoff.Std(),
			MaxBackoff:        c.Retry.MaxBackoff.Std(),
			BackoffMultiplier: c.Retry.BackoffMultiplier,
			Jitter:            c.Retry.Jitter,
		},
	}
}

// ParserLayout returns the default layout with the configured overrides.
func (c Config) ParserLayout() parser.Layout {
	layout := parser.DefaultLayout()
	if c.Layout != nil {
		layout = layout.Merge(*c.Layout)
	}
	return layout
}

// Thresholds returns the failure budget thresholds.
func (c Config) Thresholds() ratelimit.Thresholds {
	return ratelimit.Thresholds{
		Window:   c.FailureBudget.Window.Std(),
		Warning:  c.FailureBudget.Warning,
		Critical: c.FailureBudget.Critical,
	}
}

// PeerConfig returns the peer client settings.
func (c Config) PeerConfig() peer.Config {
	return peer.Config{
		URLTemplate: c.Edge.PeerURLTemplate,
		Timeout:     c.Edge.PeerTimeout.Std(),
		UserAgent:   c.Portal.UserAgent,
	}
}

// LoggingConfig returns the logger settings writing to stderr.
func (c Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	return cfg
}
