// Package logging provides structured logging configuration using zerolog
// and request-scoped loggers for the HTTP service.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel names a minimum severity. Matching is case-insensitive and
// unknown names fall back to info.
type LogLevel string

// Supported levels.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

var levels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console format.
	Pretty bool

	// Output defaults to os.Stderr when nil.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// Setup installs the global logger used by every component and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

func parseLevel(level LogLevel) zerolog.Level {
	if l, ok := levels[strings.ToLower(string(level))]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// NewLogger returns a child of the global logger tagged with component.
// Call it after Setup; loggers created earlier keep the old output.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

type requestIDKey struct{}

// NewRequestID returns a fresh request id.
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID returns a context carrying requestID and a request logger
// tagged with it, retrievable with zerolog.Ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey{}, requestID)
	logger := log.With().Str("request_id", requestID).Logger()
	return logger.WithContext(ctx)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Enrich adds the request id of ctx to a component logger.
func Enrich(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if id := RequestID(ctx); id != "" {
		return logger.With().Str("request_id", id).Logger()
	}
	return logger
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Per-number fetch flow (no record, empty page)
//   - Cache hits and back-fills
//   - Peer responses
//
// Info: Normal operation events
//   - Sub-batch and edge batch summaries
//   - Config overrides merged
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts
//   - Failure budget throttling
//   - Cache errors (treated as misses)
//   - Failed lookups and sub-batches (reported as error entries)
//
// Error: Error conditions requiring attention
//   - Exhausted retries
//   - Failure budget blocks
//   - Every lookup of a request failed
//   - Configuration errors
//
// Context Fields:
//   - request_id: Id of the HTTP request being served
//   - reg_no: Registration number
//   - first: First registration number of a sub-batch
//   - year, semester: Portal page selectors
//   - url: Portal address
//   - attempt, attempts: Fetch attempt counters
//   - error_class: Error classification (client, server, network, blocked)
//   - duration: Operation duration
