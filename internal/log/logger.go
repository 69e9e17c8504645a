// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log configures structured logging shared by all three binaries,
// adapted from the teacher's internal/log package: a thin wrapper over
// log/slog with environment-driven defaults and the standard field keys used
// across the hook, bot, and orchestrator.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the log output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Standard field keys, kept consistent across all three components so a
// correlation_id-keyed log search works regardless of which process wrote
// the line.
const (
	ComponentKey     = "component"
	CorrelationIDKey = "correlation_id"
	SessionIDKey     = "session_id"
	WorkspaceIDKey   = "workspace_id"
	WorkflowIDKey    = "workflow_id"
	EventTypeKey     = "event_type"
)

// Config holds logger configuration.
type Config struct {
	Level     string
	Format    Format
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns sensible defaults: info level, JSON output to
// stderr, no source locations.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: FormatJSON,
		Output: os.Stderr,
	}
}

// FromEnv builds a Config from environment variables:
//   - WRAPUP_LOG_LEVEL: debug, info, warn, error
//   - WRAPUP_LOG_FORMAT: json, text
//   - WRAPUP_DEBUG: true/1 enables debug level and source locations,
//     taking precedence over WRAPUP_LOG_LEVEL
func FromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("WRAPUP_LOG_LEVEL"); v != "" {
		cfg.Level = v
	}
	if v := os.Getenv("WRAPUP_LOG_FORMAT"); v != "" {
		cfg.Format = Format(v)
	}
	if v := strings.ToLower(os.Getenv("WRAPUP_DEBUG")); v == "true" || v == "1" {
		cfg.Level = "debug"
		cfg.AddSource = true
	}

	return cfg
}

// New builds a *slog.Logger from Config.
func New(cfg Config) *slog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == FormatText {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent returns a logger pre-bound to the given component name
// (hook, bot, orchestrator), so every line it emits is attributable without
// each call site repeating the field.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(ComponentKey, component))
}
