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

// Package config loads the single YAML document shared by all three
// binaries, layered defaults-then-file-then-environment exactly as the
// teacher's internal/config/config.go does it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration surface. The Hook and Orchestrator only
// read StateDir, Validator, and Timeouts; Bot reads everything.
type Config struct {
	// StateDir is the shared IPC state root (spec.md §6).
	StateDir string `yaml:"state_dir"`

	Log          LogConfig          `yaml:"log"`
	Bot          BotConfig          `yaml:"bot"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Validator    ValidatorConfig    `yaml:"validator"`
	Secrets      SecretsConfig      `yaml:"secrets"`
}

// LogConfig holds log/slog settings, mirroring the teacher's internal/log
// LogConfig fields. It is loaded and validated, but none of the three
// binaries reads it: each builds its logger from the environment via
// internal/log.FromEnv.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// BotConfig tunes the long-lived Bot Coordinator.
type BotConfig struct {
	// IdleTimeout shuts the bot down after this long with no session
	// activity. Zero disables idle shutdown.
	IdleTimeout time.Duration `yaml:"idle_timeout,omitempty"`

	// CallbackTTL bounds how long an unused inline-button callback stays
	// resolvable before GCCallbacks reclaims it.
	CallbackTTL time.Duration `yaml:"callback_ttl,omitempty"`

	// CallbackGCInterval is how often the idle-timer sweep runs.
	CallbackGCInterval time.Duration `yaml:"callback_gc_interval,omitempty"`

	// RateLimitMaxRetries bounds the chat transport's retry-after loop
	// before a send/edit is abandoned and logged (spec.md §5).
	RateLimitMaxRetries int `yaml:"rate_limit_max_retries,omitempty"`

	// ShutdownGracePeriod bounds how long SIGTERM handling waits for
	// in-flight edits to finish before exiting.
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period,omitempty"`

	// MaxResponsePreviewChars is loaded but not read: the Bot truncates
	// the prompt and response excerpts shown in chat at a fixed 500
	// characters.
	MaxResponsePreviewChars int `yaml:"max_response_preview_chars,omitempty"`

	// WorkerPoolSize is loaded but not read: the Bot has no worker pool,
	// and its SQLite writes, subprocess spawns and file I/O run on the
	// event loop.
	WorkerPoolSize int `yaml:"worker_pool_size,omitempty"`
}

// OrchestratorConfig tunes per-selection workflow execution.
type OrchestratorConfig struct {
	// DefaultTimeout bounds a single workflow's CLI subprocess when the
	// registry entry declares no estimated_duration-derived override.
	DefaultTimeout time.Duration `yaml:"default_timeout,omitempty"`

	// MaxOutputChars is loaded but not read: the orchestrator truncates
	// captured stdout/stderr at a fixed 10 KiB per stream
	// (maxCapturedOutputChars) before writing a WorkflowExecution record.
	MaxOutputChars int `yaml:"max_output_chars,omitempty"`

	// CLICommand is the headless CLI binary the orchestrator spawns for
	// each eligible workflow.
	CLICommand string `yaml:"cli_command,omitempty"`

	// CLIArgs are extra arguments passed before the rendered prompt.
	CLIArgs []string `yaml:"cli_args,omitempty"`

	// ProgressInterval is how often intermediate progress is emitted
	// while a subprocess runs with no observable output.
	ProgressInterval time.Duration `yaml:"progress_interval,omitempty"`
}

// ValidatorConfig configures the content-validator subprocess (lychee by
// default).
type ValidatorConfig struct {
	Command string        `yaml:"command,omitempty"`
	Args    []string      `yaml:"args,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// SecretsConfig names the secret keys resolved through internal/secrets
// and an optional file-backend path.
type SecretsConfig struct {
	BotTokenKey    string `yaml:"bot_token_key,omitempty"`
	WebhookKeyName string `yaml:"webhook_secret_key,omitempty"`
	FilePath       string `yaml:"file_path,omitempty"`
}

// Default returns a Config with sensible defaults, mirroring the teacher's
// Default().
func Default() *Config {
	return &Config{
		StateDir: defaultStateDir(),
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Bot: BotConfig{
			IdleTimeout:             0,
			CallbackTTL:             2 * time.Hour,
			CallbackGCInterval:      15 * time.Minute,
			RateLimitMaxRetries:     5,
			ShutdownGracePeriod:     10 * time.Second,
			MaxResponsePreviewChars: 500,
			WorkerPoolSize:          4,
		},
		Orchestrator: OrchestratorConfig{
			DefaultTimeout:   30 * time.Minute,
			MaxOutputChars:   8000,
			CLICommand:       "claude",
			ProgressInterval: 10 * time.Second,
		},
		Validator: ValidatorConfig{
			Command: "lychee",
			Timeout: 60 * time.Second,
		},
		Secrets: SecretsConfig{
			BotTokenKey:    "chat/bot_token",
			WebhookKeyName: "chat/webhook_secret",
		},
	}
}

// Load reads configPath (if non-empty and present) over Default(), then
// applies environment overrides. An empty configPath yields defaults plus
// environment overrides only.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config YAML: %w", err)
	}
	return nil
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("WRAPUP_STATE_DIR"); val != "" {
		c.StateDir = val
	}
	if val := os.Getenv("WRAPUP_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("WRAPUP_LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("WRAPUP_BOT_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Bot.IdleTimeout = d
		}
	}
	if val := os.Getenv("WRAPUP_BOT_RATE_LIMIT_MAX_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Bot.RateLimitMaxRetries = n
		}
	}
	if val := os.Getenv("WRAPUP_ORCHESTRATOR_DEFAULT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Orchestrator.DefaultTimeout = d
		}
	}
	if val := os.Getenv("WRAPUP_ORCHESTRATOR_CLI_COMMAND"); val != "" {
		c.Orchestrator.CLICommand = val
	}
	if val := os.Getenv("WRAPUP_VALIDATOR_COMMAND"); val != "" {
		c.Validator.Command = val
	}
}

// Validate checks the configuration's required invariants.
func (c *Config) Validate() error {
	var errs []string

	if c.StateDir == "" {
		errs = append(errs, "state_dir must not be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [debug, info, warn, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if c.Bot.RateLimitMaxRetries < 0 {
		errs = append(errs, "bot.rate_limit_max_retries must be non-negative")
	}
	if c.Orchestrator.DefaultTimeout <= 0 {
		errs = append(errs, "orchestrator.default_timeout must be positive")
	}
	if c.Orchestrator.CLICommand == "" {
		errs = append(errs, "orchestrator.cli_command must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func defaultStateDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "wrapup")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/wrapup-state"
	}
	return filepath.Join(home, ".local", "share", "wrapup")
}
