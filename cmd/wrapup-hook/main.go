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

// Command wrapup-hook is the short-lived Session Summary Emitter, invoked
// once per session termination by the host (spec.md §4.1 "Trigger").
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsrelay/wrapup/internal/config"
	"github.com/opsrelay/wrapup/internal/hook"
	wraplog "github.com/opsrelay/wrapup/internal/log"
	"github.com/opsrelay/wrapup/internal/validator"
)

var (
	version = "dev"

	configPath    string
	sessionID     string
	workspacePath string
	userPrompt    string
	lastResponse  string
	botCommand    string
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "wrapup-hook",
		Short:   "Emit a session summary and hand it off to the bot",
		Version: version,
		RunE:    runHook,
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config YAML (defaults to built-in + environment)")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "session identifier (required)")
	cmd.Flags().StringVar(&workspacePath, "workspace-path", "", "absolute workspace path (required)")
	cmd.Flags().StringVar(&userPrompt, "user-prompt", "", "the session's last user prompt")
	cmd.Flags().StringVar(&lastResponse, "last-response", "", "the session's last assistant response")
	cmd.Flags().StringVar(&botCommand, "bot-command", "", "override the bot binary path used to auto-spawn")
	cmd.MarkFlagRequired("session-id")
	cmd.MarkFlagRequired("workspace-path")

	return cmd
}

func runHook(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := wraplog.New(wraplog.FromEnv())
	slog.SetDefault(logger)

	hookCfg := hook.Config{
		StateDir: cfg.StateDir,
		Validator: validator.Config{
			Command: cfg.Validator.Command,
			Args:    cfg.Validator.Args,
			Timeout: cfg.Validator.Timeout,
		},
		BotCommand: firstNonEmpty(botCommand, "wrapup-bot"),
		BotArgs:    []string{"run", "--config", configPath},
	}

	in := hook.Input{
		SessionID:     sessionID,
		WorkspacePath: workspacePath,
		UserPrompt:    userPrompt,
		LastResponse:  lastResponse,
	}

	_, err = hook.Run(context.Background(), hookCfg, in, logger)
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
