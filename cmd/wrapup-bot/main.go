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

// Command wrapup-bot is the long-lived Bot Coordinator (spec.md §4.2),
// normally auto-spawned detached by wrapup-hook and left to run until idle
// or signaled.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsrelay/wrapup/internal/bot"
	"github.com/opsrelay/wrapup/internal/chatclient"
	"github.com/opsrelay/wrapup/internal/config"
	wraplog "github.com/opsrelay/wrapup/internal/log"
	"github.com/opsrelay/wrapup/internal/pidfile"
	"github.com/opsrelay/wrapup/internal/registry"
	"github.com/opsrelay/wrapup/internal/secrets"
	"github.com/opsrelay/wrapup/internal/state"
)

var (
	version = "dev"

	configPath string
	chatID     string
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
		Use:     "wrapup-bot",
		Short:   "Run the long-lived chat coordinator",
		Version: version,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config YAML")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bot event loop until idle or signaled (default)",
		RunE:  runBot,
	}
	runCmd.Flags().StringVar(&chatID, "chat-id", "", "override the chat_id the bot posts to")

	statusCmd := &cobra.Command{
		Use:   "pidfile-status",
		Short: "Report whether a bot instance currently holds the pidfile lock",
		RunE:  runPidfileStatus,
	}

	validateCmd := &cobra.Command{
		Use:   "validate-registry",
		Short: "Load workflows.json and registry.json and report any schema errors",
		RunE:  runValidateRegistry,
	}

	cmd.AddCommand(runCmd, statusCmd, validateCmd)
	cmd.RunE = runBot // bare invocation behaves like `run`

	return cmd
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := wraplog.New(wraplog.FromEnv())
	slog.SetDefault(logger)

	resolver := secrets.NewResolver(
		secrets.NewEnvBackend(),
		secrets.NewFileBackend(cfg.Secrets.FilePath),
	)
	token, err := resolver.Get(context.Background(), cfg.Secrets.BotTokenKey)
	if err != nil {
		return fmt.Errorf("resolving bot token: %w", err)
	}

	baseURL := os.Getenv("WRAPUP_CHAT_API_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.example.com/bot"
	}
	transport := chatclient.NewHTTPTransport(baseURL+token, nil, 30*time.Second)
	retryCfg := chatclient.DefaultRetryConfig()
	if cfg.Bot.RateLimitMaxRetries > 0 {
		retryCfg.MaxAttempts = cfg.Bot.RateLimitMaxRetries
	}
	chat := chatclient.New(transport, retryCfg)

	effectiveChatID := chatID
	if effectiveChatID == "" {
		effectiveChatID = os.Getenv("WRAPUP_CHAT_ID")
	}

	b := bot.New(bot.Config{
		StateDir:             cfg.StateDir,
		ChatID:               effectiveChatID,
		IdleTimeout:          cfg.Bot.IdleTimeout,
		CallbackTTL:          cfg.Bot.CallbackTTL,
		CallbackGCInterval:   cfg.Bot.CallbackGCInterval,
		ShutdownGracePeriod:  cfg.Bot.ShutdownGracePeriod,
		ProgressPollInterval: cfg.Orchestrator.ProgressInterval,
		OrchestratorCommand:  "wrapup-orchestrator",
		OrchestratorArgs:     []string{"run", "--config", configPath},
	}, chat, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()

	select {
	case sig := <-sigCh:
		logger.Info("bot received signal, shutting down", "signal", sig.String())
		cancel()
		grace := cfg.Bot.ShutdownGracePeriod
		if grace <= 0 {
			grace = 10 * time.Second
		}
		select {
		case <-errCh:
		case <-time.After(grace):
			logger.Warn("shutdown grace period elapsed, exiting anyway")
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func runPidfileStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	root := state.NewRoot(cfg.StateDir)
	pid, fingerprint, err := pidfile.ReadFingerprint(root.BotPIDFile())
	if err != nil {
		fmt.Println("not running (no pidfile)")
		return nil
	}
	if pidfile.IsRunningAsFingerprint(pid, fingerprint) {
		fmt.Printf("running (pid %d)\n", pid)
		return nil
	}
	fmt.Printf("stale pidfile (pid %d not alive or running a different command)\n", pid)
	return nil
}

// runValidateRegistry performs the same schema and trigger-predicate checks
// the bot runs at startup, so an operator can catch a bad registry edit
// before restarting the long-lived process.
func runValidateRegistry(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	root := state.NewRoot(cfg.StateDir)

	workflows, err := registry.LoadWorkflows(root.WorkflowsFile())
	if err != nil {
		return fmt.Errorf("workflows.json: %w", err)
	}
	workspaces, err := registry.LoadWorkspaces(root.RegistryFile())
	if err != nil {
		return fmt.Errorf("registry.json: %w", err)
	}

	fmt.Printf("workflows.json: %d workflow(s) OK\n", len(workflows))
	fmt.Printf("registry.json: %d workspace(s) OK\n", len(workspaces))
	return nil
}
