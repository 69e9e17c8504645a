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

// Command wrapup-orchestrator is the short-lived Workflow Orchestrator,
// spawned once per tapped workflow button by wrapup-bot (spec.md §4.3).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsrelay/wrapup/internal/config"
	wraplog "github.com/opsrelay/wrapup/internal/log"
	"github.com/opsrelay/wrapup/internal/orchestrator"
)

var (
	version = "dev"

	configPath    string
	selectionPath string
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
		Use:     "wrapup-orchestrator <selection-file>",
		Short:   "Render, execute, and record each workflow in the selection",
		Version: version,
		Args:    cobra.ExactArgs(1),
		RunE:    runOrchestrator,
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config YAML")

	// run is accepted as an alias so wrapup-bot's spawn args ("run",
	// "--config", cfg, selectionPath) work unchanged whether or not a
	// subcommand verb is present.
	runCmd := &cobra.Command{
		Use:    "run <selection-file>",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE:   runOrchestrator,
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config YAML")
	cmd.AddCommand(runCmd)

	return cmd
}

func runOrchestrator(cmd *cobra.Command, args []string) error {
	selectionPath = args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := wraplog.New(wraplog.FromEnv())
	slog.SetDefault(logger)

	orchCfg := orchestrator.Config{
		StateDir:         cfg.StateDir,
		DefaultTimeout:   cfg.Orchestrator.DefaultTimeout,
		CLICommand:       cfg.Orchestrator.CLICommand,
		CLIArgs:          cfg.Orchestrator.CLIArgs,
		ProgressInterval: cfg.Orchestrator.ProgressInterval,
	}

	return orchestrator.Run(context.Background(), orchCfg, selectionPath, logger)
}
