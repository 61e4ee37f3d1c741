// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/rigchat/internal/app"
	"github.com/jeranaias/rigchat/internal/cachepurge"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/engine"
	"github.com/jeranaias/rigchat/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Options replaces collaborators the commands would otherwise build.
type Options struct {
	// Runtime replaces the Ollama runtime.
	Runtime engine.Runtime

	// Cache replaces the configured artifact cache.
	Cache cachepurge.Cache

	// Config skips file loading when set.
	Config *config.Config
}

// env is the state shared by every command of one invocation.
type env struct {
	opts       Options
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd(Options{}).Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd builds the rigchat command tree.
func NewRootCmd(opts Options) *cobra.Command {
	e := &env{opts: opts}

	root := &cobra.Command{
		Use:   "rigchat",
		Short: "Chat with local models through Ollama",
		Long: `rigchat keeps independent chat sessions, each with its own role prompt,
and talks to a model resident in a local Ollama runtime. Sessions and the
model state survive restarts.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, e)
		},
	}

	root.PersistentFlags().StringVar(&e.configPath, "config", "", "config file (default ~/.rigchat/config.toml)")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newChatCmd(e),
		newSendCmd(e),
		newModelsCmd(e),
		newLoadCmd(e),
		newRemoveCmd(e),
		newStatusCmd(e),
		newSessionsCmd(e),
		newSetupCmd(e),
	)

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\n\n%s", err, cmd.UsageString())
	})
	return root
}

// setup loads .env, the configuration and the logger.
func (e *env) setup() error {
	_ = godotenv.Load()

	switch {
	case e.opts.Config != nil:
		e.cfg = e.opts.Config
	case e.configPath != "":
		cfg, err := config.LoadFromPath(e.configPath)
		if err != nil {
			return err
		}
		e.cfg = cfg
	default:
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		e.cfg = cfg
	}

	logger, err := logging.New(e.cfg.Log, e.verbose)
	if err != nil {
		return err
	}
	e.logger = logger
	return nil
}

// open builds the app. verify reconciles a restored "loaded" state with the
// runtime, which may reload the model.
func (e *env) open(ctx context.Context, verify bool) (*app.App, error) {
	a, err := app.New(ctx, e.cfg, app.Options{
		Runtime:    e.opts.Runtime,
		Cache:      e.opts.Cache,
		Logger:     e.logger,
		SkipVerify: !verify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return a, nil
}

// printError writes err to w in the error style.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", ErrorStyle.Render("[Error]"), err)
}
