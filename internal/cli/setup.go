// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/engine"
)

// newSetupCmd guides first-time setup: pick a default model, write the
// config file and load the model so the first chat starts warm.
func newSetupCmd(e *env) *cobra.Command {
	var (
		modelID string
		noLoad  bool
	)
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Choose a default model and write the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			p := newPrinter(out)

			fmt.Fprintln(out, TitleStyle.Render("RIGCHAT SETUP"))
			fmt.Fprintln(out, RenderSeparator(p.width-10))

			a, err := e.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			models, listErr := engine.Catalog(cmd.Context(), a.Runtime)
			if listErr != nil {
				fmt.Fprintf(out, "  %s Ollama: not reachable at %s\n", WarningStyle.Render("[!!]"), e.cfg.Runtime.URL)
				fmt.Fprintln(out, DimStyle.Render("       -> install from https://ollama.com and run: ollama serve"))
			} else {
				fmt.Fprintf(out, "  %s Ollama: running\n", SuccessStyle.Render("[OK]"))
			}

			if modelID == "" {
				modelID, err = chooseModel(cmd.InOrStdin(), out, models, e.cfg.Runtime.DefaultModel)
				if err != nil {
					return err
				}
			}

			path := e.configPath
			if path == "" {
				if path, err = config.ConfigPathTOML(); err != nil {
					return err
				}
			}
			cfg := e.cfg.Clone()
			cfg.Runtime.DefaultModel = modelID
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.SaveTOML(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(out, "  %s wrote %s\n", SuccessStyle.Render("[OK]"), path)

			if noLoad || listErr != nil {
				return nil
			}
			return loadModel(cmd.Context(), a, modelID, p)
		},
	}
	cmd.Flags().StringVarP(&modelID, "model", "m", "", "default model (skips the prompt)")
	cmd.Flags().BoolVar(&noLoad, "no-load", false, "do not load the model after writing the config")
	return cmd
}

// chooseModel offers models as a numbered list. Empty input keeps current.
func chooseModel(in io.Reader, out io.Writer, models []string, current string) (string, error) {
	fmt.Fprintln(out)
	for i, m := range models {
		marker := ""
		if m == current {
			marker = DimStyle.Render(" (current)")
		}
		fmt.Fprintf(out, "  [%d] %s%s\n", i+1, m, marker)
	}
	fmt.Fprintf(out, "\nEnter choice [1-%d] or a model name (Enter keeps %s): ", len(models), current)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	fmt.Fprintln(out)

	choice := strings.TrimSpace(line)
	if choice == "" {
		return current, nil
	}
	if n, err := strconv.Atoi(choice); err == nil {
		if n < 1 || n > len(models) {
			return "", fmt.Errorf("choice %d is out of range", n)
		}
		return models[n-1], nil
	}
	return choice, nil
}
