package main

import (
	"fmt"
	"strings"

	"github.com/opd-ai/nowlink/internal/scenario"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// errScenarioFailed makes the command exit non-zero after printing results.
var errScenarioFailed = fmt.Errorf("scenario failed")

func newRunCmd() *cobra.Command {
	var (
		path   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output = strings.ToLower(output)
			if output != "text" && output != "yaml" {
				return fmt.Errorf("invalid --output %q: must be text or yaml", output)
			}

			sc, err := scenario.Load(path)
			if err != nil {
				return err
			}
			res, err := scenario.NewRunner(nil).Run(cmd.Context(), sc)
			if err != nil {
				return err
			}

			if output == "yaml" {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(res); err != nil {
					return err
				}
				if err := enc.Close(); err != nil {
					return err
				}
			} else {
				res.WriteText(cmd.OutOrStdout())
			}

			if res.Status != scenario.StatusPassed {
				return fmt.Errorf("%w: %d failure(s)", errScenarioFailed, res.Failed())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "scenario", "s", "", "scenario file (YAML)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or yaml")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a scenario file without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Load(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scenario %q: %d nodes, %d steps: ok\n", sc.Name, len(sc.Nodes), len(sc.Steps))
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "scenario", "s", "", "scenario file (YAML)")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}
