package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/narvanalabs/codebuild-runner/internal/builder"
	"github.com/narvanalabs/codebuild-runner/internal/jobfile"
	"github.com/narvanalabs/codebuild-runner/internal/result"
)

func newValidateCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check build settings without contacting AWS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadBuildConfig(opts)
			if err != nil {
				return &exitError{code: result.ExitHardError, err: err}
			}

			vars, err := builder.Prepare(cfg)
			if err != nil {
				return &exitError{code: result.ExitFailure, err: err}
			}

			a.log.Debug("build settings valid", "project", cfg.ProjectName, "env_vars", len(vars))
			fmt.Fprintf(cmd.OutOrStdout(), "Build settings for project %q are valid (%d environment variables)\n", cfg.ProjectName, len(vars))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.jobFile, "job", "", "HCL job file with build settings")
	opts.settings = jobfile.BindFlags(cmd.Flags())
	return cmd
}
