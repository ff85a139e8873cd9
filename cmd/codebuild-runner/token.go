package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/narvanalabs/codebuild-runner/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		project string
		expiry  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the report API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.API.JWTSecret == "" {
				return errors.New("api.jwt_secret is not configured")
			}
			svc, err := auth.NewService(&auth.Config{
				JWTSecret:   []byte(a.cfg.API.JWTSecret),
				TokenExpiry: expiry,
			}, a.log.Logger)
			if err != nil {
				return err
			}

			token, err := svc.GenerateToken(subject, project)
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&subject, "subject", "ci", "token subject")
	f.StringVar(&project, "project", "", "limit the token to one project's reports")
	f.DurationVar(&expiry, "expiry", 30*24*time.Hour, "token lifetime")
	return cmd
}
