package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/narvanalabs/codebuild-runner/internal/secrets"
)

func newSecretCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage age keys for encrypted job file secrets",
	}
	cmd.AddCommand(newSecretKeygenCmd(), newSecretEncryptCmd(a))
	return cmd
}

func newSecretKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an age key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			publicKey, privateKey, err := secrets.GenerateKeyPair()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# public key: %s\n", publicKey)
			fmt.Fprintln(out, privateKey)
			return nil
		},
	}
}

func newSecretEncryptCmd(a *app) *cobra.Command {
	var recipients []string

	cmd := &cobra.Command{
		Use:   "encrypt [VALUE]",
		Short: "Encrypt a value for use as aws_secret_key",
		Long: `Encrypt a value for use as aws_secret_key in a job file.

The value is read from standard input when not given as an argument. The
armored output can be pasted into a heredoc:

  aws_secret_key = <<EOT
  -----BEGIN AGE ENCRYPTED FILE-----
  ...
  -----END AGE ENCRYPTED FILE-----
  EOT`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := secrets.NewService(secrets.Config{Recipients: recipients}, a.log.Logger)
			if err != nil {
				return err
			}

			var value string
			if len(args) == 1 {
				value = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading value: %w", err)
				}
				value = strings.TrimRight(string(data), "\r\n")
			}

			armored, err := svc.Encrypt(value)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), armored)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&recipients, "recipient", "r", nil, "age public key to encrypt to (repeatable)")
	cmd.MarkFlagRequired("recipient")
	return cmd
}
