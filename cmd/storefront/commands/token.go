package commands

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"storefront-bff/internal/auth"
	"storefront-bff/internal/storage"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and store development tokens",
	}
	cmd.AddCommand(tokenIssueCmd(), tokenSaveCmd(), tokenShowCmd(), tokenForgetCmd())
	return cmd
}

func tokenIssueCmd() *cobra.Command {
	var (
		sub    string
		secret string
		ttl    time.Duration
		save   bool
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign an HS256 token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = appCtx.cfg.JWTSecret
			}
			tok, err := auth.IssueToken(secret, sub, ttl)
			if err != nil {
				return err
			}
			if save {
				if passphrase == "" {
					return fmt.Errorf("passphrase required (-p)")
				}
				if err := appCtx.vault.Save(cmd.Context(), passphrase, tok); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "user id to put in the token")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for none")
	cmd.Flags().BoolVar(&save, "save", false, "also save the token")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

// tokenSaveCmd reads the token from the argument or stdin.
func tokenSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save [TOKEN]",
		Short: "Encrypt a token under the passphrase and store it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			var tok string
			if len(args) == 1 {
				tok = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				tok = line
			}
			tok = strings.TrimSpace(tok)
			if tok == "" {
				return errors.New("empty token")
			}
			if err := appCtx.vault.Save(cmd.Context(), passphrase, tok); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token saved.")
			return nil
		},
	}
}

func tokenShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			tok, err := appCtx.vault.Load(cmd.Context(), passphrase)
			if errors.Is(err, storage.ErrNotFound) {
				return errors.New("no token saved")
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
}

func tokenForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Delete the saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return appCtx.vault.Forget(cmd.Context())
		},
	}
}
