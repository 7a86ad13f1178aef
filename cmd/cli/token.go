package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/laala/laala-api/internal/domain"
	"github.com/laala/laala-api/internal/security/auth"
	"github.com/laala/laala-api/pkg/config"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Session token utilities",
	}

	var subject, email, role string
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Sign a principal session token with the configured JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
			if err != nil {
				return err
			}
			if subject == "" {
				subject = uuid.NewString()
			}
			token, err := tokens.GenerateToken(auth.Identity{
				Subject: subject,
				Email:   domain.NormalizeEmail(email),
				Role:    role,
				Kind:    auth.KindPrincipal,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	mint.Flags().StringVar(&subject, "subject", "", "principal id (random when empty)")
	mint.Flags().StringVar(&email, "email", "", "principal email")
	mint.Flags().StringVar(&role, "role", string(domain.RoleAdmin), "principal role")
	_ = mint.MarkFlagRequired("email")

	cmd.AddCommand(mint)
	return cmd
}
