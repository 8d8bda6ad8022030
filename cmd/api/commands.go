package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/permit-lifecycle/internal/auth"
	"github.com/spec-kit/permit-lifecycle/internal/config"
	"github.com/spec-kit/permit-lifecycle/internal/domain"
	"github.com/spec-kit/permit-lifecycle/internal/observability"
	"github.com/spec-kit/permit-lifecycle/internal/persistence"
)

func migrateCmd() *cobra.Command {
	var migrationsDir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to POSTGRES_DSN",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return errors.New("POSTGRES_DSN is required to migrate")
			}
			logger, err := observability.NewLogger(cfg.App, cfg.Logger)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), migrationsDir, logger); err != nil {
				logger.Error("migration failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&migrationsDir, "dir", persistence.DefaultMigrationsDir, "directory of SQL migrations")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		actor      string
		role       string
		department string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with AUTH_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedRole, ok := domain.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
			token, expiresAt, err := tokens.GenerateToken(actor, parsedRole, department)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor name recorded in history")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleOfficer), "INTAKE, OFFICER, SUPERVISOR, or ADMIN")
	cmd.Flags().StringVar(&department, "department", "", "owner department used as the default for submissions")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}
