package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/benefits-cafeteria/internal/config"
	"github.com/iliyamo/benefits-cafeteria/internal/database"
	"github.com/iliyamo/benefits-cafeteria/internal/logger"
	"github.com/iliyamo/benefits-cafeteria/internal/repository"
	"github.com/iliyamo/benefits-cafeteria/internal/service"
)

const emailFlag = "email"

var createAdminFlags = map[string]cobraflags.Flag{
	emailFlag: &cobraflags.StringFlag{
		Name:  emailFlag,
		Value: "",
		Usage: "Email of the administrator (defaults to ADMIN_EMAIL)",
	},
}

func newCreateAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the first administrator or promote an existing user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			email := createAdminFlags[emailFlag].GetString()
			if email == "" {
				email = cfg.AdminEmail
			}
			if email == "" {
				return errors.New("--email or ADMIN_EMAIL is required")
			}
			return runCreateAdmin(cmd.Context(), cfg, email)
		},
	}
	cobraflags.RegisterMap(cmd, createAdminFlags)
	return cmd
}

func runCreateAdmin(ctx context.Context, cfg config.Config, email string) error {
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "benefits-cli")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := database.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	users := repository.NewUserRepo(db)
	svc := service.NewUserService(users, repository.NewTokenRepo(db), nil, time.Now, log)
	v, created, err := svc.EnsureAdmin(ctx, email)
	if err != nil {
		return err
	}
	if created {
		log.Info("administrator created", zap.String("email", v.Email), zap.String("id", v.ID.String()))
	} else {
		log.Info("administrator ensured", zap.String("email", v.Email), zap.String("id", v.ID.String()))
	}
	return nil
}
