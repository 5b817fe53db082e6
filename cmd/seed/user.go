package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"prepai/internal/auth"
	"prepai/internal/config"
	"prepai/internal/db"
	"prepai/internal/logger"
	"prepai/internal/model"
	"prepai/internal/repository"
	"prepai/internal/service"
)

type userOptions struct {
	email     string
	password  string
	firstName string
	lastName  string
	role      string
}

func userCmd() *cobra.Command {
	var opts userOptions

	cmd := &cobra.Command{
		Use:   "user",
		Short: "Create an identity with an explicit role",
		Long: `Create an identity with an explicit role.

AUTHOR and ADMIN identities cannot be obtained through public signup; this
command is the supported way to create them. The password may be given with
--password or the SEED_PASSWORD environment variable.

Example:
  seed user --email admin@example.com --first-name Ada --last-name Lovelace --role ADMIN`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.password == "" {
				opts.password = os.Getenv("SEED_PASSWORD")
			}
			return runUser(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "Email address")
	cmd.Flags().StringVar(&opts.password, "password", "", "Password (default: $SEED_PASSWORD)")
	cmd.Flags().StringVar(&opts.firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&opts.lastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&opts.role, "role", string(model.RoleUser), "Role: USER, AUTHOR or ADMIN")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("first-name")
	_ = cmd.MarkFlagRequired("last-name")

	return cmd
}

func runUser(ctx context.Context, opts userOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	jwtService, err := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return err
	}

	// refresh tokens are never issued here, so no token store is needed
	svc := service.NewAuthService(
		repository.NewUserRepository(gormDB),
		jwtService,
		nil,
		service.NewBcryptHasher(cfg.BcryptCost),
		service.WithPasswordMinLength(cfg.PasswordMinLength),
		service.WithLogger(log),
	)

	user, err := createUser(ctx, svc, opts)
	if err != nil {
		return err
	}
	log.WithField("id", user.ID).WithField("role", user.Role).Info("identity created")
	return nil
}

func createUser(ctx context.Context, svc service.AuthService, opts userOptions) (*model.User, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	role := model.Role(strings.ToUpper(strings.TrimSpace(opts.role)))
	user, err := svc.CreateIdentity(ctx, service.SignupInput{
		FirstName:       opts.firstName,
		LastName:        opts.lastName,
		Email:           opts.email,
		Password:        opts.password,
		ConfirmPassword: opts.password,
	}, role)
	if err != nil {
		return nil, fmt.Errorf("create %s identity: %w", role, err)
	}
	return user, nil
}
