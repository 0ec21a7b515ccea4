// Command seedusers provisions the bootstrap accounts a fresh deployment
// needs: one admin plus optional demo users. Existing emails are skipped, so
// running it repeatedly is safe.
package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/schoolstock/stockroom-backend/internal/users"
	"github.com/schoolstock/stockroom-backend/pkg/config"
	"github.com/schoolstock/stockroom-backend/pkg/db"
	"github.com/schoolstock/stockroom-backend/pkg/enums"
	"github.com/schoolstock/stockroom-backend/pkg/logger"
	"github.com/schoolstock/stockroom-backend/pkg/security"
)

type seedUser struct {
	email string
	name  string
	role  enums.Role
	env   string
}

var seeds = []seedUser{
	{email: "admin@school.test", name: "Admin", role: enums.RoleAdmin, env: "STOCKROOM_SEED_ADMIN_PASSWORD"},
	{email: "manager@school.test", name: "Stock Manager", role: enums.RoleStockManager, env: "STOCKROOM_SEED_MANAGER_PASSWORD"},
	{email: "teacher@school.test", name: "Teacher", role: enums.RoleTeacher, env: "STOCKROOM_SEED_TEACHER_PASSWORD"},
}

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "seedusers"})

	_ = godotenv.Load()

	adminOnly := flag.Bool("admin-only", false, "seed only the admin account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	repo := users.NewRepository(dbClient.DB())

	for _, seed := range seeds {
		if *adminOnly && seed.role != enums.RoleAdmin {
			continue
		}

		fields := map[string]any{"email": seed.email, "role": string(seed.role)}

		if _, err := repo.FindByEmail(ctx, seed.email); err == nil {
			logg.Info(logg.WithFields(ctx, fields), "seed user exists, skipping")
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			logg.Error(ctx, "lookup seed user", err)
			os.Exit(1)
		}

		password := os.Getenv(seed.env)
		if password == "" {
			logg.Warn(logg.WithFields(ctx, fields), "no password set, skipping seed user")
			continue
		}

		hash, err := security.HashPassword(password, cfg.Password)
		if err != nil {
			logg.Error(ctx, "hash seed password", err)
			os.Exit(1)
		}

		if _, err := repo.Create(ctx, users.CreateUserDTO{
			Email:        seed.email,
			Name:         seed.name,
			Role:         seed.role,
			PasswordHash: hash,
		}); err != nil {
			logg.Error(ctx, "create seed user", err)
			os.Exit(1)
		}
		logg.Info(logg.WithFields(ctx, fields), "seed user created")
	}
}
