package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"casei/internal/cache"
	"casei/internal/config"
	"casei/internal/database"
	"casei/internal/logger"
	"casei/internal/models"
	"casei/internal/services"

	"github.com/golang-migrate/migrate/v4"
	"gorm.io/gorm"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: migrate <up|down|version|force|groups|user> [N]")
	}

	switch os.Args[1] {
	case "groups":
		return syncGroups()
	case "user":
		return createUser(os.Args[2:])
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}
	m, err := database.Migrator(dbConfig)
	if err != nil {
		return err
	}
	defer database.CloseMigrator(m)

	command := os.Args[1]

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.Get().Info("Migrations applied successfully")

	case "down":
		steps := 1
		if len(os.Args) > 2 {
			steps, err = strconv.Atoi(os.Args[2])
			if err != nil {
				return fmt.Errorf("invalid step count: %w", err)
			}
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Get().Infof("Rolled back %d migration(s)", steps)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				logger.Get().Info("No migrations applied yet")
				return nil
			}
			return fmt.Errorf("failed to get version: %w", err)
		}
		logger.Get().Infof("Version: %d, Dirty: %v", version, dirty)

	case "force":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: migrate force <version>")
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			return fmt.Errorf("invalid version: %w", err)
		}
		if err := m.Force(version); err != nil {
			return fmt.Errorf("force failed: %w", err)
		}
		logger.Get().Infof("Schema version forced to %d", version)

	default:
		return fmt.Errorf("unknown command: %s (use up, down, version, force, groups or user)", command)
	}

	return nil
}

// createUser adds an operator account: user <username> <email> <password> [admin|editor]
func createUser(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: migrate user <username> <email> <password> [admin|editor]")
	}
	role := models.RoleEditor
	if len(args) > 3 {
		switch args[3] {
		case "admin":
			role = models.RoleAdmin
		case "editor":
		default:
			return fmt.Errorf("unknown role %q (use admin or editor)", args[3])
		}
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	ctx := context.Background()
	cacheService, closeCache := connectCache(ctx)
	defer closeCache()

	user, err := services.NewUserService(db).CreateUser(args[0], args[1], args[2], role)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	if err := services.NewPermissionService(db, cacheService).SyncUserGroups(ctx, user); err != nil {
		return fmt.Errorf("failed to assign group: %w", err)
	}
	logger.Get().Infof("Created %s user %s", role, user.Username)
	return nil
}

// syncGroups seeds the permission catalogue and the Editor and Admin groups,
// then re-assigns every user to the group of their role.
func syncGroups() error {
	db, err := openDB()
	if err != nil {
		return err
	}
	ctx := context.Background()
	cacheService, closeCache := connectCache(ctx)
	defer closeCache()

	if err := services.NewPermissionService(db, cacheService).Seed(ctx); err != nil {
		return fmt.Errorf("group sync failed: %w", err)
	}
	logger.Get().Info("Permission groups synced")
	return nil
}

func openDB() (*gorm.DB, error) {
	dbConfig, err := database.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load database configuration: %w", err)
	}
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	return dbManager.DB(), nil
}

// connectCache reaches the API's Redis so group changes clear the cached
// permission sets at once instead of after their TTL.
func connectCache(ctx context.Context) (cache.Service, func()) {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Warnw("config not loaded, permission cache not cleared", "error", err.Error())
		return cache.NewService(nil), func() {}
	}
	return cache.Connect(ctx, cfg.RedisURL)
}
