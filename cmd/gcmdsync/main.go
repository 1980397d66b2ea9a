// Command gcmdsync reconciles GCMD keyword schemes from KMS with the stored
// keywords and records every difference as a change request.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/youta-t/flarc"

	"casei/internal/cache"
	"casei/internal/config"
	"casei/internal/database"
	"casei/internal/gcmd"
	"casei/internal/kms"
	"casei/internal/logger"
	"casei/internal/services"
)

const ARG_SCHEME = "SCHEME"

type Flags struct {
	User      string        `flag:"user" help:"username the change requests are recorded as"`
	KMS       string        `flag:"kms" help:"base URL of the GCMD keyword management service"`
	ReportDir string        `flag:"report-dir" help:"directory the CSV report is written to; empty disables it"`
	Timeout   time.Duration `flag:"timeout" help:"timeout of each KMS request"`
	Redis     string        `flag:"redis" help:"redis:// URL of the API cache to invalidate; empty skips it"`
}

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatalf("failed to load configuration: %v", err)
	}

	cmd, err := flarc.NewCommand(
		"Sync GCMD keywords from KMS into change requests",
		Flags{
			User:      cfg.GcmdSyncUser,
			KMS:       cfg.KMSBaseURL,
			ReportDir: cfg.ReportDir,
			Timeout:   cfg.RequestTimeout,
			Redis:     cfg.RedisURL,
		},
		flarc.Args{
			{
				Name: ARG_SCHEME, Required: false, Repeatable: true,
				Help: "keyword schemes to sync (instruments, projects, platforms, sciencekeywords); all when omitted",
			},
		},
		func(ctx context.Context, c flarc.Commandline[Flags], _ []any) error {
			return runSync(ctx, c.Flags(), c.Args()[ARG_SCHEME])
		},
	)
	if err != nil {
		logger.Get().Fatalf("failed to build command: %v", err)
	}

	os.Exit(flarc.Run(ctx, cmd))
}

func runSync(ctx context.Context, flags Flags, schemes []string) error {
	log := logger.Named("gcmdsync")

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	db := dbManager.DB()

	// Auto-published keywords must drop out of the API's cached listings.
	cacheService, closeCache := cache.Connect(ctx, flags.Redis)
	defer closeCache()
	syncer := gcmd.NewSyncer(
		db,
		kms.NewClient(flags.KMS, &http.Client{Timeout: flags.Timeout}),
		services.NewChangeService(db, cacheService),
		services.NewRecommendationService(db),
		services.NewUserService(db),
		flags.User,
	)

	results, err := syncer.SyncAll(ctx, schemes)
	if err != nil {
		return err
	}
	for _, r := range results {
		log.Info(r.Message())
		for _, msg := range r.Errors {
			log.Warnw("keyword not synced", "scheme", r.Scheme, "error", msg)
		}
	}

	if flags.ReportDir != "" {
		path, err := gcmd.SaveReport(flags.ReportDir, results, time.Now())
		if err != nil {
			return err
		}
		log.Infof("Report written to %s", path)
	}
	return nil
}
