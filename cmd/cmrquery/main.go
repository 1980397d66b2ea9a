// Command cmrquery looks up the CMR collections of a campaign, platform or
// instrument by its short name and aliases, and writes the flattened data
// products as CSV and JSON.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/youta-t/flarc"

	"casei/internal/cmr"
	"casei/internal/config"
	"casei/internal/database"
	"casei/internal/logger"
)

const ARG_SHORT_NAME = "SHORT_NAME"

type Flags struct {
	Type    string        `flag:"type" help:"campaign, platform or instrument"`
	CMR     string        `flag:"cmr" help:"base URL of the CMR search API"`
	OutDir  string        `flag:"out" help:"directory the CSV and JSON files are written to"`
	NoDB    bool          `flag:"no-db" help:"query the short name only, without looking up aliases"`
	Timeout time.Duration `flag:"timeout" help:"timeout of each CMR request"`
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
		"Query CMR for the data products of a CASEI object",
		Flags{
			Type:    "campaign",
			CMR:     cfg.CMRBaseURL,
			OutDir:  cfg.ReportDir,
			Timeout: cfg.RequestTimeout,
		},
		flarc.Args{
			{Name: ARG_SHORT_NAME, Required: true, Help: "short name of the object"},
		},
		func(ctx context.Context, c flarc.Commandline[Flags], _ []any) error {
			names := c.Args()[ARG_SHORT_NAME]
			if len(names) == 0 {
				return fmt.Errorf("%w: %s is required", flarc.ErrUsage, ARG_SHORT_NAME)
			}
			return query(ctx, c.Flags(), names[0])
		},
	)
	if err != nil {
		logger.Get().Fatalf("failed to build command: %v", err)
	}

	os.Exit(flarc.Run(ctx, cmd))
}

func query(ctx context.Context, flags Flags, shortName string) error {
	log := logger.Named("cmrquery")

	aliases := []string{shortName}
	if !flags.NoDB {
		dbConfig, err := database.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load database configuration: %w", err)
		}
		dbManager, err := database.NewManager(dbConfig)
		if err != nil {
			return fmt.Errorf("failed to create database manager: %w", err)
		}
		if aliases, err = cmr.Aliases(dbManager.DB(), flags.Type, shortName); err != nil {
			return err
		}
	}
	log.Infow("querying CMR", "type", flags.Type, "aliases", aliases)

	client := cmr.NewClient(flags.CMR, &http.Client{Timeout: flags.Timeout})
	products, err := client.DataProducts(ctx, flags.Type, aliases)
	if err != nil {
		return err
	}
	log.Infof("Found %d data products", len(products))

	if err := os.MkdirAll(flags.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	base := filepath.Join(flags.OutDir, fmt.Sprintf("cmr_%s_%s", flags.Type, sanitize(shortName)))

	if err := writeFile(base+".csv", func(f *os.File) error { return cmr.WriteCSV(f, products) }); err != nil {
		return err
	}
	if err := writeFile(base+".json", func(f *os.File) error { return cmr.WriteJSON(f, products) }); err != nil {
		return err
	}
	log.Infof("Wrote %s.csv and %s.json", base, base)
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':':
			return '_'
		}
		return r
	}, name)
}
