package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/schoolhub-dev/schoolhub/internal/anonymize"
	"github.com/schoolhub-dev/schoolhub/internal/config"
	"github.com/schoolhub-dev/schoolhub/internal/importer"
	"github.com/schoolhub-dev/schoolhub/internal/logger"
	"github.com/schoolhub-dev/schoolhub/internal/pgclient"
	"github.com/schoolhub-dev/schoolhub/internal/server"
)

const connectTimeout = 10 * time.Second

func main() {
	var (
		source     string
		anonymized bool
		rulesPath  string
	)

	cmd := &cobra.Command{
		Use:   "importer",
		Short: "Copy content from a legacy PostgreSQL site database",
		Long: `Copy staff, events, gallery, news, achievements, inquiries and
newsletter subscriptions from a legacy PostgreSQL database into the
configured schoolhub database. Rows are upserted by id, so the import can
be repeated. User accounts are not imported.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				source = os.Getenv("LEGACY_DATABASE_URL")
			}
			if source == "" {
				return fmt.Errorf("--source or LEGACY_DATABASE_URL is required")
			}

			var rules []anonymize.Rule
			switch {
			case rulesPath != "":
				loaded, err := anonymize.LoadRules(rulesPath)
				if err != nil {
					return err
				}
				rules = loaded
			case anonymized:
				rules = anonymize.DefaultRules
			}

			return run(cmd.Context(), source, rules)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Legacy PostgreSQL connection string (or set LEGACY_DATABASE_URL)")
	cmd.Flags().BoolVar(&anonymized, "anonymize", false, "Replace visitor personal data with placeholders after the import")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "YAML file with anonymization rules (implies --anonymize)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, source string, rules []anonymize.Rule) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format, "importer")
	log := logger.GetLogger()

	legacy, err := pgclient.NewClient(source)
	if err != nil {
		return err
	}
	defer legacy.Close()

	pingCtx, cancel := pgclient.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := legacy.Ping(pingCtx); err != nil {
		return fmt.Errorf("failed to connect to legacy database: %w", err)
	}

	version, err := legacy.GetVersion(pingCtx)
	if err != nil {
		return err
	}
	log.Info().Str("postgres_version", version).Msg("Connected to legacy database")

	missing, err := legacy.MissingTables(pingCtx)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("legacy database is missing tables: %v", missing)
	}

	db, err := server.OpenDatabase(cfg, log)
	if err != nil {
		return err
	}

	report, err := importer.New(db, log).Run(ctx, legacy, importer.Options{Anonymize: rules})
	if err != nil {
		return err
	}

	tables := make([]string, 0, len(report.Tables))
	for t := range report.Tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	fmt.Printf("Imported %d rows from PostgreSQL %s:\n", report.Total(), version)
	for _, t := range tables {
		fmt.Printf("  %-26s %d\n", t, report.Tables[t])
	}
	if report.AnonRules > 0 {
		fmt.Printf("Applied %d anonymization rules\n", report.AnonRules)
	}
	return nil
}
