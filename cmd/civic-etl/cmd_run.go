package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	kafkaadapter "github.com/couchcryptid/civic-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/civic-data-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/civic-data-etl/internal/config"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
	"github.com/couchcryptid/civic-data-etl/internal/pipeline"
	"github.com/couchcryptid/civic-data-etl/internal/schema"
	"github.com/couchcryptid/civic-data-etl/internal/steps"
)

var runFlags struct {
	only string
	list bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline steps and write artifacts to OUT_DIR",
	RunE:  runPipeline,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.only, "only", "", "run a single step by name")
	f.BoolVar(&runFlags.list, "list", false, "list the available steps and exit")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	if runFlags.list {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, s := range steps.Default() {
			fmt.Fprintf(w, "%s\t%s\n", s.Name(), s.Title())
		}
		return w.Flush()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rc, cleanup, err := newRunContext(cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	runner := pipeline.NewRunner(steps.Default(), clockwork.NewRealClock(), logger, metrics)
	_, runErr := runner.Run(ctx, rc, runFlags.only)

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Error("metrics textfile", "error", err)
		}
	}
	return runErr
}

// newRunContext wires the shared inputs every step reads. The returned
// cleanup closes the Kafka producer when publishing is enabled.
func newRunContext(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*pipeline.RunContext, func(), error) {
	catalog, err := schema.Load(cfg.SchemaFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load column rules: %w", err)
	}

	hoods, err := steps.LoadDirectory(cfg.RawDir, catalog)
	if err != nil {
		return nil, nil, fmt.Errorf("load neighborhoods: %w", err)
	}
	logger.Info("neighborhood directory loaded", "neighborhoods", hoods.Len())

	sink, err := pipeline.NewSink(cfg.OutDir, metrics)
	if err != nil {
		return nil, nil, err
	}

	rc := &pipeline.RunContext{
		RawDir:        cfg.RawDir,
		Year:          cfg.DataYear,
		ACSYear:       cfg.ACSYear,
		BatchSize:     cfg.BatchSize,
		Catalog:       catalog,
		Neighborhoods: hoods,
		Out:           sink,
		Logger:        logger,
		Metrics:       metrics,
	}

	// Geocoding is feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN.
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		rc.Geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		metrics.GeocodeEnabled.Set(0)
		logger.Info("mapbox geocoding disabled")
	}

	cleanup := func() {}
	if cfg.PublishEnabled() {
		writer := kafkaadapter.NewWriter(cfg, metrics, logger)
		rc.Loader = writer
		cleanup = func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}
		logger.Info("publishing triaged vacancies", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}
	return rc, cleanup, nil
}

// Compile-time interface checks.
var (
	_ domain.Geocoder      = (*mapbox.CachedGeocoder)(nil)
	_ pipeline.BatchLoader = (*kafkaadapter.Writer)(nil)
)
