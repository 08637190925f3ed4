package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/invoice-intake/internal/api"
	"github.com/dvloznov/invoice-intake/internal/api/handlers"
	"github.com/dvloznov/invoice-intake/internal/archive"
	"github.com/dvloznov/invoice-intake/internal/config"
	"github.com/dvloznov/invoice-intake/internal/extraction"
	"github.com/dvloznov/invoice-intake/internal/jobs"
	jobsinmem "github.com/dvloznov/invoice-intake/internal/jobs/inmemory"
	"github.com/dvloznov/invoice-intake/internal/ledger"
	"github.com/dvloznov/invoice-intake/internal/logger"
	"github.com/dvloznov/invoice-intake/internal/payables"
	"github.com/dvloznov/invoice-intake/internal/session"
	sessioninmem "github.com/dvloznov/invoice-intake/internal/session/inmemory"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.New().Fatal().Err(err).Msg("Invalid configuration")
	}

	log := logger.NewWithOptions(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Sessions
	store := sessioninmem.NewStore(sessioninmem.WithEvictionPolicy(session.TTLEviction{TTL: cfg.SessionTTL}))
	if cfg.SessionTTL > 0 {
		go store.StartJanitor(ctx, cfg.SessionTTL/4, func(removed int) {
			log.Info().Int("removed", removed).Msg("Expired sessions evicted")
		})
	}

	extractor, err := newExtractor(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.ExtractionProvider).Msg("Failed to create extractor")
	}
	service := extraction.NewService(extractor, cfg.ExtractionProvider)

	var archiver archive.Archiver = archive.Nop{}
	if cfg.ArchiveBucket != "" {
		gcs, err := archive.NewGCSArchiver(ctx, cfg.ArchiveBucket, cfg.GoogleCredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.ArchiveBucket).Msg("Failed to create document archiver")
		}
		defer gcs.Close()
		archiver = gcs
	} else {
		log.Warn().Msg("No archive bucket configured - uploaded documents will not be kept")
	}

	sink, closeSinks := newSink(ctx, cfg, log)
	defer closeSinks()

	// Booking exports
	jobStore := jobsinmem.NewStore()
	jobQueue := jobsinmem.NewQueue(100, jobStore, jobsinmem.WithWorkers(cfg.ExportWorkers))
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	var publisher jobs.Publisher
	if _, nop := sink.(ledger.NopSink); !nop {
		if err := jobQueue.Start(workerCtx, jobs.ExportHandler(sink)); err != nil {
			log.Fatal().Err(err).Msg("Failed to start export workers")
		}
		publisher = jobQueue
		log.Info().Str("sink", sink.Name()).Int("workers", cfg.ExportWorkers).Msg("Booking export enabled")
	}

	// Mock payables
	latency := payables.WithLatency(cfg.MockLatency)
	rates := payables.NewRateTable(latency)
	tokens := payables.NewMockTokenProvider(latency)
	booker := payables.NewMockBooker(latency)

	router := api.NewRouter(log, api.Handlers{
		Sessions: handlers.NewSessionsHandler(store, cfg.StaticDir, log),
		Upload:   handlers.NewUploadHandler(store, service, archiver, cfg.ExtractionMode, cfg.MaxUploadBytes, log),
		Booking:  handlers.NewBookingHandler(store, rates, tokens, booker, publisher, log),
		Rates:    handlers.NewRatesHandler(rates, log),
		Jobs:     handlers.NewJobsHandler(jobStore, log),
		Health:   handlers.NewHealthHandler(store, cfg.ExtractionProvider),
	}, cfg.StaticDir)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// Uploads wait for the extraction vendor.
		WriteTimeout: cfg.ExtractionTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("provider", cfg.ExtractionProvider).
			Str("mode", cfg.ExtractionMode).
			Msg("Starting invoice intake server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Wait for in-flight exports before the sinks are closed.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

func newExtractor(ctx context.Context, cfg *config.Config) (extraction.Extractor, error) {
	switch cfg.ExtractionProvider {
	case config.ProviderGemini:
		return extraction.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ExtractionTimeout)
	default:
		return extraction.NewClient(extraction.ClientConfig{
			BaseURL:    cfg.OCRBaseURL,
			ModelID:    cfg.OCRModelID,
			APIKey:     cfg.OCRAPIKey,
			AuthScheme: cfg.OCRAuthScheme,
			Timeout:    cfg.ExtractionTimeout,
		}), nil
	}
}

// newSink builds the booking export sinks that are configured. The returned
// func closes them.
func newSink(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ledger.Sink, func()) {
	var (
		sinks   []ledger.Sink
		closers []func() error
	)

	if cfg.BigQueryProject != "" {
		bq, err := ledger.NewBigQuerySink(ctx, cfg.BigQueryProject, cfg.BigQueryDataset, cfg.GoogleCredentialsFile)
		if err != nil {
			log.Fatal().Err(err).Str("project", cfg.BigQueryProject).Msg("Failed to create BigQuery sink")
		}
		sinks = append(sinks, bq)
		closers = append(closers, bq.Close)
	}

	if cfg.NotionToken != "" && cfg.NotionBookingsDB != "" {
		sinks = append(sinks, ledger.NewNotionSink(ledger.NewNotionClient(cfg.NotionToken), cfg.NotionBookingsDB))
	}

	return ledger.Combine(sinks...), func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Error().Err(err).Msg("Failed to close export sink")
			}
		}
	}
}
