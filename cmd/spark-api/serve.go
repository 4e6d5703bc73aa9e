package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/PabloGalante/spark-agent/internal/adapters/http"
	"github.com/PabloGalante/spark-agent/internal/adapters/llm"
	"github.com/PabloGalante/spark-agent/internal/adapters/realtime"
	firestorestore "github.com/PabloGalante/spark-agent/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/spark-agent/internal/adapters/storage/memory"
	sqlitestore "github.com/PabloGalante/spark-agent/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/spark-agent/internal/app/agentflow"
	"github.com/PabloGalante/spark-agent/internal/app/conversation"
	"github.com/PabloGalante/spark-agent/internal/app/journal"
	"github.com/PabloGalante/spark-agent/internal/config"
	"github.com/PabloGalante/spark-agent/internal/domain"
	"github.com/PabloGalante/spark-agent/internal/observability"
	"github.com/PabloGalante/spark-agent/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server (default)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// persistent on root, which serves when no subcommand is given
	flags := rootCmd.PersistentFlags()
	flags.String("port", "", "port to listen on (overrides SPARK_PORT)")
	flags.String("storage", "", "storage backend: memory, sqlite or firestore")
	flags.String("llm", "", "llm backend: mock, vertex or anthropic")
	_ = v.BindPFlag("port", flags.Lookup("port"))
	_ = v.BindPFlag("storage_backend", flags.Lookup("storage"))
	_ = v.BindPFlag("llm_backend", flags.Lookup("llm"))
}

type stores struct {
	sessions domain.SessionStore
	events   domain.EventStore
	journal  domain.JournalStore
	close    func() error
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	observability.SetLevel(cfg.LogLevel)
	log := observability.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := observability.NewTracerProvider(ctx, observability.TracingConfig{
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   1,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	llmClient, err := newLLMClient(ctx, cfg)
	if err != nil {
		return err
	}

	st, err := newStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Error("closing store", "error", err)
		}
	}()

	metrics := observability.NewMetrics()
	journalSvc := journal.NewService(st.journal)
	svc := conversation.NewService(
		agentflow.NewDefaultOrchestrator(llmClient),
		st.sessions,
		st.events,
		journalSvc,
		conversation.WithIdleTimeout(cfg.IdleTimeout),
		conversation.WithMetrics(metrics),
		conversation.WithTracer(tp.Tracer()),
		conversation.WithAnalytics(cfg.Analytics),
	)

	sched, err := scheduler.New(svc, cfg.SweepSchedule)
	if err != nil {
		return err
	}
	sched.Start()

	handler := httpadapter.NewServer(svc, journalSvc,
		httpadapter.WithMetrics(metrics),
		httpadapter.WithRealtime(realtime.NewHub(svc, cfg.CORSOrigin)),
		httpadapter.WithCORSOrigin(cfg.CORSOrigin),
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	log.Info("spark api listening",
		"port", cfg.Port,
		"mode", cfg.Mode,
		"storage", cfg.StorageBackend,
		"llm", cfg.LLMBackend,
		"version", version,
	)

	// a failed listener still runs the full shutdown so live sessions get flushed
	serveErr := waitForStop(ctx, errCh)
	if serveErr != nil {
		log.Error("http server failed", "error", serveErr)
	} else {
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("error stopping http server", "error", err)
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error("error stopping scheduler", "error", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Error("error finalizing sessions", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("error flushing traces", "error", err)
	}

	log.Info("server stopped")
	return serveErr
}

// waitForStop blocks until the context is cancelled or the server exits,
// returning the server error if it was not a clean close.
func waitForStop(ctx context.Context, errCh <-chan error) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

func newLLMClient(ctx context.Context, cfg *config.Config) (domain.LLMClient, error) {
	log := observability.Logger()

	switch cfg.LLMBackend {
	case "vertex":
		log.Info("using vertex llm", "project", cfg.GCPProjectID, "model", cfg.ModelName)
		client, err := llm.NewVertexClient(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.ModelName)
		if err != nil {
			return nil, fmt.Errorf("initializing vertex llm client: %w", err)
		}
		return client, nil
	case "anthropic":
		log.Info("using anthropic llm", "model", cfg.AnthropicModel)
		return llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel), nil
	default:
		log.Info("using mock llm")
		return llm.NewMockLLM(), nil
	}
}

func newStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	log := observability.Logger()

	switch cfg.StorageBackend {
	case "firestore":
		log.Info("using firestore storage", "project", cfg.GCPProjectID)
		fs, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, fmt.Errorf("initializing firestore store: %w", err)
		}
		// one store, three interfaces
		return &stores{sessions: fs, events: fs, journal: fs, close: fs.Close}, nil

	case "sqlite":
		log.Info("using sqlite storage", "path", cfg.SQLitePath)
		db, err := sqlitestore.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("initializing sqlite store: %w", err)
		}
		return &stores{
			sessions: db.SessionStore(),
			events:   db.EventStore(),
			journal:  db.JournalStore(),
			close:    db.Close,
		}, nil

	default:
		log.Info("using in-memory storage")
		return &stores{
			sessions: memstore.NewSessionStore(),
			events:   memstore.NewEventStore(),
			journal:  memstore.NewJournalStore(),
			close:    func() error { return nil },
		}, nil
	}
}
