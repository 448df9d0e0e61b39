package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"SiteAuditor/internal/config"
	"SiteAuditor/internal/domain"
	"SiteAuditor/internal/history"
	"SiteAuditor/internal/infrastructure/backend"
	"SiteAuditor/internal/infrastructure/kv"
	"SiteAuditor/internal/infrastructure/terminal"
	"SiteAuditor/internal/logging"
	"SiteAuditor/internal/metrics"
	"SiteAuditor/internal/playback"
	"SiteAuditor/internal/ports"
	"SiteAuditor/internal/usecase"
)

const narrationPrefix = "> "

// Options replaces collaborators that would otherwise be built from config.
type Options struct {
	Narration io.Writer
	Analyzer  ports.Analyzer
	Notifier  ports.Notifier
	KV        ports.KeyValueStore
	Registry  *prometheus.Registry
}

// Application wires configs to use cases and owns their lifecycle.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	kv       ports.KeyValueStore
	ownsKV   bool
	store    *history.Store
	queue    *playback.Queue
	printer  *terminal.Printer
	workflow *usecase.Workflow
	registry *prometheus.Registry
	metrics  *metrics.Server
}

// New builds a runnable application: persistence, history, narration queue, backend and workflow.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format, nil)
	}

	a := &Application{cfg: cfg, logger: baseLogger, kv: opts.KV}

	if a.kv == nil {
		store, err := kv.Open(ctx, kv.Settings{
			Driver:   cfg.Storage.Driver,
			Path:     cfg.Storage.Path,
			DSN:      cfg.Storage.DSN,
			RedisURL: cfg.Storage.RedisURL,
		})
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.kv = store
		a.ownsKV = true
	}

	store, err := history.Open(ctx, a.kv, cfg.Storage.Key, baseLogger.With("component", "history"))
	if err != nil {
		a.closeKV()
		return nil, fmt.Errorf("load history: %w", err)
	}
	a.store = store

	analyzer, notifier := opts.Analyzer, opts.Notifier
	if analyzer == nil || notifier == nil {
		client, err := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
		if err != nil {
			a.closeKV()
			return nil, err
		}
		if analyzer == nil {
			analyzer = client
		}
		if notifier == nil {
			notifier = client
		}
	}

	var observer playback.Observer
	if opts.Narration != nil {
		a.printer = terminal.NewPrinter(opts.Narration, narrationPrefix)
		observer = a.printer
	}
	a.queue = playback.New(playback.Options{
		RevealInterval: cfg.Playback.RevealInterval,
		LinePause:      cfg.Playback.LinePause,
		Observer:       observer,
		Logger:         baseLogger.With("component", "playback"),
	})

	a.registry = opts.Registry
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
	}
	collector := metrics.NewCollector(a.registry)
	if cfg.Metrics.Addr != "" {
		a.metrics = metrics.Serve(cfg.Metrics.Addr, a.registry, baseLogger.With("component", "metrics"))
	}

	a.workflow = usecase.NewWorkflow(usecase.WorkflowDeps{
		Analyzer: analyzer,
		Notifier: notifier,
		Store:    a.store,
		Narrator: a.queue,
		Metrics:  collector,
		Logger:   baseLogger.With("component", "workflow"),
	})

	return a, nil
}

// Analyze submits url for analysis and blocks until its narration has been played.
// A narration write failure is reported after the record was stored.
func (a *Application) Analyze(ctx context.Context, url, email string) (domain.AnalysisRecord, error) {
	rec, err := a.workflow.Submit(ctx, usecase.SubmitRequest{URL: url, Email: email})
	if err != nil {
		return rec, err
	}
	if err := a.queue.Wait(ctx); err != nil {
		return rec, fmt.Errorf("wait for narration: %w", err)
	}
	if a.printer != nil {
		if err := a.printer.Err(); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// SendEmail selects the record with id and sends its notification manually.
func (a *Application) SendEmail(ctx context.Context, id string) (domain.AnalysisRecord, error) {
	if _, err := a.workflow.Select(id); err != nil {
		return domain.AnalysisRecord{}, err
	}
	return a.workflow.SendEmail(ctx)
}

// Show selects the record with id and returns it with the narration it replays.
func (a *Application) Show(id string) (domain.AnalysisRecord, []string, error) {
	rec, err := a.workflow.Select(id)
	if err != nil {
		return domain.AnalysisRecord{}, nil, err
	}
	return rec, a.queue.Lines(), nil
}

// History returns a copy of all records grouped by country, with the sorted country names.
func (a *Application) History() (domain.HistoryByCountry, []string) {
	return a.store.Snapshot(), a.store.Countries()
}

// Workflow exposes the orchestrator, e.g. for the current selection.
func (a *Application) Workflow() *usecase.Workflow { return a.workflow }

// Store exposes the history store.
func (a *Application) Store() *history.Store { return a.store }

// Queue exposes the narration queue backing the visible log.
func (a *Application) Queue() *playback.Queue { return a.queue }

// Registry is the Prometheus registry the workflow metrics are registered with.
func (a *Application) Registry() *prometheus.Registry { return a.registry }

// Close stops narration, the metrics listener and the storage it opened.
func (a *Application) Close(ctx context.Context) error {
	a.queue.Close()

	var errs []error
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.closeKV(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *Application) closeKV() error {
	if !a.ownsKV || a.kv == nil {
		return nil
	}
	if err := a.kv.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
