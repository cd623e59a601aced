package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"labcheckin/internal/archive"
	"labcheckin/internal/catalog"
	"labcheckin/internal/config"
	"labcheckin/internal/form"
	"labcheckin/internal/observability"
	"labcheckin/internal/rules"
	"labcheckin/internal/storage"
	"labcheckin/internal/uniqueness"
	"labcheckin/pkg/domain"
)

var newLogger = observability.NewProductionLogger

type app struct {
	cfg      config.Config
	zap      *zap.Logger
	logger   observability.Logger
	metrics  observability.MetricsRecorder
	registry *prometheus.Registry
	expvar   *observability.ExpvarMetricsRecorder
	tracer   observability.Tracer
	trace    io.Closer
	catalog  *catalog.Catalog
	store    storage.Store
	archiver *archive.Archiver
	notifier *streamNotifier
}

func newApp(ctx context.Context, opts *globalOptions, stderr io.Writer) (a *app, err error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	zl, err := newLogger(cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	a = &app{
		cfg:      cfg,
		zap:      zl,
		logger:   observability.NewZapLogger(zl),
		metrics:  observability.NoopMetrics{},
		tracer:   observability.NoopTracer{},
		notifier: &streamNotifier{w: stderr},
	}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	switch cfg.Metrics {
	case "prometheus":
		a.registry = prometheus.NewRegistry()
		rec, err := observability.NewPrometheusRecorder(a.registry, "labcheckin")
		if err != nil {
			return nil, err
		}
		a.metrics = rec
	case "expvar":
		a.expvar = observability.NewExpvarMetricsRecorder("")
		a.metrics = a.expvar
	}
	if opts.tracePath != "" {
		f, err := os.Create(opts.tracePath)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.trace = f
		a.tracer = observability.NewJSONTracer(f)
	}

	a.catalog, err = catalog.Load(opts.catalogPath)
	if err != nil {
		return nil, err
	}
	engine := rules.NewDefaultRulesEngine(a.catalog, a.catalog)
	a.store, err = storage.Open(ctx, cfg.Storage, engine)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.catalog.SetOccupancy(a.store)

	if !strings.EqualFold(cfg.Archive.Driver, config.ArchiveNone) {
		store, err := archive.Open(ctx, archive.Settings{
			Driver: archive.Driver(strings.ToLower(cfg.Archive.Driver)),
			Dir:    cfg.Archive.Dir,
			S3: archive.S3Config{
				Bucket:    cfg.Archive.S3.Bucket,
				Region:    cfg.Archive.S3.Region,
				Endpoint:  cfg.Archive.S3.Endpoint,
				Prefix:    cfg.Archive.S3.Prefix,
				PathStyle: cfg.Archive.S3.PathStyle,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		a.archiver = archive.New(store)
	}
	a.logger.Debug("checkin configured",
		"storage", cfg.Storage.Driver,
		"archive", cfg.Archive.Driver,
		"metrics", cfg.Metrics,
	)
	return a, nil
}

func (a *app) newForm() *form.Form {
	opts := []form.Option{
		form.WithLogger(a.logger),
		form.WithMetricsRecorder(a.metrics),
		form.WithTracer(a.tracer),
		form.WithNotifier(a.notifier),
		form.WithDebounce(a.cfg.Form.EditDelay, a.cfg.Form.HideDelay),
	}
	if a.archiver != nil {
		opts = append(opts, form.WithArchiver(a.archiver))
	}
	return form.New(form.Deps{
		Materials:      a.catalog,
		Locations:      a.catalog,
		ContainerTypes: a.catalog,
		Uniqueness:     uniqueness.NewIndexSource(a.store, a.cfg.Uniqueness.Concurrency),
		Sink:           a.store,
	}, opts...)
}

// loadBatch reads path and loads it into a new form. Background uniqueness
// passes have finished when it returns.
func (a *app) loadBatch(ctx context.Context, path string) (*form.Form, error) {
	b, err := readBatch(path)
	if err != nil {
		return nil, err
	}
	orders, err := b.orderInputs(ctx, a.catalog)
	if err != nil {
		return nil, err
	}
	validate := a.cfg.Form.ValidateOnLoad
	if b.ValidateUniqueness != nil {
		validate = *b.ValidateUniqueness
	}
	f := a.newForm()
	if err := f.Load(ctx, form.LoadRequest{Orders: orders, ValidateUniqueness: validate}); err != nil {
		f.Close()
		return nil, err
	}
	f.Wait()
	return f, nil
}

func (a *app) close() {
	a.reportMetrics()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close storage", "error", err)
		}
	}
	if a.trace != nil {
		_ = a.trace.Close()
	}
	_ = a.zap.Sync()
}

func (a *app) reportMetrics() {
	if a.registry != nil {
		families, err := a.registry.Gather()
		if err != nil {
			a.logger.Warn("gather metrics", "error", err)
			return
		}
		for _, mf := range families {
			for _, m := range mf.GetMetric() {
				if m.GetCounter() == nil {
					continue
				}
				fields := []any{"metric", mf.GetName(), "value", m.GetCounter().GetValue()}
				for _, lp := range m.GetLabel() {
					fields = append(fields, lp.GetName(), lp.GetValue())
				}
				a.logger.Debug("metric", fields...)
			}
		}
	}
	if a.expvar != nil {
		a.logger.Debug("metrics", "expvar", a.expvar.Name(), "results", a.expvar.Snapshot().Results)
	}
}

// streamNotifier prints form notifications for the operator.
type streamNotifier struct {
	mu    sync.Mutex
	w     io.Writer
	notes []domain.Notification
}

func (n *streamNotifier) Notify(_ context.Context, note domain.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	fmt.Fprintf(n.w, "[%s] %s\n", note.Level, note.Message)
}
