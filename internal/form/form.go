// Package form owns the authoritative state of one check-in form: the row
// collection, its highlight map, selection and the error-only view. Every
// mutation is serialized through the Form; the components it drives receive
// state as input and return new values.
package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"labcheckin/internal/bulk"
	"labcheckin/internal/debounce"
	"labcheckin/internal/observability"
	"labcheckin/internal/uniqueness"
	"labcheckin/internal/validation"
	"labcheckin/pkg/domain"

	"github.com/google/uuid"
)

// Errors returned by the form.
var (
	ErrNotLoaded   = errors.New("form: not loaded")
	ErrFormInvalid = errors.New("form: contains invalid fields")
	ErrMixedKinds  = errors.New("form: orders mix individual and group materials")
)

// Default debounce windows.
const (
	DefaultEditDelay = 500 * time.Millisecond
	DefaultHideDelay = 1500 * time.Millisecond
)

const (
	editPrefix = "edit:"
	hidePrefix = "hide:"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Archiver stores accepted check-in requests.
type Archiver interface {
	Archive(ctx context.Context, requests []domain.CheckInRequest) (string, error)
}

// Deps are the collaborators a form talks to. Materials and ContainerTypes
// are required; the rest disable their feature when nil.
type Deps struct {
	Materials      domain.MaterialSource
	Locations      domain.LocationSource
	ContainerTypes domain.ContainerTypeLookup
	Uniqueness     domain.UniquenessSource
	Sink           domain.CheckInSink
}

// Option configures a Form.
type Option func(*Form)

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(f *Form) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithClock overrides the clock used for operation timing.
func WithClock(c Clock) Option {
	return func(f *Form) {
		if c != nil {
			f.clock = c
		}
	}
}

// WithMetricsRecorder records the outcome of each operation.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(f *Form) {
		if m != nil {
			f.metrics = m
		}
	}
}

// WithTracer traces each operation.
func WithTracer(t observability.Tracer) Option {
	return func(f *Form) {
		if t != nil {
			f.tracer = t
		}
	}
}

// WithNotifier delivers user-facing notifications.
func WithNotifier(n domain.Notifier) Option {
	return func(f *Form) { f.notifier = n }
}

// WithArchiver stores accepted submissions.
func WithArchiver(a Archiver) Option {
	return func(f *Form) { f.archiver = a }
}

// WithDebounceClock drives the debounce timers, typically a
// debounce.ManualClock in tests.
func WithDebounceClock(c debounce.Clock) Option {
	return func(f *Form) { f.sched = debounce.New(c) }
}

// WithDebounce sets the edit-commit and filter-hide windows.
func WithDebounce(edit, hide time.Duration) Option {
	return func(f *Form) {
		f.editDelay = edit
		f.hideDelay = hide
	}
}

// WithIDFunc overrides the identity generator for duplicated rows.
func WithIDFunc(fn bulk.IDFunc) Option {
	return func(f *Form) {
		if fn != nil {
			f.newID = fn
		}
	}
}

// WithValidator replaces the default field validation engine.
func WithValidator(v bulk.Validator) Option {
	return func(f *Form) {
		if v != nil {
			f.validator = v
		}
	}
}

// Form is a check-in form. The zero value is not usable; construct with New.
type Form struct {
	deps      Deps
	validator bulk.Validator
	uniq      *uniqueness.Coordinator

	logger   observability.Logger
	metrics  observability.MetricsRecorder
	tracer   observability.Tracer
	clock    Clock
	notifier domain.Notifier
	archiver Archiver
	newID    bulk.IDFunc

	sched     *debounce.Scheduler
	editDelay time.Duration
	hideDelay time.Duration

	bg sync.WaitGroup

	mu         sync.Mutex
	loaded     bool
	state      bulk.State
	initial    bulk.State
	sel        bulk.Selection
	errorsOnly bool
	shown      map[string]bool
	dirty      bool
}

// New constructs an unloaded form.
func New(deps Deps, opts ...Option) *Form {
	f := &Form{
		deps:      deps,
		logger:    observability.NoopLogger{},
		metrics:   observability.NoopMetrics{},
		tracer:    observability.NoopTracer{},
		clock:     systemClock{},
		newID:     uuid.NewString,
		editDelay: DefaultEditDelay,
		hideDelay: DefaultHideDelay,
		sel:       emptySelection(),
		shown:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.validator == nil {
		f.validator = validation.NewDefaultEngine(deps.ContainerTypes)
	}
	if f.sched == nil {
		f.sched = debounce.New(nil)
	}
	if deps.Uniqueness != nil {
		f.uniq = uniqueness.NewCoordinator(deps.Uniqueness)
	}
	return f
}

func emptySelection() bulk.Selection {
	return bulk.Selection{Selected: map[string]bool{}, Collapsed: map[string]bool{}}
}

// run wraps an operation with tracing, metrics and logging. A uniqueness
// pass deferred by pending barcode format errors is returned to the caller
// but recorded as a success.
func (f *Form) run(ctx context.Context, op string, fn func(context.Context) error) error {
	start := f.clock.Now()
	ctx, span := f.tracer.Start(ctx, op)
	err := fn(ctx)
	deferred := errors.Is(err, uniqueness.ErrFormatPending)
	if deferred {
		span.End(nil)
	} else {
		span.End(err)
	}
	elapsed := f.clock.Now().Sub(start)
	f.metrics.Observe(ctx, op, err == nil || deferred, elapsed)
	switch {
	case deferred:
		f.logger.Debug("form operation deferred", "operation", op, "reason", err)
	case err != nil:
		f.logger.Error("form operation failed", "operation", op, "error", err)
	default:
		f.logger.Debug("form operation", "operation", op, "duration", elapsed)
	}
	return err
}

func (f *Form) notify(ctx context.Context, level domain.NotificationLevel, msg string) {
	if f.notifier == nil {
		return
	}
	f.notifier.Notify(ctx, domain.Notification{Level: level, Message: msg})
}

// install replaces the current state with the outcome of an operation and
// schedules a uniqueness pass when one is due. Callers hold f.mu.
func (f *Form) install(ctx context.Context, out bulk.Outcome) {
	f.state = out.State
	f.dirty = true
	f.refreshView()
	if out.Revalidate {
		f.background(ctx)
	}
}

func (f *Form) background(ctx context.Context) {
	if f.uniq == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	f.bg.Add(1)
	go func() {
		defer f.bg.Done()
		if err := f.ValidateUniqueness(ctx); err != nil && !errors.Is(err, uniqueness.ErrFormatPending) {
			f.logger.Warn("background uniqueness pass failed", "error", err)
		}
	}()
}

// Wait blocks until every background uniqueness pass has finished.
func (f *Form) Wait() {
	f.bg.Wait()
}

// Close cancels pending debounced work and waits for background passes.
func (f *Form) Close() {
	f.sched.Stop()
	f.bg.Wait()
}
