package services

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ytakahashi/todo-api/internal/services"

// StoreMetrics holds the Prometheus collectors for store operations.
type StoreMetrics struct {
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// NewStoreMetrics registers the store collectors with reg.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	factory := promauto.With(reg)
	return &StoreMetrics{
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "todo_store_operation_duration_seconds",
				Help:    "Duration of todo store operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todo_store_errors_total",
				Help: "Total number of todo store errors",
			},
			[]string{"operation", "error_type"},
		),
	}
}

// Instrumented decorates a TodoStore with a span and a latency observation
// per call.
type Instrumented struct {
	base    TodoStore
	metrics *StoreMetrics
	tracer  trace.Tracer
}

// NewInstrumented wraps base. A nil provider means the global one.
func NewInstrumented(base TodoStore, metrics *StoreMetrics, tp trace.TracerProvider) *Instrumented {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Instrumented{
		base:    base,
		metrics: metrics,
		tracer:  tp.Tracer(tracerName),
	}
}

func (s *Instrumented) List(ctx context.Context) ([]*Todo, error) {
	var todos []*Todo
	err := s.observe(ctx, "list", "", func(ctx context.Context) (err error) {
		todos, err = s.base.List(ctx)
		return err
	})
	return todos, err
}

func (s *Instrumented) Create(ctx context.Context, fields map[string]any) (*Todo, error) {
	var todo *Todo
	err := s.observe(ctx, "create", "", func(ctx context.Context) (err error) {
		todo, err = s.base.Create(ctx, fields)
		return err
	})
	return todo, err
}

func (s *Instrumented) Get(ctx context.Context, id string) (*Todo, error) {
	var todo *Todo
	err := s.observe(ctx, "get", id, func(ctx context.Context) (err error) {
		todo, err = s.base.Get(ctx, id)
		return err
	})
	return todo, err
}

func (s *Instrumented) Update(ctx context.Context, id string, fields map[string]any) (*Todo, error) {
	var todo *Todo
	err := s.observe(ctx, "update", id, func(ctx context.Context) (err error) {
		todo, err = s.base.Update(ctx, id, fields)
		return err
	})
	return todo, err
}

func (s *Instrumented) Delete(ctx context.Context, id string) error {
	return s.observe(ctx, "delete", id, func(ctx context.Context) error {
		return s.base.Delete(ctx, id)
	})
}

func (s *Instrumented) Ping(ctx context.Context) error {
	return s.observe(ctx, "ping", "", s.base.Ping)
}

func (s *Instrumented) Close(ctx context.Context) error {
	return s.base.Close(ctx)
}

func (s *Instrumented) observe(ctx context.Context, op, id string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "todo.store."+op)
	defer span.End()
	if id != "" {
		span.SetAttributes(attribute.String("todo.id", id))
	}

	start := time.Now()
	err := fn(ctx)
	if s.metrics != nil {
		s.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	if err == nil {
		return nil
	}

	kind := errorKind(err)
	span.SetAttributes(attribute.String("todo.error_type", kind))
	if kind == "storage" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if s.metrics != nil {
		s.metrics.errors.WithLabelValues(op, kind).Inc()
	}
	return err
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMalformedID):
		return "malformed_id"
	default:
		return "storage"
	}
}
