package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sakif/filpulse/internal/apperror"
)

const tracerName = "github.com/sakif/filpulse/internal/query"

// Row is one result row keyed by column name.
type Row = map[string]any

// Engine runs trusted SQL with bound arguments against the storage engine.
// Implementations acquire a connection per call and release it on every
// exit path.
type Engine interface {
	QueryRows(ctx context.Context, sql string, args ...any) ([]Row, error)
	QueryCount(ctx context.Context, sql string, args ...any) (int64, error)
}

// Envelope is the list-mode response.
type Envelope struct {
	Items  []Row `json:"list"`
	Total  int64 `json:"total"`
	Offset int64 `json:"offset"`
}

// EmptyEnvelope is what a query over an empty relation returns.
func EmptyEnvelope() *Envelope {
	return &Envelope{Items: []Row{}}
}

// Executor runs planned queries in list or single-row mode.
//
// Each call gets its own deadline (the configured query timeout), applied to
// the count and page queries together. A deadline hit is reported as
// apperror.ErrTimeout so the client can retry; nothing is retried here.
type Executor struct {
	engine  Engine
	timeout time.Duration
	metrics *Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewExecutor creates an Executor. metrics may be nil.
func NewExecutor(engine Engine, timeout time.Duration, metrics *Metrics, logger *slog.Logger) *Executor {
	return &Executor{
		engine:  engine,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// List runs q in list mode: a COUNT over the filtered relation, then, when
// the count is positive, one page at the clamped offset.
func (e *Executor) List(ctx context.Context, q Query, rawOffset string) (env *Envelope, err error) {
	start := time.Now()
	defer func() { e.metrics.observe(q.Name, "list", start, err) }()

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	total, err := e.count(ctx, q)
	if err != nil {
		return nil, e.classify(ctx, q.Name, err)
	}
	if total <= 0 {
		e.logger.Info("query listed", "endpoint", q.Name, "offset", 0, "total", 0, "items", 0)
		return EmptyEnvelope(), nil
	}

	offset := SanitizeOffset(rawOffset, total)
	rows, err := e.page(ctx, q, offset)
	if err != nil {
		return nil, e.classify(ctx, q.Name, err)
	}
	if rows == nil {
		rows = []Row{}
	}
	normalizeBools(rows, q.BoolColumns)

	e.logger.Info("query listed", "endpoint", q.Name, "offset", offset, "total", total, "items", len(rows))
	return &Envelope{Items: rows, Total: total, Offset: offset}, nil
}

// Single runs q without pagination and returns its first row. An empty
// result is apperror.ErrNotFound: singleton aggregates always have a row.
func (e *Executor) Single(ctx context.Context, q Query) (row Row, err error) {
	start := time.Now()
	defer func() { e.metrics.observe(q.Name, "single", start, err) }()

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "query.single", trace.WithAttributes(attribute.String("filpulse.endpoint", q.Name)))
	rows, err := e.engine.QueryRows(ctx, q.SingleSQL(), q.Fragment.Args...)
	endSpan(span, err)
	if err != nil {
		return nil, e.classify(ctx, q.Name, err)
	}
	if len(rows) == 0 {
		return nil, apperror.NotFound(q.Name, "singleton")
	}
	normalizeBools(rows[:1], q.BoolColumns)

	e.logger.Info("query single", "endpoint", q.Name, "row", rows[0])
	return rows[0], nil
}

func (e *Executor) count(ctx context.Context, q Query) (int64, error) {
	ctx, span := e.tracer.Start(ctx, "query.count", trace.WithAttributes(attribute.String("filpulse.endpoint", q.Name)))
	total, err := e.engine.QueryCount(ctx, q.CountSQL(), q.Fragment.Args...)
	endSpan(span, err)
	return total, err
}

func (e *Executor) page(ctx context.Context, q Query, offset int64) ([]Row, error) {
	ctx, span := e.tracer.Start(ctx, "query.page", trace.WithAttributes(
		attribute.String("filpulse.endpoint", q.Name),
		attribute.Int64("filpulse.offset", offset),
	))
	rows, err := e.engine.QueryRows(ctx, q.PageSQL(), q.PageArgs(PageSize, offset)...)
	endSpan(span, err)
	return rows, err
}

func (e *Executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// classify maps an engine failure to a client-facing error. The engine's
// message is logged but never returned, so no SQL or driver detail leaks.
func (e *Executor) classify(ctx context.Context, name string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if isTimeout(ctx, err) {
		e.logger.Warn("query timed out", "endpoint", name, "error", err)
		return apperror.Timeout(name, err)
	}
	e.logger.Error("query failed", "endpoint", name, "error", err)
	return apperror.Upstream(name, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
	}
	span.End()
}

// normalizeBools converts integer truth values to bool in place.
func normalizeBools(rows []Row, columns []string) {
	if len(columns) == 0 {
		return
	}
	for _, row := range rows {
		for _, c := range columns {
			switch v := row[c].(type) {
			case int64:
				row[c] = v != 0
			case int32:
				row[c] = v != 0
			case int:
				row[c] = v != 0
			case nil:
				row[c] = false
			}
		}
	}
}
