package cortex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Values of the status label on cortex_sdk_operations_total.
const (
	statusOK       = "ok"
	statusError    = "error"
	statusCanceled = "canceled"
)

// observer logs and counts client operations. A nil observer, or one
// without logger or registerer, does nothing.
type observer struct {
	logger     *slog.Logger
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg == nil {
		return o, nil
	}

	ops, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cortex",
		Subsystem: "sdk",
		Name:      "operations_total",
		Help:      "Client operations by operation and status (ok, error, canceled).",
	}, []string{"operation", "status"}))
	if err != nil {
		return nil, err
	}
	dur, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cortex",
		Subsystem: "sdk",
		Name:      "operation_duration_seconds",
		Help:      "Client operation duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 600},
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	o.operations, o.duration = ops, dur
	return o, nil
}

// register adds c to reg. When several clients share a registerer the
// collector registered first is returned and reused.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var dup prometheus.AlreadyRegisteredError
	if !errors.As(err, &dup) {
		return c, fmt.Errorf("cortex: register metric: %w", err)
	}
	existing, ok := dup.ExistingCollector.(C)
	if !ok {
		return c, fmt.Errorf("cortex: metric already registered as %T", dup.ExistingCollector)
	}
	return existing, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	status := statusOf(err)

	if o.operations != nil {
		o.operations.WithLabelValues(op, status).Inc()
		o.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}

	attrs := []any{slog.String("op", op), slog.Duration("duration", elapsed)}
	if err == nil {
		o.logger.Debug("operation completed", attrs...)
		return
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs, slog.Int("status_code", apiErr.StatusCode), slog.String("code", apiErr.Code))
	}
	o.logger.Warn("operation failed", append(attrs, slog.String("status", status), slog.Any("error", err))...)
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return statusCanceled
	default:
		return statusError
	}
}
