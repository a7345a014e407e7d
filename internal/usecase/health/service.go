package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds each dependency check.
const DefaultTimeout = 5 * time.Second

// Status is the overall verdict: Healthy only when every check passes.
type Status string

const (
	Healthy  Status = "ok"
	Degraded Status = "degraded"
)

// CheckResult is the outcome of one dependency check.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Report maps each checked dependency to its result.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type probe struct {
	name string
	run  func(context.Context) error
}

// Service checks the store and, when configured, the model providers.
type Service struct {
	probes  []probe
	timeout time.Duration
}

// New creates a Service. embedding and llm may be nil and are then not reported.
func New(db DBPinger, embedding, llm Checker) *Service {
	s := &Service{probes: []probe{{"database", db.Ping}}, timeout: DefaultTimeout}
	if embedding != nil {
		s.probes = append(s.probes, probe{"embedding", embedding.HealthCheck})
	}
	if llm != nil {
		s.probes = append(s.probes, probe{"llm", llm.HealthCheck})
	}
	return s
}

// WithTimeout changes the per-check bound. Non-positive values are ignored.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs every probe concurrently. A probe that outlives the timeout
// counts as failed.
func (s *Service) Check(ctx context.Context) Report {
	results := make([]CheckResult, len(s.probes))
	var g errgroup.Group
	for i, p := range s.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			results[i] = CheckOK
			if err := runProbe(pctx, p); err != nil {
				results[i] = CheckError
			}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: Healthy, Checks: make(map[string]CheckResult, len(s.probes))}
	for i, p := range s.probes {
		report.Checks[p.name] = results[i]
		if results[i] != CheckOK {
			report.Status = Degraded
		}
	}
	return report
}

// runProbe returns when the probe does or when ctx ends, whichever is first.
func runProbe(ctx context.Context, p probe) error {
	done := make(chan error, 1)
	go func() { done <- p.run(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
