package tester

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moamenhredeen/oasconform/internal/conformance"
	"github.com/moamenhredeen/oasconform/internal/metrics"
	"github.com/moamenhredeen/oasconform/internal/models"
	"golang.org/x/sync/errgroup"
)

// EventType represents the type of test event
type EventType int

const (
	// EventStarting indicates a test is about to start
	EventStarting EventType = iota
	// EventCompleted indicates a test has completed
	EventCompleted
)

// TestEvent represents an event during test execution
type TestEvent struct {
	Type   EventType
	Case   conformance.TestCase
	Result *models.TestResult // nil for Starting events
	Index  int                // position of the case in the run (0-based)
	Total  int                // total number of cases
}

// OnTestEvent is a callback function for test events. Calls are serialized.
type OnTestEvent func(event TestEvent)

// Options configures a Tester
type Options struct {
	// Concurrency is the maximum number of cases in flight; values below 1 mean 1
	Concurrency int
	// Timeout bounds each dispatch
	Timeout  time.Duration
	Validate conformance.ValidateOptions
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
}

// Tester runs conformance test cases against a target
type Tester struct {
	spec      conformance.Specification
	transport conformance.Transport
	opts      Options
	logger    *slog.Logger
}

// curlRenderer is implemented by transports that can print a reproduction command
type curlRenderer interface {
	Curl(req conformance.TestRequest) string
}

// NewTester creates a new tester instance
func NewTester(spec conformance.Specification, transport conformance.Transport, opts Options) *Tester {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tester{
		spec:      spec,
		transport: transport,
		opts:      opts,
		logger:    logger,
	}
}

// Execute runs a single test case
func (t *Tester) Execute(ctx context.Context, tc conformance.TestCase) conformance.Verdict {
	return conformance.Execute(ctx, tc, t.spec, t.transport, conformance.ExecuteOptions{
		Timeout:      t.opts.Timeout,
		Validate:     t.opts.Validate,
		OnTransition: t.logTransition,
	})
}

func (t *Tester) logTransition(tc conformance.TestCase, from, to conformance.State) {
	t.logger.Debug("test case transition",
		"case", tc.Name,
		"operation", tc.Operation.Key(),
		"from", from.String(),
		"to", to.String())
}

// Run executes cases with up to Concurrency in flight and reports results in
// case order. Once ctx is canceled no further case is started; those cases are
// reported as Pending.
func (t *Tester) Run(ctx context.Context, cases []conformance.TestCase, onEvent OnTestEvent) models.TestSummary {
	runID := uuid.NewString()
	logger := t.logger.With("run_id", runID)
	total := len(cases)
	results := make([]models.TestResult, total)
	for i, tc := range cases {
		results[i] = t.Result(conformance.Verdict{Case: tc, Outcome: conformance.StatePending, Message: "not started"})
	}

	var mu sync.Mutex
	emit := func(event TestEvent) {
		if onEvent == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onEvent(event)
	}

	logger.Info("starting conformance run", "cases", total, "concurrency", t.opts.Concurrency)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(t.opts.Concurrency)
	for i, tc := range cases {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			emit(TestEvent{Type: EventStarting, Case: tc, Index: i, Total: total})

			verdict := t.Execute(ctx, tc)
			result := t.Result(verdict)
			results[i] = result
			t.logVerdict(logger, verdict)
			t.opts.Metrics.Observe(result)

			emit(TestEvent{Type: EventCompleted, Case: tc, Result: &result, Index: i, Total: total})
			return nil
		})
	}
	_ = g.Wait()

	summary := models.TestSummary{
		RunID:   runID,
		Results: make([]models.TestResult, 0, total),
	}
	for _, result := range results {
		summary.AddResult(result)
	}
	summary.Duration = time.Since(start)
	t.opts.Metrics.ObserveSummary(summary)

	logger.Info("conformance run finished",
		"passed", summary.Passed,
		"failed", summary.Failed,
		"errored", summary.Errored,
		"pending", summary.Pending,
		"duration", summary.Duration)
	return summary
}

func (t *Tester) logVerdict(logger *slog.Logger, v conformance.Verdict) {
	attrs := []any{
		"case", v.Case.Name,
		"operation", v.Case.Operation.Key(),
		"outcome", v.Outcome.String(),
	}
	switch v.Outcome {
	case conformance.StateErrored:
		logger.Warn("test case errored", append(attrs, "kind", v.Kind, "error", v.Message)...)
	case conformance.StateFailed:
		logger.Info("test case failed", append(attrs, "mismatches", len(v.Mismatches))...)
	default:
		logger.Debug("test case finished", attrs...)
	}
}

// dispatched reports whether the verdict's request reached the transport
func dispatched(v conformance.Verdict) bool {
	var te *conformance.TransportError
	return v.Response != nil || errors.As(v.Err, &te)
}

// Result converts a verdict into a reportable test result
func (t *Tester) Result(v conformance.Verdict) models.TestResult {
	tc := v.Case
	result := models.TestResult{
		Name:         tc.Name,
		Path:         tc.Operation.Path,
		Method:       tc.Operation.Method,
		OperationID:  tc.Operation.OperationID,
		Bad:          tc.Request.Bad,
		Tags:         tc.Tags,
		Outcome:      v.Outcome.String(),
		Kind:         v.Kind,
		Error:        v.Message,
		ResponseTime: v.Duration,
	}

	if v.Request != nil {
		result.Path = v.Request.Path
		if v.Request.Operation.OperationID != "" {
			result.OperationID = v.Request.Operation.OperationID
		}
		if renderer, ok := t.transport.(curlRenderer); ok && dispatched(v) && v.Outcome != conformance.StatePassed {
			result.Curl = renderer.Curl(*v.Request)
		}
	}
	if v.Response != nil {
		result.StatusCode = v.Response.Status
	}

	for _, m := range v.Mismatches {
		msg := fmt.Sprintf("expected %s, got %s", m.Expected, m.Actual)
		if m.Detail != "" {
			msg += ": " + m.Detail
		}
		result.ValidationErrors = append(result.ValidationErrors, models.ValidationError{
			Candidate: m.Candidate,
			Field:     m.Field,
			Message:   msg,
		})
	}

	return result
}
