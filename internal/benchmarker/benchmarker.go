package benchmarker

import (
	"context"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/moamenhredeen/oasconform/internal/conformance"
	"github.com/moamenhredeen/oasconform/internal/models"
	"github.com/moamenhredeen/oasconform/internal/tester"
	"golang.org/x/time/rate"
)

// EventType represents the type of benchmark event
type EventType int

const (
	// EventWarmupStarting indicates warmup phase is starting for a case
	EventWarmupStarting EventType = iota
	// EventWarmupProgress indicates warmup progress
	EventWarmupProgress
	// EventWarmupCompleted indicates warmup phase completed
	EventWarmupCompleted
	// EventBenchmarkStarting indicates benchmark is starting for a case
	EventBenchmarkStarting
	// EventBenchmarkProgress indicates benchmark progress (periodic updates)
	EventBenchmarkProgress
	// EventBenchmarkCompleted indicates benchmark completed for a case
	EventBenchmarkCompleted
)

// BenchmarkEvent represents an event during benchmark execution
type BenchmarkEvent struct {
	Type     EventType
	Case     conformance.TestCase
	Result   *models.BenchmarkResult // nil until completed
	Index    int                     // current case index (0-based)
	Total    int                     // total number of cases
	Progress int                     // current iteration count
	MaxIter  int                     // max iterations for this phase

	// Running stats (for progress events)
	RunningAvg    time.Duration
	RunningReqSec float64
	ErrorCount    int
}

// OnBenchmarkEvent is a callback function for benchmark events
type OnBenchmarkEvent func(event BenchmarkEvent)

// Config holds benchmark configuration
type Config struct {
	Iterations       int           // Number of executions per case
	Concurrency      int           // Number of concurrent workers
	WarmupRuns       int           // Number of warmup iterations (discarded)
	RateLimit        float64       // Max requests per second (0 = unlimited)
	Timeout          time.Duration // Per-request timeout
	DisableKeepAlive bool          // Disable HTTP connection reuse
	UserAgent        string
	Validate         conformance.ValidateOptions
}

// DefaultConfig returns default benchmark configuration
func DefaultConfig() Config {
	return Config{
		Iterations:       100,
		Concurrency:      1,
		WarmupRuns:       5,
		RateLimit:        0,
		Timeout:          30 * time.Second,
		DisableKeepAlive: false,
	}
}

// Benchmarker repeatedly executes conformance cases and collects latency and
// verdict statistics
type Benchmarker struct {
	config  Config
	tester  *tester.Tester
	limiter *rate.Limiter
}

// NewBenchmarker creates a benchmarker dispatching to the API at baseURL
func NewBenchmarker(config Config, spec conformance.Specification, baseURL string) *Benchmarker {
	if config.Iterations < 1 {
		config.Iterations = 1
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}

	httpTransport := tester.NewHTTPTransport(baseURL)
	httpTransport.Client = &http.Client{
		Transport: &http.Transport{
			DisableKeepAlives:   config.DisableKeepAlive,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: config.Concurrency,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}
	if config.UserAgent != "" {
		httpTransport.UserAgent = config.UserAgent
	}

	// Create rate limiter if configured
	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), max(1, int(config.RateLimit)))
	}

	return &Benchmarker{
		config: config,
		tester: tester.NewTester(spec, httpTransport, tester.Options{
			Timeout:  config.Timeout,
			Validate: config.Validate,
		}),
		limiter: limiter,
	}
}

// iteration holds the result of a single execution
type iteration struct {
	Duration   time.Duration
	StatusCode int
	Outcome    conformance.State
	Error      string
}

// BenchmarkCase benchmarks a single test case
func (b *Benchmarker) BenchmarkCase(
	ctx context.Context,
	tc conformance.TestCase,
	onEvent OnBenchmarkEvent,
	index, total int,
) models.BenchmarkResult {
	result := models.BenchmarkResult{
		Name:        tc.Name,
		Path:        tc.Operation.Path,
		Method:      tc.Operation.Method,
		OperationID: tc.Operation.OperationID,
		Iterations:  b.config.Iterations,
		Concurrency: b.config.Concurrency,
		WarmupRuns:  b.config.WarmupRuns,
		Outcomes:    make(map[string]int),
		StatusCodes: make(map[int]int),
	}

	emit := func(event BenchmarkEvent) {
		if onEvent != nil {
			event.Case = tc
			event.Index = index
			event.Total = total
			onEvent(event)
		}
	}

	// Warmup phase, single-threaded, no stats collection
	if b.config.WarmupRuns > 0 {
		emit(BenchmarkEvent{Type: EventWarmupStarting, MaxIter: b.config.WarmupRuns})
		for i := 0; i < b.config.WarmupRuns && ctx.Err() == nil; i++ {
			b.execute(ctx, tc)
			if (i+1)%max(1, b.config.WarmupRuns/5) == 0 {
				emit(BenchmarkEvent{Type: EventWarmupProgress, Progress: i + 1, MaxIter: b.config.WarmupRuns})
			}
		}
		emit(BenchmarkEvent{Type: EventWarmupCompleted})
	}

	emit(BenchmarkEvent{Type: EventBenchmarkStarting, MaxIter: b.config.Iterations})

	startTime := time.Now()
	iterations := b.runConcurrentBenchmark(ctx, tc, emit)
	result.TotalDuration = time.Since(startTime)

	result = b.processResults(result, iterations)

	emit(BenchmarkEvent{Type: EventBenchmarkCompleted, Result: &result})
	return result
}

// runConcurrentBenchmark executes the iterations with a worker pool.
// Iterations not started before ctx is canceled stay Pending.
func (b *Benchmarker) runConcurrentBenchmark(ctx context.Context, tc conformance.TestCase, emit func(BenchmarkEvent)) []iteration {
	results := make([]iteration, b.config.Iterations)
	jobs := make(chan int, b.config.Iterations)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var completed int
	var totalDuration time.Duration
	var errorCount int
	start := time.Now()

	// Progress reporting interval
	progressInterval := max(1, b.config.Iterations/20) // ~5% intervals

	for w := 0; w < b.config.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if b.limiter != nil {
					if err := b.limiter.Wait(ctx); err != nil {
						return
					}
				}
				if ctx.Err() != nil {
					return
				}

				res := b.execute(ctx, tc)
				results[i] = res

				mu.Lock()
				completed++
				totalDuration += res.Duration
				if res.Outcome == conformance.StateErrored {
					errorCount++
				}
				event := BenchmarkEvent{
					Type:       EventBenchmarkProgress,
					Progress:   completed,
					MaxIter:    b.config.Iterations,
					RunningAvg: totalDuration / time.Duration(completed),
					ErrorCount: errorCount,
				}
				if elapsed := time.Since(start).Seconds(); elapsed > 0 {
					event.RunningReqSec = float64(completed) / elapsed
				}
				if completed%progressInterval == 0 {
					emit(event)
				}
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < b.config.Iterations; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

// execute runs the case once and keeps what the statistics need
func (b *Benchmarker) execute(ctx context.Context, tc conformance.TestCase) iteration {
	verdict := b.tester.Execute(ctx, tc)

	res := iteration{Duration: verdict.Duration, Outcome: verdict.Outcome}
	if verdict.Response != nil {
		res.StatusCode = verdict.Response.Status
	}
	if verdict.Outcome == conformance.StateErrored || verdict.Outcome == conformance.StateFailed {
		res.Error = verdict.Message
	}
	return res
}

// processResults calculates statistics from raw results
func (b *Benchmarker) processResults(result models.BenchmarkResult, iterations []iteration) models.BenchmarkResult {
	if len(iterations) == 0 {
		return result
	}

	var durations []time.Duration
	var totalDuration time.Duration
	errorSet := make(map[string]bool)

	for _, r := range iterations {
		// Iterations not started before cancellation
		if r.Outcome == conformance.StatePending {
			continue
		}
		result.Completed++
		result.Outcomes[r.Outcome.String()]++

		switch r.Outcome {
		case conformance.StatePassed:
			result.PassCount++
		case conformance.StateFailed:
			result.FailCount++
		case conformance.StateErrored:
			result.ErrorCount++
		}
		if r.Error != "" && len(result.SampleErrors) < 5 && !errorSet[r.Error] {
			result.SampleErrors = append(result.SampleErrors, r.Error)
			errorSet[r.Error] = true
		}

		// Latency only counts exchanges that produced a response
		if r.StatusCode > 0 {
			result.StatusCodes[r.StatusCode]++
			durations = append(durations, r.Duration)
			totalDuration += r.Duration
		}
	}
	result.Stable = len(result.Outcomes) == 1

	if len(durations) > 0 {
		sort.Slice(durations, func(i, j int) bool {
			return durations[i] < durations[j]
		})

		result.MinTime = durations[0]
		result.MaxTime = durations[len(durations)-1]
		result.AvgTime = totalDuration / time.Duration(len(durations))
		result.P50Time = percentile(durations, 50)
		result.P90Time = percentile(durations, 90)
		result.P99Time = percentile(durations, 99)
	}

	if result.TotalDuration > 0 {
		result.RequestsPerSec = float64(len(durations)) / result.TotalDuration.Seconds()
	}

	if result.Completed > 0 {
		result.ErrorRate = float64(result.ErrorCount) / float64(result.Completed) * 100
		result.PassRate = float64(result.PassCount) / float64(result.Completed) * 100
	}

	return result
}

// percentile calculates the p-th percentile from sorted durations
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	index := float64(len(sorted)-1) * float64(p) / 100.0
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[lower]
	}

	// Linear interpolation
	weight := index - float64(lower)
	return time.Duration(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}

// BenchmarkCases benchmarks multiple cases with live event reporting
func (b *Benchmarker) BenchmarkCases(
	ctx context.Context,
	cases []conformance.TestCase,
	onEvent OnBenchmarkEvent,
) models.BenchmarkSummary {
	summary := models.BenchmarkSummary{
		Iterations:  b.config.Iterations,
		Concurrency: b.config.Concurrency,
		WarmupRuns:  b.config.WarmupRuns,
		Results:     make([]models.BenchmarkResult, 0, len(cases)),
	}

	startTime := time.Now()

	for i, tc := range cases {
		if ctx.Err() != nil {
			break
		}
		summary.AddResult(b.BenchmarkCase(ctx, tc, onEvent, i, len(cases)))
	}

	summary.Finalize(time.Since(startTime))
	return summary
}
