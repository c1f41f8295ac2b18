/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/moamenhredeen/oasconform/internal/benchmarker"
	"github.com/moamenhredeen/oasconform/internal/models"
	"github.com/moamenhredeen/oasconform/internal/output"
	"github.com/spf13/cobra"
)

var (
	// Benchmark-specific flags
	benchIterations   int
	benchWarmup       int
	benchRateLimit    float64
	benchNoKeepAlive  bool
	benchOutputFormat string
	benchOutputFile   string

	// Shared flags (reuse suiteFile, filter, tags, verbose from test.go)

	// Color helpers
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	white  = color.New(color.FgWhite, color.Bold).SprintFunc()
)

// benchmarkCmd represents the benchmark command
var benchmarkCmd = &cobra.Command{
	Use:   "benchmark [openapi-spec-file]",
	Short: "Benchmark API performance and verdict stability",
	Long: `Benchmark test cases by executing each of them repeatedly.

Every iteration is a full conformance execution, so besides latency
percentiles (p50, p90, p99) and requests per second the benchmark reports
the distribution of verdicts per case. A case whose iterations do not all
reach the same verdict is reported as unstable.

Examples:
  # Basic benchmark with defaults (100 iterations, 1 concurrent)
  oasconform benchmark api.yaml

  # High-load benchmark with concurrency
  oasconform benchmark api.yaml -n 1000 -c 10

  # Rate-limited benchmark of a hand written suite
  oasconform benchmark api.yaml --suite cases.yaml -n 500 --rate 50

  # Export results to JSON
  oasconform benchmark api.yaml -o json --output-file results.json`,
	Args: cobra.ExactArgs(1),
	Run:  runBenchmark,
}

func runBenchmark(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		fatalf("Error: %v", err)
	}
	validate, err := cfg.ValidateOptions()
	if err != nil {
		fatalf("Error: %v", err)
	}

	p, cases, err := loadCases(args[0], suiteFile, cfg)
	if err != nil {
		fatalf("Error: %v", err)
	}

	// Filter cases (reuse from test command)
	cases = filterCases(cases, filter, tags)
	if len(cases) == 0 {
		fmt.Println("No test cases found matching the criteria")
		os.Exit(0)
	}

	// Create benchmark configuration
	config := benchmarker.Config{
		Iterations:       benchIterations,
		Concurrency:      cfg.Concurrency,
		WarmupRuns:       benchWarmup,
		RateLimit:        benchRateLimit,
		Timeout:          cfg.Timeout,
		DisableKeepAlive: benchNoKeepAlive,
		UserAgent:        cfg.UserAgent,
		Validate:         validate,
	}

	// Print benchmark info
	fmt.Printf("\n%s\n", white("=== Benchmark Configuration ==="))
	fmt.Printf("Cases:       %d\n", len(cases))
	fmt.Printf("Iterations:  %d per case\n", config.Iterations)
	fmt.Printf("Concurrency: %d\n", config.Concurrency)
	fmt.Printf("Warmup:      %d iterations\n", config.WarmupRuns)
	if config.RateLimit > 0 {
		fmt.Printf("Rate Limit:  %.0f req/sec\n", config.RateLimit)
	}
	fmt.Printf("Timeout:     %v\n", config.Timeout)
	fmt.Printf("Keep-Alive:  %v\n", !config.DisableKeepAlive)
	fmt.Println()

	// Create benchmarker
	bench := benchmarker.NewBenchmarker(config, p, baseURL(cfg, p))

	// Setup context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nBenchmark interrupted, generating partial results...")
		cancel()
	}()

	var s *spinner.Spinner
	var phaseStartTime time.Time

	// Create event handler for live output
	onEvent := func(event benchmarker.BenchmarkEvent) {
		switch event.Type {
		case benchmarker.EventWarmupStarting:
			phaseStartTime = time.Now()
			if isTTY {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = fmt.Sprintf(" [%d/%d] %s - Warming up...",
					event.Index+1, event.Total, event.Case.Name)
				s.Start()
			} else {
				fmt.Printf("[%d/%d] %s - Warming up (%d iterations)...\n",
					event.Index+1, event.Total, event.Case.Name, event.MaxIter)
			}

		case benchmarker.EventWarmupProgress:
			if isTTY && s != nil {
				s.Suffix = fmt.Sprintf(" [%d/%d] %s - Warmup %d/%d",
					event.Index+1, event.Total, event.Case.Name,
					event.Progress, event.MaxIter)
			}

		case benchmarker.EventWarmupCompleted:
			if isTTY && s != nil {
				s.Stop()
			}
			elapsed := time.Since(phaseStartTime)
			fmt.Printf("[%d/%d] %s Warmup completed in %v\n",
				event.Index+1, event.Total, yellow("●"), elapsed.Round(time.Millisecond))

		case benchmarker.EventBenchmarkStarting:
			phaseStartTime = time.Now()
			if isTTY {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = fmt.Sprintf(" [%d/%d] %s - Benchmarking 0/%d...",
					event.Index+1, event.Total, event.Case.Name, event.MaxIter)
				s.Start()
			} else {
				fmt.Printf("[%d/%d] %s - Running benchmark (%d iterations)...\n",
					event.Index+1, event.Total, event.Case.Name, event.MaxIter)
			}

		case benchmarker.EventBenchmarkProgress:
			if isTTY && s != nil {
				avgMs := float64(event.RunningAvg.Microseconds()) / 1000
				s.Suffix = fmt.Sprintf(" [%d/%d] %s - %d/%d (avg: %.1fms, %.1f req/s, %d errors)",
					event.Index+1, event.Total, event.Case.Name,
					event.Progress, event.MaxIter, avgMs, event.RunningReqSec, event.ErrorCount)
			}

		case benchmarker.EventBenchmarkCompleted:
			if isTTY && s != nil {
				s.Stop()
			}

			result := event.Result
			elapsed := time.Since(phaseStartTime)
			prefix := fmt.Sprintf("[%d/%d]", event.Index+1, event.Total)

			// Status indicator based on pass rate and stability
			var status string
			if result.Completed > 0 && result.PassCount == result.Completed {
				status = green("✓")
			} else if result.Stable {
				status = red("✗")
			} else {
				status = yellow("●")
			}

			fmt.Printf("%s %s %s (%s %s)\n", prefix, status, result.Name, result.Method, result.Path)

			// Always show key metrics
			avgMs := float64(result.AvgTime.Microseconds()) / 1000
			p99Ms := float64(result.P99Time.Microseconds()) / 1000
			fmt.Printf("    %s avg: %.2fms | p99: %.2fms | %.1f req/s | passed: %d | failed: %d | errors: %d (%.1f%%)\n",
				cyan("→"),
				avgMs, p99Ms, result.RequestsPerSec,
				result.PassCount, result.FailCount, result.ErrorCount, result.ErrorRate)
			if !result.Stable {
				fmt.Printf("    %s unstable verdicts: %s\n", yellow("!"), formatOutcomes(result.Outcomes))
			}

			// Verbose output: show all details
			if verbose {
				minMs := float64(result.MinTime.Microseconds()) / 1000
				maxMs := float64(result.MaxTime.Microseconds()) / 1000
				p50Ms := float64(result.P50Time.Microseconds()) / 1000
				p90Ms := float64(result.P90Time.Microseconds()) / 1000

				fmt.Printf("    Latency:  min=%.2fms | p50=%.2fms | p90=%.2fms | max=%.2fms\n",
					minMs, p50Ms, p90Ms, maxMs)
				fmt.Printf("    Duration: %v | Verdicts: %s\n",
					elapsed.Round(time.Millisecond), formatOutcomes(result.Outcomes))

				if len(result.StatusCodes) > 0 {
					statuses := make([]int, 0, len(result.StatusCodes))
					for code := range result.StatusCodes {
						statuses = append(statuses, code)
					}
					sort.Ints(statuses)
					var codes []string
					for _, code := range statuses {
						codes = append(codes, fmt.Sprintf("%d:%d", code, result.StatusCodes[code]))
					}
					fmt.Printf("    Status codes: %s\n", strings.Join(codes, ", "))
				}

				if len(result.SampleErrors) > 0 {
					fmt.Printf("    Sample errors:\n")
					for _, e := range result.SampleErrors {
						fmt.Printf("      - %s\n", red(e))
					}
				}
			}
		}
	}

	// Run benchmarks
	summary := bench.BenchmarkCases(ctx, cases, onEvent)

	// Handle output format
	if benchOutputFormat != "" {
		format, err := output.ParseFormat(benchOutputFormat)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if err := output.ExportBenchmarkSummary(summary, format, benchOutputFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting results: %v\n", err)
			os.Exit(1)
		}

		// If writing to file, still show summary
		if benchOutputFile != "" {
			fmt.Printf("\nResults exported to: %s\n", benchOutputFile)
			displayBenchmarkSummary(summary)
		}
		// If writing to stdout, skip display (already output)
		return
	}

	// Display summary
	displayBenchmarkSummary(summary)
}

func displayBenchmarkSummary(summary models.BenchmarkSummary) {
	fmt.Println()
	fmt.Printf("%s\n", white("=== Benchmark Summary ==="))
	fmt.Printf("Total Cases:        %d\n", summary.TotalCases)
	fmt.Printf("Total Requests:     %d\n", summary.TotalRequests)
	fmt.Printf("Passed / Failed:    %s / %s\n", green(summary.TotalPassed), red(summary.TotalFailed))
	fmt.Printf("Total Duration:     %v\n", summary.TotalDuration.Round(time.Millisecond))
	fmt.Printf("Overall Throughput: %s\n", cyan(fmt.Sprintf("%.1f req/sec", summary.OverallReqsPerSec)))
	fmt.Println()

	// Latency summary
	fmt.Printf("%s\n", white("Latency Overview:"))
	fmt.Printf("  Min: %.2fms\n", float64(summary.OverallMinTime.Microseconds())/1000)
	fmt.Printf("  Avg: %.2fms\n", float64(summary.OverallAvgTime.Microseconds())/1000)
	fmt.Printf("  Max: %.2fms\n", float64(summary.OverallMaxTime.Microseconds())/1000)
	fmt.Println()

	// Error summary
	if summary.TotalErrors > 0 {
		fmt.Printf("%s\n", white("Error Summary:"))
		fmt.Printf("  Total Errors: %s\n", red(summary.TotalErrors))
		fmt.Printf("  Error Rate:   %s\n", red(fmt.Sprintf("%.2f%%", summary.OverallErrorRate)))
		fmt.Println()
	} else {
		fmt.Printf("Errors: %s\n", green("0"))
		fmt.Println()
	}

	if summary.UnstableCases > 0 {
		fmt.Printf("Unstable cases: %s\n\n", yellow(summary.UnstableCases))
	}

	// Per-case table (if verbose or few cases)
	if verbose || len(summary.Results) <= 10 {
		fmt.Printf("%s\n", white("Per-Case Results:"))
		fmt.Printf("%-40s %10s %10s %10s %10s %10s\n",
			"CASE", "AVG(ms)", "P99(ms)", "REQ/S", "PASS%", "STABLE")
		fmt.Println(strings.Repeat("-", 95))

		for _, r := range summary.Results {
			name := r.Name
			if len(name) > 38 {
				name = name[:35] + "..."
			}
			fmt.Printf("%-40s %10.2f %10.2f %10.1f %10.1f %10v\n",
				name,
				float64(r.AvgTime.Microseconds())/1000,
				float64(r.P99Time.Microseconds())/1000,
				r.RequestsPerSec,
				r.PassRate,
				r.Stable)
		}
	}
}

// formatOutcomes renders a verdict distribution in a stable order
func formatOutcomes(outcomes map[string]int) string {
	var parts []string
	for _, outcome := range []string{models.OutcomePassed, models.OutcomeFailed, models.OutcomeErrored, models.OutcomePending} {
		if n := outcomes[outcome]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", outcome, n))
		}
	}
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)

	// Reuse shared flags from test command
	benchmarkCmd.Flags().StringVarP(&suiteFile, "suite", "s", "", "Test suite file (default: generate cases from the document's examples)")
	benchmarkCmd.Flags().StringVar(&filter, "filter", "", "Filter cases by name, path or operation ID")
	benchmarkCmd.Flags().StringSliceVar(&tags, "tags", []string{}, "Filter by tags")
	benchmarkCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed output")

	// Benchmark-specific flags
	benchmarkCmd.Flags().IntVarP(&benchIterations, "iterations", "n", 100, "Number of executions per case")
	benchmarkCmd.Flags().IntVarP(&benchWarmup, "warmup", "w", 5, "Number of warmup iterations (discarded from stats)")
	benchmarkCmd.Flags().Float64VarP(&benchRateLimit, "rate", "r", 0, "Max requests per second (0 = unlimited)")
	benchmarkCmd.Flags().BoolVar(&benchNoKeepAlive, "no-keepalive", false, "Disable HTTP connection reuse")

	// Output flags
	benchmarkCmd.Flags().StringVarP(&benchOutputFormat, "output", "o", "", "Output format: json, csv")
	benchmarkCmd.Flags().StringVar(&benchOutputFile, "output-file", "", "Write output to file (default: stdout)")
}
