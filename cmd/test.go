/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/moamenhredeen/oasconform/internal/metrics"
	"github.com/moamenhredeen/oasconform/internal/models"
	"github.com/moamenhredeen/oasconform/internal/output"
	"github.com/moamenhredeen/oasconform/internal/tester"
	"github.com/spf13/cobra"
)

var (
	suiteFile string
	filter    string
	tags      []string
	verbose   bool

	testOutputFormat string
	testOutputFile   string
	testMetricsFile  string
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test [openapi-file]",
	Short: "Run conformance tests against the API",
	Long: `Run conformance tests against the API described by an OpenAPI document.

Cases are read from --suite, or generated from the document's examples:
one case per request example expecting a declared success response, and one
malformed JSON case per operation taking a JSON body expecting a 4xx.

Examples:
  # Test the server declared by the document
  oasconform test api.yaml

  # Run a hand written suite against a local server
  oasconform test api.yaml --suite cases.yaml --server http://localhost:8080

  # Export results and metrics
  oasconform test api.yaml -o json --output-file results.json --metrics-file run.prom`,
	Args: cobra.ExactArgs(1),
	Run:  runTest,
}

func runTest(cmd *cobra.Command, args []string) {
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

	cases = filterCases(cases, filter, tags)
	if len(cases) == 0 {
		fmt.Println("No test cases found matching the criteria")
		os.Exit(0)
	}

	transport := tester.NewHTTPTransport(baseURL(cfg, p))
	transport.UserAgent = cfg.UserAgent

	var recorder *metrics.Recorder
	if testMetricsFile != "" {
		recorder = metrics.NewRecorder()
	}

	runner := tester.NewTester(p, transport, tester.Options{
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.Timeout,
		Validate:    validate,
		Metrics:     recorder,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var s *spinner.Spinner
	completed := 0
	if isTTY {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Running %d test cases...", len(cases))
		s.Start()
	}
	onEvent := func(event tester.TestEvent) {
		if event.Type != tester.EventCompleted {
			return
		}
		completed++
		if s != nil {
			s.Suffix = fmt.Sprintf(" [%d/%d] %s", completed, event.Total, event.Case.Name)
		}
	}

	summary := runner.Run(ctx, cases, onEvent)
	if s != nil {
		s.Stop()
	}

	if recorder != nil {
		if err := recorder.WriteFile(testMetricsFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing metrics: %v\n", err)
		}
	}

	if testOutputFormat != "" {
		format, err := output.ParseFormat(testOutputFormat)
		if err != nil {
			fatalf("Error: %v", err)
		}
		if err := output.ExportTestSummary(summary, format, testOutputFile); err != nil {
			fatalf("Error exporting results: %v", err)
		}
		if testOutputFile != "" {
			fmt.Printf("\nResults exported to: %s\n", testOutputFile)
			displayResults(summary, verbose)
		}
	} else {
		displayResults(summary, verbose)
	}

	// Exit with error code unless every case passed
	if !summary.OK() {
		os.Exit(1)
	}
}

func outcomeLabel(result models.TestResult) string {
	switch result.Outcome {
	case models.OutcomePassed:
		return green("PASS")
	case models.OutcomeFailed:
		return red("FAIL")
	case models.OutcomeErrored:
		return red("ERROR")
	default:
		return yellow("SKIP")
	}
}

func displayResults(summary models.TestSummary, verbose bool) {
	fmt.Println("\n=== Test Results ===")
	fmt.Printf("Run ID:      %s\n", summary.RunID)
	fmt.Printf("Total Tests: %d\n", summary.TotalTests)
	fmt.Printf("Passed:      %s\n", green(summary.Passed))
	fmt.Printf("Failed:      %s\n", red(summary.Failed))
	fmt.Printf("Errored:     %s\n", red(summary.Errored))
	if summary.Pending > 0 {
		fmt.Printf("Not run:     %s\n", yellow(summary.Pending))
	}
	fmt.Printf("Duration:    %v\n", summary.Duration.Round(time.Millisecond))
	fmt.Println()

	if verbose {
		for _, result := range summary.Results {
			fmt.Printf("%s %s\n", outcomeLabel(result), result.Name)
			fmt.Printf("  Request: %s %s\n", result.Method, result.Path)
			if result.OperationID != "" {
				fmt.Printf("  Operation ID: %s\n", result.OperationID)
			}
			if result.StatusCode > 0 {
				fmt.Printf("  Status Code: %d\n", result.StatusCode)
				fmt.Printf("  Response Time: %v\n", result.ResponseTime)
			}

			if !result.Passed() {
				if result.Kind != "" {
					fmt.Printf("  Kind: %s\n", result.Kind)
				}
				if result.Error != "" {
					fmt.Printf("  Error: %s\n", result.Error)
				}
				if len(result.ValidationErrors) > 0 {
					fmt.Printf("  Mismatches:\n")
					for _, ve := range result.ValidationErrors {
						fmt.Printf("    - [%d] %s: %s\n", ve.Candidate, ve.Field, ve.Message)
					}
				}
				if result.Curl != "" {
					fmt.Printf("  Reproduce:\n    %s\n", result.Curl)
				}
			}
			fmt.Println()
		}
		return
	}

	// Simple output
	for _, result := range summary.Results {
		fmt.Printf("%s %s %s %s", outcomeLabel(result), result.Method, result.Path, result.Name)
		if !result.Passed() && result.Error != "" {
			fmt.Printf(" - %s", result.Error)
		}
		fmt.Println()
	}
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVarP(&suiteFile, "suite", "s", "", "Test suite file (default: generate cases from the document's examples)")
	testCmd.Flags().StringVar(&filter, "filter", "", "Filter cases by name, path or operation ID")
	testCmd.Flags().StringSliceVar(&tags, "tags", []string{}, "Filter by tags (can be specified multiple times)")
	testCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed output")

	testCmd.Flags().StringVarP(&testOutputFormat, "output", "o", "", "Output format: json, csv")
	testCmd.Flags().StringVar(&testOutputFile, "output-file", "", "Write output to file (default: stdout)")
	testCmd.Flags().StringVar(&testMetricsFile, "metrics-file", "", "Write Prometheus metrics of the run to a textfile")
}
