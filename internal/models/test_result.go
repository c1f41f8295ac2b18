package models

import "time"

// Outcome values of a TestResult
const (
	OutcomePassed  = "passed"
	OutcomeFailed  = "failed"
	OutcomeErrored = "errored"
	OutcomePending = "pending"
)

// TestResult represents the verdict of a single conformance test case
type TestResult struct {
	// Case details
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Method      string   `json:"method"`
	OperationID string   `json:"operation_id,omitempty"`
	Bad         bool     `json:"bad,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// Verdict
	Outcome string `json:"outcome"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error,omitempty"`

	// Response details
	StatusCode   int           `json:"status_code,omitempty"`
	ResponseTime time.Duration `json:"response_time_ns"`

	// Validation details
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`

	// Curl reproduces a dispatched request that did not pass, with the
	// credential redacted; empty otherwise
	Curl string `json:"curl,omitempty"`
}

// Passed reports whether the case conformed
func (r TestResult) Passed() bool {
	return r.Outcome == OutcomePassed
}

// ValidationError represents a specific validation failure
type ValidationError struct {
	Candidate int    `json:"candidate"`
	Field     string `json:"field"`
	Message   string `json:"message"`
}

// TestSummary represents the overall test results
type TestSummary struct {
	RunID      string        `json:"run_id"`
	TotalTests int           `json:"total_tests"`
	Passed     int           `json:"passed"`
	Failed     int           `json:"failed"`
	Errored    int           `json:"errored"`
	Pending    int           `json:"pending"`
	Duration   time.Duration `json:"duration_ns"`
	Results    []TestResult  `json:"results"`
}

// AddResult adds a test result to the summary
func (s *TestSummary) AddResult(result TestResult) {
	s.TotalTests++
	s.Results = append(s.Results, result)
	switch result.Outcome {
	case OutcomePassed:
		s.Passed++
	case OutcomeFailed:
		s.Failed++
	case OutcomeErrored:
		s.Errored++
	default:
		s.Pending++
	}
}

// OK reports whether every case passed
func (s *TestSummary) OK() bool {
	return s.Failed == 0 && s.Errored == 0 && s.Pending == 0
}
