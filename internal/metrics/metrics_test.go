package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moamenhredeen/oasconform/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCountsVerdicts(t *testing.T) {
	r := NewRecorder()

	r.Observe(models.TestResult{Method: "GET", Outcome: models.OutcomePassed, ResponseTime: 20 * time.Millisecond})
	r.Observe(models.TestResult{Method: "GET", Outcome: models.OutcomePassed, ResponseTime: 30 * time.Millisecond})
	r.Observe(models.TestResult{Method: "POST", Outcome: models.OutcomeErrored, Kind: "Timeout"})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.verdicts.WithLabelValues(models.OutcomePassed, "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.verdicts.WithLabelValues(models.OutcomeErrored, "Timeout")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.responseTime))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.Observe(models.TestResult{Outcome: models.OutcomePassed})
	r.ObserveSummary(models.TestSummary{})
}

func TestWriteFile(t *testing.T) {
	r := NewRecorder()
	r.Observe(models.TestResult{Method: "GET", Outcome: models.OutcomeFailed, ResponseTime: time.Millisecond})
	r.ObserveSummary(models.TestSummary{Duration: 2 * time.Second})

	path := filepath.Join(t.TempDir(), "oasconform.prom")
	require.NoError(t, r.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `oasconform_conformance_verdicts_total{kind="",outcome="failed"} 1`)
	assert.Contains(t, string(data), "oasconform_conformance_run_duration_seconds 2")
}
