package tester

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/moamenhredeen/oasconform/internal/conformance"
	"github.com/moamenhredeen/oasconform/internal/metrics"
	"github.com/moamenhredeen/oasconform/internal/models"
	"github.com/moamenhredeen/oasconform/internal/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createMockServer creates a mock HTTP server that implements the widget API
func createMockServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == "GET" && r.URL.Path == "/widgets/42":
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": 42, "name": "gear", "size": 2})
		case r.Method == "POST" && r.URL.Path == "/widgets":
			body, _ := io.ReadAll(r.Body)
			var widget map[string]interface{}
			if err := json.Unmarshal(body, &widget); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid json"})
				return
			}
			widget["id"] = 7
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(widget)
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		}
	}))
}

func mustCase(t *testing.T, name string, op conformance.TestOperation, req conformance.RequestSpec, responses ...conformance.ResponseSpec) conformance.TestCase {
	t.Helper()
	tc, err := conformance.NewTestCase(name, op, req, responses...)
	require.NoError(t, err)
	return tc
}

func widgetCases(t *testing.T) []conformance.TestCase {
	return []conformance.TestCase{
		mustCase(t, "get widget", getWidget, conformance.EmptyRequest(),
			conformance.ExpectJSONExample(200, "default")),
		mustCase(t, "get missing widget", getWidget, conformance.EmptyRequest().AddParam("id", "404"),
			conformance.ExpectJSONExample(200, "default")),
		mustCase(t, "create widget", createWidget, conformance.FromJSONExample("create-widget"),
			conformance.ExpectJSONExample(201, "created")),
		mustCase(t, "create from unknown example", createWidget, conformance.FromJSONExample("create-huge"),
			conformance.ExpectStatus(201)),
		mustCase(t, "create with broken json", createWidget, conformance.FromBadRaw([]byte("{not json")),
			conformance.ExpectClientError()),
		mustCase(t, "get widget with unknown param", getWidget, conformance.EmptyRequest().AddParam("colour", "red"),
			conformance.ExpectStatus(200)),
	}
}

func outcomes(summary models.TestSummary) map[string]string {
	out := map[string]string{}
	for _, r := range summary.Results {
		out[r.Name] = r.Outcome
	}
	return out
}

func TestIntegrationFullFlow(t *testing.T) {
	server := createMockServer()
	defer server.Close()

	recorder := metrics.NewRecorder()
	testRunner := NewTester(mustParse(t), NewHTTPTransport(server.URL), Options{
		Concurrency: 2,
		Timeout:     5 * time.Second,
		Validate:    conformance.ValidateOptions{ValidateSchema: true},
		Metrics:     recorder,
	})

	summary := testRunner.Run(context.Background(), widgetCases(t), nil)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 6, summary.TotalTests)
	assert.Equal(t, map[string]string{
		"get widget":                    models.OutcomePassed,
		"get missing widget":            models.OutcomeFailed,
		"create widget":                 models.OutcomePassed,
		"create from unknown example":   models.OutcomeErrored,
		"create with broken json":       models.OutcomePassed,
		"get widget with unknown param": models.OutcomeErrored,
	}, outcomes(summary))
	assert.False(t, summary.OK())

	failed := summary.Results[1]
	assert.Equal(t, 404, failed.StatusCode)
	assert.Equal(t, "/widgets/404", failed.Path)
	require.NotEmpty(t, failed.ValidationErrors)
	assert.Equal(t, "status", failed.ValidationErrors[0].Field)
	assert.Contains(t, failed.Curl, server.URL+"/widgets/404")

	errored := summary.Results[3]
	assert.Equal(t, "ExampleNotFound", errored.Kind)
	assert.Empty(t, errored.Curl)
	assert.Zero(t, errored.StatusCode)

	assert.Equal(t, "UnknownParam", summary.Results[5].Kind)
	assert.Equal(t, "getWidget", summary.Results[0].OperationID)
}

func TestExportedResultsNeverCarrySecrets(t *testing.T) {
	server := createMockServer()
	defer server.Close()

	const secret = "s3cr3t-token"
	auth := conformance.NewBearerAuth("bearerAuth", secret)
	cases := []conformance.TestCase{
		mustCase(t, "get widget", getWidget, conformance.EmptyRequest().WithAuth(auth),
			conformance.ExpectJSONExample(200, "default")),
		mustCase(t, "get missing widget", getWidget, conformance.EmptyRequest().WithAuth(auth).AddParam("id", "404"),
			conformance.ExpectJSONExample(200, "default")),
		mustCase(t, "get widget with unknown response example", getWidget, conformance.EmptyRequest().WithAuth(auth),
			conformance.ExpectJSONExample(200, "missing")),
	}

	summary := NewTester(mustParse(t), NewHTTPTransport(server.URL), Options{}).
		Run(context.Background(), cases, nil)
	require.Len(t, summary.Results, 3)

	passed, failed, errored := summary.Results[0], summary.Results[1], summary.Results[2]
	assert.Equal(t, models.OutcomePassed, passed.Outcome)
	assert.Empty(t, passed.Curl)

	assert.Equal(t, models.OutcomeFailed, failed.Outcome)
	assert.Contains(t, failed.Curl, "Authorization: "+conformance.RedactedCredential)

	assert.Equal(t, "ExampleNotFound", errored.Kind)
	assert.Empty(t, errored.Curl, "nothing was sent")

	var buf bytes.Buffer
	require.NoError(t, output.WriteTestSummary(&buf, summary, output.FormatJSON))
	assert.NotContains(t, buf.String(), secret)
}

func TestConcurrentRunMatchesSequentialRun(t *testing.T) {
	server := createMockServer()
	defer server.Close()

	spec := mustParse(t)
	cases := widgetCases(t)

	sequential := NewTester(spec, NewHTTPTransport(server.URL), Options{Concurrency: 1}).
		Run(context.Background(), cases, nil)
	concurrent := NewTester(spec, NewHTTPTransport(server.URL), Options{Concurrency: 8}).
		Run(context.Background(), cases, nil)

	require.Len(t, concurrent.Results, len(cases))
	for i, tc := range cases {
		assert.Equal(t, tc.Name, concurrent.Results[i].Name, "results must stay in case order")
	}
	assert.Equal(t, outcomes(sequential), outcomes(concurrent))
	assert.Equal(t, sequential.Passed, concurrent.Passed)
	assert.Equal(t, sequential.Failed, concurrent.Failed)
	assert.Equal(t, sequential.Errored, concurrent.Errored)
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var cases []conformance.TestCase
	for i := 0; i < 12; i++ {
		cases = append(cases, mustCase(t, "", getWidget, conformance.EmptyRequest(), conformance.ExpectStatus(200)))
	}

	summary := NewTester(mustParse(t), NewHTTPTransport(server.URL), Options{Concurrency: 3}).
		Run(context.Background(), cases, nil)

	assert.Equal(t, 12, summary.Passed)
	assert.LessOrEqual(t, peak, 3)
}

func TestRunEvents(t *testing.T) {
	server := createMockServer()
	defer server.Close()

	cases := widgetCases(t)
	var started, completed []int
	onEvent := func(event TestEvent) {
		assert.Equal(t, len(cases), event.Total)
		switch event.Type {
		case EventStarting:
			assert.Nil(t, event.Result)
			started = append(started, event.Index)
		case EventCompleted:
			if !assert.NotNil(t, event.Result) {
				return
			}
			assert.Equal(t, cases[event.Index].Name, event.Result.Name)
			completed = append(completed, event.Index)
		}
	}

	NewTester(mustParse(t), NewHTTPTransport(server.URL), Options{Concurrency: 4}).
		Run(context.Background(), cases, onEvent)

	assert.Len(t, started, len(cases))
	assert.ElementsMatch(t, started, completed)
}

func TestRunCanceledLeavesCasesPending(t *testing.T) {
	server := createMockServer()
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := NewTester(mustParse(t), NewHTTPTransport(server.URL), Options{}).
		Run(ctx, widgetCases(t), nil)

	assert.Equal(t, 6, summary.Pending)
	assert.Zero(t, summary.Passed+summary.Failed+summary.Errored)
	assert.Equal(t, "not started", summary.Results[0].Error)
}
