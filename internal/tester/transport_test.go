package tester

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/moamenhredeen/oasconform/internal/conformance"
	"github.com/moamenhredeen/oasconform/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const widgetsFile = "../parser/testdata/widgets.yaml"

var (
	getWidget    = conformance.NewTestOperation("GET", "/widgets/{id}")
	createWidget = conformance.NewTestOperation("POST", "/widgets")
)

func mustParse(t *testing.T) *parser.Parser {
	t.Helper()
	p, err := parser.ParseFile(widgetsFile)
	require.NoError(t, err)
	return p
}

func mustResolve(t *testing.T, spec conformance.RequestSpec, op conformance.TestOperation) conformance.TestRequest {
	t.Helper()
	req, err := spec.Resolve(mustParse(t), op)
	require.NoError(t, err)
	return req
}

func requireTransportKind(t *testing.T, err error, kind conformance.TransportErrorKind) {
	t.Helper()
	var te *conformance.TransportError
	require.True(t, errors.As(err, &te), "expected TransportError, got %T: %v", err, err)
	assert.Equal(t, kind, te.Kind, te.Error())
}

func TestHTTPTransportSendsResolvedRequest(t *testing.T) {
	headers := http.Header{"Content-Type": []string{"application/json"}}
	handler, requests := httphelpers.RecordingHandler(
		httphelpers.HandlerWithResponse(201, headers, []byte(`{"id":7}`)))

	httphelpers.WithServer(handler, func(server *httptest.Server) {
		req := mustResolve(t,
			conformance.FromJSONExample("create-widget").AddParam("dry_run", "true"),
			createWidget)

		resp, err := NewHTTPTransport(server.URL+"/").Send(context.Background(), req, time.Second)
		require.NoError(t, err)

		assert.Equal(t, 201, resp.Status)
		assert.Equal(t, `{"id":7}`, string(resp.Body))
		assert.Equal(t, "application/json", resp.Headers.Get("Content-Type"))

		require.Len(t, requests, 1)
		info := <-requests
		assert.Equal(t, "POST", info.Request.Method)
		assert.Equal(t, "/widgets", info.Request.URL.Path)
		assert.Equal(t, "true", info.Request.URL.Query().Get("dry_run"))
		assert.Equal(t, "application/json", info.Request.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", info.Request.Header.Get("Accept"))
		assert.Equal(t, DefaultUserAgent, info.Request.Header.Get("User-Agent"))
		assert.JSONEq(t, `{"name":"sprocket","size":3}`, string(info.Body))
	})
}

func TestHTTPTransportSendsHeaderParamsAndAuth(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))

	httphelpers.WithServer(handler, func(server *httptest.Server) {
		auth := conformance.NewAPIKeyAuth("apiKey", conformance.InHeader, "X-Api-Key", "k-1")
		req := mustResolve(t, conformance.EmptyRequest().WithAuth(auth), getWidget)

		transport := NewHTTPTransport(server.URL)
		transport.UserAgent = "custom/2.0"
		_, err := transport.Send(context.Background(), req, time.Second)
		require.NoError(t, err)

		info := <-requests
		assert.Equal(t, "/widgets/42", info.Request.URL.Path)
		assert.Equal(t, "abc", info.Request.Header.Get("X-Trace"))
		assert.Equal(t, "k-1", info.Request.Header.Get("X-Api-Key"))
		assert.Equal(t, "custom/2.0", info.Request.Header.Get("User-Agent"))
		assert.Empty(t, info.Body)
	})
}

func TestHTTPTransportConnectionFailed(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(200))
	url := server.URL
	server.Close()

	req := mustResolve(t, conformance.EmptyRequest(), getWidget)
	_, err := NewHTTPTransport(url).Send(context.Background(), req, time.Second)

	requireTransportKind(t, err, conformance.ConnectionFailed)
}

func TestHTTPTransportTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	req := mustResolve(t, conformance.EmptyRequest(), getWidget)
	_, err := NewHTTPTransport(server.URL).Send(context.Background(), req, 50*time.Millisecond)

	requireTransportKind(t, err, conformance.Timeout)
}

func TestCurl(t *testing.T) {
	req := mustResolve(t, conformance.FromJSONExample("create-widget"), createWidget)

	cmd := NewHTTPTransport("http://localhost:8080").Curl(req)

	assert.Contains(t, cmd, "curl -sS -i -X POST")
	assert.Contains(t, cmd, "-H 'Content-Type: application/json'")
	assert.Contains(t, cmd, `--data-binary '{"name":"sprocket","size":3}'`)
	assert.Contains(t, cmd, "http://localhost:8080/widgets")
}

func TestCurlRedactsCredential(t *testing.T) {
	auth := conformance.NewAPIKeyAuth("apiKey", conformance.InQuery, "api_key", "k-123")
	req := mustResolve(t, conformance.EmptyRequest().WithAuth(auth), getWidget)

	cmd := NewHTTPTransport("http://localhost:8080").Curl(req)

	assert.NotContains(t, cmd, "k-123")
	assert.Contains(t, cmd, "api_key=%3Credacted%3E")
}
