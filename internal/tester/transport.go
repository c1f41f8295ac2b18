package tester

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/moamenhredeen/oasconform/internal/conformance"
)

// DefaultUserAgent is sent when the transport has no user agent configured
const DefaultUserAgent = "oasconform/1.0"

// HTTPTransport dispatches resolved test requests over HTTP
type HTTPTransport struct {
	BaseURL   string
	Client    *http.Client
	UserAgent string
}

// NewHTTPTransport creates a transport for the API served at baseURL
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL:   baseURL,
		Client:    &http.Client{},
		UserAgent: DefaultUserAgent,
	}
}

// URL returns the absolute URL of a resolved request
func (t *HTTPTransport) URL(req conformance.TestRequest) string {
	fullURL := strings.TrimRight(t.BaseURL, "/") + req.Path
	if query := req.Query(); len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	return fullURL
}

// BuildRequest builds the HTTP request for a resolved test request
func (t *HTTPTransport) BuildRequest(ctx context.Context, req conformance.TestRequest) (*http.Request, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Operation.Method, t.URL(req), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for name, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	userAgent := t.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	httpReq.Header.Set("User-Agent", userAgent)

	return httpReq, nil
}

// Send implements conformance.Transport. The timeout covers the whole exchange
// including reading the body; zero means no timeout.
func (t *HTTPTransport) Send(ctx context.Context, req conformance.TestRequest, timeout time.Duration) (conformance.Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := t.BuildRequest(ctx, req)
	if err != nil {
		return conformance.Response{}, &conformance.TransportError{Kind: conformance.ProtocolError, Err: err}
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return conformance.Response{}, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return conformance.Response{}, classify(err)
	}

	return conformance.Response{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    body,
	}, nil
}

// classify maps a net/http failure onto a transport error kind
func classify(err error) *conformance.TransportError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &conformance.TransportError{Kind: conformance.Timeout, Err: err}
	}

	var (
		opErr       *net.OpError
		dnsErr      *net.DNSError
		recordErr   tls.RecordHeaderError
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
	)
	switch {
	case errors.As(err, &dnsErr),
		errors.As(err, &recordErr),
		errors.As(err, &certErr),
		errors.As(err, &unknownAuth),
		errors.As(err, &hostnameErr):
		return &conformance.TransportError{Kind: conformance.ConnectionFailed, Err: err}
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return &conformance.TransportError{Kind: conformance.ConnectionFailed, Err: err}
	}
	return &conformance.TransportError{Kind: conformance.ProtocolError, Err: err}
}
