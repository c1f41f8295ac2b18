package conformance

import (
	"context"
	"net/http"
	"time"
)

// Specification gives read access to what an API document declares.
// Absence of an entry must be reported as an error wrapping ErrNoSuchOperation
// or ErrExampleNotFound, never as an empty value.
type Specification interface {
	Operation(method, path string) (OperationSpec, error)
	RequestExample(op TestOperation, mediaType, name string) ([]byte, error)
	ResponseExample(op TestOperation, status int, mediaType, name string) ([]byte, error)
}

// SchemaProvider is implemented by specifications that can return the JSON
// schema declared for a response body.
type SchemaProvider interface {
	ResponseSchema(op TestOperation, status int, mediaType string) ([]byte, error)
}

// Response is what the target returned
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Transport dispatches a resolved request. Failures must be returned as *TransportError.
type Transport interface {
	Send(ctx context.Context, req TestRequest, timeout time.Duration) (Response, error)
}
