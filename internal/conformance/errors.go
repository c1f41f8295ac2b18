package conformance

import (
	"errors"
	"fmt"
)

// Standard error variables returned by collaborators and test case construction
var (
	// ErrNoSuchOperation is returned by a Specification that has no entry for an operation
	ErrNoSuchOperation = errors.New("no such operation")
	// ErrExampleNotFound is returned by a Specification that has no matching example
	ErrExampleNotFound = errors.New("example not found")
	// ErrSchemaNotFound is returned by a SchemaProvider without a declared schema
	ErrSchemaNotFound = errors.New("schema not found")
	// ErrMisconfigured is returned when a bad request is paired with a success expectation
	ErrMisconfigured = errors.New("misconfigured test case")
)

// ResolutionErrorKind classifies why a request or response spec could not be resolved
type ResolutionErrorKind int

const (
	// NoSuchOperation means the specification does not declare the operation
	NoSuchOperation ResolutionErrorKind = iota
	// ExampleNotFound means a referenced example body is not declared
	ExampleNotFound
	// UnknownParam means a replacement names a parameter the operation does not declare
	UnknownParam
	// MissingPathParam means a path template token has no value after substitution
	MissingPathParam
)

// String returns the string representation of ResolutionErrorKind
func (k ResolutionErrorKind) String() string {
	switch k {
	case NoSuchOperation:
		return "NoSuchOperation"
	case ExampleNotFound:
		return "ExampleNotFound"
	case UnknownParam:
		return "UnknownParam"
	case MissingPathParam:
		return "MissingPathParam"
	default:
		return "Unknown"
	}
}

// ResolutionError is returned when a declarative spec cannot become a concrete request.
// It is always fatal to the test case that produced it.
type ResolutionError struct {
	Kind      ResolutionErrorKind
	Operation TestOperation
	// Name is the example, parameter or path token the error is about
	Name string
	Err  error
}

// Error implements the error interface
func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Operation.Key(), e.Kind)
	if e.Name != "" {
		msg += fmt.Sprintf(" %q", e.Name)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// TransportErrorKind classifies a failed dispatch
type TransportErrorKind int

const (
	// ConnectionFailed covers refused connections, DNS and TLS failures
	ConnectionFailed TransportErrorKind = iota
	// Timeout means no response arrived within the configured timeout
	Timeout
	// ProtocolError means the target answered with something that is not valid HTTP
	ProtocolError
)

// String returns the string representation of TransportErrorKind
func (k TransportErrorKind) String() string {
	switch k {
	case ConnectionFailed:
		return "ConnectionFailed"
	case Timeout:
		return "Timeout"
	case ProtocolError:
		return "ProtocolError"
	default:
		return "Unknown"
	}
}

// TransportError is returned by a Transport when a request could not be dispatched
type TransportError struct {
	Kind TransportErrorKind
	Err  error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

func resolutionError(kind ResolutionErrorKind, op TestOperation, name string, err error) error {
	return &ResolutionError{Kind: kind, Operation: op, Name: name, Err: err}
}
