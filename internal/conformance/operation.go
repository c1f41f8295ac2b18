package conformance

import (
	"net/http"
	"strings"
)

// TestOperation identifies one API operation under test
type TestOperation struct {
	Method      string
	Path        string
	OperationID string
}

// NewTestOperation creates an operation reference; the method is upper-cased
func NewTestOperation(method, path string) TestOperation {
	return TestOperation{Method: strings.ToUpper(method), Path: path}
}

// WithOperationID returns a copy carrying the declared operation identifier
func (o TestOperation) WithOperationID(id string) TestOperation {
	o.OperationID = id
	return o
}

// Equal compares by method and path only
func (o TestOperation) Equal(other TestOperation) bool {
	return strings.EqualFold(o.Method, other.Method) && o.Path == other.Path
}

// Key returns "METHOD /path", usable as a map key
func (o TestOperation) Key() string {
	return strings.ToUpper(o.Method) + " " + o.Path
}

func (o TestOperation) String() string {
	if o.OperationID != "" {
		return o.Key() + " (" + o.OperationID + ")"
	}
	return o.Key()
}

// OperationSpec is what the specification declares about an operation
type OperationSpec struct {
	Operation TestOperation
	Params    []ParamSpec
	// RequestMediaTypes lists declared request body media types, preferred first
	RequestMediaTypes []string
}

// declared returns every declared param named name, in any location
func (s OperationSpec) declared(name string) []ParamSpec {
	var out []ParamSpec
	for _, p := range s.Params {
		if p.Name == name || (p.In == InHeader && http.CanonicalHeaderKey(p.Name) == http.CanonicalHeaderKey(name)) {
			out = append(out, p)
		}
	}
	return out
}

// PreferredMediaType returns the first declared request media type, or ""
func (s OperationSpec) PreferredMediaType() string {
	if len(s.RequestMediaTypes) == 0 {
		return ""
	}
	return s.RequestMediaTypes[0]
}
