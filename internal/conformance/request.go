package conformance

import (
	"bytes"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// JSONMediaType is the media type used by the JSON convenience constructors
const JSONMediaType = "application/json"

// SourceKind tags the active RequestSource variant
type SourceKind int

const (
	// SourceEmpty sends no body
	SourceEmpty SourceKind = iota
	// SourceExample resolves the body from a declared example
	SourceExample
	// SourceRaw sends caller supplied bytes verbatim
	SourceRaw
)

func (k SourceKind) String() string {
	switch k {
	case SourceEmpty:
		return "empty"
	case SourceExample:
		return "example"
	case SourceRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// RequestSource says where the request body comes from. Exactly one variant
// is active, selected by Kind.
type RequestSource struct {
	Kind SourceKind
	// MediaType is the example's media type, or an optional raw body media type
	MediaType string
	// Name is the declared example name (SourceExample only)
	Name string
	// Body is the raw payload (SourceRaw only)
	Body []byte
}

// RequestSpec declares a request. Builder methods return a new value and
// never share mutable state with the receiver.
type RequestSpec struct {
	Source RequestSource
	// Bad marks a deliberately malformed request whose expected outcome is rejection
	Bad    bool
	Auth   *TestAuthorization
	Params []ParamReplacement
}

// EmptyRequest returns a spec with no body, no auth and no params
func EmptyRequest() RequestSpec {
	return RequestSpec{Source: RequestSource{Kind: SourceEmpty}}
}

// FromExample returns a spec whose body is the declared example of the given media type
func FromExample(mediaType, name string) RequestSpec {
	r := EmptyRequest()
	r.Source = RequestSource{Kind: SourceExample, MediaType: mediaType, Name: name}
	return r
}

// FromJSONExample is FromExample with the JSON media type
func FromJSONExample(name string) RequestSpec {
	return FromExample(JSONMediaType, name)
}

// FromBadRaw returns a spec sending body verbatim and always marks it bad.
// Raw bytes from outside the specification are presumed malformed.
func FromBadRaw(body []byte) RequestSpec {
	r := EmptyRequest()
	r.Source = RequestSource{Kind: SourceRaw, Body: bytes.Clone(body)}
	r.Bad = true
	return r
}

// FromRaw returns a spec sending a well-formed raw body with the given media type
func FromRaw(mediaType string, body []byte) RequestSpec {
	r := EmptyRequest()
	r.Source = RequestSource{Kind: SourceRaw, MediaType: mediaType, Body: bytes.Clone(body)}
	return r
}

// WithAuth attaches a copy of auth; the last call wins
func (r RequestSpec) WithAuth(auth TestAuthorization) RequestSpec {
	a := auth
	r.Auth = &a
	r.Params = slices.Clone(r.Params)
	return r
}

// WithBad overrides the negative-test flag
func (r RequestSpec) WithBad(bad bool) RequestSpec {
	r.Bad = bad
	r.Params = slices.Clone(r.Params)
	return r
}

// AddParam appends a parameter override, preserving order
func (r RequestSpec) AddParam(name, value string) RequestSpec {
	params := make([]ParamReplacement, len(r.Params), len(r.Params)+1)
	copy(params, r.Params)
	r.Params = append(params, NewParamReplacement(name, value))
	return r
}

// TestRequest is a fully resolved request ready for dispatch
type TestRequest struct {
	Operation TestOperation
	// Path is the operation path with path parameters substituted
	Path    string
	Headers http.Header
	Params  []TestParam
	Body    []byte
	// Auth is the injected authorization, nil when none
	Auth *TestAuthorization
}

// RedactedCredential replaces credential values in Redacted requests
const RedactedCredential = "<redacted>"

// Query encodes the resolved query parameters
func (r TestRequest) Query() url.Values {
	q := url.Values{}
	for _, p := range ParamsIn(r.Params, InQuery) {
		q.Set(p.Name, p.Value)
	}
	return q
}

// Clone returns a deep copy
func (r TestRequest) Clone() TestRequest {
	r.Headers = r.Headers.Clone()
	r.Params = slices.Clone(r.Params)
	r.Body = bytes.Clone(r.Body)
	return r
}

// Redacted returns a copy safe to print: the injected credential is
// replaced by RedactedCredential in its header or query parameter.
func (r TestRequest) Redacted() TestRequest {
	r = r.Clone()
	if r.Auth == nil {
		return r
	}
	in, name := r.Auth.Target()
	for i := range r.Params {
		if r.Params[i].sameSlot(in, name) {
			r.Params[i].Value = RedactedCredential
		}
	}
	if in == InHeader && r.Headers.Get(name) != "" {
		r.Headers.Set(name, RedactedCredential)
	}
	return r
}

var pathToken = regexp.MustCompile(`\{([^{}/]+)\}`)

// Resolve turns the spec into a concrete request for op. It performs no I/O
// beyond querying spec and returns no partial result on failure.
func (r RequestSpec) Resolve(spec Specification, op TestOperation) (TestRequest, error) {
	opSpec, err := spec.Operation(op.Method, op.Path)
	if err != nil {
		return TestRequest{}, resolutionError(NoSuchOperation, op, "", err)
	}
	if op.OperationID == "" {
		op.OperationID = opSpec.Operation.OperationID
	}

	body, contentType, err := r.resolveBody(spec, opSpec, op)
	if err != nil {
		return TestRequest{}, err
	}

	params, err := r.resolveParams(opSpec, op)
	if err != nil {
		return TestRequest{}, err
	}

	var auth *TestAuthorization
	if r.Auth != nil {
		params = r.Auth.inject(params)
		a := *r.Auth
		auth = &a
	}

	path, err := expandPath(op, params)
	if err != nil {
		return TestRequest{}, err
	}

	headers := http.Header{}
	for _, p := range ParamsIn(params, InHeader) {
		headers.Set(p.Name, p.Value)
	}
	if contentType != "" && headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", contentType)
	}

	return TestRequest{
		Operation: op,
		Path:      path,
		Headers:   headers,
		Params:    params,
		Body:      body,
		Auth:      auth,
	}, nil
}

func (r RequestSpec) resolveBody(spec Specification, opSpec OperationSpec, op TestOperation) ([]byte, string, error) {
	switch r.Source.Kind {
	case SourceExample:
		example, err := spec.RequestExample(op, r.Source.MediaType, r.Source.Name)
		if err != nil {
			return nil, "", resolutionError(ExampleNotFound, op, r.Source.MediaType+" "+r.Source.Name, err)
		}
		return bytes.Clone(example), r.Source.MediaType, nil
	case SourceRaw:
		mediaType := r.Source.MediaType
		if mediaType == "" {
			mediaType = opSpec.PreferredMediaType()
		}
		body := bytes.Clone(r.Source.Body)
		if body == nil {
			body = []byte{}
		}
		return body, mediaType, nil
	default:
		return []byte{}, "", nil
	}
}

func (r RequestSpec) resolveParams(opSpec OperationSpec, op TestOperation) ([]TestParam, error) {
	params := make([]TestParam, 0, len(opSpec.Params))
	for _, p := range opSpec.Params {
		if (p.Required || p.In == InPath) && p.HasValue {
			params = setParam(params, p.In, p.Name, p.Value)
		}
	}

	for _, rep := range r.Params {
		declared := opSpec.declared(rep.Name)
		if len(declared) == 0 {
			return nil, resolutionError(UnknownParam, op, rep.Name, nil)
		}
		for _, d := range declared {
			params = setParam(params, d.In, d.Name, rep.Value)
		}
	}
	return params, nil
}

func expandPath(op TestOperation, params []TestParam) (string, error) {
	path := op.Path
	for _, p := range ParamsIn(params, InPath) {
		path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(p.Value))
	}
	if m := pathToken.FindStringSubmatch(path); m != nil {
		return "", resolutionError(MissingPathParam, op, m[1], nil)
	}
	return path, nil
}
