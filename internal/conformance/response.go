package conformance

import (
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
)

// StatusClass is the hundreds digit of an HTTP status code
type StatusClass int

const (
	NoClass          StatusClass = 0
	InformationClass StatusClass = 1
	SuccessClass     StatusClass = 2
	RedirectClass    StatusClass = 3
	ClientErrorClass StatusClass = 4
	ServerErrorClass StatusClass = 5
)

func (c StatusClass) String() string {
	if c == NoClass {
		return "none"
	}
	return fmt.Sprintf("%dxx", int(c))
}

// ParseStatusClass parses "4xx" style strings
func ParseStatusClass(s string) (StatusClass, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 3 || !strings.HasSuffix(s, "xx") || s[0] < '1' || s[0] > '5' {
		return NoClass, fmt.Errorf("invalid status class %q", s)
	}
	return StatusClass(s[0] - '0'), nil
}

// ResponseSpec declares an acceptable response: either an exact status,
// optionally with a media type and declared example, or a status class.
type ResponseSpec struct {
	Status    int
	Class     StatusClass
	MediaType string
	Example   string
}

// ExpectStatus accepts exactly status, without checking the body
func ExpectStatus(status int) ResponseSpec {
	return ResponseSpec{Status: status}
}

// ExpectExample accepts status with a body matching the declared response example
func ExpectExample(status int, mediaType, name string) ResponseSpec {
	return ResponseSpec{Status: status, MediaType: mediaType, Example: name}
}

// ExpectJSONExample is ExpectExample with the JSON media type
func ExpectJSONExample(status int, name string) ResponseSpec {
	return ExpectExample(status, JSONMediaType, name)
}

// ExpectClass accepts any status in class
func ExpectClass(class StatusClass) ResponseSpec {
	return ResponseSpec{Class: class}
}

// ExpectClientError accepts any 4xx status
func ExpectClientError() ResponseSpec {
	return ExpectClass(ClientErrorClass)
}

// IsSuccess reports whether the spec asserts positive (non-error) semantics
func (s ResponseSpec) IsSuccess() bool {
	if s.Class != NoClass {
		return s.Class < ClientErrorClass
	}
	return s.Status < 400
}

// StatusClass returns the class the spec's status belongs to
func (s ResponseSpec) StatusClass() StatusClass {
	if s.Class != NoClass {
		return s.Class
	}
	return StatusClass(s.Status / 100)
}

func (s ResponseSpec) matchesStatus(status int) bool {
	if s.Class != NoClass {
		return StatusClass(status/100) == s.Class
	}
	return s.Status == status
}

// Validate checks the spec is well-formed
func (s ResponseSpec) Validate() error {
	if s.Class != NoClass {
		if s.Class < InformationClass || s.Class > ServerErrorClass {
			return fmt.Errorf("invalid status class %d", int(s.Class))
		}
		if s.Example != "" {
			return errors.New("a status class expectation cannot reference an example")
		}
		return nil
	}
	if s.Status < 100 || s.Status > 599 {
		return fmt.Errorf("invalid status %d", s.Status)
	}
	if s.Example != "" && s.MediaType == "" {
		return fmt.Errorf("example %q needs a media type", s.Example)
	}
	return nil
}

func (s ResponseSpec) String() string {
	var b strings.Builder
	if s.Class != NoClass {
		b.WriteString(s.Class.String())
	} else {
		b.WriteString(strconv.Itoa(s.Status))
	}
	if s.MediaType != "" {
		b.WriteString(" " + s.MediaType)
	}
	if s.Example != "" {
		b.WriteString(" " + s.Example)
	}
	return b.String()
}

// ResolvedResponse is a ResponseSpec with its declared example and schema fetched
type ResolvedResponse struct {
	Spec    ResponseSpec
	Example []byte
	Schema  []byte
}

// Resolve fetches the declared example body and, when withSchema is set and
// spec provides one, the declared response schema. A missing schema is not an error.
func (s ResponseSpec) Resolve(spec Specification, op TestOperation, withSchema bool) (ResolvedResponse, error) {
	resolved := ResolvedResponse{Spec: s}
	if s.Example != "" {
		example, err := spec.ResponseExample(op, s.Status, s.MediaType, s.Example)
		if err != nil {
			return ResolvedResponse{}, resolutionError(ExampleNotFound, op, fmt.Sprintf("%d %s %s", s.Status, s.MediaType, s.Example), err)
		}
		resolved.Example = example
	}
	if withSchema && s.Class == NoClass && s.MediaType != "" {
		if provider, ok := spec.(SchemaProvider); ok {
			if schema, err := provider.ResponseSchema(op, s.Status, s.MediaType); err == nil {
				resolved.Schema = schema
			}
		}
	}
	return resolved, nil
}

// Mismatch describes one way a response failed to match one candidate
type Mismatch struct {
	// Candidate indexes the ResponseSpec the mismatch is about
	Candidate int
	Field     string
	Expected  string
	Actual    string
	Detail    string
}

func (m Mismatch) String() string {
	s := fmt.Sprintf("%s: expected %s, got %s", m.Field, m.Expected, m.Actual)
	if m.Detail != "" {
		s += " (" + m.Detail + ")"
	}
	return s
}

// Judgment is the outcome of validating one response
type Judgment struct {
	Conforming bool
	// Matched indexes the accepting candidate, -1 when none matched
	Matched    int
	Mismatches []Mismatch
}

// ValidateOptions configures the positive policy
type ValidateOptions struct {
	Comparator     Comparator
	ValidateSchema bool
}

// Validate judges resp against the candidates. Bad requests use the negative
// policy (status class only), others the positive policy (status, media type,
// example body and schema). Any matching candidate makes the response conforming.
func Validate(resp Response, bad bool, candidates []ResolvedResponse, opts ValidateOptions) Judgment {
	if opts.Comparator == nil {
		opts.Comparator = JSONComparator{}
	}
	j := Judgment{Matched: -1}
	for i, c := range candidates {
		var mismatches []Mismatch
		if bad {
			mismatches = negativeMismatches(resp, c.Spec)
		} else {
			mismatches = positiveMismatches(resp, c, opts)
		}
		if len(mismatches) == 0 {
			return Judgment{Conforming: true, Matched: i}
		}
		for _, m := range mismatches {
			m.Candidate = i
			j.Mismatches = append(j.Mismatches, m)
		}
	}
	return j
}

func negativeMismatches(resp Response, spec ResponseSpec) []Mismatch {
	class := spec.StatusClass()
	if StatusClass(resp.Status/100) == class {
		return nil
	}
	return []Mismatch{{
		Field:    "status",
		Expected: class.String(),
		Actual:   strconv.Itoa(resp.Status),
	}}
}

func positiveMismatches(resp Response, c ResolvedResponse, opts ValidateOptions) []Mismatch {
	spec := c.Spec
	if !spec.matchesStatus(resp.Status) {
		expected := strconv.Itoa(spec.Status)
		if spec.Class != NoClass {
			expected = spec.Class.String()
		}
		return []Mismatch{{Field: "status", Expected: expected, Actual: strconv.Itoa(resp.Status)}}
	}

	var mismatches []Mismatch
	contentType := resp.Headers.Get("Content-Type")
	if spec.MediaType != "" && !MediaTypeMatches(spec.MediaType, contentType) {
		mismatches = append(mismatches, Mismatch{
			Field:    "content_type",
			Expected: spec.MediaType,
			Actual:   quoteOrNone(contentType),
		})
	}

	if c.Example != nil {
		if err := opts.Comparator.Compare(c.Example, resp.Body); err != nil {
			mismatches = append(mismatches, Mismatch{
				Field:    "body",
				Expected: truncate(string(c.Example)),
				Actual:   quoteOrNone(truncate(string(resp.Body))),
				Detail:   err.Error(),
			})
		}
	}

	if opts.ValidateSchema && c.Schema != nil && strings.Contains(contentType, "json") {
		for _, problem := range validateSchema(c.Schema, resp.Body) {
			mismatches = append(mismatches, Mismatch{
				Field:    "schema",
				Expected: "body valid against declared schema",
				Actual:   "invalid",
				Detail:   problem,
			})
		}
	}
	return mismatches
}

// MediaTypeMatches compares the essence of two media types, ignoring
// parameters. expected may use a "type/*" wildcard.
func MediaTypeMatches(expected, actual string) bool {
	exp, _, err := mime.ParseMediaType(expected)
	if err != nil {
		return false
	}
	act, _, err := mime.ParseMediaType(actual)
	if err != nil {
		return false
	}
	if exp == act || exp == "*/*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(exp, "/*"); ok {
		return strings.HasPrefix(act, prefix+"/")
	}
	return false
}

const maxDetail = 512

func truncate(s string) string {
	if len(s) <= maxDetail {
		return s
	}
	return s[:maxDetail] + "..."
}

func quoteOrNone(s string) string {
	if s == "" {
		return "<none>"
	}
	return s
}
