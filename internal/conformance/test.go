package conformance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// TestCase binds an operation, a request and the acceptable responses.
// A response conforms if it matches any of Responses.
type TestCase struct {
	Name      string
	Operation TestOperation
	Request   RequestSpec
	Responses []ResponseSpec
	Tags      []string
}

// NewTestCase validates and creates a test case. Pairing a bad request with an
// expectation of success is rejected here, before any resolution or dispatch.
func NewTestCase(name string, op TestOperation, req RequestSpec, responses ...ResponseSpec) (TestCase, error) {
	if name == "" {
		name = op.Key()
	}
	if op.Method == "" || op.Path == "" {
		return TestCase{}, fmt.Errorf("%w: %s: operation needs a method and a path", ErrMisconfigured, name)
	}
	if len(responses) == 0 {
		return TestCase{}, fmt.Errorf("%w: %s: no expected responses", ErrMisconfigured, name)
	}
	for _, r := range responses {
		if err := r.Validate(); err != nil {
			return TestCase{}, fmt.Errorf("%w: %s: %v", ErrMisconfigured, name, err)
		}
		if req.Bad && r.IsSuccess() {
			return TestCase{}, fmt.Errorf("%w: %s: bad request cannot expect %s", ErrMisconfigured, name, r)
		}
	}
	if req.Auth != nil {
		if err := req.Auth.Validate(); err != nil {
			return TestCase{}, fmt.Errorf("%w: %s: %v", ErrMisconfigured, name, err)
		}
	}

	return TestCase{
		Name:      name,
		Operation: NewTestOperation(op.Method, op.Path).WithOperationID(op.OperationID),
		Request:   req,
		Responses: slices.Clone(responses),
	}, nil
}

// WithTags returns a copy carrying tags
func (tc TestCase) WithTags(tags ...string) TestCase {
	tc.Tags = append(slices.Clone(tc.Tags), tags...)
	return tc
}

// HasTag reports whether the case carries tag
func (tc TestCase) HasTag(tag string) bool {
	return slices.Contains(tc.Tags, tag)
}

// State is a test case's position in its execution
type State int

const (
	StatePending State = iota
	StateResolving
	StateDispatching
	StateValidating
	StatePassed
	StateFailed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolving:
		return "resolving"
	case StateDispatching:
		return "dispatching"
	case StateValidating:
		return "validating"
	case StatePassed:
		return "passed"
	case StateFailed:
		return "failed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StatePassed || s == StateFailed || s == StateErrored
}

// CanTransition reports whether s may move to next. Transitions only go forward.
func (s State) CanTransition(next State) bool {
	switch s {
	case StatePending:
		return next == StateResolving
	case StateResolving:
		return next == StateDispatching || next == StateErrored
	case StateDispatching:
		return next == StateValidating || next == StateErrored
	case StateValidating:
		return next == StatePassed || next == StateFailed
	default:
		return false
	}
}

// Verdict is the result of executing one test case
type Verdict struct {
	Case    TestCase
	Outcome State
	// Kind names the error kind for Errored verdicts, e.g. "ExampleNotFound" or "Timeout"
	Kind       string
	Message    string
	Err        error
	Mismatches []Mismatch
	Request    *TestRequest
	Response   *Response
	Duration   time.Duration
}

// ExecuteOptions configures Execute
type ExecuteOptions struct {
	Timeout  time.Duration
	Validate ValidateOptions
	// OnTransition, when set, observes every state change
	OnTransition func(tc TestCase, from, to State)
}

// Execute runs one test case: resolve, dispatch once, validate. It never
// retries. A canceled ctx before start leaves the verdict Pending; once
// dispatched, the request runs to completion or timeout regardless of ctx.
func Execute(ctx context.Context, tc TestCase, spec Specification, transport Transport, opts ExecuteOptions) Verdict {
	v := Verdict{Case: tc, Outcome: StatePending}
	if ctx.Err() != nil {
		v.Message = "not started: " + ctx.Err().Error()
		return v
	}

	ex := &execution{tc: tc, state: StatePending, onTransition: opts.OnTransition}
	ex.advance(StateResolving)

	req, err := tc.Request.Resolve(spec, tc.Operation)
	if err != nil {
		return ex.errored(v, err)
	}
	v.Request = &req

	candidates := make([]ResolvedResponse, 0, len(tc.Responses))
	for _, r := range tc.Responses {
		resolved, err := r.Resolve(spec, req.Operation, opts.Validate.ValidateSchema)
		if err != nil {
			return ex.errored(v, err)
		}
		candidates = append(candidates, resolved)
	}

	ex.advance(StateDispatching)
	start := time.Now()
	resp, err := transport.Send(context.WithoutCancel(ctx), req, opts.Timeout)
	v.Duration = time.Since(start)
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Kind: ProtocolError, Err: err}
		}
		return ex.errored(v, err)
	}
	v.Response = &resp

	ex.advance(StateValidating)
	judgment := Validate(resp, tc.Request.Bad, candidates, opts.Validate)
	if judgment.Conforming {
		ex.advance(StatePassed)
		v.Outcome = StatePassed
		return v
	}

	ex.advance(StateFailed)
	v.Outcome = StateFailed
	v.Mismatches = judgment.Mismatches
	v.Message = failureMessage(len(candidates), judgment.Mismatches)
	return v
}

// ErrorKind returns the resolution or transport kind carried by err, or ""
func ErrorKind(err error) string {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Kind.String()
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind.String()
	}
	return ""
}

type execution struct {
	tc           TestCase
	state        State
	onTransition func(tc TestCase, from, to State)
}

func (e *execution) advance(next State) {
	if !e.state.CanTransition(next) {
		panic(fmt.Sprintf("conformance: invalid transition %s -> %s", e.state, next))
	}
	from := e.state
	e.state = next
	if e.onTransition != nil {
		e.onTransition(e.tc, from, next)
	}
}

func (e *execution) errored(v Verdict, err error) Verdict {
	e.advance(StateErrored)
	v.Outcome = StateErrored
	v.Kind = ErrorKind(err)
	v.Err = err
	v.Message = err.Error()
	return v
}

func failureMessage(candidates int, mismatches []Mismatch) string {
	var parts []string
	for _, m := range mismatches {
		parts = append(parts, m.Field)
	}
	slices.Sort(parts)
	parts = slices.Compact(parts)
	noun := "response"
	if candidates != 1 {
		noun = "responses"
	}
	return fmt.Sprintf("response matches none of %d expected %s (%s)", candidates, noun, strings.Join(parts, ", "))
}
