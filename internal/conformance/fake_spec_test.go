package conformance

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memorySpec is an in-memory Specification for tests
type memorySpec struct {
	ops       map[string]OperationSpec
	requests  map[string][]byte
	responses map[string][]byte
	schemas   map[string][]byte
}

func newMemorySpec() *memorySpec {
	return &memorySpec{
		ops:       map[string]OperationSpec{},
		requests:  map[string][]byte{},
		responses: map[string][]byte{},
		schemas:   map[string][]byte{},
	}
}

func (s *memorySpec) addOperation(op TestOperation, mediaTypes []string, params ...ParamSpec) *memorySpec {
	s.ops[op.Key()] = OperationSpec{Operation: op, Params: params, RequestMediaTypes: mediaTypes}
	return s
}

func (s *memorySpec) addRequestExample(op TestOperation, mediaType, name, body string) *memorySpec {
	s.requests[op.Key()+"|"+mediaType+"|"+name] = []byte(body)
	return s
}

func (s *memorySpec) addResponseExample(op TestOperation, status int, mediaType, name, body string) *memorySpec {
	s.responses[fmt.Sprintf("%s|%d|%s|%s", op.Key(), status, mediaType, name)] = []byte(body)
	return s
}

func (s *memorySpec) addResponseSchema(op TestOperation, status int, mediaType, schema string) *memorySpec {
	s.schemas[fmt.Sprintf("%s|%d|%s", op.Key(), status, mediaType)] = []byte(schema)
	return s
}

func (s *memorySpec) Operation(method, path string) (OperationSpec, error) {
	op, ok := s.ops[NewTestOperation(method, path).Key()]
	if !ok {
		return OperationSpec{}, fmt.Errorf("%s %s: %w", method, path, ErrNoSuchOperation)
	}
	return op, nil
}

func (s *memorySpec) RequestExample(op TestOperation, mediaType, name string) ([]byte, error) {
	b, ok := s.requests[op.Key()+"|"+mediaType+"|"+name]
	if !ok {
		return nil, ErrExampleNotFound
	}
	return b, nil
}

func (s *memorySpec) ResponseExample(op TestOperation, status int, mediaType, name string) ([]byte, error) {
	b, ok := s.responses[fmt.Sprintf("%s|%d|%s|%s", op.Key(), status, mediaType, name)]
	if !ok {
		return nil, ErrExampleNotFound
	}
	return b, nil
}

func (s *memorySpec) ResponseSchema(op TestOperation, status int, mediaType string) ([]byte, error) {
	b, ok := s.schemas[fmt.Sprintf("%s|%d|%s", op.Key(), status, mediaType)]
	if !ok {
		return nil, ErrSchemaNotFound
	}
	return b, nil
}

// stubTransport answers every request with a fixed response or error and
// records what it was sent
type stubTransport struct {
	resp Response
	err  error

	mu   sync.Mutex
	sent []TestRequest
}

func (t *stubTransport) Send(_ context.Context, req TestRequest, _ time.Duration) (Response, error) {
	t.mu.Lock()
	t.sent = append(t.sent, req.Clone())
	t.mu.Unlock()
	if t.err != nil {
		return Response{}, t.err
	}
	return t.resp, nil
}

func (t *stubTransport) calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

var widgetOp = NewTestOperation("GET", "/widgets/{id}")
var createWidgetOp = NewTestOperation("POST", "/widgets")

func widgetSpec() *memorySpec {
	return newMemorySpec().
		addOperation(widgetOp.WithOperationID("getWidget"), nil,
			ParamSpec{Name: "id", In: InPath, Required: true, Value: "42", HasValue: true},
			ParamSpec{Name: "verbose", In: InQuery, Value: "true", HasValue: true},
			ParamSpec{Name: "X-Trace", In: InHeader, Required: true, Value: "abc", HasValue: true},
		).
		addOperation(createWidgetOp, []string{JSONMediaType},
			ParamSpec{Name: "api_key", In: InQuery},
		).
		addRequestExample(createWidgetOp, JSONMediaType, "create-widget", `{"name":"sprocket","size":3}`).
		addResponseExample(createWidgetOp, 201, JSONMediaType, "created", `{"id":7,"name":"sprocket","size":3}`).
		addResponseExample(widgetOp, 200, JSONMediaType, "widget", `{"id":42,"name":"gear"}`)
}
