package generator

import (
	"fmt"
	"strings"

	"github.com/moamenhredeen/oasconform/internal/conformance"
	"github.com/moamenhredeen/oasconform/internal/models"
	"github.com/moamenhredeen/oasconform/internal/parser"
	"github.com/moamenhredeen/oasconform/internal/suite"
)

// MalformedJSON is the body of generated negative cases
const MalformedJSON = "{not json"

// Source is what the generator reads from an API document
type Source interface {
	Examples(method, path string) (parser.OperationExamples, error)
	OperationSecurity(method, path string) ([]string, error)
}

// Generator derives a test suite from the examples an API document declares.
// It never invents values: every body comes from a declared example.
type Generator struct {
	source Source
	// credentials maps security scheme names to unexpanded secrets
	credentials map[string]string
}

// NewGenerator creates a new generator instance
func NewGenerator(source Source, credentials map[string]string) *Generator {
	return &Generator{source: source, credentials: credentials}
}

// Generate builds one positive case per declared request example (or one
// empty-body case) and one malformed-body case per operation taking JSON.
// Operations without a declared success response get no positive case.
func (g *Generator) Generate(operations []models.Operation) (*suite.Suite, error) {
	s := &suite.Suite{Cases: []suite.Case{}}
	declared := map[string]bool{}

	for _, op := range operations {
		examples, err := g.source.Examples(op.Method, op.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read examples of %s: %w", op.Key(), err)
		}

		auth, err := g.authorization(op, s, declared)
		if err != nil {
			return nil, err
		}

		responses := successResponses(examples)
		if len(responses) > 0 {
			requests := examples.RequestExamples
			if len(requests) == 0 {
				requests = []string{""}
			}
			for _, name := range requests {
				s.Cases = append(s.Cases, suite.Case{
					Name:      caseName(op, name),
					Operation: op.Key(),
					Tags:      op.Tags,
					Request:   exampleRequest(examples.RequestMediaType, name, auth),
					Responses: responses,
				})
			}
		}

		if examples.AcceptsJSON() {
			raw := MalformedJSON
			s.Cases = append(s.Cases, suite.Case{
				Name:      label(op) + " rejects malformed json",
				Operation: op.Key(),
				Tags:      op.Tags,
				Request:   suite.Request{Raw: &raw, Bad: true, Auth: auth},
				Responses: []suite.Response{{Class: conformance.ClientErrorClass.String()}},
			})
		}
	}

	return s, nil
}

// authorization returns the name of the suite authorization for the first
// scheme of the operation's security requirement that has a configured
// credential, declaring it on first use.
func (g *Generator) authorization(op models.Operation, s *suite.Suite, declared map[string]bool) (string, error) {
	schemes, err := g.source.OperationSecurity(op.Method, op.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read security of %s: %w", op.Key(), err)
	}

	for _, scheme := range schemes {
		secret, ok := g.credential(scheme)
		if !ok {
			continue
		}
		if !declared[scheme] {
			declared[scheme] = true
			s.Authorizations = append(s.Authorizations, suite.Authorization{
				Name:           scheme,
				SecurityScheme: scheme,
				Secret:         secret,
			})
		}
		return scheme, nil
	}
	return "", nil
}

func (g *Generator) credential(scheme string) (string, bool) {
	if secret, ok := g.credentials[scheme]; ok {
		return secret, true
	}
	// viper lower-cases map keys
	for name, secret := range g.credentials {
		if strings.EqualFold(name, scheme) {
			return secret, true
		}
	}
	return "", false
}

// successResponses accepts every declared 2xx example, else every declared
// 2xx status, else the 2xx class
func successResponses(examples parser.OperationExamples) []suite.Response {
	var responses []suite.Response
	for _, r := range examples.Responses {
		responses = append(responses, suite.Response{Status: r.Status, MediaType: r.MediaType, Example: r.Name})
	}
	if len(responses) > 0 {
		return responses
	}
	for _, status := range examples.SuccessStatuses {
		responses = append(responses, suite.Response{Status: status})
	}
	if len(responses) == 0 && examples.SuccessRange {
		responses = append(responses, suite.Response{Class: conformance.SuccessClass.String()})
	}
	return responses
}

func exampleRequest(mediaType, name, auth string) suite.Request {
	req := suite.Request{Example: name, Auth: auth}
	if name != "" && mediaType != conformance.JSONMediaType {
		req.MediaType = mediaType
	}
	return req
}

func label(op models.Operation) string {
	if op.OperationID != "" {
		return op.OperationID
	}
	return op.Key()
}

func caseName(op models.Operation, example string) string {
	if example == "" {
		return label(op)
	}
	return label(op) + " with example " + example
}
