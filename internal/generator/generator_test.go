package generator

import (
	"errors"
	"testing"

	"github.com/moamenhredeen/oasconform/internal/conformance"
	"github.com/moamenhredeen/oasconform/internal/models"
	"github.com/moamenhredeen/oasconform/internal/parser"
	"github.com/moamenhredeen/oasconform/internal/suite"
)

func mustParse(t *testing.T) *parser.Parser {
	t.Helper()
	p, err := parser.ParseFile("../parser/testdata/widgets.yaml")
	if err != nil {
		t.Fatalf("Failed to parse file: %v", err)
	}
	return p
}

func TestGenerate(t *testing.T) {
	p := mustParse(t)
	g := NewGenerator(p, map[string]string{"bearerauth": "${API_TOKEN}"})

	s, err := g.Generate(p.GetOperations())
	if err != nil {
		t.Fatalf("Failed to generate suite: %v", err)
	}

	var names []string
	for _, c := range s.Cases {
		names = append(names, c.Name)
	}
	expected := []string{
		"createWidget with example create-widget",
		"createWidget with example create-small",
		"createWidget rejects malformed json",
		"getWidget",
		"deleteWidget",
	}
	if len(names) != len(expected) {
		t.Fatalf("Expected cases %v, got %v", expected, names)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("Case %d: expected %q, got %q", i, expected[i], names[i])
		}
	}

	create := s.Cases[0]
	if create.Request.Example != "create-widget" || create.Request.MediaType != "" {
		t.Errorf("Unexpected request %+v", create.Request)
	}
	if create.Request.Auth != "bearerAuth" {
		t.Errorf("Expected bearerAuth credential, got %q", create.Request.Auth)
	}
	if len(create.Responses) != 1 || create.Responses[0] != (suite.Response{Status: 201, MediaType: "application/json", Example: "created"}) {
		t.Errorf("Unexpected responses %+v", create.Responses)
	}

	malformed := s.Cases[2]
	if !malformed.Request.Bad || malformed.Request.Raw == nil || *malformed.Request.Raw != MalformedJSON {
		t.Errorf("Unexpected malformed request %+v", malformed.Request)
	}
	if malformed.Responses[0].Class != "4xx" {
		t.Errorf("Expected 4xx, got %+v", malformed.Responses)
	}

	get := s.Cases[3]
	if get.Request.Auth != "" {
		t.Errorf("Expected no credential for apiKey operation, got %q", get.Request.Auth)
	}
	if get.Responses[0].Example != parser.DefaultExampleName {
		t.Errorf("Expected default example, got %+v", get.Responses)
	}

	if s.Cases[4].Responses[0] != (suite.Response{Status: 204}) {
		t.Errorf("Expected bare 204, got %+v", s.Cases[4].Responses)
	}

	if len(s.Authorizations) != 1 || s.Authorizations[0].Secret != "${API_TOKEN}" {
		t.Errorf("Expected one unexpanded authorization, got %+v", s.Authorizations)
	}
}

func TestGeneratedSuiteBuilds(t *testing.T) {
	p := mustParse(t)
	t.Setenv("API_TOKEN", "t0k3n")

	s, err := NewGenerator(p, map[string]string{"bearerAuth": "${API_TOKEN}"}).Generate(p.GetOperations())
	if err != nil {
		t.Fatalf("Failed to generate suite: %v", err)
	}

	cases, err := s.Build(p)
	if err != nil {
		t.Fatalf("Generated suite does not build: %v", err)
	}
	if len(cases) != len(s.Cases) {
		t.Fatalf("Expected %d cases, got %d", len(s.Cases), len(cases))
	}
	if got := cases[0].Request.Auth.Credential(); got != "Bearer t0k3n" {
		t.Errorf("Unexpected credential %q", got)
	}
	for _, tc := range cases {
		if tc.Request.Bad && tc.Responses[0] != conformance.ExpectClientError() {
			t.Errorf("%s: unexpected responses %+v", tc.Name, tc.Responses)
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	p := mustParse(t)
	g := NewGenerator(p, nil)

	first, err := g.Generate(p.GetOperations())
	if err != nil {
		t.Fatalf("Failed to generate suite: %v", err)
	}
	second, _ := g.Generate(p.GetOperations())

	a, _ := first.Marshal()
	b, _ := second.Marshal()
	if string(a) != string(b) {
		t.Errorf("Generated suites differ:\n%s\n%s", a, b)
	}
}

type failingSource struct{}

func (failingSource) Examples(method, path string) (parser.OperationExamples, error) {
	return parser.OperationExamples{}, errors.New("boom")
}

func (failingSource) OperationSecurity(method, path string) ([]string, error) {
	return nil, nil
}

func TestGeneratePropagatesSourceErrors(t *testing.T) {
	_, err := NewGenerator(failingSource{}, nil).Generate([]models.Operation{{Method: "GET", Path: "/x"}})
	if err == nil {
		t.Error("Expected error")
	}
}
