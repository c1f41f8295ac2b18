package suite

import (
	"errors"
	"testing"

	"github.com/moamenhredeen/oasconform/internal/conformance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const widgetSuite = `
authorizations:
  - name: token
    scheme: bearer
    token: ${SUITE_TEST_TOKEN}
  - name: key
    scheme: apiKey
    in: query
    key: api_key
    value: k-1
  - name: doc
    securityScheme: bearerAuth
    secret: s3cret
cases:
  - name: get widget
    operation: GET /widgets/{id}
    tags: [smoke]
    request:
      auth: token
      params:
        - {name: id, value: "1"}
        - {name: id, value: "2"}
    responses:
      - status: 200
        example: widget
      - class: 4xx
  - name: create with broken json
    operation: post /widgets
    request:
      raw: "{not json"
      bad: true
      auth: doc
    responses:
      - class: 4xx
  - name: create widget
    operation: POST /widgets
    request:
      example: create-widget
    responses:
      - status: 201
        mediaType: application/json
`

type stubAuthorizer struct{}

func (stubAuthorizer) Authorization(scheme, secret string) (conformance.TestAuthorization, error) {
	if scheme != "bearerAuth" {
		return conformance.TestAuthorization{}, errors.New("unknown scheme")
	}
	return conformance.NewBearerAuth(scheme, secret), nil
}

func TestBuild(t *testing.T) {
	t.Setenv("SUITE_TEST_TOKEN", "from-env")

	s, err := Parse([]byte(widgetSuite))
	require.NoError(t, err)

	cases, err := s.Build(stubAuthorizer{})
	require.NoError(t, err)
	require.Len(t, cases, 3)

	get := cases[0]
	assert.Equal(t, "get widget", get.Name)
	assert.Equal(t, "GET /widgets/{id}", get.Operation.Key())
	assert.True(t, get.HasTag("smoke"))
	require.NotNil(t, get.Request.Auth)
	assert.Equal(t, "Bearer from-env", get.Request.Auth.Credential())
	assert.Equal(t, []conformance.ParamReplacement{{Name: "id", Value: "1"}, {Name: "id", Value: "2"}}, get.Request.Params)
	assert.Equal(t, []conformance.ResponseSpec{
		conformance.ExpectJSONExample(200, "widget"),
		conformance.ExpectClientError(),
	}, get.Responses)

	bad := cases[1]
	assert.Equal(t, "POST", bad.Operation.Method)
	assert.True(t, bad.Request.Bad)
	assert.Equal(t, conformance.SourceRaw, bad.Request.Source.Kind)
	assert.Equal(t, "doc", bad.Request.Auth.Name)
	assert.Equal(t, "Bearer s3cret", bad.Request.Auth.Credential())

	create := cases[2]
	assert.Equal(t, conformance.SourceExample, create.Request.Source.Kind)
	assert.Equal(t, conformance.JSONMediaType, create.Request.Source.MediaType)
	assert.Equal(t, conformance.ExpectExample(201, "application/json", ""), create.Responses[0])
}

func TestBuildRejectsMisconfiguredCases(t *testing.T) {
	s, err := Parse([]byte(`
cases:
  - name: bad with success
    operation: POST /widgets
    request:
      raw: "{not json"
      bad: true
    responses:
      - status: 201
  - name: no operation
    operation: widgets
    responses:
      - status: 200
  - name: unknown auth
    operation: GET /widgets
    request:
      auth: nope
    responses:
      - status: 200
  - name: example and raw
    operation: GET /widgets
    request:
      example: a
      raw: b
    responses:
      - status: 200
`))
	require.NoError(t, err)

	_, err = s.Build(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, conformance.ErrMisconfigured)
	for _, name := range []string{"bad with success", "no operation", "unknown auth", "example and raw"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestBuildSecuritySchemeNeedsDocument(t *testing.T) {
	s := &Suite{Authorizations: []Authorization{{Name: "doc", SecurityScheme: "bearerAuth"}}}

	_, err := s.Build(nil)
	assert.Error(t, err)
}

func TestBuildRejectsInvalidAuthorizations(t *testing.T) {
	for _, a := range []Authorization{
		{Name: "", Scheme: "bearer"},
		{Name: "x", Scheme: "digest"},
		{Name: "x", Scheme: "apiKey", In: "cookie", Key: "sid"},
	} {
		s := &Suite{Authorizations: []Authorization{a}}
		_, err := s.Build(nil)
		assert.Error(t, err, "%+v", a)
	}

	s := &Suite{Authorizations: []Authorization{{Name: "a", Scheme: "bearer"}, {Name: "a", Scheme: "bearer"}}}
	_, err := s.Build(nil)
	assert.ErrorContains(t, err, "duplicate")
}

func TestMarshalRoundTrip(t *testing.T) {
	raw := "{not json"
	s := &Suite{Cases: []Case{{
		Name:      "broken",
		Operation: "POST /widgets",
		Request:   Request{Raw: &raw, Bad: true},
		Responses: []Response{{Class: "4xx"}},
	}}}

	data, err := s.Marshal()
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, s, parsed)
}
