package conformance

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonResponse(status int, body string) Response {
	return Response{
		Status:  status,
		Headers: http.Header{"Content-Type": []string{"application/json; charset=utf-8"}},
		Body:    []byte(body),
	}
}

func TestNegativePolicyChecksOnlyStatusClass(t *testing.T) {
	candidates := []ResolvedResponse{{Spec: ExpectClientError()}}

	j := Validate(jsonResponse(400, `<html>whatever</html>`), true, candidates, ValidateOptions{})
	assert.True(t, j.Conforming)
	assert.Equal(t, 0, j.Matched)

	j = Validate(jsonResponse(200, `{}`), true, candidates, ValidateOptions{})
	assert.False(t, j.Conforming)
	require.Len(t, j.Mismatches, 1)
	assert.Equal(t, "status", j.Mismatches[0].Field)
	assert.Equal(t, "4xx", j.Mismatches[0].Expected)
	assert.Equal(t, "200", j.Mismatches[0].Actual)
}

func TestNegativePolicyExactStatusContributesItsClass(t *testing.T) {
	candidates := []ResolvedResponse{{Spec: ExpectStatus(422)}}

	assert.True(t, Validate(jsonResponse(400, ``), true, candidates, ValidateOptions{}).Conforming)
	assert.False(t, Validate(jsonResponse(500, ``), true, candidates, ValidateOptions{}).Conforming)
}

func TestPositivePolicyStructuralJSONMatch(t *testing.T) {
	candidates := []ResolvedResponse{{
		Spec:    ExpectJSONExample(200, "widget"),
		Example: []byte(`{"id": 42, "name": "gear"}`),
	}}

	// key order and number formatting do not matter
	j := Validate(jsonResponse(200, `{"name":"gear","id":42.0}`), false, candidates, ValidateOptions{})
	assert.True(t, j.Conforming, "%v", j.Mismatches)

	j = Validate(jsonResponse(200, `{"name":"cog","id":42}`), false, candidates, ValidateOptions{})
	assert.False(t, j.Conforming)
	require.Len(t, j.Mismatches, 1)
	assert.Equal(t, "body", j.Mismatches[0].Field)
	assert.Contains(t, j.Mismatches[0].Detail, "cog")
}

func TestPositivePolicyStatusMismatchSkipsBody(t *testing.T) {
	candidates := []ResolvedResponse{{
		Spec:    ExpectJSONExample(200, "widget"),
		Example: []byte(`{"id":42}`),
	}}

	j := Validate(jsonResponse(404, `{"error":"nope"}`), false, candidates, ValidateOptions{})
	require.Len(t, j.Mismatches, 1)
	assert.Equal(t, "status", j.Mismatches[0].Field)
	assert.Equal(t, -1, j.Matched)
}

func TestPositivePolicyMediaType(t *testing.T) {
	candidates := []ResolvedResponse{{Spec: ExpectExample(200, "application/json", "")}}

	resp := Response{Status: 200, Headers: http.Header{"Content-Type": []string{"text/plain"}}}
	j := Validate(resp, false, candidates, ValidateOptions{})

	require.Len(t, j.Mismatches, 1)
	assert.Equal(t, "content_type", j.Mismatches[0].Field)
}

func TestPositivePolicyAnyCandidateAccepts(t *testing.T) {
	candidates := []ResolvedResponse{
		{Spec: ExpectJSONExample(200, "a"), Example: []byte(`{"v":1}`)},
		{Spec: ExpectJSONExample(200, "b"), Example: []byte(`{"v":2}`)},
	}

	j := Validate(jsonResponse(200, `{"v":2}`), false, candidates, ValidateOptions{})
	assert.True(t, j.Conforming)
	assert.Equal(t, 1, j.Matched)

	j = Validate(jsonResponse(200, `{"v":3}`), false, candidates, ValidateOptions{})
	assert.False(t, j.Conforming)
	require.Len(t, j.Mismatches, 2)
	assert.Equal(t, 0, j.Mismatches[0].Candidate)
	assert.Equal(t, 1, j.Mismatches[1].Candidate)
}

func TestPositivePolicySchemaValidation(t *testing.T) {
	candidates := []ResolvedResponse{{
		Spec:   ExpectExample(200, JSONMediaType, ""),
		Schema: []byte(`{"type":"object","required":["id"],"properties":{"id":{"type":"integer"}}}`),
	}}

	opts := ValidateOptions{ValidateSchema: true}
	assert.True(t, Validate(jsonResponse(200, `{"id":1}`), false, candidates, opts).Conforming)

	j := Validate(jsonResponse(200, `{"id":"one"}`), false, candidates, opts)
	assert.False(t, j.Conforming)
	assert.Equal(t, "schema", j.Mismatches[0].Field)

	opts.ValidateSchema = false
	assert.True(t, Validate(jsonResponse(200, `{"id":"one"}`), false, candidates, opts).Conforming)
}

func TestResponseSpecSuccessSemantics(t *testing.T) {
	assert.True(t, ExpectStatus(200).IsSuccess())
	assert.True(t, ExpectStatus(302).IsSuccess())
	assert.True(t, ExpectClass(SuccessClass).IsSuccess())
	assert.False(t, ExpectStatus(400).IsSuccess())
	assert.False(t, ExpectClientError().IsSuccess())
	assert.False(t, ExpectClass(ServerErrorClass).IsSuccess())
}

func TestResponseSpecValidate(t *testing.T) {
	assert.NoError(t, ExpectJSONExample(200, "x").Validate())
	assert.Error(t, ExpectStatus(42).Validate())
	assert.Error(t, ExpectExample(200, "", "x").Validate())
	assert.Error(t, ResponseSpec{Class: ClientErrorClass, Example: "x"}.Validate())
}

func TestParseStatusClass(t *testing.T) {
	c, err := ParseStatusClass("4XX")
	require.NoError(t, err)
	assert.Equal(t, ClientErrorClass, c)

	_, err = ParseStatusClass("6xx")
	assert.Error(t, err)
	_, err = ParseStatusClass("404")
	assert.Error(t, err)
}

func TestResponseSpecResolveExampleNotFound(t *testing.T) {
	_, err := ExpectJSONExample(200, "missing").Resolve(widgetSpec(), widgetOp, false)

	requireResolutionKind(t, err, ExampleNotFound)
}

func TestResponseSpecResolveSchemaIsOptional(t *testing.T) {
	spec := widgetSpec().addResponseSchema(widgetOp, 200, JSONMediaType, `{"type":"object"}`)

	resolved, err := ExpectJSONExample(200, "widget").Resolve(spec, widgetOp, true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object"}`, string(resolved.Schema))
	assert.JSONEq(t, `{"id":42,"name":"gear"}`, string(resolved.Example))

	resolved, err = ExpectJSONExample(201, "created").Resolve(spec, createWidgetOp, true)
	require.NoError(t, err)
	assert.Nil(t, resolved.Schema)
}

func TestMediaTypeMatches(t *testing.T) {
	assert.True(t, MediaTypeMatches("application/json", "application/json; charset=utf-8"))
	assert.True(t, MediaTypeMatches("application/*", "application/problem+json"))
	assert.True(t, MediaTypeMatches("*/*", "text/plain"))
	assert.False(t, MediaTypeMatches("application/json", "text/json"))
	assert.False(t, MediaTypeMatches("application/json", ""))
}
