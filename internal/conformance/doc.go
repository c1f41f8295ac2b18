// Package conformance turns declarative API test cases into concrete requests
// and judges the responses.
//
// A TestCase pairs a TestOperation with a RequestSpec and one or more
// ResponseSpec candidates. Execute resolves the request against a
// Specification (declared examples and parameters), dispatches it once through
// a Transport and validates the response:
//
//	op := conformance.NewTestOperation("GET", "/widgets/{id}")
//	tc, err := conformance.NewTestCase("get widget", op,
//		conformance.EmptyRequest().AddParam("id", "7"),
//		conformance.ExpectJSONExample(200, "widget"))
//
// Requests marked bad (FromBadRaw) are judged only on their status class, and
// may not be paired with an expectation of success.
package conformance
