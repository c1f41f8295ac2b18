package conformance

import (
	"github.com/xeipuuv/gojsonschema"
)

// validateSchema returns one line per violation of schema by body
func validateSchema(schema, body []byte) []string {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(body),
	)
	if err != nil {
		return []string{err.Error()}
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return problems
}
