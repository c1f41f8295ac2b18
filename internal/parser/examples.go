package parser

import (
	"sort"
	"strconv"
	"strings"
)

// ResponseExampleRef names one declared response example
type ResponseExampleRef struct {
	Status    int
	MediaType string
	Name      string
}

// OperationExamples lists what an operation declares that test cases can be built from
type OperationExamples struct {
	// RequestMediaType is the preferred request body media type, empty without a body
	RequestMediaType string
	// RequestExamples are the example names declared for RequestMediaType
	RequestExamples []string
	// Responses are the examples declared for success responses
	Responses []ResponseExampleRef
	// SuccessStatuses are the explicitly declared 2xx status codes, ascending
	SuccessStatuses []int
	// SuccessRange is set when the operation declares a 2XX response range
	SuccessRange bool
}

// AcceptsJSON reports whether the operation takes a JSON request body
func (e OperationExamples) AcceptsJSON() bool {
	return isJSON(e.RequestMediaType)
}

// Examples lists the declared request examples and success response examples of an operation
func (p *Parser) Examples(method, path string) (OperationExamples, error) {
	_, operation, err := p.findOperation(method, path)
	if err != nil {
		return OperationExamples{}, err
	}

	var examples OperationExamples
	if body := operation.RequestBody; body != nil && body.Content != nil {
		var mediaTypes []string
		for pair := body.Content.First(); pair != nil; pair = pair.Next() {
			mediaTypes = append(mediaTypes, pair.Key())
		}
		if mediaTypes = preferJSON(mediaTypes); len(mediaTypes) > 0 {
			examples.RequestMediaType = mediaTypes[0]
			if mt, err := findMediaType(body.Content, mediaTypes[0]); err == nil {
				examples.RequestExamples = exampleNames(mt)
			}
		}
	}

	if operation.Responses == nil || operation.Responses.Codes == nil {
		return examples, nil
	}

	for pair := operation.Responses.Codes.First(); pair != nil; pair = pair.Next() {
		key := strings.ToUpper(pair.Key())
		if key == "2XX" {
			examples.SuccessRange = true
			continue
		}
		status, err := strconv.Atoi(key)
		if err != nil || status < 200 || status > 299 {
			continue
		}
		examples.SuccessStatuses = append(examples.SuccessStatuses, status)

		response := pair.Value()
		if response == nil || response.Content == nil {
			continue
		}
		for content := response.Content.First(); content != nil; content = content.Next() {
			if content.Value() == nil {
				continue
			}
			for _, name := range exampleNames(content.Value()) {
				examples.Responses = append(examples.Responses, ResponseExampleRef{
					Status:    status,
					MediaType: content.Key(),
					Name:      name,
				})
			}
		}
	}

	sort.Ints(examples.SuccessStatuses)
	sort.SliceStable(examples.Responses, func(i, j int) bool {
		return examples.Responses[i].Status < examples.Responses[j].Status
	})
	return examples, nil
}
