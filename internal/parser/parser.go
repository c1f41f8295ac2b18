package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/moamenhredeen/oasconform/internal/models"
	"github.com/pb33f/libopenapi"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
)

// Parser gives read access to an OpenAPI 3 document
type Parser struct {
	document libopenapi.Document
	model    *v3.Document
}

// ParseFile parses an OpenAPI specification file and returns a Parser instance
func ParseFile(filePath string) (*Parser, error) {
	specBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI file: %w", err)
	}
	return Parse(specBytes)
}

// Parse parses an OpenAPI document held in memory
func Parse(specBytes []byte) (*Parser, error) {
	document, err := libopenapi.NewDocument(specBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	model, errs := document.BuildV3Model()
	if errs != nil {
		return nil, fmt.Errorf("failed to build v3 model: %v", errs)
	}
	if model == nil {
		return nil, fmt.Errorf("failed to build v3 model: document is not OpenAPI 3")
	}

	return &Parser{document: document, model: &model.Model}, nil
}

// GetServerURLs returns the server URLs declared by the document, or
// http://localhost when it declares none
func (p *Parser) GetServerURLs() []string {
	var urls []string
	for _, server := range p.model.Servers {
		if server != nil && server.URL != "" {
			urls = append(urls, server.URL)
		}
	}
	if len(urls) == 0 {
		return []string{"http://localhost"}
	}
	return urls
}

// methodOperation pairs an HTTP method with its operation in a path item
type methodOperation struct {
	method    string
	operation *v3.Operation
}

// operationsOf lists the operations of a path item in a fixed method order
func operationsOf(item *v3.PathItem) []methodOperation {
	all := []methodOperation{
		{"GET", item.Get},
		{"PUT", item.Put},
		{"POST", item.Post},
		{"DELETE", item.Delete},
		{"OPTIONS", item.Options},
		{"HEAD", item.Head},
		{"PATCH", item.Patch},
		{"TRACE", item.Trace},
	}

	ops := make([]methodOperation, 0, len(all))
	for _, mo := range all {
		if mo.operation != nil {
			ops = append(ops, mo)
		}
	}
	return ops
}

// GetOperations extracts all operations from the OpenAPI spec, in document order
func (p *Parser) GetOperations() []models.Operation {
	var operations []models.Operation
	paths := p.model.Paths
	if paths == nil || paths.PathItems == nil {
		return operations
	}

	for pair := paths.PathItems.First(); pair != nil; pair = pair.Next() {
		pathItem := pair.Value()
		if pathItem == nil {
			continue
		}

		for _, mo := range operationsOf(pathItem) {
			tags := []string{}
			if mo.operation.Tags != nil {
				tags = append(tags, mo.operation.Tags...)
			}

			operations = append(operations, models.Operation{
				Path:        pair.Key(),
				Method:      mo.method,
				OperationID: mo.operation.OperationId,
				Summary:     mo.operation.Summary,
				Tags:        tags,
			})
		}
	}

	return operations
}

// findOperation returns the path item and operation for method and path
func (p *Parser) findOperation(method, path string) (*v3.PathItem, *v3.Operation, error) {
	paths := p.model.Paths
	if paths == nil || paths.PathItems == nil {
		return nil, nil, fmt.Errorf("path not found: %s", path)
	}

	var pathItem *v3.PathItem
	for pair := paths.PathItems.First(); pair != nil; pair = pair.Next() {
		if pair.Key() == path {
			pathItem = pair.Value()
			break
		}
	}
	if pathItem == nil {
		return nil, nil, fmt.Errorf("path not found: %s", path)
	}

	for _, mo := range operationsOf(pathItem) {
		if mo.method == strings.ToUpper(method) {
			return pathItem, mo.operation, nil
		}
	}
	return nil, nil, fmt.Errorf("operation not found: %s %s", method, path)
}
