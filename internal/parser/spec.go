package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/moamenhredeen/oasconform/internal/conformance"
	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	"github.com/pb33f/libopenapi/orderedmap"
	"gopkg.in/yaml.v3"
)

// DefaultExampleName addresses the singular `example` of a media type
const DefaultExampleName = "default"

var (
	_ conformance.Specification  = (*Parser)(nil)
	_ conformance.SchemaProvider = (*Parser)(nil)
)

// Operation returns the declared parameters and request media types of an operation
func (p *Parser) Operation(method, path string) (conformance.OperationSpec, error) {
	pathItem, operation, err := p.findOperation(method, path)
	if err != nil {
		return conformance.OperationSpec{}, fmt.Errorf("%w: %v", conformance.ErrNoSuchOperation, err)
	}

	op := conformance.NewTestOperation(method, path).WithOperationID(operation.OperationId)
	spec := conformance.OperationSpec{
		Operation: op,
		Params:    declaredParams(pathItem.Parameters, operation.Parameters),
	}

	if operation.RequestBody != nil && operation.RequestBody.Content != nil {
		for pair := operation.RequestBody.Content.First(); pair != nil; pair = pair.Next() {
			spec.RequestMediaTypes = append(spec.RequestMediaTypes, pair.Key())
		}
		spec.RequestMediaTypes = preferJSON(spec.RequestMediaTypes)
	}

	return spec, nil
}

// declaredParams merges path-level and operation-level parameters;
// an operation parameter replaces a path parameter with the same name and location.
func declaredParams(pathParams, opParams []*v3.Parameter) []conformance.ParamSpec {
	var params []conformance.ParamSpec
	index := map[string]int{}

	for _, list := range [][]*v3.Parameter{pathParams, opParams} {
		for _, param := range list {
			spec, ok := paramSpec(param)
			if !ok {
				continue
			}
			key := string(spec.In) + ":" + spec.Name
			if i, seen := index[key]; seen {
				params[i] = spec
				continue
			}
			index[key] = len(params)
			params = append(params, spec)
		}
	}
	return params
}

func paramSpec(param *v3.Parameter) (conformance.ParamSpec, bool) {
	if param == nil {
		return conformance.ParamSpec{}, false
	}

	var in conformance.ParamLocation
	switch strings.ToLower(param.In) {
	case "path":
		in = conformance.InPath
	case "query":
		in = conformance.InQuery
	case "header":
		in = conformance.InHeader
	default:
		// cookie parameters are not sent
		return conformance.ParamSpec{}, false
	}

	spec := conformance.ParamSpec{
		Name:     param.Name,
		In:       in,
		Required: in == conformance.InPath || (param.Required != nil && *param.Required),
	}
	spec.Value, spec.HasValue = paramValue(param)
	return spec, true
}

// valueNode is a decodable YAML node from the parsed document
type valueNode interface {
	Decode(v interface{}) error
}

// paramValue picks the declared value of a parameter: its example, the first
// named example, then the schema example, default and first enum value.
func paramValue(param *v3.Parameter) (string, bool) {
	var candidates []valueNode
	if param.Example != nil {
		candidates = append(candidates, param.Example)
	}
	if param.Examples != nil {
		for pair := param.Examples.First(); pair != nil; pair = pair.Next() {
			if ex := pair.Value(); ex != nil && ex.Value != nil {
				candidates = append(candidates, ex.Value)
				break
			}
		}
	}
	if schema := schemaOf(param.Schema); schema != nil {
		if schema.Example != nil {
			candidates = append(candidates, schema.Example)
		}
		if len(schema.Examples) > 0 && schema.Examples[0] != nil {
			candidates = append(candidates, schema.Examples[0])
		}
		if schema.Default != nil {
			candidates = append(candidates, schema.Default)
		}
		if len(schema.Enum) > 0 && schema.Enum[0] != nil {
			candidates = append(candidates, schema.Enum[0])
		}
	}

	for _, node := range candidates {
		if value, err := scalarString(node); err == nil {
			return value, true
		}
	}
	return "", false
}

func schemaOf(proxy *base.SchemaProxy) *base.Schema {
	if proxy == nil {
		return nil
	}
	return proxy.Schema()
}

// scalarString renders a node as a parameter value; non-scalars are rendered as JSON
func scalarString(node valueNode) (string, error) {
	var value interface{}
	if err := node.Decode(&value); err != nil {
		return "", err
	}
	switch v := value.(type) {
	case nil:
		return "", fmt.Errorf("null value")
	case string:
		return v, nil
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(v), nil
	default:
		b, err := json.Marshal(v)
		return string(b), err
	}
}

// RequestExample returns the body of a named request example
func (p *Parser) RequestExample(op conformance.TestOperation, mediaType, name string) ([]byte, error) {
	_, operation, err := p.findOperation(op.Method, op.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", conformance.ErrNoSuchOperation, err)
	}
	if operation.RequestBody == nil {
		return nil, fmt.Errorf("%w: %s declares no request body", conformance.ErrExampleNotFound, op.Key())
	}

	mt, err := findMediaType(operation.RequestBody.Content, mediaType)
	if err != nil {
		return nil, err
	}
	return exampleBody(mt, mediaType, name)
}

// ResponseExample returns the body of a named response example
func (p *Parser) ResponseExample(op conformance.TestOperation, status int, mediaType, name string) ([]byte, error) {
	response, err := p.findResponse(op, status)
	if err != nil {
		return nil, err
	}

	mt, err := findMediaType(response.Content, mediaType)
	if err != nil {
		return nil, err
	}
	return exampleBody(mt, mediaType, name)
}

// ResponseSchema returns the declared schema of a response body as JSON,
// with references inlined.
func (p *Parser) ResponseSchema(op conformance.TestOperation, status int, mediaType string) ([]byte, error) {
	response, err := p.findResponse(op, status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", conformance.ErrSchemaNotFound, err)
	}

	mt, err := findMediaType(response.Content, mediaType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", conformance.ErrSchemaNotFound, err)
	}

	schema := schemaOf(mt.Schema)
	if schema == nil {
		return nil, fmt.Errorf("%w: %s %d %s", conformance.ErrSchemaNotFound, op.Key(), status, mediaType)
	}

	rendered, err := schema.RenderInline()
	if err != nil {
		return nil, fmt.Errorf("failed to render schema for %s %d: %w", op.Key(), status, err)
	}

	var value interface{}
	if err := yaml.Unmarshal(rendered, &value); err != nil {
		return nil, fmt.Errorf("failed to decode rendered schema: %w", err)
	}
	if strings.HasPrefix(p.model.Version, "3.0") {
		value = rewriteNullable(value)
	}
	return json.Marshal(value)
}

// rewriteNullable turns the OpenAPI 3.0 "nullable: true" keyword into the
// JSON Schema type union it stands for, at every depth.
func rewriteNullable(v interface{}) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			node[k] = rewriteNullable(child)
		}
		nullable, ok := node["nullable"].(bool)
		if !ok {
			return node
		}
		delete(node, "nullable")
		if !nullable {
			return node
		}
		switch t := node["type"].(type) {
		case string:
			node["type"] = []interface{}{t, "null"}
		case []interface{}:
			if !containsValue(t, "null") {
				node["type"] = append(t, "null")
			}
		}
		if enum, ok := node["enum"].([]interface{}); ok && !containsValue(enum, nil) {
			node["enum"] = append(enum, nil)
		}
		return node
	case []interface{}:
		for i, child := range node {
			node[i] = rewriteNullable(child)
		}
		return node
	default:
		return v
	}
}

func containsValue(values []interface{}, want interface{}) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func (p *Parser) findResponse(op conformance.TestOperation, status int) (*v3.Response, error) {
	_, operation, err := p.findOperation(op.Method, op.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", conformance.ErrNoSuchOperation, err)
	}
	if operation.Responses == nil {
		return nil, fmt.Errorf("%w: %s declares no responses", conformance.ErrExampleNotFound, op.Key())
	}

	responses := operation.Responses
	code := strconv.Itoa(status)
	rangeKey := code[:1] + "XX"

	var ranged *v3.Response
	if responses.Codes != nil {
		for pair := responses.Codes.First(); pair != nil; pair = pair.Next() {
			switch strings.ToUpper(pair.Key()) {
			case code:
				return pair.Value(), nil
			case rangeKey:
				ranged = pair.Value()
			}
		}
	}
	if ranged != nil {
		return ranged, nil
	}
	if responses.Default != nil {
		return responses.Default, nil
	}
	return nil, fmt.Errorf("%w: %s declares no %d response", conformance.ErrExampleNotFound, op.Key(), status)
}

// findMediaType looks up a content entry by exact key, then by media type essence
func findMediaType(content *orderedmap.Map[string, *v3.MediaType], mediaType string) (*v3.MediaType, error) {
	if content != nil {
		want := essence(mediaType)
		var loose *v3.MediaType
		for pair := content.First(); pair != nil; pair = pair.Next() {
			if pair.Key() == mediaType {
				return pair.Value(), nil
			}
			if loose == nil && essence(pair.Key()) == want {
				loose = pair.Value()
			}
		}
		if loose != nil {
			return loose, nil
		}
	}
	return nil, fmt.Errorf("%w: no content declared for media type %q", conformance.ErrExampleNotFound, mediaType)
}

func essence(mediaType string) string {
	mt, _, _ := strings.Cut(mediaType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func isJSON(mediaType string) bool {
	return strings.Contains(essence(mediaType), "json")
}

// preferJSON moves the first JSON media type to the front
func preferJSON(mediaTypes []string) []string {
	for i, mt := range mediaTypes {
		if isJSON(mt) {
			out := append([]string{mt}, mediaTypes[:i]...)
			return append(out, mediaTypes[i+1:]...)
		}
	}
	return mediaTypes
}

// exampleBody renders a named example of a media type as wire bytes
func exampleBody(mt *v3.MediaType, mediaType, name string) ([]byte, error) {
	var node valueNode
	if mt.Examples != nil {
		for pair := mt.Examples.First(); pair != nil; pair = pair.Next() {
			if pair.Key() == name && pair.Value() != nil && pair.Value().Value != nil {
				node = pair.Value().Value
				break
			}
		}
	}
	if node == nil && name == DefaultExampleName && mt.Example != nil {
		node = mt.Example
	}
	if node == nil {
		return nil, fmt.Errorf("%w: %q for media type %q", conformance.ErrExampleNotFound, name, mediaType)
	}

	var value interface{}
	if err := node.Decode(&value); err != nil {
		return nil, fmt.Errorf("failed to decode example %q: %w", name, err)
	}
	if s, ok := value.(string); ok && !isJSON(mediaType) {
		return []byte(s), nil
	}
	return json.Marshal(value)
}

// exampleNames lists the named examples of a media type; the singular
// example is listed as DefaultExampleName.
func exampleNames(mt *v3.MediaType) []string {
	var names []string
	if mt.Examples != nil {
		for pair := mt.Examples.First(); pair != nil; pair = pair.Next() {
			if pair.Value() != nil && pair.Value().Value != nil {
				names = append(names, pair.Key())
			}
		}
	}
	if len(names) == 0 && mt.Example != nil {
		names = append(names, DefaultExampleName)
	}
	return names
}
