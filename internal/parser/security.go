package parser

import (
	"fmt"
	"strings"

	"github.com/moamenhredeen/oasconform/internal/conformance"
	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
)

// SecuritySchemes lists the names of the declared security schemes, in document order
func (p *Parser) SecuritySchemes() []string {
	var names []string
	if p.model.Components == nil || p.model.Components.SecuritySchemes == nil {
		return names
	}
	for pair := p.model.Components.SecuritySchemes.First(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key())
	}
	return names
}

func (p *Parser) securityScheme(name string) (*v3.SecurityScheme, error) {
	if p.model.Components != nil && p.model.Components.SecuritySchemes != nil {
		for pair := p.model.Components.SecuritySchemes.First(); pair != nil; pair = pair.Next() {
			if pair.Key() == name && pair.Value() != nil {
				return pair.Value(), nil
			}
		}
	}
	return nil, fmt.Errorf("security scheme not found: %s", name)
}

// Authorization builds a credential for a declared security scheme.
// Basic secrets are given as "user:password"; oauth2 and openIdConnect
// schemes take a bearer token.
func (p *Parser) Authorization(schemeName, secret string) (conformance.TestAuthorization, error) {
	scheme, err := p.securityScheme(schemeName)
	if err != nil {
		return conformance.TestAuthorization{}, err
	}

	switch strings.ToLower(scheme.Type) {
	case "http":
		switch strings.ToLower(scheme.Scheme) {
		case "bearer":
			return conformance.NewBearerAuth(schemeName, secret), nil
		case "basic":
			user, password, ok := strings.Cut(secret, ":")
			if !ok {
				return conformance.TestAuthorization{}, fmt.Errorf("security scheme %s: basic credential must be user:password", schemeName)
			}
			return conformance.NewBasicAuth(schemeName, user, password), nil
		default:
			return conformance.TestAuthorization{}, fmt.Errorf("security scheme %s: unsupported http scheme %q", schemeName, scheme.Scheme)
		}
	case "apikey":
		var in conformance.ParamLocation
		switch strings.ToLower(scheme.In) {
		case "header":
			in = conformance.InHeader
		case "query":
			in = conformance.InQuery
		default:
			return conformance.TestAuthorization{}, fmt.Errorf("security scheme %s: api key in %q is not supported", schemeName, scheme.In)
		}
		return conformance.NewAPIKeyAuth(schemeName, in, scheme.Name, secret), nil
	case "oauth2", "openidconnect":
		return conformance.NewBearerAuth(schemeName, secret), nil
	default:
		return conformance.TestAuthorization{}, fmt.Errorf("security scheme %s: unsupported type %q", schemeName, scheme.Type)
	}
}

// OperationSecurity returns the scheme names of the first security requirement
// that applies to an operation. Operation-level requirements replace the
// document-level ones; an empty requirement means no credential is needed.
func (p *Parser) OperationSecurity(method, path string) ([]string, error) {
	_, operation, err := p.findOperation(method, path)
	if err != nil {
		return nil, err
	}

	requirements := p.model.Security
	if operation.Security != nil {
		requirements = operation.Security
	}
	return firstRequirement(requirements), nil
}

func firstRequirement(requirements []*base.SecurityRequirement) []string {
	for _, req := range requirements {
		if req == nil {
			continue
		}
		var names []string
		if req.Requirements != nil {
			for pair := req.Requirements.First(); pair != nil; pair = pair.Next() {
				names = append(names, pair.Key())
			}
		}
		return names
	}
	return nil
}
