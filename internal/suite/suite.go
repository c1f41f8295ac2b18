// Package suite reads and writes YAML test suite files and turns them into
// conformance test cases.
package suite

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/moamenhredeen/oasconform/internal/conformance"
	"gopkg.in/yaml.v3"
)

// Suite is the file format of a test suite
type Suite struct {
	Authorizations []Authorization `yaml:"authorizations,omitempty"`
	Cases          []Case          `yaml:"cases"`
}

// Authorization declares a named credential. Either SecurityScheme is set and
// the credential is built from the document's scheme, or Scheme is one of
// bearer, basic and apiKey. Secrets may reference environment variables as ${NAME}.
type Authorization struct {
	Name           string `yaml:"name"`
	SecurityScheme string `yaml:"securityScheme,omitempty"`
	Secret         string `yaml:"secret,omitempty"`

	Scheme   string `yaml:"scheme,omitempty"`
	Token    string `yaml:"token,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	In       string `yaml:"in,omitempty"`
	Key      string `yaml:"key,omitempty"`
	Value    string `yaml:"value,omitempty"`
}

// Case declares one test case
type Case struct {
	Name string `yaml:"name"`
	// Operation is "METHOD /path"
	Operation string     `yaml:"operation"`
	Tags      []string   `yaml:"tags,omitempty"`
	Request   Request    `yaml:"request,omitempty"`
	Responses []Response `yaml:"responses"`
}

// Request declares the request of a case; Example and Raw are exclusive
type Request struct {
	Example   string  `yaml:"example,omitempty"`
	MediaType string  `yaml:"mediaType,omitempty"`
	Raw       *string `yaml:"raw,omitempty"`
	Bad       bool    `yaml:"bad,omitempty"`
	Auth      string  `yaml:"auth,omitempty"`
	Params    []Param `yaml:"params,omitempty"`
}

// Param overrides a declared parameter
type Param struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Response declares one acceptable response: an exact status, optionally with
// a media type and example name, or a status class such as "4xx"
type Response struct {
	Status    int    `yaml:"status,omitempty"`
	Class     string `yaml:"class,omitempty"`
	MediaType string `yaml:"mediaType,omitempty"`
	Example   string `yaml:"example,omitempty"`
}

// Authorizer builds credentials for security schemes declared by an API document
type Authorizer interface {
	Authorization(scheme, secret string) (conformance.TestAuthorization, error)
}

// Load reads a suite file
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a suite document
func Parse(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse suite: %w", err)
	}
	return &s, nil
}

// Marshal encodes the suite as YAML
func (s *Suite) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Build validates the suite and constructs its test cases in file order.
// authorizer may be nil when no authorization references a security scheme.
func (s *Suite) Build(authorizer Authorizer) ([]conformance.TestCase, error) {
	auths := map[string]conformance.TestAuthorization{}
	var errs []error

	for i, a := range s.Authorizations {
		auth, err := a.build(authorizer)
		if err != nil {
			errs = append(errs, fmt.Errorf("authorization %d (%s): %w", i, a.Name, err))
			continue
		}
		if _, dup := auths[a.Name]; dup {
			errs = append(errs, fmt.Errorf("authorization %d: duplicate name %q", i, a.Name))
			continue
		}
		auths[a.Name] = auth
	}

	cases := make([]conformance.TestCase, 0, len(s.Cases))
	for i, c := range s.Cases {
		tc, err := c.build(auths)
		if err != nil {
			errs = append(errs, fmt.Errorf("case %d (%s): %w", i, c.Name, err))
			continue
		}
		cases = append(cases, tc)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cases, nil
}

func (a Authorization) build(authorizer Authorizer) (conformance.TestAuthorization, error) {
	if a.Name == "" {
		return conformance.TestAuthorization{}, errors.New("name is required")
	}

	if a.SecurityScheme != "" {
		if authorizer == nil {
			return conformance.TestAuthorization{}, fmt.Errorf("security scheme %q needs an API document", a.SecurityScheme)
		}
		auth, err := authorizer.Authorization(a.SecurityScheme, os.ExpandEnv(a.Secret))
		if err != nil {
			return conformance.TestAuthorization{}, err
		}
		auth.Name = a.Name
		return auth, nil
	}

	var auth conformance.TestAuthorization
	switch conformance.AuthScheme(a.Scheme) {
	case conformance.BearerScheme:
		auth = conformance.NewBearerAuth(a.Name, os.ExpandEnv(a.Token))
	case conformance.BasicScheme:
		auth = conformance.NewBasicAuth(a.Name, os.ExpandEnv(a.Username), os.ExpandEnv(a.Password))
	case conformance.APIKeyScheme:
		auth = conformance.NewAPIKeyAuth(a.Name, conformance.ParamLocation(a.In), a.Key, os.ExpandEnv(a.Value))
	default:
		return conformance.TestAuthorization{}, fmt.Errorf("unknown scheme %q: must be bearer, basic or apiKey", a.Scheme)
	}
	return auth, auth.Validate()
}

func (c Case) build(auths map[string]conformance.TestAuthorization) (conformance.TestCase, error) {
	method, path, ok := strings.Cut(strings.TrimSpace(c.Operation), " ")
	path = strings.TrimSpace(path)
	if !ok || method == "" || !strings.HasPrefix(path, "/") {
		return conformance.TestCase{}, fmt.Errorf("operation %q must be \"METHOD /path\"", c.Operation)
	}
	op := conformance.NewTestOperation(method, path)

	req, err := c.Request.build(auths)
	if err != nil {
		return conformance.TestCase{}, err
	}

	responses := make([]conformance.ResponseSpec, 0, len(c.Responses))
	for _, r := range c.Responses {
		spec, err := r.build()
		if err != nil {
			return conformance.TestCase{}, err
		}
		responses = append(responses, spec)
	}

	tc, err := conformance.NewTestCase(c.Name, op, req, responses...)
	if err != nil {
		return conformance.TestCase{}, err
	}
	return tc.WithTags(c.Tags...), nil
}

func (r Request) build(auths map[string]conformance.TestAuthorization) (conformance.RequestSpec, error) {
	var spec conformance.RequestSpec
	switch {
	case r.Example != "" && r.Raw != nil:
		return spec, errors.New("request cannot declare both example and raw")
	case r.Example != "":
		mediaType := r.MediaType
		if mediaType == "" {
			mediaType = conformance.JSONMediaType
		}
		spec = conformance.FromExample(mediaType, r.Example).WithBad(r.Bad)
	case r.Raw != nil && r.Bad:
		spec = conformance.FromBadRaw([]byte(*r.Raw))
	case r.Raw != nil:
		spec = conformance.FromRaw(r.MediaType, []byte(*r.Raw))
	default:
		spec = conformance.EmptyRequest().WithBad(r.Bad)
	}

	if r.Auth != "" {
		auth, ok := auths[r.Auth]
		if !ok {
			return spec, fmt.Errorf("unknown authorization %q", r.Auth)
		}
		spec = spec.WithAuth(auth)
	}
	for _, p := range r.Params {
		spec = spec.AddParam(p.Name, p.Value)
	}
	return spec, nil
}

func (r Response) build() (conformance.ResponseSpec, error) {
	if r.Class != "" {
		if r.Status != 0 || r.Example != "" {
			return conformance.ResponseSpec{}, fmt.Errorf("response class %s cannot declare a status or example", r.Class)
		}
		class, err := conformance.ParseStatusClass(r.Class)
		if err != nil {
			return conformance.ResponseSpec{}, err
		}
		return conformance.ExpectClass(class), nil
	}

	if r.Example != "" && r.MediaType == "" {
		return conformance.ExpectJSONExample(r.Status, r.Example), nil
	}
	if r.Example != "" || r.MediaType != "" {
		return conformance.ExpectExample(r.Status, r.MediaType, r.Example), nil
	}
	return conformance.ExpectStatus(r.Status), nil
}
