package conformance

import (
	"encoding/base64"
	"fmt"
)

// AuthScheme identifies how a credential is presented to the target
type AuthScheme string

const (
	BearerScheme AuthScheme = "bearer"
	BasicScheme  AuthScheme = "basic"
	APIKeyScheme AuthScheme = "apiKey"
)

// TestAuthorization is a named credential usable by any number of request specs.
// It is a value type: copies are interchangeable and nothing mutates it after
// construction, so it is safe to share across concurrently running cases.
type TestAuthorization struct {
	Name   string
	Scheme AuthScheme

	// Token is the bearer token or API key value
	Token string

	// Username and Password are used by the basic scheme
	Username string
	Password string

	// In and KeyName locate an API key (header or query)
	In      ParamLocation
	KeyName string
}

// NewBearerAuth creates a bearer token authorization
func NewBearerAuth(name, token string) TestAuthorization {
	return TestAuthorization{Name: name, Scheme: BearerScheme, Token: token}
}

// NewBasicAuth creates an HTTP basic authorization
func NewBasicAuth(name, username, password string) TestAuthorization {
	return TestAuthorization{Name: name, Scheme: BasicScheme, Username: username, Password: password}
}

// NewAPIKeyAuth creates an API key authorization sent as a header or query parameter
func NewAPIKeyAuth(name string, in ParamLocation, keyName, value string) TestAuthorization {
	return TestAuthorization{Name: name, Scheme: APIKeyScheme, Token: value, In: in, KeyName: keyName}
}

// Target returns the location and parameter name the credential is written to
func (a TestAuthorization) Target() (ParamLocation, string) {
	if a.Scheme == APIKeyScheme {
		return a.In, a.KeyName
	}
	return InHeader, "Authorization"
}

// Credential returns the value written to the target
func (a TestAuthorization) Credential() string {
	switch a.Scheme {
	case BearerScheme:
		return "Bearer " + a.Token
	case BasicScheme:
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(a.Username+":"+a.Password))
	default:
		return a.Token
	}
}

// Validate checks that the authorization can be injected
func (a TestAuthorization) Validate() error {
	switch a.Scheme {
	case BearerScheme, BasicScheme:
		return nil
	case APIKeyScheme:
		if a.KeyName == "" {
			return fmt.Errorf("authorization %q: api key name is empty", a.Name)
		}
		if a.In != InHeader && a.In != InQuery {
			return fmt.Errorf("authorization %q: api key location %q must be header or query", a.Name, a.In)
		}
		return nil
	default:
		return fmt.Errorf("authorization %q: unsupported scheme %q", a.Name, a.Scheme)
	}
}

// inject writes the credential into params. On a collision with a parameter
// set during replacement the credential wins.
func (a TestAuthorization) inject(params []TestParam) []TestParam {
	in, name := a.Target()
	return setParam(params, in, name, a.Credential())
}

// String omits the secret
func (a TestAuthorization) String() string {
	in, name := a.Target()
	return fmt.Sprintf("%s(%s in %s %s)", a.Name, a.Scheme, in, name)
}
