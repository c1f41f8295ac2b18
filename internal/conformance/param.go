package conformance

import "net/http"

// ParamLocation is where a parameter travels in the request
type ParamLocation string

const (
	InPath   ParamLocation = "path"
	InQuery  ParamLocation = "query"
	InHeader ParamLocation = "header"
)

// ParamReplacement overrides the declared value of a parameter.
// Name and value are opaque here; they are checked against the declared
// parameter set at resolution time.
type ParamReplacement struct {
	Name  string
	Value string
}

// NewParamReplacement creates a parameter override
func NewParamReplacement(name, value string) ParamReplacement {
	return ParamReplacement{Name: name, Value: value}
}

// ParamSpec is a parameter as declared by the specification
type ParamSpec struct {
	Name     string
	In       ParamLocation
	Required bool
	// Value is the declared example or default; HasValue is false when none exists
	Value    string
	HasValue bool
}

// TestParam is a fully resolved, location-qualified parameter
type TestParam struct {
	Name  string
	In    ParamLocation
	Value string
}

func (p TestParam) sameSlot(in ParamLocation, name string) bool {
	if p.In != in {
		return false
	}
	if in == InHeader {
		return http.CanonicalHeaderKey(p.Name) == http.CanonicalHeaderKey(name)
	}
	return p.Name == name
}

// setParam overwrites the value in the (in, name) slot or appends a new one,
// keeping names unique per location.
func setParam(params []TestParam, in ParamLocation, name, value string) []TestParam {
	for i := range params {
		if params[i].sameSlot(in, name) {
			params[i].Value = value
			return params
		}
	}
	return append(params, TestParam{Name: name, In: in, Value: value})
}

// ParamsIn returns the resolved parameters for one location, in resolution order
func ParamsIn(params []TestParam, in ParamLocation) []TestParam {
	var out []TestParam
	for _, p := range params {
		if p.In == in {
			out = append(out, p)
		}
	}
	return out
}
