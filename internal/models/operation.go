package models

// Operation is an OpenAPI operation as listed by the parser
type Operation struct {
	Path        string
	Method      string
	OperationID string
	Summary     string
	Tags        []string
}

// Key returns "METHOD /path"
func (o Operation) Key() string {
	return o.Method + " " + o.Path
}
