package tester

import (
	"sort"

	"github.com/alessio/shellescape"
	"github.com/moamenhredeen/oasconform/internal/conformance"
)

// Curl renders a shell command reproducing a resolved request, with the
// injected credential redacted
func (t *HTTPTransport) Curl(req conformance.TestRequest) string {
	req = req.Redacted()
	args := []string{"curl", "-sS", "-i", "-X", req.Operation.Method}

	names := make([]string, 0, len(req.Headers))
	for name := range req.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range req.Headers[name] {
			args = append(args, "-H", name+": "+v)
		}
	}

	if len(req.Body) > 0 {
		args = append(args, "--data-binary", string(req.Body))
	}
	args = append(args, t.URL(req))

	return shellescape.QuoteCommand(args)
}
