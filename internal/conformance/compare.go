package conformance

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Comparator decides whether an actual body is equivalent to an expected example
type Comparator interface {
	Compare(expected, actual []byte) error
}

// Comparison strategy names accepted by ParseComparator
const (
	CompareExact      = "exact"
	CompareJSON       = "json"
	CompareJSONSubset = "json-subset"
)

// ParseComparator returns the comparator registered under name
func ParseComparator(name string) (Comparator, error) {
	switch name {
	case CompareExact:
		return ExactComparator{}, nil
	case "", CompareJSON:
		return JSONComparator{}, nil
	case CompareJSONSubset:
		return JSONComparator{AllowExtraFields: true}, nil
	default:
		return nil, fmt.Errorf("invalid comparison '%s': must be 'exact', 'json' or 'json-subset'", name)
	}
}

// ExactComparator requires byte-identical bodies
type ExactComparator struct{}

func (ExactComparator) Compare(expected, actual []byte) error {
	if bytes.Equal(expected, actual) {
		return nil
	}
	return fmt.Errorf("body differs from example byte for byte")
}

// JSONComparator compares decoded JSON values. Object key order and number
// formatting (1 vs 1.0) never matter; numbers are compared exactly. With AllowExtraFields, objects in the
// actual body may carry keys the example does not declare.
type JSONComparator struct {
	AllowExtraFields bool
}

func (c JSONComparator) Compare(expected, actual []byte) error {
	exp, err := decodeJSON(expected)
	if err != nil {
		return fmt.Errorf("example is not valid JSON: %w", err)
	}
	act, err := decodeJSON(actual)
	if err != nil {
		return fmt.Errorf("body is not valid JSON: %w", err)
	}

	if !c.AllowExtraFields {
		if diff := cmp.Diff(exp, act, exactNumbers); diff != "" {
			return fmt.Errorf("body differs from example (-example +body):\n%s", diff)
		}
		return nil
	}
	if path, ok := subset(exp, act, "$"); !ok {
		return fmt.Errorf("body differs from example at %s", path)
	}
	return nil
}

// decodeJSON decodes a single JSON value keeping numbers as literals
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := dec.Decode(new(any)); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

// exactNumbers compares JSON number literals by value with arbitrary precision
var exactNumbers = cmp.Comparer(func(x, y json.Number) bool {
	a, okA := new(big.Rat).SetString(string(x))
	b, okB := new(big.Rat).SetString(string(y))
	if !okA || !okB {
		return x == y
	}
	return a.Cmp(b) == 0
})

// subset reports whether every value in exp is present and equal in act.
// On failure it returns the JSON path of the first difference.
func subset(exp, act any, path string) (string, bool) {
	switch e := exp.(type) {
	case map[string]any:
		a, ok := act.(map[string]any)
		if !ok {
			return path, false
		}
		for k, ev := range e {
			av, present := a[k]
			if !present {
				return path + "." + k, false
			}
			if p, ok := subset(ev, av, path+"."+k); !ok {
				return p, false
			}
		}
		return "", true
	case []any:
		a, ok := act.([]any)
		if !ok || len(a) != len(e) {
			return path, false
		}
		for i := range e {
			if p, ok := subset(e[i], a[i], fmt.Sprintf("%s[%d]", path, i)); !ok {
				return p, false
			}
		}
		return "", true
	default:
		if !cmp.Equal(exp, act, exactNumbers) {
			return path, false
		}
		return "", true
	}
}

// ComparatorName returns the strategy name of a comparator created by ParseComparator
func ComparatorName(c Comparator) string {
	switch v := c.(type) {
	case ExactComparator:
		return CompareExact
	case JSONComparator:
		if v.AllowExtraFields {
			return CompareJSONSubset
		}
		return CompareJSON
	default:
		return strings.TrimPrefix(fmt.Sprintf("%T", c), "*")
	}
}
