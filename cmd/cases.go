/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/moamenhredeen/oasconform/internal/config"
	"github.com/moamenhredeen/oasconform/internal/conformance"
	"github.com/moamenhredeen/oasconform/internal/generator"
	"github.com/moamenhredeen/oasconform/internal/parser"
	"github.com/moamenhredeen/oasconform/internal/suite"
)

// loadCases parses the API document and builds the test cases from the suite
// file, or generates them from the document's examples when suiteFile is empty
func loadCases(specFile, suiteFile string, cfg config.Config) (*parser.Parser, []conformance.TestCase, error) {
	p, err := parser.ParseFile(specFile)
	if err != nil {
		return nil, nil, fmt.Errorf("error parsing OpenAPI file: %w", err)
	}

	var s *suite.Suite
	if suiteFile != "" {
		s, err = suite.Load(suiteFile)
	} else {
		s, err = generator.NewGenerator(p, cfg.Credentials).Generate(p.GetOperations())
	}
	if err != nil {
		return nil, nil, err
	}

	cases, err := s.Build(p)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid test suite: %w", err)
	}
	return p, cases, nil
}

// baseURL picks the server flag or config value, then the document's first server
func baseURL(cfg config.Config, p *parser.Parser) string {
	if cfg.Server != "" {
		return cfg.Server
	}
	return p.GetServerURLs()[0]
}

func filterCases(cases []conformance.TestCase, filterStr string, tagFilters []string) []conformance.TestCase {
	var filtered []conformance.TestCase

	for _, tc := range cases {
		// Filter by case name, path or operation ID
		if filterStr != "" {
			if !strings.Contains(tc.Name, filterStr) &&
				!strings.Contains(tc.Operation.Path, filterStr) &&
				!strings.Contains(tc.Operation.OperationID, filterStr) {
				continue
			}
		}

		// Filter by tags
		if len(tagFilters) > 0 {
			found := false
			for _, filterTag := range tagFilters {
				if tc.HasTag(filterTag) {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}

		filtered = append(filtered, tc)
	}

	return filtered
}
