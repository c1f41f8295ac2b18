/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/moamenhredeen/oasconform/internal/generator"
	"github.com/moamenhredeen/oasconform/internal/parser"
	"github.com/spf13/cobra"
)

var suiteOutputFile string

// suiteCmd represents the suite command
var suiteCmd = &cobra.Command{
	Use:   "suite [openapi-file]",
	Short: "Generate a test suite from the document's examples",
	Long: `Generate a test suite file from the examples declared by an OpenAPI document.

The generated YAML is the suite "oasconform test" runs when no --suite is
given. Write it to a file, edit it and pass it back with --suite.
Credentials configured under [credentials] are referenced unexpanded.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fatalf("Error: %v", err)
		}

		p, err := parser.ParseFile(args[0])
		if err != nil {
			fatalf("Error parsing OpenAPI file: %v", err)
		}

		s, err := generator.NewGenerator(p, cfg.Credentials).Generate(p.GetOperations())
		if err != nil {
			fatalf("Error generating suite: %v", err)
		}

		data, err := s.Marshal()
		if err != nil {
			fatalf("Error encoding suite: %v", err)
		}

		if suiteOutputFile == "" {
			_, _ = os.Stdout.Write(data)
			return
		}
		if err := os.WriteFile(suiteOutputFile, data, 0o644); err != nil {
			fatalf("Error writing suite: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(suiteCmd)

	suiteCmd.Flags().StringVar(&suiteOutputFile, "output-file", "", "Write the suite to file (default: stdout)")
}
