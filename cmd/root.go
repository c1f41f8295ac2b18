/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/moamenhredeen/oasconform/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	isTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	green = color.New(color.FgGreen, color.Bold).SprintFunc()
	red   = color.New(color.FgRed, color.Bold).SprintFunc()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oasconform",
	Short: "Conformance testing for HTTP APIs described by OpenAPI",
	Long: `oasconform checks that a running HTTP API behaves the way its OpenAPI
document says it does.

Test cases name an operation, a request built from the document's examples
(or raw bytes for negative tests) and the responses that are acceptable.
Cases come from a suite file or are generated from the document's examples.`,
	SilenceUsage: true,
}

func Execute() {
	cobra.OnInitialize(initConfig)
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("OASCONFORM")
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatalf("Error reading config file: %v", err)
		}
	}
}

// loadConfig decodes the merged configuration and installs the logger
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("server", "", "Override server URL from the OpenAPI document")
	flags.IntP("concurrency", "c", 1, "Number of concurrent requests")
	flags.DurationP("timeout", "t", 0, "Request timeout (default 30s)")
	flags.String("log-level", "", "Log level: debug, info, warn, error (default warn)")

	for key, name := range map[string]string{
		"server":      "server",
		"concurrency": "concurrency",
		"timeout":     "timeout",
		"log_level":   "log-level",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			log.Fatalf("Error binding flag %s: %v", name, err)
		}
	}
}
