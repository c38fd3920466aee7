// Package main provides the npidb_scraper CLI: collect provider listings from npidb.org
// into CSV, or serve the same collection over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/npidb-scraper/internal/config"
	"github.com/jonathan/npidb-scraper/internal/fetch"
)

var rootCmd = &cobra.Command{
	Use:   "npidb_scraper",
	Short: "NPIDB provider directory scraper",
	Long:  "npidb_scraper collects healthcare provider listings for a specialty and state from npidb.org and exports them as CSV.",
	// Errors are printed once by main.
	SilenceErrors: true,
	SilenceUsage:  true,
}

var configPath string

func init() {
	d := config.Defaults()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML config file (default: ./npidb.yaml if present)")
	flags.String("log-level", d.LogLevel, "Log level: debug, info, warn, error")
	flags.String("log-format", d.LogFormat, "Log format: console or json")
	flags.String("base-url", d.BaseURL, "Site root to scrape")
	flags.Duration("timeout", d.Timeout, "HTTP request timeout")
	flags.String("user-agent", fetch.DefaultUserAgent, "User-Agent header sent with every request")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
