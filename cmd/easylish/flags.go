package main

import (
	"flag"
	"fmt"
	"os"
)

// CLIConfig holds command-line options.
type CLIConfig struct {
	ConfigPath  string
	EntriesPath string
	Query       string
	Limit       int
	Random      bool
	MinWords    int
	MetricsPort int
	LogLevel    string
	LogFormat   string
	ShowVersion bool
	ShowHelp    bool
	Validate    bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		os.Getenv("EASYLISH_CONFIG"),
		"Path to YAML configuration file (env: EASYLISH_CONFIG)")
	flag.StringVar(&cfg.ConfigPath, "c",
		os.Getenv("EASYLISH_CONFIG"),
		"Path to YAML configuration file (shorthand)")
	flag.StringVar(&cfg.EntriesPath, "entries", "",
		"Path to a JSON file of subtitle entries to index")
	flag.StringVar(&cfg.Query, "query", "",
		"Query to run after initialization")
	flag.IntVar(&cfg.Limit, "limit", 10,
		"Maximum number of results to return")
	flag.BoolVar(&cfg.Random, "random", false,
		"Return a random entry instead of running a query")
	flag.IntVar(&cfg.MinWords, "min-words", 0,
		"Minimum word count for the random entry (0 = configured default)")
	flag.IntVar(&cfg.MetricsPort, "metrics-port", 0,
		"Port for the Prometheus metrics endpoint (0 = disabled)")
	flag.StringVar(&cfg.LogLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", "text",
		"Log format (json, text)")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = printUsage
	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp || cfg.Validate {
		return nil
	}
	if cfg.Query == "" && !cfg.Random {
		return fmt.Errorf("either -query or -random is required")
	}
	if cfg.Limit <= 0 {
		return fmt.Errorf("-limit must be positive, got %d", cfg.Limit)
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", appName)
	fmt.Fprintf(os.Stderr, "Semantic search over subtitle entries.\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s -entries entries.json -query \"we were on a break\"\n", appName)
	fmt.Fprintf(os.Stderr, "  %s -entries entries.json -random -min-words 4\n", appName)
	fmt.Fprintf(os.Stderr, "  %s -c config.yaml -query hello -limit 5\n", appName)
}
