// Package main is the easylish command: it loads configuration, builds the
// configured retrieval backend, indexes a JSON file of subtitle entries, and
// runs a single query or random pick, printing the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sunhengzhe/easylish/config"
	"github.com/sunhengzhe/easylish/metric"
	"github.com/sunhengzhe/easylish/search"
	"github.com/sunhengzhe/easylish/subtitle"
)

const (
	Version = "0.1.0"
	appName = "easylish"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowHelp {
		printUsage()
		return nil
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cliCfg.Validate {
		logger.Info("configuration is valid", "backend", cfg.Backend)
		return nil
	}

	ctx := context.Background()

	registry := metric.NewMetricsRegistry()
	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   appName,
		Name:        "build_info",
		Help:        "Build information. Always 1, labeled with version details.",
		ConstLabels: prometheus.Labels{"version": Version, "go_version": runtime.Version()},
	})
	buildInfo.Set(1)
	if err := registry.Register(appName, "build_info", buildInfo); err != nil {
		return fmt.Errorf("register build info metric: %w", err)
	}
	if cliCfg.MetricsPort > 0 {
		metricsServer := metric.NewServer(cliCfg.MetricsPort, registry, logger)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Stop(shutdownCtx)
		}()
	}

	backend, err := search.NewBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build backend: %w", err)
	}

	engine, err := search.NewEngine(search.EngineConfig{
		Backend: backend,
		Ranking: cfg.Ranking,
		Random:  cfg.Random,
		Metrics: registry.CoreMetrics(),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	entries, err := loadEntries(cliCfg.EntriesPath)
	if err != nil {
		return err
	}
	if err := engine.Initialize(ctx, entries); err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}

	if cliCfg.Random {
		entry, err := engine.Random(ctx, cliCfg.MinWords)
		if err != nil {
			return fmt.Errorf("random pick: %w", err)
		}
		if entry == nil {
			logger.Info("no entry matched the word gate")
			fmt.Println("null")
			return nil
		}
		return printJSON(entry)
	}

	resp, err := engine.SearchTopK(ctx, cliCfg.Query, cliCfg.Limit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return printJSON(resp)
}

// loadEntries reads the ingestion collaborator's JSON entry list. An empty
// path is allowed for backends that already hold data remotely.
func loadEntries(path string) ([]subtitle.Entry, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entries file: %w", err)
	}
	var entries []subtitle.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse entries file: %w", err)
	}
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = subtitle.EntryID(entries[i].VideoID, entries[i].Episode, entries[i].Sequence)
		}
		if entries[i].NormalizedText == "" {
			entries[i].NormalizedText = subtitle.Normalize(entries[i].Text)
		}
	}
	return entries, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
