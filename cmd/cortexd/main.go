package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cortexkb/cortex/internal/config"
	"github.com/cortexkb/cortex/internal/embed"
	"github.com/cortexkb/cortex/internal/engine"
	"github.com/cortexkb/cortex/internal/storage/postgres"
	"github.com/cortexkb/cortex/internal/storage/sqlite"
	"github.com/cortexkb/cortex/pkg/types"
)

func main() {
	analysisInterval := flag.Duration("analysis-interval", time.Hour, "Interval between periodic analysis sweeps (clustering, anomaly scan, insights)")
	metricsInterval := flag.Duration("metrics-interval", 10*time.Minute, "Interval between metric aggregation passes")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DataPath), 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	store, err := sqlite.Open(cfg.Storage.DataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	stores := engine.Stores{
		Memories: store,
		Writer:   store,
		Graph:    store,
		Metrics:  store,
		Analysis: store,
	}

	// The pgvector candidate index is optional; without it candidate
	// selection falls back to tag and temporal scans.
	if cfg.Index.PostgresDSN != "" {
		index, err := postgres.Open(cfg.Index.PostgresDSN, cfg.Index.Dimension)
		if err != nil {
			log.Fatalf("Failed to open embedding index: %v", err)
		}
		defer index.Close()
		stores.Index = index
		log.Printf("Using pgvector candidate index (dimension %d)", cfg.Index.Dimension)
	}

	ollama := embed.NewOllamaClient(embed.OllamaConfig{
		BaseURL:           cfg.Embed.OllamaURL,
		Model:             cfg.Embed.Model,
		Dimension:         cfg.Embed.Dimension,
		Timeout:           cfg.Embed.Timeout,
		RequestsPerSecond: cfg.Embed.RequestsPerSecond,
	})
	embedder, err := embed.NewCache(ollama, cfg.Embed.CacheSize)
	if err != nil {
		log.Fatalf("Failed to create embedding cache: %v", err)
	}
	stores.Embedder = embedder

	weights, err := config.NewWeightsSource(cfg.Analysis.WeightsPath)
	if err != nil {
		log.Fatalf("Failed to load dimension weights: %v", err)
	}
	defer weights.Close()
	stores.Weights = weights

	engineCfg := engine.DefaultConfig()
	engineCfg.Workers = cfg.Analysis.Workers
	engineCfg.CandidateLimit = cfg.Analysis.CandidateLimit
	engineCfg.MinCompositeScore = cfg.Analysis.MinCompositeScore
	engineCfg.BatchTimeout = cfg.Analysis.BatchTimeout
	engineCfg.ClusterSeed = cfg.Analysis.ClusterSeed

	analyzer, err := engine.NewAnalyzer(stores, engineCfg)
	if err != nil {
		log.Fatalf("Failed to create analyzer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := analyzer.Start(ctx); err != nil {
		log.Fatalf("Failed to start analyzer: %v", err)
	}
	log.Printf("cortexd running (data: %s)", cfg.Storage.DataPath)

	go runMetricsLoop(ctx, analyzer, *metricsInterval)
	go runAnalysisLoop(ctx, analyzer, *analysisInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := analyzer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down analyzer: %v", err)
	}
}

// runMetricsLoop rolls raw ingestion activity into time-bucketed samples.
func runMetricsLoop(ctx context.Context, analyzer *engine.Analyzer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := analyzer.AggregateMetrics(ctx, types.GranularityDay, 48*time.Hour); err != nil {
				log.Printf("Metric aggregation failed: %v", err)
			}
		}
	}
}

// runAnalysisLoop runs the heavier periodic passes: clustering, anomaly
// detection over the recent metric series, and insight generation.
func runAnalysisLoop(ctx context.Context, analyzer *engine.Analyzer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := analyzer.Cluster(ctx, nil, types.AlgorithmKMeans, 0); err != nil {
				log.Printf("Clustering pass failed: %v", err)
			}
			if _, err := analyzer.DetectAnomalies(ctx, "ingestion_count", types.GranularityDay, 30*24*time.Hour); err != nil {
				log.Printf("Anomaly scan failed: %v", err)
			}
			if _, err := analyzer.GenerateInsights(ctx, 0, 0, 0); err != nil {
				log.Printf("Insight generation failed: %v", err)
			}
		}
	}
}
