package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"scout/abbrev"
	"scout/api"
	"scout/embeddings"
	"scout/entity"
	"scout/kafka"
	"scout/ner"
	"scout/parser"
	"scout/scan"
	"scout/types"
)

func main() {
	log.SetOutput(os.Stderr)

	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()
	cfg := LoadConfig()

	pipeline := buildPipeline(cfg)

	// One-shot mode: scan the given files and print results as JSON.
	if len(os.Args) > 1 {
		runOnce(pipeline, os.Args[1:])
		return
	}

	manager := scan.NewManager(pipeline, cfg.ScanWorkers, cfg.ScanQueueDepth)
	defer manager.Stop()

	startKafkaIntake(cfg, manager)

	r := api.NewRouter(manager)
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s", addr)
	log.Println("API endpoints available:")
	log.Println("  GET    /api/health")
	log.Println("  POST   /api/scans")
	log.Println("  GET    /api/scans")
	log.Println("  GET    /api/scans/:id")
	log.Println("  GET    /api/scans/:id/results")
	log.Println("  DELETE /api/scans/:id")

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// buildPipeline wires the scorer and entity tiers from whatever the
// environment provides. Every optional collaborator that fails to come up
// logs a warning and is left out.
func buildPipeline(cfg Config) *scan.Pipeline {
	var embedder embeddings.Provider
	if cfg.CohereAPIKey != "" {
		embedder = embeddings.NewCohere(cfg.CohereAPIKey, cfg.CohereEmbedModel)
		log.Printf("Definition re-ranking enabled (model: %s)", cfg.CohereEmbedModel)
	}

	var recognizer ner.Recognizer
	if cfg.NERModelPath != "" && cfg.NERTokenizerPath != "" {
		model, err := ner.Shared(ner.Config{
			LibraryPath:   cfg.OrtLibraryPath,
			ModelPath:     cfg.NERModelPath,
			TokenizerPath: cfg.NERTokenizerPath,
			MaxSeqLen:     cfg.NERMaxSeqLen,
		})
		if err == nil {
			recognizer = model
			log.Printf("Local NER model loaded: %s", cfg.NERModelPath)
		}
	}

	var noise abbrev.NoiseFilter
	if cfg.RedisAddr != "" {
		rn, err := abbrev.NewRedisNoise(abbrev.RedisNoiseConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisBloomKey,
		})
		if err != nil {
			log.Printf("Warning: noise filter disabled: %v", err)
		} else {
			noise = rn
			log.Printf("Redis noise filter connected at %s", cfg.RedisAddr)
		}
	}

	scorer := abbrev.NewScorer()
	scorer.Recognizer = recognizer
	scorer.Embedder = embedder
	scorer.Noise = noise

	var tiers []entity.Tier
	if llm := entity.NewLLMTier(cfg.CohereAPIKey, cfg.CohereChatModel); llm != nil {
		tiers = append(tiers, llm)
		log.Printf("Generative entity tier enabled (model: %s)", cfg.CohereChatModel)
	}
	if nerTier := entity.NewNERTier(recognizer); nerTier != nil {
		tiers = append(tiers, nerTier)
	}
	tiers = append(tiers, entity.NewPatternTier())
	coordinator := entity.NewCoordinator(entity.NewValidator(entity.Options{}), tiers...)

	return scan.NewPipeline(&parser.TextParser{}, scorer, coordinator)
}

// startKafkaIntake begins consuming scan submissions when brokers are
// configured. Failure to connect disables the intake, nothing else.
func startKafkaIntake(cfg Config, manager *scan.Manager) {
	if len(cfg.KafkaBrokers) == 0 {
		return
	}
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroupID,
		Handler: &kafka.SubmissionHandler{Manager: manager},
	})
	if err != nil {
		log.Printf("Warning: Kafka intake disabled: %v", err)
		return
	}
	if err := consumer.Start(context.Background()); err != nil {
		log.Printf("Warning: Kafka intake failed to start: %v", err)
	}
}

// runOnce scans the given paths synchronously and prints a JSON report to
// stdout.
func runOnce(pipeline *scan.Pipeline, paths []string) {
	ctx := context.Background()
	start := time.Now()

	merged := map[string]*types.AbbreviationResult{}
	var docs []*types.DocumentResult
	failed := 0

	for i, path := range paths {
		ref := types.DocumentRef{ID: filepath.Base(path), Path: path}
		log.Printf("[%d/%d] Scanning: %s", i+1, len(paths), path)

		doc, err := pipeline.ProcessDocument(ctx, ref)
		if err != nil {
			log.Printf("Warning: %s failed: %v", path, err)
			failed++
			continue
		}
		docs = append(docs, doc)
		abbrev.Merge(merged, doc.Abbreviations)
	}

	stats := abbrev.Statistics(merged)
	report := map[string]any{
		"documents":            docs,
		"merged_abbreviations": abbrev.Sorted(merged, "alpha"),
		"statistics":           stats,
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode report: %v", err)
	}
	fmt.Println(string(out))

	log.Printf("Scanned %d/%d documents in %s", len(docs), len(paths), time.Since(start).Round(time.Millisecond))
	log.Printf("Abbreviations: %d total, %d with definitions (%.1f%% coverage)",
		stats.Total, stats.WithDefinitions, stats.CoveragePercent)
	if failed > 0 {
		os.Exit(1)
	}
}
