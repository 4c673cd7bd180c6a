package main

import (
	"os"
	"strconv"
	"strings"
)

// Config collects everything read from the environment. Optional
// collaborators (Cohere, NER model, Redis, Kafka) stay disabled when their
// settings are empty.
type Config struct {
	Port string

	// Cohere powers the generative entity tier and definition re-ranking.
	CohereAPIKey     string
	CohereChatModel  string
	CohereEmbedModel string

	// Local NER model artifacts.
	OrtLibraryPath   string
	NERModelPath     string
	NERTokenizerPath string
	NERMaxSeqLen     int

	// Redis bloom filter of learned abbreviation noise.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisBloomKey string

	// Kafka scan-request intake.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Worker pool sizing.
	ScanWorkers    int
	ScanQueueDepth int
}

// LoadConfig reads the environment into a Config with defaults applied.
func LoadConfig() Config {
	cfg := Config{
		Port:             GetEnvOrDefault("PORT", "8080"),
		CohereAPIKey:     os.Getenv("COHERE_API_KEY"),
		CohereChatModel:  GetEnvOrDefault("COHERE_CHAT_MODEL", "command-r"),
		CohereEmbedModel: GetEnvOrDefault("COHERE_EMBED_MODEL", "embed-english-v3.0"),
		OrtLibraryPath:   os.Getenv("ORT_LIBRARY_PATH"),
		NERModelPath:     os.Getenv("NER_MODEL_PATH"),
		NERTokenizerPath: os.Getenv("NER_TOKENIZER_PATH"),
		NERMaxSeqLen:     GetEnvIntOrDefault("NER_MAX_SEQ_LEN", 512),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          GetEnvIntOrDefault("REDIS_DB", 0),
		RedisBloomKey:    GetEnvOrDefault("REDIS_BLOOM_KEY", "scout:abbrev:noise"),
		KafkaTopic:       GetEnvOrDefault("KAFKA_TOPIC", "scout.scan.requests"),
		KafkaGroupID:     GetEnvOrDefault("KAFKA_GROUP_ID", "scout-intake"),
		ScanWorkers:      GetEnvIntOrDefault("SCAN_WORKERS", 5),
		ScanQueueDepth:   GetEnvIntOrDefault("SCAN_QUEUE_DEPTH", 256),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

// GetEnvOrDefault returns the env value or the default when unset/empty.
func GetEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// GetEnvIntOrDefault parses an integer env value, falling back on the
// default when unset or unparsable.
func GetEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}
