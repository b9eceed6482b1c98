package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string
	LogLevel string

	UploadDir   string
	IndexDir    string
	MaxUploadMB int

	ChunkSize         int
	ChunkOverlap      int
	EmbedBatchSize    int
	EmbedBatchPauseMS int
	RAGTopK           int

	LLMProvider    string
	LLMTemperature float64

	GeminiAPIKey     string
	GeminiGenModel   string
	GeminiEmbedModel string
	GeminiRPM        int

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	QueueDriver string
	NATSURL     string
	NATSSubject string

	// WorkerConcurrency above 1 is reduced to 1: each job replaces the whole index.
	WorkerConcurrency      int
	WorkerQueueSize        int
	PipelineTimeoutSeconds int
	JobRetentionHours      int

	APIRateLimitRPS       float64
	APIRateLimitBurst     int
	APIMaxInFlight        int
	APIBackpressureWaitMS int
	CORSAllowedOrigins    string

	ResilienceRetryMaxAttempts   int
	ResilienceRetryInitialMS     int
	ResilienceRetryMaxMS         int
	ResilienceBreakerEnabled     bool
	ResilienceBreakerMinRequests int
	ResilienceBreakerOpenSeconds int

	WorkerMetricsPort string
}

// Load reads configuration from the environment. When CONFIG_FILE names a
// YAML file, its keys (the environment variable names) act as fallbacks.
// If that file cannot be read, Load still returns the environment and
// default values together with the error.
func Load() (Config, error) {
	path := os.Getenv("CONFIG_FILE")
	cfg, err := LoadFile(path)
	if err != nil {
		fallback, _ := LoadFile("")
		return fallback, fmt.Errorf("load config file %q: %w", path, err)
	}
	return cfg, nil
}

func LoadFile(path string) (Config, error) {
	src := source{file: map[string]string{}}
	if strings.TrimSpace(path) != "" {
		file, err := readYAMLFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}

	return Config{
		APIPort:  src.mustEnv("API_PORT", "8000"),
		LogLevel: src.mustEnv("LOG_LEVEL", "info"),

		UploadDir:   src.mustEnv("UPLOAD_DIR", "./uploads"),
		IndexDir:    src.mustEnv("INDEX_DIR", "./vector_store/faiss_index"),
		MaxUploadMB: src.mustEnvInt("MAX_UPLOAD_MB", 50),

		ChunkSize:         src.mustEnvInt("CHUNK_SIZE", 4000),
		ChunkOverlap:      src.mustEnvInt("CHUNK_OVERLAP", 400),
		EmbedBatchSize:    src.mustEnvInt("EMBED_BATCH_SIZE", 10),
		EmbedBatchPauseMS: src.mustEnvInt("EMBED_BATCH_PAUSE_MS", 1000),
		RAGTopK:           src.mustEnvInt("RAG_TOP_K", 4),

		LLMProvider:    strings.ToLower(src.mustEnv("LLM_PROVIDER", "gemini")),
		LLMTemperature: src.mustEnvFloat("LLM_TEMPERATURE", 0.3),

		GeminiAPIKey:     src.mustEnv("GEMINI_API_KEY", ""),
		GeminiGenModel:   src.mustEnv("GEMINI_GEN_MODEL", "gemini-2.0-flash"),
		GeminiEmbedModel: src.mustEnv("GEMINI_EMBED_MODEL", "embedding-001"),
		GeminiRPM:        src.mustEnvInt("GEMINI_RPM", 60),

		OllamaURL:        src.mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   src.mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel: src.mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		QueueDriver: strings.ToLower(src.mustEnv("QUEUE_DRIVER", "inproc")),
		NATSURL:     src.mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: src.mustEnv("NATS_SUBJECT", "pdfqa.jobs"),

		WorkerConcurrency:      src.mustEnvInt("WORKER_CONCURRENCY", 1),
		WorkerQueueSize:        src.mustEnvInt("WORKER_QUEUE_SIZE", 16),
		PipelineTimeoutSeconds: src.mustEnvInt("PIPELINE_TIMEOUT_SECONDS", 600),
		JobRetentionHours:      src.mustEnvInt("JOB_RETENTION_HOURS", 24),

		APIRateLimitRPS:       src.mustEnvFloat("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst:     src.mustEnvInt("API_RATE_LIMIT_BURST", 10),
		APIMaxInFlight:        src.mustEnvInt("API_MAX_IN_FLIGHT", 0),
		APIBackpressureWaitMS: src.mustEnvInt("API_BACKPRESSURE_WAIT_MS", 50),
		CORSAllowedOrigins:    src.mustEnv("CORS_ALLOWED_ORIGINS", "*"),

		ResilienceRetryMaxAttempts:   src.mustEnvInt("RESILIENCE_RETRY_MAX_ATTEMPTS", 1),
		ResilienceRetryInitialMS:     src.mustEnvInt("RESILIENCE_RETRY_INITIAL_MS", 200),
		ResilienceRetryMaxMS:         src.mustEnvInt("RESILIENCE_RETRY_MAX_MS", 2000),
		ResilienceBreakerEnabled:     src.mustEnvBool("RESILIENCE_BREAKER_ENABLED", true),
		ResilienceBreakerMinRequests: src.mustEnvInt("RESILIENCE_BREAKER_MIN_REQUESTS", 10),
		ResilienceBreakerOpenSeconds: src.mustEnvInt("RESILIENCE_BREAKER_OPEN_SECONDS", 30),

		WorkerMetricsPort: src.mustEnv("WORKER_METRICS_PORT", "9090"),
	}, nil
}

func readYAMLFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(k))] = fmt.Sprint(v)
	}
	return out, nil
}

type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) mustEnv(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) mustEnvInt(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvFloat(key string, fallback float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func (s source) mustEnvBool(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
