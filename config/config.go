package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration of the PDF chat service.
type Config struct {
	Port string `yaml:"port"`

	OllamaURL      string   `yaml:"ollama_url"`
	EmbeddingModel string   `yaml:"embedding_model"`
	ChatModels     []string `yaml:"chat_models"`
	DefaultMode    string   `yaml:"default_mode"`
	AnswerLanguage string   `yaml:"answer_language"`
	TopK           int      `yaml:"top_k"`

	EmbedAttempts    int           `yaml:"embed_attempts"`
	EmbedBackoff     time.Duration `yaml:"embed_backoff"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	UniDocLicenseKey string        `yaml:"unidoc_license_key"`

	GeminiAPIKey string `yaml:"gemini_api_key"`
	GeminiModel  string `yaml:"gemini_model"`

	// VectorBackend is "memory" or "chroma".
	VectorBackend    string `yaml:"vector_backend"`
	ChromaURL        string `yaml:"chroma_url"`
	ChromaCollection string `yaml:"chroma_collection"`

	WatchPDF string `yaml:"watch_pdf"`
}

// Default returns the configuration the service runs with when nothing is set.
func Default() *Config {
	return &Config{
		Port:             "8080",
		OllamaURL:        "http://localhost:11434",
		EmbeddingModel:   "embeddinggemma",
		ChatModels:       []string{"qwen3:8b", "llama3.2", "mistral"},
		DefaultMode:      "balanced",
		AnswerLanguage:   "English",
		TopK:             4,
		EmbedAttempts:    3,
		EmbedBackoff:     2 * time.Second,
		RequestTimeout:   300 * time.Second,
		MaxUploadBytes:   50 << 20,
		GeminiModel:      "gemini-2.5-flash",
		VectorBackend:    "memory",
		ChromaURL:        "http://localhost:8000",
		ChromaCollection: "pdfchat",
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// PDFCHAT_CONFIG, and environment variables (a .env file is loaded first).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("CONFIG: No .env file found, relying on environment variables.")
	}

	cfg := Default()
	if path := os.Getenv("PDFCHAT_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.mergeEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("CONFIG: %s does not exist, using defaults.", path)
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.OllamaURL, "OLLAMA_URL")
	setString(&c.EmbeddingModel, "EMBEDDING_MODEL")
	setString(&c.DefaultMode, "ANALYSIS_MODE")
	setString(&c.AnswerLanguage, "ANSWER_LANGUAGE")
	setString(&c.UniDocLicenseKey, "UNIDOC_LICENSE_KEY")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.GeminiModel, "GEMINI_MODEL")
	setString(&c.VectorBackend, "VECTOR_BACKEND")
	setString(&c.ChromaURL, "CHROMA_URL")
	setString(&c.ChromaCollection, "CHROMA_COLLECTION")
	setString(&c.WatchPDF, "WATCH_PDF")

	if v := os.Getenv("CHAT_MODELS"); v != "" {
		var models []string
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
		c.ChatModels = models
	}
	if err := setInt(&c.TopK, "TOP_K"); err != nil {
		return err
	}
	if err := setInt(&c.EmbedAttempts, "EMBED_ATTEMPTS"); err != nil {
		return err
	}
	if err := setDuration(&c.EmbedBackoff, "EMBED_BACKOFF"); err != nil {
		return err
	}
	if err := setDuration(&c.RequestTimeout, "REQUEST_TIMEOUT"); err != nil {
		return err
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MAX_UPLOAD_BYTES: %w", err)
		}
		c.MaxUploadBytes = n
	}
	return nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if len(c.ChatModels) == 0 {
		return errors.New("at least one chat model must be configured")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.EmbedAttempts <= 0 {
		return fmt.Errorf("embed_attempts must be positive, got %d", c.EmbedAttempts)
	}
	if c.EmbedBackoff < 0 {
		return fmt.Errorf("embed_backoff must not be negative, got %s", c.EmbedBackoff)
	}
	switch c.VectorBackend {
	case "memory", "chroma":
	default:
		return fmt.Errorf("unknown vector backend: %s", c.VectorBackend)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
