package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeGCP   Mode = "gcp"
)

type Config struct {
	Mode Mode

	Port       string
	LogLevel   string
	CORSOrigin string

	StorageBackend string // "memory", "sqlite" or "firestore"
	SQLitePath     string

	GCPProjectID string
	GCPLocation  string

	LLMBackend      string // "mock", "vertex" or "anthropic"
	ModelName       string
	AnthropicAPIKey string
	AnthropicModel  string

	IdleTimeout   time.Duration
	SweepSchedule string
	Analytics     bool

	TracingExporter string // "none", "stdout" or "otlp"
	OTLPEndpoint    string
}

// EnvPrefix is prepended to every key, e.g. SPARK_PORT.
const EnvPrefix = "SPARK"

// NewViper returns a viper instance with defaults and env binding set up.
// .env in the working directory is loaded first when present.
func NewViper() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", string(ModeLocal))
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("cors_origin", "*")
	v.SetDefault("storage_backend", "memory")
	v.SetDefault("sqlite_path", "spark.db")
	v.SetDefault("gcp_project", "")
	v.SetDefault("gcp_location", "us-central1")
	v.SetDefault("llm_backend", "")
	v.SetDefault("model_name", "gemini-2.5-flash-lite")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("anthropic_model", "claude-3-5-haiku-latest")
	v.SetDefault("idle_timeout", 30*time.Minute)
	v.SetDefault("sweep_schedule", "@every 10m")
	v.SetDefault("analytics", true)
	v.SetDefault("tracing_exporter", "none")
	v.SetDefault("otlp_endpoint", "localhost:4317")
	return v
}

// Load reads the environment and builds the config.
func Load() (*Config, error) {
	return FromViper(NewViper())
}

// FromViper builds the config from an already prepared viper instance,
// which lets the CLI bind flags on top of the environment.
func FromViper(v *viper.Viper) (*Config, error) {
	mode := ModeLocal
	if strings.EqualFold(v.GetString("mode"), string(ModeGCP)) {
		mode = ModeGCP
	}

	port := v.GetString("port")
	// Cloud Run and friends set PORT without our prefix
	if p := os.Getenv("PORT"); p != "" && os.Getenv(EnvPrefix+"_PORT") == "" {
		port = p
	}

	llmBackend := strings.ToLower(v.GetString("llm_backend"))
	if llmBackend == "" {
		llmBackend = "mock"
		if mode == ModeGCP {
			llmBackend = "vertex"
		}
	}

	cfg := &Config{
		Mode: mode,

		Port:       port,
		LogLevel:   v.GetString("log_level"),
		CORSOrigin: v.GetString("cors_origin"),

		StorageBackend: strings.ToLower(v.GetString("storage_backend")),
		SQLitePath:     v.GetString("sqlite_path"),

		GCPProjectID: v.GetString("gcp_project"),
		GCPLocation:  v.GetString("gcp_location"),

		LLMBackend:      llmBackend,
		ModelName:       v.GetString("model_name"),
		AnthropicAPIKey: v.GetString("anthropic_api_key"),
		AnthropicModel:  v.GetString("anthropic_model"),

		IdleTimeout:   v.GetDuration("idle_timeout"),
		SweepSchedule: v.GetString("sweep_schedule"),
		Analytics:     v.GetBool("analytics"),

		TracingExporter: strings.ToLower(v.GetString("tracing_exporter")),
		OTLPEndpoint:    v.GetString("otlp_endpoint"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combinations that cannot work at runtime.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case "memory", "sqlite", "firestore":
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	switch c.LLMBackend {
	case "mock", "vertex", "anthropic":
	default:
		return fmt.Errorf("unknown llm backend %q", c.LLMBackend)
	}

	needsGCP := c.StorageBackend == "firestore" || c.LLMBackend == "vertex"
	if needsGCP && c.GCPProjectID == "" {
		return fmt.Errorf("%s_GCP_PROJECT must be set for firestore storage or the vertex llm", EnvPrefix)
	}
	if c.LLMBackend == "anthropic" && c.AnthropicAPIKey == "" {
		return fmt.Errorf("%s_ANTHROPIC_API_KEY must be set for the anthropic llm", EnvPrefix)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive, got %s", c.IdleTimeout)
	}
	return nil
}
