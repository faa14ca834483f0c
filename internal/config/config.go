package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the termwatch service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Splunk    SplunkConfig    `yaml:"splunk"`
	Collector CollectorConfig `yaml:"collector"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Detection DetectionConfig `yaml:"detection"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Cache     CacheConfig     `yaml:"cache"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// SplunkConfig holds remote search platform settings.
type SplunkConfig struct {
	BaseURL            string `yaml:"base_url"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	SavedSearch        string `yaml:"saved_search"`
	PollIntervalSec    int    `yaml:"poll_interval_sec"`
	MaxPollAttempts    int    `yaml:"max_poll_attempts"`
	PageSize           int    `yaml:"page_size"`
	RequestTimeoutSec  int    `yaml:"request_timeout_sec"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// CollectorConfig holds event collector (HEC) settings.
// An empty URL disables export entirely.
type CollectorConfig struct {
	URL                string `yaml:"url"`
	Token              string `yaml:"token"`
	Index              string `yaml:"index"`
	Source             string `yaml:"source"`
	TimeoutSec         int    `yaml:"timeout_sec"`
	BreakerFailures    int    `yaml:"breaker_failures"`
	BreakerCooldownSec int    `yaml:"breaker_cooldown_sec"`
}

// CorpusConfig holds sensitive-term corpus settings.
type CorpusConfig struct {
	Path   string `yaml:"path"`
	Column string `yaml:"column"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider string       `yaml:"provider"` // openai, ollama
	OpenAI   OpenAIConfig `yaml:"openai"`
	Ollama   OllamaConfig `yaml:"ollama"`
}

// OpenAIConfig holds OpenAI-compatible provider settings.
type OpenAIConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// OllamaConfig holds local Ollama provider settings.
type OllamaConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// DetectionConfig holds the detection threshold and the similarity
// combination heuristics. The gate/weight constants are heuristic and kept
// overridable rather than hard-coded.
type DetectionConfig struct {
	Threshold               float64 `yaml:"threshold"`
	SubstringGate           float64 `yaml:"substring_gate"`
	OverlapGate             float64 `yaml:"overlap_gate"`
	SemanticSubstringWeight float64 `yaml:"semantic_substring_weight"`
	SemanticOverlapWeight   float64 `yaml:"semantic_overlap_weight"`
}

// SchedulerConfig holds the periodic ingestion settings.
type SchedulerConfig struct {
	Enabled     bool `yaml:"enabled"`
	IntervalMin int  `yaml:"interval_min"`
	Workers     int  `yaml:"workers"`
}

// CacheConfig holds the optional Redis embedding cache settings.
// Empty addrs disables caching.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLHours int      `yaml:"ttl_hours"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 5000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Splunk.PollIntervalSec <= 0 {
		c.Splunk.PollIntervalSec = 2
	}
	if c.Splunk.MaxPollAttempts <= 0 {
		c.Splunk.MaxPollAttempts = 120
	}
	if c.Splunk.PageSize <= 0 {
		c.Splunk.PageSize = 1000
	}
	if c.Splunk.RequestTimeoutSec <= 0 {
		c.Splunk.RequestTimeoutSec = 30
	}
	if c.Collector.Source == "" {
		c.Collector.Source = "nlp_alert_service"
	}
	if c.Collector.Index == "" {
		c.Collector.Index = "nlp_alerts"
	}
	if c.Collector.TimeoutSec <= 0 {
		c.Collector.TimeoutSec = 10
	}
	if c.Collector.BreakerFailures <= 0 {
		c.Collector.BreakerFailures = 5
	}
	if c.Collector.BreakerCooldownSec <= 0 {
		c.Collector.BreakerCooldownSec = 60
	}
	if c.Corpus.Column == "" {
		c.Corpus.Column = "term"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.OpenAI.Model == "" {
		c.Embedding.OpenAI.Model = "text-embedding-3-small"
	}
	if c.Embedding.Ollama.Model == "" {
		c.Embedding.Ollama.Model = "all-minilm"
	}
	if c.Detection.Threshold <= 0 {
		c.Detection.Threshold = 0.5
	}
	if c.Detection.SubstringGate <= 0 {
		c.Detection.SubstringGate = 0.8
	}
	if c.Detection.OverlapGate <= 0 {
		c.Detection.OverlapGate = 0.6
	}
	if c.Detection.SemanticSubstringWeight <= 0 {
		c.Detection.SemanticSubstringWeight = 0.7
	}
	if c.Detection.SemanticOverlapWeight <= 0 {
		c.Detection.SemanticOverlapWeight = 0.8
	}
	if c.Scheduler.IntervalMin <= 0 {
		c.Scheduler.IntervalMin = 15
	}
	if c.Scheduler.Workers <= 0 {
		c.Scheduler.Workers = 4
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if c.Corpus.Path == "" {
		return fmt.Errorf("corpus.path is required")
	}

	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.OpenAI.APIKey == "" {
			return fmt.Errorf("embedding.openai.api_key is required for the openai provider")
		}
	case "ollama":
		if c.Embedding.Ollama.URL == "" {
			return fmt.Errorf("embedding.ollama.url is required for the ollama provider")
		}
	default:
		return fmt.Errorf(`embedding.provider must be "openai" or "ollama", got %q`, c.Embedding.Provider)
	}

	if c.Scheduler.Enabled {
		if c.Splunk.BaseURL == "" {
			return fmt.Errorf("splunk.base_url is required when the scheduler is enabled")
		}
		if c.Splunk.SavedSearch == "" {
			return fmt.Errorf("splunk.saved_search is required when the scheduler is enabled")
		}
	}

	if c.Detection.Threshold > 1 {
		return fmt.Errorf("detection.threshold must be in (0, 1], got %g", c.Detection.Threshold)
	}

	if c.Collector.URL != "" && c.Collector.Token == "" {
		return fmt.Errorf("collector.token is required when collector.url is set")
	}

	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
