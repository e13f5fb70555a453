package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"autohedge/fetcher"
)

// YAMLConfig is the layout of config.yaml.
type YAMLConfig struct {
	Server struct {
		Port      int     `yaml:"port"`
		RateLimit float64 `yaml:"rate_limit"`
	} `yaml:"server"`

	OutputDir string `yaml:"output_dir"`
	Store     string `yaml:"store"`
	DBPath    string `yaml:"db_path"`

	Data struct {
		Providers         []string `yaml:"providers"`
		CSVDir            string   `yaml:"csv_dir"`
		RequestsPerSecond float64  `yaml:"requests_per_second"`
		RedisAddr         string   `yaml:"redis_addr"`
		CacheTTL          string   `yaml:"cache_ttl"`
	} `yaml:"data"`

	LLM struct {
		URL   string `yaml:"url"`
		Model string `yaml:"model"`
	} `yaml:"llm"`
}

// Config is the resolved service configuration.
type Config struct {
	// HTTP port of the dashboard API.
	Port int
	// Requests per second allowed per client IP; negative disables limiting.
	RateLimit float64

	// Directory for saved backtest documents.
	OutputDir string
	// History backend: "file" or "sqlite".
	Store  string
	DBPath string

	// Price providers, tried in order.
	Providers         []string
	CSVDir            string
	RequestsPerSecond float64
	// Redis read-through cache for price history; empty disables it.
	RedisAddr string
	CacheTTL  time.Duration

	LLMURL   string
	LLMModel string
}

var DefaultConfig = Config{
	Port:              8000,
	RateLimit:         5,
	OutputDir:         "outputs",
	Store:             "file",
	DBPath:            "outputs/history.db",
	Providers:         []string{"yahoo", "eastmoney"},
	CSVDir:            "data",
	RequestsPerSecond: 2,
	CacheTTL:          12 * time.Hour,
	LLMURL:            "http://127.0.0.1:11434",
	LLMModel:          "qwen2.5:7b",
}

var knownProviders = map[string]bool{"yahoo": true, "eastmoney": true, "csv": true}

// LoadFromFile applies config.yaml over DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var yc YAMLConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := DefaultConfig
	cfg.Providers = append([]string(nil), DefaultConfig.Providers...)

	if yc.Server.Port > 0 {
		cfg.Port = yc.Server.Port
	}
	if yc.Server.RateLimit != 0 {
		cfg.RateLimit = yc.Server.RateLimit
	}
	if s := strings.TrimSpace(yc.OutputDir); s != "" {
		cfg.OutputDir = s
	}
	if s := strings.TrimSpace(yc.Store); s != "" {
		cfg.Store = strings.ToLower(s)
	}
	if s := strings.TrimSpace(yc.DBPath); s != "" {
		cfg.DBPath = s
	}

	if len(yc.Data.Providers) > 0 {
		cfg.Providers = cfg.Providers[:0]
		for _, p := range yc.Data.Providers {
			name := strings.ToLower(strings.TrimSpace(p))
			if name == "" {
				continue
			}
			if !knownProviders[name] {
				return nil, fmt.Errorf("unknown data provider %q", p)
			}
			cfg.Providers = append(cfg.Providers, name)
		}
	}
	if s := strings.TrimSpace(yc.Data.CSVDir); s != "" {
		cfg.CSVDir = s
	}
	if yc.Data.RequestsPerSecond != 0 {
		cfg.RequestsPerSecond = yc.Data.RequestsPerSecond
	}
	cfg.RedisAddr = strings.TrimSpace(yc.Data.RedisAddr)
	if s := strings.TrimSpace(yc.Data.CacheTTL); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("data.cache_ttl: %w", err)
		}
		cfg.CacheTTL = d
	}

	if s := strings.TrimSpace(yc.LLM.URL); s != "" {
		cfg.LLMURL = s
	}
	if s := strings.TrimSpace(yc.LLM.Model); s != "" {
		cfg.LLMModel = s
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Store != "file" && c.Store != "sqlite" {
		return fmt.Errorf("invalid store %q (want file or sqlite)", c.Store)
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("no data providers configured")
	}
	return nil
}

// FetchOptions maps the data section onto the provider builder.
func (c *Config) FetchOptions() fetcher.Options {
	return fetcher.Options{
		Providers:         append([]string(nil), c.Providers...),
		CSVDir:            c.CSVDir,
		RequestsPerSecond: c.RequestsPerSecond,
		RedisAddr:         c.RedisAddr,
		CacheTTL:          c.CacheTTL,
	}
}

// GetConfig resolves configuration with priority env > config file > defaults.
// A .env file in the working directory is loaded first; variables already
// set in the environment win over it.
func GetConfig(configPath string) *Config {
	_ = godotenv.Load()

	cfg := DefaultConfig
	cfg.Providers = append([]string(nil), DefaultConfig.Providers...)

	if configPath != "" {
		if fc, err := LoadFromFile(configPath); err == nil {
			cfg = *fc
		} else if !errors.Is(err, os.ErrNotExist) {
			fmt.Printf("warning: cannot load config %s: %v\n", configPath, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Printf("warning: %v, falling back to defaults\n", err)
		def := DefaultConfig
		def.Providers = append([]string(nil), DefaultConfig.Providers...)
		return &def
	}
	return &cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AUTOHEDGE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("AUTOHEDGE_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("AUTOHEDGE_STORE"); v != "" {
		cfg.Store = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("AUTOHEDGE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.LLMURL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.LLMModel = v
	}
}
