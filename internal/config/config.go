package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Budget    BudgetConfig    `yaml:"budget"`
	Polling   PollingConfig   `yaml:"polling"`
	Storage   StorageConfig   `yaml:"storage"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Providers ProvidersConfig `yaml:"providers"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Mode     string `yaml:"mode"` // debug, release, test
	LogLevel string `yaml:"log_level"`
}

// Production reports whether the server runs in production (release) mode.
// Destructive operations such as budget reset are rejected in production.
func (s *ServerConfig) Production() bool {
	return s.Mode == "release"
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

// BudgetConfig controls the hard spending cap and its thresholds.
type BudgetConfig struct {
	CapCents   int64   `yaml:"cap_cents"`
	WarnRatio  float64 `yaml:"warn_ratio"`  // warn_triggered above cap*warn_ratio
	BlockRatio float64 `yaml:"block_ratio"` // reservations rejected above cap*block_ratio
}

// PollingConfig controls the per-job polling state machine.
type PollingConfig struct {
	MaxConcurrent       int     `yaml:"max_concurrent"`
	BaseIntervalSeconds float64 `yaml:"base_interval_seconds"`
	Multiplier          float64 `yaml:"multiplier"`
	MaxIntervalSeconds  float64 `yaml:"max_interval_seconds"`
	MaxTotalWaitSeconds float64 `yaml:"max_total_wait_seconds"`
	DispatchTimeoutSecs float64 `yaml:"dispatch_timeout_seconds"`
}

// StorageConfig controls result retention and pre-signed URL issuance.
type StorageConfig struct {
	TTLSeconds       int    `yaml:"ttl_seconds"`
	MaxUploadMB      int64  `yaml:"max_upload_mb"`
	SigningSecret    string `yaml:"signing_secret"`
	BaseURL          string `yaml:"base_url"`
	JobGracePeriodHr int    `yaml:"job_grace_period_hours"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

type ProvidersConfig struct {
	OpenAI ProviderCredentials `yaml:"openai"`
	Google ProviderCredentials `yaml:"google"`
	Luma   ProviderCredentials `yaml:"luma"`
}

type ProviderCredentials struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		fileCfg := *DefaultConfig()
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, err
		}
		cfg = &fileCfg
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     "8080",
			Mode:     "debug",
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "studio.db",
		},
		Budget: BudgetConfig{
			CapCents:   500,
			WarnRatio:  0.92,
			BlockRatio: 0.99,
		},
		Polling: PollingConfig{
			MaxConcurrent:       16,
			BaseIntervalSeconds: 2,
			Multiplier:          1.5,
			MaxIntervalSeconds:  30,
			MaxTotalWaitSeconds: 600,
			DispatchTimeoutSecs: 30,
		},
		Storage: StorageConfig{
			TTLSeconds:       1800,
			MaxUploadMB:      50,
			SigningSecret:    "studio-signing-secret-change-in-production",
			BaseURL:          "http://localhost:8080",
			JobGracePeriodHr: 24,
		},
		RateLimit: RateLimitConfig{
			PerMinute: 5,
			Burst:     5,
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Server.LogLevel = level
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if v := os.Getenv("BUDGET_CAP_CENTS"); v != "" {
		if cap, err := strconv.ParseInt(v, 10, 64); err == nil && cap > 0 {
			c.Budget.CapCents = cap
		}
	}
	if v := os.Getenv("WARN_RATIO"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r > 0 && r <= 1 {
			c.Budget.WarnRatio = r
		}
	}
	if v := os.Getenv("BLOCK_RATIO"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil && r > 0 && r <= 1 {
			c.Budget.BlockRatio = r
		}
	}
	if v := os.Getenv("MAX_CONCURRENT_POLLS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Polling.MaxConcurrent = n
		}
	}
	if v := os.Getenv("STORAGE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Storage.TTLSeconds = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.RateLimit.PerMinute = n
		}
	}
	if secret := os.Getenv("STORAGE_SIGNING_SECRET"); secret != "" {
		c.Storage.SigningSecret = secret
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Providers.OpenAI.APIKey = key
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.Providers.Google.APIKey = key
	}
	if key := os.Getenv("LUMA_API_KEY"); key != "" {
		c.Providers.Luma.APIKey = key
	}
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
