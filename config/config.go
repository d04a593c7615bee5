package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Matching MatchingConfig `yaml:"matching"`
	Outbox   OutboxConfig   `yaml:"outbox"`
	Push     PushConfig     `yaml:"push"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// MatchingConfig controls candidate selection, scoring and housekeeping.
type MatchingConfig struct {
	TopN                 int            `yaml:"top_n"`
	DefaultRadiusKm      float64        `yaml:"default_radius_km"`
	ProposalTTLMinutes   int            `yaml:"proposal_ttl_minutes"`
	SweepIntervalSeconds int            `yaml:"sweep_interval_seconds"`
	ClaimStaleSeconds    int            `yaml:"claim_stale_seconds"`
	ProposalTTL          time.Duration  `yaml:"-"`
	SweepInterval        time.Duration  `yaml:"-"`
	ClaimStale           time.Duration  `yaml:"-"`
	Weights              ScoringWeights `yaml:"weights"`
}

// ScoringWeights are the relative weights of the scoring sub-scores.
// They are normalized at load time so they always sum to 1.
type ScoringWeights struct {
	Specialization float64 `yaml:"specialization"`
	Schedule       float64 `yaml:"schedule"`
	Budget         float64 `yaml:"budget"`
	Experience     float64 `yaml:"experience"`
}

// OutboxConfig holds the event dispatcher configuration.
type OutboxConfig struct {
	WorkerPoolSize      int           `yaml:"worker_pool_size"`
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
	BatchSize           int           `yaml:"batch_size"`
	PollInterval        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	JSON  bool `yaml:"json"`
	Debug bool `yaml:"debug"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in defaults for unset or invalid values.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Matching.TopN <= 0 {
		cfg.Matching.TopN = 5
	}
	if cfg.Matching.DefaultRadiusKm <= 0 {
		cfg.Matching.DefaultRadiusKm = 25
	}
	if cfg.Matching.ProposalTTLMinutes <= 0 {
		cfg.Matching.ProposalTTLMinutes = 7 * 24 * 60
	}
	if cfg.Matching.SweepIntervalSeconds <= 0 {
		cfg.Matching.SweepIntervalSeconds = 300
	}
	if cfg.Matching.ClaimStaleSeconds <= 0 {
		cfg.Matching.ClaimStaleSeconds = 300
	}
	cfg.Matching.ProposalTTL = time.Duration(cfg.Matching.ProposalTTLMinutes) * time.Minute
	cfg.Matching.SweepInterval = time.Duration(cfg.Matching.SweepIntervalSeconds) * time.Second
	cfg.Matching.ClaimStale = time.Duration(cfg.Matching.ClaimStaleSeconds) * time.Second

	w := &cfg.Matching.Weights
	if w.Specialization <= 0 && w.Schedule <= 0 && w.Budget <= 0 && w.Experience <= 0 {
		*w = ScoringWeights{Specialization: 0.40, Schedule: 0.25, Budget: 0.20, Experience: 0.15}
	}
	if sum := w.Specialization + w.Schedule + w.Budget + w.Experience; sum > 0 {
		w.Specialization /= sum
		w.Schedule /= sum
		w.Budget /= sum
		w.Experience /= sum
	}

	if cfg.Outbox.WorkerPoolSize <= 0 {
		cfg.Outbox.WorkerPoolSize = 2
	}
	if cfg.Outbox.PollIntervalSeconds <= 0 {
		cfg.Outbox.PollIntervalSeconds = 5
	}
	if cfg.Outbox.BatchSize <= 0 {
		cfg.Outbox.BatchSize = 50
	}
	cfg.Outbox.PollInterval = time.Duration(cfg.Outbox.PollIntervalSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
}
