// Package config loads application configuration from a yaml file and the
// environment via viper.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for both the registry server and the agent.
type Config struct {
	Environment string `mapstructure:"environment"`

	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`

	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`

	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`

	// Local configures the agent-side embedded store.
	Local struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"local"`

	Sync       SyncConfig       `mapstructure:"sync"`
	Similarity SimilarityConfig `mapstructure:"similarity"`
	Ranking    RankingConfig    `mapstructure:"ranking"`
}

// SyncConfig configures the background sync engine. Field names mirror the
// recognized environment options.
type SyncConfig struct {
	URL             string `mapstructure:"url"`
	Enabled         bool   `mapstructure:"enabled"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	RetryAttempts   int    `mapstructure:"retry_attempts"`
	BatchSize       int    `mapstructure:"batch_size"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
}

// Timeout returns the per-call timeout as a duration.
func (c SyncConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Interval returns the scheduler period as a duration.
func (c SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// SimilarityConfig holds the similarity tuning knobs. These are deliberately
// configuration, not fixed behavior; tests assert ordering and bounds rather
// than exact values.
type SimilarityConfig struct {
	MinScore       float64 `mapstructure:"min_score"`
	CategoryBonus  float64 `mapstructure:"category_bonus"`
	LanguageBonus  float64 `mapstructure:"language_bonus"`
	FrameworkBonus float64 `mapstructure:"framework_bonus"`
	DefaultLimit   int     `mapstructure:"default_limit"`
	CandidatePool  int     `mapstructure:"candidate_pool"`
}

// RankingConfig holds the solution ranking knobs.
type RankingConfig struct {
	// PriorWeight is the virtual observation count used when smoothing
	// success rates toward 0.5.
	PriorWeight float64 `mapstructure:"prior_weight"`
}

// LoadConfig loads configuration from the given file (or the default search
// path when empty) with environment variable overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ERRORSHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; defaults plus env cover the agent case.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Sync.URL = strings.TrimRight(strings.TrimSpace(cfg.Sync.URL), "/")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")
	v.SetDefault("server.port", 8080)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "errorshare")
	v.SetDefault("db.name", "errorshare")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("local.path", "errorshare.db")

	v.SetDefault("sync.enabled", false)
	v.SetDefault("sync.timeout_seconds", 5)
	v.SetDefault("sync.retry_attempts", 3)
	v.SetDefault("sync.batch_size", 50)
	v.SetDefault("sync.interval_seconds", 300)

	v.SetDefault("similarity.min_score", 0.30)
	v.SetDefault("similarity.category_bonus", 0.15)
	v.SetDefault("similarity.language_bonus", 0.05)
	v.SetDefault("similarity.framework_bonus", 0.05)
	v.SetDefault("similarity.default_limit", 10)
	v.SetDefault("similarity.candidate_pool", 500)

	v.SetDefault("ranking.prior_weight", 2.0)
}
