// Package config loads process configuration (flags/env/file via viper) and
// the per-tenant workflow tuning file (YAML).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/opencivic/sdcrs/pkg/domain"
	"github.com/opencivic/sdcrs/pkg/workflow"
)

// Config is the process configuration for the sdcrs server.
type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`
	LogLevel string `mapstructure:"log_level"`
	TenantID string `mapstructure:"tenant_id"`

	// WorkflowFile optionally points at a tenant workflow YAML.
	WorkflowFile string `mapstructure:"workflow_file"`

	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig selects and configures the Redis backend. When disabled the
// server runs on the in-memory store without distributed locking.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Load reads configuration from an optional file plus SDCRS_* environment
// variables. path may be empty.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("tenant_id", "dj")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetEnvPrefix("SDCRS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// workflowFile is the YAML shape of the tenant workflow tuning file.
// SLA values are duration strings ("5m", "24h"); a "0" disables the SLA
// for that state.
type workflowFile struct {
	PayoutAmount     int64             `yaml:"payout_amount"`
	MaxPayoutRetries int               `yaml:"max_payout_retries"`
	SLAs             map[string]string `yaml:"slas"`
}

// LoadWorkflow reads the tenant workflow tuning file. An empty path returns
// the default configuration.
func LoadWorkflow(path string) (workflow.Config, error) {
	if path == "" {
		return workflow.Config{}.Normalize(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return workflow.Config{}, fmt.Errorf("failed to read workflow config %s: %w", path, err)
	}

	var file workflowFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return workflow.Config{}, fmt.Errorf("failed to parse workflow config %s: %w", path, err)
	}

	cfg := workflow.Config{
		PayoutAmount:     file.PayoutAmount,
		MaxPayoutRetries: file.MaxPayoutRetries,
	}

	if file.SLAs != nil {
		// Start from the defaults so the file only has to name overrides.
		slas := make(map[domain.State]time.Duration, len(workflow.DefaultSLAs))
		for state, d := range workflow.DefaultSLAs {
			slas[state] = d
		}
		for name, raw := range file.SLAs {
			state := domain.State(name)
			if !state.IsValid() {
				return workflow.Config{}, fmt.Errorf("workflow config: unknown state %q", name)
			}
			d, err := time.ParseDuration(raw)
			if err != nil {
				return workflow.Config{}, fmt.Errorf("workflow config: bad SLA for %s: %w", name, err)
			}
			slas[state] = d
		}
		cfg.SLAs = slas
	}

	return cfg.Normalize(), nil
}
