// Package config provides YAML-based configuration loading for the
// distribution service.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration, loaded from
// distributor.yaml.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Distribution DistributionConfig `yaml:"distribution"`
	Delivery     DeliveryConfig     `yaml:"delivery"`
	Health       HealthConfig       `yaml:"health"`
	Schedules    SchedulesConfig    `yaml:"schedules"`
	Alerts       AlertsConfig       `yaml:"alerts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig holds connection settings for the MySQL server.
type DatabaseConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// DistributionConfig controls candidate escalation.
type DistributionConfig struct {
	MaxAttempts       int    `yaml:"max_attempts"`
	ResponseWindowMin int    `yaml:"response_window_minutes"`
	SweepBatchSize    int    `yaml:"sweep_batch_size"`
	TemplateKey       string `yaml:"template_key"`
}

// ResponseWindow returns the attempt response window as a duration.
func (d DistributionConfig) ResponseWindow() time.Duration {
	return time.Duration(d.ResponseWindowMin) * time.Minute
}

// DeliveryConfig controls the outbound message worker.
type DeliveryConfig struct {
	BatchSize      int `yaml:"batch_size"`
	MaxAttempts    int `yaml:"max_attempts"`
	SendTimeoutSec int `yaml:"send_timeout_seconds"`
}

// SendTimeout returns the per-send timeout as a duration.
func (d DeliveryConfig) SendTimeout() time.Duration {
	return time.Duration(d.SendTimeoutSec) * time.Second
}

// HealthConfig controls the channel health monitor.
type HealthConfig struct {
	CheckTimeoutSec int `yaml:"check_timeout_seconds"`
}

// CheckTimeout returns the per-instance check timeout as a duration.
func (h HealthConfig) CheckTimeout() time.Duration {
	return time.Duration(h.CheckTimeoutSec) * time.Second
}

// SchedulesConfig holds cron expressions for the periodic entry points.
type SchedulesConfig struct {
	Sweep    string `yaml:"sweep"`
	Delivery string `yaml:"delivery"`
	Health   string `yaml:"health"`
}

// AlertsConfig selects the ops notification platform. Platform may be
// "slack", "discord", or empty to disable alerts.
type AlertsConfig struct {
	Platform string `yaml:"platform"`
	Token    string `yaml:"token"`
	Channel  string `yaml:"channel"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Database == "" {
		c.Database.Database = "distributor"
	}
	if c.Distribution.MaxAttempts == 0 {
		c.Distribution.MaxAttempts = 3
	}
	if c.Distribution.ResponseWindowMin == 0 {
		c.Distribution.ResponseWindowMin = 30
	}
	if c.Distribution.SweepBatchSize == 0 {
		c.Distribution.SweepBatchSize = 50
	}
	if c.Distribution.TemplateKey == "" {
		c.Distribution.TemplateKey = "lead_offer"
	}
	if c.Delivery.BatchSize == 0 {
		c.Delivery.BatchSize = 10
	}
	if c.Delivery.MaxAttempts == 0 {
		c.Delivery.MaxAttempts = 3
	}
	if c.Delivery.SendTimeoutSec == 0 {
		c.Delivery.SendTimeoutSec = 15
	}
	if c.Health.CheckTimeoutSec == 0 {
		c.Health.CheckTimeoutSec = 10
	}
	if c.Schedules.Sweep == "" {
		c.Schedules.Sweep = "*/2 * * * *"
	}
	if c.Schedules.Delivery == "" {
		c.Schedules.Delivery = "* * * * *"
	}
	if c.Schedules.Health == "" {
		c.Schedules.Health = "*/5 * * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Distribution.MaxAttempts < 1 {
		errs = append(errs, "distribution.max_attempts must be at least 1")
	}
	if c.Delivery.MaxAttempts < 1 {
		errs = append(errs, "delivery.max_attempts must be at least 1")
	}
	switch c.Alerts.Platform {
	case "", "slack", "discord":
	default:
		errs = append(errs, fmt.Sprintf("alerts.platform %q is not supported", c.Alerts.Platform))
	}
	if c.Alerts.Platform != "" {
		if c.Alerts.Token == "" {
			errs = append(errs, "alerts.token is required when alerts.platform is set")
		}
		if c.Alerts.Channel == "" {
			errs = append(errs, "alerts.channel is required when alerts.platform is set")
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
