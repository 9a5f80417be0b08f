package clients

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/glyphworks/puzzle-backend/internal/platform/envutil"
)

// Config holds base URLs and auth for every downstream service the activities
// call. Values come from the environment; DOWNSTREAM_CONFIG_PATH may point at a
// YAML file whose entries fill in anything the environment left blank.
type Config struct {
	ReceiptValidationURL string `yaml:"receipt_validation_url"`
	InventoryURL         string `yaml:"inventory_url"`
	LeaderboardURL       string `yaml:"leaderboard_url"`
	CheatDetectionURL    string `yaml:"cheat_detection_url"`
	AuditURL             string `yaml:"audit_url"`
	AnalyticsURL         string `yaml:"analytics_url"`
	CloudSaveURL         string `yaml:"cloud_save_url"`

	AuthToken      string `yaml:"auth_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func LoadConfig() (Config, error) {
	cfg := Config{
		ReceiptValidationURL: strings.TrimSpace(os.Getenv("RECEIPT_VALIDATION_URL")),
		InventoryURL:         strings.TrimSpace(os.Getenv("INVENTORY_SERVICE_URL")),
		LeaderboardURL:       strings.TrimSpace(os.Getenv("LEADERBOARD_SERVICE_URL")),
		CheatDetectionURL:    strings.TrimSpace(os.Getenv("CHEAT_DETECTION_URL")),
		AuditURL:             strings.TrimSpace(os.Getenv("AUDIT_SERVICE_URL")),
		AnalyticsURL:         strings.TrimSpace(os.Getenv("ANALYTICS_SERVICE_URL")),
		CloudSaveURL:         strings.TrimSpace(os.Getenv("CLOUD_SAVE_URL")),
		AuthToken:            strings.TrimSpace(os.Getenv("DOWNSTREAM_AUTH_TOKEN")),
		TimeoutSeconds:       envutil.Int("DOWNSTREAM_TIMEOUT_SECONDS", 30),
	}

	path := strings.TrimSpace(os.Getenv("DOWNSTREAM_CONFIG_PATH"))
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read downstream config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse downstream config %s: %w", path, err)
		}
		cfg.applyDefaults(fileCfg)
	}

	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	return cfg, nil
}

func (c *Config) applyDefaults(other Config) {
	if c.ReceiptValidationURL == "" {
		c.ReceiptValidationURL = strings.TrimSpace(other.ReceiptValidationURL)
	}
	if c.InventoryURL == "" {
		c.InventoryURL = strings.TrimSpace(other.InventoryURL)
	}
	if c.LeaderboardURL == "" {
		c.LeaderboardURL = strings.TrimSpace(other.LeaderboardURL)
	}
	if c.CheatDetectionURL == "" {
		c.CheatDetectionURL = strings.TrimSpace(other.CheatDetectionURL)
	}
	if c.AuditURL == "" {
		c.AuditURL = strings.TrimSpace(other.AuditURL)
	}
	if c.AnalyticsURL == "" {
		c.AnalyticsURL = strings.TrimSpace(other.AnalyticsURL)
	}
	if c.CloudSaveURL == "" {
		c.CloudSaveURL = strings.TrimSpace(other.CloudSaveURL)
	}
	if c.AuthToken == "" {
		c.AuthToken = strings.TrimSpace(other.AuthToken)
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = other.TimeoutSeconds
	}
}
