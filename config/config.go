package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Marketplace MarketplaceConfig
	Vision      VisionConfig
	Catalog     CatalogConfig
	Search      SearchConfig
	RateLimit   RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	UploadDir      string   `mapstructure:"upload_dir"`
}

// MarketplaceConfig holds affiliate marketplace API configuration. Missing
// credentials degrade the marketplace source to unavailable; they never fail
// startup.
type MarketplaceConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	BaseURL      string `mapstructure:"base_url"`
	CampaignID   int    `mapstructure:"campaign_id"`
}

// VisionConfig holds image analysis provider configuration. A missing API key
// degrades the vision source to unavailable.
type VisionConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// CatalogConfig holds local catalog configuration
type CatalogConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

// SearchConfig holds resolution pipeline configuration
type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
	LocalLimit   int `mapstructure:"local_limit"`
}

// RateLimitConfig holds inbound rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/shopscan/")

	// Environment variable settings
	v.SetEnvPrefix("SHOPSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.upload_dir", "uploads/temp")

	// Marketplace defaults. Credentials default to empty; viper only binds
	// environment variables for keys it already knows about.
	v.SetDefault("marketplace.client_id", "")
	v.SetDefault("marketplace.client_secret", "")
	v.SetDefault("marketplace.base_url", "https://api.admitad.com")
	v.SetDefault("marketplace.campaign_id", 0)

	// Vision defaults
	v.SetDefault("vision.api_key", "")
	v.SetDefault("vision.base_url", "https://vision.googleapis.com")

	// Catalog defaults
	v.SetDefault("catalog.seed_file", "")

	// Search defaults
	v.SetDefault("search.default_limit", 20)
	v.SetDefault("search.max_limit", 100)
	v.SetDefault("search.local_limit", 5)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
}

// validate validates the configuration. Marketplace and vision credentials
// are deliberately optional: their absence turns the corresponding source off
// rather than failing startup.
func validate(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if config.Marketplace.ClientID == "" && config.Marketplace.ClientSecret != "" {
		return fmt.Errorf("marketplace client secret set without client id")
	}
	if config.Marketplace.ClientID != "" && config.Marketplace.ClientSecret == "" {
		return fmt.Errorf("marketplace client id set without client secret")
	}

	if config.Search.DefaultLimit > config.Search.MaxLimit {
		return fmt.Errorf("search default_limit (%d) exceeds max_limit (%d)",
			config.Search.DefaultLimit, config.Search.MaxLimit)
	}

	return nil
}

// MarketplaceConfigured reports whether both marketplace credentials are present
func (c *Config) MarketplaceConfigured() bool {
	return c.Marketplace.ClientID != "" && c.Marketplace.ClientSecret != ""
}

// VisionConfigured reports whether the image analysis credential is present
func (c *Config) VisionConfigured() bool {
	return c.Vision.APIKey != ""
}
