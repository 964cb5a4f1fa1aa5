package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort                         = 8000
	DefaultLogLevel                     = "info"
	DefaultTatsumakiEndpoint            = "https://api.tatsu.gg/v1"
	DefaultTatsumakiCacheDuration       = "60s"
	DefaultUrbanDictionaryEndpoint      = "https://api.urbandictionary.com/v0"
	DefaultUrbanDictionaryCacheDuration = "10m"
	DefaultHTTPTimeout                  = "30s"

	// Environment variables overriding the Tatsumaki credentials.
	EnvTatsumakiAPIKey  = "TATSUMAKI__API_KEY"
	EnvTatsumakiGuildID = "TATSUMAKI__GUILD_ID"
)

// Config represents the application configuration
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Log             LogConfig             `yaml:"log"`
	Tatsumaki       TatsumakiConfig       `yaml:"tatsumaki"`
	UrbanDictionary UrbanDictionaryConfig `yaml:"urbandictionary"`
	Fight           FightConfig           `yaml:"fight"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port int `yaml:"port"`
	// Timeout applied to every outbound API call.
	HTTPTimeout string `yaml:"http_timeout"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// TatsumakiConfig contains the Tatsumaki leaderboard API settings
type TatsumakiConfig struct {
	APIKey        string `yaml:"api_key"`
	GuildID       uint64 `yaml:"guild_id"`
	Endpoint      string `yaml:"endpoint"`
	CacheDuration string `yaml:"cache_duration"`
}

// UrbanDictionaryConfig contains the Urban Dictionary API settings
type UrbanDictionaryConfig struct {
	Endpoint      string `yaml:"endpoint"`
	CacheDuration string `yaml:"cache_duration"`
}

// FightConfig contains settings of the fight command
type FightConfig struct {
	// Phrases is a YAML file with verbs, weapons, win and loss texts.
	// The built-in phrases are used when empty.
	Phrases string `yaml:"phrases"`
}

// Load loads configuration from a YAML file, then applies environment
// overrides and defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.setDefaults()

	return &config, nil
}

func (c *Config) applyEnv() error {
	if apiKey := os.Getenv(EnvTatsumakiAPIKey); apiKey != "" {
		c.Tatsumaki.APIKey = apiKey
	}
	if guildID := os.Getenv(EnvTatsumakiGuildID); guildID != "" {
		id, err := strconv.ParseUint(guildID, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvTatsumakiGuildID, err)
		}
		c.Tatsumaki.GuildID = id
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.HTTPTimeout == "" {
		c.Server.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Tatsumaki.Endpoint == "" {
		c.Tatsumaki.Endpoint = DefaultTatsumakiEndpoint
	}
	if c.Tatsumaki.CacheDuration == "" {
		c.Tatsumaki.CacheDuration = DefaultTatsumakiCacheDuration
	}
	if c.UrbanDictionary.Endpoint == "" {
		c.UrbanDictionary.Endpoint = DefaultUrbanDictionaryEndpoint
	}
	if c.UrbanDictionary.CacheDuration == "" {
		c.UrbanDictionary.CacheDuration = DefaultUrbanDictionaryCacheDuration
	}
}

// GetHTTPTimeout parses and returns the outbound request timeout
func (c *Config) GetHTTPTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Server.HTTPTimeout)
}

// GetTatsumakiCacheDuration parses and returns the Tatsumaki response cache duration
func (c *Config) GetTatsumakiCacheDuration() (time.Duration, error) {
	return time.ParseDuration(c.Tatsumaki.CacheDuration)
}

// GetUrbanDictionaryCacheDuration parses and returns the Urban Dictionary response cache duration
func (c *Config) GetUrbanDictionaryCacheDuration() (time.Duration, error) {
	return time.ParseDuration(c.UrbanDictionary.CacheDuration)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if err := positiveDuration("http timeout", c.Server.HTTPTimeout); err != nil {
		return err
	}

	if c.Tatsumaki.APIKey == "" {
		return fmt.Errorf("tatsumaki API key is required")
	}

	if c.Tatsumaki.GuildID == 0 {
		return fmt.Errorf("tatsumaki guild ID is required")
	}

	if err := positiveDuration("tatsumaki cache duration", c.Tatsumaki.CacheDuration); err != nil {
		return err
	}

	if err := positiveDuration("urbandictionary cache duration", c.UrbanDictionary.CacheDuration); err != nil {
		return err
	}

	return nil
}

func positiveDuration(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s format: %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, value)
	}
	return nil
}
