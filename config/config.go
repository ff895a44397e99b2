package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Mapstructure tags are used to map environment variables and config file keys.
type Config struct {
	// Server Configuration
	ServerAddress string `mapstructure:"SERVER_ADDRESS"` // e.g., ":8080"

	// AI Configuration
	OpenAIKey   string `mapstructure:"OPENAI_API_KEY"` // API key for OpenAI
	OpenAIModel string `mapstructure:"OPENAI_MODEL"`   // e.g., "gpt-4o", "gpt-4o-mini"

	// Cloudflare Workers Configuration
	CloudflareAPIToken  string `mapstructure:"CF_API_TOKEN"`          // API token with Workers Scripts + KV edit rights
	CloudflareAccountID string `mapstructure:"CF_ACCOUNT_ID"`         // Target account identifier
	WorkersSubdomain    string `mapstructure:"CF_WORKERS_SUBDOMAIN"`  // The account's <subdomain>.workers.dev prefix
	CloudflareAPIBase   string `mapstructure:"CF_API_BASE"`           // Override for tests; defaults to the public API

	// GitHub Export Configuration
	GithubToken string `mapstructure:"GITHUB_TOKEN"`    // PAT with repo scope
	GithubOwner string `mapstructure:"GITHUB_OWNER"`    // Account the exported repos are created under
	GithubAPI   string `mapstructure:"GITHUB_API_BASE"` // Override for tests; defaults to https://api.github.com

	// Readiness Poll Configuration
	ReadyAttempts int `mapstructure:"READY_ATTEMPTS"` // Probe budget before giving up
	ReadyDelayMS  int `mapstructure:"READY_DELAY_MS"` // Fixed delay between probes
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("SERVER_ADDRESS", ":8080")
	viper.SetDefault("OPENAI_MODEL", "gpt-4o")
	viper.SetDefault("CF_API_BASE", "https://api.cloudflare.com/client/v4")
	viper.SetDefault("GITHUB_API_BASE", "https://api.github.com")
	viper.SetDefault("READY_ATTEMPTS", 10)
	viper.SetDefault("READY_DELAY_MS", 1500)

	viper.AutomaticEnv() // Read environment variables that match keys

	err = viper.ReadInConfig()
	if err != nil {
		// If config file not found, log it but continue if env vars might be set
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Config file ('config.yaml') not found in specified path, relying solely on environment variables.")
		} else {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		log.Printf("Using configuration file: %s", viper.ConfigFileUsed())
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return Config{}, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	// Credentials are validated lazily per request so that, for example, the
	// GitHub export endpoint stays usable when only Cloudflare is unset.
	if config.OpenAIKey == "" {
		log.Println("WARN: OPENAI_API_KEY is not set; /mvp will fail until it is.")
	}

	return
}
