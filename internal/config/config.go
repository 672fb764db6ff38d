// Package config provides configuration loading and management for opsloop.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/karsov/opsloop/internal/llm"
	"github.com/karsov/opsloop/internal/roles"
)

// Config is the root configuration.
type Config struct {
	Provider  ProviderConfig `json:"provider"             mapstructure:"provider"`
	Project   ProjectConfig  `json:"project,omitempty"    mapstructure:"project"`
	Workspace string         `json:"workspace,omitempty"  mapstructure:"workspace"`
	SSH       SSHConfig      `json:"ssh,omitempty"        mapstructure:"ssh"`
	RiskRules string         `json:"risk_rules,omitempty" mapstructure:"risk_rules"`
	Serve     ServeConfig    `json:"serve,omitempty"      mapstructure:"serve"`
}

// ProviderConfig describes the reasoning endpoint. Temperature is a
// pointer so an explicit zero survives defaulting.
type ProviderConfig struct {
	Name           string   `json:"name"                      mapstructure:"name"`
	BaseURL        string   `json:"base_url"                  mapstructure:"base_url"`
	Model          string   `json:"model"                     mapstructure:"model"`
	APIKeyEnv      string   `json:"api_key_env,omitempty"     mapstructure:"api_key_env"`
	Temperature    *float64 `json:"temperature,omitempty"     mapstructure:"temperature"`
	MaxTokens      int      `json:"max_tokens,omitempty"      mapstructure:"max_tokens"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty" mapstructure:"timeout_seconds"`
}

// ProjectConfig names the target project and its technology stack. The
// stack fields feed role classification.
type ProjectConfig struct {
	ID       string `json:"id,omitempty"       mapstructure:"id"`
	Backend  string `json:"backend,omitempty"  mapstructure:"backend"`
	Frontend string `json:"frontend,omitempty" mapstructure:"frontend"`
	Database string `json:"database,omitempty" mapstructure:"database"`
	Infra    string `json:"infra,omitempty"    mapstructure:"infra"`
}

// SSHConfig configures remote command execution.
type SSHConfig struct {
	KeyFile string `json:"key_file,omitempty" mapstructure:"key_file"`
}

// ServeConfig configures the status server.
type ServeConfig struct {
	Addr string `json:"addr,omitempty" mapstructure:"addr"`
}

// Hints converts the project stack fields into classifier hints, nil when
// no stack is declared.
func (p ProjectConfig) Hints() *roles.StackHints {
	if p.Backend == "" && p.Frontend == "" && p.Database == "" && p.Infra == "" {
		return nil
	}
	return &roles.StackHints{
		Backend:  p.Backend,
		Frontend: p.Frontend,
		Database: p.Database,
		Infra:    p.Infra,
	}
}

// LLM converts the provider section into a client config.
func (p ProviderConfig) LLM() llm.Config {
	temperature := 0.2
	if p.Temperature != nil {
		temperature = *p.Temperature
	}
	return llm.Config{
		Provider:    p.Name,
		BaseURL:     p.BaseURL,
		Model:       p.Model,
		APIKeyEnv:   p.APIKeyEnv,
		Temperature: temperature,
		MaxTokens:   p.MaxTokens,
		Timeout:     time.Duration(p.TimeoutSeconds) * time.Second,
	}
}

// ProjectID returns the configured project id or nil.
func (c Config) ProjectID() *string {
	if c.Project.ID == "" {
		return nil
	}
	id := c.Project.ID
	return &id
}

// Load reads, schema-validates and unmarshals the config file. A .env file
// in the working directory is loaded first so api_key_env lookups work
// without exporting.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := ValidateSettings(v.AllSettings()); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider.Name == "" {
		c.Provider.Name = llm.FormatOpenAI
	}
	if c.Provider.Temperature == nil {
		t := 0.2
		c.Provider.Temperature = &t
	}
	if c.Provider.MaxTokens == 0 {
		c.Provider.MaxTokens = 1024
	}
	if c.Provider.TimeoutSeconds == 0 {
		c.Provider.TimeoutSeconds = 120
	}
	if c.Workspace == "" {
		c.Workspace = "workspace"
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = ":8700"
	}
}
