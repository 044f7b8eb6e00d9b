package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Explain    Explain    `yaml:"explain"`
	Guardrails Guardrails `yaml:"guardrails"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

// Explain configures the generative text and vision services. Provider
// credentials come from the environment variable named by api_key_env;
// an empty key means the deterministic fallback path is used.
type Explain struct {
	Provider       string   `yaml:"provider"`
	Model          string   `yaml:"model"`
	VisionModels   []string `yaml:"vision_models"`
	BaseURL        string   `yaml:"base_url"`
	OllamaURL      string   `yaml:"ollama_url"`
	OllamaModel    string   `yaml:"ollama_model"`
	APIKeyEnv      string   `yaml:"api_key_env"`
	MaxTokens      int      `yaml:"max_tokens"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type Guardrails struct {
	InspectImages bool `yaml:"inspect_images"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for lablens.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "lablens")
}

// DataDir returns the XDG data directory for lablens.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "lablens")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/lablens/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'lablens init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Explain: Explain{
			Provider: "groq",
			Model:    "llama-3.1-8b-instant",
			VisionModels: []string{
				"llama-3.2-11b-vision-preview",
				"meta-llama/llama-4-scout-17b-16e-instruct",
			},
			BaseURL:        "https://api.groq.com/openai/v1",
			OllamaURL:      "http://localhost:11434",
			OllamaModel:    "qwen2.5:7b",
			APIKeyEnv:      "GROQ_API_KEY",
			MaxTokens:      1024,
			TimeoutSeconds: 40,
		},
		Guardrails: Guardrails{InspectImages: true},
		Server:     Server{Port: 8000},
		Logging:    Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
