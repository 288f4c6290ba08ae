package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Telegram struct {
		BotToken       string `yaml:"bot_token"`
		BotUsername    string `yaml:"bot_username"`
		FullChannel    string `yaml:"full_channel"`
		PreviewChannel string `yaml:"preview_channel"`
	} `yaml:"telegram"`
	Curators struct {
		Phones []string `yaml:"phones"`
		IDs    []int64  `yaml:"ids"`
	} `yaml:"curators"`
	Storage struct {
		DataDir      string `yaml:"data_dir"`
		DownloadsDir string `yaml:"downloads_dir"`
	} `yaml:"storage"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if config.Storage.DataDir == "" {
		config.Storage.DataDir = "."
	}
	if config.Storage.DownloadsDir == "" {
		config.Storage.DownloadsDir = "kinolar"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the fields that have no usable default.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.FullChannel == "" || c.Telegram.PreviewChannel == "" {
		return fmt.Errorf("telegram.full_channel and telegram.preview_channel are required")
	}
	if len(c.Curators.Phones) == 0 && len(c.Curators.IDs) == 0 {
		return fmt.Errorf("at least one of curators.phones or curators.ids is required")
	}
	return nil
}
