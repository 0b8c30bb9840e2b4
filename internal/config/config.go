package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	GitHub struct {
		Token         string `yaml:"token"`
		WebhookSecret string `yaml:"webhookSecret"`
	} `yaml:"github"`

	Agent struct {
		BaseURL             string `yaml:"baseURL"`
		APIKey              string `yaml:"apiKey"`
		PollIntervalSeconds int    `yaml:"pollIntervalSeconds"`
	} `yaml:"agent"`

	AI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"ai"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | empty (disabled)
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`
}

// Load reads the config.yaml file. A missing file yields a config with
// defaults so the service can run from environment variables alone.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Agent.PollIntervalSeconds == 0 {
		cfg.Agent.PollIntervalSeconds = 20
	}
	return &cfg, nil
}

// Secrets fall back to the environment, matching the original deployment
// practice for the webhook agent.
func (c *Config) applyEnv() {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv("GITHUB_WEBHOOK_SECRET"); v != "" {
		c.GitHub.WebhookSecret = v
	}
	if v := os.Getenv("DEVIN_API_KEY"); v != "" {
		c.Agent.APIKey = v
	}
	if v := os.Getenv("DEVIN_API_BASE"); v != "" {
		c.Agent.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.AI.Model = v
	}
}

// MySQLDSN builds the MySQL connection string
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the Postgres connection string
func (c *Config) PostgresDSN() string {
	sslmode := c.Database.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		sslmode,
	)
}
