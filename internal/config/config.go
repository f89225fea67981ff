package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Auth struct {
		Issuer   string `yaml:"issuer"`
		Audience string `yaml:"audience"`
		// DevKeys maps tenant -> static API key; only honored when DevMode
		// is set. Never enable outside local development.
		DevMode bool              `yaml:"devMode"`
		DevKeys map[string]string `yaml:"devKeys"`
		// DevDeliveryKey stands in for the queue identity in dev mode.
		DevDeliveryKey string `yaml:"devDeliveryKey"`
	} `yaml:"auth"`

	Queue struct {
		Kind           string `yaml:"kind"` // tasks | redis
		Endpoint       string `yaml:"endpoint"`
		Name           string `yaml:"name"`
		CallbackURL    string `yaml:"callbackURL"`
		ServiceAccount string `yaml:"serviceAccount"`
		Audience       string `yaml:"audience"`
		Issuer         string `yaml:"issuer"`
		RedisAddr      string `yaml:"redisAddr"`
		RedisPassword  string `yaml:"redisPassword"`
	} `yaml:"queue"`

	Firewall struct {
		BlockThreshold float64 `yaml:"blockThreshold"`
		MaxInputBytes  int     `yaml:"maxInputBytes"`
	} `yaml:"firewall"`

	OpenAI struct {
		APIKey          string `yaml:"apiKey"`
		Model           string `yaml:"model"`
		ClassifierModel string `yaml:"classifierModel"`
		TimeoutSeconds  int    `yaml:"timeoutSeconds"`
	} `yaml:"openai"`

	Jobs struct {
		MaxAttempts int `yaml:"maxAttempts"`
	} `yaml:"jobs"`
}

// Load reads the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Queue.Kind == "" {
		c.Queue.Kind = "tasks"
	}
	if c.Firewall.BlockThreshold == 0 {
		c.Firewall.BlockThreshold = 0.8
	}
	if c.Jobs.MaxAttempts == 0 {
		c.Jobs.MaxAttempts = 3
	}
	if c.OpenAI.TimeoutSeconds == 0 {
		c.OpenAI.TimeoutSeconds = 60
	}
}

// MySQLDSN builds the DSN for the mysql driver.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the DSN for the lib/pq driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// AnalyzeTimeout returns the per-call inference timeout.
func (c *Config) AnalyzeTimeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutSeconds) * time.Second
}
