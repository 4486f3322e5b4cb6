package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Data struct {
		CSVPath string `yaml:"csv_path"`
		XMLPath string `yaml:"xml_path"`
	} `yaml:"data"`

	Cache struct {
		TTLSeconds int `yaml:"ttl_seconds"`
	} `yaml:"cache"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Telegram struct {
		BotToken      string  `yaml:"bot_token"`
		Debug         bool    `yaml:"debug"`
		AllowedUsers  []int64 `yaml:"allowed_users"`
		ReportChats   []int64 `yaml:"report_chats"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		Burst         int     `yaml:"burst"`
	} `yaml:"telegram"`

	Export struct {
		Enabled bool   `yaml:"enabled"`
		Dir     string `yaml:"dir"`
		OnStart bool   `yaml:"on_start"`
		TopN    int    `yaml:"top_n"`
	} `yaml:"export"`

	Google struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		Sheet           string `yaml:"sheet"`
	} `yaml:"google"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// LoadEnv reads a .env file when one exists. Variables already set in the
// environment are not overridden.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Data.CSVPath == "" {
		c.Data.CSVPath = "data/presence.csv"
	}
	if c.Data.XMLPath == "" {
		c.Data.XMLPath = "data/users.xml"
	}
	if c.Telegram.RatePerSecond <= 0 {
		c.Telegram.RatePerSecond = 1
	}
	if c.Telegram.Burst <= 0 {
		c.Telegram.Burst = 5
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "exports"
	}
	if c.Export.TopN <= 0 {
		c.Export.TopN = 5
	}
	if c.Google.Sheet == "" {
		c.Google.Sheet = "Ranking"
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate reports settings the process cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if _, err := os.Stat(c.Data.CSVPath); err != nil {
		errs = append(errs, fmt.Errorf("data.csv_path: %w", err))
	}
	if _, err := os.Stat(c.Data.XMLPath); err != nil {
		errs = append(errs, fmt.Errorf("data.xml_path: %w", err))
	}
	if c.Google.Enabled && (c.Google.CredentialsFile == "" || c.Google.SpreadsheetID == "") {
		errs = append(errs, errors.New("google: credentials_file and spreadsheet_id are required"))
	}
	return errors.Join(errs...)
}

func (c *Config) CacheTTL() time.Duration {
	if c.Cache.TTLSeconds <= 0 {
		return 600 * time.Second
	}
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// TelegramEnabled reports whether a real bot token is configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.BotToken != "YOUR_BOT_TOKEN_HERE"
}
