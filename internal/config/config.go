package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL                  string            `yaml:"ttl"`
		MaxScenariosPerLevel int               `yaml:"max_scenarios_per_level"`
		TimerDefaultSeconds  int               `yaml:"timer_default_seconds"`
		TimerDisabled        bool              `yaml:"timer_disabled"`
		SettingsTTL          string            `yaml:"settings_ttl"`
		Aliases              map[string]string `yaml:"aliases"`
		QuizTimers           map[string]int    `yaml:"quiz_timers"`
		GuideURLs            map[string]string `yaml:"guide_urls"`
	} `yaml:"quiz"`
	Remote struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"remote"`
	AMQP struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`
	Cache struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"cache"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads YAML config from path. QUIZ_* environment variables override connection settings.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Server.Port, "QUIZ_PORT")
	override(&c.Redis.Addr, "QUIZ_REDIS_ADDR")
	override(&c.Postgres.URL, "QUIZ_POSTGRES_URL")
	override(&c.Remote.BaseURL, "QUIZ_REMOTE_URL")
	override(&c.AMQP.URL, "QUIZ_AMQP_URL")
	override(&c.Cache.SQLitePath, "QUIZ_CACHE_PATH")
	override(&c.Log.Level, "QUIZ_LOG_LEVEL")
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
