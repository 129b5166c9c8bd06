package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/predictstats/internal/application/pipeline"
)

// Config es la configuración completa de predictstats.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Store    StoreConfig    `yaml:"store"`
	History  HistoryConfig  `yaml:"history"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Keys     pipeline.Keys  `yaml:"keys"` // vacío = nombres por defecto del dashboard
}

// APIConfig apunta a la API del agente.
type APIConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"` // mejor por .env: AGENT_API_KEY
	Wallet         string  `yaml:"wallet"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RatePerSec     float64 `yaml:"rate_per_sec"`
	Burst          int     `yaml:"burst"`
	PageSize       int     `yaml:"page_size"` // 0 = 500
	MaxPages       int     `yaml:"max_pages"` // 0 = 200
}

// ScheduleConfig controla cuándo corre el pipeline.
type ScheduleConfig struct {
	Cron           string `yaml:"cron"` // "@every 15m", "*/10 * * * *"
	RunOnStart     bool   `yaml:"run_on_start"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// StoreConfig elige el backend de blobs.
type StoreConfig struct {
	Backend     string `yaml:"backend"` // sqlite | redis | fs | memory
	DSN         string `yaml:"dsn"`     // sqlite: ruta al archivo, o ":memory:"
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
	RedisPrefix string `yaml:"redis_prefix"`
	Dir         string `yaml:"dir"` // fs
}

// HistoryConfig controla las series históricas.
type HistoryConfig struct {
	Limit    int    `yaml:"limit"`    // días conservados
	Timezone string `yaml:"timezone"` // IANA; "" = Local
}

// HTTPConfig controla el servidor del dashboard.
type HTTPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el .env si existe.
// Las variables de entorno sobreescriben el YAML.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse interpreta un YAML ya leído y aplica env + defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Parse: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate comprueba los valores que no tienen un default razonable.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "redis", "fs", "memory":
	default:
		return fmt.Errorf("config.Validate: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "fs" && c.Store.Dir == "" {
		return fmt.Errorf("config.Validate: store.dir required for fs backend")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location devuelve la zona horaria de los buckets diarios.
func (c *Config) Location() (*time.Location, error) {
	if c.History.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.History.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config.Location: %q: %w", c.History.Timezone, err)
	}
	return loc, nil
}

// APITimeout devuelve el timeout por request de la API.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// RunTimeout devuelve el tope de duración de una ejecución.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Schedule.TimeoutSeconds) * time.Second
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("AGENT_API_BASE"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("AGENT_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv("AGENT_WALLET"); v != "" {
		cfg.API.Wallet = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.RedisDB = n
		}
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
		cfg.HTTP.Enabled = true
	}
	if v := os.Getenv("STATS_TIMEZONE"); v != "" {
		cfg.History.Timezone = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8080"
	}
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 15
	}
	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "@every 15m"
	}
	if cfg.Schedule.TimeoutSeconds <= 0 {
		cfg.Schedule.TimeoutSeconds = 120
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "sqlite"
	}
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = "predictstats.db"
	}
	if cfg.Store.RedisAddr == "" {
		cfg.Store.RedisAddr = "localhost:6379"
	}
	if cfg.Store.RedisPrefix == "" {
		cfg.Store.RedisPrefix = "predictstats:"
	}
	if cfg.History.Limit <= 0 {
		cfg.History.Limit = pipeline.DefaultHistoryLimit
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8090"
	}
	if cfg.Keys == (pipeline.Keys{}) {
		cfg.Keys = pipeline.DefaultKeys()
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
