package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"vivuplanner/pkg/utils"
)

const (
	EnvConfigPath = "CONFIG_PATH"
	EnvAppEnv     = "APP_ENV"
)

type Config struct {
	Env      string         `yaml:"env"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	LLM      LLMConfig      `yaml:"llm"`
	Planner  PlannerConfig  `yaml:"planner"`
	Deep     DeepConfig     `yaml:"deep"`
	Tasks    TaskConfig     `yaml:"tasks"`
	JWT      JWTConfig      `yaml:"jwt"`
	Mapbox   MapboxConfig   `yaml:"mapbox"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN         string `yaml:"dsn"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// RedisConfig enables the shared geocode/nearby cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type LLMConfig struct {
	Provider       string        `yaml:"provider"` // openai | gemini
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	EmbeddingDim   int           `yaml:"embedding_dim"`
	Timeout        time.Duration `yaml:"timeout"`
	Temperature    float32       `yaml:"temperature"`
	MaxTokens      int           `yaml:"max_tokens"`
}

type PlannerConfig struct {
	MaxDays          int    `yaml:"max_days"`
	DayStart         string `yaml:"day_start"`
	DayEnd           string `yaml:"day_end"`
	PerInterestLimit int    `yaml:"per_interest_limit"`
	SearchRadiusM    int    `yaml:"search_radius_m"`
	TransitThreshold int    `yaml:"transit_threshold_m"`
}

type DeepConfig struct {
	MaxSteps        int  `yaml:"max_steps"`
	MinSubTrips     int  `yaml:"min_sub_trips"`
	DayRetries      int  `yaml:"day_retries"`
	FallbackToFast  bool `yaml:"fallback_to_fast"`
	CandidateCap    int  `yaml:"candidate_cap"`
	SummaryWindow   int  `yaml:"summary_window"`
	SummaryMaxLen   int  `yaml:"summary_max_len"`
	NoProgressLimit int  `yaml:"no_progress_limit"`
	MemoryTopK      int  `yaml:"memory_top_k"`
}

type TaskConfig struct {
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	PerUserLimit int           `yaml:"per_user_limit"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// MapboxConfig enables provider geocoding and external nearby search when AccessToken is set.
type MapboxConfig struct {
	AccessToken string        `yaml:"access_token"`
	Timeout     time.Duration `yaml:"timeout"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Env: "development",
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{AutoMigrate: true},
		Redis:    RedisConfig{TTL: 24 * time.Hour},
		LLM: LLMConfig{
			Provider:     "openai",
			EmbeddingDim: 1536,
			Timeout:      45 * time.Second,
			Temperature:  0.2,
			MaxTokens:    1200,
		},
		Planner: PlannerConfig{
			MaxDays:          14,
			DayStart:         "09:00",
			DayEnd:           "18:00",
			PerInterestLimit: 12,
			SearchRadiusM:    5000,
			TransitThreshold: 2000,
		},
		Deep: DeepConfig{
			MaxSteps:        8,
			MinSubTrips:     2,
			DayRetries:      2,
			FallbackToFast:  true,
			CandidateCap:    24,
			SummaryWindow:   3,
			SummaryMaxLen:   280,
			NoProgressLimit: 3,
			MemoryTopK:      5,
		},
		Tasks: TaskConfig{
			Workers:      2,
			QueueSize:    64,
			PerUserLimit: 3,
			DrainTimeout: 30 * time.Second,
		},
		Mapbox: MapboxConfig{
			Timeout:  15 * time.Second,
			CacheTTL: 7 * 24 * time.Hour,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load resolves configuration from defaults, an optional YAML file and the environment, in that order.
// A .env file in the working directory is loaded first when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Env, EnvAppEnv)
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Database.DSN, "POSTGRES_URL")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.EmbeddingModel, "EMBEDDING_MODEL")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.Mapbox.AccessToken, "MAPBOX_ACCESS_TOKEN")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setInt(&cfg.Tasks.Workers, "TASK_WORKERS")
	setInt(&cfg.Tasks.QueueSize, "TASK_QUEUE_SIZE")
	setInt(&cfg.Tasks.PerUserLimit, "TASK_PER_USER_LIMIT")

	switch strings.ToLower(cfg.LLM.Provider) {
	case "gemini":
		setString(&cfg.LLM.APIKey, "GEMINI_API_KEY")
		setString(&cfg.LLM.Model, "GEMINI_MODEL")
	default:
		setString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
		setString(&cfg.LLM.Model, "OPENAI_MODEL")
		setString(&cfg.LLM.BaseURL, "OPENAI_BASE_URL")
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Planner.MaxDays <= 0 {
		errs = append(errs, errors.New("planner.max_days must be positive"))
	}
	start, errStart := utils.ParseClock(c.Planner.DayStart)
	end, errEnd := utils.ParseClock(c.Planner.DayEnd)
	if errStart != nil || errEnd != nil || end <= start {
		errs = append(errs, fmt.Errorf("planner day window %s-%s is invalid", c.Planner.DayStart, c.Planner.DayEnd))
	}
	if c.Deep.MaxSteps <= 0 {
		errs = append(errs, errors.New("deep.max_steps must be positive"))
	}
	if c.Deep.DayRetries < 0 {
		errs = append(errs, errors.New("deep.day_retries must not be negative"))
	}
	if c.Deep.CandidateCap <= 0 {
		errs = append(errs, errors.New("deep.candidate_cap must be positive"))
	}
	if c.Tasks.Workers <= 0 || c.Tasks.QueueSize <= 0 {
		errs = append(errs, errors.New("tasks.workers and tasks.queue_size must be positive"))
	}
	if c.Tasks.PerUserLimit <= 0 {
		errs = append(errs, errors.New("tasks.per_user_limit must be positive"))
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "gemini", "none":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
