package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Exports   ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig tunes the timetable engine and its job runner.
type SchedulerConfig struct {
	Enabled           bool
	AllowSplit        bool
	EnforceChronology bool
	MaxPermutations   int
	Workers           int
	QueueBuffer       int
	JobRetention      time.Duration
	PurgeInterval     time.Duration
	SnapshotTTL       time.Duration
	Timezone          string
}

// Location resolves the configured timezone, falling back to UTC.
func (c SchedulerConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ExportsConfig limits timetable exports.
type ExportsConfig struct {
	MaxRows  int
	PDFTitle string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		Enabled:  v.GetBool("ENABLE_REDIS"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		Enabled:           v.GetBool("ENABLE_SCHEDULER"),
		AllowSplit:        v.GetBool("SCHEDULER_ALLOW_SPLIT_SESSIONS"),
		EnforceChronology: v.GetBool("SCHEDULER_ENFORCE_CHRONOLOGY"),
		MaxPermutations:   v.GetInt("SCHEDULER_MAX_PERMUTATIONS"),
		Workers:           v.GetInt("SCHEDULER_WORKERS"),
		QueueBuffer:       v.GetInt("SCHEDULER_QUEUE_BUFFER"),
		JobRetention:      parseDuration(v.GetString("SCHEDULER_JOB_RETENTION"), 6*time.Hour),
		PurgeInterval:     parseDuration(v.GetString("SCHEDULER_PURGE_INTERVAL"), 10*time.Minute),
		SnapshotTTL:       parseDuration(v.GetString("SCHEDULER_SNAPSHOT_TTL"), time.Hour),
		Timezone:          v.GetString("SCHEDULER_TIMEZONE"),
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 1
	}
	if cfg.Scheduler.MaxPermutations < 0 {
		return nil, fmt.Errorf("SCHEDULER_MAX_PERMUTATIONS must not be negative")
	}

	cfg.Exports = ExportsConfig{
		MaxRows:  v.GetInt("EXPORT_MAX_ROWS"),
		PDFTitle: v.GetString("EXPORT_PDF_TITLE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_SCHEDULER", true)
	v.SetDefault("SCHEDULER_ALLOW_SPLIT_SESSIONS", true)
	v.SetDefault("SCHEDULER_ENFORCE_CHRONOLOGY", true)
	v.SetDefault("SCHEDULER_MAX_PERMUTATIONS", 6)
	v.SetDefault("SCHEDULER_WORKERS", 1)
	v.SetDefault("SCHEDULER_QUEUE_BUFFER", 16)
	v.SetDefault("SCHEDULER_JOB_RETENTION", "6h")
	v.SetDefault("SCHEDULER_PURGE_INTERVAL", "10m")
	v.SetDefault("SCHEDULER_SNAPSHOT_TTL", "1h")
	v.SetDefault("SCHEDULER_TIMEZONE", "UTC")

	v.SetDefault("EXPORT_MAX_ROWS", 5000)
	v.SetDefault("EXPORT_PDF_TITLE", "Timetable")
}

// isMissingFile covers viper returning a raw fs error when SetConfigFile points at a missing .env.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
