package config

import (
	"errors"
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
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Broadcast BroadcastConfig
	Sync      SyncConfig
	Grading   GradingConfig
	Export    ExportConfig
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
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BroadcastConfig tunes the websocket hub and the Redis fanout bridge.
type BroadcastConfig struct {
	Enabled         bool
	RedisFanout     bool
	ChannelPrefix   string
	SendBufferSize  int
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	MaxMessageBytes int64
}

// SyncConfig tunes the client-side persistence scheduler.
type SyncConfig struct {
	SaveDebounce time.Duration
	GatewayURL   string
}

// GradingConfig governs grade lookup fallbacks.
type GradingConfig struct {
	DefaultGrade string
	DefaultColor string
	CacheTTL     time.Duration
}

// ExportConfig toggles grade sheet export endpoints.
type ExportConfig struct {
	Enabled bool
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
		if !errors.As(err, &notFound) {
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
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Broadcast = BroadcastConfig{
		Enabled:         v.GetBool("ENABLE_BROADCAST"),
		RedisFanout:     v.GetBool("BROADCAST_REDIS_FANOUT"),
		ChannelPrefix:   v.GetString("BROADCAST_CHANNEL_PREFIX"),
		SendBufferSize:  v.GetInt("BROADCAST_SEND_BUFFER"),
		WriteTimeout:    parseDuration(v.GetString("BROADCAST_WRITE_TIMEOUT"), 10*time.Second),
		PingInterval:    parseDuration(v.GetString("BROADCAST_PING_INTERVAL"), 30*time.Second),
		MaxMessageBytes: v.GetInt64("BROADCAST_MAX_MESSAGE_BYTES"),
	}

	cfg.Sync = SyncConfig{
		SaveDebounce: parseDuration(v.GetString("SYNC_SAVE_DEBOUNCE"), 400*time.Millisecond),
		GatewayURL:   v.GetString("SYNC_GATEWAY_URL"),
	}

	cfg.Grading = GradingConfig{
		DefaultGrade: v.GetString("GRADING_DEFAULT_GRADE"),
		DefaultColor: v.GetString("GRADING_DEFAULT_COLOR"),
		CacheTTL:     parseDuration(v.GetString("GRADING_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Export = ExportConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
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
	v.SetDefault("DB_NAME", "classroom_sync")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_BROADCAST", true)
	v.SetDefault("BROADCAST_REDIS_FANOUT", false)
	v.SetDefault("BROADCAST_CHANNEL_PREFIX", "classroom")
	v.SetDefault("BROADCAST_SEND_BUFFER", 64)
	v.SetDefault("BROADCAST_WRITE_TIMEOUT", "10s")
	v.SetDefault("BROADCAST_PING_INTERVAL", "30s")
	v.SetDefault("BROADCAST_MAX_MESSAGE_BYTES", 512*1024)

	v.SetDefault("SYNC_SAVE_DEBOUNCE", "400ms")
	v.SetDefault("SYNC_GATEWAY_URL", "http://localhost:8080/api/v1")

	v.SetDefault("GRADING_DEFAULT_GRADE", "N/A")
	v.SetDefault("GRADING_DEFAULT_COLOR", "#9e9e9e")
	v.SetDefault("GRADING_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_EXPORTS", true)
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
