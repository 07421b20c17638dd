package config

import (
	"errors"
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

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Uploads     UploadsConfig
	Admin       AdminConfig
	Transcripts TranscriptsConfig
	Institution InstitutionConfig
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
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	StudentExpiration time.Duration
	AdminExpiration   time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// UploadsConfig controls where registration payment screenshots land.
type UploadsConfig struct {
	Dir              string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// AdminConfig gates the one-off admin bootstrap endpoint.
type AdminConfig struct {
	BootstrapEnabled bool
}

// TranscriptsConfig tunes transcript caching and bulk archive generation.
type TranscriptsConfig struct {
	CacheEnabled      bool
	CacheTTL          time.Duration
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// InstitutionConfig holds the letterhead printed on transcripts.
type InstitutionConfig struct {
	Name         string
	AddressLines []string
	Phone        string
	Title        string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		StudentExpiration: parseDuration(v.GetString("JWT_STUDENT_EXPIRATION"), 24*time.Hour),
		AdminExpiration:   parseDuration(v.GetString("JWT_ADMIN_EXPIRATION"), 4*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUpload := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		Dir:              v.GetString("UPLOADS_DIR"),
		MaxFileSizeBytes: maxUpload,
		AllowedMIMEs:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
	}

	cfg.Admin = AdminConfig{BootstrapEnabled: v.GetBool("ENABLE_ADMIN_BOOTSTRAP")}

	workers := v.GetInt("TRANSCRIPTS_WORKER_CONCURRENCY")
	if workers <= 0 {
		workers = 1
	}
	cfg.Transcripts = TranscriptsConfig{
		CacheEnabled:      v.GetBool("ENABLE_TRANSCRIPT_CACHE"),
		CacheTTL:          parseDuration(v.GetString("TRANSCRIPT_CACHE_TTL"), 15*time.Minute),
		StorageDir:        v.GetString("TRANSCRIPTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("TRANSCRIPTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("TRANSCRIPTS_SIGNED_URL_TTL"), time.Hour),
		CleanupInterval:   parseDuration(v.GetString("TRANSCRIPTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: workers,
		WorkerRetries:     v.GetInt("TRANSCRIPTS_WORKER_RETRIES"),
	}

	cfg.Institution = InstitutionConfig{
		Name:         v.GetString("INSTITUTION_NAME"),
		AddressLines: splitOn(v.GetString("INSTITUTION_ADDRESS"), "|"),
		Phone:        v.GetString("INSTITUTION_PHONE"),
		Title:        v.GetString("INSTITUTION_TRANSCRIPT_TITLE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 5000)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "enrichment_registrar")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_STUDENT_EXPIRATION", "24h")
	v.SetDefault("JWT_ADMIN_EXPIRATION", "4h")
	v.SetDefault("JWT_ISSUER", "registrar-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("UPLOADS_DIR", "./uploads")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "image/png,image/jpeg,image/webp,application/pdf")

	v.SetDefault("ENABLE_ADMIN_BOOTSTRAP", false)

	v.SetDefault("ENABLE_TRANSCRIPT_CACHE", false)
	v.SetDefault("TRANSCRIPT_CACHE_TTL", "15m")
	v.SetDefault("TRANSCRIPTS_STORAGE_DIR", "./transcripts")
	v.SetDefault("TRANSCRIPTS_SIGNED_URL_SECRET", "dev_transcripts_secret")
	v.SetDefault("TRANSCRIPTS_SIGNED_URL_TTL", "1h")
	v.SetDefault("TRANSCRIPTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("TRANSCRIPTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("TRANSCRIPTS_WORKER_RETRIES", 3)

	v.SetDefault("INSTITUTION_NAME", "SPICER MEMORIAL COLLEGE")
	v.SetDefault("INSTITUTION_ADDRESS", "Aundh Post, Aundh|Pune 411 067, INDIA")
	v.SetDefault("INSTITUTION_PHONE", "25807000, 7001")
	v.SetDefault("INSTITUTION_TRANSCRIPT_TITLE", "Enrichment Transcript")
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
	return splitOn(raw, ",")
}

func splitOn(raw, sep string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
