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

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Firebase FirebaseConfig
	Realtime RealtimeConfig
	Exports  ExportsConfig
	Admin    AdminConfig
	Identity IdentityConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// FirebaseConfig points at the service account used for federated sign-in
// and identity revocation.
type FirebaseConfig struct {
	Enabled         bool
	CredentialsFile string
	ProjectID       string
}

// RealtimeConfig tunes the websocket hub and its cross-instance fan-out.
type RealtimeConfig struct {
	Enabled      bool
	RedisChannel string
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// ExportsConfig controls workout log exports and their signed download links.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
}

type AdminConfig struct {
	StatsCacheTTL time.Duration
	// ReadMarkerTTL bounds how long a locally recorded read marker survives.
	ReadMarkerTTL time.Duration
}

// IdentityConfig sizes the background identity revocation workers.
type IdentityConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Firebase = FirebaseConfig{
		Enabled:         v.GetBool("ENABLE_FIREBASE"),
		CredentialsFile: v.GetString("FIREBASE_CREDENTIALS_FILE"),
		ProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
	}

	cfg.Realtime = RealtimeConfig{
		Enabled:      v.GetBool("ENABLE_REALTIME"),
		RedisChannel: v.GetString("REALTIME_REDIS_CHANNEL"),
		PingInterval: parseDuration(v.GetString("REALTIME_PING_INTERVAL"), 25*time.Second),
		WriteTimeout: parseDuration(v.GetString("REALTIME_WRITE_TIMEOUT"), 10*time.Second),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
	}

	cfg.Admin = AdminConfig{
		StatsCacheTTL: parseDuration(v.GetString("ADMIN_STATS_CACHE_TTL"), time.Minute),
		ReadMarkerTTL: parseDuration(v.GetString("READ_MARKER_TTL"), cfg.JWT.Expiration),
	}

	cfg.Identity = IdentityConfig{
		WorkerConcurrency: v.GetInt("IDENTITY_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("IDENTITY_WORKER_RETRIES"),
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
	v.SetDefault("DB_NAME", "ibaf")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_FIREBASE", false)
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "./serviceAccountKey.json")
	v.SetDefault("FIREBASE_PROJECT_ID", "")

	v.SetDefault("ENABLE_REALTIME", true)
	v.SetDefault("REALTIME_REDIS_CHANNEL", "ibaf:realtime")
	v.SetDefault("REALTIME_PING_INTERVAL", "25s")
	v.SetDefault("REALTIME_WRITE_TIMEOUT", "10s")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")

	v.SetDefault("ADMIN_STATS_CACHE_TTL", "1m")
	v.SetDefault("READ_MARKER_TTL", "")

	v.SetDefault("IDENTITY_WORKER_CONCURRENCY", 1)
	v.SetDefault("IDENTITY_WORKER_RETRIES", 3)
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
