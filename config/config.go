package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ServerAddr string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis configuration
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO configuration
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
	// Presigned playable URLs expire after this duration.
	PlayableURLTTL time.Duration

	// External service endpoints
	PricingServiceURL  string
	AnalysisServiceURL string
	PromptServiceURL   string
	RenderServiceURL   string

	// Autosave sink address for the connectionless unload path (host:port, UDP).
	AutosaveSinkAddr string

	// Autosave debounce quiescence window.
	AutosaveDebounce time.Duration
	// Grace delay before revoking ephemeral media handles.
	HandleRevokeGrace time.Duration
	// Minimum interval between locator (step/projectId) notifications.
	LocatorThrottle time.Duration

	// Optional drop folder watched for new audio files to ingest.
	IngestWatchDir string

	JWTSecret string

	MaxUploadSize    int64
	AllowedMIMETypes []string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvDuration gets an environment variable as a duration in milliseconds.
func getEnvDuration(key string, fallbackMillis int) time.Duration {
	return time.Duration(getEnvInt(key, fallbackMillis)) * time.Millisecond
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // No hardcoded default for the password
		DBName:     getEnv("DB_NAME", "soundscene"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "soundscene"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		PlayableURLTTL: time.Duration(getEnvInt("PLAYABLE_URL_TTL_MINUTES", 60)) * time.Minute,

		PricingServiceURL:  getEnv("PRICING_SERVICE_URL", "http://127.0.0.1:9101"),
		AnalysisServiceURL: getEnv("ANALYSIS_SERVICE_URL", "http://127.0.0.1:9102"),
		PromptServiceURL:   getEnv("PROMPT_SERVICE_URL", "http://127.0.0.1:9103"),
		RenderServiceURL:   getEnv("RENDER_SERVICE_URL", "http://127.0.0.1:9104"),

		AutosaveSinkAddr: getEnv("AUTOSAVE_SINK_ADDR", "127.0.0.1:9190"),

		AutosaveDebounce:  getEnvDuration("AUTOSAVE_DEBOUNCE_MS", 400),
		HandleRevokeGrace: getEnvDuration("HANDLE_REVOKE_GRACE_MS", 250),
		LocatorThrottle:   getEnvDuration("LOCATOR_THROTTLE_MS", 100),

		IngestWatchDir: getEnv("INGEST_WATCH_DIR", ""),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),

		MaxUploadSize: int64(getEnvInt("MAX_UPLOAD_MB", 100)) << 20,
		AllowedMIMETypes: []string{
			"audio/mpeg", "audio/mp3", // MP3
			"audio/wav", "audio/x-wav", // WAV
			"audio/flac", "audio/x-flac", // FLAC
			"audio/aac", // AAC
			"audio/mp4", // M4A
			"audio/ogg", // OGG
		},
	}
}
