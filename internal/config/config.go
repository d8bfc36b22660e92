// Package config loads ingestd configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider identifies an embedding backend.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Worker loop
	WorkerConcurrency int
	PollInterval      time.Duration
	LeaseDuration     time.Duration

	// Embedding
	EmbedProvider  Provider
	EmbedModel     string
	EmbedDimension int
	OllamaHost     string
	OpenAIAPIKey   string

	// Transcription (OpenAI-compatible Whisper endpoint)
	WhisperURL    string
	WhisperAPIKey string
	WhisperModel  string

	// Media tools
	YTDLPPath       string
	FFmpegPath      string
	TempDir         string
	DownloadTimeout time.Duration

	// Audio chunking. Segments fed to the transcription API must stay
	// under its upload limit, hence the 25 MiB threshold.
	ChunkThresholdBytes   int64
	ChunkThresholdSeconds float64
	ChunkLengthSeconds    float64

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "ingestd"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "sources"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		WorkerConcurrency: getEnvInt("INGESTD_CONCURRENCY", 2),
		PollInterval:      getEnvDuration("INGESTD_POLL_INTERVAL", 2*time.Second),
		LeaseDuration:     getEnvDuration("INGESTD_LEASE_DURATION", 15*time.Minute),

		EmbedProvider:  Provider(getEnv("INGESTD_EMBED_PROVIDER", string(ProviderOllama))),
		EmbedModel:     getEnv("INGESTD_EMBED_MODEL", "nomic-embed-text"),
		EmbedDimension: getEnvInt("INGESTD_EMBED_DIMENSION", 768),
		OllamaHost:     getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),

		WhisperURL:    getEnv("INGESTD_WHISPER_URL", "https://api.openai.com/v1/audio/transcriptions"),
		WhisperAPIKey: getEnv("INGESTD_WHISPER_API_KEY", getEnv("OPENAI_API_KEY", "")),
		WhisperModel:  getEnv("INGESTD_WHISPER_MODEL", "whisper-1"),

		YTDLPPath:       getEnv("INGESTD_YTDLP_PATH", "yt-dlp"),
		FFmpegPath:      getEnv("INGESTD_FFMPEG_PATH", "ffmpeg"),
		TempDir:         getEnv("INGESTD_TEMP_DIR", os.TempDir()),
		DownloadTimeout: getEnvDuration("INGESTD_DOWNLOAD_TIMEOUT", 10*time.Minute),

		ChunkThresholdBytes:   getEnvInt64("INGESTD_CHUNK_THRESHOLD_BYTES", 25*1024*1024),
		ChunkThresholdSeconds: getEnvFloat("INGESTD_CHUNK_THRESHOLD_SECONDS", 600),
		ChunkLengthSeconds:    getEnvFloat("INGESTD_CHUNK_LENGTH_SECONDS", 300),

		LogFile:  getEnv("INGESTD_LOG_FILE", "/tmp/ingestd.log"),
		LogLevel: parseLogLevel(getEnv("INGESTD_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
