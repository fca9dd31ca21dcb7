package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Embedding  EmbeddingConfig
	Index      IndexConfig
	Database   DatabaseConfig
	Roster     RosterConfig
	Web        WebConfig
	Thresholds ThresholdsConfig
}

type EmbeddingConfig struct {
	URL   string // face embedding server, defaults to http://localhost:8000
	Model string // model name for reference only
}

type IndexConfig struct {
	Path string // path to the face index snapshot; the id list is stored alongside
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL (optional, memory store when empty)
	MaxOpenConns int    // maximum open connections (default 25)
	MaxIdleConns int    // maximum idle connections (default 5)
}

type RosterConfig struct {
	DatabaseURL string // MariaDB DSN of the school system roster (optional)
}

type WebConfig struct {
	Host          string
	Port          int
	SessionSecret string
}

// ThresholdsConfig holds the recognition and dedup tunables shipped
// in the embedded thresholds.yaml.
type ThresholdsConfig struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Dedup       DedupConfig       `yaml:"dedup"`
}

type RecognitionConfig struct {
	MarkThreshold float64 `yaml:"mark_threshold"`
	Dimension     int     `yaml:"dimension"`
	SearchK       int     `yaml:"search_k"`
}

type DedupConfig struct {
	Capacity             int `yaml:"capacity"`
	FlushIntervalSeconds int `yaml:"flush_interval_seconds"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func Load() *Config {
	var thresholds ThresholdsConfig
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	return &Config{
		Embedding: EmbeddingConfig{
			URL:   os.Getenv("EMBEDDING_URL"),
			Model: os.Getenv("EMBEDDING_MODEL"),
		},
		Index: IndexConfig{
			Path: os.Getenv("FACE_INDEX_PATH"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Roster: RosterConfig{
			DatabaseURL: os.Getenv("ROSTER_DATABASE_URL"),
		},
		Web: WebConfig{
			Host:          envString("WEB_HOST", "0.0.0.0"),
			Port:          envInt("WEB_PORT", 5001),
			SessionSecret: os.Getenv("WEB_SESSION_SECRET"),
		},
		Thresholds: thresholds,
	}
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
