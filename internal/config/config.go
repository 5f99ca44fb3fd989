package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var profilesYAML []byte

type Config struct {
	Face     FaceConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Web      WebConfig
	Log      LogConfig
}

type FaceConfig struct {
	CascadePath        string  // pigo cascade file, built-in facefinder when empty
	AcceptThreshold    float64 // minimum correlation (exclusive) to accept a login, defaults to 0.7
	DuplicateThreshold float64 // correlation above which enrollment warns about a look-alike identity
	MatchWorkers       int     // parallel comparisons per login, 1 keeps the scan sequential
	Profiles           []DetectorProfile
}

// DetectorProfile is one parameterization of the cascade run.
type DetectorProfile struct {
	Name         string  `yaml:"name"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	MinNeighbors int     `yaml:"min_neighbors"`
	MinSize      int     `yaml:"min_size"`
	Equalize     bool    `yaml:"equalize"`
}

type StorageConfig struct {
	ImageDir string // reference images, defaults to ./data/face_images
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the signature HNSW index (optional)
}

type WebConfig struct {
	Host           string
	Port           int
	SessionSecret  string
	EnrollToken    string   // bearer token the enclosing app uses to enroll on behalf of a user
	AllowedOrigins []string // extra CORS origins, localhost is always allowed
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

type profilesFile struct {
	Profiles []DetectorProfile `yaml:"profiles"`
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

// envFloat reads an environment variable as a float in the closed range [-1, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= -1 && f <= 1 {
		return f
	}
	return defaultVal
}

// envList reads a comma separated environment variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// DefaultProfiles returns the embedded detector profiles in run order.
func DefaultProfiles() []DetectorProfile {
	var pf profilesFile
	if err := yaml.Unmarshal(profilesYAML, &pf); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded profiles.yaml: " + err.Error())
	}
	return pf.Profiles
}

func Load() *Config {
	return &Config{
		Face: FaceConfig{
			CascadePath:        os.Getenv("FACE_CASCADE_PATH"),
			AcceptThreshold:    envFloat("FACE_ACCEPT_THRESHOLD", 0.7),
			DuplicateThreshold: envFloat("FACE_DUPLICATE_THRESHOLD", 0.95),
			MatchWorkers:       envInt("FACE_MATCH_WORKERS", 1),
			Profiles:           DefaultProfiles(),
		},
		Storage: StorageConfig{
			ImageDir: envString("FACE_IMAGE_DIR", "data/face_images"),
		},
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			SessionSecret:  os.Getenv("WEB_SESSION_SECRET"),
			EnrollToken:    os.Getenv("WEB_ENROLL_TOKEN"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
	}
}
