package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Detector   DetectorConfig
	Embedder   EmbedderConfig
	Database   DatabaseConfig
	Library    LibraryConfig
	Matching   MatchingConfig
	Clustering ClusteringConfig
}

type DetectorConfig struct {
	URL          string // defaults to http://localhost:8000
	Enhance      bool   // run the detector's image enhancement pass
	MaxImageSize int    // max dimension before downscaling uploads (default 1920)
}

type EmbedderConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // embedding dimension, defaults to 512
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL; empty means in-memory store
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type LibraryConfig struct {
	DSN string // MariaDB DSN of an existing photo library for imports
}

// MatchingConfig holds the similarity thresholds. Defaults come from the
// embedded defaults.yaml and can be overridden per environment.
type MatchingConfig struct {
	Threshold      float64 `yaml:"threshold"`       // minimum adjusted similarity to suggest a match
	HighConfidence float64 `yaml:"high_confidence"` // similarity at which a match is confident
	AutoAccept     float64 `yaml:"auto_accept"`     // similarity at which propagation labels without review
	Boost          float64 `yaml:"boost"`           // bonus applied to recently seen persons
	IoU            float64 `yaml:"iou"`             // minimum overlap to carry a label across re-detection
}

// ClusteringConfig holds the encounter clustering thresholds.
type ClusteringConfig struct {
	TimeThresholdMinutes    int `yaml:"time_threshold_minutes"`
	DistanceThresholdMeters int `yaml:"distance_threshold_meters"`
}

// TimeThreshold returns the maximum gap between consecutive photos of one encounter.
func (c ClusteringConfig) TimeThreshold() time.Duration {
	return time.Duration(c.TimeThresholdMinutes) * time.Minute
}

// DistanceThreshold returns the maximum distance in meters between consecutive photos.
func (c ClusteringConfig) DistanceThreshold() float64 {
	return float64(c.DistanceThresholdMeters)
}

type defaultsFile struct {
	Matching   MatchingConfig   `yaml:"matching"`
	Clustering ClusteringConfig `yaml:"clustering"`
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

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envBool(key string) bool {
	return os.Getenv(key) == "true" || os.Getenv(key) == "1"
}

func Load() *Config {
	var defaults defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	matching := defaults.Matching
	matching.Threshold = envFloat("MATCH_THRESHOLD", matching.Threshold)
	matching.HighConfidence = envFloat("MATCH_HIGH_CONFIDENCE", matching.HighConfidence)
	matching.AutoAccept = envFloat("MATCH_AUTO_ACCEPT", matching.AutoAccept)
	matching.Boost = envFloat("MATCH_BOOST", matching.Boost)
	matching.IoU = envFloat("MATCH_IOU", matching.IoU)

	clustering := defaults.Clustering
	clustering.TimeThresholdMinutes = envInt("CLUSTER_TIME_MINUTES", clustering.TimeThresholdMinutes)
	clustering.DistanceThresholdMeters = envInt("CLUSTER_DISTANCE_METERS", clustering.DistanceThresholdMeters)

	return &Config{
		Detector: DetectorConfig{
			URL:          os.Getenv("DETECTOR_URL"),
			Enhance:      envBool("DETECTOR_ENHANCE"),
			MaxImageSize: envInt("DETECTOR_MAX_IMAGE_SIZE", 1920),
		},
		Embedder: EmbedderConfig{
			URL: os.Getenv("EMBEDDER_URL"),
			Dim: envInt("EMBEDDER_DIM", 512),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Library: LibraryConfig{
			DSN: os.Getenv("LIBRARY_DATABASE_DSN"),
		},
		Matching:   matching,
		Clustering: clustering,
	}
}
