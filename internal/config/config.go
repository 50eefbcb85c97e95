package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed backbones.yaml
var backbonesYAML []byte

type Config struct {
	Dataset   DatasetConfig
	Index     IndexConfig
	Embedding EmbeddingConfig
	Database  DatabaseConfig
	Web       WebConfig
	Backbones BackbonesConfig
}

type DatasetConfig struct {
	Dir string // directory-per-author image tree (default "data")
}

type IndexConfig struct {
	OutputDir       string // defaults to "static"
	FeaturesCSV     string // defaults to <OutputDir>/multiAuthor_features.csv
	VectorsJSON     string // defaults to <OutputDir>/multiAuthor_vectors.json
	ManifestJSON    string // defaults to <OutputDir>/manifest.json
	SamplesPerLabel int    // images drawn per author (default 28)
	Seed            int64  // sampling, t-SNE and k-means seed (default 42)
	ClusterCount    int    // 0 = one cluster per author
	Concurrency     int    // parallel extraction workers (default 1)
}

type EmbeddingConfig struct {
	Extractor   string  // http, onnx or dct
	URL         string  // embedding server, defaults to http://localhost:8000
	Backbone    string  // key into backbones.yaml
	RateLimit   float64 // requests per second against the embedding server, 0 = unlimited
	Device      string  // auto, cuda or cpu (onnx only)
	ModelPath   string  // ONNX model file
	LibraryPath string  // onnxruntime shared library
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL (optional)
	MaxOpenConns int    // Maximum open connections (default 10)
	MaxIdleConns int    // Maximum idle connections (default 2)
}

type WebConfig struct {
	Host           string
	Port           int
	VectorSource   string   // file or postgres
	AllowedOrigins []string // CORS origins besides localhost
}

type BackbonesConfig struct {
	Default   string              `yaml:"default"`
	Backbones map[string]Backbone `yaml:"backbones"`
}

// Backbone describes the expected input of a frozen feature network and the
// shape of the feature map it produces.
type Backbone struct {
	Name       string     `yaml:"-"`
	Dim        int        `yaml:"dim"`
	InputSize  int        `yaml:"input_size"`
	CropSize   int        `yaml:"crop_size"`
	Mean       [3]float32 `yaml:"mean"`
	Std        [3]float32 `yaml:"std"`
	FeatureMap [3]int     `yaml:"feature_map"`
	InputName  string     `yaml:"input_name"`
	OutputName string     `yaml:"output_name"`
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

// envNonNegativeInt is envInt that also accepts zero.
func envNonNegativeInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a non-negative float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var backbones BackbonesConfig
	if err := yaml.Unmarshal(backbonesYAML, &backbones); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded backbones.yaml: " + err.Error())
	}
	for name, b := range backbones.Backbones {
		b.Name = name
		backbones.Backbones[name] = b
	}

	outputDir := envString("OUTPUT_DIR", "static")
	seed := int64(42)
	if s := os.Getenv("RANDOM_SEED"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			seed = n
		}
	}

	return &Config{
		Dataset: DatasetConfig{
			Dir: envString("DATA_DIR", "data"),
		},
		Index: IndexConfig{
			OutputDir:       outputDir,
			FeaturesCSV:     envString("FEATURES_CSV", filepath.Join(outputDir, "multiAuthor_features.csv")),
			VectorsJSON:     envString("VECTORS_JSON", filepath.Join(outputDir, "multiAuthor_vectors.json")),
			ManifestJSON:    envString("MANIFEST_JSON", filepath.Join(outputDir, "manifest.json")),
			SamplesPerLabel: envInt("SAMPLES_PER_LABEL", 28),
			Seed:            seed,
			ClusterCount:    envNonNegativeInt("CLUSTER_COUNT", 0),
			Concurrency:     envInt("EXTRACT_CONCURRENCY", 1),
		},
		Embedding: EmbeddingConfig{
			Extractor:   envString("EXTRACTOR", "http"),
			URL:         os.Getenv("EMBEDDING_URL"),
			Backbone:    envString("EMBEDDING_BACKBONE", backbones.Default),
			RateLimit:   envFloat("EMBEDDING_RATE_LIMIT", 0),
			Device:      envString("EMBEDDING_DEVICE", "auto"),
			ModelPath:   os.Getenv("ONNX_MODEL_PATH"),
			LibraryPath: os.Getenv("ONNX_LIBRARY_PATH"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 2),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", "127.0.0.1"),
			Port:           envInt("WEB_PORT", 5001),
			VectorSource:   envString("VECTOR_SOURCE", "file"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Backbones: backbones,
	}
}

// GetBackbone returns the named backbone descriptor. An empty name selects the
// default backbone.
func (c *Config) GetBackbone(name string) (Backbone, bool) {
	if name == "" {
		name = c.Backbones.Default
	}
	b, ok := c.Backbones.Backbones[name]
	return b, ok
}
