// Package config loads vectordb's runtime configuration from environment
// variables, with an optional YAML file overlay for settings better kept
// out of the process environment. Precedence: YAML file, then environment
// variables, then built-in defaults — each layer only fills in what the
// previous left unset.
//
// Environment Variables:
//
//   - VECTORDB_INDEX="flat" or "hnsw"
//   - VECTORDB_METRIC="euclidean", "cosine", or "dot"
//   - VECTORDB_DATA_DIR="./data"
//   - VECTORDB_HTTP_ADDR=":8080"
//   - VECTORDB_SNAPSHOT_EVERY=1000
//   - VECTORDB_HNSW_M=16
//   - VECTORDB_HNSW_EF_CONSTRUCTION=200
//   - VECTORDB_HNSW_EF_SEARCH=100
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every setting needed to construct a Store and, optionally,
// serve the HTTP API.
type Config struct {
	Index IndexConfig `yaml:"index"`
	HTTP  HTTPConfig  `yaml:"http"`
}

// IndexConfig selects and tunes the vector index and its persistence.
type IndexConfig struct {
	Kind          string `yaml:"kind"`           // "flat" or "hnsw"
	Metric        string `yaml:"metric"`         // "euclidean", "cosine", "dot"
	DataDir       string `yaml:"data_dir"`       // empty disables persistence
	SnapshotEvery int    `yaml:"snapshot_every"` // WAL entries between checkpoints

	HNSWM              int `yaml:"hnsw_m"`
	HNSWEfConstruction int `yaml:"hnsw_ef_construction"`
	HNSWEfSearch       int `yaml:"hnsw_ef_search"`
}

// HTTPConfig configures the network API adapter (§6).
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when neither a config file nor
// environment variables override a setting: a flat in-memory index over
// Euclidean distance, HTTP on :8080.
func Default() Config {
	return Config{
		Index: IndexConfig{
			Kind:               "flat",
			Metric:             "euclidean",
			SnapshotEvery:      1000,
			HNSWM:              16,
			HNSWEfConstruction: 200,
			HNSWEfSearch:       100,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
	}
}

// LoadFromEnv builds a Config starting from Default() and overriding any
// field whose environment variable is set.
func LoadFromEnv() (Config, error) {
	cfg := Default()

	if v := os.Getenv("VECTORDB_INDEX"); v != "" {
		cfg.Index.Kind = v
	}
	if v := os.Getenv("VECTORDB_METRIC"); v != "" {
		cfg.Index.Metric = v
	}
	if v := os.Getenv("VECTORDB_DATA_DIR"); v != "" {
		cfg.Index.DataDir = v
	}
	if v := os.Getenv("VECTORDB_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	var err error
	if cfg.Index.SnapshotEvery, err = envInt("VECTORDB_SNAPSHOT_EVERY", cfg.Index.SnapshotEvery); err != nil {
		return Config{}, err
	}
	if cfg.Index.HNSWM, err = envInt("VECTORDB_HNSW_M", cfg.Index.HNSWM); err != nil {
		return Config{}, err
	}
	if cfg.Index.HNSWEfConstruction, err = envInt("VECTORDB_HNSW_EF_CONSTRUCTION", cfg.Index.HNSWEfConstruction); err != nil {
		return Config{}, err
	}
	if cfg.Index.HNSWEfSearch, err = envInt("VECTORDB_HNSW_EF_SEARCH", cfg.Index.HNSWEfSearch); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFile reads a YAML config file and overlays it on top of base,
// leaving any field the file omits untouched.
func LoadFile(path string, base Config) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := base
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the store or HTTP server could not act on.
func (c Config) Validate() error {
	switch c.Index.Kind {
	case "flat", "hnsw":
	default:
		return fmt.Errorf("config: unknown index kind %q", c.Index.Kind)
	}
	switch c.Index.Metric {
	case "euclidean", "cosine", "dot":
	default:
		return fmt.Errorf("config: unknown metric %q", c.Index.Metric)
	}
	if c.Index.SnapshotEvery <= 0 {
		return fmt.Errorf("config: snapshot_every must be > 0")
	}
	if c.Index.HNSWM < 2 {
		return fmt.Errorf("config: hnsw_m must be >= 2")
	}
	return nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
