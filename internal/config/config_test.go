package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFromEnvOverridesDefault(t *testing.T) {
	t.Setenv("VECTORDB_INDEX", "hnsw")
	t.Setenv("VECTORDB_METRIC", "cosine")
	t.Setenv("VECTORDB_HNSW_M", "32")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "hnsw", cfg.Index.Kind)
	assert.Equal(t, "cosine", cfg.Index.Metric)
	assert.Equal(t, 32, cfg.Index.HNSWM)
	assert.Equal(t, 1000, cfg.Index.SnapshotEvery, "unset fields keep the default")
}

func TestLoadFromEnvRejectsNonInteger(t *testing.T) {
	t.Setenv("VECTORDB_HNSW_M", "not-a-number")
	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFileOverlaysBase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectordb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  kind: hnsw\n  metric: dot\n"), 0o644))

	cfg, err := LoadFile(path, Default())
	require.NoError(t, err)
	assert.Equal(t, "hnsw", cfg.Index.Kind)
	assert.Equal(t, "dot", cfg.Index.Metric)
	assert.Equal(t, 1000, cfg.Index.SnapshotEvery, "fields omitted from the file keep the base value")
}

func TestValidateRejectsUnknownIndexKind(t *testing.T) {
	cfg := Default()
	cfg.Index.Kind = "bogus"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownMetric(t *testing.T) {
	cfg := Default()
	cfg.Index.Metric = "manhattan"
	require.Error(t, cfg.Validate())
}
