package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/ragserver/internal/pkg/errs"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadRejectsOverlapNotBelowChunkTokens(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"database": {"host": "localhost"},
		"pipeline": {"chunk_tokens": 100, "overlap_tokens": 200}
	}`)
	_, err := Load(path)
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestLoadRejectsAlphaOutOfRange(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"database": {"host": "localhost"},
		"query": {"hybrid_alpha": 1.5}
	}`)
	_, err := Load(path)
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestLoadRejectsNegativeTemperature(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"database": {"host": "localhost"},
		"query": {"temperature": -0.1}
	}`)
	_, err := Load(path)
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestLoadKeepsExplicitZeroValues(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"database": {"host": "localhost"},
		"pipeline": {"overlap_tokens": 0},
		"query": {"hybrid_alpha": 0, "temperature": 0}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, *cfg.Pipeline.OverlapTokens)
	assert.Equal(t, 0.0, *cfg.Query.HybridAlpha)
	assert.Equal(t, 0.0, *cfg.Query.Temperature)
}

func TestLoadDefaultsAbsentKeys(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8080,
		"database": {"host": "localhost"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Pipeline.ChunkTokens)
	assert.Equal(t, 60, *cfg.Pipeline.OverlapTokens)
	assert.Equal(t, 0.5, *cfg.Query.HybridAlpha)
	assert.Equal(t, 0.2, *cfg.Query.Temperature)
}
