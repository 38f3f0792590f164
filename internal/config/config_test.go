package config

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkb/cortex/internal/composer"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "./data/cortex.db", cfg.Storage.DataPath)
	assert.Equal(t, "nomic-embed-text", cfg.Embed.Model)
	assert.Equal(t, 768, cfg.Embed.Dimension)
	assert.Equal(t, 0.3, cfg.Analysis.MinCompositeScore)
	assert.Equal(t, 4, cfg.Analysis.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Analysis.BatchTimeout)
	assert.Empty(t, cfg.Index.PostgresDSN)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CORTEX_DATA_PATH", "/tmp/other.db")
	t.Setenv("CORTEX_WORKERS", "8")
	t.Setenv("CORTEX_MIN_COMPOSITE_SCORE", "0.5")
	t.Setenv("CORTEX_BATCH_TIMEOUT", "90s")
	t.Setenv("CORTEX_EMBEDDING_RPS", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.Storage.DataPath)
	assert.Equal(t, 8, cfg.Analysis.Workers)
	assert.Equal(t, 0.5, cfg.Analysis.MinCompositeScore)
	assert.Equal(t, 90*time.Second, cfg.Analysis.BatchTimeout)
	// Unparseable values fall back to the default.
	assert.Equal(t, 10.0, cfg.Embed.RequestsPerSecond)
}

func TestWeightsSourceDefaultsWithoutPath(t *testing.T) {
	source, err := NewWeightsSource("")
	require.NoError(t, err)
	defer source.Close()

	assert.Equal(t, composer.DefaultWeights(), source.Current())
}

func TestWeightsSourceLoadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
semantic: 0.5
temporal: 0.1
content: 0.1
hierarchy: 0.1
causal: 0.1
contextual: 0.1
`), 0o644))

	source, err := NewWeightsSource(path)
	require.NoError(t, err)
	defer source.Close()

	assert.Equal(t, 0.5, source.Current().Semantic)
}

func TestWeightsSourceHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	write := func(semantic, contextual float64) {
		content := []byte(
			"semantic: " + floatString(semantic) + "\n" +
				"temporal: 0.1\ncontent: 0.1\nhierarchy: 0.1\ncausal: 0.1\n" +
				"contextual: " + floatString(contextual) + "\n")
		require.NoError(t, os.WriteFile(path, content, 0o644))
	}
	write(0.4, 0.2)

	source, err := NewWeightsSource(path)
	require.NoError(t, err)
	defer source.Close()
	require.Equal(t, 0.4, source.Current().Semantic)

	write(0.5, 0.1)
	require.Eventually(t, func() bool {
		return source.Current().Semantic == 0.5
	}, 3*time.Second, 20*time.Millisecond, "weights did not hot-reload")
}

func TestWeightsSourceKeepsPreviousOnInvalidEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
semantic: 0.35
temporal: 0.10
content: 0.20
hierarchy: 0.10
causal: 0.10
contextual: 0.15
`), 0o644))

	source, err := NewWeightsSource(path)
	require.NoError(t, err)
	defer source.Close()

	// Weights summing to 2.0 are rejected; the previous set stays active.
	require.NoError(t, os.WriteFile(path, []byte(`
semantic: 1.0
temporal: 0.2
content: 0.2
hierarchy: 0.2
causal: 0.2
contextual: 0.2
`), 0o644))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0.35, source.Current().Semantic)
}

func TestWeightsSourceMissingFileUsesDefaults(t *testing.T) {
	source, err := NewWeightsSource(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	defer source.Close()

	assert.Equal(t, composer.DefaultWeights(), source.Current())
}

func floatString(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
