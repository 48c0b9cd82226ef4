package pathoram

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg, err := Config{NumLevels: 4}.Validate()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.BucketSize)
	assert.Equal(t, 100, cfg.StashLimit)
	assert.Equal(t, 64, cfg.MaxKeySize)
	assert.Equal(t, 256, cfg.MaxValueSize)
	assert.Equal(t, CipherAESGCM, cfg.Cipher)
	assert.Equal(t, EvictLevelByLevel, cfg.EvictionStrategy)
}

func TestConfig_Invalid(t *testing.T) {
	tests := map[string]Config{
		"zero levels":     {NumLevels: 0},
		"too many levels": {NumLevels: MaxLevels + 1},
		"negative bucket": {NumLevels: 3, BucketSize: -1},
		"negative stash":  {NumLevels: 3, StashLimit: -5},
		"negative key":    {NumLevels: 3, MaxKeySize: -1},
		"negative value":  {NumLevels: 3, MaxValueSize: -1},
		"unknown cipher":  {NumLevels: 3, Cipher: "des"},
		"unknown evict":   {NumLevels: 3, Eviction: "random"},
		"bad strategy":    {NumLevels: 3, EvictionStrategy: EvictionStrategy(9)},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestEvictionStrategyNames(t *testing.T) {
	for _, s := range []EvictionStrategy{EvictLevelByLevel, EvictGreedyByDepth, EvictTwoPath} {
		got, err := ParseEvictionStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	assert.Equal(t, "EvictionStrategy(7)", EvictionStrategy(7).String())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oram.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
num_levels: 5
bucket_size: 3
stash_limit: 40
max_value_size: 32
eviction: two-path
constant_time: true
cipher: xchacha20poly1305
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.NumLevels)
	assert.Equal(t, 3, cfg.BucketSize)
	assert.Equal(t, 40, cfg.StashLimit)
	assert.Equal(t, 64, cfg.MaxKeySize)
	assert.Equal(t, 32, cfg.MaxValueSize)
	assert.Equal(t, EvictTwoPath, cfg.EvictionStrategy)
	assert.True(t, cfg.ConstantTime)
	assert.Equal(t, CipherXChaCha, cfg.Cipher)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "num_levels: 3\nbucket_szie: 4\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(writeConfig(t, "num_levels: 0\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
