package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talos/internal/config"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeFile(t, "max_order_qty: 250\ntoxicity_alpha: 0.25\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(250), cfg.MaxOrderQty)
	assert.Equal(t, 0.25, cfg.ToxicityAlpha)
	assert.Equal(t, config.Default().PositionLimit, cfg.PositionLimit, "untouched keys keep defaults")
}

func TestLoad_RejectsUnknownKey(t *testing.T) {
	path := writeFile(t, "max_order_qty: 250\nspooky_unknown_key: 1\n")
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown key")
}

func TestSetParam_UpdatesInPlace(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, config.SetParam(&cfg, "position_limit", "750"))
	assert.Equal(t, int64(750), cfg.PositionLimit)

	require.NoError(t, config.SetParam(&cfg, "toxicity_alpha", "0.4"))
	assert.Equal(t, 0.4, cfg.ToxicityAlpha)
}

func TestSetParam_RejectsUnknownKey(t *testing.T) {
	cfg := config.Default()
	err := config.SetParam(&cfg, "not_a_real_key", "1")
	require.Error(t, err)
}

func TestSetParam_RejectsBadValue(t *testing.T) {
	cfg := config.Default()
	err := config.SetParam(&cfg, "max_order_qty", "not-a-number")
	require.Error(t, err)
}
