package config_test

import (
	"testing"

	"github.com/jguida941/adaptive-hashmap-studio/config"
	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenEmpty(t *testing.T) {
	cfg, err := config.Load([]byte(``))
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), cfg)
}

func TestLoadOverridesSubsetOfFields(t *testing.T) {
	cfg, err := config.Load([]byte(`
max_lf_chaining = 0.9
incremental_batch = 4096
`))
	require.NoError(t, err)
	assert.Equal(t, config.Threshold(0.9), cfg.MaxLFChaining)
	assert.Equal(t, 4096, cfg.IncrementalBatch)
	assert.Equal(t, config.BackendChaining, cfg.StartBackend) // untouched default
}

func TestNoneSentinelDisablesWatchdog(t *testing.T) {
	cfg, err := config.Load([]byte(`tombstone_ratio_warn = "none"`))
	require.NoError(t, err)
	assert.False(t, cfg.TombstoneRatioWarn.Enabled())
}

func TestUnknownKeyRejected(t *testing.T) {
	_, err := config.Load([]byte(`not_a_real_field = 1`))
	require.Error(t, err)
	assert.Equal(t, engineerr.BadInput, engineerr.KindOf(err))
}

func TestTypeViolationRejected(t *testing.T) {
	_, err := config.Load([]byte(`incremental_batch = "not-a-number"`))
	require.Error(t, err)
	assert.Equal(t, engineerr.BadInput, engineerr.KindOf(err))
}

func TestUnknownBackendRejected(t *testing.T) {
	_, err := config.Load([]byte(`start_backend = "quantum"`))
	require.Error(t, err)
	assert.Equal(t, engineerr.BadInput, engineerr.KindOf(err))
}
