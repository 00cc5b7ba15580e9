package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_DefaultsEnabled(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureMessagingFirstLesson, nil))
	assert.True(t, ff.IsEnabled(FeatureMessagingResultMessages, nil))
	assert.True(t, ff.IsEnabled(FeatureCatalogRedisCache, nil))
}

func TestFeatureFlags_UnknownFeatureDisabled(t *testing.T) {
	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled("no.such.feature", nil))
}

func TestFeatureFlags_EnvOverrideBool(t *testing.T) {
	t.Setenv("FEATURE_CATALOG_REDIS_CACHE", "false")

	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled(FeatureCatalogRedisCache, nil))
}

func TestFeatureFlags_EnvOverridePercent(t *testing.T) {
	t.Setenv("FEATURE_MESSAGING_FIRST_LESSON", "50")

	ff := LoadFeatureFlags()

	// Contract buckets are stable: the same contract always gets the
	// same answer, and roughly half the contracts are in.
	in := 0
	for id := int64(1); id <= 200; id++ {
		ctx := &FeatureContext{ContractID: id}
		first := ff.IsEnabled(FeatureMessagingFirstLesson, ctx)
		assert.Equal(t, first, ff.IsEnabled(FeatureMessagingFirstLesson, ctx))
		if first {
			in++
		}
	}
	assert.Greater(t, in, 50)
	assert.Less(t, in, 150)
}

func TestFeatureFlags_ContractOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()

	ff.SetContractOverride(500, FeatureMessagingResultMessages, false)
	assert.False(t, ff.IsEnabled(FeatureMessagingResultMessages, &FeatureContext{ContractID: 500}))
	assert.True(t, ff.IsEnabled(FeatureMessagingResultMessages, &FeatureContext{ContractID: 501}))

	ff.ClearContractOverrides(500)
	assert.True(t, ff.IsEnabled(FeatureMessagingResultMessages, &FeatureContext{ContractID: 500}))
}

func TestFeatureFlags_SetRolloutPercent(t *testing.T) {
	ff := LoadFeatureFlags()

	require.NoError(t, ff.DisableFeature(FeatureCatalogRedisCache))
	assert.False(t, ff.IsEnabled(FeatureCatalogRedisCache, nil))

	require.NoError(t, ff.EnableFeature(FeatureCatalogRedisCache))
	assert.True(t, ff.IsEnabled(FeatureCatalogRedisCache, nil))

	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureCatalogRedisCache, 150), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetRolloutPercent("no.such.feature", 10), ErrFeatureNotFound)
}

func TestConfig_ValidateRequiresAPIKey(t *testing.T) {
	t.Setenv("MEDSENGER_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MEDSENGER_API_KEY")
}

func TestConfig_LoadWithDefaults(t *testing.T) {
	t.Setenv("MEDSENGER_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "education-agent", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "https://medsenger.ru", cfg.Medsenger.Host)
	assert.NotNil(t, cfg.Features)
}
