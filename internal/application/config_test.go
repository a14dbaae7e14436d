package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vision-qc/internal/domain/entity"
)

func TestConfigService_ThresholdChangeScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.config.Seed(ctx, map[string]string{entity.ConfigConfidenceThreshold: "0.6"}))
	assert.Empty(t, env.auditOf(t, entity.ActionConfigChange), "seeding is not audited")

	require.NoError(t, env.config.Set(ctx, entity.ConfigConfidenceThreshold, "0.75"))

	value, err := env.config.Get(ctx, entity.ConfigConfidenceThreshold)
	require.NoError(t, err)
	assert.Equal(t, "0.75", value)

	changes := env.auditOf(t, entity.ActionConfigChange)
	require.Len(t, changes, 1)
	assert.Contains(t, changes[0].Details, "0.6")
	assert.Contains(t, changes[0].Details, "0.75")
	assert.Nil(t, changes[0].InspectionID)

	threshold, err := env.config.Threshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.75, threshold)
}

func TestConfigService_NewKeyRecordsNone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.config.Get(ctx, "shift")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, env.config.Set(ctx, "shift", "night"))
	changes := env.auditOf(t, entity.ActionConfigChange)
	require.Len(t, changes, 1)
	assert.Equal(t, "Config 'shift' changed from None to night", changes[0].Details)
}

func TestConfigService_RejectsInvalidThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, v := range []string{"abc", "-0.1", "1.01", "NaN"} {
		err := env.config.Set(ctx, entity.ConfigConfidenceThreshold, v)
		require.ErrorIs(t, err, ErrInvalidThreshold, v)
	}
	assert.Empty(t, env.auditOf(t, entity.ActionConfigChange))
}

func TestConfigService_SeedKeepsExisting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.config.Set(ctx, entity.ConfigConfidenceThreshold, "0.8"))
	require.NoError(t, env.config.Seed(ctx, map[string]string{entity.ConfigConfidenceThreshold: "0.6"}))

	value, err := env.config.Get(ctx, entity.ConfigConfidenceThreshold)
	require.NoError(t, err)
	assert.Equal(t, "0.8", value)
}

func TestConfigService_ThresholdDefaultWhenMissing(t *testing.T) {
	env := newTestEnv(t)
	threshold, err := env.config.Threshold(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultConfidenceThreshold, threshold)
}

func TestAuditTrail_TimestampsNeverGoBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.audit.Record(ctx, entity.ActionConfigChange, nil, "first")
	require.NoError(t, err)

	env.clock.Advance(-time.Hour)
	second, err := env.audit.Record(ctx, entity.ActionConfigChange, nil, "second")
	require.NoError(t, err)

	assert.Greater(t, second.ID, first.ID)
	assert.False(t, second.Timestamp.Before(first.Timestamp))
}
