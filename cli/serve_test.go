package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiterhq/arbiter/config"
	"github.com/arbiterhq/arbiter/governor"
	"github.com/arbiterhq/arbiter/messaging"
)

func TestResourceLimitsConversion(t *testing.T) {
	limits := resourceLimits(map[string]int64{"memory": 1024, "slots": 4})

	assert.Equal(t, int64(1024), limits[governor.ResourceMemory])
	assert.Equal(t, int64(4), limits[governor.ResourceSlots])
}

func TestBuildBrokerMemory(t *testing.T) {
	broker, err := buildBroker(config.BrokerConfig{Kind: "memory"}, nil)
	require.NoError(t, err)
	defer broker.Close()

	_, ok := broker.(*messaging.MemoryBroker)
	assert.True(t, ok)
}

func TestBuildBrokerUnknownKind(t *testing.T) {
	_, err := buildBroker(config.BrokerConfig{Kind: "kafka"}, nil)
	assert.ErrorContains(t, err, "unknown broker kind")
}

func TestBuildStagingNone(t *testing.T) {
	store, err := buildStaging(config.StagingConfig{Kind: "none"}, nil)
	require.NoError(t, err)
	assert.Nil(t, store)
}

func TestBuildStagingUnknownKind(t *testing.T) {
	_, err := buildStaging(config.StagingConfig{Kind: "tape"}, nil)
	assert.ErrorContains(t, err, "unknown staging kind")
}

func TestBuildValidatorWithoutPolicy(t *testing.T) {
	validator, err := buildValidator(config.ValidationConfig{ImpactThreshold: 0.8}, nil)
	require.NoError(t, err)
	assert.NotNil(t, validator)
}

func TestDemoDatasetFeedsAllGenerators(t *testing.T) {
	ds := demoDataset()

	require.NotEmpty(t, ds.Items)
	require.NotEmpty(t, ds.Preferences)
	require.NotEmpty(t, ds.Interactions)
	require.NotEmpty(t, ds.Similarities)
	require.NotEmpty(t, ds.Rules)

	generators := buildGenerators(ds, nil)
	assert.Len(t, generators, 2)
}
