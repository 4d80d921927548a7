package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierOrdering(t *testing.T) {
	assert.True(t, SubscriptionTierPro.IsUpgradeFrom(SubscriptionTierFree))
	assert.True(t, SubscriptionTierAIPremium.IsUpgradeFrom(SubscriptionTierPro))
	assert.True(t, SubscriptionTierInstitutional.IsUpgradeFrom(SubscriptionTierAIPremium))
	assert.True(t, SubscriptionTierInstitutional.IsUpgradeFrom(SubscriptionTierFree))

	assert.False(t, SubscriptionTierFree.IsUpgradeFrom(SubscriptionTierPro))
	assert.False(t, SubscriptionTierPro.IsUpgradeFrom(SubscriptionTierPro))
}

func TestTierRank(t *testing.T) {
	assert.Equal(t, 0, SubscriptionTierFree.Rank())
	assert.Equal(t, 1, SubscriptionTierPro.Rank())
	assert.Equal(t, 2, SubscriptionTierAIPremium.Rank())
	assert.Equal(t, 3, SubscriptionTierInstitutional.Rank())
	assert.Equal(t, -1, SubscriptionTier("ENTERPRISE").Rank())
}

func TestIsHighestTier(t *testing.T) {
	assert.True(t, SubscriptionTierInstitutional.IsHighestTier())
	assert.False(t, SubscriptionTierAIPremium.IsHighestTier())
	assert.False(t, SubscriptionTierFree.IsHighestTier())
}

func TestTierValidate(t *testing.T) {
	assert.NoError(t, SubscriptionTierFree.Validate())
	assert.NoError(t, SubscriptionTierInstitutional.Validate())
	assert.Error(t, SubscriptionTier("").Validate())
	assert.Error(t, SubscriptionTier("free").Validate())
}
