package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWarningLevelForPercentage(t *testing.T) {
	tests := []struct {
		percentage float64
		want       UsageWarningLevel
	}{
		{0, UsageWarningNone},
		{59.9, UsageWarningNone},
		{60, UsageWarningLow},
		{79.9, UsageWarningLow},
		{80, UsageWarningMedium},
		{85, UsageWarningMedium},
		{89.9, UsageWarningMedium},
		{90, UsageWarningHigh},
		{95, UsageWarningHigh},
		{99.9, UsageWarningHigh},
		{100, UsageWarningCritical},
		{150, UsageWarningCritical},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, WarningLevelForPercentage(tt.percentage),
			"percentage %v", tt.percentage)
	}
}

func TestFeatureNameValidate(t *testing.T) {
	assert.NoError(t, FeatureName("api_calls").Validate())
	assert.Error(t, FeatureName("").Validate())
}
