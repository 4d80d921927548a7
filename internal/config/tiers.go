package config

import (
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// TiersConfig is the tier catalog: per tier feature quotas and per cycle
// prices. It is plain configuration data, not code — deployments override
// it in config.yaml. A limit of -1 means unlimited, 0 means the feature is
// not available for the tier.
type TiersConfig map[types.SubscriptionTier]TierConfig

type TierConfig struct {
	// Limits maps feature name to quota per billing period
	Limits map[types.FeatureName]int64 `mapstructure:"limits"`
	// Prices maps billing cycle to the charge for one full cycle
	Prices map[types.BillingCycle]decimal.Decimal `mapstructure:"prices"`
	// Currency in lowercase 3 letter ISO code
	Currency string `mapstructure:"currency"`
}

func (t TiersConfig) Validate() error {
	for tier, cfg := range t {
		if err := tier.Validate(); err != nil {
			return err
		}
		for feature, limit := range cfg.Limits {
			if limit < types.UsageLimitUnlimited {
				return ierr.NewError("invalid usage limit").
					WithHintf("Limit for feature %s on tier %s must be -1, 0 or positive", feature, tier).
					WithReportableDetails(map[string]any{
						"tier":    tier,
						"feature": feature,
						"limit":   limit,
					}).
					Mark(ierr.ErrValidation)
			}
		}
		for cycle, price := range cfg.Prices {
			if err := cycle.Validate(); err != nil {
				return err
			}
			if price.IsNegative() {
				return ierr.NewError("invalid tier price").
					WithHintf("Price for tier %s cycle %s must not be negative", tier, cycle).
					Mark(ierr.ErrValidation)
			}
		}
	}
	return nil
}

// DefaultTiersConfig returns the compiled in tier catalog used when no
// override is present in the configuration file.
func DefaultTiersConfig() TiersConfig {
	return TiersConfig{
		types.SubscriptionTierFree: {
			Currency: "usd",
			Limits: map[types.FeatureName]int64{
				"api_calls":        1000,
				"document_exports": 10,
				"storage_gb":       1,
				"ai_queries":       types.UsageLimitUnavailable,
				"team_seats":       types.UsageLimitUnavailable,
			},
			Prices: map[types.BillingCycle]decimal.Decimal{
				types.BillingCycleMonthly:   decimal.Zero,
				types.BillingCycleQuarterly: decimal.Zero,
				types.BillingCycleAnnual:    decimal.Zero,
			},
		},
		types.SubscriptionTierPro: {
			Currency: "usd",
			Limits: map[types.FeatureName]int64{
				"api_calls":        100000,
				"document_exports": 500,
				"storage_gb":       50,
				"ai_queries":       1000,
				"team_seats":       types.UsageLimitUnavailable,
			},
			Prices: map[types.BillingCycle]decimal.Decimal{
				types.BillingCycleMonthly:   decimal.RequireFromString("29.99"),
				types.BillingCycleQuarterly: decimal.RequireFromString("80.97"),
				types.BillingCycleAnnual:    decimal.RequireFromString("299.99"),
			},
		},
		types.SubscriptionTierAIPremium: {
			Currency: "usd",
			Limits: map[types.FeatureName]int64{
				"api_calls":        1000000,
				"document_exports": 5000,
				"storage_gb":       500,
				"ai_queries":       50000,
				"team_seats":       5,
			},
			Prices: map[types.BillingCycle]decimal.Decimal{
				types.BillingCycleMonthly:   decimal.RequireFromString("79.99"),
				types.BillingCycleQuarterly: decimal.RequireFromString("215.97"),
				types.BillingCycleAnnual:    decimal.RequireFromString("799.99"),
			},
		},
		types.SubscriptionTierInstitutional: {
			Currency: "usd",
			Limits: map[types.FeatureName]int64{
				"api_calls":        types.UsageLimitUnlimited,
				"document_exports": types.UsageLimitUnlimited,
				"storage_gb":       types.UsageLimitUnlimited,
				"ai_queries":       types.UsageLimitUnlimited,
				"team_seats":       types.UsageLimitUnlimited,
			},
			Prices: map[types.BillingCycle]decimal.Decimal{
				types.BillingCycleMonthly:   decimal.RequireFromString("499.99"),
				types.BillingCycleQuarterly: decimal.RequireFromString("1349.97"),
				types.BillingCycleAnnual:    decimal.RequireFromString("4999.99"),
			},
		},
	}
}
