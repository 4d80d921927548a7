package tier

import (
	"fmt"
	"time"

	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/tier"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	goCache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// cacheExpiration keeps resolved limit tables hot between requests;
// the catalog itself only changes on config reload.
const (
	cacheExpiration      = 30 * time.Minute
	cacheCleanupInterval = 1 * time.Hour
)

// configProvider serves the tier catalog from configuration data,
// memoizing the per tier limit maps
type configProvider struct {
	tiers config.TiersConfig
	cache *goCache.Cache
}

// NewConfigProvider builds a tier.Provider backed by the configured
// tier catalog
func NewConfigProvider(cfg *config.Configuration) tier.Provider {
	return &configProvider{
		tiers: cfg.Tiers,
		cache: goCache.New(cacheExpiration, cacheCleanupInterval),
	}
}

func (p *configProvider) tierConfig(t types.SubscriptionTier) (config.TierConfig, error) {
	cfg, ok := p.tiers[t]
	if !ok {
		return config.TierConfig{}, ierr.NewError("unknown tier").
			WithHintf("Tier %s is not present in the tier catalog", t).
			WithReportableDetails(map[string]any{
				"tier": t,
			}).
			Mark(ierr.ErrNotFound)
	}
	return cfg, nil
}

func (p *configProvider) LimitsFor(t types.SubscriptionTier) (map[types.FeatureName]int64, error) {
	cacheKey := fmt.Sprintf("limits:%s", t)
	if cached, found := p.cache.Get(cacheKey); found {
		return cached.(map[types.FeatureName]int64), nil
	}

	cfg, err := p.tierConfig(t)
	if err != nil {
		return nil, err
	}

	limits := make(map[types.FeatureName]int64, len(cfg.Limits))
	for feature, limit := range cfg.Limits {
		limits[feature] = limit
	}

	p.cache.Set(cacheKey, limits, goCache.DefaultExpiration)
	return limits, nil
}

func (p *configProvider) LimitFor(t types.SubscriptionTier, feature types.FeatureName) (int64, error) {
	limits, err := p.LimitsFor(t)
	if err != nil {
		return 0, err
	}
	limit, ok := limits[feature]
	if !ok {
		// Features missing from the catalog are not entitled
		return types.UsageLimitUnavailable, nil
	}
	return limit, nil
}

func (p *configProvider) PriceFor(t types.SubscriptionTier, cycle types.BillingCycle) (decimal.Decimal, error) {
	cfg, err := p.tierConfig(t)
	if err != nil {
		return decimal.Zero, err
	}
	price, ok := cfg.Prices[cycle]
	if !ok {
		return decimal.Zero, ierr.NewError("no price configured").
			WithHintf("Tier %s has no price for billing cycle %s", t, cycle).
			WithReportableDetails(map[string]any{
				"tier":          t,
				"billing_cycle": cycle,
			}).
			Mark(ierr.ErrNotFound)
	}
	return price, nil
}

func (p *configProvider) CurrencyFor(t types.SubscriptionTier) (string, error) {
	cfg, err := p.tierConfig(t)
	if err != nil {
		return "", err
	}
	return cfg.Currency, nil
}
