package dto

import (
	"github.com/billforge/billforge/internal/domain/usage"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// CheckUsageRequest validates one usage increment against the user's
// current period quota. With ApplyIncrement false the check is a dry run
// and stored usage is never changed.
type CheckUsageRequest struct {
	UserID          string            `json:"user_id" binding:"required"`
	FeatureName     types.FeatureName `json:"feature_name" binding:"required"`
	IncrementAmount int64             `json:"increment_amount"`
	ApplyIncrement  bool              `json:"apply_increment"`
}

func (r *CheckUsageRequest) Validate() error {
	if r.UserID == "" {
		return ierr.NewError("user_id is required").
			WithHint("Please provide a valid user ID").
			Mark(ierr.ErrValidation)
	}
	if err := r.FeatureName.Validate(); err != nil {
		return err
	}
	if r.IncrementAmount < 0 {
		return ierr.NewError("negative increment amount").
			WithHint("Increment amount cannot be negative").
			WithReportableDetails(map[string]any{
				"increment_amount": r.IncrementAmount,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CheckUsageResponse carries the enforcement decision
type CheckUsageResponse struct {
	usage.Decision
}

// UsageResponse is the outward view of a usage tracking record
type UsageResponse struct {
	*usage.UsageTracking

	WarningLevel types.UsageWarningLevel `json:"warning_level"`
	Percentage   float64                 `json:"percentage"`
}

// NewUsageResponse derives the warning fields from the record
func NewUsageResponse(record *usage.UsageTracking) *UsageResponse {
	return &UsageResponse{
		UsageTracking: record,
		WarningLevel:  record.WarningLevel(),
		Percentage:    record.UsagePercentage(),
	}
}
