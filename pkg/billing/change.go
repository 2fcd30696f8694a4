package billing

import (
	"fmt"
	"time"
)

// ChangeReason is the machine-checkable reason a plan change was blocked.
type ChangeReason string

const (
	ReasonAlreadyOnThisPlan             ChangeReason = "AlreadyOnThisPlan"
	ReasonDowngradeRequiresExpiry       ChangeReason = "DowngradeRequiresExpiry"
	ReasonPeriodDowngradeRequiresExpiry ChangeReason = "PeriodDowngradeRequiresExpiry"
)

// ChangeKind classifies an allowed change.
type ChangeKind string

const (
	ChangeNewSubscription ChangeKind = "new_subscription"
	ChangePlanUpgrade     ChangeKind = "plan_upgrade"
	ChangePeriodUpgrade   ChangeKind = "period_upgrade"
	ChangeRenewal         ChangeKind = "renewal"
)

// PlanChangeDecision is the outcome of ValidatePlanChange.
// Blocked changes are values, not errors, so callers can render them directly.
type PlanChangeDecision struct {
	Allowed            bool          `json:"allowed"`
	Kind               ChangeKind    `json:"kind,omitempty"`
	Reason             ChangeReason  `json:"reason,omitempty"`
	Message            string        `json:"message"`
	CurrentPlanEndDate *time.Time    `json:"currentPlanEndDate,omitempty"`
	TargetPlan         PlanCode      `json:"targetPlan"`
	TargetPeriod       BillingPeriod `json:"targetPeriod"`

	// Comparison lists what a plan change gains or, for a scheduled downgrade, loses.
	Comparison *PlanComparison `json:"comparison,omitempty"`
}

// PlanChangeRequest is a requested move to a plan and period.
type PlanChangeRequest struct {
	TargetPlan   PlanCode
	TargetPeriod string // user-supplied, normalized with ParseBillingPeriod
}

// ValidatePlanChange decides whether sub may move to the requested plan and period now.
//
// Without an active subscription any change is allowed. Upgrades to a plan with a
// higher monthly price are always allowed immediately; plan downgrades and period
// reductions wait until the current term ends. Unknown plans and unparseable periods
// are input errors.
func ValidatePlanChange(catalog *Catalog, sub *Subscription, req PlanChangeRequest, now time.Time) (PlanChangeDecision, error) {
	target, err := catalog.Plan(NormalizePlanCode(string(req.TargetPlan)))
	if err != nil {
		return PlanChangeDecision{}, err
	}
	period, ok := ParseBillingPeriod(req.TargetPeriod)
	if !ok {
		return PlanChangeDecision{}, fmt.Errorf("%w: %q", ErrInvalidBillingPeriod, req.TargetPeriod)
	}

	decision := PlanChangeDecision{TargetPlan: target.Code, TargetPeriod: period}

	if !sub.IsActive(now) {
		decision.Allowed = true
		decision.Kind = ChangeNewSubscription
		decision.Message = fmt.Sprintf("You can subscribe to %s", target.Name)
		return decision, nil
	}

	current, err := catalog.Plan(NormalizePlanCode(string(sub.PlanCode)))
	if err != nil {
		return PlanChangeDecision{}, fmt.Errorf("current subscription: %w", err)
	}
	currentPeriod, _ := sub.EffectivePeriod()
	end := sub.EndDate

	if current.Code == target.Code && currentPeriod == period {
		decision.Reason = ReasonAlreadyOnThisPlan
		decision.Message = fmt.Sprintf("You are already on the %s plan with %s billing", current.Name, period)
		return decision, nil
	}

	if current.Code != target.Code {
		decision.Comparison = ComparePlans(&current, &target)
		if target.PriceMonthly.Amount > current.PriceMonthly.Amount {
			decision.Allowed = true
			decision.Kind = ChangePlanUpgrade
			decision.Message = fmt.Sprintf("You can upgrade to %s now", target.Name)
			return decision, nil
		}
		decision.Reason = ReasonDowngradeRequiresExpiry
		decision.CurrentPlanEndDate = &end
		decision.Message = fmt.Sprintf("You can switch to %s when your current plan ends on %s",
			target.Name, end.Format(time.DateOnly))
		return decision, nil
	}

	if period.Level() < currentPeriod.Level() {
		decision.Reason = ReasonPeriodDowngradeRequiresExpiry
		decision.CurrentPlanEndDate = &end
		decision.Message = fmt.Sprintf("You can switch to %s billing when your current term ends on %s",
			period, end.Format(time.DateOnly))
		return decision, nil
	}

	decision.Allowed = true
	decision.Kind = ChangePeriodUpgrade
	decision.Message = fmt.Sprintf("You can switch to %s billing now", period)
	return decision, nil
}
