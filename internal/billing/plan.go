// Package billing contains the core checkout orchestration and webhook
// reconciliation logic for Huddle subscriptions.
package billing

import "huddle/internal/types"

// ClassifyPlan maps a subscription's billing interval and an optional
// explicit metadata override to a plan type. The metadata override always
// wins over interval inference; with neither signal the plan defaults to
// monthly. Pure and total.
func ClassifyPlan(interval types.BillingInterval, metadataPlan string) types.PlanType {
	switch types.PlanType(metadataPlan) {
	case types.PlanMonthly:
		return types.PlanMonthly
	case types.PlanYearly:
		return types.PlanYearly
	}

	if interval == types.IntervalYear {
		return types.PlanYearly
	}
	return types.PlanMonthly
}
