package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"huddle/internal/types"
)

func TestClassifyPlan(t *testing.T) {
	tests := []struct {
		name         string
		interval     types.BillingInterval
		metadataPlan string
		want         types.PlanType
	}{
		{"year interval", types.IntervalYear, "", types.PlanYearly},
		{"month interval", types.IntervalMonth, "", types.PlanMonthly},
		{"metadata overrides year interval", types.IntervalYear, "monthly", types.PlanMonthly},
		{"metadata overrides month interval", types.IntervalMonth, "yearly", types.PlanYearly},
		{"no signals defaults to monthly", "", "", types.PlanMonthly},
		{"unrecognized metadata falls back to interval", types.IntervalYear, "platinum", types.PlanYearly},
		{"unrecognized interval defaults to monthly", "week", "", types.PlanMonthly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyPlan(tt.interval, tt.metadataPlan))
		})
	}
}
