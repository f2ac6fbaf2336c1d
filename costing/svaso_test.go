package costing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/joint-cost-engine/costing"
)

func bands() costing.KFactorThresholds {
	return costing.DefaultSettings().KFactor
}

// =============================================================================
// SVASO
// =============================================================================

func TestAllocateSVASO_ResidualKeepsPoolExact(t *testing.T) {
	// GIVEN: Three equal parts sharing a pool that does not divide by three
	// WHEN: Allocating
	// THEN: The first of the tied lines absorbs the residual; Σ cost == pool

	parts := []costing.JointProduct{
		{PartCode: "a", WeightKg: d("1"), MarketPricePerKg: d("1")},
		{PartCode: "b", WeightKg: d("1"), MarketPricePerKg: d("1")},
		{PartCode: "c", WeightKg: d("1"), MarketPricePerKg: d("1")},
	}

	l3, err := costing.AllocateSVASO(&costing.Level2{NetJointCostEUR: d("100")}, parts, bands())
	require.NoError(t, err)

	total := decimal.Zero
	for _, a := range l3.Allocations {
		total = total.Add(a.AllocatedCostEUR)
	}
	assert.True(t, d("100").Equal(total))
	assert.True(t, l3.Allocations[1].AllocatedCostEUR.Equal(l3.Allocations[2].AllocatedCostEUR))
	assert.True(t, l3.Allocations[0].AllocatedCostEUR.GreaterThanOrEqual(l3.Allocations[1].AllocatedCostEUR))

	entry, ok := costing.AuditTrail(l3.Audit).Find(costing.StageSVASO, "a/cost")
	require.True(t, ok)
	assert.Equal(t, "pool_eur - sum(other_allocated_cost_eur)", entry.Formula)
}

func TestAllocateSVASO_ShareAuditReproduces(t *testing.T) {
	res := run(t, workedExample())

	for _, a := range res.Level3.Allocations {
		entry, ok := res.Audit.Find(costing.StageSVASO, a.Code+"/share")
		require.True(t, ok, a.Code)
		rv, _ := entry.Input("relative_value")
		total, _ := entry.Input("total_relative_value")
		assert.True(t, rv.Div(total).Equal(a.Share), a.Code)
	}
}

func TestAllocateSVASO_Rejects(t *testing.T) {
	l2 := &costing.Level2{NetJointCostEUR: d("100")}

	tests := []struct {
		name       string
		parts      []costing.JointProduct
		degenerate bool
	}{
		{"empty", nil, false},
		{"zero weight", []costing.JointProduct{{PartCode: "a", WeightKg: d("0"), MarketPricePerKg: d("1")}}, false},
		{"negative price", []costing.JointProduct{{PartCode: "a", WeightKg: d("1"), MarketPricePerKg: d("-1")}}, false},
		{"duplicate", []costing.JointProduct{
			{PartCode: "a", WeightKg: d("1"), MarketPricePerKg: d("1")},
			{PartCode: "a", WeightKg: d("1"), MarketPricePerKg: d("1")},
		}, false},
		{"code shadows k-factor entry", []costing.JointProduct{
			{PartCode: "k_factor", WeightKg: d("1"), MarketPricePerKg: d("1")},
		}, false},
		{"code shadows total entry", []costing.JointProduct{
			{PartCode: "total_relative_value", WeightKg: d("1"), MarketPricePerKg: d("1")},
		}, false},
		{"code with subject separator", []costing.JointProduct{
			{PartCode: "wings/cost", WeightKg: d("1"), MarketPricePerKg: d("1")},
		}, false},
		{"all prices zero", []costing.JointProduct{
			{PartCode: "a", WeightKg: d("1"), MarketPricePerKg: d("0")},
			{PartCode: "b", WeightKg: d("2"), MarketPricePerKg: d("0")},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := costing.AllocateSVASO(l2, tt.parts, bands())
			require.ErrorIs(t, err, costing.ErrInputValidation)
			if tt.degenerate {
				assert.ErrorIs(t, err, costing.ErrArithmeticDegenerate)
			}
		})
	}
}

func TestAllocateSVASO_KFactorBands(t *testing.T) {
	parts := []costing.JointProduct{{PartCode: "a", WeightKg: d("100"), MarketPricePerKg: d("2")}}
	thresholds := costing.KFactorThresholds{ProfitableBelow: d("0.9"), StressedFrom: d("1.1")}

	tests := []struct {
		pool string
		want costing.KFactorBand
		warn bool
	}{
		{"150", costing.BandProfitable, false},
		{"200", costing.BandBreakEven, false},
		{"220", costing.BandStressed, true},
		{"300", costing.BandStressed, true},
	}
	for _, tt := range tests {
		t.Run(tt.pool, func(t *testing.T) {
			l3, err := costing.AllocateSVASO(&costing.Level2{NetJointCostEUR: d(tt.pool)}, parts, thresholds)
			require.NoError(t, err)
			assert.Equal(t, tt.want, l3.KFactorBand)
			if tt.warn {
				require.Len(t, l3.Warnings, 1)
				assert.Equal(t, costing.WarnKFactorStressed, l3.Warnings[0].Code)
			} else {
				assert.Empty(t, l3.Warnings)
			}
		})
	}
}

// =============================================================================
// MINI-SVASO
// =============================================================================

func breastCuts() []costing.SubCut {
	return []costing.SubCut{
		{ParentCode: "breast_cap", CutCode: "fillet", WeightKg: d("480"), MarketPricePerKg: d("5.10")},
		{ParentCode: "breast_cap", CutCode: "inner_fillet", WeightKg: d("90"), MarketPricePerKg: d("6.00")},
		{ParentCode: "breast_cap", CutCode: "breast_trim", WeightKg: d("50"), MarketPricePerKg: d("1.20")},
	}
}

func TestAllocateMiniSVASO_Conserves(t *testing.T) {
	// GIVEN: The breast cap split into three sub-cuts
	// WHEN: Running MiniSVASO
	// THEN: Σ sub-cut cost equals the breast cap's allocated cost exactly

	res := run(t, workedExample())
	l4, err := costing.AllocateMiniSVASO(res.Level3, breastCuts(), nil, d("0.005"))
	require.NoError(t, err)

	parent, _ := res.Level3.Allocation("breast_cap")
	sub, ok := l4.Parent("breast_cap")
	require.True(t, ok)
	assert.True(t, parent.AllocatedCostEUR.Equal(sub.PoolEUR))

	total := decimal.Zero
	shares := decimal.Zero
	for _, c := range sub.Cuts {
		total = total.Add(c.AllocatedCostEUR)
		shares = shares.Add(c.Share)
		assert.True(t, c.AllocatedCostPerKg.IsPositive(), c.Code)
	}
	assert.True(t, parent.AllocatedCostEUR.Equal(total))
	assert.InDelta(t, 1.0, f(shares), 1e-9)
	assert.Empty(t, l4.Warnings)

	fillet, ok := l4.Cut("fillet")
	require.True(t, ok)
	trim, _ := l4.Cut("breast_trim")
	assert.True(t, fillet.AllocatedCostPerKg.GreaterThan(trim.AllocatedCostPerKg))

	entry, ok := costing.AuditTrail(l4.Audit).Find(costing.StageMiniSVASO, "breast_cap:k_factor")
	require.True(t, ok)
	assert.True(t, entry.Result.Equal(sub.KFactor))
}

func TestAllocateMiniSVASO_OnlyFilter(t *testing.T) {
	res := run(t, workedExample())
	cuts := append(breastCuts(),
		costing.SubCut{ParentCode: "leg_quarter", CutCode: "drumstick", WeightKg: d("200"), MarketPricePerKg: d("2.5")},
		costing.SubCut{ParentCode: "leg_quarter", CutCode: "thigh", WeightKg: d("260"), MarketPricePerKg: d("3.1")},
	)

	l4, err := costing.AllocateMiniSVASO(res.Level3, cuts, []string{"leg_quarter"}, d("0.005"))
	require.NoError(t, err)

	require.Len(t, l4.Parents, 1)
	assert.Equal(t, "leg_quarter", l4.Parents[0].ParentCode)
	_, ok := l4.Cut("fillet")
	assert.False(t, ok)
}

func TestAllocateMiniSVASO_UnknownParent(t *testing.T) {
	res := run(t, workedExample())

	_, err := costing.AllocateMiniSVASO(res.Level3, []costing.SubCut{
		{ParentCode: "neck", CutCode: "neck_skin", WeightKg: d("1"), MarketPricePerKg: d("1")},
	}, nil, d("0.005"))

	var ive *costing.InputValidationError
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, costing.StageMiniSVASO, ive.Stage)
	assert.Equal(t, "parent_code", ive.Field)
}

func TestAllocateMiniSVASO_HeavierThanParentWarns(t *testing.T) {
	res := run(t, workedExample())
	cuts := breastCuts()
	cuts[0].WeightKg = d("600")

	l4, err := costing.AllocateMiniSVASO(res.Level3, cuts, nil, d("0.005"))
	require.NoError(t, err)

	require.Len(t, l4.Warnings, 1)
	assert.Equal(t, costing.WarnSubCutMassBalance, l4.Warnings[0].Code)
	assert.Equal(t, []string{"breast_cap", "fillet", "inner_fillet", "breast_trim"}, l4.Warnings[0].Parts)
}

func TestPipeline_MiniSVASOProfile(t *testing.T) {
	in := withSKUs(workedExample())
	in.Profile.Name = "external-dynamic-cuts"
	in.Profile.DynamicJointProducts = true
	in.Profile.FixedPartCodes = nil
	in.Profile.MiniSVASOEnabled = true
	in.SubCuts = breastCuts()
	in.SKUs[0].Source = costing.SourceRef{Kind: costing.SourceSubCut, Code: "fillet"}

	res := run(t, in)

	require.NotNil(t, res.Level4)
	fillet, _ := res.Level4.Cut("fillet")
	cost, _ := res.Level6.SKU("SKU-BREAST-500")
	assert.True(t, fillet.AllocatedCostPerKg.Equal(cost.MeatCostPerKg))
	assert.Contains(t, res.StagesRun, costing.StageMiniSVASO)
}
