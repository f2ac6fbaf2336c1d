package costing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/joint-cost-engine/costing"
)

func TestCalculateLandedCost(t *testing.T) {
	b := costing.Batch{
		InputLiveKg: d("2500"),
		InputCount:  1000,
		PricePerKg:  d("1.05"),
		ExtraCosts: []costing.ExtraCost{
			{Label: "transport", AmountEUR: d("90")},
			{Label: "catching", AmountEUR: d("35")},
		},
	}

	l0, err := costing.CalculateLandedCost(b)
	require.NoError(t, err)

	assert.True(t, d("125").Equal(l0.ExtraCostsEUR))
	assert.True(t, d("2750").Equal(l0.LandedCostEUR))
	assert.True(t, d("1.1").Equal(l0.LandedCostPerKg))
	require.Len(t, l0.Audit, 2)
	assert.Equal(t, costing.StageLandedCost, l0.Audit[0].Stage)
}

func TestCalculateLandedCost_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		batch costing.Batch
		field string
	}{
		{"zero weight", costing.Batch{InputLiveKg: d("0"), InputCount: 10, PricePerKg: d("1")}, "input_live_kg"},
		{"negative weight", costing.Batch{InputLiveKg: d("-1"), InputCount: 10, PricePerKg: d("1")}, "input_live_kg"},
		{"zero count", costing.Batch{InputLiveKg: d("100"), InputCount: 0, PricePerKg: d("1")}, "input_count"},
		{"negative price", costing.Batch{InputLiveKg: d("100"), InputCount: 10, PricePerKg: d("-1")}, "price_per_kg"},
		{"negative extra", costing.Batch{InputLiveKg: d("100"), InputCount: 10, PricePerKg: d("1"),
			ExtraCosts: []costing.ExtraCost{{Label: "x", AmountEUR: d("-5")}}}, "extra_costs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := costing.CalculateLandedCost(tt.batch)

			var ive *costing.InputValidationError
			require.ErrorAs(t, err, &ive)
			assert.Equal(t, tt.field, ive.Field)
			assert.ErrorIs(t, err, costing.ErrInputValidation)
		})
	}
}

func TestBuildJointCostPool(t *testing.T) {
	l0, err := costing.CalculateLandedCost(workedExample().Batch)
	require.NoError(t, err)

	l1, err := costing.BuildJointCostPool(l0, d("500"), d("1760"))
	require.NoError(t, err)

	assert.True(t, d("3250").Equal(l1.JointCostPoolEUR))
	assert.True(t, d("0.704").Equal(l1.GrillerYieldPct))
	assert.Equal(t, "1.846591", l1.GrillerCostPerKg.StringFixed(6))
}

func TestBuildJointCostPool_ZeroGrillerIsDegenerate(t *testing.T) {
	l0, _ := costing.CalculateLandedCost(workedExample().Batch)

	_, err := costing.BuildJointCostPool(l0, d("500"), d("0"))

	assert.ErrorIs(t, err, costing.ErrArithmeticDegenerate)
	assert.ErrorIs(t, err, costing.ErrInputValidation, "degenerate errors are validation errors too")
}

func TestBuildJointCostPool_GrillerHeavierThanLive(t *testing.T) {
	l0, _ := costing.CalculateLandedCost(workedExample().Batch)

	_, err := costing.BuildJointCostPool(l0, d("500"), d("2600"))

	assert.ErrorIs(t, err, costing.ErrInputValidation)
	assert.NotErrorIs(t, err, costing.ErrArithmeticDegenerate)
}

// =============================================================================
// BY-PRODUCT CREDIT
// =============================================================================

func TestApplyByProductCredit_Clamp(t *testing.T) {
	// GIVEN: A tiny pool and a by-product worth more than it
	// WHEN: Crediting
	// THEN: Net joint cost clamps to zero with a warning

	l1 := &costing.Level1{JointCostPoolEUR: d("100")}
	l2, err := costing.ApplyByProductCredit(l1, []costing.ByProduct{
		{Code: "feathers", WeightKg: d("200"), MarketPricePerKg: d("0.40")},
		{Code: "blood", WeightKg: d("50"), MarketPricePerKg: d("0.20")},
	})
	require.NoError(t, err)

	assert.True(t, d("90").Equal(l2.CreditEUR))
	assert.True(t, d("10").Equal(l2.NetJointCostEUR))
	assert.False(t, l2.Clamped)

	l2, err = costing.ApplyByProductCredit(&costing.Level1{JointCostPoolEUR: d("50")}, []costing.ByProduct{
		{Code: "feathers", WeightKg: d("200"), MarketPricePerKg: d("0.40")},
	})
	require.NoError(t, err)

	assert.True(t, l2.NetJointCostEUR.IsZero())
	assert.True(t, l2.Clamped)
	require.Len(t, l2.Warnings, 1)
	assert.Equal(t, costing.WarnByProductCreditClamped, l2.Warnings[0].Code)
	assert.Equal(t, []string{"feathers"}, l2.Warnings[0].Parts)
}

func TestApplyByProductCredit_Rejects(t *testing.T) {
	l1 := &costing.Level1{JointCostPoolEUR: d("100")}

	_, err := costing.ApplyByProductCredit(l1, []costing.ByProduct{
		{Code: "offal", WeightKg: d("1"), MarketPricePerKg: d("1")},
		{Code: "offal", WeightKg: d("1"), MarketPricePerKg: d("1")},
	})
	assert.ErrorIs(t, err, costing.ErrInputValidation)

	_, err = costing.ApplyByProductCredit(l1, []costing.ByProduct{
		{Code: "offal", WeightKg: d("-1"), MarketPricePerKg: d("1")},
	})
	assert.ErrorIs(t, err, costing.ErrInputValidation)
}

func TestPipeline_ClampedCreditAllocatesZero(t *testing.T) {
	in := workedExample()
	in.ByProducts[0].MarketPricePerKg = d("50")

	res := run(t, in)

	assert.True(t, res.Level2.Clamped)
	for _, a := range res.Level3.Allocations {
		assert.True(t, a.AllocatedCostEUR.IsZero(), a.Code)
	}
	assert.Equal(t, costing.WarnByProductCreditClamped, res.Warnings[0].Code)
}

func TestValidateDocumentedLoss(t *testing.T) {
	tests := []struct {
		name    string
		loss    string
		griller string
		wantErr bool
	}{
		{"zero", "0", "1760", false},
		{"recorded", "100", "1760", false},
		{"whole griller lost", "1760", "1760", false},
		{"negative", "-280", "1760", true},
		{"heavier than griller", "1761", "1760", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := costing.ValidateDocumentedLoss(d(tt.loss), d(tt.griller))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var ive *costing.InputValidationError
			require.ErrorAs(t, err, &ive)
			assert.Equal(t, costing.StageJointCostPool, ive.Stage)
			assert.Equal(t, "documented_loss_kg", ive.Field)
		})
	}
}

func TestPipeline_NegativeLossCannotHideExcessJointWeight(t *testing.T) {
	// GIVEN: 380 kg of extra breast cap offset by a -280 kg loss, so the
	// outputs sum exactly to the griller weight
	in := workedExample()
	in.JointProducts[0].WeightKg = d("1000")
	in.Batch.DocumentedLossKg = d("-280")

	// WHEN: Running the pipeline
	_, err := costing.NewEngine(costing.DefaultSettings()).Run(in)

	// THEN: The loss is refused instead of passing the mass balance
	var ive *costing.InputValidationError
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, "documented_loss_kg", ive.Field)
}

func TestMustParseDecimal(t *testing.T) {
	assert.True(t, d("1.05").Equal(costing.MustParseDecimal("1.05")))
	assert.Panics(t, func() { costing.MustParseDecimal("1,05") })
}
