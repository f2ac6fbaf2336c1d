package costing_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/joint-cost-engine/costing"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var d = costing.MustParseDecimal

// workedExample is the reference batch: 2500 kg live at 1.10/kg, 1760 kg
// griller, four joint products, offal as by-product, 100 kg recorded loss.
func workedExample() costing.PipelineInput {
	return costing.PipelineInput{
		Batch: costing.Batch{
			BatchID:          "B-2025-001",
			InputLiveKg:      d("2500"),
			InputCount:       1000,
			PricePerKg:       d("1.10"),
			SlaughterFeeEUR:  d("500"),
			GrillerWeightKg:  d("1760"),
			DocumentedLossKg: d("100"),
		},
		Profile: costing.BatchProfile{
			Name:           "internal-fixed-cuts",
			FixedPartCodes: []string{"breast_cap", "leg_quarter", "wings", "back_carcass"},
		},
		JointProducts: []costing.JointProduct{
			{PartCode: "breast_cap", WeightKg: d("620"), MarketPricePerKg: d("4.20")},
			{PartCode: "leg_quarter", WeightKg: d("460"), MarketPricePerKg: d("2.80")},
			{PartCode: "wings", WeightKg: d("140"), MarketPricePerKg: d("2.10")},
			{PartCode: "back_carcass", WeightKg: d("360"), MarketPricePerKg: d("0.50")},
		},
		ByProducts: []costing.ByProduct{
			{Code: "offal", WeightKg: d("80"), MarketPricePerKg: d("0.30")},
		},
	}
}

// withSKUs adds a breast fillet SKU that fails NRV and a leg SKU that passes.
func withSKUs(in costing.PipelineInput) costing.PipelineInput {
	in.SKUs = []costing.SkuDefinition{
		{
			SKUCode: "SKU-BREAST-500",
			Name:    "Breast cap 500g tray",
			Source:  costing.SourceRef{Kind: costing.SourcePart, Code: "breast_cap"},
			FixedAdders: []costing.CostAdder{
				{Label: "tray", EURPerKg: d("0.10")},
			},
		},
		{
			SKUCode: "SKU-LEG-1KG",
			Source:  costing.SourceRef{Kind: costing.SourcePart, Code: "leg_quarter"},
		},
	}
	in.ABCDrivers = []costing.ABCDriver{
		{SKUCode: "SKU-BREAST-500", Activity: "cutting", RatePerUnit: d("0.15"), DriverQuantity: d("1")},
		{SKUCode: "SKU-BREAST-500", Activity: "packing", RatePerUnit: d("0.05"), DriverQuantity: d("2")},
		{SKUCode: "SKU-LEG-1KG", Activity: "packing", RatePerUnit: d("0.08"), DriverQuantity: d("1")},
	}
	in.NRVInputs = []costing.NRVInput{
		{SKUCode: "SKU-BREAST-500", StandardPricePerKg: d("3.40")},
		{SKUCode: "SKU-LEG-1KG", StandardPricePerKg: d("3.00"), SellingCostPerKg: d("0.20")},
	}
	return in
}

func run(t *testing.T, in costing.PipelineInput) *costing.CostAllocationResult {
	t.Helper()
	res, err := costing.NewEngine(costing.DefaultSettings()).Run(in)
	require.NoError(t, err)
	return res
}

func f(v decimal.Decimal) float64 { return v.InexactFloat64() }

// =============================================================================
// WORKED EXAMPLE
// =============================================================================

func TestPipeline_WorkedExample(t *testing.T) {
	// GIVEN: The reference batch
	// WHEN: Running the fixed-cuts profile
	// THEN: Every level matches the hand calculation

	res := run(t, workedExample())

	assert.True(t, d("2750").Equal(res.Level0.LandedCostEUR), "landed cost")
	assert.True(t, d("1.1").Equal(res.Level0.LandedCostPerKg))
	assert.True(t, d("3250").Equal(res.Level1.JointCostPoolEUR), "joint cost pool")
	assert.True(t, d("0.704").Equal(res.Level1.GrillerYieldPct), "griller yield")
	assert.True(t, d("24").Equal(res.Level2.CreditEUR), "by-product credit")
	assert.True(t, d("3226").Equal(res.Level2.NetJointCostEUR), "net joint cost")
	assert.False(t, res.Level2.Clamped)

	l3 := res.Level3
	assert.True(t, d("4366").Equal(l3.TotalRelativeValue), "sum of relative values")
	assert.Equal(t, "0.7389", l3.KFactor.StringFixed(4))
	assert.Equal(t, costing.BandProfitable, l3.KFactorBand)

	breast, ok := l3.Allocation("breast_cap")
	require.True(t, ok)
	assert.InDelta(t, 3.104, f(breast.AllocatedCostPerKg), 0.001)

	total := decimal.Zero
	for _, a := range l3.Allocations {
		total = total.Add(a.AllocatedCostPerKg.Mul(a.WeightKg))
	}
	assert.InDelta(t, 3226.0, f(total), 1e-9, "Σ cost_per_kg * weight reproduces the net joint cost")

	assert.True(t, l3.MassBalance.WithinTolerance)
	assert.True(t, l3.MassBalance.DeviationKg.IsZero())
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []costing.Stage{
		costing.StageLandedCost, costing.StageJointCostPool, costing.StageByProductCredit,
		costing.StageSVASO, costing.StageABC, costing.StageSKUCost, costing.StageNRV,
	}, res.StagesRun)
}

func TestPipeline_KFactorReproducibleFromAudit(t *testing.T) {
	res := run(t, workedExample())

	entry, ok := res.Audit.Find(costing.StageSVASO, "k_factor")
	require.True(t, ok)

	pool, ok := entry.Input("pool_eur")
	require.True(t, ok)
	rv, ok := entry.Input("total_relative_value")
	require.True(t, ok)

	assert.Equal(t, "pool_eur / total_relative_value", entry.Formula)
	assert.True(t, pool.Div(rv).Equal(entry.Result), "recomputed k-factor must match exactly")
	assert.True(t, entry.Result.Equal(res.Level3.KFactor))
	assert.True(t, pool.Equal(res.Level2.NetJointCostEUR))
}

func TestPipeline_PartCodeCannotShadowKFactorEntry(t *testing.T) {
	// GIVEN: A fixed profile whose wings line is coded like the k-factor entry
	in := workedExample()
	in.Profile.FixedPartCodes[2] = "k_factor"
	in.JointProducts[2].PartCode = "k_factor"

	// WHEN: Running the pipeline
	_, err := costing.NewEngine(costing.DefaultSettings()).Run(in)

	// THEN: The code is refused before any audit entry is written
	var ive *costing.InputValidationError
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, costing.StageSVASO, ive.Stage)
	assert.Equal(t, "code", ive.Field)
}

func TestPipeline_Idempotent(t *testing.T) {
	in := withSKUs(workedExample())

	first := run(t, in)
	second := run(t, in)

	require.Equal(t, len(first.Audit), len(second.Audit))
	for i := range first.Audit {
		assert.Equal(t, first.Audit[i].Subject, second.Audit[i].Subject)
		assert.Equal(t, first.Audit[i].Result.String(), second.Audit[i].Result.String(), first.Audit[i].Subject)
	}
	assert.Equal(t, first.Warnings, second.Warnings)
}

func TestPipeline_DoesNotMutateInput(t *testing.T) {
	in := withSKUs(workedExample())
	before := in.Clone()

	run(t, in)

	assert.Equal(t, before.JointProducts, in.JointProducts)
	assert.Equal(t, before.SKUs, in.SKUs)
}

// =============================================================================
// SKU LEVELS
// =============================================================================

func TestPipeline_SKUCostAndNRV(t *testing.T) {
	// GIVEN: A breast SKU priced below its cost and a leg SKU priced above
	// WHEN: Running the full waterfall
	// THEN: SKU costs add ABC and adders; the breast SKU gets an NRV warning only

	res := run(t, withSKUs(workedExample()))

	abc, ok := res.Level5.SKU("SKU-BREAST-500")
	require.True(t, ok)
	assert.True(t, d("0.25").Equal(abc.CostPerKg))

	breast, _ := res.Level3.Allocation("breast_cap")
	cost, ok := res.Level6.SKU("SKU-BREAST-500")
	require.True(t, ok)
	assert.True(t, breast.AllocatedCostPerKg.Equal(cost.MeatCostPerKg))
	assert.True(t, breast.AllocatedCostPerKg.Add(d("0.35")).Equal(cost.CostPerKg))

	breastNRV, _ := res.Level7.SKU("SKU-BREAST-500")
	assert.False(t, breastNRV.Pass)
	assert.True(t, breastNRV.Variance.IsNegative())

	legNRV, _ := res.Level7.SKU("SKU-LEG-1KG")
	assert.True(t, legNRV.Pass)
	assert.True(t, d("2.80").Equal(legNRV.NRVPerKg))

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, costing.WarnNRVShortfall, res.Warnings[0].Code)
	assert.Equal(t, []string{"SKU-BREAST-500"}, res.Warnings[0].Parts)

	// advisory: cost is reported unchanged
	assert.True(t, cost.CostPerKg.Equal(breastNRV.CostPerKg))
}

func TestPipeline_NRVForUnknownSKU(t *testing.T) {
	in := withSKUs(workedExample())
	in.NRVInputs = append(in.NRVInputs, costing.NRVInput{SKUCode: "SKU-GHOST", StandardPricePerKg: d("1")})

	_, err := costing.NewEngine(costing.DefaultSettings()).Run(in)
	assert.ErrorIs(t, err, costing.ErrInputValidation)
}

func TestPipeline_SKUWithUnknownSource(t *testing.T) {
	in := withSKUs(workedExample())
	in.SKUs[0].Source = costing.SourceRef{Kind: costing.SourceSubCut, Code: "inner_fillet"}

	_, err := costing.NewEngine(costing.DefaultSettings()).Run(in)

	var ive *costing.InputValidationError
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, costing.StageSKUCost, ive.Stage)
}

func TestPipeline_SKUWithoutSourceKindUsesPart(t *testing.T) {
	// GIVEN: The leg SKU with no source kind set
	in := withSKUs(workedExample())
	in.SKUs[1].Source = costing.SourceRef{Code: "leg_quarter"}

	// WHEN: Running the pipeline
	res := run(t, in)

	// THEN: The SKU is costed from the leg quarter allocation
	leg, ok := res.Level3.Allocation("leg_quarter")
	require.True(t, ok)
	sku, ok := res.Level6.SKU("SKU-LEG-1KG")
	require.True(t, ok)
	assert.True(t, leg.AllocatedCostPerKg.Equal(sku.MeatCostPerKg), "meat cost %s, leg %s", sku.MeatCostPerKg, leg.AllocatedCostPerKg)
}

// =============================================================================
// PROFILES
// =============================================================================

func TestPipeline_WholeBirdOnly(t *testing.T) {
	// GIVEN: A whole-bird profile and a SKU sourced from a part code
	// WHEN: Running the pipeline
	// THEN: SVASO is skipped and the SKU draws the griller cost

	in := withSKUs(workedExample())
	in.Profile = costing.BatchProfile{Name: "whole-bird-only", WholeBirdOnly: true}
	in.JointProducts = nil

	res := run(t, in)

	assert.Equal(t, []costing.Stage{
		costing.StageLandedCost, costing.StageJointCostPool,
		costing.StageABC, costing.StageSKUCost, costing.StageNRV,
	}, res.StagesRun)
	assert.Nil(t, res.Level2)
	assert.Nil(t, res.Level3)

	leg, ok := res.Level6.SKU("SKU-LEG-1KG")
	require.True(t, ok)
	assert.True(t, res.Level1.GrillerCostPerKg.Equal(leg.MeatCostPerKg))
	assert.Equal(t, "1.8466", res.Level1.GrillerCostPerKg.StringFixed(4))
}

func TestPipeline_FixedProfileMissingPart(t *testing.T) {
	in := workedExample()
	in.JointProducts = in.JointProducts[:3]

	_, err := costing.NewEngine(costing.DefaultSettings()).Run(in)

	var ive *costing.InputValidationError
	require.ErrorAs(t, err, &ive)
	assert.Equal(t, costing.StageSVASO, ive.Stage)
	assert.Contains(t, ive.Reason, "back_carcass")
}

func TestPipeline_FixedProfileExtraPart(t *testing.T) {
	in := workedExample()
	in.JointProducts = append(in.JointProducts, costing.JointProduct{PartCode: "feet", WeightKg: d("10"), MarketPricePerKg: d("0.9")})

	_, err := costing.NewEngine(costing.DefaultSettings()).Run(in)

	require.ErrorIs(t, err, costing.ErrInputValidation)
	assert.Contains(t, err.Error(), "feet")
}

func TestPipeline_DynamicProfileRequiresParts(t *testing.T) {
	in := workedExample()
	in.Profile = costing.BatchProfile{Name: "external-dynamic-cuts", DynamicJointProducts: true}
	in.JointProducts = nil

	_, err := costing.NewEngine(costing.DefaultSettings()).Run(in)
	assert.ErrorIs(t, err, costing.ErrInputValidation)
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name    string
		profile costing.BatchProfile
		want    []costing.Stage
	}{
		{
			name:    "fixed cuts",
			profile: costing.BatchProfile{Name: "p"},
			want: []costing.Stage{costing.StageLandedCost, costing.StageJointCostPool, costing.StageByProductCredit,
				costing.StageSVASO, costing.StageABC, costing.StageSKUCost, costing.StageNRV},
		},
		{
			name:    "mini svaso and routes",
			profile: costing.BatchProfile{Name: "p", MiniSVASOEnabled: true, RoutesEnabled: true},
			want: []costing.Stage{costing.StageLandedCost, costing.StageJointCostPool, costing.StageByProductCredit,
				costing.StageSVASO, costing.StageMiniSVASO, costing.StageProcessChain,
				costing.StageABC, costing.StageSKUCost, costing.StageNRV},
		},
		{
			name:    "whole bird",
			profile: costing.BatchProfile{Name: "p", WholeBirdOnly: true},
			want: []costing.Stage{costing.StageLandedCost, costing.StageJointCostPool,
				costing.StageABC, costing.StageSKUCost, costing.StageNRV},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, costing.Plan(tt.profile))
		})
	}
}

func TestBatchProfile_Validate(t *testing.T) {
	assert.Error(t, costing.BatchProfile{}.Validate(), "name required")
	assert.Error(t, costing.BatchProfile{Name: "x"}.Validate(), "fixed profile without codes")
	assert.Error(t, costing.BatchProfile{Name: "x", WholeBirdOnly: true, RoutesEnabled: true}.Validate())
	assert.Error(t, costing.BatchProfile{Name: "x", FixedPartCodes: []string{"a", "a"}}.Validate())
	assert.NoError(t, costing.BatchProfile{Name: "x", DynamicJointProducts: true}.Validate())
}

func TestProfileSet_Lookup(t *testing.T) {
	set := costing.ProfileSet{"a": {Name: "a", DynamicJointProducts: true, MiniSVASOParts: []string{"x"}}}

	p, err := set.Lookup("a")
	require.NoError(t, err)
	p.MiniSVASOParts[0] = "changed"
	assert.Equal(t, "x", set["a"].MiniSVASOParts[0], "lookup returns a copy")

	_, err = set.Lookup("missing")
	assert.True(t, errors.Is(err, costing.ErrUnknownProfile))
	assert.True(t, costing.IsClientError(err))
}

// =============================================================================
// MASS BALANCE
// =============================================================================

func TestPipeline_MassBalanceWarningListsPartsHeaviestFirst(t *testing.T) {
	// GIVEN: Leg quarters recorded 60 kg heavier than the griller allows
	// WHEN: Running the pipeline
	// THEN: A non-fatal warning names every output part, heaviest first

	in := workedExample()
	in.JointProducts[1].WeightKg = d("520")

	res := run(t, in)

	require.Len(t, res.Warnings, 1)
	w := res.Warnings[0]
	assert.Equal(t, costing.WarnMassBalance, w.Code)
	assert.Equal(t, []string{"breast_cap", "leg_quarter", "back_carcass", "wings", "offal"}, w.Parts)
	assert.False(t, res.Level3.MassBalance.WithinTolerance)
	assert.True(t, d("60").Equal(res.Level3.MassBalance.DeviationKg))
	assert.True(t, d("8.8").Equal(res.Level3.MassBalance.ToleranceKg))
}

func TestPipeline_MassBalanceWithinTolerance(t *testing.T) {
	in := workedExample()
	in.JointProducts[3].WeightKg = d("365") // +5 kg, under 0.5% of 1760

	res := run(t, in)
	assert.True(t, res.Level3.MassBalance.WithinTolerance)
	assert.Empty(t, res.Warnings)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func randomDecimal(r *rand.Rand, lo, hi int64, places int32) decimal.Decimal {
	scale := int64(1)
	for i := int32(0); i < places; i++ {
		scale *= 10
	}
	v := lo*scale + r.Int63n((hi-lo)*scale+1)
	return decimal.New(v, -places)
}

func TestProperties_RandomBatches(t *testing.T) {
	// GIVEN: 200 random but valid batches (fixed seed)
	// WHEN: Running SVASO and MiniSVASO
	// THEN: Shares sum to 1, costs are non-negative and conserved at both depths

	r := rand.New(rand.NewSource(42))
	tolerance := d("0.000000001")

	for i := 0; i < 200; i++ {
		n := 1 + r.Intn(8)
		parts := make([]costing.JointProduct, n)
		for j := range parts {
			parts[j] = costing.JointProduct{
				PartCode:         string(rune('a' + j)),
				WeightKg:         randomDecimal(r, 1, 1000, 3),
				MarketPricePerKg: randomDecimal(r, 0, 10, 2),
			}
		}
		parts[0].MarketPricePerKg = parts[0].MarketPricePerKg.Add(d("0.01"))
		pool := randomDecimal(r, 0, 10000, 2)

		l3, err := costing.AllocateSVASO(&costing.Level2{NetJointCostEUR: pool}, parts, costing.DefaultSettings().KFactor)
		require.NoError(t, err)

		shares, costs := decimal.Zero, decimal.Zero
		for _, a := range l3.Allocations {
			shares = shares.Add(a.Share)
			costs = costs.Add(a.AllocatedCostEUR)
			assert.False(t, a.AllocatedCostPerKg.IsNegative(), "iteration %d: %s", i, a.Code)
		}
		assert.True(t, shares.Sub(decimal.NewFromInt(1)).Abs().LessThanOrEqual(tolerance), "iteration %d: shares sum to %s", i, shares)
		assert.True(t, costs.Equal(pool), "iteration %d: allocated %s of %s", i, costs, pool)

		cuts := []costing.SubCut{
			{ParentCode: "a", CutCode: "a1", WeightKg: randomDecimal(r, 1, 500, 3), MarketPricePerKg: randomDecimal(r, 1, 12, 2)},
			{ParentCode: "a", CutCode: "a2", WeightKg: randomDecimal(r, 1, 500, 3), MarketPricePerKg: randomDecimal(r, 0, 12, 2)},
		}
		l4, err := costing.AllocateMiniSVASO(l3, cuts, nil, d("0.005"))
		require.NoError(t, err)

		parent, _ := l3.Allocation("a")
		sub, ok := l4.Parent("a")
		require.True(t, ok)
		conserved := decimal.Zero
		for _, c := range sub.Cuts {
			conserved = conserved.Add(c.AllocatedCostEUR)
			assert.False(t, c.AllocatedCostPerKg.IsNegative())
		}
		assert.True(t, conserved.Equal(parent.AllocatedCostEUR), "iteration %d", i)
	}
}
