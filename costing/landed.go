/*
landed.go - Level0 landed cost and Level1 joint cost pool

PURPOSE:
  Level0 prices the live purchase:
    landed_cost_eur    = input_live_kg * price_per_kg + Σ extra_costs
    landed_cost_per_kg = landed_cost_eur / input_live_kg

  Level1 adds the slaughter fee and scales to griller output:
    joint_cost_pool_eur = landed_cost_eur + slaughter_fee_eur
    griller_yield_pct   = griller_weight_kg / input_live_kg
    griller_cost_per_kg = joint_cost_pool_eur / griller_weight_kg

  The pool is the cost at the split-off point.

SEE ALSO:
  - byproduct.go: Level2 credits the pool
*/
package costing

import (
	"github.com/shopspring/decimal"
)

// Level0 is the landed live-weight cost.
type Level0 struct {
	InputLiveKg     decimal.Decimal
	InputCount      int
	PricePerKg      decimal.Decimal
	ExtraCostsEUR   decimal.Decimal
	LandedCostEUR   decimal.Decimal
	LandedCostPerKg decimal.Decimal
	Audit           []AuditEntry
}

// CalculateLandedCost computes Level0. Weight and count must be positive.
func CalculateLandedCost(b Batch) (*Level0, error) {
	if !b.InputLiveKg.IsPositive() {
		return nil, invalid(StageLandedCost, "input_live_kg", "must be > 0, got %s", b.InputLiveKg)
	}
	if b.InputCount <= 0 {
		return nil, invalid(StageLandedCost, "input_count", "must be > 0, got %d", b.InputCount)
	}
	if b.PricePerKg.IsNegative() {
		return nil, invalid(StageLandedCost, "price_per_kg", "must be >= 0, got %s", b.PricePerKg)
	}

	extras := decimal.Zero
	for _, c := range b.ExtraCosts {
		if c.AmountEUR.IsNegative() {
			return nil, invalid(StageLandedCost, "extra_costs", "%q must be >= 0, got %s", c.Label, c.AmountEUR)
		}
		extras = extras.Add(c.AmountEUR)
	}

	purchase := b.InputLiveKg.Mul(b.PricePerKg)
	landed := purchase.Add(extras)
	perKg := landed.Div(b.InputLiveKg)

	return &Level0{
		InputLiveKg:     b.InputLiveKg,
		InputCount:      b.InputCount,
		PricePerKg:      b.PricePerKg,
		ExtraCostsEUR:   extras,
		LandedCostEUR:   landed,
		LandedCostPerKg: perKg,
		Audit: []AuditEntry{
			audit(StageLandedCost, "", "input_live_kg * price_per_kg + extra_costs_eur", landed,
				"input_live_kg", b.InputLiveKg, "price_per_kg", b.PricePerKg, "extra_costs_eur", extras),
			audit(StageLandedCost, "per_kg", "landed_cost_eur / input_live_kg", perKg,
				"landed_cost_eur", landed, "input_live_kg", b.InputLiveKg),
		},
	}, nil
}

// Level1 is the joint cost pool at split-off.
type Level1 struct {
	LandedCostEUR    decimal.Decimal
	SlaughterFeeEUR  decimal.Decimal
	JointCostPoolEUR decimal.Decimal
	GrillerWeightKg  decimal.Decimal
	GrillerYieldPct  decimal.Decimal // fraction, 0.704 = 70.4%
	GrillerCostPerKg decimal.Decimal
	Audit            []AuditEntry
}

// BuildJointCostPool computes Level1 from Level0.
func BuildJointCostPool(l0 *Level0, slaughterFeeEUR, grillerWeightKg decimal.Decimal) (*Level1, error) {
	if l0 == nil {
		return nil, invalid(StageJointCostPool, "level0", "missing landed cost")
	}
	if slaughterFeeEUR.IsNegative() {
		return nil, invalid(StageJointCostPool, "slaughter_fee_eur", "must be >= 0, got %s", slaughterFeeEUR)
	}
	if !grillerWeightKg.IsPositive() {
		return nil, degenerate(StageJointCostPool, "griller_weight_kg", "must be > 0, got %s", grillerWeightKg)
	}
	if grillerWeightKg.GreaterThan(l0.InputLiveKg) {
		return nil, invalid(StageJointCostPool, "griller_weight_kg",
			"griller weight %s exceeds live weight %s", grillerWeightKg, l0.InputLiveKg)
	}

	pool := l0.LandedCostEUR.Add(slaughterFeeEUR)
	yield := grillerWeightKg.Div(l0.InputLiveKg)
	perKg := pool.Div(grillerWeightKg)

	return &Level1{
		LandedCostEUR:    l0.LandedCostEUR,
		SlaughterFeeEUR:  slaughterFeeEUR,
		JointCostPoolEUR: pool,
		GrillerWeightKg:  grillerWeightKg,
		GrillerYieldPct:  yield,
		GrillerCostPerKg: perKg,
		Audit: []AuditEntry{
			audit(StageJointCostPool, "", "landed_cost_eur + slaughter_fee_eur", pool,
				"landed_cost_eur", l0.LandedCostEUR, "slaughter_fee_eur", slaughterFeeEUR),
			audit(StageJointCostPool, "griller_yield", "griller_weight_kg / input_live_kg", yield,
				"griller_weight_kg", grillerWeightKg, "input_live_kg", l0.InputLiveKg),
			audit(StageJointCostPool, "griller_per_kg", "joint_cost_pool_eur / griller_weight_kg", perKg,
				"joint_cost_pool_eur", pool, "griller_weight_kg", grillerWeightKg),
		},
	}, nil
}

// ValidateDocumentedLoss rejects a recorded loss that is negative or heavier
// than the griller it was cut from. A negative loss would offset excess joint
// weight and hide a mass-balance failure.
func ValidateDocumentedLoss(lossKg, grillerWeightKg decimal.Decimal) error {
	if lossKg.IsNegative() {
		return invalid(StageJointCostPool, "documented_loss_kg", "must be >= 0, got %s", lossKg)
	}
	if grillerWeightKg.IsPositive() && lossKg.GreaterThan(grillerWeightKg) {
		return invalid(StageJointCostPool, "documented_loss_kg",
			"loss %s exceeds griller weight %s", lossKg, grillerWeightKg)
	}
	return nil
}
