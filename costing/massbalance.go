package costing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// MassBalanceCheck is the physical-conservation record for one batch:
//
//	Σ joint_kg + Σ by_product_kg + documented_loss_kg ≈ griller_kg
type MassBalanceCheck struct {
	GrillerKg        decimal.Decimal
	JointKg          decimal.Decimal
	ByProductKg      decimal.Decimal
	DocumentedLossKg decimal.Decimal
	AccountedKg      decimal.Decimal
	DeviationKg      decimal.Decimal // accounted - griller, signed
	ToleranceKg      decimal.Decimal
	WithinTolerance  bool
}

// CheckMassBalance compares output weights to the griller weight.
func CheckMassBalance(grillerKg decimal.Decimal, joints []JointProduct, byProducts []ByProduct, lossKg, tolerancePct decimal.Decimal) MassBalanceCheck {
	jointKg := decimal.Zero
	for _, j := range joints {
		jointKg = jointKg.Add(j.WeightKg)
	}
	byKg := decimal.Zero
	for _, b := range byProducts {
		byKg = byKg.Add(b.WeightKg)
	}
	accounted := sumDecimals(jointKg, byKg, lossKg)
	deviation := accounted.Sub(grillerKg)
	tolerance := grillerKg.Mul(tolerancePct)

	return MassBalanceCheck{
		GrillerKg:        grillerKg,
		JointKg:          jointKg,
		ByProductKg:      byKg,
		DocumentedLossKg: lossKg,
		AccountedKg:      accounted,
		DeviationKg:      deviation,
		ToleranceKg:      tolerance,
		WithinTolerance:  deviation.Abs().LessThanOrEqual(tolerance),
	}
}

// Warning returns a mass_balance warning naming every output part, heaviest
// first, or nil when the check passed.
func (c MassBalanceCheck) Warning(joints []JointProduct, byProducts []ByProduct) *Warning {
	if c.WithinTolerance {
		return nil
	}

	type weighted struct {
		code string
		kg   decimal.Decimal
	}
	parts := make([]weighted, 0, len(joints)+len(byProducts))
	for _, j := range joints {
		parts = append(parts, weighted{j.PartCode, j.WeightKg})
	}
	for _, b := range byProducts {
		parts = append(parts, weighted{b.Code, b.WeightKg})
	}
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].kg.GreaterThan(parts[j].kg) })

	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = p.code
	}

	return &Warning{
		Code:  WarnMassBalance,
		Stage: StageSVASO,
		Message: fmt.Sprintf("outputs account for %s kg of %s kg griller weight (deviation %s kg, tolerance %s kg)",
			c.AccountedKg.StringFixed(3), c.GrillerKg.StringFixed(3), c.DeviationKg.StringFixed(3), c.ToleranceKg.StringFixed(3)),
		Parts: names,
	}
}
