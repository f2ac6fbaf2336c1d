/*
svaso.go - Sales Value at Split-Off allocation (Level3)

PURPOSE:
  Splits the net joint cost across joint products in proportion to their
  market value at the split-off point.

FORMULAS:
  relative_value_j         = weight_kg_j * market_price_per_kg_j
  share_j                  = relative_value_j / Σ relative_value
  allocated_cost_j         = share_j * net_joint_cost
  allocated_cost_per_kg_j  = allocated_cost_j / weight_kg_j
  k_factor                 = net_joint_cost / Σ relative_value

  The k-factor turns market value into cost in one multiplication:
  allocated_cost_per_kg_j ≈ k_factor * market_price_per_kg_j.

EXACTNESS:
  Shares are computed at decimal.DivisionPrecision. The line with the largest
  relative value absorbs the rounding residual so that Σ allocated_cost_j equals
  the pool exactly. The same routine serves MiniSVASO (mini_svaso.go).

EXAMPLE (breast_cap 620 kg @ 4.20, net joint cost 3226, Σ RV 4366):
  k_factor                = 3226 / 4366 ≈ 0.7389
  allocated_cost_per_kg   ≈ 0.7389 * 4.20 ≈ 3.104

SEE ALSO:
  - mini_svaso.go: one level deeper within a joint product
  - massbalance.go: weight conservation check attached to Level3
*/
package costing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Allocation is one line of an SVASO split: a joint product or a sub-cut.
type Allocation struct {
	Code               string
	WeightKg           decimal.Decimal
	MarketPricePerKg   decimal.Decimal
	RelativeValue      decimal.Decimal
	Share              decimal.Decimal
	AllocatedCostEUR   decimal.Decimal
	AllocatedCostPerKg decimal.Decimal
}

// Level3 is the SVASO allocation across joint products.
type Level3 struct {
	NetJointCostEUR    decimal.Decimal
	Allocations        []Allocation
	TotalRelativeValue decimal.Decimal
	KFactor            decimal.Decimal
	KFactorBand        KFactorBand
	MassBalance        MassBalanceCheck
	Warnings           []Warning
	Audit              []AuditEntry
}

// Allocation returns the line for a part code.
func (l *Level3) Allocation(code string) (Allocation, bool) {
	if l == nil {
		return Allocation{}, false
	}
	return findAllocation(l.Allocations, code)
}

// AllocateSVASO computes Level3 from the net joint cost.
func AllocateSVASO(l2 *Level2, parts []JointProduct, bands KFactorThresholds) (*Level3, error) {
	if l2 == nil {
		return nil, invalid(StageSVASO, "level2", "missing by-product credit")
	}
	if len(parts) == 0 {
		return nil, invalid(StageSVASO, "joint_products", "at least one joint product is required")
	}

	lines := make([]allocationLine, len(parts))
	for i, p := range parts {
		lines[i] = allocationLine{code: p.PartCode, weightKg: p.WeightKg, pricePerKg: p.MarketPricePerKg}
	}

	split, err := allocateByRelativeValue(StageSVASO, l2.NetJointCostEUR, lines)
	if err != nil {
		return nil, err
	}

	l3 := &Level3{
		NetJointCostEUR:    l2.NetJointCostEUR,
		Allocations:        split.allocations,
		TotalRelativeValue: split.totalRelativeValue,
		KFactor:            split.kFactor,
		KFactorBand:        bands.Classify(split.kFactor),
		Audit:              split.audit,
	}
	if l3.KFactorBand == BandStressed {
		l3.Warnings = append(l3.Warnings, Warning{
			Code:    WarnKFactorStressed,
			Stage:   StageSVASO,
			Message: "k-factor " + split.kFactor.StringFixed(4) + " is at or above the stressed threshold " + bands.StressedFrom.String(),
		})
	}
	return l3, nil
}

// =============================================================================
// SHARED ALLOCATION ROUTINE
// =============================================================================

type allocationLine struct {
	code       string
	weightKg   decimal.Decimal
	pricePerKg decimal.Decimal
}

type allocationSplit struct {
	allocations        []Allocation
	totalRelativeValue decimal.Decimal
	kFactor            decimal.Decimal
	audit              []AuditEntry
}

const (
	subjectTotalRelativeValue = "total_relative_value"
	subjectKFactor            = "k_factor"
)

// reservedAuditSubject reports whether a line code would shadow a batch-level
// audit subject or one of the per-line "code/suffix" subjects.
func reservedAuditSubject(code string) bool {
	return code == subjectTotalRelativeValue || code == subjectKFactor || strings.Contains(code, "/")
}

// allocateByRelativeValue is the single SVASO formula used at every depth.
func allocateByRelativeValue(stage Stage, pool decimal.Decimal, lines []allocationLine) (allocationSplit, error) {
	if pool.IsNegative() {
		return allocationSplit{}, invalid(stage, "pool", "must be >= 0, got %s", pool)
	}

	seen := make(map[string]bool, len(lines))
	total := decimal.Zero
	rvs := make([]decimal.Decimal, len(lines))
	for i, l := range lines {
		if l.code == "" {
			return allocationSplit{}, invalid(stage, "code", "line %d has no code", i)
		}
		if reservedAuditSubject(l.code) {
			return allocationSplit{}, invalid(stage, "code", "%q is reserved for batch-level audit entries", l.code)
		}
		if seen[l.code] {
			return allocationSplit{}, invalid(stage, "code", "duplicate code %q", l.code)
		}
		seen[l.code] = true
		if !l.weightKg.IsPositive() {
			return allocationSplit{}, invalid(stage, "weight_kg", "%s: must be > 0, got %s", l.code, l.weightKg)
		}
		if l.pricePerKg.IsNegative() {
			return allocationSplit{}, invalid(stage, "market_price_per_kg", "%s: must be >= 0, got %s", l.code, l.pricePerKg)
		}
		rvs[i] = l.weightKg.Mul(l.pricePerKg)
		total = total.Add(rvs[i])
	}
	if !total.IsPositive() {
		return allocationSplit{}, degenerate(stage, "relative_value", "sum of relative values is zero")
	}

	k := pool.Div(total)
	out := allocationSplit{
		allocations:        make([]Allocation, len(lines)),
		totalRelativeValue: total,
		kFactor:            k,
	}

	// the largest relative value takes the residual (first on ties)
	anchor := 0
	for i := range rvs {
		if rvs[i].GreaterThan(rvs[anchor]) {
			anchor = i
		}
	}

	allocated := decimal.Zero
	for i, l := range lines {
		share := rvs[i].Div(total)
		cost := share.Mul(pool)
		out.allocations[i] = Allocation{
			Code:             l.code,
			WeightKg:         l.weightKg,
			MarketPricePerKg: l.pricePerKg,
			RelativeValue:    rvs[i],
			Share:            share,
			AllocatedCostEUR: cost,
		}
		if i != anchor {
			allocated = allocated.Add(cost)
		}
	}
	residualCost := pool.Sub(allocated)
	if residualCost.IsNegative() {
		residualCost = decimal.Zero
	}
	out.allocations[anchor].AllocatedCostEUR = residualCost

	for i := range out.allocations {
		a := &out.allocations[i]
		a.AllocatedCostPerKg = a.AllocatedCostEUR.Div(a.WeightKg)

		costEntry := audit(stage, a.Code+"/cost", "share * pool_eur", a.AllocatedCostEUR,
			"share", a.Share, "pool_eur", pool)
		if i == anchor {
			costEntry = audit(stage, a.Code+"/cost", "pool_eur - sum(other_allocated_cost_eur)", a.AllocatedCostEUR,
				"pool_eur", pool, "other_allocated_cost_eur", allocated)
		}
		out.audit = append(out.audit,
			audit(stage, a.Code, "weight_kg * market_price_per_kg", a.RelativeValue,
				"weight_kg", a.WeightKg, "market_price_per_kg", a.MarketPricePerKg),
			audit(stage, a.Code+"/share", "relative_value / total_relative_value", a.Share,
				"relative_value", a.RelativeValue, "total_relative_value", total),
			costEntry,
			audit(stage, a.Code+"/per_kg", "allocated_cost_eur / weight_kg", a.AllocatedCostPerKg,
				"allocated_cost_eur", a.AllocatedCostEUR, "weight_kg", a.WeightKg),
		)
	}
	out.audit = append(out.audit,
		audit(stage, subjectTotalRelativeValue, "sum(relative_value)", total),
		audit(stage, subjectKFactor, "pool_eur / total_relative_value", k,
			"pool_eur", pool, "total_relative_value", total),
	)
	return out, nil
}

func findAllocation(allocs []Allocation, code string) (Allocation, bool) {
	for _, a := range allocs {
		if a.Code == code {
			return a, true
		}
	}
	return Allocation{}, false
}
