/*
mini_svaso.go - SVASO one level deeper (Level4)

PURPOSE:
  Re-applies the SVASO formula inside one joint product: the parent's
  allocated_cost_eur becomes the pool and is redistributed over its sub-cuts
  by sub-cut relative value.

  The depth is fixed. Level3 splits the batch, Level4 splits a part, and there
  is no Level4-of-Level4. Each depth has its own typed record so the
  conservation invariant can be checked on its own:

    Σ sub_cut.allocated_cost_eur == parent.allocated_cost_eur

SEE ALSO:
  - svaso.go: allocateByRelativeValue, shared by both depths
*/
package costing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SubAllocation is the MiniSVASO split of one parent joint product.
type SubAllocation struct {
	ParentCode  string
	PoolEUR     decimal.Decimal
	ParentKg    decimal.Decimal
	Cuts        []Allocation
	KFactor     decimal.Decimal
	TotalCutsKg decimal.Decimal
}

// Level4 holds every sub-allocated parent.
type Level4 struct {
	Parents  []SubAllocation
	Warnings []Warning
	Audit    []AuditEntry
}

// Cut returns a sub-cut allocation by cut code.
func (l *Level4) Cut(code string) (Allocation, bool) {
	if l == nil {
		return Allocation{}, false
	}
	for _, p := range l.Parents {
		if a, ok := findAllocation(p.Cuts, code); ok {
			return a, true
		}
	}
	return Allocation{}, false
}

// Parent returns the sub-allocation of a parent part.
func (l *Level4) Parent(code string) (SubAllocation, bool) {
	if l == nil {
		return SubAllocation{}, false
	}
	for _, p := range l.Parents {
		if p.ParentCode == code {
			return p, true
		}
	}
	return SubAllocation{}, false
}

// AllocateMiniSVASO computes Level4. A non-empty only list limits which parents
// are split. Sub-cuts must reference a joint product present in Level3.
func AllocateMiniSVASO(l3 *Level3, cuts []SubCut, only []string, tolerancePct decimal.Decimal) (*Level4, error) {
	if l3 == nil {
		return nil, invalid(StageMiniSVASO, "level3", "missing SVASO allocation")
	}

	byParent := make(map[string][]SubCut)
	seenCut := make(map[string]bool, len(cuts))
	for _, c := range cuts {
		if c.CutCode == "" {
			return nil, invalid(StageMiniSVASO, "cut_code", "sub-cut of %q has no code", c.ParentCode)
		}
		if seenCut[c.CutCode] {
			return nil, invalid(StageMiniSVASO, "cut_code", "duplicate sub-cut %q", c.CutCode)
		}
		seenCut[c.CutCode] = true
		if _, ok := l3.Allocation(c.ParentCode); !ok {
			return nil, invalid(StageMiniSVASO, "parent_code", "sub-cut %q references unknown joint product %q", c.CutCode, c.ParentCode)
		}
		byParent[c.ParentCode] = append(byParent[c.ParentCode], c)
	}

	allowed := make(map[string]bool, len(only))
	for _, code := range only {
		allowed[code] = true
	}

	l4 := &Level4{}
	// Level3 order keeps the output deterministic.
	for _, parent := range l3.Allocations {
		children := byParent[parent.Code]
		if len(children) == 0 {
			continue
		}
		if len(allowed) > 0 && !allowed[parent.Code] {
			continue
		}

		lines := make([]allocationLine, len(children))
		cutsKg := decimal.Zero
		for i, c := range children {
			lines[i] = allocationLine{code: c.CutCode, weightKg: c.WeightKg, pricePerKg: c.MarketPricePerKg}
			cutsKg = cutsKg.Add(c.WeightKg)
		}

		split, err := allocateByRelativeValue(StageMiniSVASO, parent.AllocatedCostEUR, lines)
		if err != nil {
			return nil, err
		}

		conserved := decimal.Zero
		for _, a := range split.allocations {
			conserved = conserved.Add(a.AllocatedCostEUR)
		}
		if !conserved.Equal(parent.AllocatedCostEUR) {
			return nil, degenerate(StageMiniSVASO, "allocated_cost_eur",
				"%s: sub-cuts carry %s of %s", parent.Code, conserved, parent.AllocatedCostEUR)
		}

		limit := parent.WeightKg.Add(parent.WeightKg.Mul(tolerancePct))
		if cutsKg.GreaterThan(limit) {
			names := []string{parent.Code}
			for _, c := range children {
				names = append(names, c.CutCode)
			}
			l4.Warnings = append(l4.Warnings, Warning{
				Code:  WarnSubCutMassBalance,
				Stage: StageMiniSVASO,
				Message: fmt.Sprintf("sub-cuts of %s weigh %s kg, more than the parent's %s kg",
					parent.Code, cutsKg.StringFixed(3), parent.WeightKg.StringFixed(3)),
				Parts: names,
			})
		}

		for _, e := range split.audit {
			e.Subject = parent.Code + ":" + e.Subject
			l4.Audit = append(l4.Audit, e)
		}
		l4.Parents = append(l4.Parents, SubAllocation{
			ParentCode:  parent.Code,
			PoolEUR:     parent.AllocatedCostEUR,
			ParentKg:    parent.WeightKg,
			Cuts:        split.allocations,
			KFactor:     split.kFactor,
			TotalCutsKg: cutsKg,
		})
	}
	return l4, nil
}
