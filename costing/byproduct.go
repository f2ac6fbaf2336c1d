package costing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ByProductLine is one credited by-product.
type ByProductLine struct {
	Code             string
	WeightKg         decimal.Decimal
	MarketPricePerKg decimal.Decimal
	CreditEUR        decimal.Decimal
}

// Level2 is the pool net of by-product credit.
type Level2 struct {
	JointCostPoolEUR decimal.Decimal
	Lines            []ByProductLine
	CreditEUR        decimal.Decimal
	NetJointCostEUR  decimal.Decimal
	Clamped          bool
	Warnings         []Warning
	Audit            []AuditEntry
}

// ApplyByProductCredit computes Level2:
//
//	credit         = Σ weight_kg * market_price_per_kg
//	net_joint_cost = max(0, joint_cost_pool_eur - credit)
//
// A credit larger than the pool clamps to zero and adds a warning.
func ApplyByProductCredit(l1 *Level1, byProducts []ByProduct) (*Level2, error) {
	if l1 == nil {
		return nil, invalid(StageByProductCredit, "level1", "missing joint cost pool")
	}

	seen := make(map[string]bool, len(byProducts))
	lines := make([]ByProductLine, 0, len(byProducts))
	var entries []AuditEntry
	credit := decimal.Zero

	for _, bp := range byProducts {
		if bp.Code == "" {
			return nil, invalid(StageByProductCredit, "code", "by-product code is required")
		}
		if seen[bp.Code] {
			return nil, invalid(StageByProductCredit, "code", "duplicate by-product %q", bp.Code)
		}
		seen[bp.Code] = true
		if bp.WeightKg.IsNegative() {
			return nil, invalid(StageByProductCredit, "weight_kg", "%s: must be >= 0, got %s", bp.Code, bp.WeightKg)
		}
		if bp.MarketPricePerKg.IsNegative() {
			return nil, invalid(StageByProductCredit, "market_price_per_kg", "%s: must be >= 0, got %s", bp.Code, bp.MarketPricePerKg)
		}

		lineCredit := bp.WeightKg.Mul(bp.MarketPricePerKg)
		credit = credit.Add(lineCredit)
		lines = append(lines, ByProductLine{
			Code:             bp.Code,
			WeightKg:         bp.WeightKg,
			MarketPricePerKg: bp.MarketPricePerKg,
			CreditEUR:        lineCredit,
		})
		entries = append(entries, audit(StageByProductCredit, bp.Code, "weight_kg * market_price_per_kg", lineCredit,
			"weight_kg", bp.WeightKg, "market_price_per_kg", bp.MarketPricePerKg))
	}

	l2 := &Level2{
		JointCostPoolEUR: l1.JointCostPoolEUR,
		Lines:            lines,
		CreditEUR:        credit,
	}

	net := l1.JointCostPoolEUR.Sub(credit)
	if net.IsNegative() {
		l2.Clamped = true
		l2.Warnings = append(l2.Warnings, Warning{
			Code:  WarnByProductCreditClamped,
			Stage: StageByProductCredit,
			Message: fmt.Sprintf("by-product credit %s exceeds joint cost pool %s; net joint cost clamped to 0",
				credit.StringFixed(2), l1.JointCostPoolEUR.StringFixed(2)),
			Parts: byProductCodes(byProducts),
		})
		net = decimal.Zero
	}
	l2.NetJointCostEUR = net

	entries = append(entries,
		audit(StageByProductCredit, "", "sum(by_product_credit)", credit),
		audit(StageByProductCredit, "net", "max(0, joint_cost_pool_eur - credit_eur)", net,
			"joint_cost_pool_eur", l1.JointCostPoolEUR, "credit_eur", credit),
	)
	l2.Audit = entries
	return l2, nil
}

func byProductCodes(bps []ByProduct) []string {
	codes := make([]string, len(bps))
	for i, bp := range bps {
		codes[i] = bp.Code
	}
	return codes
}
