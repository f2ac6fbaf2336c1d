/*
sku.go - SKU-level stages: ABC (Level5), SKU cost (Level6), NRV (Level7)

PURPOSE:
  Once meat cost per kg is known for a part, sub-cut, route or the whole
  griller, each finished SKU gets:

    abc_cost_per_kg = Σ rate_per_unit_a * driver_quantity_a       (Level5)
    cost_per_kg     = meat_cost_per_kg + abc_cost_per_kg + adders (Level6)
    variance        = nrv_per_kg - cost_per_kg                    (Level7)

  NRV is advisory. A failing SKU is flagged and warned about; its cost is
  reported unchanged. Margin and pricing belong to the caller.

SEE ALSO:
  - pipeline.go: resolves each SKU's meat cost from its SourceRef
*/
package costing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEVEL5 - Activity based costing
// =============================================================================

// ABCLine is one activity's contribution.
type ABCLine struct {
	Activity       string
	RatePerUnit    decimal.Decimal
	DriverQuantity decimal.Decimal
	CostPerKg      decimal.Decimal
}

// ABCResult is the processing cost of one SKU.
type ABCResult struct {
	SKUCode   string
	Lines     []ABCLine
	CostPerKg decimal.Decimal
	Audit     []AuditEntry
}

// Level5 holds the ABC result of every SKU.
type Level5 struct {
	SKUs []ABCResult
}

// SKU returns the ABC result for a SKU code.
func (l *Level5) SKU(code string) (ABCResult, bool) {
	if l == nil {
		return ABCResult{}, false
	}
	for _, r := range l.SKUs {
		if r.SKUCode == code {
			return r, true
		}
	}
	return ABCResult{}, false
}

// CalculateABC sums the activities keyed to skuCode. Drivers for other SKUs
// are ignored; a SKU with no drivers costs zero.
func CalculateABC(skuCode string, drivers []ABCDriver) (ABCResult, error) {
	res := ABCResult{SKUCode: skuCode, CostPerKg: decimal.Zero}
	for _, d := range drivers {
		if d.SKUCode != skuCode {
			continue
		}
		if d.RatePerUnit.IsNegative() || d.DriverQuantity.IsNegative() {
			return ABCResult{}, invalid(StageABC, "abc_driver", "%s/%s: rate and quantity must be >= 0", skuCode, d.Activity)
		}
		cost := d.RatePerUnit.Mul(d.DriverQuantity)
		res.Lines = append(res.Lines, ABCLine{
			Activity:       d.Activity,
			RatePerUnit:    d.RatePerUnit,
			DriverQuantity: d.DriverQuantity,
			CostPerKg:      cost,
		})
		res.CostPerKg = res.CostPerKg.Add(cost)
		res.Audit = append(res.Audit, audit(StageABC, skuCode+"/"+d.Activity, "rate_per_unit * driver_quantity", cost,
			"rate_per_unit", d.RatePerUnit, "driver_quantity", d.DriverQuantity))
	}
	res.Audit = append(res.Audit, audit(StageABC, skuCode, "sum(activity_cost_per_kg)", res.CostPerKg))
	return res, nil
}

// =============================================================================
// LEVEL6 - Full SKU cost
// =============================================================================

// SKUCost is the full cost of one SKU.
type SKUCost struct {
	SKUCode          string
	Source           SourceRef
	MeatCostPerKg    decimal.Decimal
	ABCCostPerKg     decimal.Decimal
	FixedAddersPerKg decimal.Decimal
	CostPerKg        decimal.Decimal
	Audit            []AuditEntry
}

// Level6 holds every SKU cost.
type Level6 struct {
	SKUs []SKUCost
}

// SKU returns the cost record for a SKU code.
func (l *Level6) SKU(code string) (SKUCost, bool) {
	if l == nil {
		return SKUCost{}, false
	}
	for _, c := range l.SKUs {
		if c.SKUCode == code {
			return c, true
		}
	}
	return SKUCost{}, false
}

// ComposeSKUCost adds meat, ABC and fixed adders.
func ComposeSKUCost(sku SkuDefinition, meatCostPerKg decimal.Decimal, abc ABCResult) (SKUCost, error) {
	if meatCostPerKg.IsNegative() {
		return SKUCost{}, invalid(StageSKUCost, "meat_cost_per_kg", "%s: must be >= 0, got %s", sku.SKUCode, meatCostPerKg)
	}
	adders := decimal.Zero
	for _, a := range sku.FixedAdders {
		if a.EURPerKg.IsNegative() {
			return SKUCost{}, invalid(StageSKUCost, "fixed_adders", "%s/%s: must be >= 0, got %s", sku.SKUCode, a.Label, a.EURPerKg)
		}
		adders = adders.Add(a.EURPerKg)
	}
	total := sumDecimals(meatCostPerKg, abc.CostPerKg, adders)

	return SKUCost{
		SKUCode:          sku.SKUCode,
		Source:           sku.Source,
		MeatCostPerKg:    meatCostPerKg,
		ABCCostPerKg:     abc.CostPerKg,
		FixedAddersPerKg: adders,
		CostPerKg:        total,
		Audit: []AuditEntry{
			audit(StageSKUCost, sku.SKUCode, "meat_cost_per_kg + abc_cost_per_kg + fixed_adders_per_kg", total,
				"meat_cost_per_kg", meatCostPerKg, "abc_cost_per_kg", abc.CostPerKg, "fixed_adders_per_kg", adders),
		},
	}, nil
}

// =============================================================================
// LEVEL7 - Net realizable value check
// =============================================================================

// NRVCheck compares a SKU's cost with what it can be sold for.
type NRVCheck struct {
	SKUCode            string
	StandardPricePerKg decimal.Decimal
	SellingCostPerKg   decimal.Decimal
	NRVPerKg           decimal.Decimal
	CostPerKg          decimal.Decimal
	Variance           decimal.Decimal
	Pass               bool
	Audit              []AuditEntry
}

// Level7 holds every NRV check plus the advisory warnings.
type Level7 struct {
	Checks   []NRVCheck
	Warnings []Warning
}

// SKU returns the NRV check for a SKU code.
func (l *Level7) SKU(code string) (NRVCheck, bool) {
	if l == nil {
		return NRVCheck{}, false
	}
	for _, c := range l.Checks {
		if c.SKUCode == code {
			return c, true
		}
	}
	return NRVCheck{}, false
}

// ValidateNRV computes variance = (standard_price - selling_cost) - cost_per_kg.
// The check never alters cost; a shortfall only sets Pass to false.
func ValidateNRV(in NRVInput, costPerKg decimal.Decimal) (NRVCheck, error) {
	if in.StandardPricePerKg.IsNegative() {
		return NRVCheck{}, invalid(StageNRV, "standard_price_per_kg", "%s: must be >= 0, got %s", in.SKUCode, in.StandardPricePerKg)
	}
	if in.SellingCostPerKg.IsNegative() {
		return NRVCheck{}, invalid(StageNRV, "selling_cost_per_kg", "%s: must be >= 0, got %s", in.SKUCode, in.SellingCostPerKg)
	}
	nrv := in.StandardPricePerKg.Sub(in.SellingCostPerKg)
	variance := nrv.Sub(costPerKg)

	return NRVCheck{
		SKUCode:            in.SKUCode,
		StandardPricePerKg: in.StandardPricePerKg,
		SellingCostPerKg:   in.SellingCostPerKg,
		NRVPerKg:           nrv,
		CostPerKg:          costPerKg,
		Variance:           variance,
		Pass:               !variance.IsNegative(),
		Audit: []AuditEntry{
			audit(StageNRV, in.SKUCode, "(standard_price_per_kg - selling_cost_per_kg) - cost_per_kg", variance,
				"standard_price_per_kg", in.StandardPricePerKg, "selling_cost_per_kg", in.SellingCostPerKg, "cost_per_kg", costPerKg),
		},
	}, nil
}

func nrvWarning(c NRVCheck) Warning {
	return Warning{
		Code:  WarnNRVShortfall,
		Stage: StageNRV,
		Message: fmt.Sprintf("%s costs %s/kg against a net realizable value of %s/kg",
			c.SKUCode, c.CostPerKg.StringFixed(4), c.NRVPerKg.StringFixed(4)),
		Parts: []string{c.SKUCode},
	}
}
