/*
demo.go - Demo batches

PURPOSE:
  Ready-to-run batches for every preset profile. The API serves them under
  /api/demos so the engine can be exercised without a data-entry layer.

AVAILABLE DEMOS:
  worked-example:   2500 kg live, 1760 kg griller, four standard parts; the
                    reference hand calculation (k-factor 0.7389)
  dynamic-cuts:     same batch, caller-supplied cut plan, breast and leg split
                    into sub-cuts
  whole-bird:       griller sold whole
  multi-site:       breast trim and leg meat blended into burgers off-site
  live-price-spike: the worked example with a +0.15 EUR/kg live price scenario

ADDING NEW DEMOS:
  1. Write a builder returning costing.PipelineInput
  2. Add it to the demos slice with an ID, name and description
*/
package poultry

import (
	"github.com/shopspring/decimal"
	"github.com/warp/joint-cost-engine/costing"
)

var dec = costing.MustParseDecimal

// Demo is one runnable batch, optionally with a scenario to diff.
type Demo struct {
	ID          string
	Name        string
	Description string
	Build       func() costing.PipelineInput
	Scenario    *costing.ScenarioChanges
}

var demos = []Demo{
	{
		ID:          "worked-example",
		Name:        "Worked Example",
		Description: "2500 kg live at 1.10 EUR/kg, four standard parts, offal credit",
		Build:       WorkedExample,
	},
	{
		ID:          "dynamic-cuts",
		Name:        "Dynamic Cut Plan",
		Description: "Caller-supplied parts with breast and leg split by mini-SVASO",
		Build:       DynamicCutsExample,
	},
	{
		ID:          "whole-bird",
		Name:        "Whole Bird",
		Description: "Griller sold whole; SKUs carry the griller cost",
		Build:       WholeBirdExample,
	},
	{
		ID:          "multi-site",
		Name:        "Multi-Site Burger Route",
		Description: "Breast trim and leg meat blended into burgers at a co-packer",
		Build:       MultiSiteExample,
	},
	{
		ID:          "live-price-spike",
		Name:        "Live Price Spike",
		Description: "Worked example against a +0.15 EUR/kg live price",
		Build:       WorkedExample,
		Scenario: &costing.ScenarioChanges{
			Label:          "live price +0.15",
			LivePricePerKg: decPtr("1.25"),
		},
	},
}

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

// Demos returns every demo in display order.
func Demos() []Demo {
	out := make([]Demo, len(demos))
	copy(out, demos)
	return out
}

// FindDemo returns a demo by id.
func FindDemo(id string) (Demo, bool) {
	for _, d := range demos {
		if d.ID == id {
			return d, true
		}
	}
	return Demo{}, false
}

// =============================================================================
// BUILDERS
// =============================================================================

func referenceBatch(id string) costing.Batch {
	return costing.Batch{
		BatchID:     id,
		InputLiveKg: dec("2500"),
		InputCount:  1000,
		PricePerKg:  dec("1.10"),
		ExtraCosts: []costing.ExtraCost{
			{Label: "transport", AmountEUR: dec("0")},
		},
		SlaughterFeeEUR:  dec("500"),
		GrillerWeightKg:  dec("1760"),
		DocumentedLossKg: dec("100"),
	}
}

func standardParts() []costing.JointProduct {
	return []costing.JointProduct{
		{PartCode: PartBreastCap, WeightKg: dec("620"), MarketPricePerKg: dec("4.20")},
		{PartCode: PartLegQuarter, WeightKg: dec("460"), MarketPricePerKg: dec("2.80")},
		{PartCode: PartWings, WeightKg: dec("140"), MarketPricePerKg: dec("2.10")},
		{PartCode: PartBackCarcass, WeightKg: dec("360"), MarketPricePerKg: dec("0.50")},
	}
}

func offal() []costing.ByProduct {
	return []costing.ByProduct{{Code: ByProductOffal, WeightKg: dec("80"), MarketPricePerKg: dec("0.30")}}
}

// WorkedExample is the reference batch:
//
//	joint_cost_pool = 2750 + 500 = 3250
//	credit          = 80 * 0.30  = 24
//	net_joint_cost  = 3226
//	Σ relative_value = 4366, k_factor ≈ 0.7389
func WorkedExample() costing.PipelineInput {
	return costing.PipelineInput{
		Batch:         referenceBatch("DEMO-WORKED-EXAMPLE"),
		Profile:       InternalFixedCuts(),
		JointProducts: standardParts(),
		ByProducts:    offal(),
		SKUs: []costing.SkuDefinition{
			{
				SKUCode:     "BREAST-CAP-10KG",
				Name:        "Breast cap, 10 kg crate",
				Source:      costing.SourceRef{Kind: costing.SourcePart, Code: PartBreastCap},
				FixedAdders: []costing.CostAdder{{Label: "crate", EURPerKg: dec("0.04")}},
			},
			{
				SKUCode:     "WINGS-5KG",
				Name:        "Wings, 5 kg box",
				Source:      costing.SourceRef{Kind: costing.SourcePart, Code: PartWings},
				FixedAdders: []costing.CostAdder{{Label: "box", EURPerKg: dec("0.06")}},
			},
		},
		ABCDrivers: []costing.ABCDriver{
			{SKUCode: "BREAST-CAP-10KG", Activity: "cutting", RatePerUnit: dec("0.12"), DriverQuantity: dec("1")},
			{SKUCode: "WINGS-5KG", Activity: "cutting", RatePerUnit: dec("0.12"), DriverQuantity: dec("1")},
			{SKUCode: "WINGS-5KG", Activity: "packing", RatePerUnit: dec("0.05"), DriverQuantity: dec("1")},
		},
		NRVInputs: []costing.NRVInput{
			{SKUCode: "BREAST-CAP-10KG", StandardPricePerKg: dec("4.20"), SellingCostPerKg: dec("0.15")},
			{SKUCode: "WINGS-5KG", StandardPricePerKg: dec("2.10"), SellingCostPerKg: dec("0.10")},
		},
	}
}

// DynamicCutsExample splits breast and leg into sub-cuts.
func DynamicCutsExample() costing.PipelineInput {
	in := WorkedExample()
	in.Batch.BatchID = "DEMO-DYNAMIC-CUTS"
	in.Profile = ExternalDynamicCuts()
	in.SubCuts = []costing.SubCut{
		{ParentCode: PartBreastCap, CutCode: CutFillet, WeightKg: dec("480"), MarketPricePerKg: dec("5.10")},
		{ParentCode: PartBreastCap, CutCode: CutInnerFillet, WeightKg: dec("90"), MarketPricePerKg: dec("6.00")},
		{ParentCode: PartBreastCap, CutCode: CutBreastTrim, WeightKg: dec("50"), MarketPricePerKg: dec("1.20")},
		{ParentCode: PartLegQuarter, CutCode: CutDrumstick, WeightKg: dec("200"), MarketPricePerKg: dec("2.50")},
		{ParentCode: PartLegQuarter, CutCode: CutThigh, WeightKg: dec("260"), MarketPricePerKg: dec("3.10")},
	}
	in.SKUs = append(in.SKUs, costing.SkuDefinition{
		SKUCode:     "FILLET-500G",
		Name:        "Breast fillet, 500 g tray",
		Source:      costing.SourceRef{Kind: costing.SourceSubCut, Code: CutFillet},
		FixedAdders: []costing.CostAdder{{Label: "tray and film", EURPerKg: dec("0.22")}},
	})
	in.ABCDrivers = append(in.ABCDrivers,
		costing.ABCDriver{SKUCode: "FILLET-500G", Activity: "filleting", RatePerUnit: dec("0.18"), DriverQuantity: dec("1")},
		costing.ABCDriver{SKUCode: "FILLET-500G", Activity: "tray packing", RatePerUnit: dec("0.04"), DriverQuantity: dec("2")},
	)
	in.NRVInputs = append(in.NRVInputs, costing.NRVInput{
		SKUCode: "FILLET-500G", StandardPricePerKg: dec("6.40"), SellingCostPerKg: dec("0.35"),
	})
	return in
}

// WholeBirdExample sells the griller whole.
func WholeBirdExample() costing.PipelineInput {
	return costing.PipelineInput{
		Batch:   referenceBatch("DEMO-WHOLE-BIRD"),
		Profile: WholeBirdOnly(),
		SKUs: []costing.SkuDefinition{{
			SKUCode:     "GRILLER-1300",
			Name:        "Whole griller 1300 g",
			Source:      costing.SourceRef{Kind: costing.SourceGriller},
			FixedAdders: []costing.CostAdder{{Label: "bag and label", EURPerKg: dec("0.08")}},
		}},
		ABCDrivers: []costing.ABCDriver{
			{SKUCode: "GRILLER-1300", Activity: "bagging", RatePerUnit: dec("0.06"), DriverQuantity: dec("1")},
		},
		NRVInputs: []costing.NRVInput{
			{SKUCode: "GRILLER-1300", StandardPricePerKg: dec("2.45"), SellingCostPerKg: dec("0.12")},
		},
	}
}

// MultiSiteExample blends breast trim and leg meat into burgers at another site.
func MultiSiteExample() costing.PipelineInput {
	in := WorkedExample()
	in.Batch.BatchID = "DEMO-MULTI-SITE"
	in.Profile = MultiSiteRouted()
	in.SubCuts = []costing.SubCut{
		{ParentCode: PartBreastCap, CutCode: CutFillet, WeightKg: dec("480"), MarketPricePerKg: dec("5.10")},
		{ParentCode: PartBreastCap, CutCode: CutInnerFillet, WeightKg: dec("90"), MarketPricePerKg: dec("6.00")},
		{ParentCode: PartBreastCap, CutCode: CutBreastTrim, WeightKg: dec("50"), MarketPricePerKg: dec("1.20")},
	}
	in.Routes = []costing.ProcessingRoute{{
		RouteID:    "burger-copacker",
		EndProduct: "chicken_burger",
		InputKg:    dec("60"),
		Sources: []costing.BlendSource{
			{PartCode: CutBreastTrim, Ratio: dec("0.5")},
			{PartCode: PartLegQuarter, Ratio: dec("0.5")},
		},
		Steps: []costing.RouteStep{
			{
				ID: "debone", Processor: "plant-north", Activity: "deboning", CostPerKg: dec("0.25"),
				Outputs: []costing.StepOutput{
					{Product: "burger_meat", YieldPct: dec("85")},
					{Product: "bones", YieldPct: dec("15"), IsByProduct: true},
				},
			},
			{ID: "grind", Processor: "copacker-south", Activity: "grinding", CostPerKg: dec("0.15")},
			{ID: "form", Processor: "copacker-south", Activity: "forming and freezing", CostPerKg: dec("0.40")},
		},
	}}
	in.SKUs = append(in.SKUs, costing.SkuDefinition{
		SKUCode:     "BURGER-4X100G",
		Name:        "Chicken burger 4 x 100 g",
		Source:      costing.SourceRef{Kind: costing.SourceRoute, Code: "burger-copacker"},
		FixedAdders: []costing.CostAdder{{Label: "carton", EURPerKg: dec("0.30")}},
	})
	in.NRVInputs = append(in.NRVInputs, costing.NRVInput{
		SKUCode: "BURGER-4X100G", StandardPricePerKg: dec("5.50"), SellingCostPerKg: dec("0.40"),
	})
	return in
}
