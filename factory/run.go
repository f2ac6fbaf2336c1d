/*
run.go - Pipeline input and scenario documents

PURPOSE:
  The data-entry layer sends one JSON document per batch. RunFactory turns it
  into a costing.PipelineInput and back again, so a stored run can be replayed
  exactly.

JSON SCHEMA (abridged):
  {
    "profile": "internal-fixed-cuts",
    "batch": {
      "batch_id": "B-2025-001",
      "input_live_kg": "2500", "input_count": 1000, "price_per_kg": "1.10",
      "extra_costs": [{"label": "transport", "amount_eur": "90"}],
      "slaughter_fee_eur": "500", "griller_weight_kg": "1760",
      "documented_loss_kg": "100"
    },
    "joint_products": [{"part_code": "breast_cap", "weight_kg": "620", "market_price_per_kg": "4.20"}],
    "by_products":    [{"code": "offal", "weight_kg": "80", "market_price_per_kg": "0.30"}],
    "sub_cuts":       [{"parent_code": "breast_cap", "cut_code": "fillet", ...}],
    "routes":         [{"route_id": "burger", "sources": [{"part_code": "...", "ratio": "0.5"}], "steps": [...]}],
    "skus":           [{"sku_code": "...", "source": {"kind": "part", "code": "breast_cap"}, "fixed_adders": [...]}],
    "abc_drivers":    [{"sku_code": "...", "activity": "cutting", "rate_per_unit": "0.12", "driver_quantity": "1"}],
    "nrv_inputs":     [{"sku_code": "...", "standard_price_per_kg": "4.20", "selling_cost_per_kg": "0.15"}]
  }

  Numbers may be JSON numbers or strings; strings keep full precision.
  "profile_config" may carry an inline ProfileJSON instead of a profile name.
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/joint-cost-engine/costing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RunInputJSON is one batch as sent by the data-entry layer.
type RunInputJSON struct {
	Profile       string             `json:"profile,omitempty"`
	ProfileConfig *ProfileJSON       `json:"profile_config,omitempty"`
	Batch         BatchJSON          `json:"batch"`
	JointProducts []JointProductJSON `json:"joint_products,omitempty"`
	ByProducts    []ByProductJSON    `json:"by_products,omitempty"`
	SubCuts       []SubCutJSON       `json:"sub_cuts,omitempty"`
	Routes        []RouteJSON        `json:"routes,omitempty"`
	SKUs          []SKUJSON          `json:"skus,omitempty"`
	ABCDrivers    []ABCDriverJSON    `json:"abc_drivers,omitempty"`
	NRVInputs     []NRVInputJSON     `json:"nrv_inputs,omitempty"`
}

// BatchJSON is the landed-cost input.
type BatchJSON struct {
	BatchID          string          `json:"batch_id"`
	InputLiveKg      decimal.Decimal `json:"input_live_kg"`
	InputCount       int             `json:"input_count"`
	PricePerKg       decimal.Decimal `json:"price_per_kg"`
	ExtraCosts       []ExtraCostJSON `json:"extra_costs,omitempty"`
	SlaughterFeeEUR  decimal.Decimal `json:"slaughter_fee_eur"`
	GrillerWeightKg  decimal.Decimal `json:"griller_weight_kg"`
	DocumentedLossKg decimal.Decimal `json:"documented_loss_kg"`
}

// ExtraCostJSON is one landed-cost adder.
type ExtraCostJSON struct {
	Label     string          `json:"label"`
	AmountEUR decimal.Decimal `json:"amount_eur"`
}

// JointProductJSON is one joint product.
type JointProductJSON struct {
	PartCode         string          `json:"part_code"`
	WeightKg         decimal.Decimal `json:"weight_kg"`
	MarketPricePerKg decimal.Decimal `json:"market_price_per_kg"`
}

// ByProductJSON is one credited by-product.
type ByProductJSON struct {
	Code             string          `json:"code"`
	WeightKg         decimal.Decimal `json:"weight_kg"`
	MarketPricePerKg decimal.Decimal `json:"market_price_per_kg"`
}

// SubCutJSON is one sub-cut of a joint product.
type SubCutJSON struct {
	ParentCode       string          `json:"parent_code"`
	CutCode          string          `json:"cut_code"`
	WeightKg         decimal.Decimal `json:"weight_kg"`
	MarketPricePerKg decimal.Decimal `json:"market_price_per_kg"`
}

// RouteJSON is a processing route.
type RouteJSON struct {
	RouteID     string            `json:"route_id"`
	EndProduct  string            `json:"end_product"`
	InputKg     decimal.Decimal   `json:"input_kg"`
	YieldFactor decimal.Decimal   `json:"yield_factor"` // zero derives it from the steps
	Sources     []BlendSourceJSON `json:"sources"`
	Steps       []RouteStepJSON   `json:"steps,omitempty"`
}

// BlendSourceJSON is one weighted source part.
type BlendSourceJSON struct {
	PartCode string          `json:"part_code"`
	Ratio    decimal.Decimal `json:"ratio"`
}

// RouteStepJSON is one processing step.
type RouteStepJSON struct {
	ID        string           `json:"id,omitempty"`
	Processor string           `json:"processor"`
	Activity  string           `json:"activity"`
	CostPerKg decimal.Decimal  `json:"cost_per_kg"`
	Inputs    []string         `json:"inputs,omitempty"`
	Outputs   []StepOutputJSON `json:"outputs,omitempty"`
}

// StepOutputJSON is one product leaving a step.
type StepOutputJSON struct {
	Product     string          `json:"product"`
	YieldPct    decimal.Decimal `json:"yield_pct"`
	IsByProduct bool            `json:"is_by_product,omitempty"`
}

// SKUJSON is one finished SKU.
type SKUJSON struct {
	SKUCode     string          `json:"sku_code"`
	Name        string          `json:"name,omitempty"`
	Source      SourceJSON      `json:"source"`
	FixedAdders []CostAdderJSON `json:"fixed_adders,omitempty"`
}

// SourceJSON says where a SKU draws its meat cost from.
type SourceJSON struct {
	Kind string `json:"kind"` // part, sub_cut, route, griller
	Code string `json:"code,omitempty"`
}

// CostAdderJSON is one fixed per-kg adder.
type CostAdderJSON struct {
	Label    string          `json:"label"`
	EURPerKg decimal.Decimal `json:"eur_per_kg"`
}

// ABCDriverJSON is one activity driver.
type ABCDriverJSON struct {
	SKUCode        string          `json:"sku_code"`
	Activity       string          `json:"activity"`
	RatePerUnit    decimal.Decimal `json:"rate_per_unit"`
	DriverQuantity decimal.Decimal `json:"driver_quantity"`
}

// NRVInputJSON is one expected selling price.
type NRVInputJSON struct {
	SKUCode            string          `json:"sku_code"`
	StandardPricePerKg decimal.Decimal `json:"standard_price_per_kg"`
	SellingCostPerKg   decimal.Decimal `json:"selling_cost_per_kg"`
}

// ScenarioChangesJSON is the what-if edit set.
type ScenarioChangesJSON struct {
	Label           string                     `json:"label,omitempty"`
	LivePricePerKg  *decimal.Decimal           `json:"live_price_per_kg,omitempty"`
	SlaughterFeeEUR *decimal.Decimal           `json:"slaughter_fee_eur,omitempty"`
	GrillerYieldPct *decimal.Decimal           `json:"griller_yield_pct,omitempty"`
	PartPrices      map[string]decimal.Decimal `json:"part_prices,omitempty"`
	PartWeights     map[string]decimal.Decimal `json:"part_weights,omitempty"`
	ByProductPrices map[string]decimal.Decimal `json:"by_product_prices,omitempty"`
	SKUPrices       map[string]decimal.Decimal `json:"sku_prices,omitempty"`
}

// =============================================================================
// RUN FACTORY
// =============================================================================

// ProfileResolver finds a profile by name. costing.ProfileSet satisfies it.
type ProfileResolver interface {
	Lookup(name string) (costing.BatchProfile, error)
}

// RunFactory converts run documents.
type RunFactory struct {
	profiles *ProfileFactory
}

// NewRunFactory creates a new run factory.
func NewRunFactory() *RunFactory {
	return &RunFactory{profiles: NewProfileFactory()}
}

// ParseRunInput parses a JSON string into a PipelineInput.
func (f *RunFactory) ParseRunInput(jsonStr string, resolver ProfileResolver) (costing.PipelineInput, error) {
	var rj RunInputJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return costing.PipelineInput{}, fmt.Errorf("%w: failed to parse run JSON: %v", ErrInvalidDocument, err)
	}
	return f.FromJSON(rj, resolver)
}

// FromJSON converts RunInputJSON to a PipelineInput. An inline profile_config
// wins over the profile name.
func (f *RunFactory) FromJSON(rj RunInputJSON, resolver ProfileResolver) (costing.PipelineInput, error) {
	profile, err := f.resolveProfile(rj, resolver)
	if err != nil {
		return costing.PipelineInput{}, err
	}

	in := costing.PipelineInput{
		Profile: profile,
		Batch: costing.Batch{
			BatchID:          rj.Batch.BatchID,
			InputLiveKg:      rj.Batch.InputLiveKg,
			InputCount:       rj.Batch.InputCount,
			PricePerKg:       rj.Batch.PricePerKg,
			SlaughterFeeEUR:  rj.Batch.SlaughterFeeEUR,
			GrillerWeightKg:  rj.Batch.GrillerWeightKg,
			DocumentedLossKg: rj.Batch.DocumentedLossKg,
		},
	}
	for _, c := range rj.Batch.ExtraCosts {
		in.Batch.ExtraCosts = append(in.Batch.ExtraCosts, costing.ExtraCost{Label: c.Label, AmountEUR: c.AmountEUR})
	}
	for _, j := range rj.JointProducts {
		in.JointProducts = append(in.JointProducts, costing.JointProduct{
			PartCode: j.PartCode, WeightKg: j.WeightKg, MarketPricePerKg: j.MarketPricePerKg,
		})
	}
	for _, b := range rj.ByProducts {
		in.ByProducts = append(in.ByProducts, costing.ByProduct{
			Code: b.Code, WeightKg: b.WeightKg, MarketPricePerKg: b.MarketPricePerKg,
		})
	}
	for _, s := range rj.SubCuts {
		in.SubCuts = append(in.SubCuts, costing.SubCut{
			ParentCode: s.ParentCode, CutCode: s.CutCode, WeightKg: s.WeightKg, MarketPricePerKg: s.MarketPricePerKg,
		})
	}
	for _, r := range rj.Routes {
		in.Routes = append(in.Routes, parseRoute(r))
	}
	for _, s := range rj.SKUs {
		sku, err := parseSKU(s)
		if err != nil {
			return costing.PipelineInput{}, err
		}
		in.SKUs = append(in.SKUs, sku)
	}
	for _, a := range rj.ABCDrivers {
		in.ABCDrivers = append(in.ABCDrivers, costing.ABCDriver{
			SKUCode: a.SKUCode, Activity: a.Activity, RatePerUnit: a.RatePerUnit, DriverQuantity: a.DriverQuantity,
		})
	}
	for _, n := range rj.NRVInputs {
		in.NRVInputs = append(in.NRVInputs, costing.NRVInput{
			SKUCode: n.SKUCode, StandardPricePerKg: n.StandardPricePerKg, SellingCostPerKg: n.SellingCostPerKg,
		})
	}
	return in, nil
}

func (f *RunFactory) resolveProfile(rj RunInputJSON, resolver ProfileResolver) (costing.BatchProfile, error) {
	if rj.ProfileConfig != nil {
		return f.profiles.FromJSON(*rj.ProfileConfig)
	}
	if rj.Profile == "" {
		return costing.BatchProfile{}, fmt.Errorf("%w: profile or profile_config is required", ErrInvalidDocument)
	}
	if resolver == nil {
		return costing.BatchProfile{}, fmt.Errorf("%w: %q", costing.ErrUnknownProfile, rj.Profile)
	}
	return resolver.Lookup(rj.Profile)
}

// ToJSON converts a PipelineInput back to its document. The profile is
// written inline so the document replays without a resolver.
func (f *RunFactory) ToJSON(in costing.PipelineInput) RunInputJSON {
	pj := f.profiles.ToJSON(in.Profile)
	rj := RunInputJSON{
		Profile:       in.Profile.Name,
		ProfileConfig: &pj,
		Batch: BatchJSON{
			BatchID:          in.Batch.BatchID,
			InputLiveKg:      in.Batch.InputLiveKg,
			InputCount:       in.Batch.InputCount,
			PricePerKg:       in.Batch.PricePerKg,
			SlaughterFeeEUR:  in.Batch.SlaughterFeeEUR,
			GrillerWeightKg:  in.Batch.GrillerWeightKg,
			DocumentedLossKg: in.Batch.DocumentedLossKg,
		},
	}
	for _, c := range in.Batch.ExtraCosts {
		rj.Batch.ExtraCosts = append(rj.Batch.ExtraCosts, ExtraCostJSON{Label: c.Label, AmountEUR: c.AmountEUR})
	}
	for _, j := range in.JointProducts {
		rj.JointProducts = append(rj.JointProducts, JointProductJSON{j.PartCode, j.WeightKg, j.MarketPricePerKg})
	}
	for _, b := range in.ByProducts {
		rj.ByProducts = append(rj.ByProducts, ByProductJSON{b.Code, b.WeightKg, b.MarketPricePerKg})
	}
	for _, s := range in.SubCuts {
		rj.SubCuts = append(rj.SubCuts, SubCutJSON{s.ParentCode, s.CutCode, s.WeightKg, s.MarketPricePerKg})
	}
	for _, r := range in.Routes {
		rj.Routes = append(rj.Routes, routeToJSON(r))
	}
	for _, s := range in.SKUs {
		sj := SKUJSON{SKUCode: s.SKUCode, Name: s.Name, Source: SourceJSON{Kind: string(s.Source.Kind), Code: s.Source.Code}}
		for _, a := range s.FixedAdders {
			sj.FixedAdders = append(sj.FixedAdders, CostAdderJSON{Label: a.Label, EURPerKg: a.EURPerKg})
		}
		rj.SKUs = append(rj.SKUs, sj)
	}
	for _, a := range in.ABCDrivers {
		rj.ABCDrivers = append(rj.ABCDrivers, ABCDriverJSON{a.SKUCode, a.Activity, a.RatePerUnit, a.DriverQuantity})
	}
	for _, n := range in.NRVInputs {
		rj.NRVInputs = append(rj.NRVInputs, NRVInputJSON{n.SKUCode, n.StandardPricePerKg, n.SellingCostPerKg})
	}
	return rj
}

// ScenarioChanges converts the what-if edit set.
func (f *RunFactory) ScenarioChanges(sj ScenarioChangesJSON) costing.ScenarioChanges {
	return costing.ScenarioChanges{
		Label:           sj.Label,
		LivePricePerKg:  sj.LivePricePerKg,
		SlaughterFeeEUR: sj.SlaughterFeeEUR,
		GrillerYieldPct: sj.GrillerYieldPct,
		PartPrices:      sj.PartPrices,
		PartWeights:     sj.PartWeights,
		ByProductPrices: sj.ByProductPrices,
		SKUPrices:       sj.SKUPrices,
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseRoute(r RouteJSON) costing.ProcessingRoute {
	out := costing.ProcessingRoute{
		RouteID:     r.RouteID,
		EndProduct:  r.EndProduct,
		InputKg:     r.InputKg,
		YieldFactor: r.YieldFactor,
	}
	for _, s := range r.Sources {
		out.Sources = append(out.Sources, costing.BlendSource{PartCode: s.PartCode, Ratio: s.Ratio})
	}
	for _, s := range r.Steps {
		step := costing.RouteStep{
			ID:        s.ID,
			Processor: s.Processor,
			Activity:  s.Activity,
			CostPerKg: s.CostPerKg,
			Inputs:    append([]string(nil), s.Inputs...),
		}
		for _, o := range s.Outputs {
			step.Outputs = append(step.Outputs, costing.StepOutput{Product: o.Product, YieldPct: o.YieldPct, IsByProduct: o.IsByProduct})
		}
		out.Steps = append(out.Steps, step)
	}
	return out
}

func routeToJSON(r costing.ProcessingRoute) RouteJSON {
	out := RouteJSON{
		RouteID:     r.RouteID,
		EndProduct:  r.EndProduct,
		InputKg:     r.InputKg,
		YieldFactor: r.YieldFactor,
	}
	for _, s := range r.Sources {
		out.Sources = append(out.Sources, BlendSourceJSON{PartCode: s.PartCode, Ratio: s.Ratio})
	}
	for _, s := range r.Steps {
		sj := RouteStepJSON{
			ID:        s.ID,
			Processor: s.Processor,
			Activity:  s.Activity,
			CostPerKg: s.CostPerKg,
			Inputs:    append([]string(nil), s.Inputs...),
		}
		for _, o := range s.Outputs {
			sj.Outputs = append(sj.Outputs, StepOutputJSON{Product: o.Product, YieldPct: o.YieldPct, IsByProduct: o.IsByProduct})
		}
		out.Steps = append(out.Steps, sj)
	}
	return out
}

func parseSKU(s SKUJSON) (costing.SkuDefinition, error) {
	kind, err := parseSourceKind(s.Source.Kind)
	if err != nil {
		return costing.SkuDefinition{}, fmt.Errorf("sku %s: %w", s.SKUCode, err)
	}
	if kind != costing.SourceGriller && s.Source.Code == "" {
		return costing.SkuDefinition{}, fmt.Errorf("%w: sku %s: source code is required for kind %q", ErrInvalidDocument, s.SKUCode, kind)
	}
	sku := costing.SkuDefinition{
		SKUCode: s.SKUCode,
		Name:    s.Name,
		Source:  costing.SourceRef{Kind: kind, Code: s.Source.Code},
	}
	for _, a := range s.FixedAdders {
		sku.FixedAdders = append(sku.FixedAdders, costing.CostAdder{Label: a.Label, EURPerKg: a.EURPerKg})
	}
	return sku, nil
}

func parseSourceKind(s string) (costing.SourceKind, error) {
	switch costing.SourceKind(s) {
	case costing.SourcePart, costing.SourceSubCut, costing.SourceRoute, costing.SourceGriller:
		return costing.SourceKind(s), nil
	case "":
		return costing.SourcePart, nil
	default:
		return "", fmt.Errorf("%w: unknown source kind %q", ErrInvalidDocument, s)
	}
}
