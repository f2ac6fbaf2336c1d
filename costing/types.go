/*
Package costing provides the joint-cost allocation engine.

PURPOSE:
  Turns one slaughter batch's live weight and purchase cost into per-SKU unit
  costs. The engine is a strict pipeline of pure stages (Level0..Level7), each
  producing a typed record plus an audit-trail entry that lets anyone reproduce
  the number by hand.

KEY CONCEPTS IN THIS FILE (types.go):
  - Batch: the purchased live animals, immutable once entered
  - JointProduct / SubCut / ByProduct: the physical outputs of the split-off
  - ABCDriver / SkuDefinition / NRVInput: SKU-level inputs
  - PipelineInput: everything one pipeline invocation consumes

DESIGN PRINCIPLES:
  1. Precision: every weight, price and cost is a decimal.Decimal
  2. Immutability: inputs are never modified; every run derives fresh records
  3. Auditability: every stage emits an AuditEntry (stage, inputs, formula, result)
  4. No hidden state: identical inputs give bit-identical outputs

USAGE:
  engine := costing.NewEngine(costing.DefaultSettings())
  result, err := engine.Run(costing.PipelineInput{
      Batch:         batch,
      Profile:       profile,
      JointProducts: parts,
      ByProducts:    offal,
  })

SEE ALSO:
  - pipeline.go: the generic runner driven by BatchProfile
  - svaso.go: relative sales value allocation
  - scenario.go: what-if diffing
*/
package costing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// MustParseDecimal parses s and panics on malformed input. Meant for literals
// in presets and tests.
func MustParseDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sumDecimals(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// =============================================================================
// BATCH - Purchased live animals
// =============================================================================

// ExtraCost is a landed-cost adder (transport, catching crew, levies).
type ExtraCost struct {
	Label     string
	AmountEUR decimal.Decimal
}

// Batch is one purchase of live animals. It drives every downstream level.
type Batch struct {
	BatchID     string
	InputLiveKg decimal.Decimal
	InputCount  int
	PricePerKg  decimal.Decimal
	ExtraCosts  []ExtraCost

	// Slaughter outcome
	SlaughterFeeEUR  decimal.Decimal
	GrillerWeightKg  decimal.Decimal
	DocumentedLossKg decimal.Decimal // drip, trim and cutting loss recorded on the floor
}

// =============================================================================
// PHYSICAL OUTPUTS
// =============================================================================

// ByProduct is credited against the pool; it never receives a cost share.
type ByProduct struct {
	Code             string
	WeightKg         decimal.Decimal
	MarketPricePerKg decimal.Decimal
}

// JointProduct is the unit of SVASO allocation.
type JointProduct struct {
	PartCode         string
	WeightKg         decimal.Decimal
	MarketPricePerKg decimal.Decimal
}

// RelativeValue is weight times market price.
func (j JointProduct) RelativeValue() decimal.Decimal {
	return j.WeightKg.Mul(j.MarketPricePerKg)
}

// SubCut is a child of one JointProduct, allocated by MiniSVASO.
type SubCut struct {
	ParentCode       string
	CutCode          string
	WeightKg         decimal.Decimal
	MarketPricePerKg decimal.Decimal
}

// =============================================================================
// SKU-LEVEL INPUTS
// =============================================================================

// ABCDriver is one activity consumed by a SKU.
type ABCDriver struct {
	SKUCode        string
	Activity       string
	RatePerUnit    decimal.Decimal
	DriverQuantity decimal.Decimal
}

// SourceKind says where a SKU (or route) draws its meat cost from.
type SourceKind string

const (
	SourcePart    SourceKind = "part"
	SourceSubCut  SourceKind = "sub_cut"
	SourceRoute   SourceKind = "route"
	SourceGriller SourceKind = "griller"
)

// SourceRef points at an allocated cost: a joint product, a sub-cut, a route
// end product or the whole griller. An empty Kind means SourcePart.
type SourceRef struct {
	Kind SourceKind
	Code string
}

// EffectiveKind returns Kind, defaulting to SourcePart.
func (s SourceRef) EffectiveKind() SourceKind {
	if s.Kind == "" {
		return SourcePart
	}
	return s.Kind
}

// CostAdder is a fixed per-kg adder (packaging, labels, freight).
type CostAdder struct {
	Label    string
	EURPerKg decimal.Decimal
}

// SkuDefinition describes one finished SKU.
type SkuDefinition struct {
	SKUCode     string
	Name        string
	Source      SourceRef
	FixedAdders []CostAdder
}

// FixedAddersPerKg sums the SKU's fixed adders.
func (s SkuDefinition) FixedAddersPerKg() decimal.Decimal {
	total := decimal.Zero
	for _, a := range s.FixedAdders {
		total = total.Add(a.EURPerKg)
	}
	return total
}

// NRVInput is the expected selling price of a SKU.
type NRVInput struct {
	SKUCode            string
	StandardPricePerKg decimal.Decimal
	SellingCostPerKg   decimal.Decimal // optional; zero means price is already net
}

// =============================================================================
// PIPELINE INPUT
// =============================================================================

// PipelineInput is everything one invocation consumes. The engine treats it as
// read-only; scenario changes produce a copy.
type PipelineInput struct {
	Batch         Batch
	Profile       BatchProfile
	ByProducts    []ByProduct
	JointProducts []JointProduct
	SubCuts       []SubCut
	Routes        []ProcessingRoute
	SKUs          []SkuDefinition
	ABCDrivers    []ABCDriver
	NRVInputs     []NRVInput
}

// Clone returns a deep copy so scenario edits never reach the caller's input.
func (in PipelineInput) Clone() PipelineInput {
	out := in
	out.Batch.ExtraCosts = append([]ExtraCost(nil), in.Batch.ExtraCosts...)
	out.Profile = in.Profile.Clone()
	out.ByProducts = append([]ByProduct(nil), in.ByProducts...)
	out.JointProducts = append([]JointProduct(nil), in.JointProducts...)
	out.SubCuts = append([]SubCut(nil), in.SubCuts...)
	out.ABCDrivers = append([]ABCDriver(nil), in.ABCDrivers...)
	out.NRVInputs = append([]NRVInput(nil), in.NRVInputs...)

	out.Routes = make([]ProcessingRoute, len(in.Routes))
	for i, r := range in.Routes {
		out.Routes[i] = r.Clone()
	}
	out.SKUs = make([]SkuDefinition, len(in.SKUs))
	for i, s := range in.SKUs {
		s.FixedAdders = append([]CostAdder(nil), s.FixedAdders...)
		out.SKUs[i] = s
	}
	return out
}

// =============================================================================
// WARNINGS - Non-fatal findings attached to a result
// =============================================================================

type WarningCode string

const (
	WarnByProductCreditClamped WarningCode = "byproduct_credit_clamped"
	WarnMassBalance            WarningCode = "mass_balance"
	WarnSubCutMassBalance      WarningCode = "sub_cut_mass_balance"
	WarnRouteMassBalance       WarningCode = "route_mass_balance"
	WarnKFactorStressed        WarningCode = "k_factor_stressed"
	WarnNRVShortfall           WarningCode = "nrv_shortfall"
)

// Warning is advisory. It never changes a number.
type Warning struct {
	Code    WarningCode
	Stage   Stage
	Message string
	Parts   []string
}
