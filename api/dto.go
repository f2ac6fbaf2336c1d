/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's records from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

NUMBERS:
  Every decimal leaves the API as a string rounded to the configured
  rounding places (default 4). The audit trail is the exception: it keeps
  full precision so a controller can recompute each number by hand.

TYPES:
  Profiles:   ProfileDTO (wraps factory.ProfileJSON)
  Cost runs:  CostRunSummaryDTO, CostRunDTO, CostRunResultDTO and one DTO per level
  Scenarios:  ScenarioDiffRequest, ScenarioDiffDTO, DeltaDTO, AllocationShiftDTO
  Demos:      DemoDTO, DemoRunDTO

REQUEST BODIES:
  POST /api/profiles       factory.ProfileJSON
  POST /api/cost-runs      factory.RunInputJSON
  POST /api/scenarios/diff ScenarioDiffRequest

SEE ALSO:
  - handlers.go: Uses these types
  - factory/run.go: RunInputJSON and ScenarioChangesJSON
*/
package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/warp/joint-cost-engine/costing"
	"github.com/warp/joint-cost-engine/factory"
)

// =============================================================================
// PROFILES
// =============================================================================

// ProfileDTO represents a profile in API responses.
type ProfileDTO struct {
	Name    string              `json:"name"`
	Source  string              `json:"source"` // builtin or stored
	Version int                 `json:"version,omitempty"`
	Stages  []string            `json:"stages"`
	Config  factory.ProfileJSON `json:"config"`
}

// =============================================================================
// COST RUNS
// =============================================================================

// CostRunSummaryDTO is one line of the run history.
type CostRunSummaryDTO struct {
	ID           string `json:"id"`
	BatchID      string `json:"batch_id"`
	Profile      string `json:"profile"`
	KFactor      string `json:"k_factor"`
	WarningCount int    `json:"warning_count"`
	CreatedAt    string `json:"created_at"`
}

// CostRunDTO is a stored run with its input and result documents.
type CostRunDTO struct {
	CostRunSummaryDTO
	Input  json.RawMessage `json:"input"`
	Result json.RawMessage `json:"result"`
}

// CostRunResultDTO is a CostAllocationResult. Levels the profile skips are omitted.
type CostRunResultDTO struct {
	BatchID         string              `json:"batch_id"`
	Profile         string              `json:"profile"`
	StagesRun       []string            `json:"stages_run"`
	LandedCost      *LandedCostDTO      `json:"landed_cost,omitempty"`
	JointCostPool   *JointCostPoolDTO   `json:"joint_cost_pool,omitempty"`
	ByProductCredit *ByProductCreditDTO `json:"by_product_credit,omitempty"`
	SVASO           *SVASODTO           `json:"svaso,omitempty"`
	MiniSVASO       []SubAllocationDTO  `json:"mini_svaso,omitempty"`
	Routes          []RouteDTO          `json:"routes,omitempty"`
	ABC             []ABCDTO            `json:"abc,omitempty"`
	SKUCosts        []SKUCostDTO        `json:"sku_costs,omitempty"`
	NRV             []NRVDTO            `json:"nrv,omitempty"`
	Warnings        []WarningDTO        `json:"warnings"`
	Audit           []AuditEntryDTO     `json:"audit"`
}

// LandedCostDTO is Level0.
type LandedCostDTO struct {
	InputLiveKg     string `json:"input_live_kg"`
	InputCount      int    `json:"input_count"`
	PricePerKg      string `json:"price_per_kg"`
	ExtraCostsEUR   string `json:"extra_costs_eur"`
	LandedCostEUR   string `json:"landed_cost_eur"`
	LandedCostPerKg string `json:"landed_cost_per_kg"`
}

// JointCostPoolDTO is Level1.
type JointCostPoolDTO struct {
	SlaughterFeeEUR  string `json:"slaughter_fee_eur"`
	JointCostPoolEUR string `json:"joint_cost_pool_eur"`
	GrillerWeightKg  string `json:"griller_weight_kg"`
	GrillerYieldPct  string `json:"griller_yield_pct"`
	GrillerCostPerKg string `json:"griller_cost_per_kg"`
}

// ByProductCreditDTO is Level2.
type ByProductCreditDTO struct {
	Lines           []ByProductLineDTO `json:"lines"`
	CreditEUR       string             `json:"credit_eur"`
	NetJointCostEUR string             `json:"net_joint_cost_eur"`
	Clamped         bool               `json:"clamped"`
}

// ByProductLineDTO is one credited by-product.
type ByProductLineDTO struct {
	Code      string `json:"code"`
	WeightKg  string `json:"weight_kg"`
	CreditEUR string `json:"credit_eur"`
}

// SVASODTO is Level3.
type SVASODTO struct {
	NetJointCostEUR    string          `json:"net_joint_cost_eur"`
	TotalRelativeValue string          `json:"total_relative_value"`
	KFactor            string          `json:"k_factor"`
	KFactorBand        string          `json:"k_factor_band"`
	Allocations        []AllocationDTO `json:"allocations"`
	MassBalance        MassBalanceDTO  `json:"mass_balance"`
}

// AllocationDTO is one SVASO line.
type AllocationDTO struct {
	Code               string `json:"code"`
	WeightKg           string `json:"weight_kg"`
	MarketPricePerKg   string `json:"market_price_per_kg"`
	RelativeValue      string `json:"relative_value"`
	Share              string `json:"share"`
	AllocatedCostEUR   string `json:"allocated_cost_eur"`
	AllocatedCostPerKg string `json:"allocated_cost_per_kg"`
}

// MassBalanceDTO is a MassBalanceCheck.
type MassBalanceDTO struct {
	GrillerKg        string `json:"griller_kg"`
	JointKg          string `json:"joint_kg"`
	ByProductKg      string `json:"by_product_kg"`
	DocumentedLossKg string `json:"documented_loss_kg"`
	AccountedKg      string `json:"accounted_kg"`
	DeviationKg      string `json:"deviation_kg"`
	ToleranceKg      string `json:"tolerance_kg"`
	WithinTolerance  bool   `json:"within_tolerance"`
}

// SubAllocationDTO is one mini-SVASO parent.
type SubAllocationDTO struct {
	ParentCode  string          `json:"parent_code"`
	PoolEUR     string          `json:"pool_eur"`
	ParentKg    string          `json:"parent_kg"`
	TotalCutsKg string          `json:"total_cuts_kg"`
	KFactor     string          `json:"k_factor"`
	Cuts        []AllocationDTO `json:"cuts"`
}

// RouteDTO is one executed processing route.
type RouteDTO struct {
	RouteID                  string          `json:"route_id"`
	EndProduct               string          `json:"end_product"`
	InputKg                  string          `json:"input_kg"`
	Recipe                   []RecipeLineDTO `json:"recipe"`
	WeightedSourceCostPerKg  string          `json:"weighted_source_cost_per_kg"`
	YieldFactor              string          `json:"yield_factor"`
	YieldDerived             bool            `json:"yield_derived"`
	YieldAdjustedCostPerKg   string          `json:"yield_adjusted_cost_per_kg"`
	Steps                    []StepDTO       `json:"steps"`
	TotalProcessingCostPerKg string          `json:"total_processing_cost_per_kg"`
	EndProductKg             string          `json:"end_product_kg"`
	EndProductCostPerKg      string          `json:"end_product_cost_per_kg"`
	ByProductOutputs         []OutputFlowDTO `json:"by_product_outputs,omitempty"`
}

// RecipeLineDTO is one blended source.
type RecipeLineDTO struct {
	PartCode          string `json:"part_code"`
	Ratio             string `json:"ratio"`
	ConsumedKg        string `json:"consumed_kg"`
	CostPerKg         string `json:"cost_per_kg"`
	WeightedCostPerKg string `json:"weighted_cost_per_kg"`
}

// StepDTO is one executed processing step.
type StepDTO struct {
	ID        string          `json:"id"`
	Processor string          `json:"processor"`
	Activity  string          `json:"activity"`
	CostPerKg string          `json:"cost_per_kg"`
	InputKg   string          `json:"input_kg"`
	Outputs   []OutputFlowDTO `json:"outputs"`
}

// OutputFlowDTO is one product leaving a step.
type OutputFlowDTO struct {
	Product     string `json:"product"`
	Kg          string `json:"kg"`
	IsByProduct bool   `json:"is_by_product,omitempty"`
}

// ABCDTO is the processing cost of one SKU.
type ABCDTO struct {
	SKUCode   string       `json:"sku_code"`
	CostPerKg string       `json:"cost_per_kg"`
	Lines     []ABCLineDTO `json:"lines,omitempty"`
}

// ABCLineDTO is one activity driver.
type ABCLineDTO struct {
	Activity       string `json:"activity"`
	RatePerUnit    string `json:"rate_per_unit"`
	DriverQuantity string `json:"driver_quantity"`
	CostPerKg      string `json:"cost_per_kg"`
}

// SKUCostDTO is Level6 for one SKU.
type SKUCostDTO struct {
	SKUCode          string `json:"sku_code"`
	SourceKind       string `json:"source_kind"`
	SourceCode       string `json:"source_code,omitempty"`
	MeatCostPerKg    string `json:"meat_cost_per_kg"`
	ABCCostPerKg     string `json:"abc_cost_per_kg"`
	FixedAddersPerKg string `json:"fixed_adders_per_kg"`
	CostPerKg        string `json:"cost_per_kg"`
}

// NRVDTO is Level7 for one SKU.
type NRVDTO struct {
	SKUCode            string `json:"sku_code"`
	StandardPricePerKg string `json:"standard_price_per_kg"`
	SellingCostPerKg   string `json:"selling_cost_per_kg"`
	NRVPerKg           string `json:"nrv_per_kg"`
	CostPerKg          string `json:"cost_per_kg"`
	Variance           string `json:"variance"`
	Pass               bool   `json:"pass"`
}

// WarningDTO is a non-fatal condition.
type WarningDTO struct {
	Code    string   `json:"code"`
	Stage   string   `json:"stage"`
	Message string   `json:"message"`
	Parts   []string `json:"parts,omitempty"`
}

// AuditEntryDTO keeps full precision.
type AuditEntryDTO struct {
	Stage   string            `json:"stage"`
	Subject string            `json:"subject,omitempty"`
	Formula string            `json:"formula"`
	Inputs  map[string]string `json:"inputs"`
	Result  string            `json:"result"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDiffRequest is the body of POST /api/scenarios/diff. The baseline is
// either an inline input document or a stored run.
type ScenarioDiffRequest struct {
	Input         *factory.RunInputJSON       `json:"input,omitempty"`
	BaselineRunID string                      `json:"baseline_run_id,omitempty"`
	Changes       factory.ScenarioChangesJSON `json:"changes"`
}

// ScenarioDiffDTO is a ScenarioResult.
type ScenarioDiffDTO struct {
	Label       string               `json:"label,omitempty"`
	Deltas      []DeltaDTO           `json:"deltas"`
	PartShifts  []AllocationShiftDTO `json:"part_shifts,omitempty"`
	MassBalance struct {
		Baseline MassBalanceDTO `json:"baseline"`
		Scenario MassBalanceDTO `json:"scenario"`
	} `json:"mass_balance"`
	Baseline CostRunResultDTO `json:"baseline"`
	Scenario CostRunResultDTO `json:"scenario"`
}

// DeltaDTO is one changed metric.
type DeltaDTO struct {
	Stage     string  `json:"stage"`
	Metric    string  `json:"metric"`
	Baseline  string  `json:"baseline"`
	Scenario  string  `json:"scenario"`
	Change    string  `json:"change"`
	ChangePct *string `json:"change_pct"`
}

// AllocationShiftDTO is the SVASO movement of one part.
type AllocationShiftDTO struct {
	PartCode        string  `json:"part_code"`
	BaselineShare   string  `json:"baseline_share"`
	ScenarioShare   string  `json:"scenario_share"`
	ShareDelta      string  `json:"share_delta"`
	BaselineCostEUR string  `json:"baseline_cost_eur"`
	ScenarioCostEUR string  `json:"scenario_cost_eur"`
	CostDeltaEUR    string  `json:"cost_delta_eur"`
	CostDeltaPct    *string `json:"cost_delta_pct"`
	BaselinePerKg   string  `json:"baseline_per_kg"`
	ScenarioPerKg   string  `json:"scenario_per_kg"`
	PerKgDelta      string  `json:"per_kg_delta"`
}

// =============================================================================
// DEMOS
// =============================================================================

// DemoDTO represents a demo batch.
type DemoDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Profile     string `json:"profile"`
	HasScenario bool   `json:"has_scenario"`
}

// DemoRunDTO is the response of POST /api/demos/{id}/run.
type DemoRunDTO struct {
	Demo     DemoDTO          `json:"demo"`
	Run      CostRunDTO       `json:"run"`
	Scenario *ScenarioDiffDTO `json:"scenario,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

// formatter renders decimals at a fixed number of places.
type formatter struct {
	places int32
}

func (f formatter) dec(d decimal.Decimal) string {
	return d.StringFixed(f.places)
}

func (f formatter) pct(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(f.places)
	return &s
}

func (f formatter) result(res *costing.CostAllocationResult) CostRunResultDTO {
	out := CostRunResultDTO{
		BatchID:  res.BatchID,
		Profile:  res.Profile,
		Warnings: toWarningDTOs(res.Warnings),
		Audit:    toAuditDTOs(res.Audit),
	}
	for _, s := range res.StagesRun {
		out.StagesRun = append(out.StagesRun, string(s))
	}

	if l := res.Level0; l != nil {
		out.LandedCost = &LandedCostDTO{
			InputLiveKg:     f.dec(l.InputLiveKg),
			InputCount:      l.InputCount,
			PricePerKg:      f.dec(l.PricePerKg),
			ExtraCostsEUR:   f.dec(l.ExtraCostsEUR),
			LandedCostEUR:   f.dec(l.LandedCostEUR),
			LandedCostPerKg: f.dec(l.LandedCostPerKg),
		}
	}
	if l := res.Level1; l != nil {
		out.JointCostPool = &JointCostPoolDTO{
			SlaughterFeeEUR:  f.dec(l.SlaughterFeeEUR),
			JointCostPoolEUR: f.dec(l.JointCostPoolEUR),
			GrillerWeightKg:  f.dec(l.GrillerWeightKg),
			GrillerYieldPct:  f.dec(l.GrillerYieldPct),
			GrillerCostPerKg: f.dec(l.GrillerCostPerKg),
		}
	}
	if l := res.Level2; l != nil {
		dto := &ByProductCreditDTO{
			Lines:           []ByProductLineDTO{},
			CreditEUR:       f.dec(l.CreditEUR),
			NetJointCostEUR: f.dec(l.NetJointCostEUR),
			Clamped:         l.Clamped,
		}
		for _, bl := range l.Lines {
			dto.Lines = append(dto.Lines, ByProductLineDTO{Code: bl.Code, WeightKg: f.dec(bl.WeightKg), CreditEUR: f.dec(bl.CreditEUR)})
		}
		out.ByProductCredit = dto
	}
	if l := res.Level3; l != nil {
		out.SVASO = &SVASODTO{
			NetJointCostEUR:    f.dec(l.NetJointCostEUR),
			TotalRelativeValue: f.dec(l.TotalRelativeValue),
			KFactor:            f.dec(l.KFactor),
			KFactorBand:        string(l.KFactorBand),
			Allocations:        f.allocations(l.Allocations),
			MassBalance:        f.massBalance(l.MassBalance),
		}
	}
	if l := res.Level4; l != nil {
		for _, p := range l.Parents {
			out.MiniSVASO = append(out.MiniSVASO, SubAllocationDTO{
				ParentCode:  p.ParentCode,
				PoolEUR:     f.dec(p.PoolEUR),
				ParentKg:    f.dec(p.ParentKg),
				TotalCutsKg: f.dec(p.TotalCutsKg),
				KFactor:     f.dec(p.KFactor),
				Cuts:        f.allocations(p.Cuts),
			})
		}
	}
	for _, r := range res.Routes {
		out.Routes = append(out.Routes, f.route(r))
	}
	if l := res.Level5; l != nil {
		for _, a := range l.SKUs {
			dto := ABCDTO{SKUCode: a.SKUCode, CostPerKg: f.dec(a.CostPerKg)}
			for _, line := range a.Lines {
				dto.Lines = append(dto.Lines, ABCLineDTO{
					Activity:       line.Activity,
					RatePerUnit:    f.dec(line.RatePerUnit),
					DriverQuantity: f.dec(line.DriverQuantity),
					CostPerKg:      f.dec(line.CostPerKg),
				})
			}
			out.ABC = append(out.ABC, dto)
		}
	}
	if l := res.Level6; l != nil {
		for _, s := range l.SKUs {
			out.SKUCosts = append(out.SKUCosts, SKUCostDTO{
				SKUCode:          s.SKUCode,
				SourceKind:       string(s.Source.Kind),
				SourceCode:       s.Source.Code,
				MeatCostPerKg:    f.dec(s.MeatCostPerKg),
				ABCCostPerKg:     f.dec(s.ABCCostPerKg),
				FixedAddersPerKg: f.dec(s.FixedAddersPerKg),
				CostPerKg:        f.dec(s.CostPerKg),
			})
		}
	}
	if l := res.Level7; l != nil {
		for _, c := range l.Checks {
			out.NRV = append(out.NRV, NRVDTO{
				SKUCode:            c.SKUCode,
				StandardPricePerKg: f.dec(c.StandardPricePerKg),
				SellingCostPerKg:   f.dec(c.SellingCostPerKg),
				NRVPerKg:           f.dec(c.NRVPerKg),
				CostPerKg:          f.dec(c.CostPerKg),
				Variance:           f.dec(c.Variance),
				Pass:               c.Pass,
			})
		}
	}
	return out
}

func (f formatter) allocations(allocs []costing.Allocation) []AllocationDTO {
	out := make([]AllocationDTO, len(allocs))
	for i, a := range allocs {
		out[i] = AllocationDTO{
			Code:               a.Code,
			WeightKg:           f.dec(a.WeightKg),
			MarketPricePerKg:   f.dec(a.MarketPricePerKg),
			RelativeValue:      f.dec(a.RelativeValue),
			Share:              f.dec(a.Share),
			AllocatedCostEUR:   f.dec(a.AllocatedCostEUR),
			AllocatedCostPerKg: f.dec(a.AllocatedCostPerKg),
		}
	}
	return out
}

func (f formatter) massBalance(c costing.MassBalanceCheck) MassBalanceDTO {
	return MassBalanceDTO{
		GrillerKg:        f.dec(c.GrillerKg),
		JointKg:          f.dec(c.JointKg),
		ByProductKg:      f.dec(c.ByProductKg),
		DocumentedLossKg: f.dec(c.DocumentedLossKg),
		AccountedKg:      f.dec(c.AccountedKg),
		DeviationKg:      f.dec(c.DeviationKg),
		ToleranceKg:      f.dec(c.ToleranceKg),
		WithinTolerance:  c.WithinTolerance,
	}
}

func (f formatter) flows(flows []costing.OutputFlow) []OutputFlowDTO {
	out := make([]OutputFlowDTO, len(flows))
	for i, o := range flows {
		out[i] = OutputFlowDTO{Product: o.Product, Kg: f.dec(o.Kg), IsByProduct: o.IsByProduct}
	}
	return out
}

func (f formatter) route(r costing.RouteResult) RouteDTO {
	dto := RouteDTO{
		RouteID:                  r.RouteID,
		EndProduct:               r.EndProduct,
		InputKg:                  f.dec(r.InputKg),
		WeightedSourceCostPerKg:  f.dec(r.WeightedSourceCostPerKg),
		YieldFactor:              f.dec(r.YieldFactor),
		YieldDerived:             r.YieldDerived,
		YieldAdjustedCostPerKg:   f.dec(r.YieldAdjustedCostPerKg),
		TotalProcessingCostPerKg: f.dec(r.TotalProcessingCostPerKg),
		EndProductKg:             f.dec(r.EndProductKg),
		EndProductCostPerKg:      f.dec(r.EndProductCostPerKg),
		Steps:                    []StepDTO{},
	}
	for _, l := range r.Recipe {
		dto.Recipe = append(dto.Recipe, RecipeLineDTO{
			PartCode:          l.PartCode,
			Ratio:             f.dec(l.Ratio),
			ConsumedKg:        f.dec(l.ConsumedKg),
			CostPerKg:         f.dec(l.CostPerKg),
			WeightedCostPerKg: f.dec(l.WeightedCostPerKg),
		})
	}
	for _, s := range r.Steps {
		dto.Steps = append(dto.Steps, StepDTO{
			ID:        s.ID,
			Processor: s.Processor,
			Activity:  s.Activity,
			CostPerKg: f.dec(s.CostPerKg),
			InputKg:   f.dec(s.InputKg),
			Outputs:   f.flows(s.Outputs),
		})
	}
	if len(r.ByProductOutputs) > 0 {
		dto.ByProductOutputs = f.flows(r.ByProductOutputs)
	}
	return dto
}

func (f formatter) scenario(s *costing.ScenarioResult) ScenarioDiffDTO {
	out := ScenarioDiffDTO{
		Label:    s.Label,
		Deltas:   make([]DeltaDTO, len(s.Deltas)),
		Baseline: f.result(s.Baseline),
		Scenario: f.result(s.Scenario),
	}
	out.MassBalance.Baseline = f.massBalance(s.MassBalance.Baseline)
	out.MassBalance.Scenario = f.massBalance(s.MassBalance.Scenario)

	for i, d := range s.Deltas {
		out.Deltas[i] = DeltaDTO{
			Stage:     string(d.Stage),
			Metric:    d.Metric,
			Baseline:  f.dec(d.Baseline),
			Scenario:  f.dec(d.Scenario),
			Change:    f.dec(d.Change),
			ChangePct: f.pct(d.ChangePct),
		}
	}
	for _, p := range s.PartShifts {
		out.PartShifts = append(out.PartShifts, AllocationShiftDTO{
			PartCode:        p.PartCode,
			BaselineShare:   f.dec(p.BaselineShare),
			ScenarioShare:   f.dec(p.ScenarioShare),
			ShareDelta:      f.dec(p.ShareDelta),
			BaselineCostEUR: f.dec(p.BaselineCostEUR),
			ScenarioCostEUR: f.dec(p.ScenarioCostEUR),
			CostDeltaEUR:    f.dec(p.CostDeltaEUR),
			CostDeltaPct:    f.pct(p.CostDeltaPct),
			BaselinePerKg:   f.dec(p.BaselinePerKg),
			ScenarioPerKg:   f.dec(p.ScenarioPerKg),
			PerKgDelta:      f.dec(p.PerKgDelta),
		})
	}
	return out
}

func toWarningDTOs(ws []costing.Warning) []WarningDTO {
	out := make([]WarningDTO, len(ws))
	for i, w := range ws {
		out[i] = WarningDTO{Code: string(w.Code), Stage: string(w.Stage), Message: w.Message, Parts: w.Parts}
	}
	return out
}

func toAuditDTOs(trail costing.AuditTrail) []AuditEntryDTO {
	out := make([]AuditEntryDTO, len(trail))
	for i, e := range trail {
		inputs := make(map[string]string, len(e.Inputs))
		for _, in := range e.Inputs {
			inputs[in.Name] = in.Value.String()
		}
		out[i] = AuditEntryDTO{
			Stage:   string(e.Stage),
			Subject: e.Subject,
			Formula: e.Formula,
			Inputs:  inputs,
			Result:  e.Result.String(),
		}
	}
	return out
}

func toProfileDTO(p costing.BatchProfile, source string, version int, pf *factory.ProfileFactory) ProfileDTO {
	dto := ProfileDTO{
		Name:    p.Name,
		Source:  source,
		Version: version,
		Config:  pf.ToJSON(p),
	}
	for _, s := range costing.Plan(p) {
		dto.Stages = append(dto.Stages, string(s))
	}
	return dto
}
