/*
scenario.go - What-if diffing

PURPOSE:
  Answers "what happens to every cost if prices or yields change?" by running
  the full pipeline twice, once on the baseline input and once on a modified
  copy, and reporting per-level deltas plus a per-part SVASO shift table.

MASS-BALANCE GUARD:
  Before either run, both inputs must satisfy

    |Σ joint_kg + Σ by_product_kg + documented_loss_kg - griller_kg| ≤ tolerance_kg

  i.e. the joint products account for the griller weight net of by-products and
  recorded loss. Unlike the pipeline's own warning, a violation here is fatal:
  scenario output feeds decisions directly.

CONCURRENCY:
  Baseline and scenario runs share nothing and run in parallel (errgroup).
  Both are pure, so the outcome is identical to running them in sequence.

SEE ALSO:
  - pipeline.go: the runner invoked twice
  - massbalance.go: CheckMassBalance
*/
package costing

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// StageScenario labels errors raised while applying scenario changes.
const StageScenario Stage = "scenario"

// ScenarioChanges are the edits applied to a copy of the baseline input.
// Nil pointers and absent map keys leave the baseline value alone.
type ScenarioChanges struct {
	Label           string
	LivePricePerKg  *decimal.Decimal
	SlaughterFeeEUR *decimal.Decimal
	GrillerYieldPct *decimal.Decimal // fraction of live weight; rescales every output weight
	PartPrices      map[string]decimal.Decimal
	PartWeights     map[string]decimal.Decimal
	ByProductPrices map[string]decimal.Decimal
	SKUPrices       map[string]decimal.Decimal // NRV standard price per kg
}

// Apply returns a modified deep copy of in. Codes that do not exist in the
// input are rejected.
func (c ScenarioChanges) Apply(in PipelineInput) (PipelineInput, error) {
	out := in.Clone()

	if c.LivePricePerKg != nil {
		if c.LivePricePerKg.IsNegative() {
			return PipelineInput{}, invalid(StageScenario, "live_price_per_kg", "must be >= 0, got %s", *c.LivePricePerKg)
		}
		out.Batch.PricePerKg = *c.LivePricePerKg
	}
	if c.SlaughterFeeEUR != nil {
		out.Batch.SlaughterFeeEUR = *c.SlaughterFeeEUR
	}
	if c.GrillerYieldPct != nil {
		if err := rescaleYield(&out, *c.GrillerYieldPct); err != nil {
			return PipelineInput{}, err
		}
	}

	for _, code := range sortedKeys(c.PartPrices) {
		i := indexJoint(out.JointProducts, code)
		if i < 0 {
			return PipelineInput{}, invalid(StageScenario, "part_prices", "unknown joint product %q", code)
		}
		out.JointProducts[i].MarketPricePerKg = c.PartPrices[code]
	}
	for _, code := range sortedKeys(c.PartWeights) {
		i := indexJoint(out.JointProducts, code)
		if i < 0 {
			return PipelineInput{}, invalid(StageScenario, "part_weights", "unknown joint product %q", code)
		}
		out.JointProducts[i].WeightKg = c.PartWeights[code]
	}
	for _, code := range sortedKeys(c.ByProductPrices) {
		found := false
		for i := range out.ByProducts {
			if out.ByProducts[i].Code == code {
				out.ByProducts[i].MarketPricePerKg = c.ByProductPrices[code]
				found = true
			}
		}
		if !found {
			return PipelineInput{}, invalid(StageScenario, "by_product_prices", "unknown by-product %q", code)
		}
	}
	for _, code := range sortedKeys(c.SKUPrices) {
		found := false
		for i := range out.NRVInputs {
			if out.NRVInputs[i].SKUCode == code {
				out.NRVInputs[i].StandardPricePerKg = c.SKUPrices[code]
				found = true
			}
		}
		if !found {
			return PipelineInput{}, invalid(StageScenario, "sku_prices", "no NRV input for SKU %q", code)
		}
	}
	return out, nil
}

// rescaleYield moves the griller weight to live_kg * yield and scales every
// output weight by the same factor.
func rescaleYield(in *PipelineInput, yield decimal.Decimal) error {
	if !yield.IsPositive() || yield.GreaterThan(one) {
		return invalid(StageScenario, "griller_yield_pct", "must be in (0, 1], got %s", yield)
	}
	if !in.Batch.GrillerWeightKg.IsPositive() {
		return degenerate(StageScenario, "griller_weight_kg", "cannot rescale a zero griller weight")
	}
	newGriller := in.Batch.InputLiveKg.Mul(yield)
	factor := newGriller.Div(in.Batch.GrillerWeightKg)

	in.Batch.GrillerWeightKg = newGriller
	in.Batch.DocumentedLossKg = in.Batch.DocumentedLossKg.Mul(factor)
	for i := range in.JointProducts {
		in.JointProducts[i].WeightKg = in.JointProducts[i].WeightKg.Mul(factor)
	}
	for i := range in.ByProducts {
		in.ByProducts[i].WeightKg = in.ByProducts[i].WeightKg.Mul(factor)
	}
	for i := range in.SubCuts {
		in.SubCuts[i].WeightKg = in.SubCuts[i].WeightKg.Mul(factor)
	}
	for i := range in.Routes {
		in.Routes[i].InputKg = in.Routes[i].InputKg.Mul(factor)
	}
	return nil
}

// =============================================================================
// RESULTS
// =============================================================================

// Delta is one compared number.
type Delta struct {
	Stage     Stage
	Metric    string
	Baseline  decimal.Decimal
	Scenario  decimal.Decimal
	Change    decimal.Decimal
	ChangePct *decimal.Decimal // nil when the baseline is zero
}

func newDelta(stage Stage, metric string, base, scen decimal.Decimal) Delta {
	d := Delta{Stage: stage, Metric: metric, Baseline: base, Scenario: scen, Change: scen.Sub(base)}
	d.ChangePct = pctChange(base, d.Change)
	return d
}

func pctChange(base, change decimal.Decimal) *decimal.Decimal {
	if base.IsZero() {
		return nil
	}
	pct := change.Div(base).Mul(hundred)
	return &pct
}

// AllocationShift is one row of the per-part SVASO shift table.
type AllocationShift struct {
	PartCode        string
	BaselineShare   decimal.Decimal
	ScenarioShare   decimal.Decimal
	ShareDelta      decimal.Decimal
	BaselineCostEUR decimal.Decimal
	ScenarioCostEUR decimal.Decimal
	CostDeltaEUR    decimal.Decimal
	CostDeltaPct    *decimal.Decimal
	BaselinePerKg   decimal.Decimal
	ScenarioPerKg   decimal.Decimal
	PerKgDelta      decimal.Decimal
}

// ScenarioMassBalance records the guard on both inputs.
type ScenarioMassBalance struct {
	Baseline MassBalanceCheck
	Scenario MassBalanceCheck
}

// ScenarioResult is the complete diff.
type ScenarioResult struct {
	Label       string
	Baseline    *CostAllocationResult
	Scenario    *CostAllocationResult
	Deltas      []Delta
	PartShifts  []AllocationShift
	MassBalance ScenarioMassBalance
}

// =============================================================================
// DIFF ENGINE
// =============================================================================

// ScenarioDiffEngine runs the pipeline twice and compares the outcomes.
type ScenarioDiffEngine struct {
	Engine *Engine
}

// NewScenarioDiffEngine wraps an engine.
func NewScenarioDiffEngine(e *Engine) *ScenarioDiffEngine {
	return &ScenarioDiffEngine{Engine: e}
}

// Diff applies changes to a copy of baseline, guards mass balance on both
// inputs, runs both pipelines concurrently and returns the deltas.
func (s *ScenarioDiffEngine) Diff(ctx context.Context, baseline PipelineInput, changes ScenarioChanges) (*ScenarioResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scenario, err := changes.Apply(baseline)
	if err != nil {
		return nil, err
	}

	baseCheck, err := s.guard("baseline", baseline)
	if err != nil {
		return nil, err
	}
	scenCheck, err := s.guard("scenario", scenario)
	if err != nil {
		return nil, err
	}

	var baseRes, scenRes *CostAllocationResult
	var g errgroup.Group
	g.Go(func() error {
		r, err := s.Engine.Run(baseline)
		baseRes = r
		return err
	})
	g.Go(func() error {
		r, err := s.Engine.Run(scenario)
		scenRes = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &ScenarioResult{
		Label:       changes.Label,
		Baseline:    baseRes,
		Scenario:    scenRes,
		Deltas:      levelDeltas(baseRes, scenRes),
		PartShifts:  partShifts(baseRes.Level3, scenRes.Level3),
		MassBalance: ScenarioMassBalance{Baseline: baseCheck, Scenario: scenCheck},
	}, nil
}

// guard is the fatal mass-balance check. Whole-bird batches have one joint
// product, the griller itself, and pass trivially.
func (s *ScenarioDiffEngine) guard(label string, in PipelineInput) (MassBalanceCheck, error) {
	griller := in.Batch.GrillerWeightKg
	if err := ValidateDocumentedLoss(in.Batch.DocumentedLossKg, griller); err != nil {
		return MassBalanceCheck{}, err
	}
	if in.Profile.WholeBirdOnly {
		whole := []JointProduct{{PartCode: "griller", WeightKg: griller}}
		return CheckMassBalance(griller, whole, nil, decimal.Zero, s.Engine.Settings.MassBalanceTolerancePct), nil
	}

	check := CheckMassBalance(griller, in.JointProducts, in.ByProducts, in.Batch.DocumentedLossKg,
		s.Engine.Settings.MassBalanceTolerancePct)
	check.ToleranceKg = s.Engine.Settings.scenarioToleranceKg(griller)
	check.WithinTolerance = check.DeviationKg.Abs().LessThanOrEqual(check.ToleranceKg)
	if check.WithinTolerance {
		return check, nil
	}

	var parts []string
	if w := check.Warning(in.JointProducts, in.ByProducts); w != nil {
		parts = w.Parts
	}
	return check, &MassBalanceViolation{
		Label:       label,
		GrillerKg:   griller,
		AccountedKg: check.AccountedKg,
		DeviationKg: check.DeviationKg,
		ToleranceKg: check.ToleranceKg,
		Parts:       parts,
	}
}

func levelDeltas(base, scen *CostAllocationResult) []Delta {
	var out []Delta
	out = append(out,
		newDelta(StageLandedCost, "landed_cost_eur", base.Level0.LandedCostEUR, scen.Level0.LandedCostEUR),
		newDelta(StageLandedCost, "landed_cost_per_kg", base.Level0.LandedCostPerKg, scen.Level0.LandedCostPerKg),
		newDelta(StageJointCostPool, "joint_cost_pool_eur", base.Level1.JointCostPoolEUR, scen.Level1.JointCostPoolEUR),
		newDelta(StageJointCostPool, "griller_cost_per_kg", base.Level1.GrillerCostPerKg, scen.Level1.GrillerCostPerKg),
	)
	if base.Level2 != nil && scen.Level2 != nil {
		out = append(out,
			newDelta(StageByProductCredit, "by_product_credit_eur", base.Level2.CreditEUR, scen.Level2.CreditEUR),
			newDelta(StageByProductCredit, "net_joint_cost_eur", base.Level2.NetJointCostEUR, scen.Level2.NetJointCostEUR),
		)
	}
	if base.Level3 != nil && scen.Level3 != nil {
		out = append(out,
			newDelta(StageSVASO, "total_relative_value", base.Level3.TotalRelativeValue, scen.Level3.TotalRelativeValue),
			newDelta(StageSVASO, "k_factor", base.Level3.KFactor, scen.Level3.KFactor),
		)
	}
	if base.Level4 != nil && scen.Level4 != nil {
		for _, p := range base.Level4.Parents {
			for _, c := range p.Cuts {
				sc, _ := scen.Level4.Cut(c.Code)
				out = append(out, newDelta(StageMiniSVASO, "sub_cut_cost_per_kg:"+c.Code, c.AllocatedCostPerKg, sc.AllocatedCostPerKg))
			}
		}
	}
	for _, r := range base.Routes {
		sr, _ := scen.Route(r.RouteID)
		out = append(out, newDelta(StageProcessChain, "route_cost_per_kg:"+r.RouteID, r.EndProductCostPerKg, sr.EndProductCostPerKg))
	}
	if base.Level6 != nil && scen.Level6 != nil {
		for _, c := range base.Level6.SKUs {
			sc, _ := scen.Level6.SKU(c.SKUCode)
			out = append(out, newDelta(StageSKUCost, "sku_cost_per_kg:"+c.SKUCode, c.CostPerKg, sc.CostPerKg))
		}
	}
	if base.Level7 != nil && scen.Level7 != nil {
		for _, c := range base.Level7.Checks {
			sc, _ := scen.Level7.SKU(c.SKUCode)
			out = append(out, newDelta(StageNRV, "nrv_variance_per_kg:"+c.SKUCode, c.Variance, sc.Variance))
		}
	}
	return out
}

func partShifts(base, scen *Level3) []AllocationShift {
	if base == nil || scen == nil {
		return nil
	}
	out := make([]AllocationShift, 0, len(base.Allocations))
	for _, b := range base.Allocations {
		s, _ := scen.Allocation(b.Code)
		change := s.AllocatedCostEUR.Sub(b.AllocatedCostEUR)
		out = append(out, AllocationShift{
			PartCode:        b.Code,
			BaselineShare:   b.Share,
			ScenarioShare:   s.Share,
			ShareDelta:      s.Share.Sub(b.Share),
			BaselineCostEUR: b.AllocatedCostEUR,
			ScenarioCostEUR: s.AllocatedCostEUR,
			CostDeltaEUR:    change,
			CostDeltaPct:    pctChange(b.AllocatedCostEUR, change),
			BaselinePerKg:   b.AllocatedCostPerKg,
			ScenarioPerKg:   s.AllocatedCostPerKg,
			PerKgDelta:      s.AllocatedCostPerKg.Sub(b.AllocatedCostPerKg),
		})
	}
	return out
}

func indexJoint(parts []JointProduct, code string) int {
	for i, p := range parts {
		if p.PartCode == code {
			return i
		}
	}
	return -1
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
