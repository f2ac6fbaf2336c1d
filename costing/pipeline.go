/*
pipeline.go - The generic waterfall runner

PURPOSE:
  Runs Level0..Level7 for one batch. The BatchProfile decides which stages
  run (profile.go); this file has exactly one runner for every profile.

CONTROL FLOW:
  Landed → JointPool → ByProductCredit → SVASO → {MiniSVASO | ProcessChain}
         → ABC → SKUCost → NRV

  Any stage error aborts the run and is returned as is. A run either returns a
  fully populated result or an error; partial results never escape.

CONCURRENCY:
  Engine holds only read-only Settings. Run has no side effects and may be
  called concurrently for different batches.

SEE ALSO:
  - scenario.go: runs this pipeline twice and diffs the results
*/
package costing

import (
	"github.com/shopspring/decimal"
)

// CostAllocationResult is the complete output of one pipeline run. Levels a
// profile skips are nil.
type CostAllocationResult struct {
	BatchID   string
	Profile   string
	StagesRun []Stage

	Level0 *Level0
	Level1 *Level1
	Level2 *Level2
	Level3 *Level3
	Level4 *Level4
	Routes []RouteResult
	Level5 *Level5
	Level6 *Level6
	Level7 *Level7

	Warnings []Warning
	Audit    AuditTrail
}

// Route returns the result of a route by id.
func (r *CostAllocationResult) Route(id string) (RouteResult, bool) {
	for _, rr := range r.Routes {
		if rr.RouteID == id {
			return rr, true
		}
	}
	return RouteResult{}, false
}

// Engine runs the pipeline with fixed settings.
type Engine struct {
	Settings Settings
}

// NewEngine creates an engine.
func NewEngine(settings Settings) *Engine {
	return &Engine{Settings: settings}
}

// Run executes every stage the profile plans.
func (e *Engine) Run(in PipelineInput) (*CostAllocationResult, error) {
	if err := e.Settings.Validate(); err != nil {
		return nil, invalid("settings", "settings", "%v", err)
	}
	if err := in.Profile.Validate(); err != nil {
		return nil, err
	}

	plan := Plan(in.Profile)
	res := &CostAllocationResult{
		BatchID:   in.Batch.BatchID,
		Profile:   in.Profile.Name,
		StagesRun: plan,
	}

	var err error
	for _, stage := range plan {
		switch stage {
		case StageLandedCost:
			if res.Level0, err = CalculateLandedCost(in.Batch); err != nil {
				return nil, err
			}
			res.Audit = append(res.Audit, res.Level0.Audit...)

		case StageJointCostPool:
			if res.Level1, err = BuildJointCostPool(res.Level0, in.Batch.SlaughterFeeEUR, in.Batch.GrillerWeightKg); err != nil {
				return nil, err
			}
			if err := ValidateDocumentedLoss(in.Batch.DocumentedLossKg, res.Level1.GrillerWeightKg); err != nil {
				return nil, err
			}
			res.Audit = append(res.Audit, res.Level1.Audit...)

		case StageByProductCredit:
			if res.Level2, err = ApplyByProductCredit(res.Level1, in.ByProducts); err != nil {
				return nil, err
			}
			res.Warnings = append(res.Warnings, res.Level2.Warnings...)
			res.Audit = append(res.Audit, res.Level2.Audit...)

		case StageSVASO:
			if err := e.runSVASO(in, res); err != nil {
				return nil, err
			}

		case StageMiniSVASO:
			if res.Level4, err = AllocateMiniSVASO(res.Level3, in.SubCuts, in.Profile.MiniSVASOParts, e.Settings.MassBalanceTolerancePct); err != nil {
				return nil, err
			}
			res.Warnings = append(res.Warnings, res.Level4.Warnings...)
			res.Audit = append(res.Audit, res.Level4.Audit...)

		case StageProcessChain:
			routes, warnings, err := ExecuteRoutes(in.Routes, sourceCatalog{l3: res.Level3, l4: res.Level4})
			if err != nil {
				return nil, err
			}
			res.Routes = routes
			res.Warnings = append(res.Warnings, warnings...)
			for _, r := range routes {
				res.Audit = append(res.Audit, r.Audit...)
			}

		case StageABC:
			if err := runABC(in, res); err != nil {
				return nil, err
			}

		case StageSKUCost:
			if err := runSKUCost(in, res); err != nil {
				return nil, err
			}

		case StageNRV:
			if err := runNRV(in, res); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

func (e *Engine) runSVASO(in PipelineInput, res *CostAllocationResult) error {
	parts, err := ResolveJointProducts(in.Profile, in.JointProducts)
	if err != nil {
		return err
	}
	l3, err := AllocateSVASO(res.Level2, parts, e.Settings.KFactor)
	if err != nil {
		return err
	}
	l3.MassBalance = CheckMassBalance(in.Batch.GrillerWeightKg, parts, in.ByProducts,
		in.Batch.DocumentedLossKg, e.Settings.MassBalanceTolerancePct)
	if w := l3.MassBalance.Warning(parts, in.ByProducts); w != nil {
		l3.Warnings = append(l3.Warnings, *w)
	}
	res.Level3 = l3
	res.Warnings = append(res.Warnings, l3.Warnings...)
	res.Audit = append(res.Audit, l3.Audit...)
	return nil
}

func runABC(in PipelineInput, res *CostAllocationResult) error {
	l5 := &Level5{}
	seen := make(map[string]bool, len(in.SKUs))
	for _, sku := range in.SKUs {
		if sku.SKUCode == "" {
			return invalid(StageABC, "sku_code", "SKU code is required")
		}
		if seen[sku.SKUCode] {
			return invalid(StageABC, "sku_code", "duplicate SKU %q", sku.SKUCode)
		}
		seen[sku.SKUCode] = true

		abc, err := CalculateABC(sku.SKUCode, in.ABCDrivers)
		if err != nil {
			return err
		}
		l5.SKUs = append(l5.SKUs, abc)
		res.Audit = append(res.Audit, abc.Audit...)
	}
	res.Level5 = l5
	return nil
}

func runSKUCost(in PipelineInput, res *CostAllocationResult) error {
	l6 := &Level6{}
	for _, sku := range in.SKUs {
		meat, err := meatCostPerKg(in.Profile, sku, res)
		if err != nil {
			return err
		}
		abc, _ := res.Level5.SKU(sku.SKUCode)
		cost, err := ComposeSKUCost(sku, meat, abc)
		if err != nil {
			return err
		}
		l6.SKUs = append(l6.SKUs, cost)
		res.Audit = append(res.Audit, cost.Audit...)
	}
	res.Level6 = l6
	return nil
}

func runNRV(in PipelineInput, res *CostAllocationResult) error {
	l7 := &Level7{}
	seen := make(map[string]bool, len(in.NRVInputs))
	for _, nrv := range in.NRVInputs {
		if seen[nrv.SKUCode] {
			return invalid(StageNRV, "sku_code", "duplicate NRV input for %q", nrv.SKUCode)
		}
		seen[nrv.SKUCode] = true

		cost, ok := res.Level6.SKU(nrv.SKUCode)
		if !ok {
			return invalid(StageNRV, "sku_code", "NRV input for unknown SKU %q", nrv.SKUCode)
		}
		check, err := ValidateNRV(nrv, cost.CostPerKg)
		if err != nil {
			return err
		}
		if !check.Pass {
			l7.Warnings = append(l7.Warnings, nrvWarning(check))
		}
		l7.Checks = append(l7.Checks, check)
		res.Audit = append(res.Audit, check.Audit...)
	}
	res.Level7 = l7
	res.Warnings = append(res.Warnings, l7.Warnings...)
	return nil
}

// meatCostPerKg resolves a SKU's source to an allocated cost per kg.
func meatCostPerKg(p BatchProfile, sku SkuDefinition, res *CostAllocationResult) (decimal.Decimal, error) {
	kind := sku.Source.EffectiveKind()
	if p.WholeBirdOnly || kind == SourceGriller {
		return res.Level1.GrillerCostPerKg, nil
	}

	switch kind {
	case SourcePart:
		if a, ok := res.Level3.Allocation(sku.Source.Code); ok {
			return a.AllocatedCostPerKg, nil
		}
	case SourceSubCut:
		if a, ok := res.Level4.Cut(sku.Source.Code); ok {
			return a.AllocatedCostPerKg, nil
		}
	case SourceRoute:
		if r, ok := res.Route(sku.Source.Code); ok {
			return r.EndProductCostPerKg, nil
		}
	default:
		return decimal.Zero, invalid(StageSKUCost, "source", "%s: unknown source kind %q", sku.SKUCode, sku.Source.Kind)
	}
	return decimal.Zero, invalid(StageSKUCost, "source", "%s: no allocated cost for %s %q under profile %s",
		sku.SKUCode, kind, sku.Source.Code, p.Name)
}

// sourceCatalog exposes Level3/Level4 to the process chain. Sub-cuts win over
// parts with the same code.
type sourceCatalog struct {
	l3 *Level3
	l4 *Level4
}

func (c sourceCatalog) SourceCost(code string) (decimal.Decimal, decimal.Decimal, bool) {
	if a, ok := c.l4.Cut(code); ok {
		return a.AllocatedCostPerKg, a.WeightKg, true
	}
	if c.l3 != nil {
		if a, ok := c.l3.Allocation(code); ok {
			return a.AllocatedCostPerKg, a.WeightKg, true
		}
	}
	return decimal.Zero, decimal.Zero, false
}
