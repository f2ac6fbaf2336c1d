/*
processchain.go - Multi-step and blend processing routes

PURPOSE:
  Costs end products that are made off-site or in several stages, from one or
  more SVASO-costed source parts.

FORMULAS (blend route):
  weighted_source_cost   = Σ ratio_i * cost_per_kg_i
  yield_adjusted_cost    = weighted_source_cost / yield_factor
  total_processing_cost  = Σ step.cost_per_kg
  end_product_cost_per_kg = yield_adjusted_cost + total_processing_cost

TOPOLOGY:
  A route's steps form a graph (route_graph.go). Steps that name no inputs take
  the previous step's main outputs; steps that name no outputs yield one main
  product at 100%. The graph is validated before anything is costed, then
  walked in topological order to compute kg flows. When yield_factor is not
  given it is derived as end_product_kg / input_kg.

MASS BALANCE:
  Consumption is checked across all routes: if the routes together draw more
  of a part than the batch produced, a route_mass_balance warning names it.
  The check never stops the run.
*/
package costing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ratioTolerance bounds |Σ ratio - 1| for blend recipes.
var ratioTolerance = MustParseDecimal("0.000000001")

// BlendSource is one weighted part in a blend recipe.
type BlendSource struct {
	PartCode string
	Ratio    decimal.Decimal
}

// StepOutput is one product leaving a step.
type StepOutput struct {
	Product     string
	YieldPct    decimal.Decimal // percent of the step's input kg
	IsByProduct bool
}

// RouteStep is one processing node.
type RouteStep struct {
	ID        string
	Processor string
	Activity  string
	CostPerKg decimal.Decimal
	Inputs    []string
	Outputs   []StepOutput
}

// ProcessingRoute turns source parts into one end product.
type ProcessingRoute struct {
	RouteID     string
	EndProduct  string
	Sources     []BlendSource
	InputKg     decimal.Decimal // kg of blended source material entering the route
	YieldFactor decimal.Decimal // zero derives it from the step graph
	Steps       []RouteStep
}

// Clone deep-copies the route.
func (r ProcessingRoute) Clone() ProcessingRoute {
	out := r
	out.Sources = append([]BlendSource(nil), r.Sources...)
	out.Steps = make([]RouteStep, len(r.Steps))
	for i, s := range r.Steps {
		s.Inputs = append([]string(nil), s.Inputs...)
		s.Outputs = append([]StepOutput(nil), s.Outputs...)
		out.Steps[i] = s
	}
	return out
}

// SourceLookup resolves the allocated cost and available weight of a part or sub-cut.
type SourceLookup interface {
	SourceCost(code string) (costPerKg, availableKg decimal.Decimal, ok bool)
}

// =============================================================================
// RESULTS
// =============================================================================

// RecipeLine is the breakdown of one blend source.
type RecipeLine struct {
	PartCode          string
	Ratio             decimal.Decimal
	ConsumedKg        decimal.Decimal
	CostPerKg         decimal.Decimal
	WeightedCostPerKg decimal.Decimal
}

// OutputFlow is the kg of one product leaving a step.
type OutputFlow struct {
	Product     string
	Kg          decimal.Decimal
	IsByProduct bool
}

// StepResult is one executed step.
type StepResult struct {
	ID        string
	Processor string
	Activity  string
	CostPerKg decimal.Decimal
	InputKg   decimal.Decimal
	Outputs   []OutputFlow
}

// RouteResult is the full costing of one route.
type RouteResult struct {
	RouteID                  string
	EndProduct               string
	InputKg                  decimal.Decimal
	Recipe                   []RecipeLine
	WeightedSourceCostPerKg  decimal.Decimal
	YieldFactor              decimal.Decimal
	YieldDerived             bool
	YieldAdjustedCostPerKg   decimal.Decimal
	Steps                    []StepResult
	TotalProcessingCostPerKg decimal.Decimal
	EndProductKg             decimal.Decimal
	EndProductCostPerKg      decimal.Decimal
	ByProductOutputs         []OutputFlow
	Audit                    []AuditEntry
}

// =============================================================================
// EXECUTION
// =============================================================================

// ExecuteRoutes costs every route and runs the cross-route consumption check.
func ExecuteRoutes(routes []ProcessingRoute, lookup SourceLookup) ([]RouteResult, []Warning, error) {
	seen := make(map[string]bool, len(routes))
	results := make([]RouteResult, 0, len(routes))
	consumed := make(map[string]decimal.Decimal)
	var order []string

	for _, r := range routes {
		if r.RouteID == "" {
			return nil, nil, routeInvalidf("", "route id is required")
		}
		if seen[r.RouteID] {
			return nil, nil, routeInvalidf(r.RouteID, "duplicate route id")
		}
		seen[r.RouteID] = true

		res, err := ExecuteRoute(r, lookup)
		if err != nil {
			return nil, nil, err
		}
		for _, line := range res.Recipe {
			if _, ok := consumed[line.PartCode]; !ok {
				order = append(order, line.PartCode)
				consumed[line.PartCode] = decimal.Zero
			}
			consumed[line.PartCode] = consumed[line.PartCode].Add(line.ConsumedKg)
		}
		results = append(results, res)
	}

	var warnings []Warning
	for _, code := range order {
		_, available, _ := lookup.SourceCost(code)
		if consumed[code].LessThanOrEqual(available) {
			continue
		}
		warnings = append(warnings, Warning{
			Code:  WarnRouteMassBalance,
			Stage: StageProcessChain,
			Message: fmt.Sprintf("routes consume %s kg of %s but only %s kg is available",
				consumed[code].StringFixed(3), code, available.StringFixed(3)),
			Parts: append([]string{code}, routesUsing(results, code)...),
		})
	}
	return results, warnings, nil
}

func routesUsing(results []RouteResult, code string) []string {
	var ids []string
	for _, r := range results {
		for _, l := range r.Recipe {
			if l.PartCode == code {
				ids = append(ids, r.RouteID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// ExecuteRoute validates and costs one route.
func ExecuteRoute(r ProcessingRoute, lookup SourceLookup) (RouteResult, error) {
	if r.EndProduct == "" {
		return RouteResult{}, routeInvalidf(r.RouteID, "end product is required")
	}
	if len(r.Sources) == 0 {
		return RouteResult{}, routeInvalidf(r.RouteID, "at least one blend source is required")
	}
	if !r.InputKg.IsPositive() {
		return RouteResult{}, routeInvalidf(r.RouteID, "input_kg must be > 0, got %s", r.InputKg)
	}
	if r.YieldFactor.IsNegative() {
		return RouteResult{}, routeInvalidf(r.RouteID, "yield_factor must be >= 0, got %s", r.YieldFactor)
	}

	g, err := buildRouteGraph(r)
	if err != nil {
		return RouteResult{}, err
	}

	res := RouteResult{RouteID: r.RouteID, EndProduct: r.EndProduct, InputKg: r.InputKg}

	// recipe
	kg := make(map[string]decimal.Decimal)
	ratioSum := decimal.Zero
	weighted := decimal.Zero
	seen := make(map[string]bool, len(r.Sources))
	for _, src := range r.Sources {
		if seen[src.PartCode] {
			return RouteResult{}, routeInvalidf(r.RouteID, "duplicate blend source %q", src.PartCode)
		}
		seen[src.PartCode] = true
		if src.Ratio.IsNegative() {
			return RouteResult{}, routeInvalidf(r.RouteID, "blend ratio of %q must be >= 0", src.PartCode)
		}
		cost, _, ok := lookup.SourceCost(src.PartCode)
		if !ok {
			return RouteResult{}, invalid(StageProcessChain, "sources", "route %s: no allocated cost for %q", r.RouteID, src.PartCode)
		}
		line := RecipeLine{
			PartCode:          src.PartCode,
			Ratio:             src.Ratio,
			ConsumedKg:        r.InputKg.Mul(src.Ratio),
			CostPerKg:         cost,
			WeightedCostPerKg: src.Ratio.Mul(cost),
		}
		kg[src.PartCode] = line.ConsumedKg
		ratioSum = ratioSum.Add(src.Ratio)
		weighted = weighted.Add(line.WeightedCostPerKg)
		res.Recipe = append(res.Recipe, line)
		res.Audit = append(res.Audit, audit(StageProcessChain, r.RouteID+"/"+src.PartCode, "ratio * cost_per_kg", line.WeightedCostPerKg,
			"ratio", src.Ratio, "cost_per_kg", cost))
	}
	if ratioSum.Sub(one).Abs().GreaterThan(ratioTolerance) {
		return RouteResult{}, routeInvalidf(r.RouteID, "blend ratios sum to %s, want 1", ratioSum)
	}
	res.WeightedSourceCostPerKg = weighted

	// kg flows in topological order
	processing := decimal.Zero
	for _, idx := range g.topoOrder() {
		s := g.steps[idx]
		in := decimal.Zero
		for _, p := range s.Inputs {
			in = in.Add(kg[p])
		}
		sr := StepResult{ID: s.ID, Processor: s.Processor, Activity: s.Activity, CostPerKg: s.CostPerKg, InputKg: in}
		for _, o := range s.Outputs {
			flow := OutputFlow{Product: o.Product, Kg: in.Mul(o.YieldPct).Div(hundred), IsByProduct: o.IsByProduct}
			kg[o.Product] = flow.Kg
			sr.Outputs = append(sr.Outputs, flow)
			if o.IsByProduct {
				res.ByProductOutputs = append(res.ByProductOutputs, flow)
			}
		}
		processing = processing.Add(s.CostPerKg)
		res.Steps = append(res.Steps, sr)
	}
	res.TotalProcessingCostPerKg = processing

	if len(g.steps) == 0 {
		res.EndProductKg = r.InputKg
	} else {
		res.EndProductKg = kg[r.EndProduct]
	}

	res.YieldFactor = r.YieldFactor
	if res.YieldFactor.IsZero() {
		res.YieldFactor = res.EndProductKg.Div(r.InputKg)
		res.YieldDerived = true
	}
	if !res.YieldFactor.IsPositive() {
		return RouteResult{}, degenerate(StageProcessChain, "yield_factor", "route %s yields nothing", r.RouteID)
	}

	res.YieldAdjustedCostPerKg = weighted.Div(res.YieldFactor)
	res.EndProductCostPerKg = res.YieldAdjustedCostPerKg.Add(processing)

	yieldFormula := "yield_factor"
	if res.YieldDerived {
		yieldFormula = "end_product_kg / input_kg"
	}
	res.Audit = append(res.Audit,
		audit(StageProcessChain, r.RouteID+"/weighted", "sum(ratio * cost_per_kg)", weighted),
		audit(StageProcessChain, r.RouteID+"/yield", yieldFormula, res.YieldFactor,
			"end_product_kg", res.EndProductKg, "input_kg", r.InputKg),
		audit(StageProcessChain, r.RouteID+"/yield_adjusted", "weighted_source_cost / yield_factor", res.YieldAdjustedCostPerKg,
			"weighted_source_cost", weighted, "yield_factor", res.YieldFactor),
		audit(StageProcessChain, r.RouteID+"/processing", "sum(step.cost_per_kg)", processing),
		audit(StageProcessChain, r.RouteID, "yield_adjusted_cost + total_processing_cost", res.EndProductCostPerKg,
			"yield_adjusted_cost", res.YieldAdjustedCostPerKg, "total_processing_cost", processing),
	)
	return res, nil
}
