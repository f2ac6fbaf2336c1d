package costing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/joint-cost-engine/costing"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type stubSource struct {
	cost, kg decimal.Decimal
}

type stubCatalog map[string]stubSource

func (c stubCatalog) SourceCost(code string) (decimal.Decimal, decimal.Decimal, bool) {
	s, ok := c[code]
	return s.cost, s.kg, ok
}

func catalog() stubCatalog {
	return stubCatalog{
		"breast_trim": {cost: d("3.00"), kg: d("100")},
		"leg_meat":    {cost: d("2.00"), kg: d("300")},
	}
}

func blendRoute() costing.ProcessingRoute {
	return costing.ProcessingRoute{
		RouteID:     "burger",
		EndProduct:  "burger_patty",
		InputKg:     d("100"),
		YieldFactor: d("0.8"),
		Sources: []costing.BlendSource{
			{PartCode: "breast_trim", Ratio: d("0.6")},
			{PartCode: "leg_meat", Ratio: d("0.4")},
		},
		Steps: []costing.RouteStep{
			{ID: "grind", Processor: "plant-a", Activity: "grinding", CostPerKg: d("0.20")},
			{ID: "form", Processor: "copacker-b", Activity: "forming", CostPerKg: d("0.15")},
		},
	}
}

// =============================================================================
// BLEND FORMULA
// =============================================================================

func TestExecuteRoute_BlendFormula(t *testing.T) {
	// GIVEN: 60/40 breast trim and leg meat, 80% yield, two processing steps
	// WHEN: Executing the route
	// THEN: end cost = (0.6*3 + 0.4*2) / 0.8 + 0.20 + 0.15 = 3.60

	res, err := costing.ExecuteRoute(blendRoute(), catalog())
	require.NoError(t, err)

	assert.True(t, d("2.6").Equal(res.WeightedSourceCostPerKg))
	assert.True(t, d("3.25").Equal(res.YieldAdjustedCostPerKg))
	assert.True(t, d("0.35").Equal(res.TotalProcessingCostPerKg))
	assert.True(t, d("3.6").Equal(res.EndProductCostPerKg))
	assert.False(t, res.YieldDerived)

	require.Len(t, res.Recipe, 2)
	assert.True(t, d("60").Equal(res.Recipe[0].ConsumedKg))
	assert.True(t, d("40").Equal(res.Recipe[1].ConsumedKg))

	require.Len(t, res.Steps, 2)
	assert.Equal(t, "grind", res.Steps[0].ID)
	assert.Equal(t, "burger_patty", res.Steps[1].Outputs[0].Product)

	final, ok := costing.AuditTrail(res.Audit).Find(costing.StageProcessChain, "burger")
	require.True(t, ok)
	assert.True(t, final.Result.Equal(res.EndProductCostPerKg))
}

func TestExecuteRoute_DerivedYieldAndByProducts(t *testing.T) {
	// GIVEN: Grinding loses 10% as fat trim (a by-product)
	// WHEN: No yield factor is given
	// THEN: The yield is derived from the graph as 90 / 100

	r := blendRoute()
	r.YieldFactor = decimal.Zero
	r.Steps[0].Outputs = []costing.StepOutput{
		{Product: "mince", YieldPct: d("90")},
		{Product: "fat_trim", YieldPct: d("10"), IsByProduct: true},
	}

	res, err := costing.ExecuteRoute(r, catalog())
	require.NoError(t, err)

	assert.True(t, res.YieldDerived)
	assert.True(t, d("0.9").Equal(res.YieldFactor))
	assert.True(t, d("90").Equal(res.EndProductKg))
	require.Len(t, res.ByProductOutputs, 1)
	assert.Equal(t, "fat_trim", res.ByProductOutputs[0].Product)
	assert.True(t, d("10").Equal(res.ByProductOutputs[0].Kg))
	assert.Equal(t, "3.238889", res.EndProductCostPerKg.StringFixed(6))
}

func TestExecuteRoute_NoStepsUsesInputAsOutput(t *testing.T) {
	r := blendRoute()
	r.Steps = nil
	r.YieldFactor = decimal.Zero

	res, err := costing.ExecuteRoute(r, catalog())
	require.NoError(t, err)

	assert.True(t, d("1").Equal(res.YieldFactor))
	assert.True(t, d("2.6").Equal(res.EndProductCostPerKg))
}

// =============================================================================
// GRAPH VALIDATION
// =============================================================================

func TestExecuteRoute_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *costing.ProcessingRoute)
		want   string
	}{
		{
			name: "outputs not 100%",
			mutate: func(r *costing.ProcessingRoute) {
				r.Steps[0].Outputs = []costing.StepOutput{{Product: "x", YieldPct: d("60")}, {Product: "y", YieldPct: d("30")}}
			},
			want: "sum to 90%",
		},
		{
			name: "unknown input",
			mutate: func(r *costing.ProcessingRoute) {
				r.Steps[1].Inputs = []string{"ghost"}
			},
			want: `unknown input "ghost"`,
		},
		{
			name: "duplicate step id",
			mutate: func(r *costing.ProcessingRoute) {
				r.Steps[1].ID = "grind"
			},
			want: "duplicate step id",
		},
		{
			name: "ratios do not sum to one",
			mutate: func(r *costing.ProcessingRoute) {
				r.Sources[1].Ratio = d("0.3")
			},
			want: "blend ratios sum to 0.9",
		},
		{
			name: "end product never produced",
			mutate: func(r *costing.ProcessingRoute) {
				r.Steps[1].Outputs = []costing.StepOutput{{Product: "nuggets", YieldPct: d("100")}}
			},
			want: "no step produces end product",
		},
		{
			name: "main output goes nowhere",
			mutate: func(r *costing.ProcessingRoute) {
				r.Steps[0].Outputs = []costing.StepOutput{{Product: "mince", YieldPct: d("90")}, {Product: "skin", YieldPct: d("10")}}
				r.Steps[1].Inputs = []string{"mince"}
			},
			want: `output "skin" goes nowhere`,
		},
		{
			name: "missing end product",
			mutate: func(r *costing.ProcessingRoute) {
				r.EndProduct = ""
			},
			want: "end product is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := blendRoute()
			tt.mutate(&r)

			_, err := costing.ExecuteRoute(r, catalog())

			require.ErrorIs(t, err, costing.ErrInvalidRoute)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, costing.IsClientError(err))
		})
	}
}

func TestExecuteRoute_Cycle(t *testing.T) {
	// GIVEN: Two steps that feed each other
	// WHEN: Executing
	// THEN: A cycle error names the loop in declaration order

	r := costing.ProcessingRoute{
		RouteID:    "loop",
		EndProduct: "burger_patty",
		InputKg:    d("10"),
		Sources:    []costing.BlendSource{{PartCode: "breast_trim", Ratio: d("1")}},
		Steps: []costing.RouteStep{
			{ID: "a", Inputs: []string{"breast_trim", "b_out"}, Outputs: []costing.StepOutput{{Product: "a_out", YieldPct: d("100")}}},
			{ID: "b", Inputs: []string{"a_out"}, Outputs: []costing.StepOutput{
				{Product: "b_out", YieldPct: d("50")},
				{Product: "burger_patty", YieldPct: d("50")},
			}},
		},
	}

	_, err := costing.ExecuteRoute(r, catalog())

	require.ErrorIs(t, err, costing.ErrRouteCycle)
	var re *costing.RouteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "loop", re.RouteID)
	assert.Contains(t, re.Msg, "a -> b -> a")
}

func TestExecuteRoute_DoesNotMutateRoute(t *testing.T) {
	r := blendRoute()

	_, err := costing.ExecuteRoute(r, catalog())
	require.NoError(t, err)

	assert.Empty(t, r.Steps[0].Inputs)
	assert.Empty(t, r.Steps[1].Outputs)
}

// =============================================================================
// CROSS-ROUTE MASS BALANCE
// =============================================================================

func TestExecuteRoutes_CrossRouteConsumptionWarning(t *testing.T) {
	// GIVEN: Two routes that together draw 120 kg of the 100 kg breast trim
	// WHEN: Executing both
	// THEN: One warning names the part and both routes; costing still completes

	r1 := blendRoute()
	r1.Sources = []costing.BlendSource{{PartCode: "breast_trim", Ratio: d("1")}}
	r1.InputKg = d("80")

	r2 := blendRoute()
	r2.RouteID = "kebab"
	r2.EndProduct = "kebab_slice"
	r2.Sources = []costing.BlendSource{{PartCode: "breast_trim", Ratio: d("1")}}
	r2.InputKg = d("40")

	results, warnings, err := costing.ExecuteRoutes([]costing.ProcessingRoute{r2, r1}, catalog())
	require.NoError(t, err)

	assert.Len(t, results, 2)
	require.Len(t, warnings, 1)
	assert.Equal(t, costing.WarnRouteMassBalance, warnings[0].Code)
	assert.Equal(t, []string{"breast_trim", "burger", "kebab"}, warnings[0].Parts)
}

func TestExecuteRoutes_DuplicateRouteID(t *testing.T) {
	_, _, err := costing.ExecuteRoutes([]costing.ProcessingRoute{blendRoute(), blendRoute()}, catalog())
	assert.ErrorIs(t, err, costing.ErrInvalidRoute)
}

func TestPipeline_MultiSiteRouted(t *testing.T) {
	// GIVEN: A routed profile with a breast/leg blend and a SKU on the route
	// WHEN: Running the pipeline
	// THEN: The SKU draws the route's end-product cost

	in := withSKUs(workedExample())
	in.Profile.Name = "multi-site-routed"
	in.Profile.RoutesEnabled = true
	in.Routes = []costing.ProcessingRoute{{
		RouteID:     "burger",
		EndProduct:  "burger_patty",
		InputKg:     d("200"),
		YieldFactor: d("0.9"),
		Sources: []costing.BlendSource{
			{PartCode: "breast_cap", Ratio: d("0.5")},
			{PartCode: "leg_quarter", Ratio: d("0.5")},
		},
		Steps: []costing.RouteStep{{ID: "form", Processor: "site-b", Activity: "forming", CostPerKg: d("0.30")}},
	}}
	in.SKUs[1].Source = costing.SourceRef{Kind: costing.SourceRoute, Code: "burger"}

	res := run(t, in)

	route, ok := res.Route("burger")
	require.True(t, ok)
	breast, _ := res.Level3.Allocation("breast_cap")
	leg, _ := res.Level3.Allocation("leg_quarter")
	want := breast.AllocatedCostPerKg.Mul(d("0.5")).Add(leg.AllocatedCostPerKg.Mul(d("0.5"))).Div(d("0.9")).Add(d("0.30"))
	assert.True(t, want.Equal(route.EndProductCostPerKg))

	sku, _ := res.Level6.SKU("SKU-LEG-1KG")
	assert.True(t, route.EndProductCostPerKg.Equal(sku.MeatCostPerKg))
}
