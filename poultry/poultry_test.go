package poultry_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/joint-cost-engine/costing"
	"github.com/warp/joint-cost-engine/poultry"
)

func TestPresets_Valid(t *testing.T) {
	set := poultry.Presets()
	require.Len(t, set, 4)

	for name, p := range set {
		assert.Equal(t, name, p.Name)
		assert.NoError(t, p.Validate(), name)
	}
	assert.True(t, set[poultry.ProfileWholeBirdOnly].WholeBirdOnly)
	assert.True(t, set[poultry.ProfileMultiSiteRouted].Runs(costing.StageProcessChain))
	assert.False(t, set[poultry.ProfileInternalFixedCuts].Runs(costing.StageMiniSVASO))
}

func TestPresetJSON_WellFormed(t *testing.T) {
	docs := map[string]string{
		"fixed":   poultry.InternalFixedCutsJSON("a"),
		"dynamic": poultry.ExternalDynamicCutsJSON("b", poultry.PartBreastCap),
		"whole":   poultry.WholeBirdOnlyJSON("c"),
		"routed":  poultry.MultiSiteRoutedJSON("d"),
	}
	for name, doc := range docs {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(doc), &m), name)
		assert.NotEmpty(t, m["name"], name)
	}
}

func TestParentOf(t *testing.T) {
	p, ok := poultry.ParentOf(poultry.CutThigh)
	assert.True(t, ok)
	assert.Equal(t, poultry.PartLegQuarter, p)

	_, ok = poultry.ParentOf(poultry.PartWings)
	assert.False(t, ok)
}

func TestWorkedExample(t *testing.T) {
	// GIVEN: The reference demo batch
	// WHEN: Running it
	// THEN: k-factor 0.7389 and breast cap at ~3.104 EUR/kg

	res, err := costing.NewEngine(costing.DefaultSettings()).Run(poultry.WorkedExample())
	require.NoError(t, err)

	assert.Equal(t, "3226.0000", res.Level2.NetJointCostEUR.StringFixed(4))
	assert.Equal(t, "0.7389", res.Level3.KFactor.StringFixed(4))
	breast, _ := res.Level3.Allocation(poultry.PartBreastCap)
	assert.InDelta(t, 3.104, breast.AllocatedCostPerKg.InexactFloat64(), 0.001)
	assert.True(t, res.Level3.MassBalance.WithinTolerance)
}

func TestDemos_AllRun(t *testing.T) {
	engine := costing.NewEngine(costing.DefaultSettings())
	differ := costing.NewScenarioDiffEngine(engine)

	for _, demo := range poultry.Demos() {
		t.Run(demo.ID, func(t *testing.T) {
			in := demo.Build()

			res, err := engine.Run(in)
			require.NoError(t, err)
			assert.Equal(t, len(in.SKUs), len(res.Level6.SKUs))
			for _, w := range res.Warnings {
				assert.NotEqual(t, costing.WarnMassBalance, w.Code, "demo batches balance")
			}

			if demo.Scenario != nil {
				diff, err := differ.Diff(context.Background(), in, *demo.Scenario)
				require.NoError(t, err)
				assert.NotEmpty(t, diff.Deltas)
			}
		})
	}
}

func TestMultiSiteExample_RouteCost(t *testing.T) {
	res, err := costing.NewEngine(costing.DefaultSettings()).Run(poultry.MultiSiteExample())
	require.NoError(t, err)

	route, ok := res.Route("burger-copacker")
	require.True(t, ok)
	assert.True(t, route.YieldDerived)
	assert.Equal(t, "0.85", route.YieldFactor.String())
	assert.Equal(t, "0.8", route.TotalProcessingCostPerKg.String())
	require.Len(t, route.ByProductOutputs, 1)
	assert.Equal(t, "bones", route.ByProductOutputs[0].Product)

	sku, _ := res.Level6.SKU("BURGER-4X100G")
	assert.True(t, route.EndProductCostPerKg.Equal(sku.MeatCostPerKg))
}

func TestFindDemo(t *testing.T) {
	d, ok := poultry.FindDemo("whole-bird")
	require.True(t, ok)
	assert.Equal(t, poultry.ProfileWholeBirdOnly, d.Build().Profile.Name)

	_, ok = poultry.FindDemo("nope")
	assert.False(t, ok)
}
