/*
profiles.go - Preset batch profiles

PURPOSE:
  The four ways a broiler batch is costed in practice. Each is a plain
  BatchProfile record; the pipeline reads the flags.

AVAILABLE PROFILES:
  internal-fixed-cuts:    in-house cutting, always the four standard parts
  external-dynamic-cuts:  bought-in or custom cut plans, any part list,
                          breast and leg split further by mini-SVASO
  whole-bird-only:        the griller is sold whole; no SVASO
  multi-site-routed:      standard parts plus processing routes at other sites

EXAMPLE:
  profile := poultry.InternalFixedCuts()
  result, err := engine.Run(costing.PipelineInput{Profile: profile, ...})

SEE ALSO:
  - factory.go: the same profiles as JSON
  - costing/profile.go: BatchProfile and Plan
*/
package poultry

import "github.com/warp/joint-cost-engine/costing"

const (
	ProfileInternalFixedCuts   = "internal-fixed-cuts"
	ProfileExternalDynamicCuts = "external-dynamic-cuts"
	ProfileWholeBirdOnly       = "whole-bird-only"
	ProfileMultiSiteRouted     = "multi-site-routed"
)

// InternalFixedCuts requires exactly the four standard parts.
func InternalFixedCuts() costing.BatchProfile {
	return costing.BatchProfile{
		Name:           ProfileInternalFixedCuts,
		Description:    "In-house cutting into the four standard joint products",
		FixedPartCodes: StandardCuts(),
	}
}

// ExternalDynamicCuts accepts any part list and sub-allocates breast and leg.
func ExternalDynamicCuts() costing.BatchProfile {
	return costing.BatchProfile{
		Name:                 ProfileExternalDynamicCuts,
		Description:          "Caller-supplied cut plan with mini-SVASO on breast and leg",
		DynamicJointProducts: true,
		MiniSVASOEnabled:     true,
		MiniSVASOParts:       []string{PartBreastCap, PartLegQuarter},
	}
}

// WholeBirdOnly costs the griller as one product.
func WholeBirdOnly() costing.BatchProfile {
	return costing.BatchProfile{
		Name:          ProfileWholeBirdOnly,
		Description:   "Whole griller sold as is; every SKU carries the griller cost per kg",
		WholeBirdOnly: true,
	}
}

// MultiSiteRouted runs the standard split and then the processing routes.
func MultiSiteRouted() costing.BatchProfile {
	return costing.BatchProfile{
		Name:             ProfileMultiSiteRouted,
		Description:      "Standard parts with further processing at other sites",
		FixedPartCodes:   StandardCuts(),
		MiniSVASOEnabled: true,
		RoutesEnabled:    true,
		MiniSVASOParts:   []string{PartBreastCap},
	}
}

// Presets returns every preset profile keyed by name.
func Presets() costing.ProfileSet {
	set := costing.ProfileSet{}
	for _, p := range []costing.BatchProfile{
		InternalFixedCuts(),
		ExternalDynamicCuts(),
		WholeBirdOnly(),
		MultiSiteRouted(),
	} {
		set[p.Name] = p
	}
	return set
}
