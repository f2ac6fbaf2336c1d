/*
factory.go - JSON presets for the poultry profiles

These functions build profile JSON documents directly so the factory package
can parse them without an import cycle.

USAGE:
  import "github.com/warp/joint-cost-engine/poultry"

  jsonStr := poultry.InternalFixedCutsJSON("internal-fixed-cuts")
  profile, err := factory.NewProfileFactory().ParseProfile(jsonStr)
*/
package poultry

import (
	"encoding/json"
)

// InternalFixedCutsJSON returns JSON for a fixed four-part profile.
func InternalFixedCutsJSON(name string) string {
	pj := map[string]interface{}{
		"name":                   name,
		"description":            "In-house cutting into the four standard joint products",
		"dynamic_joint_products": false,
		"fixed_part_codes":       StandardCuts(),
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}

// ExternalDynamicCutsJSON returns JSON for a dynamic profile with mini-SVASO
// on the given parents.
func ExternalDynamicCutsJSON(name string, miniParts ...string) string {
	pj := map[string]interface{}{
		"name":                   name,
		"description":            "Caller-supplied cut plan with mini-SVASO",
		"dynamic_joint_products": true,
		"mini_svaso_enabled":     true,
	}
	if len(miniParts) > 0 {
		pj["mini_svaso_parts"] = miniParts
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}

// WholeBirdOnlyJSON returns JSON for a whole-griller profile.
func WholeBirdOnlyJSON(name string) string {
	pj := map[string]interface{}{
		"name":            name,
		"description":     "Whole griller sold as is",
		"whole_bird_only": true,
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}

// MultiSiteRoutedJSON returns JSON for a fixed profile with routes enabled.
func MultiSiteRoutedJSON(name string) string {
	pj := map[string]interface{}{
		"name":               name,
		"description":        "Standard parts with further processing at other sites",
		"fixed_part_codes":   StandardCuts(),
		"mini_svaso_enabled": true,
		"mini_svaso_parts":   []string{PartBreastCap},
		"routes_enabled":     true,
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}
