/*
Package poultry provides the broiler domain pack for the costing engine.

PURPOSE:
  The costing package knows nothing about chickens. This package supplies the
  vocabulary of a broiler cutting plant: standard part codes, the preset batch
  profiles a plant runs, JSON presets for them and demo batches.

KEY CONCEPTS:
  Griller:      the dressed carcass after slaughter (~70% of live weight)
  Joint parts:  breast cap, leg quarter, wings, back/carcass - all cut from the
                same griller, all allocated by SVASO
  Sub-cuts:     fillet and inner fillet from the breast cap, drumstick and
                thigh from the leg quarter
  By-products:  offal, feet, necks - credited against the pool

SEE ALSO:
  - profiles.go: preset BatchProfiles
  - demo.go: demo batches, including the reference worked example
*/
package poultry

// =============================================================================
// PART CODES
// =============================================================================

const (
	PartBreastCap   = "breast_cap"
	PartLegQuarter  = "leg_quarter"
	PartWings       = "wings"
	PartBackCarcass = "back_carcass"
)

const (
	CutFillet      = "fillet"
	CutInnerFillet = "inner_fillet"
	CutBreastTrim  = "breast_trim"
	CutDrumstick   = "drumstick"
	CutThigh       = "thigh"
)

const (
	ByProductOffal = "offal"
	ByProductFeet  = "feet"
	ByProductNecks = "necks"
)

// StandardCuts is the joint-product list of a plant that cuts in-house.
func StandardCuts() []string {
	return []string{PartBreastCap, PartLegQuarter, PartWings, PartBackCarcass}
}

// ParentOf returns the joint product a sub-cut is taken from.
func ParentOf(cut string) (string, bool) {
	switch cut {
	case CutFillet, CutInnerFillet, CutBreastTrim:
		return PartBreastCap, true
	case CutDrumstick, CutThigh:
		return PartLegQuarter, true
	default:
		return "", false
	}
}
