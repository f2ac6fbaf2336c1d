/*
Package factory provides JSON and YAML to engine conversion.

PURPOSE:
  Converts documents from collaborators (data entry, admin UI, config files)
  into costing records. Profiles can be defined without code changes: a plant
  controller writes JSON or YAML, the factory creates the BatchProfile.

JSON SCHEMA (profile):
  {
    "name": "internal-fixed-cuts",
    "description": "In-house cutting",
    "dynamic_joint_products": false,
    "mini_svaso_enabled": false,
    "routes_enabled": false,
    "whole_bird_only": false,
    "fixed_part_codes": ["breast_cap", "leg_quarter", "wings", "back_carcass"],
    "mini_svaso_parts": []
  }

KEY FEATURES:
  - Validates the resulting profile
  - Round-trips: ToJSON(FromJSON(x)) == x
  - YAML files hold a list of profiles under "profiles:"

USAGE:
  factory := NewProfileFactory()

  // From JSON string
  profile, err := factory.ParseProfile(jsonString)

  // From domain-specific preset (recommended)
  import "github.com/warp/joint-cost-engine/poultry"
  profile, err := factory.ParseProfile(poultry.InternalFixedCutsJSON("internal-fixed-cuts"))

SEE ALSO:
  - costing/profile.go: BatchProfile
  - poultry/factory.go: preset profile JSON
  - run.go: full pipeline input documents
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/warp/joint-cost-engine/costing"
)

// ErrInvalidDocument is returned for JSON or YAML that cannot be converted.
var ErrInvalidDocument = errors.New("invalid document")

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ProfileJSON is the JSON/YAML representation of a batch profile.
type ProfileJSON struct {
	Name                 string   `json:"name" yaml:"name"`
	Description          string   `json:"description,omitempty" yaml:"description,omitempty"`
	DynamicJointProducts bool     `json:"dynamic_joint_products,omitempty" yaml:"dynamic_joint_products,omitempty"`
	MiniSVASOEnabled     bool     `json:"mini_svaso_enabled,omitempty" yaml:"mini_svaso_enabled,omitempty"`
	RoutesEnabled        bool     `json:"routes_enabled,omitempty" yaml:"routes_enabled,omitempty"`
	WholeBirdOnly        bool     `json:"whole_bird_only,omitempty" yaml:"whole_bird_only,omitempty"`
	FixedPartCodes       []string `json:"fixed_part_codes,omitempty" yaml:"fixed_part_codes,omitempty"`
	MiniSVASOParts       []string `json:"mini_svaso_parts,omitempty" yaml:"mini_svaso_parts,omitempty"`
}

// =============================================================================
// PROFILE FACTORY
// =============================================================================

// ProfileFactory converts profile documents to BatchProfiles.
type ProfileFactory struct{}

// NewProfileFactory creates a new profile factory.
func NewProfileFactory() *ProfileFactory {
	return &ProfileFactory{}
}

// ParseProfile parses a JSON string into a validated BatchProfile.
func (f *ProfileFactory) ParseProfile(jsonStr string) (costing.BatchProfile, error) {
	var pj ProfileJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return costing.BatchProfile{}, fmt.Errorf("%w: failed to parse profile JSON: %v", ErrInvalidDocument, err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts ProfileJSON to a validated BatchProfile.
func (f *ProfileFactory) FromJSON(pj ProfileJSON) (costing.BatchProfile, error) {
	p := costing.BatchProfile{
		Name:                 pj.Name,
		Description:          pj.Description,
		DynamicJointProducts: pj.DynamicJointProducts,
		MiniSVASOEnabled:     pj.MiniSVASOEnabled,
		RoutesEnabled:        pj.RoutesEnabled,
		WholeBirdOnly:        pj.WholeBirdOnly,
		FixedPartCodes:       append([]string(nil), pj.FixedPartCodes...),
		MiniSVASOParts:       append([]string(nil), pj.MiniSVASOParts...),
	}
	if err := p.Validate(); err != nil {
		return costing.BatchProfile{}, err
	}
	return p, nil
}

// ToJSON converts a BatchProfile to ProfileJSON.
func (f *ProfileFactory) ToJSON(p costing.BatchProfile) ProfileJSON {
	return ProfileJSON{
		Name:                 p.Name,
		Description:          p.Description,
		DynamicJointProducts: p.DynamicJointProducts,
		MiniSVASOEnabled:     p.MiniSVASOEnabled,
		RoutesEnabled:        p.RoutesEnabled,
		WholeBirdOnly:        p.WholeBirdOnly,
		FixedPartCodes:       append([]string(nil), p.FixedPartCodes...),
		MiniSVASOParts:       append([]string(nil), p.MiniSVASOParts...),
	}
}
