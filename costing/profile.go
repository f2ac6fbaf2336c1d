/*
profile.go - Batch profiles and stage routing

PURPOSE:
  A BatchProfile is a plain configuration record selected once per batch. It
  is not a type hierarchy: one generic runner (pipeline.go) reads the flags and
  skips the stages the profile does not need.

PROFILE FLAGS:
  DynamicJointProducts  true:  any non-empty joint-product list is accepted
                        false: the batch must supply exactly FixedPartCodes
  MiniSVASOEnabled      split parts further into sub-cuts (Level4)
  RoutesEnabled         run ProcessChainExecutor after SVASO
  WholeBirdOnly         collapse the waterfall: no by-product credit, no SVASO;
                        every SKU draws the griller cost from Level1

STAGE PLANS:
  whole-bird-only:  L0 → L1 → L5 → L6 → L7
  otherwise:        L0 → L1 → L2 → L3 → [L4 mini-SVASO] → [process chain] → L5 → L6 → L7

SEE ALSO:
  - poultry/profiles.go: the named preset profiles
*/
package costing

import (
	"fmt"
)

// BatchProfile is the strategy record for one batch.
type BatchProfile struct {
	Name                 string
	Description          string
	DynamicJointProducts bool
	MiniSVASOEnabled     bool
	RoutesEnabled        bool
	WholeBirdOnly        bool

	// FixedPartCodes is the joint-product list required when DynamicJointProducts is false.
	FixedPartCodes []string

	// MiniSVASOParts limits which parents are sub-allocated; empty means all.
	MiniSVASOParts []string
}

// Clone deep-copies the profile.
func (p BatchProfile) Clone() BatchProfile {
	out := p
	out.FixedPartCodes = append([]string(nil), p.FixedPartCodes...)
	out.MiniSVASOParts = append([]string(nil), p.MiniSVASOParts...)
	return out
}

// Validate rejects contradictory flag combinations.
func (p BatchProfile) Validate() error {
	if p.Name == "" {
		return invalid("profile", "name", "profile name is required")
	}
	if p.WholeBirdOnly {
		if p.MiniSVASOEnabled || p.RoutesEnabled {
			return invalid("profile", p.Name, "whole-bird-only cannot enable mini-SVASO or routes")
		}
		return nil
	}
	if !p.DynamicJointProducts && len(p.FixedPartCodes) == 0 {
		return invalid("profile", p.Name, "fixed joint-product profile needs fixed_part_codes")
	}
	seen := make(map[string]bool, len(p.FixedPartCodes))
	for _, c := range p.FixedPartCodes {
		if seen[c] {
			return invalid("profile", p.Name, "duplicate fixed part code %q", c)
		}
		seen[c] = true
	}
	return nil
}

// Plan returns the stages the profile runs, in order.
func Plan(p BatchProfile) []Stage {
	if p.WholeBirdOnly {
		return []Stage{StageLandedCost, StageJointCostPool, StageABC, StageSKUCost, StageNRV}
	}
	stages := []Stage{StageLandedCost, StageJointCostPool, StageByProductCredit, StageSVASO}
	if p.MiniSVASOEnabled {
		stages = append(stages, StageMiniSVASO)
	}
	if p.RoutesEnabled {
		stages = append(stages, StageProcessChain)
	}
	return append(stages, StageABC, StageSKUCost, StageNRV)
}

// Runs reports whether the profile's plan contains stage.
func (p BatchProfile) Runs(stage Stage) bool {
	for _, s := range Plan(p) {
		if s == stage {
			return true
		}
	}
	return false
}

// ResolveJointProducts returns the joint products SVASO should allocate. Fixed
// profiles get them in FixedPartCodes order and reject missing or extra parts.
func ResolveJointProducts(p BatchProfile, parts []JointProduct) ([]JointProduct, error) {
	if p.DynamicJointProducts {
		if len(parts) == 0 {
			return nil, invalid(StageSVASO, "joint_products", "profile %s needs at least one joint product", p.Name)
		}
		return parts, nil
	}

	byCode := make(map[string]JointProduct, len(parts))
	for _, jp := range parts {
		if _, dup := byCode[jp.PartCode]; dup {
			return nil, invalid(StageSVASO, "joint_products", "duplicate joint product %q", jp.PartCode)
		}
		byCode[jp.PartCode] = jp
	}

	out := make([]JointProduct, 0, len(p.FixedPartCodes))
	var missing []string
	for _, code := range p.FixedPartCodes {
		jp, ok := byCode[code]
		if !ok {
			missing = append(missing, code)
			continue
		}
		out = append(out, jp)
		delete(byCode, code)
	}
	if len(missing) > 0 {
		return nil, invalid(StageSVASO, "joint_products", "profile %s requires %v", p.Name, missing)
	}
	if len(byCode) > 0 {
		var extra []string
		for _, jp := range parts {
			if _, ok := byCode[jp.PartCode]; ok {
				extra = append(extra, jp.PartCode)
			}
		}
		return nil, invalid(StageSVASO, "joint_products", "profile %s does not allow %v", p.Name, extra)
	}
	return out, nil
}

// ProfileSet is a named collection of profiles.
type ProfileSet map[string]BatchProfile

// Lookup returns the named profile or ErrUnknownProfile.
func (s ProfileSet) Lookup(name string) (BatchProfile, error) {
	p, ok := s[name]
	if !ok {
		return BatchProfile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p.Clone(), nil
}
