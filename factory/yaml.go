package factory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/warp/joint-cost-engine/costing"
)

// ProfilesFile is the YAML layout of a profile file:
//
//	profiles:
//	  - name: internal-fixed-cuts
//	    fixed_part_codes: [breast_cap, leg_quarter, wings, back_carcass]
//	  - name: whole-bird-only
//	    whole_bird_only: true
type ProfilesFile struct {
	Profiles []ProfileJSON `yaml:"profiles"`
}

// LoadProfiles decodes and validates a YAML profile list. Unknown keys and
// duplicate names are rejected.
func (f *ProfileFactory) LoadProfiles(r io.Reader) ([]costing.BatchProfile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc ProfilesFile
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to parse profiles YAML: %v", ErrInvalidDocument, err)
	}

	seen := make(map[string]bool, len(doc.Profiles))
	out := make([]costing.BatchProfile, 0, len(doc.Profiles))
	for i, pj := range doc.Profiles {
		p, err := f.FromJSON(pj)
		if err != nil {
			return nil, fmt.Errorf("profile %d: %w", i, err)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: duplicate profile %q", ErrInvalidDocument, p.Name)
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return out, nil
}

// LoadProfilesFile reads LoadProfiles from a file.
func (f *ProfileFactory) LoadProfilesFile(path string) ([]costing.BatchProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}
	return f.LoadProfiles(bytes.NewReader(data))
}

// MarshalProfiles renders profiles as a YAML profile file.
func (f *ProfileFactory) MarshalProfiles(profiles []costing.BatchProfile) ([]byte, error) {
	doc := ProfilesFile{Profiles: make([]ProfileJSON, len(profiles))}
	for i, p := range profiles {
		doc.Profiles[i] = f.ToJSON(p)
	}
	return yaml.Marshal(doc)
}
