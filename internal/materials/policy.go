// Package materials decides which objects are exported and which material
// each one carries.
package materials

import (
	"fmt"
	"strings"

	"gltf-export-service/internal/models"
)

// Predicate reports whether a selection state counts as "selected".
type Predicate func(models.SelectionState) bool

// AnySelected treats partially and fully selected objects as selected.
func AnySelected(s models.SelectionState) bool {
	return s == models.SelectionPartial || s == models.SelectionFull
}

// PartialOnly matches the host's "IsSelected == 1" comparison.
func PartialOnly(s models.SelectionState) bool {
	return s == models.SelectionPartial
}

// FullOnly matches fully selected objects only.
func FullOnly(s models.SelectionState) bool {
	return s == models.SelectionFull
}

// PredicateByName maps a configuration value (any, partial, full) to a predicate.
// An empty name selects AnySelected.
func PredicateByName(name string) (Predicate, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "any":
		return AnySelected, nil
	case "partial":
		return PartialOnly, nil
	case "full":
		return FullOnly, nil
	}
	return nil, fmt.Errorf("unknown selection predicate %q", name)
}

// Policy is the inclusion policy for one conversion.
type Policy struct {
	ExportSelectedOnly bool
	Selected           Predicate
}

// NewPolicy builds a policy from the export options. An unknown predicate name
// is an error.
func NewPolicy(exportSelectedOnly bool, predicate string) (Policy, error) {
	p, err := PredicateByName(predicate)
	if err != nil {
		return Policy{}, err
	}
	return Policy{ExportSelectedOnly: exportSelectedOnly, Selected: p}, nil
}

// ShouldInclude includes every object unless ExportSelectedOnly is set, in
// which case only objects matching the selected predicate are included.
func ShouldInclude(obj *models.SourceObject, policy Policy) bool {
	if !policy.ExportSelectedOnly {
		return true
	}
	selected := policy.Selected
	if selected == nil {
		selected = AnySelected
	}
	return selected(obj.Attributes.Selected)
}
