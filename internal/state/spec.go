package state

import "github.com/snowcapio/snowcap/internal/identifier"

// Spec is a live-state object's attributes, normalized to the same
// snake_case field names the catalog's AttributeSpec and the
// resources records use, regardless of whether it came from the
// per-object SHOW/DESC path or the bulk audit path (spec §4.5
// "Normalization").
type Spec map[string]any

// Snapshot is the full live-state picture the planner diffs the
// desired manifest against: every URN this run cares about, mapped to
// its normalized Spec.
type Snapshot struct {
	Objects map[identifier.URN]Spec
}
