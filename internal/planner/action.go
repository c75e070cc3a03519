// Package planner implements the diff/DAG/topological-sort engine
// (C6): it turns a resolved manifest and a live-state snapshot into an
// ordered list of Actions the scheduler can turn into statement
// batches (spec §4.6).
package planner

import (
	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/resources"
	"github.com/snowcapio/snowcap/internal/state"
)

// Kind tags the four action shapes the planner can emit (spec §3.4).
type Kind string

const (
	Create   Kind = "create"
	Update   Kind = "update"
	Transfer Kind = "transfer"
	Drop     Kind = "drop"
)

// stagePriority orders same-layer actions: Create before Transfer
// before Update before Drop (spec §4.6 "Tie-breaks").
var stagePriority = map[Kind]int{Create: 0, Transfer: 1, Update: 2, Drop: 3}

// Action is a single planned change. Which fields are populated
// depends on Kind: Create only sets After; Drop only sets Before;
// Update sets both plus Delta; Transfer sets Before/After plus
// FromOwner/ToOwner.
type Action struct {
	Kind         Kind
	URN          identifier.URN
	ResourceKind catalog.Kind

	After  *resources.Resource // desired resource; nil for Drop
	Before state.Spec          // live spec; nil for Create

	// Delta names the attribute fields that differ, for Update actions.
	Delta []string

	FromOwner string
	ToOwner   string
}
