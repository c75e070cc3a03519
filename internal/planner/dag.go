package planner

import (
	"sort"

	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/resources"
	"github.com/snowcapio/snowcap/internal/snowerrors"
)

// edge is a "from must be ordered before to" dependency between two
// URNs (spec §4.6 step 4).
type edge struct{ from, to identifier.URN }

// buildEdges derives every dependency edge among the URNs touched by
// actions: container->contained, owner->owned (creates/transfers only),
// user-declared requires, and catalog-declared references (currently
// just a View's table references, the one reference relationship the
// catalog slice models explicitly via resources.View.References).
func buildEdges(actions []Action) []edge {
	byURN := make(map[identifier.URN][]Action)
	for _, a := range actions {
		byURN[a.URN] = append(byURN[a.URN], a)
	}

	var edges []edge

	for urn, group := range byURN {
		for _, containerURN := range containersOf(urn, byURN) {
			edges = append(edges, containmentEdge(containerURN, urn, byURN[containerURN], group)...)
		}

		for _, a := range group {
			if a.After == nil {
				continue
			}

			if (a.Kind == Create || a.Kind == Transfer) && a.After.Owner.ResolvedURN != nil {
				ownerURN := *a.After.Owner.ResolvedURN
				if _, ok := byURN[ownerURN]; ok {
					edges = append(edges, edge{from: ownerURN, to: urn})
				}
			}

			for _, req := range a.After.Requires {
				if _, ok := byURN[req]; ok {
					edges = append(edges, containmentEdge(req, urn, byURN[req], group)...)
				}
			}

			if view, ok := a.After.Attrs.(*resources.View); ok {
				for _, refURN := range resolveViewReferences(urn, view.References, byURN) {
					edges = append(edges, containmentEdge(refURN, urn, byURN[refURN], group)...)
				}
			}
		}
	}

	return edges
}

// containersOf returns the URN of urn's immediate container (the
// database for a schema, the schema for a table/view), if that
// container is itself among the acted-upon URNs.
func containersOf(urn identifier.URN, byURN map[identifier.URN][]Action) []identifier.URN {
	var containers []identifier.URN

	if !urn.FQN.Schema.IsZero() && !urn.FQN.Database.IsZero() {
		schemaURN := identifier.URN{Org: urn.Org, AccountLocator: urn.AccountLocator, Kind: "schema", FQN: identifier.FQN{Database: urn.FQN.Database, Name: urn.FQN.Schema}}
		if _, ok := byURN[schemaURN]; ok {
			containers = append(containers, schemaURN)
		}
	}

	if !urn.FQN.Database.IsZero() && urn.FQN.Schema.IsZero() {
		dbURN := identifier.URN{Org: urn.Org, AccountLocator: urn.AccountLocator, Kind: "database", FQN: identifier.FQN{Name: urn.FQN.Database}}
		if _, ok := byURN[dbURN]; ok {
			containers = append(containers, dbURN)
		}
	}

	return containers
}

// containmentEdge orders two action groups for the same pair of URNs:
// normally from precedes to (container/dependency before contained/
// dependent), but when both sides are being dropped the direction
// reverses (drop the contained/dependent before the container it sits
// in, or the thing that depended on it before the thing it depended on
// — spec §4.6 "Drops of leaves precede drops of their containers").
func containmentEdge(from, to identifier.URN, fromGroup, toGroup []Action) []edge {
	toIsDrop := len(toGroup) > 0 && allDrops(toGroup)

	if toIsDrop && allDrops(fromGroup) {
		return []edge{{from: to, to: from}}
	}

	return []edge{{from: from, to: to}}
}

func allDrops(group []Action) bool {
	for _, a := range group {
		if a.Kind != Drop {
			return false
		}
	}

	return true
}

// resolveViewReferences maps a view's bare table-name references onto
// URNs within the view's own schema, best-effort (a reference to a
// table outside the view's schema is not expressible in the catalog
// slice's View.References field, which carries bare names only).
func resolveViewReferences(viewURN identifier.URN, refs []string, byURN map[identifier.URN][]Action) []identifier.URN {
	var out []identifier.URN

	for _, ref := range refs {
		want := identifier.NewName(ref, false)

		for candidate := range byURN {
			if candidate.Kind != "table" {
				continue
			}

			if candidate.FQN.Database.Equal(viewURN.FQN.Database) && candidate.FQN.Schema.Equal(viewURN.FQN.Schema) && candidate.FQN.Name.Equal(want) {
				out = append(out, candidate)
			}
		}
	}

	return out
}

// topoSort orders actions consistent with edges, breaking ties by
// (stage priority, resource kind, URN) within a topological layer
// (spec §4.6 step 5, "Tie-breaks").
func topoSort(actions []Action, edges []edge) ([]Action, error) {
	index := make(map[identifier.URN][]int)
	for i, a := range actions {
		index[a.URN] = append(index[a.URN], i)
	}

	n := len(actions)
	adj := make([][]int, n)
	indegree := make([]int, n)

	addActionEdge := func(from, to int) {
		adj[from] = append(adj[from], to)
		indegree[to]++
	}

	for _, e := range edges {
		for _, from := range index[e.from] {
			for _, to := range index[e.to] {
				if from != to {
					addActionEdge(from, to)
				}
			}
		}
	}

	// Chain same-URN actions by stage priority so Create/Transfer/
	// Update/Drop on one object sort deterministically relative to
	// each other even within the same topological layer.
	for _, idxs := range index {
		sort.Slice(idxs, func(i, j int) bool { return stagePriority[actions[idxs[i]].Kind] < stagePriority[actions[idxs[j]].Kind] })
		for i := 0; i+1 < len(idxs); i++ {
			addActionEdge(idxs[i], idxs[i+1])
		}
	}

	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	less := func(i, j int) bool {
		ai, aj := actions[i], actions[j]
		if stagePriority[ai.Kind] != stagePriority[aj.Kind] {
			return stagePriority[ai.Kind] < stagePriority[aj.Kind]
		}

		if ai.ResourceKind != aj.ResourceKind {
			return ai.ResourceKind < aj.ResourceKind
		}

		return ai.URN.Render() < aj.URN.Render()
	}

	var out []Action

	processed := make([]bool, n)

	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })

		next := ready[0]
		ready = ready[1:]
		processed[next] = true

		out = append(out, actions[next])

		for _, nb := range adj[next] {
			indegree[nb]--
			if indegree[nb] == 0 {
				ready = append(ready, nb)
			}
		}
	}

	if len(out) < n {
		var cycle []string

		for i := 0; i < n; i++ {
			if !processed[i] {
				cycle = append(cycle, actions[i].URN.Render())
			}
		}

		return nil, snowerrors.NewNotADAGError(cycle)
	}

	return out, nil
}
