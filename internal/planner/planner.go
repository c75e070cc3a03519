package planner

import (
	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/config"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/resolver"
	"github.com/snowcapio/snowcap/internal/snowerrors"
	"github.com/snowcapio/snowcap/internal/state"
)

// Plan is the C6 entry point: it validates that the desired manifest
// stays inside the blueprint's declared scope, pairs it against live
// state into actions, builds the dependency DAG, and returns a
// deterministic topological order (spec §4.6).
func Plan(desired *resolver.ResolvedManifest, live *state.Snapshot, cfg *config.Blueprint, reg *catalog.Registry) ([]Action, error) {
	if err := validateScope(desired, cfg, reg); err != nil {
		return nil, err
	}

	actions, err := pair(desired, live, reg)
	if err != nil {
		return nil, err
	}

	edges := buildEdges(actions)

	return topoSort(actions, edges)
}

// validateScope rejects any desired URN that falls outside the
// blueprint's declared root (spec §4.6 step 1: "Every desired URN must
// be inside the blueprint scope"). Live state is not checked here: C5's
// List/Snapshot calls are already root-scoped, so live objects outside
// the root never reach the planner in the first place. Account/
// anonymous-scoped kinds (role, warehouse, grant, ...) are never
// root-restricted, in keeping with them never inheriting a container
// from the blueprint scope in the resolver either (nameFQNs).
func validateScope(desired *resolver.ResolvedManifest, cfg *config.Blueprint, reg *catalog.Registry) error {
	for urn := range desired.Resources {
		if !inScope(urn, reg, cfg) {
			return snowerrors.NewNonConformingPlanError("resource " + urn.Render() + " falls outside the blueprint's declared scope")
		}
	}

	return nil
}

// inScope looks up urn's catalog scope and compares its container
// chain against the blueprint's declared root. A database-kind URN
// carries its own name in FQN.Name (it has no container of its own),
// so it is compared directly rather than via FQN.Database.
func inScope(urn identifier.URN, reg *catalog.Registry, cfg *config.Blueprint) bool {
	spec, err := reg.Lookup(catalog.Kind(urn.Kind))
	if err != nil {
		return true // unregistered/polymorphic tag: not this step's concern
	}

	switch spec.Scope {
	case catalog.ScopeDatabase:
		rootDB := urn.FQN.Database
		if catalog.Kind(urn.Kind) == catalog.KindDatabase {
			rootDB = urn.FQN.Name
		}

		return scopeAllowsDatabase(rootDB, cfg)
	case catalog.ScopeSchema:
		rootSchema := urn.FQN.Schema
		if catalog.Kind(urn.Kind) == catalog.KindSchema {
			rootSchema = urn.FQN.Name
		}

		return scopeAllowsDatabase(urn.FQN.Database, cfg) && scopeAllowsSchema(rootSchema, cfg)
	default:
		return true
	}
}

func scopeAllowsDatabase(name identifier.Name, cfg *config.Blueprint) bool {
	if cfg.Scope == config.ScopeAccount {
		return true
	}

	return equalOptionalName(name, cfg.Database)
}

func scopeAllowsSchema(name identifier.Name, cfg *config.Blueprint) bool {
	if cfg.Scope != config.ScopeSchema {
		return true
	}

	return equalOptionalName(name, cfg.Schema)
}

// equalOptionalName compares a resource's name component against a
// blueprint root that may be nil.
func equalOptionalName(n identifier.Name, want *identifier.Name) bool {
	if want == nil {
		return n.IsZero()
	}

	return n.Equal(*want)
}
