// Package scheduler implements the execution scheduler (C7): it picks
// the smallest-privilege role that can perform each planned action,
// batches the resulting statements behind USE ROLE changes, and gates
// the whole run on the session's edition before anything is emitted
// (spec §4.7).
package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/planner"
	"github.com/snowcapio/snowcap/internal/snowerrors"
	"github.com/snowcapio/snowcap/pkg/renderer"
)

// RoleInventory is the session-shaped input the scheduler needs to pick
// roles: the roles the session currently holds, and which roles hold
// which account-level privileges (spec §4.7 step 1), grounded on the
// original's fetch_session "available_roles"/"account_grant_map".
type RoleInventory struct {
	Available        []string
	PrivilegeHolders map[string][]string // account privilege -> holder roles
}

func (inv RoleInventory) holds(role string) bool {
	if role == "" {
		return false
	}

	want := identifier.NewName(role, false)

	for _, r := range inv.Available {
		if identifier.NewName(r, false).Equal(want) {
			return true
		}
	}

	return false
}

// firstHolderOf returns the alphabetically-first available role holding
// priv, for determinism (spec §4.7 "smallest-privilege role" ties break
// on no further signal than availability, so pick deterministically).
func (inv RoleInventory) firstHolderOf(priv string) (string, bool) {
	holders := append([]string(nil), inv.PrivilegeHolders[priv]...)
	sort.Strings(holders)

	for _, h := range holders {
		if inv.holds(h) {
			return h, true
		}
	}

	return "", false
}

// Step is one executable statement in the scheduled sequence: either a
// session-control statement (USE SECONDARY ROLES ALL / USE ROLE, with
// Action nil) or a mutating statement tied back to the Action that
// produced it (so the executor knows what to invalidate on success).
type Step struct {
	SQL    string
	Role   string
	Action *planner.Action
}

// Schedule turns a planner-ordered action list into the linear sequence
// of statements the executor applies (spec §4.7 steps 1-3). Callers
// decide dry-run short-circuiting themselves: Schedule always computes
// and returns the full batch, it never calls the executor (spec §4.7
// step 4, "the scheduler returns the batches and does not call the
// executor").
func Schedule(actions []planner.Action, reg *catalog.Registry, inv RoleInventory, rend renderer.Renderer, sessionEdition catalog.Edition) ([]Step, error) {
	if err := checkEditions(actions, reg, sessionEdition); err != nil {
		return nil, err
	}

	steps := []Step{{SQL: "USE SECONDARY ROLES ALL"}}

	currentRole := ""

	for i := range actions {
		a := actions[i]

		role, err := selectRole(a, reg, inv)
		if err != nil {
			return nil, err
		}

		// Preserve the planner's order exactly: the scheduler groups by
		// emitting a new USE ROLE only when the role actually changes
		// between successive actions, never by re-sorting the action
		// list itself (spec §4.7 step 2, §5 "it never reorders actions
		// across dependency edges").
		if role != currentRole {
			steps = append(steps, Step{SQL: "USE ROLE " + role, Role: role})
			currentRole = role
		}

		stmts, err := statementsFor(a, rend)
		if err != nil {
			return nil, err
		}

		for _, s := range stmts {
			steps = append(steps, Step{SQL: s, Role: role, Action: &actions[i]})
		}
	}

	return steps, nil
}

// checkEditions rejects the whole plan before any statement is emitted
// if an action's kind requires an edition above the session's (spec
// §4.7 step 3). The resolver already validated per-attribute edition
// gates (internal/resolver validateEditions); this is the kind-level
// backstop for actions the resolver never saw, namely Drops of
// live-only objects that never passed through resolution.
func checkEditions(actions []planner.Action, reg *catalog.Registry, sessionEdition catalog.Edition) error {
	for _, a := range actions {
		spec, err := reg.Lookup(a.ResourceKind)
		if err != nil {
			continue
		}

		if spec.EditionRequired > sessionEdition {
			return snowerrors.NewWrongEditionError(a.URN.Render(), "", spec.EditionRequired.String(), sessionEdition.String())
		}
	}

	return nil
}

func selectRole(a planner.Action, reg *catalog.Registry, inv RoleInventory) (string, error) {
	switch a.Kind {
	case planner.Create:
		return roleForCreate(a, reg, inv)
	case planner.Transfer:
		return roleForTransfer(a, inv)
	case planner.Update:
		return roleForOwned(a, reg, inv, "update")
	case planner.Drop:
		return roleForOwned(a, reg, inv, "drop")
	default:
		return "", fmt.Errorf("scheduler: unknown action kind %q", a.Kind)
	}
}

// roleForCreate needs the kind's create privilege on the appropriate
// container; failing an explicit holder, the system role that owns
// that privilege by default (spec §4.7 step 1).
func roleForCreate(a planner.Action, reg *catalog.Registry, inv RoleInventory) (string, error) {
	priv, _ := reg.CreatePrivFor(a.ResourceKind)

	if priv != "" {
		if role, ok := catalog.GlobalPrivDefaultOwner(priv); ok && inv.holds(role) {
			return role, nil
		}

		if role, ok := inv.firstHolderOf(priv); ok {
			return role, nil
		}
	}

	if spec, err := reg.Lookup(a.ResourceKind); err == nil && inv.holds(spec.DefaultOwner) {
		return spec.DefaultOwner, nil
	}

	return "", snowerrors.NewMissingPrivilegeError(a.URN.Render(), "create", priv)
}

// roleForTransfer requires the from-owner role, or a role holding
// MANAGE GRANTS (spec §4.7 step 1).
func roleForTransfer(a planner.Action, inv RoleInventory) (string, error) {
	if inv.holds(a.FromOwner) {
		return a.FromOwner, nil
	}

	if role, ok := inv.firstHolderOf("MANAGE GRANTS"); ok {
		return role, nil
	}

	return "", snowerrors.NewMissingPrivilegeError(a.URN.Render(), "transfer", "MANAGE GRANTS")
}

// roleForOwned requires the object's owner role, or the kind's default
// system owner as the "equivalent admin" fallback (spec §4.7 step 1,
// Update/Drop).
func roleForOwned(a planner.Action, reg *catalog.Registry, inv RoleInventory, verb string) (string, error) {
	owner, _ := a.Before["owner"].(string)
	if inv.holds(owner) {
		return owner, nil
	}

	if spec, err := reg.Lookup(a.ResourceKind); err == nil && inv.holds(spec.DefaultOwner) {
		return spec.DefaultOwner, nil
	}

	return "", snowerrors.NewMissingPrivilegeError(a.URN.Render(), verb, "OWNERSHIP")
}

// statementsFor renders an action's statements. Grant and role_grant
// drops carry their identity in Before's params rather than a
// fetchable attribute record, so they render straight from the live
// Spec instead of going through Renderer.Drop (spec §3.1 "non-object
// resources").
func statementsFor(a planner.Action, rend renderer.Renderer) ([]string, error) {
	switch a.Kind {
	case planner.Create:
		stmt, err := rend.Create(a.URN, a.ResourceKind, a.After.Attrs)
		if err != nil {
			return nil, err
		}

		return []string{stmt}, nil
	case planner.Update:
		return rend.Update(a.URN, a.ResourceKind, a.After.Attrs, a.Delta)
	case planner.Transfer:
		stmt, err := rend.Transfer(a.URN, a.ResourceKind, a.ToOwner)
		if err != nil {
			return nil, err
		}

		return []string{stmt}, nil
	case planner.Drop:
		return dropStatements(a, rend)
	default:
		return nil, fmt.Errorf("scheduler: unknown action kind %q", a.Kind)
	}
}

func dropStatements(a planner.Action, rend renderer.Renderer) ([]string, error) {
	switch a.ResourceKind {
	case catalog.KindGrant:
		// priv is the live set of individual privileges held on this
		// target (state.normalizeGrantRows), not a single string — an
		// ALL grant revokes the same way a fully-enumerated one does.
		privs, _ := a.Before["priv"].([]string)
		on, _ := a.Before["on"].(string)
		onType, _ := a.Before["on_type"].(string)
		to, _ := a.Before["to"].(string)
		toType, _ := a.Before["to_type"].(string)

		return []string{renderer.DropGrant(strings.Join(privs, ", "), on, onType, to, toType)}, nil
	case catalog.KindRoleGrant:
		role, _ := a.Before["role"].(string)
		to, _ := a.Before["to"].(string)
		toType, _ := a.Before["to_type"].(string)

		return []string{renderer.DropRoleGrant(role, to, toType)}, nil
	default:
		stmt, err := rend.Drop(a.URN, a.ResourceKind)
		if err != nil {
			return nil, err
		}

		return []string{stmt}, nil
	}
}
