// Package resources holds the kind-specific attribute records the
// manifest compiler builds and the resolver/planner operate on, plus
// the generic Resource envelope every record is carried in (spec §3.2).
package resources

import (
	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/identifier"
)

// OwnerRef names a resource's owning role, either by resolved URN (once
// the resolver has run) or by a bare name string (before resolution).
type OwnerRef struct {
	Name         string
	ResolvedURN  *identifier.URN
}

// Resource is the generic envelope: kind tag, identity, owner, scope,
// and an opaque kind-specific attribute record (one of the record
// types in records.go, or a raw map before the resolver has typed it).
type Resource struct {
	Kind     catalog.Kind
	FQN      identifier.FQN
	Owner    OwnerRef
	Scope    catalog.Scope
	Attrs    any // one of the Record types below
	Requires []identifier.URN // user-declared `requires` edges (spec §4.3 step 4)

	// Pointer marks a placeholder reference produced by a bare-URN
	// mention rather than a full declaration (spec §3.3); it carries no
	// attributes of its own and is merged into a concrete Resource by
	// the resolver, or kept as an external reference if none exists.
	Pointer bool
}

// URN computes this resource's canonical identifier given the account
// context. Kept as a method rather than a stored field so a Resource
// can be identity-complete as soon as FQN/Kind are set, without
// requiring the account locator at construction time.
func (r Resource) URN(org, accountLocator string) identifier.URN {
	return identifier.URN{Org: org, AccountLocator: accountLocator, Kind: string(r.Kind), FQN: r.FQN}
}
