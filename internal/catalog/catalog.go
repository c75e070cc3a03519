// Package catalog is the ground truth for every resource kind: scope,
// polymorphic subtype resolution, attribute metadata, default owners,
// edition gating, and the privilege map. Every other component consults
// the Registry rather than switching on kind tags itself (spec §4.2).
package catalog

import (
	"fmt"
	"strings"
)

// Kind is a resource kind tag, e.g. "database", "grant", "stage".
type Kind string

const (
	KindDatabase                Kind = "database"
	KindSchema                  Kind = "schema"
	KindTable                   Kind = "table"
	KindView                    Kind = "view"
	KindWarehouse               Kind = "warehouse"
	KindRole                    Kind = "role"
	KindDatabaseRole            Kind = "database_role"
	KindUser                    Kind = "user"
	KindGrant                   Kind = "grant"
	KindRoleGrant               Kind = "role_grant"
	KindStage                   Kind = "stage" // polymorphic tag
	KindInternalStage           Kind = "internal_stage"
	KindExternalStage           Kind = "external_stage"
	KindTask                    Kind = "task"
	KindShare                   Kind = "share"
	KindIntegration             Kind = "integration" // polymorphic tag
	KindStorageIntegration      Kind = "storage_integration"
	KindApiIntegration          Kind = "api_integration"
	KindNotificationIntegration Kind = "notification_integration"
	KindResourceMonitor         Kind = "resource_monitor"
	KindMaskingPolicy           Kind = "masking_policy"
)

// Scope restricts where an instance of a kind may live (spec §3.2).
type Scope string

const (
	ScopeOrganization Scope = "Organization"
	ScopeAccount      Scope = "Account"
	ScopeDatabase     Scope = "Database"
	ScopeSchema       Scope = "Schema"
	ScopeTable        Scope = "Table"
	ScopeAnonymous    Scope = "Anonymous"
)

// Edition is a warehouse feature tier gating which attributes/actions
// are legal (spec §3.2, GLOSSARY).
type Edition int

const (
	EditionStandard Edition = iota
	EditionEnterprise
	EditionBusinessCritical
)

func (e Edition) String() string {
	switch e {
	case EditionStandard:
		return "Standard"
	case EditionEnterprise:
		return "Enterprise"
	case EditionBusinessCritical:
		return "Business Critical"
	default:
		return "Unknown"
	}
}

// ParseEdition maps a warehouse account's service-level name (as
// reported by SYSTEM$BOOTSTRAP_DATA_REQUEST's accountInfo.serviceLevelName,
// e.g. "STANDARD", "ENTERPRISE", "BUSINESS CRITICAL") onto Edition,
// defaulting unrecognized values to EditionStandard rather than failing
// a session-facts fetch over a field this module doesn't need exactly.
func ParseEdition(serviceLevelName string) Edition {
	switch strings.ToUpper(strings.TrimSpace(serviceLevelName)) {
	case "ENTERPRISE":
		return EditionEnterprise
	case "BUSINESS CRITICAL", "BUSINESS_CRITICAL", "VPS":
		return EditionBusinessCritical
	default:
		return EditionStandard
	}
}

// AttributeSpec carries per-field metadata the planner and resolver
// consult to decide whether a field participates in diffing, is legal
// under the session's edition, or must be skipped until read back.
type AttributeSpec struct {
	Name             string
	FetchAble        bool
	KnownAfterApply  bool
	EditionRequired  Edition
	IgnoreChanges    bool
	OrderInsensitive bool // compared as a set, not a sequence
}

// PolymorphicResolver inspects a raw decoded record (already parsed
// from YAML/live-state row) and selects the concrete subtype kind for
// an ambiguous tag such as "stage" or "integration" (spec §4.2).
type PolymorphicResolver func(record map[string]any) (Kind, error)

// KindSpec is the catalog's entry for one resource kind: everything the
// rest of the system needs without switching on the kind tag itself.
type KindSpec struct {
	Kind                Kind
	Scope               Scope
	PolymorphicResolver PolymorphicResolver // nil unless this tag is ambiguous
	DefaultOwner        string
	EditionRequired     Edition
	Attributes          []AttributeSpec
	CreatePriv          string
	Privs               []string
}

// AttributeByName returns the AttributeSpec for name, if declared.
func (k KindSpec) AttributeByName(name string) (AttributeSpec, bool) {
	for _, a := range k.Attributes {
		if a.Name == name {
			return a, true
		}
	}

	return AttributeSpec{}, false
}

// Registry is the explicit, startup-built dispatch table from Kind to
// KindSpec. It replaces the original's reflection-over-signatures
// dispatch (spec §9) with a plain map populated when the Registry is
// constructed (NewRegistry / DefaultRegistry).
type Registry struct {
	specs map[Kind]KindSpec
}

// NewRegistry builds a Registry from an explicit list of specs. Callers
// normally use DefaultRegistry(), but tests may build a narrower one.
func NewRegistry(specs []KindSpec) *Registry {
	r := &Registry{specs: make(map[Kind]KindSpec, len(specs))}
	for _, s := range specs {
		r.specs[s.Kind] = s
	}

	return r
}

// Lookup returns the KindSpec for k, or an error if k is not registered.
func (r *Registry) Lookup(k Kind) (KindSpec, error) {
	spec, ok := r.specs[k]
	if !ok {
		return KindSpec{}, fmt.Errorf("catalog: unknown kind %q", k)
	}

	return spec, nil
}

// Kinds returns every kind this Registry has a spec for, in no
// particular order. internal/engine uses it to snapshot every live
// kind a run might need, without hardcoding the kind list itself.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.specs))
	for k := range r.specs {
		kinds = append(kinds, k)
	}

	return kinds
}

// MustLookup panics if k is not registered; for call sites operating
// only on kinds the caller has already validated against the registry.
func (r *Registry) MustLookup(k Kind) KindSpec {
	spec, err := r.Lookup(k)
	if err != nil {
		panic(err)
	}

	return spec
}

// Resolve applies a kind's PolymorphicResolver (if any) to pick the
// concrete subtype for an ambiguous tag. Kinds without a resolver
// return themselves unchanged; the Registry does not separately mark a
// tag as ambiguous, so a tag registered without a resolver is never an
// error here. A resolver that cannot match the record returns an error.
func (r *Registry) Resolve(k Kind, record map[string]any) (Kind, error) {
	spec, err := r.Lookup(k)
	if err != nil {
		return "", err
	}

	if spec.PolymorphicResolver == nil {
		return k, nil
	}

	return spec.PolymorphicResolver(record)
}

// PrivsFor returns the set of valid privilege names for kind k.
func (r *Registry) PrivsFor(k Kind) ([]string, error) {
	spec, err := r.Lookup(k)
	if err != nil {
		return nil, err
	}

	return spec.Privs, nil
}

// CreatePrivFor returns the privilege required to create an instance of k.
func (r *Registry) CreatePrivFor(k Kind) (string, error) {
	spec, err := r.Lookup(k)
	if err != nil {
		return "", err
	}

	return spec.CreatePriv, nil
}

// globalPrivDefaultOwners maps an account-level privilege to the
// built-in system role that canonically owns it.
var globalPrivDefaultOwners = map[string]string{
	"CREATE DATABASE":  "SYSADMIN",
	"CREATE WAREHOUSE":  "SYSADMIN",
	"CREATE ROLE":       "USERADMIN",
	"CREATE USER":       "USERADMIN",
	"MANAGE GRANTS":     "SECURITYADMIN",
	"CREATE INTEGRATION": "ACCOUNTADMIN",
	"CREATE SHARE":      "ACCOUNTADMIN",
	"MONITOR USAGE":     "ACCOUNTADMIN",
}

// GlobalPrivDefaultOwner returns the system role that canonically owns
// priv at the account level, and whether priv is a recognized global
// privilege.
func GlobalPrivDefaultOwner(priv string) (string, bool) {
	role, ok := globalPrivDefaultOwners[priv]
	return role, ok
}
