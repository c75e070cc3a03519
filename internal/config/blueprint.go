package config

import (
	"fmt"

	"github.com/snowcapio/snowcap/internal/identifier"
)

// Scope restricts which URNs may appear in a plan (§3.3, §6.1).
type Scope string

const (
	ScopeAccount  Scope = "ACCOUNT"
	ScopeDatabase Scope = "DATABASE"
	ScopeSchema   Scope = "SCHEMA"
)

// VarType is the declared type of a blueprint variable.
type VarType string

const (
	VarTypeString VarType = "str"
	VarTypeInt    VarType = "int"
	VarTypeBool   VarType = "bool"
	VarTypeFloat  VarType = "float"
	VarTypeList   VarType = "list"
)

// VarSpec declares one entry of the blueprint's `vars` section.
type VarSpec struct {
	Name    string
	Type    VarType
	Default any
	HasDefault bool
}

// Blueprint is the Go analogue of the original BlueprintConfig dataclass:
// the immutable configuration a compile/plan/apply run is driven by.
type Blueprint struct {
	Name           string
	DryRun         bool
	SyncResources  []string // kind tags for which drops are authorized
	Vars           map[string]any
	VarsSpec       []VarSpec
	Scope          Scope
	Database       *identifier.Name
	Schema         *identifier.Name
	Threads        int
}

// Validate enforces the same invariants __post_init__ enforced on the
// original BlueprintConfig: scope/root consistency, thread count, and
// (when present) a non-empty sync_resources list.
func (b *Blueprint) Validate() error {
	if b.SyncResources != nil && len(b.SyncResources) == 0 {
		return fmt.Errorf("sync_resources must have at least one resource type when provided")
	}

	switch b.Scope {
	case ScopeDatabase:
		if b.Schema != nil {
			return fmt.Errorf("cannot specify a schema when using DATABASE scope")
		}
	case ScopeAccount:
		if b.Database != nil || b.Schema != nil {
			return fmt.Errorf("cannot specify a database or schema when using ACCOUNT scope")
		}
	}

	if b.Threads <= 0 {
		b.Threads = 8
	}

	return nil
}

// SyncsKind reports whether drops are authorized for the given kind tag.
func (b *Blueprint) SyncsKind(kindTag string) bool {
	for _, k := range b.SyncResources {
		if k == kindTag {
			return true
		}
	}

	return false
}
