// Package resolver implements the reference resolver (C4): container
// injection from the blueprint scope, pointer/duplicate merging,
// ownership chain resolution, implicit PUBLIC schema propagation, and
// edition validation (spec §4.4).
package resolver

import (
	"reflect"

	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/config"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/manifest"
	"github.com/snowcapio/snowcap/internal/resources"
	"github.com/snowcapio/snowcap/internal/snowerrors"
)

// SessionContext carries the few session facts the resolver needs:
// the account identity to stamp onto every URN, and the edition to
// validate attributes against (spec §4.4 "Edition validation").
type SessionContext struct {
	Org            string
	AccountLocator string
	Edition        catalog.Edition
}

// Resolve runs the full C4 pipeline over a compiler-flat resource list
// and returns the completed Manifest (URN -> Resource).
func Resolve(compiled *manifest.Manifest, blueprint *config.Blueprint, sess SessionContext, reg *catalog.Registry) (*ResolvedManifest, error) {
	if err := nameFQNs(compiled.Resources, blueprint); err != nil {
		return nil, err
	}

	byURN, order, err := mergeByURN(compiled.Resources, sess)
	if err != nil {
		return nil, err
	}

	if err := resolveOwnership(byURN); err != nil {
		return nil, err
	}

	injectImplicitPublicSchemas(byURN, &order, sess)

	if err := validateEditions(byURN, reg, sess.Edition); err != nil {
		return nil, err
	}

	return &ResolvedManifest{
		Resources: byURN,
		Order:     order,
		SyncKinds: blueprint.SyncResources,
		Scope:     blueprint.Scope,
		Database:  blueprint.Database,
		Schema:    blueprint.Schema,
	}, nil
}

// ResolvedManifest is the C4 output: the URN-keyed desired-state map
// the planner diffs against live state (spec §3.3).
type ResolvedManifest struct {
	Resources map[identifier.URN]resources.Resource
	Order     []identifier.URN // first-seen order, for deterministic iteration
	SyncKinds []string
	Scope     config.Scope
	Database  *identifier.Name
	Schema    *identifier.Name
}

// SyncsKind reports whether kindTag is authorized for drops under
// this manifest's sync_resources list (spec §4.6 step 2).
func (m *ResolvedManifest) SyncsKind(kindTag string) bool {
	for _, k := range m.SyncKinds {
		if k == kindTag {
			return true
		}
	}

	return false
}

// nameFQNs derives each resource's FQN from its attribute record's Name
// field and, for schema/database-scoped kinds whose record lacks an
// explicit database/schema, injects the blueprint's scope roots (spec
// §4.4 "container injection").
func nameFQNs(list []resources.Resource, blueprint *config.Blueprint) error {
	for i := range list {
		r := &list[i]

		name, ok := nameOf(r.Attrs)
		if !ok {
			continue
		}

		n := identifier.NewName(name, false)

		fqn := identifier.FQN{Name: n}

		switch r.Kind.scopeNeedsDatabase() {
		case needsDatabaseAndSchema:
			if blueprint.Database == nil {
				return snowerrors.NewInvalidResourceError(name, "resource is schema-scoped but blueprint has no database root and none was declared")
			}

			fqn.Database = *blueprint.Database

			if blueprint.Schema != nil {
				fqn.Schema = *blueprint.Schema
			} else {
				fqn.Schema = identifier.NewName("PUBLIC", false)
			}
		case needsDatabaseOnly:
			if blueprint.Database == nil {
				return snowerrors.NewInvalidResourceError(name, "resource is database-scoped but blueprint has no database root")
			}

			fqn.Database = *blueprint.Database
		}

		r.FQN = fqn
	}

	return nil
}

// nameOf extracts the "Name" field every per-kind record exposes, by
// type switch rather than reflection (consistent with the explicit
// per-kind dispatch used throughout, spec §9).
func nameOf(attrs any) (string, bool) {
	switch v := attrs.(type) {
	case *resources.Database:
		return v.Name, true
	case *resources.Schema:
		return v.Name, true
	case *resources.Table:
		return v.Name, true
	case *resources.View:
		return v.Name, true
	case *resources.Warehouse:
		return v.Name, true
	case *resources.Role:
		return v.Name, true
	case *resources.DatabaseRole:
		return v.Name, true
	case *resources.User:
		return v.Name, true
	case *resources.InternalStage:
		return v.Name, true
	case *resources.ExternalStage:
		return v.Name, true
	case *resources.Task:
		return v.Name, true
	case *resources.Share:
		return v.Name, true
	case *resources.StorageIntegration:
		return v.Name, true
	case *resources.ApiIntegration:
		return v.Name, true
	case *resources.NotificationIntegration:
		return v.Name, true
	case *resources.ResourceMonitor:
		return v.Name, true
	case *resources.MaskingPolicy:
		return v.Name, true
	default:
		return "", false
	}
}

type scopeNeed int

const (
	needsNothing scopeNeed = iota
	needsDatabaseOnly
	needsDatabaseAndSchema
)

// scopeNeedsDatabase reports whether a Kind's FQN must be rooted at the
// blueprint's database/schema scope roots when the record itself
// doesn't carry one (account-scoped kinds like Role/Warehouse never do).
func (k kindAlias) scopeNeedsDatabase() scopeNeed {
	switch catalog.Kind(k) {
	case catalog.KindSchema, catalog.KindDatabaseRole:
		return needsDatabaseOnly
	case catalog.KindTable, catalog.KindView, catalog.KindInternalStage,
		catalog.KindExternalStage, catalog.KindStage, catalog.KindTask,
		catalog.KindMaskingPolicy:
		return needsDatabaseAndSchema
	default:
		return needsNothing
	}
}

type kindAlias = catalog.Kind

func mergeByURN(list []resources.Resource, sess SessionContext) (map[identifier.URN]resources.Resource, []identifier.URN, error) {
	byURN := make(map[identifier.URN]resources.Resource, len(list))

	var order []identifier.URN

	for _, r := range list {
		urn := r.URN(sess.Org, sess.AccountLocator)

		existing, present := byURN[urn]
		if !present {
			byURN[urn] = r
			order = append(order, urn)

			continue
		}

		if !sameSpec(existing, r) {
			return nil, nil, snowerrors.NewDuplicateResourceError(urn.Render())
		}
		// exact duplicate: merged into the one already recorded, requires
		// edges still accumulate (spec §3.3 "exact-duplicate definitions
		// are merged").
		merged := existing
		merged.Requires = append(merged.Requires, r.Requires...)
		byURN[urn] = merged
	}

	return byURN, order, nil
}

// sameSpec is a pragmatic equality check: two resources are the exact
// same spec if their attribute records are deeply equal
// (reflect.DeepEqual). A full structural comparer would walk
// AttributeSpec.IgnoreChanges like the planner does; duplicate detection
// does not need that nuance.
func sameSpec(a, b resources.Resource) bool {
	return reflect.DeepEqual(a.Attrs, b.Attrs)
}

func resolveOwnership(byURN map[identifier.URN]resources.Resource) error {
	for urn, r := range byURN {
		if r.Owner.Name == "" {
			continue
		}

		resolved := r
		resolved.Owner.ResolvedURN = findRoleURN(byURN, r.Owner.Name)
		byURN[urn] = resolved
	}

	return nil
}

// findRoleURN looks for a Role or DatabaseRole in the manifest whose
// name matches ownerName, per the identifier-equality rule. A miss
// leaves ResolvedURN nil, meaning "external pointer" (spec §4.4).
func findRoleURN(byURN map[identifier.URN]resources.Resource, ownerName string) *identifier.URN {
	want := identifier.NewName(ownerName, false)

	for urn, r := range byURN {
		if r.Kind != catalog.KindRole && r.Kind != catalog.KindDatabaseRole {
			continue
		}

		if name, ok := nameOf(r.Attrs); ok && identifier.NewName(name, false).Equal(want) {
			u := urn
			return &u
		}
	}

	return nil
}

// injectImplicitPublicSchemas adds a PUBLIC Schema resource for every
// Database in the manifest that doesn't already have one declared
// explicitly, inheriting the database's parameter fields for drift
// comparison (spec §3.2, §9 "Implicit PUBLIC schema").
func injectImplicitPublicSchemas(byURN map[identifier.URN]resources.Resource, order *[]identifier.URN, sess SessionContext) {
	for urn, r := range byURN {
		db, ok := r.Attrs.(*resources.Database)
		if !ok {
			continue
		}

		publicFQN := identifier.FQN{
			Database: identifier.NewName(db.Name, false),
			Name:     identifier.NewName("PUBLIC", false),
		}

		publicURN := identifier.URN{Org: sess.Org, AccountLocator: sess.AccountLocator, Kind: string(catalog.KindSchema), FQN: publicFQN}

		if _, exists := byURN[publicURN]; exists {
			continue
		}

		byURN[publicURN] = resources.Resource{
			Kind:  catalog.KindSchema,
			FQN:   publicFQN,
			Owner: r.Owner,
			Scope: catalog.ScopeDatabase,
			Attrs: &resources.Schema{
				Name:                       "PUBLIC",
				Owner:                      db.Owner,
				DataRetentionTimeInDays:    db.DataRetentionTimeInDays,
				MaxDataExtensionTimeInDays: db.MaxDataExtensionTimeInDays,
				DefaultDDLCollation:        db.DefaultDDLCollation,
				Implicit:                   true,
			},
		}

		*order = append(*order, publicURN)
		_ = urn
	}
}

// validateEditions rejects any attribute tagged edition_required=E when
// the session's edition is below E (spec §4.4, §8.3 scenario 6).
func validateEditions(byURN map[identifier.URN]resources.Resource, reg *catalog.Registry, sessionEdition catalog.Edition) error {
	for urn, r := range byURN {
		spec, err := reg.Lookup(r.Kind)
		if err != nil {
			continue // polymorphic tags resolved earlier; unknown kinds are a compiler-stage concern
		}

		if spec.EditionRequired > sessionEdition {
			return snowerrors.NewWrongEditionError(urn.Render(), "", spec.EditionRequired.String(), sessionEdition.String())
		}

		for _, attr := range spec.Attributes {
			if attr.EditionRequired > sessionEdition && attributeSet(r.Attrs, attr.Name) {
				return snowerrors.NewWrongEditionError(urn.Render(), attr.Name, attr.EditionRequired.String(), sessionEdition.String())
			}
		}
	}

	return nil
}

// attributeSet reports whether a warehouse's edition-gated fields were
// explicitly populated. Only warehouse carries edition-gated fields in
// the current catalog slice, so this is kind-specific rather than
// reflective, per the explicit-dispatch design (spec §9).
func attributeSet(attrs any, name string) bool {
	wh, ok := attrs.(*resources.Warehouse)
	if !ok {
		return false
	}

	switch name {
	case "enable_query_acceleration":
		return wh.EnableQueryAcceleration
	case "query_acceleration_max_scale_factor":
		return wh.QueryAccelerationMaxScaleFactor != nil
	case "max_cluster_count":
		return wh.MaxClusterCount != nil
	case "min_cluster_count":
		return wh.MinClusterCount != nil
	case "scaling_policy":
		return wh.ScalingPolicy != nil
	default:
		return false
	}
}
