// Package manifest implements the YAML -> resources compilation
// pipeline (C3): file parsing/merging, variable binding, for_each
// expansion, and short-form resource construction (spec §4.3).
package manifest

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/config"
	"github.com/snowcapio/snowcap/internal/resources"
	"github.com/snowcapio/snowcap/internal/snowerrors"
)

// RawFile is one YAML source file handed to Compile, before parsing.
type RawFile struct {
	Path     string
	Contents []byte
}

// Manifest is the flat compiler output: a list of resources (some of
// them Pointers) plus the raw requires edges already attached per
// resource. Duplicate/pointer merging and container injection are the
// resolver's job (C4), not the compiler's (spec §3.3, §4.4).
type Manifest struct {
	Resources []resources.Resource
}

// kindTags maps the pluralized/aliased YAML section key to the kind it
// builds, grounded on gitops.py's `pluralize(resource_label_for_type(...))`
// plus its ALIASES table (`account_parameters` -> AccountParameter).
var kindTags = map[string]catalog.Kind{
	"databases":               catalog.KindDatabase,
	"schemas":                 catalog.KindSchema,
	"tables":                  catalog.KindTable,
	"views":                   catalog.KindView,
	"warehouses":              catalog.KindWarehouse,
	"roles":                   catalog.KindRole,
	"database_roles":          catalog.KindDatabaseRole,
	"users":                   catalog.KindUser,
	"grants":                  catalog.KindGrant,
	"stages":                  catalog.KindStage,
	"tasks":                   catalog.KindTask,
	"shares":                  catalog.KindShare,
	"integrations":            catalog.KindIntegration,
	"resource_monitors":       catalog.KindResourceMonitor,
	"masking_policies":        catalog.KindMaskingPolicy,
}

// reservedKeys are top-level blueprint keys consumed by config.Blueprint
// itself rather than being resource sections; Compile must not treat
// them as unknown-key errors, nor as resource blocks.
var reservedKeys = map[string]bool{
	"name": true, "scope": true, "database": true, "schema": true,
	"sync_resources": true, "dry_run": true, "vars": true,
	"role_grants": true, "database_role_grants": true,
}

// Compile parses files, merges them, binds vars, and expands every
// resource-kind section (including for_each and short-forms) into a
// flat Manifest (spec §4.3).
func Compile(files []RawFile, blueprint *config.Blueprint) (*Manifest, error) {
	merged := map[string]any{}

	for _, f := range files {
		var doc map[string]any
		if err := yaml.Unmarshal(f.Contents, &doc); err != nil {
			return nil, errors.Wrapf(err, "manifest: parsing %s", f.Path)
		}

		if err := mergeDocs(merged, doc, f.Path); err != nil {
			return nil, err
		}
	}

	for k := range merged {
		if _, isKind := kindTags[k]; !isKind && !reservedKeys[k] {
			return nil, snowerrors.NewInvalidResourceError(k, fmt.Sprintf("unknown top-level key %q", k))
		}
	}

	vars, err := bindVars(merged, blueprint)
	if err != nil {
		return nil, err
	}

	var out []resources.Resource

	roleGrantsBlock, _ := merged["role_grants"].([]any)
	dbRoleGrantsBlock, _ := merged["database_role_grants"].([]any)

	for tag, kind := range kindTags {
		block, ok := merged[tag]
		if !ok {
			continue
		}

		items, ok := block.([]any)
		if !ok {
			return nil, snowerrors.NewInvalidResourceError(string(kind), fmt.Sprintf("section %q must be a list", tag))
		}

		for _, item := range items {
			expanded, err := compileEntry(kind, item, vars)
			if err != nil {
				return nil, err
			}

			out = append(out, expanded...)
		}
	}

	out = append(out, expandRoleGrants(roleGrantsBlock)...)
	out = append(out, expandDatabaseRoleGrants(dbRoleGrantsBlock)...)

	return &Manifest{Resources: out}, nil
}

// mergeDocs merges doc into acc: list-valued keys are concatenated
// across files, scalar keys must agree (or be absent on one side),
// per spec §4.3 step 1 ("merge lists by key and reject scalar conflicts").
func mergeDocs(acc, doc map[string]any, path string) error {
	for k, v := range doc {
		existing, present := acc[k]
		if !present {
			acc[k] = v
			continue
		}

		existingList, existingIsList := existing.([]any)
		newList, newIsList := v.([]any)

		if existingIsList && newIsList {
			acc[k] = append(existingList, newList...)
			continue
		}

		if fmt.Sprintf("%#v", existing) == fmt.Sprintf("%#v", v) {
			continue
		}

		return snowerrors.NewInvalidResourceError(k, fmt.Sprintf("conflicting scalar value for top-level key %q while merging %s", k, path))
	}

	return nil
}
