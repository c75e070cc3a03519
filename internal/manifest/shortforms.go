package manifest

import (
	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/resources"
)

// expandRoleGrants expands the top-level `role_grants` short-form into
// RoleGrant resources, grounded on gitops.py's
// `_resources_from_role_grants_config`: one role to one grantee, one
// role to many grantees, or many roles to one grantee.
func expandRoleGrants(block []any) []resources.Resource {
	var out []resources.Resource

	for _, raw := range block {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		if role, ok := entry["role"].(string); ok {
			for _, to := range granteesOf(entry) {
				out = append(out, resources.Resource{
					Kind:  catalog.KindRoleGrant,
					Attrs: &resources.RoleGrant{Role: role, To: to},
				})
			}

			continue
		}

		// Many roles -> one grantee.
		to := firstGrantee(entry)
		if to == "" {
			continue
		}

		for _, role := range stringList(entry["roles"]) {
			out = append(out, resources.Resource{
				Kind:  catalog.KindRoleGrant,
				Attrs: &resources.RoleGrant{Role: role, To: to},
			})
		}
	}

	return out
}

// expandDatabaseRoleGrants mirrors expandRoleGrants for the
// `database_role_grants` short-form, grounded on
// `_resources_from_database_role_grants_config`.
func expandDatabaseRoleGrants(block []any) []resources.Resource {
	var out []resources.Resource

	for _, raw := range block {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		dbRole, _ := entry["database_role"].(string)

		if toRole, ok := entry["to_role"].(string); ok {
			out = append(out, resources.Resource{
				Kind:  catalog.KindRoleGrant,
				Attrs: &resources.RoleGrant{Role: dbRole, To: toRole, ToType: "ROLE"},
			})

			continue
		}

		for _, role := range stringList(entry["roles"]) {
			out = append(out, resources.Resource{
				Kind:  catalog.KindRoleGrant,
				Attrs: &resources.RoleGrant{Role: dbRole, To: role, ToType: "ROLE"},
			})
		}
	}

	return out
}

// granteesOf collects every grantee named by a role_grants entry whose
// `role` key is singular: to_role, to_user, to_roles[], to_users[].
func granteesOf(entry map[string]any) []string {
	var out []string

	if v, ok := entry["to_role"].(string); ok {
		out = append(out, v)
	}

	if v, ok := entry["to_user"].(string); ok {
		out = append(out, v)
	}

	out = append(out, stringList(entry["to_roles"])...)
	out = append(out, stringList(entry["to_users"])...)

	return out
}

func firstGrantee(entry map[string]any) string {
	if v, ok := entry["to_role"].(string); ok {
		return v
	}

	if v, ok := entry["to_user"].(string); ok {
		return v
	}

	return ""
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]string, 0, len(items))

	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}

	return out
}
