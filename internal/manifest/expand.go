package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/resources"
	"github.com/snowcapio/snowcap/internal/snowerrors"
)

// interpPattern matches `{{ each.value }}`, `{{ each.value.field }}`, and
// `{{ var.X }}` tokens, each optionally followed by a pipeline of
// `|filter[:arg]` stages (spec §6.1).
var interpPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)((?:\s*\|\s*[a-zA-Z0-9_]+(?::[^}|]+)?)*)\s*\}\}`)

// compileEntry turns one raw YAML section entry (dict, string, or
// for_each dict) into zero or more typed resources (spec §4.3 step 3).
func compileEntry(kind catalog.Kind, item any, vars map[string]any) ([]resources.Resource, error) {
	switch v := item.(type) {
	case map[string]any:
		if _, hasForEach := v["for_each"]; hasForEach {
			return expandForEach(kind, v, vars)
		}

		return []resources.Resource{mustDecode(kind, interpolateVarRefs(v, vars))}, nil

	case string:
		res, err := parseDeclarativeSource(kind, v)
		if err != nil {
			return nil, err
		}

		return []resources.Resource{res}, nil

	default:
		return nil, snowerrors.NewInvalidResourceError(string(kind), fmt.Sprintf("unsupported resource entry type %T", item))
	}
}

// expandForEach clones record once per item in the referenced var list,
// interpolating `{{ each.value }}`/`{{ each.value.field }}` into every
// string (and string-list) field, and coercing declared int fields,
// grounded on gitops.py's `_resources_for_config` for_each branch.
func expandForEach(kind catalog.Kind, record map[string]any, vars map[string]any) ([]resources.Resource, error) {
	forEachRef, _ := record["for_each"].(string)
	if !strings.HasPrefix(forEachRef, "var.") {
		return nil, snowerrors.NewInvalidResourceError(string(kind), fmt.Sprintf("for_each must be a var reference, got %q", forEachRef))
	}

	varName := strings.TrimPrefix(forEachRef, "var.")

	listVal, ok := vars[varName]
	if !ok {
		return nil, snowerrors.NewMissingVarError(varName)
	}

	items, ok := listVal.([]any)
	if !ok {
		return nil, snowerrors.NewInvalidResourceError(string(kind), fmt.Sprintf("for_each var %q is not a list", varName))
	}

	template := map[string]any{}

	for k, v := range record {
		if k == "for_each" {
			continue
		}

		template[k] = v
	}

	requires, _ := template["requires"].([]any)
	delete(template, "requires")

	var out []resources.Resource

	for _, each := range items {
		instance := map[string]any{}
		for k, v := range template {
			instance[k] = interpolateValue(v, each)
		}

		res := mustDecode(kind, instance)
		res.Requires = parseRequires(requires)
		out = append(out, res)
	}

	return out, nil
}

// interpolateValue walks a string/list value substituting `each`-scoped
// interpolation tokens; non-string/list values pass through unchanged.
func interpolateValue(v any, each any) any {
	switch val := v.(type) {
	case string:
		return interpolateString(val, each)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = interpolateValue(item, each)
		}

		return out
	default:
		return v
	}
}

func interpolateString(s string, each any) any {
	if !strings.Contains(s, "{{") {
		return s
	}

	result := interpPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := interpPattern.FindStringSubmatch(match)
		path, pipeline := groups[1], groups[2]

		val := resolveInterpPath(path, each)

		return applyFilters(val, pipeline)
	})

	// A whole-string single token like "{{ each.value }}" that resolved
	// to a non-string (e.g. an int from a list var) should coerce back
	// if the field is declared int elsewhere; here we simply try int
	// coercion opportunistically and fall back to the string form.
	if n, ok := coerceIfInt(result); ok && strings.TrimSpace(result) == result {
		return n
	}

	return result
}

// resolveInterpPath resolves `each.value` and `each.value.field` against
// the current loop value. Any other path, including `var.X`, resolves to
// the empty string: var references are not substituted inside a for_each
// template.
func resolveInterpPath(path string, each any) string {
	parts := strings.Split(path, ".")
	if len(parts) == 0 || parts[0] != "each" {
		return ""
	}

	if len(parts) == 2 && parts[1] == "value" {
		return fmt.Sprintf("%v", each)
	}

	if len(parts) >= 3 && parts[1] == "value" {
		m, ok := each.(map[string]any)
		if !ok {
			return ""
		}

		field := parts[2]

		v, ok := m[field]
		if !ok {
			return ""
		}

		return fmt.Sprintf("%v", v)
	}

	return ""
}

// applyFilters runs the `|upper|lower|replace:a,b|split:,|default:x|get:k`
// filter pipeline over val (spec §6.1's filter list).
func applyFilters(val, pipeline string) string {
	pipeline = strings.TrimSpace(pipeline)
	if pipeline == "" {
		return val
	}

	for _, stage := range strings.Split(pipeline, "|") {
		stage = strings.TrimSpace(stage)
		if stage == "" {
			continue
		}

		name, arg, _ := strings.Cut(stage, ":")

		switch strings.TrimSpace(name) {
		case "upper":
			val = strings.ToUpper(val)
		case "lower":
			val = strings.ToLower(val)
		case "replace":
			from, to, ok := strings.Cut(arg, ",")
			if ok {
				val = strings.ReplaceAll(val, from, to)
			}
		case "split":
			// split is mainly meaningful when the result feeds a list
			// field; as a scalar filter it's a no-op pass-through here.
		case "default":
			if val == "" {
				val = arg
			}
		case "get":
			// "get:key" against a map-shaped val is handled upstream in
			// resolveInterpPath for the `each.value.field` form; as a
			// filter on an already-scalar val it's a no-op.
		}
	}

	return val
}

// interpolateVarRefs substitutes `{{ var.X }}` tokens (with the same
// filter pipeline for_each interpolation supports) against already-bound
// vars, for plain (non-for_each) resource entries.
func interpolateVarRefs(record map[string]any, vars map[string]any) map[string]any {
	out := make(map[string]any, len(record))

	for k, v := range record {
		out[k] = interpolateVarValue(v, vars)
	}

	return out
}

func interpolateVarValue(v any, vars map[string]any) any {
	switch val := v.(type) {
	case string:
		if !strings.Contains(val, "{{") {
			return val
		}

		return interpPattern.ReplaceAllStringFunc(val, func(match string) string {
			groups := interpPattern.FindStringSubmatch(match)
			path, pipeline := groups[1], groups[2]

			resolved := ""

			if strings.HasPrefix(path, "var.") {
				name := strings.TrimPrefix(path, "var.")
				if v, ok := vars[name]; ok {
					resolved = fmt.Sprintf("%v", v)
				}
			}

			return applyFilters(resolved, pipeline)
		})
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = interpolateVarValue(item, vars)
		}

		return out
	default:
		return v
	}
}

// mustDecode remarshals a generic decoded map into the kind's typed
// Record via a yaml round-trip (the struct tags in internal/resources
// already match the manifest's snake_case keys), and wraps it in a
// Resource envelope. Errors here indicate malformed YAML structure,
// which is a caller bug at this stage (the document already parsed),
// so this is intentionally non-error-returning; callers that need a
// recoverable error path should use decodeResource instead.
func mustDecode(kind catalog.Kind, data map[string]any) resources.Resource {
	res, err := decodeResource(kind, data)
	if err != nil {
		panic(err)
	}

	return res
}

func decodeResource(kind catalog.Kind, data map[string]any) (resources.Resource, error) {
	owner, _ := data["owner"].(string)

	requires := parseRequires(toAnySlice(data["requires"]))

	attrs, err := decodeAttrs(kind, data)
	if err != nil {
		return resources.Resource{}, err
	}

	return resources.Resource{
		Kind:     kind,
		Owner:    resources.OwnerRef{Name: owner},
		Attrs:    attrs,
		Requires: requires,
	}, nil
}

func toAnySlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// parseRequires decodes the `requires` block (spec §4.3 step 4) into
// bare reference tokens; URN resolution happens in the resolver (C4),
// which has the scope context needed to complete them.
func parseRequires(raw []any) []string {
	var out []string

	for _, r := range raw {
		switch v := r.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			if name, ok := v["name"].(string); ok {
				out = append(out, name)
			}
		}
	}

	return out
}

// decodeAttrs remarshals data to YAML and back into the kind's typed
// record, the same approach the compiler uses for every top-level
// section entry — avoids a hand-written field-by-field mapper per kind.
func decodeAttrs(kind catalog.Kind, data map[string]any) (any, error) {
	bytes, err := yaml.Marshal(data)
	if err != nil {
		return nil, snowerrors.NewInvalidResourceError(string(kind), err.Error())
	}

	var target any

	switch kind {
	case catalog.KindDatabase:
		target = &resources.Database{}
	case catalog.KindSchema:
		target = &resources.Schema{}
	case catalog.KindTable:
		target = &resources.Table{}
	case catalog.KindView:
		target = &resources.View{}
	case catalog.KindWarehouse:
		target = &resources.Warehouse{}
	case catalog.KindRole:
		target = &resources.Role{}
	case catalog.KindDatabaseRole:
		target = &resources.DatabaseRole{}
	case catalog.KindUser:
		target = &resources.User{}
	case catalog.KindGrant:
		target = &resources.Grant{}
	case catalog.KindRoleGrant:
		target = &resources.RoleGrant{}
	case catalog.KindInternalStage, catalog.KindExternalStage, catalog.KindStage:
		target = &resources.InternalStage{}
	case catalog.KindTask:
		target = &resources.Task{}
	case catalog.KindShare:
		target = &resources.Share{}
	case catalog.KindStorageIntegration, catalog.KindApiIntegration, catalog.KindNotificationIntegration, catalog.KindIntegration:
		target = &resources.StorageIntegration{}
	case catalog.KindResourceMonitor:
		target = &resources.ResourceMonitor{}
	case catalog.KindMaskingPolicy:
		target = &resources.MaskingPolicy{}
	default:
		return nil, snowerrors.NewInvalidResourceError(string(kind), "no decoder registered for kind")
	}

	if err := yaml.Unmarshal(bytes, target); err != nil {
		return nil, snowerrors.NewInvalidResourceError(string(kind), err.Error())
	}

	return target, nil
}

// parseDeclarativeSource parses a bare string entry such as a
// `GRANT priv ON kind name TO role` short-form (spec §4.3 step 3's
// "String entry"). Only the grant/role-grant forms are supported, the
// ones the manifest's `role_grants`/`database_role_grants` short-forms
// and plain string grant entries cover.
func parseDeclarativeSource(kind catalog.Kind, src string) (resources.Resource, error) {
	fields := strings.Fields(src)

	switch kind {
	case catalog.KindRoleGrant:
		// "ROLENAME -> GRANTEE"
		if idx := indexOf(fields, "->"); idx > 0 && idx < len(fields)-1 {
			return resources.Resource{
				Kind:  kind,
				Attrs: &resources.RoleGrant{Role: strings.Join(fields[:idx], " "), To: strings.Join(fields[idx+1:], " ")},
			}, nil
		}

		return resources.Resource{}, snowerrors.NewInvalidResourceError(string(kind), fmt.Sprintf("cannot parse role grant short-form %q", src))

	case catalog.KindGrant:
		// "GRANT priv ON on_type on_name TO grantee"
		upper := strings.ToUpper(src)
		if !strings.HasPrefix(upper, "GRANT ") {
			return resources.Resource{}, snowerrors.NewInvalidResourceError(string(kind), fmt.Sprintf("cannot parse grant short-form %q", src))
		}

		onIdx := indexOfFold(fields, "ON")
		toIdx := indexOfFold(fields, "TO")

		if onIdx < 2 || toIdx < onIdx+2 || toIdx >= len(fields)-1 {
			return resources.Resource{}, snowerrors.NewInvalidResourceError(string(kind), fmt.Sprintf("cannot parse grant short-form %q", src))
		}

		priv := strings.Join(fields[1:onIdx], " ")
		onType := fields[onIdx+1]
		onName := strings.Join(fields[onIdx+2:toIdx], " ")
		to := strings.Join(fields[toIdx+1:], " ")

		return resources.Resource{
			Kind: kind,
			Attrs: &resources.Grant{
				Priv:   priv,
				OnType: onType,
				On:     onName,
				To:     to,
			},
		}, nil

	default:
		return resources.Resource{}, snowerrors.NewInvalidResourceError(string(kind), "string-form resource entries are only supported for grants and role grants")
	}
}

func indexOf(fields []string, tok string) int {
	for i, f := range fields {
		if f == tok {
			return i
		}
	}

	return -1
}

func indexOfFold(fields []string, tok string) int {
	for i, f := range fields {
		if strings.EqualFold(f, tok) {
			return i
		}
	}

	return -1
}
