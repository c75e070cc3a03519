package renderer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/resources"
)

// SQLRenderer is the reference Renderer: it drives each kind's DDL/DCL
// off the catalog's own attribute metadata rather than a bespoke
// template per kind, so a newly-registered fetchable attribute renders
// without any change here. Object shapes the attribute loop can't
// express (columns, view/task bodies, masking-policy bodies, grants)
// get a dedicated case.
type SQLRenderer struct {
	Registry *catalog.Registry
}

func NewSQLRenderer(reg *catalog.Registry) *SQLRenderer {
	return &SQLRenderer{Registry: reg}
}

// objectKeyword is the DDL noun for a kind, where it differs from the
// kind tag read as a space-separated phrase.
var objectKeyword = map[catalog.Kind]string{
	catalog.KindDatabase:                "DATABASE",
	catalog.KindSchema:                  "SCHEMA",
	catalog.KindTable:                   "TABLE",
	catalog.KindView:                    "VIEW",
	catalog.KindWarehouse:               "WAREHOUSE",
	catalog.KindRole:                    "ROLE",
	catalog.KindDatabaseRole:            "DATABASE ROLE",
	catalog.KindUser:                    "USER",
	catalog.KindInternalStage:           "STAGE",
	catalog.KindExternalStage:           "STAGE",
	catalog.KindTask:                    "TASK",
	catalog.KindShare:                   "SHARE",
	catalog.KindStorageIntegration:      "STORAGE INTEGRATION",
	catalog.KindApiIntegration:          "API INTEGRATION",
	catalog.KindNotificationIntegration: "NOTIFICATION INTEGRATION",
	catalog.KindResourceMonitor:         "RESOURCE MONITOR",
	catalog.KindMaskingPolicy:           "MASKING POLICY",
}

// bareFlags are boolean attributes that render as a standalone keyword
// when true and are omitted entirely when false (spec-grounded on the
// original's FlagProp: TRANSIENT, SECURE, ...). Everything else renders
// as `KEY = TRUE|FALSE`.
var bareFlags = map[string]bool{
	"transient":               true,
	"secure":                  true,
	"change_tracking":         true,
	"enable_schema_evolution": true,
	"directory":               true,
	"managed_access":          true,
}

// flagOverride renders a bareFlag keyword other than the uppercased
// attribute name.
var flagOverride = map[string]string{
	"managed_access": "WITH MANAGED ACCESS",
}

// structuralFields are handled by a dedicated case per kind instead of
// the generic KEY = VALUE loop.
var structuralFields = map[string]bool{
	"columns": true,
	"as":      true,
	"body":    true,
}

func (r *SQLRenderer) Create(urn identifier.URN, kind catalog.Kind, attrs any) (string, error) {
	switch a := attrs.(type) {
	case *resources.Table:
		return renderCreateTable(urn, a), nil
	case *resources.View:
		return renderCreateView(urn, a), nil
	case *resources.Task:
		frags, err := r.fragments(catalog.KindTask, attrs, nil)
		if err != nil {
			return "", err
		}

		return renderCreateTask(urn, a, frags), nil
	case *resources.MaskingPolicy:
		return renderCreateMaskingPolicy(urn, a), nil
	case *resources.Grant:
		return renderGrant(a), nil
	case *resources.RoleGrant:
		return renderRoleGrant(a), nil
	}

	frags, err := r.fragments(kind, attrs, nil)
	if err != nil {
		return "", err
	}

	keyword, ok := objectKeyword[kind]
	if !ok {
		return "", fmt.Errorf("renderer: no CREATE statement shape registered for kind %q", kind)
	}

	stmt := "CREATE " + keyword + " " + urn.FQN.Render()
	if len(frags) > 0 {
		stmt += " " + strings.Join(frags, " ")
	}

	return stmt, nil
}

func (r *SQLRenderer) Update(urn identifier.URN, kind catalog.Kind, attrs any, fields []string) ([]string, error) {
	if len(fields) == 0 {
		return nil, nil
	}

	switch a := attrs.(type) {
	case *resources.View:
		if containsField(fields, "as") {
			return []string{"CREATE OR REPLACE " + strings.TrimPrefix(renderCreateView(urn, a), "CREATE ")}, nil
		}
	case *resources.Task:
		if containsField(fields, "as") {
			return []string{fmt.Sprintf("ALTER TASK %s MODIFY AS %s", urn.FQN.Render(), a.As)}, nil
		}
	case *resources.MaskingPolicy:
		if containsField(fields, "body") || containsField(fields, "return_type") {
			return []string{"CREATE OR REPLACE " + strings.TrimPrefix(renderCreateMaskingPolicy(urn, a), "CREATE ")}, nil
		}
	case *resources.Grant:
		return []string{renderGrant(a)}, nil
	}

	only := make(map[string]bool, len(fields))
	for _, f := range fields {
		only[f] = true
	}

	frags, err := r.fragments(kind, attrs, only)
	if err != nil {
		return nil, err
	}

	if len(frags) == 0 {
		return nil, nil
	}

	keyword, ok := objectKeyword[kind]
	if !ok {
		return nil, fmt.Errorf("renderer: no ALTER statement shape registered for kind %q", kind)
	}

	return []string{"ALTER " + keyword + " " + urn.FQN.Render() + " SET " + strings.Join(frags, ", ")}, nil
}

func (r *SQLRenderer) Transfer(urn identifier.URN, kind catalog.Kind, toOwner string) (string, error) {
	if kind == catalog.KindRoleGrant || kind == catalog.KindGrant {
		return "", fmt.Errorf("renderer: %q is not a transferable object", kind)
	}

	keyword, ok := objectKeyword[kind]
	if !ok {
		return "", fmt.Errorf("renderer: no GRANT OWNERSHIP shape registered for kind %q", kind)
	}

	return fmt.Sprintf("GRANT OWNERSHIP ON %s %s TO ROLE %s COPY CURRENT GRANTS", keyword, urn.FQN.Render(), toOwner), nil
}

func (r *SQLRenderer) Drop(urn identifier.URN, kind catalog.Kind) (string, error) {
	if kind == catalog.KindRoleGrant {
		return "", fmt.Errorf("renderer: role_grant drops are rendered from its own params, not a bare URN")
	}

	if kind == catalog.KindGrant {
		return "", fmt.Errorf("renderer: grant drops are rendered from its own params, not a bare URN")
	}

	keyword, ok := objectKeyword[kind]
	if !ok {
		return "", fmt.Errorf("renderer: no DROP statement shape registered for kind %q", kind)
	}

	return "DROP " + keyword + " " + urn.FQN.Render(), nil
}

// DropGrant and DropRoleGrant render a REVOKE from the live Spec the
// planner diffed against, since a dropped grant/role_grant's identity
// lives entirely in its FQN.Params, not in a fetchable attribute
// record (spec §3.1 "non-object resources").
func DropGrant(priv, on, onType, to, toType string) string {
	return fmt.Sprintf("REVOKE %s ON %s %s FROM %s %s", priv, onType, on, toType, to)
}

func DropRoleGrant(role, to, toType string) string {
	return fmt.Sprintf("REVOKE ROLE %s FROM %s %s", role, toType, to)
}

func renderGrant(g *resources.Grant) string {
	stmt := fmt.Sprintf("GRANT %s ON %s %s TO %s %s", g.Priv, g.OnType, g.On, g.ToType, g.To)
	if g.GrantOption {
		stmt += " WITH GRANT OPTION"
	}

	return stmt
}

func renderRoleGrant(rg *resources.RoleGrant) string {
	return fmt.Sprintf("GRANT ROLE %s TO %s %s", rg.Role, rg.ToType, rg.To)
}

func renderCreateTable(urn identifier.URN, t *resources.Table) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		col := c.Name + " " + c.Type
		if !c.Nullable {
			col += " NOT NULL"
		}

		if c.Comment != nil {
			col += " COMMENT " + quote(*c.Comment)
		}

		cols[i] = col
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", urn.FQN.Render(), strings.Join(cols, ", "))

	if t.Transient {
		stmt = "CREATE TRANSIENT TABLE" + strings.TrimPrefix(stmt, "CREATE TABLE")
	}

	if len(t.ClusterBy) > 0 {
		stmt += " CLUSTER BY (" + strings.Join(t.ClusterBy, ", ") + ")"
	}

	if t.EnableSchemaEvolution {
		stmt += " ENABLE_SCHEMA_EVOLUTION = TRUE"
	}

	if t.ChangeTracking {
		stmt += " CHANGE_TRACKING = TRUE"
	}

	if t.Comment != nil {
		stmt += " COMMENT = " + quote(*t.Comment)
	}

	return stmt
}

func renderCreateView(urn identifier.URN, v *resources.View) string {
	stmt := "CREATE "
	if v.Secure {
		stmt += "SECURE "
	}

	stmt += "VIEW " + urn.FQN.Render()

	if len(v.Columns) > 0 {
		names := make([]string, len(v.Columns))
		for i, c := range v.Columns {
			names[i] = c.Name
		}

		stmt += " (" + strings.Join(names, ", ") + ")"
	}

	if v.ChangeTracking {
		stmt += " CHANGE_TRACKING = TRUE"
	}

	if v.Comment != nil {
		stmt += " COMMENT = " + quote(*v.Comment)
	}

	stmt += " AS " + v.As

	return stmt
}

func renderCreateTask(urn identifier.URN, t *resources.Task, frags []string) string {
	stmt := "CREATE TASK " + urn.FQN.Render()
	if len(frags) > 0 {
		stmt += " " + strings.Join(frags, " ")
	}

	stmt += " AS " + t.As

	return stmt
}

func renderCreateMaskingPolicy(urn identifier.URN, m *resources.MaskingPolicy) string {
	stmt := fmt.Sprintf("CREATE MASKING POLICY %s AS (VAL %s) RETURNS %s -> %s", urn.FQN.Render(), m.ReturnType, m.ReturnType, m.Body)
	if m.Comment != nil {
		stmt += " COMMENT = " + quote(*m.Comment)
	}

	return stmt
}

// fragments renders a kind's catalog-declared attributes (other than
// name/owner and the structural fields handled per-kind) as ordered
// `KEY = VALUE` / bare-flag clauses. only, when non-nil, restricts the
// result to the named fields (an Update's Delta).
func (r *SQLRenderer) fragments(kind catalog.Kind, attrs any, only map[string]bool) ([]string, error) {
	spec, err := r.Registry.Lookup(kind)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}

	m, err := attrsToMap(attrs)
	if err != nil {
		return nil, err
	}

	var frags []string

	for _, attr := range spec.Attributes {
		if attr.Name == "name" || attr.Name == "owner" || structuralFields[attr.Name] {
			continue
		}

		if only != nil && !only[attr.Name] {
			continue
		}

		v, present := m[attr.Name]
		if !present || v == nil {
			continue
		}

		frag, ok := renderFragment(attr.Name, v)
		if ok {
			frags = append(frags, frag)
		}
	}

	return frags, nil
}

func renderFragment(name string, v any) (string, bool) {
	keyword := strings.ToUpper(name)

	if b, ok := v.(bool); ok {
		if bareFlags[name] {
			if override, has := flagOverride[name]; has {
				if b {
					return override, true
				}

				return "", false
			}

			if b {
				return keyword, true
			}

			return "", false
		}

		return fmt.Sprintf("%s = %s", keyword, strings.ToUpper(strconv.FormatBool(b))), true
	}

	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return "", false
		}

		items := make([]string, len(t))
		for i, item := range t {
			items[i] = quote(fmt.Sprintf("%v", item))
		}

		return fmt.Sprintf("%s = (%s)", keyword, strings.Join(items, ", ")), true
	case int:
		return fmt.Sprintf("%s = %d", keyword, t), true
	case float64:
		return fmt.Sprintf("%s = %d", keyword, int(t)), true
	case string:
		return fmt.Sprintf("%s = %s", keyword, quote(t)), true
	default:
		return fmt.Sprintf("%s = %v", keyword, t), true
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func containsField(fields []string, name string) bool {
	i := sort.SearchStrings(fields, name)
	return i < len(fields) && fields[i] == name
}

// attrsToMap flattens a typed attribute record into a snake_case field
// map via the same marshal-then-unmarshal trick used by the manifest
// compiler and the planner's diff engine (internal/manifest/expand.go,
// internal/planner/diff.go).
func attrsToMap(attrs any) (map[string]any, error) {
	raw, err := yaml.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("renderer: marshaling attrs: %w", err)
	}

	var out map[string]any
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("renderer: unmarshaling attrs: %w", err)
	}

	return out, nil
}
