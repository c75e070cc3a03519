package state

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/pkg/session"
)

// buildFetcherTables builds the explicit kind->FetchFunc/ListFunc
// dispatch tables at construction time — no reflection, per the same
// explicit-dispatch style the catalog's PolymorphicResolver uses
// (spec §9, SPEC_FULL.md §8 "Per-kind fetchers are an explicit table").
func buildFetcherTables(r *Reader) (map[catalog.Kind]FetchFunc, map[catalog.Kind]ListFunc) {
	fetchers := map[catalog.Kind]FetchFunc{
		catalog.KindDatabase:  genericFetch(r, catalog.KindDatabase, "DATABASE"),
		catalog.KindSchema:    genericFetch(r, catalog.KindSchema, "SCHEMA"),
		catalog.KindWarehouse: genericFetch(r, catalog.KindWarehouse, "WAREHOUSE"),
		catalog.KindRole:      genericFetch(r, catalog.KindRole, "ROLE"),
		catalog.KindTable:     genericFetch(r, catalog.KindTable, "TABLE"),
		catalog.KindView:      genericFetch(r, catalog.KindView, "VIEW"),
		catalog.KindGrant:     r.fetchGrant,
		catalog.KindRoleGrant: r.fetchRoleGrant,
	}

	listers := map[catalog.Kind]ListFunc{
		catalog.KindDatabase:  genericList(r, catalog.KindDatabase, "DATABASES"),
		catalog.KindSchema:    genericList(r, catalog.KindSchema, "SCHEMAS"),
		catalog.KindWarehouse: genericList(r, catalog.KindWarehouse, "WAREHOUSES"),
		catalog.KindRole:      genericList(r, catalog.KindRole, "ROLES"),
		catalog.KindTable:     genericList(r, catalog.KindTable, "TABLES"),
		catalog.KindView:      genericList(r, catalog.KindView, "VIEWS"),
	}

	return fetchers, listers
}

// genericFetch builds a FetchFunc around `SHOW <plural> LIKE 'name'`,
// followed by `SHOW PARAMETERS` whenever needsParameters reports the
// kind needs it. That decision is made per kind (and, for schemas, per
// marked database); the desired spec's own attributes are not consulted.
func genericFetch(r *Reader, kind catalog.Kind, showNoun string) FetchFunc {
	return func(ctx context.Context, sess session.Session, urn identifier.URN) (Spec, bool, error) {
		stmt := fmt.Sprintf("SHOW %sS LIKE %s%s", showNoun, sqlLiteral(urn.FQN.Name.Raw), containerClause(showNoun, urn))

		rows, err := sess.Execute(ctx, stmt)
		if err != nil {
			return nil, false, fmt.Errorf("state: %s: %w", stmt, err)
		}

		row := matchByName(rows, urn.FQN.Name)
		if row == nil {
			return nil, false, nil
		}

		spec := Spec{}
		for k, v := range row {
			spec[strings.ToLower(k)] = v
		}

		if r.needsParameters(kind, urn) {
			paramStmt := fmt.Sprintf("SHOW PARAMETERS IN %s %s", showNoun, urn.FQN.Render())

			paramRows, err := sess.Execute(ctx, paramStmt)
			if err != nil {
				return nil, false, fmt.Errorf("state: %s: %w", paramStmt, err)
			}

			for _, pr := range paramRows {
				name, _ := pr["key"].(string)
				if name == "" {
					continue
				}

				spec[strings.ToLower(name)] = pr["value"]
			}
		}

		return spec, true, nil
	}
}

// needsParameters reports whether kind's SHOW PARAMETERS round-trip is
// worth issuing: schemas inheriting from a manifest-declared database
// always need it (parameter inheritance, spec §4.5); databases and
// warehouses have parameter-backed attributes by construction.
func (r *Reader) needsParameters(kind catalog.Kind, urn identifier.URN) bool {
	switch kind {
	case catalog.KindDatabase, catalog.KindWarehouse:
		return true
	case catalog.KindSchema:
		return urn.FQN.Name.Render() == "PUBLIC" && r.wantsParameters(urn.FQN.Database.Raw)
	default:
		return false
	}
}

func genericList(r *Reader, kind catalog.Kind, showNoun string) ListFunc {
	return func(ctx context.Context, sess session.Session, root ScopeRoot) ([]identifier.URN, error) {
		stmt := "SHOW " + showNoun + listScopeClause(showNoun, root)

		rows, err := sess.Execute(ctx, stmt)
		if err != nil {
			return nil, fmt.Errorf("state: %s: %w", stmt, err)
		}

		urns := make([]identifier.URN, 0, len(rows))

		for _, row := range rows {
			name, _ := row["name"].(string)
			if name == "" {
				continue
			}

			fqn := identifier.FQN{Name: identifier.NewName(name, false)}
			if root.Database != nil && kind != catalog.KindDatabase {
				fqn.Database = *root.Database
			}

			if root.Schema != nil && (kind == catalog.KindTable || kind == catalog.KindView) {
				fqn.Schema = *root.Schema
			}

			urns = append(urns, identifier.URN{Org: root.Org, AccountLocator: root.AccountLocator, Kind: string(kind), FQN: fqn})
		}

		return urns, nil
	}
}

func containerClause(showNoun string, urn identifier.URN) string {
	switch showNoun {
	case "TABLE", "VIEW":
		return fmt.Sprintf(" IN SCHEMA %s.%s", urn.FQN.Database.Render(), urn.FQN.Schema.Render())
	case "SCHEMA":
		return fmt.Sprintf(" IN DATABASE %s", urn.FQN.Database.Render())
	default:
		return " IN ACCOUNT"
	}
}

func listScopeClause(showNoun string, root ScopeRoot) string {
	switch showNoun {
	case "TABLES", "VIEWS":
		if root.Database != nil && root.Schema != nil {
			return fmt.Sprintf(" IN SCHEMA %s.%s", root.Database.Render(), root.Schema.Render())
		}

		return ""
	case "SCHEMAS":
		if root.Database != nil {
			return fmt.Sprintf(" IN DATABASE %s", root.Database.Render())
		}

		return " IN ACCOUNT"
	default:
		return " IN ACCOUNT"
	}
}

func matchByName(rows []session.Row, want identifier.Name) session.Row {
	for _, row := range rows {
		name, _ := row["name"].(string)
		if name == "" {
			continue
		}

		if identifier.NewName(name, false).Equal(want) {
			return row
		}
	}

	return nil
}

func sqlLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// fetchGrant serves a single grant fetch, preferring the bulk
// ACCOUNT_USAGE path (populated once per session and reused) and
// falling back to a per-object SHOW GRANTS when the bulk path is
// unavailable or has already failed once this session (spec §4.5,
// SPEC_FULL.md §12 "sticky... never reset").
func (r *Reader) fetchGrant(ctx context.Context, sess session.Session, urn identifier.URN) (Spec, bool, error) {
	if r.bulkGrantsUsable() {
		if spec, found, ok := r.lookupBulkGrant(ctx, sess, urn); ok {
			return spec, found, nil
		}
	}

	stmt := fmt.Sprintf("SHOW GRANTS ON %s %s", grantOnKeyword(urn), urn.FQN.Render())

	rows, err := sess.Execute(ctx, stmt)
	if err != nil {
		return nil, false, fmt.Errorf("state: %s: %w", stmt, err)
	}

	if len(rows) == 0 {
		return nil, false, nil
	}

	return normalizeGrantRows(rows), true, nil
}

func (r *Reader) fetchRoleGrant(ctx context.Context, sess session.Session, urn identifier.URN) (Spec, bool, error) {
	if r.bulkGrantsUsable() {
		if spec, found, ok := r.lookupBulkRoleGrant(ctx, sess, urn); ok {
			return spec, found, nil
		}
	}

	stmt := fmt.Sprintf("SHOW GRANTS OF ROLE %s", urn.FQN.Render())

	rows, err := sess.Execute(ctx, stmt)
	if err != nil {
		return nil, false, fmt.Errorf("state: %s: %w", stmt, err)
	}

	if len(rows) == 0 {
		return nil, false, nil
	}

	return normalizeGrantRows(rows), true, nil
}

func grantOnKeyword(urn identifier.URN) string {
	switch catalog.Kind(urn.Kind) {
	case catalog.KindDatabase:
		return "DATABASE"
	case catalog.KindSchema:
		return "SCHEMA"
	case catalog.KindWarehouse:
		return "WAREHOUSE"
	default:
		return "TABLE"
	}
}

// normalizeGrantRows collapses the row-per-privilege shape both SHOW
// GRANTS and the ACCOUNT_USAGE bulk path return into one flat Spec per
// grant target, with "priv" as the deduped set of individual
// privileges actually held live. Snowflake never reports a bare ALL
// row — GRANT ALL is always unpacked into one row per privilege — so
// this is what the ALL-privilege expansion law (spec §4.6 step 3)
// needs on the live side to compare against a desired ALL grant.
func normalizeGrantRows(rows []session.Row) Spec {
	if len(rows) == 0 {
		return Spec{}
	}

	seen := make(map[string]bool, len(rows))

	var privs []string

	for _, row := range rows {
		p, _ := row["privilege"].(string)
		if p == "" || seen[p] {
			continue
		}

		seen[p] = true
		privs = append(privs, strings.ToUpper(p))
	}

	sort.Strings(privs)

	spec := Spec{"priv": privs}

	for k, v := range rows[0] {
		lk := strings.ToLower(k)
		if lk == "privilege" {
			continue
		}

		spec[lk] = v
	}

	return spec
}

// bulkGrantsUsable reports whether the ACCOUNT_USAGE bulk path should
// still be attempted: sticky once it has failed, per session.
func (r *Reader) bulkGrantsUsable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return !r.accountUsageUnavailable
}

func (r *Reader) markAccountUsageUnavailable() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.accountUsageUnavailable = true

	r.logger.Warn("ACCOUNT_USAGE query failed - falling back to SHOW queries for this session")
}

// lookupBulkGrant services a grant fetch from the cached, normalized
// ACCOUNT_USAGE.GRANTS_TO_ROLES result set, populating it on first use.
// ok=false means the bulk path itself failed (caller should fall back);
// found indicates whether the specific grant was present.
func (r *Reader) lookupBulkGrant(ctx context.Context, sess session.Session, urn identifier.URN) (spec Spec, found bool, ok bool) {
	all, err := r.bulkGrantsToRoles(ctx, sess)
	if err != nil {
		r.markAccountUsageUnavailable()
		return nil, false, false
	}

	want := identifier.NewName(urn.FQN.Name.Raw, false)

	var matches []session.Row

	for _, row := range all {
		grantee, _ := row["grantee_name"].(string)
		if identifier.NewName(grantee, false).Equal(want) {
			matches = append(matches, row)
		}
	}

	if len(matches) == 0 {
		return nil, false, true
	}

	return normalizeGrantRows(matches), true, true
}

func (r *Reader) lookupBulkRoleGrant(ctx context.Context, sess session.Session, urn identifier.URN) (spec Spec, found bool, ok bool) {
	all, err := r.bulkGrantsToUsers(ctx, sess)
	if err != nil {
		r.markAccountUsageUnavailable()
		return nil, false, false
	}

	want := identifier.NewName(urn.FQN.Name.Raw, false)

	var matches []session.Row

	for _, row := range all {
		role, _ := row["role"].(string)
		if identifier.NewName(role, false).Equal(want) {
			matches = append(matches, row)
		}
	}

	if len(matches) == 0 {
		return nil, false, true
	}

	return normalizeGrantRows(matches), true, true
}

// bulkGrantsToRoles and bulkGrantsToUsers issue the two one-shot
// ACCOUNT_USAGE queries the spec calls for (one for all grants, one
// for role-to-user grants), caching the raw result so repeated grant
// fetches within the session never re-issue them (spec §4.5 "Bulk
// audit path").
func (r *Reader) bulkGrantsToRoles(ctx context.Context, sess session.Session) ([]session.Row, error) {
	const cacheKey = "bulk:grants_to_roles"

	if cached, ok, _ := r.cache.Get(ctx, r.sessionID, sess.Role(), cacheKey); ok {
		return cached.([]session.Row), nil
	}

	stmt, _, err := squirrel.Select("grantee_name", "privilege", "granted_on", "name", "granted_to").
		From(`"SNOWFLAKE"."ACCOUNT_USAGE"."GRANTS_TO_ROLES"`).
		Where(squirrel.Eq{"deleted_on": nil}).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := sess.Execute(ctx, stmt)
	if err != nil {
		return nil, err
	}

	_ = r.cache.Set(ctx, r.sessionID, sess.Role(), cacheKey, rows)

	return rows, nil
}

func (r *Reader) bulkGrantsToUsers(ctx context.Context, sess session.Session) ([]session.Row, error) {
	const cacheKey = "bulk:grants_to_users"

	if cached, ok, _ := r.cache.Get(ctx, r.sessionID, sess.Role(), cacheKey); ok {
		return cached.([]session.Row), nil
	}

	stmt, _, err := squirrel.Select("role", "grantee_name", "granted_by").
		From(`"SNOWFLAKE"."ACCOUNT_USAGE"."GRANTS_TO_USERS"`).
		Where(squirrel.Eq{"deleted_on": nil}).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := sess.Execute(ctx, stmt)
	if err != nil {
		return nil, err
	}

	_ = r.cache.Set(ctx, r.sessionID, sess.Role(), cacheKey, rows)

	return rows, nil
}
