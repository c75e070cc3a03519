package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/resolver"
	"github.com/snowcapio/snowcap/internal/scheduler"
	"github.com/snowcapio/snowcap/pkg/session"
)

// trackedAccountPrivileges are the only account-level privileges the
// scheduler ever needs a holder role for (spec §4.7 step 1's
// MANAGE GRANTS fallback for Transfer, plus APPLY TAG for tag-bearing
// creates), grounded on _get_account_privilege_roles's identical filter.
var trackedAccountPrivileges = map[string]bool{
	"MANAGE GRANTS": true,
	"APPLY TAG":     true,
}

// FetchSessionContext reads the few session-scoped facts the resolver
// and scheduler need directly from the warehouse: account identity,
// edition, available roles, and which roles hold which tracked
// account-level privileges (grounded on data_provider.py's fetch_session
// and _get_account_privilege_roles). Callers needing the rest of the
// original's SessionContext (warehouse, database, secondary_roles, ...)
// read those straight off sess; the engine only needs this slice.
func FetchSessionContext(ctx context.Context, sess session.Session) (resolver.SessionContext, scheduler.RoleInventory, error) {
	rows, err := sess.Execute(ctx, `
		SELECT
			CURRENT_ACCOUNT_NAME() AS ACCOUNT,
			CURRENT_ACCOUNT() AS ACCOUNT_LOCATOR,
			CURRENT_AVAILABLE_ROLES() AS AVAILABLE_ROLES,
			SYSTEM$BOOTSTRAP_DATA_REQUEST('ACCOUNT') AS ACCOUNT_DATA
	`)
	if err != nil {
		return resolver.SessionContext{}, scheduler.RoleInventory{}, fmt.Errorf("fetching session facts: %w", err)
	}

	if len(rows) == 0 {
		return resolver.SessionContext{}, scheduler.RoleInventory{}, fmt.Errorf("fetching session facts: no rows returned")
	}

	row := rows[0]

	org, _ := row["ACCOUNT"].(string)
	locator, _ := row["ACCOUNT_LOCATOR"].(string)

	var availableRoles []string
	if raw, ok := row["AVAILABLE_ROLES"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &availableRoles); err != nil {
			return resolver.SessionContext{}, scheduler.RoleInventory{}, fmt.Errorf("parsing available roles: %w", err)
		}
	}

	edition := catalog.EditionStandard

	if raw, ok := row["ACCOUNT_DATA"].(string); ok && raw != "" {
		var payload struct {
			AccountInfo struct {
				ServiceLevelName string `json:"serviceLevelName"`
			} `json:"accountInfo"`
		}

		if err := json.Unmarshal([]byte(raw), &payload); err == nil {
			edition = catalog.ParseEdition(payload.AccountInfo.ServiceLevelName)
		}
	}

	holders, err := fetchAccountPrivilegeRoles(ctx, sess)
	if err != nil {
		return resolver.SessionContext{}, scheduler.RoleInventory{}, err
	}

	sessCtx := resolver.SessionContext{Org: org, AccountLocator: locator, Edition: edition}
	inv := scheduler.RoleInventory{Available: availableRoles, PrivilegeHolders: holders}

	return sessCtx, inv, nil
}

// fetchAccountPrivilegeRoles mirrors _get_account_privilege_roles: scan
// SHOW GRANTS ON ACCOUNT, skip system grants (granted_by empty), and
// index the tracked privileges by holder role.
func fetchAccountPrivilegeRoles(ctx context.Context, sess session.Session) (map[string][]string, error) {
	rows, err := sess.Execute(ctx, "SHOW GRANTS ON ACCOUNT")
	if err != nil {
		return nil, fmt.Errorf("fetching account grants: %w", err)
	}

	holders := make(map[string][]string)

	for _, row := range rows {
		grantedBy, _ := row["granted_by"].(string)
		if grantedBy == "" {
			continue
		}

		priv, _ := row["privilege"].(string)
		if !trackedAccountPrivileges[priv] {
			continue
		}

		role, _ := row["grantee_name"].(string)
		holders[priv] = append(holders[priv], role)
	}

	return holders, nil
}
