package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/snowcapio/snowcap/internal/cache"
	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/config"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/manifest"
	"github.com/snowcapio/snowcap/internal/planner"
	"github.com/snowcapio/snowcap/internal/resolver"
	"github.com/snowcapio/snowcap/internal/resources"
	"github.com/snowcapio/snowcap/internal/scheduler"
	"github.com/snowcapio/snowcap/pkg/session"
)

// fakeSession answers the two session-facts queries and every SHOW
// query the reader issues with empty results, recording every
// statement it's asked to run.
type fakeSession struct {
	role     string
	executed []string
}

func (s *fakeSession) Execute(_ context.Context, sql string) ([]session.Row, error) {
	s.executed = append(s.executed, sql)

	switch {
	case strings.Contains(sql, "CURRENT_AVAILABLE_ROLES"):
		return []session.Row{{
			"ACCOUNT":         "ORG",
			"ACCOUNT_LOCATOR": "AB12345",
			"AVAILABLE_ROLES": `["SYSADMIN","USERADMIN"]`,
			"ACCOUNT_DATA":    `{"accountInfo":{"serviceLevelName":"ENTERPRISE"}}`,
		}}, nil
	case strings.Contains(sql, "SHOW GRANTS ON ACCOUNT"):
		return []session.Row{
			{"granted_by": "SYSTEM", "privilege": "MANAGE GRANTS", "grantee_name": "SECURITYADMIN"},
			{"granted_by": "", "privilege": "MANAGE GRANTS", "grantee_name": "SHOULD_BE_SKIPPED"},
		}, nil
	default:
		return nil, nil
	}
}

func (s *fakeSession) Role() string                                    { return s.role }
func (s *fakeSession) User() string                                    { return "TEST_USER" }
func (s *fakeSession) Cursor(context.Context) (session.Session, error) { return s, nil }
func (s *fakeSession) Close() error                                    { return nil }

func TestFetchSessionContextParsesRolesEditionAndPrivilegeHolders(t *testing.T) {
	sess := &fakeSession{role: "SYSADMIN"}

	sessCtx, inv, err := FetchSessionContext(context.Background(), sess)
	if err != nil {
		t.Fatalf("FetchSessionContext: %v", err)
	}

	if sessCtx.Org != "ORG" || sessCtx.AccountLocator != "AB12345" {
		t.Errorf("unexpected session context: %+v", sessCtx)
	}

	if sessCtx.Edition != catalog.EditionEnterprise {
		t.Errorf("expected Enterprise edition, got %v", sessCtx.Edition)
	}

	if len(inv.Available) != 2 || inv.Available[0] != "SYSADMIN" {
		t.Errorf("unexpected available roles: %+v", inv.Available)
	}

	holders := inv.PrivilegeHolders["MANAGE GRANTS"]
	if len(holders) != 1 || holders[0] != "SECURITYADMIN" {
		t.Errorf("expected only the holder behind a non-system grant, got %+v", holders)
	}
}

func TestEngineApplyExecutesScheduledSteps(t *testing.T) {
	sess := &fakeSession{role: "SYSADMIN"}
	reg := catalog.DefaultRegistry()
	bp := &config.Blueprint{Scope: config.ScopeAccount, Threads: 1}

	e := New(Options{
		Blueprint: bp,
		Registry:  reg,
		Session:   sess,
		Cache:     cache.NewInMemory(),
		SessionID: "sess-1",
	})

	urn := identifier.URN{Org: "ORG", AccountLocator: "AB12345", Kind: string(catalog.KindDatabase), FQN: identifier.FQN{Name: identifier.NewName("ANALYTICS", false)}}
	actions := []planner.Action{
		{Kind: planner.Create, URN: urn, ResourceKind: catalog.KindDatabase, After: &resources.Resource{Kind: catalog.KindDatabase, FQN: urn.FQN, Attrs: &resources.Database{Name: "ANALYTICS"}}},
	}

	inv := scheduler.RoleInventory{Available: []string{"SYSADMIN"}}

	if err := e.Apply(context.Background(), actions, inv, catalog.EditionEnterprise); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var sawCreate bool

	for _, sql := range sess.executed {
		if strings.HasPrefix(sql, "CREATE DATABASE") {
			sawCreate = true
		}
	}

	if !sawCreate {
		t.Errorf("expected a CREATE DATABASE statement among %+v", sess.executed)
	}
}

func TestEngineRunSkipsApplyOnDryRun(t *testing.T) {
	sess := &fakeSession{role: "SYSADMIN"}
	reg := catalog.DefaultRegistry()
	bp := &config.Blueprint{Scope: config.ScopeAccount, DryRun: true, Threads: 1}

	e := New(Options{
		Blueprint: bp,
		Registry:  reg,
		Session:   sess,
		Cache:     cache.NewInMemory(),
		SessionID: "sess-1",
	})

	sessCtx := resolver.SessionContext{Org: "ORG", AccountLocator: "AB12345", Edition: catalog.EditionEnterprise}
	inv := scheduler.RoleInventory{Available: []string{"SYSADMIN"}}

	actions, err := e.Run(context.Background(), []manifest.RawFile{}, sessCtx, inv)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(actions) != 0 {
		t.Errorf("expected no actions against an empty manifest, got %+v", actions)
	}

	for _, sql := range sess.executed {
		if strings.HasPrefix(sql, "CREATE ") || strings.HasPrefix(sql, "USE ROLE ") {
			t.Errorf("dry run must never execute mutating or role statements, got %q", sql)
		}
	}
}
