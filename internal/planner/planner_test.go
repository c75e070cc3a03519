package planner

import (
	"testing"

	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/config"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/manifest"
	"github.com/snowcapio/snowcap/internal/resolver"
	"github.com/snowcapio/snowcap/internal/resources"
	"github.com/snowcapio/snowcap/internal/state"
)

func testSession() resolver.SessionContext {
	return resolver.SessionContext{Org: "ORG", AccountLocator: "AB12345", Edition: catalog.EditionEnterprise}
}

func indexOf(t *testing.T, actions []Action, kind Kind, fqnName string) int {
	t.Helper()

	for i, a := range actions {
		if a.Kind == kind && a.URN.FQN.Name.Raw == fqnName {
			return i
		}
	}

	t.Fatalf("no %s action found for %q among %d actions", kind, fqnName, len(actions))

	return -1
}

// The implicit PUBLIC schema must never be created explicitly (spec
// §3.2, §8.3 scenario 1): against empty live state, a single database
// in the manifest plans only a database Create.
func TestPlanNeverCreatesTheImplicitPublicSchema(t *testing.T) {
	dbName := identifier.NewName("ANALYTICS", false)
	bp := &config.Blueprint{Scope: config.ScopeDatabase, Database: &dbName}

	compiled := &manifest.Manifest{
		Resources: []resources.Resource{
			{Kind: catalog.KindDatabase, Attrs: &resources.Database{Name: "ANALYTICS"}},
		},
	}

	reg := catalog.DefaultRegistry()

	desired, err := resolver.Resolve(compiled, bp, testSession(), reg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	live := &state.Snapshot{Objects: map[identifier.URN]state.Spec{}}

	actions, err := Plan(desired, live, bp, reg)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	indexOf(t, actions, Create, "ANALYTICS")

	for _, a := range actions {
		if a.Kind == Create && a.URN.FQN.Name.Raw == "PUBLIC" {
			t.Fatalf("expected no Create action for the implicit PUBLIC schema, got %+v", a)
		}
	}

	if len(actions) != 1 {
		t.Errorf("expected exactly one action (database create), got %d: %+v", len(actions), actions)
	}
}

// Once the PUBLIC schema actually exists in live state, it behaves
// like any other resource: a drifted field on it still produces an
// Update.
func TestPlanUpdatesTheImplicitPublicSchemaWhenItDriftsInLive(t *testing.T) {
	dbName := identifier.NewName("ANALYTICS", false)
	bp := &config.Blueprint{Scope: config.ScopeDatabase, Database: &dbName}

	retention := 3

	compiled := &manifest.Manifest{
		Resources: []resources.Resource{
			{Kind: catalog.KindDatabase, Attrs: &resources.Database{Name: "ANALYTICS", DataRetentionTimeInDays: &retention}},
		},
	}

	reg := catalog.DefaultRegistry()

	desired, err := resolver.Resolve(compiled, bp, testSession(), reg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	dbURN := identifier.URN{Org: "ORG", AccountLocator: "AB12345", Kind: string(catalog.KindDatabase),
		FQN: identifier.FQN{Name: identifier.NewName("ANALYTICS", false)}}
	schemaURN := identifier.URN{Org: "ORG", AccountLocator: "AB12345", Kind: string(catalog.KindSchema),
		FQN: identifier.FQN{Database: identifier.NewName("ANALYTICS", false), Name: identifier.NewName("PUBLIC", false)}}

	live := &state.Snapshot{Objects: map[identifier.URN]state.Spec{
		dbURN:     {"name": "ANALYTICS", "data_retention_time_in_days": 3},
		schemaURN: {"name": "PUBLIC", "data_retention_time_in_days": 1},
	}}

	actions, err := Plan(desired, live, bp, reg)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	updateIdx := indexOf(t, actions, Update, "PUBLIC")

	if len(actions[updateIdx].Delta) == 0 {
		t.Errorf("expected a non-empty delta for the drifted implicit schema")
	}
}

func TestPlanOrdersSchemaDropBeforeDatabaseDrop(t *testing.T) {
	dbName := identifier.NewName("ANALYTICS", false)
	bp := &config.Blueprint{Scope: config.ScopeDatabase, Database: &dbName, SyncResources: []string{"database", "schema"}}

	compiled := &manifest.Manifest{} // nothing desired: everything live is a drop candidate

	reg := catalog.DefaultRegistry()

	desired, err := resolver.Resolve(compiled, bp, testSession(), reg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	dbURN := identifier.URN{Org: "ORG", AccountLocator: "AB12345", Kind: string(catalog.KindDatabase),
		FQN: identifier.FQN{Name: identifier.NewName("ANALYTICS", false)}}
	schemaURN := identifier.URN{Org: "ORG", AccountLocator: "AB12345", Kind: string(catalog.KindSchema),
		FQN: identifier.FQN{Database: identifier.NewName("ANALYTICS", false), Name: identifier.NewName("PUBLIC", false)}}

	live := &state.Snapshot{Objects: map[identifier.URN]state.Spec{
		dbURN:     {"name": "ANALYTICS"},
		schemaURN: {"name": "PUBLIC"},
	}}

	actions, err := Plan(desired, live, bp, reg)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	dbIdx := indexOf(t, actions, Drop, "ANALYTICS")
	schemaIdx := indexOf(t, actions, Drop, "PUBLIC")

	if !(schemaIdx < dbIdx) {
		t.Errorf("expected schema drop (%d) before database drop (%d)", schemaIdx, dbIdx)
	}
}

func TestPlanRejectsDesiredResourceOutsideDeclaredScope(t *testing.T) {
	dbName := identifier.NewName("ANALYTICS", false)
	bp := &config.Blueprint{Scope: config.ScopeDatabase, Database: &dbName}

	reg := catalog.DefaultRegistry()

	// Built directly rather than through Resolve: the resolver's own
	// container injection (nameFQNs) would never let a schema drift to
	// another database, so this exercises the planner's independent
	// scope check rather than relying on the resolver to prevent it.
	otherSchemaURN := identifier.URN{Org: "ORG", AccountLocator: "AB12345", Kind: string(catalog.KindSchema),
		FQN: identifier.FQN{Database: identifier.NewName("OTHER", false), Name: identifier.NewName("PUBLIC", false)}}

	desired := &resolver.ResolvedManifest{
		Scope:    config.ScopeDatabase,
		Database: &dbName,
		Resources: map[identifier.URN]resources.Resource{
			otherSchemaURN: {Kind: catalog.KindSchema, FQN: otherSchemaURN.FQN, Attrs: &resources.Schema{Name: "PUBLIC"}},
		},
		Order: []identifier.URN{otherSchemaURN},
	}

	live := &state.Snapshot{Objects: map[identifier.URN]state.Spec{}}

	_, err := Plan(desired, live, bp, reg)
	if err == nil {
		t.Fatal("expected a scope violation error")
	}
}

// A desired `priv: ALL` grant must expand to the granted-on kind's
// full canonical privilege set before comparison, so it plans as a
// no-op against live state already holding that full individual set
// (spec §4.6 step 3, §8.2 Law "ALL-privilege expansion").
func TestPlanExpandsAllPrivGrantAgainstLiveIndividualPrivs(t *testing.T) {
	reg := catalog.DefaultRegistry()

	grantURN := identifier.URN{Org: "ORG", AccountLocator: "AB12345", Kind: string(catalog.KindGrant),
		FQN: identifier.FQN{Params: []identifier.Param{{Key: "on", Value: "MYDB"}, {Key: "to", Value: "ROLE1"}}}}

	desired := &resolver.ResolvedManifest{
		Scope: config.ScopeAccount,
		Resources: map[identifier.URN]resources.Resource{
			grantURN: {Kind: catalog.KindGrant, FQN: grantURN.FQN, Attrs: &resources.Grant{
				Priv: "ALL", On: "MYDB", OnType: "database", To: "ROLE1", ToType: "ROLE",
			}},
		},
		Order: []identifier.URN{grantURN},
	}

	live := &state.Snapshot{Objects: map[identifier.URN]state.Spec{
		grantURN: {
			"priv": []string{"CREATE DATABASE", "USAGE", "MONITOR", "OWNERSHIP"},
			"on": "MYDB", "on_type": "database", "to": "ROLE1", "to_type": "ROLE",
		},
	}}

	bp := &config.Blueprint{Scope: config.ScopeAccount}

	actions, err := Plan(desired, live, bp, reg)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if len(actions) != 0 {
		t.Errorf("expected no actions for an ALL grant matching the full live privilege set, got %+v", actions)
	}
}

// Conversely, a live privilege set narrower than the canonical ALL
// expansion still drifts: ALL-expansion must not mask a genuine gap.
func TestPlanStillDetectsDriftUnderAllPrivExpansion(t *testing.T) {
	reg := catalog.DefaultRegistry()

	grantURN := identifier.URN{Org: "ORG", AccountLocator: "AB12345", Kind: string(catalog.KindGrant),
		FQN: identifier.FQN{Params: []identifier.Param{{Key: "on", Value: "MYDB"}, {Key: "to", Value: "ROLE1"}}}}

	desired := &resolver.ResolvedManifest{
		Scope: config.ScopeAccount,
		Resources: map[identifier.URN]resources.Resource{
			grantURN: {Kind: catalog.KindGrant, FQN: grantURN.FQN, Attrs: &resources.Grant{
				Priv: "ALL", On: "MYDB", OnType: "database", To: "ROLE1", ToType: "ROLE",
			}},
		},
		Order: []identifier.URN{grantURN},
	}

	live := &state.Snapshot{Objects: map[identifier.URN]state.Spec{
		grantURN: {
			"priv": []string{"USAGE"},
			"on": "MYDB", "on_type": "database", "to": "ROLE1", "to_type": "ROLE",
		},
	}}

	bp := &config.Blueprint{Scope: config.ScopeAccount}

	actions, err := Plan(desired, live, bp, reg)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	updateIdx := -1

	for i, a := range actions {
		if a.Kind == Update && a.URN == grantURN {
			updateIdx = i
		}
	}

	if updateIdx < 0 {
		t.Fatalf("expected an Update action for the under-granted ALL grant, got %+v", actions)
	}

	if len(actions[updateIdx].Delta) == 0 || actions[updateIdx].Delta[0] != "priv" {
		t.Errorf("expected delta to name priv, got %+v", actions[updateIdx].Delta)
	}
}

func TestPlanDetectsDependencyCycle(t *testing.T) {
	reg := catalog.DefaultRegistry()

	roleAURN := identifier.URN{Org: "ORG", AccountLocator: "AB12345", Kind: string(catalog.KindRole),
		FQN: identifier.FQN{Name: identifier.NewName("ROLE_A", false)}}
	roleBURN := identifier.URN{Org: "ORG", AccountLocator: "AB12345", Kind: string(catalog.KindRole),
		FQN: identifier.FQN{Name: identifier.NewName("ROLE_B", false)}}

	desired := &resolver.ResolvedManifest{
		Scope: config.ScopeAccount,
		Resources: map[identifier.URN]resources.Resource{
			roleAURN: {Kind: catalog.KindRole, FQN: roleAURN.FQN, Attrs: &resources.Role{Name: "ROLE_A"}, Requires: []identifier.URN{roleBURN}},
			roleBURN: {Kind: catalog.KindRole, FQN: roleBURN.FQN, Attrs: &resources.Role{Name: "ROLE_B"}, Requires: []identifier.URN{roleAURN}},
		},
		Order: []identifier.URN{roleAURN, roleBURN},
	}

	live := &state.Snapshot{Objects: map[identifier.URN]state.Spec{}}

	bp := &config.Blueprint{Scope: config.ScopeAccount}

	_, err := Plan(desired, live, bp, reg)
	if err == nil {
		t.Fatal("expected a dependency cycle error")
	}
}
