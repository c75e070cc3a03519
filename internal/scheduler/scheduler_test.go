package scheduler

import (
	"strings"
	"testing"

	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/planner"
	"github.com/snowcapio/snowcap/internal/resources"
	"github.com/snowcapio/snowcap/internal/state"
	"github.com/snowcapio/snowcap/pkg/renderer"
)

func testURN(kind catalog.Kind, name string) identifier.URN {
	return identifier.URN{Org: "ORG", AccountLocator: "AB12345", Kind: string(kind), FQN: identifier.FQN{Name: identifier.NewName(name, false)}}
}

func TestScheduleAssignsDefaultOwnerWhenNoHolderAvailable(t *testing.T) {
	reg := catalog.DefaultRegistry()
	rend := renderer.NewSQLRenderer(reg)

	urn := testURN(catalog.KindDatabase, "ANALYTICS")
	actions := []planner.Action{
		{Kind: planner.Create, URN: urn, ResourceKind: catalog.KindDatabase, After: &resources.Resource{Kind: catalog.KindDatabase, FQN: urn.FQN, Attrs: &resources.Database{Name: "ANALYTICS"}}},
	}

	inv := RoleInventory{Available: []string{"SYSADMIN"}}

	steps, err := Schedule(actions, reg, inv, rend, catalog.EditionEnterprise)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	var sawUseRole bool

	for _, s := range steps {
		if s.SQL == "USE ROLE SYSADMIN" {
			sawUseRole = true
		}
	}

	if !sawUseRole {
		t.Errorf("expected a USE ROLE SYSADMIN step among %+v", steps)
	}
}

func TestScheduleRejectsMissingPrivilege(t *testing.T) {
	reg := catalog.DefaultRegistry()
	rend := renderer.NewSQLRenderer(reg)

	urn := testURN(catalog.KindDatabase, "ANALYTICS")
	actions := []planner.Action{
		{Kind: planner.Create, URN: urn, ResourceKind: catalog.KindDatabase, After: &resources.Resource{Kind: catalog.KindDatabase, FQN: urn.FQN, Attrs: &resources.Database{Name: "ANALYTICS"}}},
	}

	inv := RoleInventory{Available: []string{"PUBLIC"}}

	_, err := Schedule(actions, reg, inv, rend, catalog.EditionEnterprise)
	if err == nil {
		t.Fatal("expected a missing-privilege error")
	}
}

func TestScheduleEmitsOneUseRolePerRoleChange(t *testing.T) {
	reg := catalog.DefaultRegistry()
	rend := renderer.NewSQLRenderer(reg)

	dbURN := testURN(catalog.KindDatabase, "ANALYTICS")
	roleURN := testURN(catalog.KindRole, "REPORTER")

	actions := []planner.Action{
		{Kind: planner.Create, URN: dbURN, ResourceKind: catalog.KindDatabase, After: &resources.Resource{Kind: catalog.KindDatabase, FQN: dbURN.FQN, Attrs: &resources.Database{Name: "ANALYTICS"}}},
		{Kind: planner.Drop, URN: roleURN, ResourceKind: catalog.KindRole, Before: state.Spec{"name": "REPORTER", "owner": "USERADMIN"}},
	}

	inv := RoleInventory{Available: []string{"SYSADMIN", "USERADMIN"}}

	steps, err := Schedule(actions, reg, inv, rend, catalog.EditionEnterprise)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	var useRoleCount int

	for _, s := range steps {
		if strings.HasPrefix(s.SQL, "USE ROLE ") {
			useRoleCount++
		}
	}

	if useRoleCount != 2 {
		t.Errorf("expected exactly 2 USE ROLE steps (one per role change), got %d: %+v", useRoleCount, steps)
	}
}

func TestScheduleRejectsActionAboveSessionEdition(t *testing.T) {
	reg := catalog.DefaultRegistry()
	rend := renderer.NewSQLRenderer(reg)

	urn := testURN(catalog.KindMaskingPolicy, "MASK_EMAIL")
	actions := []planner.Action{
		{Kind: planner.Create, URN: urn, ResourceKind: catalog.KindMaskingPolicy, After: &resources.Resource{
			Kind: catalog.KindMaskingPolicy, FQN: urn.FQN,
			Attrs: &resources.MaskingPolicy{Name: "MASK_EMAIL", ReturnType: "STRING", Body: "CASE WHEN TRUE THEN VAL ELSE '***' END"},
		}},
	}

	inv := RoleInventory{Available: []string{"SYSADMIN"}}

	_, err := Schedule(actions, reg, inv, rend, catalog.EditionStandard)
	if err == nil {
		t.Fatal("expected a wrong-edition error for a masking policy under Standard edition")
	}
}
