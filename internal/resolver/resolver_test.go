package resolver

import (
	"testing"

	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/config"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/manifest"
	"github.com/snowcapio/snowcap/internal/resources"
)

func testSession() SessionContext {
	return SessionContext{Org: "ORG", AccountLocator: "AB12345", Edition: catalog.EditionEnterprise}
}

func TestResolveInjectsImplicitPublicSchema(t *testing.T) {
	db := identifier.NewName("ANALYTICS", false)
	bp := &config.Blueprint{Scope: config.ScopeDatabase, Database: &db}

	compiled := &manifest.Manifest{
		Resources: []resources.Resource{
			{Kind: catalog.KindDatabase, Attrs: &resources.Database{Name: "ANALYTICS"}},
		},
	}

	reg := catalog.DefaultRegistry()

	resolved, err := Resolve(compiled, bp, testSession(), reg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var sawPublicSchema bool

	for urn, r := range resolved.Resources {
		if r.Kind != catalog.KindSchema {
			continue
		}

		sc, ok := r.Attrs.(*resources.Schema)
		if ok && sc.Name == "PUBLIC" && sc.Implicit {
			sawPublicSchema = true

			if urn.FQN.Database.Raw != "ANALYTICS" {
				t.Errorf("implicit schema database = %q, want ANALYTICS", urn.FQN.Database.Raw)
			}
		}
	}

	if !sawPublicSchema {
		t.Fatal("expected an implicit PUBLIC schema to be injected")
	}
}

func TestResolveDuplicateResourceConflict(t *testing.T) {
	bp := &config.Blueprint{Scope: config.ScopeAccount}

	compiled := &manifest.Manifest{
		Resources: []resources.Resource{
			{Kind: catalog.KindWarehouse, Attrs: &resources.Warehouse{Name: "WH1", WarehouseSize: "SMALL"}},
			{Kind: catalog.KindWarehouse, Attrs: &resources.Warehouse{Name: "WH1", WarehouseSize: "LARGE"}},
		},
	}

	reg := catalog.DefaultRegistry()

	if _, err := Resolve(compiled, bp, testSession(), reg); err == nil {
		t.Fatal("expected DuplicateResourceError for conflicting WH1 definitions")
	}
}

func TestResolveOwnershipPointsAtDeclaredRole(t *testing.T) {
	bp := &config.Blueprint{Scope: config.ScopeAccount}

	compiled := &manifest.Manifest{
		Resources: []resources.Resource{
			{Kind: catalog.KindRole, Attrs: &resources.Role{Name: "LOADER"}},
			{
				Kind:  catalog.KindWarehouse,
				Attrs: &resources.Warehouse{Name: "WH1"},
				Owner: resources.OwnerRef{Name: "LOADER"},
			},
		},
	}

	reg := catalog.DefaultRegistry()

	resolved, err := Resolve(compiled, bp, testSession(), reg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var found bool

	for _, r := range resolved.Resources {
		if r.Kind != catalog.KindWarehouse {
			continue
		}

		if r.Owner.ResolvedURN == nil {
			t.Fatal("expected warehouse owner to resolve to the LOADER role URN")
		}

		found = true
	}

	if !found {
		t.Fatal("warehouse resource missing from resolved manifest")
	}
}

func TestResolveRejectsUnsupportedEdition(t *testing.T) {
	bp := &config.Blueprint{Scope: config.ScopeAccount}

	compiled := &manifest.Manifest{
		Resources: []resources.Resource{
			{
				Kind: catalog.KindWarehouse,
				Attrs: &resources.Warehouse{
					Name:                    "WH1",
					EnableQueryAcceleration: true,
				},
			},
		},
	}

	reg := catalog.DefaultRegistry()

	sess := SessionContext{Org: "ORG", AccountLocator: "AB12345", Edition: catalog.EditionStandard}

	if _, err := Resolve(compiled, bp, sess, reg); err == nil {
		t.Fatal("expected WrongEditionError for query acceleration under Standard edition")
	}
}
