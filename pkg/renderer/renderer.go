// Package renderer turns a resource's typed attribute record into the
// DDL/DCL statements that create, alter, reassign, or drop it. The core
// depends only on this interface (internal/scheduler consumes it); the
// reference implementation lives in sql.go, grounded on the catalog's
// per-kind attribute metadata so a new kind only needs a registry entry
// and, if its statement shape is irregular, a case in sql.go's switch.
package renderer

import (
	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/identifier"
)

// Renderer renders one action's statements. Implementations must be
// safe for concurrent use; the scheduler calls them only from the
// single-threaded executor path, but a Renderer may also back a
// concurrent dry-run preview.
type Renderer interface {
	// Create returns the single statement that brings urn into
	// existence with the given attribute record.
	Create(urn identifier.URN, kind catalog.Kind, attrs any) (string, error)

	// Update returns the statements that reconcile the named fields
	// (catalog attribute names, e.g. "comment", "data_retention_time_in_days")
	// from attrs onto the live object.
	Update(urn identifier.URN, kind catalog.Kind, attrs any, fields []string) ([]string, error)

	// Transfer returns the statement that reassigns urn's ownership to
	// toOwner.
	Transfer(urn identifier.URN, kind catalog.Kind, toOwner string) (string, error)

	// Drop returns the statement that removes urn.
	Drop(urn identifier.URN, kind catalog.Kind) (string, error)
}
