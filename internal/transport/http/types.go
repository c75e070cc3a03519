// Package http exposes the Plan/Apply pipeline over a fiber HTTP API:
// POST /plans computes a plan against live state without mutating
// anything, POST /plans/{id}/apply executes a previously computed one.
package http

import (
	"github.com/snowcapio/snowcap/internal/planner"
)

// ManifestFile is one source file of the request's blueprint manifest.
type ManifestFile struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

// PlanRequest is the body of POST /plans.
type PlanRequest struct {
	Role          string         `json:"role"`
	User          string         `json:"user"`
	Scope         string         `json:"scope"`
	Database      string         `json:"database,omitempty"`
	Schema        string         `json:"schema,omitempty"`
	DryRun        bool           `json:"dry_run"`
	SyncResources []string       `json:"sync_resources,omitempty"`
	Threads       int            `json:"threads,omitempty"`
	ManifestFiles []ManifestFile `json:"manifest_files"`
}

// ActionView is the JSON-safe projection of a planner.Action: the
// wire format names the URN and kinds by their rendered string form
// rather than exposing the internal resource/spec types directly.
type ActionView struct {
	Kind         string   `json:"kind"`
	URN          string   `json:"urn"`
	ResourceKind string   `json:"resource_kind"`
	Delta        []string `json:"delta,omitempty"`
	FromOwner    string   `json:"from_owner,omitempty"`
	ToOwner      string   `json:"to_owner,omitempty"`
}

func newActionView(a planner.Action) ActionView {
	return ActionView{
		Kind:         string(a.Kind),
		URN:          a.URN.Render(),
		ResourceKind: string(a.ResourceKind),
		Delta:        a.Delta,
		FromOwner:    a.FromOwner,
		ToOwner:      a.ToOwner,
	}
}

// PlanResponse is the body of a successful POST /plans.
type PlanResponse struct {
	PlanID  string       `json:"plan_id"`
	Actions []ActionView `json:"actions"`
}

// ApplyResponse is the body of a successful POST /plans/{id}/apply.
type ApplyResponse struct {
	PlanID  string       `json:"plan_id"`
	Applied []ActionView `json:"applied"`
}

// ErrorResponse is the body of any non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
