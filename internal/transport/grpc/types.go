// Package grpc exposes the same Plan/Apply pipeline as
// internal/transport/http, over gRPC for programmatic callers, using a
// JSON wire codec instead of compiled protobuf (see codec.go).
package grpc

import (
	"github.com/snowcapio/snowcap/internal/planner"
)

// ManifestFile is one source file of the request's blueprint manifest.
type ManifestFile struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

// PlanRequest is the request message of the Plan RPC.
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

// ActionView is the wire projection of a planner.Action.
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

// PlanResponse is the response message of the Plan RPC.
type PlanResponse struct {
	PlanID  string       `json:"plan_id"`
	Actions []ActionView `json:"actions"`
}

// ApplyRequest is the request message of the Apply RPC: it names a
// plan previously returned by Plan rather than carrying a manifest, so
// Apply always executes exactly what was reviewed.
type ApplyRequest struct {
	PlanID string `json:"plan_id"`
	Role   string `json:"role"`
	User   string `json:"user"`
}

// ApplyResponse is the response message of the Apply RPC.
type ApplyResponse struct {
	PlanID  string       `json:"plan_id"`
	Applied []ActionView `json:"applied"`
}
