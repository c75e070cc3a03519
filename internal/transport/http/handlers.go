package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/snowcapio/snowcap/internal/config"
	"github.com/snowcapio/snowcap/internal/engine"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/manifest"
	"github.com/snowcapio/snowcap/internal/snowerrors"
)

// postPlans runs Plan against live state and stores the result under a
// new plan id; it never mutates the warehouse regardless of the
// request's dry_run flag. The flag is not stored with the plan, and
// postPlansApply does not check it: a plan computed with dry_run set
// is still executed when its id is applied.
func (s *Server) postPlans(c *fiber.Ctx) error {
	var req PlanRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_request", err)
	}

	bp, err := buildBlueprint(req)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_blueprint", err)
	}

	ctx := c.UserContext()

	sess, err := s.Open(ctx, req.Role, req.User)
	if err != nil {
		return writeError(c, fiber.StatusBadGateway, "session_open_failed", err)
	}
	defer sess.Close()

	sessCtx, inv, err := engine.FetchSessionContext(ctx, sess)
	if err != nil {
		return writeError(c, fiber.StatusBadGateway, "session_facts_failed", err)
	}

	eng := engine.New(engine.Options{
		Blueprint: bp,
		Registry:  s.Registry,
		Session:   sess,
		Cache:     s.Cache,
		SessionID: sess.Role() + ":" + sess.User(),
		Publisher: s.Publisher,
		Logger:    s.Logger,
	})

	files := make([]manifest.RawFile, len(req.ManifestFiles))
	for i, f := range req.ManifestFiles {
		files[i] = manifest.RawFile{Path: f.Path, Contents: []byte(f.Contents)}
	}

	actions, err := eng.Plan(ctx, files, sessCtx)
	if err != nil {
		return writeError(c, fiber.StatusUnprocessableEntity, "plan_failed", err)
	}

	id := s.store.save(plannedRun{actions: actions, sessCtx: sessCtx, inv: inv})

	views := make([]ActionView, len(actions))
	for i, a := range actions {
		views[i] = newActionView(a)
	}

	return c.JSON(PlanResponse{PlanID: id, Actions: views})
}

// postPlansApply executes a previously computed plan (C7-C8). It does
// not accept a manifest: the plan already names every action, and
// re-planning against a manifest that may have changed since POST
// /plans would silently apply something the caller never reviewed.
func (s *Server) postPlansApply(c *fiber.Ctx) error {
	id := c.Params("id")

	run, ok := s.store.load(id)
	if !ok {
		return writeError(c, fiber.StatusNotFound, "plan_not_found", errors.New("no plan with that id"))
	}

	var req struct {
		Role string `json:"role"`
		User string `json:"user"`
	}

	if err := c.BodyParser(&req); err != nil {
		return writeError(c, fiber.StatusBadRequest, "invalid_request", err)
	}

	ctx := c.UserContext()

	sess, err := s.Open(ctx, req.Role, req.User)
	if err != nil {
		return writeError(c, fiber.StatusBadGateway, "session_open_failed", err)
	}
	defer sess.Close()

	eng := engine.New(engine.Options{
		Blueprint: &config.Blueprint{Scope: config.ScopeAccount, Threads: 8},
		Registry:  s.Registry,
		Session:   sess,
		Cache:     s.Cache,
		SessionID: sess.Role() + ":" + sess.User(),
		Publisher: s.Publisher,
		Logger:    s.Logger,
	})

	if err := eng.Apply(ctx, run.actions, run.inv, run.sessCtx.Edition); err != nil {
		return writeError(c, fiber.StatusUnprocessableEntity, "apply_failed", err)
	}

	s.store.delete(id)

	views := make([]ActionView, len(run.actions))
	for i, a := range run.actions {
		views[i] = newActionView(a)
	}

	return c.JSON(ApplyResponse{PlanID: id, Applied: views})
}

func buildBlueprint(req PlanRequest) (*config.Blueprint, error) {
	bp := &config.Blueprint{
		DryRun:        req.DryRun,
		SyncResources: req.SyncResources,
		Scope:         config.Scope(req.Scope),
		Threads:       req.Threads,
	}

	if req.Database != "" {
		name := identifier.NewName(req.Database, false)
		bp.Database = &name
	}

	if req.Schema != "" {
		name := identifier.NewName(req.Schema, false)
		bp.Schema = &name
	}

	if err := bp.Validate(); err != nil {
		return nil, err
	}

	return bp, nil
}

func writeError(c *fiber.Ctx, status int, code string, err error) error {
	var snowErr snowerrors.NonConformingPlanError
	if errors.As(err, &snowErr) {
		code = "non_conforming_plan"
	}

	return c.Status(status).JSON(ErrorResponse{Code: code, Message: err.Error()})
}
