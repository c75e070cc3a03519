// Package engine wires the compiler, resolver, reader, planner,
// scheduler, and executor into the two operations a caller actually
// invokes: Plan and Apply (spec §4.1 "Pipeline").
package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/snowcapio/snowcap/internal/cache"
	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/config"
	"github.com/snowcapio/snowcap/internal/executor"
	"github.com/snowcapio/snowcap/internal/eventbus"
	"github.com/snowcapio/snowcap/internal/logging"
	"github.com/snowcapio/snowcap/internal/manifest"
	"github.com/snowcapio/snowcap/internal/planner"
	"github.com/snowcapio/snowcap/internal/resolver"
	"github.com/snowcapio/snowcap/internal/scheduler"
	"github.com/snowcapio/snowcap/internal/state"
	"github.com/snowcapio/snowcap/internal/state/workerpool"
	"github.com/snowcapio/snowcap/internal/telemetry"
	"github.com/snowcapio/snowcap/pkg/renderer"
	"github.com/snowcapio/snowcap/pkg/session"
)

// tracer is the engine's named tracer, resolved against whatever
// TracerProvider is globally registered (telemetry.Init registers one;
// absent that, otel's no-op provider makes every span a cheap discard).
var tracer = otel.Tracer("snowcap/engine")

// Options configures one Engine. Blueprint, Session, Cache, and Registry
// are required; Pool, Publisher, Logger, and Renderer have defaults (see
// New).
type Options struct {
	Blueprint *config.Blueprint
	Registry  *catalog.Registry
	Session   session.Session
	Cache     cache.Cache
	SessionID string

	Pool      *workerpool.Pool
	Publisher eventbus.Publisher
	Logger    logging.Logger
	Renderer  renderer.Renderer
}

// Engine runs a single blueprint's Plan/Apply pipeline against one live
// session (spec §4.1, §5 "one Engine per session, no shared mutable
// state across sessions").
type Engine struct {
	blueprint *config.Blueprint
	registry  *catalog.Registry
	sessionID string
	reader    *state.Reader
	rend      renderer.Renderer
	exec      *executor.Executor
	logger    logging.Logger
}

// New builds an Engine, constructing the reader and executor from opts.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = &logging.NoneLogger{}
	}

	rend := opts.Renderer
	if rend == nil {
		rend = renderer.NewSQLRenderer(opts.Registry)
	}

	reader := state.NewReader(opts.Session, opts.Cache, opts.Registry, opts.SessionID, opts.Pool, logger)
	exec := executor.New(opts.Session, opts.Cache, opts.SessionID, opts.Publisher, logger)

	return &Engine{
		blueprint: opts.Blueprint,
		registry:  opts.Registry,
		sessionID: opts.SessionID,
		reader:    reader,
		rend:      rend,
		exec:      exec,
		logger:    logger,
	}
}

// Plan runs the compile -> resolve -> read -> diff pipeline (C3-C6) and
// returns the ordered action list an Apply call would execute. Plan
// never mutates warehouse state; it is safe to call repeatedly, and is
// the whole of what a dry-run blueprint does (spec §4.1 step "dry_run
// stops after planning").
func (e *Engine) Plan(ctx context.Context, files []manifest.RawFile, sessCtx resolver.SessionContext) ([]planner.Action, error) {
	ctx, span := tracer.Start(ctx, "engine.Plan")
	defer span.End()

	compiled, err := manifest.Compile(files, e.blueprint)
	if err != nil {
		telemetry.RecordSpanError(span, "compiling manifest", err)
		return nil, fmt.Errorf("compiling manifest: %w", err)
	}

	resolved, err := resolver.Resolve(compiled, e.blueprint, sessCtx, e.registry)
	if err != nil {
		telemetry.RecordSpanError(span, "resolving manifest", err)
		return nil, fmt.Errorf("resolving manifest: %w", err)
	}

	root := state.ScopeRoot{
		Org:            sessCtx.Org,
		AccountLocator: sessCtx.AccountLocator,
		Database:       e.blueprint.Database,
		Schema:         e.blueprint.Schema,
	}

	snapshot, err := e.reader.Snapshot(ctx, e.registry.Kinds(), root, resolved.Order)
	if err != nil {
		telemetry.RecordSpanError(span, "reading live state", err)
		return nil, fmt.Errorf("reading live state: %w", err)
	}

	actions, err := planner.Plan(resolved, snapshot, e.blueprint, e.registry)
	if err != nil {
		telemetry.RecordSpanError(span, "planning", err)
		return nil, fmt.Errorf("planning: %w", err)
	}

	span.SetAttributes(attribute.Int("snowcap.plan.action_count", len(actions)))

	return actions, nil
}

// Apply schedules and executes actions against the live session (C7-C8).
// Apply itself does not consult Blueprint.DryRun; callers that already
// checked DryRun themselves may call it directly, but Run is the usual
// entrypoint since it enforces the check once.
func (e *Engine) Apply(ctx context.Context, actions []planner.Action, inv scheduler.RoleInventory, sessionEdition catalog.Edition) error {
	ctx, span := tracer.Start(ctx, "engine.Apply")
	defer span.End()

	span.SetAttributes(attribute.Int("snowcap.apply.action_count", len(actions)))

	steps, err := scheduler.Schedule(actions, e.registry, inv, e.rend, sessionEdition)
	if err != nil {
		telemetry.RecordSpanError(span, "scheduling", err)
		return fmt.Errorf("scheduling: %w", err)
	}

	if err := e.exec.Apply(ctx, steps); err != nil {
		telemetry.RecordSpanError(span, "executing", err)
		return fmt.Errorf("executing: %w", err)
	}

	return nil
}

// Run plans, then applies unless the blueprint is a dry run, returning
// the computed actions either way (spec §4.1 "a dry-run blueprint
// computes the same plan but never calls the executor").
func (e *Engine) Run(ctx context.Context, files []manifest.RawFile, sessCtx resolver.SessionContext, inv scheduler.RoleInventory) ([]planner.Action, error) {
	actions, err := e.Plan(ctx, files, sessCtx)
	if err != nil {
		return nil, err
	}

	if e.blueprint.DryRun {
		e.logger.Infof("dry run: computed %d action(s), skipping apply", len(actions))
		return actions, nil
	}

	if err := e.Apply(ctx, actions, inv, sessCtx.Edition); err != nil {
		return actions, err
	}

	return actions, nil
}
