package grpc

import (
	"context"
	"errors"

	"github.com/snowcapio/snowcap/internal/cache"
	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/config"
	"github.com/snowcapio/snowcap/internal/engine"
	"github.com/snowcapio/snowcap/internal/eventbus"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/logging"
	"github.com/snowcapio/snowcap/internal/manifest"
	"github.com/snowcapio/snowcap/pkg/session"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SessionOpener opens a fresh session.Session for one RPC call.
type SessionOpener func(ctx context.Context, role, user string) (session.Session, error)

// SnowcapServer is the manually authored counterpart of a generated
// *_ServiceServer interface (see serviceDesc in server.go).
type SnowcapServer interface {
	Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error)
	Apply(ctx context.Context, req *ApplyRequest) (*ApplyResponse, error)
}

// Server implements SnowcapServer, building one Engine per call exactly
// as internal/transport/http.Server does.
type Server struct {
	Registry  *catalog.Registry
	Cache     cache.Cache
	Publisher eventbus.Publisher
	Logger    logging.Logger
	Open      SessionOpener

	store *planStore
}

// NewServer builds a Server, defaulting Cache/Publisher/Logger the
// same way engine.New's Options do when left nil.
func NewServer(registry *catalog.Registry, c cache.Cache, pub eventbus.Publisher, logger logging.Logger, open SessionOpener) *Server {
	if c == nil {
		c = cache.NewInMemory()
	}

	if pub == nil {
		pub = eventbus.NoopPublisher{}
	}

	if logger == nil {
		logger = &logging.NoneLogger{}
	}

	return &Server{
		Registry:  registry,
		Cache:     c,
		Publisher: pub,
		Logger:    logger,
		Open:      open,
		store:     newPlanStore(),
	}
}

func (s *Server) Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error) {
	bp, err := buildBlueprint(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	sess, err := s.Open(ctx, req.Role, req.User)
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	defer sess.Close()

	sessCtx, inv, err := engine.FetchSessionContext(ctx, sess)
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
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
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}

	id := s.store.save(plannedRun{actions: actions, sessCtx: sessCtx, inv: inv})

	views := make([]ActionView, len(actions))
	for i, a := range actions {
		views[i] = newActionView(a)
	}

	return &PlanResponse{PlanID: id, Actions: views}, nil
}

func (s *Server) Apply(ctx context.Context, req *ApplyRequest) (*ApplyResponse, error) {
	run, ok := s.store.load(req.PlanID)
	if !ok {
		return nil, status.Error(codes.NotFound, "no plan with that id")
	}

	sess, err := s.Open(ctx, req.Role, req.User)
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
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
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	}

	s.store.delete(req.PlanID)

	views := make([]ActionView, len(run.actions))
	for i, a := range run.actions {
		views[i] = newActionView(a)
	}

	return &ApplyResponse{PlanID: req.PlanID, Applied: views}, nil
}

func buildBlueprint(req *PlanRequest) (*config.Blueprint, error) {
	if req == nil {
		return nil, errors.New("empty request")
	}

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
