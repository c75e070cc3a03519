package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberSwagger "github.com/swaggo/fiber-swagger"

	"github.com/snowcapio/snowcap/internal/cache"
	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/eventbus"
	"github.com/snowcapio/snowcap/internal/logging"
	"github.com/snowcapio/snowcap/internal/sqlsession"
	"github.com/snowcapio/snowcap/pkg/session"
)

// SessionOpener opens a fresh session.Session for one request, the way
// a per-request connection is checked out of the pool. Plugged in as a
// function so handlers never import sqlsession directly.
type SessionOpener func(ctx context.Context, role, user string) (session.Session, error)

// Server holds everything a request handler needs to build one Engine
// per call (spec §5 "one Engine per session, no shared mutable state").
type Server struct {
	Registry  *catalog.Registry
	Cache     cache.Cache
	Publisher eventbus.Publisher
	Logger    logging.Logger
	Open      SessionOpener

	store *planStore
}

// NewHubSessionOpener adapts a ConnectionHub into a SessionOpener.
func NewHubSessionOpener(hub *sqlsession.ConnectionHub, logger logging.Logger) SessionOpener {
	return func(ctx context.Context, role, user string) (session.Session, error) {
		return sqlsession.Open(ctx, hub, role, user, logger)
	}
}

// NewServer builds a Server. Cache/Publisher/Logger default the same
// way engine.New's Options do when left nil.
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

// NewRouter builds the fiber app, mirroring the teacher's
// adapters/http/in.NewRouter: cors, request logging, health/version,
// swagger docs, then the two operations this service exposes.
func (s *Server) NewRouter() *fiber.App {
	f := fiber.New(fiber.Config{DisableStartupMessage: true})

	f.Use(cors.New())
	f.Use(s.requestLogging())

	f.Get("/health", s.health)
	f.Get("/version", s.version)
	f.Get("/swagger/*", fiberSwagger.WrapHandler)

	f.Post("/plans", s.postPlans)
	f.Post("/plans/:id/apply", s.postPlansApply)

	return f
}

func (s *Server) requestLogging() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		s.Logger.Infof("%s %s -> %d", c.Method(), c.Path(), c.Response().StatusCode())

		return err
	}
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) version(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"version": "dev"})
}
