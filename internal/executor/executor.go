// Package executor implements the executor (C8): sequential,
// single-threaded application of a scheduled statement sequence against
// a live session, with cache invalidation and cross-process fanout
// after every mutating statement (spec §4.8).
package executor

import (
	"context"
	"strings"

	"github.com/snowcapio/snowcap/internal/cache"
	"github.com/snowcapio/snowcap/internal/eventbus"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/logging"
	"github.com/snowcapio/snowcap/internal/scheduler"
	"github.com/snowcapio/snowcap/internal/snowerrors"
	"github.com/snowcapio/snowcap/pkg/session"
)

// codeProvider is implemented by driver errors that carry a wire-level
// error code (the reference internal/sqlsession driver exposes the
// statement's SQLSTATE this way); executors over a driver that doesn't satisfy
// it simply report an empty code.
type codeProvider interface{ Code() string }

// Executor applies one Schedule's steps in order. It never parallelizes
// mutation and never attempts rollback (spec §4.8, §5 "single-threaded
// for mutation").
type Executor struct {
	Sess      session.Session
	Cache     cache.Cache
	SessionID string
	Publisher eventbus.Publisher
	Logger    logging.Logger
}

// New builds an Executor. pub may be nil (defaults to eventbus.NoopPublisher,
// the single-process case); logger may be nil (defaults to a no-op logger).
func New(sess session.Session, c cache.Cache, sessionID string, pub eventbus.Publisher, logger logging.Logger) *Executor {
	if pub == nil {
		pub = eventbus.NoopPublisher{}
	}

	if logger == nil {
		logger = &logging.NoneLogger{}
	}

	return &Executor{Sess: sess, Cache: c, SessionID: sessionID, Publisher: pub, Logger: logger}
}

// Apply runs steps sequentially. On the first statement failure it
// stops and returns a snowerrors.StatementFailureError naming the
// offending statement; whatever statements already succeeded stay
// applied (spec §4.8 "It does not attempt rollback"). Cancellation is
// honored between statements (spec §5 "Cancellation is at statement
// boundaries"); on a cancelled or failed run the caller is expected to
// discard its reader cache rather than reuse it for a later run, since
// only statements up to the stopping point invalidated it.
func (e *Executor) Apply(ctx context.Context, steps []scheduler.Step) error {
	activeRole := e.Sess.Role()

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		if role, isUseRole := parseUseRole(s.SQL); isUseRole {
			if identifier.NewName(role, false).Equal(identifier.NewName(activeRole, false)) {
				continue // USE ROLE to the currently active role is a no-op (spec §4.8)
			}
		}

		if _, err := e.Sess.Execute(ctx, s.SQL); err != nil {
			code := ""
			if cp, ok := err.(codeProvider); ok {
				code = cp.Code()
			}

			return snowerrors.NewStatementFailureError(s.SQL, code, s.Role, err)
		}

		if role, isUseRole := parseUseRole(s.SQL); isUseRole {
			activeRole = role
			continue
		}

		if s.Action == nil {
			continue
		}

		if err := e.Cache.InvalidateRole(ctx, e.SessionID, activeRole); err != nil {
			e.Logger.Warnf("executor: cache invalidation failed for role %s: %v", activeRole, err)
		}

		if err := e.Publisher.PublishInvalidation(ctx, eventbus.InvalidationEvent{SessionID: e.SessionID, Role: activeRole}); err != nil {
			e.Logger.Warnf("executor: eventbus publish failed for role %s: %v", activeRole, err)
		}
	}

	return nil
}

func parseUseRole(sql string) (string, bool) {
	const prefix = "USE ROLE "
	if !strings.HasPrefix(sql, prefix) {
		return "", false
	}

	return strings.TrimPrefix(sql, prefix), true
}
