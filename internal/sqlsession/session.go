package sqlsession

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/snowcapio/snowcap/internal/logging"
	"github.com/snowcapio/snowcap/pkg/session"
)

// Session is the reference session.Session: one *sql.Conn checked out of
// a shared *sql.DB pool, tracking the role/user it was opened under so
// Cursor can hand callers an independent handle on the same role.
type Session struct {
	hub  *ConnectionHub
	conn *sql.Conn
	role string
	user string

	logger logging.Logger
}

// Open checks out a connection from hub and returns a Session scoped to
// role/user (normally hub.Config.Role/User for the first session of a
// run; Cursor reuses these for every child it hands out).
func Open(ctx context.Context, hub *ConnectionHub, role, user string, logger logging.Logger) (*Session, error) {
	db, err := hub.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlsession: checking out connection: %w", err)
	}

	if logger == nil {
		logger = &logging.NoneLogger{}
	}

	return &Session{hub: hub, conn: conn, role: role, user: user, logger: logger}, nil
}

// Execute runs sql and returns its rows, each keyed by column name the
// way a warehouse driver's DictCursor would.
func (s *Session) Execute(ctx context.Context, sqlText string) ([]session.Row, error) {
	rows, err := s.conn.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, mapQueryError(sqlText, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, mapQueryError(sqlText, err)
	}

	var result []session.Row

	for rows.Next() {
		scanTargets := make([]any, len(cols))
		for i := range scanTargets {
			scanTargets[i] = new(any)
		}

		if err := rows.Scan(scanTargets...); err != nil {
			return nil, mapQueryError(sqlText, err)
		}

		result = append(result, rowFromScan(cols, scanTargets))
	}

	if err := rows.Err(); err != nil {
		return nil, mapQueryError(sqlText, err)
	}

	return result, nil
}

// rowFromScan builds a session.Row from column names and the *any scan
// targets Execute populated, dereferencing each pointer. Kept as a pure
// function so it's testable without a live driver.
func rowFromScan(cols []string, scanTargets []any) session.Row {
	row := make(session.Row, len(cols))

	for i, col := range cols {
		row[col] = *(scanTargets[i].(*any))
	}

	return row
}

func (s *Session) Role() string { return s.role }
func (s *Session) User() string { return s.user }

// Cursor returns a new Session backed by an independently checked-out
// connection from the same pool, so concurrent callers never interleave
// statements on one server-side cursor (DESIGN.md's "parallel cursor
// safety" decision).
func (s *Session) Cursor(ctx context.Context) (session.Session, error) {
	return Open(ctx, s.hub, s.role, s.user, s.logger)
}

// Close releases this session's connection back to the pool.
func (s *Session) Close() error {
	return s.conn.Close()
}

// QueryError wraps a failed statement with the wire-level SQLSTATE code,
// satisfying the executor's codeProvider contract so a failure maps
// cleanly onto snowerrors.StatementFailureError.
type QueryError struct {
	SQL      string
	SQLState string
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("sqlsession: %s: %v", strings.TrimSpace(e.SQL), e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Code returns the wire-level SQLSTATE, or "" when the driver error
// didn't carry one (e.g. context cancellation, connection loss).
func (e *QueryError) Code() string { return e.SQLState }

func mapQueryError(sqlText string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &QueryError{SQL: sqlText, SQLState: pgErr.Code, Err: err}
	}

	return &QueryError{SQL: sqlText, Err: err}
}
