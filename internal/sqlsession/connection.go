package sqlsession

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/snowcapio/snowcap/internal/logging"
)

// ConnectionHub is a single-endpoint connection hub, the warehouse-session
// analogue of mpostgres.PostgresConnection: there is no primary/replica
// split or schema migration step against a warehouse, so it keeps just
// the one pooled *sql.DB and the token minting it needs to open it. The
// token is minted once per Connect and is not refreshed.
type ConnectionHub struct {
	Config Config
	Logger logging.Logger

	db        *sql.DB
	connected bool
}

// NewConnectionHub builds a hub. Connect must be called before GetDB.
func NewConnectionHub(cfg Config, logger logging.Logger) *ConnectionHub {
	if logger == nil {
		logger = &logging.NoneLogger{}
	}

	return &ConnectionHub{Config: cfg, Logger: logger}
}

// Connect mints an auth token and opens the pooled connection. Safe to
// call once; GetDB lazily calls it if it hasn't run yet.
func (h *ConnectionHub) Connect(ctx context.Context) error {
	dsn := h.Config.ConnString

	if dsn == "" {
		token, err := MintKeyPairToken(h.Config, time.Now())
		if err != nil {
			return fmt.Errorf("sqlsession: minting auth token: %w", err)
		}

		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s/%s?sslmode=require&application_name=snowcap",
			h.Config.User, token, h.Config.Host, h.Config.Warehouse,
		)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("sqlsession: opening connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("sqlsession: pinging warehouse: %w", err)
	}

	h.db = db
	h.connected = true

	h.Logger.Infof("sqlsession: connected as %s (role %s)", h.Config.User, h.Config.Role)

	return nil
}

// GetDB returns the pooled *sql.DB, connecting first if necessary.
func (h *ConnectionHub) GetDB(ctx context.Context) (*sql.DB, error) {
	if !h.connected {
		if err := h.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return h.db, nil
}

// Close releases the pooled connection.
func (h *ConnectionHub) Close() error {
	if h.db == nil {
		return nil
	}

	return h.db.Close()
}
