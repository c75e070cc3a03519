// Package sqlsession is the reference pkg/session.Session implementation:
// a database/sql connection hub (pgx stdlib driver) authenticated with a
// minted key-pair JWT, the way a real warehouse session is opened.
package sqlsession

// Config binds the connection parameters a process needs to open a
// session, populated the same way the rest of the module's config is —
// via config.SetFromEnvVars against these env tags.
type Config struct {
	Account              string `env:"SNOWCAP_ACCOUNT"`
	User                 string `env:"SNOWCAP_USER"`
	Role                 string `env:"SNOWCAP_ROLE"`
	Warehouse            string `env:"SNOWCAP_WAREHOUSE"`
	Host                 string `env:"SNOWCAP_HOST"`
	PrivateKeyPath       string `env:"SNOWCAP_PRIVATE_KEY_PATH"`
	PrivateKeyPassphrase string `env:"SNOWCAP_PRIVATE_KEY_PASSPHRASE"`
	ConnString           string `env:"SNOWCAP_CONNECTION_STRING"`
	TokenTTLSeconds      int64  `env:"SNOWCAP_TOKEN_TTL_SECONDS"`
}

// tokenTTL returns the configured token lifetime, defaulting to the
// lifetime Snowflake's own key-pair JWT flow recommends (59 minutes,
// one short of the hour boundary the server enforces).
func (c Config) tokenTTL() int64 {
	if c.TokenTTLSeconds > 0 {
		return c.TokenTTLSeconds
	}

	return 59 * 60
}
