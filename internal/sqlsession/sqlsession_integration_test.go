//go:build integration

package sqlsession

import (
	"context"
	"fmt"
	"testing"
	"time"

	toxiproxyclient "github.com/Shopify/toxiproxy/v2/client"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tctoxiproxy "github.com/testcontainers/testcontainers-go/modules/toxiproxy"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/snowcapio/snowcap/internal/logging"
)

const integrationPostgresImage = "postgres:16"

func startPostgresContainer(t *testing.T) (host string, port string) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        integrationPostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "snowcap",
			"POSTGRES_PASSWORD": "snowcap",
			"POSTGRES_DB":       "snowcap",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithStartupTimeout(90 * time.Second),
	}

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start Postgres container")

	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	h, err := pg.Host(ctx)
	require.NoError(t, err)

	p, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return h, p.Port()
}

// TestIntegrationSessionExecuteSurvivesReconnectAfterProxyDisconnect proves
// a dropped connection surfaces as a mapped QueryError (not a panic or a
// hang) and that a fresh session reopened via the hub recovers once the
// proxy is restored — the resiliency behavior this package owns, as
// opposed to the read-path fallback the state reader owns on top of it.
func TestIntegrationSessionExecuteSurvivesReconnectAfterProxyDisconnect(t *testing.T) {
	ctx := context.Background()
	pgHost, pgPort := startPostgresContainer(t)

	toxiContainer, err := tctoxiproxy.Run(ctx, "ghcr.io/shopify/toxiproxy:2.12.0",
		testcontainers.WithExposedPorts("8666/tcp"))
	require.NoError(t, err, "failed to start Toxiproxy container")

	t.Cleanup(func() { _ = toxiContainer.Terminate(context.Background()) })

	toxiHost, err := toxiContainer.Host(ctx)
	require.NoError(t, err)

	apiPort, err := toxiContainer.MappedPort(ctx, "8474")
	require.NoError(t, err)

	proxyPort, err := toxiContainer.MappedPort(ctx, "8666")
	require.NoError(t, err)

	toxi := toxiproxyclient.NewClient(fmt.Sprintf("http://%s:%s", toxiHost, apiPort.Port()))

	upstream := fmt.Sprintf("%s:%s", pgHost, pgPort)
	proxy, err := toxi.CreateProxy("snowcap-pg", "0.0.0.0:8666", upstream)
	require.NoError(t, err, "failed to create toxiproxy proxy")

	hub := NewConnectionHub(Config{
		ConnString: fmt.Sprintf("postgres://snowcap:snowcap@%s:%s/snowcap?sslmode=disable", toxiHost, proxyPort.Port()),
	}, &logging.NoneLogger{})

	sess, err := Open(ctx, hub, "SYSADMIN", "SNOWCAP", &logging.NoneLogger{})
	require.NoError(t, err)

	_, err = sess.Execute(ctx, "SELECT 1")
	require.NoError(t, err, "baseline query must succeed before any fault injection")

	proxy.Enabled = false
	require.NoError(t, proxy.Save())

	_, err = sess.Execute(ctx, "SELECT 1")
	require.Error(t, err, "query must fail once the proxy is disconnected")

	var qe *QueryError
	require.ErrorAs(t, err, &qe, "a dropped connection must surface as a mapped QueryError")

	proxy.Enabled = true
	require.NoError(t, proxy.Save())

	recovered, err := Open(ctx, hub, "SYSADMIN", "SNOWCAP", &logging.NoneLogger{})
	require.NoError(t, err)

	_, err = recovered.Execute(ctx, "SELECT 1")
	require.NoError(t, err, "a fresh session from the pool must recover once the proxy is restored")
}
