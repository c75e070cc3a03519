package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/pkg/session"
)

// fakeSession answers the session-facts queries and every SHOW query
// with empty results, the same shape as internal/engine's fakeSession.
type fakeSession struct {
	role string
}

func (s *fakeSession) Execute(_ context.Context, sql string) ([]session.Row, error) {
	switch {
	case strings.Contains(sql, "CURRENT_AVAILABLE_ROLES"):
		return []session.Row{{
			"ACCOUNT":         "ORG",
			"ACCOUNT_LOCATOR": "AB12345",
			"AVAILABLE_ROLES": `["SYSADMIN"]`,
			"ACCOUNT_DATA":    `{"accountInfo":{"serviceLevelName":"ENTERPRISE"}}`,
		}}, nil
	case strings.Contains(sql, "SHOW GRANTS ON ACCOUNT"):
		return nil, nil
	default:
		return nil, nil
	}
}

func (s *fakeSession) Role() string                                    { return s.role }
func (s *fakeSession) User() string                                    { return "TEST_USER" }
func (s *fakeSession) Cursor(context.Context) (session.Session, error) { return s, nil }
func (s *fakeSession) Close() error                                    { return nil }

func newTestServer() *Server {
	open := func(_ context.Context, role, _ string) (session.Session, error) {
		return &fakeSession{role: role}, nil
	}

	return NewServer(catalog.DefaultRegistry(), nil, nil, nil, open)
}

func TestPostPlansComputesAnEmptyPlanAgainstNoManifest(t *testing.T) {
	s := newTestServer()
	app := s.NewRouter()

	body, _ := json.Marshal(PlanRequest{
		Role:  "SYSADMIN",
		User:  "TEST_USER",
		Scope: "ACCOUNT",
	})

	req := httptest.NewRequest("POST", "/plans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got PlanResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.PlanID == "" {
		t.Fatalf("expected a non-empty plan id")
	}
}

func TestPostPlansApplyRejectsUnknownPlanID(t *testing.T) {
	s := newTestServer()
	app := s.NewRouter()

	body, _ := json.Marshal(map[string]string{"role": "SYSADMIN", "user": "TEST_USER"})
	req := httptest.NewRequest("POST", "/plans/does-not-exist/apply", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestPostPlansRejectsInvalidScope(t *testing.T) {
	s := newTestServer()
	app := s.NewRouter()

	body, _ := json.Marshal(PlanRequest{
		Role:     "SYSADMIN",
		User:     "TEST_USER",
		Scope:    "DATABASE",
		Database: "ANALYTICS",
		Schema:   "PUBLIC",
	})

	req := httptest.NewRequest("POST", "/plans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for schema set under DATABASE scope, got %d", resp.StatusCode)
	}
}
