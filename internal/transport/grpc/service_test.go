package grpc

import (
	"context"
	"strings"
	"testing"

	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/pkg/session"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

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

func TestPlanComputesAnEmptyPlanAgainstNoManifest(t *testing.T) {
	s := newTestServer()

	resp, err := s.Plan(context.Background(), &PlanRequest{Role: "SYSADMIN", User: "TEST_USER", Scope: "ACCOUNT"})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if resp.PlanID == "" {
		t.Fatalf("expected a non-empty plan id")
	}
}

func TestApplyRejectsUnknownPlanID(t *testing.T) {
	s := newTestServer()

	_, err := s.Apply(context.Background(), &ApplyRequest{PlanID: "does-not-exist", Role: "SYSADMIN", User: "TEST_USER"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestPlanRejectsInvalidScope(t *testing.T) {
	s := newTestServer()

	_, err := s.Plan(context.Background(), &PlanRequest{
		Role: "SYSADMIN", User: "TEST_USER",
		Scope: "DATABASE", Database: "ANALYTICS", Schema: "PUBLIC",
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}
