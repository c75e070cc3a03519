package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/snowcapio/snowcap/internal/cache"
	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/eventbus"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/planner"
	"github.com/snowcapio/snowcap/internal/scheduler"
	"github.com/snowcapio/snowcap/pkg/session"
)

// fakeSession is a minimal session.Session recording every statement it
// was asked to execute, and tracking its active role the way a real
// driver would.
type fakeSession struct {
	role      string
	executed  []string
	failOn    string
	failedErr error
}

func (s *fakeSession) Execute(_ context.Context, sql string) ([]session.Row, error) {
	s.executed = append(s.executed, sql)

	if s.failOn != "" && sql == s.failOn {
		if s.failedErr != nil {
			return nil, s.failedErr
		}

		return nil, errors.New("boom")
	}

	if role, ok := parseUseRole(sql); ok {
		s.role = role
	}

	return nil, nil
}

func (s *fakeSession) Role() string                                     { return s.role }
func (s *fakeSession) User() string                                     { return "TEST_USER" }
func (s *fakeSession) Cursor(context.Context) (session.Session, error)  { return s, nil }
func (s *fakeSession) Close() error                                     { return nil }

// fakePublisher records every invalidation it was asked to fan out.
type fakePublisher struct {
	events []eventbus.InvalidationEvent
}

func (p *fakePublisher) PublishInvalidation(_ context.Context, evt eventbus.InvalidationEvent) error {
	p.events = append(p.events, evt)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func testAction() *planner.Action {
	urn := identifier.URN{Org: "ORG", AccountLocator: "AB12345", Kind: string(catalog.KindDatabase), FQN: identifier.FQN{Name: identifier.NewName("ANALYTICS", false)}}
	return &planner.Action{Kind: planner.Create, URN: urn, ResourceKind: catalog.KindDatabase}
}

func TestApplyElidesUseRoleToCurrentlyActiveRole(t *testing.T) {
	sess := &fakeSession{role: "SYSADMIN"}
	c := cache.NewInMemory()
	pub := &fakePublisher{}

	e := New(sess, c, "sess-1", pub, nil)

	steps := []scheduler.Step{
		{SQL: "USE ROLE SYSADMIN"},
		{SQL: "CREATE DATABASE ANALYTICS", Role: "SYSADMIN", Action: testAction()},
	}

	if err := e.Apply(context.Background(), steps); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for _, sql := range sess.executed {
		if sql == "USE ROLE SYSADMIN" {
			t.Errorf("expected USE ROLE SYSADMIN to be elided, got executed statements %+v", sess.executed)
		}
	}
}

func TestApplyInvalidatesCacheAfterMutatingStatement(t *testing.T) {
	sess := &fakeSession{role: "SYSADMIN"}
	c := cache.NewInMemory()
	pub := &fakePublisher{}

	if err := c.Set(context.Background(), "sess-1", "SYSADMIN", "databases", []string{"OLD"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	e := New(sess, c, "sess-1", pub, nil)

	steps := []scheduler.Step{
		{SQL: "CREATE DATABASE ANALYTICS", Role: "SYSADMIN", Action: testAction()},
	}

	if err := e.Apply(context.Background(), steps); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if _, ok, _ := c.Get(context.Background(), "sess-1", "SYSADMIN", "databases"); ok {
		t.Error("expected the SYSADMIN cache entry to be invalidated")
	}

	if len(pub.events) != 1 || pub.events[0].Role != "SYSADMIN" {
		t.Errorf("expected one invalidation event for role SYSADMIN, got %+v", pub.events)
	}
}

func TestApplyStopsOnFirstFailureWithoutRunningLaterStatements(t *testing.T) {
	sess := &fakeSession{role: "SYSADMIN", failOn: "CREATE DATABASE ANALYTICS"}
	c := cache.NewInMemory()

	e := New(sess, c, "sess-1", nil, nil)

	steps := []scheduler.Step{
		{SQL: "CREATE DATABASE ANALYTICS", Role: "SYSADMIN", Action: testAction()},
		{SQL: "CREATE DATABASE OTHER", Role: "SYSADMIN", Action: testAction()},
	}

	err := e.Apply(context.Background(), steps)
	if err == nil {
		t.Fatal("expected a statement failure error")
	}

	if !strings.Contains(err.Error(), "ANALYTICS") {
		t.Errorf("expected the error to name the offending statement, got %v", err)
	}

	if len(sess.executed) != 1 {
		t.Errorf("expected execution to stop after the first failure, got %+v", sess.executed)
	}
}

func TestApplyHonorsCancellationBetweenStatements(t *testing.T) {
	sess := &fakeSession{role: "SYSADMIN"}
	c := cache.NewInMemory()

	e := New(sess, c, "sess-1", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	steps := []scheduler.Step{
		{SQL: "CREATE DATABASE ANALYTICS", Role: "SYSADMIN", Action: testAction()},
	}

	if err := e.Apply(ctx, steps); err == nil {
		t.Fatal("expected Apply to honor a cancelled context")
	}

	if len(sess.executed) != 0 {
		t.Errorf("expected no statements to run once cancelled, got %+v", sess.executed)
	}
}
