package state

import (
	"context"
	"strings"
	"testing"

	"github.com/snowcapio/snowcap/internal/cache"
	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/pkg/session"
)

// fakeSession is a scripted session.Session: Execute looks up a
// canned response by matching a substring of the statement, so tests
// can assert on reader behavior without a real warehouse.
type fakeSession struct {
	role string
	user string

	responses []fakeResponse
	calls     []string
}

type fakeResponse struct {
	contains string
	rows     []session.Row
	err      error
}

func (f *fakeSession) Execute(_ context.Context, sql string) ([]session.Row, error) {
	f.calls = append(f.calls, sql)

	for _, r := range f.responses {
		if strings.Contains(sql, r.contains) {
			return r.rows, r.err
		}
	}

	return nil, nil
}

func (f *fakeSession) Role() string { return f.role }
func (f *fakeSession) User() string { return f.user }
func (f *fakeSession) Cursor(context.Context) (session.Session, error) {
	return f, nil
}
func (f *fakeSession) Close() error { return nil }

func newTestReader(sess *fakeSession) *Reader {
	return NewReader(sess, cache.NewInMemory(), catalog.DefaultRegistry(), "sess1", nil, nil)
}

func TestFetchDatabaseFound(t *testing.T) {
	sess := &fakeSession{
		role: "SYSADMIN",
		responses: []fakeResponse{
			{contains: "SHOW DATABASES LIKE", rows: []session.Row{{"name": "ANALYTICS", "owner": "SYSADMIN"}}},
			{contains: "SHOW PARAMETERS", rows: nil},
		},
	}

	r := newTestReader(sess)

	urn := identifier.URN{Org: "ORG", AccountLocator: "AB1", Kind: string(catalog.KindDatabase), FQN: identifier.FQN{Name: identifier.NewName("ANALYTICS", false)}}

	spec, err := r.Fetch(context.Background(), urn)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if spec == nil {
		t.Fatal("expected a spec, got nil (not found)")
	}

	if spec["name"] != "ANALYTICS" {
		t.Errorf("spec[name] = %v, want ANALYTICS", spec["name"])
	}
}

func TestFetchNotFoundReturnsNilNil(t *testing.T) {
	sess := &fakeSession{
		role: "SYSADMIN",
		responses: []fakeResponse{
			{contains: "SHOW DATABASES LIKE", rows: nil},
		},
	}

	r := newTestReader(sess)

	urn := identifier.URN{Org: "ORG", AccountLocator: "AB1", Kind: string(catalog.KindDatabase), FQN: identifier.FQN{Name: identifier.NewName("GHOST", false)}}

	spec, err := r.Fetch(context.Background(), urn)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if spec != nil {
		t.Errorf("expected nil spec for missing object, got %v", spec)
	}
}

func TestFetchCachesSecondCall(t *testing.T) {
	sess := &fakeSession{
		role: "SYSADMIN",
		responses: []fakeResponse{
			{contains: "SHOW DATABASES LIKE", rows: []session.Row{{"name": "ANALYTICS"}}},
			{contains: "SHOW PARAMETERS", rows: nil},
		},
	}

	r := newTestReader(sess)

	urn := identifier.URN{Org: "ORG", AccountLocator: "AB1", Kind: string(catalog.KindDatabase), FQN: identifier.FQN{Name: identifier.NewName("ANALYTICS", false)}}

	if _, err := r.Fetch(context.Background(), urn); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}

	callsAfterFirst := len(sess.calls)

	if _, err := r.Fetch(context.Background(), urn); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}

	if len(sess.calls) != callsAfterFirst {
		t.Errorf("expected second Fetch to be served from cache, calls grew from %d to %d", callsAfterFirst, len(sess.calls))
	}
}

func TestFetchGrantFallsBackOnAccountUsageFailure(t *testing.T) {
	sess := &fakeSession{
		role: "SYSADMIN",
		responses: []fakeResponse{
			{contains: "GRANTS_TO_ROLES", rows: nil, err: errPermissionDenied},
			{contains: "SHOW GRANTS ON", rows: []session.Row{{"privilege": "USAGE"}}},
		},
	}

	r := newTestReader(sess)

	urn := identifier.URN{Org: "ORG", AccountLocator: "AB1", Kind: string(catalog.KindGrant), FQN: identifier.FQN{Name: identifier.NewName("WH1", false)}}

	spec, err := r.Fetch(context.Background(), urn)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if spec == nil {
		t.Fatal("expected grant fallback to find a result")
	}

	if !r.accountUsageUnavailable {
		t.Error("expected accountUsageUnavailable to be sticky after the bulk query failed")
	}
}

var errPermissionDenied = &fakeError{"insufficient privileges"}

type fakeError struct{ msg string }

func (e *fakeError) Error() string { return e.msg }
