// Package state implements the remote-state reader (C5): cached,
// session-scoped reads of live warehouse objects, normalized into the
// same shape the planner compares the desired manifest against.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/snowcapio/snowcap/internal/cache"
	"github.com/snowcapio/snowcap/internal/catalog"
	"github.com/snowcapio/snowcap/internal/identifier"
	"github.com/snowcapio/snowcap/internal/logging"
	"github.com/snowcapio/snowcap/internal/state/workerpool"
	"github.com/snowcapio/snowcap/pkg/session"
)

// FetchFunc fetches one object's live Spec. found=false with a nil
// error means "object does not exist" (spec §4.5 "a read that returns
// 'object not found' resolves to None, not an error").
type FetchFunc func(ctx context.Context, sess session.Session, urn identifier.URN) (spec Spec, found bool, err error)

// ListFunc enumerates every URN of a kind within a scope root.
type ListFunc func(ctx context.Context, sess session.Session, root ScopeRoot) ([]identifier.URN, error)

// ScopeRoot narrows a List/Snapshot call to the blueprint's scope.
type ScopeRoot struct {
	Org            string
	AccountLocator string
	Database       *identifier.Name
	Schema         *identifier.Name
}

// Reader is the C5 remote-state reader: a cached façade over a
// session.Session, dispatching to per-kind fetchers and a bulk grant
// path with sticky fallback (spec §4.5).
type Reader struct {
	sess     session.Session
	cache    cache.Cache
	registry *catalog.Registry
	pool     *workerpool.Pool
	logger   logging.Logger

	sessionID string

	fetchers map[catalog.Kind]FetchFunc
	listers  map[catalog.Kind]ListFunc

	mu sync.Mutex
	// accountUsageUnavailable is sticky for the lifetime of the Reader:
	// once the bulk audit path fails, every subsequent grant/role-grant
	// fetch goes straight to the per-object path without retrying the
	// bulk query (spec §4.5, SPEC_FULL.md §12 "sticky... never reset").
	accountUsageUnavailable bool

	// parameterDatabases marks databases whose PUBLIC schema must also
	// fetch parameters, because the database itself carries explicit
	// parameter fields in the desired manifest (spec §4.5 "Inheritance
	// of parameters").
	parameterDatabases map[string]bool
}

// NewReader builds a Reader. sessionID identifies the cache partition
// (normally the warehouse session id); pool may be nil to use
// workerpool.DefaultSize.
func NewReader(sess session.Session, c cache.Cache, reg *catalog.Registry, sessionID string, pool *workerpool.Pool, logger logging.Logger) *Reader {
	if pool == nil {
		pool = workerpool.New(workerpool.DefaultSize)
	}

	if logger == nil {
		logger = &logging.NoneLogger{}
	}

	r := &Reader{
		sess:                sess,
		cache:               c,
		registry:            reg,
		pool:                pool,
		logger:              logger,
		sessionID:           sessionID,
		parameterDatabases:  make(map[string]bool),
	}

	r.fetchers, r.listers = buildFetcherTables(r)

	return r
}

// SupportsListing reports whether kind can be enumerated with List
// (some kinds, e.g. grants, carry their identity entirely in the
// desired manifest and are only ever looked up by URN via Fetch).
// Callers building a Snapshot use this to skip kinds List can't serve
// instead of failing the whole run.
func (r *Reader) SupportsListing(kind catalog.Kind) bool {
	_, ok := r.listers[kind]
	return ok
}

// MarkParameterDatabase records that database dbName carries explicit
// parameter fields in the desired manifest, so its implicit PUBLIC
// schema fetch also pulls parameters (spec §4.5).
func (r *Reader) MarkParameterDatabase(dbName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.parameterDatabases[identifier.NewName(dbName, false).Render()] = true
}

func (r *Reader) wantsParameters(dbName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.parameterDatabases[identifier.NewName(dbName, false).Render()]
}

// Fetch returns urn's live Spec, consulting the cache first and
// populating it on a miss. (nil, nil) means not found.
func (r *Reader) Fetch(ctx context.Context, urn identifier.URN) (Spec, error) {
	cacheKey := "fetch:" + urn.Render()

	if cached, ok, err := r.cache.Get(ctx, r.sessionID, r.sess.Role(), cacheKey); err == nil && ok {
		if cached == nil {
			return nil, nil
		}

		return cached.(Spec), nil
	}

	fetcher, ok := r.fetchers[catalog.Kind(urn.Kind)]
	if !ok {
		return nil, fmt.Errorf("state: no fetcher registered for kind %q", urn.Kind)
	}

	spec, found, err := fetcher(ctx, r.sess, urn)
	if err != nil {
		return nil, err
	}

	if !found {
		_ = r.cache.Set(ctx, r.sessionID, r.sess.Role(), cacheKey, Spec(nil))
		return nil, nil
	}

	_ = r.cache.Set(ctx, r.sessionID, r.sess.Role(), cacheKey, spec)

	return spec, nil
}

// List enumerates every live URN of kind within root.
func (r *Reader) List(ctx context.Context, kind catalog.Kind, root ScopeRoot) ([]identifier.URN, error) {
	cacheKey := "list:" + string(kind) + ":" + root.cacheKey()

	if cached, ok, err := r.cache.Get(ctx, r.sessionID, r.sess.Role(), cacheKey); err == nil && ok {
		return cached.([]identifier.URN), nil
	}

	lister, ok := r.listers[kind]
	if !ok {
		return nil, fmt.Errorf("state: no lister registered for kind %q", kind)
	}

	urns, err := lister(ctx, r.sess, root)
	if err != nil {
		return nil, err
	}

	_ = r.cache.Set(ctx, r.sessionID, r.sess.Role(), cacheKey, urns)

	return urns, nil
}

// Snapshot builds a Snapshot covering every kind in kinds, listing then
// fetching each URN in parallel over the bounded worker pool (spec §5
// "reads are parallelized... default 8-10"). wantURNs seeds the fetch
// set directly with URNs the caller already knows about (normally the
// desired manifest's URNs): kinds List can't enumerate on its own —
// grants and role_grants carry their identity entirely in the manifest,
// not a SHOW statement — would otherwise never be looked up at all and
// would always diff as a Create even when the live object already
// exists. Kinds in `kinds` that List genuinely can't serve are skipped
// rather than failing the whole run (Reader.SupportsListing).
func (r *Reader) Snapshot(ctx context.Context, kinds []catalog.Kind, root ScopeRoot, wantURNs []identifier.URN) (*Snapshot, error) {
	seen := make(map[identifier.URN]bool, len(wantURNs))

	var allURNs []identifier.URN

	for _, urn := range wantURNs {
		if !seen[urn] {
			seen[urn] = true
			allURNs = append(allURNs, urn)
		}
	}

	for _, k := range kinds {
		if !r.SupportsListing(k) {
			continue
		}

		urns, err := r.List(ctx, k, root)
		if err != nil {
			return nil, err
		}

		for _, urn := range urns {
			if !seen[urn] {
				seen[urn] = true
				allURNs = append(allURNs, urn)
			}
		}
	}

	specs := make([]Spec, len(allURNs))

	err := r.pool.Run(ctx, len(allURNs), func(ctx context.Context, i int) error {
		spec, err := r.Fetch(ctx, allURNs[i])
		if err != nil {
			return err
		}

		specs[i] = spec

		return nil
	})
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Objects: make(map[identifier.URN]Spec, len(allURNs))}
	for i, urn := range allURNs {
		if specs[i] != nil {
			snap.Objects[urn] = specs[i]
		}
	}

	return snap, nil
}

func (s ScopeRoot) cacheKey() string {
	db := ""
	if s.Database != nil {
		db = s.Database.Render()
	}

	sc := ""
	if s.Schema != nil {
		sc = s.Schema.Render()
	}

	return s.Org + "/" + s.AccountLocator + "/" + db + "/" + sc
}
