package http

import (
	"sync"

	"github.com/google/uuid"

	"github.com/snowcapio/snowcap/internal/planner"
	"github.com/snowcapio/snowcap/internal/resolver"
	"github.com/snowcapio/snowcap/internal/scheduler"
)

// plannedRun is what POST /plans computes and POST /plans/{id}/apply
// later replays: the actions, and the session facts Apply needs
// (scheduling a plan requires the same role inventory/edition Plan
// resolved against — re-fetching them at apply time could race with a
// role grant that landed between the two calls).
type plannedRun struct {
	actions []planner.Action
	sessCtx resolver.SessionContext
	inv     scheduler.RoleInventory
}

// planStore holds computed plans in memory between a POST /plans call
// and its matching POST /plans/{id}/apply, the way a one-shot CLI
// process holds them only in a local variable — a server process needs
// somewhere to put them between two independent requests instead.
type planStore struct {
	mu    sync.Mutex
	plans map[string]plannedRun
}

func newPlanStore() *planStore {
	return &planStore{plans: make(map[string]plannedRun)}
}

func (s *planStore) save(run plannedRun) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.plans[id] = run

	return id
}

func (s *planStore) load(id string) (plannedRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.plans[id]

	return run, ok
}

func (s *planStore) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.plans, id)
}
