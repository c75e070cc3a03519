package grpc

import (
	"sync"

	"github.com/google/uuid"

	"github.com/snowcapio/snowcap/internal/planner"
	"github.com/snowcapio/snowcap/internal/resolver"
	"github.com/snowcapio/snowcap/internal/scheduler"
)

// plannedRun mirrors internal/transport/http's store: the actions Plan
// computed plus the session facts Apply needs to schedule them,
// avoiding a second round trip that could race with a role grant
// landing between the two calls.
type plannedRun struct {
	actions []planner.Action
	sessCtx resolver.SessionContext
	inv     scheduler.RoleInventory
}

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
