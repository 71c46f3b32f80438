package engine

import (
	"fmt"
	"sync"
)

// definitionRegistry stores validated WorkflowDefinitions keyed by namespaced
// ID, guarded by its own mutex (§5: never hold two engine mutexes at once).
type definitionRegistry struct {
	mu   sync.RWMutex
	byID map[string]*WorkflowDefinition
}

func newDefinitionRegistry() *definitionRegistry {
	return &definitionRegistry{byID: make(map[string]*WorkflowDefinition)}
}

func namespacedDefinitionID(ownerID, rawID string) string {
	return fmt.Sprintf("user-%s-wf-%s", ownerID, rawID)
}

func namespacedExternalActionID(userID, actionID string) string {
	return fmt.Sprintf("user-%s-sa-%s", userID, actionID)
}

// get returns a clone-free direct reference; callers must not mutate it.
// WorkflowDefinitions are immutable after registration by contract.
func (r *definitionRegistry) get(id string) (*WorkflowDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// register validates ownership and server-action references, then inserts
// or replaces the definition (§4.1). rawID is the caller-supplied,
// un-namespaced ID; the namespaced ID is returned on success.
func (r *definitionRegistry) register(ownerID, rawID string, def *WorkflowDefinition, known func(actionID string) bool) (string, error) {
	id := namespacedDefinitionID(ownerID, rawID)

	for _, ref := range def.ServerActions {
		if !known(ref.ID) {
			return "", ServerActionFailed(fmt.Sprintf("Server action '%s' not registered", ref.ID))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[id]; ok {
		if existing.OwnerID != ownerID {
			return "", ServerActionFailed("not the owner")
		}
	}

	def.ID = id
	def.OwnerID = ownerID
	r.byID[id] = def
	return id, nil
}

// actionRegistry stores in-process ActionHandlers keyed by action ID, and
// the set of per-user externally-handled action IDs. Both are guarded by
// their own mutex, separate from definitionRegistry's, per §5.
type actionRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ActionHandler

	externalMu sync.RWMutex
	external   map[string]struct{}
}

func newActionRegistry() *actionRegistry {
	return &actionRegistry{
		handlers: make(map[string]ActionHandler),
		external: make(map[string]struct{}),
	}
}

func (r *actionRegistry) register(actionID string, h ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[actionID] = h
}

func (r *actionRegistry) handler(actionID string) (ActionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[actionID]
	return h, ok
}

func (r *actionRegistry) hasLocal(actionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[actionID]
	return ok
}

// registerExternal is idempotent: registering the same (user, action) pair
// twice is a no-op on the second call (§4.1).
func (r *actionRegistry) registerExternal(userID, actionID string) string {
	id := namespacedExternalActionID(userID, actionID)
	r.externalMu.Lock()
	defer r.externalMu.Unlock()
	r.external[id] = struct{}{}
	return id
}

func (r *actionRegistry) isExternal(id string) bool {
	r.externalMu.RLock()
	defer r.externalMu.RUnlock()
	_, ok := r.external[id]
	return ok
}
