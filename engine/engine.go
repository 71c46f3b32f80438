package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/duskcourt/nightloom/engine/emit"
	"github.com/duskcourt/nightloom/engine/store"
)

// Engine is the runtime that instantiates, advances, suspends, and resumes
// workflow instances (§4.2–§4.5). It owns four mutable registries
// (definitions, server-action handlers, external-action set, and the
// instance table) plus two suspension tables, each guarded by its own
// mutex. While an instance's own mutex is held, the engine briefly takes
// the definition and action registries' read locks; no other pair of its
// mutexes is held at once, and none is held across a handler invocation or
// event emission (§5).
type Engine struct {
	defs    *definitionRegistry
	actions *actionRegistry
	bus     *emit.Bus

	externalTimeout time.Duration
	audit           store.Store

	instancesMu sync.RWMutex
	instances   map[string]*instanceEntry

	waitRespMu         sync.Mutex
	waitingForResponse map[string]waitResponseEntry // keyed by nested (awaited) instance ID

	waitPredMu          sync.Mutex
	waitingForPredicate map[string]waitPredicateEntry // keyed by waiting instance ID

	pendingMu       sync.Mutex
	pendingExternal map[string]*pendingExternalEntry // keyed by correlation token
}

type instanceEntry struct {
	mu    sync.Mutex
	state *WorkflowState
}

type waitResponseEntry struct {
	waiterID  string
	injectKey string
}

type waitPredicateEntry struct {
	predicate WorkflowPredicate
	injectKey string
}

type pendingExternalEntry struct {
	instanceID string
	workflowID string
	actionID   string
	timer      *time.Timer
}

// New builds an Engine. audit is the Store every successful state mutation
// is written through to for out-of-process audit queries (§3); pass nil to
// use an in-memory store. The engine itself never reads from audit — it is
// a write-only side channel, matching the Non-goal of persistence across
// process restarts.
func New(audit store.Store, opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	if audit == nil {
		audit = store.NewMemoryStore()
	}
	return &Engine{
		defs:                newDefinitionRegistry(),
		actions:             newActionRegistry(),
		bus:                 cfg.bus,
		externalTimeout:     cfg.externalActionTimeout,
		audit:               audit,
		instances:           make(map[string]*instanceEntry),
		waitingForResponse:  make(map[string]waitResponseEntry),
		waitingForPredicate: make(map[string]waitPredicateEntry),
		pendingExternal:     make(map[string]*pendingExternalEntry),
	}
}

// RegisterDefinition implements §4.1's register_workflow_definition.
func (e *Engine) RegisterDefinition(ownerID, rawID string, def *WorkflowDefinition) (string, error) {
	known := func(actionID string) bool {
		return e.actions.hasLocal(actionID) || e.actions.isExternal(namespacedExternalActionID(ownerID, actionID))
	}
	return e.defs.register(ownerID, rawID, def, known)
}

// RegisterExternalServerAction implements §4.1's register_external_server_action.
func (e *Engine) RegisterExternalServerAction(userID, actionID string) string {
	return e.actions.registerExternal(userID, actionID)
}

// RegisterServerAction implements §4.1's register_server_action.
func (e *Engine) RegisterServerAction(actionID string, handler ActionHandler) {
	e.actions.register(actionID, handler)
}

// OnEvent registers an async event subscriber (§4.6) and returns a
// subscription ID for Unsubscribe.
func (e *Engine) OnEvent(cb func(context.Context, emit.Event)) string {
	return e.bus.OnEvent(cb)
}

// Unsubscribe removes a previously registered event subscriber.
func (e *Engine) Unsubscribe(id string) {
	e.bus.Unsubscribe(id)
}

// AttachEmitter wires an additional Emitter sink (log, OTel, Prometheus...)
// into the event bus.
func (e *Engine) AttachEmitter(em emit.Emitter) {
	e.bus.Attach(em)
}

func (e *Engine) getEntry(instanceID string) (*instanceEntry, bool) {
	e.instancesMu.RLock()
	defer e.instancesMu.RUnlock()
	ent, ok := e.instances[instanceID]
	return ent, ok
}

// StartWorkflow implements §4.2's start_workflow.
func (e *Engine) StartWorkflow(ctx context.Context, workflowID, userID string, inputs map[string]any) (string, error) {
	def, ok := e.defs.get(workflowID)
	if !ok {
		return "", ErrWorkflowNotFound
	}
	if _, ok := def.Nodes[def.InitialNodeID]; !ok {
		return "", ErrNodeNotFound
	}

	responses := deepCopyMap(def.Responses)
	for k, v := range inputs {
		responses[k] = v
	}

	id, err := newID()
	if err != nil {
		return "", err
	}
	now := time.Now()
	st := &WorkflowState{
		WorkflowID:    workflowID,
		InstanceID:    id,
		UserID:        userID,
		CurrentNodeID: def.InitialNodeID,
		Responses:     responses,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	e.instancesMu.Lock()
	e.instances[id] = &instanceEntry{state: st}
	e.instancesMu.Unlock()

	e.persist(ctx, st)

	res, err := resourceFromState(def, st)
	if err == nil {
		e.bus.Emit(emit.Event{Kind: emit.WorkflowStarted, At: now, WorkflowID: workflowID, InstanceID: id, Resource: res})
	}
	return id, nil
}

// GetWorkflowResource implements §4.2's get_workflow_resource.
func (e *Engine) GetWorkflowResource(instanceID string) (*WorkflowResource, error) {
	ent, ok := e.getEntry(instanceID)
	if !ok {
		return nil, ErrWorkflowInstanceNotFound
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	def, ok := e.defs.get(ent.state.WorkflowID)
	if !ok {
		return nil, ErrWorkflowNotFound
	}
	return resourceFromState(def, ent.state)
}

// ProcessActionKind discriminates ProcessAction's possible outcomes (§4.3).
type ProcessActionKind string

const (
	Advanced                    ProcessActionKind = "Advanced"
	WorkflowCompleted           ProcessActionKind = "WorkflowCompleted"
	WorkflowCancelled           ProcessActionKind = "WorkflowCancelled"
	ServerActionStarted         ProcessActionKind = "ServerActionStarted"
	ExternalServerActionStarted ProcessActionKind = "ExternalServerActionStarted"
	StartNewWorkflowRequested   ProcessActionKind = "StartNewWorkflowRequested"
)

// ProcessActionResult is what ProcessAction returns (§4.3). Field meaning
// depends on Kind; unused fields are zero.
type ProcessActionResult struct {
	Kind ProcessActionKind

	// Responses holds the final response map, set only for WorkflowCompleted.
	Responses map[string]any

	// ActionID is the resolved server action ID, set for ServerActionStarted
	// and ExternalServerActionStarted.
	ActionID string

	// Token correlates an ExternalServerActionStarted result with the
	// eventual RespondServerAction call.
	Token string

	// WorkflowID is the owning instance's workflow ID for
	// ServerActionStarted/ExternalServerActionStarted, or the workflow ID
	// to start for StartNewWorkflowRequested.
	WorkflowID string

	// UserID is set for StartNewWorkflowRequested.
	UserID string
}

// ProcessAction implements §4.3's process_action.
func (e *Engine) ProcessAction(ctx context.Context, instanceID, actionID string, inputs map[string]any) (ProcessActionResult, error) {
	ent, ok := e.getEntry(instanceID)
	if !ok {
		return ProcessActionResult{}, ErrWorkflowInstanceNotFound
	}

	ent.mu.Lock()

	if ent.state.Completed {
		ent.mu.Unlock()
		return ProcessActionResult{}, ErrWorkflowAlreadyCompleted
	}

	def, ok := e.defs.get(ent.state.WorkflowID)
	if !ok {
		ent.mu.Unlock()
		return ProcessActionResult{}, ErrWorkflowNotFound
	}

	node, ok := def.Nodes[ent.state.CurrentNodeID]
	if !ok {
		ent.mu.Unlock()
		return ProcessActionResult{}, ErrNodeNotFound
	}

	var action *WorkflowAction
	for i := range node.Actions {
		if node.Actions[i].ID == actionID {
			action = &node.Actions[i]
			break
		}
	}
	if action == nil {
		ent.mu.Unlock()
		return ProcessActionResult{}, ErrActionNotFound
	}

	// read-clone-mutate-write: the clone is only committed on success (§7).
	next := ent.state.clone()
	for k, v := range inputs {
		next.Responses[k] = v
	}

	var result ProcessActionResult
	var externalToken, externalActionID string

	switch action.ActionType {
	case ActionNextNode:
		var target string
		if action.Target != "" {
			if _, ok := def.Nodes[action.Target]; !ok {
				ent.mu.Unlock()
				return ProcessActionResult{}, ErrNodeNotFound
			}
			target = action.Target
		} else {
			child, ok := SelectChild(def, next.CurrentNodeID, next.Responses)
			if !ok {
				ent.mu.Unlock()
				return ProcessActionResult{}, ErrNodeNotFound
			}
			target = child
		}
		next.NodeHistory = append(next.NodeHistory, next.CurrentNodeID)
		next.CurrentNodeID = target
		result = ProcessActionResult{Kind: Advanced}

	case ActionPreviousNode:
		if len(next.NodeHistory) == 0 {
			ent.mu.Unlock()
			return ProcessActionResult{}, ErrInvalidState
		}
		last := next.NodeHistory[len(next.NodeHistory)-1]
		next.NodeHistory = next.NodeHistory[:len(next.NodeHistory)-1]
		next.CurrentNodeID = last
		result = ProcessActionResult{Kind: Advanced}

	case ActionSubmit:
		next.Completed = true
		result = ProcessActionResult{Kind: WorkflowCompleted, Responses: deepCopyMap(next.Responses)}

	case ActionCancel:
		next.Completed = true
		result = ProcessActionResult{Kind: WorkflowCancelled}

	case ActionRunServerAction:
		realID := action.ID
		if action.Target != "" {
			if ref, ok := def.ServerActions[action.Target]; ok {
				realID = ref.ID
			}
		}
		switch externalID := namespacedExternalActionID(next.UserID, realID); {
		case e.actions.isExternal(externalID):
			token, err := newID()
			if err != nil {
				ent.mu.Unlock()
				return ProcessActionResult{}, err
			}
			externalToken, externalActionID = token, realID
			result = ProcessActionResult{Kind: ExternalServerActionStarted, Token: token, ActionID: realID, WorkflowID: next.WorkflowID}
		case e.actions.hasLocal(realID):
			result = ProcessActionResult{Kind: ServerActionStarted, ActionID: realID, WorkflowID: next.WorkflowID}
		default:
			ent.mu.Unlock()
			return ProcessActionResult{}, ErrServerActionNotFound
		}

	case ActionStartWorkflow:
		if action.Target == "" {
			ent.mu.Unlock()
			return ProcessActionResult{}, ErrInvalidState
		}
		if _, ok := e.defs.get(action.Target); !ok {
			ent.mu.Unlock()
			return ProcessActionResult{}, ErrWorkflowNotFound
		}
		result = ProcessActionResult{Kind: StartNewWorkflowRequested, WorkflowID: action.Target, UserID: next.UserID}

	default:
		ent.mu.Unlock()
		return ProcessActionResult{}, ErrActionNotFound
	}

	next.UpdatedAt = time.Now()
	ent.state = next
	e.persist(ctx, next)
	ent.mu.Unlock()

	if externalToken != "" {
		e.registerPendingExternal(externalToken, instanceID, next.WorkflowID, externalActionID)
		if res, err := resourceFromState(def, next); err == nil {
			e.bus.Emit(emit.Event{
				Kind: emit.ExternalServerActionRequest, At: next.UpdatedAt,
				WorkflowID: next.WorkflowID, InstanceID: instanceID,
				Token: externalToken, ActionID: externalActionID, Resource: res,
			})
		}
	}

	e.emitUpdated(ctx, def, next)
	e.checkForWaiting(ctx, instanceID)

	return result, nil
}

// ExecuteServerActionResult is the outcome of ExecuteServerAction /
// RespondServerAction applying a ServerActionResult.
type ExecuteServerActionResult struct {
	// NewInstanceID is set when the applied result started a nested
	// (StartAndWaitWorkflow) or sibling (StartNewWorkflow) instance.
	NewInstanceID string
	Completed     bool
}

// ExecuteServerAction implements §4.5's execute_server_action.
func (e *Engine) ExecuteServerAction(ctx context.Context, instanceID, workflowID, actionID string) (ExecuteServerActionResult, error) {
	handler, ok := e.actions.handler(actionID)
	if !ok {
		return ExecuteServerActionResult{}, ErrServerActionNotFound
	}

	ent, ok := e.getEntry(instanceID)
	if !ok {
		return ExecuteServerActionResult{}, ErrWorkflowInstanceNotFound
	}

	ent.mu.Lock()
	if ent.state.Completed {
		ent.mu.Unlock()
		return ExecuteServerActionResult{}, ErrWorkflowAlreadyCompleted
	}
	actx := ServerActionContext{
		WorkflowID: workflowID,
		ActionID:   actionID,
		InstanceID: instanceID,
		UserID:     ent.state.UserID,
		Inputs:     deepCopyMap(ent.state.Responses),
	}
	ent.mu.Unlock() // no engine mutex held while the handler runs (§5).

	result, err := handler(ctx, actx)
	if err != nil {
		return ExecuteServerActionResult{}, ServerActionFailed(err.Error())
	}
	return e.applyServerActionResult(ctx, instanceID, result)
}

// RespondServerAction delivers an externally-computed result for a pending
// ExternalServerActionRequest correlated by token (§6). Returns
// ErrServerActionNotFound if token is unknown or has already expired
// (§4.8: timeout without response leaves the instance untouched).
func (e *Engine) RespondServerAction(ctx context.Context, token string, result ServerActionResult) (ExecuteServerActionResult, error) {
	e.pendingMu.Lock()
	pe, ok := e.pendingExternal[token]
	if ok {
		delete(e.pendingExternal, token)
	}
	e.pendingMu.Unlock()
	if !ok {
		return ExecuteServerActionResult{}, ErrServerActionNotFound
	}
	if pe.timer != nil {
		pe.timer.Stop()
	}
	return e.applyServerActionResult(ctx, pe.instanceID, result)
}

func (e *Engine) registerPendingExternal(token, instanceID, workflowID, actionID string) {
	entry := &pendingExternalEntry{instanceID: instanceID, workflowID: workflowID, actionID: actionID}
	e.pendingMu.Lock()
	e.pendingExternal[token] = entry
	e.pendingMu.Unlock()

	entry.timer = time.AfterFunc(e.externalTimeout, func() {
		e.pendingMu.Lock()
		_, stillPending := e.pendingExternal[token]
		delete(e.pendingExternal, token)
		e.pendingMu.Unlock()
		if stillPending {
			log.Printf("engine: external server action %q for instance %s timed out after %s", actionID, instanceID, e.externalTimeout)
		}
	})
}

// applyServerActionResult is the shared tail of ExecuteServerAction and
// RespondServerAction: apply the handler's ServerActionResult to state
// (§4.5's "Result application" table), persist, emit, and resume waiters.
func (e *Engine) applyServerActionResult(ctx context.Context, instanceID string, result ServerActionResult) (ExecuteServerActionResult, error) {
	if sibling, ok := result.(StartNewWorkflow); ok {
		// Creates a sibling workflow with no suspension of the caller; the
		// calling instance's state is untouched (§4.5).
		ent, ok := e.getEntry(instanceID)
		if !ok {
			return ExecuteServerActionResult{}, ErrWorkflowInstanceNotFound
		}
		ent.mu.Lock()
		userID := ent.state.UserID
		ent.mu.Unlock()

		siblingID, err := e.StartWorkflow(ctx, sibling.WorkflowID, userID, sibling.Inputs)
		if err != nil {
			return ExecuteServerActionResult{}, err
		}
		return ExecuteServerActionResult{NewInstanceID: siblingID}, nil
	}

	ent, ok := e.getEntry(instanceID)
	if !ok {
		return ExecuteServerActionResult{}, ErrWorkflowInstanceNotFound
	}

	ent.mu.Lock()
	if ent.state.Completed {
		ent.mu.Unlock()
		return ExecuteServerActionResult{}, ErrWorkflowAlreadyCompleted
	}
	next := ent.state.clone()
	def, ok := e.defs.get(next.WorkflowID)
	if !ok {
		ent.mu.Unlock()
		return ExecuteServerActionResult{}, ErrWorkflowNotFound
	}

	var startNested *StartAndWaitWorkflow
	var waitPred *WaitForPredicate

	switch r := result.(type) {
	case UpdateResponses:
		for k, v := range r.Responses {
			next.Responses[k] = v
		}
		child, ok := SelectChild(def, next.CurrentNodeID, next.Responses)
		if !ok {
			ent.mu.Unlock()
			return ExecuteServerActionResult{}, ErrNodeNotFound
		}
		next.NodeHistory = append(next.NodeHistory, next.CurrentNodeID)
		next.CurrentNodeID = child

	case NextPage:
		if _, ok := def.Nodes[r.PageID]; !ok {
			ent.mu.Unlock()
			return ExecuteServerActionResult{}, ErrNodeNotFound
		}
		next.NodeHistory = append(next.NodeHistory, next.CurrentNodeID)
		next.CurrentNodeID = r.PageID

	case CompleteWorkflow:
		for k, v := range r.Responses {
			next.Responses[k] = v
		}
		next.CompleteMessage = r.Message
		next.Completed = true

	case CancelWorkflow:
		next.Completed = true

	case StartAndWaitWorkflow:
		next.Waiting = true
		rr := r
		startNested = &rr

	case WaitForPredicate:
		next.Waiting = true
		rr := r
		waitPred = &rr

	default:
		ent.mu.Unlock()
		return ExecuteServerActionResult{}, ServerActionFailed("unknown server action result type")
	}

	next.UpdatedAt = time.Now()
	ent.state = next
	e.persist(ctx, next)
	ent.mu.Unlock()

	var out ExecuteServerActionResult

	if startNested != nil {
		nestedID, err := e.StartWorkflow(ctx, startNested.DefinitionID, next.UserID, startNested.Inputs)
		if err != nil {
			return ExecuteServerActionResult{}, err
		}
		e.waitRespMu.Lock()
		e.waitingForResponse[nestedID] = waitResponseEntry{waiterID: instanceID, injectKey: startNested.InjectResponseAs}
		e.waitRespMu.Unlock()
		out.NewInstanceID = nestedID
	}

	if waitPred != nil {
		e.waitPredMu.Lock()
		e.waitingForPredicate[instanceID] = waitPredicateEntry{predicate: waitPred.Predicate, injectKey: waitPred.InjectResponseAs}
		e.waitPredMu.Unlock()
	}

	e.emitUpdated(ctx, def, next)
	e.checkForWaiting(ctx, instanceID)

	out.Completed = next.Completed
	return out, nil
}

// checkForWaiting implements §4.5's resume algorithm. It projects
// instanceID's resource and, only if that projection reports Completed
// (which includes the §4.2 terminal-leaf auto-complete derivation, not just
// the raw Completed flag), resumes every instance waiting on it.
func (e *Engine) checkForWaiting(ctx context.Context, instanceID string) {
	ent, ok := e.getEntry(instanceID)
	if !ok {
		return
	}
	ent.mu.Lock()
	def, ok := e.defs.get(ent.state.WorkflowID)
	if !ok {
		ent.mu.Unlock()
		return
	}
	res, err := resourceFromState(def, ent.state)
	userID := ent.state.UserID
	responses := deepCopyMap(ent.state.Responses)
	ent.mu.Unlock()
	if err != nil || !res.Completed {
		return
	}

	e.waitRespMu.Lock()
	respEntry, hasResp := e.waitingForResponse[instanceID]
	if hasResp {
		delete(e.waitingForResponse, instanceID)
	}
	e.waitRespMu.Unlock()
	if hasResp {
		e.resumeWaiter(ctx, respEntry.waiterID, respEntry.injectKey, responses)
	}

	e.waitPredMu.Lock()
	var waiterIDs []string
	var injectKeys []string
	for waiterID, pe := range e.waitingForPredicate {
		if pe.predicate.holds(userID) {
			waiterIDs = append(waiterIDs, waiterID)
			injectKeys = append(injectKeys, pe.injectKey)
		}
	}
	for _, id := range waiterIDs {
		delete(e.waitingForPredicate, id)
	}
	e.waitPredMu.Unlock()

	for i, waiterID := range waiterIDs {
		e.resumeWaiter(ctx, waiterID, injectKeys[i], responses)
	}
}

// resumeWaiter clears a suspended instance's Waiting flag, injects the
// completed instance's responses if requested, and advances via the
// child-selection rule (§4.5 step 2/3).
func (e *Engine) resumeWaiter(ctx context.Context, waiterID, injectKey string, completedResponses map[string]any) {
	ent, ok := e.getEntry(waiterID)
	if !ok {
		return
	}
	ent.mu.Lock()
	if ent.state.Completed {
		ent.mu.Unlock()
		return
	}
	next := ent.state.clone()
	def, ok := e.defs.get(next.WorkflowID)
	if !ok {
		ent.mu.Unlock()
		return
	}

	if injectKey != "" {
		next.Responses[injectKey] = deepCopyMap(completedResponses)
	}
	next.Waiting = false
	if child, ok := SelectChild(def, next.CurrentNodeID, next.Responses); ok {
		next.NodeHistory = append(next.NodeHistory, next.CurrentNodeID)
		next.CurrentNodeID = child
	}
	next.UpdatedAt = time.Now()
	ent.state = next
	e.persist(ctx, next)
	ent.mu.Unlock()

	e.emitUpdated(ctx, def, next)
	e.checkForWaiting(ctx, waiterID)
}

func (e *Engine) emitUpdated(ctx context.Context, def *WorkflowDefinition, st *WorkflowState) {
	_ = ctx
	res, err := resourceFromState(def, st)
	if err != nil {
		return
	}
	e.bus.Emit(emit.Event{Kind: emit.WorkflowUpdated, At: st.UpdatedAt, WorkflowID: st.WorkflowID, InstanceID: st.InstanceID, Resource: res})
}

func (e *Engine) persist(ctx context.Context, st *WorkflowState) {
	_ = e.audit.Save(ctx, store.Record{
		WorkflowID:      st.WorkflowID,
		InstanceID:      st.InstanceID,
		UserID:          st.UserID,
		CurrentNodeID:   st.CurrentNodeID,
		NodeHistory:     append([]string(nil), st.NodeHistory...),
		Responses:       deepCopyMap(st.Responses),
		Completed:       st.Completed,
		Waiting:         st.Waiting,
		CompleteMessage: st.CompleteMessage,
		CreatedAt:       st.CreatedAt,
		UpdatedAt:       st.UpdatedAt,
	})
}

// newID returns a time-ordered unique identifier (UUIDv7), satisfying
// §4.2's "Ulid or equivalent time-ordered unique ID" requirement; it also
// backs ExternalServerActionStarted correlation tokens.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
