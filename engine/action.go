package engine

import "context"

// ServerActionContext is passed to a registered ActionHandler when
// ExecuteServerAction invokes it (§3, §4.5). Inputs is a snapshot of the
// instance's response map taken at invocation time; mutating it has no
// effect on the instance.
type ServerActionContext struct {
	WorkflowID string
	ActionID   string
	InstanceID string
	UserID     string
	Inputs     map[string]any
}

// Get returns the value at a dotted path within Inputs, using the same
// object-only descent as the child-selection rule (§4.4).
func (c ServerActionContext) Get(path string) (any, bool) {
	return lookupDotted(c.Inputs, path)
}

// ActionHandler is the asynchronous resolver a role registers for a server
// action (§4.1, §6). It may hold and mutate external game state freely; the
// engine holds no mutex while the handler runs (§5).
type ActionHandler func(ctx context.Context, actx ServerActionContext) (ServerActionResult, error)

// ServerActionResult is the sum type a handler returns (§3). The concrete
// variants below are the only implementations; the unexported marker method
// closes the interface to this package's set.
type ServerActionResult interface {
	isServerActionResult()
}

// NextPage advances the instance straight to PageID, pushing the current
// node onto history first.
type NextPage struct {
	PageID string
}

// UpdateResponses merges Responses into the instance's response map, then
// advances via the child-selection rule (§4.4).
type UpdateResponses struct {
	Responses map[string]any
}

// CompleteWorkflow merges Responses into the instance, sets the completion
// message, and marks the instance completed.
type CompleteWorkflow struct {
	Responses map[string]any
	Message   string
}

// CancelWorkflow marks the instance completed without merging responses or
// setting a completion message.
type CancelWorkflow struct{}

// StartNewWorkflow starts a sibling workflow with no suspension of the
// calling instance; the new instance ID is emitted to the caller via the
// ExecuteServerAction return value, not applied to the calling instance.
type StartNewWorkflow struct {
	WorkflowID string
	Inputs     map[string]any
}

// StartAndWaitWorkflow starts a nested workflow and suspends the calling
// instance until it completes (§4.5). InjectResponseAs, if non-empty, is the
// response-map key the nested instance's final Responses are serialized
// into on resume. OnComplete is a reserved extension (§9): parsed, stored,
// never invoked by the resume path in this version.
type StartAndWaitWorkflow struct {
	DefinitionID     string
	Inputs           map[string]any
	InjectResponseAs string
	OnComplete       string
}

// WaitForPredicate suspends the calling instance until Predicate holds
// against some other instance's completion (§4.5). InjectResponseAs and
// OnComplete behave as in StartAndWaitWorkflow.
type WaitForPredicate struct {
	Predicate        WorkflowPredicate
	InjectResponseAs string
	OnComplete       string
}

func (NextPage) isServerActionResult()              {}
func (UpdateResponses) isServerActionResult()        {}
func (CompleteWorkflow) isServerActionResult()       {}
func (CancelWorkflow) isServerActionResult()         {}
func (StartNewWorkflow) isServerActionResult()       {}
func (StartAndWaitWorkflow) isServerActionResult()   {}
func (WaitForPredicate) isServerActionResult()       {}
