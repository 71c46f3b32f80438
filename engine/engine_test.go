package engine

import (
	"context"
	"testing"
)

// buildLinearDef registers a three-node workflow: "go" moves start -> middle,
// where "finish" submits and "back" returns to start. "end" has no actions
// (a terminal leaf, auto-completes per §4.2) and no action leads to it.
func buildLinearDef(t *testing.T, eng *Engine, owner string) string {
	t.Helper()
	def := &WorkflowDefinition{
		InitialNodeID: "start",
		Nodes: map[string]*WorkflowNode{
			"start": {
				ID: "start",
				Actions: []WorkflowAction{
					{ID: "go", ActionType: ActionNextNode, Target: "middle"},
					{ID: "cancel", ActionType: ActionCancel},
				},
			},
			"middle": {
				ID: "middle",
				Actions: []WorkflowAction{
					{ID: "finish", ActionType: ActionSubmit},
					{ID: "back", ActionType: ActionPreviousNode},
				},
			},
			"end": {ID: "end"},
		},
	}
	id, err := eng.RegisterDefinition(owner, "linear", def)
	if err != nil {
		t.Fatalf("RegisterDefinition: %v", err)
	}
	return id
}

func TestStartWorkflowNodeInvariant(t *testing.T) {
	eng := New(nil)
	wfID := buildLinearDef(t, eng, "owner-1")

	instanceID, err := eng.StartWorkflow(context.Background(), wfID, "user-1", nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}
	res, err := eng.GetWorkflowResource(instanceID)
	if err != nil {
		t.Fatalf("GetWorkflowResource: %v", err)
	}
	if res.CurrentNodeID != "start" {
		t.Fatalf("expected to start at 'start', got %q", res.CurrentNodeID)
	}
	if res.Node == nil || res.Node.ID != res.CurrentNodeID {
		t.Fatal("projected Node must match CurrentNodeID")
	}
}

func TestProcessActionHistoryPushPopSymmetry(t *testing.T) {
	eng := New(nil)
	wfID := buildLinearDef(t, eng, "owner-1")
	ctx := context.Background()

	instanceID, err := eng.StartWorkflow(ctx, wfID, "user-1", nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}

	if _, err := eng.ProcessAction(ctx, instanceID, "go", nil); err != nil {
		t.Fatalf("ProcessAction(go): %v", err)
	}
	res, _ := eng.GetWorkflowResource(instanceID)
	if res.CurrentNodeID != "middle" {
		t.Fatalf("expected 'middle', got %q", res.CurrentNodeID)
	}

	if _, err := eng.ProcessAction(ctx, instanceID, "back", nil); err != nil {
		t.Fatalf("ProcessAction(back): %v", err)
	}
	res, _ = eng.GetWorkflowResource(instanceID)
	if res.CurrentNodeID != "start" {
		t.Fatalf("expected history pop to return to 'start', got %q", res.CurrentNodeID)
	}
}

func TestProcessActionCompletionMonotonicity(t *testing.T) {
	eng := New(nil)
	wfID := buildLinearDef(t, eng, "owner-1")
	ctx := context.Background()

	instanceID, err := eng.StartWorkflow(ctx, wfID, "user-1", nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}
	if _, err := eng.ProcessAction(ctx, instanceID, "go", nil); err != nil {
		t.Fatalf("ProcessAction(go): %v", err)
	}
	result, err := eng.ProcessAction(ctx, instanceID, "finish", nil)
	if err != nil {
		t.Fatalf("ProcessAction(finish): %v", err)
	}
	if result.Kind != WorkflowCompleted {
		t.Fatalf("expected WorkflowCompleted, got %v", result.Kind)
	}

	if _, err := eng.ProcessAction(ctx, instanceID, "finish", nil); err != ErrWorkflowAlreadyCompleted {
		t.Fatalf("expected ErrWorkflowAlreadyCompleted on a second action, got %v", err)
	}
}

func TestProcessActionUnknownInstanceAndAction(t *testing.T) {
	eng := New(nil)
	wfID := buildLinearDef(t, eng, "owner-1")
	ctx := context.Background()

	if _, err := eng.ProcessAction(ctx, "ghost", "go", nil); err != ErrWorkflowInstanceNotFound {
		t.Fatalf("expected ErrWorkflowInstanceNotFound, got %v", err)
	}

	instanceID, err := eng.StartWorkflow(ctx, wfID, "user-1", nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}
	if _, err := eng.ProcessAction(ctx, instanceID, "no-such-action", nil); err != ErrActionNotFound {
		t.Fatalf("expected ErrActionNotFound, got %v", err)
	}
}

func TestTerminalLeafAutoCompletes(t *testing.T) {
	eng := New(nil)
	def := &WorkflowDefinition{
		InitialNodeID: "only",
		Nodes: map[string]*WorkflowNode{
			"only": {ID: "only"}, // zero actions
		},
	}
	wfID, err := eng.RegisterDefinition("owner-1", "bare", def)
	if err != nil {
		t.Fatalf("RegisterDefinition: %v", err)
	}
	instanceID, err := eng.StartWorkflow(context.Background(), wfID, "user-1", nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}
	res, err := eng.GetWorkflowResource(instanceID)
	if err != nil {
		t.Fatalf("GetWorkflowResource: %v", err)
	}
	if !res.Completed {
		t.Fatal("expected a node with zero actions to project as completed")
	}
}

func TestRunServerActionLocalVsExternalVsMissing(t *testing.T) {
	eng := New(nil)
	def := &WorkflowDefinition{
		InitialNodeID: "start",
		Nodes: map[string]*WorkflowNode{
			"start": {
				ID: "start",
				Actions: []WorkflowAction{
					{ID: "run-local", ActionType: ActionRunServerAction, Target: "local_ref"},
					{ID: "run-external", ActionType: ActionRunServerAction, Target: "external_ref"},
					{ID: "run-missing", ActionType: ActionRunServerAction, Target: "missing_ref"},
				},
			},
		},
		ServerActions: map[string]ServerActionRef{
			"local_ref":    {ID: "do_local"},
			"external_ref": {ID: "do_external"},
		},
	}
	eng.RegisterServerAction("do_local", func(_ context.Context, _ ServerActionContext) (ServerActionResult, error) {
		return CancelWorkflow{}, nil
	})
	// Registration validates against the definition owner's external set;
	// dispatch checks the instance user's, so both are registered.
	eng.RegisterExternalServerAction("owner-1", "do_external")
	eng.RegisterExternalServerAction("user-1", "do_external")

	// Clearing the target makes "run-missing" resolve to its own action ID,
	// which is registered nowhere: exercises the ServerActionNotFound branch.
	def.Nodes["start"].Actions[2].Target = ""

	wfID, err := eng.RegisterDefinition("owner-1", "dispatch", def)
	if err != nil {
		t.Fatalf("RegisterDefinition: %v", err)
	}
	ctx := context.Background()
	instanceID, err := eng.StartWorkflow(ctx, wfID, "user-1", nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}

	t.Run("external action is dispatched with a token", func(t *testing.T) {
		result, err := eng.ProcessAction(ctx, instanceID, "run-external", nil)
		if err != nil {
			t.Fatalf("ProcessAction(run-external): %v", err)
		}
		if result.Kind != ExternalServerActionStarted || result.Token == "" {
			t.Fatalf("expected ExternalServerActionStarted with a token, got %+v", result)
		}
	})

	t.Run("local action is dispatched without execution", func(t *testing.T) {
		result, err := eng.ProcessAction(ctx, instanceID, "run-local", nil)
		if err != nil {
			t.Fatalf("ProcessAction(run-local): %v", err)
		}
		if result.Kind != ServerActionStarted || result.ActionID != "do_local" {
			t.Fatalf("expected ServerActionStarted for do_local, got %+v", result)
		}
	})

	t.Run("unregistered action fails lookup", func(t *testing.T) {
		if _, err := eng.ProcessAction(ctx, instanceID, "run-missing", nil); err != ErrServerActionNotFound {
			t.Fatalf("expected ErrServerActionNotFound, got %v", err)
		}
	})
}

func TestExecuteServerActionAppliesUpdateResponses(t *testing.T) {
	eng := New(nil)
	def := &WorkflowDefinition{
		InitialNodeID: "start",
		Nodes: map[string]*WorkflowNode{
			"start": {
				ID: "start",
				Actions: []WorkflowAction{
					{ID: "run", ActionType: ActionRunServerAction},
				},
			},
			"revealed": {ID: "revealed", ParentID: "start", Condition: &NodeCondition{Kind: ConditionResponseExists, Path: "role"}},
		},
	}
	def.SetNodeOrder("start", "revealed")
	eng.RegisterServerAction("run", func(_ context.Context, actx ServerActionContext) (ServerActionResult, error) {
		return UpdateResponses{Responses: map[string]any{"role": "Werewolf"}}, nil
	})
	wfID, err := eng.RegisterDefinition("owner-1", "reveal", def)
	if err != nil {
		t.Fatalf("RegisterDefinition: %v", err)
	}
	ctx := context.Background()
	instanceID, err := eng.StartWorkflow(ctx, wfID, "user-1", nil)
	if err != nil {
		t.Fatalf("StartWorkflow: %v", err)
	}
	dispatch, err := eng.ProcessAction(ctx, instanceID, "run", nil)
	if err != nil {
		t.Fatalf("ProcessAction: %v", err)
	}
	if _, err := eng.ExecuteServerAction(ctx, instanceID, wfID, dispatch.ActionID); err != nil {
		t.Fatalf("ExecuteServerAction: %v", err)
	}
	res, err := eng.GetWorkflowResource(instanceID)
	if err != nil {
		t.Fatalf("GetWorkflowResource: %v", err)
	}
	if res.CurrentNodeID != "revealed" {
		t.Fatalf("expected advance to 'revealed' via child-selection, got %q", res.CurrentNodeID)
	}
	if res.Responses["role"] != "Werewolf" {
		t.Fatalf("expected injected response, got %+v", res.Responses)
	}
}
