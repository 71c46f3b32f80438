package engine

import (
	"bytes"
	"encoding/json"
)

// WorkflowDefinition is an immutable (after registration) node graph: the
// declarative shape one role's interactive workflow takes. It is replaceable
// only by its owner (see Registry.RegisterDefinition).
type WorkflowDefinition struct {
	// ID is the namespaced identifier "user-<owner>-wf-<raw_id>", assigned
	// by RegisterDefinition. Zero value before registration.
	ID string `json:"id"`

	// OwnerID is the user that registered this definition. Re-registration
	// under the same raw ID must match OwnerID or registration fails.
	OwnerID string `json:"owner_id"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// InitialNodeID is the node a new instance starts at.
	InitialNodeID string `json:"initial_node_id"`

	// Nodes maps node ID to node definition.
	Nodes map[string]*WorkflowNode `json:"nodes"`

	// Responses seeds a new instance's response map before inputs supplied
	// to StartWorkflow are overlaid on top.
	Responses map[string]any `json:"responses,omitempty"`

	// ServerActions maps a declared local action ID (as referenced by a
	// WorkflowAction.Target for indirection) to the action descriptor
	// actually registered in the handler/external-action registries.
	ServerActions map[string]ServerActionRef `json:"server_actions,omitempty"`

	// nodeOrder preserves insertion order of Nodes for the child-selection
	// rule (§4.4), since Go map iteration order is not stable. Populated by
	// UnmarshalJSON from the "nodes" object's key order when a definition is
	// decoded from the wire format, or by an explicit SetNodeOrder call for
	// definitions built as Go literals.
	nodeOrder []string
}

// UnmarshalJSON decodes a WorkflowDefinition from the wire format (§6),
// additionally capturing the "nodes" object's key order into nodeOrder so
// the child-selection rule (§4.4) sees the same deterministic order the
// definition was authored in, instead of falling back to Go's unordered
// map iteration. Callers that build a WorkflowDefinition as a Go literal
// (not via JSON) must still call SetNodeOrder themselves.
func (d *WorkflowDefinition) UnmarshalJSON(data []byte) error {
	type alias WorkflowDefinition
	aux := &struct {
		Nodes json.RawMessage `json:"nodes"`
		*alias
	}{alias: (*alias)(d)}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if aux.Nodes == nil {
		return nil
	}
	if err := json.Unmarshal(aux.Nodes, &d.Nodes); err != nil {
		return err
	}
	order, err := jsonObjectKeyOrder(aux.Nodes)
	if err != nil {
		return err
	}
	d.nodeOrder = order
	return nil
}

// jsonObjectKeyOrder returns the top-level key order of a JSON object,
// preserving duplicates/ordering exactly as encountered (encoding/json
// normally discards this).
func jsonObjectKeyOrder(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if _, ok := tok.(json.Delim); !ok {
		// null or a non-object value: no order to report.
		return nil, nil
	}

	var order []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		order = append(order, key)

		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// ServerActionRef names the action ID a definition's declared server_actions
// entry resolves to.
type ServerActionRef struct {
	ID string `json:"id"`
}

// SetNodeOrder records the insertion order of node IDs for the
// child-selection rule. Callers that build a WorkflowDefinition's Nodes map
// literal-style should call this with the same order they'd have inserted
// nodes in, since Go map literals have no inherent order.
func (d *WorkflowDefinition) SetNodeOrder(ids ...string) {
	d.nodeOrder = append([]string(nil), ids...)
}

// NodeOrder returns the recorded insertion order, falling back to the Nodes
// map's iteration order if none was set (or its length differs from Nodes);
// that fallback order is unspecified and may differ between calls.
func (d *WorkflowDefinition) NodeOrder() []string {
	if len(d.nodeOrder) == len(d.Nodes) {
		return d.nodeOrder
	}
	order := make([]string, 0, len(d.Nodes))
	for id := range d.Nodes {
		order = append(order, id)
	}
	return order
}

// WorkflowNode is one node in a WorkflowDefinition's graph.
type WorkflowNode struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Displays []Display       `json:"displays,omitempty"`
	Inputs   []Input         `json:"inputs,omitempty"`
	Actions  []WorkflowAction `json:"actions,omitempty"`

	// ParentID, when set, makes this node a candidate child considered by
	// the child-selection rule (§4.4) whenever the parent node is the
	// current node and a NextNode action without an explicit Target fires,
	// or a server action's UpdateResponses/NextPage-less advance fires.
	ParentID string `json:"parent_id,omitempty"`

	// Condition gates whether this node is selected as the parent's next
	// child. Nil is equivalent to Always.
	Condition *NodeCondition `json:"condition,omitempty"`
}

// Display is an opaque, role-defined widget descriptor. The engine never
// interprets Displays; rendering is an external collaborator's concern.
type Display struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Input is an opaque, role-defined input-field descriptor.
type Input struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// ActionType is the closed set of WorkflowAction behaviors (§4.3).
type ActionType string

const (
	ActionNextNode         ActionType = "NextNode"
	ActionPreviousNode     ActionType = "PreviousNode"
	ActionSubmit           ActionType = "Submit"
	ActionCancel           ActionType = "Cancel"
	ActionRunServerAction  ActionType = "RunServerAction"
	ActionStartWorkflow    ActionType = "StartWorkflow"
)

// WorkflowAction is a button a node displays; ProcessAction dispatches on
// ActionType (§4.3).
type WorkflowAction struct {
	ID    string `json:"id"`
	Label string `json:"label"`

	ActionType ActionType `json:"action_type"`

	// Target is interpreted per ActionType:
	//   NextNode: explicit next node ID (optional; absent means run the
	//     child-selection rule).
	//   RunServerAction: optional key into the definition's ServerActions
	//     map, dereferenced to the real action ID (§4.3).
	//   StartWorkflow: the workflow ID to start.
	Target string `json:"target,omitempty"`

	Style string `json:"style,omitempty"`
}
