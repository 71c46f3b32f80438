package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// ConditionKind discriminates the NodeCondition variants (§3).
type ConditionKind string

const (
	ConditionAlways              ConditionKind = "Always"
	ConditionResponseExists      ConditionKind = "ResponseExists"
	ConditionResponseEquals      ConditionKind = "ResponseEquals"
	ConditionResponseListNotEmpty ConditionKind = "ResponseListNotEmpty"
)

// NodeCondition gates whether a child node is selected by the child-selection
// rule (§4.4). It is encoded on the wire as a JSON-tagged enum:
//
//	{"type": "Always"}
//	{"type": "ResponseExists", "path": "reveal_player"}
//	{"type": "ResponseEquals", "path": "selected_card.type", "value": "Player"}
//	{"type": "ResponseListNotEmpty", "path": "reveal_middle_one"}
type NodeCondition struct {
	Kind  ConditionKind
	Path  string
	Value any
}

// nodeConditionWire is the JSON envelope NodeCondition marshals to/from.
type nodeConditionWire struct {
	Type  ConditionKind `json:"type"`
	Path  string        `json:"path,omitempty"`
	Value any           `json:"value,omitempty"`
}

// MarshalJSON implements the tagged-union encoding.
func (c NodeCondition) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeConditionWire{Type: c.Kind, Path: c.Path, Value: c.Value})
}

// UnmarshalJSON implements the tagged-union decoding.
func (c *NodeCondition) UnmarshalJSON(data []byte) error {
	var w nodeConditionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Type == "" {
		w.Type = ConditionAlways
	}
	switch w.Type {
	case ConditionAlways, ConditionResponseExists, ConditionResponseEquals, ConditionResponseListNotEmpty:
	default:
		return fmt.Errorf("engine: unknown condition type %q", w.Type)
	}
	c.Kind = w.Type
	c.Path = w.Path
	c.Value = w.Value
	return nil
}

// EvaluateCondition implements evaluate_condition (§4.4). A nil condition is
// equivalent to Always.
func EvaluateCondition(cond *NodeCondition, responses map[string]any) bool {
	if cond == nil {
		return true
	}
	switch cond.Kind {
	case ConditionAlways, "":
		return true
	case ConditionResponseExists:
		_, ok := lookupDotted(responses, cond.Path)
		return ok
	case ConditionResponseEquals:
		v, ok := lookupDotted(responses, cond.Path)
		if !ok {
			return false
		}
		return jsonDeepEqual(v, cond.Value)
	case ConditionResponseListNotEmpty:
		v, ok := lookupDotted(responses, cond.Path)
		if !ok {
			return false
		}
		list, ok := v.([]any)
		return ok && len(list) > 0
	default:
		return false
	}
}

// lookupDotted resolves a dotted path against a response map. It starts at
// the top-level key equal to the first segment, then descends only through
// map[string]any values. Arrays and scalars terminate the walk as
// not-found if the path has remaining segments — this is deliberately a
// minimal, object-only descent (§4.4, §9): callers must not expect array
// indexing in dotted paths.
func lookupDotted(responses map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var cur any = responses
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// jsonDeepEqual compares two values as their JSON-equivalent forms would
// compare: maps and slices recursively, numbers by float64 value (so
// int(3) == float64(3)), everything else by reflect.DeepEqual.
func jsonDeepEqual(a, b any) bool {
	an, aIsNum := asFloat(a)
	bn, bIsNum := asFloat(b)
	if aIsNum && bIsNum {
		return an == bn
	}

	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !jsonDeepEqual(v, bvv) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !jsonDeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// SelectChild implements the child-selection rule (§4.4): iterate all nodes
// whose ParentID equals parentID in definition insertion order; return the
// first whose condition holds. Returns ("", false) if none matches.
func SelectChild(def *WorkflowDefinition, parentID string, responses map[string]any) (string, bool) {
	for _, id := range def.NodeOrder() {
		n := def.Nodes[id]
		if n == nil || n.ParentID != parentID {
			continue
		}
		if EvaluateCondition(n.Condition, responses) {
			return n.ID, true
		}
	}
	return "", false
}
