package engine

import "testing"

func TestEvaluateCondition(t *testing.T) {
	responses := map[string]any{
		"reveal_player": map[string]any{"name": "Alice", "role": "Seer"},
		"selected_card": map[string]any{"type": "Player"},
		"count":         3,
		"reveal_middle_one": []any{},
		"reveal_middle_two": []any{"werewolf"},
	}

	cases := []struct {
		name string
		cond *NodeCondition
		want bool
	}{
		{"nil is always", nil, true},
		{"explicit always", &NodeCondition{Kind: ConditionAlways}, true},
		{"exists present", &NodeCondition{Kind: ConditionResponseExists, Path: "reveal_player"}, true},
		{"exists missing", &NodeCondition{Kind: ConditionResponseExists, Path: "nope"}, false},
		{"exists nested present", &NodeCondition{Kind: ConditionResponseExists, Path: "reveal_player.name"}, true},
		{"exists nested missing", &NodeCondition{Kind: ConditionResponseExists, Path: "reveal_player.missing"}, false},
		{"equals match", &NodeCondition{Kind: ConditionResponseEquals, Path: "selected_card.type", Value: "Player"}, true},
		{"equals mismatch", &NodeCondition{Kind: ConditionResponseEquals, Path: "selected_card.type", Value: "Werewolf"}, false},
		{"equals numeric cross-type", &NodeCondition{Kind: ConditionResponseEquals, Path: "count", Value: float64(3)}, true},
		{"equals missing path", &NodeCondition{Kind: ConditionResponseEquals, Path: "missing", Value: "x"}, false},
		{"list not empty true", &NodeCondition{Kind: ConditionResponseListNotEmpty, Path: "reveal_middle_two"}, true},
		{"list not empty false (empty list)", &NodeCondition{Kind: ConditionResponseListNotEmpty, Path: "reveal_middle_one"}, false},
		{"list not empty missing path", &NodeCondition{Kind: ConditionResponseListNotEmpty, Path: "missing"}, false},
		{"list not empty wrong type", &NodeCondition{Kind: ConditionResponseListNotEmpty, Path: "count"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateCondition(tc.cond, responses)
			if got != tc.want {
				t.Errorf("EvaluateCondition(%+v) = %v, want %v", tc.cond, got, tc.want)
			}
		})
	}
}

func TestNodeConditionJSONRoundTrip(t *testing.T) {
	conds := []NodeCondition{
		{Kind: ConditionAlways},
		{Kind: ConditionResponseExists, Path: "reveal_player"},
		{Kind: ConditionResponseEquals, Path: "selected_card.type", Value: "Player"},
		{Kind: ConditionResponseListNotEmpty, Path: "reveal_middle_one"},
	}
	for _, c := range conds {
		data, err := c.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON(%+v): %v", c, err)
		}
		var back NodeCondition
		if err := back.UnmarshalJSON(data); err != nil {
			t.Fatalf("UnmarshalJSON(%s): %v", data, err)
		}
		if back.Kind != c.Kind || back.Path != c.Path {
			t.Errorf("round trip mismatch: got %+v, want %+v", back, c)
		}
	}
}

func TestSelectChild(t *testing.T) {
	def := &WorkflowDefinition{
		Nodes: map[string]*WorkflowNode{
			"root": {ID: "root"},
			"a":    {ID: "a", ParentID: "root", Condition: &NodeCondition{Kind: ConditionResponseEquals, Path: "pick", Value: "a"}},
			"b":    {ID: "b", ParentID: "root", Condition: &NodeCondition{Kind: ConditionResponseEquals, Path: "pick", Value: "b"}},
			"c":    {ID: "c", ParentID: "root"}, // Always, last in order
		},
	}
	def.SetNodeOrder("root", "a", "b", "c")

	t.Run("matches first satisfied condition in order", func(t *testing.T) {
		got, ok := SelectChild(def, "root", map[string]any{"pick": "b"})
		if !ok || got != "b" {
			t.Fatalf("got (%q, %v), want (\"b\", true)", got, ok)
		}
	})

	t.Run("falls through to unconditional node", func(t *testing.T) {
		got, ok := SelectChild(def, "root", map[string]any{"pick": "nothing"})
		if !ok || got != "c" {
			t.Fatalf("got (%q, %v), want (\"c\", true)", got, ok)
		}
	})

	t.Run("no children for unknown parent", func(t *testing.T) {
		_, ok := SelectChild(def, "orphan", nil)
		if ok {
			t.Fatal("expected no match for a parent with no children")
		}
	})
}
