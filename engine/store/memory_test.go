package store

import (
	"context"
	"testing"
)

func TestMemoryStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := Record{InstanceID: "i1", WorkflowID: "wf", UserID: "u1", CurrentNodeID: "n1"}
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "i1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.CurrentNodeID != "n1" {
		t.Fatalf("got %+v", got)
	}

	if _, err := s.Load(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	list, err := s.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List: %v %v", list, err)
	}
}
