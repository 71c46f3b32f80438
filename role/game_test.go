package role

import (
	"testing"

	"github.com/duskcourt/nightloom/engine"
)

func TestEffectiveCardPrefersCopiedCard(t *testing.T) {
	original := &Card{Name: "Villager"}
	copied := &Card{Name: "Werewolf"}

	p := &Player{ID: "p1", OriginalCard: original}
	if got := EffectiveCard(p); got != original {
		t.Fatalf("expected original card before any swap, got %v", got)
	}

	p.CopiedCard = copied
	if got := EffectiveCard(p); got != copied {
		t.Fatalf("expected copied card after swap, got %v", got)
	}
}

func TestGameSeatAndLookup(t *testing.T) {
	g := NewGame(engine.New(nil))
	g.Seat(&Player{ID: "p1", Name: "Alice", Alive: true})

	p, ok := g.Player("p1")
	if !ok || p.Name != "Alice" {
		t.Fatalf("expected to find seated player p1, got %v ok=%v", p, ok)
	}

	if _, ok := g.Player("missing"); ok {
		t.Fatal("expected no player for unknown id")
	}

	if len(g.Players()) != 1 {
		t.Fatalf("expected 1 seated player, got %d", len(g.Players()))
	}
}

func TestGameSabotageInputsOneShotConsume(t *testing.T) {
	g := NewGame(engine.New(nil))
	g.SetSabotageInputs("user-1", "wf-1", map[string]any{"override": true})

	got, ok := g.SabotageInputs("user-1", "wf-1")
	if !ok || got["override"] != true {
		t.Fatalf("expected sabotage override on first read, got %v ok=%v", got, ok)
	}

	if _, ok := g.SabotageInputs("user-1", "wf-1"); ok {
		t.Fatal("sabotage input must be consumed after first read")
	}
}

func TestGameContextForIsStableAcrossCalls(t *testing.T) {
	g := NewGame(engine.New(nil))
	rc1 := g.ContextFor("user-1")
	rc2 := g.ContextFor("user-1")
	if rc1 != rc2 {
		t.Fatal("expected ContextFor to return the same RoleContext on repeated calls")
	}
}

func TestGameMiddles(t *testing.T) {
	g := NewGame(engine.New(nil))
	card := &Card{Name: "Seer"}
	g.SetMiddles([]*MiddleCard{{Position: 0, Card: card}})

	middles := g.Middles()
	if len(middles) != 1 || middles[0].Card != card {
		t.Fatalf("expected one middle card, got %v", middles)
	}
}
