package role

import (
	"sync"

	"github.com/duskcourt/nightloom/engine"
)

// Player mirrors spec.md §3's Player: identity, the role card dealt at
// setup, an optional copied card (e.g. after a Doppelgänger-style swap),
// an alive flag, and an optional middle-card position for roles that were
// placed face-down instead of dealt to a seat.
type Player struct {
	ID   string
	Name string

	OriginalCard *Card
	CopiedCard   *Card

	Alive bool

	MiddlePosition *int
}

// MiddleCard is one of the face-down cards in the middle — not bound to a
// seated player, but still a card some role's ability may inspect or swap.
type MiddleCard struct {
	Position int
	Card     *Card
}

type sabotageKey struct {
	userID     string
	workflowID string
}

// Game is the external GameState facade (§3): the player roster, middle
// cards, per-user RoleContexts, sabotage-input overrides, and a handle to
// the workflow engine driving every role's workflows. Guarded by its own
// mutex, independent of and never held across any engine call (§5).
type Game struct {
	Engine *engine.Engine

	mu       sync.Mutex
	players  map[string]*Player
	middles  []*MiddleCard
	contexts map[string]*Context
	sabotage map[sabotageKey]map[string]any
}

// NewGame builds an empty Game driven by eng.
func NewGame(eng *engine.Engine) *Game {
	return &Game{
		Engine:   eng,
		players:  make(map[string]*Player),
		contexts: make(map[string]*Context),
		sabotage: make(map[sabotageKey]map[string]any),
	}
}

// Seat adds or replaces a player.
func (g *Game) Seat(p *Player) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.players[p.ID] = p
}

// Player looks up a seated player by ID.
func (g *Game) Player(id string) (*Player, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.players[id]
	return p, ok
}

// Players returns a snapshot of every seated player. Order is unspecified.
func (g *Game) Players() []*Player {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Player, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, p)
	}
	return out
}

// SetMiddles replaces the face-down middle cards.
func (g *Game) SetMiddles(cards []*MiddleCard) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.middles = append([]*MiddleCard(nil), cards...)
}

// Middles returns a snapshot of the current middle cards.
func (g *Game) Middles() []*MiddleCard {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*MiddleCard(nil), g.middles...)
}

// ContextFor returns the shared RoleContext for userID, creating it on
// first use (§4.7 step 3).
func (g *Game) ContextFor(userID string) *Context {
	g.mu.Lock()
	defer g.mu.Unlock()
	rc, ok := g.contexts[userID]
	if !ok {
		rc = &Context{Game: g, UserID: userID}
		g.contexts[userID] = rc
	}
	return rc
}

// SetSabotageInputs records an input override a saboteur role (e.g. Witch)
// installs for a specific (user, workflow) pair, to be consulted the next
// time that workflow's night_ability or handler runs (§3: "per-(user,
// workflow) sabotage input overrides").
func (g *Game) SetSabotageInputs(userID, workflowID string, inputs map[string]any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sabotage[sabotageKey{userID, workflowID}] = inputs
}

// SabotageInputs returns and clears any override installed for (userID,
// workflowID). One-shot: consumed by the first caller to observe it.
func (g *Game) SabotageInputs(userID, workflowID string) (map[string]any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := sabotageKey{userID, workflowID}
	v, ok := g.sabotage[key]
	if ok {
		delete(g.sabotage, key)
	}
	return v, ok
}

// EffectiveCard returns the card a player currently acts as: the copied
// card if a swap assigned one, else the original deal.
func EffectiveCard(p *Player) *Card {
	if p.CopiedCard != nil {
		return p.CopiedCard
	}
	return p.OriginalCard
}
