package role

import "context"

// Alliance is a role card's faction tag (§3).
type Alliance string

const (
	Werewolf Alliance = "Werewolf"
	Villager Alliance = "Villager"
)

// Kickoff is what an Ability returns to request a workflow start for the
// acting player. A nil *Kickoff from Ability means the role skips its turn
// (§6: "night_ability returning None").
type Kickoff struct {
	DefinitionID string
	Inputs       map[string]any
}

// RegisterFunc installs a role's workflow definitions and server actions
// against a Game. The night scheduler invokes it exactly once per distinct
// card present in the game, regardless of how many players or middle cards
// carry it (§4.7 step 1).
type RegisterFunc func(ctx context.Context, game *Game) error

// Ability is invoked once per night for each player currently holding this
// card, in ascending-priority order (§4.7 step 3).
type Ability func(ctx context.Context, rc *Context) (*Kickoff, error)

// Card is a role's static descriptor (§3, §6). Name must be unique within a
// game; the scheduler keys its register-once bookkeeping on it.
type Card struct {
	Name     string
	Alliance Alliance
	Priority int

	// Register installs this card's definitions/handlers. Nil if the card
	// needs nothing beyond what's already registered by another card.
	Register RegisterFunc

	// NightAbility is the role's turn action. Nil means the card never
	// takes a turn (e.g. a pure-Villager card with no night power).
	NightAbility Ability

	// ShouldAct is an optional additional gate the scheduler evaluates
	// before invoking NightAbility each night. Nil means always evaluate
	// NightAbility (which may still itself decide to skip by returning a
	// nil Kickoff). Kept distinct from NightAbility's own None-return per
	// spec.md §9: "the spec treats role-level conditions as optional and
	// evaluates them when present."
	ShouldAct func(rc *Context) bool
}
