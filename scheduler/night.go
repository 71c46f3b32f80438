// Package scheduler implements the night scheduler (spec.md §4.7): a
// priority-ordered, one-turn-per-role driver over a role.Game.
package scheduler

import (
	"container/heap"
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/duskcourt/nightloom/engine/emit"
	"github.com/duskcourt/nightloom/role"
)

// stage is one (player, card) pair waiting for its turn.
type stage struct {
	playerID string
	card     *role.Card
	seq      int // insertion order, for stable tie-breaking on Priority
}

// stageHeap orders stages ascending by card.Priority, breaking ties by
// insertion order — adapted from the teacher's workHeap min-heap-by-key
// idiom (graph/scheduler.go's OrderKey-ordered heap.Interface).
type stageHeap []stage

func (h stageHeap) Len() int { return len(h) }

func (h stageHeap) Less(i, j int) bool {
	if h[i].card.Priority != h[j].card.Priority {
		return h[i].card.Priority < h[j].card.Priority
	}
	return h[i].seq < h[j].seq
}

func (h stageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *stageHeap) Push(x any) { *h = append(*h, x.(stage)) }

func (h *stageHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Night is the night scheduler (§4.7). It is not safe to run Run
// concurrently with itself on the same Night; build a fresh Night (or
// serialize calls) per night.
type Night struct {
	game        *role.Game
	bus         *emit.Bus
	turnTimeout time.Duration

	registered map[string]bool

	metrics *metrics
}

// NewNight builds a Night scheduler over game, emitting TurnStarted/
// TurnExpired onto bus (nil is fine; events are simply dropped). turnTimeout
// is the per-turn wait (§4.7 design default: 10s; pass 0 for the default).
// metricsReg registers this Night's Prometheus metrics; pass nil to get a
// fresh, private prometheus.NewRegistry() — building more than one Night
// against the same registry (e.g. prometheus.DefaultRegisterer) panics on
// the second registration, so only pass a shared registry if the caller
// builds exactly one Night against it.
func NewNight(game *role.Game, bus *emit.Bus, turnTimeout time.Duration, metricsReg prometheus.Registerer) *Night {
	if turnTimeout <= 0 {
		turnTimeout = 10 * time.Second
	}
	if metricsReg == nil {
		metricsReg = prometheus.NewRegistry()
	}
	return &Night{
		game:        game,
		bus:         bus,
		turnTimeout: turnTimeout,
		registered:  make(map[string]bool),
		metrics:     newMetrics(metricsReg),
	}
}

// Run executes one full night: the register phase followed by one turn per
// staged role, visited in ascending-priority order (§4.7).
func (n *Night) Run(ctx context.Context) error {
	if err := n.registerPhase(ctx); err != nil {
		return err
	}

	h := n.buildStageQueue()
	n.metrics.stagedGauge.Set(float64(h.Len()))

	for h.Len() > 0 {
		st := heap.Pop(&h).(stage)
		n.metrics.stagedGauge.Set(float64(h.Len()))
		n.runTurn(ctx, st)
	}
	return nil
}

// registerPhase invokes each distinct role card's Register hook exactly
// once, regardless of how many players or middle cards carry it (§4.7
// step 1).
func (n *Night) registerPhase(ctx context.Context) error {
	cards := make(map[string]*role.Card)
	for _, p := range n.game.Players() {
		if p.OriginalCard != nil {
			cards[p.OriginalCard.Name] = p.OriginalCard
		}
		if p.CopiedCard != nil {
			cards[p.CopiedCard.Name] = p.CopiedCard
		}
	}
	for _, m := range n.game.Middles() {
		if m.Card != nil {
			cards[m.Card.Name] = m.Card
		}
	}

	for name, card := range cards {
		if card.Register == nil || n.registered[name] {
			continue
		}
		if err := card.Register(ctx, n.game); err != nil {
			return err
		}
		n.registered[name] = true
	}
	return nil
}

// buildStageQueue collects every (player, effective-card) pair whose card
// declares a NightAbility, ordered ascending by priority with insertion-
// order tie-breaking (§4.7 step 2).
func (n *Night) buildStageQueue() stageHeap {
	h := stageHeap{}
	heap.Init(&h)
	seq := 0
	for _, p := range n.game.Players() {
		card := role.EffectiveCard(p)
		if card == nil || card.NightAbility == nil {
			continue
		}
		heap.Push(&h, stage{playerID: p.ID, card: card, seq: seq})
		seq++
	}
	return h
}

// runTurn executes a single staged turn (§4.7 step 3): emit TurnStarted,
// evaluate the optional ShouldAct gate, invoke NightAbility, start a
// workflow if it requested one, wait the turn's bounded duration with no
// locks held, then emit TurnExpired.
func (n *Night) runTurn(ctx context.Context, st stage) {
	rc := n.game.ContextFor(st.playerID)

	n.emit(emit.TurnStarted, st.playerID, st.card.Name)
	n.metrics.turnsTotal.WithLabelValues(st.card.Name).Inc()

	if st.card.ShouldAct == nil || st.card.ShouldAct(rc) {
		kickoff, err := st.card.NightAbility(ctx, rc)
		if err == nil && kickoff != nil {
			_, _ = n.game.Engine.StartWorkflow(ctx, kickoff.DefinitionID, st.playerID, kickoff.Inputs)
		}
	}

	select {
	case <-ctx.Done():
	case <-time.After(n.turnTimeout):
		n.metrics.turnTimeoutsTotal.WithLabelValues(st.card.Name).Inc()
	}

	n.emit(emit.TurnExpired, st.playerID, st.card.Name)
}

func (n *Night) emit(kind emit.Kind, playerID, roleName string) {
	if n.bus == nil {
		return
	}
	n.bus.Emit(emit.Event{Kind: kind, At: time.Now(), PlayerID: playerID, RoleName: roleName})
}
