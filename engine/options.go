package engine

import (
	"time"

	"github.com/duskcourt/nightloom/engine/emit"
)

// config collects functional-option settings before New builds an Engine,
// mirroring the teacher's engineConfig indirection (graph/options.go).
type config struct {
	externalActionTimeout time.Duration
	bus                   *emit.Bus
}

func defaultConfig() *config {
	return &config{
		externalActionTimeout: 10 * time.Second,
		bus:                   emit.NewBus(),
	}
}

// Option configures an Engine at construction time.
type Option func(*config)

// WithExternalActionTimeout sets how long RespondServerAction will wait to
// be called for a given token before the pending external action is
// considered timed out (§4.8). Default: 10s, per spec.md §6/§4.8.
func WithExternalActionTimeout(d time.Duration) Option {
	return func(c *config) { c.externalActionTimeout = d }
}

// WithBus attaches a pre-built event bus instead of the default empty one,
// letting a caller register subscribers/emitters before any instance starts.
func WithBus(bus *emit.Bus) Option {
	return func(c *config) { c.bus = bus }
}
