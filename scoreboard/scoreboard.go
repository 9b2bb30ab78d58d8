// Package scoreboard assembles a ready-to-use engine.ScoreService.
package scoreboard

import (
	"context"

	mem "scorekit/adapters/memory"
	"scorekit/core"
	"scorekit/engine"
	"scorekit/realtime"
)

// Option configures the service builder.
type Option func(*config)

type subscriber struct {
	typ     core.EventType
	handler func(context.Context, core.Event)
}

type config struct {
	store engine.Store
	mode  engine.DispatchMode
	rules engine.RuleEngine
	hub   *realtime.Hub
	subs  []subscriber
}

// WithStore sets the ranked score store.
func WithStore(s engine.Store) Option { return func(c *config) { c.store = s } }

// WithRuleEngine sets the rule engine.
func WithRuleEngine(r engine.RuleEngine) Option { return func(c *config) { c.rules = r } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithSubscriber registers an event handler before the service is returned.
func WithSubscriber(typ core.EventType, handler func(context.Context, core.Event)) Option {
	return func(c *config) { c.subs = append(c.subs, subscriber{typ: typ, handler: handler}) }
}

// New builds a configured ScoreService. If not provided, defaults are used:
//   - store: in-memory
//   - rules: DefaultRuleEngine
//   - dispatch: async
func New(opts ...Option) *engine.ScoreService {
	cfg := &config{mode: engine.DispatchAsync, rules: engine.DefaultRuleEngine()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.store == nil {
		cfg.store = mem.New()
	}
	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewScoreService(cfg.store, bus, cfg.rules)
	if cfg.hub != nil {
		bus.Subscribe(engine.AllEvents, cfg.hub.Broadcast)
	}
	for _, s := range cfg.subs {
		bus.Subscribe(s.typ, s.handler)
	}
	return svc
}
