package trap

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sonic-net/snmp-subagent/internal/agentx"
	"github.com/sonic-net/snmp-subagent/internal/store"
)

// SnmpTrapOID is the standard SNMPv2 varbind every Notify PDU must carry
// naming which trap fired.
var SnmpTrapOID = agentx.OID{1, 3, 6, 1, 6, 3, 1, 1, 4, 1, 0}

// Notifier is the subset of *session.Session the engine needs: emitting a
// Notify PDU. A narrow interface keeps this package free of a session
// import (mirrors the session.Dispatcher split on the other side).
type Notifier interface {
	Notify(ctx context.Context, vbs []agentx.VarBind) error
}

type instanceDB struct {
	instance string
	db       int
}

// Engine is the trap engine.
type Engine struct {
	cfg      *store.Config
	stores   map[string]store.Store // instance name -> connection
	handlers []Handler
	notifier Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	closers []func() error
	wg      sync.WaitGroup
}

// New builds an Engine. stores must have one entry per instance name
// declared in cfg.Instances that any handler pattern actually routes to.
func New(cfg *store.Config, stores map[string]store.Store, handlers []Handler, notifier Notifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Engine{cfg: cfg, stores: stores, handlers: handlers, notifier: notifier, logger: logger}
}

// Start runs every handler's Init, groups their patterns by (instance, db),
// and launches one reader goroutine per subscription group. It returns once
// every handler has been initialized and every subscription opened.
func (e *Engine) Start(ctx context.Context) error {
	dbToInstance := make(map[int]string)
	for _, d := range e.cfg.Databases {
		dbToInstance[d.ID] = d.Instance
	}

	type group struct {
		instance string
		db       int
		patterns []CompiledPattern
	}
	groups := make(map[instanceDB]*group)
	patternHandlers := make(map[string][]Handler)

	for _, h := range e.handlers {
		if err := h.Init(); err != nil {
			e.logger.Error("trap handler init failed", "handler", h.Name(), "err", err)
			continue
		}
		for _, raw := range h.Patterns() {
			cp, err := Compile(raw)
			if err != nil {
				e.logger.Warn("skipping invalid trap pattern", "handler", h.Name(), "pattern", raw, "err", err)
				continue
			}
			instance, ok := dbToInstance[cp.DB]
			if !ok {
				e.logger.Warn("skipping trap pattern routed to undeclared database", "pattern", raw, "db", cp.DB)
				continue
			}
			key := instanceDB{instance: instance, db: cp.DB}
			g, ok := groups[key]
			if !ok {
				g = &group{instance: instance, db: cp.DB}
				groups[key] = g
			}
			g.patterns = append(g.patterns, cp)
			patternHandlers[raw] = append(patternHandlers[raw], h)
		}
	}

	for _, g := range groups {
		st, ok := e.stores[g.instance]
		if !ok {
			return fmt.Errorf("trap engine: no store connection configured for instance %q", g.instance)
		}
		raws := make([]string, len(g.patterns))
		for i, cp := range g.patterns {
			raws[i] = cp.Raw
		}
		ch, closeFn, err := st.Subscribe(ctx, g.db, raws)
		if err != nil {
			return fmt.Errorf("trap engine: subscribe instance=%s db=%d: %w", g.instance, g.db, err)
		}

		e.mu.Lock()
		e.closers = append(e.closers, closeFn)
		e.mu.Unlock()

		e.wg.Add(1)
		go e.readLoop(ctx, ch, g.patterns, patternHandlers)
	}
	return nil
}

func (e *Engine) readLoop(ctx context.Context, ch <-chan store.Message, patterns []CompiledPattern, patternHandlers map[string][]Handler) {
	defer e.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			e.dispatch(ctx, msg, patterns, patternHandlers)
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, msg store.Message, patterns []CompiledPattern, patternHandlers map[string][]Handler) {
	for _, p := range patterns {
		if !p.Match(msg.Channel) {
			continue
		}
		for _, h := range patternHandlers[p.Raw] {
			e.invokeHandler(ctx, h, msg)
		}
	}
}

func (e *Engine) invokeHandler(ctx context.Context, h Handler, msg store.Message) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("trap handler panicked", "handler", h.Name(), "recover", fmt.Sprint(r))
		}
	}()

	notif, err := h.Process(Event{Channel: msg.Channel, Message: msg.Payload})
	if err != nil {
		e.logger.Error("trap handler returned error", "handler", h.Name(), "err", err)
		return
	}
	if notif == nil || len(notif.VarBinds) == 0 {
		return
	}

	vbs := make([]agentx.VarBind, 0, len(notif.VarBinds)+1)
	vbs = append(vbs, agentx.VarBind{Name: SnmpTrapOID, Value: agentx.NewObjectID(notif.TrapOID)})
	vbs = append(vbs, notif.VarBinds...)

	if err := e.notifier.Notify(ctx, vbs); err != nil {
		e.logger.Warn("failed to emit trap notification", "handler", h.Name(), "err", err)
	}
}

// Stop closes every subscription and waits for reader goroutines to settle.
// Callers must also cancel the ctx passed to Start so the readLoop select
// observes cancellation promptly.
func (e *Engine) Stop() {
	e.mu.Lock()
	closers := e.closers
	e.mu.Unlock()
	for _, c := range closers {
		if err := c(); err != nil {
			e.logger.Warn("error closing trap subscription", "err", err)
		}
	}
	e.wg.Wait()
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
