// Package app wires the sub-agent's pipeline together and manages its
// lifecycle: a Config struct with defaults, ordered construction in
// Start, and ordered shutdown in Stop.
//
// Construction order:
//
//	store client(s) → MIB builder (system, iftable) → updater scheduler →
//	dispatcher (reads the frozen MIB tree) → session (owns the dispatcher) →
//	trap engine (linked to the session after both exist)
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sonic-net/snmp-subagent/internal/agentx"
	"github.com/sonic-net/snmp-subagent/internal/dispatch"
	"github.com/sonic-net/snmp-subagent/internal/mib"
	"github.com/sonic-net/snmp-subagent/internal/mibs/iftable"
	"github.com/sonic-net/snmp-subagent/internal/mibs/system"
	"github.com/sonic-net/snmp-subagent/internal/runtimeconfig"
	"github.com/sonic-net/snmp-subagent/internal/session"
	"github.com/sonic-net/snmp-subagent/internal/store"
	"github.com/sonic-net/snmp-subagent/internal/trap"
	"github.com/sonic-net/snmp-subagent/internal/traps/linkstate"
	"github.com/sonic-net/snmp-subagent/internal/traps/psufan"
	"github.com/sonic-net/snmp-subagent/internal/updater"
)

// systemSubtree and ifTableSubtree are the OID roots registered with the
// master agent at startup.
var (
	systemSubtree  = agentx.OID{1, 3, 6, 1, 2, 1, 1}
	ifTableSubtree = agentx.OID{1, 3, 6, 1, 2, 1, 2}
)

// applDBName and configDBName name the logical databases this repo's
// demonstration modules read from, resolved through the store config file.
const (
	applDBName   = "APPL_DB"
	configDBName = "CONFIG_DB"
)

// Config holds the top-level settings for the agent. Zero-value fields fall
// back to documented defaults.
type Config struct {
	// DaemonConfigPath is scanned for the agentxsocket directive. Empty
	// uses session.DefaultMasterSocket.
	DaemonConfigPath string

	// StoreConfigPath is the path to the Redis topology config file. Empty
	// falls back to $DB_CONFIG_FILE, then store.DefaultConfigPath.
	StoreConfigPath string

	// UpdateFrequency is the default updater cadence applied to any MIB
	// module with no per-module entry in UpdaterOverrides. Default: 5s.
	UpdateFrequency time.Duration

	// UpdaterOverrides holds per-MIB-module frequency/reinit-rate overrides
	// loaded from the operator runtime config, keyed by module name
	// ("system", "iftable"). A module absent from the map uses
	// UpdateFrequency and its own built-in reinit rate.
	UpdaterOverrides map[string]runtimeconfig.UpdaterOverride

	// Descriptor is the Open PDU's human-readable agent description.
	Descriptor string
}

func (c *Config) withDefaults() {
	if c.StoreConfigPath == "" {
		c.StoreConfigPath = store.ConfigPathFromEnv()
	}
	if c.UpdateFrequency <= 0 {
		c.UpdateFrequency = 5 * time.Second
	}
	if c.Descriptor == "" {
		c.Descriptor = "SONiC-like AgentX sub-agent"
	}
}

// resolveOverride looks up module's entry in cfg.UpdaterOverrides and
// returns the frequency/reinit rate to hand to its constructor. A missing
// entry, or a zero FrequencySeconds, falls back to the global
// UpdateFrequency; the constructor itself falls back further to the
// module's own built-in default when given a non-positive reinit rate.
func (a *App) resolveOverride(module string) (time.Duration, int) {
	override := a.cfg.UpdaterOverrides[module]
	freq := a.cfg.UpdateFrequency
	if override.FrequencySeconds > 0 {
		freq = time.Duration(override.FrequencySeconds) * time.Second
	}
	return freq, override.ReinitRate
}

// App owns every long-lived component and their startup/shutdown ordering.
type App struct {
	cfg    Config
	logger *slog.Logger

	storeCfg   *store.Config
	stores     map[string]store.Store // instance name -> connection
	sysUpdater *system.Updater
	ifUpdater  *iftable.Updater
	sched      *updater.Scheduler
	sess       *session.Session
	trapEngine *trap.Engine
	cancel     context.CancelFunc
}

// New constructs an App. Nothing is connected until Start is called.
func New(cfg Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cfg.withDefaults()
	return &App{cfg: cfg, logger: logger}
}

// Start builds every component in dependency order and launches the
// session, updater scheduler, and trap engine. It returns once the store
// config is loaded, the MIB tree is frozen and the trap engine's
// subscriptions are open; store clients connect lazily on first use, and the
// session connects and reconnects in the background for as long as ctx lives.
func (a *App) Start(ctx context.Context) error {
	// ── 1. Store config + connections ───────────────────────────────────
	storeCfg, err := store.LoadConfig(a.cfg.StoreConfigPath)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.storeCfg = storeCfg

	a.stores = make(map[string]store.Store, len(storeCfg.Instances))
	for name, inst := range storeCfg.Instances {
		a.stores[name] = store.NewRedisStore(store.Addr(inst), a.logger.With("instance", name))
	}

	if _, _, err := storeCfg.InstanceForDB(applDBName); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if _, _, err := storeCfg.InstanceForDB(configDBName); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	applStore := a.stores[storeCfg.Databases[applDBName].Instance]
	configStore := a.stores[storeCfg.Databases[configDBName].Instance]

	// ── 2. MIB builder: register demonstration modules ──────────────────
	sysFreq, sysReinit := a.resolveOverride("system")
	ifFreq, ifReinit := a.resolveOverride("iftable")
	a.sysUpdater = system.New(configStore, time.Now(), sysFreq, sysReinit, a.logger.With("updater", "system"))
	a.ifUpdater = iftable.New(applStore, ifFreq, ifReinit, a.logger.With("updater", "iftable"))

	b := mib.NewBuilder()
	system.Register(b, a.sysUpdater)
	iftable.Register(b, a.ifUpdater)
	tree := b.Freeze()

	// ── 3. Updater scheduler ─────────────────────────────────────────────
	// tree.UpdaterInstances returns mib's narrow Updater view (Name only, to
	// avoid mib importing updater); every concrete updater this repo
	// registers also satisfies the scheduler's full contract, recovered here
	// via a type assertion rather than widening mib's interface.
	var scheduled []updater.Updater
	for _, u := range tree.UpdaterInstances() {
		if full, ok := u.(updater.Updater); ok {
			scheduled = append(scheduled, full)
		}
	}
	a.sched = updater.New(scheduled, a.logger.With("component", "updater"))

	// ── 4. Session (owns the dispatcher, which reads the frozen tree) ───
	disp := dispatch.New(tree, a.logger.With("component", "dispatch"))
	a.sess = session.New(session.Config{
		DaemonConfigPath: a.cfg.DaemonConfigPath,
		Descriptor:       a.cfg.Descriptor,
		Subtrees: []session.Subtree{
			{Prefix: systemSubtree, Priority: 127},
			{Prefix: ifTableSubtree, Priority: 127},
		},
		Dispatcher: disp,
		Logger:     a.logger.With("component", "session"),
	})

	// ── 5. Trap engine (linked to the session only once both exist — the
	// session satisfies trap.Notifier, trap has no session import) ──────
	handlers := []trap.Handler{
		linkstate.New(applStore, a.logger.With("trap", "linkstate")),
		psufan.New(configStore, a.logger.With("trap", "psufan")),
	}
	a.trapEngine = trap.New(storeCfg, a.stores, handlers, a.sess, a.logger.With("component", "trap"))

	// ── 6. Launch ─────────────────────────────────────────────────────────
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.sched.Start(runCtx)
	go a.sess.Start(runCtx)

	if err := a.trapEngine.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("app: start trap engine: %w", err)
	}

	a.logger.Info("app: agent running",
		"store_instances", len(a.stores),
		"update_frequency", a.cfg.UpdateFrequency,
	)
	return nil
}

// Stop performs an ordered shutdown: cancel first, then wait for the
// updater scheduler and trap engine to drain, then close every store
// connection.
func (a *App) Stop() {
	a.logger.Info("app: shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	if a.sched != nil {
		a.sched.Wait()
	}
	if a.trapEngine != nil {
		a.trapEngine.Stop()
	}
	for name, st := range a.stores {
		if err := st.Close(); err != nil {
			a.logger.Error("app: error closing store", "instance", name, "err", err)
		}
	}

	a.logger.Info("app: shutdown complete")
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
