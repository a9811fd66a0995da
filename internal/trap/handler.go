package trap

import "github.com/sonic-net/snmp-subagent/internal/agentx"

// Event is one keyspace-notification delivery handed to a Handler.
type Event struct {
	Channel string
	Message string // the operation verb (e.g. "hset", "del")
}

// Notification is what a Handler returns when a semantically meaningful
// state transition occurred: the trap OID and its payload VarBinds, not yet
// prefixed with SnmpTrapOID — the engine does that uniformly for every
// handler.
type Notification struct {
	TrapOID  agentx.OID
	VarBinds []agentx.VarBind
}

// Handler is one trap-handler declaration: a set of keyspace patterns, an
// init seed, and the per-event callback.
type Handler interface {
	// Name identifies the handler in logs.
	Name() string

	// Patterns lists the keyspace-notification patterns this handler wants
	// to subscribe to, each routed to a store database by its
	// "__keyspace@<N>__:" prefix.
	Patterns() []string

	// Init seeds the handler's local state cache from current store state.
	// No notifications are emitted during seeding.
	Init() error

	// Process handles one matched event. A nil return means no notification:
	// either the event was irrelevant, or the handler's own semantic dedup
	// suppressed it because the mapped state didn't actually change.
	Process(ev Event) (*Notification, error)
}
