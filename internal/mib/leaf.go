package mib

import "github.com/sonic-net/snmp-subagent/internal/agentx"

// ─────────────────────────────────────────────────────────────────────────────
// Leaf
// ─────────────────────────────────────────────────────────────────────────────

// Leaf answers Get/GetNext for one OID or one OID sub-tree. Implementations
// are constructed once at startup and must be safe for concurrent use by the
// request dispatcher while an updater refreshes their backing data.
type Leaf interface {
	// Prefix is the absolute OID this leaf owns. For a single-OID leaf this
	// is the exact OID; for a tree/sub-tree leaf it is the root prefix.
	Prefix() agentx.OID

	// Get resolves sub relative to Prefix. A single-OID leaf answers only
	// sub = [0], its scalar instance; an empty sub is not an instance. ok is
	// false when there is no instance at that sub-OID (NO_SUCH_INSTANCE).
	Get(sub agentx.OID) (agentx.Value, bool)

	// GetNext returns the smallest sub' > sub (or >= sub when include is
	// true) this leaf can answer, plus its value. ok is false when the walk
	// has exhausted this leaf (END_OF_MIB_VIEW for this leaf).
	GetNext(sub agentx.OID, include bool) (nextSub agentx.OID, value agentx.Value, ok bool)
}

// ─────────────────────────────────────────────────────────────────────────────
// ScalarLeaf — single-OID exact-match leaf
// ─────────────────────────────────────────────────────────────────────────────

// ScalarLeaf is a single-OID leaf. Its conventional instance sub-identifier is 0 (the SMI scalar
// convention), mirroring sysDescr.0, sysUpTime.0, etc.
type ScalarLeaf struct {
	prefix agentx.OID
	fn     func() (agentx.Value, bool)
}

// NewScalarLeaf builds a leaf answering only at prefix.0, backed by fn.
func NewScalarLeaf(prefix agentx.OID, fn func() (agentx.Value, bool)) *ScalarLeaf {
	return &ScalarLeaf{prefix: prefix, fn: fn}
}

func (l *ScalarLeaf) Prefix() agentx.OID { return l.prefix }

func (l *ScalarLeaf) Get(sub agentx.OID) (agentx.Value, bool) {
	if len(sub) != 1 || sub[0] != 0 {
		return agentx.Value{}, false
	}
	return l.fn()
}

func (l *ScalarLeaf) GetNext(sub agentx.OID, include bool) (agentx.OID, agentx.Value, bool) {
	// The only valid instance is sub_id 0.
	atOrBeforeZero := len(sub) == 0 || (len(sub) == 1 && sub[0] == 0 && include)
	if !atOrBeforeZero {
		return nil, agentx.Value{}, false
	}
	v, ok := l.fn()
	if !ok {
		return nil, agentx.Value{}, false
	}
	return agentx.OID{0}, v, true
}

// ─────────────────────────────────────────────────────────────────────────────
// TableLeaf — sub-tree leaf with a walker over explicit instance sub-OIDs
// ─────────────────────────────────────────────────────────────────────────────

// InstanceLookup resolves one instance sub-OID to a value. The sorted list of
// instance sub-OIDs that backs GetNext's monotonic walk comes separately,
// from the instances function given to NewTableLeaf, which the caller's
// updater refreshes on each cycle.
type InstanceLookup func(sub agentx.OID) (agentx.Value, bool)

// TableLeaf is a sub-tree leaf with a walker callable: it owns
// one column of a conceptual table (e.g. ifDescr), addressed by an index
// sub-OID appended to Prefix.
type TableLeaf struct {
	prefix    agentx.OID
	instances func() []agentx.OID // sorted ascending, refreshed by an updater
	lookup    InstanceLookup
}

// NewTableLeaf builds a leaf over a dynamic instance set. instances must
// return its slice already sorted in OID order; lookup resolves one instance.
func NewTableLeaf(prefix agentx.OID, instances func() []agentx.OID, lookup InstanceLookup) *TableLeaf {
	return &TableLeaf{prefix: prefix, instances: instances, lookup: lookup}
}

func (l *TableLeaf) Prefix() agentx.OID { return l.prefix }

func (l *TableLeaf) Get(sub agentx.OID) (agentx.Value, bool) {
	return l.lookup(sub)
}

func (l *TableLeaf) GetNext(sub agentx.OID, include bool) (agentx.OID, agentx.Value, bool) {
	for _, inst := range l.instances() {
		if sub.Less(inst) || (include && sub.Equal(inst)) {
			v, ok := l.lookup(inst)
			if !ok {
				continue
			}
			return inst, v, true
		}
	}
	return nil, agentx.Value{}, false
}

// ─────────────────────────────────────────────────────────────────────────────
// Overlay — composes two leaves, A preferred over B
// ─────────────────────────────────────────────────────────────────────────────

// Overlay implements overlay semantics: A is consulted first;
// B only answers where A returns NO_SUCH_INSTANCE. GetNext walks both and
// merges in OID order, with A winning ties.
type Overlay struct {
	prefix agentx.OID
	a, b   Leaf
}

// NewOverlay builds overlay(a, b). Both must share (or be compatible with) a
// common prefix; prefix is used only for registration placement.
func NewOverlay(prefix agentx.OID, a, b Leaf) *Overlay {
	return &Overlay{prefix: prefix, a: a, b: b}
}

func (o *Overlay) Prefix() agentx.OID { return o.prefix }

func (o *Overlay) Get(sub agentx.OID) (agentx.Value, bool) {
	if v, ok := o.a.Get(sub); ok {
		return v, true
	}
	return o.b.Get(sub)
}

func (o *Overlay) GetNext(sub agentx.OID, include bool) (agentx.OID, agentx.Value, bool) {
	aNext, aVal, aOK := o.a.GetNext(sub, include)
	bNext, bVal, bOK := o.b.GetNext(sub, include)
	switch {
	case aOK && bOK:
		if bNext.Less(aNext) {
			return bNext, bVal, true
		}
		return aNext, aVal, true // A wins on collision
	case aOK:
		return aNext, aVal, true
	case bOK:
		return bNext, bVal, true
	default:
		return nil, agentx.Value{}, false
	}
}
