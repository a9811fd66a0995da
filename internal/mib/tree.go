// Package mib implements the prefix-indexed MIB dispatch tree: a registry
// of OID sub-trees, each backed by a Leaf, that resolves Get/GetNext/GetBulk
// lookups and enumerates the updaters the scheduler drives. The tree is
// built once at startup via Builder and frozen; nothing here mutates after
// Freeze.
package mib

import (
	"sort"

	"github.com/sonic-net/snmp-subagent/internal/agentx"
)

// Updater is the subset of the updater contract the MIB tree needs to know
// about: which updaters back which leaves, so the scheduler can enumerate
// them from the frozen tree. The full contract (reinit data, update data,
// frequency, reinit rate) lives in package updater; Leaf registrations
// reference it only by identity here.
type Updater interface {
	Name() string
}

// entry pairs one registered leaf with the updater that refreshes its data,
// if any (demonstration leaves with no backing updater pass nil).
type entry struct {
	leaf    Leaf
	updater Updater
}

// Tree is the frozen, prefix-indexed dispatch structure. Construct one via
// Builder; do not build a Tree directly.
type Tree struct {
	entries []entry // sorted by Prefix ascending; longest-prefix wins ties
}

// ForGet implements for_get: locates the longest-prefix leaf
// whose Prefix is a prefix of oid and returns the trailing sub-OID. found is
// false if no registered leaf's prefix matches oid at all.
func (t *Tree) ForGet(oid agentx.OID) (leaf Leaf, sub agentx.OID, found bool) {
	best := -1
	var bestSuffix agentx.OID
	for i, e := range t.entries {
		if suf, ok := oid.Suffix(e.leaf.Prefix()); ok {
			if best == -1 || len(e.leaf.Prefix()) > len(t.entries[best].leaf.Prefix()) {
				best = i
				bestSuffix = suf
			}
		}
	}
	if best == -1 {
		return nil, nil, false
	}
	return t.entries[best].leaf, bestSuffix, true
}

// ForGetNext implements for_get_next: returns the next OID >=
// oid (> oid if include is false) any registered leaf can answer, walking
// forward across leaf boundaries in Prefix order when one leaf is exhausted.
// Leaves are tried in ascending Prefix order so the result is the global
// minimum next OID across the whole tree, satisfying the walk's monotonic
// invariant.
func (t *Tree) ForGetNext(oid agentx.OID, include bool) (leaf Leaf, nextOID agentx.OID, value agentx.Value, found bool) {
	var bestLeaf Leaf
	var bestOID agentx.OID
	var bestVal agentx.Value
	haveBest := false

	for _, e := range t.entries {
		prefix := e.leaf.Prefix()

		var sub agentx.OID
		var subInclude bool
		switch {
		case oid.Less(prefix):
			// oid sorts entirely before this leaf's sub-tree: any instance
			// it holds qualifies, starting from the beginning of its range.
			sub = agentx.OID{}
			subInclude = true
		case prefix.HasPrefix(oid) && !oid.HasPrefix(prefix):
			// oid is a strict ancestor-or-sibling position before prefix;
			// same as above.
			sub = agentx.OID{}
			subInclude = true
		default:
			s, ok := oid.Suffix(prefix)
			if !ok {
				// oid lies after this leaf's entire sub-tree.
				continue
			}
			sub = s
			subInclude = include
		}

		ns, v, ok := e.leaf.GetNext(sub, subInclude)
		if !ok {
			continue
		}
		full := prefix.Append(ns...)
		if !haveBest || full.Less(bestOID) {
			haveBest = true
			bestLeaf = e.leaf
			bestOID = full
			bestVal = v
		}
	}

	if !haveBest {
		return nil, nil, agentx.Value{}, false
	}
	return bestLeaf, bestOID, bestVal, true
}

// UpdaterInstances returns the de-duplicated set of updaters referenced by
// any registered leaf, for the scheduler.
func (t *Tree) UpdaterInstances() []Updater {
	seen := make(map[string]bool)
	var out []Updater
	for _, e := range t.entries {
		if e.updater == nil || seen[e.updater.Name()] {
			continue
		}
		seen[e.updater.Name()] = true
		out = append(out, e.updater)
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Builder
// ─────────────────────────────────────────────────────────────────────────────

// Builder accumulates leaf registrations at startup, one call per MIB
// module's Register function. Call Freeze once all modules have registered
// to obtain an immutable Tree.
type Builder struct {
	entries []entry
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder { return &Builder{} }

// Register adds leaf to the tree, optionally associated with the updater
// that refreshes its backing data (pass nil for leaves with no updater).
func (b *Builder) Register(leaf Leaf, upd Updater) {
	b.entries = append(b.entries, entry{leaf: leaf, updater: upd})
}

// Freeze sorts registrations by Prefix and returns the immutable Tree. The
// Builder must not be used afterward.
func (b *Builder) Freeze() *Tree {
	entries := append([]entry(nil), b.entries...)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].leaf.Prefix().Less(entries[j].leaf.Prefix())
	})
	return &Tree{entries: entries}
}
