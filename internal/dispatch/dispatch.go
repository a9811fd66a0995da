// Package dispatch implements the request dispatcher:
// translating inbound Get/GetNext/GetBulk PDUs into MIB-tree lookups and
// composing Response PDUs with per-VarBind error indicators.
package dispatch

import (
	"fmt"
	"log/slog"

	"github.com/sonic-net/snmp-subagent/internal/agentx"
	"github.com/sonic-net/snmp-subagent/internal/mib"
)

// VarBindCeiling bounds the total VarBinds a single response may carry.
const VarBindCeiling = 10000

// Dispatcher implements session.Dispatcher against a frozen mib.Tree.
type Dispatcher struct {
	tree   *mib.Tree
	logger *slog.Logger
}

// New builds a Dispatcher over tree. tree must already be frozen
// (mib.Builder.Freeze).
func New(tree *mib.Tree, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Dispatcher{tree: tree, logger: logger}
}

// Dispatch implements session.Dispatcher.
func (d *Dispatcher) Dispatch(msg agentx.Message, sysUpTime uint32) agentx.ResponseMessage {
	h := msg.Header()

	req, ok := msg.(agentx.RequestMessage)
	if !ok {
		// SET-family and any PDU type this agent doesn't originate requests
		// for get a well-formed genError response and are otherwise ignored.
		return agentx.NewResponse(h, sysUpTime, agentx.ErrGenErr, 0, nil)
	}

	switch h.Type {
	case agentx.TypeGet:
		return d.dispatchGet(h, req, sysUpTime)
	case agentx.TypeGetNext:
		return d.dispatchGetNext(h, req, sysUpTime)
	case agentx.TypeGetBulk:
		return d.dispatchGetBulk(h, req, sysUpTime)
	default:
		return agentx.NewResponse(h, sysUpTime, agentx.ErrGenErr, 0, nil)
	}
}

func (d *Dispatcher) dispatchGet(h agentx.Header, req agentx.RequestMessage, sysUpTime uint32) agentx.ResponseMessage {
	var vbs []agentx.VarBind
	for i, r := range req.Ranges {
		index := uint16(i + 1)
		value, genErr := d.safeGet(r.Start)
		if genErr {
			return agentx.NewResponse(h, sysUpTime, agentx.ErrGenErr, index, vbs)
		}
		vbs = append(vbs, agentx.VarBind{Name: r.Start, Value: value})
	}
	return agentx.NewResponse(h, sysUpTime, agentx.ErrNone, 0, vbs)
}

// safeGet resolves oid through the MIB tree, converting a leaf getter panic
// into (zero value, true) so the caller can promote it to genError.
func (d *Dispatcher) safeGet(oid agentx.OID) (value agentx.Value, genErr bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("leaf getter panicked", "oid", oid, "recover", fmt.Sprint(r))
			genErr = true
		}
	}()

	leaf, sub, found := d.tree.ForGet(oid)
	if !found {
		return agentx.NewNoSuchObject(), false
	}
	v, ok := leaf.Get(sub)
	if !ok {
		return agentx.NewNoSuchInstance(), false
	}
	return v, false
}

func (d *Dispatcher) dispatchGetNext(h agentx.Header, req agentx.RequestMessage, sysUpTime uint32) agentx.ResponseMessage {
	var vbs []agentx.VarBind
	for i, r := range req.Ranges {
		index := uint16(i + 1)
		vb, genErr := d.safeGetNext(r)
		if genErr {
			return agentx.NewResponse(h, sysUpTime, agentx.ErrGenErr, index, vbs)
		}
		vbs = append(vbs, vb)
	}
	return agentx.NewResponse(h, sysUpTime, agentx.ErrNone, 0, vbs)
}

// safeGetNext implements one GetNext range resolution, bounded above by
// r.End: if the walk crosses r.End or reaches end-of-view,
// the bound VarBind is END_OF_MIB_VIEW at r.Start.
func (d *Dispatcher) safeGetNext(r agentx.SearchRange) (vb agentx.VarBind, genErr bool) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Warn("leaf get_next panicked", "oid", r.Start, "recover", fmt.Sprint(rec))
			genErr = true
		}
	}()

	_, next, value, found := d.tree.ForGetNext(r.Start, r.Include)
	if !found {
		return agentx.VarBind{Name: r.Start, Value: agentx.NewEndOfMibView()}, false
	}
	if len(r.End) > 0 && !next.Less(r.End) {
		return agentx.VarBind{Name: r.Start, Value: agentx.NewEndOfMibView()}, false
	}
	return agentx.VarBind{Name: next, Value: value}, false
}

func (d *Dispatcher) dispatchGetBulk(h agentx.Header, req agentx.RequestMessage, sysUpTime uint32) agentx.ResponseMessage {
	var vbs []agentx.VarBind

	nonRep := int(req.NonRepeaters)
	if nonRep > len(req.Ranges) {
		nonRep = len(req.Ranges)
	}
	for i := 0; i < nonRep; i++ {
		vb, genErr := d.safeGetNext(req.Ranges[i])
		if genErr {
			return agentx.NewResponse(h, sysUpTime, agentx.ErrGenErr, uint16(i+1), vbs)
		}
		vbs = append(vbs, vb)
	}

	repeating := req.Ranges[nonRep:]
	cursors := make([]agentx.SearchRange, len(repeating))
	copy(cursors, repeating)

	maxRep := int(req.MaxRepetitions)
	for rep := 0; rep < maxRep; rep++ {
		for i := range cursors {
			if len(vbs) >= VarBindCeiling {
				d.logger.Warn("GetBulk response truncated at VarBind ceiling", "ceiling", VarBindCeiling)
				return agentx.NewResponse(h, sysUpTime, agentx.ErrNone, 0, vbs)
			}
			vb, genErr := d.safeGetNext(cursors[i])
			if genErr {
				return agentx.NewResponse(h, sysUpTime, agentx.ErrGenErr, uint16(nonRep+i+1), vbs)
			}
			vbs = append(vbs, vb)
			// Advance this cursor for the next repetition: start from the
			// value just returned, excluded (classic GetNext walk semantics).
			if vb.Value.Type != agentx.TagEndOfMibView {
				cursors[i] = agentx.SearchRange{Start: vb.Name, End: cursors[i].End, Include: false}
			}
		}
	}

	return agentx.NewResponse(h, sysUpTime, agentx.ErrNone, 0, vbs)
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
