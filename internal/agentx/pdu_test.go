package agentx

import (
	"testing"
)

func mustOID(t *testing.T, s string) OID {
	t.Helper()
	o, err := ParseOID(s)
	if err != nil {
		t.Fatalf("ParseOID(%q): %v", s, err)
	}
	return o
}

func roundTrip(t *testing.T, m Message) Message {
	t.Helper()
	buf, err := Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return got
}

func TestOIDRoundTripCompressedPrefix(t *testing.T) {
	o := mustOID(t, "1.3.6.1.2.1.1.3.0")
	w := toWire(o, false)
	if w.Prefix != 2 {
		t.Fatalf("expected compressed prefix byte 2, got %d", w.Prefix)
	}
	back := fromWire(w)
	if !back.Equal(o) {
		t.Fatalf("fromWire(toWire(%s)) = %s, want round trip", o, back)
	}
}

func TestOIDRoundTripNonCompressible(t *testing.T) {
	o := mustOID(t, "1.3.6.2.1.1.3.0")
	w := toWire(o, false)
	if w.Prefix != 0 {
		t.Fatalf("expected explicit form (prefix 0), got %d", w.Prefix)
	}
	if !fromWire(w).Equal(o) {
		t.Fatalf("round trip mismatch for %s", o)
	}
}

func TestOIDCompareAndHasPrefix(t *testing.T) {
	a := mustOID(t, "1.3.6.1.2.1.1")
	b := mustOID(t, "1.3.6.1.2.1.2")
	if !a.Less(b) {
		t.Fatalf("%s should sort before %s", a, b)
	}
	if !b.HasPrefix(mustOID(t, "1.3.6.1.2.1")) {
		t.Fatalf("%s should have prefix 1.3.6.1.2.1", b)
	}
	suf, ok := b.Suffix(mustOID(t, "1.3.6.1.2.1"))
	if !ok || suf.String() != "2" {
		t.Fatalf("Suffix = %v, %v, want 2, true", suf, ok)
	}
}

func TestOpenRoundTrip(t *testing.T) {
	open := NewOpen(1, 1, 5, mustOID(t, "1.3.6.1.4.1.99999"), "sonic-snmp-subagent")
	got := roundTrip(t, open).(OpenMessage)
	if got.Timeout != 5 || got.Descr != "sonic-snmp-subagent" || !got.ID.Equal(open.ID) {
		t.Fatalf("Open round trip mismatch: %+v", got)
	}
}

func TestRegisterRoundTripWithRange(t *testing.T) {
	reg := NewRegister(7, 1, 1, mustOID(t, "1.3.6.1.2.1.2.2.1.8"), 127, 0)
	reg.RangeSubid = 1
	reg.UpperBound = 24
	got := roundTrip(t, reg).(RegisterMessage)
	if got.RangeSubid != 1 || !got.HasUpperBound || got.UpperBound != 24 {
		t.Fatalf("Register range mismatch: %+v", got)
	}
	if !got.Subtree.Equal(reg.Subtree) {
		t.Fatalf("Register subtree mismatch: got %s want %s", got.Subtree, reg.Subtree)
	}
}

func TestRegisterRoundTripWithoutRange(t *testing.T) {
	reg := NewRegister(7, 2, 2, mustOID(t, "1.3.6.1.2.1.1"), 127, 0)
	got := roundTrip(t, reg).(RegisterMessage)
	if got.HasUpperBound {
		t.Fatalf("expected no upper bound when range_subid is 0, got %+v", got)
	}
}

func TestGetRequestRoundTrip(t *testing.T) {
	req := RequestMessage{
		H:      Header{Version: protocolVersion, Type: TypeGet, Flags: FlagNetworkByteOrder, SessionID: 7, PacketID: 3},
		Ranges: []SearchRange{{Start: mustOID(t, "1.3.6.1.2.1.1.1.0")}},
	}
	got := roundTrip(t, req).(RequestMessage)
	if len(got.Ranges) != 1 || !got.Ranges[0].Start.Equal(req.Ranges[0].Start) {
		t.Fatalf("Get round trip mismatch: %+v", got)
	}
}

func TestGetBulkRoundTripCarriesRepetitionCounts(t *testing.T) {
	req := RequestMessage{
		H:              Header{Version: protocolVersion, Type: TypeGetBulk, Flags: FlagNetworkByteOrder, SessionID: 7, PacketID: 4},
		NonRepeaters:   1,
		MaxRepetitions: 10,
		Ranges: []SearchRange{
			{Start: mustOID(t, "1.3.6.1.2.1.1.1.0")},
			{Start: mustOID(t, "1.3.6.1.2.1.2.2.1.1")},
		},
	}
	got := roundTrip(t, req).(RequestMessage)
	if got.NonRepeaters != 1 || got.MaxRepetitions != 10 || len(got.Ranges) != 2 {
		t.Fatalf("GetBulk round trip mismatch: %+v", got)
	}
}

func TestResponseRoundTripWithVarBinds(t *testing.T) {
	h := Header{Version: protocolVersion, Type: TypeGet, SessionID: 9, TransactionID: 1, PacketID: 2}
	resp := NewResponse(h, 12345, ErrNoAccess, 1, []VarBind{
		{Name: mustOID(t, "1.3.6.1.2.1.1.1.0"), Value: NewOctetString([]byte("SONiC switch"))},
		{Name: mustOID(t, "1.3.6.1.2.1.1.3.0"), Value: NewTimeTicks(42)},
	})
	got := roundTrip(t, resp).(ResponseMessage)
	if got.SysUpTime != 12345 || got.Error != ErrNoAccess || got.Index != 1 {
		t.Fatalf("Response header fields mismatch: %+v", got)
	}
	if len(got.VarBinds) != 2 {
		t.Fatalf("expected 2 varbinds, got %d", len(got.VarBinds))
	}
	if got.VarBinds[0].Value.Type != TagOctetString || string(got.VarBinds[0].Value.Str) != "SONiC switch" {
		t.Fatalf("varbind 0 mismatch: %+v", got.VarBinds[0])
	}
	if got.VarBinds[1].Value.Type != TagTimeTicks || got.VarBinds[1].Value.U32 != 42 {
		t.Fatalf("varbind 1 mismatch: %+v", got.VarBinds[1])
	}
}

func TestResponseRoundTripWithExceptionVarBind(t *testing.T) {
	h := Header{Version: protocolVersion, Type: TypeGetNext, SessionID: 9, PacketID: 2}
	resp := NewResponse(h, 1, ErrNone, 0, []VarBind{
		{Name: mustOID(t, "1.3.6.1.2.1.99.99.0"), Value: NewEndOfMibView()},
	})
	got := roundTrip(t, resp).(ResponseMessage)
	if got.VarBinds[0].Value.Type != TagEndOfMibView {
		t.Fatalf("expected EndOfMibView sentinel, got %s", got.VarBinds[0].Value)
	}
}

func TestNotifyRoundTrip(t *testing.T) {
	notif := NewNotify(3, 1, 9, []VarBind{
		{Name: mustOID(t, "1.3.6.1.2.1.1.3.0"), Value: NewTimeTicks(100)},
		{Name: mustOID(t, "1.3.6.1.6.3.1.1.4.1.0"), Value: NewObjectID(mustOID(t, "1.3.6.1.6.3.1.1.5.3"))},
	})
	got := roundTrip(t, notif).(NotifyMessage)
	if len(got.VarBinds) != 2 {
		t.Fatalf("expected 2 varbinds in Notify, got %d", len(got.VarBinds))
	}
	if got.VarBinds[1].Value.Type != TagObjectID || !got.VarBinds[1].Value.OID.Equal(mustOID(t, "1.3.6.1.6.3.1.1.5.3")) {
		t.Fatalf("notify varbind 1 mismatch: %+v", got.VarBinds[1])
	}
}

func TestCloseRoundTrip(t *testing.T) {
	c := NewClose(5, 1, 1, CloseReasonShutdown)
	got := roundTrip(t, c).(CloseMessage)
	if got.Reason != CloseReasonShutdown {
		t.Fatalf("Close reason mismatch: got %d want %d", got.Reason, CloseReasonShutdown)
	}
}

func TestDecodeRejectsTruncatedBuffer(t *testing.T) {
	open := NewOpen(1, 1, 5, mustOID(t, "1.3.6.1.4.1.99999"), "x")
	buf, err := Encode(open)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, err = Decode(buf[:len(buf)-3])
	if err == nil {
		t.Fatal("expected error decoding truncated buffer, got nil")
	}
	if _, ok := err.(*MalformedPDUError); !ok {
		t.Fatalf("expected *MalformedPDUError, got %T (%v)", err, err)
	}
}

func TestDecodeRejectsOverlongBuffer(t *testing.T) {
	open := NewOpen(1, 1, 5, mustOID(t, "1.3.6.1.4.1.99999"), "x")
	buf, err := Encode(open)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	buf = append(buf, 0, 0, 0, 0)
	_, err = Decode(buf)
	if err == nil {
		t.Fatal("expected error decoding overlong buffer, got nil")
	}
}

func TestDecodeRejectsShortHeader(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error decoding short header, got nil")
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	open := NewOpen(1, 1, 5, mustOID(t, "1.3.6.1.4.1.99999"), "x")
	buf, err := Encode(open)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	buf[0] = 9
	_, err = Decode(buf)
	if _, ok := err.(*UnsupportedVersionError); !ok {
		t.Fatalf("expected *UnsupportedVersionError, got %T (%v)", err, err)
	}
}

func TestDecodeSetFamilyIsRecognizedButNotParsed(t *testing.T) {
	h := Header{Version: protocolVersion, Type: TypeTestSet, SessionID: 1, PacketID: 1}
	buf := h.encode()
	msg, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode TestSet: %v", err)
	}
	if msg.Header().Type != TypeTestSet {
		t.Fatalf("expected TestSet header to survive decode, got %+v", msg.Header())
	}
}

func TestPeekHeaderReadsFixedFields(t *testing.T) {
	open := NewOpen(1, 1, 5, mustOID(t, "1.3.6.1.4.1.99999"), "x")
	buf, err := Encode(open)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	h, err := PeekHeader(buf[:HeaderSize])
	if err != nil {
		t.Fatalf("PeekHeader: %v", err)
	}
	if h.Type != TypeOpen || int(h.PayloadLength) != len(buf)-HeaderSize {
		t.Fatalf("PeekHeader mismatch: %+v", h)
	}
}
