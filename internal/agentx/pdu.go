package agentx

// Message is any decoded AgentX PDU; all concrete PDU types below embed
// Header and implement this via a value receiver.
type Message interface {
	Header() Header
}

// OpenMessage is the AgentX Open-PDU (RFC 2741 §6.4): session establishment.
// ID is optional (zero-length OID when absent).
type OpenMessage struct {
	H       Header
	Timeout byte
	ID      OID
	Descr   string
}

func (m OpenMessage) Header() Header { return m.H }

// NewOpen builds an Open-PDU with the header's framing fields pre-filled.
func NewOpen(transactionID, packetID uint32, timeout byte, id OID, descr string) OpenMessage {
	return OpenMessage{
		H:       Header{Version: protocolVersion, Type: TypeOpen, Flags: FlagNetworkByteOrder, TransactionID: transactionID, PacketID: packetID},
		Timeout: timeout,
		ID:      id,
		Descr:   descr,
	}
}

func (m OpenMessage) encodePayload() []byte {
	w := &writer{}
	w.byte(m.Timeout)
	w.bytes([]byte{0, 0, 0})
	w.oid(toWire(m.ID, false))
	w.octetString([]byte(m.Descr))
	return w.buf.Bytes()
}

func decodeOpen(h Header, r *reader) (OpenMessage, error) {
	m := OpenMessage{H: h}
	var err error
	if m.Timeout, err = r.byte(); err != nil {
		return m, err
	}
	if err := r.skip(3); err != nil {
		return m, err
	}
	wo, err := r.oid()
	if err != nil {
		return m, err
	}
	m.ID = fromWire(wo)
	descr, err := r.octetString()
	if err != nil {
		return m, err
	}
	m.Descr = string(descr)
	return m, nil
}

// CloseMessage is the AgentX Close-PDU (RFC 2741 §6.5).
type CloseMessage struct {
	H      Header
	Reason byte
}

func (m CloseMessage) Header() Header { return m.H }

const (
	CloseReasonOther        byte = 1
	CloseReasonParseError   byte = 2
	CloseReasonProtoError   byte = 3
	CloseReasonTimeouts     byte = 4
	CloseReasonShutdown     byte = 5
	CloseReasonByManager    byte = 6
)

func NewClose(sessionID, transactionID, packetID uint32, reason byte) CloseMessage {
	return CloseMessage{
		H:      Header{Version: protocolVersion, Type: TypeClose, Flags: FlagNetworkByteOrder, SessionID: sessionID, TransactionID: transactionID, PacketID: packetID},
		Reason: reason,
	}
}

func (m CloseMessage) encodePayload() []byte {
	w := &writer{}
	w.byte(m.Reason)
	w.bytes([]byte{0, 0, 0})
	return w.buf.Bytes()
}

func decodeClose(h Header, r *reader) (CloseMessage, error) {
	m := CloseMessage{H: h}
	var err error
	if m.Reason, err = r.byte(); err != nil {
		return m, err
	}
	if err := r.skip(3); err != nil {
		return m, err
	}
	return m, nil
}

// RegisterMessage is the AgentX Register-PDU (RFC 2741 §6.6): declares
// ownership of the OID sub-tree rooted at Subtree, optionally restricted to
// an index range via RangeSubid/UpperBound.
type RegisterMessage struct {
	H           Header
	Timeout     byte
	Priority    byte
	RangeSubid  byte
	Subtree     OID
	UpperBound  uint32
	HasUpperBound bool
}

func (m RegisterMessage) Header() Header { return m.H }

func NewRegister(sessionID, transactionID, packetID uint32, subtree OID, priority byte, timeout byte) RegisterMessage {
	return RegisterMessage{
		H:        Header{Version: protocolVersion, Type: TypeRegister, Flags: FlagNetworkByteOrder, SessionID: sessionID, TransactionID: transactionID, PacketID: packetID},
		Timeout:  timeout,
		Priority: priority,
		Subtree:  subtree,
	}
}

func (m RegisterMessage) encodePayload() []byte {
	w := &writer{}
	w.byte(m.Timeout)
	w.byte(m.Priority)
	w.byte(m.RangeSubid)
	w.byte(0)
	w.oid(toWire(m.Subtree, false))
	if m.RangeSubid != 0 {
		w.u32(m.UpperBound)
	}
	return w.buf.Bytes()
}

func decodeRegister(h Header, r *reader) (RegisterMessage, error) {
	m := RegisterMessage{H: h}
	var err error
	if m.Timeout, err = r.byte(); err != nil {
		return m, err
	}
	if m.Priority, err = r.byte(); err != nil {
		return m, err
	}
	if m.RangeSubid, err = r.byte(); err != nil {
		return m, err
	}
	if err := r.skip(1); err != nil {
		return m, err
	}
	wo, err := r.oid()
	if err != nil {
		return m, err
	}
	m.Subtree = fromWire(wo)
	if m.RangeSubid != 0 {
		ub, err := r.u32()
		if err != nil {
			return m, err
		}
		m.UpperBound = ub
		m.HasUpperBound = true
	}
	return m, nil
}

// UnregisterMessage is the AgentX Unregister-PDU (RFC 2741 §6.7). This
// read-only agent never unregisters at runtime, but decode support keeps the
// codec symmetric and testable.
type UnregisterMessage struct {
	H          Header
	Priority   byte
	RangeSubid byte
	Subtree    OID
	UpperBound uint32
	HasUpperBound bool
}

func (m UnregisterMessage) Header() Header { return m.H }

func decodeUnregister(h Header, r *reader) (UnregisterMessage, error) {
	m := UnregisterMessage{H: h}
	if _, err := r.byte(); err != nil { // reserved (no timeout on Unregister)
		return m, err
	}
	var err error
	if m.Priority, err = r.byte(); err != nil {
		return m, err
	}
	if m.RangeSubid, err = r.byte(); err != nil {
		return m, err
	}
	if err := r.skip(1); err != nil {
		return m, err
	}
	wo, err := r.oid()
	if err != nil {
		return m, err
	}
	m.Subtree = fromWire(wo)
	if m.RangeSubid != 0 {
		ub, err := r.u32()
		if err != nil {
			return m, err
		}
		m.UpperBound = ub
		m.HasUpperBound = true
	}
	return m, nil
}

// RequestMessage covers Get, GetNext and GetBulk (RFC 2741 §6.8-6.10): a
// list of search ranges, plus GetBulk's NonRepeaters/MaxRepetitions (zero
// and unused for Get/GetNext).
type RequestMessage struct {
	H              Header
	NonRepeaters   uint16
	MaxRepetitions uint16
	Ranges         []SearchRange
}

func (m RequestMessage) Header() Header { return m.H }

func (m RequestMessage) encodePayload() []byte {
	w := &writer{}
	if m.H.Type == TypeGetBulk {
		w.u32(uint32(m.NonRepeaters)<<16 | uint32(m.MaxRepetitions))
	}
	for _, sr := range m.Ranges {
		encodeSearchRange(w, sr)
	}
	return w.buf.Bytes()
}

func decodeRequest(h Header, r *reader) (RequestMessage, error) {
	m := RequestMessage{H: h}
	if h.Type == TypeGetBulk {
		v, err := r.u32()
		if err != nil {
			return m, err
		}
		m.NonRepeaters = uint16(v >> 16)
		m.MaxRepetitions = uint16(v)
	}
	for r.remaining() > 0 {
		sr, err := decodeSearchRange(r)
		if err != nil {
			return m, err
		}
		m.Ranges = append(m.Ranges, sr)
	}
	return m, nil
}

// ResponseMessage is the AgentX Response-PDU (RFC 2741 §6.2.11), used both
// as the reply from the master (Open/Register) and the reply this agent
// sends to every request PDU.
type ResponseMessage struct {
	H         Header
	SysUpTime uint32
	Error     uint16
	Index     uint16
	VarBinds  []VarBind
}

func (m ResponseMessage) Header() Header { return m.H }

func NewResponse(h Header, sysUpTime uint32, errCode, index uint16, vbs []VarBind) ResponseMessage {
	resp := Header{
		Version: protocolVersion, Type: TypeResponse, Flags: FlagNetworkByteOrder,
		SessionID: h.SessionID, TransactionID: h.TransactionID, PacketID: h.PacketID,
	}
	return ResponseMessage{H: resp, SysUpTime: sysUpTime, Error: errCode, Index: index, VarBinds: vbs}
}

func (m ResponseMessage) encodePayload() []byte {
	w := &writer{}
	w.u32(m.SysUpTime)
	w.u32(uint32(m.Error)<<16 | uint32(m.Index))
	for _, vb := range m.VarBinds {
		encodeVarBind(w, vb)
	}
	return w.buf.Bytes()
}

func decodeResponse(h Header, r *reader) (ResponseMessage, error) {
	m := ResponseMessage{H: h}
	up, err := r.u32()
	if err != nil {
		return m, err
	}
	m.SysUpTime = up
	ei, err := r.u32()
	if err != nil {
		return m, err
	}
	m.Error = uint16(ei >> 16)
	m.Index = uint16(ei)
	for r.remaining() > 0 {
		vb, err := decodeVarBind(r)
		if err != nil {
			return m, err
		}
		m.VarBinds = append(m.VarBinds, vb)
	}
	return m, nil
}

// NotifyMessage is the AgentX Notify-PDU (RFC 2741 §6.11): the envelope
// carrying an SNMP trap/inform's varbinds from agent to master.
type NotifyMessage struct {
	H        Header
	VarBinds []VarBind
}

func (m NotifyMessage) Header() Header { return m.H }

func NewNotify(sessionID, transactionID, packetID uint32, vbs []VarBind) NotifyMessage {
	return NotifyMessage{
		H:        Header{Version: protocolVersion, Type: TypeNotify, Flags: FlagNetworkByteOrder, SessionID: sessionID, TransactionID: transactionID, PacketID: packetID},
		VarBinds: vbs,
	}
}

func (m NotifyMessage) encodePayload() []byte {
	w := &writer{}
	for _, vb := range m.VarBinds {
		encodeVarBind(w, vb)
	}
	return w.buf.Bytes()
}

func decodeNotify(h Header, r *reader) (NotifyMessage, error) {
	m := NotifyMessage{H: h}
	for r.remaining() > 0 {
		vb, err := decodeVarBind(r)
		if err != nil {
			return m, err
		}
		m.VarBinds = append(m.VarBinds, vb)
	}
	return m, nil
}

// rawSetMessage decodes to a value carrying only the header for the
// SET-family PDUs (TestSet/CommitSet/UndoSet/CleanupSet), which
// requires the agent to answer with a well-formed error Response but
// otherwise ignore — there is no need to parse their payload in detail.
type rawSetMessage struct {
	H Header
}

func (m rawSetMessage) Header() Header { return m.H }

// Encode serialises any of the PDU types above, computing PayloadLength and
// prefixing the fixed header.
func Encode(m Message) ([]byte, error) {
	h := m.Header()
	var payload []byte
	switch v := m.(type) {
	case OpenMessage:
		payload = v.encodePayload()
	case CloseMessage:
		payload = v.encodePayload()
	case RegisterMessage:
		payload = v.encodePayload()
	case RequestMessage:
		payload = v.encodePayload()
	case ResponseMessage:
		payload = v.encodePayload()
	case NotifyMessage:
		payload = v.encodePayload()
	default:
		return nil, malformed("encode: unsupported message type %T", m)
	}
	h.PayloadLength = uint32(len(payload))
	out := make([]byte, 0, HeaderSize+len(payload))
	out = append(out, h.encode()...)
	out = append(out, payload...)
	return out, nil
}

// Decode parses one complete PDU (header + payload) from buf, which must
// contain exactly HeaderSize+PayloadLength octets — any more or fewer is a
// framing error.
func Decode(buf []byte) (Message, error) {
	h, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}
	total := HeaderSize + int(h.PayloadLength)
	if len(buf) != total {
		return nil, malformed("payload length mismatch: header declares %d, buffer holds %d", h.PayloadLength, len(buf)-HeaderSize)
	}
	r := newReader(buf[HeaderSize:], h.byteOrder())

	var msg Message
	switch h.Type {
	case TypeOpen:
		msg, err = decodeOpen(h, r)
	case TypeClose:
		msg, err = decodeClose(h, r)
	case TypeRegister:
		msg, err = decodeRegister(h, r)
	case TypeUnregister:
		msg, err = decodeUnregister(h, r)
	case TypeGet, TypeGetNext, TypeGetBulk:
		msg, err = decodeRequest(h, r)
	case TypeResponse:
		msg, err = decodeResponse(h, r)
	case TypeNotify:
		msg, err = decodeNotify(h, r)
	case TypeTestSet, TypeCommitSet, TypeUndoSet, TypeCleanupSet:
		msg = rawSetMessage{H: h}
		err = r.skip(r.remaining())
	default:
		return nil, malformed("unknown PDU type %d", h.Type)
	}
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, malformed("%d unconsumed octets after decoding PDU type %d", r.remaining(), h.Type)
	}
	return msg, nil
}

// PeekHeader decodes only the fixed header, for callers (the session read
// loop) that need PayloadLength before they can read the rest of the frame
// off the transport.
func PeekHeader(buf []byte) (Header, error) {
	return decodeHeader(buf)
}
