package agentx

import "encoding/binary"

// PDU type octet values (RFC 2741 §6.1).
const (
	TypeOpen       byte = 1
	TypeClose      byte = 2
	TypeRegister   byte = 3
	TypeUnregister byte = 4
	TypeGet        byte = 5
	TypeGetNext    byte = 6
	TypeGetBulk    byte = 7
	TypeTestSet    byte = 8
	TypeCommitSet  byte = 9
	TypeUndoSet    byte = 10
	TypeCleanupSet byte = 11
	TypeNotify     byte = 12
	TypePing       byte = 13
	TypeResponse   byte = 18
)

// Header flag bits (RFC 2741 §6.1).
const (
	FlagInstanceRegistration byte = 0x01
	FlagNewIndex             byte = 0x02
	FlagAnyIndex             byte = 0x04
	FlagNonDefaultContext    byte = 0x08
	FlagNetworkByteOrder     byte = 0x10
)

// HeaderSize is the fixed 20-octet AgentX PDU header length.
const HeaderSize = 20

// protocolVersion is the only AgentX version this agent speaks.
const protocolVersion byte = 1

// Header is the fixed 20-octet AgentX PDU header (RFC 2741 §6.1). Flags bit
// 0x10 records whether the payload that follows is big-endian (set) or
// little-endian (clear); this agent always emits big-endian (network byte
// order) and accepts either on decode.
type Header struct {
	Version       byte
	Type          byte
	Flags         byte
	SessionID     uint32
	TransactionID uint32
	PacketID      uint32
	PayloadLength uint32
}

func (h Header) byteOrder() binary.ByteOrder {
	if h.Flags&FlagNetworkByteOrder != 0 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// encode writes the 20-octet header, always in network byte order — the
// agent is the party that sets FlagNetworkByteOrder on every PDU it emits.
func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Version
	buf[1] = h.Type
	buf[2] = h.Flags
	buf[3] = 0 // reserved
	binary.BigEndian.PutUint32(buf[4:8], h.SessionID)
	binary.BigEndian.PutUint32(buf[8:12], h.TransactionID)
	binary.BigEndian.PutUint32(buf[12:16], h.PacketID)
	binary.BigEndian.PutUint32(buf[16:20], h.PayloadLength)
	return buf
}

// decodeHeader parses the fixed header from the first HeaderSize octets of
// buf. It does not validate PayloadLength against the remaining buffer —
// callers are expected to read exactly PayloadLength more octets before
// calling decodePayload.
func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, malformed("short header: got %d octets, want %d", len(buf), HeaderSize)
	}
	h := Header{
		Version: buf[0],
		Type:    buf[1],
		Flags:   buf[2],
	}
	if h.Version != protocolVersion {
		return Header{}, &UnsupportedVersionError{Version: h.Version}
	}
	bo := h.byteOrder()
	h.SessionID = bo.Uint32(buf[4:8])
	h.TransactionID = bo.Uint32(buf[8:12])
	h.PacketID = bo.Uint32(buf[12:16])
	h.PayloadLength = bo.Uint32(buf[16:20])
	return h, nil
}
