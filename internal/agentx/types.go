package agentx

import "fmt"

// VarBind value type tags (RFC 2741 §5.4, reusing the SMI tag values from
// RFC 2578/1905).
const (
	TagInteger        byte = 2
	TagOctetString    byte = 4
	TagNull           byte = 5
	TagObjectID       byte = 6
	TagIPAddress      byte = 64
	TagCounter32      byte = 65
	TagGauge32        byte = 66
	TagTimeTicks      byte = 67
	TagOpaque         byte = 68
	TagCounter64      byte = 70
	TagNoSuchObject   byte = 128
	TagNoSuchInstance byte = 129
	TagEndOfMibView   byte = 130
)

// IsExceptionTag reports whether tag is one of the three response-only
// sentinel values (no real value follows it on the wire).
func IsExceptionTag(tag byte) bool {
	return tag == TagNoSuchObject || tag == TagNoSuchInstance || tag == TagEndOfMibView
}

func tagName(tag byte) string {
	switch tag {
	case TagInteger:
		return "Integer"
	case TagOctetString:
		return "OctetString"
	case TagNull:
		return "Null"
	case TagObjectID:
		return "ObjectIdentifier"
	case TagIPAddress:
		return "IpAddress"
	case TagCounter32:
		return "Counter32"
	case TagGauge32:
		return "Gauge32"
	case TagTimeTicks:
		return "TimeTicks"
	case TagOpaque:
		return "Opaque"
	case TagCounter64:
		return "Counter64"
	case TagNoSuchObject:
		return "NoSuchObject"
	case TagNoSuchInstance:
		return "NoSuchInstance"
	case TagEndOfMibView:
		return "EndOfMibView"
	default:
		return fmt.Sprintf("Unknown(%d)", tag)
	}
}

// Value is a typed SNMP value. Exactly one accessor matching Type is
// meaningful; others hold the zero value. Construct with the New* helpers
// rather than composite literals so the Type tag always matches the payload.
type Value struct {
	Type  byte
	Int   int32  // Integer
	Str   []byte // OctetString, Opaque
	OID   OID    // ObjectIdentifier
	IP    [4]byte
	U32   uint32 // Counter32, Gauge32, TimeTicks
	U64   uint64 // Counter64
}

func NewInteger(v int32) Value       { return Value{Type: TagInteger, Int: v} }
func NewOctetString(v []byte) Value  { return Value{Type: TagOctetString, Str: v} }
func NewNull() Value                 { return Value{Type: TagNull} }
func NewObjectID(v OID) Value        { return Value{Type: TagObjectID, OID: v} }
func NewCounter32(v uint32) Value    { return Value{Type: TagCounter32, U32: v} }
func NewGauge32(v uint32) Value      { return Value{Type: TagGauge32, U32: v} }
func NewTimeTicks(v uint32) Value    { return Value{Type: TagTimeTicks, U32: v} }
func NewOpaque(v []byte) Value       { return Value{Type: TagOpaque, Str: v} }
func NewCounter64(v uint64) Value    { return Value{Type: TagCounter64, U64: v} }

func NewIPAddress(a, b, c, d byte) Value {
	return Value{Type: TagIPAddress, IP: [4]byte{a, b, c, d}}
}

// Exception values carried in a Response when a lookup fails.
func NewNoSuchObject() Value   { return Value{Type: TagNoSuchObject} }
func NewNoSuchInstance() Value { return Value{Type: TagNoSuchInstance} }
func NewEndOfMibView() Value   { return Value{Type: TagEndOfMibView} }

func (v Value) String() string {
	switch v.Type {
	case TagInteger:
		return fmt.Sprintf("%s(%d)", tagName(v.Type), v.Int)
	case TagOctetString, TagOpaque:
		return fmt.Sprintf("%s(%q)", tagName(v.Type), v.Str)
	case TagObjectID:
		return fmt.Sprintf("%s(%s)", tagName(v.Type), v.OID)
	case TagIPAddress:
		return fmt.Sprintf("IpAddress(%d.%d.%d.%d)", v.IP[0], v.IP[1], v.IP[2], v.IP[3])
	case TagCounter32, TagGauge32, TagTimeTicks:
		return fmt.Sprintf("%s(%d)", tagName(v.Type), v.U32)
	case TagCounter64:
		return fmt.Sprintf("Counter64(%d)", v.U64)
	default:
		return tagName(v.Type)
	}
}
