package agentx

import (
	"bytes"
	"encoding/binary"
)

// writer accumulates an encoded PDU payload. The agent always emits network
// (big-endian) byte order
type writer struct {
	buf bytes.Buffer
}

func (w *writer) byte(b byte) { w.buf.WriteByte(b) }

func (w *writer) bytes(b []byte) { w.buf.Write(b) }

func (w *writer) u32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf.Write(tmp[:])
}

func (w *writer) u64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.buf.Write(tmp[:])
}

func (w *writer) oid(o wireOID) {
	w.byte(byte(len(o.SubIDs)))
	w.byte(o.Prefix)
	if o.Include {
		w.byte(1)
	} else {
		w.byte(0)
	}
	w.byte(0) // reserved
	for _, v := range o.SubIDs {
		w.u32(v)
	}
}

// octetString writes the length-prefixed, 4-octet-aligned OCTET STRING
// encoding used throughout AgentX (descriptors, community strings,
// OctetString/Opaque VarBind values).
func (w *writer) octetString(data []byte) {
	w.u32(uint32(len(data)))
	w.bytes(data)
	if pad := (4 - len(data)%4) % 4; pad > 0 {
		w.bytes(make([]byte, pad))
	}
}

func (w *writer) bytesLen() int { return w.buf.Len() }

// reader sequentially decodes a PDU payload. pos tracks the offset into the
// original buffer for error messages; bo is the header's declared byte
// order.
type reader struct {
	buf []byte
	pos int
	bo  binary.ByteOrder
}

func newReader(buf []byte, bo binary.ByteOrder) *reader {
	return &reader{buf: buf, bo: bo}
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) need(n int) error {
	if r.remaining() < n {
		return malformed("need %d octets at offset %d, have %d", n, r.pos, r.remaining())
	}
	return nil
}

func (r *reader) byte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

func (r *reader) raw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := r.bo.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := r.bo.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *reader) oid() (wireOID, error) {
	nsubid, err := r.byte()
	if err != nil {
		return wireOID{}, err
	}
	prefix, err := r.byte()
	if err != nil {
		return wireOID{}, err
	}
	include, err := r.byte()
	if err != nil {
		return wireOID{}, err
	}
	if _, err := r.byte(); err != nil { // reserved
		return wireOID{}, err
	}
	subs := make([]uint32, 0, nsubid)
	for i := 0; i < int(nsubid); i++ {
		v, err := r.u32()
		if err != nil {
			return wireOID{}, err
		}
		subs = append(subs, v)
	}
	return wireOID{Prefix: prefix, Include: include != 0, SubIDs: subs}, nil
}

func (r *reader) octetString() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	data, err := r.raw(int(n))
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), data...)
	if pad := (4 - int(n)%4) % 4; pad > 0 {
		if err := r.skip(pad); err != nil {
			return nil, err
		}
	}
	return out, nil
}
