package agentx

// VarBind is the (name, value) pair carried in request and response PDUs.
// The wire form is (type_tag, reserved, name: OID, value), with the value
// payload's shape determined by type_tag; exception tags (NoSuchObject,
// NoSuchInstance, EndOfMibView) carry no value octets.
type VarBind struct {
	Name  OID
	Value Value
}

func encodeVarBind(w *writer, vb VarBind) {
	w.u32(uint32(vb.Value.Type) << 16) // 2-octet type + 2-octet reserved, packed
	w.oid(toWire(vb.Name, false))
	encodeValue(w, vb.Value)
}

func decodeVarBind(r *reader) (VarBind, error) {
	head, err := r.u32()
	if err != nil {
		return VarBind{}, err
	}
	tag := byte(head >> 16)

	wo, err := r.oid()
	if err != nil {
		return VarBind{}, err
	}

	val, err := decodeValue(r, tag)
	if err != nil {
		return VarBind{}, err
	}

	return VarBind{Name: fromWire(wo), Value: val}, nil
}

func encodeValue(w *writer, v Value) {
	switch v.Type {
	case TagInteger:
		w.u32(uint32(v.Int))
	case TagOctetString, TagOpaque:
		w.octetString(v.Str)
	case TagNull:
		// no payload
	case TagObjectID:
		w.oid(toWire(v.OID, false))
	case TagIPAddress:
		w.bytes(v.IP[:])
	case TagCounter32, TagGauge32, TagTimeTicks:
		w.u32(v.U32)
	case TagCounter64:
		w.u64(v.U64)
	case TagNoSuchObject, TagNoSuchInstance, TagEndOfMibView:
		// exception sentinels: no payload
	}
}

func decodeValue(r *reader, tag byte) (Value, error) {
	switch tag {
	case TagInteger:
		v, err := r.u32()
		if err != nil {
			return Value{}, err
		}
		return NewInteger(int32(v)), nil
	case TagOctetString:
		b, err := r.octetString()
		if err != nil {
			return Value{}, err
		}
		return NewOctetString(b), nil
	case TagOpaque:
		b, err := r.octetString()
		if err != nil {
			return Value{}, err
		}
		return NewOpaque(b), nil
	case TagNull:
		return NewNull(), nil
	case TagObjectID:
		wo, err := r.oid()
		if err != nil {
			return Value{}, err
		}
		return NewObjectID(fromWire(wo)), nil
	case TagIPAddress:
		b, err := r.raw(4)
		if err != nil {
			return Value{}, err
		}
		return NewIPAddress(b[0], b[1], b[2], b[3]), nil
	case TagCounter32:
		v, err := r.u32()
		if err != nil {
			return Value{}, err
		}
		return NewCounter32(v), nil
	case TagGauge32:
		v, err := r.u32()
		if err != nil {
			return Value{}, err
		}
		return NewGauge32(v), nil
	case TagTimeTicks:
		v, err := r.u32()
		if err != nil {
			return Value{}, err
		}
		return NewTimeTicks(v), nil
	case TagCounter64:
		v, err := r.u64()
		if err != nil {
			return Value{}, err
		}
		return NewCounter64(v), nil
	case TagNoSuchObject:
		return NewNoSuchObject(), nil
	case TagNoSuchInstance:
		return NewNoSuchInstance(), nil
	case TagEndOfMibView:
		return NewEndOfMibView(), nil
	default:
		return Value{}, malformed("unknown VarBind type tag %d", tag)
	}
}

// SearchRange is a (start, end) OID pair used by Get/GetNext/GetBulk
// requests (RFC 2741 §5.2). Include controls whether start itself is a
// candidate match (GetNext semantics); an empty End means unbounded.
type SearchRange struct {
	Start   OID
	End     OID
	Include bool
}

func encodeSearchRange(w *writer, sr SearchRange) {
	w.oid(toWire(sr.Start, sr.Include))
	w.oid(toWire(sr.End, false))
}

func decodeSearchRange(r *reader) (SearchRange, error) {
	start, err := r.oid()
	if err != nil {
		return SearchRange{}, err
	}
	end, err := r.oid()
	if err != nil {
		return SearchRange{}, err
	}
	return SearchRange{Start: fromWire(start), End: fromWire(end), Include: start.Include}, nil
}
