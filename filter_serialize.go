package infidex

import (
	"encoding/binary"
	"math"
)

// ═══════════════════════════════════════════════════════════════════════════════
// FILTER DSL: INFISCRIPT-V1 BYTECODE SERIALIZATION (§4.7/§6)
// ═══════════════════════════════════════════════════════════════════════════════
// Follows the length-prefixed writeString/readString binary idiom used
// elsewhere in this package (serialization.go), retargeted at the
// constant-pool + instruction stream layout §6 mandates instead of a
// full index snapshot.
// ═══════════════════════════════════════════════════════════════════════════════

const infiscriptMagic = "INFISCRIPT-V1"

// SerializeFilter encodes c into the INFISCRIPT-V1 binary format.
func SerializeFilter(c *CompiledFilter) []byte {
	buf := make([]byte, 0, 128)
	buf = append(buf, infiscriptMagic...)

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(c.Constants)))
	buf = append(buf, countBuf[:]...)

	for _, v := range c.Constants {
		buf = encodeConst(buf, v)
	}

	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(c.Instructions)))
	buf = append(buf, countBuf[:]...)

	for _, ins := range c.Instructions {
		buf = append(buf, byte(ins.op))
		var opBuf [4]byte
		binary.LittleEndian.PutUint32(opBuf[:], uint32(ins.operand))
		buf = append(buf, opBuf[:]...)
	}
	return buf
}

func encodeConst(buf []byte, v FieldValue) []byte {
	switch v.Kind {
	case KindNull:
		return append(buf, byte(constNull))
	case KindBool:
		b := byte(0)
		if v.B {
			b = 1
		}
		return append(buf, byte(constBool), b)
	case KindInt:
		buf = append(buf, byte(constInt))
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.I))
		return append(buf, b[:]...)
	case KindFloat:
		buf = append(buf, byte(constFloat))
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.F))
		return append(buf, b[:]...)
	case KindString:
		buf = append(buf, byte(constString))
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(v.S)))
		buf = append(buf, lenBuf[:]...)
		return append(buf, v.S...)
	}
	return append(buf, byte(constNull))
}

// DeserializeFilter decodes an INFISCRIPT-V1 stream back into a
// CompiledFilter. Per §6: a bad magic prefix, truncated stream, or
// out-of-range constant-pool reference is rejected as a SerializationError
// with no partial state retained by the caller.
func DeserializeFilter(data []byte) (*CompiledFilter, error) {
	if len(data) < len(infiscriptMagic) || string(data[:len(infiscriptMagic)]) != infiscriptMagic {
		return nil, &SerializationError{Reason: "bad magic prefix"}
	}
	r := &byteReader{data: data, pos: len(infiscriptMagic)}

	constCount, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	c := newCompiledFilter()
	c.Constants = make([]FieldValue, 0, constCount)
	for i := uint32(0); i < constCount; i++ {
		v, err := decodeConst(r)
		if err != nil {
			return nil, err
		}
		c.Constants = append(c.Constants, v)
	}

	instrCount, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	c.Instructions = make([]instruction, 0, instrCount)
	for i := uint32(0); i < instrCount; i++ {
		opByte, err := r.readByte()
		if err != nil {
			return nil, err
		}
		operand, err := r.readInt32()
		if err != nil {
			return nil, err
		}
		c.Instructions = append(c.Instructions, instruction{op: opcode(opByte), operand: operand})
	}

	if instrCount == 0 || c.Instructions[instrCount-1].op != opHalt {
		return nil, &SerializationError{Reason: "bytecode stream missing terminal HALT"}
	}
	for _, ins := range c.Instructions {
		if ins.op == opLoadField || ins.op == opPushConst || ins.op == opMatches {
			if ins.operand < 0 || int(ins.operand) >= len(c.Constants) {
				return nil, &SerializationError{Reason: "constant pool reference out of range"}
			}
		}
	}
	return c, nil
}

func decodeConst(r *byteReader) (FieldValue, error) {
	tagByte, err := r.readByte()
	if err != nil {
		return FieldValue{}, err
	}
	switch constTag(tagByte) {
	case constNull:
		return NullValue(), nil
	case constBool:
		b, err := r.readByte()
		if err != nil {
			return FieldValue{}, err
		}
		return BoolValue(b != 0), nil
	case constInt:
		u, err := r.readUint64()
		if err != nil {
			return FieldValue{}, err
		}
		return IntValue(int64(u)), nil
	case constFloat:
		u, err := r.readUint64()
		if err != nil {
			return FieldValue{}, err
		}
		return FloatValue(math.Float64frombits(u)), nil
	case constString:
		n, err := r.readUint32()
		if err != nil {
			return FieldValue{}, err
		}
		s, err := r.readString(int(n))
		if err != nil {
			return FieldValue{}, err
		}
		return StringValue(s), nil
	}
	return FieldValue{}, &SerializationError{Reason: "unrecognized constant tag"}
}

// byteReader is a minimal bounds-checked cursor over a serialized filter
// stream, matching the reader-with-position idiom used in serialization.go.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, &SerializationError{Reason: "truncated stream"}
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) readUint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, &SerializationError{Reason: "truncated stream"}
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *byteReader) readInt32() (int32, error) {
	v, err := r.readUint32()
	return int32(v), err
}

func (r *byteReader) readUint16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, &SerializationError{Reason: "truncated stream"}
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

func (r *byteReader) readUint64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, &SerializationError{Reason: "truncated stream"}
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *byteReader) readString(n int) (string, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return "", &SerializationError{Reason: "truncated stream"}
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s, nil
}
