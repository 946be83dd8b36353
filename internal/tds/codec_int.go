package tds

// decodeIntN decodes the nullable integer family (INTN), whose declared
// length selects the concrete width: 1=TINYINT, 2=SMALLINT, 4=INT, 8=BIGINT.
func decodeIntN(r *byteReader, length int) (any, error) {
	switch length {
	case 1:
		return r.byte()
	case 2:
		return r.int16()
	case 4:
		return r.int32()
	case 8:
		return r.int64()
	default:
		return nil, &CodecError{Message: "tds: invalid INTN length"}
	}
}

// encodeInt encodes a Go integer as the fixed-width INT family value
// matching the declared server type (used when building RPC/parameter
// payloads; no length prefix since these are LengthFixed/LengthByte
// callers add their own prefix).
func encodeInt(w *byteWriter, serverType byte, v int64) {
	switch serverType {
	case sqlTinyInt:
		w.writeByte(byte(v))
	case sqlSmallInt:
		w.writeUint16(uint16(v))
	case sqlInt:
		w.writeUint32(uint32(v))
	case sqlBigInt:
		w.writeUint64(uint64(v))
	}
}
