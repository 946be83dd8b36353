package tds

// decodeValue reads one column value given its TypeInformation. It
// returns (nil, nil) for SQL NULL. The server type resolves to exactly
// one registered Codec (registry.go) via its natural ValueKind, and
// that codec owns the concrete Go type returned: native Go numerics for
// fixed-width types, string for char/varchar families, []byte for
// binary/image, decimal.Decimal for DECIMAL/NUMERIC/MONEY, and
// civil.Date/civil.Time/time.Time for the temporal families.
func decodeValue(ti *TypeInformation, r *byteReader) (any, error) {
	codec, err := resolveCodec(ti, naturalKind(ti))
	if err != nil {
		return nil, err
	}

	switch ti.LengthKind {
	case LengthFixed:
		// The fixed-width families never carry a domain decode error
		// path (no precision/scale/collation to misinterpret), so no
		// isolation buffer is needed: a truncated read here is always a
		// genuine stream desync, not a recoverable per-value error.
		return codec.Decode(ti, r, nil)
	case LengthByte:
		n, err := r.byte()
		if err != nil {
			return nil, err
		}
		return decodeIsolated(ti, r, codec, int(n))
	case LengthUShort:
		n, err := r.uint16()
		if err != nil {
			return nil, err
		}
		return decodeIsolated(ti, r, codec, int(n))
	case LengthLong:
		n, err := r.uint32()
		if err != nil {
			return nil, err
		}
		return decodeIsolated(ti, r, codec, int(n))
	case LengthPLP:
		data, isNull, err := readPLP(r)
		if err != nil {
			return nil, err
		}
		if isNull {
			return nil, nil
		}
		// data is already fully extracted from r, so a domain error
		// here can never desync the rest of the token stream either.
		return codec.Decode(ti, nil, data)
	default:
		return nil, &CodecError{Message: "tds: unknown length kind"}
	}
}

// decodeIsolated reads exactly length's worth of bytes off r up front,
// then decodes from that isolated buffer. This guarantees the caller's
// stream position always advances by exactly `length` bytes for this
// column, even if the value itself turns out malformed (CodecError) or
// of an unexpected shape (TypeMismatchError) — those are per-value
// decode domain errors (spec §7: "surfaced to the row-value consumer;
// exchange continues"), not protocol desyncs, and must never cost the
// rest of the response.
func decodeIsolated(ti *TypeInformation, r *byteReader, codec Codec, length int) (any, error) {
	if isNullLength(ti.ServerType, length) {
		return nil, nil
	}
	raw, err := r.take(length)
	if err != nil {
		return nil, err
	}
	return codec.Decode(ti, newByteReader(raw), nil)
}

// decodeFixedValue handles the types with no length prefix at all: the
// length is implied by the server type byte. Shared by several
// registry.go codecs (int/bit/float/money/date-time) for the plain
// (non-*N) fixed-width member of their family.
func decodeFixedValue(ti *TypeInformation, r *byteReader) (any, error) {
	switch ti.ServerType {
	case sqlNull:
		return nil, nil
	case sqlBit:
		return decodeBit(r)
	case sqlTinyInt:
		b, err := r.byte()
		return b, err
	case sqlSmallInt:
		return r.int16()
	case sqlInt:
		return r.int32()
	case sqlBigInt:
		return r.int64()
	case sqlReal:
		return decodeReal(r)
	case sqlFloat:
		return decodeFloat8(r)
	case sqlSmallDT:
		return decodeSmallDateTime(r)
	case sqlDateTime:
		return decodeDateTime(r)
	case sqlSmallMoney:
		return decodeSmallMoney(r)
	case sqlMoney:
		return decodeMoney8(r)
	default:
		return nil, &TypeMismatchError{ServerType: ti.ServerType, Target: "fixed"}
	}
}

// isNullLength reports whether a declared length value is this type
// family's null marker (MS-TDS 2.2.4.2.1).
func isNullLength(serverType byte, length int) bool {
	switch serverType {
	case sqlIntN, sqlBitN, sqlFloatN, sqlMoneyN, sqlDateTimeN, sqlGUID,
		sqlDecimalFixed, sqlNumericFixed, sqlDecimalN, sqlNumericN,
		sqlTimeN, sqlDateN, sqlDateTime2N, sqlDateTimeOffsetN:
		return length == 0
	case sqlChar, sqlVarChar, sqlBinary, sqlVarBinary:
		return length == 0xFF
	case sqlBigChar, sqlBigVarChar, sqlNChar, sqlNVarChar, sqlBigBinary, sqlBigVarBinary:
		return length == 0xFFFF
	case sqlText, sqlNText, sqlImage, sqlVariant:
		return length == 0
	default:
		return false
	}
}
