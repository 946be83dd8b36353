package tds

// decodeSQLVariant decodes a SQL_VARIANT value: a 1-byte base type, a
// 1-byte property-bytes count, that many property bytes (precision/
// scale/collation/max-length depending on the base type), then the
// value itself sized by the remaining bytes (MS-TDS 2.2.5.4.5).
//
// The core supports the scalar base types it otherwise decodes;
// variant-wrapped large types (TEXT/NTEXT/IMAGE) are rejected, since a
// server never actually puts those inside a variant.
func decodeSQLVariant(r *byteReader, totalLength int) (any, error) {
	if totalLength == 0 {
		return nil, nil
	}
	baseType, err := r.byte()
	if err != nil {
		return nil, err
	}
	propBytesLen, err := r.byte()
	if err != nil {
		return nil, err
	}

	ti := &TypeInformation{ServerType: baseType}
	consumed := 2

	switch baseType {
	case sqlDecimalFixed, sqlNumericFixed, sqlDecimalN, sqlNumericN:
		if propBytesLen != 2 {
			return nil, &CodecError{Message: "tds: malformed variant decimal properties"}
		}
		if ti.Precision, err = r.byte(); err != nil {
			return nil, err
		}
		if ti.Scale, err = r.byte(); err != nil {
			return nil, err
		}
		consumed += 2
	case sqlTimeN, sqlDateTime2N, sqlDateTimeOffsetN:
		if ti.Scale, err = r.byte(); err != nil {
			return nil, err
		}
		consumed++
	case sqlBigVarChar, sqlBigChar, sqlNVarChar, sqlNChar:
		if _, err := r.take(int(propBytesLen)); err != nil {
			return nil, err
		}
		consumed += int(propBytesLen)
	default:
		if propBytesLen > 0 {
			if _, err := r.take(int(propBytesLen)); err != nil {
				return nil, err
			}
			consumed += int(propBytesLen)
		}
	}

	valueLen := totalLength - consumed
	if valueLen < 0 {
		return nil, &CodecError{Message: "tds: variant value length underflow"}
	}

	switch ti.ServerType {
	case sqlBit, sqlTinyInt, sqlSmallInt, sqlInt, sqlBigInt, sqlReal, sqlFloat, sqlGUID,
		sqlSmallMoney, sqlMoney, sqlDateN:
		return decodeFixedOrSizedValue(ti, r, valueLen)
	case sqlDecimalFixed, sqlNumericFixed, sqlDecimalN, sqlNumericN:
		return decodeDecimal(r, valueLen, ti.Precision, ti.Scale)
	case sqlTimeN:
		return decodeTimeN(r, ti.Scale)
	case sqlDateTime2N:
		return decodeDateTime2N(r, ti.Scale)
	case sqlDateTimeOffsetN:
		return decodeDateTimeOffsetN(r, ti.Scale)
	case sqlBigVarChar, sqlBigChar:
		b, err := r.take(valueLen)
		if err != nil {
			return nil, err
		}
		return Collation{}.decodeNarrow(b), nil
	case sqlNVarChar, sqlNChar:
		b, err := r.take(valueLen)
		if err != nil {
			return nil, err
		}
		return decodeUTF16LE(b), nil
	case sqlBigBinary, sqlBigVarBinary:
		b, err := r.take(valueLen)
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	default:
		return nil, &TypeMismatchError{ServerType: ti.ServerType, Target: "sql_variant"}
	}
}

// decodeFixedOrSizedValue decodes a fixed-family server type whose
// SQL_VARIANT wrapper still specifies an explicit value length (GUID
// and DATE have a value length that differs from their "no length
// prefix" form elsewhere in the codec).
func decodeFixedOrSizedValue(ti *TypeInformation, r *byteReader, length int) (any, error) {
	switch ti.ServerType {
	case sqlGUID:
		return decodeGUID(r)
	case sqlDateN:
		return decodeDate(r)
	default:
		return decodeFixedValue(ti, r)
	}
}
