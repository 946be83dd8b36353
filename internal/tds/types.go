package tds

import "fmt"

// ── Server Type Bytes (MS-TDS 2.2.5.4) ──────────────────────────────────

const (
	sqlNull     byte = 0x1F
	sqlTinyInt  byte = 0x30
	sqlBit      byte = 0x32
	sqlSmallInt byte = 0x34
	sqlInt      byte = 0x38
	sqlSmallDT  byte = 0x3A
	sqlReal     byte = 0x3B
	sqlMoney    byte = 0x3C
	sqlDateTime byte = 0x3D
	sqlFloat    byte = 0x3E
	sqlSmallMoney byte = 0x7A
	sqlBigInt   byte = 0x7F

	sqlGUID byte = 0x24
	sqlIntN byte = 0x26
	sqlDecimalFixed byte = 0x37
	sqlNumericFixed byte = 0x3F
	sqlBitN     byte = 0x68
	sqlDecimalN byte = 0x6A
	sqlNumericN byte = 0x6C
	sqlFloatN   byte = 0x6D
	sqlMoneyN   byte = 0x6E
	sqlDateTimeN byte = 0x6F
	sqlDateN    byte = 0x28
	sqlTimeN    byte = 0x29
	sqlDateTime2N byte = 0x2A
	sqlDateTimeOffsetN byte = 0x2B

	sqlChar    byte = 0x2F
	sqlVarChar byte = 0x27
	sqlBinary  byte = 0x2D
	sqlVarBinary byte = 0x25

	sqlBigVarBinary byte = 0xA5
	sqlBigVarChar   byte = 0xA7
	sqlBigBinary    byte = 0xAD
	sqlBigChar      byte = 0xAF
	sqlNVarChar     byte = 0xE7
	sqlNChar        byte = 0xEF
	sqlXML          byte = 0xF1
	sqlUDT          byte = 0xF0
	sqlText         byte = 0x23
	sqlImage        byte = 0x22
	sqlNText        byte = 0x63
	sqlVariant      byte = 0x62
)

// LengthKind classifies how a type's length is declared on the wire
// (MS-TDS 2.2.5.2.1).
type LengthKind int

const (
	// LengthFixed types have no length prefix; the size is implied by
	// the server type byte alone (e.g. INT4, FLOAT8).
	LengthFixed LengthKind = iota
	// LengthByte types carry a 1-byte length (most *N nullable types).
	LengthByte
	// LengthUShort types carry a 2-byte length (VARCHAR/NVARCHAR/VARBINARY).
	LengthUShort
	// LengthLong types carry a 4-byte length (TEXT/NTEXT/IMAGE legacy BLOBs).
	LengthLong
	// LengthPLP types are partially length-prefixed (MAX types, XML).
	LengthPLP
)

// TypeInformation is the decoded TYPE_INFO structure preceding a column
// or parameter's value: the server type byte plus whatever
// length/precision/scale/collation metadata that type declares.
type TypeInformation struct {
	ServerType byte
	LengthKind LengthKind

	// MaxLength is the declared maximum length in bytes (or 0xFFFF for
	// PLP MAX types, where the true bound is unknown).
	MaxLength int

	Precision byte
	Scale     byte

	Collation Collation
}

// IsMax reports whether this is a PLP MAX type (VARCHAR(MAX),
// NVARCHAR(MAX), VARBINARY(MAX)), declared by MaxLength == 0xFFFF.
func (t *TypeInformation) IsMax() bool {
	return t.LengthKind == LengthPLP && t.MaxLength == 0xFFFF
}

// decodeTypeInfo reads a TYPE_INFO structure from r: the server type
// byte followed by whatever length/precision/scale/collation fields
// that type declares (MS-TDS 2.2.5.4).
func decodeTypeInfo(r *byteReader) (*TypeInformation, error) {
	st, err := r.byte()
	if err != nil {
		return nil, err
	}
	ti := &TypeInformation{ServerType: st}

	switch st {
	case sqlNull, sqlBit, sqlTinyInt, sqlSmallInt, sqlInt, sqlBigInt,
		sqlReal, sqlFloat, sqlSmallDT, sqlDateTime, sqlSmallMoney, sqlMoney:
		ti.LengthKind = LengthFixed
		ti.MaxLength = fixedTypeSize(st)

	case sqlIntN, sqlBitN, sqlFloatN, sqlMoneyN, sqlDateTimeN, sqlGUID:
		ti.LengthKind = LengthByte
		n, err := r.byte()
		if err != nil {
			return nil, err
		}
		ti.MaxLength = int(n)

	case sqlDecimalFixed, sqlNumericFixed, sqlDecimalN, sqlNumericN:
		ti.LengthKind = LengthByte
		n, err := r.byte()
		if err != nil {
			return nil, err
		}
		ti.MaxLength = int(n)
		if ti.Precision, err = r.byte(); err != nil {
			return nil, err
		}
		if ti.Scale, err = r.byte(); err != nil {
			return nil, err
		}

	case sqlDateN:
		ti.LengthKind = LengthByte
		ti.MaxLength = 3

	case sqlTimeN, sqlDateTime2N, sqlDateTimeOffsetN:
		ti.LengthKind = LengthByte
		if ti.Scale, err = r.byte(); err != nil {
			return nil, err
		}
		ti.MaxLength = scaledTemporalSize(st, ti.Scale)

	case sqlChar, sqlVarChar, sqlBinary, sqlVarBinary:
		ti.LengthKind = LengthByte
		n, err := r.byte()
		if err != nil {
			return nil, err
		}
		ti.MaxLength = int(n)
		if st == sqlChar || st == sqlVarChar {
			if ti.Collation, err = decodeCollation(r); err != nil {
				return nil, err
			}
		}

	case sqlBigChar, sqlBigVarChar, sqlNChar, sqlNVarChar:
		ti.LengthKind = LengthUShort
		n, err := r.uint16()
		if err != nil {
			return nil, err
		}
		ti.MaxLength = int(n)
		if ti.Collation, err = decodeCollation(r); err != nil {
			return nil, err
		}
		if ti.MaxLength == 0xFFFF {
			ti.LengthKind = LengthPLP
		}

	case sqlBigBinary, sqlBigVarBinary:
		ti.LengthKind = LengthUShort
		n, err := r.uint16()
		if err != nil {
			return nil, err
		}
		ti.MaxLength = int(n)
		if ti.MaxLength == 0xFFFF {
			ti.LengthKind = LengthPLP
		}

	case sqlXML:
		ti.LengthKind = LengthPLP
		ti.MaxLength = 0xFFFF
		// Schema presence byte: 0x00 (no schema) or 0x01 plus
		// dbname/owner/collection fields. The core does not validate
		// XML against a schema, so it only needs to skip this.
		hasSchema, err := r.byte()
		if err != nil {
			return nil, err
		}
		if hasSchema != 0 {
			if _, err := skipBVarchar(r); err != nil {
				return nil, err
			}
			if _, err := skipBVarchar(r); err != nil {
				return nil, err
			}
			if _, err := r.usVarchar(); err != nil {
				return nil, err
			}
		}

	case sqlText, sqlNText, sqlImage:
		ti.LengthKind = LengthLong
		n, err := r.uint32()
		if err != nil {
			return nil, err
		}
		ti.MaxLength = int(n)
		if st == sqlText || st == sqlNText {
			if ti.Collation, err = decodeCollation(r); err != nil {
				return nil, err
			}
		}

	case sqlVariant:
		ti.LengthKind = LengthLong
		n, err := r.uint32()
		if err != nil {
			return nil, err
		}
		ti.MaxLength = int(n)

	default:
		return nil, &ProtocolError{Message: fmt.Sprintf("tds: invalid type descriptor 0x%02X", st)}
	}

	return ti, nil
}

func skipBVarchar(r *byteReader) (struct{}, error) {
	_, err := r.bVarchar()
	return struct{}{}, err
}

func fixedTypeSize(st byte) int {
	switch st {
	case sqlNull:
		return 0
	case sqlBit, sqlTinyInt:
		return 1
	case sqlSmallInt, sqlSmallMoney, sqlSmallDT:
		return 2
	case sqlInt, sqlReal, sqlDateTime, sqlMoney:
		return 4
	case sqlBigInt, sqlFloat:
		return 8
	default:
		return 0
	}
}

func scaledTemporalSize(st byte, scale byte) int {
	// MS-TDS 2.2.5.4.2.9: variable-precision temporal types shrink as
	// scale decreases (fewer fractional-second bytes).
	var n int
	switch {
	case scale <= 2:
		n = 3
	case scale <= 4:
		n = 4
	default:
		n = 5
	}
	switch st {
	case sqlDateTime2N:
		return n + 3
	case sqlDateTimeOffsetN:
		return n + 3 + 2
	default:
		return n
	}
}
