package tds

import (
	"fmt"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValueKind names the Go-level shape a column or parameter value takes,
// independent of which server type produced or will consume it (spec
// §4.3: "the target value kinds [a codec] produces").
type ValueKind int

const (
	KindBool ValueKind = iota
	KindInt
	KindFloat
	KindDecimal
	KindString
	KindBytes
	KindGUID
	KindDate
	KindTime
	KindDateTime
	KindVariant
)

// Codec is one SQL Server scalar family's encode/decode unit: it
// advertises which (TypeInformation, ValueKind) pairs it serves,
// decodes a value given the length already parsed off the wire (or the
// reassembled PLP bytes), and encodes a parameter value plus its own
// null marker for RPC requests.
type Codec interface {
	// CanDecode reports whether this codec handles ti's server type and
	// produces values of kind.
	CanDecode(ti *TypeInformation, kind ValueKind) bool
	// Decode reads one non-null value. For PLP types plpData carries the
	// fully reassembled bytes and r is nil; for every other LengthKind,
	// r is a reader bounded to exactly this value's declared length and
	// plpData is nil.
	Decode(ti *TypeInformation, r *byteReader, plpData []byte) (any, error)
	// EncodeParam writes v's wire value bytes for use as an RPC
	// parameter. Fixed-width and byte-length families write no length
	// prefix; the string, binary and XML families write their own
	// 2-byte length or PLP framing.
	EncodeParam(w *byteWriter, ti *TypeInformation, v any) error
	// EncodeNull writes this family's null-length marker appropriate to
	// ti.LengthKind (the length prefix itself; RPC parameter framing
	// writes TYPE_INFO separately).
	EncodeNull(w *byteWriter, ti *TypeInformation)
}

// registry lists every column codec in first-match order (spec §4.3:
// "the registry resolves a (TypeInformation, target_kind) pair to one
// codec; the first-match rule is the codec whose can_decode returns
// true AND that declares target_kind assignable").
var registry = []Codec{
	intCodec{},
	bitCodec{},
	floatCodec{},
	moneyCodec{},
	decimalCodec{},
	dateTimeCodec{},
	guidCodec{},
	charCodec{},
	ncharCodec{},
	binaryCodec{},
	legacyBlobCodec{},
	xmlCodec{},
	variantCodec{},
}

// resolveCodec finds the first registered codec whose CanDecode accepts
// (ti, kind).
func resolveCodec(ti *TypeInformation, kind ValueKind) (Codec, error) {
	for _, c := range registry {
		if c.CanDecode(ti, kind) {
			return c, nil
		}
	}
	return nil, &TypeMismatchError{ServerType: ti.ServerType, Target: fmt.Sprintf("kind %d", kind)}
}

// naturalKind is the ValueKind decodeValue resolves against when the
// caller (row/NBCROW decode) has no target kind of its own to assert —
// it simply wants "whatever Go type this server type naturally decodes
// to," which is what every codec_*.go decode function already returns.
func naturalKind(ti *TypeInformation) ValueKind {
	switch ti.ServerType {
	case sqlBit, sqlBitN:
		return KindBool
	case sqlTinyInt, sqlSmallInt, sqlInt, sqlBigInt, sqlIntN:
		return KindInt
	case sqlReal, sqlFloat, sqlFloatN:
		return KindFloat
	case sqlSmallMoney, sqlMoney, sqlMoneyN,
		sqlDecimalFixed, sqlNumericFixed, sqlDecimalN, sqlNumericN:
		return KindDecimal
	case sqlChar, sqlVarChar, sqlBigChar, sqlBigVarChar,
		sqlNChar, sqlNVarChar, sqlText, sqlNText:
		return KindString
	case sqlBinary, sqlVarBinary, sqlBigBinary, sqlBigVarBinary, sqlImage:
		return KindBytes
	case sqlGUID:
		return KindGUID
	case sqlDateN:
		return KindDate
	case sqlTimeN:
		return KindTime
	case sqlSmallDT, sqlDateTime, sqlDateTimeN, sqlDateTime2N, sqlDateTimeOffsetN:
		return KindDateTime
	case sqlXML:
		return KindString
	case sqlVariant:
		return KindVariant
	default:
		return KindBytes
	}
}

// ── integer family ───────────────────────────────────────────────────

type intCodec struct{}

func (intCodec) CanDecode(ti *TypeInformation, kind ValueKind) bool {
	if kind != KindInt {
		return false
	}
	switch ti.ServerType {
	case sqlTinyInt, sqlSmallInt, sqlInt, sqlBigInt, sqlIntN:
		return true
	}
	return false
}

func (intCodec) Decode(ti *TypeInformation, r *byteReader, _ []byte) (any, error) {
	if ti.ServerType == sqlIntN {
		return decodeIntN(r, r.remaining())
	}
	return decodeFixedValue(ti, r)
}

func (intCodec) EncodeParam(w *byteWriter, ti *TypeInformation, v any) error {
	iv, err := toInt64(v)
	if err != nil {
		return err
	}
	encodeInt(w, resolvedIntServerType(ti), iv)
	return nil
}

func (intCodec) EncodeNull(w *byteWriter, ti *TypeInformation) {
	encodeNullLength(w, ti)
}

func resolvedIntServerType(ti *TypeInformation) byte {
	if ti.ServerType != sqlIntN {
		return ti.ServerType
	}
	switch ti.MaxLength {
	case 1:
		return sqlTinyInt
	case 2:
		return sqlSmallInt
	case 4:
		return sqlInt
	default:
		return sqlBigInt
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case byte:
		return int64(n), nil
	default:
		return 0, &CodecError{Message: "tds: value is not an integer"}
	}
}

// ── bit family ────────────────────────────────────────────────────────

type bitCodec struct{}

func (bitCodec) CanDecode(ti *TypeInformation, kind ValueKind) bool {
	return kind == KindBool && (ti.ServerType == sqlBit || ti.ServerType == sqlBitN)
}

func (bitCodec) Decode(_ *TypeInformation, r *byteReader, _ []byte) (any, error) {
	return decodeBit(r)
}

func (bitCodec) EncodeParam(w *byteWriter, _ *TypeInformation, v any) error {
	b, ok := v.(bool)
	if !ok {
		return &CodecError{Message: "tds: value is not a bool"}
	}
	encodeBit(w, b)
	return nil
}

func (bitCodec) EncodeNull(w *byteWriter, ti *TypeInformation) {
	encodeNullLength(w, ti)
}

// ── float family ──────────────────────────────────────────────────────

type floatCodec struct{}

func (floatCodec) CanDecode(ti *TypeInformation, kind ValueKind) bool {
	if kind != KindFloat {
		return false
	}
	switch ti.ServerType {
	case sqlReal, sqlFloat, sqlFloatN:
		return true
	}
	return false
}

func (floatCodec) Decode(ti *TypeInformation, r *byteReader, _ []byte) (any, error) {
	if ti.ServerType == sqlFloatN {
		return decodeFloatN(r, r.remaining())
	}
	return decodeFixedValue(ti, r)
}

func (floatCodec) EncodeParam(w *byteWriter, ti *TypeInformation, v any) error {
	f, ok := v.(float64)
	if !ok {
		return &CodecError{Message: "tds: value is not a float64"}
	}
	if resolvedFloatWidth(ti) == 4 {
		encodeReal(w, float32(f))
	} else {
		encodeFloat8(w, f)
	}
	return nil
}

func (floatCodec) EncodeNull(w *byteWriter, ti *TypeInformation) {
	encodeNullLength(w, ti)
}

func resolvedFloatWidth(ti *TypeInformation) int {
	if ti.ServerType == sqlReal {
		return 4
	}
	if ti.ServerType == sqlFloatN {
		return ti.MaxLength
	}
	return 8
}

// ── money family ──────────────────────────────────────────────────────

type moneyCodec struct{}

func (moneyCodec) CanDecode(ti *TypeInformation, kind ValueKind) bool {
	if kind != KindDecimal {
		return false
	}
	switch ti.ServerType {
	case sqlSmallMoney, sqlMoney, sqlMoneyN:
		return true
	}
	return false
}

func (moneyCodec) Decode(ti *TypeInformation, r *byteReader, _ []byte) (any, error) {
	if ti.ServerType == sqlMoneyN {
		return decodeMoneyN(r, r.remaining())
	}
	return decodeFixedValue(ti, r)
}

func (moneyCodec) EncodeParam(w *byteWriter, _ *TypeInformation, v any) error {
	d, err := toDecimal(v)
	if err != nil {
		return err
	}
	encodeMoney8(w, d)
	return nil
}

func (moneyCodec) EncodeNull(w *byteWriter, ti *TypeInformation) {
	encodeNullLength(w, ti)
}

// ── decimal/numeric family ───────────────────────────────────────────

type decimalCodec struct{}

func (decimalCodec) CanDecode(ti *TypeInformation, kind ValueKind) bool {
	if kind != KindDecimal {
		return false
	}
	switch ti.ServerType {
	case sqlDecimalFixed, sqlNumericFixed, sqlDecimalN, sqlNumericN:
		return true
	}
	return false
}

func (decimalCodec) Decode(ti *TypeInformation, r *byteReader, _ []byte) (any, error) {
	return decodeDecimal(r, r.remaining(), ti.Precision, ti.Scale)
}

func (decimalCodec) EncodeParam(w *byteWriter, ti *TypeInformation, v any) error {
	d, err := toDecimal(v)
	if err != nil {
		return err
	}
	encodeDecimal(w, d, ti.Precision, ti.Scale)
	return nil
}

func (decimalCodec) EncodeNull(w *byteWriter, ti *TypeInformation) {
	encodeNullLength(w, ti)
}

func toDecimal(v any) (decimal.Decimal, error) {
	d, ok := v.(decimal.Decimal)
	if !ok {
		return decimal.Decimal{}, &CodecError{Message: "tds: value is not a decimal.Decimal"}
	}
	return d, nil
}

// ── date/time family ──────────────────────────────────────────────────

type dateTimeCodec struct{}

func (dateTimeCodec) CanDecode(ti *TypeInformation, kind ValueKind) bool {
	switch ti.ServerType {
	case sqlDateN:
		return kind == KindDate
	case sqlTimeN:
		return kind == KindTime
	case sqlSmallDT, sqlDateTime, sqlDateTimeN, sqlDateTime2N, sqlDateTimeOffsetN:
		return kind == KindDateTime
	}
	return false
}

func (dateTimeCodec) Decode(ti *TypeInformation, r *byteReader, _ []byte) (any, error) {
	switch ti.ServerType {
	case sqlDateN:
		return decodeDate(r)
	case sqlTimeN:
		return decodeTimeN(r, ti.Scale)
	case sqlDateTimeN:
		return decodeDateTimeN(r, r.remaining())
	case sqlDateTime2N:
		return decodeDateTime2N(r, ti.Scale)
	case sqlDateTimeOffsetN:
		return decodeDateTimeOffsetN(r, ti.Scale)
	default:
		return decodeFixedValue(ti, r)
	}
}

func (dateTimeCodec) EncodeParam(w *byteWriter, ti *TypeInformation, v any) error {
	switch ti.ServerType {
	case sqlDateN:
		d, ok := v.(civil.Date)
		if !ok {
			return &CodecError{Message: "tds: value is not a civil.Date"}
		}
		encodeDate(w, d)
		return nil
	default:
		return &CodecError{Message: "tds: encoding this temporal family as an RPC parameter is not supported"}
	}
}

func (dateTimeCodec) EncodeNull(w *byteWriter, ti *TypeInformation) {
	encodeNullLength(w, ti)
}

// ── guid ──────────────────────────────────────────────────────────────

type guidCodec struct{}

func (guidCodec) CanDecode(ti *TypeInformation, kind ValueKind) bool {
	return kind == KindGUID && ti.ServerType == sqlGUID
}

func (guidCodec) Decode(_ *TypeInformation, r *byteReader, _ []byte) (any, error) {
	return decodeGUID(r)
}

func (guidCodec) EncodeParam(w *byteWriter, _ *TypeInformation, v any) error {
	id, ok := v.(uuid.UUID)
	if !ok {
		return &CodecError{Message: "tds: value is not a uuid.UUID"}
	}
	encodeGUID(w, id)
	return nil
}

func (guidCodec) EncodeNull(w *byteWriter, ti *TypeInformation) {
	encodeNullLength(w, ti)
}

// ── narrow char family (CHAR/VARCHAR/BIGCHAR/BIGVARCHAR) ─────────────

type charCodec struct{}

func (charCodec) CanDecode(ti *TypeInformation, kind ValueKind) bool {
	if kind != KindString {
		return false
	}
	switch ti.ServerType {
	case sqlChar, sqlVarChar, sqlBigChar, sqlBigVarChar:
		return true
	}
	return false
}

func (charCodec) Decode(ti *TypeInformation, r *byteReader, plpData []byte) (any, error) {
	if plpData != nil {
		return ti.Collation.decodeNarrow(plpData), nil
	}
	b, err := r.take(r.remaining())
	if err != nil {
		return nil, err
	}
	return ti.Collation.decodeNarrow(b), nil
}

func (charCodec) EncodeParam(w *byteWriter, _ *TypeInformation, v any) error {
	s, ok := v.(string)
	if !ok {
		return &CodecError{Message: "tds: value is not a string"}
	}
	// RPC parameters always go out as Unicode regardless of the target
	// column's narrow collation; the server re-collates on insert.
	encodeNVarChar(w, s)
	return nil
}

func (charCodec) EncodeNull(w *byteWriter, ti *TypeInformation) {
	encodeNullLength(w, ti)
}

// ── wide char family (NCHAR/NVARCHAR) ────────────────────────────────

type ncharCodec struct{}

func (ncharCodec) CanDecode(ti *TypeInformation, kind ValueKind) bool {
	return kind == KindString && (ti.ServerType == sqlNChar || ti.ServerType == sqlNVarChar)
}

func (ncharCodec) Decode(_ *TypeInformation, r *byteReader, plpData []byte) (any, error) {
	if plpData != nil {
		return decodeUTF16LE(plpData), nil
	}
	b, err := r.take(r.remaining())
	if err != nil {
		return nil, err
	}
	return decodeUTF16LE(b), nil
}

func (ncharCodec) EncodeParam(w *byteWriter, ti *TypeInformation, v any) error {
	s, ok := v.(string)
	if !ok {
		return &CodecError{Message: "tds: value is not a string"}
	}
	if ti.IsMax() {
		encodeNVarCharMax(w, s)
	} else {
		encodeNVarChar(w, s)
	}
	return nil
}

func (ncharCodec) EncodeNull(w *byteWriter, ti *TypeInformation) {
	if ti.LengthKind == LengthPLP {
		writePLP(w, nil, true)
		return
	}
	encodeNullLength(w, ti)
}

// ── binary family (BINARY/VARBINARY/BIGBINARY/BIGVARBINARY) ─────────

type binaryCodec struct{}

func (binaryCodec) CanDecode(ti *TypeInformation, kind ValueKind) bool {
	if kind != KindBytes {
		return false
	}
	switch ti.ServerType {
	case sqlBinary, sqlVarBinary, sqlBigBinary, sqlBigVarBinary:
		return true
	}
	return false
}

func (binaryCodec) Decode(_ *TypeInformation, r *byteReader, plpData []byte) (any, error) {
	if plpData != nil {
		return plpData, nil
	}
	b, err := r.take(r.remaining())
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (binaryCodec) EncodeParam(w *byteWriter, _ *TypeInformation, v any) error {
	b, ok := v.([]byte)
	if !ok {
		return &CodecError{Message: "tds: value is not a []byte"}
	}
	encodeVarBinary(w, b)
	return nil
}

func (binaryCodec) EncodeNull(w *byteWriter, ti *TypeInformation) {
	if ti.LengthKind == LengthPLP {
		writePLP(w, nil, true)
		return
	}
	encodeNullLength(w, ti)
}

// ── legacy large-object family (TEXT/NTEXT/IMAGE) ────────────────────

type legacyBlobCodec struct{}

func (legacyBlobCodec) CanDecode(ti *TypeInformation, kind ValueKind) bool {
	switch ti.ServerType {
	case sqlText:
		return kind == KindString
	case sqlNText:
		return kind == KindString
	case sqlImage:
		return kind == KindBytes
	}
	return false
}

func (legacyBlobCodec) Decode(ti *TypeInformation, r *byteReader, _ []byte) (any, error) {
	b, err := r.take(r.remaining())
	if err != nil {
		return nil, err
	}
	switch ti.ServerType {
	case sqlText:
		return ti.Collation.decodeNarrow(b), nil
	case sqlNText:
		return decodeUTF16LE(b), nil
	default:
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	}
}

func (legacyBlobCodec) EncodeParam(_ *byteWriter, _ *TypeInformation, _ any) error {
	return &CodecError{Message: "tds: legacy TEXT/NTEXT/IMAGE parameters are not supported, use VARCHAR(MAX)/NVARCHAR(MAX)/VARBINARY(MAX)"}
}

func (legacyBlobCodec) EncodeNull(w *byteWriter, ti *TypeInformation) {
	encodeNullLength(w, ti)
}

// ── xml ───────────────────────────────────────────────────────────────

type xmlCodec struct{}

func (xmlCodec) CanDecode(ti *TypeInformation, kind ValueKind) bool {
	return kind == KindString && ti.ServerType == sqlXML
}

func (xmlCodec) Decode(_ *TypeInformation, _ *byteReader, plpData []byte) (any, error) {
	return decodeUTF16LE(plpData), nil
}

func (xmlCodec) EncodeParam(w *byteWriter, _ *TypeInformation, v any) error {
	s, ok := v.(string)
	if !ok {
		return &CodecError{Message: "tds: value is not a string"}
	}
	encodeXML(w, s)
	return nil
}

func (xmlCodec) EncodeNull(w *byteWriter, _ *TypeInformation) {
	writePLP(w, nil, true)
}

// ── sql_variant ───────────────────────────────────────────────────────

type variantCodec struct{}

func (variantCodec) CanDecode(ti *TypeInformation, kind ValueKind) bool {
	return kind == KindVariant && ti.ServerType == sqlVariant
}

func (variantCodec) Decode(_ *TypeInformation, r *byteReader, _ []byte) (any, error) {
	return decodeSQLVariant(r, r.remaining())
}

func (variantCodec) EncodeParam(_ *byteWriter, _ *TypeInformation, _ any) error {
	return &CodecError{Message: "tds: encoding SQL_VARIANT parameters is not supported"}
}

func (variantCodec) EncodeNull(w *byteWriter, ti *TypeInformation) {
	encodeNullLength(w, ti)
}

// encodeNullLength writes the null-length marker for non-PLP families,
// matching isNullLength's inverse per MS-TDS 2.2.4.2.1.
func encodeNullLength(w *byteWriter, ti *TypeInformation) {
	switch ti.LengthKind {
	case LengthByte:
		switch ti.ServerType {
		case sqlChar, sqlVarChar, sqlBinary, sqlVarBinary:
			w.writeByte(0xFF)
		default:
			w.writeByte(0)
		}
	case LengthUShort:
		w.writeUint16(0xFFFF)
	case LengthLong:
		w.writeUint32(0)
	default:
		// LengthFixed families have no independent null representation;
		// callers must use the *N nullable server type to send NULL.
	}
}
