package tds

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ── Scenario S1: FLOAT8 (DOUBLE) encode, literal bytes ──────────────────
//
// spec.md §8 S1: DoubleCodec.encode(11344.554) produces value bytes
// FE D4 78 E9 46 28 C6 40, prefixed with type-info 08 08 (max-length 8,
// value-length 8). Formal type string "float".

func TestScenarioS1_DoubleEncode(t *testing.T) {
	ti := &TypeInformation{ServerType: sqlFloatN, LengthKind: LengthByte, MaxLength: 8}

	var w byteWriter
	if err := (floatCodec{}).EncodeParam(&w, ti, 11344.554); err != nil {
		t.Fatal(err)
	}

	wantValue := []byte{0xFE, 0xD4, 0x78, 0xE9, 0x46, 0x28, 0xC6, 0x40}
	if !bytes.Equal(w.buf, wantValue) {
		t.Fatalf("value bytes = % X, want % X", w.buf, wantValue)
	}

	typeInfo := []byte{byte(ti.MaxLength), byte(len(w.buf))}
	if !bytes.Equal(typeInfo, []byte{0x08, 0x08}) {
		t.Fatalf("type-info bytes = % X, want 08 08", typeInfo)
	}
}

// ── Scenario S2: FLOAT (DOUBLE) decode, literal bytes ───────────────────
//
// spec.md §8 S2: buffer 08 FE D4 78 E9 46 28 C6 40 with
// TypeInformation{server=FLOAT, length=BYTELEN, max=8} decodes to
// 11344.554 ± 0.01.

func TestScenarioS2_DoubleDecode(t *testing.T) {
	buf := []byte{0x08, 0xFE, 0xD4, 0x78, 0xE9, 0x46, 0x28, 0xC6, 0x40}
	r := newByteReader(buf)
	ti := &TypeInformation{ServerType: sqlFloatN, LengthKind: LengthByte, MaxLength: 8}

	got, err := decodeValue(ti, r)
	if err != nil {
		t.Fatal(err)
	}
	f, ok := got.(float64)
	if !ok {
		t.Fatalf("got %T, want float64", got)
	}
	if math.Abs(f-11344.554) > 0.01 {
		t.Fatalf("got %v, want 11344.554 ± 0.01", f)
	}
}

// ── Scenario S3: REAL decode, literal bytes ─────────────────────────────
//
// spec.md §8 S3: buffer 04 37 42 31 46 with
// TypeInformation{server=REAL, length=BYTELEN, max=4} decodes to
// 11344.554 ± 0.01.

func TestScenarioS3_RealDecode(t *testing.T) {
	buf := []byte{0x04, 0x37, 0x42, 0x31, 0x46}
	r := newByteReader(buf)
	ti := &TypeInformation{ServerType: sqlFloatN, LengthKind: LengthByte, MaxLength: 4}

	got, err := decodeValue(ti, r)
	if err != nil {
		t.Fatal(err)
	}
	f, ok := got.(float32)
	if !ok {
		t.Fatalf("got %T, want float32", got)
	}
	if math.Abs(float64(f)-11344.554) > 0.01 {
		t.Fatalf("got %v, want 11344.554 ± 0.01", f)
	}
}

// ── Scenario S4: DATE encode, literal bytes ─────────────────────────────
//
// spec.md §8 S4: LocalDate(2018-10-23) encodes to 03 DD 3E 0B (3-byte
// length prefix + 3-byte LE days-since-0001-01-01 = 736989). Null
// encodes to 00.

func TestScenarioS4_DateEncode(t *testing.T) {
	ti := &TypeInformation{ServerType: sqlDateN, LengthKind: LengthByte, MaxLength: 3}
	d := civil.Date{Year: 2018, Month: time.October, Day: 23}

	var w byteWriter
	w.writeByte(byte(ti.MaxLength))
	if err := (dateTimeCodec{}).EncodeParam(&w, ti, d); err != nil {
		t.Fatal(err)
	}

	want := []byte{0x03, 0xDD, 0x3E, 0x0B}
	if !bytes.Equal(w.buf, want) {
		t.Fatalf("got % X, want % X", w.buf, want)
	}
}

func TestScenarioS4_DateEncodeNull(t *testing.T) {
	ti := &TypeInformation{ServerType: sqlDateN, LengthKind: LengthByte, MaxLength: 3}

	var w byteWriter
	(dateTimeCodec{}).EncodeNull(&w, ti)

	want := []byte{0x00}
	if !bytes.Equal(w.buf, want) {
		t.Fatalf("got % X, want % X", w.buf, want)
	}
}

func TestDateEpoch(t *testing.T) {
	r := newByteReader([]byte{0x00, 0x00, 0x00})
	d, err := decodeDate(r)
	if err != nil {
		t.Fatal(err)
	}
	want := civil.Date{Year: 1, Month: time.January, Day: 1}
	if d != want {
		t.Fatalf("got %+v, want %+v", d, want)
	}
}

// ── Scenario S5: AllHeaders transactional block, literal bytes ─────────
//
// spec.md §8 S5: for tx descriptor all zeros and outstanding_requests=1,
// the block is exactly 16 00 00 00 12 00 00 00 02 00
// 00 00 00 00 00 00 00 00 01 00 00 00.

func TestScenarioS5_AllHeadersTransactionalBlock(t *testing.T) {
	buf := BuildAllHeaders(0)

	want := []byte{
		0x16, 0x00, 0x00, 0x00, // total length 22
		0x12, 0x00, 0x00, 0x00, // header length 18
		0x02, 0x00, // header type: transaction descriptor
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // descriptor: all zero
		0x01, 0x00, 0x00, 0x00, // outstanding requests: 1
	}
	if !bytes.Equal(buf, want) {
		t.Fatalf("got % X, want % X", buf, want)
	}
}

// ── Property: codec round trips for every fixed-family scalar ──────────

func TestIntNRoundTrip(t *testing.T) {
	cases := []struct {
		length int
		encode func(*byteWriter)
		want   any
	}{
		{1, func(w *byteWriter) { w.writeByte(200) }, byte(200)},
		{2, func(w *byteWriter) { v := int16(-100); w.writeUint16(uint16(v)) }, int16(-100)},
		{4, func(w *byteWriter) { v := int32(-70000); w.writeUint32(uint32(v)) }, int32(-70000)},
		{8, func(w *byteWriter) { v := int64(-5000000000); w.writeUint64(uint64(v)) }, int64(-5000000000)},
	}
	for _, c := range cases {
		var w byteWriter
		c.encode(&w)
		r := newByteReader(w.buf)
		got, err := decodeIntN(r, c.length)
		if err != nil {
			t.Fatalf("length %d: %v", c.length, err)
		}
		if got != c.want {
			t.Fatalf("length %d: got %v, want %v", c.length, got, c.want)
		}
	}
}

func TestBitRoundTrip(t *testing.T) {
	for _, v := range []bool{true, false} {
		var w byteWriter
		encodeBit(&w, v)
		r := newByteReader(w.buf)
		got, err := decodeBit(r)
		if err != nil || got != v {
			t.Fatalf("got %v, %v, want %v", got, err, v)
		}
	}
}

func TestMoneyRoundTrip(t *testing.T) {
	v := decimal.NewFromFloat(1234.5678)
	var w byteWriter
	encodeMoney8(&w, v)
	r := newByteReader(w.buf)
	got, err := decodeMoney8(r)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(v) {
		t.Fatalf("got %v, want %v", got, v)
	}
}

func TestSmallMoneyDecode(t *testing.T) {
	r := newByteReader([]byte{0x10, 0x27, 0x00, 0x00}) // 10000 => 1.0000
	got, err := decodeSmallMoney(r)
	if err != nil {
		t.Fatal(err)
	}
	want := decimal.New(10000, -4)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	cases := []string{"0", "1", "-1", "123.456", "-999999.999999", "100000000000.00001"}
	for _, s := range cases {
		v, err := decimal.NewFromString(s)
		if err != nil {
			t.Fatal(err)
		}
		precision := byte(38)
		scale := byte(6)
		rescaled := rescaleDecimal(v, -int32(scale))

		var w byteWriter
		encodeDecimal(&w, rescaled, precision, scale)
		r := newByteReader(w.buf)
		got, err := decodeDecimal(r, len(w.buf), precision, scale)
		if err != nil {
			t.Fatalf("%s: %v", s, err)
		}
		if !got.Equal(rescaled) {
			t.Fatalf("%s: got %v, want %v", s, got, rescaled)
		}
	}
}

func TestGUIDRoundTrip(t *testing.T) {
	id := uuid.MustParse("01020304-0506-0708-090a-0b0c0d0e0f10")
	var w byteWriter
	encodeGUID(&w, id)
	r := newByteReader(w.buf)
	got, err := decodeGUID(r)
	if err != nil {
		t.Fatal(err)
	}
	if got != id {
		t.Fatalf("got %v, want %v", got, id)
	}
}

func TestSmallDateTimeDecodeEpoch(t *testing.T) {
	// Days since 1900-01-01, minutes since midnight.
	r := newByteReader([]byte{0x00, 0x00, 0x00, 0x00})
	got, err := decodeSmallDateTime(r)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTimeNDecode(t *testing.T) {
	// scaledTemporalSize(sqlTimeN, 0) = 3 bytes; at scale 0 the tick
	// count for 23:59:59 is seconds since midnight.
	secs := uint64(23*3600 + 59*60 + 59)
	buf := []byte{byte(secs), byte(secs >> 8), byte(secs >> 16)}
	r := newByteReader(buf)
	got, err := decodeTimeN(r, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Hour != 23 || got.Minute != 59 || got.Second != 59 {
		t.Fatalf("got %+v", got)
	}
}

// ── Property: malformed byte sequences surface a protocol/codec error ──

func TestDecodeValueTruncatedBufferErrors(t *testing.T) {
	ti := &TypeInformation{ServerType: sqlInt, LengthKind: LengthFixed, MaxLength: 4}
	r := newByteReader([]byte{0x01, 0x02}) // only 2 of 4 bytes
	if _, err := decodeValue(ti, r); err == nil {
		t.Fatal("expected error decoding truncated INT")
	}
}

func TestDecodeTypeInfoRejectsUnknownServerType(t *testing.T) {
	r := newByteReader([]byte{0xC1}) // not a real MS-TDS server type byte
	if _, err := decodeTypeInfo(r); err == nil {
		t.Fatal("expected error for unknown server type")
	}
}
