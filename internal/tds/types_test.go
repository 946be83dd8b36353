package tds

import "testing"

func TestDecodeTypeInfoIntFixed(t *testing.T) {
	r := newByteReader([]byte{sqlInt})
	ti, err := decodeTypeInfo(r)
	if err != nil {
		t.Fatal(err)
	}
	if ti.LengthKind != LengthFixed || ti.MaxLength != 4 {
		t.Fatalf("got %+v", ti)
	}
}

func TestDecodeTypeInfoVarcharWithCollation(t *testing.T) {
	var w byteWriter
	w.writeByte(sqlBigVarChar)
	w.writeUint16(50)
	w.writeBytes(Collation{LCID: 0x0409, SortID: 52}.Marshal())

	r := newByteReader(w.buf)
	ti, err := decodeTypeInfo(r)
	if err != nil {
		t.Fatal(err)
	}
	if ti.LengthKind != LengthUShort || ti.MaxLength != 50 {
		t.Fatalf("got %+v", ti)
	}
	if ti.Collation.SortID != 52 {
		t.Fatalf("collation not decoded: %+v", ti.Collation)
	}
}

func TestDecodeTypeInfoNVarCharMaxIsPLP(t *testing.T) {
	var w byteWriter
	w.writeByte(sqlNVarChar)
	w.writeUint16(0xFFFF)
	w.writeBytes(Collation{}.Marshal())

	r := newByteReader(w.buf)
	ti, err := decodeTypeInfo(r)
	if err != nil {
		t.Fatal(err)
	}
	if ti.LengthKind != LengthPLP || !ti.IsMax() {
		t.Fatalf("expected MAX/PLP, got %+v", ti)
	}
}

func TestDecodeTypeInfoDecimal(t *testing.T) {
	var w byteWriter
	w.writeByte(sqlDecimalN)
	w.writeByte(9) // length
	w.writeByte(18) // precision
	w.writeByte(4)  // scale

	r := newByteReader(w.buf)
	ti, err := decodeTypeInfo(r)
	if err != nil {
		t.Fatal(err)
	}
	if ti.Precision != 18 || ti.Scale != 4 || ti.MaxLength != 9 {
		t.Fatalf("got %+v", ti)
	}
}

func TestDecodeTypeInfoUnknownByteErrors(t *testing.T) {
	r := newByteReader([]byte{0xC1})
	if _, err := decodeTypeInfo(r); err == nil {
		t.Fatal("expected error")
	}
}
