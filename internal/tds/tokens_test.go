package tds

import "testing"

func TestDoneTokenFinalAndMore(t *testing.T) {
	cases := []struct {
		status uint16
		final  bool
	}{
		{doneFinal, true},
		{doneMore, false},
		{doneCount, true},
		{doneMore | doneCount, false},
	}
	for _, c := range cases {
		d := &DoneToken{Status: c.status}
		if d.Final() != c.final {
			t.Fatalf("status %04x: Final()=%v, want %v", c.status, d.Final(), c.final)
		}
	}
}

func TestDecodeDoneTokenRoundTrip(t *testing.T) {
	var w byteWriter
	w.writeUint16(doneCount)
	w.writeUint16(0)
	w.writeUint64(42)

	r := newByteReader(w.buf)
	d, err := decodeDoneToken(tokenDone, r)
	if err != nil {
		t.Fatal(err)
	}
	if !d.HasCount() || d.DoneRowCount != 42 {
		t.Fatalf("got %+v", d)
	}
	if !d.Final() {
		t.Fatal("expected final DONE")
	}
}

func TestDecodeEnvChangeBeginTxExtractsDescriptor(t *testing.T) {
	desc := uint64(0x1122334455667788)
	var w byteWriter
	body := byteWriter{}
	body.writeByte(0x08) // literal ENVCHANGE type byte for BeginTx
	body.writeByte(8)
	for i := 0; i < 8; i++ {
		body.writeByte(byte(desc >> (8 * i)))
	}
	body.writeByte(0) // old value length 0

	w.writeUint16(uint16(len(body.buf)))
	w.writeBytes(body.buf)

	r := newByteReader(w.buf)
	env, err := decodeEnvChangeToken(r)
	if err != nil {
		t.Fatal(err)
	}
	if env.Type != EnvBeginTx {
		t.Fatalf("got type %d, want EnvBeginTx (%d)", env.Type, EnvBeginTx)
	}
	got, ok := env.TransactionDescriptor()
	if !ok || got != desc {
		t.Fatalf("got %x, ok=%v, want %x", got, ok, desc)
	}
}

// TestDecodeEnvChangeBeginTxWrongLengthErrors covers testable property 5
// (spec.md:209): a BeginTx new_value that isn't exactly 8 bytes must
// raise a ProtocolError rather than being silently dropped.
func TestDecodeEnvChangeBeginTxWrongLengthErrors(t *testing.T) {
	var w byteWriter
	body := byteWriter{}
	body.writeByte(0x08) // literal ENVCHANGE type byte for BeginTx
	body.writeByte(4)    // wrong length: should be 8
	body.writeBytes([]byte{1, 2, 3, 4})
	body.writeByte(0) // old value length 0

	w.writeUint16(uint16(len(body.buf)))
	w.writeBytes(body.buf)

	r := newByteReader(w.buf)
	_, err := decodeEnvChangeToken(r)
	if _, ok := err.(*ProtocolError); !ok {
		t.Fatalf("got %T (%v), want *ProtocolError", err, err)
	}
}

func TestDecodeEnvChangeSQLCollationExtractsCollation(t *testing.T) {
	raw := []byte{0x09, 0x04, 0x00, 0x00, 0x00} // LCID 0x0409 (en-US), no SortID

	var w byteWriter
	body := byteWriter{}
	body.writeByte(0x07) // literal ENVCHANGE type byte for SQLCollation
	body.writeByte(byte(len(raw)))
	body.writeBytes(raw)
	body.writeByte(0) // old value length 0

	w.writeUint16(uint16(len(body.buf)))
	w.writeBytes(body.buf)

	r := newByteReader(w.buf)
	env, err := decodeEnvChangeToken(r)
	if err != nil {
		t.Fatal(err)
	}
	if env.Type != EnvSQLCollation {
		t.Fatalf("got type %d, want EnvSQLCollation (%d)", env.Type, EnvSQLCollation)
	}
	coll, ok := env.Collation()
	if !ok || coll.LCID != 0x0409 {
		t.Fatalf("got %+v, ok=%v, want LCID 0x0409", coll, ok)
	}
}

func TestDecodeEnvChangeDatabase(t *testing.T) {
	newDB := encodeUTF16LE("master")
	oldDB := encodeUTF16LE("")

	body := byteWriter{}
	body.writeByte(EnvDatabase)
	body.writeByte(byte(len(newDB) / 2))
	body.writeBytes(newDB)
	body.writeByte(byte(len(oldDB) / 2))
	body.writeBytes(oldDB)

	var w byteWriter
	w.writeUint16(uint16(len(body.buf)))
	w.writeBytes(body.buf)

	r := newByteReader(w.buf)
	env, err := decodeEnvChangeToken(r)
	if err != nil {
		t.Fatal(err)
	}
	if decodeUTF16LE(env.NewValue) != "master" {
		t.Fatalf("got %q", decodeUTF16LE(env.NewValue))
	}
}

func TestDecodeInfoAndErrorTokens(t *testing.T) {
	body := byteWriter{}
	body.writeUint32(uint32(int32(50000)))
	body.writeByte(1)  // state
	body.writeByte(16) // class (error severity)
	body.writeUsVarchar("custom error")
	body.writeBVarchar("myserver")
	body.writeBVarchar("myproc")
	body.writeUint32(7)

	var w byteWriter
	w.writeUint16(uint16(len(body.buf)))
	w.writeBytes(body.buf)

	r := newByteReader(w.buf)
	info, err := decodeInfoToken(true, r)
	if err != nil {
		t.Fatal(err)
	}
	if info.Message != "custom error" || info.Server != "myserver" || info.Proc != "myproc" || info.Line != 7 {
		t.Fatalf("got %+v", info)
	}
	if !IsError(info.Class) {
		t.Fatal("class 16 should be an error")
	}
	se := info.AsServerError()
	if se.Number != 50000 {
		t.Fatalf("got %+v", se)
	}
}

func TestColMetadataAndRowDecode(t *testing.T) {
	var w byteWriter
	w.writeUint16(1) // one column

	// column 0: nullable INT
	w.writeUint32(0)                 // user type
	w.writeUint16(ColFlagNullable)   // flags
	w.writeByte(sqlIntN)              // server type
	w.writeByte(4)                    // length
	w.writeBVarchar("id")

	r := newByteReader(w.buf)
	meta, err := decodeColMetadataToken(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Columns) != 1 || meta.Columns[0].Name != "id" || !meta.Columns[0].Nullable() {
		t.Fatalf("got %+v", meta.Columns)
	}

	var rowBuf byteWriter
	rowBuf.writeByte(4)
	rowBuf.writeUint32(99)
	rr := newByteReader(rowBuf.buf)
	row, err := decodeRowToken(meta, rr)
	if err != nil {
		t.Fatal(err)
	}
	if row.Values[0] != int32(99) {
		t.Fatalf("got %v", row.Values[0])
	}
}

func TestNBCRowNullBitmap(t *testing.T) {
	meta := &ColMetadata{Columns: []*Column{
		{Name: "a", Type: &TypeInformation{ServerType: sqlIntN, LengthKind: LengthByte}},
		{Name: "b", Type: &TypeInformation{ServerType: sqlIntN, LengthKind: LengthByte}},
		{Name: "c", Type: &TypeInformation{ServerType: sqlIntN, LengthKind: LengthByte}},
	}}

	var w byteWriter
	w.writeByte(0b00000010) // column b (index 1) is null
	w.writeByte(4)
	w.writeUint32(1) // a = 1
	w.writeByte(4)
	w.writeUint32(3) // c = 3

	r := newByteReader(w.buf)
	row, err := decodeNBCRowToken(meta, r)
	if err != nil {
		t.Fatal(err)
	}
	if row.Values[0] != int32(1) || row.Values[1] != nil || row.Values[2] != int32(3) {
		t.Fatalf("got %v", row.Values)
	}
}
