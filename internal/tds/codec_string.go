package tds

// encodeNVarChar writes a parameter value in NVARCHAR(n) wire form: a
// 2-byte byte-length prefix followed by UTF-16LE data. Used for
// outbound RPC parameters, which always go out as Unicode regardless of
// the target column's collation (the server re-collates on insert).
func encodeNVarChar(w *byteWriter, s string) {
	enc := encodeUTF16LE(s)
	w.writeUint16(uint16(len(enc)))
	w.writeBytes(enc)
}

// encodeVarBinary writes a parameter value in VARBINARY(n) wire form.
func encodeVarBinary(w *byteWriter, b []byte) {
	w.writeUint16(uint16(len(b)))
	w.writeBytes(b)
}

// encodeNVarCharMax writes an NVARCHAR(MAX) parameter as a single-chunk
// PLP value.
func encodeNVarCharMax(w *byteWriter, s string) {
	writePLP(w, encodeUTF16LE(s), false)
}
