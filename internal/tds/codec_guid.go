package tds

import "github.com/google/uuid"

// decodeGUID reads a 16-byte UNIQUEIDENTIFIER. SQL Server stores GUIDs
// with the first three fields byte-swapped relative to RFC 4122 (MS-TDS
// 2.2.5.4.1 GUID): Data1 and Data2/Data3 are little-endian, Data4 is
// big-endian as usual.
func decodeGUID(r *byteReader) (uuid.UUID, error) {
	b, err := r.take(16)
	if err != nil {
		return uuid.UUID{}, err
	}
	var out uuid.UUID
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	copy(out[8:], b[8:16])
	return out, nil
}

// encodeGUID writes a uuid.UUID in SQL Server's byte-swapped wire form.
func encodeGUID(w *byteWriter, v uuid.UUID) {
	var b [16]byte
	b[0], b[1], b[2], b[3] = v[3], v[2], v[1], v[0]
	b[4], b[5] = v[5], v[4]
	b[6], b[7] = v[7], v[6]
	copy(b[8:], v[8:16])
	w.writeBytes(b[:])
}
