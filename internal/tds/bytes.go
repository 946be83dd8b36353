package tds

import (
	"encoding/binary"
	"io"
)

// ── Primitive wire readers/writers (MS-TDS 2.2.5.2) ─────────────────────
//
// TDS data values are little-endian; only the packet header and PRELOGIN
// option table are big-endian. byteReader wraps a payload slice with a
// cursor so codec.go's per-type decoders can read sequentially and
// report a ProtocolError on truncation instead of panicking on a
// short slice.

type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(buf []byte) *byteReader {
	return &byteReader{buf: buf}
}

func (r *byteReader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *byteReader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, &ProtocolError{Message: "tds: unexpected end of token stream"}
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) byte() (byte, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *byteReader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *byteReader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *byteReader) int16() (int16, error) {
	v, err := r.uint16()
	return int16(v), err
}

func (r *byteReader) int32() (int32, error) {
	v, err := r.uint32()
	return int32(v), err
}

func (r *byteReader) int64() (int64, error) {
	v, err := r.uint64()
	return int64(v), err
}

// bVarchar reads a B_VARCHAR: one length byte followed by length UTF-16
// code units (MS-TDS 2.2.5.2.4).
func (r *byteReader) bVarchar() (string, error) {
	n, err := r.byte()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n) * 2)
	if err != nil {
		return "", err
	}
	return decodeUTF16LE(b), nil
}

// usVarchar reads a US_VARCHAR: a uint16 length followed by that many
// UTF-16 code units (MS-TDS 2.2.5.2.5).
func (r *byteReader) usVarchar() (string, error) {
	n, err := r.uint16()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n) * 2)
	if err != nil {
		return "", err
	}
	return decodeUTF16LE(b), nil
}

// byteWriter accumulates an outbound token/value payload.
type byteWriter struct {
	buf []byte
}

func (w *byteWriter) writeByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *byteWriter) writeUint16(v uint16) {
	w.buf = append(w.buf, byte(v), byte(v>>8))
}

func (w *byteWriter) writeUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *byteWriter) writeUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *byteWriter) writeBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *byteWriter) writeBVarchar(s string) {
	enc := encodeUTF16LE(s)
	w.writeByte(byte(len(enc) / 2))
	w.writeBytes(enc)
}

func (w *byteWriter) writeUsVarchar(s string) {
	enc := encodeUTF16LE(s)
	w.writeUint16(uint16(len(enc) / 2))
	w.writeBytes(enc)
}

// ── PLP (Partially Length-Prefixed) values (MS-TDS 2.2.5.2.2) ───────────

// PLPUnknownLength marks a PLP value whose total length the server did
// not declare up front (it must be reassembled chunk by chunk).
const PLPUnknownLength uint64 = 0xFFFFFFFFFFFFFFFE

const plpNullSentinel uint64 = 0xFFFFFFFFFFFFFFFF

// readPLP reads a full PLP value: an 8-byte total-length header (or
// null/unknown sentinel) followed by a sequence of 4-byte chunk-length
// prefixed chunks, terminated by a zero-length chunk.
func readPLP(r *byteReader) ([]byte, bool, error) {
	total, err := r.uint64()
	if err != nil {
		return nil, false, err
	}
	if total == plpNullSentinel {
		return nil, true, nil
	}

	var out []byte
	for {
		chunkLen, err := r.uint32()
		if err != nil {
			return nil, false, err
		}
		if chunkLen == 0 {
			break
		}
		chunk, err := r.take(int(chunkLen))
		if err != nil {
			return nil, false, err
		}
		out = append(out, chunk...)
	}
	return out, false, nil
}

// writePLP encodes data as a single-chunk PLP value with a known total
// length, the form the core always produces for outbound parameters.
func writePLP(w *byteWriter, data []byte, isNull bool) {
	if isNull {
		w.writeUint64(plpNullSentinel)
		return
	}
	w.writeUint64(uint64(len(data)))
	if len(data) > 0 {
		w.writeUint32(uint32(len(data)))
		w.writeBytes(data)
	}
	w.writeUint32(0)
}

// readFull reads exactly n bytes from r into a fresh slice, wrapping
// io.ErrUnexpectedEOF in a ConnectionLostError.
func readFull(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, &ConnectionLostError{Cause: err}
	}
	return buf, nil
}
