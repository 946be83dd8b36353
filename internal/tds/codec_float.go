package tds

import "math"

// decodeReal reads a 4-byte IEEE 754 single-precision float (FLOAT4).
func decodeReal(r *byteReader) (float32, error) {
	v, err := r.uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// decodeFloat8 reads an 8-byte IEEE 754 double-precision float (FLOAT8).
func decodeFloat8(r *byteReader) (float64, error) {
	v, err := r.uint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// decodeFloatN decodes the nullable float family (FLTN): length 4
// selects REAL, length 8 selects FLOAT, matching the server's declared
// width for this column.
func decodeFloatN(r *byteReader, length int) (any, error) {
	switch length {
	case 4:
		return decodeReal(r)
	case 8:
		return decodeFloat8(r)
	default:
		return nil, &CodecError{Message: "tds: invalid FLTN length"}
	}
}

func encodeReal(w *byteWriter, v float32) {
	w.writeUint32(math.Float32bits(v))
}

func encodeFloat8(w *byteWriter, v float64) {
	w.writeUint64(math.Float64bits(v))
}
