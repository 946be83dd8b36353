package tds

// ── ROW / NBCROW (MS-TDS 2.2.7.18/7.19) ─────────────────────────────────

// Row is one decoded result-set row. It is valid only in the scope of
// the most recently seen ColMetadata in the same response stream;
// callers must not retain a Row across a subsequent COLMETADATA token.
//
// Errs holds a per-column decode error (nil where decoding succeeded).
// A CodecError or TypeMismatchError on one column never aborts the row
// or the exchange (spec §7: decode-domain errors are "surfaced to the
// row-value consumer; exchange continues") because decodeValue always
// consumes exactly that column's declared length off the wire before
// attempting to interpret it, so the stream stays aligned regardless.
type Row struct {
	Values []any
	Errs   []error
}

// decodeRowToken decodes a ROW token: one value per column, in column
// order, with no null bitmap (each value's own length/null marker
// carries nullability).
func decodeRowToken(meta *ColMetadata, r *byteReader) (*Row, error) {
	row := &Row{Values: make([]any, len(meta.Columns))}
	for i, col := range meta.Columns {
		v, err := decodeValue(col.Type, r)
		if err != nil {
			if !isDecodeDomainError(err) {
				return nil, err
			}
			row.setErr(i, err)
			continue
		}
		row.Values[i] = v
	}
	return row, nil
}

// decodeNBCRowToken decodes an NBCROW token: a null bitmap (one bit per
// column, LSB first, packed into ceil(n/8) bytes) precedes the values,
// and any column whose bit is set is skipped entirely on the wire
// rather than carrying its own null marker (MS-TDS 2.2.7.19).
func decodeNBCRowToken(meta *ColMetadata, r *byteReader) (*Row, error) {
	n := len(meta.Columns)
	bitmapLen := (n + 7) / 8
	bitmap, err := r.take(bitmapLen)
	if err != nil {
		return nil, err
	}

	row := &Row{Values: make([]any, n)}
	for i, col := range meta.Columns {
		byteIdx := i / 8
		bitIdx := uint(i % 8)
		isNull := bitmap[byteIdx]&(1<<bitIdx) != 0

		if isNull {
			continue
		}

		v, err := decodeValue(col.Type, r)
		if err != nil {
			if !isDecodeDomainError(err) {
				return nil, err
			}
			row.setErr(i, err)
			continue
		}
		row.Values[i] = v
	}
	return row, nil
}

// setErr lazily allocates Errs on first use; most rows decode cleanly
// and never need the slice.
func (row *Row) setErr(i int, err error) {
	if row.Errs == nil {
		row.Errs = make([]error, len(row.Values))
	}
	row.Errs[i] = err
}

// isDecodeDomainError reports whether err is a per-value decode failure
// that leaves the wire position intact, as opposed to a protocol-level
// desync that must tear down the exchange.
func isDecodeDomainError(err error) bool {
	switch err.(type) {
	case *CodecError, *TypeMismatchError:
		return true
	default:
		return false
	}
}
