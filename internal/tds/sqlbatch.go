package tds

// BuildSQLBatch constructs an SQLBatch payload: an ALL_HEADERS block
// carrying the current transaction descriptor, followed by the batch
// text encoded as UTF-16LE (MS-TDS 2.2.6.6).
func BuildSQLBatch(query string, transactionDescriptor uint64) []byte {
	headers := BuildAllHeaders(transactionDescriptor)
	text := encodeUTF16LE(query)

	buf := make([]byte, len(headers)+len(text))
	copy(buf, headers)
	copy(buf[len(headers):], text)
	return buf
}
