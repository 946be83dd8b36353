package tds

import "github.com/sqlwire/go-tds/internal/config"

// previewSQLBatch decodes at most cfg.QueryLogPreviewChars characters
// of an outbound SQLBatch payload's UTF-16LE text for logging, without
// ever decoding (and holding in memory) a batch the caller never asked
// to have logged in full. AllHeaders has already been stripped by the
// caller; payload starts directly at the UTF-16LE SQL text.
func previewSQLBatch(payload []byte, cfg *config.Config) string {
	maxChars := 256
	if cfg != nil && cfg.QueryLogPreviewChars > 0 {
		maxChars = cfg.QueryLogPreviewChars
	}

	maxBytes := maxChars * 2
	truncated := false
	if len(payload) > maxBytes {
		payload = payload[:maxBytes]
		truncated = true
	}

	text := decodeUTF16LE(payload)
	if truncated {
		text += "..."
	}
	return text
}

// skipAllHeaders returns the payload with its leading ALL_HEADERS
// block removed, given the block declares its own total length as the
// first 4 bytes (MS-TDS 2.2.5.3.1).
func skipAllHeaders(payload []byte) []byte {
	if len(payload) < 4 {
		return payload
	}
	totalLen := int(payload[0]) | int(payload[1])<<8 | int(payload[2])<<16 | int(payload[3])<<24
	if totalLen <= 0 || totalLen > len(payload) {
		return payload
	}
	return payload[totalLen:]
}
