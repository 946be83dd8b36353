package tds

import (
	"encoding/binary"
	"unicode/utf16"
)

// ── LOGIN7 (MS-TDS 2.2.6.4) ──────────────────────────────────────────────

// Login7OptionFlags1 bits (partial; only what the core sets).
const (
	OF1UseDB         byte = 0x20
	OF1InitDBFatal   byte = 0x40
	OF1SetLang       byte = 0x80
)

// Login7TypeFlags bits.
const (
	TFSQLTDS7    byte = 0x00
	TFODBCOn     byte = 0x10
)

// Login7Info holds the fields the core sends in a LOGIN7 request, or the
// fields recovered from parsing one (used by tests to round-trip
// BuildLogin7's output).
type Login7Info struct {
	TDSVersion         uint32
	PacketSize         uint32
	ClientProgVer      uint32
	ClientPID          uint32
	ConnectionID       uint32
	ClientTimeZone     int32
	ClientLCID         uint32
	OptionFlags1       byte
	OptionFlags2       byte
	TypeFlags          byte
	OptionFlags3       byte

	HostName             string
	UserName             string
	Password             string
	AppName              string
	ServerName           string
	ClientInterfaceName  string
	Language             string
	Database             string
	ClientID             [6]byte
}

const login7FixedSize = 36
const login7OffsetTableSize = 58 // bytes 36..94: 13 offset/length fields + 6-byte ClientID

// TDS74 is the protocol version this core speaks (MS-TDS 2.2.6.4 version 0x74000004).
const TDS74 uint32 = 0x74000004

// BuildLogin7 serializes a LOGIN7 request. Password is scrambled per
// MS-TDS 2.2.6.4 before being written to the wire; it is never logged.
func BuildLogin7(info *Login7Info) []byte {
	fields := []string{
		info.HostName,
		info.UserName,
		info.Password,
		info.AppName,
		info.ServerName,
		"", // ibExtension/cbExtension reserved slot, unused by the core
		info.ClientInterfaceName,
		info.Language,
		info.Database,
	}

	encoded := make([][]byte, len(fields))
	for i, f := range fields {
		encoded[i] = encodeUTF16LE(f)
	}
	encoded[2] = scramblePassword(encoded[2])

	variableStart := login7FixedSize + login7OffsetTableSize
	var variableSize int
	for _, e := range encoded {
		variableSize += len(e)
	}
	// SSPI and AtchDBFile/ChangePassword use empty offset/length entries
	// (the core uses SQL auth, not SSPI, and never attaches a file).

	total := variableStart + variableSize
	buf := make([]byte, total)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(total))
	binary.LittleEndian.PutUint32(buf[4:8], info.TDSVersion)
	binary.LittleEndian.PutUint32(buf[8:12], info.PacketSize)
	binary.LittleEndian.PutUint32(buf[12:16], info.ClientProgVer)
	binary.LittleEndian.PutUint32(buf[16:20], info.ClientPID)
	binary.LittleEndian.PutUint32(buf[20:24], info.ConnectionID)
	buf[24] = info.OptionFlags1
	buf[25] = info.OptionFlags2
	buf[26] = info.TypeFlags
	buf[27] = info.OptionFlags3
	binary.LittleEndian.PutUint32(buf[28:32], uint32(info.ClientTimeZone))
	binary.LittleEndian.PutUint32(buf[32:36], info.ClientLCID)

	pos := variableStart
	off := login7FixedSize
	// offsets: hostname(36) username(40) password(44) appname(48)
	// servername(52) extension(56) cltIntName(60) language(64) database(68)
	for i, e := range encoded {
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(pos))
		binary.LittleEndian.PutUint16(buf[off+2:off+4], uint16(utf16Len(fields[i])))
		copy(buf[pos:], e)
		pos += len(e)
		off += 4
	}
	// off is now 36+9*4=72: ClientID (6 bytes MAC, left zero — the core
	// has no NIC MAC to report and the server does not rely on it).
	off += 6
	// SSPI offset/length (78): empty, SQL auth only.
	binary.LittleEndian.PutUint16(buf[off:off+2], uint16(pos))
	binary.LittleEndian.PutUint16(buf[off+2:off+4], 0)
	off += 4
	// AtchDBFile offset/length (82): empty.
	binary.LittleEndian.PutUint16(buf[off:off+2], uint16(pos))
	binary.LittleEndian.PutUint16(buf[off+2:off+4], 0)
	off += 4
	// ChangePassword offset/length (86): empty.
	binary.LittleEndian.PutUint16(buf[off:off+2], uint16(pos))
	binary.LittleEndian.PutUint16(buf[off+2:off+4], 0)
	off += 4
	// cbSSPILong (90): 0, no SSPI blob longer than 65535 bytes.
	binary.LittleEndian.PutUint32(buf[off:off+4], 0)

	return buf
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// scramblePassword applies the MS-TDS 2.2.6.4 LOGIN7 password obfuscation:
// XOR each byte with 0xA5, then swap its nibbles.
func scramblePassword(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		c ^= 0xA5
		out[i] = (c<<4)&0xF0 | (c>>4)&0x0F
	}
	return out
}

func encodeUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}
	return buf
}

func decodeUTF16LE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return string(utf16.Decode(units))
}

// ParseLogin7 decodes a LOGIN7 payload. The core only uses this in
// tests, to round-trip what BuildLogin7 produces.
func ParseLogin7(payload []byte) (*Login7Info, error) {
	if len(payload) < login7FixedSize+login7OffsetTableSize {
		return nil, &ProtocolError{Message: "login7: payload too short"}
	}

	info := &Login7Info{
		TDSVersion:     binary.LittleEndian.Uint32(payload[4:8]),
		PacketSize:     binary.LittleEndian.Uint32(payload[8:12]),
		ClientProgVer:  binary.LittleEndian.Uint32(payload[12:16]),
		ClientPID:      binary.LittleEndian.Uint32(payload[16:20]),
		ConnectionID:   binary.LittleEndian.Uint32(payload[20:24]),
		OptionFlags1:   payload[24],
		OptionFlags2:   payload[25],
		TypeFlags:      payload[26],
		OptionFlags3:   payload[27],
		ClientTimeZone: int32(binary.LittleEndian.Uint32(payload[28:32])),
		ClientLCID:     binary.LittleEndian.Uint32(payload[32:36]),
	}

	readField := func(offsetPos int) (string, error) {
		if offsetPos+4 > len(payload) {
			return "", &ProtocolError{Message: "login7: truncated offset table"}
		}
		offset := binary.LittleEndian.Uint16(payload[offsetPos : offsetPos+2])
		charLen := binary.LittleEndian.Uint16(payload[offsetPos+2 : offsetPos+4])
		byteLen := int(charLen) * 2
		if int(offset)+byteLen > len(payload) {
			return "", &ProtocolError{Message: "login7: field data out of bounds"}
		}
		return decodeUTF16LE(payload[offset : int(offset)+byteLen]), nil
	}

	var err error
	if info.HostName, err = readField(36); err != nil {
		return nil, err
	}
	if info.UserName, err = readField(40); err != nil {
		return nil, err
	}
	scrambled, err := readRawField(payload, 44)
	if err != nil {
		return nil, err
	}
	info.Password = decodeUTF16LE(unscramblePassword(scrambled))
	if info.AppName, err = readField(48); err != nil {
		return nil, err
	}
	if info.ServerName, err = readField(52); err != nil {
		return nil, err
	}
	if info.ClientInterfaceName, err = readField(60); err != nil {
		return nil, err
	}
	if info.Language, err = readField(64); err != nil {
		return nil, err
	}
	if info.Database, err = readField(68); err != nil {
		return nil, err
	}
	copy(info.ClientID[:], payload[72:78])

	return info, nil
}

func readRawField(payload []byte, offsetPos int) ([]byte, error) {
	offset := binary.LittleEndian.Uint16(payload[offsetPos : offsetPos+2])
	charLen := binary.LittleEndian.Uint16(payload[offsetPos+2 : offsetPos+4])
	byteLen := int(charLen) * 2
	if int(offset)+byteLen > len(payload) {
		return nil, &ProtocolError{Message: "login7: field data out of bounds"}
	}
	return payload[offset : int(offset)+byteLen], nil
}

func unscramblePassword(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		c = (c<<4)&0xF0 | (c>>4)&0x0F
		out[i] = c ^ 0xA5
	}
	return out
}
