package tds

import "fmt"

// ── Token Type Bytes (MS-TDS 2.2.4.2) ───────────────────────────────────

const (
	tokenAltMetadata byte = 0x88
	tokenAltRow      byte = 0xD3
	tokenColMetadata byte = 0x81
	tokenColInfo     byte = 0xA5
	tokenDone        byte = 0xFD
	tokenDoneProc    byte = 0xFE
	tokenDoneInProc  byte = 0xFF
	tokenEnvChange   byte = 0xE3
	tokenError       byte = 0xAA
	tokenInfo        byte = 0xAB
	tokenLoginAck    byte = 0xAD
	tokenNBCRow      byte = 0xD2
	tokenOrder       byte = 0xA9
	tokenReturnStatus byte = 0x79
	tokenReturnValue byte = 0xAC
	tokenRow         byte = 0xD1
	tokenSSPI        byte = 0xED
	tokenFeatureExtAck byte = 0xAE
)

// ── DONE status flags (MS-TDS 2.2.7.5) ──────────────────────────────────

const (
	doneFinal    uint16 = 0x0000
	doneMore     uint16 = 0x0001
	doneError    uint16 = 0x0002
	doneInxact   uint16 = 0x0004
	doneCount    uint16 = 0x0010
	doneAttn     uint16 = 0x0020
	doneSrvError uint16 = 0x0100
)

// DoneToken is DONE/DONEPROC/DONEINPROC (MS-TDS 2.2.7.5/7.6/7.7); all
// three share this layout and differ only in the preceding token byte.
type DoneToken struct {
	Kind       byte // tokenDone, tokenDoneProc, or tokenDoneInProc
	Status     uint16
	CurCmd     uint16
	DoneRowCount uint64
}

// Final reports whether this DONE closes the whole response stream
// rather than an intermediate batch within it (spec §4.4: "DONE(final)
// completion semantics").
func (d *DoneToken) Final() bool {
	return d.Status&doneMore == 0
}

// HasError reports whether this DONE carries the error bit, meaning an
// ERROR token preceded it in this response.
func (d *DoneToken) HasError() bool {
	return d.Status&doneError != 0
}

// HasCount reports whether DoneRowCount is meaningful.
func (d *DoneToken) HasCount() bool {
	return d.Status&doneCount != 0
}

// InTransaction reports whether the server considers an open
// transaction still in effect after this DONE.
func (d *DoneToken) InTransaction() bool {
	return d.Status&doneInxact != 0
}

// IsAttentionAck reports whether this DONE is the server's
// acknowledgement of a client ATTENTION, rather than a normal batch
// completion.
func (d *DoneToken) IsAttentionAck() bool {
	return d.Status&doneAttn != 0
}

func decodeDoneToken(kind byte, r *byteReader) (*DoneToken, error) {
	status, err := r.uint16()
	if err != nil {
		return nil, err
	}
	curCmd, err := r.uint16()
	if err != nil {
		return nil, err
	}
	count, err := r.uint64()
	if err != nil {
		return nil, err
	}
	return &DoneToken{Kind: kind, Status: status, CurCmd: curCmd, DoneRowCount: count}, nil
}

// InfoToken is INFO or ERROR (MS-TDS 2.2.7.11/7.12); both share this
// layout, and the token byte alone distinguishes an error from an
// informational message.
type InfoToken struct {
	IsError  bool
	Number   int32
	State    uint8
	Class    uint8
	Message  string
	Server   string
	Proc     string
	Line     uint32
}

func decodeInfoToken(isError bool, r *byteReader) (*InfoToken, error) {
	// a 2-byte total-length prefix wraps the rest of this token.
	length, err := r.uint16()
	if err != nil {
		return nil, err
	}
	body, err := r.take(int(length))
	if err != nil {
		return nil, err
	}
	br := newByteReader(body)

	number, err := br.int32()
	if err != nil {
		return nil, err
	}
	state, err := br.byte()
	if err != nil {
		return nil, err
	}
	class, err := br.byte()
	if err != nil {
		return nil, err
	}
	msg, err := br.usVarchar()
	if err != nil {
		return nil, err
	}
	server, err := br.bVarchar()
	if err != nil {
		return nil, err
	}
	proc, err := br.bVarchar()
	if err != nil {
		return nil, err
	}
	line, err := br.uint32()
	if err != nil {
		return nil, err
	}

	return &InfoToken{
		IsError: isError,
		Number:  number,
		State:   state,
		Class:   class,
		Message: msg,
		Server:  server,
		Proc:    proc,
		Line:    line,
	}, nil
}

// AsServerError converts an ERROR-class InfoToken into a *ServerError.
func (t *InfoToken) AsServerError() *ServerError {
	return &ServerError{
		Number: t.Number,
		State:  t.State,
		Class:  t.Class,
		Msg:    t.Message,
		Server: t.Server,
		Proc:   t.Proc,
		Line:   t.Line,
	}
}

// ── ENVCHANGE (MS-TDS 2.2.7.9) ──────────────────────────────────────────

const (
	EnvDatabase         byte = 1
	EnvLanguage         byte = 2
	EnvCharset          byte = 3
	EnvPacketSize       byte = 4
	EnvSQLCollation     byte = 7
	EnvBeginTx          byte = 8
	EnvCommitTx         byte = 9
	EnvRollbackTx       byte = 10
	EnvEnlistDTC        byte = 11
	EnvDefectTx         byte = 12
	EnvPromoteTx        byte = 15
	EnvTxManagerAddr    byte = 16
	EnvRouting          byte = 17
	EnvResetConnAck     byte = 18
	EnvUserInstance     byte = 19
)

// EnvChangeToken is ENVCHANGE, which reports a change to connection
// state decided unilaterally by the server.
type EnvChangeToken struct {
	Type     byte
	NewValue []byte
	OldValue []byte
}

func decodeEnvChangeToken(r *byteReader) (*EnvChangeToken, error) {
	length, err := r.uint16()
	if err != nil {
		return nil, err
	}
	body, err := r.take(int(length))
	if err != nil {
		return nil, err
	}
	br := newByteReader(body)

	typ, err := br.byte()
	if err != nil {
		return nil, err
	}

	tok := &EnvChangeToken{Type: typ}

	switch typ {
	case EnvPacketSize, EnvDatabase, EnvLanguage, EnvCharset:
		newVal, err := br.bVarcharRaw()
		if err != nil {
			return nil, err
		}
		oldVal, err := br.bVarcharRaw()
		if err != nil {
			return nil, err
		}
		tok.NewValue, tok.OldValue = newVal, oldVal
	case EnvBeginTx:
		newVal, err := br.byteBlob()
		if err != nil {
			return nil, err
		}
		if len(newVal) != 8 {
			return nil, &ProtocolError{Message: fmt.Sprintf("tds: ENVCHANGE(BeginTx) new_value is %d bytes, want 8", len(newVal))}
		}
		oldVal, err := br.byteBlob()
		if err != nil {
			return nil, err
		}
		tok.NewValue, tok.OldValue = newVal, oldVal
	case EnvCommitTx, EnvRollbackTx, EnvEnlistDTC, EnvDefectTx, EnvSQLCollation:
		newVal, err := br.byteBlob()
		if err != nil {
			return nil, err
		}
		oldVal, err := br.byteBlob()
		if err != nil {
			return nil, err
		}
		tok.NewValue, tok.OldValue = newVal, oldVal
	case EnvRouting:
		// ROUTING new value: 2-byte length, 1-byte protocol, 2-byte
		// port, 2-byte server-name length, UTF-16 server name. Old
		// value is always an empty US_VARCHAR.
		newLen, err := br.uint16()
		if err != nil {
			return nil, err
		}
		newBlob, err := br.take(int(newLen))
		if err != nil {
			return nil, err
		}
		tok.NewValue = newBlob
		if _, err := br.uint16(); err != nil {
			return nil, err
		}
	default:
		// Unknown/unhandled ENVCHANGE subtype: keep the raw remainder
		// so callers that care can reparse it, rather than failing the
		// whole response stream over a type the core doesn't act on.
		tok.NewValue = body[br.pos:]
	}

	return tok, nil
}

// bVarcharRaw reads a B_VARCHAR but returns its raw UTF-16LE bytes
// rather than decoding, for ENVCHANGE values the core stores opaquely.
func (r *byteReader) bVarcharRaw() ([]byte, error) {
	n, err := r.byte()
	if err != nil {
		return nil, err
	}
	return r.take(int(n) * 2)
}

// byteBlob reads a single length byte followed by that many raw bytes
// (used by transaction-descriptor ENVCHANGE subtypes, which are binary,
// not text).
func (r *byteReader) byteBlob() ([]byte, error) {
	n, err := r.byte()
	if err != nil {
		return nil, err
	}
	return r.take(int(n))
}

// TransactionDescriptor extracts the 8-byte transaction descriptor from
// a BEGIN/COMMIT/ROLLBACK ENVCHANGE's new value.
func (t *EnvChangeToken) TransactionDescriptor() (uint64, bool) {
	if len(t.NewValue) != 8 {
		return 0, false
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(t.NewValue[i])
	}
	return v, true
}

// Collation decodes a SQLCOLLATION ENVCHANGE's new value into the
// 5-byte SQL_COLLATION it carries.
func (t *EnvChangeToken) Collation() (Collation, bool) {
	if len(t.NewValue) != 5 {
		return Collation{}, false
	}
	c, err := decodeCollation(newByteReader(t.NewValue))
	if err != nil {
		return Collation{}, false
	}
	return c, true
}

// RoutingTarget decodes a ROUTING ENVCHANGE's new value into host/port.
func (t *EnvChangeToken) RoutingTarget() (host string, port uint16, ok bool) {
	if len(t.NewValue) < 5 {
		return "", 0, false
	}
	// byte 0: protocol (must be 0, TCP); bytes 1-2: port (LE); bytes
	// 3-4: server-name char length; rest: UTF-16LE name.
	port = uint16(t.NewValue[1]) | uint16(t.NewValue[2])<<8
	nameLen := int(uint16(t.NewValue[3]) | uint16(t.NewValue[4])<<8)
	nameBytes := nameLen * 2
	if 5+nameBytes > len(t.NewValue) {
		return "", 0, false
	}
	return decodeUTF16LE(t.NewValue[5 : 5+nameBytes]), port, true
}

// ── LOGINACK (MS-TDS 2.2.7.13) ───────────────────────────────────────────

type LoginAckToken struct {
	Interface  byte
	TDSVersion uint32
	ProgName   string
	ProgVersion [4]byte
}

func decodeLoginAckToken(r *byteReader) (*LoginAckToken, error) {
	length, err := r.uint16()
	if err != nil {
		return nil, err
	}
	body, err := r.take(int(length))
	if err != nil {
		return nil, err
	}
	br := newByteReader(body)

	iface, err := br.byte()
	if err != nil {
		return nil, err
	}
	ver, err := br.uint32()
	if err != nil {
		return nil, err
	}
	prog, err := br.bVarchar()
	if err != nil {
		return nil, err
	}
	progVerBytes, err := br.take(4)
	if err != nil {
		return nil, err
	}

	tok := &LoginAckToken{Interface: iface, TDSVersion: ver, ProgName: prog}
	copy(tok.ProgVersion[:], progVerBytes)
	return tok, nil
}

func (l *LoginAckToken) String() string {
	return fmt.Sprintf("%s %d.%d.%d.%d (TDS 0x%08X)", l.ProgName,
		l.ProgVersion[0], l.ProgVersion[1], l.ProgVersion[2], l.ProgVersion[3], l.TDSVersion)
}

// ── FEATUREEXTACK (MS-TDS 2.2.7.12) ─────────────────────────────────────

const (
	FeatureSessionRecovery byte = 0x01
	FeatureFedAuth         byte = 0x02
	FeatureColumnEncryption byte = 0x04
	FeatureGlobalTx        byte = 0x05
	FeatureAzureSQLSupport byte = 0x08
	FeatureDataClassification byte = 0x09
	FeatureUTF8Support     byte = 0x0A
	FeatureTerminator      byte = 0xFF
)

// FeatureExtAckToken lists the extended features the server
// acknowledged, each with its acknowledgment payload.
type FeatureExtAckToken struct {
	Features map[byte][]byte
}

func decodeFeatureExtAckToken(r *byteReader) (*FeatureExtAckToken, error) {
	tok := &FeatureExtAckToken{Features: map[byte][]byte{}}
	for {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		if id == FeatureTerminator {
			break
		}
		length, err := r.uint32()
		if err != nil {
			return nil, err
		}
		data, err := r.take(int(length))
		if err != nil {
			return nil, err
		}
		tok.Features[id] = data
	}
	return tok, nil
}

// ColumnEncryptionSupported reports whether the server acknowledged the
// column-encryption feature.
func (t *FeatureExtAckToken) ColumnEncryptionSupported() bool {
	_, ok := t.Features[FeatureColumnEncryption]
	return ok
}

// ── RETURNSTATUS (MS-TDS 2.2.7.17) ──────────────────────────────────────

func decodeReturnStatusToken(r *byteReader) (int32, error) {
	return r.int32()
}

// ── ORDER (MS-TDS 2.2.7.16) ─────────────────────────────────────────────

// OrderToken lists the 0-based column indexes that define the result
// set's sort order, if the server declares one.
type OrderToken struct {
	ColumnIndexes []uint16
}

func decodeOrderToken(r *byteReader) (*OrderToken, error) {
	length, err := r.uint16()
	if err != nil {
		return nil, err
	}
	n := int(length) / 2
	tok := &OrderToken{ColumnIndexes: make([]uint16, n)}
	for i := 0; i < n; i++ {
		v, err := r.uint16()
		if err != nil {
			return nil, err
		}
		tok.ColumnIndexes[i] = v
	}
	return tok, nil
}

// ── AllHeaders (MS-TDS 2.2.5.3.1) ───────────────────────────────────────

const (
	allHeaderQueryNotif     uint16 = 1
	allHeaderTransDescr     uint16 = 2
	allHeaderTraceActivity  uint16 = 3
)

// BuildAllHeaders constructs the ALL_HEADERS block prefixing SQLBatch,
// RPC, and BulkLoad payloads: a total-length u32, then one
// Transaction Descriptor header carrying the current transaction
// descriptor and a fixed outstanding-request count of 1 (the core never
// pipelines more than one request per MARS-less connection).
func BuildAllHeaders(transactionDescriptor uint64) []byte {
	const headerLen = 4 + 2 + 8 + 4 // HeaderLength + HeaderType + TransactionDescriptor + OutstandingRequestCount
	const totalLen = 4 + headerLen

	buf := make([]byte, totalLen)
	w := byteWriter{buf: buf[:0]}
	w.writeUint32(uint32(totalLen))
	w.writeUint32(uint32(headerLen))
	w.writeUint16(allHeaderTransDescr)
	w.writeUint64(transactionDescriptor)
	w.writeUint32(1)
	return w.buf
}
