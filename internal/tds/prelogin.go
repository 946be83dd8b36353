package tds

import (
	"crypto/tls"
	"fmt"
	"net"

	"go.uber.org/atomic"
)

// ── PRELOGIN Option Tokens (MS-TDS 2.2.6.5) ─────────────────────────────

type PreLoginOptionToken byte

const (
	OptVersion    PreLoginOptionToken = 0x00
	OptEncryption PreLoginOptionToken = 0x01
	OptInstOpt    PreLoginOptionToken = 0x02
	OptThreadID   PreLoginOptionToken = 0x03
	OptMARS       PreLoginOptionToken = 0x04
	OptTraceID    PreLoginOptionToken = 0x05
	OptFedAuthReq PreLoginOptionToken = 0x06
	OptNonceOpt   PreLoginOptionToken = 0x07
	OptTerminator PreLoginOptionToken = 0xFF
)

// ── Encryption Capability (MS-TDS 2.2.6.5 ENCRYPTION) ───────────────────

type Encryption byte

const (
	EncryptOff    Encryption = 0x00
	EncryptOn     Encryption = 0x01
	EncryptNotSup Encryption = 0x02
	EncryptReq    Encryption = 0x03
)

// PreLoginOption is one OFFSET/LENGTH described value in a PRELOGIN message.
type PreLoginOption struct {
	Token PreLoginOptionToken
	Data  []byte
}

// PreLoginMsg is the parsed PRELOGIN request or response.
type PreLoginMsg struct {
	Options []PreLoginOption
}

// Encryption returns the ENCRYPTION option value, defaulting to
// EncryptOff if the option is absent.
func (m *PreLoginMsg) Encryption() Encryption {
	for _, o := range m.Options {
		if o.Token == OptEncryption && len(o.Data) == 1 {
			return Encryption(o.Data[0])
		}
	}
	return EncryptOff
}

// SetEncryption sets or replaces the ENCRYPTION option.
func (m *PreLoginMsg) SetEncryption(e Encryption) {
	for i, o := range m.Options {
		if o.Token == OptEncryption {
			m.Options[i].Data = []byte{byte(e)}
			return
		}
	}
	m.Options = append(m.Options, PreLoginOption{Token: OptEncryption, Data: []byte{byte(e)}})
}

// Marshal serializes the PRELOGIN message: an offset/length table
// followed by a terminator, followed by the concatenated option data.
func (m *PreLoginMsg) Marshal() []byte {
	tableSize := len(m.Options)*5 + 1
	var dataSize int
	for _, o := range m.Options {
		dataSize += len(o.Data)
	}

	buf := make([]byte, tableSize+dataSize)
	pos := 0
	dataOffset := tableSize

	for _, o := range m.Options {
		buf[pos] = byte(o.Token)
		putUint16BE(buf[pos+1:], uint16(dataOffset))
		putUint16BE(buf[pos+3:], uint16(len(o.Data)))
		pos += 5

		copy(buf[dataOffset:], o.Data)
		dataOffset += len(o.Data)
	}
	buf[pos] = byte(OptTerminator)

	return buf
}

func putUint16BE(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func getUint16BE(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// ParsePreLogin parses a PRELOGIN payload into its options.
func ParsePreLogin(payload []byte) (*PreLoginMsg, error) {
	msg := &PreLoginMsg{}
	pos := 0

	for {
		if pos >= len(payload) {
			return nil, &ProtocolError{Message: "prelogin: truncated option table"}
		}
		token := PreLoginOptionToken(payload[pos])
		if token == OptTerminator {
			break
		}
		if pos+5 > len(payload) {
			return nil, &ProtocolError{Message: "prelogin: truncated option table entry"}
		}
		offset := getUint16BE(payload[pos+1:])
		length := getUint16BE(payload[pos+3:])
		if int(offset)+int(length) > len(payload) {
			return nil, &ProtocolError{Message: "prelogin: option data out of bounds"}
		}
		msg.Options = append(msg.Options, PreLoginOption{
			Token: token,
			Data:  payload[offset : offset+length],
		})
		pos += 5
	}

	return msg, nil
}

// BuildPreLoginRequest constructs the client's initial PRELOGIN message.
// VERSION and ENCRYPTION are always sent; INSTOPT is sent empty since
// the core dials a resolved TCP endpoint directly rather than through
// the SQL Browser instance-name protocol.
func BuildPreLoginRequest(e Encryption) *PreLoginMsg {
	return &PreLoginMsg{
		Options: []PreLoginOption{
			{Token: OptVersion, Data: []byte{0, 0, 0, 0, 0, 0}},
			{Token: OptEncryption, Data: []byte{byte(e)}},
			{Token: OptInstOpt, Data: []byte{0}},
			{Token: OptThreadID, Data: []byte{0, 0, 0, 0}},
			{Token: OptMARS, Data: []byte{0}},
		},
	}
}

// NegotiateTLS performs the PRELOGIN encryption negotiation and reports
// what the connection actually agreed to use. desired expresses the
// caller's config.TLSMode mapped to an Encryption value. If desired is
// EncryptReq and the server replies EncryptNotSup, NegotiateTLS returns
// a ProtocolError.
//
// Once negotiation selects encryption, wrapTLS performs the TLS
// handshake with its records carried inside TDS PRELOGIN packets; all
// later traffic, LOGIN7 included, goes through the resulting TLS
// connection for the rest of the session.
func NegotiateTLS(conn net.Conn, framer *Framer, desired Encryption) (Encryption, error) {
	req := BuildPreLoginRequest(desired)
	payload := req.Marshal()

	for _, pkt := range framer.Split(PacketPreLogin, payload) {
		if _, err := conn.Write(pkt); err != nil {
			return EncryptOff, &ConnectionLostError{Cause: err}
		}
	}

	_, respPayload, _, err := ReadMessage(conn)
	if err != nil {
		return EncryptOff, err
	}

	resp, err := ParsePreLogin(respPayload)
	if err != nil {
		return EncryptOff, err
	}

	negotiated := resp.Encryption()
	if desired == EncryptReq && negotiated == EncryptNotSup {
		return EncryptOff, &ProtocolError{Message: "server does not support encryption but client requires it"}
	}

	return negotiated, nil
}

// wrapTLS performs a TLS client handshake over conn, used once both
// sides have agreed to encrypt via PRELOGIN ENCRYPTION negotiation.
// Per spec §4.5, the handshake records themselves must ride inside TDS
// PRELOGIN (type=0x12) packet payloads, not as plain bytes on the
// socket; preloginTLSConn provides that framing for exactly the
// duration of the handshake, then steps out of the way.
func wrapTLS(conn net.Conn, framer *Framer, cfg *tls.Config) (*tls.Conn, error) {
	wrapped := newPreloginTLSConn(conn, framer)
	tlsConn := tls.Client(wrapped, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return nil, fmt.Errorf("tds: tls handshake: %w", err)
	}
	wrapped.markHandshakeDone()
	return tlsConn, nil
}

// preloginTLSConn wraps the raw connection so that, while the TLS
// handshake is in progress, every byte tls.Conn writes is framed as a
// PRELOGIN packet via framer.Split and every byte it reads comes from
// reassembling the server's PRELOGIN-wrapped response via ReadMessage
// (spec §4.5: "TLS handshake records are wrapped as TDS PRELOGIN
// packet payloads"). Once the handshake completes, Read/Write pass
// bytes straight through to conn, since only the handshake itself
// rides inside PRELOGIN framing — the LOGIN7 exchange that follows is
// framed by the connection's own Framer one layer up.
type preloginTLSConn struct {
	net.Conn
	framer  *Framer
	pending []byte
	done    atomic.Bool
}

func newPreloginTLSConn(conn net.Conn, framer *Framer) *preloginTLSConn {
	return &preloginTLSConn{Conn: conn, framer: framer}
}

func (c *preloginTLSConn) markHandshakeDone() {
	c.done.Store(true)
}

func (c *preloginTLSConn) Write(b []byte) (int, error) {
	if c.done.Load() {
		return c.Conn.Write(b)
	}
	for _, pkt := range c.framer.Split(PacketPreLogin, b) {
		if _, err := c.Conn.Write(pkt); err != nil {
			return 0, err
		}
	}
	return len(b), nil
}

func (c *preloginTLSConn) Read(b []byte) (int, error) {
	if c.done.Load() {
		return c.Conn.Read(b)
	}
	if len(c.pending) == 0 {
		_, payload, _, err := ReadMessage(c.Conn)
		if err != nil {
			return 0, err
		}
		c.pending = payload
	}
	n := copy(b, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}
