// Package tds implements the core of a TDS (Tabular Data Stream) client
// driver for Microsoft SQL Server: packet framing, the PRELOGIN/LOGIN
// state machine, the column type codec registry, the token layer, and
// the single-outstanding-exchange request/response engine.
//
// Reference: https://learn.microsoft.com/en-us/openspecs/windows_protocols/ms-tds/
package tds

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.uber.org/atomic"
)

// ── Packet Types (MS-TDS 2.2.3.1.1) ─────────────────────────────────────

// PacketType is the first byte of a TDS packet header.
type PacketType byte

const (
	PacketSQLBatch     PacketType = 0x01
	PacketPreTDS7Login PacketType = 0x02
	PacketRPCRequest   PacketType = 0x03
	PacketReply        PacketType = 0x04
	PacketAttention    PacketType = 0x06
	PacketBulkLoad     PacketType = 0x07
	PacketFedAuthToken PacketType = 0x08
	PacketTransMgr     PacketType = 0x0E
	PacketLogin7       PacketType = 0x10
	PacketSSPI         PacketType = 0x11
	PacketPreLogin     PacketType = 0x12
)

// String returns a readable name for the packet type.
func (t PacketType) String() string {
	switch t {
	case PacketSQLBatch:
		return "SQL_BATCH"
	case PacketPreTDS7Login:
		return "PRE_TDS7_LOGIN"
	case PacketRPCRequest:
		return "RPC"
	case PacketReply:
		return "TABULAR_RESULT"
	case PacketAttention:
		return "ATTENTION"
	case PacketBulkLoad:
		return "BULK_LOAD_DATA"
	case PacketFedAuthToken:
		return "FED_AUTH_TOKEN"
	case PacketTransMgr:
		return "TX_MGR"
	case PacketLogin7:
		return "TDS7_LOGIN"
	case PacketSSPI:
		return "SSPI"
	case PacketPreLogin:
		return "PRE_LOGIN"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", byte(t))
	}
}

// ── Packet Status (MS-TDS 2.2.3.1.2) ────────────────────────────────────

const (
	StatusNormal        byte = 0x00
	StatusEOM           byte = 0x01 // End of message
	StatusIgnore        byte = 0x02
	StatusResetConn     byte = 0x08 // sp_reset_connection on next request
	StatusResetConnSkip byte = 0x10 // reset, skipping transactional state
)

// ── Header (8 bytes, MS-TDS 2.2.3.1) ────────────────────────────────────

// HeaderSize is the fixed size of a TDS packet header.
const HeaderSize = 8

// MinPacketSize and MaxPacketSize bound the negotiable packet size.
const (
	MinPacketSize = 512
	MaxPacketSize = 32767
)

// DefaultPacketSize is proposed by the client before negotiation.
const DefaultPacketSize = 4096

// Header is the 8-byte header prefixing every TDS packet.
//
//	Byte 0:   Type
//	Byte 1:   Status
//	Byte 2-3: Length (including header, big-endian)
//	Byte 4-5: SPID (big-endian)
//	Byte 6:   PacketID
//	Byte 7:   Window (unused, always 0)
type Header struct {
	Type     PacketType
	Status   byte
	Length   uint16
	SPID     uint16
	PacketID byte
	Window   byte
}

// IsEOM reports whether this packet ends its logical message.
func (h *Header) IsEOM() bool {
	return h.Status&StatusEOM != 0
}

// PayloadLength returns the number of payload bytes (Length - HeaderSize).
func (h *Header) PayloadLength() int {
	if int(h.Length) <= HeaderSize {
		return 0
	}
	return int(h.Length) - HeaderSize
}

// Marshal serializes the header into 8 bytes.
func (h *Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(h.Type)
	buf[1] = h.Status
	binary.BigEndian.PutUint16(buf[2:4], h.Length)
	binary.BigEndian.PutUint16(buf[4:6], h.SPID)
	buf[6] = h.PacketID
	buf[7] = h.Window
	return buf
}

// ParseHeader parses an 8-byte buffer into a Header.
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, &ProtocolError{Message: fmt.Sprintf("tds header too short: %d bytes", len(buf))}
	}
	h := &Header{
		Type:     PacketType(buf[0]),
		Status:   buf[1],
		Length:   binary.BigEndian.Uint16(buf[2:4]),
		SPID:     binary.BigEndian.Uint16(buf[4:6]),
		PacketID: buf[6],
		Window:   buf[7],
	}
	if h.Length < HeaderSize {
		return nil, &ProtocolError{Message: fmt.Sprintf("tds packet length %d is less than header size", h.Length)}
	}
	if int(h.Length) > MaxPacketSize {
		return nil, &ProtocolError{Message: fmt.Sprintf("tds packet length %d exceeds max %d", h.Length, MaxPacketSize)}
	}
	return h, nil
}

// ReadHeader reads and parses an 8-byte header from r.
func ReadHeader(r io.Reader) (*Header, error) {
	buf, err := readFull(r, HeaderSize)
	if err != nil {
		return nil, err
	}
	return ParseHeader(buf)
}

// ReadPacket reads one complete TDS packet (header + payload) from r.
// Returns the header and the full packet bytes including the header.
func ReadPacket(r io.Reader) (*Header, []byte, error) {
	hdr, err := ReadHeader(r)
	if err != nil {
		return nil, nil, err
	}

	packet := make([]byte, hdr.Length)
	copy(packet[:HeaderSize], hdr.Marshal())

	payloadLen := hdr.PayloadLength()
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, packet[HeaderSize:]); err != nil {
			return nil, nil, &ProtocolError{Message: fmt.Sprintf("reading tds payload (%d bytes): %v", payloadLen, err)}
		}
	}

	return hdr, packet, nil
}

// ReadMessage reads a complete logical TDS message (one or more packets
// up to and including EOM) from r. It returns the packet type, the
// reassembled payload (headers stripped), and the raw packets.
//
// packet_id must increase monotonically (mod 256) within the message; a
// gap is a protocol error.
func ReadMessage(r io.Reader) (PacketType, []byte, [][]byte, error) {
	var (
		pktType    PacketType
		payload    []byte
		packets    [][]byte
		haveFirst  bool
		expectedID byte
	)

	for {
		hdr, pkt, err := ReadPacket(r)
		if err != nil {
			return 0, nil, nil, err
		}

		if !haveFirst {
			pktType = hdr.Type
			expectedID = hdr.PacketID
			haveFirst = true
		} else if hdr.PacketID != expectedID {
			return 0, nil, nil, &ProtocolError{
				Message: fmt.Sprintf("packet id gap: expected %d, got %d", expectedID, hdr.PacketID),
			}
		}
		expectedID++

		packets = append(packets, pkt)
		if hdr.PayloadLength() > 0 {
			payload = append(payload, pkt[HeaderSize:]...)
		}

		if hdr.IsEOM() {
			break
		}
	}

	return pktType, payload, packets, nil
}

// WritePackets writes raw packet bytes to w in order.
func WritePackets(w io.Writer, packets [][]byte) error {
	for _, pkt := range packets {
		if _, err := w.Write(pkt); err != nil {
			return err
		}
	}
	return nil
}

// Framer splits outbound logical messages into packets of a negotiated
// size and owns the shared, monotonically-incrementing packet-id counter
// for a single connection (spec §5: "written only by the outbound
// encoder").
type Framer struct {
	packetSize atomic.Int64
	nextID     atomic.Uint32
}

// NewFramer creates a Framer with the given negotiated packet size.
func NewFramer(packetSize int) *Framer {
	f := &Framer{}
	f.SetPacketSize(packetSize)
	return f
}

// SetPacketSize updates the negotiated packet size (e.g. on
// ENVCHANGE type 4). It is clamped to [MinPacketSize, MaxPacketSize].
func (f *Framer) SetPacketSize(size int) {
	if size < MinPacketSize {
		size = MinPacketSize
	}
	if size > MaxPacketSize {
		size = MaxPacketSize
	}
	f.packetSize.Store(int64(size))
}

// PacketSize returns the currently negotiated packet size.
func (f *Framer) PacketSize() int {
	return int(f.packetSize.Load())
}

// Split divides payload into one or more packets of pktType, each no
// larger than the negotiated packet size, with packet_id drawn from the
// shared counter and EndOfMessage set exactly on the last packet.
func (f *Framer) Split(pktType PacketType, payload []byte) [][]byte {
	packetSize := f.PacketSize()
	maxPayload := packetSize - HeaderSize

	var packets [][]byte
	for len(payload) > 0 {
		chunkSize := maxPayload
		if chunkSize > len(payload) {
			chunkSize = len(payload)
		}

		status := StatusNormal
		if chunkSize >= len(payload) {
			status = StatusEOM
		}

		hdr := Header{
			Type:     pktType,
			Status:   status,
			Length:   uint16(HeaderSize + chunkSize),
			PacketID: byte(f.nextID.Add(1) - 1),
		}

		pkt := make([]byte, HeaderSize+chunkSize)
		copy(pkt[:HeaderSize], hdr.Marshal())
		copy(pkt[HeaderSize:], payload[:chunkSize])

		packets = append(packets, pkt)
		payload = payload[chunkSize:]
	}

	if len(packets) == 0 {
		hdr := Header{
			Type:     pktType,
			Status:   StatusEOM,
			Length:   HeaderSize,
			PacketID: byte(f.nextID.Add(1) - 1),
		}
		packets = append(packets, hdr.Marshal())
	}

	return packets
}
