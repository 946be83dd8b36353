package tds

import (
	"bytes"
	"testing"
)

func TestHeaderMarshalParseRoundTrip(t *testing.T) {
	h := &Header{Type: PacketSQLBatch, Status: StatusEOM, Length: 42, SPID: 7, PacketID: 3, Window: 0}
	buf := h.Marshal()
	if len(buf) != HeaderSize {
		t.Fatalf("marshal produced %d bytes, want %d", len(buf), HeaderSize)
	}
	got, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if *got != *h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestParseHeaderRejectsShortLength(t *testing.T) {
	h := &Header{Type: PacketSQLBatch, Status: StatusEOM, Length: 3}
	buf := h.Marshal()
	if _, err := ParseHeader(buf); err == nil {
		t.Fatal("expected error for length shorter than header size")
	}
}

func TestParseHeaderRejectsOversizeLength(t *testing.T) {
	h := &Header{Type: PacketSQLBatch, Status: StatusEOM, Length: HeaderSize}
	buf := h.Marshal()
	buf[2] = 0xFF
	buf[3] = 0xFF
	if _, err := ParseHeader(buf); err == nil {
		t.Fatal("expected error for oversize length")
	}
}

func TestFramerSplitSingleSmallPayload(t *testing.T) {
	f := NewFramer(512)
	payload := []byte("SELECT 1")
	packets := f.Split(PacketSQLBatch, payload)
	if len(packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(packets))
	}
	hdr, err := ParseHeader(packets[0])
	if err != nil {
		t.Fatal(err)
	}
	if !hdr.IsEOM() {
		t.Fatal("single packet must be EOM")
	}
	if !bytes.Equal(packets[0][HeaderSize:], payload) {
		t.Fatal("payload mismatch")
	}
}

func TestFramerSplitLargePayloadMultiplePackets(t *testing.T) {
	f := NewFramer(512)
	payload := make([]byte, 2000)
	for i := range payload {
		payload[i] = byte(i)
	}
	packets := f.Split(PacketSQLBatch, payload)
	if len(packets) < 4 {
		t.Fatalf("expected at least 4 packets for 2000 bytes at packet size 512, got %d", len(packets))
	}

	var reassembled []byte
	for i, pkt := range packets {
		hdr, err := ParseHeader(pkt)
		if err != nil {
			t.Fatal(err)
		}
		isLast := i == len(packets)-1
		if isLast != hdr.IsEOM() {
			t.Fatalf("packet %d: IsEOM=%v, want %v", i, hdr.IsEOM(), isLast)
		}
		reassembled = append(reassembled, pkt[HeaderSize:]...)
	}
	if !bytes.Equal(reassembled, payload) {
		t.Fatal("reassembled payload does not match original")
	}
}

func TestFramerPacketIDsIncreaseMonotonically(t *testing.T) {
	f := NewFramer(512)
	payload := make([]byte, 2000)
	packets := f.Split(PacketSQLBatch, payload)

	for i := 1; i < len(packets); i++ {
		prevHdr, _ := ParseHeader(packets[i-1])
		curHdr, _ := ParseHeader(packets[i])
		if curHdr.PacketID != prevHdr.PacketID+1 {
			t.Fatalf("packet id gap: %d -> %d", prevHdr.PacketID, curHdr.PacketID)
		}
	}
}

func TestFramerSplitEmptyPayloadEmitsOneEOMPacket(t *testing.T) {
	f := NewFramer(512)
	packets := f.Split(PacketAttention, nil)
	if len(packets) != 1 {
		t.Fatalf("expected 1 packet for empty payload, got %d", len(packets))
	}
	hdr, err := ParseHeader(packets[0])
	if err != nil {
		t.Fatal(err)
	}
	if !hdr.IsEOM() || hdr.PayloadLength() != 0 {
		t.Fatal("expected empty EOM packet")
	}
}

func TestReadMessageReassemblesMultiPacketMessage(t *testing.T) {
	f := NewFramer(512)
	payload := bytes.Repeat([]byte{0xAB}, 1500)
	packets := f.Split(PacketSQLBatch, payload)

	var wire bytes.Buffer
	for _, pkt := range packets {
		wire.Write(pkt)
	}

	pktType, got, gotPackets, err := ReadMessage(&wire)
	if err != nil {
		t.Fatal(err)
	}
	if pktType != PacketSQLBatch {
		t.Fatalf("pktType = %v, want PacketSQLBatch", pktType)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("reassembled payload mismatch")
	}
	if len(gotPackets) != len(packets) {
		t.Fatalf("got %d raw packets, want %d", len(gotPackets), len(packets))
	}
}

func TestReadMessageRejectsPacketIDGap(t *testing.T) {
	f := NewFramer(512)
	payload := bytes.Repeat([]byte{0xCD}, 1500)
	packets := f.Split(PacketSQLBatch, payload)

	// Corrupt the second packet's id to create a gap.
	hdr, _ := ParseHeader(packets[1])
	hdr.PacketID += 5
	copy(packets[1][:HeaderSize], hdr.Marshal())

	var wire bytes.Buffer
	for _, pkt := range packets {
		wire.Write(pkt)
	}

	if _, _, _, err := ReadMessage(&wire); err == nil {
		t.Fatal("expected protocol error for packet id gap")
	}
}
