package tds

import (
	"errors"
	"testing"
)

func TestIsError(t *testing.T) {
	if IsError(10) {
		t.Fatal("class 10 is informational, not an error")
	}
	if !IsError(11) {
		t.Fatal("class 11 should be an error")
	}
	if !IsError(20) {
		t.Fatal("class 20 (fatal) should be an error")
	}
}

func TestConnectionLostErrorUnwraps(t *testing.T) {
	inner := errors.New("broken pipe")
	wrapped := &ConnectionLostError{Cause: inner}
	if !errors.Is(wrapped, inner) {
		t.Fatal("ConnectionLostError should unwrap to its cause")
	}
}

func TestProtocolErrorFormatsWithoutGotWant(t *testing.T) {
	err := &ProtocolError{Message: "bad length"}
	if err.Error() != "bad length" {
		t.Fatalf("got %q", err.Error())
	}
}

func TestProtocolErrorFormatsWithGotWant(t *testing.T) {
	err := &ProtocolError{Message: "unexpected packet", Got: PacketAttention, Want: PacketReply}
	want := "unexpected packet: got ATTENTION, want TABULAR_RESULT"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}
