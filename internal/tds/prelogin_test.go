package tds

import "testing"

func TestPreLoginMarshalParseRoundTrip(t *testing.T) {
	msg := BuildPreLoginRequest(EncryptOn)
	buf := msg.Marshal()

	got, err := ParsePreLogin(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Encryption() != EncryptOn {
		t.Fatalf("got encryption %v, want EncryptOn", got.Encryption())
	}
	if len(got.Options) != len(msg.Options) {
		t.Fatalf("got %d options, want %d", len(got.Options), len(msg.Options))
	}
}

func TestSetEncryptionReplacesExistingOption(t *testing.T) {
	msg := BuildPreLoginRequest(EncryptOff)
	msg.SetEncryption(EncryptReq)
	if msg.Encryption() != EncryptReq {
		t.Fatalf("got %v, want EncryptReq", msg.Encryption())
	}
	count := 0
	for _, o := range msg.Options {
		if o.Token == OptEncryption {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one ENCRYPTION option, got %d", count)
	}
}

func TestParsePreLoginRejectsTruncatedTable(t *testing.T) {
	if _, err := ParsePreLogin([]byte{0x00, 0x00}); err == nil {
		t.Fatal("expected error for truncated option table")
	}
}

func TestEncryptionDefaultsToOffWhenAbsent(t *testing.T) {
	msg := &PreLoginMsg{}
	if msg.Encryption() != EncryptOff {
		t.Fatalf("got %v, want EncryptOff", msg.Encryption())
	}
}
