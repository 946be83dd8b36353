package tds

import "testing"

func TestCollationMarshalRoundTrip(t *testing.T) {
	c := Collation{LCID: 0x0409, Flags: 0x30, SortID: 52}
	buf := c.Marshal()
	if len(buf) != 5 {
		t.Fatalf("collation marshal length = %d, want 5", len(buf))
	}
	r := newByteReader(buf)
	got, err := decodeCollation(r)
	if err != nil {
		t.Fatal(err)
	}
	if got != c {
		t.Fatalf("got %+v, want %+v", got, c)
	}
}

func TestDecodeNarrowDefaultsToWindows1252(t *testing.T) {
	c := Collation{} // no sort id, no lcid match -> default 1252
	// 0xE9 in Windows-1252 is é
	got := c.decodeNarrow([]byte{0xE9})
	if got != "é" {
		t.Fatalf("got %q, want é", got)
	}
}

func TestDecodeNarrowBySortID(t *testing.T) {
	c := Collation{SortID: 51} // maps to 1252
	got := c.decodeNarrow([]byte{'h', 'i'})
	if got != "hi" {
		t.Fatalf("got %q", got)
	}
}
