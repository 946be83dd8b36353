package tds

import "testing"

func TestBuildLogin7ParseRoundTrip(t *testing.T) {
	info := &Login7Info{
		TDSVersion:          TDS74,
		PacketSize:          4096,
		ClientProgVer:       1,
		ClientPID:           1234,
		ConnectionID:        5678,
		OptionFlags1:        OF1UseDB,
		TypeFlags:           TFSQLTDS7,
		ClientLCID:          0x0409,
		HostName:            "workstation",
		UserName:            "sa",
		Password:            "correct horse battery staple",
		AppName:             "go-tds-test",
		ServerName:          "dbserver:1433",
		ClientInterfaceName: "go-tds",
		Language:            "",
		Database:            "master",
	}

	payload := BuildLogin7(info)

	got, err := ParseLogin7(payload)
	if err != nil {
		t.Fatal(err)
	}

	if got.HostName != info.HostName ||
		got.UserName != info.UserName ||
		got.Password != info.Password ||
		got.AppName != info.AppName ||
		got.ServerName != info.ServerName ||
		got.ClientInterfaceName != info.ClientInterfaceName ||
		got.Database != info.Database {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, info)
	}

	if got.TDSVersion != info.TDSVersion || got.ClientPID != info.ClientPID {
		t.Fatalf("fixed-header round trip mismatch: got %+v", got)
	}
}

func TestScramblePasswordUnscrambleRoundTrip(t *testing.T) {
	original := encodeUTF16LE("sw0rdfish!")
	scrambled := scramblePassword(original)
	back := unscramblePassword(scrambled)

	if string(back) != string(original) {
		t.Fatal("scramble/unscramble did not round trip")
	}
}

func TestBuildLogin7EmptyPassword(t *testing.T) {
	info := &Login7Info{
		TDSVersion: TDS74,
		HostName:   "h",
		UserName:   "u",
		Password:   "",
		AppName:    "a",
		ServerName: "s",
		Database:   "d",
	}
	payload := BuildLogin7(info)
	got, err := ParseLogin7(payload)
	if err != nil {
		t.Fatal(err)
	}
	if got.Password != "" {
		t.Fatalf("got %q, want empty password", got.Password)
	}
}
