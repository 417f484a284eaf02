package session

import (
	"reflect"
	"testing"
)

func TestAccessRecordRoundTrip(t *testing.T) {
	in := &AccessRecord{
		TokenID:         "tid",
		RefreshID:       "rid",
		UserID:          "7",
		Username:        "ops",
		PasswordVersion: 42,
		Roles:           []string{"auditor"},
		IssuedAt:        100,
		ExpiresAt:       200,
	}
	data, err := EncodeAccess(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeAccess(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("roundtrip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestAccessRecordWithoutRoles(t *testing.T) {
	data, err := EncodeAccess(&AccessRecord{TokenID: "t", UserID: "u"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeAccess(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Roles != nil {
		t.Fatalf("expected nil roles, got %v", out.Roles)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	data, _ := EncodeOnline(&OnlineSession{TokenID: "t"})
	data[0] = 99
	if _, err := DecodeOnline(data); err == nil {
		t.Fatal("expected unknown version to be rejected")
	}
}
