package session

import (
	"testing"
)

// FuzzAccessDecode exercises the binary access-record decoder with arbitrary inputs.
// Goal: no panics, graceful error handling.
func FuzzAccessDecode(f *testing.F) {
	rec := &AccessRecord{
		TokenID:         "tid-fuzz",
		RefreshID:       "rid-fuzz",
		UserID:          "1",
		Username:        "admin",
		PasswordVersion: 3,
		Roles:           []string{"admin", "auditor"},
		IssuedAt:        1700000000,
		ExpiresAt:       1700001800,
	}
	if encoded, err := EncodeAccess(rec); err == nil {
		f.Add(encoded)
	}
	f.Add([]byte{})
	f.Add([]byte{accessFormatVersion})
	f.Add([]byte{accessFormatVersion, 0xFF, 0xFF})
	f.Add([]byte{9, 0, 0})

	f.Fuzz(func(t *testing.T, data []byte) {
		got, err := DecodeAccess(data)
		if err != nil {
			return
		}
		if got == nil {
			t.Fatal("DecodeAccess returned nil without error")
		}
		if _, err := EncodeAccess(got); err != nil {
			t.Fatalf("re-encode failed: %v", err)
		}
	})
}

// FuzzOnlineDecode exercises the online-session decoder.
func FuzzOnlineDecode(f *testing.F) {
	o := &OnlineSession{
		TokenID:   "tid",
		UserID:    "1",
		Username:  "admin",
		IP:        "10.0.0.1",
		UserAgent: "Mozilla/5.0",
		LoginAt:   1700000000,
		ExpiresAt: 1700600000,
	}
	if encoded, err := EncodeOnline(o); err == nil {
		f.Add(encoded)
	}
	f.Add([]byte{})
	f.Add([]byte{onlineFormatVersion, 0, 3, 'a'})

	f.Fuzz(func(t *testing.T, data []byte) {
		got, err := DecodeOnline(data)
		if err != nil {
			return
		}
		if got == nil {
			t.Fatal("DecodeOnline returned nil without error")
		}
	})
}
