package permission

import (
	"reflect"
	"testing"
)

func TestSetAllows(t *testing.T) {
	s := NewSet("system:user:list", " monitor:online:list ", "")

	if s.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", s.Len())
	}
	if !s.Allows("monitor:online:list") {
		t.Fatal("trimmed key should be present")
	}
	if s.Allows("monitor:online:forceLogout") {
		t.Fatal("missing key must not be allowed")
	}
	if !s.Allows("") {
		t.Fatal("empty requirement is always allowed")
	}

	s.Add("system:*:*")
	if s.Allows("system:role:edit") {
		t.Fatal("only the root key acts as a wildcard")
	}

	s.Add(RootPermission)
	if !s.Allows("anything:at:all") {
		t.Fatal("root permission should allow every key")
	}
}

func TestEncodeSetIsDeterministic(t *testing.T) {
	a, err := EncodeSet(NewSet("b", "a", "c"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := EncodeSet(NewSet("c", "b", "a"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("equal sets must encode identically")
	}

	decoded, err := DecodeSet(a)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded.Sorted(), []string{"a", "b", "c"}) {
		t.Fatalf("unexpected decoded set: %v", decoded.Sorted())
	}
}

func TestDecodeSetRejectsTrailingBytes(t *testing.T) {
	data, _ := EncodeSet(NewSet("a"))
	if _, err := DecodeSet(append(data, 0)); err == nil {
		t.Fatal("expected trailing bytes to be rejected")
	}
}

func TestRoleTableExpand(t *testing.T) {
	rt := NewRoleTable()
	if err := rt.RegisterRole("admin", []string{RootPermission}); err != nil {
		t.Fatalf("register admin: %v", err)
	}
	if err := rt.RegisterRole("auditor", []string{"monitor:online:list", "system:log:list"}); err != nil {
		t.Fatalf("register auditor: %v", err)
	}
	if err := rt.RegisterRole("auditor", nil); err == nil {
		t.Fatal("duplicate role must be rejected")
	}

	got := rt.Expand([]string{"auditor", "ghost"})
	if !reflect.DeepEqual(got.Sorted(), []string{"monitor:online:list", "system:log:list"}) {
		t.Fatalf("unexpected expansion: %v", got.Sorted())
	}

	if err := rt.SetRole("auditor", []string{"system:log:list"}); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if rt.Expand([]string{"auditor"}).Contains("monitor:online:list") {
		t.Fatal("SetRole should replace the permission list")
	}

	perms, ok := rt.Permissions("auditor")
	if !ok {
		t.Fatal("expected auditor role")
	}
	perms.Add("mutated")
	if again, _ := rt.Permissions("auditor"); again.Contains("mutated") {
		t.Fatal("Permissions must return a copy")
	}
}
