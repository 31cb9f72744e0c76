// internal/types/ids_test.go
package types

import (
	"testing"
)

func TestNewInvocationID(t *testing.T) {
	id := NewInvocationID()
	if id == "" {
		t.Error("expected non-empty InvocationID")
	}
	if len(string(id)) != 36 {
		t.Errorf("expected UUID format, got %s", id)
	}
}

func TestParseButtonID(t *testing.T) {
	id, err := ParseButtonID(" 42 ")
	if err != nil {
		t.Fatal(err)
	}
	if id != 42 || id.String() != "42" {
		t.Errorf("expected 42, got %s", id)
	}
	for _, bad := range []string{"", "abc", "0", "-3"} {
		if _, err := ParseButtonID(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
