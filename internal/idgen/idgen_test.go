package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUUIDv7(t *testing.T) {
	gen := UUIDv7()
	a, b := gen(), gen()
	if a == b {
		t.Fatal("duplicate ids")
	}
	u, err := uuid.Parse(a)
	if err != nil {
		t.Fatalf("parse %q: %v", a, err)
	}
	if u.Version() != 7 {
		t.Fatalf("version = %d", u.Version())
	}
	if a > b {
		t.Fatalf("ids not time-ordered: %s > %s", a, b)
	}
}

func TestPrefixed(t *testing.T) {
	id := Prefixed("h_", UUIDv7())()
	if !strings.HasPrefix(id, "h_") || len(id) != 2+36 {
		t.Fatalf("id = %q", id)
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("h")
	if gen() != "h-1" || gen() != "h-2" {
		t.Fatal("sequence out of order")
	}
}
