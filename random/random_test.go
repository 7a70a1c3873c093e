package random

import "testing"

func TestString(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s, err := String(16)
		if err != nil {
			t.Fatal(err)
		}
		if len(s) != 16 {
			t.Fatalf("expected 16 characters, got %q", s)
		}
		if seen[s] {
			t.Fatalf("duplicate token %q", s)
		}
		seen[s] = true
	}
}
