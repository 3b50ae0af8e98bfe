package snapshot

import "testing"

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		fallback string
		want     string
	}{
		{"simple", "Alice", "42", "alice"},
		{"two words", "Alice Smith", "42", "alicesmith"},
		{"bot name", "SupportBot", "42", "supportbot"},
		{"keeps digits", "Agent 47", "42", "agent47"},
		{"strips punctuation", "a.b_c-d!", "42", "abcd"},
		{"strips emoji", "-Nicholas\U0001F5A4", "42", "nicholas"},
		{"non-latin falls back", "علی", "10042", "10042"},
		{"empty falls back", "", "10042", "10042"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.input, tt.fallback); got != tt.want {
				t.Errorf("Key(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestKeySetAssignsSuffixesOnCollision(t *testing.T) {
	ks := NewKeySet()

	if got := ks.Assign("alice"); got != "alice" {
		t.Errorf("first assign = %q, want alice", got)
	}
	if got := ks.Assign("alice"); got != "alice2" {
		t.Errorf("second assign = %q, want alice2", got)
	}
	if got := ks.Assign("alice"); got != "alice3" {
		t.Errorf("third assign = %q, want alice3", got)
	}
	// An unrelated key is unaffected.
	if got := ks.Assign("bob"); got != "bob" {
		t.Errorf("assign bob = %q, want bob", got)
	}
}

func TestKeySetSuffixCollidesWithLiteralName(t *testing.T) {
	ks := NewKeySet()

	// A conversation literally named "alice2" claims the key first.
	if got := ks.Assign("alice2"); got != "alice2" {
		t.Fatalf("assign alice2 = %q", got)
	}
	if got := ks.Assign("alice"); got != "alice" {
		t.Fatalf("assign alice = %q", got)
	}
	// The collision suffix must skip the taken alice2.
	if got := ks.Assign("alice"); got != "alice3" {
		t.Errorf("suffixed assign = %q, want alice3", got)
	}
}
