package snapshot

import (
	"strconv"
	"strings"
)

// Key derives a conversation key from a display name: lowercase alphanumeric
// characters only. Falls back to the given value when nothing survives
// (e.g. a name made entirely of emoji).
func Key(displayName, fallback string) string {
	k := keyify(displayName)
	if k == "" {
		k = keyify(fallback)
	}
	return k
}

func keyify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// KeySet hands out unique conversation keys within a single snapshot.
// Two conversations whose names collapse to the same key get numeric suffixes.
type KeySet struct {
	used map[string]bool
}

// NewKeySet creates an empty key set.
func NewKeySet() *KeySet {
	return &KeySet{used: make(map[string]bool)}
}

// Assign returns base if unused, otherwise base2, base3, ...
func (ks *KeySet) Assign(base string) string {
	key := base
	for n := 2; ks.used[key]; n++ {
		key = base + strconv.Itoa(n)
	}
	ks.used[key] = true
	return key
}
