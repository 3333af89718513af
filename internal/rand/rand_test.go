package rand

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequestID(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := NewRequestID(16)
		assert.Len(t, id, 16)
		for _, r := range id {
			assert.True(t, strings.ContainsRune(charset, r), "unexpected character %q in request ID", r)
		}
		seen[id] = true
	}
	// 100 draws from a 62^16 space must not collide.
	assert.Len(t, seen, 100)
}

func BenchmarkNewRequestID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NewRequestID(16)
	}
}
