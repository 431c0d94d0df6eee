package randstr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRandomString(t *testing.T) {
	letters := "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	g := New([]byte(letters))

	for range 100 {
		s := g.GenerateRandomString(4)
		assert.Len(t, s, 4)
		for _, r := range s {
			assert.True(t, strings.ContainsRune(letters, r), "unexpected rune %q", r)
		}
	}
}
