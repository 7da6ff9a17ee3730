package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTinyHash(t *testing.T) {
	a := TinyHash("a.near 1\nb.near 2\n")

	assert.NotEmpty(t, a)
	assert.LessOrEqual(t, len(a), 6)
	assert.Equal(t, a, TinyHash("a.near 1\nb.near 2\n"))
	assert.NotEqual(t, a, TinyHash("a.near 1\nb.near 3\n"))
}

func TestBase62Encode(t *testing.T) {
	assert.Equal(t, "0", base62Encode(0))
	assert.Equal(t, "z", base62Encode(61))
	assert.Equal(t, "10", base62Encode(62))
}
