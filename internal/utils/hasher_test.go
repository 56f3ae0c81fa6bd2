package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Hash("abc"))
	assert.Equal(t, Hash("a\nb"), Hash("a", "b"))
	assert.NotEqual(t, Hash("ab"), Hash("a", "b"))
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "ba7816bf", ShortHash(8, "abc"))
	assert.Len(t, ShortHash(16, "x", "y"), 16)
	assert.Equal(t, Hash("abc"), ShortHash(0, "abc"))
	assert.Equal(t, Hash("abc"), ShortHash(100, "abc"))
}
