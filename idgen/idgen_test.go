package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIDIsValidAndUnique(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.NotEqual(t, a, b)
	assert.True(t, IsValidID(a))
	assert.True(t, IsValidID(b))
}

func TestIsValidIDRejectsGarbage(t *testing.T) {
	assert.False(t, IsValidID(""))
	assert.False(t, IsValidID("not-a-uuid"))
}
