package demo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReversed(t *testing.T) {
	s := NewService()
	for in, want := range map[string]string{
		"":       "",
		"abc":    "cba",
		"héllo":  "olléh",
		"ab cd!": "!dc ba",
	} {
		assert.Equal(t, want, s.GetReversed(in))
	}
}

func TestLoginSessions(t *testing.T) {
	s := NewService()

	result, id := s.Login("", "trinity")
	assert.Equal(t, "Username was empty", result)
	assert.Empty(t, id)

	result, id = s.Login("neo", "trinity")
	assert.Equal(t, true, result)
	other, otherID := s.Login("neo", "trinity")
	assert.Equal(t, true, other)
	assert.NotEqual(t, id, otherID, "each login gets its own session")

	name, ok := s.Whoami(id)
	assert.True(t, ok)
	assert.Equal(t, "the_one", name)

	s.Logout(id)
	_, ok = s.Whoami(id)
	assert.False(t, ok)
	_, ok = s.Whoami(otherID)
	assert.True(t, ok)
}
