package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndParse(t *testing.T) {
	tok, err := Sign("s3cret", "alice", time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := Parse(tok, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	_, err = Parse(tok, "other")
	assert.Error(t, err)
	_, err = Parse(tok, "")
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestParseRejectsExpired(t *testing.T) {
	tok, err := Sign("s3cret", "alice", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = Parse(tok, "s3cret")
	assert.Error(t, err)
}

func TestSignRequiresInputs(t *testing.T) {
	_, err := Sign("", "alice", 0, time.Now())
	assert.ErrorIs(t, err, ErrNoSecret)
	_, err = Sign("s", " ", 0, time.Now())
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	tok, ok = BearerToken("bearer   xyz")
	assert.True(t, ok)
	assert.Equal(t, "xyz", tok)

	for _, bad := range []string{"", "Bearer", "Basic abc", "Bearer a b"} {
		_, ok := BearerToken(bad)
		assert.False(t, ok, bad)
	}
}
