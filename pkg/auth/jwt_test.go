package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionToken_RoundTrip(t *testing.T) {
	now := time.Now()
	tok, sid, err := NewSessionToken(7, "officer@example.com", "Chairperson", "officer", "secret", time.Hour, now)
	require.NoError(t, err)
	require.NotEmpty(t, sid)

	claims, err := Parse(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.Sub)
	assert.Equal(t, "officer", claims.Class)
	assert.Equal(t, sid, claims.ID)
}

func TestNewSessionToken_FreshIDs(t *testing.T) {
	now := time.Now()
	_, a, err := NewSessionToken(1, "a@example.com", "member", "member", "s", time.Hour, now)
	require.NoError(t, err)
	_, b, err := NewSessionToken(1, "a@example.com", "member", "member", "s", time.Hour, now)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestParse_Rejects(t *testing.T) {
	tok, _, err := NewSessionToken(1, "a@example.com", "member", "member", "right", time.Hour, time.Now())
	require.NoError(t, err)

	_, err = Parse(tok, "wrong")
	assert.Error(t, err)

	expired, _, err := NewSessionToken(1, "a@example.com", "member", "member", "right", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = Parse(expired, "right")
	assert.Error(t, err)
}
