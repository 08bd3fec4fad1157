// internal/auth/session_test.go
package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	s, err := NewSigner(time.Hour)
	require.NoError(t, err)

	id := uuid.New()
	token, err := s.Issue(id, "ABCDE")
	require.NoError(t, err)

	gotID, room, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, "ABCDE", room)
}

func TestParseRejectsForeignAndTamperedTokens(t *testing.T) {
	a, err := NewSigner(0)
	require.NoError(t, err)
	b, err := NewSigner(0)
	require.NoError(t, err)

	token, err := a.Issue(uuid.New(), "ROOM1")
	require.NoError(t, err)

	_, _, err = b.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "signed by another key")

	_, _, err = a.Parse(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = a.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	s, err := NewSigner(time.Minute)
	require.NoError(t, err)
	base := time.Now()
	s.now = func() time.Time { return base }

	token, err := s.Issue(uuid.New(), "ROOM1")
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, _, err = s.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenDigest(t *testing.T) {
	d := TokenDigest("abc")
	assert.Len(t, d, 64)
	assert.Equal(t, d, TokenDigest("abc"))
	assert.NotEqual(t, d, TokenDigest("abd"))
}
