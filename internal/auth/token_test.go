package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/albaranes/internal/models"
)

func TestIssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	user := &models.User{ID: uuid.New(), Role: "user"}

	token, err := issuer.Issue(user)
	require.NoError(t, err)

	id, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
}

func TestParseRejectsForeignAndExpiredTokens(t *testing.T) {
	user := &models.User{ID: uuid.New()}

	foreign, err := NewTokenIssuer("other-secret", time.Hour).Issue(user)
	require.NoError(t, err)
	_, err = NewTokenIssuer("test-secret", time.Hour).Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expiredIssuer := NewTokenIssuer("test-secret", time.Minute)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredIssuer.Issue(user)
	require.NoError(t, err)
	_, err = expiredIssuer.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = expiredIssuer.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
