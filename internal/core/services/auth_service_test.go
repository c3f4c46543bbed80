package services

import (
	"testing"
	"time"

	"livesignal/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestAuthService_TokenRoundTrip(t *testing.T) {
	svc := NewAuthService("test-secret", time.Hour)

	token, err := svc.GenerateToken("alice")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, domain.Identity("alice"), claims.Identity())
}

func TestAuthService_ValidateToken(t *testing.T) {
	svc := NewAuthService("test-secret", time.Hour)

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects token signed with another secret", func(t *testing.T) {
		other := NewAuthService("other-secret", time.Hour)
		token, err := other.GenerateToken("alice")
		assert.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		expired := NewAuthService("test-secret", -time.Minute)
		token, err := expired.GenerateToken("alice")
		assert.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}
