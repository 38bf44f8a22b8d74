package apiserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTServiceWithIssuer(t *testing.T) {
	service := NewJWTServiceWithIssuer("test-secret", "https://issuer.example.com", "https://api.example.com")

	assert.NotNil(t, service)
	assert.Equal(t, []byte("test-secret"), service.secret)
	assert.Equal(t, "https://issuer.example.com", service.issuer)
	assert.Equal(t, "https://api.example.com", service.audience)
}

func TestGenerateTokenWithIssuerAudience(t *testing.T) {
	issuer := "https://issuer.example.com"
	audience := "https://api.example.com"
	service := NewJWTServiceWithIssuer("test-secret", issuer, audience)

	tokenString, err := service.GenerateToken("user123", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, tokenString)

	claims, err := service.ValidateToken(tokenString)
	require.NoError(t, err)

	assert.Equal(t, "user123", claims.Subject)
	assert.Equal(t, issuer, claims.Issuer)
	assert.Contains(t, claims.Audience, audience)
}

func TestGenerateTokenWithScopes(t *testing.T) {
	service := NewJWTServiceWithIssuer("test-secret", "https://issuer.example.com", "https://api.example.com")

	tokenString, err := service.GenerateTokenWithScopes("user123", time.Hour, []string{"organizations:write", "audit:export"})
	require.NoError(t, err)
	assert.NotEmpty(t, tokenString)

	claims, err := service.ValidateToken(tokenString)
	require.NoError(t, err)

	assert.Equal(t, "user123", claims.Subject)
	assert.ElementsMatch(t, []string{"organizations:write", "audit:export"}, claims.Scopes)
}

func TestValidateTokenWithIssuerValidation(t *testing.T) {
	tests := []struct {
		name             string
		tokenIssuer      string
		validationIssuer string
		expectError      bool
	}{
		{"matching issuer", "https://correct-issuer.example.com", "https://correct-issuer.example.com", false},
		{"mismatched issuer", "https://wrong-issuer.example.com", "https://correct-issuer.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			genService := NewJWTServiceWithIssuer("test-secret", tt.tokenIssuer, "https://api.example.com")
			tokenString, err := genService.GenerateToken("user123", time.Hour)
			require.NoError(t, err)

			valService := NewJWTServiceWithIssuer("test-secret", tt.validationIssuer, "https://api.example.com")
			_, err = valService.ValidateToken(tokenString)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTokenWithAudienceValidation(t *testing.T) {
	issuer := "https://issuer.example.com"
	tests := []struct {
		name               string
		tokenAudience      string
		validationAudience string
		expectError        bool
	}{
		{"matching audience", "https://api.example.com", "https://api.example.com", false},
		{"mismatched audience", "https://different-api.example.com", "https://api.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			genService := NewJWTServiceWithIssuer("test-secret", issuer, tt.tokenAudience)
			tokenString, err := genService.GenerateToken("user123", time.Hour)
			require.NoError(t, err)

			valService := NewJWTServiceWithIssuer("test-secret", issuer, tt.validationAudience)
			_, err = valService.ValidateToken(tokenString)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTokenWithoutIssuerAudience(t *testing.T) {
	service := NewJWTService("test-secret")

	tokenString, err := service.GenerateToken("user123", time.Hour)
	require.NoError(t, err)

	claims, err := service.ValidateToken(tokenString)
	assert.NoError(t, err)
	assert.Equal(t, "user123", claims.Subject)
}

func TestTokenExpiration(t *testing.T) {
	service := NewJWTService("test-secret")

	tokenString, err := service.GenerateToken("user123", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = service.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestTokenWithDifferentSecrets(t *testing.T) {
	genService := NewJWTService("correct-secret")
	tokenString, err := genService.GenerateToken("user123", time.Hour)
	require.NoError(t, err)

	valService := NewJWTService("wrong-secret")
	_, err = valService.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestTokenWithoutScopes(t *testing.T) {
	service := NewJWTService("test-secret")

	tokenString, err := service.GenerateToken("user123", time.Hour)
	require.NoError(t, err)

	claims, err := service.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Empty(t, claims.Scopes)
}

func BenchmarkGenerateToken(b *testing.B) {
	service := NewJWTService("benchmark-secret")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = service.GenerateToken("user123", time.Hour)
	}
}

func BenchmarkValidateToken(b *testing.B) {
	service := NewJWTService("benchmark-secret")
	token, _ := service.GenerateToken("user123", time.Hour)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = service.ValidateToken(token)
	}
}
