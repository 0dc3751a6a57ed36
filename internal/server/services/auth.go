package services

import (
	"time"

	"github.com/eunio/dailysync/internal/server/auth"
	"github.com/eunio/dailysync/internal/server/config"
)

// AuthService issues and checks the access tokens that bind a client to
// one owner.
type AuthService struct {
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// IssueToken returns a signed access token for ownerID.
func (s *AuthService) IssueToken(ownerID string) (string, error) {
	return auth.GenerateToken(ownerID, s.jwtSecret, s.accessTokenValidityDuration)
}

// Authenticate returns the owner id carried by a valid token.
func (s *AuthService) Authenticate(token string) (string, error) {
	return auth.GetOwnerIDFromToken(token, s.jwtSecret)
}
