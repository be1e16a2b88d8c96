package syncer

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"flightbook/internal/domain"
	"flightbook/internal/errs"
	"flightbook/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource reads the cached bearer token from the preferences table.
type TokenSource struct {
	prefs domain.PreferenceStore
	now   func() time.Time
}

func NewTokenSource(prefs domain.PreferenceStore) *TokenSource {
	return &TokenSource{prefs: prefs, now: time.Now}
}

// Token returns ErrNotAuthenticated when no token is stored, it is empty, or
// it is a JWT whose exp has passed. Opaque tokens are passed through as is.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	raw, err := s.prefs.GetPreference(ctx, models.PrefAuthToken)
	if err != nil {
		return "", errs.ErrNotAuthenticated
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", errs.ErrNotAuthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errs.ErrNotAuthenticated
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil {
		if claims.ExpiresAt != nil && !claims.ExpiresAt.After(s.now()) {
			return "", errs.ErrNotAuthenticated
		}
	}
	return token, nil
}
