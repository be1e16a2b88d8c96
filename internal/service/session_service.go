package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"flightbook/internal/domain"
	"flightbook/internal/errs"
	"flightbook/internal/models"
	"flightbook/internal/syncer"
)

// SessionService manages the bearer token cached for replay.
type SessionService struct {
	prefs  domain.PreferenceStore
	tokens *syncer.TokenSource
}

func NewSessionService(prefs domain.PreferenceStore) *SessionService {
	return &SessionService{prefs: prefs, tokens: syncer.NewTokenSource(prefs)}
}

func (s *SessionService) SetAuthToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: token is required", errs.ErrValidation)
	}
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return s.prefs.SetPreference(ctx, models.PrefAuthToken, raw)
}

func (s *SessionService) ClearAuthToken(ctx context.Context) error {
	return s.prefs.DeletePreference(ctx, models.PrefAuthToken)
}

// HasAuthToken reports whether replay would currently be authenticated.
func (s *SessionService) HasAuthToken(ctx context.Context) bool {
	_, err := s.tokens.Token(ctx)
	return err == nil
}
