// Package tokenstore turns upstream token responses into credential pairs
// with decoded expiry instants and persists them per session.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/feastline/feast-gateway/internal/config"
	"github.com/feastline/feast-gateway/internal/gwerrors"
	"github.com/feastline/feast-gateway/internal/models"
	"github.com/feastline/feast-gateway/internal/tokens"
	"github.com/feastline/feast-gateway/internal/upstream"
)

const (
	defaultAccessFallback  = 25 * time.Minute
	defaultRefreshFallback = 7 * 24 * time.Hour
)

// TokenStore owns the credential pair of every session. Writes always go
// through Set or Clear so that the persisted state and the expiry index stay
// consistent.
type TokenStore struct {
	credentials     models.CredentialRepository
	idGenerator     models.IDGenerator
	accessFallback  time.Duration
	refreshFallback time.Duration
	refreshEnabled  bool
}

type TokenStoreOption func(*TokenStore) error

// WithConfig sets the fallback expiry windows and the refresh support flag.
func WithConfig(tokensConfig config.TokensConfig) TokenStoreOption {
	return func(s *TokenStore) error {
		if tokensConfig.AccessFallbackMinutes > 0 {
			s.accessFallback = tokensConfig.AccessFallback()
		}
		if tokensConfig.RefreshFallbackMinutes > 0 {
			s.refreshFallback = tokensConfig.RefreshFallback()
		}
		s.refreshEnabled = tokensConfig.RefreshEnabled
		return nil
	}
}

func WithCredentialRepository(repo models.CredentialRepository) TokenStoreOption {
	return func(s *TokenStore) error {
		s.credentials = repo
		return nil
	}
}

func WithIDGenerator(generator models.IDGenerator) TokenStoreOption {
	return func(s *TokenStore) error {
		s.idGenerator = generator
		return nil
	}
}

func NewTokenStore(options ...TokenStoreOption) (TokenStore, error) {
	store := TokenStore{
		idGenerator:     models.ULIDGenerator{},
		accessFallback:  defaultAccessFallback,
		refreshFallback: defaultRefreshFallback,
		refreshEnabled:  true,
	}
	for _, opt := range options {
		if err := opt(&store); err != nil {
			return TokenStore{}, err
		}
	}
	if store.credentials == nil {
		return TokenStore{}, fmt.Errorf("a credential repository has to be provided to initialize the token store")
	}
	return store, nil
}

func (s TokenStore) RefreshEnabled() bool {
	return s.refreshEnabled
}

// Transform turns an upstream token response into a credential pair, decoding
// the expiry out of each token payload and falling back to the configured
// windows when a payload cannot be decoded.
func (s TokenStore) Transform(response upstream.TokenResponse) (models.CredentialPair, error) {
	if response.AccessToken == "" {
		return models.CredentialPair{}, fmt.Errorf("the upstream token response carries no access token")
	}
	id, err := s.idGenerator.ID()
	if err != nil {
		return models.CredentialPair{}, err
	}
	tokenType := response.TokenType
	if tokenType == "" {
		tokenType = models.DefaultTokenType
	}
	pair := models.CredentialPair{
		ID:              id,
		AccessToken:     response.AccessToken,
		TokenType:       tokenType,
		AccessExpiresAt: tokens.DecodeExpiry(response.AccessToken, s.accessFallback),
	}
	if response.RefreshToken != "" {
		pair.RefreshToken = response.RefreshToken
		pair.RefreshExpiresAt = tokens.DecodeExpiry(response.RefreshToken, s.refreshFallback)
	}
	return pair, nil
}

// Commit transforms and persists an upstream token response in one step.
func (s TokenStore) Commit(ctx context.Context, sessionID string, response upstream.TokenResponse) (models.CredentialPair, error) {
	pair, err := s.Transform(response)
	if err != nil {
		return models.CredentialPair{}, err
	}
	if err := s.credentials.SetCredentials(ctx, sessionID, pair); err != nil {
		return models.CredentialPair{}, err
	}
	return pair, nil
}

func (s TokenStore) Get(ctx context.Context, sessionID string) (models.CredentialPair, error) {
	return s.credentials.GetCredentials(ctx, sessionID)
}

func (s TokenStore) Set(ctx context.Context, sessionID string, pair models.CredentialPair) error {
	return s.credentials.SetCredentials(ctx, sessionID, pair)
}

// Clear drops the credentials of a session. Clearing a session that holds no
// credentials is not an error.
func (s TokenStore) Clear(ctx context.Context, sessionID string) error {
	err := s.credentials.RemoveCredentials(ctx, sessionID)
	if err != nil && !errors.Is(err, gwerrors.ErrCredentialsNotFound) {
		return err
	}
	return nil
}

// ValidAccessToken returns the access token of a session only when it is
// present and not expired. A logged-out session yields
// gwerrors.ErrCredentialsNotFound, a present but expired token yields
// gwerrors.ErrTokenExpired.
func (s TokenStore) ValidAccessToken(ctx context.Context, sessionID string) (string, error) {
	pair, err := s.credentials.GetCredentials(ctx, sessionID)
	if err != nil {
		return "", err
	}
	token := pair.ValidAccessToken()
	if token == "" {
		return "", gwerrors.ErrTokenExpired
	}
	return token, nil
}
