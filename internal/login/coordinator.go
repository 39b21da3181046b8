// Package login orchestrates the credential lifecycle of a session: login,
// logout, refresh and the vendor store status cache. The coordinator is the
// only component allowed to mutate the token store as a result of network
// outcomes.
package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/feastline/feast-gateway/internal/gwerrors"
	"github.com/feastline/feast-gateway/internal/models"
	"github.com/feastline/feast-gateway/internal/tokenstore"
	"github.com/feastline/feast-gateway/internal/upstream"
)

// SessionState is the credential state of one gateway session.
type SessionState string

const (
	StateLoggedOut  SessionState = "loggedOut"
	StateLoggingIn  SessionState = "loggingIn"
	StateLoggedIn   SessionState = "loggedIn"
	StateRefreshing SessionState = "refreshing"
)

type Coordinator struct {
	upstream   *upstream.Client
	tokenStore tokenstore.TokenStore
	profiles   models.ProfileRepository
	tabs       models.TabRepository

	mu           sync.Mutex
	states       map[string]SessionState
	refreshes    map[string]*refreshFlight
	vendorStatus map[string]models.VendorStoreStatus
}

// refreshFlight is the single in-flight refresh of one session. Concurrent
// callers wait on done and share the winner's outcome.
type refreshFlight struct {
	done chan struct{}
	pair models.CredentialPair
	err  error
}

type CoordinatorOption func(*Coordinator) error

func WithUpstreamClient(client *upstream.Client) CoordinatorOption {
	return func(co *Coordinator) error {
		co.upstream = client
		return nil
	}
}

func WithTokenStore(store tokenstore.TokenStore) CoordinatorOption {
	return func(co *Coordinator) error {
		co.tokenStore = store
		return nil
	}
}

func WithProfileRepository(repo models.ProfileRepository) CoordinatorOption {
	return func(co *Coordinator) error {
		co.profiles = repo
		return nil
	}
}

func WithTabRepository(repo models.TabRepository) CoordinatorOption {
	return func(co *Coordinator) error {
		co.tabs = repo
		return nil
	}
}

func NewCoordinator(options ...CoordinatorOption) (*Coordinator, error) {
	co := Coordinator{
		states:       map[string]SessionState{},
		refreshes:    map[string]*refreshFlight{},
		vendorStatus: map[string]models.VendorStoreStatus{},
	}
	for _, opt := range options {
		if err := opt(&co); err != nil {
			return nil, err
		}
	}
	if co.upstream == nil {
		return nil, fmt.Errorf("an upstream client has to be provided to initialize the coordinator")
	}
	if co.profiles == nil {
		return nil, fmt.Errorf("a profile repository has to be provided to initialize the coordinator")
	}
	return &co, nil
}

// State reports the credential state of a session. Sessions never seen
// before are logged out.
func (co *Coordinator) State(sessionID string) SessionState {
	co.mu.Lock()
	defer co.mu.Unlock()
	state, found := co.states[sessionID]
	if !found {
		return StateLoggedOut
	}
	return state
}

func (co *Coordinator) setState(sessionID string, state SessionState) {
	co.mu.Lock()
	defer co.mu.Unlock()
	if state == StateLoggedOut {
		delete(co.states, sessionID)
		return
	}
	co.states[sessionID] = state
}

func (co *Coordinator) Login(ctx context.Context, sessionID, username, password string) (models.CredentialPair, error) {
	return co.login(ctx, sessionID, func() (upstream.TokenResponse, error) {
		return co.upstream.Login(ctx, username, password)
	})
}

func (co *Coordinator) LoginWithEmailCode(ctx context.Context, sessionID, email, code string) (models.CredentialPair, error) {
	return co.login(ctx, sessionID, func() (upstream.TokenResponse, error) {
		return co.upstream.LoginWithEmailCode(ctx, email, code)
	})
}

// login runs the shared login flow: authenticate, commit the credential
// pair, then fetch and cache the profile. The token store is left untouched
// when the endpoint rejects the credentials.
func (co *Coordinator) login(
	ctx context.Context,
	sessionID string,
	authenticate func() (upstream.TokenResponse, error),
) (models.CredentialPair, error) {
	previous := co.State(sessionID)
	co.setState(sessionID, StateLoggingIn)

	response, err := authenticate()
	if err != nil {
		co.setState(sessionID, previous)
		return models.CredentialPair{}, err
	}
	pair, err := co.tokenStore.Commit(ctx, sessionID, response)
	if err != nil {
		co.setState(sessionID, previous)
		return models.CredentialPair{}, err
	}

	profile, err := co.upstream.Profile(ctx, pair.AccessToken)
	if err != nil {
		slog.Warn("LOGIN", "message", "could not fetch profile after login", "sessionID", sessionID, "error", err)
	} else {
		co.commitProfile(ctx, sessionID, profile)
	}
	co.invalidateVendorStatus(sessionID)
	co.setState(sessionID, StateLoggedIn)
	return pair, nil
}

// commitProfile caches the profile and detects account switches on the same
// gateway session: when a different user logs in, the cached navigation tabs
// of the previous user are dropped.
func (co *Coordinator) commitProfile(ctx context.Context, sessionID string, profile models.UserProfile) {
	userID := strconv.FormatInt(profile.ID, 10)
	lastID, err := co.profiles.GetLastUserID(ctx, sessionID)
	if err != nil {
		slog.Warn("LOGIN", "message", "could not read last user ID", "sessionID", sessionID, "error", err)
	}
	if lastID != "" && lastID != userID && co.tabs != nil {
		if err := co.tabs.RemoveTabs(ctx, sessionID); err != nil {
			slog.Warn("LOGIN", "message", "could not clear tabs on account switch", "sessionID", sessionID, "error", err)
		}
	}
	if err := co.profiles.SetProfile(ctx, sessionID, profile); err != nil {
		slog.Warn("LOGIN", "message", "could not cache profile", "sessionID", sessionID, "error", err)
	}
	if err := co.profiles.SetLastUserID(ctx, sessionID, userID); err != nil {
		slog.Warn("LOGIN", "message", "could not record last user ID", "sessionID", sessionID, "error", err)
	}
}

// Logout clears the credentials and profile of a session. It is idempotent
// and never fails: storage errors are logged and swallowed so that a logout
// triggered from an error path cannot itself error out.
func (co *Coordinator) Logout(ctx context.Context, sessionID string) {
	if err := co.tokenStore.Clear(ctx, sessionID); err != nil {
		slog.Warn("LOGOUT", "message", "could not clear credentials", "sessionID", sessionID, "error", err)
	}
	if err := co.profiles.RemoveProfile(ctx, sessionID); err != nil && !errors.Is(err, gwerrors.ErrProfileNotFound) {
		slog.Warn("LOGOUT", "message", "could not clear profile", "sessionID", sessionID, "error", err)
	}
	co.invalidateVendorStatus(sessionID)
	co.setState(sessionID, StateLoggedOut)
}

// Refresh exchanges the stored refresh token for a new credential pair. Any
// endpoint failure propagates to the caller with the stored pair untouched.
// At most one refresh per session is in flight at a time: concurrent callers
// join the running one and share its outcome, so a rotating refresh token is
// never spent twice.
func (co *Coordinator) Refresh(ctx context.Context, sessionID string) (models.CredentialPair, error) {
	if !co.tokenStore.RefreshEnabled() {
		return models.CredentialPair{}, gwerrors.ErrUnsupportedMode
	}

	co.mu.Lock()
	if flight, found := co.refreshes[sessionID]; found {
		co.mu.Unlock()
		select {
		case <-flight.done:
			return flight.pair, flight.err
		case <-ctx.Done():
			return models.CredentialPair{}, ctx.Err()
		}
	}
	flight := &refreshFlight{done: make(chan struct{})}
	co.refreshes[sessionID] = flight
	co.mu.Unlock()

	flight.pair, flight.err = co.refresh(ctx, sessionID)
	co.mu.Lock()
	delete(co.refreshes, sessionID)
	co.mu.Unlock()
	close(flight.done)
	return flight.pair, flight.err
}

func (co *Coordinator) refresh(ctx context.Context, sessionID string) (models.CredentialPair, error) {
	pair, err := co.tokenStore.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gwerrors.ErrCredentialsNotFound) {
			return models.CredentialPair{}, gwerrors.ErrMissingRefreshToken
		}
		return models.CredentialPair{}, err
	}
	if pair.RefreshToken == "" {
		return models.CredentialPair{}, gwerrors.ErrMissingRefreshToken
	}

	previous := co.State(sessionID)
	co.setState(sessionID, StateRefreshing)
	response, err := co.upstream.RefreshToken(ctx, pair.RefreshToken)
	if err != nil {
		co.setState(sessionID, previous)
		return models.CredentialPair{}, err
	}
	fresh, err := co.tokenStore.Commit(ctx, sessionID, response)
	if err != nil {
		co.setState(sessionID, previous)
		return models.CredentialPair{}, err
	}
	co.setState(sessionID, StateLoggedIn)
	return fresh, nil
}

// TryGetValidToken is the single entry point request-signing code should use
// to obtain a bearer value. It returns the stored access token when it is
// still valid, silently refreshes when possible, and otherwise logs the
// session out and returns the empty string.
func (co *Coordinator) TryGetValidToken(ctx context.Context, sessionID string) string {
	pair, err := co.tokenStore.Get(ctx, sessionID)
	if err != nil {
		return ""
	}
	if token := pair.ValidAccessToken(); token != "" {
		return token
	}
	if !co.tokenStore.RefreshEnabled() || pair.RefreshExpired() {
		return ""
	}
	fresh, err := co.Refresh(ctx, sessionID)
	if err != nil {
		slog.Info("LOGIN", "message", "silent refresh failed, logging out", "sessionID", sessionID, "error", err)
		co.Logout(ctx, sessionID)
		return ""
	}
	return fresh.AccessToken
}

// Profile returns the cached profile of a session.
func (co *Coordinator) Profile(ctx context.Context, sessionID string) (models.UserProfile, error) {
	return co.profiles.GetProfile(ctx, sessionID)
}

// RefreshSupported reports whether this deployment issues refresh tokens.
func (co *Coordinator) RefreshSupported() bool {
	return co.tokenStore.RefreshEnabled()
}

// HasRefreshToken reports whether the session holds a refresh token that has
// not expired yet.
func (co *Coordinator) HasRefreshToken(ctx context.Context, sessionID string) bool {
	pair, err := co.tokenStore.Get(ctx, sessionID)
	if err != nil {
		return false
	}
	return !pair.RefreshExpired()
}

// Tabs returns the cached navigation tabs of a session. A session without
// stored tabs yields an empty map.
func (co *Coordinator) Tabs(ctx context.Context, sessionID string) (models.SerializableOrderedMap, error) {
	if co.tabs == nil {
		return models.NewSerializableOrderedMap(), nil
	}
	return co.tabs.GetTabs(ctx, sessionID)
}

func (co *Coordinator) SetTabs(ctx context.Context, sessionID string, tabs models.SerializableOrderedMap) error {
	if co.tabs == nil {
		return fmt.Errorf("no tab repository is configured")
	}
	return co.tabs.SetTabs(ctx, sessionID, tabs)
}

// VendorStoreStatus reports whether the session's user owns a vendor store.
// The answer is cached per session unless force is set. An upstream 403
// means the user owns no store yet and is mapped to {Exists: false} rather
// than an error.
func (co *Coordinator) VendorStoreStatus(ctx context.Context, sessionID string, force bool) (models.VendorStoreStatus, error) {
	if !force {
		co.mu.Lock()
		status, found := co.vendorStatus[sessionID]
		co.mu.Unlock()
		if found {
			return status, nil
		}
	}

	token := co.TryGetValidToken(ctx, sessionID)
	status, err := co.upstream.VendorStoreStatus(ctx, token)
	if err != nil {
		if upstream.IsStatus(err, http.StatusForbidden) {
			status = models.VendorStoreStatus{Exists: false}
		} else {
			return models.VendorStoreStatus{}, err
		}
	}
	co.mu.Lock()
	co.vendorStatus[sessionID] = status
	co.mu.Unlock()
	return status, nil
}

func (co *Coordinator) invalidateVendorStatus(sessionID string) {
	co.mu.Lock()
	delete(co.vendorStatus, sessionID)
	co.mu.Unlock()
}
