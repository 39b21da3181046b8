package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/feastline/feast-gateway/internal/config"
	"github.com/feastline/feast-gateway/internal/gwerrors"
	"github.com/feastline/feast-gateway/internal/login"
	"github.com/feastline/feast-gateway/internal/models"
	"github.com/feastline/feast-gateway/internal/notify"
	"github.com/feastline/feast-gateway/internal/tokenstore"
	"github.com/feastline/feast-gateway/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredentialRepo struct {
	mu    sync.Mutex
	pairs map[string]models.CredentialPair
}

func (f *fakeCredentialRepo) GetCredentials(_ context.Context, sessionID string) (models.CredentialPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pair, found := f.pairs[sessionID]
	if !found {
		return models.CredentialPair{}, gwerrors.ErrCredentialsNotFound
	}
	return pair, nil
}

func (f *fakeCredentialRepo) SetCredentials(_ context.Context, sessionID string, pair models.CredentialPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs[sessionID] = pair
	return nil
}

func (f *fakeCredentialRepo) RemoveCredentials(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pairs, sessionID)
	return nil
}

func (f *fakeCredentialRepo) ExpiringSessionIDs(_ context.Context, _, _ int64) ([]string, error) {
	return nil, nil
}

func (f *fakeCredentialRepo) get(sessionID string) (models.CredentialPair, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pair, found := f.pairs[sessionID]
	return pair, found
}

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]models.UserProfile
	lastIDs  map[string]string
}

func (f *fakeProfileRepo) GetProfile(_ context.Context, sessionID string) (models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, found := f.profiles[sessionID]
	if !found {
		return models.UserProfile{}, gwerrors.ErrProfileNotFound
	}
	return profile, nil
}

func (f *fakeProfileRepo) SetProfile(_ context.Context, sessionID string, profile models.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[sessionID] = profile
	return nil
}

func (f *fakeProfileRepo) RemoveProfile(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.profiles, sessionID)
	return nil
}

func (f *fakeProfileRepo) GetLastUserID(_ context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastIDs[sessionID], nil
}

func (f *fakeProfileRepo) SetLastUserID(_ context.Context, sessionID string, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastIDs[sessionID] = userID
	return nil
}

type recordedToast struct {
	sessionID string
	level     notify.Level
	message   string
}

// recordingNotifier captures side effects synchronously, without timers.
type recordingNotifier struct {
	mu        sync.Mutex
	toasts    []recordedToast
	redirects []string
}

func (n *recordingNotifier) Toast(sessionID string, level notify.Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, recordedToast{sessionID: sessionID, level: level, message: message})
}

func (n *recordingNotifier) ScheduleLoginRedirect(sessionID string, _ time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects = append(n.redirects, sessionID)
}

func (n *recordingNotifier) toastMessages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	messages := []string{}
	for _, toast := range n.toasts {
		messages = append(messages, toast.message)
	}
	return messages
}

func (n *recordingNotifier) redirectCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.redirects)
}

type interceptorHarness struct {
	interceptor  *Interceptor
	credentials  *fakeCredentialRepo
	notifier     *recordingNotifier
	refreshCalls *atomic.Int64
}

// newInterceptorHarness wires an interceptor against an upstream double
// whose refresh endpoint can be slowed down or made to fail.
func newInterceptorHarness(t *testing.T, refreshStatus int, refreshDelay time.Duration) interceptorHarness {
	refreshCalls := &atomic.Int64{}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		time.Sleep(refreshDelay)
		if refreshStatus != http.StatusOK {
			w.WriteHeader(refreshStatus)
			json.NewEncoder(w).Encode(map[string]string{"detail": "refresh token expired"})
			return
		}
		json.NewEncoder(w).Encode(upstream.TokenResponse{
			AccessToken:  "fresh-access",
			RefreshToken: "fresh-refresh",
			TokenType:    "bearer",
		})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	parsed, err := url.Parse(ts.URL)
	require.NoError(t, err)
	client, err := upstream.NewClient(upstream.WithConfig(config.UpstreamConfig{BaseURL: parsed}))
	require.NoError(t, err)

	credentials := &fakeCredentialRepo{pairs: map[string]models.CredentialPair{}}
	store, err := tokenstore.NewTokenStore(
		tokenstore.WithCredentialRepository(credentials),
		tokenstore.WithConfig(config.TokensConfig{
			RefreshEnabled:         true,
			AccessFallbackMinutes:  25,
			RefreshFallbackMinutes: 7 * 24 * 60,
			ExpiryMarginMinutes:    3,
		}),
	)
	require.NoError(t, err)

	coordinator, err := login.NewCoordinator(
		login.WithUpstreamClient(client),
		login.WithTokenStore(store),
		login.WithProfileRepository(&fakeProfileRepo{profiles: map[string]models.UserProfile{}, lastIDs: map[string]string{}}),
	)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	interceptor, err := NewInterceptor(
		WithCoordinator(coordinator),
		WithNotifier(notifier),
		WithRedirectDelay(time.Millisecond),
	)
	require.NoError(t, err)

	// the stored access token looks valid locally but the API rejects it
	credentials.pairs["session-1"] = models.CredentialPair{
		ID:               "cred-1",
		AccessToken:      "stale-access",
		AccessExpiresAt:  time.Now().Add(time.Hour),
		RefreshToken:     "live-refresh",
		RefreshExpiresAt: time.Now().Add(24 * time.Hour),
	}
	return interceptorHarness{
		interceptor:  interceptor,
		credentials:  credentials,
		notifier:     notifier,
		refreshCalls: refreshCalls,
	}
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// rejectStaleCall 401s until it sees the refreshed token.
func rejectStaleCall(label string) CallFunc {
	return func(_ context.Context, accessToken string) (*http.Response, error) {
		if accessToken != "fresh-access" {
			return jsonResponse(http.StatusUnauthorized, `{"detail":"token rejected"}`), nil
		}
		return jsonResponse(http.StatusOK, fmt.Sprintf(`{"result":%q}`, label)), nil
	}
}

func (h interceptorHarness) cycleCount() int {
	h.interceptor.mu.Lock()
	defer h.interceptor.mu.Unlock()
	return len(h.interceptor.cycles)
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	harness := newInterceptorHarness(t, http.StatusOK, 200*time.Millisecond)
	const callers = 5

	var wg sync.WaitGroup
	results := make([]*http.Response, callers)
	errs := make([]error, callers)
	for n := 0; n < callers; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n], errs[n] = harness.interceptor.Do(
				context.Background(),
				"session-1",
				rejectStaleCall(fmt.Sprintf("caller-%d", n)),
			)
		}(n)
	}
	wg.Wait()

	assert.Equal(t, int64(1), harness.refreshCalls.Load())
	for n := 0; n < callers; n++ {
		require.NoError(t, errs[n])
		require.NotNil(t, results[n])
		assert.Equal(t, http.StatusOK, results[n].StatusCode)
		body, err := io.ReadAll(results[n].Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), fmt.Sprintf("caller-%d", n))
		results[n].Body.Close()
	}
	assert.Equal(t, 0, harness.cycleCount())

	pair, found := harness.credentials.get("session-1")
	require.True(t, found)
	assert.Equal(t, "fresh-access", pair.AccessToken)
}

func TestQueuedCallsReplayInOrder(t *testing.T) {
	harness := newInterceptorHarness(t, http.StatusOK, 300*time.Millisecond)

	var replayMu sync.Mutex
	replayed := []string{}
	tracked := func(label string) CallFunc {
		inner := rejectStaleCall(label)
		return func(ctx context.Context, accessToken string) (*http.Response, error) {
			if accessToken == "fresh-access" {
				replayMu.Lock()
				replayed = append(replayed, label)
				replayMu.Unlock()
			}
			return inner(ctx, accessToken)
		}
	}

	var wg sync.WaitGroup
	labels := []string{"first", "second", "third"}
	for _, label := range labels {
		wg.Add(1)
		go func(label string) {
			defer wg.Done()
			resp, err := harness.interceptor.Do(context.Background(), "session-1", tracked(label))
			assert.NoError(t, err)
			drainAndClose(resp)
		}(label)
		// stagger enqueueing so the expected order is deterministic
		time.Sleep(30 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, labels, replayed)
	assert.Equal(t, int64(1), harness.refreshCalls.Load())
}

func TestFailedRefreshRejectsAllQueuedCalls(t *testing.T) {
	harness := newInterceptorHarness(t, http.StatusUnauthorized, 200*time.Millisecond)
	const callers = 4

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for n := 0; n < callers; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = harness.interceptor.Do(context.Background(), "session-1", rejectStaleCall("caller"))
		}(n)
	}
	wg.Wait()

	assert.Equal(t, int64(1), harness.refreshCalls.Load())
	for n := 0; n < callers; n++ {
		assert.ErrorIs(t, errs[n], gwerrors.ErrAuthenticationExpired)
	}
	// the session is ended and the delayed redirect scheduled
	_, found := harness.credentials.get("session-1")
	assert.False(t, found)
	assert.GreaterOrEqual(t, harness.notifier.redirectCount(), 1)
	assert.Contains(t, harness.notifier.toastMessages(), sessionExpiredMessage)
	// the queue never leaks entries across cycles
	assert.Equal(t, 0, harness.cycleCount())
}

func TestReplayed401IsTerminal(t *testing.T) {
	harness := newInterceptorHarness(t, http.StatusOK, 0)

	always401 := func(_ context.Context, _ string) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"detail":"still rejected"}`), nil
	}
	resp, err := harness.interceptor.Do(context.Background(), "session-1", always401)

	// one refresh ran, the replay 401 came back as is without a second cycle
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	drainAndClose(resp)
	assert.Equal(t, int64(1), harness.refreshCalls.Load())
	assert.Equal(t, 0, harness.cycleCount())
}

func TestUnauthorizedWithoutRefreshTokenEndsSession(t *testing.T) {
	harness := newInterceptorHarness(t, http.StatusOK, 0)
	harness.credentials.pairs["session-1"] = models.CredentialPair{
		ID:              "cred-1",
		AccessToken:     "stale-access",
		AccessExpiresAt: time.Now().Add(time.Hour),
	}

	_, err := harness.interceptor.Do(context.Background(), "session-1", rejectStaleCall("caller"))

	assert.ErrorIs(t, err, gwerrors.ErrAuthenticationExpired)
	assert.Equal(t, int64(0), harness.refreshCalls.Load())
	_, found := harness.credentials.get("session-1")
	assert.False(t, found)
	assert.Equal(t, 1, harness.notifier.redirectCount())
}

func TestForbiddenIsDeduplicatedAndForcesLogout(t *testing.T) {
	harness := newInterceptorHarness(t, http.StatusOK, 0)

	forbidden := func(_ context.Context, _ string) (*http.Response, error) {
		return jsonResponse(http.StatusForbidden, `{"detail":"account disabled"}`), nil
	}
	for n := 0; n < 3; n++ {
		resp, err := harness.interceptor.Do(context.Background(), "session-1", forbidden)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		// the body survives the detail extraction
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "account disabled")
		resp.Body.Close()
	}

	assert.Equal(t, []string{"account disabled"}, harness.notifier.toastMessages())
	assert.Equal(t, int64(0), harness.refreshCalls.Load())
	_, found := harness.credentials.get("session-1")
	assert.False(t, found)
}

func TestBusinessErrorSurfacesDetailWithoutStateMutation(t *testing.T) {
	harness := newInterceptorHarness(t, http.StatusOK, 0)

	unprocessable := func(_ context.Context, _ string) (*http.Response, error) {
		return jsonResponse(http.StatusUnprocessableEntity, `{"detail":"name already taken"}`), nil
	}
	resp, err := harness.interceptor.Do(context.Background(), "session-1", unprocessable)

	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	drainAndClose(resp)
	assert.Equal(t, []string{"name already taken"}, harness.notifier.toastMessages())
	_, found := harness.credentials.get("session-1")
	assert.True(t, found)
}

func TestTransportFailureRejectsWithConnectivityToast(t *testing.T) {
	harness := newInterceptorHarness(t, http.StatusOK, 0)

	broken := func(_ context.Context, _ string) (*http.Response, error) {
		return nil, fmt.Errorf("connection refused")
	}
	_, err := harness.interceptor.Do(context.Background(), "session-1", broken)

	assert.Error(t, err)
	assert.Equal(t, []string{connectivityMessage}, harness.notifier.toastMessages())
	_, found := harness.credentials.get("session-1")
	assert.True(t, found)
}
