// Package proxy forwards API calls to the upstream with the session's bearer
// token attached and coordinates the refresh protocol when a call comes back
// unauthorized: at most one refresh is in flight per session, every request
// that observed the 401 is queued and replayed in order after a successful
// refresh, and a failed refresh ends the session.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/feastline/feast-gateway/internal/gwerrors"
	"github.com/feastline/feast-gateway/internal/login"
	"github.com/feastline/feast-gateway/internal/notify"
	"github.com/google/uuid"
)

const connectivityMessage = "cannot reach the server, please check your connection"
const sessionExpiredMessage = "your session has expired, please log in again"

// how long a shown 403 message suppresses repeats of itself
const shownMessageTTL = 5 * time.Second

// CallFunc issues one upstream call with the given bearer token. The
// interceptor may invoke it again with a fresh token when the first attempt
// came back 401.
type CallFunc func(ctx context.Context, accessToken string) (*http.Response, error)

type replayOutcome struct {
	resp *http.Response
	err  error
}

type replayTask struct {
	ctx  context.Context
	do   CallFunc
	done chan replayOutcome
}

type refreshCycle struct {
	refreshing bool
	queue      []*replayTask
}

// Interceptor owns the per-session refresh cycles. The mutex guards both the
// refreshing flag and the queue of every cycle: checking the flag and
// appending to the queue happen as one step so that concurrent 401 observers
// cannot start a second refresh.
type Interceptor struct {
	coordinator   *login.Coordinator
	notifier      notify.Notifier
	redirectDelay time.Duration

	mu     sync.Mutex
	cycles map[string]*refreshCycle

	shownMu sync.Mutex
	shown   map[string]bool
}

type InterceptorOption func(*Interceptor) error

func WithCoordinator(co *login.Coordinator) InterceptorOption {
	return func(i *Interceptor) error {
		i.coordinator = co
		return nil
	}
}

func WithNotifier(n notify.Notifier) InterceptorOption {
	return func(i *Interceptor) error {
		i.notifier = n
		return nil
	}
}

func WithRedirectDelay(d time.Duration) InterceptorOption {
	return func(i *Interceptor) error {
		i.redirectDelay = d
		return nil
	}
}

func NewInterceptor(options ...InterceptorOption) (*Interceptor, error) {
	interceptor := Interceptor{
		redirectDelay: 2 * time.Second,
		cycles:        map[string]*refreshCycle{},
		shown:         map[string]bool{},
	}
	for _, opt := range options {
		if err := opt(&interceptor); err != nil {
			return nil, err
		}
	}
	if interceptor.coordinator == nil {
		return nil, fmt.Errorf("an interceptor needs a session coordinator")
	}
	if interceptor.notifier == nil {
		return nil, fmt.Errorf("an interceptor needs a notifier")
	}
	return &interceptor, nil
}

// Do runs one upstream call for the session, attaching the current bearer
// token and translating failures per the error taxonomy. The returned
// response (when non-nil) is owned by the caller.
func (i *Interceptor) Do(ctx context.Context, sessionID string, do CallFunc) (*http.Response, error) {
	token := i.coordinator.TryGetValidToken(ctx, sessionID)
	resp, err := do(ctx, token)
	if err != nil {
		i.notifier.Toast(sessionID, notify.LevelError, connectivityMessage)
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return i.handleUnauthorized(ctx, sessionID, resp, do)
	case resp.StatusCode == http.StatusForbidden:
		i.handleForbidden(ctx, sessionID, resp)
		return resp, nil
	case resp.StatusCode >= 400:
		if detail := readDetail(resp); detail != "" {
			i.notifier.Toast(sessionID, notify.LevelWarning, detail)
		}
		return resp, nil
	}
	return resp, nil
}

// handleUnauthorized runs the refresh protocol of one 401 observer. The
// original response body is consumed here: the caller either gets the replay
// outcome or gwerrors.ErrAuthenticationExpired.
func (i *Interceptor) handleUnauthorized(
	ctx context.Context,
	sessionID string,
	original *http.Response,
	do CallFunc,
) (*http.Response, error) {
	drainAndClose(original)

	if !i.coordinator.RefreshSupported() || !i.coordinator.HasRefreshToken(ctx, sessionID) {
		i.coordinator.Logout(ctx, sessionID)
		i.notifier.Toast(sessionID, notify.LevelError, sessionExpiredMessage)
		i.notifier.ScheduleLoginRedirect(sessionID, i.redirectDelay)
		return nil, gwerrors.ErrAuthenticationExpired
	}

	task := &replayTask{ctx: ctx, do: do, done: make(chan replayOutcome, 1)}

	i.mu.Lock()
	cycle := i.cycles[sessionID]
	if cycle == nil {
		cycle = &refreshCycle{}
		i.cycles[sessionID] = cycle
	}
	cycle.queue = append(cycle.queue, task)
	starter := !cycle.refreshing
	if starter {
		cycle.refreshing = true
	}
	i.mu.Unlock()

	if starter {
		i.runRefreshCycle(ctx, sessionID, cycle)
	}

	select {
	case outcome := <-task.done:
		return outcome.resp, outcome.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runRefreshCycle performs the single refresh of one cycle and settles every
// queued task. The queue and the refreshing flag are reset before any replay
// runs, so a replayed request that 401s again starts from a clean cycle and
// is returned as is rather than re-entering the protocol.
func (i *Interceptor) runRefreshCycle(ctx context.Context, sessionID string, cycle *refreshCycle) {
	cycleID := uuid.NewString()
	slog.Info("PROXY", "message", "refresh cycle started", "cycleID", cycleID, "sessionID", sessionID)

	pair, refreshErr := i.coordinator.Refresh(ctx, sessionID)

	i.mu.Lock()
	tasks := cycle.queue
	cycle.queue = nil
	cycle.refreshing = false
	delete(i.cycles, sessionID)
	i.mu.Unlock()

	if refreshErr != nil {
		slog.Info("PROXY",
			"message", "refresh cycle failed",
			"cycleID", cycleID,
			"sessionID", sessionID,
			"queued", len(tasks),
			"error", refreshErr,
		)
		i.coordinator.Logout(ctx, sessionID)
		i.notifier.Toast(sessionID, notify.LevelError, sessionExpiredMessage)
		i.notifier.ScheduleLoginRedirect(sessionID, i.redirectDelay)
		for _, task := range tasks {
			task.done <- replayOutcome{err: gwerrors.ErrAuthenticationExpired}
		}
		return
	}

	slog.Info("PROXY",
		"message", "refresh cycle succeeded, replaying queue",
		"cycleID", cycleID,
		"sessionID", sessionID,
		"queued", len(tasks),
	)
	for _, task := range tasks {
		resp, err := task.do(task.ctx, pair.AccessToken)
		task.done <- replayOutcome{resp: resp, err: err}
	}
}

// handleForbidden shows the 403 message once per distinct message and forces
// a logout. 403 never enters the refresh protocol.
func (i *Interceptor) handleForbidden(ctx context.Context, sessionID string, resp *http.Response) {
	detail := readDetail(resp)
	if detail == "" {
		detail = "you are not allowed to perform this action"
	}

	i.shownMu.Lock()
	alreadyShown := i.shown[detail]
	if !alreadyShown {
		i.shown[detail] = true
	}
	i.shownMu.Unlock()

	if alreadyShown {
		return
	}
	i.notifier.Toast(sessionID, notify.LevelError, detail)
	i.coordinator.Logout(ctx, sessionID)
	i.notifier.ScheduleLoginRedirect(sessionID, i.redirectDelay)
	time.AfterFunc(shownMessageTTL, func() {
		i.shownMu.Lock()
		delete(i.shown, detail)
		i.shownMu.Unlock()
	})
}
