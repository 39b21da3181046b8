package tokenrefresher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/feastline/feast-gateway/internal/gwerrors"
	"github.com/feastline/feast-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredentialRepo struct {
	expiring []string
	listErr  error
}

func (f *fakeCredentialRepo) GetCredentials(_ context.Context, _ string) (models.CredentialPair, error) {
	return models.CredentialPair{}, gwerrors.ErrCredentialsNotFound
}

func (f *fakeCredentialRepo) SetCredentials(_ context.Context, _ string, _ models.CredentialPair) error {
	return nil
}

func (f *fakeCredentialRepo) RemoveCredentials(_ context.Context, _ string) error {
	return nil
}

func (f *fakeCredentialRepo) ExpiringSessionIDs(_ context.Context, from, until int64) ([]string, error) {
	if until <= from {
		return nil, fmt.Errorf("invalid window")
	}
	return f.expiring, f.listErr
}

type fakeRefresher struct {
	refreshed []string
	failWith  map[string]error
}

func (f *fakeRefresher) Refresh(_ context.Context, sessionID string) (models.CredentialPair, error) {
	if err := f.failWith[sessionID]; err != nil {
		return models.CredentialPair{}, err
	}
	f.refreshed = append(f.refreshed, sessionID)
	return models.CredentialPair{ID: "fresh-" + sessionID}, nil
}

func TestSweepRefreshesExpiringSessions(t *testing.T) {
	repo := &fakeCredentialRepo{expiring: []string{"session-1", "session-2", "session-3"}}
	refresher := &fakeRefresher{
		failWith: map[string]error{"session-2": gwerrors.ErrMissingRefreshToken},
	}

	err := refreshExpiringCredentials(context.Background(), repo, refresher, 5)

	require.NoError(t, err)
	// the session without a refresh token is skipped, the rest refreshed
	assert.Equal(t, []string{"session-1", "session-3"}, refresher.refreshed)
}

func TestSweepFailuresDoNotAbort(t *testing.T) {
	repo := &fakeCredentialRepo{expiring: []string{"session-1", "session-2"}}
	refresher := &fakeRefresher{
		failWith: map[string]error{"session-1": fmt.Errorf("upstream is down")},
	}

	err := refreshExpiringCredentials(context.Background(), repo, refresher, 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"session-2"}, refresher.refreshed)
}

func TestListFailurePropagates(t *testing.T) {
	repo := &fakeCredentialRepo{listErr: fmt.Errorf("redis unavailable")}

	err := refreshExpiringCredentials(context.Background(), repo, &fakeRefresher{}, 5)

	assert.Error(t, err)
}

func TestSchedulerStartsAndStops(t *testing.T) {
	repo := &fakeCredentialRepo{}
	scheduler, err := ScheduleRefreshExpiringCredentials(context.Background(), repo, &fakeRefresher{}, 60)

	require.NoError(t, err)
	require.NotNil(t, scheduler)
	assert.True(t, scheduler.IsRunning())
	scheduler.Stop()
	assert.Eventually(t, func() bool { return !scheduler.IsRunning() }, time.Second, 10*time.Millisecond)
}
