// Package tokenrefresher proactively refreshes credentials shortly before
// they expire, so that interactive requests rarely observe a 401 at all. The
// interceptor's refresh protocol remains the correctness backstop; failures
// here are logged and retried on the next sweep.
package tokenrefresher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/feastline/feast-gateway/internal/gwerrors"
	"github.com/feastline/feast-gateway/internal/models"
	"github.com/go-co-op/gocron"
)

// Refresher exchanges the stored refresh token of a session for a fresh
// credential pair.
type Refresher interface {
	Refresh(ctx context.Context, sessionID string) (models.CredentialPair, error)
}

// ScheduleRefreshExpiringCredentials starts a gocron job sweeping for
// credentials that expire within the margin, refreshing each one. The
// returned scheduler is already started; the caller stops it on shutdown.
func ScheduleRefreshExpiringCredentials(
	ctx context.Context,
	credentials models.CredentialRepository,
	refresher Refresher,
	minsToExpiration int,
) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(minsToExpiration).
		Minutes().
		Do(refreshExpiringCredentials, ctx, credentials, refresher, minsToExpiration)
	if err != nil {
		return nil, err
	}
	s.StartAsync()
	slog.Info("TOKEN REFRESHER", "message", "sweep scheduled", "intervalMinutes", minsToExpiration)
	return s, nil
}

// refreshExpiringCredentials refreshes every session whose access token
// expires in the next minsToExpiration minutes. A failing session is skipped
// rather than aborting the sweep: its own requests will run the interactive
// refresh protocol.
func refreshExpiringCredentials(
	ctx context.Context,
	credentials models.CredentialRepository,
	refresher Refresher,
	minsToExpiration int,
) error {
	from := time.Now()
	until := from.Add(time.Minute * time.Duration(minsToExpiration))
	sessionIDs, err := credentials.ExpiringSessionIDs(ctx, from.Unix(), until.Unix())
	if err != nil {
		slog.Error("TOKEN REFRESHER", "message", "listing expiring sessions failed", "error", err)
		return err
	}

	refreshed := 0
	for _, sessionID := range sessionIDs {
		_, err := refresher.Refresh(ctx, sessionID)
		if err != nil {
			if errors.Is(err, gwerrors.ErrMissingRefreshToken) || errors.Is(err, gwerrors.ErrUnsupportedMode) {
				continue
			}
			slog.Warn("TOKEN REFRESHER", "message", "refresh failed", "sessionID", sessionID, "error", err)
			continue
		}
		refreshed++
	}
	slog.Info("TOKEN REFRESHER",
		"message", "sweep finished",
		"expiring", len(sessionIDs),
		"refreshed", refreshed,
		"nextSweepMinutes", minsToExpiration,
	)
	return nil
}
