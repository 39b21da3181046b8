package db

import (
	"context"

	"github.com/feastline/feast-gateway/internal/gwerrors"
	"github.com/feastline/feast-gateway/internal/models"
)

const sessionPrefix string = "session"

func (r RedisAdapter) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	raw, err := r.rdb.HGetAll(ctx, r.sessionKey(sessionID)).Result()
	if err != nil {
		return models.Session{}, err
	}
	output := models.Session{}
	err = r.deserializeToStruct(raw, &output)
	if err != nil {
		if err == gwerrors.ErrNotFound {
			err = gwerrors.ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return output, nil
}

func (r RedisAdapter) SetSession(ctx context.Context, session models.Session) error {
	key := r.sessionKey(session.ID)
	err := r.rdb.HSet(ctx, key, r.serializeStruct(session)...).Err()
	if err != nil {
		return err
	}
	return r.rdb.ExpireAt(ctx, key, session.ExpiresAt.Add(credentialsExpiresAtLeeway)).Err()
}

func (r RedisAdapter) RemoveSession(ctx context.Context, sessionID string) error {
	return r.rdb.Del(ctx, r.sessionKey(sessionID)).Err()
}

func (RedisAdapter) sessionKey(sessionID string) string {
	return sessionPrefix + ":" + sessionID
}
