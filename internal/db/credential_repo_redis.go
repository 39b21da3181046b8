package db

import (
	"context"
	"strconv"
	"time"

	"github.com/feastline/feast-gateway/internal/gwerrors"
	"github.com/feastline/feast-gateway/internal/models"
	"github.com/redis/go-redis/v9"
)

const credentialsPrefix string = "credentials"
const credentialsExpiryIndex string = "credentialsExpiry"

const credentialsExpiresAtLeeway time.Duration = 10 * time.Second

// GetCredentials reads the credential pair of a session from Redis,
// decrypting the token values when encryption is enabled.
func (r RedisAdapter) GetCredentials(ctx context.Context, sessionID string) (models.CredentialPair, error) {
	raw, err := r.rdb.HGetAll(ctx, r.credentialsKey(sessionID)).Result()
	if err != nil {
		return models.CredentialPair{}, err
	}
	output := models.CredentialPair{}
	err = r.deserializeToStruct(raw, &output)
	if err != nil {
		if err == gwerrors.ErrNotFound {
			err = gwerrors.ErrCredentialsNotFound
		}
		return models.CredentialPair{}, err
	}
	output.AccessToken, err = r.decrypt(output.AccessToken)
	if err != nil {
		return models.CredentialPair{}, err
	}
	output.RefreshToken, err = r.decrypt(output.RefreshToken)
	if err != nil {
		return models.CredentialPair{}, err
	}
	return output, nil
}

// SetCredentials writes the credential pair of a session to Redis and
// indexes its access expiry for the proactive refresh sweep. The hash
// itself expires with the refresh token so stale entries clean themselves
// up.
func (r RedisAdapter) SetCredentials(ctx context.Context, sessionID string, pair models.CredentialPair) error {
	var err error
	stored := pair
	stored.AccessToken, err = r.encrypt(pair.AccessToken)
	if err != nil {
		return err
	}
	stored.RefreshToken, err = r.encrypt(pair.RefreshToken)
	if err != nil {
		return err
	}
	key := r.credentialsKey(sessionID)
	err = r.rdb.HSet(ctx, key, r.serializeStruct(stored)...).Err()
	if err != nil {
		return err
	}
	if !pair.RefreshExpiresAt.IsZero() {
		err = r.rdb.ExpireAt(ctx, key, pair.RefreshExpiresAt.Add(credentialsExpiresAtLeeway)).Err()
		if err != nil {
			return err
		}
	}
	if pair.AccessExpiresAt.IsZero() {
		return r.rdb.ZRem(ctx, credentialsExpiryIndex, sessionID).Err()
	}
	return r.rdb.ZAdd(ctx, credentialsExpiryIndex, redis.Z{
		Score:  float64(pair.AccessExpiresAt.Unix()),
		Member: sessionID,
	}).Err()
}

func (r RedisAdapter) RemoveCredentials(ctx context.Context, sessionID string) error {
	err := r.rdb.ZRem(ctx, credentialsExpiryIndex, sessionID).Err()
	if err != nil {
		return err
	}
	return r.rdb.Del(ctx, r.credentialsKey(sessionID)).Err()
}

// ExpiringSessionIDs lists the sessions whose access token expires between
// the two unix instants, in expiry order.
func (r RedisAdapter) ExpiringSessionIDs(ctx context.Context, from, until int64) ([]string, error) {
	return r.rdb.ZRangeByScore(ctx, credentialsExpiryIndex, &redis.ZRangeBy{
		Min: strconv.FormatInt(from, 10),
		Max: strconv.FormatInt(until, 10),
	}).Result()
}

func (RedisAdapter) credentialsKey(sessionID string) string {
	return credentialsPrefix + ":" + sessionID
}
