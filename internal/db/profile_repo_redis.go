package db

import (
	"context"
	"encoding/json"

	"github.com/feastline/feast-gateway/internal/gwerrors"
	"github.com/feastline/feast-gateway/internal/models"
	"github.com/redis/go-redis/v9"
)

const profilePrefix string = "profile"
const lastUserPrefix string = "lastLoginUserID"
const tabsPrefix string = "tabs"

// Profiles and tabs are stored as JSON strings rather than hashes: their
// numeric fields do not round-trip through the text-based hash
// serialization.

func (r RedisAdapter) GetProfile(ctx context.Context, sessionID string) (models.UserProfile, error) {
	raw, err := r.rdb.Get(ctx, r.profileKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return models.UserProfile{}, gwerrors.ErrProfileNotFound
		}
		return models.UserProfile{}, err
	}
	output := models.UserProfile{}
	err = json.Unmarshal([]byte(raw), &output)
	if err != nil {
		return models.UserProfile{}, err
	}
	return output, nil
}

func (r RedisAdapter) SetProfile(ctx context.Context, sessionID string, profile models.UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.profileKey(sessionID), string(raw), 0).Err()
}

func (r RedisAdapter) RemoveProfile(ctx context.Context, sessionID string) error {
	return r.rdb.Del(ctx, r.profileKey(sessionID)).Err()
}

// GetLastUserID returns the user ID of the previous login on this session,
// used to detect account switches. An unknown session yields the empty
// string.
func (r RedisAdapter) GetLastUserID(ctx context.Context, sessionID string) (string, error) {
	raw, err := r.rdb.Get(ctx, r.lastUserKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return raw, nil
}

func (r RedisAdapter) SetLastUserID(ctx context.Context, sessionID string, userID string) error {
	return r.rdb.Set(ctx, r.lastUserKey(sessionID), userID, 0).Err()
}

func (r RedisAdapter) GetTabs(ctx context.Context, sessionID string) (models.SerializableOrderedMap, error) {
	raw, err := r.rdb.Get(ctx, r.tabsKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return models.NewSerializableOrderedMap(), nil
		}
		return models.SerializableOrderedMap{}, err
	}
	output := models.NewSerializableOrderedMap()
	err = output.UnmarshalBinary([]byte(raw))
	if err != nil {
		return models.SerializableOrderedMap{}, err
	}
	return output, nil
}

func (r RedisAdapter) SetTabs(ctx context.Context, sessionID string, tabs models.SerializableOrderedMap) error {
	raw, err := tabs.MarshalBinary()
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.tabsKey(sessionID), string(raw), 0).Err()
}

func (r RedisAdapter) RemoveTabs(ctx context.Context, sessionID string) error {
	return r.rdb.Del(ctx, r.tabsKey(sessionID)).Err()
}

func (RedisAdapter) profileKey(sessionID string) string {
	return profilePrefix + ":" + sessionID
}

func (RedisAdapter) lastUserKey(sessionID string) string {
	return lastUserPrefix + ":" + sessionID
}

func (RedisAdapter) tabsKey(sessionID string) string {
	return tabsPrefix + ":" + sessionID
}
