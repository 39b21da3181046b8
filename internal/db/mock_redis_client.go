package db

import (
	"context"
	"encoding"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockRedisClient implements LimitedRedisClient in memory. Only suitable
// for testing: contexts are ignored, key expiry is never enforced and
// IntCmd results always report 1 regardless of how many records were
// affected.
type MockRedisClient struct {
	strings map[string]string
	hashes  map[string]map[string]any
	zsets   map[string][]redis.Z
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{
		strings: map[string]string{},
		hashes:  map[string]map[string]any{},
		zsets:   map[string][]redis.Z{},
	}
}

func (m *MockRedisClient) Get(_ context.Context, key string) *redis.StringCmd {
	res := redis.StringCmd{}
	val, found := m.strings[key]
	if !found {
		res.SetErr(redis.Nil)
		return &res
	}
	res.SetVal(val)
	return &res
}

func (m *MockRedisClient) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	res := redis.StatusCmd{}
	switch v := value.(type) {
	case string:
		m.strings[key] = v
	case []byte:
		m.strings[key] = string(v)
	default:
		res.SetErr(fmt.Errorf("mock redis client cannot store values of type %T", value))
		return &res
	}
	res.SetVal("OK")
	return &res
}

func (m *MockRedisClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.strings, k)
		delete(m.hashes, k)
		delete(m.zsets, k)
	}
	res := redis.IntCmd{}
	res.SetVal(1)
	return &res
}

func (m *MockRedisClient) ExpireAt(_ context.Context, _ string, _ time.Time) *redis.BoolCmd {
	res := redis.BoolCmd{}
	res.SetVal(true)
	return &res
}

func (m *MockRedisClient) HSet(_ context.Context, key string, values ...any) *redis.IntCmd {
	res := redis.IntCmd{}
	if len(values)%2 != 0 {
		res.SetErr(fmt.Errorf("number of provided values must be even"))
		return &res
	}
	hash := map[string]any{}
	for i := 0; i < len(values); i += 2 {
		hash[values[i].(string)] = values[i+1]
	}
	m.hashes[key] = hash
	res.SetVal(1)
	return &res
}

func (m *MockRedisClient) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	res := redis.MapStringStringCmd{}
	res.SetVal(map[string]string{})
	hash, found := m.hashes[key]
	if !found {
		return &res
	}
	output := map[string]string{}
	for k, v := range hash {
		if asString, ok := v.(string); ok {
			output[k] = asString
			continue
		}
		marshaller, ok := v.(encoding.TextMarshaler)
		if !ok {
			output[k] = fmt.Sprintf("%v", v)
			continue
		}
		raw, err := marshaller.MarshalText()
		if err != nil {
			res.SetErr(err)
			return &res
		}
		output[k] = string(raw)
	}
	res.SetVal(output)
	return &res
}

func (m *MockRedisClient) ZAdd(_ context.Context, key string, members ...redis.Z) *redis.IntCmd {
	merged := m.zsets[key]
	for _, member := range members {
		replaced := false
		for i := range merged {
			if merged[i].Member == member.Member {
				merged[i].Score = member.Score
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, member)
		}
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Score < merged[j].Score })
	m.zsets[key] = merged
	res := redis.IntCmd{}
	res.SetVal(1)
	return &res
}

func (m *MockRedisClient) ZRem(_ context.Context, key string, members ...any) *redis.IntCmd {
	kept := []redis.Z{}
	for _, z := range m.zsets[key] {
		remove := false
		for _, member := range members {
			remove = remove || z.Member == member
		}
		if !remove {
			kept = append(kept, z)
		}
	}
	m.zsets[key] = kept
	res := redis.IntCmd{}
	res.SetVal(1)
	return &res
}

func (m *MockRedisClient) ZRangeByScore(_ context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd {
	res := redis.StringSliceCmd{}
	min, err := parseScoreBound(opt.Min, math.Inf(-1))
	if err != nil {
		res.SetErr(err)
		return &res
	}
	max, err := parseScoreBound(opt.Max, math.Inf(1))
	if err != nil {
		res.SetErr(err)
		return &res
	}
	output := []string{}
	for _, z := range m.zsets[key] {
		if z.Score >= min && z.Score <= max {
			output = append(output, fmt.Sprintf("%v", z.Member))
		}
	}
	res.SetVal(output)
	return &res
}

func parseScoreBound(bound string, def float64) (float64, error) {
	switch bound {
	case "-inf":
		return math.Inf(-1), nil
	case "+inf":
		return math.Inf(1), nil
	case "":
		return def, nil
	default:
		return strconv.ParseFloat(bound, 64)
	}
}
