// internal/cache/redis_test.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/spyfall/internal/game"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis records RPUSH calls; every other command panics.
type fakeRedis struct {
	redis.Cmdable
	key    string
	values []interface{}
	err    error
}

func (f *fakeRedis) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.key = key
	f.values = append(f.values, values...)
	return redis.NewIntResult(int64(len(f.values)), f.err)
}

func TestRecordRoundPushesJSON(t *testing.T) {
	f := &fakeRedis{}
	p := NewRedisPublisher(f, "")
	assert.Equal(t, DefaultQueueName, p.Queue())

	rec := game.RoundRecord{
		Room:     "ABCDE",
		Round:    2,
		Location: "Bank",
		SpyID:    uuid.New(),
		SpyName:  "Eve",
		Outcome:  game.OutcomeCaptured,
		Scores:   map[string]int{"Eve": 0, "Bob": 1},
		ClosedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.RecordRound(context.Background(), rec))

	assert.Equal(t, DefaultQueueName, f.key)
	require.Len(t, f.values, 1)
	var got game.RoundRecord
	require.NoError(t, json.Unmarshal(f.values[0].([]byte), &got))
	assert.Equal(t, rec, got)
}

func TestRecordRoundWrapsErrors(t *testing.T) {
	boom := errors.New("connection refused")
	p := NewRedisPublisher(&fakeRedis{err: boom}, "rounds")
	err := p.RecordRound(context.Background(), game.RoundRecord{Room: "ABCDE"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "rounds")
}
