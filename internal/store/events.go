package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"med-reminder-go/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	eventTTL     = 30 * 24 * time.Hour // 30 days
	eventChannel = "reminder_events"
	timelineKey  = "events:timeline"
	timelineCap  = 500
)

// RedisEvents keeps the feed of fired reminders: a capped timeline of event
// blobs with a TTL, plus a pub/sub channel for SSE listeners. The feed is
// optional; the service runs without it.
type RedisEvents struct {
	client *redis.Client
}

func NewRedisEvents(opts *redis.Options) *RedisEvents {
	return &RedisEvents{client: redis.NewClient(opts)}
}

func (e *RedisEvents) Ping(ctx context.Context) error {
	return e.client.Ping(ctx).Err()
}

// AddEvent records a fired reminder and publishes it for SSE.
func (e *RedisEvents) AddEvent(ctx context.Context, ev models.ReminderEvent) (models.ReminderEvent, error) {
	id, err := e.client.Incr(ctx, "event:next_id").Result()
	if err != nil {
		return models.ReminderEvent{}, err
	}
	ev.ID = id
	if ev.FiredAt.IsZero() {
		ev.FiredAt = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return models.ReminderEvent{}, err
	}

	key := fmt.Sprintf("event:%d", ev.ID)

	pipe := e.client.Pipeline()
	pipe.Set(ctx, key, data, eventTTL)
	pipe.ZAdd(ctx, timelineKey, redis.Z{
		Score:  float64(ev.FiredAt.Unix()),
		Member: key,
	})
	pipe.ZRemRangeByRank(ctx, timelineKey, 0, -(timelineCap + 1))
	if _, err := pipe.Exec(ctx); err != nil {
		return models.ReminderEvent{}, err
	}

	if err := e.client.Publish(ctx, eventChannel, data).Err(); err != nil {
		fmt.Println("Failed to publish event:", err)
	}

	return ev, nil
}

// RecentEvents returns fired-reminder events for one user, newest first.
func (e *RedisEvents) RecentEvents(ctx context.Context, userID int64, limit int) ([]models.ReminderEvent, error) {
	keys, err := e.client.ZRevRange(ctx, timelineKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var events []models.ReminderEvent
	for _, key := range keys {
		if len(events) >= limit {
			break
		}
		val, err := e.client.Get(ctx, key).Result()
		if err == redis.Nil {
			// Event expired, remove from sorted set
			e.client.ZRem(ctx, timelineKey, key)
			continue
		} else if err != nil {
			continue
		}

		var ev models.ReminderEvent
		if err := json.Unmarshal([]byte(val), &ev); err != nil {
			continue
		}
		if ev.UserID != userID {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// PurgeEvents drops the whole feed.
func (e *RedisEvents) PurgeEvents(ctx context.Context) error {
	iter := e.client.Scan(ctx, 0, "event:*", 0).Iterator()
	keys := []string{}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		e.client.Del(ctx, keys...)
	}
	return e.client.Del(ctx, timelineKey).Err()
}

func (e *RedisEvents) Subscribe(ctx context.Context) *redis.PubSub {
	return e.client.Subscribe(ctx, eventChannel)
}
