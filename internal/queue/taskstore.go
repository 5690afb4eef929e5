package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	delayedSetKey  = "notifier:tasks:delayed"
	taskPayloadKey = "notifier:tasks:payload"
)

// enqueueScript registers a task only when its id is not already present.
// KEYS[1] payload hash, KEYS[2] delayed zset.
// ARGV[1] task id, ARGV[2] payload, ARGV[3] run-at score (unix milli).
// Returns 1 when the task was added, 0 when it already existed.
var enqueueScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
redis.call("ZADD", KEYS[2], ARGV[3], ARGV[1])
return 1
`)

// popDueScript atomically claims every task due at or before the given
// score, up to the limit, removing each from both structures so no other
// scanner instance can claim it again.
var popDueScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
local payloads = {}
for _, id in ipairs(ids) do
  local payload = redis.call("HGET", KEYS[1], id)
  redis.call("ZREM", KEYS[2], id)
  redis.call("HDEL", KEYS[1], id)
  if payload then
    payloads[#payloads + 1] = payload
  end
end
return payloads
`)

var removeScript = redis.NewScript(`
local removed = redis.call("ZREM", KEYS[2], ARGV[1])
redis.call("HDEL", KEYS[1], ARGV[1])
return removed
`)

// TaskStore is the delayed side of dispatch: tasks wait here until due and
// are then handed to the broker by the scanner.
type TaskStore interface {
	Enqueue(ctx context.Context, task Task, now time.Time) (bool, error)
	PopDue(ctx context.Context, now time.Time, limit int) ([]Task, error)
	Remove(ctx context.Context, taskID string) (bool, error)
	Exists(ctx context.Context, taskID string) (bool, error)
}

type RedisTaskStore struct {
	client *redis.Client
}

func NewRedisTaskStore(client *redis.Client) *RedisTaskStore {
	return &RedisTaskStore{client: client}
}

// Enqueue schedules a task for its RunAt time, raised to now+DelayFloor
// when RunAt is already past. A task id that is already queued is left as
// is and reported with false.
func (s *RedisTaskStore) Enqueue(ctx context.Context, task Task, now time.Time) (bool, error) {
	runAt := task.RunAt
	if floor := now.Add(DelayFloor); runAt.Before(floor) {
		runAt = floor
	}
	task.RunAt = runAt

	payload, err := json.Marshal(task)
	if err != nil {
		return false, fmt.Errorf("failed to encode task %q: %w", task.ID, err)
	}

	added, err := enqueueScript.Run(ctx, s.client,
		[]string{taskPayloadKey, delayedSetKey},
		task.ID, payload, runAt.UnixMilli(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to enqueue task %q: %w", task.ID, err)
	}

	return added == 1, nil
}

func (s *RedisTaskStore) PopDue(ctx context.Context, now time.Time, limit int) ([]Task, error) {
	if limit < 1 {
		limit = 100
	}

	raw, err := popDueScript.Run(ctx, s.client,
		[]string{taskPayloadKey, delayedSetKey},
		now.UnixMilli(), limit,
	).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to pop due tasks: %w", err)
	}

	tasks := make([]Task, 0, len(raw))
	for _, payload := range raw {
		var task Task
		if err := json.Unmarshal([]byte(payload), &task); err != nil {
			return nil, fmt.Errorf("failed to decode task payload: %w", err)
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

func (s *RedisTaskStore) Remove(ctx context.Context, taskID string) (bool, error) {
	removed, err := removeScript.Run(ctx, s.client,
		[]string{taskPayloadKey, delayedSetKey},
		taskID,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to remove task %q: %w", taskID, err)
	}
	return removed == 1, nil
}

func (s *RedisTaskStore) Exists(ctx context.Context, taskID string) (bool, error) {
	exists, err := s.client.HExists(ctx, taskPayloadKey, taskID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check task %q: %w", taskID, err)
	}
	return exists, nil
}
