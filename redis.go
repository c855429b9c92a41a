package main

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// memoryTTL bounds how long "this video" keeps referring to the last one.
const memoryTTL = time.Hour

// MemoryStore keeps each user's last delivered video.
type MemoryStore interface {
	Save(ctx context.Context, userID int64, memory *VideoMemory) error
	Get(ctx context.Context, userID int64) (*VideoMemory, error)
}

type Redis struct {
	client  *redis.Client
	channel string
}

// NewRedis returns nil when no DSN is configured; callers treat a nil
// receiver as "notifications disabled".
func NewRedis(cfg *Config) *Redis {
	if cfg.RedisDSN == "" {
		return nil
	}
	return &Redis{
		client:  redis.NewClient(&redis.Options{Addr: cfg.RedisDSN}),
		channel: cfg.RedisChannel,
	}
}

func (r *Redis) PublishNotification(ctx context.Context, jobID string, status JobStatus) error {
	notification := &RedisNotification{
		JobID:  jobID,
		Status: status,
	}
	output, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, output).Err()
}

func (r *Redis) Save(ctx context.Context, userID int64, memory *VideoMemory) error {
	payload, err := json.Marshal(memory)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, memoryKey(userID), payload, memoryTTL).Err()
}

func (r *Redis) Get(ctx context.Context, userID int64) (*VideoMemory, error) {
	payload, err := r.client.Get(ctx, memoryKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var memory VideoMemory
	if err := json.Unmarshal(payload, &memory); err != nil {
		return nil, err
	}
	return &memory, nil
}

func memoryKey(userID int64) string {
	return "vidbot:memory:" + strconv.FormatInt(userID, 10)
}

// localMemory is the in-process fallback when Redis is not configured.
type localMemory struct {
	mu      sync.Mutex
	entries map[int64]*VideoMemory
}

func NewLocalMemory() MemoryStore {
	return &localMemory{entries: make(map[int64]*VideoMemory)}
}

func (m *localMemory) Save(_ context.Context, userID int64, memory *VideoMemory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = memory
	return nil
}

func (m *localMemory) Get(_ context.Context, userID int64) (*VideoMemory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	memory, ok := m.entries[userID]
	if !ok {
		return nil, nil
	}
	if time.Since(memory.SavedAt) > memoryTTL {
		delete(m.entries, userID)
		return nil, nil
	}
	return memory, nil
}
