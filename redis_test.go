package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisDisabled(t *testing.T) {
	assert.Nil(t, NewRedis(&Config{}))
}

func TestMemoryKey(t *testing.T) {
	assert.Equal(t, "vidbot:memory:42", memoryKey(42))
}

func TestLocalMemoryRoundTrip(t *testing.T) {
	m := NewLocalMemory()
	ctx := context.Background()

	saved := &VideoMemory{URL: "https://example.com/v", Title: "clip", SavedAt: time.Now()}
	require.NoError(t, m.Save(ctx, 9, saved))

	got, err := m.Get(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "https://example.com/v", got.URL)
	assert.Equal(t, "clip", got.Title)
}

func TestLocalMemoryUnknownUser(t *testing.T) {
	m := NewLocalMemory()

	got, err := m.Get(context.Background(), 123)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLocalMemoryExpires(t *testing.T) {
	m := NewLocalMemory()
	ctx := context.Background()

	stale := &VideoMemory{URL: "https://example.com/old", SavedAt: time.Now().Add(-2 * time.Hour)}
	require.NoError(t, m.Save(ctx, 9, stale))

	got, err := m.Get(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, got)
}
