package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChatTurn is one question and answer pair of a doubt chat.
type ChatTurn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatMemory keeps a bounded, ordered history per session.
type ChatMemory interface {
	Append(ctx context.Context, sessionID string, turn ChatTurn) error
	History(ctx context.Context, sessionID string) ([]ChatTurn, error)
	Clear(ctx context.Context, sessionID string) error
}

type redisChatMemory struct {
	client *redis.Client
	limit  int
	ttl    time.Duration
}

// NewRedisChatMemory stores at most limit turns per session in a redis list.
func NewRedisChatMemory(client *redis.Client, limit int, ttl time.Duration) ChatMemory {
	if limit <= 0 {
		limit = 3
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisChatMemory{client: client, limit: limit, ttl: ttl}
}

func chatKey(sessionID string) string {
	return "xilo:chat:" + sessionID
}

func (m *redisChatMemory) Append(ctx context.Context, sessionID string, turn ChatTurn) error {
	raw, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode chat turn: %w", err)
	}

	key := chatKey(sessionID)
	pipe := m.client.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, int64(-m.limit), -1)
	pipe.Expire(ctx, key, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append chat turn: %w", err)
	}
	return nil
}

func (m *redisChatMemory) History(ctx context.Context, sessionID string) ([]ChatTurn, error) {
	values, err := m.client.LRange(ctx, chatKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}

	turns := make([]ChatTurn, 0, len(values))
	for _, v := range values {
		var turn ChatTurn
		if err := json.Unmarshal([]byte(v), &turn); err != nil {
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (m *redisChatMemory) Clear(ctx context.Context, sessionID string) error {
	return m.client.Del(ctx, chatKey(sessionID)).Err()
}

type memoryChatMemory struct {
	mu       sync.Mutex
	limit    int
	sessions map[string][]ChatTurn
}

// NewMemoryChatMemory keeps histories in process.
func NewMemoryChatMemory(limit int) ChatMemory {
	if limit <= 0 {
		limit = 3
	}
	return &memoryChatMemory{limit: limit, sessions: map[string][]ChatTurn{}}
}

func (m *memoryChatMemory) Append(_ context.Context, sessionID string, turn ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := append(m.sessions[sessionID], turn)
	if len(turns) > m.limit {
		turns = append([]ChatTurn(nil), turns[len(turns)-m.limit:]...)
	}
	m.sessions[sessionID] = turns
	return nil
}

func (m *memoryChatMemory) History(_ context.Context, sessionID string) ([]ChatTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatTurn{}, m.sessions[sessionID]...), nil
}

func (m *memoryChatMemory) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
