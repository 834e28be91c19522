package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ligth279/xilov5-overhual/internal/evaluation"
)

// AttemptKey scopes an attempt state to one learner, quiz session and question.
type AttemptKey struct {
	UserID     string
	SessionID  string
	Grade      string
	Subject    string
	LessonID   string
	SectionID  string
	QuestionID string
}

// Segments are query escaped so caller input can neither forge a ':' boundary
// nor carry redis glob metacharacters into the SCAN pattern.
func (k AttemptKey) sectionPrefix() string {
	segments := []string{k.UserID, k.SessionID, k.Grade, k.Subject, k.LessonID, k.SectionID}
	for i, segment := range segments {
		segments[i] = url.QueryEscape(segment)
	}
	return "xilo:attempt:" + strings.Join(segments, ":") + ":"
}

// String renders the storage key.
func (k AttemptKey) String() string {
	return k.sectionPrefix() + url.QueryEscape(k.QuestionID)
}

// AttemptStore keeps AttemptState between submissions.
type AttemptStore interface {
	Load(ctx context.Context, key AttemptKey) (evaluation.AttemptState, bool, error)
	Save(ctx context.Context, key AttemptKey, state evaluation.AttemptState) error
	ResetSection(ctx context.Context, key AttemptKey) (int, error)
}

type redisAttemptStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisAttemptStore stores states as JSON with a TTL.
func NewRedisAttemptStore(client *redis.Client, ttl time.Duration) AttemptStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisAttemptStore{client: client, ttl: ttl}
}

func (s *redisAttemptStore) Load(ctx context.Context, key AttemptKey) (evaluation.AttemptState, bool, error) {
	raw, err := s.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return evaluation.AttemptState{}, false, nil
	}
	if err != nil {
		return evaluation.AttemptState{}, false, fmt.Errorf("load attempt state: %w", err)
	}

	var state evaluation.AttemptState
	if err := json.Unmarshal(raw, &state); err != nil {
		return evaluation.AttemptState{}, false, fmt.Errorf("decode attempt state: %w", err)
	}
	return state, true, nil
}

func (s *redisAttemptStore) Save(ctx context.Context, key AttemptKey, state evaluation.AttemptState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode attempt state: %w", err)
	}
	if err := s.client.Set(ctx, key.String(), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save attempt state: %w", err)
	}
	return nil
}

// ResetSection removes every state under the key's section. QuestionID is ignored.
func (s *redisAttemptStore) ResetSection(ctx context.Context, key AttemptKey) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, key.sectionPrefix()+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("scan attempt states: %w", err)
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("delete attempt states: %w", err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

type memoryAttempt struct {
	state   evaluation.AttemptState
	expires time.Time
}

type memoryAttemptStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	states map[string]memoryAttempt
}

// NewMemoryAttemptStore keeps states in process, for deployments without redis.
func NewMemoryAttemptStore(ttl time.Duration) AttemptStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &memoryAttemptStore{ttl: ttl, states: map[string]memoryAttempt{}}
}

func (s *memoryAttemptStore) Load(_ context.Context, key AttemptKey) (evaluation.AttemptState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.states[key.String()]
	if !ok {
		return evaluation.AttemptState{}, false, nil
	}
	if time.Now().After(entry.expires) {
		delete(s.states, key.String())
		return evaluation.AttemptState{}, false, nil
	}
	state := entry.state
	state.HintsShown = append([]int(nil), entry.state.HintsShown...)
	return state, true, nil
}

func (s *memoryAttemptStore) Save(_ context.Context, key AttemptKey, state evaluation.AttemptState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.HintsShown = append([]int(nil), state.HintsShown...)
	s.states[key.String()] = memoryAttempt{state: state, expires: time.Now().Add(s.ttl)}
	return nil
}

func (s *memoryAttemptStore) ResetSection(_ context.Context, key AttemptKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := key.sectionPrefix()
	removed := 0
	for k := range s.states {
		if strings.HasPrefix(k, prefix) {
			delete(s.states, k)
			removed++
		}
	}
	return removed, nil
}
