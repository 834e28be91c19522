package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingGenerator struct {
	active  atomic.Int32
	maxSeen atomic.Int32
	calls   atomic.Int32
	delay   time.Duration
}

func (b *blockingGenerator) Generate(ctx context.Context, prompt string, _ Options) (string, error) {
	b.calls.Add(1)
	current := b.active.Add(1)
	defer b.active.Add(-1)
	for {
		seen := b.maxSeen.Load()
		if current <= seen || b.maxSeen.CompareAndSwap(seen, current) {
			break
		}
	}

	select {
	case <-time.After(b.delay):
		return "ok:" + prompt, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *blockingGenerator) Model() string { return "blocking" }

func TestSerializedAllowsOneGenerationAtATime(t *testing.T) {
	backend := &blockingGenerator{delay: 20 * time.Millisecond}
	guard := NewSerialized(backend, time.Second, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := guard.Generate(context.Background(), "q", Options{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), backend.maxSeen.Load())
	require.Equal(t, int32(5), backend.calls.Load())
	require.False(t, guard.Busy())
}

func TestSerializedTimeoutIsUnavailableWithoutRetry(t *testing.T) {
	backend := &blockingGenerator{delay: time.Second}
	guard := NewSerialized(backend, 30*time.Millisecond, zerolog.Nop())

	_, err := guard.Generate(context.Background(), "slow", Options{})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnavailable))
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Equal(t, int32(1), backend.calls.Load())
}

func TestSerializedWrapsPlainErrors(t *testing.T) {
	mock := NewMockGenerator(MockResponse{Err: errors.New("connection refused")})
	guard := NewSerialized(mock, time.Second, zerolog.Nop())

	_, err := guard.Generate(context.Background(), "q", Options{})
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 1, mock.CallCount())
}

func TestStreamFallsBackToSingleChunk(t *testing.T) {
	mock := NewMockGenerator(MockResponse{Text: "whole reply"})

	var chunks []string
	text, err := Stream(context.Background(), mock, "q", Options{}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "whole reply", text)
	require.Equal(t, []string{"whole reply"}, chunks)
}

func TestMockGeneratorDrainedQueueIsUnavailable(t *testing.T) {
	mock := NewMockGenerator()
	_, err := mock.Generate(context.Background(), "q", Options{})
	require.ErrorIs(t, err, ErrUnavailable)
}
