package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ligth279/xilov5-overhual/pkg/ai"
)

type pingingModel struct {
	*ai.MockGenerator
	err  error
	busy bool
}

func (p pingingModel) Ping(context.Context) error { return p.err }
func (p pingingModel) Busy() bool                 { return p.busy }

func TestStatusService(t *testing.T) {
	ctx := context.Background()

	none := NewStatusService(nil, "disabled", zerolog.Nop()).Status(ctx)
	require.Equal(t, ModelUnavailable, none.Status)

	ready := NewStatusService(pingingModel{MockGenerator: ai.NewMockGenerator()}, "local", zerolog.Nop()).Status(ctx)
	require.Equal(t, ModelReady, ready.Status)
	require.Equal(t, "mock", ready.Model)

	down := NewStatusService(pingingModel{MockGenerator: ai.NewMockGenerator(), err: errors.New("connection refused")}, "local", zerolog.Nop()).Status(ctx)
	require.Equal(t, ModelUnavailable, down.Status)
	require.Contains(t, down.Detail, "connection refused")

	busy := NewStatusService(pingingModel{MockGenerator: ai.NewMockGenerator(), err: errors.New("ignored"), busy: true}, "local", zerolog.Nop()).Status(ctx)
	require.Equal(t, ModelReady, busy.Status)
	require.True(t, busy.Busy)
}
