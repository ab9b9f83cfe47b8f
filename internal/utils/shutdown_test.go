package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownRunsTasksInOrderOnce(t *testing.T) {
	ctx, sm := NewShutdownManager(context.Background())

	var calls []string
	sm.Register(func(context.Context) error { calls = append(calls, "http"); return nil })
	sm.Register(func(context.Context) error { calls = append(calls, "redis"); return errors.New("already closed") })
	sm.Register(func(context.Context) error { calls = append(calls, "db"); return nil })

	sm.Shutdown()
	sm.Shutdown()
	sm.Wait()

	assert.Equal(t, []string{"http", "redis", "db"}, calls)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
