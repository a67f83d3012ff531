package mailop

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpRunSuccess(t *testing.T) {
	var started, finished int
	op := New(TypeReceive, nil, "acct-1", func(ctx context.Context, op *Op) error {
		op.SetProgress(1, 2)
		return nil
	})
	op.OnStarted(func(Operation) { started++ })
	op.OnFinished(func(Operation) { finished++ })

	op.Run(context.Background())

	assert.Equal(t, StatusSuccess, op.Status())
	assert.NoError(t, op.Err())
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, finished)

	done, total := op.Progress()
	assert.Equal(t, 1, done)
	assert.Equal(t, 2, total)

	// A second run is ignored.
	op.Run(context.Background())
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, finished)
}

func TestOpRunStatusFromError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    Status
		wantErr bool
	}{
		{"failed", errors.New("boom"), StatusFailed, true},
		{"partial", fmt.Errorf("2 of 3 sent: %w", ErrFinishedWithErrors), StatusFinishedWithErrors, true},
		{"canceled", context.Canceled, StatusCanceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := New(TypeSend, nil, "", func(context.Context, *Op) error {
				return tt.err
			})
			op.Run(context.Background())

			assert.Equal(t, tt.want, op.Status())
			if tt.wantErr {
				assert.ErrorIs(t, op.Err(), tt.err)
			} else {
				assert.NoError(t, op.Err())
			}
		})
	}
}

func TestOpCancelPending(t *testing.T) {
	var started, finished int
	op := New(TypeSend, nil, "", func(context.Context, *Op) error {
		t.Fatal("work must not run after cancel")
		return nil
	})
	op.OnStarted(func(Operation) { started++ })
	op.OnFinished(func(Operation) { finished++ })

	op.Cancel()
	op.Cancel()
	op.Run(context.Background())

	assert.Equal(t, StatusCanceled, op.Status())
	assert.Equal(t, 0, started)
	assert.Equal(t, 1, finished)

	select {
	case <-op.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestOpCancelRunning(t *testing.T) {
	running := make(chan struct{})
	op := New(TypeReceive, nil, "", func(ctx context.Context, _ *Op) error {
		close(running)
		<-ctx.Done()
		return errors.New("connection closed")
	})

	op.Start(context.Background())
	<-running
	op.Cancel()

	select {
	case <-op.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("operation did not finish after cancel")
	}
	assert.Equal(t, StatusCanceled, op.Status())
}

func TestOpDisconnectHandler(t *testing.T) {
	var calls int
	op := New(TypeInfo, nil, "", nil)
	disconnect := op.OnFinished(func(Operation) { calls++ })
	disconnect()
	disconnect()

	op.Run(context.Background())
	assert.Equal(t, 0, calls)
	assert.Equal(t, StatusSuccess, op.Status())
}

func TestOpHandlerMayDisconnectItself(t *testing.T) {
	op := New(TypeInfo, nil, "", nil)
	var disconnect func()
	var calls int
	disconnect = op.OnFinished(func(Operation) {
		calls++
		disconnect()
	})

	require.NotPanics(t, func() { op.Run(context.Background()) })
	assert.Equal(t, 1, calls)
}

func TestOpString(t *testing.T) {
	op := New(TypeSend, nil, "work", func(_ context.Context, op *Op) error {
		op.SetProgress(3, 10)
		return errors.New("smtp down")
	})
	op.Run(context.Background())

	s := op.String()
	assert.Contains(t, s, "send [failed]")
	assert.Contains(t, s, "account=work")
	assert.Contains(t, s, "3/10")
	assert.Contains(t, s, `error="smtp down"`)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.False(t, StatusInvalid.Terminal())
	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusCanceled.Terminal())
	assert.Equal(t, "shutdown", TypeShutdown.String())
}

func TestAccountOf(t *testing.T) {
	op := New(TypeReceive, nil, "work", nil)
	assert.Equal(t, "work", AccountOf(op))

	// Only the Operation methods are promoted.
	type bare struct{ Operation }
	assert.Empty(t, AccountOf(bare{op}))
}
