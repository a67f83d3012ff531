package mainloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdleRunsAfterDefaultPriority(t *testing.T) {
	l := New()
	var order []string

	l.IdleAdd(func() { order = append(order, "idle-1") })
	l.Invoke(func() {
		order = append(order, "normal-1")
		l.Invoke(func() { order = append(order, "normal-nested") })
	})
	l.IdleAdd(func() { order = append(order, "idle-2") })
	l.Invoke(func() { order = append(order, "normal-2") })

	assert.Equal(t, 4, l.Pending())
	l.Drain()

	assert.Equal(t, []string{
		"normal-1", "normal-2", "normal-nested", "idle-1", "idle-2",
	}, order)
	assert.Equal(t, 0, l.Pending())
}

func TestIterate(t *testing.T) {
	l := New()
	assert.False(t, l.Iterate())

	ran := false
	l.IdleAdd(func() { ran = true })
	assert.True(t, l.Iterate())
	assert.True(t, ran)
	assert.False(t, l.Iterate())
}

func TestRunDispatchesFromOtherGoroutines(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(stopped)
	}()

	done := make(chan struct{})
	go l.IdleAdd(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("idle callback never ran")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
