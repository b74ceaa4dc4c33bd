package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []string
	fail  bool
	block chan struct{}
}

func (r *recordingNotifier) record(kind string) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.sent = append(r.sent, kind)
	r.mu.Unlock()
	if r.fail {
		return errors.New("delivery down")
	}
	return nil
}

func (r *recordingNotifier) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func (r *recordingNotifier) SendVerification(ctx context.Context, email, token string) error {
	return r.record("verification")
}

func (r *recordingNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	return r.record("password_reset")
}

func (r *recordingNotifier) SendPasswordChanged(ctx context.Context, email string) error {
	return r.record("password_changed")
}

func (r *recordingNotifier) SendLoginAlert(ctx context.Context, email, ip string) error {
	return r.record("login_alert")
}

func TestAsyncDeliversInOrder(t *testing.T) {
	t.Parallel()

	rec := &recordingNotifier{}
	a := NewAsync(rec, slog.Default(), 8)

	ctx := context.Background()
	require.NoError(t, a.SendVerification(ctx, "a@x.com", "tok"))
	require.NoError(t, a.SendPasswordChanged(ctx, "a@x.com"))

	a.Close()
	require.Equal(t, []string{"verification", "password_changed"}, rec.kinds())
}

func TestAsyncNeverPropagatesDeliveryFailure(t *testing.T) {
	t.Parallel()

	rec := &recordingNotifier{fail: true}
	a := NewAsync(rec, slog.Default(), 8)

	// The triggering operation sees success regardless of delivery.
	require.NoError(t, a.SendPasswordReset(context.Background(), "a@x.com", "tok"))

	a.Close()
	require.Equal(t, []string{"password_reset"}, rec.kinds())
}

func TestAsyncDropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	rec := &recordingNotifier{block: block}
	a := NewAsync(rec, slog.Default(), 1)

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		// Enqueueing must not block even while the worker is stuck and
		// the buffer is full.
		for i := 0; i < 10; i++ {
			_ = a.SendLoginAlert(ctx, "a@x.com", "10.0.0.1")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("enqueue blocked on a full queue")
	}

	close(block)
	a.Close()
}
