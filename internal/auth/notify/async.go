package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const sendTimeout = 10 * time.Second

// Async decouples the auth flows from the delivery backend with a bounded
// queue and a single worker goroutine. Enqueueing never blocks: when the
// queue is full the message is dropped and logged. Slow or failing delivery
// therefore cannot stall a login or a registration.
type Async struct {
	inner  Notifier
	logger *slog.Logger

	queue     chan func(context.Context) error
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewAsync(inner Notifier, logger *slog.Logger, buffer int) *Async {
	if buffer <= 0 {
		buffer = 64
	}

	a := &Async{
		inner:  inner,
		logger: logger,
		queue:  make(chan func(context.Context) error, buffer),
	}

	a.wg.Add(1)
	go a.worker()

	return a
}

func (a *Async) worker() {
	defer a.wg.Done()

	for send := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := send(ctx); err != nil {
			a.logger.Error("notification delivery failed", "err", err)
		}
		cancel()
	}
}

func (a *Async) enqueue(kind string, send func(context.Context) error) {
	select {
	case a.queue <- send:
	default:
		a.logger.Warn("notification queue full, dropping", "kind", kind)
	}
}

func (a *Async) SendVerification(ctx context.Context, email, token string) error {
	a.enqueue("verification", func(ctx context.Context) error {
		return a.inner.SendVerification(ctx, email, token)
	})
	return nil
}

func (a *Async) SendPasswordReset(ctx context.Context, email, token string) error {
	a.enqueue("password_reset", func(ctx context.Context) error {
		return a.inner.SendPasswordReset(ctx, email, token)
	})
	return nil
}

func (a *Async) SendPasswordChanged(ctx context.Context, email string) error {
	a.enqueue("password_changed", func(ctx context.Context) error {
		return a.inner.SendPasswordChanged(ctx, email)
	})
	return nil
}

func (a *Async) SendLoginAlert(ctx context.Context, email, ip string) error {
	a.enqueue("login_alert", func(ctx context.Context) error {
		return a.inner.SendLoginAlert(ctx, email, ip)
	})
	return nil
}

// Close stops accepting messages and waits for the worker to drain.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		close(a.queue)
	})
	a.wg.Wait()
}
