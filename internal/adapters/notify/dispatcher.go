// Package notify delivers trade notifications without blocking the trade lifecycle.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"brainrotMarket/internal/domain"
	"brainrotMarket/internal/ports"
)

const (
	defaultBuffer = 256
	saveTimeout   = 5 * time.Second
)

// Pusher sends a notification to live connections and reports how many received it.
type Pusher interface {
	Push(ctx context.Context, n domain.Notification) int
}

// Config holds configuration for the Dispatcher.
type Config struct {
	Buffer int // Queue capacity; zero means 256
	Logger ports.Logger
	Store  ports.NotificationRepository
	Pusher Pusher // Optional
}

// Dispatcher implements ports.Notifier with a bounded queue drained by one
// worker goroutine. Notify never blocks: when the queue is full the
// notification is dropped and logged.
type Dispatcher struct {
	logger ports.Logger
	store  ports.NotificationRepository
	pusher Pusher
	newID  func() string

	queue    chan domain.Notification
	done     chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex
	closed   bool
}

// NewDispatcher creates a dispatcher and starts its worker.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Logger == nil || cfg.Store == nil {
		return nil, ports.ErrConfigurationError
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	d := &Dispatcher{
		logger: cfg.Logger,
		store:  cfg.Store,
		pusher: cfg.Pusher,
		newID:  uuid.NewString,
		queue:  make(chan domain.Notification, buffer),
		done:   make(chan struct{}),
	}
	go d.run()
	return d, nil
}

// Notify enqueues n for delivery.
func (d *Dispatcher) Notify(ctx context.Context, n domain.Notification) {
	if n.ID == "" {
		n.ID = d.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn(ctx, "Notification dropped after shutdown", map[string]interface{}{"userID": n.UserID, "type": n.Type, "tradeID": n.TradeID})
		return
	}
	select {
	case d.queue <- n:
	default:
		d.logger.Warn(ctx, "Notification queue full, dropping", map[string]interface{}{"userID": n.UserID, "type": n.Type, "tradeID": n.TradeID})
	}
}

// Close stops accepting notifications, drains the queue and waits for the
// worker to finish or ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *Dispatcher) deliver(n domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := d.store.SaveNotification(ctx, &n); err != nil {
		d.logger.Error(ctx, err, "Failed to save notification", map[string]interface{}{"userID": n.UserID, "type": n.Type, "tradeID": n.TradeID})
	}
	delivered := 0
	if d.pusher != nil {
		delivered = d.pusher.Push(ctx, n)
	}
	d.logger.Debug(ctx, "Notification delivered", map[string]interface{}{
		"userID":    n.UserID,
		"type":      n.Type,
		"tradeID":   n.TradeID,
		"liveConns": delivered,
	})
}
