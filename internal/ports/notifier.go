package ports

import (
	"context"

	"brainrotMarket/internal/domain"
)

// Notifier emits notifications. Implementations are fire-and-forget: Notify
// must not block on delivery and its failure never affects the caller.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}
