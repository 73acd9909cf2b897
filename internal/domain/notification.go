package domain

import "time"

// NotificationType identifies the trade event a notification reports.
type NotificationType string

const (
	NotifyTradeJoined    NotificationType = "trade_joined"
	NotifyTradeAccepted  NotificationType = "trade_accepted"
	NotifyTradeCompleted NotificationType = "trade_completed"
	NotifyTradeDeclined  NotificationType = "trade_declined"
	NotifyTradeCancelled NotificationType = "trade_cancelled"
	NotifyTradeExpired   NotificationType = "trade_expired"
)

// Notification is a message addressed to one user about one trade.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Type      NotificationType       `json:"type"`
	TradeID   string                 `json:"tradeId"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"createdAt"`
}
