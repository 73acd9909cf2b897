package domain

// StatName names one of the denormalized trade counters on a user record.
type StatName string

const (
	StatTradesPosted    StatName = "tradesPosted"
	StatTradesAccepted  StatName = "tradesAccepted"
	StatTradesCompleted StatName = "tradesCompleted"
	StatTradesFailed    StatName = "tradesFailed"
)

// Valid reports whether s is a known counter.
func (s StatName) Valid() bool {
	switch s {
	case StatTradesPosted, StatTradesAccepted, StatTradesCompleted, StatTradesFailed:
		return true
	}
	return false
}

// UserStats holds counters mutated only as side effects of trade transitions.
type UserStats struct {
	UserID          string `json:"userId"`
	TradesPosted    int64  `json:"tradesPosted"`
	TradesAccepted  int64  `json:"tradesAccepted"`
	TradesCompleted int64  `json:"tradesCompleted"`
	TradesFailed    int64  `json:"tradesFailed"`
}

// Get returns the counter for name.
func (s UserStats) Get(name StatName) int64 {
	switch name {
	case StatTradesPosted:
		return s.TradesPosted
	case StatTradesAccepted:
		return s.TradesAccepted
	case StatTradesCompleted:
		return s.TradesCompleted
	case StatTradesFailed:
		return s.TradesFailed
	}
	return 0
}
