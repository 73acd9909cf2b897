package mongostore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"brainrotMarket/internal/domain"
	"brainrotMarket/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var (
	_ ports.CatalogRepository      = (*Store)(nil)
	_ ports.TradeRepository        = (*Store)(nil)
	_ ports.UserRepository         = (*Store)(nil)
	_ ports.NotificationRepository = (*Store)(nil)
)

func TestTradeUpdate(t *testing.T) {
	at := time.Date(2025, 7, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	completed := domain.TradeCompleted
	accepted := true

	tests := []struct {
		name       string
		patch      ports.TradePatch
		wantUpdate bson.D
	}{
		{
			name:  "empty patch only bumps version",
			patch: ports.TradePatch{},
			wantUpdate: bson.D{
				{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}},
			},
		},
		{
			name:  "completion",
			patch: ports.TradePatch{Status: &completed, JoinerAccepted: &accepted, CompletedAt: &at},
			wantUpdate: bson.D{
				{Key: "$set", Value: bson.D{
					{Key: "status", Value: "completed"},
					{Key: "joinerAccepted", Value: true},
					{Key: "completedAt", Value: at.UTC()},
				}},
				{Key: "$inc", Value: bson.D{{Key: "version", Value: int64(1)}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, update := tradeUpdate("t1", ports.TradeGuard{Status: domain.TradePending, Version: 3}, tt.patch)
			wantFilter := bson.D{
				{Key: "_id", Value: "t1"},
				{Key: "status", Value: "pending"},
				{Key: "version", Value: int64(3)},
			}
			if diff := cmp.Diff(wantFilter, filter); diff != "" {
				t.Errorf("filter mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantUpdate, update); diff != "" {
				t.Errorf("update mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTradeFilter(t *testing.T) {
	assert.Equal(t, bson.M{}, tradeFilter(ports.TradeFilter{}))
	assert.Equal(t, bson.M{
		"status": "active",
		"$or": bson.A{
			bson.M{"ownerId": "u1"},
			bson.M{"joinerId": "u1"},
		},
	}, tradeFilter(ports.TradeFilter{Status: domain.TradeActive, ParticipantID: "u1"}))
}

func TestDocumentConversions(t *testing.T) {
	item, err := domain.NewItem("tung", "Tung Tung Tung Sahur", 300, domain.RarityBrainrotGod, domain.DemandVeryHigh)
	require.NoError(t, err)
	require.NoError(t, item.AllowMutation("rainbow", &domain.Override{Multiplier: 12}))

	if diff := cmp.Diff(item, fromItem(item).toDomain()); diff != "" {
		t.Errorf("item round trip mismatch (-want +got):\n%s", diff)
	}

	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	trade, err := domain.NewTrade("t1", "owner",
		[]domain.TradeItem{{ItemID: "tung", Name: "Tung", BaseValue: 300, TraitIDs: []string{}, FinalValue: 300}},
		[]domain.TradeItem{{ItemID: "x", Name: "X", BaseValue: 1, MutationID: "gold", TraitIDs: []string{"taco"}, FinalValue: 3.25}},
		now, time.Hour)
	require.NoError(t, err)
	joined := now.Add(time.Minute)
	trade.JoinedAt = &joined
	trade.JoinerID = "joiner"

	if diff := cmp.Diff(trade, fromTrade(trade).toDomain()); diff != "" {
		t.Errorf("trade round trip mismatch (-want +got):\n%s", diff)
	}
}

// setupTestStore connects to the database named by MONGODB_TEST_URI and
// drops it on cleanup. Tests are skipped when the variable is unset.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	ctx := context.Background()
	s, err := Connect(ctx, Config{
		URI:      uri,
		Database: fmt.Sprintf("brainrot_test_%d", time.Now().UnixNano()),
		Timeout:  10 * time.Second,
		Logger:   &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.db.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestStore_TradeLifecycle(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	trade, err := domain.NewTrade("t1", "owner",
		[]domain.TradeItem{{ItemID: "a", TraitIDs: []string{}, FinalValue: 10}},
		[]domain.TradeItem{{ItemID: "b", TraitIDs: []string{}, FinalValue: 12}},
		now, time.Hour)
	require.NoError(t, err)

	_, err = s.CreateTrade(ctx, trade)
	require.NoError(t, err)
	_, err = s.CreateTrade(ctx, trade)
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)

	pending := domain.TradePending
	joiner := "joiner"
	guard := ports.TradeGuard{Status: domain.TradeActive, Version: 0}

	var wg sync.WaitGroup
	results := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.UpdateTrade(ctx, "t1", guard, ports.TradePatch{Status: &pending, JoinerID: &joiner, JoinedAt: &now})
		}()
	}
	wg.Wait()
	close(results)
	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ports.ErrConflict)
	}
	assert.Equal(t, 1, wins)

	assert.ErrorIs(t, s.UpdateTrade(ctx, "nope", guard, ports.TradePatch{}), ports.ErrNotFound)

	require.NoError(t, s.IncrementViews(ctx, "t1"))
	got, err := s.GetTrade(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TradePending, got.Status)
	assert.Equal(t, "joiner", got.JoinerID)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, int64(1), got.Views)

	list, err := s.ListTrades(ctx, ports.TradeFilter{ParticipantID: "joiner"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	missing, err := s.GetTrade(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_UserStats(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.IncrementUserStat(ctx, "alice", domain.StatTradesFailed, 1))
	}
	stats, err := s.GetUserStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStats{UserID: "alice", TradesFailed: 3}, *stats)

	stats, err = s.GetUserStats(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStats{UserID: "bob"}, *stats)
}
