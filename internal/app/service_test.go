package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainrotMarket/internal/domain"
	"brainrotMarket/internal/ports"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockCatalog struct {
	items     map[string]*domain.Item
	mutations []domain.Mutation
	traits    []domain.Trait
	listErr   error
}

func (m *mockCatalog) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return m.items[id], nil
}

func (m *mockCatalog) ListMutations(ctx context.Context) ([]domain.Mutation, error) {
	return m.mutations, m.listErr
}

func (m *mockCatalog) ListTraits(ctx context.Context) ([]domain.Trait, error) {
	return m.traits, m.listErr
}

// mockTradeRepo keeps trades in memory and enforces the status/version guard
// the same way the real stores do.
type mockTradeRepo struct {
	mu        sync.Mutex
	trades    map[string]*domain.Trade
	createErr error
	viewsErr  error
	// forcedConflicts makes the next N UpdateTrade calls fail with ErrConflict.
	forcedConflicts int
	updateCalls     int
}

func newMockTradeRepo() *mockTradeRepo {
	return &mockTradeRepo{trades: make(map[string]*domain.Trade)}
}

func (m *mockTradeRepo) CreateTrade(ctx context.Context, t *domain.Trade) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	cp := *t
	m.trades[t.ID] = &cp
	return t.ID, nil
}

func (m *mockTradeRepo) GetTrade(ctx context.Context, id string) (*domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *mockTradeRepo) UpdateTrade(ctx context.Context, id string, guard ports.TradeGuard, patch ports.TradePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	t, ok := m.trades[id]
	if !ok {
		return ports.ErrNotFound
	}
	if m.forcedConflicts > 0 {
		m.forcedConflicts--
		return ports.ErrConflict
	}
	if t.Status != guard.Status || t.Version != guard.Version {
		return ports.ErrConflict
	}
	patch.Apply(t)
	return nil
}

func (m *mockTradeRepo) IncrementViews(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.viewsErr != nil {
		return m.viewsErr
	}
	t, ok := m.trades[id]
	if !ok {
		return ports.ErrNotFound
	}
	t.Views++
	return nil
}

func (m *mockTradeRepo) ListTrades(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Trade, 0)
	for _, t := range m.trades {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.ParticipantID != "" && !t.IsParticipant(filter.ParticipantID) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *mockTradeRepo) stored(id string) domain.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.trades[id]
}

type mockUserRepo struct {
	mu    sync.Mutex
	stats map[string]*domain.UserStats
	err   error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{stats: make(map[string]*domain.UserStats)}
}

func (m *mockUserRepo) IncrementUserStat(ctx context.Context, userID string, stat domain.StatName, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	s, ok := m.stats[userID]
	if !ok {
		s = &domain.UserStats{UserID: userID}
		m.stats[userID] = s
	}
	switch stat {
	case domain.StatTradesPosted:
		s.TradesPosted += delta
	case domain.StatTradesAccepted:
		s.TradesAccepted += delta
	case domain.StatTradesCompleted:
		s.TradesCompleted += delta
	case domain.StatTradesFailed:
		s.TradesFailed += delta
	default:
		return fmt.Errorf("unknown stat %s", stat)
	}
	return nil
}

func (m *mockUserRepo) GetUserStats(ctx context.Context, userID string) (*domain.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stats[userID]; ok {
		cp := *s
		return &cp, nil
	}
	return &domain.UserStats{UserID: userID}, nil
}

func (m *mockUserRepo) get(userID string) domain.UserStats {
	s, _ := m.GetUserStats(context.Background(), userID)
	return *s
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (m *mockNotifier) Notify(ctx context.Context, n domain.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
}

func (m *mockNotifier) all() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.sent...)
}

// --- Fixtures ---

const (
	owner  = "user-owner"
	joiner = "user-joiner"
	other  = "user-other"
)

type fixture struct {
	svc      *TradeService
	trades   *mockTradeRepo
	users    *mockUserRepo
	notifier *mockNotifier
	logger   *mockLogger
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tralalero := &domain.Item{ID: "tralalero", Name: "Tralalero Tralala", BaseValue: 100,
		MutationOverrides: map[string]domain.Override{"rainbow": {Multiplier: 12}}}
	tung := &domain.Item{ID: "tung", Name: "Tung Tung Tung Sahur", BaseValue: 90}
	cappuccino := &domain.Item{ID: "cappuccino", Name: "Cappuccino Assassino", BaseValue: 104}

	catalog := &mockCatalog{
		items: map[string]*domain.Item{"tralalero": tralalero, "tung": tung, "cappuccino": cappuccino},
		mutations: []domain.Mutation{
			{ID: "gold", Name: "Gold", Multiplier: 1.25, IsActive: true},
			{ID: "rainbow", Name: "Rainbow", Multiplier: 10, IsActive: true},
		},
		traits: []domain.Trait{
			{ID: "taco", Name: "Taco", Multiplier: 2, IsActive: true},
		},
	}

	f := &fixture{
		trades:   newMockTradeRepo(),
		users:    newMockUserRepo(),
		notifier: &mockNotifier{},
		logger:   &mockLogger{},
		now:      time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
	}
	svc, err := NewTradeService(Config{FairnessThreshold: 0.05}, f.logger, catalog, f.trades, f.users, f.notifier)
	require.NoError(t, err)

	seq := 0
	svc.now = func() time.Time { return f.now }
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("trade-%d", seq)
	}
	f.svc = svc
	return f
}

func (f *fixture) createTrade(t *testing.T) *domain.Trade {
	t.Helper()
	trade, err := f.svc.CreateTrade(context.Background(), owner, CreateTradeRequest{
		Offering:   []ItemSelection{{ItemID: "tralalero"}},
		LookingFor: []ItemSelection{{ItemID: "tung"}},
	})
	require.NoError(t, err)
	return trade
}

func (f *fixture) pendingTrade(t *testing.T) *domain.Trade {
	t.Helper()
	trade := f.createTrade(t)
	joined, err := f.svc.JoinTrade(context.Background(), trade.ID, joiner)
	require.NoError(t, err)
	return joined
}

// --- Tests ---

func TestNewTradeService_Validation(t *testing.T) {
	logger := &mockLogger{}
	catalog := &mockCatalog{}
	trades := newMockTradeRepo()
	users := newMockUserRepo()
	notifier := &mockNotifier{}

	_, err := NewTradeService(Config{}, nil, catalog, trades, users, notifier)
	assert.Error(t, err)

	_, err = NewTradeService(Config{TradeTTL: -time.Hour}, logger, catalog, trades, users, notifier)
	assert.Error(t, err)

	_, err = NewTradeService(Config{FairnessThreshold: 1.5}, logger, catalog, trades, users, notifier)
	assert.Error(t, err)

	svc, err := NewTradeService(Config{}, logger, catalog, trades, users, notifier)
	require.NoError(t, err)
	assert.Equal(t, DefaultTradeTTL, svc.cfg.TradeTTL)
}

func TestValueItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		sel       ItemSelection
		wantValue float64
		wantMut   string
		wantTrait []string
		wantErr   error
	}{
		{name: "plain item", sel: ItemSelection{ItemID: "tung"}, wantValue: 90, wantTrait: []string{}},
		{name: "override applies", sel: ItemSelection{ItemID: "tralalero", MutationID: "rainbow"}, wantValue: 1200, wantMut: "rainbow", wantTrait: []string{}},
		{name: "mutation and trait add", sel: ItemSelection{ItemID: "tung", MutationID: "gold", TraitIDs: []string{"taco"}}, wantValue: 292.5, wantMut: "gold", wantTrait: []string{"taco"}},
		{name: "unknown modifiers degrade silently", sel: ItemSelection{ItemID: "tung", MutationID: "gone", TraitIDs: []string{"gone"}}, wantValue: 90, wantTrait: []string{}},
		{name: "unknown item", sel: ItemSelection{ItemID: "nope"}, wantErr: ports.ErrNotFound},
		{name: "missing item id", sel: ItemSelection{}, wantErr: ports.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := f.svc.ValueItem(ctx, tt.sel)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantValue, v.Item.FinalValue)
			assert.Equal(t, tt.wantMut, v.Item.MutationID)
			assert.Equal(t, tt.wantTrait, v.Item.TraitIDs)
		})
	}
}

func TestCreateTrade(t *testing.T) {
	f := newFixture(t)
	trade := f.createTrade(t)

	assert.Equal(t, "trade-1", trade.ID)
	assert.Equal(t, domain.TradeActive, trade.Status)
	assert.Equal(t, 100.0, trade.OfferingTotal)
	assert.Equal(t, 90.0, trade.LookingForTotal)
	assert.Equal(t, 10.0, trade.ValueDifference)
	assert.Equal(t, domain.ResultLoss, trade.Result)
	assert.Equal(t, 10.0, trade.ResultPercentage)
	assert.Equal(t, f.now.Add(DefaultTradeTTL), trade.ExpiresAt)
	assert.Empty(t, trade.JoinerID)

	stored := f.trades.stored(trade.ID)
	assert.Equal(t, domain.TradeActive, stored.Status)

	assert.Equal(t, domain.UserStats{UserID: owner, TradesPosted: 1}, f.users.get(owner))
}

func TestCreateTrade_FairWithinThreshold(t *testing.T) {
	f := newFixture(t)
	trade, err := f.svc.CreateTrade(context.Background(), owner, CreateTradeRequest{
		Offering:   []ItemSelection{{ItemID: "tralalero"}},
		LookingFor: []ItemSelection{{ItemID: "cappuccino"}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultFair, trade.Result)
	assert.Equal(t, 3.85, trade.ResultPercentage)
}

func TestCreateTrade_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateTradeRequest
		wantErr error
	}{
		{name: "empty offering", req: CreateTradeRequest{LookingFor: []ItemSelection{{ItemID: "tung"}}}, wantErr: ports.ErrValidation},
		{name: "empty looking-for", req: CreateTradeRequest{Offering: []ItemSelection{{ItemID: "tung"}}}, wantErr: ports.ErrValidation},
		{name: "unknown item", req: CreateTradeRequest{
			Offering:   []ItemSelection{{ItemID: "tung"}},
			LookingFor: []ItemSelection{{ItemID: "ghost"}},
		}, wantErr: ports.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateTrade(context.Background(), owner, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.trades.trades)
			assert.Equal(t, int64(0), f.users.get(owner).TradesPosted)
		})
	}
}

func TestCreateTrade_PersistFailure(t *testing.T) {
	f := newFixture(t)
	f.trades.createErr = ports.ErrQueryFailed

	_, err := f.svc.CreateTrade(context.Background(), owner, CreateTradeRequest{
		Offering:   []ItemSelection{{ItemID: "tralalero"}},
		LookingFor: []ItemSelection{{ItemID: "tung"}},
	})
	assert.ErrorIs(t, err, ports.ErrQueryFailed)
	assert.Equal(t, int64(0), f.users.get(owner).TradesPosted)
}

func TestJoinTrade(t *testing.T) {
	f := newFixture(t)
	trade := f.createTrade(t)

	joined, err := f.svc.JoinTrade(context.Background(), trade.ID, joiner)
	require.NoError(t, err)
	assert.Equal(t, domain.TradePending, joined.Status)
	assert.Equal(t, joiner, joined.JoinerID)
	require.NotNil(t, joined.JoinedAt)
	assert.Equal(t, int64(1), joined.Version)

	stored := f.trades.stored(trade.ID)
	assert.Equal(t, domain.TradePending, stored.Status)
	assert.Equal(t, joiner, stored.JoinerID)

	sent := f.notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, owner, sent[0].UserID)
	assert.Equal(t, domain.NotifyTradeJoined, sent[0].Type)
	assert.Equal(t, trade.ID, sent[0].TradeID)
}

func TestJoinTrade_SelfJoin(t *testing.T) {
	f := newFixture(t)
	trade := f.createTrade(t)

	_, err := f.svc.JoinTrade(context.Background(), trade.ID, owner)
	assert.ErrorIs(t, err, ports.ErrSelfJoin)

	stored := f.trades.stored(trade.ID)
	assert.Equal(t, domain.TradeActive, stored.Status)
	assert.Equal(t, int64(0), stored.Version)
	assert.Equal(t, 0, f.trades.updateCalls)
	assert.Empty(t, f.notifier.all())
}

func TestJoinTrade_SelfJoinOnExpiredTradeDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	trade := f.createTrade(t)
	f.now = f.now.Add(DefaultTradeTTL + time.Minute)

	_, err := f.svc.JoinTrade(context.Background(), trade.ID, owner)
	assert.ErrorIs(t, err, ports.ErrSelfJoin)
	assert.Equal(t, domain.TradeActive, f.trades.stored(trade.ID).Status)
}

func TestJoinTrade_Expired(t *testing.T) {
	f := newFixture(t)
	trade := f.createTrade(t)
	f.now = trade.ExpiresAt // expiry is inclusive

	got, err := f.svc.JoinTrade(context.Background(), trade.ID, joiner)
	assert.ErrorIs(t, err, ports.ErrExpired)
	require.NotNil(t, got)
	assert.Equal(t, domain.TradeFailed, got.Status)

	stored := f.trades.stored(trade.ID)
	assert.Equal(t, domain.TradeFailed, stored.Status)
	assert.Equal(t, domain.FailReasonExpired, stored.FailReason)
	assert.Empty(t, stored.JoinerID)
	require.NotNil(t, stored.FailedAt)

	sent := f.notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, owner, sent[0].UserID)
	assert.Equal(t, domain.NotifyTradeExpired, sent[0].Type)

	// Failed is terminal: a later join is an invalid state, not another expiry.
	_, err = f.svc.JoinTrade(context.Background(), trade.ID, other)
	assert.ErrorIs(t, err, ports.ErrInvalidState)
}

func TestJoinTrade_InvalidStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.JoinTrade(ctx, "missing", joiner)
	assert.ErrorIs(t, err, ports.ErrNotFound)

	trade := f.pendingTrade(t)
	_, err = f.svc.JoinTrade(ctx, trade.ID, other)
	assert.ErrorIs(t, err, ports.ErrInvalidState)

	_, err = f.svc.JoinTrade(ctx, trade.ID, "")
	assert.ErrorIs(t, err, ports.ErrForbidden)
}

func TestAcceptTrade_BothPartiesComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trade := f.pendingTrade(t)

	afterOwner, err := f.svc.AcceptTrade(ctx, trade.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.TradePending, afterOwner.Status)
	assert.True(t, afterOwner.OwnerAccepted)
	assert.False(t, afterOwner.JoinerAccepted)

	// No completion stats yet.
	assert.Equal(t, int64(0), f.users.get(owner).TradesCompleted)

	done, err := f.svc.AcceptTrade(ctx, trade.ID, joiner)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeCompleted, done.Status)
	assert.True(t, done.OwnerAccepted)
	assert.True(t, done.JoinerAccepted)
	require.NotNil(t, done.CompletedAt)

	assert.Equal(t, domain.UserStats{UserID: owner, TradesPosted: 1, TradesCompleted: 1}, f.users.get(owner))
	assert.Equal(t, domain.UserStats{UserID: joiner, TradesCompleted: 1, TradesAccepted: 1}, f.users.get(joiner))

	sent := f.notifier.all()
	// joined, accepted (to joiner), completed x2
	require.Len(t, sent, 4)
	assert.Equal(t, domain.NotifyTradeAccepted, sent[1].Type)
	assert.Equal(t, joiner, sent[1].UserID)
	assert.Equal(t, domain.NotifyTradeCompleted, sent[2].Type)
	assert.Equal(t, domain.NotifyTradeCompleted, sent[3].Type)
	assert.ElementsMatch(t, []string{owner, joiner}, []string{sent[2].UserID, sent[3].UserID})
}

func TestAcceptTrade_JoinerFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trade := f.pendingTrade(t)

	_, err := f.svc.AcceptTrade(ctx, trade.ID, joiner)
	require.NoError(t, err)
	done, err := f.svc.AcceptTrade(ctx, trade.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeCompleted, done.Status)
	assert.Equal(t, int64(1), f.users.get(joiner).TradesAccepted)
}

func TestAcceptTrade_DoubleAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trade := f.pendingTrade(t)

	_, err := f.svc.AcceptTrade(ctx, trade.ID, owner)
	require.NoError(t, err)
	before := f.trades.stored(trade.ID)

	_, err = f.svc.AcceptTrade(ctx, trade.ID, owner)
	assert.ErrorIs(t, err, ports.ErrAlreadyAccepted)

	after := f.trades.stored(trade.ID)
	assert.Equal(t, before, after)
	assert.Equal(t, domain.UserStats{UserID: owner, TradesPosted: 1}, f.users.get(owner))
}

func TestAcceptTrade_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active := f.createTrade(t)
	_, err := f.svc.AcceptTrade(ctx, active.ID, owner)
	assert.ErrorIs(t, err, ports.ErrInvalidState)

	pending := f.pendingTrade(t)
	_, err = f.svc.AcceptTrade(ctx, pending.ID, other)
	assert.ErrorIs(t, err, ports.ErrForbidden)

	_, err = f.svc.AcceptTrade(ctx, "missing", owner)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestDeclineTrade(t *testing.T) {
	tests := []struct {
		name       string
		decliner   string
		wantReason domain.FailReason
		notifyTo   string
	}{
		{name: "owner declines", decliner: owner, wantReason: domain.FailReasonOwnerDeclined, notifyTo: joiner},
		{name: "joiner declines", decliner: joiner, wantReason: domain.FailReasonJoinerDeclined, notifyTo: owner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			trade := f.pendingTrade(t)

			got, err := f.svc.DeclineTrade(context.Background(), trade.ID, tt.decliner)
			require.NoError(t, err)
			assert.Equal(t, domain.TradeFailed, got.Status)
			assert.Equal(t, tt.wantReason, got.FailReason)

			assert.Equal(t, domain.UserStats{UserID: owner, TradesPosted: 1, TradesFailed: 1}, f.users.get(owner))
			assert.Equal(t, domain.UserStats{UserID: joiner, TradesFailed: 1}, f.users.get(joiner))

			sent := f.notifier.all()
			last := sent[len(sent)-1]
			assert.Equal(t, domain.NotifyTradeDeclined, last.Type)
			assert.Equal(t, tt.notifyTo, last.UserID)
		})
	}
}

func TestDeclineTrade_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active := f.createTrade(t)
	_, err := f.svc.DeclineTrade(ctx, active.ID, owner)
	assert.ErrorIs(t, err, ports.ErrInvalidState)

	pending := f.pendingTrade(t)
	_, err = f.svc.DeclineTrade(ctx, pending.ID, other)
	assert.ErrorIs(t, err, ports.ErrForbidden)
}

func TestCancelTrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	active := f.createTrade(t)
	got, err := f.svc.CancelTrade(ctx, active.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeCancelled, got.Status)
	assert.Equal(t, domain.FailReasonCancelled, got.FailReason)
	assert.Empty(t, f.notifier.all(), "no joiner to notify")

	pending := f.pendingTrade(t)
	_, err = f.svc.CancelTrade(ctx, pending.ID, joiner)
	assert.ErrorIs(t, err, ports.ErrForbidden)

	got, err = f.svc.CancelTrade(ctx, pending.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeCancelled, got.Status)

	sent := f.notifier.all()
	last := sent[len(sent)-1]
	assert.Equal(t, domain.NotifyTradeCancelled, last.Type)
	assert.Equal(t, joiner, last.UserID)

	// Cancellation leaves stats untouched.
	assert.Equal(t, domain.UserStats{UserID: joiner}, f.users.get(joiner))
}

func TestTerminalStatesAreFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trade := f.pendingTrade(t)

	_, err := f.svc.AcceptTrade(ctx, trade.ID, owner)
	require.NoError(t, err)
	_, err = f.svc.AcceptTrade(ctx, trade.ID, joiner)
	require.NoError(t, err)

	_, err = f.svc.CancelTrade(ctx, trade.ID, owner)
	assert.ErrorIs(t, err, ports.ErrInvalidState)
	_, err = f.svc.DeclineTrade(ctx, trade.ID, joiner)
	assert.ErrorIs(t, err, ports.ErrInvalidState)
	_, err = f.svc.JoinTrade(ctx, trade.ID, other)
	assert.ErrorIs(t, err, ports.ErrInvalidState)

	assert.Equal(t, domain.TradeCompleted, f.trades.stored(trade.ID).Status)
}

func TestTransition_RetriesOnceOnConflict(t *testing.T) {
	f := newFixture(t)
	trade := f.createTrade(t)

	f.trades.forcedConflicts = 1
	joined, err := f.svc.JoinTrade(context.Background(), trade.ID, joiner)
	require.NoError(t, err)
	assert.Equal(t, domain.TradePending, joined.Status)
	assert.Equal(t, 2, f.trades.updateCalls)
}

func TestTransition_SecondConflictIsInvalidState(t *testing.T) {
	f := newFixture(t)
	trade := f.createTrade(t)

	f.trades.forcedConflicts = 2
	_, err := f.svc.JoinTrade(context.Background(), trade.ID, joiner)
	assert.ErrorIs(t, err, ports.ErrInvalidState)
	assert.Equal(t, domain.TradeActive, f.trades.stored(trade.ID).Status)
	assert.Empty(t, f.notifier.all())
}

func TestAcceptTrade_ConcurrentBothParties(t *testing.T) {
	for round := 0; round < 50; round++ {
		f := newFixture(t)
		trade := f.pendingTrade(t)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})
		for i, user := range []string{owner, joiner} {
			wg.Add(1)
			go func(i int, user string) {
				defer wg.Done()
				<-start
				_, errs[i] = f.svc.AcceptTrade(context.Background(), trade.ID, user)
			}(i, user)
		}
		close(start)
		wg.Wait()

		// With one retry, the loser re-reads and completes the trade.
		for _, err := range errs {
			require.NoError(t, err)
		}
		stored := f.trades.stored(trade.ID)
		require.Equal(t, domain.TradeCompleted, stored.Status)

		assert.Equal(t, int64(1), f.users.get(owner).TradesCompleted)
		assert.Equal(t, int64(1), f.users.get(joiner).TradesCompleted)
		assert.Equal(t, int64(1), f.users.get(joiner).TradesAccepted)

		completed := 0
		for _, n := range f.notifier.all() {
			if n.Type == domain.NotifyTradeCompleted {
				completed++
			}
		}
		assert.Equal(t, 2, completed, "one completion notifies both parties once")
	}
}

func TestAcceptTrade_ConcurrentDoubleSubmission(t *testing.T) {
	f := newFixture(t)
	trade := f.pendingTrade(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AcceptTrade(context.Background(), trade.ID, owner)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ports.ErrAlreadyAccepted) || errors.Is(err, ports.ErrInvalidState), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	stored := f.trades.stored(trade.ID)
	assert.True(t, stored.OwnerAccepted)
	assert.Equal(t, domain.TradePending, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestViewTrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trade := f.createTrade(t)

	v, err := f.svc.ViewTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Views)
	_, err = f.svc.ViewTrade(ctx, trade.ID)
	require.NoError(t, err)

	stored := f.trades.stored(trade.ID)
	assert.Equal(t, int64(2), stored.Views)
	assert.Equal(t, int64(0), stored.Version, "views do not bump the version")

	f.trades.viewsErr = errors.New("write timeout")
	v, err = f.svc.ViewTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Views)
	assert.Contains(t, f.logger.warnMsgs, "Failed to increment trade views")

	_, err = f.svc.ViewTrade(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	got, err := f.svc.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Views, "plain reads are not counted")
	_, err = f.svc.GetTrade(ctx, "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestStatFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	trade := f.pendingTrade(t)
	f.users.err = errors.New("users collection unavailable")

	got, err := f.svc.DeclineTrade(context.Background(), trade.ID, joiner)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeFailed, got.Status)
	assert.Contains(t, f.logger.errorMsgs, "Failed to increment user stat")
}

func TestListTrades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.createTrade(t)
	f.now = f.now.Add(time.Minute)
	second := f.pendingTrade(t)

	all, err := f.svc.ListTrades(ctx, ports.TradeFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	active, err := f.svc.ListTrades(ctx, ports.TradeFilter{Status: domain.TradeActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.ID, active[0].ID)

	mine, err := f.svc.ListTrades(ctx, ports.TradeFilter{ParticipantID: joiner})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, second.ID, mine[0].ID)

	_, err = f.svc.ListTrades(ctx, ports.TradeFilter{Status: "archived"})
	assert.ErrorIs(t, err, ports.ErrValidation)
}

func TestGetUserStats(t *testing.T) {
	f := newFixture(t)
	f.createTrade(t)

	stats, err := f.svc.GetUserStats(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TradesPosted)

	stats, err = f.svc.GetUserStats(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStats{UserID: "nobody"}, *stats)
}
