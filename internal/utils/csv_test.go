package utils

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainrotMarket/internal/domain"
)

func TestWriteTradesCSV(t *testing.T) {
	created := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	completed := created.Add(time.Hour)
	trades := []*domain.Trade{
		{
			ID: "t1", OwnerID: "alice", JoinerID: "bob",
			Status: domain.TradeCompleted, Result: domain.ResultFair, ResultPercentage: 3.85,
			OfferingTotal: 100, LookingForTotal: 104, ValueDifference: 4,
			OfferingItems:   []domain.TradeItem{{ItemID: "tralalero", MutationID: "gold", TraitIDs: []string{"taco", "nyan"}}},
			LookingForItems: []domain.TradeItem{{ItemID: "tung"}, {ItemID: "cappuccino"}},
			Views:           7,
			CreatedAt:       created,
			ExpiresAt:       created.Add(7 * 24 * time.Hour),
			CompletedAt:     &completed,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTradesCSV(&buf, trades))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, tradeCSVHeader, records[0])

	row := records[1]
	assert.Equal(t, "t1", row[0])
	assert.Equal(t, "completed", row[3])
	assert.Equal(t, "3.85", row[6])
	assert.Equal(t, "tralalero:gold+taco+nyan", row[10])
	assert.Equal(t, "tung|cappuccino", row[11])
	assert.Equal(t, "7", row[12])
	assert.Equal(t, "2025-07-01T13:00:00Z", row[15])
	assert.Equal(t, "", row[16])
}

func TestWriteTradesToCSV_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "trades.csv")
	require.NoError(t, WriteTradesToCSV(nil, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "id,owner_id,joiner_id")
}
