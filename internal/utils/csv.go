package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"brainrotMarket/internal/domain"
)

var tradeCSVHeader = []string{
	"id", "owner_id", "joiner_id", "status", "fail_reason", "result", "result_percentage",
	"offering_total", "looking_for_total", "value_difference",
	"offering_items", "looking_for_items", "views",
	"created_at", "expires_at", "completed_at", "failed_at",
}

// WriteTradesToCSV writes trades to filename, creating parent directories.
func WriteTradesToCSV(trades []*domain.Trade, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filename, err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return WriteTradesCSV(file, trades)
}

// WriteTradesCSV writes a header row and one row per trade to w.
func WriteTradesCSV(w io.Writer, trades []*domain.Trade) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(tradeCSVHeader); err != nil {
		return err
	}
	for _, t := range trades {
		writer.Write([]string{
			t.ID,
			t.OwnerID,
			t.JoinerID,
			string(t.Status),
			string(t.FailReason),
			string(t.Result),
			formatFloat(t.ResultPercentage),
			formatFloat(t.OfferingTotal),
			formatFloat(t.LookingForTotal),
			formatFloat(t.ValueDifference),
			itemIDs(t.OfferingItems),
			itemIDs(t.LookingForItems),
			strconv.FormatInt(t.Views, 10),
			t.CreatedAt.Format(time.RFC3339),
			t.ExpiresAt.Format(time.RFC3339),
			formatTime(t.CompletedAt),
			formatTime(t.FailedAt),
		})
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// itemIDs renders items as "id[:mutation][+trait...]" joined by "|".
func itemIDs(items []domain.TradeItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		var sb strings.Builder
		sb.WriteString(it.ItemID)
		if it.MutationID != "" {
			sb.WriteString(":" + it.MutationID)
		}
		for _, tr := range it.TraitIDs {
			sb.WriteString("+" + tr)
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, "|")
}
