package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"brainrotMarket/internal/domain"
	"brainrotMarket/internal/ports"
	"brainrotMarket/internal/utils"
)

var (
	exportStatus string
	exportUser   string
	exportLimit  int
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write trades to a CSV file",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "only trades in this status")
	exportCmd.Flags().StringVar(&exportUser, "user", "", "only trades this user owns or joined")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "maximum number of trades")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default data/trades_<date>.csv)")
}

func runExport(cmd *cobra.Command, args []string) error {
	status := domain.TradeStatus(exportStatus)
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q", exportStatus)
	}

	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	trades, err := e.store.ListTrades(ctx, ports.TradeFilter{
		Status:        status,
		ParticipantID: exportUser,
		Limit:         exportLimit,
	})
	if err != nil {
		e.logger.Error(ctx, err, "Error fetching trades")
		return err
	}
	e.logger.Info(ctx, "Fetched trades", map[string]interface{}{"count": len(trades)})

	filename := exportOut
	if filename == "" {
		filename = fmt.Sprintf("data/trades_%s.csv", time.Now().UTC().Format("20060102"))
	}
	if err := utils.WriteTradesToCSV(trades, filename); err != nil {
		e.logger.Error(ctx, err, "Error writing CSV")
		return err
	}
	e.logger.Info(ctx, "Saved to", map[string]interface{}{"filename": filename})
	return nil
}
