package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexapay/settled/internal/domain"
	"github.com/nexapay/settled/internal/infra/observability"
	"github.com/nexapay/settled/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringP("file", "f", "", "JSON-lines transaction feed file (defaults to stdin)")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a finalized-transaction feed into the store",
	Long: `Ingest reads finalized transactions, one JSON object per line, and upserts
them into the local store. Transactions arrive already finalized from the
external ledger; redelivered lines are idempotent.`,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	in := os.Stdin
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open feed file: %w", err)
		}
		defer f.Close()
		in = f
	}

	if err := os.MkdirAll(cfg.Store.Dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	db, err := sqlite.Open(cfg.Store.Dir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	scanner := bufio.NewScanner(in)
	line, ingested := 0, 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var t domain.Transaction
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if t.ID == "" || t.MerchantID == "" || !t.Environment.Valid() {
			return fmt.Errorf("line %d: missing id, merchant_id, or valid environment", line)
		}
		if err := db.UpsertTransaction(ctx, t); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		observability.TransactionsIngestedTotal.Inc()
		ingested++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read feed: %w", err)
	}

	fmt.Fprintf(os.Stdout, "ingested %d transactions\n", ingested)
	return nil
}
