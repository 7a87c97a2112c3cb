// Inspect is a read-only console for a sqlite bitemporal database: list the
// collections, dump an identity's audit trail, or answer a point query with
// both moments pinned from flags. Payloads are rendered as raw JSON, so the
// tool works against any collection regardless of its domain type.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	bitemporal "github.com/mohan-palisetti/bitemporaldb"
	"github.com/mohan-palisetti/bitemporaldb/store/sqlite"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	Database string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "inspect",
		Short:         "Browse a sqlite bitemporal database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "bitemporal.db", "path to the sqlite database")

	cmd.AddCommand(newCollectionsCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newResolveCommand(opts))
	return cmd
}

func openDB(opts *rootOptions) (*sqlite.DB, error) {
	if _, err := os.Stat(opts.Database); err != nil {
		return nil, fmt.Errorf("database %s: %w", opts.Database, err)
	}
	return sqlite.Open(opts.Database)
}

func newCollectionsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the collections in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(opts)
			if err != nil {
				return err
			}
			defer db.Close()

			names, err := db.Collections(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <collection> <identity>",
		Short: "Dump an identity's full audit trail, shadowed originals included",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := scan(cmd.Context(), opts, args[0], args[1])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("no records for %s in %s", args[1], args[0])
			}

			bitemporal.SortTimeline(records)
			renderRecords(records)
			return nil
		},
	}
}

func newResolveCommand(opts *rootOptions) *cobra.Command {
	var validFlag, systemFlag string

	cmd := &cobra.Command{
		Use:   "resolve <collection> <identity>",
		Short: "Answer what was true and known at the pinned moments",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			at := bitemporal.TemporalContext{
				ValidMoment:  time.Now(),
				SystemMoment: time.Now(),
			}
			if validFlag != "" {
				at.ValidMoment = bitemporal.AsTime(validFlag)
			}
			if systemFlag != "" {
				at.SystemMoment = bitemporal.AsTime(systemFlag)
			}

			records, err := scan(cmd.Context(), opts, args[0], args[1])
			if err != nil {
				return err
			}

			rec, ok, err := bitemporal.Resolve(records, at)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no assertion for %s at valid %s / system %s",
					args[1], at.ValidMoment.Format(time.DateTime), at.SystemMoment.Format(time.DateTime))
			}
			renderRecords([]bitemporal.Record[json.RawMessage]{rec})
			return nil
		},
	}

	cmd.Flags().StringVar(&validFlag, "valid", "", "valid moment, e.g. 2023-01-15 or '2023-01-15 08:30:00' (default now)")
	cmd.Flags().StringVar(&systemFlag, "system", "", "system moment in the same formats (default now)")
	return cmd
}

func scan(ctx context.Context, opts *rootOptions, collection, identity string) ([]bitemporal.Record[json.RawMessage], error) {
	id, err := uuid.Parse(identity)
	if err != nil {
		return nil, fmt.Errorf("identity %q: %w", identity, err)
	}

	db, err := openDB(opts)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	store, err := sqlite.NewStore[json.RawMessage](db, collection)
	if err != nil {
		return nil, err
	}
	return store.ScanByIdentity(ctx, id)
}

func renderRecords(records []bitemporal.Record[json.RawMessage]) {
	table := tablewriter.NewTable(os.Stdout)
	table.Header([]string{"Version", "ValidFrom", "ValidTo", "TransactionFrom", "TransactionTo", "Payload"})
	for _, rec := range records {
		table.Append([]string{
			fmt.Sprintf("%d", rec.TechnicalVersion),
			rec.Valid.From.Format(time.DateTime),
			rec.Valid.To.Format(time.DateTime),
			rec.Transaction.From.Format(time.DateTime),
			rec.Transaction.To.Format(time.DateTime),
			string(rec.Payload),
		})
	}
	table.Render()
}
