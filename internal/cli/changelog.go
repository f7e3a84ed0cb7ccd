package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ordertrail/internal/changelog"
	"github.com/roach88/ordertrail/internal/config"
)

// ChangeLogOptions holds flags for the changelog command.
type ChangeLogOptions struct {
	*RootOptions
	Database     string
	Masters      config.MastersConfig
	Kafka        config.KafkaConfig
	DynamoTable  string
	DynamoIndex  string
	DynamoRegion string
	DynamoURL    string
}

// NewChangeLogCommand creates the changelog command.
func NewChangeLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChangeLogOptions{RootOptions: rootOpts}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "changelog RECEPTION",
		Short: "Print the change log of a reception",
		Long: `Rebuild the change log of one reception from its stored log rows,
newest entry first.

Rows whose master cannot be found are skipped with a warning on stderr.

Exit codes:
  0 - Every row was rendered
  1 - One or more rows were skipped
  2 - Command error (database not found, no master source, etc.)

Examples:
  ordertrail changelog --db ./ordertrail.db --masters ./masters R-100
  ordertrail changelog --db ./ordertrail.db --pebble ./masters.pebble R-100 --format json
  ordertrail changelog --dynamo-table order_logs --badger ./masters.badger R-100`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChangeLog(cmd.Context(), opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Masters.Dir, "masters", "", "directory of {year}.cue|yaml master files")
	cmd.Flags().StringVar(&opts.Masters.Pebble, "pebble", "", "Pebble master store directory")
	cmd.Flags().StringVar(&opts.Masters.Badger, "badger", "", "Badger master store directory")
	cmd.Flags().StringVar(&opts.Kafka.Brokers, "kafka-brokers", "", "publish entries to these comma-separated brokers")
	cmd.Flags().StringVar(&opts.Kafka.Topic, "kafka-topic", defaults.Kafka.Topic, "Kafka topic for published entries")
	cmd.Flags().StringVar(&opts.DynamoTable, "dynamo-table", "", "read rows from this DynamoDB table instead of --db")
	cmd.Flags().StringVar(&opts.DynamoIndex, "dynamo-index", defaults.Dynamo.Index, "DynamoDB index keyed by receptionNumber")
	cmd.Flags().StringVar(&opts.DynamoRegion, "dynamo-region", defaults.Dynamo.Region, "DynamoDB region")
	cmd.Flags().StringVar(&opts.DynamoURL, "dynamo-endpoint", "", "DynamoDB endpoint override")
	cmd.MarkFlagsMutuallyExclusive("masters", "pebble", "badger")
	cmd.MarkFlagsMutuallyExclusive("db", "dynamo-table")

	return cmd
}

func (o *ChangeLogOptions) config() config.Config {
	return config.Config{
		Store:   config.StoreConfig{DBPath: o.Database},
		Masters: o.Masters,
		Kafka:   o.Kafka,
		Dynamo: config.DynamoConfig{
			Table:    o.DynamoTable,
			Index:    o.DynamoIndex,
			Region:   o.DynamoRegion,
			Endpoint: o.DynamoURL,
		},
	}
}

// skipCounter records whether any row was skipped.
type skipCounter struct {
	mu      sync.Mutex
	skipped int
}

func (s *skipCounter) RowBuilt(changelog.Action, int) {}

func (s *skipCounter) AnomalyDetected() {}

func (s *skipCounter) RowSkipped(changelog.RowErrorCode) {
	s.mu.Lock()
	s.skipped++
	s.mu.Unlock()
}

func runChangeLog(ctx context.Context, opts *ChangeLogOptions, cmd *cobra.Command, reception string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.config()
	logger := opts.Logger()

	var cl closers
	defer cl.Close()

	rows, _, err := openRows(ctx, cfg, logger, &cl)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open row store", err)
	}
	masters, err := openMasters(cfg.Masters, &cl)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open masters", err)
	}

	skips := &skipCounter{}
	svc := &changelog.Service{
		Rows:     rows,
		Masters:  masters,
		Sink:     openSink(cfg.Kafka, nil, &cl),
		Logger:   logger,
		Recorder: skips,
	}
	entries, err := svc.ChangeLog(ctx, reception)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build change log", err)
	}
	if entries == nil {
		entries = []changelog.LogEntry{}
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if err := out.Success(map[string]any{"receptionNumber": reception, "entries": entries}, func(w io.Writer) {
		writeEntries(w, reception, entries)
	}); err != nil {
		return err
	}

	if skips.skipped > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d log rows skipped", skips.skipped))
	}
	return nil
}

// writeEntries renders entries for a terminal.
func writeEntries(w io.Writer, reception string, entries []changelog.LogEntry) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No log rows for reception %s.\n", reception)
		return
	}
	for i, e := range entries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s  %s  (%s, %d changes)\n",
			e.Timestamp.In(changelog.YearZone).Format(time.DateTime), e.OrderType, e.LogID, e.ChangesCount)
		for _, c := range e.Changes {
			fmt.Fprintf(w, "  - %s\n", strings.ReplaceAll(c, "\n", "\n    "))
		}
	}
}
