package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ordertrail/internal/logstore"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Database string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import FILE.jsonl",
		Short: "Append log rows from a JSONL file",
		Long: `Append log rows, one JSON object per line, to the SQLite log store.

Rows whose logId already exists are left untouched. Rows without a logId
get a fresh UUIDv7, so importing the same id-less file twice duplicates
those rows. Use "-" to read from stdin.

Exit codes:
  0 - All lines imported
  1 - A line could not be parsed or stored (earlier lines are kept)
  2 - Command error (database cannot be opened, file not found)

Examples:
  ordertrail import --db ./ordertrail.db rows.jsonl
  cat rows.jsonl | ordertrail import --db ./ordertrail.db -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runImport(ctx context.Context, opts *ImportOptions, cmd *cobra.Command, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open input", err)
		}
		defer f.Close()
		in = f
	}

	st, err := logstore.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	res, err := st.ImportJSONL(ctx, in)
	opts.Logger().Debug("import finished", "read", res.Read, "inserted", res.Inserted, "minted", res.Minted)
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("import stopped after %d rows", res.Inserted), err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(res, func(w io.Writer) {
		fmt.Fprintf(w, "Read %d rows, inserted %d (%d ids minted, %d already present).\n",
			res.Read, res.Inserted, res.Minted, res.Read-res.Inserted)
	})
}
