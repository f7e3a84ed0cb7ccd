package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/ordertrail/internal/master"
)

// MasterOptions holds flags for the master subcommands.
type MasterOptions struct {
	*RootOptions
	Pebble string
	Badger string
	Dir    string
}

// NewMasterCommand creates the master command group.
func NewMasterCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "master",
		Short: "Manage per-year product masters",
	}
	cmd.AddCommand(newMasterLoadCommand(rootOpts))
	cmd.AddCommand(newMasterYearsCommand(rootOpts))
	return cmd
}

// masterWriter is a master store that accepts new masters.
type masterWriter interface {
	Put(ctx context.Context, m master.Master) error
	Close() error
}

func newMasterLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MasterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load FILES...",
		Short: "Validate master files and store them in Pebble or Badger",
		Long: `Validate {year}.cue or {year}.yaml master files against the master
schema and store each under its settings_{year} partition.

A file that fails validation aborts the load; files stored before it stay.

Examples:
  ordertrail master load --pebble ./masters.pebble masters/2024.cue masters/2025.yaml
  ordertrail master load --badger ./masters.badger masters/*.cue`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMasterLoad(cmd.Context(), opts, cmd, args)
		},
	}

	cmd.Flags().StringVar(&opts.Pebble, "pebble", "", "Pebble store directory")
	cmd.Flags().StringVar(&opts.Badger, "badger", "", "Badger store directory")
	cmd.MarkFlagsMutuallyExclusive("pebble", "badger")
	cmd.MarkFlagsOneRequired("pebble", "badger")

	return cmd
}

func openMasterWriter(opts *MasterOptions) (masterWriter, error) {
	if opts.Pebble != "" {
		return master.OpenPebbleStore(opts.Pebble)
	}
	return master.OpenBadgerStore(opts.Badger)
}

func runMasterLoad(ctx context.Context, opts *MasterOptions, cmd *cobra.Command, files []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openMasterWriter(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open master store", err)
	}
	defer st.Close()

	var years []int
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read master file", err)
		}
		m, err := master.DecodeFile(filepath.Base(path), data)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("invalid master %s", path), err)
		}
		if err := st.Put(ctx, m); err != nil {
			return WrapExitError(ExitCommandError, "failed to store master", err)
		}
		opts.Logger().Debug("master stored", "year", m.Year, "partition", master.Partition(m.Year), "items", len(m.Items))
		years = append(years, m.Year)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(map[string]any{"years": years}, func(w io.Writer) {
		for _, y := range years {
			fmt.Fprintf(w, "Stored %s\n", master.Partition(y))
		}
	})
}

func newMasterYearsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MasterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "years",
		Short:         "List the years with a master file in a directory",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			years, err := master.NewDirSource(opts.Dir).Years()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list masters", err)
			}
			if years == nil {
				years = []int{}
			}
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(map[string]any{"years": years}, func(w io.Writer) {
				for _, y := range years {
					fmt.Fprintln(w, y)
				}
			})
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "masters", "", "directory of master files (required)")
	_ = cmd.MarkFlagRequired("masters")

	return cmd
}
