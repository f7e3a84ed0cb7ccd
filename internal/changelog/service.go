package changelog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/ordertrail/internal/master"
)

// RowLister lists the stored log rows of one reception.
type RowLister interface {
	ListRows(ctx context.Context, receptionNumber string) ([]LogRow, error)
}

// Sink receives built entries, e.g. to forward them to a message broker.
type Sink interface {
	Publish(ctx context.Context, entries []LogEntry) error
}

// Service builds change logs for receptions on demand.
type Service struct {
	Rows     RowLister
	Masters  master.Source
	Sink     Sink // optional
	Logger   *slog.Logger
	Recorder Recorder
}

// ChangeLog lists the reception's rows, prefetches the masters they need
// and builds the change log, newest first.
//
// Listing and prefetch failures are returned. Skipped rows are logged
// and a sink failure is logged without failing the call.
func (s *Service) ChangeLog(ctx context.Context, receptionNumber string) ([]LogEntry, error) {
	rows, err := s.Rows.ListRows(ctx, receptionNumber)
	if err != nil {
		return nil, fmt.Errorf("list rows for reception %q: %w", receptionNumber, err)
	}

	loader, err := Prefetch(ctx, rows, s.Masters)
	if err != nil {
		return nil, err
	}

	b := &Builder{Loader: loader, Logger: s.logger(), Recorder: s.Recorder}
	entries, _ := b.Build(ctx, rows)

	if s.Sink != nil && len(entries) > 0 {
		if err := s.Sink.Publish(ctx, entries); err != nil {
			s.logger().Warn("publish change log failed",
				"reception", receptionNumber,
				"entries", len(entries),
				"error", err)
		}
	}
	return entries, nil
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}
