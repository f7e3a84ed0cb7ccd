package metrics

import (
	"context"

	"github.com/roach88/ordertrail/internal/changelog"
)

// CountingSink wraps a sink and counts published entries and failures.
type CountingSink struct {
	Next changelog.Sink
	Reg  *Registry
}

// Publish implements changelog.Sink.
func (s *CountingSink) Publish(ctx context.Context, entries []changelog.LogEntry) error {
	if err := s.Next.Publish(ctx, entries); err != nil {
		s.Reg.PublishFailures.Inc()
		return err
	}
	s.Reg.EntriesPublished.Add(float64(len(entries)))
	return nil
}
