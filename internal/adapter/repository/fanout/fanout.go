package fanout

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/V4T54L/hekad-gateway/internal/domain"
)

// Sink writes every record to all of its sinks. A failing sink does not
// stop the others; their errors are combined.
type Sink struct {
	sinks []domain.RecordSink
}

// New creates a fan-out over sinks, skipping nil entries.
func New(sinks ...domain.RecordSink) *Sink {
	s := &Sink{}
	for _, sink := range sinks {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
	return s
}

// Len returns the number of sinks.
func (s *Sink) Len() int {
	return len(s.sinks)
}

func (s *Sink) Write(ctx context.Context, record []byte) error {
	var result *multierror.Error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, record); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (s *Sink) Close() error {
	var result *multierror.Error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
