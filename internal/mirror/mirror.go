package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudvault/cloudvault-cli/internal/logging"
	"github.com/cloudvault/cloudvault-cli/internal/models"
	"github.com/cloudvault/cloudvault-cli/internal/util/filter"
)

// Source is the part of the file controller a mirror reads from.
type Source interface {
	Refresh(ctx context.Context) error
	Files() []models.FileRecord
	Download(ctx context.Context, filename string) ([]byte, error)
}

// Summary describes a finished mirror run.
type Summary struct {
	Destination string
	Copied      int
	Skipped     int // folder markers and filtered-out files
	Bytes       int64
	Failed      map[string]error
	Duration    time.Duration
}

// FailedCount returns the number of files that could not be copied.
func (s Summary) FailedCount() int {
	return len(s.Failed)
}

// Mirror copies every vault file to a sink.
type Mirror struct {
	source Source
	sink   Sink
	logger *logging.Logger

	// Filter limits which files are copied. The zero value copies all.
	Filter filter.Config

	// OnFile is called after each file with its outcome. Optional.
	OnFile func(name string, size int64, err error)
}

// New creates a Mirror. logger may be nil.
func New(source Source, sink Sink, logger *logging.Logger) *Mirror {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Mirror{source: source, sink: sink, logger: logger.Component("mirror")}
}

// Run refreshes the list and copies each file one at a time. A failed file
// is recorded and the run continues. Cancellation stops before the next
// file; the files not reached are not counted.
func (m *Mirror) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{
		Destination: m.sink.String(),
		Failed:      make(map[string]error),
	}

	if err := m.source.Refresh(ctx); err != nil {
		return summary, fmt.Errorf("failed to list vault files: %w", err)
	}

	for _, rec := range m.source.Files() {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		if rec.IsFolder() || !m.Filter.Matches(rec.Name) {
			summary.Skipped++
			continue
		}

		data, err := m.source.Download(ctx, rec.Name)
		if err == nil {
			err = m.sink.Put(ctx, rec.Name, data)
		}

		if err != nil {
			m.logger.Warnf("Failed to mirror %s: %v", rec.Name, err)
			summary.Failed[rec.Name] = err
		} else {
			m.logger.Debugf("Mirrored %s (%d bytes)", rec.Name, len(data))
			summary.Copied++
			summary.Bytes += int64(len(data))
		}

		if m.OnFile != nil {
			m.OnFile(rec.Name, int64(len(data)), err)
		}
	}

	summary.Duration = time.Since(start)
	m.logger.Infof("Mirror to %s finished: %d copied, %d failed", summary.Destination, summary.Copied, len(summary.Failed))
	return summary, nil
}
