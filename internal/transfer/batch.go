package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cloudvault/cloudvault-cli/internal/events"
)

// File is one entry of an upload batch.
type File struct {
	Name    string
	Content []byte
}

// UploadFunc performs a single upload.
type UploadFunc func(ctx context.Context, file File) error

// BatchResult is the outcome of a batch, in submission order.
type BatchResult struct {
	BatchID  string
	Tasks    []TaskSnapshot
	Duration time.Duration
}

// Succeeded counts successful tasks.
func (r BatchResult) Succeeded() int {
	n := 0
	for _, t := range r.Tasks {
		if t.Status == StatusSuccess {
			n++
		}
	}
	return n
}

// Failed counts failed tasks.
func (r BatchResult) Failed() int {
	return len(r.Tasks) - r.Succeeded()
}

// RunBatch uploads files strictly one after another. A failure never stops
// the remaining files. Once ctx is done, every task not yet started is
// marked as failed with the context error.
func (q *Queue) RunBatch(ctx context.Context, files []File, upload UploadFunc) BatchResult {
	start := time.Now()
	batchID := uuid.NewString()

	tasks := make([]*UploadTask, len(files))
	for i, f := range files {
		tasks[i] = q.Track(batchID, f.Name, int64(len(f.Content)))
	}

	for i, f := range files {
		task := tasks[i]

		if err := ctx.Err(); err != nil {
			_ = q.Fail(task, err)
			continue
		}

		_ = q.Start(task)
		if err := upload(ctx, f); err != nil {
			_ = q.Fail(task, err)
			continue
		}
		_ = q.Complete(task)
	}

	result := BatchResult{
		BatchID:  batchID,
		Tasks:    make([]TaskSnapshot, len(tasks)),
		Duration: time.Since(start),
	}
	for i, task := range tasks {
		result.Tasks[i] = task.Snapshot()
	}

	if q.eventBus != nil {
		q.eventBus.Publish(&events.BatchCompleteEvent{
			BaseEvent: events.NewBase(events.EventBatchComplete),
			BatchID:   batchID,
			Total:     len(tasks),
			Succeeded: result.Succeeded(),
			Failed:    result.Failed(),
			Duration:  result.Duration,
		})
	}

	return result
}
