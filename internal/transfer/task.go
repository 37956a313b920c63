// Package transfer tracks upload tasks and runs batches of them.
package transfer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when a task is moved backwards or out of a
// terminal state.
var ErrInvalidTransition = errors.New("invalid task state transition")

// TaskStatus represents the current state of an upload task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"   // Created, waiting for its turn
	StatusUploading TaskStatus = "uploading" // Request in flight
	StatusSuccess   TaskStatus = "success"   // Server accepted the file
	StatusError     TaskStatus = "error"     // Failed, cancelled or skipped
)

// IsTerminal reports whether no further transition is possible.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError
}

// validTransitions lists the forward-only edges. There is no retry edge.
var validTransitions = map[TaskStatus][]TaskStatus{
	StatusPending:   {StatusUploading, StatusError},
	StatusUploading: {StatusSuccess, StatusError},
}

func canTransition(from, to TaskStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// UploadTask is one file of an upload batch.
// Thread-safe: Use the provided methods to update state.
type UploadTask struct {
	ID       string
	BatchID  string
	Filename string
	Size     int64

	status      TaskStatus
	err         error
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time

	mu sync.RWMutex
}

// NewUploadTask creates a task in StatusPending.
func NewUploadTask(batchID, filename string, size int64) *UploadTask {
	return &UploadTask{
		ID:        uuid.NewString(),
		BatchID:   batchID,
		Filename:  filename,
		Size:      size,
		status:    StatusPending,
		createdAt: time.Now(),
	}
}

// Status returns the current status (thread-safe).
func (t *UploadTask) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Err returns the failure cause, if any (thread-safe).
func (t *UploadTask) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Start moves pending to uploading.
func (t *UploadTask) Start() error {
	return t.transition(StatusUploading, nil)
}

// Succeed moves uploading to success.
func (t *UploadTask) Succeed() error {
	return t.transition(StatusSuccess, nil)
}

// Fail moves a non-terminal task to error.
func (t *UploadTask) Fail(err error) error {
	if err == nil {
		err = errors.New("upload failed")
	}
	return t.transition(StatusError, err)
}

func (t *UploadTask) transition(to TaskStatus, err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !canTransition(t.status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, to)
	}

	now := time.Now()
	t.status = to
	switch to {
	case StatusUploading:
		t.startedAt = now
	case StatusSuccess, StatusError:
		t.completedAt = now
		t.err = err
	}
	return nil
}

// Duration is the time spent uploading, zero until the task started.
func (t *UploadTask) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.startedAt.IsZero() {
		return 0
	}
	if t.completedAt.IsZero() {
		return time.Since(t.startedAt)
	}
	return t.completedAt.Sub(t.startedAt)
}

// TaskSnapshot is a point-in-time copy of an UploadTask.
type TaskSnapshot struct {
	ID          string
	BatchID     string
	Filename    string
	Size        int64
	Status      TaskStatus
	Err         error
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
}

// Snapshot returns a copy of the task for safe external use.
func (t *UploadTask) Snapshot() TaskSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TaskSnapshot{
		ID:          t.ID,
		BatchID:     t.BatchID,
		Filename:    t.Filename,
		Size:        t.Size,
		Status:      t.status,
		Err:         t.err,
		CreatedAt:   t.createdAt,
		StartedAt:   t.startedAt,
		CompletedAt: t.completedAt,
	}
}
