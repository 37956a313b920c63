package transfer

import (
	"sync"

	"github.com/cloudvault/cloudvault-cli/internal/events"
)

// QueueStats holds statistics about the upload queue.
type QueueStats struct {
	Pending   int
	Uploading int
	Succeeded int
	Failed    int
}

// Total returns total number of tasks in queue.
func (s QueueStats) Total() int {
	return s.Pending + s.Uploading + s.Succeeded + s.Failed
}

// Queue is a passive upload tracker that publishes events for the view.
// It does not execute uploads; callers drive each task through
// Start, Complete and Fail.
type Queue struct {
	tasks     []*UploadTask
	tasksByID map[string]*UploadTask
	mu        sync.RWMutex

	eventBus *events.EventBus
}

// NewQueue creates a new upload queue. eventBus may be nil.
func NewQueue(eventBus *events.EventBus) *Queue {
	return &Queue{
		tasks:     make([]*UploadTask, 0),
		tasksByID: make(map[string]*UploadTask),
		eventBus:  eventBus,
	}
}

// Track registers a new pending task.
func (q *Queue) Track(batchID, filename string, size int64) *UploadTask {
	task := NewUploadTask(batchID, filename, size)

	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.tasksByID[task.ID] = task
	q.mu.Unlock()

	q.publish(events.EventUploadQueued, task)
	return task
}

// Start marks the task as uploading.
func (q *Queue) Start(task *UploadTask) error {
	if err := task.Start(); err != nil {
		return err
	}
	q.publish(events.EventUploadStarted, task)
	return nil
}

// Complete marks the task as successful.
func (q *Queue) Complete(task *UploadTask) error {
	if err := task.Succeed(); err != nil {
		return err
	}
	q.publish(events.EventUploadCompleted, task)
	return nil
}

// Fail marks the task as failed with cause.
func (q *Queue) Fail(task *UploadTask, cause error) error {
	if err := task.Fail(cause); err != nil {
		return err
	}
	q.publish(events.EventUploadFailed, task)
	return nil
}

// Get returns a task by ID.
func (q *Queue) Get(id string) (*UploadTask, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	task, ok := q.tasksByID[id]
	return task, ok
}

// Snapshots returns copies of all tasks in creation order.
func (q *Queue) Snapshots() []TaskSnapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]TaskSnapshot, len(q.tasks))
	for i, task := range q.tasks {
		result[i] = task.Snapshot()
	}
	return result
}

// Stats counts tasks by status.
func (q *Queue) Stats() QueueStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var stats QueueStats
	for _, task := range q.tasks {
		switch task.Status() {
		case StatusPending:
			stats.Pending++
		case StatusUploading:
			stats.Uploading++
		case StatusSuccess:
			stats.Succeeded++
		case StatusError:
			stats.Failed++
		}
	}
	return stats
}

// ClearCompleted forgets every terminal task.
func (q *Queue) ClearCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.tasks[:0]
	removed := 0
	for _, task := range q.tasks {
		if task.Status().IsTerminal() {
			delete(q.tasksByID, task.ID)
			removed++
			continue
		}
		kept = append(kept, task)
	}
	q.tasks = kept
	return removed
}

func (q *Queue) publish(eventType events.EventType, task *UploadTask) {
	if q.eventBus == nil {
		return
	}
	snap := task.Snapshot()
	q.eventBus.Publish(&events.UploadEvent{
		BaseEvent: events.NewBase(eventType),
		TaskID:    snap.ID,
		BatchID:   snap.BatchID,
		Filename:  snap.Filename,
		Size:      snap.Size,
		Status:    string(snap.Status),
		Error:     snap.Err,
		Duration:  task.Duration(),
	})
}
