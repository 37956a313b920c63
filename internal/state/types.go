// Package state provides observable state containers.
// These containers emit events when state changes, allowing any frontend
// to subscribe and update its view accordingly.
package state

import (
	"github.com/cloudvault/cloudvault-cli/internal/events"
	"github.com/cloudvault/cloudvault-cli/internal/models"
)

// State event types
const (
	EventFileListChanged    events.EventType = "file_list_changed"
	EventFileListLoading    events.EventType = "file_list_loading"
	EventFileListError      events.EventType = "file_list_error"
	EventStarChanged        events.EventType = "star_changed"
	EventSortChanged        events.EventType = "sort_changed"
	EventCurrentPathChanged events.EventType = "current_path_changed"
)

// Sort keys
const (
	SortByName = "name"
	SortBySize = "size"
	SortByDate = "date"
)

// FileListChangedEvent is published when the file list changes.
type FileListChangedEvent struct {
	events.BaseEvent
	Items []models.FileRecord
	Seq   uint64 // refresh sequence that produced the list, 0 for local edits
}

// FileListLoadingEvent is published when a refresh starts or stops.
type FileListLoadingEvent struct {
	events.BaseEvent
	Loading bool
}

// FileListErrorEvent is published when a refresh fails.
type FileListErrorEvent struct {
	events.BaseEvent
	Error error
}

// StarChangedEvent is published when a record is starred or unstarred.
type StarChangedEvent struct {
	events.BaseEvent
	Name    string
	Starred bool
}

// SortChangedEvent is published when the sort order changes.
type SortChangedEvent struct {
	events.BaseEvent
	SortBy    string
	Ascending bool
}

// CurrentPathChangedEvent is published when the current folder changes.
type CurrentPathChangedEvent struct {
	events.BaseEvent
	FolderPath string
}

// NewFileListChangedEvent creates a new FileListChangedEvent.
func NewFileListChangedEvent(items []models.FileRecord, seq uint64) *FileListChangedEvent {
	return &FileListChangedEvent{
		BaseEvent: events.NewBase(EventFileListChanged),
		Items:     items,
		Seq:       seq,
	}
}

// NewFileListLoadingEvent creates a new FileListLoadingEvent.
func NewFileListLoadingEvent(loading bool) *FileListLoadingEvent {
	return &FileListLoadingEvent{
		BaseEvent: events.NewBase(EventFileListLoading),
		Loading:   loading,
	}
}

// NewFileListErrorEvent creates a new FileListErrorEvent.
func NewFileListErrorEvent(err error) *FileListErrorEvent {
	return &FileListErrorEvent{
		BaseEvent: events.NewBase(EventFileListError),
		Error:     err,
	}
}

// NewStarChangedEvent creates a new StarChangedEvent.
func NewStarChangedEvent(name string, starred bool) *StarChangedEvent {
	return &StarChangedEvent{
		BaseEvent: events.NewBase(EventStarChanged),
		Name:      name,
		Starred:   starred,
	}
}

// NewSortChangedEvent creates a new SortChangedEvent.
func NewSortChangedEvent(sortBy string, ascending bool) *SortChangedEvent {
	return &SortChangedEvent{
		BaseEvent: events.NewBase(EventSortChanged),
		SortBy:    sortBy,
		Ascending: ascending,
	}
}

// NewCurrentPathChangedEvent creates a new CurrentPathChangedEvent.
func NewCurrentPathChangedEvent(folderPath string) *CurrentPathChangedEvent {
	return &CurrentPathChangedEvent{
		BaseEvent:  events.NewBase(EventCurrentPathChanged),
		FolderPath: folderPath,
	}
}
