package state

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/cloudvault/cloudvault-cli/internal/events"
	"github.com/cloudvault/cloudvault-cli/internal/models"
)

// ErrNotFound is returned for names not in the current list.
var ErrNotFound = errors.New("file not found in current list")

// FileListState is an observable file list container.
// It holds the user's records and publishes events on changes.
// Thread-safe for concurrent access.
//
// Refresh results are applied through a sequence guard: Begin issues a
// sequence number and Apply discards any result older than the last one
// applied, so overlapping refreshes resolve to the last-issued one.
type FileListState struct {
	eventBus *events.EventBus

	items      []models.FileRecord
	starred    map[string]bool
	sortBy     string
	ascending  bool
	folderPath string
	loading    bool
	lastError  error

	issued  uint64 // last sequence handed out by Begin
	applied uint64 // last sequence accepted by Apply

	mu sync.RWMutex
}

// NewFileListState creates a new FileListState. eventBus may be nil.
func NewFileListState(eventBus *events.EventBus) *FileListState {
	return &FileListState{
		eventBus:  eventBus,
		items:     make([]models.FileRecord, 0),
		starred:   make(map[string]bool),
		sortBy:    SortByName,
		ascending: true,
	}
}

// Begin issues the sequence number for a new refresh.
func (s *FileListState) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Apply replaces the list with records fetched by refresh seq.
// Returns false, leaving the list untouched, when a newer result was
// already applied or the list was cleared after seq was issued.
func (s *FileListState) Apply(seq uint64, records []models.FileRecord) bool {
	s.mu.Lock()
	if seq <= s.applied {
		s.mu.Unlock()
		return false
	}
	s.applied = seq

	present := make(map[string]bool, len(records))
	items := make([]models.FileRecord, len(records))
	for i, r := range records {
		r.Starred = s.starred[r.Name]
		items[i] = r
		present[r.Name] = true
	}
	for name := range s.starred {
		if !present[name] {
			delete(s.starred, name)
		}
	}

	s.items = items
	s.sortItems()
	s.loading = false
	s.lastError = nil
	itemsCopy := s.copyItemsLocked()
	s.mu.Unlock()

	s.publish(NewFileListChangedEvent(itemsCopy, seq))
	return true
}

// Items returns a copy of the current items.
func (s *FileListState) Items() []models.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyItemsLocked()
}

// Visible returns the items under the current folder. With no folder set,
// everything is visible.
func (s *FileListState) Visible() []models.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.folderPath == "" {
		return s.copyItemsLocked()
	}
	prefix := s.folderPath + "/"
	result := make([]models.FileRecord, 0)
	for _, item := range s.items {
		if strings.HasPrefix(item.Name, prefix) {
			result = append(result, item)
		}
	}
	return result
}

func (s *FileListState) copyItemsLocked() []models.FileRecord {
	result := make([]models.FileRecord, len(s.items))
	copy(result, s.items)
	return result
}

// SetLoading marks the list as loading and publishes an event.
func (s *FileListState) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()

	s.publish(NewFileListLoadingEvent(loading))
}

// IsLoading returns whether the list is currently loading.
func (s *FileListState) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// SetError records a failed refresh. The items are kept.
func (s *FileListState) SetError(err error) {
	s.mu.Lock()
	s.lastError = err
	s.loading = false
	s.mu.Unlock()

	if err != nil {
		s.publish(NewFileListErrorEvent(err))
	}
}

// GetError returns the last error.
func (s *FileListState) GetError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// SetCurrentFolder narrows Visible to a folder. Empty means the root.
func (s *FileListState) SetCurrentFolder(folderPath string) {
	folderPath = strings.Trim(folderPath, "/")
	s.mu.Lock()
	s.folderPath = folderPath
	s.mu.Unlock()

	s.publish(NewCurrentPathChangedEvent(folderPath))
}

// GetCurrentFolder returns the current folder path.
func (s *FileListState) GetCurrentFolder() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.folderPath
}

// ToggleStar flips the local starred flag of name and returns the new value.
// Stars are not sent to the server.
func (s *FileListState) ToggleStar(name string) (bool, error) {
	s.mu.Lock()
	idx := -1
	for i := range s.items {
		if s.items[i].Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false, ErrNotFound
	}

	starred := !s.items[idx].Starred
	s.items[idx].Starred = starred
	if starred {
		s.starred[name] = true
	} else {
		delete(s.starred, name)
	}
	itemsCopy := s.copyItemsLocked()
	s.mu.Unlock()

	s.publish(NewStarChangedEvent(name, starred))
	s.publish(NewFileListChangedEvent(itemsCopy, 0))
	return starred, nil
}

// Starred returns the starred items.
func (s *FileListState) Starred() []models.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.FileRecord, 0, len(s.starred))
	for _, item := range s.items {
		if item.Starred {
			result = append(result, item)
		}
	}
	return result
}

// SetSort updates the sort order and re-sorts the list.
func (s *FileListState) SetSort(sortBy string, ascending bool) {
	switch sortBy {
	case SortByName, SortBySize, SortByDate:
	default:
		sortBy = SortByName
	}

	s.mu.Lock()
	s.sortBy = sortBy
	s.ascending = ascending
	s.sortItems()
	itemsCopy := s.copyItemsLocked()
	s.mu.Unlock()

	s.publish(NewSortChangedEvent(sortBy, ascending))
	s.publish(NewFileListChangedEvent(itemsCopy, 0))
}

// GetSort returns the current sort settings.
func (s *FileListState) GetSort() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortBy, s.ascending
}

// sortItems sorts the items by current sort settings (must hold lock).
func (s *FileListState) sortItems() {
	if len(s.items) == 0 {
		return
	}

	sort.SliceStable(s.items, func(i, j int) bool {
		a, b := s.items[i], s.items[j]

		// Folders always come first
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}

		// Descending compares with the operands swapped so equal keys
		// keep their relative order.
		if !s.ascending {
			a, b = b, a
		}

		switch s.sortBy {
		case SortBySize:
			return a.SizeBytes < b.SizeBytes
		case SortByDate:
			ta, _ := a.UploadTime()
			tb, _ := b.UploadTime()
			return ta.Before(tb)
		default:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	})
}

// Clear empties the list and forgets stars. Refreshes issued before the
// call can no longer be applied.
func (s *FileListState) Clear() {
	s.mu.Lock()
	s.items = make([]models.FileRecord, 0)
	s.starred = make(map[string]bool)
	s.lastError = nil
	s.loading = false
	s.folderPath = ""
	s.applied = s.issued
	s.mu.Unlock()

	s.publish(NewFileListChangedEvent([]models.FileRecord{}, 0))
}

// Find looks up a record by name.
func (s *FileListState) Find(name string) (models.FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		if item.Name == name {
			return item, true
		}
	}
	return models.FileRecord{}, false
}

// Count returns the number of items.
func (s *FileListState) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *FileListState) publish(ev events.Event) {
	if s.eventBus != nil {
		s.eventBus.Publish(ev)
	}
}
