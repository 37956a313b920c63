package state

import (
	"sync"
	"testing"
	"time"

	"github.com/cloudvault/cloudvault-cli/internal/events"
	"github.com/cloudvault/cloudvault-cli/internal/models"
)

func rec(name string, size int64, uploaded string) models.FileRecord {
	kind := models.KindFile
	if models.IsFolderMarker(name) {
		kind = models.KindFolder
	}
	return models.FileRecord{Name: name, SizeBytes: size, UploadedAt: uploaded, Kind: kind}
}

func names(items []models.FileRecord) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Name
	}
	return out
}

func TestNewFileListState(t *testing.T) {
	state := NewFileListState(nil)

	if len(state.Items()) != 0 {
		t.Error("Initial items should be empty")
	}
	if sortBy, asc := state.GetSort(); sortBy != SortByName || !asc {
		t.Errorf("default sort = %s/%v, want name/asc", sortBy, asc)
	}
}

func TestFileListStateApply(t *testing.T) {
	eventBus := events.NewEventBus(100)
	defer eventBus.Close()
	ch := eventBus.Subscribe(EventFileListChanged)

	state := NewFileListState(eventBus)
	seq := state.Begin()

	ok := state.Apply(seq, []models.FileRecord{
		rec("b.txt", 100, ""),
		rec("Reports/.folder", 0, ""),
		rec("a.txt", 200, ""),
	})
	if !ok {
		t.Fatal("Apply should accept the first result")
	}

	got := names(state.Items())
	want := []string{"Reports/.folder", "a.txt", "b.txt"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v (folders first, then name)", got, want)
		}
	}

	select {
	case ev := <-ch:
		changed := ev.(*FileListChangedEvent)
		if changed.Seq != seq || len(changed.Items) != 3 {
			t.Errorf("unexpected event: seq=%d items=%d", changed.Seq, len(changed.Items))
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no change event")
	}
}

// TestFileListStateOutOfOrderRefresh checks that the last-issued refresh wins
// even when an older one completes later.
func TestFileListStateOutOfOrderRefresh(t *testing.T) {
	state := NewFileListState(nil)

	first := state.Begin()
	second := state.Begin()

	if !state.Apply(second, []models.FileRecord{rec("new.txt", 1, "")}) {
		t.Fatal("newest result should apply")
	}
	if state.Apply(first, []models.FileRecord{rec("old.txt", 1, "")}) {
		t.Fatal("stale result must be discarded")
	}

	items := state.Items()
	if len(items) != 1 || items[0].Name != "new.txt" {
		t.Errorf("items = %v, want [new.txt]", names(items))
	}
}

func TestFileListStateClearInvalidatesInFlight(t *testing.T) {
	state := NewFileListState(nil)

	seq := state.Begin()
	state.Clear()

	if state.Apply(seq, []models.FileRecord{rec("leak.txt", 1, "")}) {
		t.Error("a refresh issued before Clear must not repopulate the list")
	}
	if state.Count() != 0 {
		t.Errorf("Count = %d, want 0", state.Count())
	}

	next := state.Begin()
	if !state.Apply(next, []models.FileRecord{rec("fresh.txt", 1, "")}) {
		t.Error("a refresh issued after Clear should apply")
	}
}

func TestFileListStateStarSurvivesRefresh(t *testing.T) {
	eventBus := events.NewEventBus(100)
	defer eventBus.Close()
	starCh := eventBus.Subscribe(EventStarChanged)

	state := NewFileListState(eventBus)
	state.Apply(state.Begin(), []models.FileRecord{rec("a.txt", 1, ""), rec("b.txt", 1, "")})

	starred, err := state.ToggleStar("a.txt")
	if err != nil || !starred {
		t.Fatalf("ToggleStar = %v, %v", starred, err)
	}

	select {
	case ev := <-starCh:
		if e := ev.(*StarChangedEvent); e.Name != "a.txt" || !e.Starred {
			t.Errorf("unexpected star event %+v", e)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no star event")
	}

	state.Apply(state.Begin(), []models.FileRecord{rec("a.txt", 2, ""), rec("c.txt", 1, "")})

	item, ok := state.Find("a.txt")
	if !ok || !item.Starred {
		t.Error("star should survive a refresh while the name is present")
	}
	if len(state.Starred()) != 1 {
		t.Errorf("Starred() = %d items, want 1", len(state.Starred()))
	}

	// Dropped names forget their star
	state.Apply(state.Begin(), []models.FileRecord{rec("c.txt", 1, "")})
	state.Apply(state.Begin(), []models.FileRecord{rec("a.txt", 1, "")})
	if item, _ := state.Find("a.txt"); item.Starred {
		t.Error("star should not come back after the file disappeared")
	}
}

func TestFileListStateToggleStarUnknown(t *testing.T) {
	state := NewFileListState(nil)
	if _, err := state.ToggleStar("missing.txt"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFileListStateSort(t *testing.T) {
	state := NewFileListState(nil)
	state.Apply(state.Begin(), []models.FileRecord{
		rec("small.txt", 10, "2024-03-01T10:00:00"),
		rec("big.txt", 300, "2024-01-01T10:00:00"),
		rec("Docs/.folder", 0, "2024-05-01T10:00:00"),
		rec("mid.txt", 100, "2024-02-01T10:00:00"),
	})

	tests := []struct {
		sortBy    string
		ascending bool
		want      []string
	}{
		{SortBySize, true, []string{"Docs/.folder", "small.txt", "mid.txt", "big.txt"}},
		{SortBySize, false, []string{"Docs/.folder", "big.txt", "mid.txt", "small.txt"}},
		{SortByDate, true, []string{"Docs/.folder", "big.txt", "mid.txt", "small.txt"}},
		{SortByName, true, []string{"Docs/.folder", "big.txt", "mid.txt", "small.txt"}},
		{"bogus", false, []string{"Docs/.folder", "small.txt", "mid.txt", "big.txt"}},
	}

	for _, tt := range tests {
		state.SetSort(tt.sortBy, tt.ascending)
		got := names(state.Items())
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("sort %s asc=%v: got %v, want %v", tt.sortBy, tt.ascending, got, tt.want)
				break
			}
		}
	}
}

func TestFileListStateSortDescendingEqualKeys(t *testing.T) {
	state := NewFileListState(nil)
	state.Apply(state.Begin(), []models.FileRecord{
		rec("x.txt", 50, "not a date"),
		rec("a.txt", 50, ""),
		rec("b.txt", 50, "also not a date"),
		rec("c.txt", 50, "garbage"),
	})
	want := []string{"a.txt", "b.txt", "c.txt", "x.txt"}

	for _, sortBy := range []string{SortBySize, SortByDate} {
		state.SetSort(SortByName, true)
		state.SetSort(sortBy, false)
		got := names(state.Items())
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("sort %s desc with equal keys: got %v, want %v", sortBy, got, want)
				break
			}
		}
	}
}

func TestFileListStateCurrentFolder(t *testing.T) {
	state := NewFileListState(nil)
	state.Apply(state.Begin(), []models.FileRecord{
		rec("Reports/.folder", 0, ""),
		rec("Reports/q1.pdf", 5, ""),
		rec("notes.txt", 1, ""),
	})

	state.SetCurrentFolder("/Reports/")
	if got := state.GetCurrentFolder(); got != "Reports" {
		t.Errorf("GetCurrentFolder = %q, want Reports", got)
	}

	visible := state.Visible()
	if len(visible) != 2 {
		t.Errorf("Visible = %v, want the two Reports entries", names(visible))
	}

	state.SetCurrentFolder("")
	if len(state.Visible()) != 3 {
		t.Error("root should show everything")
	}
}

func TestFileListStateLoadingAndError(t *testing.T) {
	eventBus := events.NewEventBus(100)
	defer eventBus.Close()
	errCh := eventBus.Subscribe(EventFileListError)

	state := NewFileListState(eventBus)
	state.Apply(state.Begin(), []models.FileRecord{rec("a.txt", 1, "")})

	state.SetLoading(true)
	if !state.IsLoading() {
		t.Error("expected loading")
	}

	state.SetError(errTest)
	if state.IsLoading() {
		t.Error("error should end loading")
	}
	if state.GetError() != errTest {
		t.Error("GetError should return the recorded error")
	}
	if state.Count() != 1 {
		t.Error("a failed refresh keeps the current list")
	}

	select {
	case <-errCh:
	case <-time.After(100 * time.Millisecond):
		t.Error("no error event")
	}
}

func TestFileListStateConcurrentAccess(t *testing.T) {
	state := NewFileListState(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq := state.Begin()
			state.Apply(seq, []models.FileRecord{rec("a.txt", 1, "")})
			_ = state.Items()
			_, _ = state.ToggleStar("a.txt")
		}()
	}
	wg.Wait()

	if state.Count() != 1 {
		t.Errorf("Count = %d, want 1", state.Count())
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("list failed")
