package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/cloudvault/cloudvault-cli/internal/events"
)

// detachTimeout bounds how long Detach waits for the batch summary event.
const detachTimeout = 2 * time.Second

// BatchUI renders one bar per file of an upload batch using mpb.
// It is driven by upload events from the event bus.
type BatchUI struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	totalFiles int
	started    int32 // Atomic counter for file index (1, 2, 3, ...)
	completed  int32

	mu   sync.Mutex
	bars map[string]*FileBar // task ID -> bar

	bus  *events.EventBus
	sub  <-chan events.Event
	stop chan struct{}
	done chan struct{}
}

// FileBar is a single file's bar.
type FileBar struct {
	bar       *mpb.Bar
	ui        *BatchUI
	index     int
	name      string
	size      int64
	total     int64
	startTime time.Time
	finished  bool
}

// NewBatchUI creates a batch UI for totalFiles files writing to out.
// Bars are only drawn when out is a terminal; otherwise one line per
// event is printed.
func NewBatchUI(totalFiles int, out io.Writer) *BatchUI {
	if out == nil {
		out = os.Stderr
	}
	isTerminal := IsTerminal(out)

	var p *mpb.Progress
	if isTerminal {
		enableANSIOnWindows(out.(*os.File))
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(150*time.Millisecond),
			mpb.WithWidth(80),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &BatchUI{
		progress:   p,
		out:        out,
		isTerminal: isTerminal,
		totalFiles: totalFiles,
		bars:       make(map[string]*FileBar),
	}
}

// AddFileBar creates the bar for a file.
func (u *BatchUI) AddFileBar(name string, size int64) *FileBar {
	index := int(atomic.AddInt32(&u.started, 1))

	// mpb needs a positive total; empty files complete in one step
	total := size
	if total <= 0 {
		total = 1
	}

	fb := &FileBar{
		ui:        u,
		index:     index,
		name:      name,
		size:      size,
		total:     total,
		startTime: time.Now(),
	}

	if u.isTerminal {
		label := fmt.Sprintf("[%d/%d] %s", index, u.totalFiles, truncatePath(name, 2))
		fb.bar = u.progress.New(total,
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(label, decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.Any(func(s decor.Statistics) string {
					return formatSize(size)
				}, decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	}
	return fb
}

// Start marks the file as in flight.
func (f *FileBar) Start() {
	f.startTime = time.Now()
	if !f.ui.isTerminal {
		fmt.Fprintf(f.ui.out, "Uploading [%d/%d]: %s (%s)\n", f.index, f.ui.totalFiles, f.name, formatSize(f.size))
	}
}

// Complete finishes the bar and prints a one-line summary. elapsed is the
// task's upload time; zero falls back to the time since Start.
func (f *FileBar) Complete(elapsed time.Duration, err error) {
	if f.finished {
		return
	}
	f.finished = true
	if elapsed <= 0 {
		elapsed = time.Since(f.startTime)
	}
	elapsed = elapsed.Round(time.Millisecond)

	var msg string
	if err == nil {
		if f.bar != nil {
			f.bar.SetCurrent(f.total)
		}
		msg = fmt.Sprintf("✓ %s (%s, %s)\n", f.name, formatSize(f.size), elapsed)
	} else {
		if f.bar != nil {
			f.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s: %v\n", f.name, err)
	}

	// Write through mpb while bars are drawn so the output lands above them
	if f.ui.isTerminal {
		_, _ = f.ui.progress.Write([]byte(msg))
	} else {
		fmt.Fprint(f.ui.out, msg)
	}
	atomic.AddInt32(&f.ui.completed, 1)
}

// Completed returns the number of finished files.
func (u *BatchUI) Completed() int {
	return int(atomic.LoadInt32(&u.completed))
}

// Attach subscribes to upload events. Call it before the batch starts and
// Detach after it returns.
func (u *BatchUI) Attach(bus *events.EventBus) {
	u.bus = bus
	u.sub = bus.SubscribeAll()
	u.stop = make(chan struct{})
	u.done = make(chan struct{})
	go u.consume()
}

func (u *BatchUI) consume() {
	defer close(u.done)
	for {
		select {
		case <-u.stop:
			return
		case ev, ok := <-u.sub:
			if !ok {
				return
			}
			switch e := ev.(type) {
			case *events.UploadEvent:
				u.handle(e)
			case *events.BatchCompleteEvent:
				return
			}
		}
	}
}

func (u *BatchUI) handle(e *events.UploadEvent) {
	u.mu.Lock()
	fb, ok := u.bars[e.TaskID]
	if !ok {
		fb = u.AddFileBar(e.Filename, e.Size)
		u.bars[e.TaskID] = fb
	}
	u.mu.Unlock()

	switch e.Type() {
	case events.EventUploadStarted:
		fb.Start()
	case events.EventUploadCompleted:
		fb.Complete(e.Duration, nil)
	case events.EventUploadFailed:
		fb.Complete(e.Duration, e.Error)
	}
}

// Detach waits for the batch summary, aborts bars whose events were
// dropped, and releases the terminal.
func (u *BatchUI) Detach() {
	if u.done != nil {
		select {
		case <-u.done:
		case <-time.After(detachTimeout):
			close(u.stop)
			<-u.done
		}
		u.bus.UnsubscribeAll(u.sub)
	}

	u.mu.Lock()
	for _, fb := range u.bars {
		if !fb.finished && fb.bar != nil {
			fb.bar.Abort(true)
		}
	}
	u.mu.Unlock()

	u.progress.Wait()
}

// formatSize renders bytes with binary units.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// truncatePath keeps the last maxComponents path segments.
// Example: truncatePath("a/b/c/file.txt", 2) → "…/c/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return path
	}
	return "…/" + strings.Join(parts[len(parts)-maxComponents:], "/")
}
