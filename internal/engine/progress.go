package engine

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/perfmap/perfmap/internal/style"
	pkgEvents "github.com/perfmap/perfmap/pkg/events"
)

// sheetState tracks the display line of one sheet.
type sheetState struct {
	name    string
	status  string
	percent int
	done    bool
	failed  bool
	err     string
}

func (s *sheetState) String() string {
	switch {
	case s.failed:
		return fmt.Sprintf("%s %s %s", style.ErrorIcon(), s.name, style.MutedStyle.Render(s.err))
	case s.done:
		return fmt.Sprintf("%s %s", style.SuccessIcon(), s.name)
	default:
		return fmt.Sprintf("  %s %s", s.name, style.MutedStyle.Render(fmt.Sprintf("%s (%d%%)", s.status, s.percent)))
	}
}

// CLIProgressTracker renders analysis progress as a single spinner whose
// suffix lists every sheet seen so far. When the file completes the spinner
// is replaced by a final per-sheet summary.
type CLIProgressTracker struct {
	mu      sync.Mutex
	writer  io.Writer
	spinner style.Spinner
	sheets  []*sheetState
	index   map[string]*sheetState
	done    chan struct{}
}

// NewProgressTracker creates a progress tracker writing to writer.
func NewProgressTracker(writer io.Writer) *CLIProgressTracker {
	return &CLIProgressTracker{
		writer: writer,
		index:  make(map[string]*sheetState),
	}
}

// StartListening processes analysis events in its own goroutine.
func (pt *CLIProgressTracker) StartListening(progressChan <-chan pkgEvents.ProgressEvent) {
	pt.mu.Lock()
	pt.done = make(chan struct{})
	pt.spinner = style.NewSpinner(pt.writer)
	pt.mu.Unlock()

	go func() {
		defer close(pt.done)
		for event := range progressChan {
			pt.handle(event)
		}
	}()
}

// StopListening waits for the final summary to be written.
func (pt *CLIProgressTracker) StopListening() {
	pt.mu.Lock()
	done := pt.done
	pt.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (pt *CLIProgressTracker) handle(event pkgEvents.ProgressEvent) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	switch event.Type {
	case pkgEvents.EventFileStarted:
		pt.spinner.SetSuffix(" " + event.Status)
		pt.spinner.Start()
		return

	case pkgEvents.EventFileCompleted:
		pt.spinner.SetFinalMSG(pt.render() + "\n")
		pt.spinner.Stop()
		return

	case pkgEvents.EventSheetStarted:
		pt.sheet(event.Sheet).status = event.Status

	case pkgEvents.EventSheetProgress:
		s := pt.sheet(event.Sheet)
		s.status = event.Status
		s.percent = event.Percent

	case pkgEvents.EventSheetCompleted:
		s := pt.sheet(event.Sheet)
		s.done = true
		s.percent = 100

	case pkgEvents.EventSheetFailed:
		s := pt.sheet(event.Sheet)
		s.failed = true
		s.err = event.Error
	}

	pt.spinner.SetSuffix(" Analyzing sheets\n" + pt.render())
}

func (pt *CLIProgressTracker) sheet(name string) *sheetState {
	if s, ok := pt.index[name]; ok {
		return s
	}
	s := &sheetState{name: name}
	pt.index[name] = s
	pt.sheets = append(pt.sheets, s)
	return s
}

func (pt *CLIProgressTracker) render() string {
	lines := make([]string, len(pt.sheets))
	for i, s := range pt.sheets {
		lines[i] = "   " + s.String()
	}
	return strings.Join(lines, "\n")
}
