package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/perfmap/perfmap/internal/analysis"
	"github.com/perfmap/perfmap/internal/dataset"
	"github.com/perfmap/perfmap/internal/execcontext"
	"github.com/perfmap/perfmap/internal/store"
	pkgEvents "github.com/perfmap/perfmap/pkg/events"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of sheets analyzed at once when no limit
// is configured.
const DefaultConcurrency = 4

// SheetStatus is the lifecycle state of one sheet analysis.
type SheetStatus string

const (
	SheetStatusCompleted SheetStatus = "completed"
	SheetStatusFailed    SheetStatus = "failed"
)

// SheetOutcome is the stored result of analyzing a single sheet. Failed
// outcomes keep the failure message so callers can report it later.
type SheetOutcome struct {
	Sheet    string           `json:"sheet" yaml:"sheet"`
	Status   SheetStatus      `json:"status" yaml:"status"`
	Result   *analysis.Result `json:"result,omitempty" yaml:"result,omitempty"`
	Error    string           `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration    `json:"duration" yaml:"duration"`
}

// Report summarizes the analysis of every sheet of one file.
type Report struct {
	File      string          `json:"file" yaml:"file"`
	FileID    string          `json:"file_id" yaml:"file_id"`
	RunID     string          `json:"run_id" yaml:"run_id"`
	StartTime time.Time       `json:"start_time" yaml:"start_time"`
	EndTime   time.Time       `json:"end_time" yaml:"end_time"`
	Duration  time.Duration   `json:"duration" yaml:"duration"`
	Sheets    []*SheetOutcome `json:"sheets" yaml:"sheets"`
}

// Failed returns the outcomes that did not complete.
func (r *Report) Failed() []*SheetOutcome {
	var failed []*SheetOutcome
	for _, s := range r.Sheets {
		if s.Status == SheetStatusFailed {
			failed = append(failed, s)
		}
	}
	return failed
}

// Results maps sheet names to the results of completed sheets.
func (r *Report) Results() map[string]*analysis.Result {
	results := make(map[string]*analysis.Result, len(r.Sheets))
	for _, s := range r.Sheets {
		if s.Status == SheetStatusCompleted {
			results[s.Sheet] = s.Result
		}
	}
	return results
}

// AnalyzeFunc computes the result of one sheet.
type AnalyzeFunc func(ds *dataset.Dataset, progress analysis.Progress) *analysis.Result

// Runner analyzes every sheet of a workbook concurrently and records each
// outcome in a result store.
type Runner struct {
	analyzer         *analysis.Analyzer
	results          store.Store[*SheetOutcome]
	progressListener pkgEvents.Listener
	concurrency      int
	analyze          AnalyzeFunc
}

// RunnerOption is a function that can be used to configure a Runner.
type RunnerOption func(*Runner)

// WithResultStore sets the store sheet outcomes are written to. The default
// is an unbounded in-memory store.
func WithResultStore(results store.Store[*SheetOutcome]) RunnerOption {
	return func(r *Runner) {
		r.results = results
	}
}

// WithAnalyzeFunc replaces the per-sheet analysis. In general this is only
// used for testing.
func WithAnalyzeFunc(fn AnalyzeFunc) RunnerOption {
	return func(r *Runner) {
		r.analyze = fn
	}
}

// WithConcurrency limits how many sheets are analyzed at once.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewRunner creates a runner with the specified progress listener. A nil
// listener discards progress events.
func NewRunner(analyzer *analysis.Analyzer, progressListener pkgEvents.Listener, options ...RunnerOption) *Runner {
	r := &Runner{
		analyzer:         analyzer,
		progressListener: progressListener,
		concurrency:      DefaultConcurrency,
	}

	for _, option := range options {
		option(r)
	}

	if r.analyze == nil {
		r.analyze = analyzer.Analyze
	}
	if r.results == nil {
		r.results = store.NewMemory[*SheetOutcome]()
	}
	if r.progressListener == nil {
		r.progressListener = &pkgEvents.NoopListener{}
	}

	return r
}

// SetProgressListener updates the progress listener for analysis events.
func (r *Runner) SetProgressListener(listener pkgEvents.Listener) {
	r.progressListener = listener
}

// Results returns the store sheet outcomes are written to.
func (r *Runner) Results() store.Store[*SheetOutcome] {
	return r.results
}

// Analyzer returns the analyzer the runner applies to each sheet.
func (r *Runner) Analyzer() *analysis.Analyzer {
	return r.analyzer
}

// ResultKey is the store key of a sheet's outcome.
func ResultKey(fileID, sheet string) string {
	return fileID + "/" + sheet
}

// FileID derives a stable identifier from file contents.
func FileID(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// AnalyzeFile loads the workbook at path and analyzes all of its sheets.
func (r *Runner) AnalyzeFile(ctx context.Context, path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	wb, err := dataset.Load(bytes.NewReader(data), path)
	if err != nil {
		return nil, err
	}

	return r.AnalyzeWorkbook(ctx, FileID(data), path, wb)
}

// AnalyzeWorkbook analyzes every sheet of wb. A failing sheet is recorded as
// failed and never cancels the others. The returned error is non-nil only
// when ctx ends before all sheets ran.
func (r *Runner) AnalyzeWorkbook(ctx context.Context, fileID, file string, wb *dataset.Workbook) (*Report, error) {
	report := &Report{
		File:      file,
		FileID:    fileID,
		RunID:     execcontext.NewRunID(),
		StartTime: time.Now(),
		Sheets:    make([]*SheetOutcome, len(wb.Sheets)),
	}

	progressChan := make(chan pkgEvents.ProgressEvent, 100)
	r.progressListener.StartListening(progressChan)

	emit := func(event pkgEvents.ProgressEvent) {
		event.Timestamp = time.Now()
		event.RunID = report.RunID
		event.FileID = fileID
		progressChan <- event
	}

	emit(pkgEvents.ProgressEvent{Type: pkgEvents.EventFileStarted, Status: "Analyzing " + file})

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for i, ds := range wb.Sheets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				report.Sheets[i] = r.record(fileID, &SheetOutcome{
					Sheet:  ds.Name,
					Status: SheetStatusFailed,
					Error:  err.Error(),
				}, emit)
				return nil
			}
			report.Sheets[i] = r.analyzeSheet(fileID, ds, emit)
			return nil
		})
	}
	_ = g.Wait()

	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime)

	emit(pkgEvents.ProgressEvent{
		Type:     pkgEvents.EventFileCompleted,
		Status:   "Complete",
		Percent:  100,
		Duration: report.Duration,
	})
	close(progressChan)
	r.progressListener.StopListening()

	log.Info().
		Str("file_id", fileID).
		Str("run_id", report.RunID).
		Int("sheets", len(report.Sheets)).
		Int("failed", len(report.Failed())).
		Dur("duration", report.Duration).
		Msg("File analysis finished")

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("analysis interrupted: %w", err)
	}

	return report, nil
}

// analyzeSheet runs one analysis, converting a panic into a failed outcome.
func (r *Runner) analyzeSheet(fileID string, ds *dataset.Dataset, emit func(pkgEvents.ProgressEvent)) (outcome *SheetOutcome) {
	start := time.Now()
	emit(pkgEvents.ProgressEvent{Type: pkgEvents.EventSheetStarted, Sheet: ds.Name, Status: "Queued"})

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("file_id", fileID).
				Str("sheet", ds.Name).
				Interface("panic", rec).
				Msg("Sheet analysis failed")

			outcome = r.record(fileID, &SheetOutcome{
				Sheet:    ds.Name,
				Status:   SheetStatusFailed,
				Error:    fmt.Sprint(rec),
				Duration: time.Since(start),
			}, emit)
		}
	}()

	progress := analysis.ProgressFunc(func(stage analysis.Stage, percent int) {
		emit(pkgEvents.ProgressEvent{
			Type:    pkgEvents.EventSheetProgress,
			Sheet:   ds.Name,
			Stage:   string(stage),
			Status:  stage.Status(),
			Percent: percent,
		})
	})

	result := r.analyze(ds, progress)

	return r.record(fileID, &SheetOutcome{
		Sheet:    ds.Name,
		Status:   SheetStatusCompleted,
		Result:   result,
		Duration: time.Since(start),
	}, emit)
}

// record stores the outcome and announces it.
func (r *Runner) record(fileID string, outcome *SheetOutcome, emit func(pkgEvents.ProgressEvent)) *SheetOutcome {
	r.results.Set(ResultKey(fileID, outcome.Sheet), outcome)

	event := pkgEvents.ProgressEvent{
		Type:     pkgEvents.EventSheetCompleted,
		Sheet:    outcome.Sheet,
		Status:   "Complete",
		Percent:  100,
		Duration: outcome.Duration,
	}
	if outcome.Status == SheetStatusFailed {
		event.Type = pkgEvents.EventSheetFailed
		event.Status = "Error: " + outcome.Error
		event.Error = outcome.Error
		event.Percent = 0
	}
	emit(event)

	return outcome
}
