// Package events provides types and interfaces for tracking analysis progress.
// This package enables monitoring of a file analysis from the moment a workbook
// is loaded to the completion of every sheet, including the fixed milestones of
// each sheet's analysis and any failures.
//
// Events are purely observational: the analysis never reads anything back from
// a listener, so a slow or absent listener cannot change a result.
package events

import (
	"time"
)

// ProgressEventType represents the type of progress event that occurred during
// a file analysis.
type ProgressEventType string

const (
	// EventFileStarted is emitted when analysis of a workbook begins.
	EventFileStarted ProgressEventType = "file_started"

	// EventFileCompleted is emitted when every sheet of a workbook has finished,
	// whether or not individual sheets failed.
	EventFileCompleted ProgressEventType = "file_completed"

	// EventSheetStarted is emitted when the analysis of one sheet begins.
	EventSheetStarted ProgressEventType = "sheet_started"

	// EventSheetProgress is emitted when a sheet reaches an analysis milestone.
	EventSheetProgress ProgressEventType = "sheet_progress"

	// EventSheetCompleted is emitted when a sheet's result has been stored.
	EventSheetCompleted ProgressEventType = "sheet_completed"

	// EventSheetFailed is emitted when a sheet could not be analyzed.
	EventSheetFailed ProgressEventType = "sheet_failed"
)

// ProgressEvent represents a single event that occurred during an analysis.
type ProgressEvent struct {
	// Type specifies the kind of event that occurred.
	Type ProgressEventType `json:"type"`
	// Timestamp indicates when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// RunID is the unique identifier for the analysis run.
	RunID string `json:"run_id"`
	// FileID identifies the analyzed workbook.
	FileID string `json:"file_id"`
	// Sheet is the sheet the event refers to (empty for file events).
	Sheet string `json:"sheet,omitempty"`
	// Stage is the analysis milestone reached (progress events only).
	Stage string `json:"stage,omitempty"`
	// Status is a human readable description of the current state.
	Status string `json:"status,omitempty"`
	// Percent is the sheet's completion percentage, from 0 to 100.
	Percent int `json:"progress"`
	// Duration represents how long the sheet or file took (completion events).
	Duration time.Duration `json:"duration,omitempty"`
	// Error contains the error message if the event represents a failure.
	Error string `json:"error,omitempty"`
}

// Listener defines the interface for tracking analysis progress.
type Listener interface {
	// StartListening begins monitoring the provided channel for progress events.
	// It is called once per run and must return promptly; implementations are
	// expected to consume the channel in their own goroutine.
	StartListening(progressChan <-chan ProgressEvent)

	// StopListening signals that progress listening should end. It is called
	// after the channel has been closed.
	StopListening()
}

// NoopListener is a Listener implementation that performs no operations.
// It can be used as a default listener when progress tracking is not needed.
type NoopListener struct{}

// StartListening drains the channel so that senders never block.
func (n *NoopListener) StartListening(progressChan <-chan ProgressEvent) {
	go func() {
		for range progressChan {
		}
	}()
}

// StopListening implements the Listener interface but performs no operation.
func (n *NoopListener) StopListening() {}

// FuncListener calls a function for every event it receives. The function is
// invoked from a single goroutine, in event order.
type FuncListener struct {
	fn   func(ProgressEvent)
	done chan struct{}
}

// NewFuncListener creates a listener that forwards each event to fn.
func NewFuncListener(fn func(ProgressEvent)) *FuncListener {
	return &FuncListener{fn: fn}
}

// StartListening consumes the channel until it is closed.
func (f *FuncListener) StartListening(progressChan <-chan ProgressEvent) {
	f.done = make(chan struct{})
	go func() {
		defer close(f.done)
		for event := range progressChan {
			f.fn(event)
		}
	}()
}

// StopListening blocks until every event has been delivered.
func (f *FuncListener) StopListening() {
	if f.done != nil {
		<-f.done
	}
}
