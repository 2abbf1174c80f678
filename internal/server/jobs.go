package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/perfmap/perfmap/internal/engine"
	pkgEvents "github.com/perfmap/perfmap/pkg/events"
	"github.com/prometheus/client_golang/prometheus"
)

// SheetProgress is the latest progress of one sheet.
type SheetProgress struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// JobStatus tracks the analysis of one uploaded file.
type JobStatus struct {
	FileID    string                    `json:"file_id"`
	Filename  string                    `json:"filename"`
	RunID     string                    `json:"run_id,omitempty"`
	Status    string                    `json:"status"`
	Progress  int                       `json:"progress"`
	StartTime time.Time                 `json:"start_time"`
	EndTime   *time.Time                `json:"end_time,omitempty"`
	Duration  time.Duration             `json:"duration"`
	Error     string                    `json:"error,omitempty"`
	Sheets    map[string]*SheetProgress `json:"sheets"`

	events []pkgEvents.ProgressEvent

	// WebSocket connections for streaming
	clients *jobClients
}

// jobClients is the set of WebSocket connections following one job.
type jobClients struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]bool
}

func newJobClients() *jobClients {
	return &jobClients{conns: make(map[*websocket.Conn]bool)}
}

// broadcast writes data to every connection.
func (c *jobClients) broadcast(data []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for conn := range c.conns {
		conn.WriteMessage(websocket.TextMessage, data)
	}
}

func (c *jobClients) remove(conn *websocket.Conn) {
	c.mu.Lock()
	delete(c.conns, conn)
	c.mu.Unlock()
}

func (c *jobClients) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for conn := range c.conns {
		conn.Close()
	}
}

// ErrAtCapacity is returned by StartJob when the concurrency cap is reached.
var ErrAtCapacity = errors.New("server at capacity")

// overall averages the sheet percentages.
func (js *JobStatus) overall() int {
	if len(js.Sheets) == 0 {
		return 0
	}
	total := 0
	for _, s := range js.Sheets {
		total += s.Progress
	}
	return total / len(js.Sheets)
}

// JobManager handles concurrent file analyses
type JobManager struct {
	jobs           map[string]*JobStatus
	maxConcurrency int
	currentCount   int
	mu             sync.RWMutex

	// Metrics
	totalJobs     prometheus.Counter
	activeJobs    prometheus.Gauge
	sheetDuration prometheus.HistogramVec
	sheetStatus   prometheus.CounterVec
}

// NewJobManager creates a new job manager
func NewJobManager(maxConcurrency int) *JobManager {
	return NewJobManagerWithRegistry(maxConcurrency, prometheus.DefaultRegisterer)
}

// NewJobManagerWithRegistry creates a new job manager with a custom registry
func NewJobManagerWithRegistry(maxConcurrency int, registerer prometheus.Registerer) *JobManager {
	jm := &JobManager{
		jobs:           make(map[string]*JobStatus),
		maxConcurrency: maxConcurrency,

		totalJobs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "perfmap_files_total",
			Help: "Total number of file analyses started",
		}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perfmap_files_active",
			Help: "Number of file analyses currently running",
		}),
		sheetDuration: *prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "perfmap_sheet_duration_seconds",
			Help: "Sheet analysis duration in seconds",
		}, []string{"status"}),
		sheetStatus: *prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perfmap_sheets_total",
			Help: "Total sheet analyses by status",
		}, []string{"status"}),
	}

	if registerer != nil {
		registerer.MustRegister(jm.totalJobs)
		registerer.MustRegister(jm.activeJobs)
		registerer.MustRegister(jm.sheetDuration)
		registerer.MustRegister(jm.sheetStatus)
	}

	return jm
}

// CanStartJob checks if a new analysis can be started
func (jm *JobManager) CanStartJob() bool {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	return jm.currentCount < jm.maxConcurrency
}

// StartJob starts tracking the analysis of an uploaded file. Re-uploading a
// finished file replaces its previous status; while the file is still being
// analyzed the running job is returned and started is false. It returns
// ErrAtCapacity when a new job would exceed the concurrency cap.
func (jm *JobManager) StartJob(fileID, filename string, sheets []string) (status *JobStatus, started bool, err error) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if existing, ok := jm.jobs[fileID]; ok && existing.EndTime == nil {
		return existing, false, nil
	}
	if jm.currentCount >= jm.maxConcurrency {
		return nil, false, ErrAtCapacity
	}

	status = &JobStatus{
		FileID:    fileID,
		Filename:  filename,
		Status:    "running",
		StartTime: time.Now(),
		Sheets:    make(map[string]*SheetProgress, len(sheets)),
		clients:   newJobClients(),
	}
	for _, sheet := range sheets {
		status.Sheets[sheet] = &SheetProgress{Status: "Uploaded"}
	}

	jm.jobs[fileID] = status
	jm.currentCount++

	jm.totalJobs.Inc()
	jm.activeJobs.Inc()

	return status, true, nil
}

// FinishJob marks a file analysis as finished
func (jm *JobManager) FinishJob(fileID string, report *engine.Report, err error) {
	jm.mu.Lock()
	status, exists := jm.jobs[fileID]
	if !exists || status.EndTime != nil {
		jm.mu.Unlock()
		return
	}

	now := time.Now()
	status.EndTime = &now
	status.Duration = now.Sub(status.StartTime)

	switch {
	case err != nil:
		status.Status = "failed"
		status.Error = err.Error()
	case report != nil && len(report.Sheets) > 0 && len(report.Failed()) == len(report.Sheets):
		status.Status = "failed"
		status.Error = report.Sheets[0].Error
	default:
		status.Status = "completed"
	}
	if report != nil {
		status.RunID = report.RunID
		for _, sheet := range report.Sheets {
			jm.sheetDuration.WithLabelValues(string(sheet.Status)).Observe(sheet.Duration.Seconds())
			jm.sheetStatus.WithLabelValues(string(sheet.Status)).Inc()
		}
	}
	status.Progress = status.overall()

	jm.currentCount--
	jm.activeJobs.Dec()
	jm.mu.Unlock()

	// Close WebSocket clients
	status.clients.closeAll()
}

// GetJob retrieves a job status
func (jm *JobManager) GetJob(fileID string) (*JobStatus, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	status, exists := jm.jobs[fileID]
	return status, exists
}

// Snapshot returns a copy of a job status that is safe to encode while the
// analysis keeps running. The copy has no stream clients.
func (jm *JobManager) Snapshot(fileID string) (*JobStatus, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	status, exists := jm.jobs[fileID]
	if !exists {
		return nil, false
	}

	snapshot := &JobStatus{
		FileID:    status.FileID,
		Filename:  status.Filename,
		RunID:     status.RunID,
		Status:    status.Status,
		Progress:  status.overall(),
		StartTime: status.StartTime,
		EndTime:   status.EndTime,
		Duration:  status.Duration,
		Error:     status.Error,
		Sheets:    make(map[string]*SheetProgress, len(status.Sheets)),
	}
	for name, sheet := range status.Sheets {
		copied := *sheet
		snapshot.Sheets[name] = &copied
	}
	return snapshot, true
}

// AddProgressEvent records a progress event and broadcasts it to the
// job's WebSocket clients.
func (jm *JobManager) AddProgressEvent(event pkgEvents.ProgressEvent) {
	jm.mu.Lock()
	status, exists := jm.jobs[event.FileID]
	if !exists {
		jm.mu.Unlock()
		return
	}

	status.events = append(status.events, event)
	if event.RunID != "" {
		status.RunID = event.RunID
	}
	if event.Sheet != "" {
		sheet, ok := status.Sheets[event.Sheet]
		if !ok {
			sheet = &SheetProgress{}
			status.Sheets[event.Sheet] = sheet
		}
		sheet.Status = event.Status
		sheet.Progress = event.Percent
		sheet.Error = event.Error
	}
	status.Progress = status.overall()
	jm.mu.Unlock()

	eventJSON, _ := json.Marshal(event)
	status.clients.broadcast(eventJSON)
}

// Events returns the progress events recorded for a job so far.
func (jm *JobManager) Events(fileID string) []pkgEvents.ProgressEvent {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	status, exists := jm.jobs[fileID]
	if !exists {
		return nil
	}
	return append([]pkgEvents.ProgressEvent(nil), status.events...)
}

// GetActiveJobs returns the number of running analyses
func (jm *JobManager) GetActiveJobs() int {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	return jm.currentCount
}

// Clear forgets every finished job. Running jobs are kept so their
// completion is still accounted for.
func (jm *JobManager) Clear() {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	for id, status := range jm.jobs {
		if status.EndTime != nil {
			delete(jm.jobs, id)
		}
	}
}

// Listener returns an events.Listener that feeds one run's progress into
// the manager.
func (jm *JobManager) Listener() pkgEvents.Listener {
	return pkgEvents.NewFuncListener(jm.AddProgressEvent)
}
