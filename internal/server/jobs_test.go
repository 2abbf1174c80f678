package server

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/perfmap/perfmap/internal/engine"
	pkgEvents "github.com/perfmap/perfmap/pkg/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobManager_NewManager(t *testing.T) {
	manager := NewJobManagerWithRegistry(5, prometheus.NewRegistry())

	assert.Equal(t, 5, manager.maxConcurrency)
	assert.Equal(t, 0, manager.GetActiveJobs())
	assert.True(t, manager.CanStartJob())
}

func TestJobManager_StartJob(t *testing.T) {
	manager := NewJobManagerWithRegistry(2, prometheus.NewRegistry())

	status, started, err := manager.StartJob("f1", "review.xlsx", []string{"Q1", "Q2"})
	require.NoError(t, err)
	require.True(t, started)
	assert.Equal(t, "running", status.Status)
	assert.Len(t, status.Sheets, 2)
	assert.Equal(t, "Uploaded", status.Sheets["Q1"].Status)
	assert.Nil(t, status.EndTime)
	assert.Equal(t, 1, manager.GetActiveJobs())

	again, started, err := manager.StartJob("f1", "review.xlsx", []string{"Q1", "Q2"})
	require.NoError(t, err)
	assert.False(t, started)
	assert.Same(t, status, again)
	assert.Equal(t, 1, manager.GetActiveJobs())
}

func TestJobManager_ConcurrencyLimit(t *testing.T) {
	manager := NewJobManagerWithRegistry(2, prometheus.NewRegistry())

	manager.StartJob("f1", "a.csv", []string{"a"})
	assert.True(t, manager.CanStartJob())
	manager.StartJob("f2", "b.csv", []string{"b"})
	assert.False(t, manager.CanStartJob())

	_, started, err := manager.StartJob("f3", "c.csv", []string{"c"})
	assert.ErrorIs(t, err, ErrAtCapacity)
	assert.False(t, started)

	// A running file is returned even at capacity
	_, started, err = manager.StartJob("f2", "b.csv", []string{"b"})
	assert.NoError(t, err)
	assert.False(t, started)

	manager.FinishJob("f1", nil, nil)
	assert.True(t, manager.CanStartJob())
	assert.Equal(t, 1, manager.GetActiveJobs())
}

func TestJobManager_ConcurrentStartsRespectLimit(t *testing.T) {
	manager := NewJobManagerWithRegistry(3, prometheus.NewRegistry())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok, err := manager.StartJob(fmt.Sprintf("f%d", i), "a.csv", []string{"a"})
			if err != nil {
				assert.ErrorIs(t, err, ErrAtCapacity)
				return
			}
			if ok {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, started)
	assert.Equal(t, 3, manager.GetActiveJobs())
	assert.Equal(t, 3.0, testutil.ToFloat64(manager.activeJobs))
}

func TestJobManager_SnapshotHasNoClients(t *testing.T) {
	manager := NewJobManagerWithRegistry(1, prometheus.NewRegistry())
	status, _, err := manager.StartJob("f1", "a.csv", []string{"a"})
	require.NoError(t, err)
	require.NotNil(t, status.clients)

	snapshot, ok := manager.Snapshot("f1")
	require.True(t, ok)
	assert.NotSame(t, status, snapshot)
	assert.Nil(t, snapshot.clients)
}

func TestJobManager_ProgressEvents(t *testing.T) {
	manager := NewJobManagerWithRegistry(2, prometheus.NewRegistry())
	manager.StartJob("f1", "review.xlsx", []string{"Q1", "Q2"})

	manager.AddProgressEvent(pkgEvents.ProgressEvent{
		Type: pkgEvents.EventSheetProgress, FileID: "f1", RunID: "run-1",
		Sheet: "Q1", Status: "Analyzing departments", Percent: 60,
	})
	manager.AddProgressEvent(pkgEvents.ProgressEvent{
		Type: pkgEvents.EventSheetCompleted, FileID: "f1", Sheet: "Q2", Status: "Complete", Percent: 100,
	})
	manager.AddProgressEvent(pkgEvents.ProgressEvent{Type: pkgEvents.EventSheetProgress, FileID: "unknown"})

	snapshot, ok := manager.Snapshot("f1")
	require.True(t, ok)
	assert.Equal(t, 80, snapshot.Progress)
	assert.Equal(t, "run-1", snapshot.RunID)
	assert.Equal(t, "Analyzing departments", snapshot.Sheets["Q1"].Status)
	assert.Equal(t, 100, snapshot.Sheets["Q2"].Progress)
	assert.Len(t, manager.Events("f1"), 2)

	snapshot.Sheets["Q1"].Progress = 0
	again, _ := manager.Snapshot("f1")
	assert.Equal(t, 60, again.Sheets["Q1"].Progress)

	_, ok = manager.Snapshot("unknown")
	assert.False(t, ok)
}

func TestJobManager_FinishJob(t *testing.T) {
	registry := prometheus.NewRegistry()
	manager := NewJobManagerWithRegistry(2, registry)
	manager.StartJob("f1", "review.xlsx", []string{"Q1", "Q2"})

	report := &engine.Report{
		RunID: "run-1",
		Sheets: []*engine.SheetOutcome{
			{Sheet: "Q1", Status: engine.SheetStatusCompleted, Duration: time.Millisecond},
			{Sheet: "Q2", Status: engine.SheetStatusFailed, Error: "boom", Duration: time.Millisecond},
		},
	}
	manager.FinishJob("f1", report, nil)
	manager.FinishJob("f1", report, nil)

	status, ok := manager.Snapshot("f1")
	require.True(t, ok)
	assert.Equal(t, "completed", status.Status)
	assert.NotNil(t, status.EndTime)
	assert.Equal(t, "run-1", status.RunID)
	assert.Equal(t, 0, manager.GetActiveJobs())

	assert.Equal(t, 1.0, testutil.ToFloat64(manager.sheetStatus.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(manager.sheetStatus.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(manager.totalJobs))
	assert.Equal(t, 0.0, testutil.ToFloat64(manager.activeJobs))
}

func TestJobManager_FinishJobFailures(t *testing.T) {
	manager := NewJobManagerWithRegistry(3, prometheus.NewRegistry())

	manager.StartJob("f1", "a.csv", []string{"a"})
	manager.FinishJob("f1", nil, errors.New("interrupted"))
	status, _ := manager.Snapshot("f1")
	assert.Equal(t, "failed", status.Status)
	assert.Equal(t, "interrupted", status.Error)

	manager.StartJob("f2", "b.csv", []string{"b"})
	manager.FinishJob("f2", &engine.Report{Sheets: []*engine.SheetOutcome{
		{Sheet: "b", Status: engine.SheetStatusFailed, Error: "corrupt"},
	}}, nil)
	status, _ = manager.Snapshot("f2")
	assert.Equal(t, "failed", status.Status)
	assert.Equal(t, "corrupt", status.Error)
}

func TestJobManager_Clear(t *testing.T) {
	manager := NewJobManagerWithRegistry(3, prometheus.NewRegistry())
	manager.StartJob("done", "a.csv", []string{"a"})
	manager.FinishJob("done", nil, nil)
	manager.StartJob("running", "b.csv", []string{"b"})

	manager.Clear()

	_, ok := manager.GetJob("done")
	assert.False(t, ok)
	_, ok = manager.GetJob("running")
	assert.True(t, ok)
}

func TestJobManager_Listener(t *testing.T) {
	manager := NewJobManagerWithRegistry(1, prometheus.NewRegistry())
	manager.StartJob("f1", "a.csv", []string{"a"})

	listener := manager.Listener()
	ch := make(chan pkgEvents.ProgressEvent, 1)
	listener.StartListening(ch)
	ch <- pkgEvents.ProgressEvent{Type: pkgEvents.EventSheetProgress, FileID: "f1", Sheet: "a", Percent: 30}
	close(ch)
	listener.StopListening()

	status, _ := manager.Snapshot("f1")
	assert.Equal(t, 30, status.Progress)
}
