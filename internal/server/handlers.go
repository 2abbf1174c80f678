package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/perfmap/perfmap/internal/analysis"
	"github.com/perfmap/perfmap/internal/dataset"
	"github.com/perfmap/perfmap/internal/engine"
	"github.com/perfmap/perfmap/internal/store"
	pkgEvents "github.com/perfmap/perfmap/pkg/events"
	"github.com/rs/zerolog/log"
)

// resultPollInterval is how often a waiting analytics request checks the
// result store.
const resultPollInterval = 100 * time.Millisecond

// HTTP Handlers

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// uploadFile stores an uploaded workbook and starts analyzing its sheets
func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	if !s.manager.CanStartJob() {
		http.Error(w, "Server at capacity, try again later", http.StatusServiceUnavailable)
		return
	}

	if r.ContentLength > s.config.MaxUploadBytes {
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "No file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !dataset.IsSupported(header.Filename) {
		http.Error(w, fmt.Sprintf("Unsupported file type '%s'", header.Filename), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read upload: %v", err), http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		http.Error(w, "Empty file", http.StatusBadRequest)
		return
	}

	wb, err := dataset.Load(bytes.NewReader(data), header.Filename)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fileID := engine.FileID(data)
	sheets := wb.SheetNames()

	_, started, err := s.manager.StartJob(fileID, header.Filename, sheets)
	if err != nil {
		http.Error(w, "Server at capacity, try again later", http.StatusServiceUnavailable)
		return
	}

	// Store on every upload: DELETE /files may have dropped the workbook of
	// a job that is still running.
	s.files.Set(fileID, wb)
	if started {
		for _, sheet := range sheets {
			s.results.Delete(engine.ResultKey(fileID, sheet))
		}
	}

	log.Info().
		Str("file_id", fileID).
		Str("filename", header.Filename).
		Int("bytes", len(data)).
		Int("sheets", len(sheets)).
		Msg("File uploaded")

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"file_id":  fileID,
		"filename": header.Filename,
		"sheets":   sheets,
	})

	if started {
		go s.analyzeAsync(fileID, header.Filename, wb)
	}
}

// analyzeAsync analyzes every sheet of an uploaded workbook in the background
func (s *Server) analyzeAsync(fileID, filename string, wb *dataset.Workbook) {
	runner := engine.NewRunner(s.analyzer, s.manager.Listener(),
		engine.WithResultStore(s.results),
		engine.WithConcurrency(s.config.SheetWorkers),
	)

	report, err := runner.AnalyzeWorkbook(context.Background(), fileID, filename, wb)
	s.manager.FinishJob(fileID, report, err)

	log.Info().
		Str("file_id", fileID).
		Err(err).
		Msg("File analysis completed")
}

// getProgress returns the latest progress of a file analysis
func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["id"]

	status, exists := s.manager.Snapshot(fileID)
	if !exists {
		http.Error(w, fmt.Sprintf("File '%s' not found", fileID), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// sheet resolves the workbook sheet named in the request path.
func (s *Server) sheet(w http.ResponseWriter, r *http.Request) (string, *dataset.Dataset, bool) {
	vars := mux.Vars(r)
	fileID, name := vars["id"], vars["sheet"]

	wb, exists := s.files.Get(fileID)
	if !exists {
		http.Error(w, fmt.Sprintf("File '%s' not found", fileID), http.StatusNotFound)
		return "", nil, false
	}

	ds, err := wb.Sheet(name)
	if err != nil {
		http.Error(w, fmt.Sprintf("Sheet '%s' not found", name), http.StatusNotFound)
		return "", nil, false
	}

	return fileID, ds, true
}

// getAnalytics waits for a sheet's result. It answers 202 when the result
// is not ready within the configured wait.
func (s *Server) getAnalytics(w http.ResponseWriter, r *http.Request) {
	fileID, ds, ok := s.sheet(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.ResultWait)
	defer cancel()

	outcome, err := store.Wait(ctx, s.results, engine.ResultKey(fileID, ds.Name), resultPollInterval)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status": "processing",
			"error":  "Timeout",
		})
		return
	}

	if outcome.Status == engine.SheetStatusFailed {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": outcome.Error,
		})
		return
	}

	writeJSON(w, http.StatusOK, outcome.Result)
}

// getColumns lists a sheet's columns and the inferred selection
func (s *Server) getColumns(w http.ResponseWriter, r *http.Request) {
	fileID, ds, ok := s.sheet(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file_id":   fileID,
		"sheet":     ds.Name,
		"columns":   ds.Columns,
		"records":   ds.Len(),
		"selection": s.analyzer.Infer(ds),
	})
}

// analyzeColumns runs an analysis over explicitly chosen columns
func (s *Server) analyzeColumns(w http.ResponseWriter, r *http.Request) {
	_, ds, ok := s.sheet(w, r)
	if !ok {
		return
	}

	var req analysis.ColumnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	result, err := s.analyzer.AnalyzeColumns(ds, req)
	if err != nil {
		var colErr *analysis.ColumnError
		if errors.As(err, &colErr) || errors.Is(err, analysis.ErrMissingColumns) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// clearFiles forgets every uploaded file, result and finished job
func (s *Server) clearFiles(w http.ResponseWriter, r *http.Request) {
	s.files.Clear()
	s.results.Clear()
	s.manager.Clear()

	log.Info().Str("remote_addr", r.RemoteAddr).Msg("Data cleared")

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// streamProgress provides WebSocket streaming of a file's progress events
func (s *Server) streamProgress(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["id"]

	status, exists := s.manager.GetJob(fileID)
	if !exists {
		http.Error(w, fmt.Sprintf("File '%s' not found", fileID), http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Register the client and replay the backlog under the client lock so
	// no broadcast interleaves with it.
	status.clients.mu.Lock()
	for _, event := range s.manager.Events(fileID) {
		eventJSON, _ := json.Marshal(event)
		conn.WriteMessage(websocket.TextMessage, eventJSON)
	}
	snapshot, ok := s.manager.Snapshot(fileID)
	if !ok {
		status.clients.mu.Unlock()
		return
	}
	finished := snapshot.EndTime != nil
	if finished {
		finalEvent := pkgEvents.ProgressEvent{
			Type:      pkgEvents.EventFileCompleted,
			Timestamp: time.Now(),
			RunID:     snapshot.RunID,
			FileID:    fileID,
			Status:    snapshot.Status,
			Percent:   snapshot.Progress,
			Error:     snapshot.Error,
		}
		eventJSON, _ := json.Marshal(finalEvent)
		conn.WriteMessage(websocket.TextMessage, eventJSON)
	} else {
		status.clients.conns[conn] = true
	}
	status.clients.mu.Unlock()

	if finished {
		return
	}

	// Keep connection alive until the analysis is done or client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	status.clients.remove(conn)
}

// healthCheck returns server health status
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"files":       s.files.Len(),
		"active_jobs": s.manager.GetActiveJobs(),
		"timestamp":   time.Now(),
	})
}
