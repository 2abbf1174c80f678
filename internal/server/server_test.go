package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/perfmap/perfmap/internal/analysis"
	"github.com/perfmap/perfmap/internal/dataset"
	"github.com/perfmap/perfmap/internal/engine"
	"github.com/perfmap/perfmap/internal/testhelper"
	pkgEvents "github.com/perfmap/perfmap/pkg/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *httptest.Server) {
	t.Helper()

	registry := prometheus.NewRegistry()
	config := DefaultConfig()
	config.Registerer = registry
	config.Gatherer = registry
	config.ResultWait = 5 * time.Second
	if mutate != nil {
		mutate(config)
	}

	srv, err := New(config)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return srv, ts
}

func upload(t *testing.T, ts *httptest.Server, filename, content string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(ts.URL+"/api/v1/files", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

type uploadResponse struct {
	Success bool     `json:"success"`
	FileID  string   `json:"file_id"`
	Sheets  []string `json:"sheets"`
}

func uploadFixture(t *testing.T, ts *httptest.Server) uploadResponse {
	t.Helper()
	resp := upload(t, ts, "review.csv", testhelper.FixtureCSV())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out uploadResponse
	decode(t, resp, &out)
	return out
}

func waitCompleted(t *testing.T, ts *httptest.Server, fileID string) JobStatus {
	t.Helper()

	var status JobStatus
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/files/%s/progress", ts.URL, fileID))
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		status = JobStatus{}
		decode(t, resp, &status)
		return status.Status == "completed"
	}, 5*time.Second, 20*time.Millisecond)

	return status
}

func TestHealthCheck(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(0), body["files"])
}

func TestUploadAndAnalytics(t *testing.T) {
	_, ts := newTestServer(t, nil)

	up := uploadFixture(t, ts)
	assert.True(t, up.Success)
	assert.Len(t, up.FileID, 16)
	assert.Equal(t, []string{"review"}, up.Sheets)

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/files/%s/sheets/review/analytics", ts.URL, up.FileID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result analysis.Result
	decode(t, resp, &result)
	assert.Equal(t, 5, result.TotalRecords)
	assert.Equal(t, 4, result.ValidRatings)
	assert.Equal(t, analysis.RegionSourceColumn, result.RegionSource)
	assert.Contains(t, result.RegionalData, "الرياض")

	status := waitCompleted(t, ts, up.FileID)
	assert.Equal(t, 100, status.Progress)
	assert.Equal(t, "Complete", status.Sheets["review"].Status)
	assert.NotEmpty(t, status.RunID)
}

func TestUpload_Errors(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := upload(t, ts, "notes.txt", "hello")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = upload(t, ts, "empty.csv", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = upload(t, ts, "broken.xlsx", "not a zip")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Post(ts.URL+"/api/v1/files", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestUpload_TooLarge(t *testing.T) {
	_, ts := newTestServer(t, func(c *Config) { c.MaxUploadBytes = 64 })

	resp := upload(t, ts, "review.csv", testhelper.FixtureCSV())
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestUpload_AtCapacity(t *testing.T) {
	_, ts := newTestServer(t, func(c *Config) { c.Concurrency = 0 })

	resp := upload(t, ts, "review.csv", testhelper.FixtureCSV())
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGetColumns(t *testing.T) {
	_, ts := newTestServer(t, nil)
	up := uploadFixture(t, ts)

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/files/%s/sheets/review/columns", ts.URL, up.FileID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Columns   []string          `json:"columns"`
		Records   int               `json:"records"`
		Selection map[string]string `json:"selection"`
	}
	decode(t, resp, &body)

	header, _ := testhelper.Fixture()
	assert.Equal(t, header, body.Columns)
	assert.Equal(t, 5, body.Records)
	assert.Equal(t, "الإدارة", body.Selection["unit"])
	assert.Equal(t, "التقييم الحالي", body.Selection["rating"])
	assert.Equal(t, "المنطقة", body.Selection["region"])
}

func TestAnalyzeColumns(t *testing.T) {
	_, ts := newTestServer(t, nil)
	up := uploadFixture(t, ts)
	url := fmt.Sprintf("%s/api/v1/files/%s/sheets/review/analyze", ts.URL, up.FileID)

	resp, err := http.Post(url, "application/json", strings.NewReader(`{"dept_column":"الإدارة","rating_columns":"التقييم الحالي"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result analysis.CustomResult
	decode(t, resp, &result)
	assert.Equal(t, 4, result.ValidRatings)
	assert.Equal(t, []string{"التقييم الحالي"}, result.ColumnsUsed.Ratings)

	resp, err = http.Post(url, "application/json", strings.NewReader(`{"dept_column":"Branch","rating_columns":["التقييم الحالي"]}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Contains(t, body["error"], `"Branch" not found`)

	resp, err = http.Post(url, "application/json", strings.NewReader(`{"dept_column":"الإدارة"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(url, "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestNotFound(t *testing.T) {
	_, ts := newTestServer(t, nil)
	up := uploadFixture(t, ts)

	for _, path := range []string{
		"/api/v1/files/missing/progress",
		"/api/v1/files/missing/sheets/review/analytics",
		"/api/v1/files/missing/sheets/review/columns",
		fmt.Sprintf("/api/v1/files/%s/sheets/Other/analytics", up.FileID),
	} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestAnalytics_PendingAndFailed(t *testing.T) {
	srv, ts := newTestServer(t, func(c *Config) { c.ResultWait = 50 * time.Millisecond })

	header, records := testhelper.Fixture()
	srv.files.Set("f1", &dataset.Workbook{Sheets: []*dataset.Dataset{
		dataset.New("Q1", header, records),
		dataset.New("Q2", header, records),
	}})
	srv.results.Set(engine.ResultKey("f1", "Q2"), &engine.SheetOutcome{
		Sheet:  "Q2",
		Status: engine.SheetStatusFailed,
		Error:  "corrupt sheet",
	})

	resp, err := http.Get(ts.URL + "/api/v1/files/f1/sheets/Q1/analytics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/files/f1/sheets/Q2/analytics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "corrupt sheet", body["error"])
}

func TestClearFiles(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	up := uploadFixture(t, ts)
	waitCompleted(t, ts, up.FileID)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/files", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, 0, srv.files.Len())
	assert.Equal(t, 0, srv.results.Len())

	resp, err = http.Get(fmt.Sprintf("%s/api/v1/files/%s/progress", ts.URL, up.FileID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestClearFiles_ReuploadWhileRunning(t *testing.T) {
	srv, ts := newTestServer(t, nil)

	content := testhelper.FixtureCSV()
	fileID := engine.FileID([]byte(content))
	_, started, err := srv.manager.StartJob(fileID, "review.csv", []string{"review"})
	require.NoError(t, err)
	require.True(t, started)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/files", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 0, srv.files.Len())

	resp = upload(t, ts, "review.csv", content)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var up uploadResponse
	decode(t, resp, &up)
	assert.Equal(t, fileID, up.FileID)

	resp, err = http.Get(fmt.Sprintf("%s/api/v1/files/%s/sheets/review/columns", ts.URL, fileID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestCORS(t *testing.T) {
	_, ts := newTestServer(t, func(c *Config) { c.AllowedOrigins = []string{"https://hr.example"} })

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/files", nil)
	req.Header.Set("Origin", "https://hr.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://hr.example", resp.Header.Get("Access-Control-Allow-Origin"))
	resp.Body.Close()

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	resp.Body.Close()
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, originAllowed([]string{"*"}, "https://any.example"))
	assert.True(t, originAllowed([]string{"https://a.example"}, ""))
	assert.True(t, originAllowed([]string{" https://a.example"}, "https://A.example"))
	assert.False(t, originAllowed([]string{"https://a.example"}, "https://b.example"))
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)
	up := uploadFixture(t, ts)
	waitCompleted(t, ts, up.FileID)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "perfmap_files_total 1")
	assert.Contains(t, string(body), `perfmap_sheets_total{status="completed"} 1`)
}

func TestStreamProgress(t *testing.T) {
	_, ts := newTestServer(t, nil)
	up := uploadFixture(t, ts)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/files/" + up.FileID + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, message, err := conn.ReadMessage()
		require.NoError(t, err)

		var event pkgEvents.ProgressEvent
		require.NoError(t, json.Unmarshal(message, &event))
		assert.Equal(t, up.FileID, event.FileID)
		if event.Type == pkgEvents.EventFileCompleted {
			break
		}
	}
}

func TestStreamProgress_NotFound(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/v1/files/missing/stream")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
