package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clearpix/simple-denoiser/internal/job"
	"github.com/clearpix/simple-denoiser/internal/queue"
	"github.com/clearpix/simple-denoiser/internal/storage"
	"github.com/clearpix/simple-denoiser/pkg/schema"
)

type fakeLiveness bool

func (f fakeLiveness) Healthy() bool { return bool(f) }

type testServer struct {
	e     *echo.Echo
	jobs  *job.Store
	queue *queue.Queue
}

func newTestServer(t *testing.T, queueSize int, live bool) *testServer {
	t.Helper()

	uploads, err := storage.NewDisk(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("uploads store: %v", err)
	}
	processed, err := storage.NewDisk(filepath.Join(t.TempDir(), "processed"))
	if err != nil {
		t.Fatalf("processed store: %v", err)
	}

	ts := &testServer{
		e:     echo.New(),
		jobs:  job.NewStore(),
		queue: queue.New(queueSize),
	}
	s := New(Config{
		Jobs:           ts.jobs,
		Queue:          ts.queue,
		Uploads:        uploads,
		Processed:      processed,
		Worker:         fakeLiveness(live),
		MaxUploadBytes: 1 << 20,
	})
	s.Register(ts.e)
	return ts
}

func multipartUpload(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAccepted(t *testing.T) {
	ts := newTestServer(t, 8, true)

	body, ctype := multipartUpload(t, "photo.png", []byte("png bytes"), map[string]string{
		"method":   "gaussian",
		"strength": "7",
	})
	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set(echo.HeaderContentType, ctype)

	rec := ts.do(req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want %d (body %s)", rec.Code, http.StatusAccepted, rec.Body)
	}

	var resp schema.JobAccepted
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("no job id in response")
	}

	j, err := ts.jobs.Get(resp.JobID)
	if err != nil {
		t.Fatalf("submitted job not in store: %v", err)
	}
	if j.Status != job.StatusPending {
		t.Fatalf("job status: got %s, want %s", j.Status, job.StatusPending)
	}
	if ts.queue.Len() != 1 {
		t.Fatalf("queue depth: got %d, want 1", ts.queue.Len())
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		fields   map[string]string
		wantCode int
		wantErr  string
	}{
		{
			name:     "unknown method",
			filename: "photo.png",
			fields:   map[string]string{"method": "sharpen"},
			wantCode: http.StatusBadRequest,
			wantErr:  "sharpen",
		},
		{
			name:     "strength too low",
			filename: "photo.png",
			fields:   map[string]string{"strength": "0"},
			wantCode: http.StatusBadRequest,
			wantErr:  "strength",
		},
		{
			name:     "strength too high",
			filename: "photo.png",
			fields:   map[string]string{"strength": "11"},
			wantCode: http.StatusBadRequest,
			wantErr:  "strength",
		},
		{
			name:     "strength not a number",
			filename: "photo.png",
			fields:   map[string]string{"strength": "lots"},
			wantCode: http.StatusBadRequest,
			wantErr:  "strength",
		},
		{
			name:     "unsupported extension",
			filename: "notes.txt",
			fields:   nil,
			wantCode: http.StatusBadRequest,
			wantErr:  "unsupported image type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, 8, true)

			body, ctype := multipartUpload(t, tt.filename, []byte("data"), tt.fields)
			req := httptest.NewRequest(http.MethodPost, "/jobs", body)
			req.Header.Set(echo.HeaderContentType, ctype)

			rec := ts.do(req)
			if rec.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			if !strings.Contains(rec.Body.String(), tt.wantErr) {
				t.Fatalf("body %s should mention %q", rec.Body, tt.wantErr)
			}
			// Rejected requests never become jobs.
			if ts.jobs.Len() != 0 {
				t.Fatalf("job created for invalid request: %d", ts.jobs.Len())
			}
			if ts.queue.Len() != 0 {
				t.Fatalf("item enqueued for invalid request: %d", ts.queue.Len())
			}
		})
	}
}

func TestSubmitMissingFile(t *testing.T) {
	ts := newTestServer(t, 8, true)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("method", "gaussian")
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/jobs", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())

	rec := ts.do(req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	ts := newTestServer(t, 1, true)

	submit := func() *httptest.ResponseRecorder {
		body, ctype := multipartUpload(t, "photo.png", []byte("data"), nil)
		req := httptest.NewRequest(http.MethodPost, "/jobs", body)
		req.Header.Set(echo.HeaderContentType, ctype)
		return ts.do(req)
	}

	if rec := submit(); rec.Code != http.StatusAccepted {
		t.Fatalf("first submit: got %d, want %d", rec.Code, http.StatusAccepted)
	}
	rec := submit()
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("second submit: got %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	// The rejected job record must not linger.
	if ts.jobs.Len() != 1 {
		t.Fatalf("job count after rejection: got %d, want 1", ts.jobs.Len())
	}
}

func TestStatusLifecycle(t *testing.T) {
	ts := newTestServer(t, 8, true)

	j := ts.jobs.Create("in.png")

	get := func() (int, schema.JobStatus) {
		req := httptest.NewRequest(http.MethodGet, "/jobs/"+j.ID, nil)
		rec := ts.do(req)
		var resp schema.JobStatus
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		return rec.Code, resp
	}

	if code, resp := get(); code != http.StatusOK || resp.Status != "pending" {
		t.Fatalf("pending poll: code %d, resp %+v", code, resp)
	}

	_ = ts.jobs.MarkProcessing(j.ID)
	if code, resp := get(); code != http.StatusOK || resp.Status != "processing" {
		t.Fatalf("processing poll: code %d, resp %+v", code, resp)
	}

	_ = ts.jobs.MarkCompleted(j.ID, "out.png")
	code, resp := get()
	if code != http.StatusOK || resp.Status != "completed" {
		t.Fatalf("completed poll: code %d, resp %+v", code, resp)
	}
	if resp.Result != "/processed/out.png" {
		t.Fatalf("result link: got %q", resp.Result)
	}
	if resp.Error != "" {
		t.Fatalf("completed status carries error: %q", resp.Error)
	}
}

func TestStatusFailedCarriesError(t *testing.T) {
	ts := newTestServer(t, 8, true)

	j := ts.jobs.Create("in.png")
	_ = ts.jobs.MarkProcessing(j.ID)
	_ = ts.jobs.MarkFailed(j.ID, "decode source: corrupt")

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+j.ID, nil)
	rec := ts.do(req)

	var resp schema.JobStatus
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Status != "failed" || resp.Error == "" {
		t.Fatalf("failed poll: %+v", resp)
	}
	if resp.Result != "" {
		t.Fatalf("failed status carries result: %q", resp.Result)
	}
}

func TestStatusNotFound(t *testing.T) {
	ts := newTestServer(t, 8, true)

	req := httptest.NewRequest(http.MethodGet, "/jobs/never-submitted", nil)
	rec := ts.do(req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestStatusNotFoundAfterEviction(t *testing.T) {
	ts := newTestServer(t, 8, true)

	j := ts.jobs.Create("in.png")
	ts.jobs.Evict(j.ID)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+j.ID, nil)
	rec := ts.do(req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("evicted job status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHealth(t *testing.T) {
	up := newTestServer(t, 8, true)
	rec := up.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthy worker: got %d, want %d", rec.Code, http.StatusOK)
	}

	down := newTestServer(t, 8, false)
	rec = down.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("dead worker: got %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestIndexListsMethods(t *testing.T) {
	ts := newTestServer(t, 8, true)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("index: got %d, want %d", rec.Code, http.StatusOK)
	}
	for _, m := range []string{"nlmeans", "bilateral", "gaussian", "tvl1"} {
		if !strings.Contains(rec.Body.String(), m) {
			t.Fatalf("index page missing method %s", m)
		}
	}
}
