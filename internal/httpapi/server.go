// Package httpapi is the HTTP front end: it admits uploads as
// denoising jobs, answers status polls, serves artifacts, and exposes
// a worker liveness probe.
package httpapi

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clearpix/simple-denoiser/internal/bus"
	"github.com/clearpix/simple-denoiser/internal/denoise"
	"github.com/clearpix/simple-denoiser/internal/job"
	"github.com/clearpix/simple-denoiser/internal/queue"
	"github.com/clearpix/simple-denoiser/internal/storage"
	"github.com/clearpix/simple-denoiser/pkg/schema"
)

// Liveness reports whether the worker loop is alive.
type Liveness interface {
	Healthy() bool
}

// Extensions the image decoder can handle.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Config wires the server's collaborators.
type Config struct {
	Jobs      *job.Store
	Queue     *queue.Queue
	Uploads   storage.Store
	Processed storage.Store
	Worker    Liveness

	Events       bus.Publisher
	EventSubject string

	MaxUploadBytes int64
	Logger         *slog.Logger
}

type Server struct {
	cfg Config
}

func New(cfg Config) *Server {
	if cfg.Events == nil {
		cfg.Events = bus.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{cfg: cfg}
}

// Register mounts all routes on e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/", s.index)
	e.POST("/jobs", s.submit)
	e.GET("/jobs/:id", s.status)
	e.GET("/uploads/:name", s.serveUpload)
	e.GET("/processed/:name", s.serveProcessed)
	e.GET("/healthz", s.health)
}

// submit validates the upload, persists the source artifact, creates a
// pending job, and enqueues the work item. Validation failures are
// surfaced synchronously and never reach the queue.
func (s *Server) submit(c echo.Context) error {
	ctx := c.Request().Context()

	fh, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "image file is required"})
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{
			"error": fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxUploadBytes),
		})
	}

	name := storage.SafeName(fh.Filename)
	if !allowedExtensions[strings.ToLower(filepath.Ext(name))] {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("unsupported image type %q", filepath.Ext(name)),
		})
	}

	req, err := parseRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to open upload"})
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read upload"})
	}

	// Uploads from different clients may share a filename; an opaque
	// prefix keeps artifacts from clobbering each other.
	ref := uuid.NewString() + "_" + name
	if err := s.cfg.Uploads.Write(ctx, ref, data); err != nil {
		s.cfg.Logger.Error("persist upload failed", "ref", ref, "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to store upload"})
	}

	j := s.cfg.Jobs.Create(ref)
	item := queue.Item{
		JobID:     j.ID,
		SourceRef: ref,
		DestRef:   ref,
		Request:   req,
	}
	if err := s.cfg.Queue.Enqueue(item); err != nil {
		s.cfg.Jobs.Evict(j.ID)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "queue full, try again later"})
	}

	s.publishSubmitted(j, item)
	s.cfg.Logger.Info("job submitted", "job_id", j.ID, "source", ref, "method", req.Method, "strength", req.Strength)
	return c.JSON(http.StatusAccepted, schema.JobAccepted{JobID: j.ID})
}

func parseRequest(c echo.Context) (denoise.Request, error) {
	method := c.FormValue("method")
	if method == "" {
		method = string(denoise.MethodNLMeans)
	}
	m, err := denoise.ParseMethod(method)
	if err != nil {
		return denoise.Request{}, err
	}

	strength := 5
	if v := c.FormValue("strength"); v != "" {
		strength, err = strconv.Atoi(v)
		if err != nil {
			return denoise.Request{}, fmt.Errorf("invalid strength %q", v)
		}
	}

	req := denoise.Request{
		Method:    m,
		Strength:  strength,
		Grayscale: parseBool(c.FormValue("grayscale")),
	}
	if err := req.Validate(); err != nil {
		return denoise.Request{}, err
	}
	return req, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "on", "true", "1":
		return true
	}
	return false
}

// status reports the job's current lifecycle state. An unknown or
// already-evicted id is a distinct not-found, not a failure.
func (s *Server) status(c echo.Context) error {
	j, err := s.cfg.Jobs.Get(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := schema.JobStatus{ID: j.ID, Status: string(j.Status)}
	switch j.Status {
	case job.StatusCompleted:
		resp.Result = "/processed/" + j.ResultRef
	case job.StatusFailed:
		resp.Error = j.Error
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) serveUpload(c echo.Context) error {
	return s.serveArtifact(c, s.cfg.Uploads)
}

func (s *Server) serveProcessed(c echo.Context) error {
	return s.serveArtifact(c, s.cfg.Processed)
}

func (s *Server) serveArtifact(c echo.Context, store storage.Store) error {
	name := storage.SafeName(c.Param("name"))
	path := store.Path(name)
	if parseBool(c.QueryParam("download")) {
		return c.Attachment(path, name)
	}
	return c.File(path)
}

func (s *Server) health(c echo.Context) error {
	if s.cfg.Worker == nil || !s.cfg.Worker.Healthy() {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{"status": "worker down"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.cfg.Queue.Len(),
		"jobs":        s.cfg.Jobs.Len(),
	})
}

func (s *Server) publishSubmitted(j job.Job, item queue.Item) {
	evt := schema.JobEvent{
		JobID:      j.ID,
		Status:     string(j.Status),
		SourceRef:  item.SourceRef,
		Method:     string(item.Request.Method),
		Strength:   item.Request.Strength,
		Grayscale:  item.Request.Grayscale,
		HappenedAt: time.Now().Unix(),
	}
	if err := s.cfg.Events.PublishJSON(s.cfg.EventSubject, evt); err != nil {
		s.cfg.Logger.Error("publish job event failed", "subject", s.cfg.EventSubject, "job_id", j.ID, "err", err)
	}
}
