// Package worker runs the single long-lived consumer that drains the
// work queue, invokes the denoising step, and drives the job state
// machine. A failing job never terminates the loop.
package worker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	"github.com/clearpix/simple-denoiser/internal/bus"
	"github.com/clearpix/simple-denoiser/internal/denoise"
	"github.com/clearpix/simple-denoiser/internal/job"
	"github.com/clearpix/simple-denoiser/internal/queue"
	"github.com/clearpix/simple-denoiser/internal/storage"
	"github.com/clearpix/simple-denoiser/pkg/schema"
)

// Config wires the worker's collaborators.
type Config struct {
	Queue   *queue.Queue
	Jobs    *job.Store
	Uploads storage.Store
	Results storage.Store

	// Events receives terminal lifecycle events; optional.
	Events       bus.Publisher
	EventSubject string

	// JobTimeout forces a failed transition when a single transform
	// exceeds it. Zero disables the timeout.
	JobTimeout time.Duration

	Logger *slog.Logger
}

type Worker struct {
	cfg   Config
	alive atomic.Bool
}

func New(cfg Config) *Worker {
	if cfg.Events == nil {
		cfg.Events = bus.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Worker{cfg: cfg}
}

// Healthy reports whether the processing loop is running. It is a
// liveness signal, not a correctness one.
func (w *Worker) Healthy() bool {
	return w.alive.Load()
}

// Run consumes items until ctx is canceled. It suspends only while
// waiting for the next item; each item is processed synchronously.
func (w *Worker) Run(ctx context.Context) {
	w.alive.Store(true)
	defer w.alive.Store(false)

	w.cfg.Logger.Info("worker started", "job_timeout", w.cfg.JobTimeout)
	for {
		it, err := w.cfg.Queue.Dequeue(ctx)
		if err != nil {
			w.cfg.Logger.Info("worker stopping", "reason", err)
			return
		}
		w.process(ctx, it)
	}
}

func (w *Worker) process(ctx context.Context, it queue.Item) {
	logger := w.cfg.Logger.With("job_id", it.JobID)

	// Supervision boundary: a fault anywhere below fails the in-flight
	// job instead of leaving it stuck in processing.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker fault", "panic", r)
			w.fail(it, fmt.Sprintf("internal processing fault: %v", r), logger)
		}
	}()

	if err := w.cfg.Jobs.MarkProcessing(it.JobID); err != nil {
		// Record is gone (swept) or in an impossible state; nothing to
		// process either way.
		logger.Error("mark processing", "err", err)
		return
	}
	logger.Info("processing job", "source", it.SourceRef, "method", it.Request.Method, "strength", it.Request.Strength)

	start := time.Now()
	result, err := w.runTransform(ctx, it)
	if err != nil {
		logger.Warn("job failed", "err", err, "elapsed_ms", time.Since(start).Milliseconds())
		w.fail(it, err.Error(), logger)
		return
	}

	if err := w.cfg.Results.Write(ctx, it.DestRef, result); err != nil {
		logger.Error("persist result failed", "err", err)
		w.fail(it, err.Error(), logger)
		return
	}

	if err := w.cfg.Jobs.MarkCompleted(it.JobID, it.DestRef); err != nil {
		logger.Error("mark completed", "err", err)
		return
	}
	w.publish(it, job.StatusCompleted, it.DestRef, "")
	logger.Info("job completed", "result", it.DestRef, "elapsed_ms", time.Since(start).Milliseconds())
}

// runTransform executes the denoising step, containing panics and, when
// configured, enforcing a wall-clock timeout.
func (w *Worker) runTransform(ctx context.Context, it queue.Item) ([]byte, error) {
	type outcome struct {
		data []byte
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("internal processing fault: %v", r)}
			}
		}()
		data, err := w.transform(ctx, it)
		done <- outcome{data: data, err: err}
	}()

	if w.cfg.JobTimeout <= 0 {
		o := <-done
		return o.data, o.err
	}

	timer := time.NewTimer(w.cfg.JobTimeout)
	defer timer.Stop()
	select {
	case o := <-done:
		return o.data, o.err
	case <-timer.C:
		return nil, fmt.Errorf("processing timed out after %s", w.cfg.JobTimeout)
	}
}

func (w *Worker) transform(ctx context.Context, it queue.Item) ([]byte, error) {
	data, err := w.cfg.Uploads.Read(ctx, it.SourceRef)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}

	out, err := denoise.Denoise(src, it.Request)
	if err != nil {
		return nil, fmt.Errorf("denoise: %w", err)
	}

	format, err := imaging.FormatFromFilename(it.DestRef)
	if err != nil {
		return nil, fmt.Errorf("output format: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, format); err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *Worker) fail(it queue.Item, reason string, logger *slog.Logger) {
	if err := w.cfg.Jobs.MarkFailed(it.JobID, reason); err != nil {
		logger.Error("mark failed", "err", err)
		return
	}
	w.publish(it, job.StatusFailed, "", reason)
}

func (w *Worker) publish(it queue.Item, status job.Status, resultRef, reason string) {
	evt := schema.JobEvent{
		JobID:      it.JobID,
		Status:     string(status),
		SourceRef:  it.SourceRef,
		ResultRef:  resultRef,
		Error:      reason,
		Method:     string(it.Request.Method),
		Strength:   it.Request.Strength,
		Grayscale:  it.Request.Grayscale,
		HappenedAt: time.Now().Unix(),
	}
	if err := w.cfg.Events.PublishJSON(w.cfg.EventSubject, evt); err != nil {
		w.cfg.Logger.Error("publish job event failed", "subject", w.cfg.EventSubject, "job_id", it.JobID, "err", err)
	}
}
