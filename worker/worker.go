// Package worker runs the dispatch loop: pop a job descriptor from the
// queue, mark it processing, stage the input, invoke the conversion engine,
// publish the output and write the terminal status. The queue's pop-removes
// semantics are the only mutual exclusion: once popped, a job belongs to this
// worker until it reaches a terminal status or the process dies. There is no
// retry and no redelivery; a crash mid-job leaves the job frozen at its
// last-written status.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"media-convert/constant"
	"media-convert/dto"
	"media-convert/pkg/metrics"
	"media-convert/pkg/output"
)

// Queue is the consumer side of the job queue.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
	Len(ctx context.Context) (int64, error)
}

// StatusStore is the slice of the job status store the worker writes to.
type StatusStore interface {
	UpdateJobFields(ctx context.Context, mediaID, jobID string, fields map[string]interface{}) error
}

// ObjectStore stages inputs and publishes outputs.
type ObjectStore interface {
	FGet(ctx context.Context, bucket, key, path string) error
	FPut(ctx context.Context, bucket, key, path, contentType string) error
	UploadDir(ctx context.Context, bucket, prefix, localDir string) error
}

// Engine is the conversion engine surface.
type Engine interface {
	ToMP3(ctx context.Context, inputPath, outputPath string) error
	ToMP4(ctx context.Context, inputPath, outputPath string) error
	ToHLS(ctx context.Context, inputPath, outputDir, playlistName string) (string, error)
}

type Options struct {
	ID          string
	TempDir     string
	PollTimeout time.Duration
	RetryDelay  time.Duration
}

type Worker struct {
	id          string
	queue       Queue
	store       StatusStore
	objects     ObjectStore
	engine      Engine
	metrics     *metrics.Worker
	tempDir     string
	pollTimeout time.Duration
	retryDelay  time.Duration
}

func New(q Queue, store StatusStore, objects ObjectStore, engine Engine, m *metrics.Worker, opts Options) *Worker {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 5 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.TempDir == "" {
		opts.TempDir = filepath.Join(os.TempDir(), "media_jobs")
	}
	if opts.ID == "" {
		opts.ID = "worker"
	}
	return &Worker{
		id:          opts.ID,
		queue:       q,
		store:       store,
		objects:     objects,
		engine:      engine,
		metrics:     m,
		tempDir:     opts.TempDir,
		pollTimeout: opts.PollTimeout,
		retryDelay:  opts.RetryDelay,
	}
}

// Run executes the dispatch loop until ctx is cancelled. A pop timeout is
// the idle liveness tick; a queue error backs off a fixed delay and retries.
// Nothing is in flight during an outage, so no popped message is ever lost
// to one.
func (w *Worker) Run(ctx context.Context) error {
	zerolog.Ctx(ctx).Info().Str("worker_id", w.id).Msg("worker listening on queue")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		payload, err := w.queue.Pop(ctx, w.pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			zerolog.Ctx(ctx).Error().Err(err).Str("worker_id", w.id).Msg("queue pop failed")
			w.sleep(ctx, w.retryDelay)
			continue
		}
		if payload == nil {
			w.tick(ctx)
			continue
		}

		w.handle(ctx, payload)
	}
}

// RunPool runs n independent dispatch loops over the same queue. The queue's
// atomic pop keeps them from ever claiming the same message.
func (w *Worker) RunPool(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zerolog.Ctx(ctx).Error().Err(err).Str("worker_id", w.id).Msg("dispatch loop stopped")
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (w *Worker) handle(ctx context.Context, payload []byte) {
	var msg dto.QueueMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		// No media or job id to attach a status to; drop and count.
		zerolog.Ctx(ctx).Error().Err(err).Str("worker_id", w.id).Msg("invalid job payload, dropping")
		if w.metrics != nil {
			w.metrics.JobsFailed.Inc()
		}
		return
	}

	if w.metrics != nil {
		w.metrics.JobsInProgress.Inc()
		defer w.metrics.JobsInProgress.Dec()
	}

	log := zerolog.Ctx(ctx).With().
		Str("worker_id", w.id).
		Str("job_id", msg.JobID).
		Str("media_id", msg.MediaID).
		Str("target", msg.Target.String()).
		Logger()

	log.Info().Msg("processing job")
	if err := w.process(ctx, msg); err != nil {
		log.Error().Err(err).Msg("job failed")
		if w.metrics != nil {
			w.metrics.JobsFailed.Inc()
		}
		w.markFailed(ctx, msg, err)
		return
	}

	if w.metrics != nil {
		w.metrics.JobsDone.Inc()
	}
	log.Info().Msg("job completed")
}

func (w *Worker) process(ctx context.Context, msg dto.QueueMessage) error {
	// Best effort: the message is already popped, so a failed status write
	// must not abort the conversion.
	w.markProcessing(ctx, msg)

	jobDir := filepath.Join(w.tempDir, msg.JobID)
	defer os.RemoveAll(jobDir)

	inputPath, err := w.stageInput(ctx, msg, jobDir)
	if err != nil {
		return fmt.Errorf("input unavailable: %w", err)
	}

	outDir := filepath.Join(jobDir, "output")
	if err := os.MkdirAll(outDir, os.ModePerm); err != nil {
		return err
	}

	switch msg.Target {
	case constant.TargetMP3, constant.TargetMP4:
		return w.convertSingle(ctx, msg, inputPath, outDir)
	case constant.TargetHLS:
		return w.convertHLS(ctx, msg, inputPath, outDir)
	}
	return fmt.Errorf("%w: %q", constant.ErrUnsupportedTarget, msg.Target)
}

func (w *Worker) convertSingle(ctx context.Context, msg dto.QueueMessage, inputPath, outDir string) error {
	key, err := output.Resolve(msg.OutputPrefix, msg.Target)
	if err != nil {
		return err
	}
	contentType, err := output.ContentType(msg.Target)
	if err != nil {
		return err
	}

	outFile := filepath.Join(outDir, filepath.Base(key))
	if msg.Target == constant.TargetMP3 {
		err = w.engine.ToMP3(ctx, inputPath, outFile)
	} else {
		err = w.engine.ToMP4(ctx, inputPath, outFile)
	}
	if err != nil {
		return err
	}

	if err := w.objects.FPut(ctx, msg.OutputBucket, key, outFile, contentType); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	var size *int64
	if info, statErr := os.Stat(outFile); statErr == nil {
		n := info.Size()
		size = &n
	}
	w.markDone(ctx, msg, key, size)
	return nil
}

func (w *Worker) convertHLS(ctx context.Context, msg dto.QueueMessage, inputPath, outDir string) error {
	hlsDir := filepath.Join(outDir, "hls")
	playlistPath, err := w.engine.ToHLS(ctx, inputPath, hlsDir, "index.m3u8")
	if err != nil {
		return err
	}

	// Playlist plus all segments under the same prefix.
	if err := w.objects.UploadDir(ctx, msg.OutputBucket, msg.OutputPrefix, filepath.Dir(playlistPath)); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	key, err := output.Resolve(msg.OutputPrefix, constant.TargetHLS)
	if err != nil {
		return err
	}
	w.markDone(ctx, msg, key, nil)
	return nil
}

// stageInput resolves a local input file: a producer-supplied local path is
// honored, otherwise the source object is downloaded from the object store.
func (w *Worker) stageInput(ctx context.Context, msg dto.QueueMessage, jobDir string) (string, error) {
	if msg.LocalPath != "" {
		if _, err := os.Stat(msg.LocalPath); err == nil {
			return msg.LocalPath, nil
		}
	}

	if msg.SourceBucket == "" || msg.SourceObject == "" {
		return "", errors.New("job has neither local_path nor source_bucket/source_object")
	}

	ext := filepath.Ext(msg.SourceObject)
	if ext == "" {
		ext = ".bin"
	}
	destPath := filepath.Join(jobDir, "input"+ext)
	if err := w.objects.FGet(ctx, msg.SourceBucket, msg.SourceObject, destPath); err != nil {
		return "", err
	}
	return destPath, nil
}

func (w *Worker) markProcessing(ctx context.Context, msg dto.QueueMessage) {
	if msg.MediaID == "" || msg.JobID == "" {
		return
	}
	err := w.store.UpdateJobFields(ctx, msg.MediaID, msg.JobID, map[string]interface{}{
		"status":     constant.JobStatusProcessing,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", msg.JobID).Msg("failed to mark job processing, continuing")
	}
}

func (w *Worker) markDone(ctx context.Context, msg dto.QueueMessage, outputObject string, size *int64) {
	if msg.MediaID == "" || msg.JobID == "" {
		return
	}
	fields := map[string]interface{}{
		"status":        constant.JobStatusDone,
		"target":        msg.Target,
		"output_prefix": msg.OutputPrefix,
		"output_bucket": msg.OutputBucket,
		"output_object": outputObject,
		"updated_at":    time.Now().UTC(),
	}
	if size != nil {
		fields["output_size_bytes"] = *size
	}
	if err := w.store.UpdateJobFields(ctx, msg.MediaID, msg.JobID, fields); err != nil {
		// The job's real outcome is now invisible to retrieval paths; there
		// is no compensation for a lost terminal write.
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", msg.JobID).Str("intended_status", constant.JobStatusDone.String()).Msg("failed to write terminal status")
	}
}

func (w *Worker) markFailed(ctx context.Context, msg dto.QueueMessage, cause error) {
	if msg.MediaID == "" || msg.JobID == "" {
		return
	}
	err := w.store.UpdateJobFields(ctx, msg.MediaID, msg.JobID, map[string]interface{}{
		"status":     constant.JobStatusFailed,
		"details":    cause.Error(),
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", msg.JobID).Str("intended_status", constant.JobStatusFailed.String()).Msg("failed to write terminal status")
	}
}

// tick runs the idle liveness work: refresh the last-seen gauge and the
// queue depth.
func (w *Worker) tick(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	w.metrics.LastTick.SetToCurrentTime()
	if depth, err := w.queue.Len(ctx); err == nil {
		w.metrics.QueueDepth.Set(float64(depth))
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
