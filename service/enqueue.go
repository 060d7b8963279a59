package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"media-convert/constant"
	"media-convert/dto"
	"media-convert/entities"
	"media-convert/pkg/output"
	"media-convert/repository"
)

var (
	ErrForbidden    = errors.New("caller does not own this media")
	ErrInvalidState = errors.New("media has no source object to convert")
)

// JobQueue is the producer side of the conversion queue.
type JobQueue interface {
	Push(ctx context.Context, payload []byte) error
}

// Enqueuer turns a validated conversion request into an enqueued job: fresh
// job id, deterministic output prefix, initial status record, queue message.
type Enqueuer interface {
	Enqueue(ctx context.Context, mediaID string, target constant.Target, callerID string) (string, error)
}

type enqueuer struct {
	repo         repository.MediaRepository
	queue        JobQueue
	outputBucket string
}

func NewEnqueuer(repo repository.MediaRepository, queue JobQueue, outputBucket string) Enqueuer {
	return &enqueuer{
		repo:         repo,
		queue:        queue,
		outputBucket: outputBucket,
	}
}

// Enqueue writes the job sub-record before pushing the queue message, so a
// worker can never observe a message without a backing record. The two writes
// are not transactional across both systems; a failed push leaves an
// enqueued record that no worker will ever claim.
func (s *enqueuer) Enqueue(ctx context.Context, mediaID string, target constant.Target, callerID string) (string, error) {
	if !target.Valid() {
		return "", constant.ErrUnsupportedTarget
	}

	media, err := s.repo.FindByID(ctx, mediaID)
	if err != nil {
		return "", err
	}
	if media.UserID != callerID {
		return "", ErrForbidden
	}
	if media.SourceBucket == "" || media.SourceObject == "" {
		return "", ErrInvalidState
	}

	jobID := uuid.NewString()
	prefix := output.Prefix(mediaID, jobID)
	now := time.Now().UTC()

	job := entities.Job{
		Target:       target,
		Status:       constant.JobStatusEnqueued,
		OutputPrefix: prefix,
		OutputBucket: s.outputBucket,
		EnqueuedAt:   now,
		UpdatedAt:    now,
	}
	if err := s.repo.AppendJob(ctx, mediaID, jobID, job); err != nil {
		return "", err
	}

	payload, err := json.Marshal(dto.QueueMessage{
		JobID:        jobID,
		MediaID:      mediaID,
		Target:       target,
		SourceBucket: media.SourceBucket,
		SourceObject: media.SourceObject,
		OutputBucket: s.outputBucket,
		OutputPrefix: prefix,
	})
	if err != nil {
		return "", err
	}
	if err := s.queue.Push(ctx, payload); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("job_id", jobID).Str("media_id", mediaID).Msg("failed to push job to queue")
		return "", err
	}

	zerolog.Ctx(ctx).Info().
		Str("job_id", jobID).
		Str("media_id", mediaID).
		Str("target", target.String()).
		Msg("job enqueued")

	return jobID, nil
}
