package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"media-convert/constant"
	"media-convert/dto"
	"media-convert/entities"
	"media-convert/pkg/output"
	"media-convert/repository"
)

var (
	ErrJobNotFound    = errors.New("job not found on media")
	ErrJobNotReady    = errors.New("job has not completed")
	ErrNoCompletedJob = errors.New("media has no completed job")
)

// ObjectStore is the blob-store surface the media service consumes.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (*url.URL, error)
}

// MediaService covers upload and the retrieval paths: status reads, presigned
// downloads and sharing. Retrieval resolves output keys through pkg/output,
// the same function the worker publishes with.
type MediaService interface {
	Upload(ctx context.Context, userID, filename string, r io.Reader, size int64, contentType string) (*entities.Media, error)
	Get(ctx context.Context, mediaID, callerID string) (*entities.Media, error)
	GetJob(ctx context.Context, mediaID, jobID, callerID string) (*dto.JobStatusResponse, error)
	FindJob(ctx context.Context, jobID, callerID string) (*dto.JobStatusResponse, error)
	ResolveDownload(ctx context.Context, mediaID, jobID, callerID string, ttl time.Duration) (*dto.DownloadResponse, error)
	OpenStream(ctx context.Context, mediaID, jobID, callerID string) (io.ReadCloser, string, error)
	Share(ctx context.Context, mediaID, jobID, ownerID, granteeID string) error
}

type mediaService struct {
	repo         repository.MediaRepository
	store        ObjectStore
	uploadBucket string
}

func NewMediaService(repo repository.MediaRepository, store ObjectStore, uploadBucket string) MediaService {
	return &mediaService{
		repo:         repo,
		store:        store,
		uploadBucket: uploadBucket,
	}
}

// Upload stages the source bytes in the upload bucket and creates the media
// record. When the client did not declare a content type it is sniffed from
// the stream head.
func (s *mediaService) Upload(ctx context.Context, userID, filename string, r io.Reader, size int64, contentType string) (*entities.Media, error) {
	if contentType == "" {
		var header bytes.Buffer
		mtype, err := mimetype.DetectReader(io.TeeReader(r, &header))
		if err != nil {
			return nil, err
		}
		contentType = mtype.String()
		r = io.MultiReader(&header, r)
	}

	if err := s.store.EnsureBucket(ctx, s.uploadBucket); err != nil {
		return nil, err
	}

	mediaID := uuid.NewString()
	sourceObject := mediaID + "/" + filename
	if err := s.store.Put(ctx, s.uploadBucket, sourceObject, r, size, contentType); err != nil {
		return nil, err
	}

	media := &entities.Media{
		ID:               mediaID,
		UserID:           userID,
		OriginalFilename: filename,
		SourceBucket:     s.uploadBucket,
		SourceObject:     sourceObject,
		ContentType:      contentType,
		Status:           constant.MediaStatusUploaded,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, media); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("media_id", mediaID).Str("user_id", userID).Msg("media uploaded")
	return media, nil
}

func (s *mediaService) Get(ctx context.Context, mediaID, callerID string) (*entities.Media, error) {
	media, err := s.repo.FindByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(media, callerID); err != nil {
		return nil, err
	}
	return media, nil
}

func (s *mediaService) GetJob(ctx context.Context, mediaID, jobID, callerID string) (*dto.JobStatusResponse, error) {
	media, err := s.repo.FindByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(media, callerID); err != nil {
		return nil, err
	}

	job, ok := media.Jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return jobStatusResponse(jobID, job), nil
}

// FindJob locates a job's status when only the job id is known, via the
// job_ids index on the media records.
func (s *mediaService) FindJob(ctx context.Context, jobID, callerID string) (*dto.JobStatusResponse, error) {
	media, err := s.repo.FindByJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(media, callerID); err != nil {
		return nil, err
	}

	job, ok := media.Jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return jobStatusResponse(jobID, job), nil
}

// ResolveDownload issues a presigned GET URL for a completed job's output.
// When jobID is empty it falls back to the first job, in job_ids insertion
// order, whose status is done. With several completed jobs that pick is
// ambiguous; pass a job id to disambiguate.
func (s *mediaService) ResolveDownload(ctx context.Context, mediaID, jobID, callerID string, ttl time.Duration) (*dto.DownloadResponse, error) {
	media, err := s.repo.FindByID(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(media, callerID); err != nil {
		return nil, err
	}

	job, err := resolveCompleted(media, jobID)
	if err != nil {
		return nil, err
	}

	key, err := output.Resolve(job.OutputPrefix, job.Target)
	if err != nil {
		return nil, err
	}

	u, err := s.store.PresignGet(ctx, job.OutputBucket, key, ttl)
	if err != nil {
		return nil, err
	}

	return &dto.DownloadResponse{
		URL:       u.String(),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}

// OpenStream opens the completed output for server-side streaming, with the
// same job selection rules as ResolveDownload. The caller owns the returned
// reader.
func (s *mediaService) OpenStream(ctx context.Context, mediaID, jobID, callerID string) (io.ReadCloser, string, error) {
	media, err := s.repo.FindByID(ctx, mediaID)
	if err != nil {
		return nil, "", err
	}
	if err := checkAccess(media, callerID); err != nil {
		return nil, "", err
	}

	job, err := resolveCompleted(media, jobID)
	if err != nil {
		return nil, "", err
	}

	key, err := output.Resolve(job.OutputPrefix, job.Target)
	if err != nil {
		return nil, "", err
	}
	contentType, err := output.ContentType(job.Target)
	if err != nil {
		return nil, "", err
	}

	rc, err := s.store.Get(ctx, job.OutputBucket, key)
	if err != nil {
		return nil, "", err
	}
	return rc, contentType, nil
}

func (s *mediaService) Share(ctx context.Context, mediaID, jobID, ownerID, granteeID string) error {
	media, err := s.repo.FindByID(ctx, mediaID)
	if err != nil {
		return err
	}
	if media.UserID != ownerID {
		return ErrForbidden
	}
	if jobID != "" {
		if _, ok := media.Jobs[jobID]; !ok {
			return ErrJobNotFound
		}
	}
	return s.repo.UpdateSharing(ctx, mediaID, granteeID, jobID)
}

func checkAccess(media *entities.Media, callerID string) error {
	if media.UserID == callerID || media.SharedWithUser(callerID) {
		return nil
	}
	return ErrForbidden
}

// resolveCompleted returns the job to serve. An empty jobID falls back to the
// first completed job in job_ids insertion order.
func resolveCompleted(media *entities.Media, jobID string) (entities.Job, error) {
	if jobID == "" {
		for _, id := range media.JobIDs {
			if job, ok := media.Jobs[id]; ok && job.Status == constant.JobStatusDone {
				return job, nil
			}
		}
		return entities.Job{}, ErrNoCompletedJob
	}

	job, ok := media.Jobs[jobID]
	if !ok {
		return entities.Job{}, ErrJobNotFound
	}
	if job.Status != constant.JobStatusDone {
		return entities.Job{}, ErrJobNotReady
	}
	return job, nil
}

func jobStatusResponse(jobID string, job entities.Job) *dto.JobStatusResponse {
	return &dto.JobStatusResponse{
		JobID:           jobID,
		Target:          job.Target,
		Status:          job.Status,
		OutputPrefix:    job.OutputPrefix,
		OutputBucket:    job.OutputBucket,
		OutputObject:    job.OutputObject,
		OutputSizeBytes: job.OutputSizeBytes,
		Details:         job.Details,
		EnqueuedAt:      job.EnqueuedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}
