package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"media-convert/constant"
	"media-convert/dto"
	"media-convert/entities"
	"media-convert/repository"
)

type appendCall struct {
	mediaID string
	jobID   string
	job     entities.Job
}

type stubRepo struct {
	media     *entities.Media
	appends   []appendCall
	appendErr error
	shares    []entities.ShareEntry
}

func (r *stubRepo) Create(_ context.Context, media *entities.Media) error { return nil }

func (r *stubRepo) FindByID(_ context.Context, id string) (*entities.Media, error) {
	if r.media == nil || r.media.ID != id {
		return nil, repository.ErrMediaNotFound
	}
	return r.media, nil
}

func (r *stubRepo) FindByJobID(_ context.Context, jobID string) (*entities.Media, error) {
	if r.media != nil {
		for _, id := range r.media.JobIDs {
			if id == jobID {
				return r.media, nil
			}
		}
	}
	return nil, repository.ErrMediaNotFound
}

func (r *stubRepo) AppendJob(_ context.Context, mediaID, jobID string, job entities.Job) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	// set-union semantics: a duplicate id is a no-op
	for _, c := range r.appends {
		if c.jobID == jobID {
			return nil
		}
	}
	r.appends = append(r.appends, appendCall{mediaID: mediaID, jobID: jobID, job: job})
	return nil
}

func (r *stubRepo) UpdateJobFields(_ context.Context, _, _ string, _ map[string]interface{}) error {
	return nil
}

func (r *stubRepo) UpdateSharing(_ context.Context, _, userID, jobID string) error {
	r.shares = append(r.shares, entities.ShareEntry{UserID: userID, JobID: jobID})
	return nil
}

type recordingQueue struct {
	repo    *stubRepo
	pushed  [][]byte
	pushErr error
	// pushes seen while the repo had no job record yet
	pushedWithoutRecord bool
}

func (q *recordingQueue) Push(_ context.Context, payload []byte) error {
	if q.pushErr != nil {
		return q.pushErr
	}
	if q.repo != nil && len(q.repo.appends) == 0 {
		q.pushedWithoutRecord = true
	}
	q.pushed = append(q.pushed, payload)
	return nil
}

func ownedMedia() *entities.Media {
	return &entities.Media{
		ID:           "media-1",
		UserID:       "alice",
		SourceBucket: "uploads",
		SourceObject: "media-1/clip.mov",
	}
}

func TestEnqueue_CreatesRecordThenPushes(t *testing.T) {
	repo := &stubRepo{media: ownedMedia()}
	q := &recordingQueue{repo: repo}
	enq := NewEnqueuer(repo, q, "converted")

	jobID, err := enq.Enqueue(context.Background(), "media-1", constant.TargetMP3, "alice")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if jobID == "" {
		t.Fatalf("expected a job id")
	}

	if len(repo.appends) != 1 {
		t.Fatalf("expected one job record, got %d", len(repo.appends))
	}
	call := repo.appends[0]
	if call.job.Status != constant.JobStatusEnqueued {
		t.Fatalf("initial status must be enqueued, got %s", call.job.Status)
	}
	if call.job.OutputPrefix != "media-1/"+jobID {
		t.Fatalf("unexpected output prefix %q", call.job.OutputPrefix)
	}
	if call.job.OutputBucket != "converted" {
		t.Fatalf("unexpected output bucket %q", call.job.OutputBucket)
	}

	if q.pushedWithoutRecord {
		t.Fatalf("queue message pushed before the status record existed")
	}
	if len(q.pushed) != 1 {
		t.Fatalf("expected one queue message, got %d", len(q.pushed))
	}

	var msg dto.QueueMessage
	if err := json.Unmarshal(q.pushed[0], &msg); err != nil {
		t.Fatalf("unmarshal queue message: %v", err)
	}
	if msg.JobID != jobID || msg.MediaID != "media-1" || msg.Target != constant.TargetMP3 {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.SourceBucket != "uploads" || msg.SourceObject != "media-1/clip.mov" {
		t.Fatalf("message missing source location: %+v", msg)
	}
	if msg.OutputBucket != "converted" || msg.OutputPrefix != "media-1/"+jobID {
		t.Fatalf("message missing output location: %+v", msg)
	}
}

func TestEnqueue_UnknownMedia(t *testing.T) {
	repo := &stubRepo{}
	enq := NewEnqueuer(repo, &recordingQueue{}, "converted")

	if _, err := enq.Enqueue(context.Background(), "nope", constant.TargetMP3, "alice"); !errors.Is(err, repository.ErrMediaNotFound) {
		t.Fatalf("expected ErrMediaNotFound, got %v", err)
	}
}

func TestEnqueue_ForbiddenForNonOwner(t *testing.T) {
	repo := &stubRepo{media: ownedMedia()}
	enq := NewEnqueuer(repo, &recordingQueue{}, "converted")

	if _, err := enq.Enqueue(context.Background(), "media-1", constant.TargetMP3, "mallory"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(repo.appends) != 0 {
		t.Fatalf("no record may be written for a forbidden request")
	}
}

func TestEnqueue_InvalidStateWithoutSource(t *testing.T) {
	media := ownedMedia()
	media.SourceObject = ""
	repo := &stubRepo{media: media}
	enq := NewEnqueuer(repo, &recordingQueue{}, "converted")

	if _, err := enq.Enqueue(context.Background(), "media-1", constant.TargetHLS, "alice"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestEnqueue_UnsupportedTarget(t *testing.T) {
	repo := &stubRepo{media: ownedMedia()}
	enq := NewEnqueuer(repo, &recordingQueue{}, "converted")

	if _, err := enq.Enqueue(context.Background(), "media-1", "wav", "alice"); !errors.Is(err, constant.ErrUnsupportedTarget) {
		t.Fatalf("expected ErrUnsupportedTarget, got %v", err)
	}
}

func TestEnqueue_PushFailurePropagates(t *testing.T) {
	repo := &stubRepo{media: ownedMedia()}
	q := &recordingQueue{repo: repo, pushErr: errors.New("queue unavailable")}
	enq := NewEnqueuer(repo, q, "converted")

	if _, err := enq.Enqueue(context.Background(), "media-1", constant.TargetMP4, "alice"); err == nil {
		t.Fatalf("expected push error to propagate")
	}
	// The record stays behind; the design accepts an enqueued record that no
	// worker will claim over a queued message with no backing record.
	if len(repo.appends) != 1 {
		t.Fatalf("status record should have been written before the push")
	}
}
