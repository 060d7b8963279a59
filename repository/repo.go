package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"media-convert/constant"
	"media-convert/entities"
)

var (
	ErrMediaNotFound = errors.New("media not found")
	ErrJobNotFound   = errors.New("job not found")
)

// MediaRepository is the job status store client. One record per media item,
// with the per-job sub-records embedded in a jsonb map. AppendJob and
// UpdateJobFields each run as a single UPDATE so concurrent workers never
// need external locking: writes are addressed by job id and a job is only
// ever touched by the one worker that popped it.
type MediaRepository interface {
	Create(ctx context.Context, media *entities.Media) error
	FindByID(ctx context.Context, id string) (*entities.Media, error)
	FindByJobID(ctx context.Context, jobID string) (*entities.Media, error)
	AppendJob(ctx context.Context, mediaID, jobID string, job entities.Job) error
	UpdateJobFields(ctx context.Context, mediaID, jobID string, fields map[string]interface{}) error
	UpdateSharing(ctx context.Context, mediaID, userID, jobID string) error
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) MediaRepository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) Create(ctx context.Context, media *entities.Media) error {
	if media.ID == "" {
		media.ID = uuid.NewString()
	}
	if media.Status == "" {
		media.Status = constant.MediaStatusUploaded
	}
	if media.JobIDs == nil {
		media.JobIDs = entities.StringList{}
	}
	if media.Jobs == nil {
		media.Jobs = entities.JobMap{}
	}
	return r.db.WithContext(ctx).Create(media).Error
}

func (r *repo) FindByID(ctx context.Context, id string) (*entities.Media, error) {
	media := &entities.Media{}
	err := r.db.WithContext(ctx).First(media, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, err
	}
	return media, nil
}

// FindByJobID locates the media record owning jobID via jsonb containment on
// the job_ids array.
func (r *repo) FindByJobID(ctx context.Context, jobID string) (*entities.Media, error) {
	needle, err := json.Marshal([]string{jobID})
	if err != nil {
		return nil, err
	}

	media := &entities.Media{}
	err = r.db.WithContext(ctx).First(media, "job_ids @> ?::jsonb", string(needle)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, err
	}
	return media, nil
}

// AppendJob atomically unions jobID into job_ids, inserts the job sub-record
// and marks the media processing. Both writes are guarded so a retry never
// duplicates the id or overwrites an existing sub-record.
func (r *repo) AppendJob(ctx context.Context, mediaID, jobID string, job entities.Job) error {
	idElem, err := json.Marshal([]string{jobID})
	if err != nil {
		return err
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Exec(`
		UPDATE media SET
			job_ids = CASE WHEN job_ids @> ?::jsonb THEN job_ids ELSE job_ids || ?::jsonb END,
			jobs    = CASE WHEN jsonb_exists(jobs, ?) THEN jobs ELSE jsonb_set(jobs, ARRAY[?], ?::jsonb) END,
			status  = ?
		WHERE id = ?`,
		string(idElem), string(idElem),
		jobID, jobID, string(payload),
		constant.MediaStatusProcessing,
		mediaID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMediaNotFound
	}
	return nil
}

// UpdateJobFields merges a partial field map into exactly one job sub-record.
// Sibling jobs and other columns are untouched, except the overall media
// status, which follows a terminal job status (done -> ready, failed ->
// error).
func (r *repo) UpdateJobFields(ctx context.Context, mediaID, jobID string, fields map[string]interface{}) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	overall := ""
	if s, ok := fields["status"]; ok {
		switch fmt.Sprint(s) {
		case constant.JobStatusDone.String():
			overall = string(constant.MediaStatusReady)
		case constant.JobStatusFailed.String():
			overall = string(constant.MediaStatusError)
		case constant.JobStatusProcessing.String():
			overall = string(constant.MediaStatusProcessing)
		}
	}

	query := `
		UPDATE media SET
			jobs = jsonb_set(jobs, ARRAY[?], COALESCE(jobs->?, '{}'::jsonb) || ?::jsonb)
		WHERE id = ? AND jsonb_exists(jobs, ?)`
	args := []interface{}{jobID, jobID, string(payload), mediaID, jobID}
	if overall != "" {
		query = `
		UPDATE media SET
			jobs   = jsonb_set(jobs, ARRAY[?], COALESCE(jobs->?, '{}'::jsonb) || ?::jsonb),
			status = ?
		WHERE id = ? AND jsonb_exists(jobs, ?)`
		args = []interface{}{jobID, jobID, string(payload), overall, mediaID, jobID}
	}

	res := r.db.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// UpdateSharing unions a grantee into shared_with and records the (user, job)
// share entry. Idempotent for repeated grants.
func (r *repo) UpdateSharing(ctx context.Context, mediaID, userID, jobID string) error {
	userElem, err := json.Marshal([]string{userID})
	if err != nil {
		return err
	}
	shareElem, err := json.Marshal([]entities.ShareEntry{{UserID: userID, JobID: jobID}})
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Exec(`
		UPDATE media SET
			shared_with = CASE WHEN shared_with @> ?::jsonb THEN shared_with ELSE shared_with || ?::jsonb END,
			shares      = CASE WHEN shares @> ?::jsonb THEN shares ELSE shares || ?::jsonb END
		WHERE id = ?`,
		string(userElem), string(userElem),
		string(shareElem), string(shareElem),
		mediaID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMediaNotFound
	}
	return nil
}
