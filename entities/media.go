package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"media-convert/constant"
)

// Job is one conversion attempt, embedded in the media record keyed by job id.
// It becomes immutable once its status is terminal.
type Job struct {
	Target          constant.Target    `json:"target"`
	Status          constant.JobStatus `json:"status"`
	OutputPrefix    string             `json:"output_prefix"`
	OutputBucket    string             `json:"output_bucket,omitempty"`
	OutputObject    string             `json:"output_object,omitempty"`
	OutputSizeBytes *int64             `json:"output_size_bytes,omitempty"`
	Details         string             `json:"details,omitempty"`
	EnqueuedAt      time.Time          `json:"enqueued_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

type JobMap map[string]Job

type StringList []string

// ShareEntry grants one user access to one job's output.
type ShareEntry struct {
	UserID string `json:"user_id"`
	JobID  string `json:"job_id"`
}

type ShareList []ShareEntry

type Media struct {
	ID               string               `gorm:"primaryKey" json:"id"`
	UserID           string               `json:"user_id"`
	OriginalFilename string               `json:"original_filename"`
	SourceBucket     string               `json:"source_bucket"`
	SourceObject     string               `json:"source_object"`
	ContentType      string               `json:"content_type"`
	Status           constant.MediaStatus `json:"status"`
	JobIDs           StringList           `gorm:"column:job_ids;type:jsonb" json:"job_ids"`
	Jobs             JobMap               `gorm:"column:jobs;type:jsonb" json:"jobs"`
	SharedWith       StringList           `gorm:"column:shared_with;type:jsonb" json:"shared_with,omitempty"`
	Shares           ShareList            `gorm:"column:shares;type:jsonb" json:"shares,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
}

func (Media) TableName() string {
	return "media"
}

// SharedWithUser reports whether userID was granted access via sharing.
func (m *Media) SharedWithUser(userID string) bool {
	for _, id := range m.SharedWith {
		if id == userID {
			return true
		}
	}
	return false
}

func (m JobMap) Value() (driver.Value, error) {
	if m == nil {
		m = JobMap{}
	}
	return json.Marshal(m)
}

func (m *JobMap) Scan(value interface{}) error {
	return scanJSON(value, m)
}

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

func (l ShareList) Value() (driver.Value, error) {
	if l == nil {
		l = ShareList{}
	}
	return json.Marshal(l)
}

func (l *ShareList) Scan(value interface{}) error {
	return scanJSON(value, l)
}

func scanJSON(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	}
	return fmt.Errorf("cannot scan %T into jsonb column", value)
}
