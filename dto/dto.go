package dto

import (
	"time"

	"media-convert/constant"
)

// QueueMessage is the wire format of one conversion job descriptor. Exactly
// one copy exists in the queue per enqueue call; popping removes it.
type QueueMessage struct {
	JobID        string          `json:"job_id"`
	MediaID      string          `json:"media_id"`
	Target       constant.Target `json:"target"`
	SourceBucket string          `json:"source_bucket"`
	SourceObject string          `json:"source_object"`
	OutputBucket string          `json:"output_bucket"`
	OutputPrefix string          `json:"output_prefix"`
	// LocalPath lets a co-located producer hand the worker an already staged
	// input file, skipping the object store download.
	LocalPath string `json:"local_path,omitempty"`
}

type ConvertRequest struct {
	Target string `json:"target" binding:"required,oneof=mp3 mp4 hls"`
}

type ConvertResponse struct {
	JobID  string             `json:"job_id"`
	Status constant.JobStatus `json:"status"`
}

type JobStatusResponse struct {
	JobID           string             `json:"job_id"`
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

type ShareRequest struct {
	UserID string `json:"user_id" binding:"required"`
	JobID  string `json:"job_id"`
}

type DownloadResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
