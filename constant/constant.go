package constant

import "errors"

var ErrUnsupportedTarget = errors.New("unsupported target")

// Target is the closed set of conversion output formats.
type Target string

const (
	TargetMP3 Target = "mp3"
	TargetMP4 Target = "mp4"
	TargetHLS Target = "hls"
)

func (t Target) String() string {
	return string(t)
}

func (t Target) Valid() bool {
	switch t {
	case TargetMP3, TargetMP4, TargetHLS:
		return true
	}
	return false
}

func ParseTarget(s string) (Target, error) {
	t := Target(s)
	if !t.Valid() {
		return "", ErrUnsupportedTarget
	}
	return t, nil
}

// JobStatus moves one-directionally: enqueued -> processing -> done|failed.
type JobStatus string

const (
	JobStatusEnqueued   JobStatus = "enqueued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

func (s JobStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transition may occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// CanTransition reports whether next is a legal successor of s.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusEnqueued:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusDone || next == JobStatusFailed
	}
	return false
}

// MediaStatus is the overall state of one uploaded media item.
type MediaStatus string

const (
	MediaStatusUploaded   MediaStatus = "uploaded"
	MediaStatusProcessing MediaStatus = "processing"
	MediaStatusReady      MediaStatus = "ready"
	MediaStatusError      MediaStatus = "error"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
