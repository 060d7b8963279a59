// Package output maps a job's output prefix and target format to the
// canonical object store key(s) of its published result. The worker publishes
// to these keys and every retrieval path reads from them; the two sides must
// never diverge, so key construction lives here and nowhere else.
package output

import (
	"fmt"

	"media-convert/constant"
)

// Prefix returns the deterministic key namespace for one job's outputs.
func Prefix(mediaID, jobID string) string {
	return mediaID + "/" + jobID
}

// Resolve returns the entry-point object key for a completed job. For mp3 and
// mp4 this is the single output object. For hls it is the playlist; segment
// objects live under the same prefix and are discovered by directory listing
// at publish time, not here.
func Resolve(outputPrefix string, target constant.Target) (string, error) {
	switch target {
	case constant.TargetMP3:
		return outputPrefix + "/output.mp3", nil
	case constant.TargetMP4:
		return outputPrefix + "/output.mp4", nil
	case constant.TargetHLS:
		return outputPrefix + "/index.m3u8", nil
	}
	return "", fmt.Errorf("%w: %q", constant.ErrUnsupportedTarget, target)
}

// ContentType returns the MIME type of the entry-point object for target.
func ContentType(target constant.Target) (string, error) {
	switch target {
	case constant.TargetMP3:
		return "audio/mpeg", nil
	case constant.TargetMP4:
		return "video/mp4", nil
	case constant.TargetHLS:
		return "application/vnd.apple.mpegurl", nil
	}
	return "", fmt.Errorf("%w: %q", constant.ErrUnsupportedTarget, target)
}
