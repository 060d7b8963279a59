package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func argString(args []string) string {
	return strings.Join(args, " ")
}

func TestMP3Args_AlwaysReencodes(t *testing.T) {
	args := argString(mp3Args("in.wav", "out.mp3"))
	for _, want := range []string{"-vn", "-ar 44100", "-ac 2", "-b:a 192k"} {
		if !strings.Contains(args, want) {
			t.Fatalf("mp3 args missing %q: %s", want, args)
		}
	}
	if strings.Contains(args, "copy") {
		t.Fatalf("mp3 conversion must never stream-copy: %s", args)
	}
}

func TestMP4Args_FastStart(t *testing.T) {
	args := argString(mp4Args("in.mkv", "out.mp4"))
	for _, want := range []string{"-c:v libx264", "-c:a aac", "-movflags +faststart", "-crf 23"} {
		if !strings.Contains(args, want) {
			t.Fatalf("mp4 args missing %q: %s", want, args)
		}
	}
}

func TestHLSArgs_FixedSegmentsNonRollingPlaylist(t *testing.T) {
	args := argString(hlsArgs("in.mp4", filepath.Join("out", "index.m3u8")))
	for _, want := range []string{"-hls_time 5", "-hls_list_size 0", "-f hls", "-start_number 0"} {
		if !strings.Contains(args, want) {
			t.Fatalf("hls args missing %q: %s", want, args)
		}
	}
}

func TestRun_MissingBinaryYieldsConversionError(t *testing.T) {
	e := NewEngine("definitely-not-a-real-transcoder")
	err := e.ToMP3(context.Background(), "in.wav", filepath.Join(t.TempDir(), "out.mp3"))
	if err == nil {
		t.Fatalf("expected an error")
	}
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *ConversionError, got %T: %v", err, err)
	}
	if !strings.Contains(convErr.Cmd, "definitely-not-a-real-transcoder") {
		t.Fatalf("error must carry the attempted command: %s", convErr.Cmd)
	}
}

func TestConversionError_CarriesDiagnostics(t *testing.T) {
	err := &ConversionError{Cmd: "ffmpeg -i x", ExitCode: 1, Output: "moov atom not found"}
	msg := err.Error()
	if !strings.Contains(msg, "code 1") || !strings.Contains(msg, "moov atom not found") {
		t.Fatalf("diagnostics missing from error text: %s", msg)
	}
}
