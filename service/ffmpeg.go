package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ConversionError carries the transcoder's diagnostic output for a non-zero
// exit. The captured text is stored verbatim into the job's details field.
type ConversionError struct {
	Cmd      string
	ExitCode int
	Output   string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("ffmpeg failed with code %d\nCOMMAND: %s\nOUTPUT:\n%s", e.ExitCode, e.Cmd, e.Output)
}

// Engine wraps the external ffmpeg binary. All conversions are synchronous
// and blocking; they are the dominant latency contributor of the pipeline.
type Engine struct {
	binaryPath string
}

func NewEngine(binaryPath string) *Engine {
	if binaryPath == "" {
		binaryPath = "ffmpeg"
	}
	return &Engine{binaryPath: binaryPath}
}

// ToMP3 re-encodes any supported input container to stereo MP3. It never
// stream-copies, so the output is always a valid playable file.
func (e *Engine) ToMP3(ctx context.Context, inputPath, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		return err
	}
	return e.run(ctx, mp3Args(inputPath, outputPath))
}

// ToMP4 re-encodes video to H.264 and audio to AAC with a faststart layout
// so playback can begin before the file is fully downloaded.
func (e *Engine) ToMP4(ctx context.Context, inputPath, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		return err
	}
	return e.run(ctx, mp4Args(inputPath, outputPath))
}

// ToHLS segments the input into fixed-length chunks under outputDir with a
// single non-rolling playlist, suitable for on-demand playback. It returns
// the playlist path.
func (e *Engine) ToHLS(ctx context.Context, inputPath, outputDir, playlistName string) (string, error) {
	if playlistName == "" {
		playlistName = "index.m3u8"
	}
	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return "", err
	}
	playlistPath := filepath.Join(outputDir, playlistName)
	if err := e.run(ctx, hlsArgs(inputPath, playlistPath)); err != nil {
		return "", err
	}
	return playlistPath, nil
}

func mp3Args(inputPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-ar", "44100",
		"-ac", "2",
		"-b:a", "192k",
		outputPath,
	}
}

func mp4Args(inputPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outputPath,
	}
}

func hlsArgs(inputPath, playlistPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-start_number", "0",
		"-hls_time", "5",
		"-hls_list_size", "0",
		"-f", "hls",
		playlistPath,
	}
}

func (e *Engine) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &ConversionError{
			Cmd:      e.binaryPath + " " + strings.Join(args, " "),
			ExitCode: exitCode,
			Output:   string(output),
		}
	}
	return nil
}
