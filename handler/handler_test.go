package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"media-convert/constant"
	"media-convert/dto"
	"media-convert/entities"
	"media-convert/repository"
	"media-convert/service"
)

type stubEnqueuer struct {
	jobID string
	err   error

	gotMedia  string
	gotTarget constant.Target
	gotCaller string
}

func (s *stubEnqueuer) Enqueue(_ context.Context, mediaID string, target constant.Target, callerID string) (string, error) {
	s.gotMedia, s.gotTarget, s.gotCaller = mediaID, target, callerID
	if s.err != nil {
		return "", s.err
	}
	return s.jobID, nil
}

type stubMedia struct {
	job *dto.JobStatusResponse
	err error
}

func (s *stubMedia) Upload(context.Context, string, string, io.Reader, int64, string) (*entities.Media, error) {
	return nil, s.err
}

func (s *stubMedia) Get(context.Context, string, string) (*entities.Media, error) {
	return nil, s.err
}

func (s *stubMedia) GetJob(context.Context, string, string, string) (*dto.JobStatusResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.job, nil
}

func (s *stubMedia) FindJob(context.Context, string, string) (*dto.JobStatusResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.job, nil
}

func (s *stubMedia) ResolveDownload(context.Context, string, string, string, time.Duration) (*dto.DownloadResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.DownloadResponse{URL: "https://store.local/x"}, nil
}

func (s *stubMedia) OpenStream(context.Context, string, string, string) (io.ReadCloser, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return io.NopCloser(strings.NewReader("stream bytes")), "video/mp4", nil
}

func (s *stubMedia) Share(context.Context, string, string, string, string) error {
	return s.err
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	Register(r, h)
	return r
}

func doJSON(r *gin.Engine, method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestConvert_Accepted(t *testing.T) {
	enq := &stubEnqueuer{jobID: "job-1"}
	r := newRouter(&Handler{Media: &stubMedia{}, Enqueuer: enq})

	w := doJSON(r, http.MethodPost, "/media/media-1/convert", "alice", `{"target":"mp3"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var res dto.ConvertResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.JobID != "job-1" || res.Status != constant.JobStatusEnqueued {
		t.Fatalf("unexpected response %+v", res)
	}
	if enq.gotMedia != "media-1" || enq.gotTarget != constant.TargetMP3 || enq.gotCaller != "alice" {
		t.Fatalf("enqueuer called with %q %q %q", enq.gotMedia, enq.gotTarget, enq.gotCaller)
	}
}

func TestConvert_RejectsBadTarget(t *testing.T) {
	r := newRouter(&Handler{Media: &stubMedia{}, Enqueuer: &stubEnqueuer{}})

	w := doJSON(r, http.MethodPost, "/media/media-1/convert", "alice", `{"target":"wav"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestConvert_RequiresIdentity(t *testing.T) {
	r := newRouter(&Handler{Media: &stubMedia{}, Enqueuer: &stubEnqueuer{}})

	w := doJSON(r, http.MethodPost, "/media/media-1/convert", "", `{"target":"mp3"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{repository.ErrMediaNotFound, http.StatusNotFound},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrInvalidState, http.StatusConflict},
	}
	for _, c := range cases {
		r := newRouter(&Handler{Media: &stubMedia{}, Enqueuer: &stubEnqueuer{err: c.err}})
		w := doJSON(r, http.MethodPost, "/media/media-1/convert", "alice", `{"target":"mp3"}`)
		if w.Code != c.code {
			t.Fatalf("error %v mapped to %d, want %d", c.err, w.Code, c.code)
		}
	}
}

func TestDownload_ReturnsPresignedURL(t *testing.T) {
	r := newRouter(&Handler{Media: &stubMedia{}, Enqueuer: &stubEnqueuer{}})

	w := doJSON(r, http.MethodGet, "/media/media-1/download?job_id=j1", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "https://store.local/x") {
		t.Fatalf("missing url in %s", w.Body.String())
	}
}

func TestDownload_NoCompletedJob(t *testing.T) {
	r := newRouter(&Handler{Media: &stubMedia{err: service.ErrNoCompletedJob}, Enqueuer: &stubEnqueuer{}})

	w := doJSON(r, http.MethodGet, "/media/media-1/download", "alice", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestJobStatus(t *testing.T) {
	job := &dto.JobStatusResponse{JobID: "j1", Target: constant.TargetMP3, Status: constant.JobStatusDone}
	r := newRouter(&Handler{Media: &stubMedia{job: job}, Enqueuer: &stubEnqueuer{}})

	w := doJSON(r, http.MethodGet, "/media/media-1/jobs/j1", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var res dto.JobStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.JobID != "j1" || res.Status != constant.JobStatusDone {
		t.Fatalf("unexpected response %+v", res)
	}
}

func TestFindJob_ByJobIDAlone(t *testing.T) {
	job := &dto.JobStatusResponse{JobID: "j1", Target: constant.TargetHLS, Status: constant.JobStatusProcessing}
	r := newRouter(&Handler{Media: &stubMedia{job: job}, Enqueuer: &stubEnqueuer{}})

	w := doJSON(r, http.MethodGet, "/jobs/j1", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var res dto.JobStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.JobID != "j1" || res.Status != constant.JobStatusProcessing {
		t.Fatalf("unexpected response %+v", res)
	}
}

func TestStream_ProxiesObjectBody(t *testing.T) {
	r := newRouter(&Handler{Media: &stubMedia{}, Enqueuer: &stubEnqueuer{}})

	w := doJSON(r, http.MethodGet, "/media/media-1/stream", "alice", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if w.Body.String() != "stream bytes" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}
