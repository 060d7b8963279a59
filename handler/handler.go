package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"media-convert/constant"
	"media-convert/dto"
	"media-convert/pkg/metrics"
	"media-convert/repository"
	"media-convert/service"
)

type Handler struct {
	Media      service.MediaService
	Enqueuer   service.Enqueuer
	Metrics    *metrics.API
	PresignTTL time.Duration
}

func Register(r *gin.Engine, h *Handler) {
	r.POST("/media", h.Upload)
	r.GET("/media/:id", h.GetMedia)
	r.POST("/media/:id/convert", h.Convert)
	r.GET("/media/:id/jobs/:jobID", h.JobStatus)
	r.GET("/jobs/:jobID", h.FindJob)
	r.GET("/media/:id/download", h.Download)
	r.GET("/media/:id/stream", h.Stream)
	r.POST("/media/:id/share", h.Share)
}

// Authentication is an external collaborator; the identity the gateway
// resolved arrives in this header.
func callerID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

func (h *Handler) Upload(c *gin.Context) {
	user := callerID(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "file is required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	media, err := h.Media.Upload(c.Request.Context(), user, fileHeader.Filename, f, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.MediaUploads.Inc()
	}
	c.JSON(http.StatusCreated, media)
}

func (h *Handler) GetMedia(c *gin.Context) {
	user := callerID(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}

	media, err := h.Media.Get(c.Request.Context(), c.Param("id"), user)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, media)
}

func (h *Handler) Convert(c *gin.Context) {
	user := callerID(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}

	var req dto.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "target must be one of mp3, mp4, hls"})
		return
	}

	target, err := constant.ParseTarget(req.Target)
	if err != nil {
		abortWithError(c, err)
		return
	}

	jobID, err := h.Enqueuer.Enqueue(c.Request.Context(), c.Param("id"), target, user)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.JobsEnqueued.WithLabelValues(target.String()).Inc()
	}
	c.JSON(http.StatusAccepted, dto.ConvertResponse{JobID: jobID, Status: constant.JobStatusEnqueued})
}

func (h *Handler) JobStatus(c *gin.Context) {
	user := callerID(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}

	status, err := h.Media.GetJob(c.Request.Context(), c.Param("id"), c.Param("jobID"), user)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) FindJob(c *gin.Context) {
	user := callerID(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}

	status, err := h.Media.FindJob(c.Request.Context(), c.Param("jobID"), user)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) Download(c *gin.Context) {
	user := callerID(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}

	ttl := h.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	res, err := h.Media.ResolveDownload(c.Request.Context(), c.Param("id"), c.Query("job_id"), user, ttl)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Stream(c *gin.Context) {
	user := callerID(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}

	rc, contentType, err := h.Media.OpenStream(c.Request.Context(), c.Param("id"), c.Query("job_id"), user)
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer rc.Close()

	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	io.Copy(c.Writer, rc)
}

func (h *Handler) Share(c *gin.Context) {
	user := callerID(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller identity"})
		return
	}

	var req dto.ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "user_id is required"})
		return
	}

	if err := h.Media.Share(c.Request.Context(), c.Param("id"), req.JobID, user, req.UserID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "shared"})
}

func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrMediaNotFound),
		errors.Is(err, repository.ErrJobNotFound),
		errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, service.ErrNoCompletedJob):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrJobNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, constant.ErrUnsupportedTarget):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
