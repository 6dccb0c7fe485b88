package job

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/line-draw/internal/api/respond"
	jobmgr "github.com/aliskhannn/line-draw/internal/job"
	"github.com/aliskhannn/line-draw/internal/model"
	"github.com/aliskhannn/line-draw/internal/render"
)

// Parameter bounds enforced at the boundary; runs never see values
// outside these ranges.
const (
	minBlurSigma  = 1.0
	maxBlurSigma  = 20.0
	minIterations = 10_000
	maxIterations = 5_000_000

	defaultBlurSigma  = 4.0
	defaultIterations = 1_500_000
	defaultStart      = 0.5

	heartbeatInterval = 500 * time.Millisecond
)

// service defines the interface for job orchestration operations.
type service interface {
	Create(ctx context.Context, img image.Image) uuid.UUID
	Start(id uuid.UUID, params model.Params) error
	Status(id uuid.UUID) (model.Snapshot, error)
	Result(id uuid.UUID) (image.Image, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Subscribe(id uuid.UUID) (model.Snapshot, <-chan model.Notification, <-chan model.Notification, error)
}

// Handler provides HTTP handlers for job endpoints.
// It depends on a service interface to perform the business logic.
type Handler struct {
	service  service
	upgrader websocket.Upgrader
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{
		service: s,
		upgrader: websocket.Upgrader{
			// Cross-origin access is governed by the CORS middleware.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// StartParams mirrors the client JSON. Pointer fields distinguish an
// absent parameter from an explicit zero, so a corner start of 0 is not
// rewritten to the default.
type StartParams struct {
	BlurSigma  *float64 `json:"blur_sigma"`
	Iterations *int     `json:"iterations"`
	StartX     *float64 `json:"start_x"`
	StartY     *float64 `json:"start_y"`
}

// StartRequest carries the simulation parameters sent by the client.
type StartRequest struct {
	Params StartParams `json:"params"`
}

// params fills only the absent fields with the tool's defaults.
func (r *StartRequest) params() model.Params {
	p := model.Params{
		BlurSigma:  defaultBlurSigma,
		Iterations: defaultIterations,
		StartX:     defaultStart,
		StartY:     defaultStart,
	}

	if r.Params.BlurSigma != nil {
		p.BlurSigma = *r.Params.BlurSigma
	}
	if r.Params.Iterations != nil {
		p.Iterations = *r.Params.Iterations
	}
	if r.Params.StartX != nil {
		p.StartX = *r.Params.StartX
	}
	if r.Params.StartY != nil {
		p.StartY = *r.Params.StartY
	}

	return p
}

// validateParams checks the parameters against the fixed bounds.
func validateParams(p model.Params) error {
	if p.BlurSigma < minBlurSigma || p.BlurSigma > maxBlurSigma {
		return fmt.Errorf("blur_sigma must be in [%v, %v]", minBlurSigma, maxBlurSigma)
	}
	if p.Iterations < minIterations || p.Iterations > maxIterations {
		return fmt.Errorf("iterations must be in [%d, %d]", minIterations, maxIterations)
	}
	if p.StartX < 0 || p.StartX > 1 || p.StartY < 0 || p.StartY > 1 {
		return fmt.Errorf("start_x and start_y must be in [0, 1]")
	}

	return nil
}

// Upload handles the HTTP request for uploading an image.
// It decodes the multipart image, normalizes it, and creates a pending job.
func (h *Handler) Upload(c *ginext.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to upload the file")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to retrieve the file"))
		return
	}
	defer file.Close()

	img, err := imaging.Decode(file)
	if err != nil {
		zlog.Logger.Err(err).Str("filename", header.Filename).Msg("failed to decode image")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("file must be a decodable image"))
		return
	}

	// Normalize any color model to NRGBA so the pipeline sees one
	// consistent representation.
	id := h.service.Create(c.Request.Context(), imaging.Clone(img))

	zlog.Logger.Info().
		Str("job_id", id.String()).
		Str("filename", header.Filename).
		Msg("image uploaded")

	respond.Created(c, map[string]interface{}{
		"job_id":  id,
		"message": "image uploaded successfully",
	})
}

// Start validates simulation parameters and schedules the job's run.
func (h *Handler) Start(c *ginext.Context) {
	id, err := parseID(c)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	var req StartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
			return
		}
	}

	params := req.params()
	if err := validateParams(params); err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	if err := h.service.Start(id, params); err != nil {
		switch {
		case errors.Is(err, jobmgr.ErrJobNotFound):
			respond.Fail(c, http.StatusNotFound, err)
		case errors.Is(err, jobmgr.ErrInvalidState):
			respond.Fail(c, http.StatusConflict, err)
		case errors.Is(err, jobmgr.ErrQueueFull):
			respond.Fail(c, http.StatusServiceUnavailable, err)
		default:
			zlog.Logger.Err(err).Str("job_id", id.String()).Msg("failed to start job")
			respond.Fail(c, http.StatusInternalServerError, err)
		}
		return
	}

	respond.OK(c, map[string]interface{}{
		"status":  model.StatusProcessing,
		"message": "processing started",
	})
}

// Status returns the job's status, progress, and error if any.
func (h *Handler) Status(c *ginext.Context) {
	id, err := parseID(c)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	snap, err := h.service.Status(id)
	if err != nil {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("job not found"))
		return
	}

	resp := map[string]interface{}{
		"job_id":   snap.ID,
		"status":   snap.Status,
		"progress": snap.Progress,
	}
	if snap.Status == model.StatusCompleted {
		resp["result_url"] = fmt.Sprintf("/api/jobs/%s/result", snap.ID)
	}
	if snap.Error != "" {
		resp["error"] = snap.Error
	}

	respond.OK(c, resp)
}

// Result streams the rendered line drawing of a completed job as PNG.
func (h *Handler) Result(c *ginext.Context) {
	id, err := parseID(c)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	img, err := h.service.Result(id)
	if err != nil {
		switch {
		case errors.Is(err, jobmgr.ErrJobNotFound):
			respond.Fail(c, http.StatusNotFound, err)
		case errors.Is(err, jobmgr.ErrNotReady):
			respond.Fail(c, http.StatusConflict, err)
		default:
			respond.Fail(c, http.StatusInternalServerError, err)
		}
		return
	}

	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		zlog.Logger.Err(err).Str("job_id", id.String()).Msg("failed to encode result")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to encode result"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=line-drawing-%s.png", id.String()[:8]))
	respond.PNG(c, http.StatusOK, int64(buf.Len()), &buf)
}

// ResultBase64 returns the rendered result of a completed job as a
// base64-encoded PNG, for clients that cannot consume the binary stream.
func (h *Handler) ResultBase64(c *ginext.Context) {
	id, err := parseID(c)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	img, err := h.service.Result(id)
	if err != nil {
		switch {
		case errors.Is(err, jobmgr.ErrJobNotFound):
			respond.Fail(c, http.StatusNotFound, err)
		case errors.Is(err, jobmgr.ErrNotReady):
			respond.Fail(c, http.StatusConflict, err)
		default:
			respond.Fail(c, http.StatusInternalServerError, err)
		}
		return
	}

	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		zlog.Logger.Err(err).Str("job_id", id.String()).Msg("failed to encode result")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to encode result"))
		return
	}

	respond.OK(c, map[string]interface{}{
		"job_id":       id,
		"image_base64": base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

// Delete removes a job by ID.
func (h *Handler) Delete(c *ginext.Context) {
	id, err := parseID(c)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("job not found"))
		return
	}

	c.Status(http.StatusNoContent)
}

func parseID(c *ginext.Context) (uuid.UUID, error) {
	idStr := c.Param("id")
	if idStr == "" {
		return uuid.Nil, fmt.Errorf("missing id")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id: %v", err)
	}

	return id, nil
}
