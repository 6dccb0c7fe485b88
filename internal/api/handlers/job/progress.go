package job

import (
	"bytes"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/line-draw/internal/model"
	"github.com/aliskhannn/line-draw/internal/render"
)

// Progress upgrades the connection to a websocket and streams the job's
// progress until a terminal notification closes it. Intermediate progress
// is lossy; completion and failure are always delivered, and heartbeats
// keep the connection alive between progress events.
func (h *Handler) Progress(c *ginext.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to upgrade websocket")
		return
	}
	defer conn.Close()

	id, err := parseID(c)
	if err != nil {
		_ = conn.WriteJSON(model.Notification{Type: "error", Error: err.Error()})
		return
	}

	snap, progressCh, terminalCh, err := h.service.Subscribe(id)
	if err != nil {
		_ = conn.WriteJSON(model.Notification{Type: "error", Error: "job not found"})
		return
	}

	// Initial status report.
	if err := conn.WriteJSON(model.Notification{
		Type:     "status",
		Status:   snap.Status,
		Progress: snap.Progress,
	}); err != nil {
		return
	}

	// Already finished: replay the terminal outcome and close.
	switch snap.Status {
	case model.StatusCompleted:
		_ = conn.WriteJSON(h.completionMessage(id))
		return
	case model.StatusFailed:
		_ = conn.WriteJSON(model.Notification{
			Type:   "error",
			Status: model.StatusFailed,
			Error:  snap.Error,
		})
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case n := <-progressCh:
			if err := conn.WriteJSON(n); err != nil {
				return
			}

		case n := <-terminalCh:
			if n.Type == "complete" {
				n = h.completionMessage(id)
			}
			_ = conn.WriteJSON(n)
			return

		case <-ticker.C:
			snap, err := h.service.Status(id)
			if err != nil {
				_ = conn.WriteJSON(model.Notification{Type: "error", Error: "job not found"})
				return
			}

			// The terminal slot may have been consumed by an earlier
			// subscriber; fall back to the status snapshot.
			switch snap.Status {
			case model.StatusCompleted:
				_ = conn.WriteJSON(h.completionMessage(id))
				return
			case model.StatusFailed:
				_ = conn.WriteJSON(model.Notification{
					Type:   "error",
					Status: model.StatusFailed,
					Error:  snap.Error,
				})
				return
			}

			if err := conn.WriteJSON(model.Notification{
				Type:     "heartbeat",
				Status:   snap.Status,
				Progress: snap.Progress,
			}); err != nil {
				return
			}
		}
	}
}

// completionMessage builds the terminal completion notification, carrying
// the rendered result as base64 PNG.
func (h *Handler) completionMessage(id uuid.UUID) model.Notification {
	n := model.Notification{
		Type:     "complete",
		Status:   model.StatusCompleted,
		Progress: 100,
	}

	img, err := h.service.Result(id)
	if err != nil {
		return n
	}

	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		zlog.Logger.Err(err).Str("job_id", id.String()).Msg("failed to encode result for websocket")
		return n
	}

	n.ImageBase64 = base64.StdEncoding.EncodeToString(buf.Bytes())
	return n
}
