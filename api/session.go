package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/pipeline"
	"github.com/khaledhikmat/crackwatch/service/lgr"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *Handler) StartCamera(c *gin.Context) {
	outcome, err := h.ctrl.Start(c.Request.Context())
	if errors.Is(err, model.ErrModelUnavailable) {
		lgr.Logger.ErrorContext(c.Request.Context(), "cannot start without a model", lgr.Err(err))
		c.JSON(statusFor(err), gin.H{"error": "Model not loaded"})
		return
	}
	if err != nil {
		lgr.Logger.ErrorContext(c.Request.Context(), "cannot open camera", lgr.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Cannot open camera"})
		return
	}

	message := "Camera started successfully"
	if outcome == pipeline.AlreadyRunning {
		message = "Camera is already running"
	}
	c.JSON(http.StatusOK, gin.H{"status": outcome.String(), "message": message})
}

func (h *Handler) StopCamera(c *gin.Context) {
	outcome, err := h.ctrl.Stop(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	message := "Camera stopped successfully"
	if outcome == pipeline.NotRunning {
		message = "Camera is not running"
	}
	c.JSON(http.StatusOK, gin.H{"status": outcome.String(), "message": message})
}

// VideoFeed streams the running session as MJPEG until the session stops
// or the client goes away.
func (h *Handler) VideoFeed(c *gin.Context) {
	sub, err := h.ctrl.Subscribe()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": "Camera is not running"})
		return
	}
	defer sub.Close()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	flusher.Flush()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return

		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			if err := writePart(c.Writer, frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writePart(w gin.ResponseWriter, frame []byte) error {
	header := "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: " + strconv.Itoa(len(frame)) + "\r\n\r\n"
	if _, err := w.WriteString(header); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

// WebSocketFeed sends one binary message per frame.
func (h *Handler) WebSocketFeed(c *gin.Context) {
	sub, err := h.ctrl.Subscribe()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": "Camera is not running"})
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		lgr.Logger.WarnContext(c.Request.Context(), "websocket upgrade", lgr.Err(err))
		return
	}
	defer conn.Close()

	// Viewers only listen; reading is how we notice they left
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			lgr.Logger.DebugContext(c.Request.Context(), "websocket viewer left")
			return

		case frame, ok := <-sub.Frames():
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"),
					time.Now().Add(time.Second))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				lgr.Logger.DebugContext(c.Request.Context(), "websocket write", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func (h *Handler) DetectedImages(c *gin.Context) {
	names, err := h.svcs.ArchiveSvc.ListRecent()
	if err != nil {
		lgr.Logger.ErrorContext(c.Request.Context(), "listing archive", lgr.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "files": []string{}})
		return
	}
	c.JSON(http.StatusOK, names)
}

func (h *Handler) DetectedImage(c *gin.Context) {
	path, err := h.svcs.ArchiveSvc.Path(c.Param("filename"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.File(path)
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctrl.Status())
}

func (h *Handler) Sessions(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	stats, err := h.svcs.DataSvc.RetrieveSessionStats(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
