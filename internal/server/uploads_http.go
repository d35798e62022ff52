package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/abduss/crmassets/internal/diagnostics"
	"github.com/abduss/crmassets/internal/logger"
	"github.com/abduss/crmassets/internal/upload"
	"github.com/abduss/crmassets/internal/uploader"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func registerUploadRoutes(group *gin.RouterGroup, deps Dependencies) {
	maxBytes := deps.Config.Upload.MaxBytes
	if maxBytes <= 0 {
		maxBytes = upload.DefaultMaxBytes
	}
	handler := &uploadHandler{sessions: deps.Sessions, diag: deps.Diagnostics, maxBytes: maxBytes}

	group.POST("/uploads/sessions", handler.createSession)
	sessions := group.Group("/uploads/sessions/:sessionID")
	sessions.GET("", handler.getSession)
	sessions.DELETE("", handler.deleteSession)
	sessions.POST("/probe", handler.probe)
	sessions.POST("/autofix", handler.autoFix)
	sessions.POST("/file", handler.selectFile)
	sessions.POST("/confirm", handler.confirm)
	sessions.POST("/cancel", handler.cancel)
	registerDiagnosticsRoutes(sessions, handler.sessionLog)
}

type uploadHandler struct {
	sessions *uploader.Registry
	diag     *diagnostics.Log
	maxBytes int64
}

type createSessionRequest struct {
	Kind       string `json:"kind" binding:"required"`
	EntityID   string `json:"entity_id"`
	CurrentURL string `json:"current_url"`
	Preview    bool   `json:"preview"`
}

func (h *uploadHandler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	kind, err := upload.ParseKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind"})
		return
	}

	id, m := h.sessions.Create(uploader.Options{
		Target:          upload.Target{Kind: kind, EntityID: req.EntityID},
		CurrentAssetURL: req.CurrentURL,
		Preview:         req.Preview,
	})
	if h.diag != nil {
		h.diag.Append("http", "upload session created", map[string]any{
			"session_id":     id,
			"kind":           kind,
			"entity_id":      req.EntityID,
			"correlation_id": logger.CorrelationID(c),
		})
	}

	c.JSON(http.StatusCreated, gin.H{"id": id, "session": m.Snapshot()})
}

func (h *uploadHandler) session(c *gin.Context) (*uploader.Machine, bool) {
	m, err := h.sessions.Get(c.Param("sessionID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return m, true
}

func (h *uploadHandler) getSession(c *gin.Context) {
	m, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, m.Snapshot())
}

func (h *uploadHandler) deleteSession(c *gin.Context) {
	if !h.sessions.Remove(c.Param("sessionID")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *uploadHandler) probe(c *gin.Context) {
	m, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, m.ProbeReadiness(c.Request.Context()))
}

func (h *uploadHandler) autoFix(c *gin.Context) {
	m, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, m.AttemptAutoFix(c.Request.Context()))
}

func (h *uploadHandler) selectFile(c *gin.Context) {
	m, ok := h.session(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer f.Close()

	// oversize bodies are only read far enough to prove they exceed the limit
	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}

	sel := m.SelectFile(fileHeader.Filename, data, fileHeader.Header.Get("Content-Type"), fileHeader.Size)
	if !sel.Accepted {
		status := http.StatusUnprocessableEntity
		if sel.RejectionReason == uploader.ReasonStorageNotReady || sel.RejectionReason == uploader.ReasonBusy {
			status = http.StatusConflict
		}
		c.JSON(status, sel)
		return
	}
	c.JSON(http.StatusOK, sel)
}

func (h *uploadHandler) confirm(c *gin.Context) {
	m, ok := h.session(c)
	if !ok {
		return
	}

	out, err := m.ConfirmUpload(c.Request.Context())
	if err != nil {
		var uerr *uploader.Error
		if !errors.As(err, &uerr) {
			zap.L().Error("confirm upload", zap.String("correlation_id", logger.CorrelationID(c)), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload file"})
			return
		}
		c.JSON(confirmStatus(uerr.Kind), gin.H{"error_kind": uerr.Kind, "message": uerr.Message})
		return
	}

	c.JSON(http.StatusCreated, out)
}

func confirmStatus(kind uploader.ErrorKind) int {
	switch kind {
	case uploader.KindMissingEntityID, uploader.KindNoFile, uploader.KindUnknownKind:
		return http.StatusBadRequest
	case uploader.KindBusy, uploader.KindNotReady, uploader.KindCancelled:
		return http.StatusConflict
	case uploader.KindPermission:
		return http.StatusForbidden
	case uploader.KindContainerNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (h *uploadHandler) cancel(c *gin.Context) {
	m, ok := h.session(c)
	if !ok {
		return
	}
	m.Cancel()
	c.Status(http.StatusNoContent)
}

// sessionLog resolves the log the session writes to, which is the process
// log unless diagnostics are session scoped.
func (h *uploadHandler) sessionLog(c *gin.Context) (*diagnostics.Log, bool) {
	m, ok := h.session(c)
	if !ok {
		return nil, false
	}
	return m.Diagnostics(), true
}
