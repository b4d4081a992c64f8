package controller

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github/itish2003/pdfchat/models"
	"github/itish2003/pdfchat/services"
)

// SessionController handles the HTTP requests for the PDF chat API. It depends
// on the SessionManager for all state.
type SessionController struct {
	sessions       *services.SessionManager
	maxUploadBytes int64
}

// NewSessionController is called from main.go to inject the session manager.
func NewSessionController(sessions *services.SessionManager, maxUploadBytes int64) *SessionController {
	return &SessionController{sessions: sessions, maxUploadBytes: maxUploadBytes}
}

// Register mounts the session routes on group.
func (c *SessionController) Register(group *gin.RouterGroup) {
	group.GET("/options", c.GetOptions)
	group.POST("/sessions", c.CreateSession)
	group.GET("/sessions/:id", c.GetSession)
	group.DELETE("/sessions/:id", c.DeleteSession)
	group.PUT("/sessions/:id/settings", c.UpdateSettings)
	group.POST("/sessions/:id/document", c.UploadDocument)
	group.DELETE("/sessions/:id/document", c.ResetDocument)
	group.POST("/sessions/:id/questions", c.AskQuestion)
}

// GetOptions is the handler for GET /api/v1/options.
func (c *SessionController) GetOptions(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.sessions.Options())
}

// CreateSession is the handler for POST /api/v1/sessions.
func (c *SessionController) CreateSession(ctx *gin.Context) {
	session := c.sessions.Create()
	ctx.JSON(http.StatusCreated, session.Snapshot())
}

// GetSession is the handler for GET /api/v1/sessions/:id. With ?order=desc the
// transcript is returned newest first.
func (c *SessionController) GetSession(ctx *gin.Context) {
	session, ok := c.lookup(ctx)
	if !ok {
		return
	}
	resp := session.Snapshot()
	if ctx.Query("order") == "desc" {
		slices.Reverse(resp.Messages)
	}
	ctx.JSON(http.StatusOK, resp)
}

// DeleteSession is the handler for DELETE /api/v1/sessions/:id.
func (c *SessionController) DeleteSession(ctx *gin.Context) {
	if err := c.sessions.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// UpdateSettings is the handler for PUT /api/v1/sessions/:id/settings.
func (c *SessionController) UpdateSettings(ctx *gin.Context) {
	session, ok := c.lookup(ctx)
	if !ok {
		return
	}
	var req models.SettingsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := applySettings(session, req); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, session.Snapshot())
}

// UploadDocument is the handler for POST /api/v1/sessions/:id/document. It
// takes a multipart form with a "file" field and optional "model" and "mode"
// fields.
func (c *SessionController) UploadDocument(ctx *gin.Context) {
	session, ok := c.lookup(ctx)
	if !ok {
		return
	}
	if c.maxUploadBytes > 0 {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.maxUploadBytes)
	}

	header, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "A PDF file is required in the 'file' field: " + err.Error()})
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF files are supported."})
		return
	}
	settings := models.SettingsRequest{Model: ctx.PostForm("model"), Mode: ctx.PostForm("mode")}
	if err := applySettings(session, settings); err != nil {
		respondError(ctx, err)
		return
	}

	f, err := header.Open()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Could not read the uploaded file: " + err.Error()})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Could not read the uploaded file: " + err.Error()})
		return
	}

	resp, err := session.Upload(ctx.Request.Context(), filepath.Base(header.Filename), data)
	if err != nil {
		if resp != nil {
			ctx.JSON(statusFor(err), resp)
			return
		}
		respondError(ctx, err)
		return
	}
	if resp.AlreadyProcessed {
		ctx.JSON(http.StatusOK, resp)
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// ResetDocument is the handler for DELETE /api/v1/sessions/:id/document.
func (c *SessionController) ResetDocument(ctx *gin.Context) {
	session, ok := c.lookup(ctx)
	if !ok {
		return
	}
	if err := session.Reset(ctx.Request.Context()); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, session.Snapshot())
}

// AskQuestion is the handler for POST /api/v1/sessions/:id/questions.
func (c *SessionController) AskQuestion(ctx *gin.Context) {
	session, ok := c.lookup(ctx)
	if !ok {
		return
	}
	var req models.AskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	reply, err := session.Ask(ctx.Request.Context(), req.Question)
	switch {
	case errors.Is(err, services.ErrNoDocument), errors.Is(err, services.ErrSessionBusy):
		respondError(ctx, err)
	case err != nil && reply.Content == "":
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		// The failure is part of the transcript; report it alongside the reply.
		ctx.JSON(statusFor(err), models.AskResponse{Answer: reply, Error: err.Error()})
	default:
		ctx.JSON(http.StatusOK, models.AskResponse{Answer: reply})
	}
}

func (c *SessionController) lookup(ctx *gin.Context) (*services.Session, bool) {
	session, err := c.sessions.Get(ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return nil, false
	}
	return session, true
}

func applySettings(session *services.Session, req models.SettingsRequest) error {
	if req.Model != "" {
		if err := session.SetChatModel(req.Model); err != nil {
			return err
		}
	}
	if req.Mode != "" {
		if err := session.SetMode(req.Mode); err != nil {
			return err
		}
	}
	return nil
}

func respondError(ctx *gin.Context, err error) {
	ctx.JSON(statusFor(err), gin.H{"error": services.UserMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNoDocument), errors.Is(err, services.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, services.ErrUnknownModel), errors.Is(err, services.ErrUnknownMode):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrExtraction), errors.Is(err, services.ErrEmptyInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrEmbeddingService), errors.Is(err, services.ErrGeneration):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
