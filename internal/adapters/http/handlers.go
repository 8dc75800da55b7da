package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/astrolune/star/internal/app"
	"github.com/astrolune/star/internal/domain"
)

type Handlers struct {
	Engine *app.Engine
}

func callerID(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString("client_token"))
}

type createSessionRequest struct {
	SessionType     domain.SessionType `json:"session_type" binding:"required"`
	Title           string             `json:"title" binding:"required"`
	Description     string             `json:"description"`
	MaxParticipants int                `json:"max_participants"`
	IsPrivate       bool               `json:"is_private"`
	Password        string             `json:"password"`
	Username        string             `json:"username" binding:"required"`
	ZodiacSign      string             `json:"zodiac_sign"`
}

func (h *Handlers) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
		return
	}
	d, err := h.Engine.Create(c.Request.Context(), callerID(c), req.Username, req.ZodiacSign, app.CreateParams{
		Type:            req.SessionType,
		Title:           req.Title,
		Description:     req.Description,
		MaxParticipants: req.MaxParticipants,
		IsPrivate:       req.IsPrivate,
		Password:        req.Password,
	})
	if err != nil {
		c.JSON(createErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, d)
}

// createErrorStatus separates caller mistakes from allocation
// failures: an exhausted room-code space is a server-side condition,
// not something the client can correct.
func createErrorStatus(err error) int {
	if errors.Is(err, app.ErrRoomCodeExhausted) {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func (h *Handlers) ListSessions(c *gin.Context) {
	showAll := c.Query("all") == "true"
	c.JSON(http.StatusOK, gin.H{"sessions": h.Engine.List(callerID(c), showAll)})
}

func (h *Handlers) GetSession(c *gin.Context) {
	d, ok := h.Engine.Get(domain.SessionID(c.Param("id")), callerID(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, d)
}

type joinRequest struct {
	Username   string      `json:"username" binding:"required"`
	ZodiacSign string      `json:"zodiac_sign"`
	Password   string      `json:"password"`
	Role       domain.Role `json:"role"`
}

func (h *Handlers) JoinSession(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
		return
	}
	ok := h.Engine.Join(c.Request.Context(), app.JoinParams{
		SessionID:  domain.SessionID(c.Param("id")),
		UserID:     callerID(c),
		Username:   req.Username,
		ZodiacSign: req.ZodiacSign,
		Password:   req.Password,
		Role:       req.Role,
	})
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "join rejected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": true})
}

type joinByCodeRequest struct {
	RoomCode   string `json:"room_code" binding:"required"`
	Username   string `json:"username" binding:"required"`
	ZodiacSign string `json:"zodiac_sign"`
}

func (h *Handlers) JoinByRoomCode(c *gin.Context) {
	var req joinByCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
		return
	}
	sid, ok := h.Engine.JoinByRoomCode(c.Request.Context(), domain.RoomCode(req.RoomCode), app.JoinParams{
		UserID:     callerID(c),
		Username:   req.Username,
		ZodiacSign: req.ZodiacSign,
	})
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "join rejected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": true, "session_id": sid})
}

func (h *Handlers) LeaveSession(c *gin.Context) {
	if !h.Engine.Leave(c.Request.Context(), domain.SessionID(c.Param("id")), callerID(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session or membership not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": true})
}

func (h *Handlers) EndSession(c *gin.Context) {
	if !h.Engine.EndByHost(c.Request.Context(), domain.SessionID(c.Param("id")), callerID(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found or not host"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ended": true})
}

type pauseRequest struct {
	Paused *bool `json:"paused" binding:"required"`
}

func (h *Handlers) PauseSession(c *gin.Context) {
	var req pauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
		return
	}
	if !h.Engine.SetPaused(c.Request.Context(), domain.SessionID(c.Param("id")), callerID(c), *req.Paused) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found or not host"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type syncStateRequest struct {
	Updates map[string]any `json:"updates"`
}

func (h *Handlers) SyncState(c *gin.Context) {
	var req syncStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
		return
	}
	if !h.Engine.SyncState(c.Request.Context(), domain.SessionID(c.Param("id")), callerID(c), req.Updates) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session or membership not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": true})
}

func (h *Handlers) MoveCursor(c *gin.Context) {
	var req app.CursorInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
		return
	}
	if !h.Engine.UpdateCursor(c.Request.Context(), domain.SessionID(c.Param("id")), callerID(c), req) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session or membership not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type voiceRequest struct {
	Status domain.VoiceStatus `json:"status" binding:"required"`
}

func (h *Handlers) UpdateVoice(c *gin.Context) {
	var req voiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
		return
	}
	if !h.Engine.UpdateVoice(c.Request.Context(), domain.SessionID(c.Param("id")), callerID(c), req.Status) {
		c.JSON(http.StatusNotFound, gin.H{"error": "voice update rejected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type domainEventRequest struct {
	EventType string          `json:"event_type" binding:"required"`
	Payload   json.RawMessage `json:"payload"`
}

func (h *Handlers) TarotEvent(c *gin.Context) {
	h.domainEvent(c, h.Engine.TarotEvent)
}

func (h *Handlers) NumerologyEvent(c *gin.Context) {
	h.domainEvent(c, h.Engine.NumerologyEvent)
}

func (h *Handlers) CosmosEvent(c *gin.Context) {
	h.domainEvent(c, h.Engine.CosmosEvent)
}

func (h *Handlers) domainEvent(
	c *gin.Context,
	apply func(ctx context.Context, sid domain.SessionID, uid domain.UserID, eventType string, payload []byte) bool,
) {
	var req domainEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
		return
	}
	if !apply(c.Request.Context(), domain.SessionID(c.Param("id")), callerID(c), req.EventType, req.Payload) {
		c.JSON(http.StatusNotFound, gin.H{"error": "event rejected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
