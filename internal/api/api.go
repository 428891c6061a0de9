package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moibraahim/gymnation-task/internal/chat"
	"github.com/moibraahim/gymnation-task/internal/models"
	"github.com/moibraahim/gymnation-task/internal/utils"
)

type Handler struct {
	service *chat.Service
	logger  *zap.Logger
}

func NewHandler(service *chat.Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: utils.OrNop(logger).With(zap.String("component", "api"))}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.handleRoot)
	router.GET("/health", h.handleHealth)
	router.GET("/system-prompt", h.handleSystemPrompt)

	conversations := router.Group("/conversations")
	conversations.POST("", h.handleCreateConversation)
	conversations.GET("", h.handleListConversations)
	conversations.GET("/:id", h.handleGetConversation)
	conversations.DELETE("/:id", h.handleDeleteConversation)
	conversations.POST("/:id/messages", h.handleSendMessage)
	conversations.GET("/:id/ws", h.handleTurnWebsocket)
}

type createConversationRequest struct {
	Title          string `json:"title"`
	InitialMessage string `json:"initial_message"`
	SessionID      string `json:"session_id"`
}

type sendMessageRequest struct {
	Content    string `json:"content" binding:"required"`
	UseTools   *bool  `json:"use_tools"`
	UseRAG     bool   `json:"use_rag"`
	PromptType string `json:"prompt_type"`
}

func (r sendMessageRequest) input() chat.SendInput {
	useTools := true
	if r.UseTools != nil {
		useTools = *r.UseTools
	}
	return chat.SendInput{
		Content:    r.Content,
		UseTools:   useTools,
		UseRAG:     r.UseRAG,
		PromptType: r.PromptType,
	}
}

func (h *Handler) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Booking assistant API is running"})
}

func (h *Handler) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleCreateConversation(c *gin.Context) {
	var req createConversationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid payload", err)
			return
		}
	}

	conv, err := h.service.CreateConversation(c.Request.Context(), chat.CreateInput{
		Title:          req.Title,
		InitialMessage: req.InitialMessage,
		SessionID:      req.SessionID,
	})
	if err != nil {
		h.fail(c, "failed to create conversation", err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

func (h *Handler) handleListConversations(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			writeError(c, http.StatusBadRequest, "limit must be a positive integer", errInvalidLimit)
			return
		}
		limit = value
	}

	list, err := h.service.ListConversations(c.Request.Context(), c.Query("session_id"), limit)
	if err != nil {
		h.fail(c, "failed to list conversations", err)
		return
	}

	c.JSON(http.StatusOK, list)
}

func (h *Handler) handleGetConversation(c *gin.Context) {
	conv, err := h.service.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "failed to load conversation", err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

func (h *Handler) handleDeleteConversation(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.DeleteConversation(c.Request.Context(), id); err != nil {
		h.fail(c, "failed to delete conversation", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation deleted", "id": id})
}

func (h *Handler) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid payload", err)
		return
	}

	id := c.Param("id")
	outcome, err := h.service.SendMessage(c.Request.Context(), id, req.input(), nil)
	if err != nil {
		if outcome == nil || outcome.UserMessage == nil {
			h.fail(c, "failed to send message", err)
			return
		}
		status, message := classify(err)
		h.logger.Warn("turn failed", zap.String("conversation_id", id), zap.Int("status", status), zap.Error(err))
		c.JSON(status, gin.H{
			"error":        message,
			"details":      err.Error(),
			"user_message": outcome.UserMessage,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation_id": id,
		"prompt_type":     outcome.PromptType,
		"new_messages":    outcome.NewMessages,
		"messages":        outcome.Messages,
	})
}

func (h *Handler) handleSystemPrompt(c *gin.Context) {
	prompt, err := h.service.SystemPrompt(c.Query("prompt_type"))
	if err != nil {
		h.fail(c, "unknown prompt type", err)
		return
	}

	c.JSON(http.StatusOK, prompt)
}

var errInvalidLimit = errors.New("invalid limit")

func (h *Handler) fail(c *gin.Context, fallback string, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
		if message == "" {
			message = fallback
		}
	}
	writeError(c, status, message, err)
}

// classify maps the error taxonomy onto HTTP statuses.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidArguments):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, models.ErrConfiguration):
		return http.StatusBadRequest, "configuration error"
	case errors.Is(err, models.ErrConversationNotFound):
		return http.StatusNotFound, "conversation not found"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, models.ErrModelUnavailable) && errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "model timed out"
	case errors.Is(err, models.ErrModelUnavailable):
		return http.StatusBadGateway, "model unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "turn timed out"
	case errors.Is(err, models.ErrToolLoopExceeded):
		return http.StatusInternalServerError, "tool loop exceeded"
	}
	return http.StatusInternalServerError, ""
}

func writeError(c *gin.Context, status int, message string, err error) {
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}
