package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"webrecall/internal/app"
	"webrecall/internal/model"
	"webrecall/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type AskRequest struct {
	URL      string `json:"url" binding:"required,max=2048"`
	Question string `json:"question" binding:"required,max=4096"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Ask(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.chatService.Ask(c.Request.Context(), app.AskInput{
		UserID:   userID,
		URL:      req.URL,
		Question: req.Question,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, model.ErrNotFound):
			response.Error(c, http.StatusNotFound, response.CodePageNotFound, "page not found")
		case errors.Is(err, model.ErrNoRelevantContent):
			response.Error(c, http.StatusUnprocessableEntity, response.CodeNoRelevantContent, "no indexed content matches the question")
		case errors.Is(err, model.ErrUpstreamUnavailable), errors.Is(err, app.ErrGenerationUnavailable):
			response.Error(c, http.StatusServiceUnavailable, response.CodeUpstreamUnavailable, "answer service unavailable")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "chat failed")
		}
		return
	}

	response.OK(c, result)
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	pageURL := strings.TrimSpace(c.Query("url"))
	if pageURL == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "url query parameter is required")
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	history, err := h.chatService.History(c.Request.Context(), userID, pageURL, limit)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get history failed")
		}
		return
	}

	response.OK(c, gin.H{"history": history})
}
