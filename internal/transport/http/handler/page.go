package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"webrecall/internal/app"
	"webrecall/internal/model"
	"webrecall/internal/transport/http/response"
)

type PageHandler struct {
	pageService *app.PageService
}

type IngestPageRequest struct {
	URL string `json:"url" binding:"required,max=2048"`
}

func NewPageHandler(pageService *app.PageService) *PageHandler {
	return &PageHandler{pageService: pageService}
}

func (h *PageHandler) Ingest(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req IngestPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.pageService.Ingest(c.Request.Context(), userID, req.URL)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid url")
		case errors.Is(err, app.ErrFetchFailed):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "could not fetch the page")
		case errors.Is(err, model.ErrUpstreamUnavailable):
			response.Error(c, http.StatusServiceUnavailable, response.CodeUpstreamUnavailable, "indexing backend unavailable")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest page failed")
		}
		return
	}

	response.OK(c, result)
}

func (h *PageHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	pages, err := h.pageService.List(c.Request.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrUpstreamUnavailable):
			response.Error(c, http.StatusServiceUnavailable, response.CodeUpstreamUnavailable, "indexing backend unavailable")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list pages failed")
		}
		return
	}

	response.OK(c, gin.H{"pages": pages})
}

func (h *PageHandler) Delete(c *gin.Context) {
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

	if err := h.pageService.Delete(c.Request.Context(), userID, pageURL); err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid url")
		case errors.Is(err, model.ErrNotFound):
			response.Error(c, http.StatusNotFound, response.CodePageNotFound, "page not found")
		case errors.Is(err, model.ErrUpstreamUnavailable):
			response.Error(c, http.StatusServiceUnavailable, response.CodeUpstreamUnavailable, "indexing backend unavailable")
		case errors.Is(err, model.ErrInconsistentState):
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer,
				"page removed from search, but its semantic chunks could not be cleaned up; retry the delete")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete page failed")
		}
		return
	}

	response.OK(c, gin.H{"deleted_url": pageURL})
}
