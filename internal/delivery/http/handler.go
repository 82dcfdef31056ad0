package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/recipebox/backend/internal/domain"
	"github.com/recipebox/backend/internal/usecase"
	"github.com/recipebox/backend/pkg/logger"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	imports *usecase.ImportService
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler. A nil service makes every import
// endpoint answer 501.
func NewHandler(imports *usecase.ImportService, log *zap.Logger) *Handler {
	return &Handler{
		imports: imports,
		logger:  logger.OrNop(log),
	}
}

// ImportURLRequest is the body of POST /api/v1/imports/url
type ImportURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// ImportTextRequest is the body of POST /api/v1/imports/text
type ImportTextRequest struct {
	Text   string `json:"text"`
	Format string `json:"format"`
}

// MatchRequest is the body of POST /api/v1/ingredients/match
type MatchRequest struct {
	Lines []string `json:"lines" binding:"required"`
}

// SaveRecipeRequest is the body of POST /api/v1/recipes
type SaveRecipeRequest struct {
	ID                string               `json:"id"`
	OwnerID           string               `json:"ownerId" binding:"required"`
	Recipe            *domain.ParsedRecipe `json:"recipe" binding:"required"`
	IngredientMatches []domain.MatchResult `json:"ingredientMatches"`
}

// ArchiveResponse lists every recipe found in an uploaded export
type ArchiveResponse struct {
	Count   int                    `json:"count"`
	Results []*domain.ImportResult `json:"results"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "recipebox-backend",
		"version": "1.0.0",
	})
}

// ImportURL handles recipe imports from a web page
func (h *Handler) ImportURL(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	var req ImportURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: url is required"})
		return
	}

	result, err := h.imports.ImportURL(c.Request.Context(), req.URL)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ImportText handles pasted recipe text
func (h *Handler) ImportText(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	var req ImportTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	format, err := usecase.ParseTextFormat(req.Format)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.imports.ImportText(c.Request.Context(), req.Text, format)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ImportArchive accepts an export file either as multipart field "file" or
// as the raw request body.
func (h *Handler) ImportArchive(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	data, err := readUpload(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	results, err := h.imports.ImportArchive(c.Request.Context(), data)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ArchiveResponse{Count: len(results), Results: results})
}

// MatchIngredients matches free-standing ingredient lines against the catalog
func (h *Handler) MatchIngredients(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: lines is required"})
		return
	}

	report, err := h.imports.MatchLines(c.Request.Context(), req.Lines)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// SaveRecipe persists a reviewed import
func (h *Handler) SaveRecipe(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	var req SaveRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: ownerId and recipe are required"})
		return
	}

	saved, err := h.imports.Save(c.Request.Context(), req.OwnerID, &domain.ImportResult{
		ID:                 req.ID,
		Recipe:             req.Recipe,
		MatchedIngredients: req.IngredientMatches,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

// GetRecipe returns a saved recipe by id
func (h *Handler) GetRecipe(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	saved, err := h.imports.GetRecipe(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) configured(c *gin.Context) bool {
	if h.imports == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Import service not configured"})
		return false
	}
	return true
}

// respondError maps domain errors onto status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	var maxBytes *http.MaxBytesError
	var fetchErr *domain.FetchError

	switch {
	case errors.As(err, &maxBytes):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload too large"})
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded, try again later"})
	case errors.As(err, &fetchErr):
		body := gin.H{"error": "Recipe page could not be fetched", "url": fetchErr.URL}
		if fetchErr.StatusCode != 0 {
			body["status"] = fetchErr.StatusCode
		}
		c.JSON(http.StatusBadGateway, body)
	case errors.Is(err, domain.ErrCatalogUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ingredient catalog temporarily unavailable"})
	case errors.Is(err, domain.ErrPersistenceUnavailable):
		c.JSON(http.StatusNotImplemented, gin.H{"error": "Recipe storage not configured"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRecipeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
	default:
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// readUpload returns the "file" form field of a multipart request, or the
// raw body otherwise
func readUpload(c *gin.Context) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: multipart field \"file\" is required", domain.ErrInvalidRequest)
		}
		f, err := header.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	if c.Request.Body == nil {
		return nil, nil
	}
	return io.ReadAll(c.Request.Body)
}
