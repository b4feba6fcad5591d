package handler

import (
	"errors"
	"net/http"

	"biobyia-go/internal/model"
	"biobyia-go/internal/service"
	"biobyia-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// QueryHandler serves similarity search over the ingested corpus.
type QueryHandler struct {
	queryService service.QueryService
}

// NewQueryHandler creates a new QueryHandler instance.
func NewQueryHandler(queryService service.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// QueryRequest is the request body for the query endpoint.
type QueryRequest struct {
	Question string         `json:"question" binding:"required"`
	TopK     int            `json:"top_k"`
	MinScore float64        `json:"min_score"`
	Filters  map[string]any `json:"filters"`
}

// Query embeds the question, searches the vector store and returns the
// matches above the score threshold.
func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[QueryHandler] invalid query request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	results, err := h.queryService.Query(c.Request.Context(), req.Question, req.TopK, req.Filters)
	if err != nil {
		var validationErr *model.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
			return
		}
		log.Errorf("[QueryHandler] query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	filtered := h.queryService.FilterByScore(results, req.MinScore)
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"total":    len(filtered),
			"results":  filtered,
			"articles": h.queryService.UniqueArticles(filtered),
		},
	})
}
