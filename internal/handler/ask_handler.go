package handler

import (
	"bytes"
	"errors"
	"net/http"

	"biobyia-go/internal/model"
	"biobyia-go/internal/service"
	"biobyia-go/pkg/llm"
	"biobyia-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AskHandler answers questions over the retrieved corpus context.
type AskHandler struct {
	answerService service.AnswerService
}

// NewAskHandler creates a new AskHandler instance.
func NewAskHandler(answerService service.AnswerService) *AskHandler {
	return &AskHandler{answerService: answerService}
}

// AskRequest is the request body for the ask endpoint.
type AskRequest struct {
	Question string         `json:"question" binding:"required"`
	TopK     int            `json:"top_k"`
	MinScore float64        `json:"min_score"`
	Filters  map[string]any `json:"filters"`
	Stream   *bool          `json:"stream"`
}

// Ask retrieves context for the question and generates an answer. By default
// the answer is streamed as plain text chunks; with stream=false the full
// answer and the supporting articles come back as one JSON document.
func (h *AskHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[AskHandler] invalid ask request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	opts := service.AskOptions{TopK: req.TopK, MinScore: req.MinScore, Filters: req.Filters}
	if req.Stream == nil || *req.Stream {
		h.streamAnswer(c, req.Question, opts)
		return
	}

	var answer bytes.Buffer
	writer := llm.WriterFunc(func(messageType int, data []byte) error {
		answer.Write(data)
		return nil
	})
	result, err := h.answerService.Ask(c.Request.Context(), req.Question, opts, writer)
	if err != nil {
		h.writeAskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"answer":   answer.String(),
			"articles": result.Articles,
			"results":  result.Results,
		},
	})
}

func (h *AskHandler) streamAnswer(c *gin.Context, question string, opts service.AskOptions) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("X-Accel-Buffering", "no")

	wroteChunk := false
	writer := llm.WriterFunc(func(messageType int, data []byte) error {
		if _, err := c.Writer.Write(data); err != nil {
			return err
		}
		c.Writer.Flush()
		wroteChunk = true
		return nil
	})

	if _, err := h.answerService.Ask(c.Request.Context(), question, opts, writer); err != nil {
		// After the first flushed chunk the status line is gone; the best
		// we can do is log and cut the stream.
		if wroteChunk {
			log.Errorf("[AskHandler] stream aborted: %v", err)
			return
		}
		h.writeAskError(c, err)
	}
}

func (h *AskHandler) writeAskError(c *gin.Context, err error) {
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
		return
	}
	log.Errorf("[AskHandler] ask failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to answer question"})
}
