package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"biobyia-go/pkg/kafka"
	"biobyia-go/pkg/log"
	"biobyia-go/pkg/storage"
	"biobyia-go/pkg/tasks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentHandler accepts document uploads and queues them for ingestion.
type DocumentHandler struct {
	storageClient *storage.Client
	producer      *kafka.Producer
}

// NewDocumentHandler creates a new DocumentHandler instance.
func NewDocumentHandler(storageClient *storage.Client, producer *kafka.Producer) *DocumentHandler {
	return &DocumentHandler{storageClient: storageClient, producer: producer}
}

// Upload stores the file in object storage and publishes an ingestion task.
// The actual text extraction and vector write happen in the worker, so the
// endpoint returns as soon as the task is queued.
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	articleID := c.PostForm("article_id")
	if articleID == "" {
		articleID = uuid.NewString()
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := fmt.Sprintf("documents/%s/%s", articleID, filepath.Base(header.Filename))
	if err := h.storageClient.UploadFile(c.Request.Context(), objectName, file, header.Size, contentType); err != nil {
		log.Errorf("[DocumentHandler] upload of '%s' failed: %v", objectName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store document"})
		return
	}

	task := tasks.DocumentTask{
		ArticleID:   articleID,
		ObjectName:  objectName,
		FileName:    header.Filename,
		ContentType: contentType,
	}
	if err := h.producer.ProduceDocumentTask(c.Request.Context(), task); err != nil {
		log.Errorf("[DocumentHandler] failed to queue task for '%s': %v", objectName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue ingestion task"})
		return
	}

	log.Infof("[DocumentHandler] document '%s' stored and queued, article: %s", objectName, articleID)
	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "document queued for ingestion",
		"data": gin.H{
			"article_id":  articleID,
			"object_name": objectName,
		},
	})
}
