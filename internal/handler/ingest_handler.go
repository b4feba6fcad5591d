package handler

import (
	"context"
	"net/http"
	"strconv"

	"biobyia-go/internal/dataset"
	"biobyia-go/internal/pipeline"
	"biobyia-go/internal/repository"
	"biobyia-go/internal/service"
	"biobyia-go/pkg/log"
	"biobyia-go/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var progressUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// IngestHandler starts ingestion runs and exposes their progress.
type IngestHandler struct {
	ingestService service.IngestService
	runManager    *service.RunManager
	runRepo       repository.RunRepository
	storageClient *storage.Client
}

// NewIngestHandler creates a new IngestHandler instance. storageClient may
// be nil, which disables object-sourced ingestion.
func NewIngestHandler(ingestService service.IngestService, runManager *service.RunManager, runRepo repository.RunRepository, storageClient *storage.Client) *IngestHandler {
	return &IngestHandler{ingestService: ingestService, runManager: runManager, runRepo: runRepo, storageClient: storageClient}
}

// IngestRequest is the request body for the ingest endpoint. Exactly one of
// Path (readable from the server process) or Object (in the configured
// MinIO bucket) selects the corpus source.
type IngestRequest struct {
	Path   string `json:"path"`
	Object string `json:"object"`
	Resume bool   `json:"resume"`
}

// Ingest launches an asynchronous ingestion run and returns its id. Progress
// is available on the run endpoints and the websocket feed.
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("[IngestHandler] invalid ingest request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if (req.Path == "") == (req.Object == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of path or object is required"})
		return
	}
	if req.Object != "" && h.storageClient == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object ingestion requires a configured object store"})
		return
	}

	source := req.Path
	run := func(ctx context.Context, onProgress func(pipeline.Progress)) (*pipeline.Report, error) {
		return h.ingestService.IngestFile(ctx, req.Path, req.Resume, onProgress)
	}
	if req.Object != "" {
		source = "minio:" + req.Object
		run = func(ctx context.Context, onProgress func(pipeline.Progress)) (*pipeline.Report, error) {
			ds, err := dataset.LoadFromStorage(ctx, h.storageClient, req.Object)
			if err != nil {
				return nil, err
			}
			return h.ingestService.IngestDataset(ctx, ds, source, req.Resume, onProgress)
		}
	}
	runID := h.runManager.Start(source, run)

	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "accepted",
		"data":    gin.H{"run_id": runID},
	})
}

// ListRuns returns snapshots of every run in this process, newest first.
func (h *IngestHandler) ListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    h.runManager.List(),
	})
}

// GetRun returns a snapshot of one run.
func (h *IngestHandler) GetRun(c *gin.Context) {
	state, ok := h.runManager.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    state,
	})
}

// CancelRun asks a running ingestion to stop. The checkpoint written by the
// pipeline makes the run resumable.
func (h *IngestHandler) CancelRun(c *gin.Context) {
	if !h.runManager.Cancel(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "cancel requested",
	})
}

// RunProgress streams batch progress for one run over a websocket. The
// connection closes with the final run state once the run finishes.
func (h *IngestHandler) RunProgress(c *gin.Context) {
	runID := c.Param("id")
	progressCh, unsubscribe, ok := h.runManager.Subscribe(runID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	conn, err := progressUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		unsubscribe()
		log.Errorf("[IngestHandler] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reads only serve to detect the client going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				unsubscribe()
				return
			}
		}
	}()

	for progress := range progressCh {
		if err := conn.WriteJSON(progress); err != nil {
			log.Warnf("[IngestHandler] progress write failed for run %s: %v", runID, err)
			unsubscribe()
			return
		}
	}

	// Channel closed: the run finished (or was never running). Send the
	// final snapshot so the client sees the terminal status.
	if state, found := h.runManager.Get(runID); found {
		if err := conn.WriteJSON(state); err != nil {
			log.Warnf("[IngestHandler] final state write failed for run %s: %v", runID, err)
		}
	}
}

// RunHistory returns persisted run records, newest first. Unlike ListRuns it
// survives process restarts.
func (h *IngestHandler) RunHistory(c *gin.Context) {
	if h.runRepo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run history is disabled, no database configured"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	runs, err := h.runRepo.FindRecent(limit)
	if err != nil {
		log.Errorf("[IngestHandler] failed to load run history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    runs,
	})
}
