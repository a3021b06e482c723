package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/face-identify/internal/faceapi"
	"github.com/example/face-identify/internal/imagecheck"
	"github.com/example/face-identify/internal/logging"
	"github.com/example/face-identify/internal/pipeline"
	"github.com/example/face-identify/internal/repository"
	"github.com/example/face-identify/internal/storage"
	"github.com/example/face-identify/internal/usecase"
)

// UploadField is the multipart field carrying the image.
const UploadField = "file"

// RequestIDHeader carries the ID of the identification run.
const RequestIDHeader = "X-Request-ID"

const fallbackText = "Don't know what to give you"

// multipart framing allowance on top of the file size limit
const formOverhead = 64 << 10

// Service is the identification surface the routes need.
type Service interface {
	IdentifyImage(ctx context.Context, image []byte) (string, *pipeline.Report, error)
	GetResult(ctx context.Context, requestID string) (*repository.RecognitionLog, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc Service, store *storage.DiskStore, maxUploadSize int64) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.Any("/getimg", func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.String(http.StatusOK, fallbackText)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize+formOverhead)

		file, err := c.FormFile(UploadField)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
				return
			}
			writeError(c, storage.Missing())
			return
		}
		if file.Size > maxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
			return
		}

		src, err := file.Open()
		if err != nil {
			writeError(c, &storage.UploadError{Op: "open", Err: err})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			writeError(c, &storage.UploadError{Op: "read", Err: err})
			return
		}

		if _, err := imagecheck.Validate(data); err != nil {
			status := http.StatusUnsupportedMediaType
			if errors.Is(err, imagecheck.ErrFileSize) && len(data) > imagecheck.MaxFileSize {
				status = http.StatusRequestEntityTooLarge
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		if _, err := store.Save(bytes.NewReader(data)); err != nil {
			writeError(c, err)
			return
		}

		requestID, report, err := svc.IdentifyImage(c.Request.Context(), data)
		if requestID != "" {
			c.Header(RequestIDHeader, requestID)
		}
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, report.Matches)
	})

	router.GET("/results/:id", func(c *gin.Context) {
		requestID := c.Param("id")
		if requestID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}

		log, err := svc.GetResult(c.Request.Context(), requestID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) || errors.Is(err, usecase.ErrHistoryDisabled) {
				c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id":    log.RequestID,
			"group_id":      log.GroupID,
			"face_count":    log.FaceCount,
			"matched_count": log.MatchedCount,
			"matches":       json.RawMessage(log.Result),
			"latency_ms":    log.LatencyMs,
			"created_at":    log.CreatedAt,
		})
	})

	router.GET("/metrics/summary", func(c *gin.Context) {
		summary, err := svc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			if errors.Is(err, usecase.ErrHistoryDisabled) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

// writeError maps upload and identification failures to status codes.
func writeError(c *gin.Context, err error) {
	var (
		uploadErr *storage.UploadError
		svcErr    *faceapi.ServiceError
	)
	switch {
	case errors.As(err, &uploadErr):
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNoFile) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": uploadErr.Error()})
	case errors.As(err, &svcErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":       svcErr.Message,
			"status_code": svcErr.StatusCode,
			"code":        svcErr.Code,
		})
	case errors.Is(err, faceapi.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		body := gin.H{"error": err.Error()}
		if op := logging.OperationOf(err); op != "" {
			body["operation"] = op
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}
