package handlers

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/example/flower-lookup/internal/auth"
	"github.com/example/flower-lookup/internal/classifier"
	"github.com/example/flower-lookup/internal/logging"
	"github.com/example/flower-lookup/internal/repository"
	"github.com/example/flower-lookup/internal/usecase"
)

// MaxUploadSize bounds the accepted image size.
const MaxUploadSize = 10 << 20

// multipart framing allowance on top of MaxUploadSize
const formOverhead = 1 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// IdentificationService is the use case surface served over HTTP.
type IdentificationService interface {
	Identify(ctx context.Context, userID string, image []byte) (*usecase.Identification, error)
	Describe(ctx context.Context, label string) (*usecase.Description, error)
	GetResult(ctx context.Context, userID, requestID string) (*repository.IdentificationLog, error)
	ListHistory(ctx context.Context, userID string, limit int) ([]*repository.IdentificationLog, error)
	GetSummary(ctx context.Context, userID string) (*usecase.Summary, error)
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc IdentificationService, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/", authMiddleware)

	api.POST("/identify", func(c *gin.Context) {
		userID, _ := auth.GetUserID(c.Request.Context())
		data, status, message := readImage(c)
		if status != 0 {
			c.JSON(status, gin.H{"error": message})
			return
		}

		result, err := svc.Identify(c.Request.Context(), userID, data)
		switch {
		case errors.Is(err, classifier.ErrNoPrediction):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no flower recognised in image"})
			return
		case err != nil && logging.OperationOf(err) == "usecase.classify":
			c.JSON(http.StatusBadGateway, gin.H{"error": "classification failed"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "identification failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	api.GET("/describe", func(c *gin.Context) {
		label := c.Query("label")
		if strings.TrimSpace(label) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "label is required"})
			return
		}
		description, err := svc.Describe(c.Request.Context(), label)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "label cannot be looked up"})
			return
		}
		c.JSON(http.StatusOK, description)
	})

	api.GET("/identifications", func(c *gin.Context) {
		userID, _ := auth.GetUserID(c.Request.Context())
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

		logs, err := svc.ListHistory(c.Request.Context(), userID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
			return
		}
		items := make([]gin.H, 0, len(logs))
		for _, log := range logs {
			items = append(items, logResponse(log))
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	})

	api.GET("/identifications/:id", func(c *gin.Context) {
		userID, _ := auth.GetUserID(c.Request.Context())
		requestID := c.Param("id")
		if requestID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}

		log, err := svc.GetResult(c.Request.Context(), userID, requestID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load result"})
			return
		}
		c.JSON(http.StatusOK, logResponse(log))
	})

	api.GET("/summary", func(c *gin.Context) {
		userID, _ := auth.GetUserID(c.Request.Context())
		summary, err := svc.GetSummary(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load summary"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

// readImage returns the uploaded image, or a non-zero status and message.
func readImage(c *gin.Context) ([]byte, int, string) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+formOverhead)

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, "image too large"
		}
		return nil, http.StatusBadRequest, "image file is required"
	}
	if file.Size > MaxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, "image too large"
	}

	src, err := file.Open()
	if err != nil {
		return nil, http.StatusBadRequest, "unable to open image"
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, http.StatusInternalServerError, "failed to read image"
	}
	if !allowedImageTypes[imageType(file.Header.Get("Content-Type"), data)] {
		return nil, http.StatusUnsupportedMediaType, "unsupported image type"
	}
	return data, 0, ""
}

// imageType sniffs data. A declared part type other than the generic ones must agree
// with the sniffed type, otherwise "" is returned.
func imageType(header string, data []byte) string {
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	declared, _, err := mime.ParseMediaType(header)
	if err != nil || declared == "" || declared == "application/octet-stream" {
		return sniffed
	}
	if declared != sniffed {
		return ""
	}
	return sniffed
}

func logResponse(log *repository.IdentificationLog) gin.H {
	return gin.H{
		"request_id": log.RequestID,
		"user_id":    log.UserID,
		"label":      log.Label,
		"confidence": log.Confidence,
		"title":      log.Title,
		"image_url":  log.ImageURL,
		"success":    log.Success,
		"error_kind": log.ErrorKind,
		"details":    log.Details,
		"created_at": log.CreatedAt,
	}
}
