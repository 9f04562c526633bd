package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/domain"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/logging"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/repository"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/usecase"
)

// MaxUploadSize is the default upload limit in bytes.
const MaxUploadSize = 10 << 20

// multipartOverhead allows for boundaries and the gender field on top of
// the image itself.
const multipartOverhead = 64 << 10

const (
	msgNoImage       = "No image file in request"
	msgNoCropImage   = "No image provided"
	msgInvalidGender = "Invalid or missing gender"
	msgInvalidImage  = "Invalid image"
	msgNoFace        = "No face detected"
	msgTooLarge      = "Image exceeds upload limit"
)

// AvatarService is the use case surface the routes need.
type AvatarService interface {
	Enhance(ctx context.Context, req usecase.UploadRequest) (domain.UploadResult, error)
	StartAsync(ctx context.Context, req usecase.UploadRequest) (domain.UploadResult, error)
	GetProgress(ctx context.Context, requestID string) (*usecase.Progress, error)
	CropFace(ctx context.Context, data []byte) ([]byte, error)
	ListArtifacts(ctx context.Context) ([]string, error)
	ArtifactPath(kind repository.Kind, name string) (string, error)
	GetGallerySummary(ctx context.Context) (*usecase.GallerySummary, error)
	FaceCropEnabled() bool
	AsyncEnabled() bool
}

type handler struct {
	svc            AvatarService
	maxUploadBytes int64
}

// RegisterRoutes wires the HTTP handlers to the Gin router. authMiddleware
// guards the routes that accept uploads.
func RegisterRoutes(router *gin.Engine, svc AvatarService, authMiddleware gin.HandlerFunc, maxUploadBytes int64) {
	if maxUploadBytes <= 0 {
		maxUploadBytes = MaxUploadSize
	}
	h := &handler{svc: svc, maxUploadBytes: maxUploadBytes}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/", authMiddleware)
	protected.POST("/upload", h.upload)
	protected.POST("/crop_face", h.cropFace)
	if svc.AsyncEnabled() {
		protected.POST("/upload/async", h.uploadAsync)
		router.GET("/jobs/:id", h.jobStatus)
	}

	router.GET("/enhanced_images/list", h.listArtifacts)
	router.GET("/enhanced_images/:filename", h.serveFile(repository.KindEnhanced))
	router.GET("/qr_codes/:filename", h.serveFile(repository.KindQR))
	router.GET("/gallery/summary", h.gallerySummary)
}

func (h *handler) upload(c *gin.Context) {
	req, src, ok := h.bindUpload(c)
	if !ok {
		return
	}
	defer src.Close()

	result, err := h.svc.Enhance(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	body := gin.H{
		"status":            "success",
		"message":           "Image processed",
		"original_filename": result.OriginalFilename,
		"enhanced_filename": result.EnhancedFilename,
	}
	if result.QRCodeFilename != "" {
		body["qr_code_filename"] = result.QRCodeFilename
	}
	c.JSON(http.StatusOK, body)
}

func (h *handler) uploadAsync(c *gin.Context) {
	req, src, ok := h.bindUpload(c)
	if !ok {
		return
	}
	defer src.Close()

	result, err := h.svc.StartAsync(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"status":            "accepted",
		"request_id":        result.RequestID,
		"original_filename": result.OriginalFilename,
	})
}

// bindUpload validates the image and gender fields. Nothing reaches the use
// case unless both are valid.
func (h *handler) bindUpload(c *gin.Context) (usecase.UploadRequest, multipart.File, bool) {
	file, ok := h.formImage(c, msgNoImage)
	if !ok {
		return usecase.UploadRequest{}, nil, false
	}

	gender, err := domain.ParseGender(c.PostForm("gender"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, msgInvalidGender)
		return usecase.UploadRequest{}, nil, false
	}

	src, err := file.Open()
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "Unable to open image")
		return usecase.UploadRequest{}, nil, false
	}
	return usecase.UploadRequest{Image: src, Gender: gender}, src, true
}

func (h *handler) formImage(c *gin.Context, missing string) (*multipart.FileHeader, bool) {
	if c.Request.ContentLength > h.maxUploadBytes+multipartOverhead {
		errorJSON(c, http.StatusRequestEntityTooLarge, msgTooLarge)
		return nil, false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorJSON(c, http.StatusRequestEntityTooLarge, msgTooLarge)
			return nil, false
		}
		errorJSON(c, http.StatusBadRequest, missing)
		return nil, false
	}
	if file.Size > h.maxUploadBytes {
		errorJSON(c, http.StatusRequestEntityTooLarge, msgTooLarge)
		return nil, false
	}
	return file, true
}

func (h *handler) cropFace(c *gin.Context) {
	if !h.svc.FaceCropEnabled() {
		errorJSON(c, http.StatusNotFound, "Face cropping is disabled")
		return
	}

	file, ok := h.formImage(c, msgNoCropImage)
	if !ok {
		return
	}
	src, err := file.Open()
	if err != nil {
		errorJSON(c, http.StatusBadRequest, msgInvalidImage)
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "Failed to read image")
		return
	}

	face, err := h.svc.CropFace(c.Request.Context(), data)
	switch {
	case errors.Is(err, domain.ErrNoFace):
		errorJSON(c, http.StatusBadRequest, msgNoFace)
	case errors.Is(err, domain.ErrValidation):
		errorJSON(c, http.StatusBadRequest, msgInvalidImage)
	case err != nil:
		writeError(c, err)
	default:
		c.Data(http.StatusOK, "image/png", face)
	}
}

func (h *handler) jobStatus(c *gin.Context) {
	progress, err := h.svc.GetProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *handler) listArtifacts(c *gin.Context) {
	names, err := h.svc.ListArtifacts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, names)
}

func (h *handler) serveFile(kind repository.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, err := h.svc.ArtifactPath(kind, c.Param("filename"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.File(path)
	}
}

func (h *handler) gallerySummary(c *gin.Context) {
	summary, err := h.svc.GetGallerySummary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsClientError(err):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	}
	errorJSON(c, status, logging.ClientMessage(err))
}

func errorJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "error", "message": message})
}
