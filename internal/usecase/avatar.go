package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/domain"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/enhance"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/logging"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/repository"
)

// ArtifactStore defines the storage operations needed by the use case.
type ArtifactStore interface {
	SaveOriginal(ctx context.Context, name string, src io.Reader) (string, error)
	Path(kind repository.Kind, name string) (string, error)
	List(ctx context.Context, kind repository.Kind) ([]string, error)
}

// Enhancer turns a stored original into an enhanced artifact.
type Enhancer interface {
	Run(ctx context.Context, req enhance.Request) (domain.Artifact, error)
}

// QRGenerator renders a QR code for an artifact and returns its filename.
type QRGenerator interface {
	Generate(ctx context.Context, artifact string) (string, error)
}

// FaceCropper returns the first face in an image as PNG bytes.
type FaceCropper interface {
	Crop(ctx context.Context, data []byte) ([]byte, error)
}

// Enqueuer hands an accepted upload to the background worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, job AsyncJob) error
}

// AsyncJob is the payload of a queued enhancement.
type AsyncJob struct {
	RequestID        string `json:"request_id"`
	OriginalFilename string `json:"original_filename"`
	Gender           string `json:"gender"`
	Timestamp        string `json:"timestamp"`
}

// UploadRequest is a validated upload.
type UploadRequest struct {
	Image  io.Reader
	Gender domain.Gender
}

// Options carries the optional collaborators. A nil QR or Cropper disables
// that capability; a nil Enqueuer disables async uploads.
type Options struct {
	QR          QRGenerator
	Cropper     FaceCropper
	Cache       Cache
	Enqueuer    Enqueuer
	ProgressTTL time.Duration
}

// AvatarUseCase encapsulates the upload, enhancement and retrieval flows.
type AvatarUseCase struct {
	store          ArtifactStore
	enhancer       Enhancer
	qr             QRGenerator
	cropper        FaceCropper
	cache          Cache
	enqueuer       Enqueuer
	progressTTL    time.Duration
	logger         *zap.Logger
	now            func() time.Time
	newID          func() string
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewAvatarUseCase constructs a new use case instance.
func NewAvatarUseCase(store ArtifactStore, enhancer Enhancer, opts Options, logger *zap.Logger) *AvatarUseCase {
	cache := opts.Cache
	if cache == nil {
		cache = NopCache{}
	}
	ttl := opts.ProgressTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AvatarUseCase{
		store:          store,
		enhancer:       enhancer,
		qr:             opts.QR,
		cropper:        opts.Cropper,
		cache:          cache,
		enqueuer:       opts.Enqueuer,
		progressTTL:    ttl,
		logger:         logger.Named("avatar_usecase"),
		now:            time.Now,
		newID:          uuid.NewString,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// FaceCropEnabled reports whether CropFace is available.
func (uc *AvatarUseCase) FaceCropEnabled() bool { return uc.cropper != nil }

// AsyncEnabled reports whether StartAsync is available.
func (uc *AvatarUseCase) AsyncEnabled() bool { return uc.enqueuer != nil }

// Enhance stores the original, runs the enhancement pipeline and, when
// enabled, generates a QR code for the result. The original stays on disk
// whatever happens afterwards.
func (uc *AvatarUseCase) Enhance(ctx context.Context, req UploadRequest) (domain.UploadResult, error) {
	requestID := uc.newID()
	timestamp := domain.Timestamp(uc.now())
	opLogger := logging.WithOperation(uc.logger, "usecase.enhance", requestID)

	originalName := domain.OriginalFilename(timestamp)
	originalPath, err := uc.store.SaveOriginal(ctx, originalName, req.Image)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.save_original", requestID, err)
		opLogger.Error("failed to store original", zap.Error(wrapped))
		return domain.UploadResult{}, wrapped
	}
	opLogger.Info("original stored", zap.String("original_filename", originalName), zap.String("gender", string(req.Gender)))

	return uc.process(ctx, requestID, timestamp, originalName, originalPath, req.Gender)
}

// StartAsync stores the original and queues the enhancement. The returned
// result carries only the request ID and original filename.
func (uc *AvatarUseCase) StartAsync(ctx context.Context, req UploadRequest) (domain.UploadResult, error) {
	if uc.enqueuer == nil {
		return domain.UploadResult{}, errors.New("async enhancement is disabled")
	}
	requestID := uc.newID()
	timestamp := domain.Timestamp(uc.now())
	opLogger := logging.WithOperation(uc.logger, "usecase.start_async", requestID)

	originalName := domain.OriginalFilename(timestamp)
	if _, err := uc.store.SaveOriginal(ctx, originalName, req.Image); err != nil {
		wrapped := logging.NewOperationError("usecase.save_original", requestID, err)
		opLogger.Error("failed to store original", zap.Error(wrapped))
		return domain.UploadResult{}, wrapped
	}

	progress := &Progress{RequestID: requestID, OriginalFilename: originalName}
	uc.track(ctx, progress, StageQueued)

	job := AsyncJob{
		RequestID:        requestID,
		OriginalFilename: originalName,
		Gender:           string(req.Gender),
		Timestamp:        timestamp,
	}
	if err := uc.enqueuer.Enqueue(ctx, job); err != nil {
		wrapped := logging.NewOperationError("usecase.enqueue", requestID, err)
		opLogger.Error("failed to enqueue enhancement", zap.Error(wrapped))
		progress.Error = logging.ClientMessage(wrapped)
		uc.track(ctx, progress, StageFailed)
		return domain.UploadResult{}, wrapped
	}
	opLogger.Info("enhancement queued", zap.String("original_filename", originalName))

	return domain.UploadResult{RequestID: requestID, OriginalFilename: originalName}, nil
}

// ProcessQueued runs a job accepted by StartAsync.
func (uc *AvatarUseCase) ProcessQueued(ctx context.Context, job AsyncJob) error {
	gender, err := domain.ParseGender(job.Gender)
	if err != nil {
		return logging.NewOperationError("usecase.process_queued", job.RequestID, err)
	}
	originalPath, err := uc.store.Path(repository.KindOriginal, job.OriginalFilename)
	if err != nil {
		return logging.NewOperationError("usecase.process_queued", job.RequestID, err)
	}
	_, err = uc.process(ctx, job.RequestID, job.Timestamp, job.OriginalFilename, originalPath, gender)
	return err
}

func (uc *AvatarUseCase) process(ctx context.Context, requestID, timestamp, originalName, originalPath string, gender domain.Gender) (domain.UploadResult, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.process", requestID)
	progress := &Progress{RequestID: requestID, OriginalFilename: originalName}
	fail := func(err error) (domain.UploadResult, error) {
		progress.Error = logging.ClientMessage(err)
		uc.track(ctx, progress, StageFailed)
		opLogger.Error("enhancement failed", zap.Error(err))
		return domain.UploadResult{}, err
	}
	uc.track(ctx, progress, StageReceived)

	artifact, err := uc.enhancer.Run(ctx, enhance.Request{
		RequestID: requestID,
		ImagePath: originalPath,
		Gender:    gender,
		Timestamp: timestamp,
		OnStage: func(s enhance.Stage) {
			uc.track(ctx, progress, string(s))
		},
	})
	if err != nil {
		return fail(err)
	}
	progress.EnhancedFilename = artifact.Filename

	result := domain.UploadResult{
		RequestID:        requestID,
		OriginalFilename: originalName,
		EnhancedFilename: artifact.Filename,
	}
	if uc.qr != nil {
		uc.track(ctx, progress, StageGeneratingQR)
		qrName, err := uc.qr.Generate(ctx, artifact.Filename)
		if err != nil {
			return fail(logging.NewOperationError("usecase.generate_qr", requestID, err))
		}
		result.QRCodeFilename = qrName
		progress.QRCodeFilename = qrName
	}

	uc.track(ctx, progress, StageDone)
	opLogger.Info("enhancement complete",
		zap.String("enhanced_filename", result.EnhancedFilename),
		zap.String("qr_code_filename", result.QRCodeFilename))
	return result, nil
}

// CropFace returns the first detected face of data as PNG.
func (uc *AvatarUseCase) CropFace(ctx context.Context, data []byte) ([]byte, error) {
	if uc.cropper == nil {
		return nil, fmt.Errorf("%w: face cropping is disabled", domain.ErrNotFound)
	}
	return uc.cropper.Crop(ctx, data)
}

// ListArtifacts returns the enhanced image names currently on disk.
func (uc *AvatarUseCase) ListArtifacts(ctx context.Context) ([]string, error) {
	return uc.store.List(ctx, repository.KindEnhanced)
}

// ArtifactPath resolves a served file by exact name.
func (uc *AvatarUseCase) ArtifactPath(kind repository.Kind, name string) (string, error) {
	return uc.store.Path(kind, name)
}
