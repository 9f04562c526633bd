package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/domain"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/enhance"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/logging"
)

// Progress stages beyond the pipeline's own.
const (
	StageQueued        = "queued"
	StageReceived      = "received"
	StageSubmitting    = string(enhance.StageSubmitting)
	StagePolling       = string(enhance.StagePolling)
	StageMaterializing = string(enhance.StageMaterializing)
	StageGeneratingQR  = "generating_qr"
	StageDone          = "done"
	StageFailed        = "failed"
)

const trackerWriteTimeout = 2 * time.Second

// Progress is the short-lived status record of one request.
type Progress struct {
	RequestID        string    `json:"request_id"`
	Stage            string    `json:"stage"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	EnhancedFilename string    `json:"enhanced_filename,omitempty"`
	QRCodeFilename   string    `json:"qr_code_filename,omitempty"`
	Error            string    `json:"error,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func progressKey(requestID string) string {
	return fmt.Sprintf("avatar:%s", requestID)
}

// track records p at stage. Failures are logged and otherwise ignored; the
// write survives cancellation of ctx so a timed-out job still reports failed.
func (uc *AvatarUseCase) track(ctx context.Context, p *Progress, stage string) {
	p.Stage = stage
	p.UpdatedAt = uc.now().UTC()

	serialized, err := json.Marshal(p)
	if err != nil {
		logging.WithOperation(uc.logger, "usecase.track", p.RequestID).Warn("failed to serialize progress", zap.Error(err))
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), trackerWriteTimeout)
	defer cancel()
	if err := uc.withRedisRetry(writeCtx, p.RequestID, "cache.set.progress", func() error {
		return uc.cache.Set(writeCtx, progressKey(p.RequestID), string(serialized), uc.progressTTL)
	}); err != nil {
		logging.WithOperation(uc.logger, "usecase.track", p.RequestID).Warn("failed to record progress", zap.String("stage", stage), zap.Error(err))
	}
}

// GetProgress returns the latest progress record, or domain.ErrNotFound when
// the request is unknown or its record expired.
func (uc *AvatarUseCase) GetProgress(ctx context.Context, requestID string) (*Progress, error) {
	cached, err := uc.withRedisGet(ctx, requestID, "cache.get.progress", progressKey(requestID))
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: no progress for request %s", domain.ErrNotFound, requestID)
	}
	if err != nil {
		return nil, err
	}

	var p Progress
	if err := json.Unmarshal([]byte(cached), &p); err != nil {
		logging.WithOperation(uc.logger, "usecase.get_progress", requestID).Warn("failed to decode cached progress", zap.Error(err))
		return nil, logging.NewOperationError("usecase.get_progress", requestID, err)
	}
	return &p, nil
}

func (uc *AvatarUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		err := fn()
		return logging.NewOperationError(operation, requestID, err)
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == uc.retryAttempts-1 {
			if !errors.Is(err, redis.Nil) {
				opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			}
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *AvatarUseCase) withRedisGet(ctx context.Context, requestID, operation, key string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, key)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
