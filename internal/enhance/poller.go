package enhance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/deepimage"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/domain"
)

const (
	// DefaultMaxAttempts bounds the number of status checks per job.
	DefaultMaxAttempts = 30
	// DefaultPollInterval is the wait before every status check.
	DefaultPollInterval = 5 * time.Second
)

// StatusClient is the part of the deep-image API the poller needs.
type StatusClient interface {
	Result(ctx context.Context, jobID string) (*deepimage.Result, error)
}

// PollPolicy bounds the poll loop.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
	// FailureStatuses abort the loop immediately. Empty means every status
	// other than complete is retried until the budget runs out.
	FailureStatuses []string
}

// Poller waits for a remote job to complete.
type Poller struct {
	client      StatusClient
	interval    time.Duration
	maxAttempts int
	failures    map[string]struct{}
	logger      *zap.Logger
}

// NewPoller builds a poller, substituting defaults for non-positive policy values.
func NewPoller(client StatusClient, policy PollPolicy, logger *zap.Logger) *Poller {
	if policy.Interval <= 0 {
		policy.Interval = DefaultPollInterval
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	failures := make(map[string]struct{}, len(policy.FailureStatuses))
	for _, status := range policy.FailureStatuses {
		if status = strings.TrimSpace(status); status != "" {
			failures[status] = struct{}{}
		}
	}
	return &Poller{
		client:      client,
		interval:    policy.Interval,
		maxAttempts: policy.MaxAttempts,
		failures:    failures,
		logger:      logger.Named("poller"),
	}
}

// Poll checks the job status until it completes, the attempt budget is spent
// or ctx is done. Every attempt is preceded by one full interval.
func (p *Poller) Poll(ctx context.Context, job JobHandle) (string, error) {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			timer.Reset(p.interval)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}

		res, err := p.client.Result(ctx, job.ID)
		if err != nil {
			return "", fmt.Errorf("poll attempt %d: %w", attempt, err)
		}
		p.logger.Info("poll",
			zap.String("job_id", job.ID),
			zap.Int("attempt", attempt),
			zap.String("status", res.Status))

		if res.Complete() {
			if strings.TrimSpace(res.ResultURL) == "" {
				return "", fmt.Errorf("%w: job %s complete without result_url", domain.ErrService, job.ID)
			}
			return res.ResultURL, nil
		}
		if _, failed := p.failures[res.Status]; failed {
			return "", fmt.Errorf("%w: job %s reported status %q", domain.ErrService, job.ID, res.Status)
		}
	}

	return "", fmt.Errorf("%w after %d attempts", domain.ErrTimeout, p.maxAttempts)
}
