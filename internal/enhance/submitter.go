package enhance

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/deepimage"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/domain"
)

// SubmissionClient is the part of the deep-image API the submitter needs.
type SubmissionClient interface {
	ProcessResult(ctx context.Context, filename string, image io.Reader, params deepimage.Parameters) (*deepimage.Result, error)
}

// JobHandle identifies a pending remote job.
type JobHandle struct {
	ID string
}

// SubmitOutcome is either an immediate result location or a job to poll.
type SubmitOutcome struct {
	ResultURL string
	Job       *JobHandle
}

// Immediate reports whether the submission already produced the result.
func (o SubmitOutcome) Immediate() bool {
	return o.Job == nil
}

// Submitter sends enhancement requests.
type Submitter struct {
	client SubmissionClient
	logger *zap.Logger
}

// NewSubmitter wires a submitter to the remote API.
func NewSubmitter(client SubmissionClient, logger *zap.Logger) *Submitter {
	return &Submitter{client: client, logger: logger.Named("submitter")}
}

// Submit uploads the image at imagePath with the prompt for gender.
func (s *Submitter) Submit(ctx context.Context, imagePath string, gender domain.Gender) (SubmitOutcome, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return SubmitOutcome{}, fmt.Errorf("%w: open upload: %v", domain.ErrIO, err)
	}
	defer f.Close()

	res, err := s.client.ProcessResult(ctx, filepath.Base(imagePath), f, ParametersFor(gender))
	if err != nil {
		return SubmitOutcome{}, err
	}

	if res.Complete() {
		if strings.TrimSpace(res.ResultURL) == "" {
			return SubmitOutcome{}, fmt.Errorf("%w: complete response without result_url", domain.ErrService)
		}
		s.logger.Info("submission completed immediately", zap.String("gender", string(gender)))
		return SubmitOutcome{ResultURL: res.ResultURL}, nil
	}

	jobID := strings.TrimSpace(res.Job)
	if jobID == "" {
		return SubmitOutcome{}, fmt.Errorf("%w: pending response (status %q) without job id", domain.ErrService, res.Status)
	}
	s.logger.Info("submission pending", zap.String("job_id", jobID), zap.String("status", res.Status))
	return SubmitOutcome{Job: &JobHandle{ID: jobID}}, nil
}
