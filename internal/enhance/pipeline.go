package enhance

import (
	"context"

	"go.uber.org/zap"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/domain"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/logging"
)

// Stage names a step of the pipeline for progress reporting.
type Stage string

const (
	StageSubmitting    Stage = "submitting"
	StagePolling       Stage = "polling"
	StageMaterializing Stage = "materializing"
)

// Request is one enhancement run.
type Request struct {
	RequestID string
	ImagePath string
	Gender    domain.Gender
	Timestamp string
	// OnStage, when set, is called as the run enters each stage.
	OnStage func(Stage)
}

// Pipeline runs submit, optional poll and materialize in sequence.
type Pipeline struct {
	submitter    *Submitter
	poller       *Poller
	materializer *Materializer
	logger       *zap.Logger
}

// NewPipeline assembles a pipeline from its stages.
func NewPipeline(submitter *Submitter, poller *Poller, materializer *Materializer, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		submitter:    submitter,
		poller:       poller,
		materializer: materializer,
		logger:       logger.Named("pipeline"),
	}
}

// Run produces the enhanced artifact for req.
func (p *Pipeline) Run(ctx context.Context, req Request) (domain.Artifact, error) {
	opLogger := logging.WithOperation(p.logger, "enhance.run", req.RequestID)
	notify := func(s Stage) {
		if req.OnStage != nil {
			req.OnStage(s)
		}
	}

	notify(StageSubmitting)
	outcome, err := p.submitter.Submit(ctx, req.ImagePath, req.Gender)
	if err != nil {
		return domain.Artifact{}, logging.NewOperationError("enhance.submit", req.RequestID, err)
	}

	resultURL := outcome.ResultURL
	if !outcome.Immediate() {
		notify(StagePolling)
		opLogger.Info("polling job", zap.String("job_id", outcome.Job.ID))
		resultURL, err = p.poller.Poll(ctx, *outcome.Job)
		if err != nil {
			return domain.Artifact{}, logging.NewOperationError("enhance.poll", req.RequestID, err)
		}
	}

	notify(StageMaterializing)
	artifact, err := p.materializer.Materialize(ctx, resultURL, req.Timestamp)
	if err != nil {
		return domain.Artifact{}, logging.NewOperationError("enhance.materialize", req.RequestID, err)
	}
	return artifact, nil
}
