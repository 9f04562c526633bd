package usecase

import (
	"context"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/repository"
)

// GallerySummary counts what the booth has produced so far.
type GallerySummary struct {
	Artifacts int    `json:"artifacts"`
	QRCodes   int    `json:"qr_codes"`
	Latest    string `json:"latest,omitempty"`
}

// GetGallerySummary builds the summary from the current directory listings.
// Timestamped names sort chronologically, so the last artifact is the newest.
func (uc *AvatarUseCase) GetGallerySummary(ctx context.Context) (*GallerySummary, error) {
	artifacts, err := uc.store.List(ctx, repository.KindEnhanced)
	if err != nil {
		return nil, err
	}
	qrCodes, err := uc.store.List(ctx, repository.KindQR)
	if err != nil {
		return nil, err
	}

	summary := &GallerySummary{
		Artifacts: len(artifacts),
		QRCodes:   len(qrCodes),
	}
	if len(artifacts) > 0 {
		summary.Latest = artifacts[len(artifacts)-1]
	}
	return summary, nil
}
