package enhance

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/domain"
)

// Downloader fetches a remote artifact.
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// ArtifactStore persists enhanced images under their final name.
type ArtifactStore interface {
	WriteEnhanced(ctx context.Context, name string, write func(io.Writer) error) (string, error)
}

// Materializer downloads finished results into the enhanced directory.
type Materializer struct {
	downloader Downloader
	store      ArtifactStore
	logger     *zap.Logger
}

// NewMaterializer wires a materializer.
func NewMaterializer(downloader Downloader, store ArtifactStore, logger *zap.Logger) *Materializer {
	return &Materializer{downloader: downloader, store: store, logger: logger.Named("materializer")}
}

// Materialize saves the artifact at resultURL as superhero_avatar_<timestamp>.png.
func (m *Materializer) Materialize(ctx context.Context, resultURL, timestamp string) (domain.Artifact, error) {
	name := domain.ArtifactFilename(timestamp)
	var size int64
	path, err := m.store.WriteEnhanced(ctx, name, func(w io.Writer) error {
		n, err := m.downloader.Download(ctx, resultURL, w)
		size = n
		return err
	})
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: materialize %s: %v", domain.ErrIO, name, err)
	}
	m.logger.Info("artifact saved", zap.String("filename", name), zap.Int64("bytes", size))
	return domain.Artifact{Filename: name, Path: path}, nil
}
