package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/domain"
)

// Kind selects one of the output directories.
type Kind string

const (
	KindOriginal Kind = "original"
	KindEnhanced Kind = "enhanced"
	KindQR       Kind = "qr"
)

const listedExt = ".png"

// Dirs names the directory for each kind.
type Dirs struct {
	Originals string
	Enhanced  string
	QRCodes   string
}

// ArtifactRepository stores uploads, enhanced avatars and QR codes as plain
// files. Directory contents are the only record of what exists.
type ArtifactRepository struct {
	dirs   map[Kind]string
	logger *zap.Logger
}

// NewArtifactRepository creates the directories if they are missing.
func NewArtifactRepository(dirs Dirs, logger *zap.Logger) (*ArtifactRepository, error) {
	r := &ArtifactRepository{
		dirs: map[Kind]string{
			KindOriginal: strings.TrimSpace(dirs.Originals),
			KindEnhanced: strings.TrimSpace(dirs.Enhanced),
			KindQR:       strings.TrimSpace(dirs.QRCodes),
		},
		logger: logger.Named("artifact_repository"),
	}
	for kind, dir := range r.dirs {
		if dir == "" {
			return nil, fmt.Errorf("repository: %s directory is required", kind)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("repository: ensure %s directory: %w", kind, err)
		}
	}
	return r, nil
}

// Dir returns the directory backing kind.
func (r *ArtifactRepository) Dir(kind Kind) string {
	return r.dirs[kind]
}

// SaveOriginal stores the raw client upload and returns its path.
func (r *ArtifactRepository) SaveOriginal(ctx context.Context, name string, src io.Reader) (string, error) {
	return r.write(ctx, KindOriginal, name, func(w io.Writer) error {
		if _, err := io.Copy(w, src); err != nil {
			return fmt.Errorf("%w: copy upload: %v", domain.ErrIO, err)
		}
		return nil
	})
}

// WriteEnhanced stores an enhanced avatar produced by write.
func (r *ArtifactRepository) WriteEnhanced(ctx context.Context, name string, write func(io.Writer) error) (string, error) {
	return r.write(ctx, KindEnhanced, name, write)
}

// WriteQR stores an encoded QR image.
func (r *ArtifactRepository) WriteQR(ctx context.Context, name string, data []byte) (string, error) {
	return r.write(ctx, KindQR, name, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Path resolves an existing file by exact name. Names that could escape the
// directory are reported as not found.
func (r *ArtifactRepository) Path(kind Kind, name string) (string, error) {
	dir, ok := r.dirs[kind]
	if !ok {
		return "", fmt.Errorf("repository: unknown kind %q", kind)
	}
	if err := validateName(name); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", domain.ErrNotFound, name)
	}
	return path, nil
}

// List returns the .png filenames currently in the directory, sorted by name.
// Timestamped names therefore sort oldest first.
func (r *ArtifactRepository) List(ctx context.Context, kind Kind) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, ok := r.dirs[kind]
	if !ok {
		return nil, fmt.Errorf("repository: unknown kind %q", kind)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %v", domain.ErrIO, kind, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, listedExt) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// write streams into a temp file beside the destination and renames it into
// place, so readers never see a partial file and a same-name write replaces
// the old file whole.
func (r *ArtifactRepository) write(ctx context.Context, kind Kind, name string, fn func(io.Writer) error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateName(name); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	dir := r.dirs[kind]
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", domain.ErrIO, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if err := fn(tmp); err != nil {
		tmp.Close()
		cleanup()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("%w: close temp file: %v", domain.ErrIO, err)
	}

	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		r.logger.Warn("overwriting existing file", zap.String("kind", string(kind)), zap.String("filename", name))
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		cleanup()
		return "", fmt.Errorf("%w: rename into place: %v", domain.ErrIO, err)
	}
	return dest, nil
}

func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return errors.New("filename is required")
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("filename %q must not contain path separators", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("filename %q must not be hidden", name)
	}
	return nil
}
