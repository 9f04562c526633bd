package repository

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/domain"
)

func newTestRepository(t *testing.T) *ArtifactRepository {
	t.Helper()
	root := t.TempDir()
	repo, err := NewArtifactRepository(Dirs{
		Originals: filepath.Join(root, "received_images"),
		Enhanced:  filepath.Join(root, "enhanced_images"),
		QRCodes:   filepath.Join(root, "qr_codes"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewArtifactRepository: %v", err)
	}
	return repo
}

func TestNewArtifactRepositoryCreatesDirectories(t *testing.T) {
	repo := newTestRepository(t)
	for _, kind := range []Kind{KindOriginal, KindEnhanced, KindQR} {
		info, err := os.Stat(repo.Dir(kind))
		if err != nil || !info.IsDir() {
			t.Fatalf("expected %s directory to exist: %v", kind, err)
		}
	}
}

func TestNewArtifactRepositoryRequiresDirs(t *testing.T) {
	if _, err := NewArtifactRepository(Dirs{Originals: t.TempDir()}, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing directories")
	}
}

func TestListReflectsDirectoryAtCallTime(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	names, err := repo.List(ctx, KindEnhanced)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected empty listing, got %v", names)
	}

	for _, name := range []string{"superhero_avatar_20250102-000000.png", "superhero_avatar_20250101-000000.png"} {
		if _, err := repo.WriteEnhanced(ctx, name, func(w io.Writer) error {
			_, err := w.Write([]byte("img"))
			return err
		}); err != nil {
			t.Fatalf("WriteEnhanced: %v", err)
		}
	}
	// Files dropped in by hand count too; non-png files and directories do not.
	if err := os.WriteFile(filepath.Join(repo.Dir(KindEnhanced), "manual.png"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repo.Dir(KindEnhanced), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(repo.Dir(KindEnhanced), "nested.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	names, err = repo.List(ctx, KindEnhanced)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"manual.png", "superhero_avatar_20250101-000000.png", "superhero_avatar_20250102-000000.png"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("List = %v, want %v", names, want)
	}

	if err := os.Remove(filepath.Join(repo.Dir(KindEnhanced), "manual.png")); err != nil {
		t.Fatal(err)
	}
	names, _ = repo.List(ctx, KindEnhanced)
	if len(names) != 2 {
		t.Fatalf("expected deletion to be visible, got %v", names)
	}
}

func TestWriteFailureLeavesNoPartialFile(t *testing.T) {
	repo := newTestRepository(t)
	boom := errors.New("connection reset")

	_, err := repo.WriteEnhanced(context.Background(), "superhero_avatar_1.png", func(w io.Writer) error {
		_, _ = w.Write([]byte("half"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected writer error, got %v", err)
	}
	entries, _ := os.ReadDir(repo.Dir(KindEnhanced))
	if len(entries) != 0 {
		t.Fatalf("expected no files after failed write, found %d", len(entries))
	}
}

func TestWriteOverwritesWholeFile(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.SaveOriginal(ctx, "unity_webcam_1.png", bytes.NewReader([]byte("first-longer"))); err != nil {
		t.Fatal(err)
	}
	path, err := repo.SaveOriginal(ctx, "unity_webcam_1.png", bytes.NewReader([]byte("second")))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "second" {
		t.Fatalf("file content = %q", data)
	}
}

func TestPathRejectsTraversalAndMissingFiles(t *testing.T) {
	repo := newTestRepository(t)
	if _, err := repo.WriteQR(context.Background(), "qr_a.png", []byte("qr")); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.Path(KindQR, "qr_a.png"); err != nil {
		t.Fatalf("Path: %v", err)
	}
	for _, name := range []string{"../qr_a.png", "..", "", ".hidden.png", "missing.png", "sub/qr_a.png"} {
		if _, err := repo.Path(KindQR, name); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Path(%q) error = %v, want ErrNotFound", name, err)
		}
	}
}

func TestWriteRejectsUnsafeNames(t *testing.T) {
	repo := newTestRepository(t)
	_, err := repo.WriteQR(context.Background(), "../escape.png", []byte("x"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
