package qrcode

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type memoryStore struct {
	files map[string][]byte
	err   error
}

func (m *memoryStore) WriteQR(_ context.Context, name string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[name] = data
	return "/qr/" + name, nil
}

func fixedIP(ip string) IPResolver {
	return func() (string, error) { return ip, nil }
}

func TestDownloadURLUsesResolvedAddress(t *testing.T) {
	gen := NewGenerator(&memoryStore{}, Options{Port: 5000, Resolver: fixedIP("192.168.1.20")}, zap.NewNop())
	got, err := gen.DownloadURL("superhero_avatar_20250101-120000.png")
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	want := "http://192.168.1.20:5000/enhanced_images/superhero_avatar_20250101-120000.png"
	if got != want {
		t.Fatalf("DownloadURL = %q, want %q", got, want)
	}
}

func TestDownloadURLPrefersPublicHost(t *testing.T) {
	resolver := func() (string, error) {
		t.Fatal("resolver must not be called when a public host is configured")
		return "", nil
	}
	gen := NewGenerator(&memoryStore{}, Options{PublicHost: "booth.local", Port: 8080, Resolver: resolver}, zap.NewNop())
	got, err := gen.DownloadURL("a.png")
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://booth.local:8080/enhanced_images/a.png" {
		t.Fatalf("DownloadURL = %q", got)
	}
}

func TestGenerateWritesPNG(t *testing.T) {
	store := &memoryStore{}
	gen := NewGenerator(store, Options{Port: 5000, Resolver: fixedIP("10.0.0.5")}, zap.NewNop())

	name, err := gen.Generate(context.Background(), "superhero_avatar_20250101-120000.png")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if name != "qr_superhero_avatar_20250101-120000.png" {
		t.Fatalf("name = %q", name)
	}
	data := store.files[name]
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Fatalf("expected PNG bytes, got %d bytes", len(data))
	}
}

func TestGenerateFailures(t *testing.T) {
	resolveErr := errors.New("no network")
	gen := NewGenerator(&memoryStore{}, Options{Port: 5000, Resolver: func() (string, error) { return "", resolveErr }}, zap.NewNop())
	if _, err := gen.Generate(context.Background(), "a.png"); !errors.Is(err, resolveErr) {
		t.Fatalf("expected resolver error, got %v", err)
	}

	writeErr := errors.New("disk full")
	gen = NewGenerator(&memoryStore{err: writeErr}, Options{Port: 5000, Resolver: fixedIP("10.0.0.5")}, zap.NewNop())
	if _, err := gen.Generate(context.Background(), "a.png"); !errors.Is(err, writeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}
