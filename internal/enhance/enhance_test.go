package enhance

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/deepimage"
	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/domain"
)

type stubService struct {
	mu          sync.Mutex
	submit      *deepimage.Result
	submitErr   error
	statuses    []*deepimage.Result
	statusErr   error
	params      deepimage.Parameters
	filename    string
	pollCalls   int
	pollTimes   []time.Time
	pollJobIDs  []string
	downloadErr error
	downloaded  []string
}

func (s *stubService) ProcessResult(ctx context.Context, filename string, image io.Reader, params deepimage.Parameters) (*deepimage.Result, error) {
	s.filename = filename
	s.params = params
	if _, err := io.ReadAll(image); err != nil {
		return nil, err
	}
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return s.submit, nil
}

func (s *stubService) Result(ctx context.Context, jobID string) (*deepimage.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollCalls++
	s.pollTimes = append(s.pollTimes, time.Now())
	s.pollJobIDs = append(s.pollJobIDs, jobID)
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	if len(s.statuses) == 0 {
		return &deepimage.Result{Status: "in_progress"}, nil
	}
	next := s.statuses[0]
	s.statuses = s.statuses[1:]
	return next, nil
}

func (s *stubService) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	s.downloaded = append(s.downloaded, url)
	if s.downloadErr != nil {
		return 0, s.downloadErr
	}
	n, err := w.Write([]byte("enhanced:" + url))
	return int64(n), err
}

type memoryStore struct {
	files map[string][]byte
	err   error
}

func (m *memoryStore) WriteEnhanced(ctx context.Context, name string, write func(io.Writer) error) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return "", err
	}
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[name] = buf.Bytes()
	return "/enhanced/" + name, nil
}

func writeUpload(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unity_webcam_20250101-120000.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return path
}

func newPipeline(svc *stubService, store *memoryStore, policy PollPolicy) *Pipeline {
	logger := zap.NewNop()
	return NewPipeline(
		NewSubmitter(svc, logger),
		NewPoller(svc, policy, logger),
		NewMaterializer(svc, store, logger),
		logger,
	)
}

func TestParametersForGender(t *testing.T) {
	woman := ParametersFor(domain.GenderWoman)
	man := ParametersFor(domain.GenderMan)

	for _, p := range []deepimage.Parameters{woman, man} {
		if p.Width != 1024 || p.Height != 1024 {
			t.Fatalf("unexpected size %dx%d", p.Width, p.Height)
		}
		if p.Background.Generate.AdapterType != "face" || !p.Background.Generate.FaceID {
			t.Fatalf("unexpected generate directive %+v", p.Background.Generate)
		}
	}
	if !strings.Contains(woman.Background.Generate.Description, "female warrior") {
		t.Fatalf("woman prompt = %q", woman.Background.Generate.Description)
	}
	if !strings.Contains(man.Background.Generate.Description, "bronze and black medieval armor") {
		t.Fatalf("man prompt = %q", man.Background.Generate.Description)
	}
}

func TestSubmitImmediateCompletion(t *testing.T) {
	svc := &stubService{submit: &deepimage.Result{Status: "complete", ResultURL: "https://cdn/out.png"}}
	out, err := NewSubmitter(svc, zap.NewNop()).Submit(context.Background(), writeUpload(t), domain.GenderWoman)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !out.Immediate() || out.ResultURL != "https://cdn/out.png" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if svc.filename != "unity_webcam_20250101-120000.png" {
		t.Fatalf("filename = %q", svc.filename)
	}
}

func TestSubmitPendingWithoutJobIsServiceError(t *testing.T) {
	svc := &stubService{submit: &deepimage.Result{Status: "received"}}
	_, err := NewSubmitter(svc, zap.NewNop()).Submit(context.Background(), writeUpload(t), domain.GenderMan)
	if !errors.Is(err, domain.ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
}

func TestSubmitMissingFileIsIOError(t *testing.T) {
	svc := &stubService{}
	_, err := NewSubmitter(svc, zap.NewNop()).Submit(context.Background(), filepath.Join(t.TempDir(), "nope.png"), domain.GenderMan)
	if !errors.Is(err, domain.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestPipelineImmediateResultSkipsPolling(t *testing.T) {
	svc := &stubService{submit: &deepimage.Result{Status: "complete", ResultURL: "https://cdn/U"}}
	store := &memoryStore{}
	var stages []Stage

	artifact, err := newPipeline(svc, store, PollPolicy{Interval: time.Millisecond, MaxAttempts: 3}).Run(context.Background(), Request{
		ImagePath: writeUpload(t),
		Gender:    domain.GenderMan,
		Timestamp: "20250101-120000",
		OnStage:   func(s Stage) { stages = append(stages, s) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.pollCalls != 0 {
		t.Fatalf("expected zero poll attempts, got %d", svc.pollCalls)
	}
	if artifact.Filename != "superhero_avatar_20250101-120000.png" {
		t.Fatalf("unexpected artifact %+v", artifact)
	}
	if len(svc.downloaded) != 1 || svc.downloaded[0] != "https://cdn/U" {
		t.Fatalf("unexpected downloads %v", svc.downloaded)
	}
	if len(stages) != 2 || stages[0] != StageSubmitting || stages[1] != StageMaterializing {
		t.Fatalf("unexpected stages %v", stages)
	}
}

func TestPipelinePollsUntilComplete(t *testing.T) {
	svc := &stubService{
		submit: &deepimage.Result{Status: "received", Job: "J1"},
		statuses: []*deepimage.Result{
			{Status: "in_progress"},
			{Status: "in_progress"},
			{Status: "in_progress"},
			{Status: "complete", ResultURL: "https://cdn/U"},
		},
	}
	store := &memoryStore{}

	artifact, err := newPipeline(svc, store, PollPolicy{Interval: time.Millisecond, MaxAttempts: 30}).Run(context.Background(), Request{
		ImagePath: writeUpload(t),
		Gender:    domain.GenderWoman,
		Timestamp: "20250101-120000",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if svc.pollCalls != 4 {
		t.Fatalf("expected 4 poll attempts, got %d", svc.pollCalls)
	}
	for _, id := range svc.pollJobIDs {
		if id != "J1" {
			t.Fatalf("polled job %q, want J1", id)
		}
	}
	if got := string(store.files[artifact.Filename]); got != "enhanced:https://cdn/U" {
		t.Fatalf("stored artifact = %q", got)
	}
}

func TestPollTimesOutAfterBudget(t *testing.T) {
	svc := &stubService{}
	interval := 3 * time.Millisecond
	poller := NewPoller(svc, PollPolicy{Interval: interval, MaxAttempts: 5}, zap.NewNop())

	start := time.Now()
	_, err := poller.Poll(context.Background(), JobHandle{ID: "J1"})
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if svc.pollCalls != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", svc.pollCalls)
	}
	if svc.pollTimes[0].Sub(start) < interval {
		t.Fatalf("first attempt was not preceded by the interval")
	}
	for i := 1; i < len(svc.pollTimes); i++ {
		if gap := svc.pollTimes[i].Sub(svc.pollTimes[i-1]); gap < interval {
			t.Fatalf("attempts %d and %d only %s apart", i, i+1, gap)
		}
	}
}

func TestPollTreatsUnknownStatusAsPending(t *testing.T) {
	svc := &stubService{statuses: []*deepimage.Result{
		{Status: "failed"},
		{Status: "weird"},
		{Status: "complete", ResultURL: "https://cdn/U"},
	}}
	url, err := NewPoller(svc, PollPolicy{Interval: time.Millisecond, MaxAttempts: 5}, zap.NewNop()).Poll(context.Background(), JobHandle{ID: "J1"})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if url != "https://cdn/U" || svc.pollCalls != 3 {
		t.Fatalf("unexpected result %q after %d calls", url, svc.pollCalls)
	}
}

func TestPollFailureStatusAbortsWhenConfigured(t *testing.T) {
	svc := &stubService{statuses: []*deepimage.Result{{Status: "in_progress"}, {Status: "failed"}}}
	_, err := NewPoller(svc, PollPolicy{Interval: time.Millisecond, MaxAttempts: 10, FailureStatuses: []string{"failed"}}, zap.NewNop()).
		Poll(context.Background(), JobHandle{ID: "J1"})
	if !errors.Is(err, domain.ErrService) {
		t.Fatalf("expected ErrService, got %v", err)
	}
	if svc.pollCalls != 2 {
		t.Fatalf("expected abort on second attempt, got %d calls", svc.pollCalls)
	}
}

func TestPollServiceErrorAbortsImmediately(t *testing.T) {
	svc := &stubService{statusErr: errors.New("connection reset")}
	_, err := NewPoller(svc, PollPolicy{Interval: time.Millisecond, MaxAttempts: 10}, zap.NewNop()).Poll(context.Background(), JobHandle{ID: "J1"})
	if err == nil || svc.pollCalls != 1 {
		t.Fatalf("expected single failing attempt, got err=%v calls=%d", err, svc.pollCalls)
	}
}

func TestPollHonoursCancellation(t *testing.T) {
	svc := &stubService{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPoller(svc, PollPolicy{Interval: time.Hour, MaxAttempts: 30}, zap.NewNop()).Poll(ctx, JobHandle{ID: "J1"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if svc.pollCalls != 0 {
		t.Fatalf("expected no attempts after cancel, got %d", svc.pollCalls)
	}
}

func TestNewPollerDefaults(t *testing.T) {
	p := NewPoller(&stubService{}, PollPolicy{}, zap.NewNop())
	if p.maxAttempts != 30 || p.interval != 5*time.Second {
		t.Fatalf("unexpected defaults %d x %s", p.maxAttempts, p.interval)
	}
}

func TestMaterializeWrapsFailuresAsIOError(t *testing.T) {
	svc := &stubService{downloadErr: errors.New("download status 403")}
	_, err := NewMaterializer(svc, &memoryStore{}, zap.NewNop()).Materialize(context.Background(), "https://cdn/U", "20250101-120000")
	if !errors.Is(err, domain.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}

	_, err = NewMaterializer(&stubService{}, &memoryStore{err: errors.New("disk full")}, zap.NewNop()).Materialize(context.Background(), "https://cdn/U", "20250101-120000")
	if !errors.Is(err, domain.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}
