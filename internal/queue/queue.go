package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/usecase"
)

// TypeEnhance is the asynq task type for background enhancement.
const TypeEnhance = "avatar:enhance"

// taskGrace is added on top of the poll budget for upload and download time.
const taskGrace = time.Minute

// Processor runs a queued job.
type Processor interface {
	ProcessQueued(ctx context.Context, job usecase.AsyncJob) error
}

// NewEnhanceTask builds the task for job. Jobs are never retried by asynq;
// the poller already owns the retry budget.
func NewEnhanceTask(job usecase.AsyncJob, pollBudget time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEnhance, payload,
		asynq.TaskID(job.RequestID),
		asynq.MaxRetry(0),
		asynq.Timeout(pollBudget+taskGrace),
	), nil
}

// Enqueuer publishes enhancement tasks to Redis.
type Enqueuer struct {
	client     *asynq.Client
	pollBudget time.Duration
	logger     *zap.Logger
}

// NewEnqueuer opens an asynq client; tasks it builds time out after
// pollBudget plus download slack.
func NewEnqueuer(redisOpt asynq.RedisClientOpt, pollBudget time.Duration, logger *zap.Logger) *Enqueuer {
	return &Enqueuer{
		client:     asynq.NewClient(redisOpt),
		pollBudget: pollBudget,
		logger:     logger.Named("queue"),
	}
}

// Enqueue implements usecase.Enqueuer.
func (e *Enqueuer) Enqueue(ctx context.Context, job usecase.AsyncJob) error {
	task, err := NewEnhanceTask(job, e.pollBudget)
	if err != nil {
		return fmt.Errorf("build task: %w", err)
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", TypeEnhance, err)
	}
	e.logger.Info("task enqueued", zap.String("request_id", job.RequestID), zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return nil
}

// Close releases the Redis connection.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// Worker consumes enhancement tasks in-process.
type Worker struct {
	server    *asynq.Server
	processor Processor
	logger    *zap.Logger
}

// NewWorker configures an asynq server on the default queue. Call Start to
// begin consuming.
func NewWorker(redisOpt asynq.RedisClientOpt, concurrency int, processor Processor, logger *zap.Logger) *Worker {
	named := logger.Named("queue_worker")
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{"default": 1},
		Logger:      named.Sugar(),
	})
	return &Worker{server: server, processor: processor, logger: named}
}

// Start begins processing in background goroutines.
func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEnhance, w.HandleEnhanceTask)
	return w.server.Start(mux)
}

// Shutdown waits for in-flight tasks up to asynq's shutdown timeout.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// HandleEnhanceTask decodes the payload and runs the job.
func (w *Worker) HandleEnhanceTask(ctx context.Context, t *asynq.Task) error {
	var job usecase.AsyncJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	w.logger.Info("processing task", zap.String("request_id", job.RequestID))
	if err := w.processor.ProcessQueued(ctx, job); err != nil {
		w.logger.Error("task failed", zap.String("request_id", job.RequestID), zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}
