// Package workers processes queued jobs.
package workers

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/benvon/smart-docs/internal/logger"
	"github.com/benvon/smart-docs/internal/metrics"
	"github.com/benvon/smart-docs/internal/queue"
	"github.com/benvon/smart-docs/internal/services/agent"
	"github.com/benvon/smart-docs/internal/services/ai"
	"github.com/benvon/smart-docs/internal/store"
	"github.com/benvon/smart-docs/internal/telemetry"
)

// Job outcomes reported to metrics
const (
	resultDone     = "done"
	resultRetried  = "retried"
	resultDeferred = "deferred"
	resultDropped  = "dropped"
	resultFailed   = "dead_lettered"
)

// ContentWorker fills newly created files with generated content
type ContentWorker struct {
	generator *agent.Generator
	store     *store.FileStore
	jobQueue  queue.Enqueuer // For re-enqueueing jobs with delays
	logger    *zap.Logger
}

// NewContentWorker creates a content worker. jobQueue may be nil, in which
// case failed jobs are requeued by the broker instead of scheduled.
func NewContentWorker(generator *agent.Generator, fs *store.FileStore, jobQueue queue.Enqueuer, log *zap.Logger) *ContentWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContentWorker{
		generator: generator,
		store:     fs,
		jobQueue:  jobQueue,
		logger:    log,
	}
}

// ProcessGenerateContentJob generates the document for a job and replaces the
// file's placeholder content with it. A file deleted in the meantime is not
// recreated.
func (w *ContentWorker) ProcessGenerateContentJob(ctx context.Context, job *queue.Job) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "worker.generate_content",
		attribute.String("job_id", job.ID.String()),
		attribute.String("kind", string(job.Kind)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "generation failed")
		}
		span.End()
	}()

	if !w.generator.Enabled() {
		return ai.ErrNotConfigured
	}

	doc, err := w.generator.Document(ctx, job.Name, job.Kind, job.UserRequest)
	if err != nil {
		return fmt.Errorf("failed to generate content: %w", err)
	}

	_, err = w.store.Update(ctx, job.Filename, func(any) (any, error) {
		return doc, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		w.logger.Info("content_target_missing",
			zap.String("job_id", job.ID.String()),
			logger.File(job.Filename))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}

	w.logger.Info("content_generated",
		zap.String("job_id", job.ID.String()),
		logger.File(job.Filename),
		zap.String("kind", string(doc.Kind)),
		zap.String("request_id", job.RequestID))
	return nil
}

// ProcessJob processes a job based on its type and settles the message
func (w *ContentWorker) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	if job.IsExpired() {
		w.settle(msg, job, false, resultDropped)
		return fmt.Errorf("job %s expired", job.ID)
	}

	// Respect NotBefore when the broker delivered early
	if !job.ShouldProcess() {
		return w.deferJob(ctx, msg, job)
	}

	switch job.Type {
	case queue.JobTypeGenerateContent:
		if err := w.ProcessGenerateContentJob(ctx, job); err != nil {
			return w.handleJobError(ctx, msg, job, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		metrics.ObserveJob(string(job.Type), resultDone)
		return nil

	default:
		w.settle(msg, job, false, resultFailed) // Unknown job type, send to DLQ
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (w *ContentWorker) deferJob(ctx context.Context, msg queue.MessageInterface, job *queue.Job) error {
	if w.jobQueue == nil {
		w.settle(msg, job, true, resultDeferred)
		return nil
	}
	if err := w.jobQueue.Enqueue(ctx, job); err != nil {
		w.settle(msg, job, true, resultDeferred)
		return fmt.Errorf("failed to defer job: %w", err)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		w.logger.Warn("job_ack_failed", zap.String("job_id", job.ID.String()), zap.Error(ackErr))
	}
	metrics.ObserveJob(string(job.Type), resultDeferred)
	return nil
}

// handleJobError retries with a delay chosen by error kind: quota errors wait
// hours, rate limits minutes, anything else seconds. Jobs out of retries go
// to the dead-letter queue.
func (w *ContentWorker) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int("attempt", job.RetryCount+1),
		zap.Int("max_retries", job.MaxRetries),
		zap.Error(err),
	}

	if errors.Is(err, ai.ErrNotConfigured) || !job.CanRetry() {
		w.logger.Error("job_failed", fields...)
		w.settle(msg, job, false, resultFailed)
		return fmt.Errorf("job failed (max retries): %w", err)
	}

	delay := ai.GetRetryDelay(err, job.RetryCount)
	if w.jobQueue == nil {
		job.IncrementRetry()
		w.logger.Warn("job_requeued", fields...)
		w.settle(msg, job, true, resultRetried)
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	retry := job.RetryAfter(delay)
	if enqueueErr := w.jobQueue.Enqueue(ctx, retry); enqueueErr != nil {
		w.logger.Error("job_reenqueue_failed", append(fields, zap.NamedError("enqueue_error", enqueueErr))...)
		w.settle(msg, job, true, resultRetried)
		return fmt.Errorf("failed to re-enqueue job: %w", enqueueErr)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		w.logger.Warn("job_ack_failed", zap.String("job_id", job.ID.String()), zap.Error(ackErr))
	}

	w.logger.Warn("job_retry_scheduled", append(fields, zap.Duration("delay", delay))...)
	metrics.ObserveJob(string(job.Type), resultRetried)
	return fmt.Errorf("job failed (retry in %s): %w", delay, err)
}

func (w *ContentWorker) settle(msg queue.MessageInterface, job *queue.Job, requeue bool, result string) {
	if nackErr := msg.Nack(requeue); nackErr != nil {
		w.logger.Warn("job_nack_failed",
			zap.String("job_id", job.ID.String()),
			zap.Bool("requeue", requeue),
			zap.Error(nackErr))
	}
	metrics.ObserveJob(string(job.Type), result)
}

// Run consumes jobs until ctx is cancelled or the queue stops delivering
func (w *ContentWorker) Run(ctx context.Context, jobQueue queue.JobQueue, prefetch int) error {
	msgChan, errChan, err := jobQueue.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}
	w.logger.Info("worker_started", zap.Int("prefetch", prefetch))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			w.logger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgChan:
			if !ok {
				w.logger.Info("message_channel_closed")
				return nil
			}
			if err := w.ProcessJob(ctx, msg); err != nil {
				w.logger.Warn("job_processing_failed",
					zap.Error(err),
					zap.String("job_id", msg.GetJob().ID.String()),
					zap.String("job_type", string(msg.GetJob().Type)))
			}
		}
	}
}
