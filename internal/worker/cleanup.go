// Package worker runs the background blob cleanup loop: blobs that were
// durably stored but never got a metadata row are deleted asynchronously.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vidvault/backend/pkg/queue"
	"github.com/vidvault/backend/pkg/storage"
)

// CleanupWorker processes blob cleanup jobs from the Redis queue.
type CleanupWorker struct {
	blobs  storage.BlobStore
	queue  *queue.Queue
	logger *zap.Logger
}

// NewCleanupWorker creates a blob cleanup worker.
func NewCleanupWorker(blobs storage.BlobStore, q *queue.Queue, logger *zap.Logger) *CleanupWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupWorker{blobs: blobs, queue: q, logger: logger}
}

// Process executes one cleanup job.
func (w *CleanupWorker) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeBlobCleanup {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.BlobCleanupPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := w.blobs.Delete(ctx, payload.Location); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	w.logger.Info("orphaned blob reclaimed", zap.String("location", payload.Location))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. Returns
// when ctx is cancelled.
func (w *CleanupWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cleanup worker stopping")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		w.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := w.Process(ctx, job); err != nil {
			w.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := w.queue.Retry(ctx, job); reErr != nil {
				w.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
		}
	}
}
