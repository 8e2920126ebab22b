package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/procurement-approvals/internal/application/service"
	"github.com/garyjia/procurement-approvals/internal/domain/entity"
)

// DocumentRetryConfig tunes the document retry worker
type DocumentRetryConfig struct {
	Interval    time.Duration
	BatchSize   int
	GracePeriod time.Duration
	MaxAttempts int
	Concurrency int
}

// DefaultDocumentRetryConfig returns default configuration
func DefaultDocumentRetryConfig() DocumentRetryConfig {
	return DocumentRetryConfig{
		Interval:    time.Minute,
		BatchSize:   20,
		GracePeriod: 2 * time.Minute,
		MaxAttempts: 5,
		Concurrency: 4,
	}
}

// GenerationBacklog is the part of the document service the worker drives
type GenerationBacklog interface {
	ListGenerationBacklog(ctx context.Context, olderThan time.Duration, maxAttempts, limit int) ([]*entity.Requisition, error)
	RetryGeneration(ctx context.Context, tenantID, requisitionID string) (*service.GenerationResult, error)
}

// DocumentRetryWorker closes the "approved but no PO/RFQ" gap left by crashes
// or failed generations between the approval commit and document creation.
type DocumentRetryWorker struct {
	config    DocumentRetryConfig
	documents GenerationBacklog
	logger    *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}

	generated atomic.Int64
	failed    atomic.Int64
}

// NewDocumentRetryWorker creates a new DocumentRetryWorker
func NewDocumentRetryWorker(config DocumentRetryConfig, documents GenerationBacklog, logger *zap.Logger) *DocumentRetryWorker {
	defaults := DefaultDocumentRetryConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	return &DocumentRetryWorker{config: config, documents: documents, logger: logger}
}

func (w *DocumentRetryWorker) Name() string { return "DocumentRetryWorker" }

// Start launches the polling loop
func (w *DocumentRetryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("document retry worker already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("DocumentRetryWorker started",
		zap.Duration("interval", w.config.Interval),
		zap.Duration("grace_period", w.config.GracePeriod),
		zap.Int("max_attempts", w.config.MaxAttempts))

	go w.loop(runCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for the in-flight batch to finish
func (w *DocumentRetryWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done
	w.logger.Info("DocumentRetryWorker stopped",
		zap.Int64("generated", w.generated.Load()),
		zap.Int64("failed", w.failed.Load()))
	return nil
}

func (w *DocumentRetryWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("Document retry pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce processes one backlog batch and returns how many documents were created
func (w *DocumentRetryWorker) RunOnce(ctx context.Context) (int, error) {
	backlog, err := w.documents.ListGenerationBacklog(ctx, w.config.GracePeriod, w.config.MaxAttempts, w.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list generation backlog: %w", err)
	}
	if len(backlog) == 0 {
		return 0, nil
	}
	w.logger.Info("Retrying document generation", zap.Int("count", len(backlog)))

	var created atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.Concurrency)
	for _, req := range backlog {
		req := req
		g.Go(func() error {
			result, err := w.documents.RetryGeneration(gctx, req.TenantID, req.ID)
			if err != nil {
				// One bad requisition must not stop the batch
				w.failed.Add(1)
				w.logger.Warn("Document retry failed",
					zap.String("tenant_id", req.TenantID),
					zap.String("requisition_id", req.ID),
					zap.Int("attempts", req.GenerationAttempts+1),
					zap.Error(err))
				return nil
			}
			if result != nil && result.Created {
				created.Add(1)
				w.generated.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(created.Load()), ctx.Err()
}
