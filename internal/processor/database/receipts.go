// Package database persists instruction receipts through a storage
// repository. It plugs into the executor as a post-commit hook.
package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lugondev/go-zion/internal/metrics"
	"github.com/lugondev/go-zion/internal/processor"
	"github.com/lugondev/go-zion/internal/program"
	"github.com/lugondev/go-zion/internal/storage"
)

// ReceiptToModel converts a receipt for storage.
func ReceiptToModel(r *program.Receipt) (*storage.ReceiptModel, error) {
	payload, err := r.JSON()
	if err != nil {
		return nil, err
	}
	return &storage.ReceiptModel{
		ID:        r.ID,
		Pool:      r.Pool.String(),
		Kind:      r.Kind.String(),
		Signer:    r.Signer.String(),
		Slot:      r.Slot,
		Payload:   payload,
		CreatedAt: r.CreatedAt,
	}, nil
}

// ModelToReceipt decodes a stored receipt.
func ModelToReceipt(m *storage.ReceiptModel) (*program.Receipt, error) {
	r, err := program.ParseReceipt(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("receipt %s: %w", m.ID, err)
	}
	return r, nil
}

// ReceiptProcessor saves each receipt as it is committed.
type ReceiptProcessor struct {
	repo   storage.ReceiptRepository
	logger *slog.Logger
}

func NewReceiptProcessor(repo storage.Repository, logger *slog.Logger) *ReceiptProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptProcessor{
		repo:   repo.Receipts(),
		logger: logger,
	}
}

func (p *ReceiptProcessor) Process(ctx context.Context, r *program.Receipt, mc *metrics.Collection) error {
	model, err := ReceiptToModel(r)
	if err != nil {
		return err
	}

	if err := p.repo.Save(ctx, model); err != nil {
		p.logger.Error("failed to save receipt",
			"id", r.ID,
			"pool", model.Pool,
			"slot", r.Slot,
			"error", err,
		)
		return fmt.Errorf("failed to save receipt: %w", err)
	}

	p.logger.Debug("receipt saved to database",
		"id", r.ID,
		"pool", model.Pool,
		"kind", model.Kind,
	)
	_ = mc.IncrementCounter(ctx, metrics.MetricReceiptsPersisted, 1)
	return nil
}

// BatchReceiptWriter saves receipts in bulk. Wrap it with NewBatchReceiptProcessor
// to buffer receipts as they are committed.
type BatchReceiptWriter struct {
	repo   storage.ReceiptRepository
	logger *slog.Logger
}

func NewBatchReceiptWriter(repo storage.Repository, logger *slog.Logger) *BatchReceiptWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchReceiptWriter{
		repo:   repo.Receipts(),
		logger: logger,
	}
}

func (w *BatchReceiptWriter) Process(ctx context.Context, receipts []*program.Receipt, mc *metrics.Collection) error {
	if len(receipts) == 0 {
		return nil
	}

	models := make([]*storage.ReceiptModel, 0, len(receipts))
	for _, r := range receipts {
		model, err := ReceiptToModel(r)
		if err != nil {
			return err
		}
		models = append(models, model)
	}

	if err := w.repo.SaveBatch(ctx, models); err != nil {
		w.logger.Error("failed to save receipt batch",
			"count", len(models),
			"error", err,
		)
		return fmt.Errorf("failed to save receipt batch: %w", err)
	}

	w.logger.Info("receipt batch saved to database", "count", len(models))
	_ = mc.IncrementCounter(ctx, metrics.MetricReceiptsPersisted, uint64(len(models)))
	return nil
}

// NewBatchReceiptProcessor buffers receipts and saves them batchSize at a
// time. Call FlushBatch on shutdown to save the remainder.
func NewBatchReceiptProcessor(repo storage.Repository, logger *slog.Logger, batchSize int) *processor.BatchProcessor[*program.Receipt] {
	if batchSize <= 0 {
		batchSize = 100
	}
	return processor.NewBatchProcessor[*program.Receipt](NewBatchReceiptWriter(repo, logger), batchSize)
}
