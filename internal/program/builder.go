package program

import (
	"errors"
	"log/slog"

	"github.com/lugondev/go-zion/internal/common"
	"github.com/lugondev/go-zion/internal/metrics"
	"github.com/lugondev/go-zion/internal/processor"
	"github.com/lugondev/go-zion/internal/storage"
	"github.com/lugondev/go-zion/pkg/types"
)

// ExecutorBuilder provides a fluent API for constructing an Executor.
type ExecutorBuilder struct {
	executor *Executor
}

// NewExecutorBuilder creates a builder around proc. Without further settings
// the executor stores pools in memory and records no metrics.
func NewExecutorBuilder(proc *Processor) *ExecutorBuilder {
	return &ExecutorBuilder{
		executor: &Executor{
			LoggerMixin: common.NewLoggerMixin("executor"),
			proc:        proc,
			repo:        storage.NewMemoryRepository(),
			hooks:       processor.NewChainedProcessor[*Receipt](),
			metrics:     metrics.NewCollection(),
			workers:     DefaultWorkers,
			locks:       make(map[types.Pubkey]*poolLock),
		},
	}
}

// Repository sets where pool records are loaded from and saved to.
func (b *ExecutorBuilder) Repository(repo storage.Repository) *ExecutorBuilder {
	b.executor.repo = repo
	return b
}

// Clock sets the slot source.
func (b *ExecutorBuilder) Clock(clock Clock) *ExecutorBuilder {
	b.executor.clock = clock
	return b
}

// Hook appends a post-commit hook. Hooks run in the order added.
func (b *ExecutorBuilder) Hook(hook processor.Processor[*Receipt]) *ExecutorBuilder {
	b.executor.hooks.Add(hook)
	return b
}

// Metrics sets the metrics collection.
func (b *ExecutorBuilder) Metrics(mc *metrics.Collection) *ExecutorBuilder {
	if mc != nil {
		b.executor.metrics = mc
	}
	return b
}

// Workers bounds how many pools a batch works on at once.
func (b *ExecutorBuilder) Workers(n int) *ExecutorBuilder {
	if n > 0 {
		b.executor.workers = n
	}
	return b
}

// Logger sets a custom logger.
func (b *ExecutorBuilder) Logger(logger *slog.Logger) *ExecutorBuilder {
	b.executor.SetLogger(logger)
	return b
}

// Build returns the constructed Executor.
func (b *ExecutorBuilder) Build() (*Executor, error) {
	switch {
	case b.executor.proc == nil:
		return nil, errors.New("executor requires a processor")
	case b.executor.clock == nil:
		return nil, errors.New("executor requires a clock")
	case b.executor.repo == nil:
		return nil, errors.New("executor requires a repository")
	}
	return b.executor, nil
}
