// Package processor defines the hooks that run after an instruction commits.
//
// A hook receives each committed value (a receipt, in practice) together with
// the metrics collection. Hooks compose: chains run in order, batchers buffer
// values for bulk writes, error handlers decide whether a failure propagates.
package processor

import (
	"context"
	"sync"

	"github.com/lugondev/go-zion/internal/metrics"
)

// Processor handles one value of type T.
type Processor[T any] interface {
	// Process handles the given data.
	// The metrics collection is used for recording performance metrics.
	Process(ctx context.Context, data T, metrics *metrics.Collection) error
}

// Flusher is implemented by processors that buffer values.
type Flusher interface {
	FlushBatch(ctx context.Context, metrics *metrics.Collection) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc[T any] func(ctx context.Context, data T, metrics *metrics.Collection) error

// Process implements the Processor interface.
func (f ProcessorFunc[T]) Process(ctx context.Context, data T, metrics *metrics.Collection) error {
	return f(ctx, data, metrics)
}

// NoopProcessor is a processor that does nothing.
type NoopProcessor[T any] struct{}

// NewNoopProcessor creates a new NoopProcessor.
func NewNoopProcessor[T any]() *NoopProcessor[T] {
	return &NoopProcessor[T]{}
}

// Process does nothing and returns nil.
func (p *NoopProcessor[T]) Process(ctx context.Context, data T, metrics *metrics.Collection) error {
	return nil
}

// ChainedProcessor runs processors in sequence, stopping at the first error.
type ChainedProcessor[T any] struct {
	processors []Processor[T]
}

// NewChainedProcessor creates a new ChainedProcessor with the given processors.
func NewChainedProcessor[T any](processors ...Processor[T]) *ChainedProcessor[T] {
	return &ChainedProcessor[T]{processors: processors}
}

// Add appends a processor to the chain.
func (c *ChainedProcessor[T]) Add(p Processor[T]) {
	c.processors = append(c.processors, p)
}

// Len returns the number of processors in the chain.
func (c *ChainedProcessor[T]) Len() int {
	return len(c.processors)
}

// Process calls each processor in sequence.
func (c *ChainedProcessor[T]) Process(ctx context.Context, data T, metrics *metrics.Collection) error {
	for _, p := range c.processors {
		if err := p.Process(ctx, data, metrics); err != nil {
			return err
		}
	}
	return nil
}

// FlushBatch flushes every chained processor that buffers values.
func (c *ChainedProcessor[T]) FlushBatch(ctx context.Context, metrics *metrics.Collection) error {
	for _, p := range c.processors {
		if f, ok := p.(Flusher); ok {
			if err := f.FlushBatch(ctx, metrics); err != nil {
				return err
			}
		}
	}
	return nil
}

// ConditionalProcessor only forwards values accepted by condition.
type ConditionalProcessor[T any] struct {
	processor Processor[T]
	condition func(T) bool
}

// NewConditionalProcessor creates a new ConditionalProcessor.
func NewConditionalProcessor[T any](processor Processor[T], condition func(T) bool) *ConditionalProcessor[T] {
	return &ConditionalProcessor[T]{
		processor: processor,
		condition: condition,
	}
}

// Process calls the wrapped processor only if the condition returns true.
func (c *ConditionalProcessor[T]) Process(ctx context.Context, data T, metrics *metrics.Collection) error {
	if c.condition(data) {
		return c.processor.Process(ctx, data, metrics)
	}
	return nil
}

// FlushBatch flushes the wrapped processor if it buffers values.
func (c *ConditionalProcessor[T]) FlushBatch(ctx context.Context, metrics *metrics.Collection) error {
	if f, ok := c.processor.(Flusher); ok {
		return f.FlushBatch(ctx, metrics)
	}
	return nil
}

// ErrorHandlingProcessor passes failures of the wrapped processor through
// errorHandler. A handler returning nil swallows the error.
type ErrorHandlingProcessor[T any] struct {
	processor    Processor[T]
	errorHandler func(error) error
}

// NewErrorHandlingProcessor creates a new ErrorHandlingProcessor.
func NewErrorHandlingProcessor[T any](processor Processor[T], errorHandler func(error) error) *ErrorHandlingProcessor[T] {
	return &ErrorHandlingProcessor[T]{
		processor:    processor,
		errorHandler: errorHandler,
	}
}

// Process calls the wrapped processor and handles any errors.
func (e *ErrorHandlingProcessor[T]) Process(ctx context.Context, data T, metrics *metrics.Collection) error {
	err := e.processor.Process(ctx, data, metrics)
	if err != nil && e.errorHandler != nil {
		return e.errorHandler(err)
	}
	return err
}

// FlushBatch forwards to the wrapped processor when it buffers values.
func (e *ErrorHandlingProcessor[T]) FlushBatch(ctx context.Context, metrics *metrics.Collection) error {
	f, ok := e.processor.(Flusher)
	if !ok {
		return nil
	}
	err := f.FlushBatch(ctx, metrics)
	if err != nil && e.errorHandler != nil {
		return e.errorHandler(err)
	}
	return err
}

// BatchProcessor buffers values and hands them on in batches of batchSize.
// It is safe for concurrent use.
type BatchProcessor[T any] struct {
	processor Processor[[]T]
	batchSize int

	mu     sync.Mutex
	buffer []T
}

// NewBatchProcessor creates a new BatchProcessor. A batchSize below one
// forwards every value immediately.
func NewBatchProcessor[T any](processor Processor[[]T], batchSize int) *BatchProcessor[T] {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchProcessor[T]{
		processor: processor,
		batchSize: batchSize,
		buffer:    make([]T, 0, batchSize),
	}
}

// Process adds an item to the buffer and processes the batch when full.
func (b *BatchProcessor[T]) Process(ctx context.Context, data T, metrics *metrics.Collection) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buffer = append(b.buffer, data)
	if len(b.buffer) >= b.batchSize {
		return b.flushLocked(ctx, metrics)
	}
	return nil
}

// FlushBatch processes any remaining items in the buffer.
func (b *BatchProcessor[T]) FlushBatch(ctx context.Context, metrics *metrics.Collection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked(ctx, metrics)
}

func (b *BatchProcessor[T]) flushLocked(ctx context.Context, metrics *metrics.Collection) error {
	if len(b.buffer) == 0 {
		return nil
	}
	batch := make([]T, len(b.buffer))
	copy(batch, b.buffer)
	b.buffer = b.buffer[:0]
	return b.processor.Process(ctx, batch, metrics)
}

// BufferSize returns the current number of items in the buffer.
func (b *BatchProcessor[T]) BufferSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}
