package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/pool"
	"go.uber.org/zap"
)

// minElapsed floors the wall-clock measurement so throughput never
// divides by zero
const minElapsed = time.Millisecond

// ProgressFunc is called once per completed item, in completion order
type ProgressFunc func(done, total int)

// ItemProcessor runs one email on a leased backend connection
type ItemProcessor interface {
	Process(ctx context.Context, client core.BackendClient, email *core.Email) (*core.EnrichedResult, error)
}

// Dispatcher runs batches of emails concurrently over the pool. Item
// failures and timeouts are isolated into their result slots; a batch
// always yields a complete, total-consistent BatchResult.
type Dispatcher struct {
	pool           *pool.Pool
	processor      ItemProcessor
	acquireTimeout time.Duration
	logger         *zap.Logger
}

// NewDispatcher creates a new batch dispatcher. acquireTimeout bounds
// how long each item waits for a pool connection; a non-positive value
// falls back to the per-item timeout.
func NewDispatcher(p *pool.Pool, processor ItemProcessor, acquireTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		pool:           p,
		processor:      processor,
		acquireTimeout: acquireTimeout,
		logger:         logger,
	}
}

type itemOutcome struct {
	result *core.EnrichedResult
	err    error
}

// ProcessBatch processes all emails concurrently, one leased connection
// per in-flight item. Results are index-aligned to the input. Canceling
// ctx stops new items from being dispatched; in-flight items run to
// completion or timeout. The only error returned is a ValidationError
// for a non-positive timeout.
func (d *Dispatcher) ProcessBatch(
	ctx context.Context,
	emails []*core.Email,
	perItemTimeout time.Duration,
	progress ProgressFunc,
) (*core.BatchResult, error) {
	if perItemTimeout <= 0 {
		return nil, core.NewValidationError("per-item timeout",
			fmt.Sprintf("must be positive, got %s", perItemTimeout))
	}

	total := len(emails)
	if total == 0 {
		return &core.BatchResult{Results: []core.ItemResult{}}, nil
	}

	started := time.Now()
	results := make([]core.ItemResult, total)

	workers := d.pool.Size()
	if workers > total {
		workers = total
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	var progressMu sync.Mutex
	completed := 0
	onDone := func() {
		progressMu.Lock()
		defer progressMu.Unlock()
		completed++
		d.notify(progress, completed, total)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = d.runItem(ctx, emails[idx], perItemTimeout)
				onDone()
			}
		}()
	}

	// Feed items, checking for batch cancellation between dispatches.
	// A canceled batch suppresses new work only.
	dispatched := 0
	for i := range emails {
		if ctx.Err() != nil {
			break
		}
		stop := false
		select {
		case <-ctx.Done():
			stop = true
		case jobs <- i:
			dispatched++
		}
		if stop {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if dispatched < total {
		d.logger.Info("Batch canceled before all items were dispatched",
			zap.Int("dispatched", dispatched),
			zap.Int("total", total))
		for i := dispatched; i < total; i++ {
			results[i] = core.ItemResult{
				ItemID: emails[i].ID,
				Status: core.ItemError,
				Error:  "batch canceled before item was dispatched",
			}
			onDone()
		}
	}

	elapsed := time.Since(started)
	if elapsed < minElapsed {
		elapsed = minElapsed
	}

	batch := &core.BatchResult{
		Total:      total,
		Results:    results,
		Elapsed:    elapsed,
		Throughput: float64(total) / elapsed.Seconds() * 60,
	}
	for _, r := range results {
		if r.Status == core.ItemSuccess {
			batch.Success++
		} else {
			batch.Failed++
		}
	}

	d.logger.Info("Batch complete",
		zap.Int("total", batch.Total),
		zap.Int("success", batch.Success),
		zap.Int("failed", batch.Failed),
		zap.Duration("elapsed", batch.Elapsed),
		zap.Float64("items_per_minute", batch.Throughput))

	return batch, nil
}

// runItem processes one email within its own timeout scope. The scope
// deliberately survives batch cancellation: in-flight items finish.
func (d *Dispatcher) runItem(ctx context.Context, email *core.Email, timeout time.Duration) core.ItemResult {
	itemCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	done := make(chan itemOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- itemOutcome{err: fmt.Errorf("item panicked: %v", r)}
			}
		}()

		acquireTimeout := d.acquireTimeout
		if acquireTimeout <= 0 {
			acquireTimeout = timeout
		}
		// The item deadline still bounds the wait through itemCtx
		handle, err := d.pool.Acquire(itemCtx, acquireTimeout)
		if err != nil {
			done <- itemOutcome{err: err}
			return
		}
		defer handle.Release()

		result, err := d.processor.Process(itemCtx, handle.Client(), email)
		done <- itemOutcome{result: result, err: err}
	}()

	select {
	case outcome := <-done:
		if outcome.err != nil {
			if itemCtx.Err() == context.DeadlineExceeded {
				return d.timeoutResult(email, timeout)
			}
			d.logger.Warn("Item failed",
				zap.String("message_id", email.ID),
				zap.Error(outcome.err))
			return core.ItemResult{
				ItemID: email.ID,
				Status: core.ItemError,
				Error:  outcome.err.Error(),
			}
		}
		return core.ItemResult{
			ItemID: email.ID,
			Status: core.ItemSuccess,
			Result: outcome.result,
		}
	case <-itemCtx.Done():
		// The worker goroutine releases the connection whenever the
		// hung call eventually returns
		return d.timeoutResult(email, timeout)
	}
}

func (d *Dispatcher) timeoutResult(email *core.Email, timeout time.Duration) core.ItemResult {
	d.logger.Warn("Item timed out",
		zap.String("message_id", email.ID),
		zap.Duration("timeout", timeout))
	return core.ItemResult{
		ItemID:  email.ID,
		Status:  core.ItemTimeout,
		Error:   fmt.Sprintf("processing exceeded %s", timeout),
		Timeout: true,
	}
}

// notify invokes the progress callback, swallowing any panic it raises
func (d *Dispatcher) notify(progress ProgressFunc, done, total int) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("Progress callback panicked",
				zap.Any("panic", r),
				zap.Int("done", done),
				zap.Int("total", total))
		}
	}()
	progress(done, total)
}
