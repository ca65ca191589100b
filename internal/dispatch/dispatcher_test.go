package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/pool"
	"go.uber.org/zap"
)

type fakeClient struct{}

func (fakeClient) ListModels(context.Context) ([]string, error) { return []string{"m"}, nil }
func (fakeClient) Generate(context.Context, string, core.GenerateOptions) (string, error) {
	return "{}", nil
}
func (fakeClient) Close() error { return nil }

type fakeDialer struct{}

func (fakeDialer) Connect(context.Context) (core.BackendClient, error) {
	return fakeClient{}, nil
}

// fakeProcessor runs a per-item function keyed by email ID
type fakeProcessor struct {
	calls atomic.Int32
	fn    func(ctx context.Context, email *core.Email) (*core.EnrichedResult, error)
}

func (p *fakeProcessor) Process(ctx context.Context, _ core.BackendClient, email *core.Email) (*core.EnrichedResult, error) {
	p.calls.Add(1)
	if p.fn != nil {
		return p.fn(ctx, email)
	}
	return &core.EnrichedResult{Priority: core.PriorityMedium, Sender: email.From}, nil
}

func newTestDispatcher(t *testing.T, poolSize int, processor ItemProcessor) *Dispatcher {
	t.Helper()
	p, err := pool.New(fakeDialer{}, poolSize, zap.NewNop())
	if err != nil {
		t.Fatalf("pool.New failed: %v", err)
	}
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("pool init failed: %v", err)
	}
	return NewDispatcher(p, processor, time.Second, zap.NewNop())
}

func makeEmails(n int) []*core.Email {
	emails := make([]*core.Email, n)
	for i := range emails {
		emails[i] = &core.Email{
			ID:   fmt.Sprintf("msg-%d", i),
			From: fmt.Sprintf("sender%d@example.com", i),
		}
	}
	return emails
}

func TestProcessBatchEmpty(t *testing.T) {
	t.Parallel()

	// An uninitialized pool would fail any acquire, proving the empty
	// batch never touches it
	p, err := pool.New(fakeDialer{}, 2, zap.NewNop())
	if err != nil {
		t.Fatalf("pool.New failed: %v", err)
	}
	d := NewDispatcher(p, &fakeProcessor{}, time.Second, zap.NewNop())

	batch, err := d.ProcessBatch(context.Background(), nil, time.Second, nil)
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}
	if batch.Total != 0 || batch.Success != 0 || batch.Failed != 0 || len(batch.Results) != 0 {
		t.Errorf("empty batch result not zero: %+v", batch)
	}
}

func TestProcessBatchRejectsBadTimeout(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, 2, &fakeProcessor{})
	if _, err := d.ProcessBatch(context.Background(), makeEmails(1), 0, nil); !core.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	t.Parallel()

	processor := &fakeProcessor{
		fn: func(ctx context.Context, email *core.Email) (*core.EnrichedResult, error) {
			switch email.ID {
			case "msg-2":
				return nil, errors.New("model exploded")
			case "msg-3":
				// Hang well past the per-item timeout
				select {
				case <-time.After(5 * time.Second):
				case <-ctx.Done():
				}
				return nil, ctx.Err()
			default:
				return &core.EnrichedResult{Priority: core.PriorityMedium}, nil
			}
		},
	}
	d := newTestDispatcher(t, 2, processor)

	batch, err := d.ProcessBatch(context.Background(), makeEmails(5), 200*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	if batch.Total != 5 || batch.Success != 3 || batch.Failed != 2 {
		t.Fatalf("got total=%d success=%d failed=%d, want 5/3/2",
			batch.Total, batch.Success, batch.Failed)
	}
	if len(batch.Results) != 5 {
		t.Fatalf("got %d results, want 5", len(batch.Results))
	}

	// Results must align with input order, not completion order
	for _, idx := range []int{0, 1, 4} {
		r := batch.Results[idx]
		if r.Status != core.ItemSuccess || r.Result == nil {
			t.Errorf("results[%d] should be success, got %+v", idx, r)
		}
	}
	if r := batch.Results[2]; r.Status != core.ItemError || r.Timeout || !strings.Contains(r.Error, "model exploded") {
		t.Errorf("results[2] should carry the error, got %+v", r)
	}
	if r := batch.Results[3]; r.Status != core.ItemTimeout || !r.Timeout {
		t.Errorf("results[3] should carry a timeout marker, got %+v", r)
	}
	for i, r := range batch.Results {
		if want := fmt.Sprintf("msg-%d", i); r.ItemID != want {
			t.Errorf("results[%d].ItemID = %q, want %q", i, r.ItemID, want)
		}
	}
}

func TestProgressFiresOncePerItem(t *testing.T) {
	t.Parallel()

	processor := &fakeProcessor{
		fn: func(_ context.Context, email *core.Email) (*core.EnrichedResult, error) {
			if email.ID == "msg-1" {
				return nil, errors.New("bad item")
			}
			return &core.EnrichedResult{}, nil
		},
	}
	d := newTestDispatcher(t, 3, processor)

	var mu sync.Mutex
	var seen []int
	progress := func(done, total int) {
		mu.Lock()
		seen = append(seen, done)
		mu.Unlock()
		panic("observer crashed")
	}

	batch, err := d.ProcessBatch(context.Background(), makeEmails(6), time.Second, progress)
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}
	if batch.Total != 6 {
		t.Fatalf("total = %d, want 6", batch.Total)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 6 {
		t.Fatalf("progress fired %d times, want 6", len(seen))
	}
	// Done counts are monotonically increasing under the callback lock
	for i, done := range seen {
		if done != i+1 {
			t.Errorf("progress[%d] = %d, want %d", i, done, i+1)
		}
	}
}

func TestThroughputAndElapsed(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(t, 2, &fakeProcessor{})
	batch, err := d.ProcessBatch(context.Background(), makeEmails(4), time.Second, nil)
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}
	if batch.Elapsed <= 0 {
		t.Error("elapsed should be positive")
	}
	if batch.Throughput <= 0 {
		t.Error("throughput should be positive")
	}
}

func TestCancellationSuppressesNewWorkOnly(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{}, 16)
	release := make(chan struct{})
	processor := &fakeProcessor{
		fn: func(context.Context, *core.Email) (*core.EnrichedResult, error) {
			started <- struct{}{}
			<-release
			return &core.EnrichedResult{}, nil
		},
	}
	d := newTestDispatcher(t, 2, processor)

	done := make(chan *core.BatchResult, 1)
	go func() {
		batch, err := d.ProcessBatch(ctx, makeEmails(10), 5*time.Second, nil)
		if err != nil {
			t.Errorf("ProcessBatch failed: %v", err)
		}
		done <- batch
	}()

	// Wait until both workers hold an item, then cancel the batch
	<-started
	<-started
	cancel()
	close(release)

	batch := <-done
	if batch.Total != 10 || len(batch.Results) != 10 {
		t.Fatalf("canceled batch must still be total-consistent: %+v", batch)
	}
	if batch.Success+batch.Failed != batch.Total {
		t.Errorf("success+failed != total: %+v", batch)
	}
	// The in-flight items finished; some undispatched tail must remain
	if batch.Success == 10 {
		t.Error("cancellation did not suppress any work")
	}
	if batch.Success < 2 {
		t.Errorf("in-flight items should have completed, success=%d", batch.Success)
	}
	calls := int(processor.calls.Load())
	if calls == 10 {
		t.Error("all items were dispatched despite cancellation")
	}
}

func TestProgressNotifierDeliversUpdates(t *testing.T) {
	t.Parallel()

	const total = 6
	d := newTestDispatcher(t, 2, &fakeProcessor{})

	notifier := NewProgressNotifier(total + 2)
	drained := make(chan []ProgressUpdate, 1)
	go func() {
		var updates []ProgressUpdate
		for u := range notifier.Updates() {
			updates = append(updates, u)
		}
		drained <- updates
	}()

	batch, err := d.ProcessBatch(context.Background(), makeEmails(total), time.Second, notifier.Func())
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}
	notifier.Close()

	updates := <-drained
	if len(updates) != batch.Total {
		t.Fatalf("got %d updates, want %d", len(updates), batch.Total)
	}
	for i, u := range updates {
		if u.Done != i+1 || u.Total != total {
			t.Errorf("updates[%d] = %+v, want done=%d total=%d", i, u, i+1, total)
		}
	}
}
