package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"go.uber.org/zap"
)

const (
	// MinSize and MaxSize bound the number of backend connections a pool may hold
	MinSize = 2
	MaxSize = 5
)

// Stats is an atomic snapshot of pool occupancy.
// Active+Idle == Total always holds.
type Stats struct {
	Total  int
	Active int
	Idle   int
}

// Pool is a bounded set of reusable inference backend connections.
// Connections are established eagerly at initialization and handed out
// one at a time; a connection is never held by two callers at once.
type Pool struct {
	dialer core.BackendDialer
	size   int
	logger *zap.Logger

	mu          sync.Mutex
	idle        chan core.BackendClient
	total       int
	active      int
	initialized bool
}

// Handle is a leased backend connection. It must be released exactly
// once; Release is safe to call multiple times.
type Handle struct {
	client core.BackendClient
	pool   *Pool
	once   sync.Once
}

// Client returns the leased backend connection
func (h *Handle) Client() core.BackendClient {
	return h.client
}

// Release returns the connection to the pool
func (h *Handle) Release() {
	h.once.Do(func() {
		h.pool.release(h.client)
	})
}

// New creates a pool of the given size. The size must be within
// [MinSize, MaxSize]; connections are established by Initialize.
func New(dialer core.BackendDialer, size int, logger *zap.Logger) (*Pool, error) {
	if size < MinSize || size > MaxSize {
		return nil, core.NewValidationError("pool size",
			fmt.Sprintf("must be between %d and %d, got %d", MinSize, MaxSize, size))
	}

	return &Pool{
		dialer: dialer,
		size:   size,
		logger: logger,
		idle:   make(chan core.BackendClient, size),
	}, nil
}

// Initialize eagerly connects all backend connections. Calling it on an
// already-initialized pool is a no-op and never creates extra connections.
func (p *Pool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	if p.initialized {
		p.mu.Unlock()
		p.logger.Debug("Pool already initialized, skipping")
		return nil
	}
	p.mu.Unlock()

	clients := make([]core.BackendClient, 0, p.size)
	for i := 0; i < p.size; i++ {
		client, err := p.dialer.Connect(ctx)
		if err != nil {
			for _, c := range clients {
				if closeErr := c.Close(); closeErr != nil {
					p.logger.Error("Failed to close backend connection during rollback", zap.Error(closeErr))
				}
			}
			return fmt.Errorf("%w: connection %d of %d failed: %v",
				core.ErrBackendUnavailable, i+1, p.size, err)
		}
		clients = append(clients, client)
	}

	// Probe the backend once so startup logs show what is being served
	if models, err := clients[0].ListModels(ctx); err != nil {
		p.logger.Warn("Backend connected but model listing failed", zap.Error(err))
	} else {
		p.logger.Info("Inference backend ready",
			zap.Int("pool_size", p.size),
			zap.Strings("models", models))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		// Lost an init race; discard the extra connections
		for _, c := range clients {
			_ = c.Close()
		}
		return nil
	}
	for _, c := range clients {
		p.idle <- c
	}
	p.total = len(clients)
	p.initialized = true

	return nil
}

// Acquire leases a connection, blocking until one is idle or the
// timeout elapses. Timeout yields ErrResourceExhausted; the surrounding
// context cancels the wait as well.
func (p *Pool) Acquire(ctx context.Context, timeout time.Duration) (*Handle, error) {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: pool not initialized", core.ErrBackendUnavailable)
	}
	p.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case client := <-p.idle:
		p.mu.Lock()
		p.active++
		p.mu.Unlock()
		return &Handle{client: client, pool: p}, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no connection available within %s",
			core.ErrResourceExhausted, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// With acquires a connection, runs fn with it, and guarantees release
// on normal return and on panic
func (p *Pool) With(ctx context.Context, timeout time.Duration, fn func(core.BackendClient) error) error {
	handle, err := p.Acquire(ctx, timeout)
	if err != nil {
		return err
	}
	defer handle.Release()
	return fn(handle.Client())
}

func (p *Pool) release(client core.BackendClient) {
	p.mu.Lock()
	p.active--
	stopped := !p.initialized
	if stopped {
		p.total--
	}
	p.mu.Unlock()

	if stopped {
		if err := client.Close(); err != nil {
			p.logger.Error("Failed to close backend connection", zap.Error(err))
		}
		return
	}
	p.idle <- client
}

// Stats returns a consistent occupancy snapshot
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Total:  p.total,
		Active: p.active,
		Idle:   p.total - p.active,
	}
}

// Size returns the configured pool size
func (p *Pool) Size() int {
	return p.size
}

// HealthCheck reports whether the pool holds at least one connection
func (p *Pool) HealthCheck() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized && p.total > 0
}

// Stop closes all idle connections. Leased connections are closed as
// they are released back.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.initialized = false
	p.mu.Unlock()

	for {
		select {
		case client := <-p.idle:
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			if err := client.Close(); err != nil {
				p.logger.Error("Failed to close backend connection", zap.Error(err))
			}
		default:
			return
		}
	}
}
