package dispatch

// ProgressUpdate is one progress event from a running batch
type ProgressUpdate struct {
	Done  int
	Total int
}

// ProgressNotifier delivers batch progress over a bounded channel so a
// UI or orchestration consumer can observe it from a single goroutine
// instead of sharing mutable state with the workers.
type ProgressNotifier struct {
	ch chan ProgressUpdate
}

// NewProgressNotifier creates a notifier with the given buffer size
func NewProgressNotifier(buffer int) *ProgressNotifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &ProgressNotifier{ch: make(chan ProgressUpdate, buffer)}
}

// Updates returns the channel progress events are delivered on
func (n *ProgressNotifier) Updates() <-chan ProgressUpdate {
	return n.ch
}

// Func adapts the notifier to a ProgressFunc. Events are dropped rather
// than blocking the batch when the consumer falls behind.
func (n *ProgressNotifier) Func() ProgressFunc {
	return func(done, total int) {
		select {
		case n.ch <- ProgressUpdate{Done: done, Total: total}:
		default:
		}
	}
}

// Close closes the update channel. Call only after the batch returns.
func (n *ProgressNotifier) Close() {
	close(n.ch)
}
