package server

import "sync"

// Notifier fans session changes out to watch streams. Pass Notify to
// session.WithOnChange. Bursts of changes coalesce into one wakeup per
// watcher.
type Notifier struct {
	mu       sync.Mutex
	watchers map[chan struct{}]struct{}
}

// NewNotifier returns a notifier with no watchers
func NewNotifier() *Notifier {
	return &Notifier{watchers: make(map[chan struct{}]struct{})}
}

// Notify wakes every watcher without blocking
func (n *Notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch registers a watcher. The returned func unregisters it.
func (n *Notifier) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.watchers[ch] = struct{}{}
	n.mu.Unlock()

	return ch, func() {
		n.mu.Lock()
		delete(n.watchers, ch)
		n.mu.Unlock()
	}
}
