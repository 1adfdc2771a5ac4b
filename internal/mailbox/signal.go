package mailbox

import "sync"

// KillSignal is a single-shot, unbounded kill channel: the reaper (or any
// other caller) fires it at most effectively once per peer, and the
// handler observes it via Done.
type KillSignal struct {
	once sync.Once
	ch   chan struct{}
}

// NewKillSignal returns an unfired kill signal.
func NewKillSignal() *KillSignal {
	return &KillSignal{ch: make(chan struct{})}
}

// Kill fires the signal. Safe to call more than once or concurrently.
func (k *KillSignal) Kill() {
	k.once.Do(func() { close(k.ch) })
}

// Done returns a channel that closes when Kill is called.
func (k *KillSignal) Done() <-chan struct{} {
	return k.ch
}

// KeepAliveWatch is a watch-style broadcaster: each Tick fires every
// observer exactly once, whether or not they were watching at the time of
// the previous tick. It stands in for tokio::sync::watch, which Go's
// standard channels don't provide directly — no broadcast-channel library
// appears anywhere in the example pack, so this is built on the same
// closed-channel broadcast idiom the corpus already uses for shutdown
// (every ctx.Done() select case).
type KeepAliveWatch struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewKeepAliveWatch returns a watch with no ticks yet observed.
func NewKeepAliveWatch() *KeepAliveWatch {
	return &KeepAliveWatch{ch: make(chan struct{})}
}

// Tick wakes every current observer of Chan.
func (w *KeepAliveWatch) Tick() {
	w.mu.Lock()
	old := w.ch
	w.ch = make(chan struct{})
	w.mu.Unlock()
	close(old)
}

// Chan returns the channel to select on for the next tick. Callers must
// call Chan again after it fires to observe the next one — the returned
// channel is single-use.
func (w *KeepAliveWatch) Chan() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ch
}
