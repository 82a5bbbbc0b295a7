package relay

// Notifier is a single-slot wake-up signal. Producers call Notify right
// after committing a new outbox entry to wake a sleeping worker before its
// next tick; multiple pending signals collapse into one wake-up. Signals
// are best effort: a dropped signal only delays delivery until the periodic
// sweep picks the entry up.
type Notifier struct {
	ch chan struct{}
}

// NewNotifier constructs a Notifier with a one-slot buffer.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Notify signals that new work may be available. It never blocks; when a
// signal is already pending the call is a no-op.
func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Wake returns the channel a worker selects on to receive wake-ups.
func (n *Notifier) Wake() <-chan struct{} {
	return n.ch
}
