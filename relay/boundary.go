package relay

import "sync"

// boundary is the termination counter shared by all actors of a downstream
// group. It is created by Relay.Connect for every pair of adjacent groups.
type boundary struct {
	mu       sync.Mutex
	received int
	eolSent  int

	// expected is the size of the upstream group.
	expected int
	// peers is the size of the downstream group.
	peers int
}

func newBoundary(expected, peers int) *boundary {
	return &boundary{expected: expected, peers: peers}
}

// addPoison counts one poison pill. If the count reaches the number of
// expected pills, release is called while the lock is still held so that
// exactly one caller enqueues the EOL signals for the whole group.
func (b *boundary) addPoison(release func(peers int) (int, error)) (received int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.received++
	if b.received == b.expected {
		n, err := release(b.peers)
		b.eolSent += n
		return b.received, err
	}
	return b.received, nil
}

// snapshot returns received poisons and enqueued EOLs.
func (b *boundary) snapshot() (received, eolSent int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.received, b.eolSent
}
