package relay

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBoundary_ReleasesOncePerGroup(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		senders := rapid.IntRange(1, 16).Draw(t, "senders")
		peers := rapid.IntRange(1, 16).Draw(t, "peers")
		b := newBoundary(senders, peers)

		var releases, eols atomic.Int64
		var wg sync.WaitGroup
		for range senders {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := b.addPoison(func(n int) (int, error) {
					releases.Add(1)
					eols.Add(int64(n))
					return n, nil
				})
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		received, eolSent := b.snapshot()
		require.Equal(t, senders, received)
		require.Equal(t, peers, eolSent)
		require.EqualValues(t, 1, releases.Load())
		require.EqualValues(t, peers, eols.Load())
	})
}

func TestBoundary_CountsInOrder(t *testing.T) {
	b := newBoundary(3, 2)
	release := func(n int) (int, error) { return n, nil }

	for want := 1; want <= 3; want++ {
		received, err := b.addPoison(release)
		require.NoError(t, err)
		require.Equal(t, want, received)
	}
	_, eolSent := b.snapshot()
	require.Equal(t, 2, eolSent)
}

func TestBoundary_ReleaseError(t *testing.T) {
	errFull := errors.New("full")
	b := newBoundary(1, 3)
	_, err := b.addPoison(func(int) (int, error) { return 1, errFull })
	require.ErrorIs(t, err, errFull)

	_, eolSent := b.snapshot()
	require.Equal(t, 1, eolSent)
}
