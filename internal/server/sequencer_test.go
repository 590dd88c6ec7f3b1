package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSequencerPreservesArrivalOrder(t *testing.T) {
	seq := NewSequencer()
	const key = "10.0.0.1:5000"

	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	// Request 0 arrives first and does the slowest work; requests 1 and 2
	// arrive after but finish their work sooner. Response order must still
	// be 0, 1, 2.
	delays := []time.Duration{30 * time.Millisecond, 5 * time.Millisecond, 1 * time.Millisecond}
	for i, d := range delays {
		turn, release := seq.Enter(key)
		wg.Add(1)
		go func(i int, d time.Duration, turn <-chan struct{}, release func()) {
			defer wg.Done()
			time.Sleep(d)
			<-turn
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			release()
		}(i, d, turn, release)
		time.Sleep(time.Millisecond) // stagger arrival so Enter ordering is deterministic
	}
	wg.Wait()

	require.Equal(t, []int{0, 1, 2}, order)
}

func TestSequencerIndependentKeysDoNotBlockEachOther(t *testing.T) {
	seq := NewSequencer()

	turnA, releaseA := seq.Enter("peer-a")
	turnB, releaseB := seq.Enter("peer-b")

	select {
	case <-turnA:
	case <-time.After(time.Second):
		t.Fatal("peer-a's first turn should be immediately ready")
	}
	select {
	case <-turnB:
	case <-time.After(time.Second):
		t.Fatal("peer-b's first turn should be immediately ready")
	}
	releaseA()
	releaseB()
}
