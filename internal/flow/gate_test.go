package flow

import (
	"sync"
	"testing"
)

func TestUserGateMutualExclusion(t *testing.T) {
	g := newUserGate()

	var inside, maxInside int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.lock(7)
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
			g.unlock(7)
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("gate must admit one holder per user, saw %d", maxInside)
	}
}

func TestUserGateReleasesEntries(t *testing.T) {
	g := newUserGate()
	g.lock(1)
	g.lock(2)
	g.unlock(2)
	g.unlock(1)

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.users) != 0 {
		t.Fatalf("released users must not linger, got %d entries", len(g.users))
	}
}
