package flow

import "sync"

// userGate serializes engine operations per user. Telegram delivers updates
// from the same chat concurrently, so every handler runs under the user's
// gate: the check of the awaited question, the answer record and the queue
// advance form one unit, and a second update from the same user waits for
// the first to finish. Different users never wait on each other.
type userGate struct {
	mu    sync.Mutex
	users map[int64]*gateEntry
}

type gateEntry struct {
	mu   sync.Mutex
	refs int
}

func newUserGate() *userGate {
	return &userGate{users: make(map[int64]*gateEntry)}
}

func (g *userGate) lock(userID int64) {
	g.mu.Lock()
	e := g.users[userID]
	if e == nil {
		e = &gateEntry{}
		g.users[userID] = e
	}
	e.refs++
	g.mu.Unlock()

	e.mu.Lock()
}

func (g *userGate) unlock(userID int64) {
	g.mu.Lock()
	e := g.users[userID]
	e.refs--
	if e.refs == 0 {
		delete(g.users, userID)
	}
	g.mu.Unlock()

	e.mu.Unlock()
}
