// Package session holds per-user conversational state: the ordered queue of
// pending questions plus the single question currently awaiting an answer.
package session

import (
	"sync"

	"github.com/sam17/fxlifesheet/internal/questions"
)

const shardCount = 32

type session struct {
	pending []questions.Question
	current *questions.Question
}

type shard struct {
	mu       sync.Mutex
	sessions map[int64]*session
}

// Store is a sharded keyed map of user sessions. All operations are atomic
// per user; users on different shards never contend.
type Store struct {
	shards [shardCount]*shard
}

// NewStore creates an empty Store.
func NewStore() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[int64]*session)}
	}
	return s
}

func (s *Store) shardFor(userID int64) *shard {
	return s.shards[uint64(userID)%shardCount]
}

// session returns the user's session, creating it lazily. Caller must hold
// the shard lock.
func (sh *shard) session(userID int64) *session {
	sess, ok := sh.sessions[userID]
	if !ok {
		sess = &session{}
		sh.sessions[userID] = sess
	}
	return sess
}

// Update runs fn as one exclusive critical section for the user. Multi-step
// sequences (check current, dequeue, mutate) go through here so concurrent
// updates for the same user serialize. fn must not perform network calls.
func (s *Store) Update(userID int64, fn func(sess *Session)) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fn(&Session{inner: sh.session(userID)})
}

// Enqueue appends questions to the tail of the user's pending queue.
func (s *Store) Enqueue(userID int64, qs []questions.Question) {
	s.Update(userID, func(sess *Session) { sess.Enqueue(qs) })
}

// EnqueueFront prepends questions to the user's pending queue, preserving
// the given order at the head.
func (s *Store) EnqueueFront(userID int64, qs []questions.Question) {
	s.Update(userID, func(sess *Session) { sess.EnqueueFront(qs) })
}

// DequeueNext removes the head of the pending queue and sets it as current.
// Returns false and clears nothing when the queue is empty.
func (s *Store) DequeueNext(userID int64) (questions.Question, bool) {
	var (
		q  questions.Question
		ok bool
	)
	s.Update(userID, func(sess *Session) { q, ok = sess.DequeueNext() })
	return q, ok
}

// Current returns the question currently awaiting an answer, if any.
func (s *Store) Current(userID int64) (questions.Question, bool) {
	var (
		q  questions.Question
		ok bool
	)
	s.Update(userID, func(sess *Session) { q, ok = sess.Current() })
	return q, ok
}

// ClearCurrent unsets the current question without touching the queue.
func (s *Store) ClearCurrent(userID int64) {
	s.Update(userID, func(sess *Session) { sess.ClearCurrent() })
}

// ClearAll empties the pending queue and clears the current question.
func (s *Store) ClearAll(userID int64) {
	s.Update(userID, func(sess *Session) { sess.ClearAll() })
}

// PendingEmpty reports whether the user has no queued questions.
func (s *Store) PendingEmpty(userID int64) bool {
	var empty bool
	s.Update(userID, func(sess *Session) { empty = sess.PendingEmpty() })
	return empty
}

// Session is a view of one user's state, valid only inside an Update closure.
type Session struct {
	inner *session
}

func (v *Session) Enqueue(qs []questions.Question) {
	if len(qs) == 0 {
		return
	}
	v.inner.pending = append(v.inner.pending, qs...)
}

func (v *Session) EnqueueFront(qs []questions.Question) {
	if len(qs) == 0 {
		return
	}
	next := make([]questions.Question, 0, len(qs)+len(v.inner.pending))
	next = append(next, qs...)
	next = append(next, v.inner.pending...)
	v.inner.pending = next
}

func (v *Session) DequeueNext() (questions.Question, bool) {
	if len(v.inner.pending) == 0 {
		return questions.Question{}, false
	}
	q := v.inner.pending[0]
	v.inner.pending = v.inner.pending[1:]
	v.inner.current = &q
	return q, true
}

func (v *Session) Current() (questions.Question, bool) {
	if v.inner.current == nil {
		return questions.Question{}, false
	}
	return *v.inner.current, true
}

func (v *Session) ClearCurrent() {
	v.inner.current = nil
}

func (v *Session) ClearAll() {
	v.inner.pending = nil
	v.inner.current = nil
}

func (v *Session) PendingEmpty() bool {
	return len(v.inner.pending) == 0
}

// PendingLen reports the queue length, used for logging.
func (v *Session) PendingLen() int {
	return len(v.inner.pending)
}
