package session

import (
	"sync"
	"testing"

	"github.com/sam17/fxlifesheet/internal/questions"
)

func q(key string) questions.Question {
	return questions.Question{Key: key, RawType: "text"}
}

func TestEnqueueDequeueOrder(t *testing.T) {
	s := NewStore()
	s.Enqueue(1, []questions.Question{q("a"), q("b")})
	s.Enqueue(1, []questions.Question{q("c")})

	for _, want := range []string{"a", "b", "c"} {
		got, ok := s.DequeueNext(1)
		if !ok || got.Key != want {
			t.Fatalf("dequeue got %q ok=%v, want %q", got.Key, ok, want)
		}
		cur, ok := s.Current(1)
		if !ok || cur.Key != want {
			t.Fatalf("current should track dequeued question, got %q ok=%v", cur.Key, ok)
		}
	}

	if _, ok := s.DequeueNext(1); ok {
		t.Fatal("dequeue on empty queue should report empty")
	}
}

func TestEnqueueFrontPrecedence(t *testing.T) {
	s := NewStore()
	s.Enqueue(1, []questions.Question{q("a"), q("b")})
	s.EnqueueFront(1, []questions.Question{q("f1"), q("f2")})

	var got []string
	for {
		next, ok := s.DequeueNext(1)
		if !ok {
			break
		}
		got = append(got, next.Key)
	}
	want := []string{"f1", "f2", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("drained %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("drained %v, want %v", got, want)
		}
	}
}

func TestEmptyEnqueueIsNoop(t *testing.T) {
	s := NewStore()
	s.Enqueue(1, nil)
	s.EnqueueFront(1, nil)
	if !s.PendingEmpty(1) {
		t.Fatal("empty enqueue must not create pending items")
	}
}

func TestClearCurrentLeavesQueue(t *testing.T) {
	s := NewStore()
	s.Enqueue(1, []questions.Question{q("a"), q("b")})
	s.DequeueNext(1)

	s.ClearCurrent(1)
	if _, ok := s.Current(1); ok {
		t.Fatal("current should be cleared")
	}
	if s.PendingEmpty(1) {
		t.Fatal("pending queue must survive ClearCurrent")
	}
}

func TestClearAll(t *testing.T) {
	s := NewStore()
	s.Enqueue(1, []questions.Question{q("a"), q("b")})
	s.DequeueNext(1)

	s.ClearAll(1)
	if _, ok := s.Current(1); ok {
		t.Fatal("current should be cleared")
	}
	if !s.PendingEmpty(1) {
		t.Fatal("pending should be empty")
	}
}

func TestUsersAreIsolated(t *testing.T) {
	s := NewStore()
	s.Enqueue(1, []questions.Question{q("a")})
	s.Enqueue(2, []questions.Question{q("b")})

	got, ok := s.DequeueNext(2)
	if !ok || got.Key != "b" {
		t.Fatalf("user 2 got %q ok=%v", got.Key, ok)
	}
	if s.PendingEmpty(1) {
		t.Fatal("user 1 queue must be untouched")
	}
}

// Two concurrent dequeues from a queue of length 1 must not both succeed.
func TestConcurrentDequeueMutualExclusion(t *testing.T) {
	for i := 0; i < 100; i++ {
		s := NewStore()
		s.Enqueue(7, []questions.Question{q("only")})

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for w := 0; w < 2; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok := s.DequeueNext(7); ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if wins != 1 {
			t.Fatalf("expected exactly one successful dequeue, got %d", wins)
		}
	}
}

func TestUpdateCriticalSection(t *testing.T) {
	s := NewStore()
	const n = 100

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(1, func(sess *Session) {
				sess.Enqueue([]questions.Question{q("x")})
			})
		}()
	}
	wg.Wait()

	var length int
	s.Update(1, func(sess *Session) { length = sess.PendingLen() })
	if length != n {
		t.Fatalf("expected %d queued questions, got %d", n, length)
	}
}
