package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/rally/internal/domain/model"
)

func TestMemStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	if _, ok, _ := s.Get(ctx, "missing"); ok {
		t.Error("expected missing key")
	}

	m := model.Match{Key: model.MatchKey{Scope: "a", Index: 1}}
	if err := s.Txn(ctx, func(tx Tx) error {
		tx.Put("match/a/1", m)
		return nil
	}); err != nil {
		t.Fatalf("txn failed: %v", err)
	}

	doc, ok, err := s.Get(ctx, "match/a/1")
	if err != nil || !ok {
		t.Fatalf("expected document, got ok=%v err=%v", ok, err)
	}
	if got := doc.(model.Match).Key.Index; got != 1 {
		t.Errorf("expected index 1, got %d", got)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 document, got %d", s.Len())
	}
}

func TestMemStore_TxnReadYourWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	err := s.Txn(ctx, func(tx Tx) error {
		tx.Put("k", model.Match{Version: 7})
		doc, ok := tx.Get("k")
		if !ok {
			return errors.New("write not visible in txn")
		}
		if doc.(model.Match).Version != 7 {
			return errors.New("wrong buffered value")
		}
		tx.Delete("k")
		if _, ok := tx.Get("k"); ok {
			return errors.New("delete not visible in txn")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d docs", s.Len())
	}
}

func TestMemStore_TxnBodyError(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	sentinel := errors.New("boom")

	err := s.Txn(ctx, func(tx Tx) error {
		tx.Put("k", model.Match{})
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected body error, got %v", err)
	}
	if s.Len() != 0 {
		t.Error("failed txn must not write")
	}
}

func TestMemStore_ConflictRetry(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	if err := s.Txn(ctx, func(tx Tx) error {
		tx.Put("counter-doc", model.Match{Version: 0})
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	// Two goroutines bump the same document's version concurrently. The
	// losing transaction must re-run its body against the fresh read and
	// both bumps must land.
	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Txn(ctx, func(tx Tx) error {
				doc, _ := tx.Get("counter-doc")
				m := doc.(model.Match)
				m.Version++
				tx.Put("counter-doc", m)
				return nil
			})
			if err != nil {
				t.Errorf("txn failed: %v", err)
			}
		}()
	}
	wg.Wait()

	doc, _, _ := s.Get(ctx, "counter-doc")
	if got := doc.(model.Match).Version; got != writers {
		t.Errorf("expected version %d, got %d", writers, got)
	}
}

func TestMemStore_ConflictExhaustion(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore(WithMaxTxnAttempts(1))

	if err := s.Txn(ctx, func(tx Tx) error {
		tx.Put("doc", model.Match{})
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	// Force a conflict on every attempt by committing a competing write
	// between the body's read and its commit.
	err := s.Txn(ctx, func(tx Tx) error {
		if _, ok := tx.Get("doc"); !ok {
			return errors.New("doc missing")
		}
		s.mu.Lock()
		s.docs["doc"].rev++
		s.mu.Unlock()
		tx.Put("doc", model.Match{Version: 99})
		return nil
	})
	if !errors.Is(err, ErrTxnConflict) {
		t.Fatalf("expected ErrTxnConflict, got %v", err)
	}
}

func TestMemStore_Scan(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("match/s/%d", i)
		if err := s.Txn(ctx, func(tx Tx) error {
			tx.Put(key, model.Match{Key: model.MatchKey{Scope: "s", Index: i}})
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Txn(ctx, func(tx Tx) error {
		tx.Put("other/x", model.Match{})
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	var seen []string
	if err := s.Scan(ctx, "match/s/", func(key string, _ any) bool {
		seen = append(seen, key)
		return true
	}); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 keys, got %v", seen)
	}
	for i, k := range seen {
		if want := fmt.Sprintf("match/s/%d", i); k != want {
			t.Errorf("expected %s at %d, got %s", want, i, k)
		}
	}

	// Early stop.
	count := 0
	_ = s.Scan(ctx, "match/s/", func(string, any) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("expected scan to stop after 1, got %d", count)
	}
}

func TestMemStore_Increment(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	if err := s.Increment(ctx, "standing/p1", "won", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Increment(ctx, "standing/p1", "won", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Increment(ctx, "standing/p1", "points_for", 11); err != nil {
		t.Fatal(err)
	}
	if err := s.Increment(ctx, "standing/p1", "points_for", -4); err != nil {
		t.Fatal(err)
	}

	doc, ok, err := s.Get(ctx, "standing/p1")
	if err != nil || !ok {
		t.Fatalf("expected counters, got ok=%v err=%v", ok, err)
	}
	c := doc.(Counters)
	if c["won"] != 2 || c["points_for"] != 7 {
		t.Errorf("unexpected counters: %v", c)
	}

	// Reads are clones; mutating the copy must not leak back.
	c["won"] = 100
	doc2, _, _ := s.Get(ctx, "standing/p1")
	if doc2.(Counters)["won"] != 2 {
		t.Error("counter read aliases store state")
	}
}

func TestMemStore_IncrementConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Increment(ctx, "standing/p1", "played", 1); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	doc, _, _ := s.Get(ctx, "standing/p1")
	if got := doc.(Counters)["played"]; got != n {
		t.Errorf("expected %d, got %d", n, got)
	}
}

func TestMemStore_IncrementWrongType(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	if err := s.Txn(ctx, func(tx Tx) error {
		tx.Put("standing/p1", model.Match{})
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	err := s.Increment(ctx, "standing/p1", "won", 1)
	if !errors.Is(err, ErrNotCounters) {
		t.Fatalf("expected ErrNotCounters, got %v", err)
	}
}
