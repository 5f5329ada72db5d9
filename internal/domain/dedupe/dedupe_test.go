package dedupe

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestSeenAndRecord(t *testing.T) {
	d := New()
	ctx := context.Background()

	if d.SeenAndRecord(ctx, "t1") {
		t.Error("first sighting must not be seen")
	}
	if !d.SeenAndRecord(ctx, "t1") {
		t.Error("second sighting must be seen")
	}
	if d.SeenAndRecord(ctx, "t2") {
		t.Error("different id must not be seen")
	}
	if d.Size() != 2 {
		t.Errorf("expected size 2, got %d", d.Size())
	}
}

func TestUnrecord(t *testing.T) {
	d := New()
	ctx := context.Background()

	d.SeenAndRecord(ctx, "t1")
	d.Unrecord(ctx, "t1")

	if d.SeenAndRecord(ctx, "t1") {
		t.Error("unrecorded id must be recordable again")
	}

	// Unrecording an unknown id is a no-op.
	d.Unrecord(ctx, "missing")
	if d.Size() != 1 {
		t.Errorf("expected size 1, got %d", d.Size())
	}
}

func TestEviction(t *testing.T) {
	d := New(WithMaxSize(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d.SeenAndRecord(ctx, fmt.Sprintf("t%d", i))
	}
	// Recording a fourth id evicts the oldest.
	d.SeenAndRecord(ctx, "t3")

	if d.Size() != 3 {
		t.Errorf("expected size 3, got %d", d.Size())
	}
	if d.SeenAndRecord(ctx, "t0") {
		t.Error("evicted id must not be seen")
	}
	if !d.SeenAndRecord(ctx, "t3") {
		t.Error("recent id must still be seen")
	}
}

func TestUnbounded(t *testing.T) {
	d := New(WithMaxSize(0))
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		d.SeenAndRecord(ctx, fmt.Sprintf("t%d", i))
	}
	if d.Size() != 1000 {
		t.Errorf("expected size 1000, got %d", d.Size())
	}
	if d.SeenAndRecord(ctx, "t0") != true {
		t.Error("nothing should be evicted when unbounded")
	}
}

func TestConcurrentAccess(t *testing.T) {
	d := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !d.SeenAndRecord(ctx, "same-id") {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firsts != 1 {
		t.Errorf("exactly one goroutine should record first, got %d", firsts)
	}
}
