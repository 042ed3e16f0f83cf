package autosave

import (
	"context"
	"testing"
	"time"

	"github.com/debemdeboas/draftbox/internal/model"
)

func TestRegistry(t *testing.T) {
	t.Run("open reuses session", func(t *testing.T) {
		r := NewRegistry(newRecordingSaver())
		defer r.CloseAll()

		a := r.Open("d-1")
		b := r.Open("d-1")
		if a != b {
			t.Error("expected the same orchestrator for the same draft")
		}
		if r.Open("d-2") == a {
			t.Error("expected distinct orchestrators per draft")
		}
		if r.Len() != 2 {
			t.Errorf("expected 2 sessions, got %d", r.Len())
		}
	})

	t.Run("opened sessions accept edits", func(t *testing.T) {
		saver := newRecordingSaver()
		r := NewRegistry(saver, WithDebounce(testDebounce))
		defer r.CloseAll()

		r.Open("d-1").Change(model.Payload{"a": "b"}, 0)
		saver.wait(t)
	})

	t.Run("close cancels and forgets", func(t *testing.T) {
		saver := newRecordingSaver()
		r := NewRegistry(saver, WithDebounce(testDebounce))

		r.Open("d-1").Change(model.Payload{"a": "b"}, 0)
		if !r.Close("d-1") {
			t.Fatal("expected close to find the session")
		}
		if r.Close("d-1") {
			t.Error("expected second close to report no session")
		}
		if _, ok := r.Get("d-1"); ok {
			t.Error("expected session to be removed")
		}
		time.Sleep(settle)
		if n := len(saver.snapshot()); n != 0 {
			t.Errorf("expected no save after close, got %d", n)
		}
	})

	t.Run("evict idle keeps busy sessions", func(t *testing.T) {
		r := NewRegistry(newRecordingSaver(), WithDebounce(time.Hour))
		defer r.CloseAll()

		r.Open("idle")
		busy := r.Open("busy")
		busy.Change(model.Payload{"a": "b"}, 0)
		time.Sleep(5 * time.Millisecond)

		if n := r.EvictIdle(0); n != 1 {
			t.Errorf("Expected 1 eviction, got %d", n)
		}
		if _, ok := r.Get("idle"); ok {
			t.Error("Expected idle session to be evicted")
		}
		if _, ok := r.Get("busy"); !ok {
			t.Error("Expected session with a pending save to survive")
		}
		if n := r.EvictIdle(time.Hour); n != 0 {
			t.Errorf("Expected no eviction within the idle window, got %d", n)
		}
	})

	t.Run("run evicts until cancelled", func(t *testing.T) {
		r := NewRegistry(newRecordingSaver())
		defer r.CloseAll()
		r.Open("d-1")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			r.Run(ctx, 5*time.Millisecond, 0)
			close(done)
		}()

		deadline := time.Now().Add(time.Second)
		for r.Len() != 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		cancel()
		<-done

		if r.Len() != 0 {
			t.Errorf("Expected session to be evicted, %d left", r.Len())
		}
	})

	t.Run("status listener receives draft id", func(t *testing.T) {
		got := make(chan model.DraftID, 4)
		r := NewRegistry(newRecordingSaver(), WithDebounce(time.Hour), WithStatusListener(func(id model.DraftID, _ Status) {
			got <- id
		}))
		defer r.CloseAll()

		r.Open("d-7").Change(model.Payload{}, 0)
		select {
		case id := <-got:
			if id != "d-7" {
				t.Errorf("expected d-7, got %s", id)
			}
		case <-time.After(time.Second):
			t.Fatal("listener not called")
		}
	})
}
