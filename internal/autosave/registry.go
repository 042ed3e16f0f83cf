package autosave

import (
	"context"
	"time"

	"github.com/debemdeboas/draftbox/internal/cache"
	"github.com/debemdeboas/draftbox/internal/model"
)

// Registry keeps one orchestrator per open draft.
type Registry struct {
	saver    Saver
	opts     []Option
	sessions *cache.Cache[model.DraftID, *Orchestrator]
}

func NewRegistry(saver Saver, opts ...Option) *Registry {
	return &Registry{
		saver:    saver,
		opts:     opts,
		sessions: cache.NewCache[model.DraftID, *Orchestrator](),
	}
}

// Open returns the session for id, creating it when needed. Sessions opened
// here are already marked loaded: remote callers only send edits after they
// have fetched the draft.
func (r *Registry) Open(id model.DraftID) *Orchestrator {
	return r.sessions.GetOrCreate(id, func() *Orchestrator {
		o := New(r.saver, id, r.opts...)
		o.MarkLoaded()
		autosaveLogger.Debug().Str("draft_id", string(id)).Msg("Opened autosave session")
		return o
	})
}

func (r *Registry) Get(id model.DraftID) (*Orchestrator, bool) {
	return r.sessions.Get(id)
}

// Close cancels the session for id without saving and forgets it. It reports
// whether a session existed.
func (r *Registry) Close(id model.DraftID) bool {
	o, ok := r.sessions.Get(id)
	if !ok {
		return false
	}
	o.Close()
	r.sessions.Delete(id)
	autosaveLogger.Debug().Str("draft_id", string(id)).Msg("Closed autosave session")
	return true
}

// EvictIdle closes and forgets sessions with no pending or in-flight save and
// no activity for maxIdle. It returns how many were evicted.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	n := 0
	for _, id := range r.sessions.Keys() {
		if r.sessions.DeleteIf(id, func(o *Orchestrator) bool { return o.closeIfIdle(cutoff) }) {
			n++
		}
	}
	if n > 0 {
		autosaveLogger.Debug().Int("evicted", n).Int("open", r.sessions.Len()).Msg("Evicted idle autosave sessions")
	}
	return n
}

// Run evicts idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle(maxIdle)
		}
	}
}

func (r *Registry) CloseAll() {
	r.sessions.Range(func(_ model.DraftID, o *Orchestrator) {
		o.Close()
	})
	r.sessions.Clear()
}

func (r *Registry) Len() int {
	return r.sessions.Len()
}
