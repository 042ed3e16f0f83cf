// Package autosave turns a stream of form edits into debounced save calls and
// tracks a status signal for the UI.
//
// Status moves idle -> syncing -> saved | error. saved falls back to idle
// after a display window; error stays until the next save attempt.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftbox/internal/model"
)

const (
	DefaultDebounce     = 600 * time.Millisecond
	DefaultSavedDisplay = 1200 * time.Millisecond
)

var ErrClosed = errors.New("autosave: orchestrator closed")

var autosaveLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	autosaveLogger = l
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusSaved   Status = "saved"
	StatusError   Status = "error"
)

type Saver interface {
	Save(ctx context.Context, id model.DraftID, payload model.Payload, progress int) (model.UpdateResult, error)
}

type SaverFunc func(ctx context.Context, id model.DraftID, payload model.Payload, progress int) (model.UpdateResult, error)

func (f SaverFunc) Save(ctx context.Context, id model.DraftID, payload model.Payload, progress int) (model.UpdateResult, error) {
	return f(ctx, id, payload, progress)
}

// Listener observes status changes. Listeners run while the orchestrator is
// locked and must not call back into it.
type Listener func(id model.DraftID, status Status)

type Option func(*Orchestrator)

func WithDebounce(d time.Duration) Option {
	return func(o *Orchestrator) { o.debounce = d }
}

func WithSavedDisplay(d time.Duration) Option {
	return func(o *Orchestrator) { o.savedDisplay = d }
}

// WithLogger replaces the package logger for this orchestrator.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithStatusListener(l Listener) Option {
	return func(o *Orchestrator) { o.listeners = append(o.listeners, l) }
}

type Orchestrator struct {
	saver        Saver
	id           model.DraftID
	debounce     time.Duration
	savedDisplay time.Duration
	listeners    []Listener
	logger       zerolog.Logger

	mu         sync.Mutex
	status     Status
	lastActive time.Time
	loaded     bool
	closed     bool
	gen        uint64 // a timer callback acts only while its generation is current
	seq        uint64
	pending    *time.Timer
	revert     *time.Timer

	// saveMu serializes saves; persisted is the newest snapshot written.
	saveMu    sync.Mutex
	persisted uint64
	last      model.UpdateResult
}

func New(saver Saver, id model.DraftID, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		saver:        saver,
		id:           id,
		debounce:     DefaultDebounce,
		savedDisplay: DefaultSavedDisplay,
		status:       StatusIdle,
		logger:       autosaveLogger,
		lastActive:   time.Now(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) ID() model.DraftID {
	return o.id
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// MarkLoaded signals that the stored draft has been loaded into the form.
// Edits observed before this are defaults, not user input, and are ignored.
func (o *Orchestrator) MarkLoaded() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loaded = true
}

// Change records an edit. The full form state is saved once no further edit
// arrives within the debounce window; a newer edit replaces a pending one.
func (o *Orchestrator) Change(payload model.Payload, step int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.loaded || o.closed {
		return
	}

	gen, seq := o.supersedeLocked()
	snapshot, err := payload.Copy()
	if err != nil {
		o.logger.Warn().Err(err).Str("draft_id", string(o.id)).Msg("Unserializable edit not saved")
		o.setStatusLocked(StatusError)
		return
	}
	o.setStatusLocked(StatusSyncing)

	o.pending = time.AfterFunc(o.debounce, func() {
		o.fire(gen, seq, snapshot, step)
	})
}

// Flush saves immediately, bypassing the debounce, and cancels any pending
// save. It is meant for step navigation and submission, which must not lose
// edits still inside the debounce window.
func (o *Orchestrator) Flush(ctx context.Context, payload model.Payload, step int) (model.UpdateResult, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return model.UpdateResult{}, ErrClosed
	}
	gen, seq := o.supersedeLocked()
	snapshot, err := payload.Copy()
	if err != nil {
		o.setStatusLocked(StatusError)
		o.mu.Unlock()
		return model.UpdateResult{}, fmt.Errorf("error encoding payload: %w", err)
	}
	o.setStatusLocked(StatusSyncing)
	o.mu.Unlock()

	res, err := o.persist(ctx, seq, snapshot, step)
	o.settle(gen, err)
	return res, err
}

// Close cancels pending timers without saving. Later edits are ignored.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	o.supersedeLocked()
}

func (o *Orchestrator) fire(gen, seq uint64, snapshot model.Payload, step int) {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return
	}
	o.pending = nil
	o.mu.Unlock()

	// In-flight saves are not cancelled by later edits or Close.
	_, err := o.persist(context.Background(), seq, snapshot, step)
	o.settle(gen, err)
}

// persist writes one snapshot. Saves are serialized and a snapshot older than
// one already written is dropped, so a slow save cannot overwrite newer data.
func (o *Orchestrator) persist(ctx context.Context, seq uint64, snapshot model.Payload, step int) (model.UpdateResult, error) {
	o.saveMu.Lock()
	defer o.saveMu.Unlock()

	if seq < o.persisted {
		o.logger.Debug().Str("draft_id", string(o.id)).Uint64("seq", seq).Msg("Dropping superseded snapshot")
		return o.last, nil
	}

	res, err := o.saver.Save(ctx, o.id, snapshot, step)
	if err != nil {
		o.logger.Warn().Err(err).Str("draft_id", string(o.id)).Msg("Autosave failed")
		return model.UpdateResult{}, err
	}

	o.persisted = seq
	o.last = res
	return res, nil
}

// settle publishes the outcome of a save unless a newer edit took over.
func (o *Orchestrator) settle(gen uint64, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.gen {
		return
	}
	if err != nil {
		o.setStatusLocked(StatusError)
		return
	}

	o.setStatusLocked(StatusSaved)
	o.revert = time.AfterFunc(o.savedDisplay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if gen == o.gen && o.status == StatusSaved {
			o.setStatusLocked(StatusIdle)
		}
	})
}

// closeIfIdle closes the orchestrator when nothing is pending or in flight
// and it has seen no activity since cutoff. It reports whether it closed.
func (o *Orchestrator) closeIfIdle(cutoff time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return true
	}
	if o.pending != nil || o.status == StatusSyncing || o.lastActive.After(cutoff) {
		return false
	}
	o.closed = true
	o.supersedeLocked()
	return true
}

// supersedeLocked cancels pending timers and starts a new generation.
func (o *Orchestrator) supersedeLocked() (gen, seq uint64) {
	o.lastActive = time.Now()
	if o.pending != nil {
		o.pending.Stop()
		o.pending = nil
	}
	if o.revert != nil {
		o.revert.Stop()
		o.revert = nil
	}
	o.gen++
	o.seq++
	return o.gen, o.seq
}

func (o *Orchestrator) setStatusLocked(s Status) {
	if o.status == s {
		return
	}
	o.status = s
	for _, l := range o.listeners {
		l(o.id, s)
	}
}
