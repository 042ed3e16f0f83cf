package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/debemdeboas/draftbox/internal/cache"
	"github.com/debemdeboas/draftbox/internal/model"
)

type MemoryRepository struct { // implements Repository
	drafts *cache.Cache[model.DraftID, *model.Draft]
	now    func() time.Time
}

var sharedMemory = sync.OnceValue(NewMemoryRepository)

// SharedMemoryRepository returns the process-wide ephemeral store.
func SharedMemoryRepository() *MemoryRepository {
	return sharedMemory()
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		drafts: cache.NewCache[model.DraftID, *model.Draft](),
		now:    now,
	}
}

func (m *MemoryRepository) CreateDraft(_ context.Context, docType model.DocType) (*model.Draft, error) {
	for {
		draft := model.NewDraft(model.DraftID(uuid.New().String()), docType, m.now())
		if m.drafts.SetIfAbsent(draft.ID, draft) {
			return draft.Clone(), nil
		}
	}
}

func (m *MemoryRepository) GetDraft(_ context.Context, id model.DraftID) (*model.Draft, error) {
	if draft, ok := m.drafts.Get(id); ok {
		return draft.Clone(), nil
	}
	return nil, model.NotFound(id)
}

func (m *MemoryRepository) SaveDraft(_ context.Context, id model.DraftID, payload model.Payload, progress int) (model.UpdateResult, error) {
	snapshot, err := payload.Copy()
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("error encoding payload: %w", err)
	}
	updatedAt := m.now()

	ok := m.drafts.Update(id, func(d *model.Draft) *model.Draft {
		next := *d
		next.Payload = snapshot
		next.Progress = progress
		next.UpdatedAt = updatedAt
		return &next
	})
	if !ok {
		return model.UpdateResult{}, model.NotFound(id)
	}
	return model.UpdateResult{OK: true, UpdatedAt: updatedAt}, nil
}

func (m *MemoryRepository) SubmitDraft(_ context.Context, id model.DraftID) (model.UpdateResult, error) {
	updatedAt := m.now()

	ok := m.drafts.Update(id, func(d *model.Draft) *model.Draft {
		next := *d
		next.Status = model.StatusSubmitted
		next.UpdatedAt = updatedAt
		return &next
	})
	if !ok {
		return model.UpdateResult{}, model.NotFound(id)
	}
	return model.UpdateResult{OK: true, UpdatedAt: updatedAt}, nil
}

func (m *MemoryRepository) Len() int {
	return m.drafts.Len()
}
