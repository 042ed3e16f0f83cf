// Package service exposes the four draft lifecycle operations on top of
// whichever storage backend was selected at startup.
package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftbox/internal/model"
	"github.com/debemdeboas/draftbox/internal/repository"
)

var serviceLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	serviceLogger = l
}

type DraftService struct {
	repo repository.Repository
}

// Backend calls, including retries and backoff waits, run to completion once
// started; a disconnecting caller does not abort them. Request timeouts in the
// transport still bound them.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func NewDraftService(repo repository.Repository) *DraftService {
	return &DraftService{repo: repo}
}

// Create starts a new draft of the given document kind.
func (s *DraftService) Create(ctx context.Context, docType string) (*model.Draft, error) {
	dt, err := model.ParseDocType(docType)
	if err != nil {
		return nil, err
	}

	draft, err := s.repo.CreateDraft(detach(ctx), dt)
	if err != nil {
		serviceLogger.Error().Err(err).Str("doc_type", docType).Msg("Error creating draft")
		return nil, err
	}

	serviceLogger.Debug().Str("draft_id", string(draft.ID)).Str("doc_type", docType).Msg("Draft created")
	return draft, nil
}

// Get returns the draft, or nil without an error when it does not exist.
func (s *DraftService) Get(ctx context.Context, id model.DraftID) (*model.Draft, error) {
	draft, err := s.repo.GetDraft(detach(ctx), id)
	if errors.Is(err, model.ErrDraftNotFound) {
		return nil, nil
	}
	if err != nil {
		serviceLogger.Error().Err(err).Str("draft_id", string(id)).Msg("Error reading draft")
		return nil, err
	}
	return draft, nil
}

// Save replaces the payload and progress of an existing draft.
func (s *DraftService) Save(ctx context.Context, id model.DraftID, payload model.Payload, progress int) (model.UpdateResult, error) {
	if payload == nil {
		payload = model.Payload{}
	}

	res, err := s.repo.SaveDraft(detach(ctx), id, payload, progress)
	if err != nil {
		serviceLogger.Error().Err(err).Str("draft_id", string(id)).Msg("Error saving draft")
		return model.UpdateResult{}, err
	}

	serviceLogger.Debug().Str("draft_id", string(id)).Int("progress", progress).Msg("Draft saved")
	return res, nil
}

// Submit finalizes a draft. Submitting twice is allowed.
func (s *DraftService) Submit(ctx context.Context, id model.DraftID) (model.UpdateResult, error) {
	res, err := s.repo.SubmitDraft(detach(ctx), id)
	if err != nil {
		serviceLogger.Error().Err(err).Str("draft_id", string(id)).Msg("Error submitting draft")
		return model.UpdateResult{}, err
	}

	serviceLogger.Info().Str("draft_id", string(id)).Msg("Draft submitted")
	return res, nil
}
