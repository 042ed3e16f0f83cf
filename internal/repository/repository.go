// Package repository stores drafts. Every backend implements Repository with
// the same semantics: unknown ids yield model.ErrDraftNotFound and save or
// submit never create a draft.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftbox/internal/model"
)

type Repository interface {
	CreateDraft(ctx context.Context, docType model.DocType) (*model.Draft, error)
	GetDraft(ctx context.Context, id model.DraftID) (*model.Draft, error)
	SaveDraft(ctx context.Context, id model.DraftID, payload model.Payload, progress int) (model.UpdateResult, error)
	SubmitDraft(ctx context.Context, id model.DraftID) (model.UpdateResult, error)
}

var repoLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

func now() time.Time {
	return time.Now().UTC()
}

func encodePayload(p model.Payload) (string, error) {
	if p == nil {
		p = model.Payload{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// decodePayload parses a stored payload. Corrupt data reads back as an empty
// payload so historical rows stay loadable.
func decodePayload(id model.DraftID, raw []byte) model.Payload {
	if len(bytes.TrimSpace(raw)) == 0 {
		return model.Payload{}
	}

	var p model.Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		repoLogger.Warn().Err(err).Str("draft_id", string(id)).Msg("Malformed stored payload, using empty payload")
		return model.Payload{}
	}
	if p == nil {
		return model.Payload{}
	}
	return p
}
