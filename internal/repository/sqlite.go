package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/debemdeboas/draftbox/internal/db"
	"github.com/debemdeboas/draftbox/internal/model"
	"github.com/debemdeboas/draftbox/internal/util/compression"
)

type SQLiteRepository struct { // implements Repository
	db         db.DB
	compressor compression.Compressor
	now        func() time.Time
}

func NewSQLiteRepository(db db.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:         db,
		compressor: compression.ZstdCompressor{},
		now:        now,
	}
}

func (r *SQLiteRepository) CreateDraft(ctx context.Context, docType model.DocType) (*model.Draft, error) {
	draft := model.NewDraft(model.DraftID(uuid.New().String()), docType, r.now())

	blob, err := r.pack(draft.Payload)
	if err != nil {
		return nil, err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO drafts (id, doc_type, payload, progress, status, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		draft.ID, draft.DocType, blob, draft.Progress, draft.Status, draft.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error inserting draft: %w", err)
	}

	return draft, nil
}

func (r *SQLiteRepository) GetDraft(ctx context.Context, id model.DraftID) (*model.Draft, error) {
	draft := &model.Draft{ID: id}
	var blob []byte

	err := r.db.QueryRow(ctx,
		`SELECT doc_type, payload, progress, status, updated_at FROM drafts WHERE id = ?`, id,
	).Scan(&draft.DocType, &blob, &draft.Progress, &draft.Status, &draft.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning draft: %w", err)
	}

	draft.UpdatedAt = draft.UpdatedAt.UTC()
	draft.Payload = r.unpack(id, blob)
	return draft, nil
}

func (r *SQLiteRepository) SaveDraft(ctx context.Context, id model.DraftID, payload model.Payload, progress int) (model.UpdateResult, error) {
	blob, err := r.pack(payload)
	if err != nil {
		return model.UpdateResult{}, err
	}

	updatedAt := r.now()
	res, err := r.db.Exec(ctx,
		`UPDATE drafts SET payload = ?, progress = ?, updated_at = ? WHERE id = ?`,
		blob, progress, updatedAt, id,
	)
	return r.result(id, updatedAt, res, err)
}

func (r *SQLiteRepository) SubmitDraft(ctx context.Context, id model.DraftID) (model.UpdateResult, error) {
	updatedAt := r.now()
	res, err := r.db.Exec(ctx,
		`UPDATE drafts SET status = ?, updated_at = ? WHERE id = ?`,
		model.StatusSubmitted, updatedAt, id,
	)
	return r.result(id, updatedAt, res, err)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) result(id model.DraftID, updatedAt time.Time, res sql.Result, err error) (model.UpdateResult, error) {
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("error updating draft: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return model.UpdateResult{}, model.NotFound(id)
	}
	return model.UpdateResult{OK: true, UpdatedAt: updatedAt}, nil
}

func (r *SQLiteRepository) pack(p model.Payload) ([]byte, error) {
	encoded, err := encodePayload(p)
	if err != nil {
		return nil, fmt.Errorf("error encoding payload: %w", err)
	}
	compressed, err := r.compressor.Compress([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("error compressing payload: %w", err)
	}
	return compressed, nil
}

func (r *SQLiteRepository) unpack(id model.DraftID, blob []byte) model.Payload {
	if len(blob) == 0 {
		return model.Payload{}
	}
	raw, err := r.compressor.Decompress(blob)
	if err != nil {
		repoLogger.Warn().Err(err).Str("draft_id", string(id)).Msg("Undecodable stored payload, using empty payload")
		return model.Payload{}
	}
	return decodePayload(id, raw)
}
