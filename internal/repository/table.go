package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/debemdeboas/draftbox/internal/config"
	"github.com/debemdeboas/draftbox/internal/model"
	"github.com/debemdeboas/draftbox/internal/transport"
)

// Field names of a draft record in the remote table.
const (
	fieldDraftID   = "draftId"
	fieldDocType   = "docType"
	fieldPayload   = "payload"
	fieldProgress  = "progress"
	fieldStatus    = "status"
	fieldUpdatedAt = "updatedAt"
)

// TableRepository keeps one record per draft in a remote tabular store
// (Airtable-style REST API). Records are found by filtering on the draftId
// field; the store's own row ids never leave this type.
type TableRepository struct { // implements Repository
	client *transport.Client
	path   string
	now    func() time.Time
}

type tableFields struct {
	DraftID   string  `json:"draftId"`
	DocType   string  `json:"docType"`
	Payload   string  `json:"payload"`
	Progress  float64 `json:"progress"`
	Status    string  `json:"status"`
	UpdatedAt string  `json:"updatedAt"`
}

type tableRecord struct {
	ID     string      `json:"id,omitempty"`
	Fields tableFields `json:"fields"`
}

type tableRecords struct {
	Records []tableRecord `json:"records"`
}

type tableUpdate struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

func NewTableRepository(cfg config.RemoteTableConfig, opts ...transport.Option) *TableRepository {
	opts = append([]transport.Option{
		transport.WithBearerToken(cfg.Token),
		transport.WithMaxAttempts(cfg.MaxAttempts),
	}, opts...)

	return &TableRepository{
		client: transport.NewClient(cfg.Endpoint, opts...),
		path:   url.PathEscape(cfg.BaseID) + "/" + url.PathEscape(cfg.Table),
		now:    now,
	}
}

func (r *TableRepository) CreateDraft(ctx context.Context, docType model.DocType) (*model.Draft, error) {
	draft := model.NewDraft(model.DraftID(uuid.New().String()), docType, r.now())

	body := map[string]any{
		"records": []map[string]any{{
			"fields": map[string]any{
				fieldDraftID:   string(draft.ID),
				fieldDocType:   string(draft.DocType),
				fieldPayload:   "{}",
				fieldProgress:  draft.Progress,
				fieldStatus:    string(draft.Status),
				fieldUpdatedAt: formatTime(draft.UpdatedAt),
			},
		}},
	}

	var created tableRecords
	if err := r.client.Do(ctx, transport.Request{Method: http.MethodPost, Path: r.path, Body: body}, &created); err != nil {
		return nil, fmt.Errorf("error creating draft record: %w", err)
	}

	repoLogger.Debug().Str("draft_id", string(draft.ID)).Str("doc_type", string(docType)).Msg("Draft record created")
	return draft, nil
}

func (r *TableRepository) GetDraft(ctx context.Context, id model.DraftID) (*model.Draft, error) {
	rec, err := r.find(ctx, id, false)
	if err != nil {
		return nil, err
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, rec.Fields.UpdatedAt)
	if err != nil {
		repoLogger.Warn().Err(err).Str("draft_id", string(id)).Msg("Unparseable updatedAt on draft record")
	}

	status := model.Status(rec.Fields.Status)
	if status != model.StatusSubmitted {
		status = model.StatusDraft
	}

	return &model.Draft{
		ID:        id,
		DocType:   model.DocType(rec.Fields.DocType),
		Payload:   decodePayload(id, []byte(rec.Fields.Payload)),
		Progress:  int(rec.Fields.Progress),
		Status:    status,
		UpdatedAt: updatedAt,
	}, nil
}

func (r *TableRepository) SaveDraft(ctx context.Context, id model.DraftID, payload model.Payload, progress int) (model.UpdateResult, error) {
	encoded, err := encodePayload(payload)
	if err != nil {
		return model.UpdateResult{}, fmt.Errorf("error encoding payload: %w", err)
	}

	updatedAt := r.now()
	return r.update(ctx, id, updatedAt, map[string]any{
		fieldPayload:   encoded,
		fieldProgress:  progress,
		fieldUpdatedAt: formatTime(updatedAt),
	})
}

func (r *TableRepository) SubmitDraft(ctx context.Context, id model.DraftID) (model.UpdateResult, error) {
	updatedAt := r.now()
	return r.update(ctx, id, updatedAt, map[string]any{
		fieldStatus:    string(model.StatusSubmitted),
		fieldUpdatedAt: formatTime(updatedAt),
	})
}

// update resolves the row id of a draft and patches the given fields on it.
func (r *TableRepository) update(ctx context.Context, id model.DraftID, updatedAt time.Time, fields map[string]any) (model.UpdateResult, error) {
	rec, err := r.find(ctx, id, true)
	if err != nil {
		return model.UpdateResult{}, err
	}

	body := map[string]any{
		"records": []tableUpdate{{ID: rec.ID, Fields: fields}},
	}
	if err := r.client.Do(ctx, transport.Request{Method: http.MethodPatch, Path: r.path, Body: body}, nil); err != nil {
		return model.UpdateResult{}, fmt.Errorf("error updating draft record: %w", err)
	}

	return model.UpdateResult{OK: true, UpdatedAt: updatedAt}, nil
}

// find returns the single record whose draftId matches. With idOnly the
// lookup asks the store for the draftId field alone.
func (r *TableRepository) find(ctx context.Context, id model.DraftID, idOnly bool) (*tableRecord, error) {
	query := url.Values{}
	query.Set("filterByFormula", DraftIDFormula(id))
	query.Set("maxRecords", "1")
	if idOnly {
		query.Add("fields[]", fieldDraftID)
	}

	var found tableRecords
	if err := r.client.Do(ctx, transport.Request{Method: http.MethodGet, Path: r.path, Query: query}, &found); err != nil {
		return nil, fmt.Errorf("error looking up draft record: %w", err)
	}
	if len(found.Records) == 0 {
		return nil, model.NotFound(id)
	}
	return &found.Records[0], nil
}

// DraftIDFormula builds the filter selecting the record of one draft.
func DraftIDFormula(id model.DraftID) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(string(id))
	return fmt.Sprintf("{%s}='%s'", fieldDraftID, escaped)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
