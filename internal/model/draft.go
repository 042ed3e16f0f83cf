// Package model defines the draft entity and the values exchanged with its storage backends.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrDraftNotFound  = errors.New("draft not found")
	ErrInvalidDocType = errors.New("invalid document type")
)

type DraftID string

type DocType string

const (
	DocTypeCV     DocType = "cv"
	DocTypeResume DocType = "resume"
)

// DocTypes lists the closed set of document kinds a draft may be created for.
var DocTypes = []DocType{DocTypeCV, DocTypeResume}

func (d DocType) Valid() bool {
	switch d {
	case DocTypeCV, DocTypeResume:
		return true
	}
	return false
}

func ParseDocType(s string) (DocType, error) {
	d := DocType(s)
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDocType, s)
	}
	return d, nil
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
)

// Payload is the in-progress form state. Values must be JSON-serializable.
type Payload map[string]any

// Copy returns a deep copy of p, or an error when p cannot be serialized.
// A nil payload copies to an empty one.
func (p Payload) Copy() (Payload, error) {
	out := Payload{}
	if len(p) == 0 {
		return out, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Clone is Copy for payloads already known to serialize, such as stored ones.
// An unserializable payload clones to an empty one.
func (p Payload) Clone() Payload {
	out, err := p.Copy()
	if err != nil {
		return Payload{}
	}
	return out
}

type Draft struct {
	ID        DraftID   `json:"draftId"`
	DocType   DocType   `json:"docType"`
	Payload   Payload   `json:"payload"`
	Progress  int       `json:"progress"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewDraft builds a fresh draft: empty payload, no completed steps, status draft.
func NewDraft(id DraftID, docType DocType, now time.Time) *Draft {
	return &Draft{
		ID:        id,
		DocType:   docType,
		Payload:   Payload{},
		Progress:  0,
		Status:    StatusDraft,
		UpdatedAt: now,
	}
}

func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	c := *d
	c.Payload = d.Payload.Clone()
	return &c
}

// UpdateResult acknowledges a save or submit.
type UpdateResult struct {
	OK        bool      `json:"ok"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NotFound wraps ErrDraftNotFound with the id that was looked up.
func NotFound(id DraftID) error {
	return fmt.Errorf("%w: %s", ErrDraftNotFound, id)
}
