// Package handler serves the draft lifecycle and autosave over HTTP.
package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftbox/internal/autosave"
	"github.com/debemdeboas/draftbox/internal/config"
	"github.com/debemdeboas/draftbox/internal/model"
	"github.com/debemdeboas/draftbox/internal/service"
	"github.com/debemdeboas/draftbox/internal/sse"
	"github.com/debemdeboas/draftbox/internal/util"
)

var handlerLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	handlerLogger = l
}

type DraftHandler struct {
	svc      *service.DraftService
	sessions *autosave.Registry
	clients  *sse.SSEClients
}

func NewDraftHandler(svc *service.DraftService, sessions *autosave.Registry, clients *sse.SSEClients) *DraftHandler {
	return &DraftHandler{svc: svc, sessions: sessions, clients: clients}
}

// BroadcastStatus publishes autosave status changes to the draft's subscribers.
func BroadcastStatus(clients *sse.SSEClients) autosave.Listener {
	return func(id model.DraftID, status autosave.Status) {
		clients.Broadcast(id, string(status))
	}
}

type createRequest struct {
	DocType string `json:"docType"`
}

type saveRequest struct {
	Payload  model.Payload `json:"payload"`
	Progress int           `json:"progress"`
}

type autosaveRequest struct {
	Payload model.Payload `json:"payload"`
	Step    int           `json:"step"`
}

type autosaveResponse struct {
	Status autosave.Status `json:"status"`
}

func draftID(r *http.Request) model.DraftID {
	return model.DraftID(chi.URLParam(r, "id"))
}

// session returns the autosave session of an existing draft. A session is only
// opened once the draft is known to exist.
func (h *DraftHandler) session(ctx context.Context, id model.DraftID) (*autosave.Orchestrator, error) {
	if o, ok := h.sessions.Get(id); ok {
		return o, nil
	}
	draft, err := h.svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, model.NotFound(id)
	}
	return h.sessions.Open(id), nil
}

func (h *DraftHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, config.HTTPErrInvalidBody)
		return
	}

	draft, err := h.svc.Create(r.Context(), req.DocType)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, draft)
}

// Get answers 404 with a JSON null body when the draft does not exist.
func (h *DraftHandler) Get(w http.ResponseWriter, r *http.Request) {
	draft, err := h.svc.Get(r.Context(), draftID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if draft == nil {
		writeJSON(w, http.StatusNotFound, nil)
		return
	}

	if hash, err := util.JSONHash(draft); err == nil {
		etag := `"` + hash + `"`
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set(config.HETag, etag)
	}
	w.Header().Set(config.HCacheControl, "no-cache")
	writeJSON(w, http.StatusOK, draft)
}

func (h *DraftHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, config.HTTPErrInvalidBody)
		return
	}

	res, err := h.svc.Save(r.Context(), draftID(r), req.Payload, req.Progress)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Submit finalizes the draft and ends its autosave session.
func (h *DraftHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id := draftID(r)
	res, err := h.svc.Submit(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.sessions.Close(id)
	writeJSON(w, http.StatusOK, res)
}

// Autosave records an edit; the save itself happens after the debounce window.
func (h *DraftHandler) Autosave(w http.ResponseWriter, r *http.Request) {
	var req autosaveRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, config.HTTPErrInvalidBody)
		return
	}

	session, err := h.session(r.Context(), draftID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	session.Change(req.Payload, req.Step)
	writeJSON(w, http.StatusAccepted, autosaveResponse{Status: session.Status()})
}

// Flush saves the given state at once, replacing any pending autosave.
func (h *DraftHandler) Flush(w http.ResponseWriter, r *http.Request) {
	var req autosaveRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, config.HTTPErrInvalidBody)
		return
	}

	session, err := h.session(r.Context(), draftID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	res, err := session.Flush(r.Context(), req.Payload, req.Step)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CancelAutosave drops the session without saving pending edits.
func (h *DraftHandler) CancelAutosave(w http.ResponseWriter, r *http.Request) {
	h.sessions.Close(draftID(r))
	w.WriteHeader(http.StatusNoContent)
}

// Events streams the autosave status of one draft as Server-Sent Events.
func (h *DraftHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := draftID(r)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set(config.HCType, config.CTypeEventStream)
	w.Header().Set(config.HCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	client := sse.NewClient(id)
	h.clients.Add(client)
	defer func() {
		h.clients.Delete(client)
		handlerLogger.Debug().Str("draft_id", string(id)).Msg("SSE client disconnected")
	}()

	status := autosave.StatusIdle
	if session, ok := h.sessions.Get(id); ok {
		status = session.Status()
	}
	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", status)
	flusher.Flush()
	handlerLogger.Debug().Str("draft_id", string(id)).Msg("SSE client connected")

	done := r.Context().Done()
	for {
		select {
		case msg, ok := <-client.Msg:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", msg)
			flusher.Flush()
		case <-done:
			return
		}
	}
}
