// Package routes mounts the draft API on a chi router.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftbox/internal/handler"
	"github.com/debemdeboas/draftbox/internal/model"
)

const (
	APIPrefix = "/api"

	DraftsPath   = "/drafts"
	DraftPath    = "/drafts/{id}"
	SubmitPath   = "/drafts/{id}/submit"
	AutosavePath = "/drafts/{id}/autosave"
	FlushPath    = "/drafts/{id}/autosave/flush"
	EventsPath   = "/drafts/{id}/events"

	HealthPath = "/healthz"
)

// DraftURL returns the API path of one draft.
func DraftURL(id model.DraftID) string {
	return APIPrefix + DraftsPath + "/" + string(id)
}

func New(h *handler.DraftHandler, l zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(handler.RequestLogger(l))
	r.Use(handler.SecureHeaders)

	r.Get(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	r.Route(APIPrefix, func(r chi.Router) {
		r.Post(DraftsPath, h.Create)
		r.Get(DraftPath, h.Get)
		r.Put(DraftPath, h.Save)
		r.Post(SubmitPath, h.Submit)

		r.Post(AutosavePath, h.Autosave)
		r.Delete(AutosavePath, h.CancelAutosave)
		r.Post(FlushPath, h.Flush)
		r.Get(EventsPath, h.Events)
	})

	return r
}
