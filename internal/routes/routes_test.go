package routes

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftbox/internal/autosave"
	"github.com/debemdeboas/draftbox/internal/handler"
	"github.com/debemdeboas/draftbox/internal/model"
	"github.com/debemdeboas/draftbox/internal/repository"
	"github.com/debemdeboas/draftbox/internal/service"
	"github.com/debemdeboas/draftbox/internal/sse"
)

type testServer struct {
	*httptest.Server
	repo     *repository.MemoryRepository
	sessions *autosave.Registry
	clients  *sse.SSEClients
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := repository.NewMemoryRepository()
	svc := service.NewDraftService(repo)
	clients := sse.NewSSEClients()
	sessions := autosave.NewRegistry(svc,
		autosave.WithDebounce(20*time.Millisecond),
		autosave.WithSavedDisplay(time.Hour),
		autosave.WithStatusListener(handler.BroadcastStatus(clients)),
	)
	h := handler.NewDraftHandler(svc, sessions, clients)

	srv := httptest.NewServer(New(h, zerolog.Nop()))
	t.Cleanup(func() {
		srv.Close()
		sessions.CloseAll()
	})
	return &testServer{Server: srv, repo: repo, sessions: sessions, clients: clients}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func (s *testServer) create(t *testing.T, docType string) *model.Draft {
	t.Helper()
	resp := s.do(t, http.MethodPost, APIPrefix+DraftsPath, map[string]string{"docType": docType})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	d := decode[model.Draft](t, resp)
	return &d
}

func TestDraftLifecycle(t *testing.T) {
	s := newTestServer(t)
	d := s.create(t, "cv")

	if d.Status != model.StatusDraft || d.Progress != 0 || len(d.Payload) != 0 {
		t.Errorf("Unexpected new draft %+v", d)
	}

	resp := s.do(t, http.MethodPut, DraftURL(d.ID), map[string]any{
		"payload":  map[string]any{"name": "Ada"},
		"progress": 2,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 on save, got %d", resp.StatusCode)
	}
	if res := decode[model.UpdateResult](t, resp); !res.OK {
		t.Error("Expected ok save")
	}

	resp = s.do(t, http.MethodGet, DraftURL(d.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 on get, got %d", resp.StatusCode)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Error("Expected an ETag")
	}
	got := decode[model.Draft](t, resp)
	if got.Payload["name"] != "Ada" || got.Progress != 2 {
		t.Errorf("Unexpected stored draft %+v", got)
	}

	req, _ := http.NewRequest(http.MethodGet, s.URL+DraftURL(d.ID), nil)
	req.Header.Set("If-None-Match", etag)
	cached, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	cached.Body.Close()
	if cached.StatusCode != http.StatusNotModified {
		t.Errorf("Expected 304 for matching ETag, got %d", cached.StatusCode)
	}

	resp = s.do(t, http.MethodPost, DraftURL(d.ID)+"/submit", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 on submit, got %d", resp.StatusCode)
	}

	resp = s.do(t, http.MethodGet, DraftURL(d.ID), nil)
	if got := decode[model.Draft](t, resp); got.Status != model.StatusSubmitted {
		t.Errorf("Expected submitted, got %s", got.Status)
	}
}

func TestErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"invalid doc type", http.MethodPost, APIPrefix + DraftsPath, map[string]string{"docType": "letter"}, http.StatusBadRequest},
		{"get unknown", http.MethodGet, DraftURL("missing"), nil, http.StatusNotFound},
		{"save unknown", http.MethodPut, DraftURL("missing"), map[string]any{"payload": map[string]any{}}, http.StatusNotFound},
		{"submit unknown", http.MethodPost, DraftURL("missing") + "/submit", nil, http.StatusNotFound},
		{"flush unknown", http.MethodPost, DraftURL("missing") + "/autosave/flush", map[string]any{"payload": map[string]any{}}, http.StatusNotFound},
		{"wrong method", http.MethodPatch, DraftURL("missing"), nil, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(s.URL+APIPrefix+DraftsPath, "application/json", strings.NewReader("{"))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("unknown draft body is null", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, DraftURL("missing"), nil)
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		if strings.TrimSpace(buf.String()) != "null" {
			t.Errorf("Expected null body, got %q", buf.String())
		}
	})
}

func TestSecureHeaders(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, HealthPath, nil)
	if resp.Header.Get("X-Frame-Options") != "deny" {
		t.Error("Expected X-Frame-Options header")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("Expected X-Content-Type-Options header")
	}
}

func TestAutosave(t *testing.T) {
	s := newTestServer(t)
	d := s.create(t, "resume")

	for i := 1; i <= 3; i++ {
		resp := s.do(t, http.MethodPost, DraftURL(d.ID)+"/autosave", map[string]any{
			"payload": map[string]any{"edit": i},
			"step":    1,
		})
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("Expected 202, got %d", resp.StatusCode)
		}
		if got := decode[map[string]string](t, resp); got["status"] != string(autosave.StatusSyncing) {
			t.Errorf("Expected syncing, got %q", got["status"])
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := s.repo.GetDraft(context.Background(), d.ID)
		if err != nil {
			t.Fatal(err)
		}
		if stored.Payload["edit"] == float64(3) {
			if stored.Progress != 1 {
				t.Errorf("Expected progress 1, got %d", stored.Progress)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Autosave never landed, stored %+v", stored.Payload)
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Run("flush saves immediately", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, DraftURL(d.ID)+"/autosave/flush", map[string]any{
			"payload": map[string]any{"edit": "flushed"},
			"step":    2,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}
		stored, _ := s.repo.GetDraft(context.Background(), d.ID)
		if stored.Payload["edit"] != "flushed" || stored.Progress != 2 {
			t.Errorf("Expected flushed state, got %+v", stored)
		}
	})

	t.Run("cancel drops pending edit", func(t *testing.T) {
		s.do(t, http.MethodPost, DraftURL(d.ID)+"/autosave", map[string]any{
			"payload": map[string]any{"edit": "dropped"},
		})
		resp := s.do(t, http.MethodDelete, DraftURL(d.ID)+"/autosave", nil)
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("Expected 204, got %d", resp.StatusCode)
		}
		time.Sleep(100 * time.Millisecond)
		stored, _ := s.repo.GetDraft(context.Background(), d.ID)
		if stored.Payload["edit"] != "flushed" {
			t.Errorf("Expected cancelled edit not to be saved, got %v", stored.Payload["edit"])
		}
	})
}

func TestEvents(t *testing.T) {
	s := newTestServer(t)
	d := s.create(t, "cv")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+DraftURL(d.ID)+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected event stream, got %q", ct)
	}

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	expect := func(want string) {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("Stream closed before %q", want)
				}
				if line == want {
					return
				}
			case <-timeout:
				t.Fatalf("Timed out waiting for %q", want)
			}
		}
	}

	expect("data: idle")

	s.do(t, http.MethodPost, DraftURL(d.ID)+"/autosave", map[string]any{"payload": map[string]any{"a": 1}})
	expect("data: syncing")
	expect("data: saved")
}

func TestAutosaveSessions(t *testing.T) {
	t.Run("unknown draft opens no session", func(t *testing.T) {
		s := newTestServer(t)
		for i := 0; i < 5; i++ {
			id := model.DraftID("missing-" + string(rune('a'+i)))
			resp := s.do(t, http.MethodPost, DraftURL(id)+"/autosave", map[string]any{"payload": map[string]any{}})
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("Expected 404 for autosave, got %d", resp.StatusCode)
			}
			resp = s.do(t, http.MethodPost, DraftURL(id)+"/autosave/flush", map[string]any{"payload": map[string]any{}})
			if resp.StatusCode != http.StatusNotFound {
				t.Errorf("Expected 404 for flush, got %d", resp.StatusCode)
			}
		}
		if n := s.sessions.Len(); n != 0 {
			t.Errorf("Expected no sessions for unknown drafts, got %d", n)
		}
	})

	t.Run("submit closes the session", func(t *testing.T) {
		s := newTestServer(t)
		d := s.create(t, "cv")

		s.do(t, http.MethodPost, DraftURL(d.ID)+"/autosave/flush", map[string]any{"payload": map[string]any{"a": 1}})
		if _, ok := s.sessions.Get(d.ID); !ok {
			t.Fatal("Expected a session after flush")
		}

		resp := s.do(t, http.MethodPost, DraftURL(d.ID)+"/submit", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200 on submit, got %d", resp.StatusCode)
		}
		if _, ok := s.sessions.Get(d.ID); ok {
			t.Error("Expected submit to close the session")
		}
	})
}
