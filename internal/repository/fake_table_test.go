package repository

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/debemdeboas/draftbox/internal/config"
	"github.com/debemdeboas/draftbox/internal/transport"
)

var formulaPattern = regexp.MustCompile(`^\{draftId\}='((?:[^'\\]|\\.)*)'$`)

// fakeTable emulates the subset of the remote table API the repository uses.
type fakeTable struct {
	t *testing.T

	mu       sync.Mutex
	rows     map[string]map[string]any
	order    []string
	nextRow  int
	failures []int
	requests []*http.Request
	posts    int
	patches  int
}

func newFakeTable(t *testing.T) (*fakeTable, *httptest.Server) {
	f := &fakeTable{t: t, rows: map[string]map[string]any{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func newFakeTableRepository(t *testing.T) (*fakeTable, *TableRepository) {
	f, srv := newFakeTable(t)
	repo := NewTableRepository(config.RemoteTableConfig{
		Token:       "test-token",
		BaseID:      "appTest",
		Table:       "Drafts",
		Endpoint:    srv.URL,
		MaxAttempts: 3,
	}, transport.WithBaseDelay(0))
	return f, repo
}

// failWith makes the next requests answer with the given statuses, in order.
func (f *fakeTable) failWith(statuses ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, statuses...)
}

func (f *fakeTable) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTable) lastRequest() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// setField overwrites a stored field of the record holding draftID.
func (f *fakeTable) setField(draftID, field string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fields := range f.rows {
		if fields["draftId"] == draftID {
			fields[field] = value
			return
		}
	}
	f.t.Fatalf("no record for draft %s", draftID)
}

func (f *fakeTable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r)

	if r.Header.Get("Authorization") != "Bearer test-token" {
		http.Error(w, `{"error":"AUTHENTICATION_REQUIRED"}`, http.StatusUnauthorized)
		return
	}
	if r.URL.Path != "/appTest/Drafts" {
		http.Error(w, `{"error":"NOT_FOUND"}`, http.StatusNotFound)
		return
	}

	if len(f.failures) > 0 {
		status := f.failures[0]
		f.failures = f.failures[1:]
		http.Error(w, fmt.Sprintf(`{"error":"injected %d"}`, status), status)
		return
	}

	switch r.Method {
	case http.MethodGet:
		f.list(w, r)
	case http.MethodPost:
		f.create(w, r)
	case http.MethodPatch:
		f.update(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeTable) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	m := formulaPattern.FindStringSubmatch(q.Get("filterByFormula"))
	if m == nil {
		http.Error(w, `{"error":"INVALID_FILTER_BY_FORMULA"}`, http.StatusUnprocessableEntity)
		return
	}
	want := strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(m[1])

	records := []map[string]any{}
	for _, rowID := range f.order {
		fields := f.rows[rowID]
		if fields["draftId"] != want {
			continue
		}
		out := map[string]any{}
		if only := q["fields[]"]; len(only) > 0 {
			for _, name := range only {
				if v, ok := fields[name]; ok {
					out[name] = v
				}
			}
		} else {
			for k, v := range fields {
				out[k] = v
			}
		}
		records = append(records, map[string]any{"id": rowID, "fields": out})
		if q.Get("maxRecords") == "1" {
			break
		}
	}

	json.NewEncoder(w).Encode(map[string]any{"records": records})
}

func (f *fakeTable) create(w http.ResponseWriter, r *http.Request) {
	f.posts++
	var body struct {
		Records []struct {
			Fields map[string]any `json:"fields"`
		} `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"INVALID_REQUEST"}`, http.StatusUnprocessableEntity)
		return
	}

	out := []map[string]any{}
	for _, rec := range body.Records {
		f.nextRow++
		rowID := fmt.Sprintf("rec%04d", f.nextRow)
		f.rows[rowID] = rec.Fields
		f.order = append(f.order, rowID)
		out = append(out, map[string]any{"id": rowID, "fields": rec.Fields})
	}
	json.NewEncoder(w).Encode(map[string]any{"records": out})
}

func (f *fakeTable) update(w http.ResponseWriter, r *http.Request) {
	f.patches++
	var body struct {
		Records []struct {
			ID     string         `json:"id"`
			Fields map[string]any `json:"fields"`
		} `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"INVALID_REQUEST"}`, http.StatusUnprocessableEntity)
		return
	}

	for _, rec := range body.Records {
		fields, ok := f.rows[rec.ID]
		if !ok {
			http.Error(w, `{"error":"ROW_DOES_NOT_EXIST"}`, http.StatusNotFound)
			return
		}
		for k, v := range rec.Fields {
			fields[k] = v
		}
	}
	json.NewEncoder(w).Encode(map[string]any{"records": body.Records})
}
