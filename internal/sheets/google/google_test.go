package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"closeout/internal/log"
)

type fakeSheets struct {
	mu       sync.Mutex
	titles   []string
	added    []string
	cleared  []string
	updated  map[string][][]any
	failGets bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/SID"):
		if f.failGets {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error": {"code": 403, "message": "denied"}}`)
			return
		}
		var sheets []map[string]any
		for _, t := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.added = append(f.added, rq.AddSheet.Properties.Title)
				f.titles = append(f.titles, rq.AddSheet.Properties.Title)
			}
		}
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		rng := strings.TrimSuffix(path[strings.Index(path, "/values/")+len("/values/"):], ":clear")
		f.cleared = append(f.cleared, rng)
		_, _ = io.WriteString(w, `{}`)
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		if got := r.URL.Query().Get("valueInputOption"); got != "RAW" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		f.updated[rng] = vr.Values
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestPublisher(t *testing.T, fake *fakeSheets) *Publisher {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, "SID", log.Discard())
}

func TestPublishCreatesMissingSheet(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Sheet1"}, updated: map[string][][]any{}}
	p := newTestPublisher(t, fake)

	ref, err := p.Publish(context.Background(), "2025-06", [][]string{
		{"Belle Nails and Spa"},
		{"date", "debit", "tip", "total"},
		{"TOTAL", "128.50", "19.28", "147.78"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ref != "'2025-06'!A1" {
		t.Fatalf("unexpected range: %q", ref)
	}
	if len(fake.added) != 1 || fake.added[0] != "2025-06" {
		t.Fatalf("expected sheet to be added, got %v", fake.added)
	}
	if len(fake.cleared) != 1 || fake.cleared[0] != "'2025-06'" {
		t.Fatalf("expected sheet to be cleared, got %v", fake.cleared)
	}
	rows := fake.updated["'2025-06'!A1"]
	if len(rows) != 3 || rows[2][3] != "147.78" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestPublishReusesExistingSheet(t *testing.T) {
	fake := &fakeSheets{titles: []string{"2025-06"}, updated: map[string][][]any{}}
	p := newTestPublisher(t, fake)

	if _, err := p.Publish(context.Background(), "2025-06", [][]string{{"x"}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fake.added) != 0 {
		t.Fatalf("sheet should not be re-created: %v", fake.added)
	}
}

func TestPublishPropagatesAPIErrors(t *testing.T) {
	fake := &fakeSheets{failGets: true, updated: map[string][][]any{}}
	p := newTestPublisher(t, fake)

	_, err := p.Publish(context.Background(), "2025-06", nil)
	if err == nil || !strings.Contains(err.Error(), "failed to read spreadsheet SID") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Options{SpreadsheetID: "SID", Logger: log.Discard()})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}

func TestQuoteSheet(t *testing.T) {
	tests := map[string]string{
		"2025-06":                   "'2025-06'",
		"Combined 2025-05..2025-07": "'Combined 2025-05..2025-07'",
		"Bob's":                     "'Bob''s'",
	}
	for in, want := range tests {
		if got := quoteSheet(in); got != want {
			t.Errorf("quoteSheet(%q) = %q, want %q", in, got, want)
		}
	}
}
