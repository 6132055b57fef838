package backend_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/writestack/noteflow/internal/backend"
	"github.com/writestack/noteflow/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testCookie = "session=abc123"

func newTestClient(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return backend.NewClient(srv.URL, testCookie, discardLogger())
}

// ---- FetchContent ----

func TestFetchContent_DecodesEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/extension/schedule/sch-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Cookie"); got != testCookie {
			t.Errorf("cookie = %q, want %q", got, testCookie)
		}
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {
				"jsonBody": {"type":"doc"},
				"htmlBody": "<p>hi</p>",
				"attachmentUrls": ["https://cdn.test/a.png"]
			}
		}`))
	})

	content := c.FetchContent(context.Background(), "sch-1")
	if content == nil {
		t.Fatal("got nil content")
	}
	if content.BodyHTML != "<p>hi</p>" {
		t.Errorf("html = %q", content.BodyHTML)
	}
	if len(content.AttachmentURLs) != 1 {
		t.Errorf("attachment urls = %v", content.AttachmentURLs)
	}
	if content.Empty() {
		t.Error("content with a body reported Empty")
	}
}

func TestFetchContent_BackendRejection_YieldsNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "error": "schedule expired"}`))
	})

	if content := c.FetchContent(context.Background(), "sch-1"); content != nil {
		t.Errorf("got %+v, want nil on a rejected fetch", content)
	}
}

func TestFetchContent_ServerError_YieldsNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if content := c.FetchContent(context.Background(), "sch-1"); content != nil {
		t.Errorf("got %+v, want nil on a 5xx", content)
	}
}

// ---- CanPost ----

func TestCanPost(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"allowed", `{"success": true, "data": {"canPost": true}}`, true},
		{"denied", `{"success": true, "data": {"canPost": false}}`, false},
		{"rejected envelope", `{"success": false, "error": "no subscription"}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})
			if got := c.CanPost(context.Background(), "sch-1"); got != tc.want {
				t.Errorf("CanPost = %v, want %v", got, tc.want)
			}
		})
	}
}

// ---- ReportOutcome ----

func TestReportOutcome_Success_OmitsErrorFields(t *testing.T) {
	var received map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/extension/schedule/sch-1/triggered" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"success": true}`))
	})

	noteID := "sn-1"
	s := &domain.Schedule{ScheduleID: "sch-1", SubstackNoteID: &noteID}
	c.ReportOutcome(context.Background(), s, true, "", "")

	if received["ok"] != true {
		t.Errorf("ok = %v", received["ok"])
	}
	if received["substackNoteId"] != "sn-1" {
		t.Errorf("substackNoteId = %v", received["substackNoteId"])
	}
	if _, present := received["error"]; present {
		t.Error("success report carries an error field")
	}
}

func TestReportOutcome_Failure_CarriesCodeAndText(t *testing.T) {
	var received map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"success": true}`))
	})

	s := &domain.Schedule{ScheduleID: "sch-1"}
	c.ReportOutcome(context.Background(), s, false, domain.CodeEmptyBody, "the body of the note is empty")

	if received["error"] != domain.CodeEmptyBody {
		t.Errorf("error = %v, want %s", received["error"], domain.CodeEmptyBody)
	}
	if received["text"] != "the body of the note is empty" {
		t.Errorf("text = %v", received["text"])
	}
}

func TestReportOutcome_BackendDown_DoesNotPanic(t *testing.T) {
	c := backend.NewClient("http://127.0.0.1:1", testCookie, discardLogger())
	// Must swallow the transport failure: reporting is best effort.
	c.ReportOutcome(context.Background(), &domain.Schedule{ScheduleID: "sch-1"}, true, "", "")
}

// ---- FetchNotes ----

func TestFetchNotes_EmptyIDs_SkipsTheCall(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		called = true
		_, _ = w.Write([]byte(`{"success": true, "data": []}`))
	})

	notes, err := c.FetchNotes(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("notes = %v", notes)
	}
	if called {
		t.Error("made an HTTP call for an empty ID list")
	}
}

func TestFetchNotes_DecodesRecords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ScheduleIDs []string `json:"scheduleIds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.ScheduleIDs) != 2 {
			t.Errorf("scheduleIds = %v", body.ScheduleIDs)
		}
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": [
				{"id": "n-1", "scheduleId": "sch-1", "body": "hello", "status": "scheduled"}
			]
		}`))
	})

	notes, err := c.FetchNotes(context.Background(), []string{"sch-1", "sch-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notes) != 1 || notes[0].ScheduleID != "sch-1" {
		t.Errorf("notes = %+v", notes)
	}
}

func TestFetchNotes_BackendRejection_IsAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "error": "session expired"}`))
	})

	if _, err := c.FetchNotes(context.Background(), []string{"sch-1"}); err == nil {
		t.Fatal("want an error on a rejected envelope")
	}
}
