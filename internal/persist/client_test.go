package persist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeStore serves canned answers per read path and records writes.
type fakeStore struct {
	mu      sync.Mutex
	reads   map[string]func(w http.ResponseWriter) // keyed by path+"?"+rawquery
	writeFn func(w http.ResponseWriter)
	calls   []string
	written []Payload
}

func (f *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := r.URL.Path + "?" + r.URL.RawQuery
	f.calls = append(f.calls, r.Method+" "+key)

	if r.Method == http.MethodPost {
		body, _ := io.ReadAll(r.Body)
		var p Payload
		_ = json.Unmarshal(body, &p)
		f.written = append(f.written, p)
		if f.writeFn != nil {
			f.writeFn(w)
			return
		}
		w.WriteHeader(http.StatusCreated)
		return
	}

	if fn, ok := f.reads[key]; ok {
		fn(w)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func status(code int) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) { w.WriteHeader(code) }
}

func jsonBody(body string) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("IST", 19800))
}

func newClient(t *testing.T, store *fakeStore) *Client {
	t.Helper()
	srv := httptest.NewServer(store)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, Now: fixedNow})
}

func TestExistingVLMDesc(t *testing.T) {
	tests := []struct {
		name  string
		reads map[string]func(http.ResponseWriter)
		want  string
	}{
		{
			name:  "record at detail endpoint",
			reads: map[string]func(http.ResponseWriter){"/compare-text/S1/?": jsonBody(`{"script_id":"S1","vlmdesc":{"pages":2}}`)},
			want:  `{"pages":2}`,
		},
		{
			name: "list at query endpoint matched by string id",
			reads: map[string]func(http.ResponseWriter){
				"/compare-text/?script_id=S1": jsonBody(`[{"script_id":"S0","vlmdesc":"other"},{"script_id":"S1","vlmdesc":"mine"}]`),
			},
			want: `"mine"`,
		},
		{
			name: "list at collection endpoint matched by numeric id",
			reads: map[string]func(http.ResponseWriter){
				"/compare-text/?": jsonBody(`[{"script_id":7,"vlmdesc":"seven"},{"script_id":1,"vlmdesc":"one"}]`),
			},
			want: `"seven"`,
		},
		{
			name: "paginated envelope",
			reads: map[string]func(http.ResponseWriter){
				"/compare-text/?": jsonBody(`{"count":1,"results":[{"script_id":"S1","vlmdesc":[1,2]}]}`),
			},
			want: `[1,2]`,
		},
		{
			name: "wrapped vlm_desc is unwrapped",
			reads: map[string]func(http.ResponseWriter){
				"/compare-text/S1/?": jsonBody(`{"script_id":"S1","vlmdesc":{"vlm_desc":{"vlm_desc":"text"}}}`),
			},
			want: `"text"`,
		},
		{
			name: "no match in any list is empty",
			reads: map[string]func(http.ResponseWriter){
				"/compare-text/?": jsonBody(`[{"script_id":"S9","vlmdesc":"other"}]`),
			},
			want: `{}`,
		},
		{
			name:  "null vlmdesc is empty",
			reads: map[string]func(http.ResponseWriter){"/compare-text/S1/?": jsonBody(`{"script_id":"S1","vlmdesc":null}`)},
			want:  `{}`,
		},
		{
			name: "5xx then record",
			reads: map[string]func(http.ResponseWriter){
				"/compare-text/S1/?":          status(http.StatusInternalServerError),
				"/compare-text/?script_id=S1": jsonBody(`{"script_id":"S1","vlmdesc":"ok"}`),
			},
			want: `"ok"`,
		},
		{
			name:  "all not found",
			reads: map[string]func(http.ResponseWriter){},
			want:  `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := "S1"
			if strings.Contains(tt.name, "numeric") {
				id = "7"
			}
			c := newClient(t, &fakeStore{reads: tt.reads})

			got, err := c.ExistingVLMDesc(context.Background(), id)
			if err != nil {
				t.Fatalf("ExistingVLMDesc() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("ExistingVLMDesc() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestExistingVLMDesc_StopsAtFirstMatch(t *testing.T) {
	store := &fakeStore{reads: map[string]func(http.ResponseWriter){
		"/compare-text/S1/?": jsonBody(`{"script_id":"S1","vlmdesc":"first"}`),
		"/compare-text/?":    jsonBody(`[{"script_id":"S1","vlmdesc":"later"}]`),
	}}
	c := newClient(t, store)

	if _, err := c.ExistingVLMDesc(context.Background(), "S1"); err != nil {
		t.Fatalf("ExistingVLMDesc() error = %v", err)
	}
	if len(store.calls) != 1 {
		t.Errorf("calls = %v, want only the first candidate", store.calls)
	}
}

func TestExistingVLMDesc_AllUnreachable(t *testing.T) {
	store := &fakeStore{reads: map[string]func(http.ResponseWriter){
		"/compare-text/S1/?":          status(http.StatusBadGateway),
		"/compare-text/?script_id=S1": status(http.StatusServiceUnavailable),
		"/compare-text/?":             status(http.StatusInternalServerError),
	}}
	c := newClient(t, store)

	_, err := c.ExistingVLMDesc(context.Background(), "S1")
	if !errors.Is(err, ErrReadExisting) {
		t.Fatalf("expected ErrReadExisting, got %v", err)
	}
	if len(store.calls) != 3 {
		t.Errorf("calls = %d, want 3", len(store.calls))
	}
}

func TestSave(t *testing.T) {
	t.Run("writes payload with preserved vlmdesc", func(t *testing.T) {
		store := &fakeStore{reads: map[string]func(http.ResponseWriter){
			"/compare-text/S1/?": jsonBody(`{"script_id":"S1","vlmdesc":{"vlm_desc":{"k":"v"}}}`),
		}}
		c := newClient(t, store)

		if err := c.Save(context.Background(), "S1", "body", "doc"); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if len(store.written) != 1 {
			t.Fatalf("writes = %d, want 1", len(store.written))
		}
		p := store.written[0]
		if p.ScriptID != "S1" || p.Restructured.FinalText != " " {
			t.Errorf("payload header = %+v", p)
		}
		if string(p.VLMDesc.VLMDesc) != `{"k":"v"}` {
			t.Errorf("vlm_desc = %s, want {\"k\":\"v\"}", p.VLMDesc.VLMDesc)
		}
		f := p.FinalCorrectedText
		if f.Result != "body" || f.CompleteDocument != "doc" || f.GenerationType != GenerationType {
			t.Errorf("final_corrected_text = %+v", f)
		}
		if f.Timestamp != "2026-01-01T21:34:05Z" {
			t.Errorf("timestamp = %q, want UTC RFC3339", f.Timestamp)
		}
	})

	t.Run("new script saves empty vlmdesc", func(t *testing.T) {
		store := &fakeStore{reads: map[string]func(http.ResponseWriter){}}
		c := newClient(t, store)

		if err := c.Save(context.Background(), "S1", "body", "doc"); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if got := string(store.written[0].VLMDesc.VLMDesc); got != "{}" {
			t.Errorf("vlm_desc = %s, want {}", got)
		}
	})

	t.Run("write rejected", func(t *testing.T) {
		store := &fakeStore{
			reads:   map[string]func(http.ResponseWriter){},
			writeFn: func(w http.ResponseWriter) { w.WriteHeader(http.StatusBadRequest); _, _ = w.Write([]byte("bad")) },
		}
		c := newClient(t, store)

		err := c.Save(context.Background(), "S1", "body", "doc")
		var pe *Error
		if !errors.As(err, &pe) {
			t.Fatalf("expected *Error, got %T: %v", err, err)
		}
		if pe.Op != "write" || pe.StatusCode != http.StatusBadRequest {
			t.Errorf("Error = %+v", pe)
		}
		if !strings.Contains(err.Error(), "bad") {
			t.Errorf("error %q should carry response body", err)
		}
	})

	t.Run("read failure aborts before write", func(t *testing.T) {
		store := &fakeStore{reads: map[string]func(http.ResponseWriter){
			"/compare-text/S1/?":          status(http.StatusInternalServerError),
			"/compare-text/?script_id=S1": status(http.StatusInternalServerError),
			"/compare-text/?":             status(http.StatusInternalServerError),
		}}
		c := newClient(t, store)

		err := c.Save(context.Background(), "S1", "body", "doc")
		if !errors.Is(err, ErrReadExisting) {
			t.Fatalf("expected ErrReadExisting, got %v", err)
		}
		if len(store.written) != 0 {
			t.Error("write attempted after failed read")
		}
	})
}

func TestUnwrapVLMDesc(t *testing.T) {
	tests := []struct{ in, want string }{
		{``, `{}`},
		{`null`, `{}`},
		{`{"vlm_desc": null}`, `{}`},
		{`{"vlm_desc": "x"}`, `"x"`},
		{`{"vlm_desc": "x", "other": 1}`, `{"vlm_desc": "x", "other": 1}`},
		{`"plain"`, `"plain"`},
	}
	for _, tt := range tests {
		if got := string(unwrapVLMDesc(json.RawMessage(tt.in))); got != tt.want {
			t.Errorf("unwrapVLMDesc(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
