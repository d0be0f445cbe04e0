package webclient

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ashureev/roomchat/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{
		BaseURL:       srv.URL,
		SessionCookie: "s3cret",
		Logger:        slogt.New(t),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestSearch(t *testing.T) {
	var gotQuery, gotXHR, gotCookie string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chats/ajax-search" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query().Get("search-string")
		gotXHR = r.Header.Get("X-Requested-With")
		if ck, err := r.Cookie("session"); err == nil {
			gotCookie = ck.Value
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"name":"Ann Lee","username":"ann"},{"name":"Bob","username":"bob_1"}]}`))
	}))

	users, err := c.Search(context.Background(), "an b&c")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []domain.SearchUser{{Name: "Ann Lee", Username: "ann"}, {Name: "Bob", Username: "bob_1"}}
	if diff := cmp.Diff(want, users); diff != "" {
		t.Errorf("Search() mismatch (-want +got):\n%s", diff)
	}
	if gotQuery != "an b&c" {
		t.Errorf("search-string = %q, want %q", gotQuery, "an b&c")
	}
	if gotXHR != "XMLHttpRequest" {
		t.Errorf("X-Requested-With = %q", gotXHR)
	}
	if gotCookie != "s3cret" {
		t.Errorf("session cookie = %q, want s3cret", gotCookie)
	}
}

func TestSearch_EmptyTextSendsNothing(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	users, err := c.Search(context.Background(), "")
	if err != nil || users != nil {
		t.Errorf("Search(\"\") = %v, %v; want nil, nil", users, err)
	}
	if calls.Load() != 0 {
		t.Errorf("server received %d requests, want 0", calls.Load())
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(error) bool
	}{
		{
			name: "not ajax",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "Allowed only for ajax", http.StatusNotFound)
			},
			check: func(err error) bool {
				var se *StatusError
				return errors.As(err, &se) && se.Code == http.StatusNotFound
			},
		},
		{
			name: "login redirect",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/auth/login", http.StatusFound)
			},
			check: func(err error) bool { return errors.Is(err, ErrNotAuthenticated) },
		},
		{
			name: "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"data":`))
			},
			check: func(err error) bool { return err != nil },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.Search(context.Background(), "x")
			if !tt.check(err) {
				t.Errorf("Search() error = %v", err)
			}
		})
	}
}

func TestBeginChat(t *testing.T) {
	tests := []struct {
		name     string
		username string
		handler  http.HandlerFunc
		wantErr  error
	}{
		{
			name:     "redirects to room",
			username: "ann",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/chats/begin/ann" {
					http.NotFound(w, r)
					return
				}
				http.Redirect(w, r, "/chats/going", http.StatusFound)
			},
		},
		{
			name:     "unknown user",
			username: "ghost",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			wantErr: ErrUserNotFound,
		},
		{
			name:     "login redirect",
			username: "ann",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/auth/login?next=%2Fchats%2Fbegin%2Fann", http.StatusFound)
			},
			wantErr: ErrNotAuthenticated,
		},
		{
			name:     "empty username",
			username: "",
			handler:  func(w http.ResponseWriter, r *http.Request) {},
			wantErr:  ErrUserNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			err := c.BeginChat(context.Background(), tt.username)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("BeginChat() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("BeginChat() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEndChat(t *testing.T) {
	var hit atomic.Bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chats/end" {
			hit.Store(true)
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		http.NotFound(w, r)
	}))

	if err := c.EndChat(context.Background()); err != nil {
		t.Fatalf("EndChat() error = %v", err)
	}
	if !hit.Load() {
		t.Error("EndChat did not request /chats/end")
	}
}

func TestNew_Validation(t *testing.T) {
	for _, base := range []string{"", "ftp://example.com", "://bad"} {
		if _, err := New(Options{BaseURL: base}); err == nil {
			t.Errorf("New(%q) error = nil, want error", base)
		}
	}
	c, err := New(Options{BaseURL: "https://chat.example.com/"})
	if err != nil {
		t.Fatal(err)
	}
	if c.HTTPClient().Timeout != 0 {
		t.Error("HTTP client has a timeout")
	}
	if got := c.BaseURL(); got != "https://chat.example.com" {
		t.Errorf("BaseURL() = %s", got)
	}
}

func TestRenderSearchResults(t *testing.T) {
	tests := []struct {
		name  string
		users []domain.SearchUser
		want  string
	}{
		{name: "empty", users: nil, want: "Nothing is found\n"},
		{
			name:  "users",
			users: []domain.SearchUser{{Name: "Ann Lee", Username: "ann"}, {Name: "Bob", Username: "bob 2"}},
			want: "Ann Lee (@ann)  http://chat.test/chats/begin/ann\n" +
				"Bob (@bob 2)  http://chat.test/chats/begin/bob%202\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RenderSearchResults(&buf, "http://chat.test", tt.users); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, buf.String()); diff != "" {
				t.Errorf("output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
