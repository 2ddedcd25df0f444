package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/isrcx/internal/shared"
	"golang.org/x/oauth2"
)

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"access","refresh_token":"refresh","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://127.0.0.1:8080/auth/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: tokenURL + "/authorize", TokenURL: tokenURL + "/token"},
	}
}

func TestBasicRouter(t *testing.T) {
	t.Run("rejects wrong method", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "pong")
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Body.String() != "pong" {
			t.Errorf("expected pong, got %q", rec.Body.String())
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}
		r := NewBasicRouter()
		r.Use(mark("outer"), mark("inner"))
		r.Handle(http.MethodGet, "/", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			order = append(order, "handler")
		}))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "outer,inner,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("request logger omits query", func(t *testing.T) {
		var buf strings.Builder
		logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
		r := NewBasicRouter()
		r.Use(RequestLogger(logger))
		r.Handle(http.MethodGet, "/callback", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?code=secret", nil))

		out := buf.String()
		if !strings.Contains(out, "/callback") || !strings.Contains(out, "418") {
			t.Errorf("expected path and status in log, got %q", out)
		}
		if strings.Contains(out, "secret") {
			t.Errorf("query string leaked into log: %q", out)
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	tokens := tokenServer(t)

	t.Run("route from redirect URL", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(tokens.URL), "state")
		if routes := h.Routes(); len(routes) != 1 || routes[0] != "/auth/callback" {
			t.Errorf("unexpected routes %v", routes)
		}
	})

	t.Run("default route", func(t *testing.T) {
		cfg := testConfig(tokens.URL)
		cfg.RedirectURL = ""
		if routes := NewOAuthHandler(cfg, "state").Routes(); routes[0] != "/callback" {
			t.Errorf("unexpected routes %v", routes)
		}
	})

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantToken  bool
	}{
		{name: "state mismatch", query: "state=other&code=good-code", wantStatus: http.StatusBadRequest},
		{name: "missing code", query: "state=state&error=access_denied", wantStatus: http.StatusBadRequest},
		{name: "exchange failure", query: "state=state&code=bad-code", wantStatus: http.StatusInternalServerError},
		{name: "success", query: "state=state&code=good-code", wantStatus: http.StatusOK, wantToken: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOAuthHandler(testConfig(tokens.URL), "state").WithClient(tokens.Client())
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?"+tt.query, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			result := <-h.Result()
			if tt.wantToken {
				if result.Err != nil {
					t.Fatalf("unexpected error: %v", result.Err)
				}
				if result.Token.AccessToken != "access" || result.Token.RefreshToken != "refresh" {
					t.Errorf("unexpected token %+v", result.Token)
				}
				return
			}
			if !errors.Is(result.Err, shared.ErrAuthFailed) {
				t.Errorf("expected ErrAuthFailed, got %v", result.Err)
			}
		})
	}

	t.Run("replayed callback", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(tokens.URL), "state").WithClient(tokens.Client())
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/auth/callback?state=state&code=good-code", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state=state&code=good-code", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 on replay, got %d", rec.Code)
		}
		if result := <-h.Result(); result.Err != nil {
			t.Errorf("first result should win, got %v", result.Err)
		}
	})
}

func TestAwaitToken(t *testing.T) {
	tokens := tokenServer(t)
	logger := log.New(io.Discard)

	listen := func(t *testing.T) net.Listener {
		t.Helper()
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		return ln
	}

	t.Run("receives token", func(t *testing.T) {
		ln := listen(t)
		h := NewOAuthHandler(testConfig(tokens.URL), "state").WithClient(tokens.Client())

		go func() {
			resp, err := http.Get("http://" + ln.Addr().String() + "/auth/callback?state=state&code=good-code")
			if err == nil {
				resp.Body.Close()
			}
		}()

		token, err := AwaitToken(context.Background(), ln, h, logger, 5*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token.AccessToken != "access" {
			t.Errorf("unexpected token %+v", token)
		}
	})

	t.Run("times out", func(t *testing.T) {
		h := NewOAuthHandler(testConfig(tokens.URL), "state")
		_, err := AwaitToken(context.Background(), listen(t), h, logger, 20*time.Millisecond)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		h := NewOAuthHandler(testConfig(tokens.URL), "state")
		_, err := AwaitToken(ctx, listen(t), h, logger, time.Minute)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
