package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestProvider(t *testing.T, verified bool) (*GoogleProvider, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		body := `{"id":"g-42","email":"gail@x.com","verified_email":true,"name":"Gail"}`
		if !verified {
			body = strings.Replace(body, "true", "false", 1)
		}
		_, _ = w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewGoogleProvider("client", "secret", "https://hotel.test/auth/google/callback")
	p.config.Endpoint.TokenURL = srv.URL + "/token"
	p.userInfoURL = srv.URL + "/userinfo"
	return p, srv
}

func TestGoogleProvider_Exchange(t *testing.T) {
	p, _ := newTestProvider(t, true)

	id, err := p.Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange returned error: %v", err)
	}
	if id.Provider != ProviderGoogle || id.ProviderID != "g-42" || id.Email != "gail@x.com" || id.DisplayName != "Gail" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestGoogleProvider_ExchangeRejectsUnverifiedEmail(t *testing.T) {
	p, _ := newTestProvider(t, false)

	if _, err := p.Exchange(context.Background(), "good-code"); !errors.Is(err, ErrUnverifiedEmail) {
		t.Fatalf("expected ErrUnverifiedEmail, got %v", err)
	}
}

func TestGoogleProvider_ExchangeBadCode(t *testing.T) {
	p, _ := newTestProvider(t, true)

	if _, err := p.Exchange(context.Background(), "bad-code"); err == nil {
		t.Fatalf("expected error for rejected code")
	}
}

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	p := NewGoogleProvider("client", "secret", "https://hotel.test/cb")

	u, err := url.Parse(p.AuthCodeURL("state-1"))
	if err != nil {
		t.Fatalf("bad url: %v", err)
	}
	q := u.Query()
	if q.Get("state") != "state-1" || q.Get("client_id") != "client" || q.Get("redirect_uri") != "https://hotel.test/cb" {
		t.Fatalf("unexpected auth url params: %v", q)
	}
}
