package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// echo responde com o nome do serviço e o caminho recebido
func echo(t *testing.T, name string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, name+" "+r.Method+" "+r.URL.RequestURI())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRoutesStripPrefix(t *testing.T) {
	h, err := New(zap.NewNop(), Upstreams{
		Odds:   echo(t, "odds").URL,
		Wallet: echo(t, "wallet").URL,
		Bet:    echo(t, "bet").URL,
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/odds/v1/events?sport=basketball_nba", "odds GET /v1/events?sport=basketball_nba"},
		{http.MethodGet, "/api/wallet/wallet?userId=u1", "wallet GET /wallet?userId=u1"},
		{http.MethodPost, "/api/bets/v1/bets", "bet POST /v1/bets"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}")))
			if rec.Code != http.StatusOK || rec.Body.String() != tt.want {
				t.Errorf("got %d %q, want %q", rec.Code, rec.Body.String(), tt.want)
			}
			if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("missing CORS header")
			}
		})
	}
}

func TestPreflightAndUnknownRoute(t *testing.T) {
	h, err := New(zap.NewNop(), Upstreams{Odds: "http://odds", Wallet: "http://wallet", Bet: "http://bet"})
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/bets/v1/bets", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d", rec.Code)
	}
}

func TestUpstreamDown(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	addr := down.URL
	down.Close()

	h, err := New(zap.NewNop(), Upstreams{Odds: addr, Wallet: addr, Bet: addr})
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/odds/v1/sports", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestInvalidUpstream(t *testing.T) {
	if _, err := New(zap.NewNop(), Upstreams{Odds: "::bad", Wallet: "http://w", Bet: "http://b"}); err == nil {
		t.Fatal("New() error = nil, want invalid url")
	}
}
