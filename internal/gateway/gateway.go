// Package gateway roteia /api/* para os serviços HTTP da plataforma.
package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Upstreams são as URLs base de cada serviço
type Upstreams struct {
	Odds   string
	Wallet string
	Bet    string
}

func proxy(log *zap.Logger, name, to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream %s: invalid url %q", name, to)
	}
	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream unavailable", zap.String("upstream", name), zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream unavailable"}`))
	}
	return rp, nil
}

// New monta o roteador do gateway. O prefixo /api/{serviço} é removido antes
// de repassar; o WebSocket do odds-service passa pelo mesmo proxy.
func New(log *zap.Logger, up Upstreams) (http.Handler, error) {
	odds, err := proxy(log, "odds", up.Odds)
	if err != nil {
		return nil, err
	}
	wallet, err := proxy(log, "wallet", up.Wallet)
	if err != nil {
		return nil, err
	}
	bet, err := proxy(log, "bet", up.Bet)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, withCORS)

	// odds (ex.: /api/odds/* -> odds-service)
	r.Handle("/api/odds/*", http.StripPrefix("/api/odds", odds))
	// wallet (ex.: /api/wallet/* -> wallet-service)
	r.Handle("/api/wallet/*", http.StripPrefix("/api/wallet", wallet))
	// bets (ex.: /api/bets/* -> bet-service)
	r.Handle("/api/bets/*", http.StripPrefix("/api/bets", bet))
	return r, nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
