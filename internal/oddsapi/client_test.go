package oddsapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestScoresRequestAndDecode(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Header().Set("x-requests-remaining", "499")
		_, _ = w.Write([]byte(`[{"id":"ev1","completed":true,"scores":[{"name":"A","score":"2"},{"name":"B","score":"1"}]}]`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "secret", time.Second, zap.NewNop())
	list, raw, err := c.Scores(context.Background(), "soccer_epl", 3)
	if err != nil {
		t.Fatalf("Scores() error = %v", err)
	}
	if gotPath != "/sports/soccer_epl/scores/" {
		t.Errorf("path = %q", gotPath)
	}
	for _, want := range []string{"daysFrom=3", "dateFormat=iso", "apiKey=secret"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
	if len(list) != 1 || list[0].ID != "ev1" || !list[0].Completed {
		t.Errorf("Scores() = %+v", list)
	}
	if len(raw) == 0 {
		t.Error("raw body not returned")
	}
}

func TestOddsQuery(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, nil)
	if _, err := c.Odds(context.Background(), "basketball_nba", []string{"us", "uk"}, []string{"h2h", "totals"}); err != nil {
		t.Fatalf("Odds() error = %v", err)
	}
	for _, want := range []string{"regions=us%2Cuk", "markets=h2h%2Ctotals", "oddsFormat=decimal"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
	if strings.Contains(gotQuery, "apiKey") {
		t.Errorf("query %q carries an empty apiKey", gotQuery)
	}
}

func TestNon200IsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "k", time.Second, zap.NewNop())
	_, err := c.Sports(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Sports() error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusTooManyRequests || !strings.Contains(se.Body, "quota") {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "", 50*time.Millisecond, nil)
	if _, _, err := c.Scores(context.Background(), "x", 1); err == nil {
		t.Fatal("Scores() returned no error after client timeout")
	}
}

func TestInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, nil)
	if _, raw, err := c.Scores(context.Background(), "x", 1); err == nil || len(raw) == 0 {
		t.Fatalf("Scores() = raw %q, err %v; want decode error with raw body", raw, err)
	}
}
