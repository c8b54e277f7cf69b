package oddsapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/normalizer"
)

// StatusError é retornado quando o provedor responde com status != 200
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("odds api %s: http %d: %s", e.Op, e.Code, e.Body)
}

// Client consome a API de odds (The Odds API v4 ou o provider-simulator)
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Log     *zap.Logger
}

func New(base, apiKey string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
		Log:     log,
	}
}

// Sports retorna os esportes ativos
func (c *Client) Sports(ctx context.Context) ([]normalizer.SportPayload, error) {
	body, err := c.get(ctx, "sports", "/sports/", nil)
	if err != nil {
		return nil, err
	}
	return normalizer.ParseSports(body)
}

// Odds retorna o payload bruto de odds de um esporte; o parse fica com o pipeline
func (c *Client) Odds(ctx context.Context, sport string, regions, markets []string) ([]byte, error) {
	q := url.Values{}
	q.Set("regions", strings.Join(regions, ","))
	q.Set("markets", strings.Join(markets, ","))
	q.Set("oddsFormat", "decimal")
	q.Set("dateFormat", "iso")
	return c.get(ctx, "odds:"+sport, "/sports/"+url.PathEscape(sport)+"/odds/", q)
}

// Scores retorna o snapshot de placares dos últimos daysFrom dias e o corpo bruto
func (c *Client) Scores(ctx context.Context, sport string, daysFrom int) ([]normalizer.ScoreEvent, []byte, error) {
	q := url.Values{}
	q.Set("daysFrom", strconv.Itoa(daysFrom))
	q.Set("dateFormat", "iso")
	body, err := c.get(ctx, "scores:"+sport, "/sports/"+url.PathEscape(sport)+"/scores/", q)
	if err != nil {
		return nil, nil, err
	}
	list, err := normalizer.ParseScores(body)
	if err != nil {
		return nil, body, err
	}
	return list, body, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values) ([]byte, error) {
	if q == nil {
		q = url.Values{}
	}
	if c.APIKey != "" {
		q.Set("apiKey", c.APIKey)
	}
	u := c.BaseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("odds api %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("odds api %s: %w", op, err)
	}
	defer res.Body.Close()

	c.logQuota(op, res, time.Since(start))

	body, err := io.ReadAll(io.LimitReader(res.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("odds api %s: read body: %w", op, err)
	}
	if res.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}
		return nil, &StatusError{Op: op, Code: res.StatusCode, Body: snippet}
	}
	return body, nil
}

// logQuota registra os contadores de uso enviados pelo provedor
func (c *Client) logQuota(op string, res *http.Response, took time.Duration) {
	if c.Log == nil {
		return
	}
	c.Log.Info("odds api request",
		zap.String("op", op),
		zap.Int("status", res.StatusCode),
		zap.Duration("took", took),
		zap.String("requests_remaining", res.Header.Get("x-requests-remaining")),
		zap.String("requests_used", res.Header.Get("x-requests-used")),
	)
}
