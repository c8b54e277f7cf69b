package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMalformedInput marca uma linha do payload que foi descartada
var ErrMalformedInput = errors.New("malformed input")

// Contrato de resposta do provedor de odds

type SportPayload struct {
	Key    string `json:"key"`
	Group  string `json:"group"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

type EventPayload struct {
	ID           string             `json:"id"`
	SportKey     string             `json:"sport_key"`
	CommenceTime string             `json:"commence_time"`
	HomeTeam     string             `json:"home_team"`
	AwayTeam     string             `json:"away_team"`
	Bookmakers   []BookmakerPayload `json:"bookmakers,omitempty"`
}

type BookmakerPayload struct {
	Key     string          `json:"key"`
	Title   string          `json:"title"`
	Markets []MarketPayload `json:"markets"`
}

type MarketPayload struct {
	Key      string           `json:"key"`
	Outcomes []OutcomePayload `json:"outcomes"`
}

// Price e Point chegam como número ou string numérica dependendo do feed
type OutcomePayload struct {
	Name  string          `json:"name"`
	Price json.RawMessage `json:"price"`
	Point json.RawMessage `json:"point,omitempty"`
}

// Registros canônicos

type Event struct {
	ID           string
	SportKey     string
	HomeTeam     string
	AwayTeam     string
	CommenceTime time.Time
}

type Quote struct {
	EventID   string
	Bookmaker string
	Market    string
	Outcome   string
	Line      decimal.NullDecimal
	Price     decimal.Decimal
}

type EventOdds struct {
	Event  Event
	Quotes []Quote
}

// OddsFilter restringe o que é aceito de um payload de odds
type OddsFilter struct {
	BlockedMarkets []string
	Bookmaker      string // key ou título; vazio = todos
}

// ParseReport contabiliza o que foi descartado durante o parse
type ParseReport struct {
	Events   int
	Quotes   int
	Skipped  int
	Problems []error
}

const maxProblems = 20

func (r *ParseReport) skip(err error) {
	r.Skipped++
	if len(r.Problems) < maxProblems {
		r.Problems = append(r.Problems, err)
	}
}

// ParseSports decodifica a lista de esportes e mantém só os ativos
func ParseSports(payload []byte) ([]SportPayload, error) {
	var all []SportPayload
	if err := json.Unmarshal(payload, &all); err != nil {
		return nil, fmt.Errorf("decode sports: %w", err)
	}
	out := all[:0]
	for _, s := range all {
		if s.Active && s.Key != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// ParseOdds decodifica o payload de odds de um esporte. Só um JSON inválido no
// topo é erro; eventos e outcomes malformados são descartados e contabilizados.
func ParseOdds(payload []byte, f OddsFilter) ([]EventOdds, ParseReport, error) {
	var rep ParseReport
	var raw []EventPayload
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, rep, fmt.Errorf("decode odds: %w", err)
	}

	blocked := make(map[string]struct{}, len(f.BlockedMarkets))
	for _, m := range f.BlockedMarkets {
		blocked[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	wantBook := NormalizeTeamLabel(f.Bookmaker)

	out := make([]EventOdds, 0, len(raw))
	for _, ep := range raw {
		ev, err := toEvent(ep)
		if err != nil {
			rep.skip(err)
			continue
		}
		eo := EventOdds{Event: ev}
		for _, bk := range ep.Bookmakers {
			if bk.Key == "" {
				rep.skip(fmt.Errorf("%w: event %s: bookmaker without key", ErrMalformedInput, ev.ID))
				continue
			}
			if wantBook != "" && NormalizeTeamLabel(bk.Key) != wantBook && NormalizeTeamLabel(bk.Title) != wantBook {
				continue
			}
			for _, mk := range bk.Markets {
				market := strings.ToLower(strings.TrimSpace(mk.Key))
				if _, skip := blocked[market]; skip || market == "" {
					continue
				}
				for _, oc := range mk.Outcomes {
					q, err := toQuote(ev.ID, bk.Key, market, oc)
					if err != nil {
						rep.skip(err)
						continue
					}
					eo.Quotes = append(eo.Quotes, q)
				}
			}
		}
		rep.Events++
		rep.Quotes += len(eo.Quotes)
		out = append(out, eo)
	}
	return out, rep, nil
}

func toEvent(ep EventPayload) (Event, error) {
	if ep.ID == "" || strings.TrimSpace(ep.HomeTeam) == "" || strings.TrimSpace(ep.AwayTeam) == "" {
		return Event{}, fmt.Errorf("%w: event %q missing id or teams", ErrMalformedInput, ep.ID)
	}
	ct, err := time.Parse(time.RFC3339, ep.CommenceTime)
	if err != nil {
		return Event{}, fmt.Errorf("%w: event %s commence_time %q", ErrMalformedInput, ep.ID, ep.CommenceTime)
	}
	return Event{
		ID:           ep.ID,
		SportKey:     ep.SportKey,
		HomeTeam:     strings.TrimSpace(ep.HomeTeam),
		AwayTeam:     strings.TrimSpace(ep.AwayTeam),
		CommenceTime: ct.UTC(),
	}, nil
}

func toQuote(eventID, bookmaker, market string, oc OutcomePayload) (Quote, error) {
	name := strings.TrimSpace(oc.Name)
	if name == "" {
		return Quote{}, fmt.Errorf("%w: event %s %s/%s outcome without name", ErrMalformedInput, eventID, bookmaker, market)
	}
	price, ok := decimalFromRaw(oc.Price)
	price = RoundPrice(price)
	if !ok || price.LessThanOrEqual(one) {
		return Quote{}, fmt.Errorf("%w: event %s %s/%s/%s price %s", ErrMalformedInput, eventID, bookmaker, market, name, string(oc.Price))
	}

	q := Quote{EventID: eventID, Bookmaker: bookmaker, Market: market, Outcome: name, Price: price}
	if market == MarketH2H {
		return q, nil
	}
	if point, ok := decimalFromRaw(oc.Point); ok {
		q.Line = decimal.NewNullDecimal(RoundPrice(point))
	} else if IsLineMarket(market) {
		return Quote{}, fmt.Errorf("%w: event %s %s/%s/%s missing point", ErrMalformedInput, eventID, bookmaker, market, name)
	}
	return q, nil
}

// decimalFromRaw aceita 2.5, "2.5" e rejeita null/vazio
func decimalFromRaw(raw json.RawMessage) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, false
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, false
		}
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(s), "+"))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
