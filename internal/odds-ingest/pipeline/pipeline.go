// Package pipeline puxa esportes e odds do provedor, grava eventos e cotações,
// avalia alertas de preço e publica um OddsUpdate por evento.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/paper-sportsbook/internal/normalizer"
	"github.com/radieske/paper-sportsbook/pkg/contracts/events"
)

type Provider interface {
	Sports(ctx context.Context) ([]normalizer.SportPayload, error)
	Odds(ctx context.Context, sport string, regions, markets []string) ([]byte, error)
}

type Store interface {
	UpsertSports(ctx context.Context, sports []normalizer.SportPayload) error
	ReplaceEvent(ctx context.Context, eo normalizer.EventOdds) error
}

type Alerts interface {
	OnQuote(ctx context.Context, q normalizer.Quote) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, e events.OddsUpdate) error
}

type Pipeline struct {
	Log       *zap.Logger
	Provider  Provider
	Store     Store
	Alerts    Alerts    // opcional
	Publisher Publisher // opcional

	Sports   []string // vazio = todos os ativos
	Regions  []string
	Markets  []string
	Filter   normalizer.OddsFilter
	Parallel int
	Pause    time.Duration // respiro entre esportes (quota do provedor)

	OnEvents func(n int)
	OnQuotes func(n int)
	OnFired  func(n int)
	OnError  func(stage string)
}

type Report struct {
	Sports       int
	SportsFailed []string
	Events       int
	Quotes       int
	Skipped      int
	EventsFailed int
	Alerts       int
}

// RunOnce executa um ciclo completo. Falhas de um esporte ou evento não
// interrompem o restante; só a falta de qualquer lista de esportes é erro.
func (p *Pipeline) RunOnce(ctx context.Context) (Report, error) {
	var rep Report
	started := time.Now()

	sports, err := p.sportKeys(ctx)
	if err != nil {
		return rep, err
	}
	rep.Sports = len(sports)

	parallel := p.Parallel
	if parallel <= 0 {
		parallel = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, sport := range sports {
		sport := sport
		g.Go(func() error {
			sr, ok := p.ingestSport(gctx, sport)

			mu.Lock()
			defer mu.Unlock()
			if !ok {
				rep.SportsFailed = append(rep.SportsFailed, sport)
			}
			rep.Events += sr.Events
			rep.Quotes += sr.Quotes
			rep.Skipped += sr.Skipped
			rep.EventsFailed += sr.EventsFailed
			rep.Alerts += sr.Alerts
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(rep.SportsFailed)

	if p.OnEvents != nil {
		p.OnEvents(rep.Events)
	}
	if p.OnQuotes != nil {
		p.OnQuotes(rep.Quotes)
	}
	if p.OnFired != nil && rep.Alerts > 0 {
		p.OnFired(rep.Alerts)
	}

	p.Log.Info("ingestion cycle finished",
		zap.Int("sports", rep.Sports),
		zap.Strings("sports_failed", rep.SportsFailed),
		zap.Int("events", rep.Events),
		zap.Int("quotes", rep.Quotes),
		zap.Int("skipped", rep.Skipped),
		zap.Int("alerts", rep.Alerts),
		zap.Duration("took", time.Since(started)),
	)
	return rep, ctx.Err()
}

// sportKeys lista os esportes ativos, grava o catálogo e aplica a lista configurada
func (p *Pipeline) sportKeys(ctx context.Context) ([]string, error) {
	active, err := p.Provider.Sports(ctx)
	if err != nil {
		p.onError("sports")
		if len(p.Sports) == 0 {
			return nil, fmt.Errorf("list sports: %w", err)
		}
		p.Log.Warn("sports listing failed; using configured sports", zap.Error(err))
		return p.Sports, nil
	}
	if err := p.Store.UpsertSports(ctx, active); err != nil {
		p.onError("catalog")
		p.Log.Warn("sports catalog upsert failed", zap.Error(err))
	}

	if len(p.Sports) == 0 {
		keys := make([]string, 0, len(active))
		for _, s := range active {
			keys = append(keys, s.Key)
		}
		return keys, nil
	}

	isActive := make(map[string]bool, len(active))
	for _, s := range active {
		isActive[s.Key] = true
	}
	keys := make([]string, 0, len(p.Sports))
	for _, k := range p.Sports {
		if isActive[k] {
			keys = append(keys, k)
			continue
		}
		p.Log.Debug("configured sport not active", zap.String("sport", k))
	}
	return keys, nil
}

func (p *Pipeline) ingestSport(ctx context.Context, sport string) (Report, bool) {
	var rep Report
	log := p.Log.With(zap.String("sport", sport))

	payload, err := p.Provider.Odds(ctx, sport, p.Regions, p.Markets)
	p.pause(ctx)
	if err != nil {
		log.Warn("odds fetch failed; sport skipped", zap.Error(err))
		p.onError("fetch")
		return rep, false
	}

	list, pr, err := normalizer.ParseOdds(payload, p.Filter)
	if err != nil {
		log.Warn("odds payload undecodable; sport skipped", zap.Error(err))
		p.onError("parse")
		return rep, false
	}
	rep.Skipped = pr.Skipped
	if pr.Skipped > 0 {
		log.Debug("malformed rows skipped", zap.Int("skipped", pr.Skipped), zap.Errors("problems", pr.Problems))
	}

	for _, eo := range list {
		if ctx.Err() != nil {
			return rep, false
		}
		elog := log.With(zap.String("event_id", eo.Event.ID))
		if err := p.Store.ReplaceEvent(ctx, eo); err != nil {
			elog.Error("replace event failed", zap.Error(err))
			p.onError("store")
			rep.EventsFailed++
			continue
		}
		rep.Events++
		rep.Quotes += len(eo.Quotes)

		rep.Alerts += p.evaluateAlerts(ctx, elog, eo.Quotes)
		p.publish(ctx, elog, eo)
	}
	return rep, true
}

func (p *Pipeline) evaluateAlerts(ctx context.Context, log *zap.Logger, quotes []normalizer.Quote) int {
	if p.Alerts == nil {
		return 0
	}
	fired := 0
	for _, q := range quotes {
		n, err := p.Alerts.OnQuote(ctx, q)
		if err != nil {
			log.Warn("alert evaluation failed",
				zap.String("market", q.Market), zap.String("outcome", q.Outcome), zap.Error(err))
			p.onError("alerts")
			continue
		}
		fired += n
	}
	return fired
}

func (p *Pipeline) publish(ctx context.Context, log *zap.Logger, eo normalizer.EventOdds) {
	if p.Publisher == nil {
		return
	}
	if err := p.Publisher.Publish(ctx, ToOddsUpdate(eo)); err != nil {
		log.Warn("publish odds update failed", zap.Error(err))
		p.onError("publish")
	}
}

// ToOddsUpdate converte o registro canônico no contrato do tópico odds_updates
func ToOddsUpdate(eo normalizer.EventOdds) events.OddsUpdate {
	quotes := make([]events.Quote, 0, len(eo.Quotes))
	for _, q := range eo.Quotes {
		quotes = append(quotes, events.Quote{
			Bookmaker: q.Bookmaker,
			Market:    q.Market,
			Outcome:   q.Outcome,
			Line:      q.Line,
			Price:     q.Price,
		})
	}
	return events.OddsUpdate{
		EventID:      eo.Event.ID,
		SportKey:     eo.Event.SportKey,
		HomeTeam:     eo.Event.HomeTeam,
		AwayTeam:     eo.Event.AwayTeam,
		CommenceTime: eo.Event.CommenceTime,
		Quotes:       quotes,
		UpdatedAt:    time.Now().UTC(),
		Source:       "odds-api",
	}
}

func (p *Pipeline) pause(ctx context.Context) {
	if p.Pause <= 0 {
		return
	}
	t := time.NewTimer(p.Pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (p *Pipeline) onError(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
