package poller

import (
	"context"
	"fmt"
	"strconv"

	"nobitex-trader/internal/bus"
	"nobitex-trader/internal/model"
	"nobitex-trader/internal/nobitex"
)

// fetchKline issues one UDF history request and parses it.
func (p *Poller) fetchKline(ctx context.Context, params map[string]string) (*model.KlineBatch, error) {
	ep := nobitex.Endpoints[nobitex.EPKline]
	if err := p.acquire(ctx, ep); err != nil {
		return nil, err
	}
	raw, err := p.client.Get(ctx, ep, params)
	if err != nil {
		return nil, err
	}
	return nobitex.ParseKline(raw)
}

// FetchRange fetches one kline window by absolute timestamps. Used by the
// backtester to replay history in chunks.
func (p *Poller) FetchRange(ctx context.Context, from, to int64) (*model.KlineBatch, error) {
	return p.fetchKline(ctx, map[string]string{
		"symbol":     p.cfg.Symbol,
		"resolution": p.cfg.Resolution,
		"from":       strconv.FormatInt(from, 10),
		"to":         strconv.FormatInt(to, 10),
	})
}

// InitiateKline seeds the empty store with the newest required candles.
func (p *Poller) InitiateKline(ctx context.Context) error {
	batch, err := p.fetchKline(ctx, map[string]string{
		"symbol":     p.cfg.Symbol,
		"resolution": p.cfg.Resolution,
		"to":         strconv.FormatInt(nowUnix(), 10),
		"countback":  strconv.Itoa(p.cfg.RequiredCandles),
	})
	if err != nil {
		return fmt.Errorf("initiate kline: %w", err)
	}
	if batch.Len() == 0 {
		return fmt.Errorf("initiate kline: exchange returned no history for %s/%s",
			p.cfg.Symbol, p.cfg.Resolution)
	}
	p.store.Update(batch.Candles())
	if p.met != nil {
		p.met.CandlesMerged.Add(float64(batch.Len()))
	}
	p.log.WithFields(map[string]any{
		"rows": batch.Len(), "first": batch.FirstTS(), "last": batch.LastTS(),
	}).Info("kline store initiated")
	return nil
}

// PopulateKline backfills older history until the store holds the required
// number of candles. Each round asks for the remaining shortfall ending one
// bar before the oldest stored candle. Stops early when the exchange runs
// out of history.
func (p *Poller) PopulateKline(ctx context.Context) error {
	for p.store.Len() < p.cfg.RequiredCandles {
		if err := ctx.Err(); err != nil {
			return err
		}
		missing := p.cfg.RequiredCandles - p.store.Len()
		to := p.store.FirstTS() - p.store.BarSeconds()
		batch, err := p.fetchKline(ctx, map[string]string{
			"symbol":     p.cfg.Symbol,
			"resolution": p.cfg.Resolution,
			"to":         strconv.FormatInt(to, 10),
			"countback":  strconv.Itoa(missing),
		})
		if err != nil {
			return fmt.Errorf("populate kline: %w", err)
		}
		if batch.Len() == 0 || !p.store.HasNews(batch.Candles()) {
			p.log.WithField("rows", p.store.Len()).
				Warn("exchange history exhausted before reaching required candles")
			return nil
		}
		p.store.Update(batch.Candles())
		if p.met != nil {
			p.met.BackfillRows.Add(float64(batch.Len()))
			p.met.CandlesMerged.Add(float64(batch.Len()))
		}
	}
	p.log.WithField("rows", p.store.Len()).Info("kline store populated")
	return nil
}

// UpdateKline keeps the store current: each round refetches from the last
// stored bar to now and emits NEW_CANDLES only when the merge actually
// changed something. The endpoint limiter paces the loop. Runs until ctx
// is cancelled.
func (p *Poller) UpdateKline(ctx context.Context) {
	for {
		if err := p.updateOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.WithError(err).Warn("kline update round failed")
		}
	}
}

func (p *Poller) updateOnce(ctx context.Context) error {
	batch, err := p.fetchKline(ctx, map[string]string{
		"symbol":     p.cfg.Symbol,
		"resolution": p.cfg.Resolution,
		"from":       strconv.FormatInt(p.store.LastTS(), 10),
		"to":         strconv.FormatInt(nowUnix(), 10),
	})
	if err != nil {
		return err
	}
	candles := batch.Candles()
	if !p.store.HasNews(candles) {
		return nil
	}
	p.store.Update(candles)
	if p.met != nil {
		p.met.CandlesMerged.Add(float64(batch.Len()))
	}
	return p.emit(ctx, bus.NewCandles, bus.Payload{
		"symbol":     p.cfg.Symbol,
		"resolution": p.cfg.Resolution,
	})
}
