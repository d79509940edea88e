// Package poller drives the REST polling loops: the kline lifecycle that
// feeds the rolling candle store, the price and order book streams, wallet
// reads, and the startup authorization probe. Every request goes through
// the per-endpoint rate limiter.
package poller

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nobitex-trader/internal/bus"
	"nobitex-trader/internal/candlestore"
	"nobitex-trader/internal/metrics"
	"nobitex-trader/internal/model"
	"nobitex-trader/internal/nobitex"
	"nobitex-trader/internal/timeutil"
)

// Config names the traded pair and how much history the strategy needs.
type Config struct {
	Symbol          string // e.g. BTCIRT
	SrcCurrency     string // e.g. btc
	DstCurrency     string // e.g. rls
	Resolution      string
	RequiredCandles int
}

// Poller owns the polling loops for one pair.
type Poller struct {
	cfg    Config
	client *nobitex.Client
	store  *candlestore.Store
	bus    *bus.Bus
	log    *logrus.Entry
	met    *metrics.Metrics

	mu       sync.Mutex
	limiters map[string]*nobitex.Limiter
}

// New creates a poller. met may be nil.
func New(cfg Config, client *nobitex.Client, store *candlestore.Store, b *bus.Bus, log *logrus.Entry, met *metrics.Metrics) *Poller {
	return &Poller{
		cfg:      cfg,
		client:   client,
		store:    store,
		bus:      b,
		log:      log,
		met:      met,
		limiters: make(map[string]*nobitex.Limiter),
	}
}

// limiter returns the shared limiter for an endpoint, creating it on first
// use. One limiter per endpoint id, shared across loops.
func (p *Poller) limiter(ep nobitex.Endpoint) *nobitex.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[ep.ID]
	if !ok {
		l = nobitex.NewLimiter(ep)
		p.limiters[ep.ID] = l
	}
	return l
}

// acquire blocks on the endpoint's limiter and records the wait.
func (p *Poller) acquire(ctx context.Context, ep nobitex.Endpoint) error {
	start := time.Now()
	err := p.limiter(ep).Acquire(ctx)
	if p.met != nil {
		p.met.LimiterWaitNs.WithLabelValues(ep.ID).Add(float64(time.Since(start).Nanoseconds()))
	}
	return err
}

// Authorize fetches the user profile and checks it against the configured
// profile id. On success it emits SUCCESS_AUTHORIZATION exactly once; a
// mismatch means the token belongs to someone else and is fatal.
func (p *Poller) Authorize(ctx context.Context, expectedID int64) error {
	ep := nobitex.Endpoints[nobitex.EPUserProfile]
	if err := p.acquire(ctx, ep); err != nil {
		return err
	}
	raw, err := p.client.Get(ctx, ep, nil)
	if err != nil {
		return err
	}
	id, err := nobitex.ParseProfile(raw)
	if err != nil {
		return err
	}
	if expectedID != 0 && id != expectedID {
		return &ProfileMismatchError{Got: id, Want: expectedID}
	}
	p.log.WithField("profile_id", id).Info("authorized against exchange")
	return p.emit(ctx, bus.SuccessAuthorization, bus.Payload{"profile_id": id})
}

// ProfileMismatchError reports a token that authenticates a different
// account than configured.
type ProfileMismatchError struct {
	Got, Want int64
}

func (e *ProfileMismatchError) Error() string {
	return "profile id " + strconv.FormatInt(e.Got, 10) +
		" does not match configured id " + strconv.FormatInt(e.Want, 10)
}

// Wallets fetches the current balances, dropping empty wallets.
func (p *Poller) Wallets(ctx context.Context) (model.Wallets, error) {
	ep := nobitex.Endpoints[nobitex.EPWalletsList]
	if err := p.acquire(ctx, ep); err != nil {
		return nil, err
	}
	raw, err := p.client.Get(ctx, ep, nil)
	if err != nil {
		return nil, err
	}
	return nobitex.ParseWallets(raw, true)
}

// PollPrice fetches the latest market price on the endpoint's cadence and
// pushes it to out, dropping values when the consumer lags. Runs until ctx
// is cancelled.
func (p *Poller) PollPrice(ctx context.Context, out chan<- float64) {
	ep := nobitex.Endpoints[nobitex.EPMarketStats]
	params := map[string]string{
		"srcCurrency": p.cfg.SrcCurrency,
		"dstCurrency": p.cfg.DstCurrency,
	}
	for {
		if err := p.acquire(ctx, ep); err != nil {
			return
		}
		raw, err := p.client.Get(ctx, ep, params)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.WithError(err).Warn("market price poll failed")
			continue
		}
		price, err := nobitex.ParseMarketPrice(raw, p.cfg.SrcCurrency, p.cfg.DstCurrency)
		if err != nil {
			p.log.WithError(err).Warn("market price parse failed")
			continue
		}
		select {
		case out <- price:
		default:
		}
	}
}

// PollOrderBook mirrors PollPrice for depth snapshots.
func (p *Poller) PollOrderBook(ctx context.Context, out chan<- *model.OrderBookSnapshot) {
	ep := nobitex.OrderBookEndpoint(p.cfg.Symbol)
	for {
		if err := p.acquire(ctx, ep); err != nil {
			return
		}
		raw, err := p.client.Get(ctx, ep, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.WithError(err).Warn("order book poll failed")
			continue
		}
		book, err := nobitex.ParseOrderBook(raw, p.cfg.Symbol)
		if err != nil {
			p.log.WithError(err).Warn("order book parse failed")
			continue
		}
		select {
		case out <- book:
		default:
		}
	}
}

// emit forwards to the bus and counts the emission.
func (p *Poller) emit(ctx context.Context, name string, payload bus.Payload) error {
	if p.met != nil {
		p.met.EventsEmitted.WithLabelValues(name).Inc()
	}
	return p.bus.Emit(ctx, name, payload)
}

func nowUnix() int64 { return timeutil.NowUnix() }
