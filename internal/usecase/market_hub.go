package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"CryptoPulse/internal/domain/models"
	domrepo "CryptoPulse/internal/domain/repository"
	"CryptoPulse/internal/service/window"
	"CryptoPulse/internal/services/orderbook"
	"CryptoPulse/pkg/logger"
)

// ErrInboxFull is returned by Dispatch when a symbol actor is backed up.
var ErrInboxFull = errors.New("hub: symbol inbox full")

// ErrHubStopped is returned by Dispatch after Stop.
var ErrHubStopped = errors.New("hub: stopped")

// Subscriber observes events for a symbol after the window has been updated.
type Subscriber func(ctx context.Context, ev models.MarketEvent) error

type subscription struct {
	name string
	fn   Subscriber
}

type symbolActor struct {
	symbol string
	inbox  chan models.MarketEvent
}

// MarketHub serializes all writes for a symbol through one goroutine. Each
// actor updates the window store and CVD tracker, then notifies subscribers
// in registration order.
type MarketHub struct {
	store    *window.Store
	cvd      *orderbook.Trackers
	metrics  domrepo.Metrics
	log      *logger.Logger
	inboxCap int

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	actors  map[string]*symbolActor
	subs    map[string][]subscription
	stopped bool
	wg      sync.WaitGroup
}

// AllSymbols subscribes to every symbol.
const AllSymbols = "*"

func NewMarketHub(store *window.Store, cvd *orderbook.Trackers, metrics domrepo.Metrics, log *logger.Logger, inboxCap int) *MarketHub {
	if inboxCap <= 0 {
		inboxCap = 1024
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MarketHub{
		store:    store,
		cvd:      cvd,
		metrics:  metrics,
		log:      log,
		inboxCap: inboxCap,
		ctx:      ctx,
		cancel:   cancel,
		actors:   make(map[string]*symbolActor),
		subs:     make(map[string][]subscription),
	}
}

// Subscribe registers fn for symbol, or for every symbol with AllSymbols.
func (h *MarketHub) Subscribe(symbol, name string, fn Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[symbol] = append(h.subs[symbol], subscription{name: name, fn: fn})
}

// Dispatch hands ev to its symbol actor without blocking.
func (h *MarketHub) Dispatch(_ context.Context, ev models.MarketEvent) error {
	sym := ev.Symbol()
	if sym == "" {
		return fmt.Errorf("hub: event without symbol")
	}
	a, err := h.actor(sym)
	if err != nil {
		return err
	}
	select {
	case a.inbox <- ev:
		return nil
	default:
		return ErrInboxFull
	}
}

func (h *MarketHub) actor(symbol string) (*symbolActor, error) {
	h.mu.RLock()
	a, ok := h.actors[symbol]
	stopped := h.stopped
	h.mu.RUnlock()
	if stopped {
		return nil, ErrHubStopped
	}
	if ok {
		return a, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil, ErrHubStopped
	}
	if a, ok = h.actors[symbol]; ok {
		return a, nil
	}
	a = &symbolActor{symbol: symbol, inbox: make(chan models.MarketEvent, h.inboxCap)}
	h.actors[symbol] = a
	h.wg.Add(1)
	go h.run(a)
	h.log.Debug("symbol actor started", logger.String("symbol", symbol))
	return a, nil
}

func (h *MarketHub) run(a *symbolActor) {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			return
		case ev := <-a.inbox:
			h.apply(ev)
			h.notify(a.symbol, ev)
		}
	}
}

func (h *MarketHub) apply(ev models.MarketEvent) {
	switch {
	case ev.Sample != nil:
		s := *ev.Sample
		if prev, ok := h.store.Latest(s.Symbol); ok {
			buy, sell := tickRule(prev.Price, s)
			h.cvd.For(s.Symbol).Update(buy, sell, s.Price)
		}
		h.store.Insert(s.Symbol, s)
		h.metrics.RecordLastPrice(s.Symbol, s.Price)
	case ev.Book != nil:
		h.store.SetBook(ev.Book.Symbol, *ev.Book)
	}
}

// tickRule attributes the sample's size to buyers on an uptick and sellers
// on a downtick. An unchanged price carries no delta.
func tickRule(prevPrice float64, s models.PriceSample) (buy, sell float64) {
	size := s.TradeSize
	if size <= 0 {
		size = s.Volume
	}
	switch {
	case s.Price > prevPrice:
		return size, 0
	case s.Price < prevPrice:
		return 0, size
	}
	return 0, 0
}

func (h *MarketHub) notify(symbol string, ev models.MarketEvent) {
	h.mu.RLock()
	subs := make([]subscription, 0, len(h.subs[symbol])+len(h.subs[AllSymbols]))
	subs = append(subs, h.subs[symbol]...)
	subs = append(subs, h.subs[AllSymbols]...)
	h.mu.RUnlock()

	for _, s := range subs {
		if err := h.safeCall(s, ev); err != nil {
			h.metrics.RecordError("hub_subscriber")
			h.log.Warn("subscriber failed",
				logger.String("subscriber", s.name),
				logger.String("symbol", symbol),
				logger.Error(err))
		}
	}
}

func (h *MarketHub) safeCall(s subscription, ev models.MarketEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(h.ctx, ev)
}

// Stop ends every actor. Events still queued are discarded.
func (h *MarketHub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
	h.wg.Wait()
}

func (h *MarketHub) Store() *window.Store { return h.store }

func (h *MarketHub) CVD() *orderbook.Trackers { return h.cvd }
