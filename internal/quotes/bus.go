package quotes

import (
	"sync"
	"time"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Quote is the payload published for every observed price.
type Quote struct {
	StockCode string `json:"stock_code"`
	Price     string `json:"price"`
	TS        int64  `json:"ts"`
}

func NewQuoteEvent(stockCode, price string) Event {
	return Event{Type: "quote", Data: Quote{
		StockCode: stockCode,
		Price:     price,
		TS:        time.Now().UnixMilli(),
	}}
}

// Bus fans observed quotes out to subscribers. Slow subscribers drop
// events instead of blocking the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 100)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.RUnlock()
}
