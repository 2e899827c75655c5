package pipeline

import (
	"log/slog"
	"sync"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/lgr"
)

// Broadcaster fans encoded frames out to viewers. Publish never blocks:
// a viewer whose buffer is full misses the frame, and a viewer that misses
// maxMisses frames in a row is evicted.
type Broadcaster struct {
	mu         sync.Mutex
	subs       map[uint64]*subscriber
	nextID     uint64
	closed     bool
	bufferSize int
	maxMisses  int
}

type subscriber struct {
	ch     chan []byte
	misses int
}

// Subscription is one viewer's cursor on the stream. Frames is closed when
// the session ends, the viewer is evicted or Close is called.
type Subscription struct {
	id uint64
	ch chan []byte
	b  *Broadcaster
}

func (s *Subscription) Frames() <-chan []byte {
	return s.ch
}

func (s *Subscription) Close() {
	s.b.unsubscribe(s.id)
}

func NewBroadcaster(bufferSize, maxMisses int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if maxMisses <= 0 {
		maxMisses = 1
	}
	return &Broadcaster{
		subs:       map[uint64]*subscriber{},
		bufferSize: bufferSize,
		maxMisses:  maxMisses,
	}
}

func (b *Broadcaster) Subscribe() (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, model.ErrNotRunning
	}

	b.nextID++
	sub := &subscriber{ch: make(chan []byte, b.bufferSize)}
	b.subs[b.nextID] = sub
	return &Subscription{id: b.nextID, ch: sub.ch, b: b}, nil
}

// Publish hands frame to every viewer and reports how many viewers got it
// and how many missed it.
func (b *Broadcaster) Publish(frame []byte) (delivered, missed int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, 0
	}

	for id, sub := range b.subs {
		select {
		case sub.ch <- frame:
			sub.misses = 0
			delivered++
		default:
			sub.misses++
			missed++
			if sub.misses >= b.maxMisses {
				lgr.Logger.Warn("evicting slow viewer",
					slog.Uint64("viewer", id),
					slog.Int("misses", sub.misses),
				)
				close(sub.ch)
				delete(b.subs, id)
			}
		}
	}
	return delivered, missed
}

func (b *Broadcaster) Viewers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Further publishes are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

func (b *Broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[id]; ok {
		close(sub.ch)
		delete(b.subs, id)
	}
}
