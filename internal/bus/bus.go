// Package bus is the in-process publish/subscribe hub for room events.
//
// A single goroutine owns the subscriber registry and consumes typed
// messages from an inbox, so no locking is needed. Publish is
// fire-and-forget: with no subscriber the event is dropped, not queued.
// Swapping in a durable broker means implementing Bus, nothing else.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/ParzivalEugene/planning-poker/internal/event"
)

// Envelope wraps a published event with its resumption token. Tokens are
// monotonically increasing per room, not globally.
type Envelope struct {
	ID        string
	Timestamp time.Time
	Event     event.Event
}

// Bus is the message-bus abstraction the rest of the process depends on.
type Bus interface {
	Publish(roomID string, evt event.Event)
	Subscribe(roomID string) *Subscription
	// Stamp allocates the next token for a room without publishing. The
	// stream uses it to tag synthesized roomState events.
	Stamp(roomID string) (string, time.Time)
}

// Subscription is one subscriber's feed. C is closed when the subscription
// is cancelled, the bus shuts down, or the subscriber falls too far behind.
type Subscription struct {
	C      <-chan Envelope
	roomID string
	ch     chan Envelope
	bus    *Memory
}

// Close releases the subscription. Safe to call more than once; the bus
// ignores channels it no longer tracks.
func (s *Subscription) Close() {
	s.bus.send(unsubscribe{roomID: s.roomID, ch: s.ch})
}

type busMsg interface{ isBusMsg() }

type subscribe struct {
	roomID string
	ch     chan Envelope
	reply  chan struct{}
}

type unsubscribe struct {
	roomID string
	ch     chan Envelope
}

type publish struct {
	roomID string
	evt    event.Event
}

type stamp struct {
	roomID string
	reply  chan Envelope
}

type shutdown struct{}

func (subscribe) isBusMsg()   {}
func (unsubscribe) isBusMsg() {}
func (publish) isBusMsg()     {}
func (stamp) isBusMsg()       {}
func (shutdown) isBusMsg()    {}

// Memory is the single-process Bus implementation.
type Memory struct {
	inbox  chan busMsg
	rooms  map[string]map[chan Envelope]struct{}
	lastTs map[string]int64
	ctx    context.Context
	cancel context.CancelFunc
}

var _ Bus = (*Memory)(nil)

func New(parent context.Context) *Memory {
	ctx, cancel := context.WithCancel(parent)
	b := &Memory{
		inbox:  make(chan busMsg, 64),
		rooms:  make(map[string]map[chan Envelope]struct{}),
		lastTs: make(map[string]int64),
		ctx:    ctx,
		cancel: cancel,
	}
	go b.loop()
	return b
}

func (b *Memory) Publish(roomID string, evt event.Event) {
	b.send(publish{roomID: roomID, evt: evt})
}

func (b *Memory) Subscribe(roomID string) *Subscription {
	ch := make(chan Envelope, 16)
	reply := make(chan struct{})
	if !b.send(subscribe{roomID: roomID, ch: ch, reply: reply}) {
		close(ch)
		return &Subscription{C: ch, roomID: roomID, ch: ch, bus: b}
	}
	<-reply
	return &Subscription{C: ch, roomID: roomID, ch: ch, bus: b}
}

func (b *Memory) Stamp(roomID string) (string, time.Time) {
	reply := make(chan Envelope, 1)
	if !b.send(stamp{roomID: roomID, reply: reply}) {
		now := time.Now()
		return fmt.Sprintf("%s-%d", roomID, now.UnixMilli()), now
	}
	env := <-reply
	return env.ID, env.Timestamp
}

// Shutdown closes every subscriber channel and stops the loop.
func (b *Memory) Shutdown() {
	b.send(shutdown{})
}

// send delivers a message to the loop unless the bus has already stopped.
func (b *Memory) send(m busMsg) bool {
	select {
	case b.inbox <- m:
		return true
	case <-b.ctx.Done():
		return false
	}
}

func (b *Memory) loop() {
	for {
		select {
		case <-b.ctx.Done():
			b.closeAll()
			return

		case m := <-b.inbox:
			switch msg := m.(type) {
			case subscribe:
				subs := b.rooms[msg.roomID]
				if subs == nil {
					subs = make(map[chan Envelope]struct{})
					b.rooms[msg.roomID] = subs
				}
				subs[msg.ch] = struct{}{}
				close(msg.reply)

			case unsubscribe:
				if subs, ok := b.rooms[msg.roomID]; ok {
					if _, tracked := subs[msg.ch]; tracked {
						delete(subs, msg.ch)
						close(msg.ch)
					}
					if len(subs) == 0 {
						delete(b.rooms, msg.roomID)
					}
				}

			case publish:
				env := b.nextEnvelope(msg.roomID)
				env.Event = msg.evt
				b.broadcast(msg.roomID, env)

			case stamp:
				msg.reply <- b.nextEnvelope(msg.roomID)

			case shutdown:
				b.closeAll()
				b.cancel()
				return
			}
		}
	}
}

// nextEnvelope builds the next token for a room. Equal or rewound clock
// readings are bumped so tokens stay strictly increasing per room.
func (b *Memory) nextEnvelope(roomID string) Envelope {
	ts := time.Now().UnixMilli()
	if last := b.lastTs[roomID]; ts <= last {
		ts = last + 1
	}
	b.lastTs[roomID] = ts
	return Envelope{
		ID:        fmt.Sprintf("%s-%d", roomID, ts),
		Timestamp: time.UnixMilli(ts),
	}
}

func (b *Memory) broadcast(roomID string, env Envelope) {
	for ch := range b.rooms[roomID] {
		select {
		case ch <- env:
			// ok
		default:
			// Subscriber is slow/full - drop them.
			close(ch)
			delete(b.rooms[roomID], ch)
		}
	}
	if len(b.rooms[roomID]) == 0 {
		delete(b.rooms, roomID)
	}
}

func (b *Memory) closeAll() {
	for roomID, subs := range b.rooms {
		for ch := range subs {
			close(ch)
		}
		delete(b.rooms, roomID)
	}
}
