// Package sse streams link changes to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types written to the stream.
const (
	TypeLinkCreated    = "link.created"
	TypeLinkUpdated    = "link.updated"
	TypeIndexRebuilt   = "index.rebuilt"
	TypeListingChanged = "listing.changed"
)

const (
	clientBuffer  = 64
	publishBuffer = 256
)

// Event is a single message on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// client receives encoded frames.
type client chan []byte

// change is a link service notification waiting for the loop.
type change struct {
	kind string
	id   int64
}

// eventsFor maps a link service change kind to stream events. Unknown kinds
// map to nothing.
func eventsFor(kind string, id int64) []Event {
	switch kind {
	case "created":
		return []Event{{Type: TypeLinkCreated, Data: map[string]int64{"id": id}}}
	case "updated":
		return []Event{{Type: TypeLinkUpdated, Data: map[string]int64{"id": id}}}
	case "reindexed":
		return []Event{{Type: TypeIndexRebuilt, Data: struct{}{}}}
	}
	return nil
}

// frame renders one event in text/event-stream format.
func frame(seq uint64, e Event) ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, e.Type, data)), nil
}

// Broker fans events out to connected clients. A single loop goroutine owns
// the client set, the frame sequence and the listing throttle.
type Broker struct {
	listingEvery time.Duration

	join    chan client
	leave   chan client
	events  chan Event
	changes chan change
	count   chan chan int

	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool
}

// NewBroker starts a broker. listing.changed follows a change at most once
// per listingThrottle; zero selects two seconds.
func NewBroker(listingThrottle time.Duration) *Broker {
	if listingThrottle <= 0 {
		listingThrottle = 2 * time.Second
	}
	b := &Broker{
		listingEvery: listingThrottle,
		join:         make(chan client),
		leave:        make(chan client),
		events:       make(chan Event, publishBuffer),
		changes:      make(chan change, publishBuffer),
		count:        make(chan chan int),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go b.loop()
	return b
}

type loopState struct {
	clients     map[client]struct{}
	seq         uint64
	lastListing time.Time
}

func (st *loopState) send(e Event) {
	st.seq++
	msg, err := frame(st.seq, e)
	if err != nil {
		return
	}
	for c := range st.clients {
		select {
		case c <- msg:
		default:
		}
	}
}

func (b *Broker) loop() {
	defer close(b.done)
	st := &loopState{clients: make(map[client]struct{})}

	for {
		select {
		case <-b.quit:
			for c := range st.clients {
				close(c)
			}
			return
		case c := <-b.join:
			st.clients[c] = struct{}{}
		case c := <-b.leave:
			if _, ok := st.clients[c]; ok {
				delete(st.clients, c)
				close(c)
			}
		case e := <-b.events:
			st.send(e)
		case ch := <-b.changes:
			evs := eventsFor(ch.kind, ch.id)
			if len(evs) == 0 {
				continue
			}
			for _, e := range evs {
				st.send(e)
			}
			if now := time.Now(); now.Sub(st.lastListing) >= b.listingEvery {
				st.lastListing = now
				st.send(Event{Type: TypeListingChanged, Data: struct{}{}})
			}
		case reply := <-b.count:
			reply <- len(st.clients)
		}
	}
}

// Close stops the loop and closes every client channel. Safe to call twice.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.quit)
	}
	<-b.done
}

// Subscribe registers a client. After Close the returned channel is closed.
func (b *Broker) Subscribe() chan []byte {
	c := make(client, clientBuffer)
	if b.closed.Load() {
		close(c)
		return c
	}
	select {
	case b.join <- c:
	case <-b.done:
		close(c)
	}
	return c
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.done:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	reply := make(chan int, 1)
	select {
	case b.count <- reply:
	case <-b.done:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-b.done:
		return 0
	}
}

// Publish sends e to every client. Clients with a full buffer miss it.
func (b *Broker) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- e:
	case <-b.done:
	}
}

// PublishLinkEvent satisfies linkservice.ChangeFunc. kind is "created",
// "updated" or "reindexed"; id is ignored for rebuilds.
func (b *Broker) PublishLinkEvent(kind string, id int64) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changes <- change{kind: kind, id: id}:
	case <-b.done:
	}
}

// ServeHTTP streams frames to one client until it disconnects (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	c := b.Subscribe()
	defer b.Unsubscribe(c)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, open := <-c:
			if !open {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
