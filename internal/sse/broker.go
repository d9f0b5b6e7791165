// Package sse implements a Server-Sent Events broker that streams index
// regeneration and validation results to connected clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeIndexUpdated     = "index.updated"
	TypeIndexDrift       = "index.drift"
	TypeValidationFailed = "validation.failed"
	TypeReportUpdated    = "report.updated"
)

// Skill event kinds accepted by PublishSkillEvent.
const (
	KindUpdated = "updated"
	KindDrift   = "drift"
	KindInvalid = "invalid"
)

var kindTypes = map[string]string{
	KindUpdated: TypeIndexUpdated,
	KindDrift:   TypeIndexDrift,
	KindInvalid: TypeValidationFailed,
}

// KeepAlive is the interval of the comment lines ServeHTTP writes to idle
// streams.
var KeepAlive = 30 * time.Second

// Event is one message to broadcast. An empty Skill reaches every client.
type Event struct {
	Type  string `json:"type"`
	Skill string `json:"-"`
	Data  any    `json:"data"`
}

// SkillEventData is the payload of the per-skill events.
type SkillEventData struct {
	Skill string   `json:"skill"`
	Paths []string `json:"paths,omitempty"`
}

type subscription struct {
	ch    chan []byte
	skill string
}

// Broker fans events out to SSE clients, optionally filtered by skill.
//
// A single loop goroutine owns the client set, the event sequence and the
// per-skill report.updated timestamps; public methods talk to it over
// channels.
type Broker struct {
	reportMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one report.updated event per
// skill every reportThrottle.
func NewBroker(reportThrottle time.Duration) *Broker {
	if reportThrottle <= 0 {
		reportThrottle = 2 * time.Second
	}

	b := &Broker{
		reportMin:     reportThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastReport := make(map[string]time.Time)
	var seq uint64

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		for ch, skill := range clients {
			if skill != "" && event.Skill != "" && skill != event.Skill {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client: drop rather than block the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.skill

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)
			if event.Type == TypeReportUpdated || event.Skill == "" {
				continue
			}
			now := time.Now()
			if now.Sub(lastReport[event.Skill]) >= b.reportMin {
				lastReport[event.Skill] = now
				broadcast(Event{
					Type:  TypeReportUpdated,
					Skill: event.Skill,
					Data:  SkillEventData{Skill: event.Skill},
				})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel. A non-empty skill limits
// the client to that skill's events and to global ones.
func (b *Broker) Subscribe(skill string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, skill: skill}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to the matching clients. Events carrying a skill
// also trigger a throttled report.updated for that skill.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishSkillEvent publishes the outcome of one regeneration pass. Unknown
// kinds are ignored.
func (b *Broker) PublishSkillEvent(kind, skill string, paths []string) {
	typ, ok := kindTypes[kind]
	if !ok {
		return
	}
	b.Publish(Event{Type: typ, Skill: skill, Data: SkillEventData{Skill: skill, Paths: paths}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events[?skill=name]).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(r.URL.Query().Get("skill"))
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(KeepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
