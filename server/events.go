package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/arbiterhq/arbiter/governor"
	"github.com/arbiterhq/arbiter/pipeline"
)

const (
	eventKindRun      = "run"
	eventKindPressure = "pressure"
)

// StreamEvent is one frame on the websocket event stream. Exactly one of
// Run and Pressure is set, selected by Kind.
type StreamEvent struct {
	Kind     string                   `json:"kind"`
	Run      *pipeline.RunEvent       `json:"run,omitempty"`
	Pressure *governor.PressureSignal `json:"pressure,omitempty"`
}

// eventHub fans run completion and resource pressure events out to websocket
// subscribers. Delivery is fire-and-forget: a subscriber whose buffer is
// full misses events, and a failed write drops the connection.
type eventHub struct {
	mu          sync.Mutex
	subscribers map[chan StreamEvent]struct{}
	stopChan    chan struct{}
	stopOnce    sync.Once
	upgrader    websocket.Upgrader
	log         *logrus.Entry
}

func newEventHub(log *logrus.Entry) *eventHub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &eventHub{
		subscribers: make(map[chan StreamEvent]struct{}),
		stopChan:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.WithField("component", "event-hub"),
	}
}

// start consumes the coordinator's event stream until it closes or the hub
// stops.
func (h *eventHub) start(events <-chan pipeline.RunEvent) {
	go func() {
		for {
			select {
			case <-h.stopChan:
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				h.broadcast(StreamEvent{Kind: eventKindRun, Run: &event})
			}
		}
	}()
}

// startPressure consumes governor pressure signals until the hub stops.
func (h *eventHub) startPressure(signals <-chan governor.PressureSignal) {
	if signals == nil {
		return
	}
	go func() {
		for {
			select {
			case <-h.stopChan:
				return
			case signal, ok := <-signals:
				if !ok {
					return
				}
				h.broadcast(StreamEvent{Kind: eventKindPressure, Pressure: &signal})
			}
		}
	}()
}

func (h *eventHub) stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		close(sub)
		delete(h.subscribers, sub)
	}
}

func (h *eventHub) broadcast(event StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub <- event:
		default:
			// subscriber backlog, drop the event
		}
	}
}

func (h *eventHub) subscribe() chan StreamEvent {
	sub := make(chan StreamEvent, 16)
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *eventHub) unsubscribe(sub chan StreamEvent) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		close(sub)
	}
	h.mu.Unlock()
}

// handleSubscribe upgrades the connection and streams events as JSON frames
// until the client disconnects.
func (h *eventHub) handleSubscribe(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := h.subscribe()
	defer h.unsubscribe(sub)

	// drain client frames so pings and close messages are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case <-h.stopChan:
			return nil
		case event, ok := <-sub:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(event); err != nil {
				h.log.WithError(err).Debug("Dropping websocket subscriber")
				return nil
			}
		}
	}
}
