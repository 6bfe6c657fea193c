package server

import (
	"context"
	"net/http"
	"time"

	"stockstream/internal/market/collector"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event is pushed to every websocket subscriber.
type Event struct {
	Type          string    `json:"type"`
	RoundID       string    `json:"round_id"`
	Timestamp     time.Time `json:"timestamp"`
	Inserted      int       `json:"inserted"`
	Skipped       int       `json:"skipped"`
	FailedInserts int       `json:"failed_inserts"`
}

const EventRoundCompleted = "round_completed"

// Hub fans events out to connected websocket clients. All client
// bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run returns
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		// Buffered so NotifyRound never waits on the hub loop
		broadcast:  make(chan Event, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.Named("ws"),
	}
}

// Run is the hub loop. It returns when ctx is cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case ev := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- ev:
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// NotifyRound broadcasts a round_completed event. Events are dropped when
// the hub is backlogged.
func (h *Hub) NotifyRound(r collector.Report) {
	ev := Event{
		Type:          EventRoundCompleted,
		RoundID:       r.RoundID,
		Timestamp:     r.Timestamp,
		Inserted:      r.Inserted,
		Skipped:       r.Skipped,
		FailedInserts: r.FailedInserts,
	}
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn("broadcast queue full, dropping event", zap.String("round_id", r.RoundID))
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *Hub) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan Event, 32),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-c.Request.Context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
