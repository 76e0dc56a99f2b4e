package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cardrail/cardrail/bulk"
	"github.com/cardrail/cardrail/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 32
)

// jobUpdateMessage is the frame pushed to dashboard clients whenever a
// bulk job makes progress
type jobUpdateMessage struct {
	Type string     `json:"type"`
	Job  bulk.Event `json:"job"`
}

// wsClient is one connected dashboard
type wsClient struct {
	conn *websocket.Conn
	send chan interface{}
}

// handleJobsWebSocket upgrades /ws/jobs connections and streams job events
func (s *Server) handleJobsWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.originAllowed(origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", logger.FieldError, err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan interface{}, wsSendBuffer),
	}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()

	s.log.Debugw("websocket client connected", logger.FieldCount, count)

	s.wg.Add(2)
	go s.writePump(client)
	go s.readPump(client)
}

// readPump drains client frames so pings and close handshakes work.
// Clients never send meaningful data; any read error ends the connection.
func (s *Server) readPump(client *wsClient) {
	defer s.wg.Done()
	defer s.dropClient(client)

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump pushes queued events and keeps the connection alive with pings
func (s *Server) writePump(client *wsClient) {
	defer s.wg.Done()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	defer client.conn.Close()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-client.send:
			if !ok {
				client.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(wsWriteWait))
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) dropClient(client *wsClient) {
	s.mu.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
	s.mu.Unlock()
	client.conn.Close()
}

// broadcast queues a message for every connected client, dropping it for
// clients whose buffers are full
func (s *Server) broadcast(msg interface{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- msg:
		default:
		}
	}
}

// startEventBroadcaster forwards bulk job events to WebSocket clients
func (s *Server) startEventBroadcaster() {
	events, unsubscribe := s.emitter.Subscribe()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer unsubscribe()

		for {
			select {
			case <-s.ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.broadcast(jobUpdateMessage{Type: "job_update", Job: ev})
			}
		}
	}()
}
