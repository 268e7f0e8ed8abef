package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/mbrsim/internal/analyzer"
	"github.com/muurk/mbrsim/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum script size accepted in one message
	maxMessageSize = 1 << 20
)

// DoneCommand is the command of the message that ends each streamed script.
const DoneCommand = "done"

type doneMessage struct {
	Command string `json:"command"`
}

// wsSession serializes writes to one WebSocket connection.
type wsSession struct {
	conn       *websocket.Conn
	remoteAddr string
	mu         sync.Mutex
}

func (ws *wsSession) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
	logging.LogWebSocketMessage(ws.remoteAddr, "sent", websocket.TextMessage, data)
	return ws.conn.WriteMessage(websocket.TextMessage, data)
}

func (ws *wsSession) ping() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// handleWebSocket runs every text message it receives as a script and
// streams the responses back, each as a JSON Response, followed by a
// {"command":"done"} message.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an error response.
		logging.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	remoteAddr := r.RemoteAddr
	ws := &wsSession{conn: conn, remoteAddr: remoteAddr}

	s.mu.Lock()
	s.activeConns[remoteAddr] = conn
	s.mu.Unlock()
	s.wg.Add(1)

	logging.LogConnection(remoteAddr, "websocket_upgraded")

	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.activeConns, remoteAddr)
		s.mu.Unlock()
		s.wg.Done()
		logging.LogConnection(remoteAddr, "websocket_closed")
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := ws.ping(); err != nil {
					return
				}
			case <-stopPing:
				return
			}
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Info("Connection closed or error reading message",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
		logging.LogWebSocketMessage(remoteAddr, "received", msgType, data)

		if msgType != websocket.TextMessage {
			logging.Warn("Ignoring non-text WebSocket message",
				zap.String("remote_addr", remoteAddr),
				zap.Int("message_type", msgType),
			)
			continue
		}

		var writeErr error
		s.run(r.Context(), analyzer.Lines(string(data)), func(resp analyzer.Response) error {
			writeErr = ws.writeJSON(resp)
			return writeErr
		})
		if writeErr == nil {
			writeErr = ws.writeJSON(doneMessage{Command: DoneCommand})
		}
		if writeErr != nil {
			if !errors.Is(writeErr, websocket.ErrCloseSent) {
				logging.Info("Failed to stream response",
					zap.String("remote_addr", remoteAddr),
					zap.Error(writeErr),
				)
			}
			return
		}
	}
}
