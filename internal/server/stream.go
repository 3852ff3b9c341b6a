package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"craft-optimizer/internal/request"
	"craft-optimizer/internal/search"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Stream event types, server to client.
const (
	eventStart      = "start"
	eventProgress   = "progress"
	eventSuggestion = "suggestion"
	eventFinish     = "finish"
	eventError      = "error"
)

type streamEvent struct {
	Type     string           `json:"type"`
	Nodes    uint64           `json:"nodes,omitempty"`
	Solution *search.Solution `json:"solution,omitempty"`
	Result   *SolveResponse   `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// streamControl is a client message. The only one understood is
// {"type": "cancel"}.
type streamControl struct {
	Type string `json:"type"`
}

// handleStream runs one solve per connection. The first client message is the
// request; after that the client may send a cancel message at any time. The
// server answers with start, any number of progress and suggestion events,
// and one finish event, then closes.
func (s *Server) handleStream(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()
	ws.SetReadLimit(maxBodyBytes)

	var mu sync.Mutex
	send := func(ev streamEvent) {
		mu.Lock()
		defer mu.Unlock()
		if err := ws.WriteJSON(ev); err != nil {
			s.log.Debug("websocket write failed", "error", err)
		}
	}
	closeNormal := func() {
		mu.Lock()
		defer mu.Unlock()
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}

	_, body, err := ws.ReadMessage()
	if err != nil {
		return
	}
	args, err := request.Parse(string(body))
	if err != nil {
		send(streamEvent{Type: eventError, Error: err.Error()})
		closeNormal()
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		// A failed read means the client went away; either way the solve stops.
		for {
			var msg streamControl
			if err := ws.ReadJSON(&msg); err != nil {
				cancel()
				return
			}
			if msg.Type == "cancel" {
				cancel()
			}
		}
	}()

	send(streamEvent{Type: eventStart})
	obs := search.Callbacks{
		OnProgress: func(nodes uint64) {
			send(streamEvent{Type: eventProgress, Nodes: nodes})
		},
		OnSuggest: func(sol search.Solution) {
			send(streamEvent{Type: eventSuggestion, Solution: &sol})
		},
	}
	resp, err := s.Solve(ctx, &args, obs)
	if err != nil {
		send(streamEvent{Type: eventError, Error: err.Error()})
	} else {
		send(streamEvent{Type: eventFinish, Result: &resp})
	}
	closeNormal()
}
