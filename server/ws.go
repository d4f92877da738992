package server

import (
	"net/http"

	"github.com/cyclopcam/boxlabel/pkg/gen"
	"github.com/cyclopcam/boxlabel/pkg/nn"
	"github.com/cyclopcam/boxlabel/pkg/transform"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Pointer messages from the client. X and Y are in display space.
type wsPointer struct {
	Action string  `json:"action"` // press, move, release, delete, hover
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
}

// Exactly one of the fields is set
type wsMessage struct {
	Event  *transform.Event  `json:"event,omitempty"`
	Cursor *transform.Cursor `json:"cursor,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// httpWebSocket streams pointer actions in, and engine events out.
// Events caused by other clients (eg a detect or undo over plain HTTP) are sent too.
func (s *Server) httpWebSocket(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("httpWebSocket upgrade failed: %v", err)
		return
	}
	defer c.Close()

	s.lock.Lock()
	events := s.engine.Subscribe(100)
	s.lock.Unlock()

	// gorilla/websocket allows only one concurrent writer, so all writes happen on this goroutine
	replies := make(chan wsMessage, 10)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		write := func(msg wsMessage) bool {
			if err := c.WriteJSON(msg); err != nil {
				s.Log.Infof("httpWebSocket write failed: %v", err)
				return false
			}
			return true
		}
		for {
			select {
			case ev := <-events:
				// Flush the backlog too, so that a reply is never sent ahead of events that were already queued
				for _, e := range append([]transform.Event{ev}, gen.DrainChannelIntoSlice(events)...) {
					if !write(wsMessage{Event: &e}) {
						return
					}
				}
			case m, ok := <-replies:
				if !ok {
					return
				}
				if !write(m) {
					return
				}
			}
		}
	}()

	for {
		in := wsPointer{}
		if err := c.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.Log.Infof("httpWebSocket read failed: %v", err)
			}
			break
		}
		reply, ok := s.wsApply(in)
		if !ok {
			continue
		}
		select {
		case replies <- reply:
		case <-writerDone:
		}
	}

	s.lock.Lock()
	s.engine.Unsubscribe(events)
	s.lock.Unlock()
	close(replies)
	<-writerDone
}

// wsApply runs one pointer action. Engine events reach the client through the subscription,
// so only hover and errors produce a direct reply.
func (s *Server) wsApply(in wsPointer) (wsMessage, bool) {
	p := nn.PointF{X: in.X, Y: in.Y}
	s.lock.Lock()
	defer s.lock.Unlock()
	if in.Action == "hover" {
		cursor := s.engine.Hover(p)
		return wsMessage{Cursor: &cursor}, true
	}
	if _, err := s.pointerLocked(in.Action, p); err != nil {
		return wsMessage{Error: err.Error()}, true
	}
	return wsMessage{}, false
}
