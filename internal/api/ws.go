package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"gauge-telemetry/internal/app"
	"gauge-telemetry/internal/calibration"
	"gauge-telemetry/internal/gauge"
	"gauge-telemetry/internal/ocr"
)

const (
	writeWait  = 2 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard pages may be served from anywhere on the LAN
	},
}

// WSMessage is an action sent by a websocket client.
type WSMessage struct {
	Action string             `json:"action"` // start, color, next, range, capture, cancel
	Color  *gauge.NeedleColor `json:"color,omitempty"`
	Min    string             `json:"min,omitempty"`
	Max    string             `json:"max,omitempty"`
	Angle  *float64           `json:"angle,omitempty"`
}

// WSResponse is pushed to websocket clients.
type WSResponse struct {
	Type        string            `json:"type"` // status, reading, calibration, profile, scale_hint, error
	Status      *statusResponse   `json:"status,omitempty"`
	Reading     *readingResponse  `json:"reading,omitempty"`
	Calibration calibration.State `json:"calibration,omitempty"`
	Prompt      string            `json:"prompt,omitempty"`
	Profile     *gauge.Profile    `json:"profile,omitempty"`
	ScaleHint   *ocr.ScaleHint    `json:"scale_hint,omitempty"`
	Message     string            `json:"message,omitempty"`
}

type client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// trySend queues data unless the client is closed or its buffer is full.
func (c *client) trySend(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// hub fans state events out to every connected client. A client that
// cannot keep up loses messages rather than slowing the frame loop.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for c := range clients {
		c.close()
	}
}

func (h *hub) broadcast(msg WSResponse) {
	data, err := json.Marshal(msg)
	if err != nil {
		logrus.WithError(err).Error("websocket message not encoded")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.trySend(data)
	}
}

func (h *hub) subscribe(s *Server) {
	s.state.On(app.EventReading, func(d interface{}) {
		if h.count() == 0 {
			return
		}
		h.broadcast(WSResponse{Type: "reading", Reading: s.readingFrom(d.(app.Snapshot))})
	})
	s.state.On(app.EventCalibrationChanged, func(d interface{}) {
		ev := d.(calibration.Event)
		if ev.Kind != calibration.EventStateChanged {
			return
		}
		h.broadcast(WSResponse{Type: "calibration", Calibration: ev.To, Prompt: calibration.Prompt(ev.To)})
	})
	s.state.On(app.EventProfileChanged, func(d interface{}) {
		p := d.(gauge.Profile)
		h.broadcast(WSResponse{Type: "profile", Profile: &p})
	})
	s.state.On(app.EventScaleHint, func(d interface{}) {
		hint := d.(ocr.ScaleHint)
		h.broadcast(WSResponse{Type: "scale_hint", ScaleHint: &hint})
	})
}

func (s *Server) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	s.hub.add(cl)
	logrus.WithField("remote", conn.RemoteAddr().String()).Debug("websocket client connected")

	st := s.status()
	if data, err := json.Marshal(WSResponse{Type: "status", Status: &st}); err == nil {
		cl.trySend(data)
	}

	go writePump(cl)
	s.readPump(cl)
}

func writePump(cl *client) {
	defer cl.conn.Close()
	for data := range cl.send {
		_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logrus.WithError(err).Debug("websocket write failed")
			return
		}
	}
	_ = cl.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (s *Server) readPump(cl *client) {
	defer s.hub.remove(cl)
	for {
		var msg WSMessage
		if err := cl.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).Debug("websocket read failed")
			}
			return
		}
		if err := s.apply(msg); err != nil {
			data, _ := json.Marshal(WSResponse{Type: "error", Message: err.Error()})
			cl.trySend(data)
		}
	}
}

// apply runs a client action against the calibration machine.
func (s *Server) apply(msg WSMessage) error {
	m := s.state.Machine()
	switch msg.Action {
	case "start":
		return m.Start(s.state.Profile())
	case "color":
		c, err := colorRequest{Color: msg.Color}.color()
		if err != nil {
			return err
		}
		return m.Choose(c)
	case "next":
		return m.Next()
	case "range":
		return m.Submit(msg.Min, msg.Max)
	case "capture":
		if msg.Angle != nil {
			return m.Capture(*msg.Angle)
		}
		return m.CaptureLast()
	case "cancel":
		m.Cancel()
		return nil
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
}
