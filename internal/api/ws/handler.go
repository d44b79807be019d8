package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	api "github.com/GriffinCanCode/captchaview/internal/api/http"
	"github.com/GriffinCanCode/captchaview/internal/domain/preview"
	"github.com/GriffinCanCode/captchaview/internal/protocol"
)

// queueSize bounds the events buffered between the sandbox and the socket.
const queueSize = 64

// Message is a client request on the stream.
type Message struct {
	Type string `json:"type"`
	api.SimulateRequest
}

// Handler streams simulation events over WebSocket connections
type Handler struct {
	simulator *preview.Simulator
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

// NewHandler creates a new WebSocket handler. A nil checkOrigin accepts
// every origin.
func NewHandler(simulator *preview.Simulator, checkOrigin func(*http.Request) bool, logger *zap.Logger) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		simulator: simulator,
		upgrader:  websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:    logger,
	}
}

// OriginChecker accepts requests whose Origin is in origins. "*" or an
// empty list accepts all.
func OriginChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		allowed[o] = true
	}
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s := &stream{conn: conn}
	s.send(gin.H{
		"type":      "system",
		"message":   "Connected to captchaview",
		"scenarios": preview.Scenarios,
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "simulate":
			h.handleSimulate(c, s, msg.SimulateRequest)
		case "ping":
			s.send(gin.H{"type": "pong"})
		default:
			s.sendError("unknown message type")
		}
	}
}

// handleSimulate runs one scenario, forwarding each lifecycle message as
// the document posts it, then the completed run.
func (h *Handler) handleSimulate(c *gin.Context, s *stream, req api.SimulateRequest) {
	scenario, err := preview.ParseScenario(req.Scenario)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	if req.SiteKey == "" {
		s.sendError("siteKey is required")
		return
	}

	queue := protocol.NewQueue(queueSize)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for e := range queue.Events() {
			s.send(gin.H{
				"type":      "event",
				"message":   e,
				"timestamp": time.Now().Unix(),
			})
		}
	}()

	run, err := h.simulator.Simulate(c.Request.Context(), preview.Request{
		Params:    req.Params(),
		Overrides: req.Overrides(),
		Scenario:  scenario,
		Token:     req.Token,
		Detail:    req.Detail,
		Observer:  queue,
	})
	queue.Close()
	<-forwarded

	if err != nil {
		s.sendError(err.Error())
		return
	}
	if dropped := queue.Dropped(); dropped > 0 {
		h.logger.Warn("Stream dropped lifecycle events", zap.Uint64("dropped", dropped), zap.String("run_id", run.ID))
	}
	s.send(gin.H{
		"type":      "complete",
		"run":       run,
		"timestamp": time.Now().Unix(),
	})
}

// stream serializes writes to a connection.
type stream struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *stream) send(data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(data)
}

func (s *stream) sendError(message string) error {
	return s.send(gin.H{
		"type":    "error",
		"message": message,
	})
}
