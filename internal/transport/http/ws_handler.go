package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"scenario-quiz-service/internal/app"
)

// flushTimeout bounds how long a closing socket waits for queued saves.
const flushTimeout = 10 * time.Second

type WSHandler struct {
	service  *app.QuizService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Option int `json:"option"`
}

type endPayload struct {
	Failed bool `json:"failed"`
}

type timerPayload struct {
	Remaining int `json:"remaining"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// wsRenderer turns quiz renderer calls into outbound messages.
// Emits are dropped once done is closed so a disposed quiz never blocks on a dead socket.
type wsRenderer struct {
	send chan<- outboundMessage[any]
	done <-chan struct{}
}

func (r wsRenderer) emit(typ string, payload any) {
	select {
	case r.send <- outboundMessage[any]{Type: typ, Payload: payload}:
	case <-r.done:
	}
}

func (r wsRenderer) ShowQuestion(v app.QuestionView) { r.emit("question", v) }
func (r wsRenderer) ShowOutcome(v app.OutcomeView)   { r.emit("outcome", v) }
func (r wsRenderer) ShowSummary(v app.SummaryView)   { r.emit("summary", v) }
func (r wsRenderer) ShowTimer(left int)              { r.emit("timer", timerPayload{Remaining: left}) }
func (r wsRenderer) ShowNotice(msg string)           { r.emit("notice", errorPayload{Message: msg}) }
func (r wsRenderer) RedirectToLogin()                { r.emit("redirect", struct{}{}) }

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizName := r.URL.Query().Get("quiz")
	userID := r.URL.Query().Get("user")
	if quizName == "" {
		http.Error(w, "missing quiz", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	logger := h.logger.With("conn", uuid.NewString(), "user", userID, "quiz", quizName)
	logger.Debug("ws connected")

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn("ws write error", "error", err)
				// keep draining so emitters never block
				for range send {
				}
				return
			}
		}
	}()

	renderer := wsRenderer{send: send, done: closeSignals}
	// the socket outlives the upgrade request context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quiz, err := h.service.Begin(ctx, userID, quizName, renderer)
	if err != nil {
		renderer.emit("error", errorPayload{Message: err.Error()})
		close(closeSignals)
		close(send)
		<-writerDone
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(ctx, userID, inbound); err != nil {
			renderer.emit("error", errorPayload{Message: err.Error()})
		}
	}

	close(closeSignals)
	h.service.Leave(userID, quiz)
	flushCtx, cancelFlush := context.WithTimeout(ctx, flushTimeout)
	defer cancelFlush()
	if err := quiz.Flush(flushCtx); err != nil {
		logger.Warn("flush pending saves failed", "error", err)
	}
	close(send)
	<-writerDone
	logger.Debug("ws closed")
}

func (h *WSHandler) dispatch(ctx context.Context, userID string, inbound inboundMessage) error {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errInvalidPayload
		}
		return h.service.Answer(ctx, userID, payload.Option)
	case "next":
		return h.service.Next(ctx, userID)
	case "timeout":
		return h.service.Timeout(ctx, userID)
	case "restart":
		return h.service.Restart(ctx, userID)
	case "end":
		var payload endPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				return errInvalidPayload
			}
		}
		return h.service.End(ctx, userID, payload.Failed)
	default:
		return errUnsupportedMessage
	}
}
