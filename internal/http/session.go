package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"tradietalk-voice-service/internal/models"
	"tradietalk-voice-service/internal/observability/logging"
	"tradietalk-voice-service/internal/service/capture"
	"tradietalk-voice-service/internal/service/permission"
	"tradietalk-voice-service/internal/service/stt"
	"tradietalk-voice-service/internal/service/workflow"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1 << 20
)

// Client → server message types.
const (
	msgStart        = "start"
	msgPermission   = "permission"
	msgSegment      = "segment"
	msgEnded        = "ended"
	msgCaptureError = "capture_error"
	msgStop         = "stop"
	msgReset        = "reset"
)

// Server → client message types.
const (
	msgState             = "state"
	msgPermissionRequest = "permission_request"
	msgRecognition       = "recognition"
	msgResult            = "result"
	msgError             = "error"
)

type inboundMessage struct {
	Type       string  `json:"type"`
	TradeType  string  `json:"tradeType,omitempty"`
	Granted    bool    `json:"granted,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Text       string  `json:"text,omitempty"`
	Final      bool    `json:"final,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Code       string  `json:"code,omitempty"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// stateView is the client rendering of a workflow state.
type stateView struct {
	Phase      workflow.Phase           `json:"phase"`
	Attempt    string                   `json:"attemptId,omitempty"`
	TradeHint  models.TradeType         `json:"tradeHint,omitempty"`
	Transcript string                   `json:"transcript"`
	Result     *models.ExtractionResult `json:"result,omitempty"`
	Error      string                   `json:"error,omitempty"`
	ErrorKind  string                   `json:"errorKind,omitempty"`
}

type errorView struct {
	Message string `json:"message"`
}

func newStateView(s workflow.State) stateView {
	v := stateView{
		Phase:      s.Phase,
		Attempt:    s.Attempt,
		TradeHint:  s.TradeHint,
		Transcript: s.Transcript,
		Result:     s.Result,
	}
	if s.Err != nil {
		v.Error = workflow.UserMessage(s.Err)
		v.ErrorKind = workflow.KindOf(s.Err)
	}
	return v
}

type sessionHandler struct {
	extractor         workflow.Extractor
	speech            stt.Availability
	limits            capture.Limits
	permissionTimeout time.Duration
	upgrader          websocket.Upgrader
}

// serve handles GET /api/voice/session. One connection is one client session
// running at most one voice quote attempt at a time.
func (h *sessionHandler) serve(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger := logging.WithComponent("voice-session")
		logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sessionID := uuid.NewString()
	c := &sessionConn{
		ws:        ws,
		sessionID: sessionID,
		logger:    logging.WithSession(sessionID),
	}
	c.prompt = permission.NewPrompt(c, h.permissionTimeout)
	c.orch = workflow.New(ctx, workflow.Deps{
		SessionID: sessionID,
		Gate:      c.prompt,
		Speech:    h.speech,
		Link:      c,
		Extractor: h.extractor,
		Observer:  c,
		Limits:    h.limits,
	})
	defer c.orch.Close()

	c.logger.Info().Str("sttProvider", h.speech.Provider()).Msg("Voice session connected")
	c.send(msgState, newStateView(c.orch.State()))

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go c.pingLoop(ctx)

	c.readLoop(ctx)
	c.logger.Info().Msg("Voice session disconnected")
}

// sessionConn is one client connection. It is the orchestrator's client link,
// permission prompter and state observer.
type sessionConn struct {
	ws        *websocket.Conn
	sessionID string
	logger    zerolog.Logger
	prompt    *permission.Prompt
	orch      *workflow.Orchestrator

	writeMu sync.Mutex
}

func (c *sessionConn) readLoop(ctx context.Context) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		if kind == websocket.BinaryMessage {
			if err := c.orch.SendAudio(ctx, data); err != nil && !errors.Is(err, capture.ErrNotRecording) {
				c.logger.Debug().Err(err).Msg("Audio frame rejected")
			}
			continue
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("invalid message")
			continue
		}
		c.handleMessage(ctx, &msg)
	}
}

func (c *sessionConn) handleMessage(ctx context.Context, msg *inboundMessage) {
	switch msg.Type {
	case msgStart:
		if err := c.orch.StartVoiceQuote(ctx, models.TradeType(msg.TradeType)); err != nil {
			c.sendError(err.Error())
		}
	case msgPermission:
		if !c.prompt.Resolve(msg.Granted, msg.Reason) {
			c.logger.Debug().Msg("Unsolicited permission answer ignored")
		}
	case msgSegment, msgEnded, msgCaptureError:
		sink := c.orch.Sink()
		if sink == nil {
			c.sendError("speech segments are not accepted by this engine")
			return
		}
		switch msg.Type {
		case msgSegment:
			sink.HandleSegment(msg.Text, msg.Final, msg.Confidence)
		case msgEnded:
			sink.HandleEnded()
		default:
			sink.HandleError(msg.Code)
		}
	case msgStop:
		c.orch.StopRecording()
	case msgReset:
		c.orch.Reset()
	default:
		c.sendError("unsupported message type: " + msg.Type)
	}
}

func (c *sessionConn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// SendRecognition implements stt.ClientLink.
func (c *sessionConn) SendRecognition(cmd stt.RecognitionCommand) error {
	return c.send(msgRecognition, cmd)
}

// SendPermissionRequest implements permission.Prompter.
func (c *sessionConn) SendPermissionRequest() error {
	return c.send(msgPermissionRequest, nil)
}

// OnStateChange implements workflow.Observer.
func (c *sessionConn) OnStateChange(s workflow.State) {
	c.send(msgState, newStateView(s))
}

// OnResult implements workflow.Observer.
func (c *sessionConn) OnResult(r models.ExtractionResult) {
	c.send(msgResult, r)
}

func (c *sessionConn) sendError(message string) {
	c.send(msgError, errorView{Message: message})
}

func (c *sessionConn) send(msgType string, data any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.ws.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		c.logger.Debug().Err(err).Str("type", msgType).Msg("WebSocket write failed")
	}
	return err
}
