package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/uplink/internal/protocol"
	"github.com/ent0n29/uplink/internal/reliability"
)

const (
	wsMinReadTimeout  = 60 * time.Second
	wsReadMargin      = 30 * time.Second
	wsMaxPingInterval = 30 * time.Second
	wsWriteTimeout    = 10 * time.Second
	wsReadLimit       = 2 << 20
)

// wsTimeouts derives the idle read deadline from the engine timeout so a
// client waiting on a slow reply is never cut off first. Pings go out well
// inside the deadline and each pong extends it.
func wsTimeouts(uplinkTimeout time.Duration) (read, ping time.Duration) {
	read = uplinkTimeout + wsReadMargin
	if read < wsMinReadTimeout {
		read = wsMinReadTimeout
	}
	ping = read / 2
	if ping > wsMaxPingInterval {
		ping = wsMaxPingInterval
	}
	return read, ping
}

// handleUplinkWS serves operator turns over a websocket. Turns on one
// connection are answered strictly in order, one exchange at a time.
func (s *Server) handleUplinkWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	connID := newConnID()
	log := s.logger.With(zap.String("conn", connID))
	log.Debug("ws connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan protocol.OperatorTurn, 16)
	outbound := make(chan any, 64)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		for msg := range inbound {
			reply := s.answer(ctx, msg)
			select {
			case <-ctx.Done():
				return
			case outbound <- reply:
			}
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ping := time.NewTicker(s.wsPingInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					log.Debug("ws ping failed", zap.Error(err))
					cancel()
					return
				}
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					log.Debug("ws write failed", zap.Error(err))
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.ObserveWSMessage("outbound", string(t))
				}
			}
		}
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(s.wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.wsReadTimeout))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.wsReadTimeout))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			select {
			case outbound <- protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			}:
			default:
				// Writer is saturated; the client is not reading.
				s.metrics.ObserveWSMessage("outbound_dropped", string(protocol.TypeErrorEvent))
			}
			continue
		}

		turn := parsed.(protocol.OperatorTurn)
		s.metrics.ObserveWSMessage("inbound", string(protocol.TypeOperatorTurn))
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- turn:
		}
	}

	close(inbound)
	// In-flight engine calls are abandoned once the client is gone.
	cancel()
	<-workerDone
	<-writerDone
	log.Debug("ws disconnected")
}

// answer runs one operator turn and renders the outcome as a server message.
func (s *Server) answer(ctx context.Context, msg protocol.OperatorTurn) any {
	resp, err := s.exchange(ctx, exchangeRequest{
		PersonaID: msg.PersonaID,
		History:   msg.History,
		Input:     msg.Input,
	})
	if err == nil {
		return protocol.PersonaTurn{
			Type:      protocol.TypePersonaTurn,
			RequestID: msg.RequestID,
			Turn:      resp.Turn,
			State:     resp.State,
		}
	}

	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			RequestID: msg.RequestID,
			Code:      reqErr.code,
			Detail:    reqErr.Error(),
		}
	}
	failure := reliability.Classify(err)
	return protocol.UplinkFailure{
		Type:       protocol.TypeUplinkFailure,
		RequestID:  msg.RequestID,
		Kind:       string(failure.Kind),
		Code:       failure.Code,
		Message:    failure.Message,
		StatusCode: failure.StatusCode,
		Retryable:  failure.Retryable,
	}
}

func newConnID() string {
	return uuid.NewString()
}

func messageTypeOf(msg any) (protocol.MessageType, bool) {
	switch m := msg.(type) {
	case protocol.PersonaTurn:
		return m.Type, true
	case protocol.UplinkFailure:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
