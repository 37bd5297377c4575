package irisfast

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Egress sends replies back to a room over HTTP or the WebSocket.
type Egress interface {
	SendText(ctx context.Context, room, message string) error
	SendImage(ctx context.Context, room, imageBase64 string) error
}

const (
	EgressHTTP = "http"
	EgressWS   = "ws"
	EgressAuto = "auto"
)

// NewEgress picks a transport. auto prefers the WebSocket while it is
// connected and falls back to HTTP once per message.
func NewEgress(mode string, c *Client, ws *WebSocket, logger *zap.Logger) Egress {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch mode {
	case EgressWS:
		return &wsEgress{ws: ws}
	case EgressAuto:
		return &autoEgress{ws: &wsEgress{ws: ws}, http: &httpEgress{c: c}, logger: logger}
	default:
		return &httpEgress{c: c}
	}
}

type httpEgress struct{ c *Client }

func (h *httpEgress) SendText(ctx context.Context, room, message string) error {
	if h.c == nil {
		return errors.New("http egress not available")
	}
	return h.c.SendMessage(ctx, room, message)
}

func (h *httpEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	if h.c == nil {
		return errors.New("http egress not available")
	}
	return h.c.SendImage(ctx, room, imageBase64)
}

type wsEgress struct{ ws *WebSocket }

func (w *wsEgress) SendText(ctx context.Context, room, message string) error {
	if w.ws == nil {
		return errors.New("ws egress not available")
	}
	return w.ws.WriteJSON(ctx, ReplyRequest{Type: "text", Room: room, Data: message})
}

func (w *wsEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	if w.ws == nil {
		return errors.New("ws egress not available")
	}
	return w.ws.WriteJSON(ctx, ReplyRequest{Type: "image", Room: room, Data: imageBase64})
}

func (w *wsEgress) ready() bool {
	return w.ws != nil && w.ws.State() == WSStateConnected
}

type autoEgress struct {
	ws     *wsEgress
	http   *httpEgress
	logger *zap.Logger
}

func (a *autoEgress) SendText(ctx context.Context, room, message string) error {
	if a.ws.ready() {
		err := a.ws.SendText(ctx, room, message)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", "text"), zap.String("room", room), zap.Error(err))
	}
	return a.http.SendText(ctx, room, message)
}

func (a *autoEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	if a.ws.ready() {
		err := a.ws.SendImage(ctx, room, imageBase64)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", "image"), zap.String("room", room), zap.Error(err))
	}
	return a.http.SendImage(ctx, room, imageBase64)
}
