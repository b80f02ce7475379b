package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fuelport/notify-server/internal/core"
	"github.com/fuelport/notify-server/internal/proto"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub        *core.Hub
	sendBuffer int
	log        *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. A nil logger disables logging.
func NewWSHandler(hub *core.Hub, sendBuffer int, logger *zerolog.Logger) stdhttp.Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &WSHandler{hub: hub, sendBuffer: sendBuffer, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewClient(uuid.NewString(), h.sendBuffer)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		outbound := h.handleInbound(client, inbound)
		if outbound != nil {
			if err := wsjson.Write(ctx, conn, *outbound); err != nil {
				return err
			}
		}
	}
}

// handleInbound applies one client frame to the hub. A non-nil return is a
// direct reply (join ack or protocol error); bad frames never kill the
// connection.
func (h *WSHandler) handleInbound(client *core.Client, inbound proto.Inbound) *proto.Outbound {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		identity, protoErr := identityFromJoin(inbound.Data)
		if protoErr != nil {
			return errorOutbound(protoErr)
		}
		if err := h.hub.Identify(client, identity); err != nil {
			return errorOutbound(errorFromCore(err))
		}
		return &proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: core.EventJoined,
			Data: proto.JoinedData{
				UserID: identity.UserID,
				Rooms:  identity.Rooms(),
			},
		}
	case proto.InboundTypePublish:
		roomKey, event, protoErr := routeFromPublish(inbound.Data)
		if protoErr != nil {
			return errorOutbound(protoErr)
		}
		h.hub.RouteFromClient(client, roomKey, event)
		return nil
	default:
		h.log.Debug().Str("type", inbound.Type).Str("conn_id", client.ID).Msg("unknown inbound type")
		return errorOutbound(&proto.Error{Code: core.ErrCodeUnknownType, Msg: "unknown message type"})
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
