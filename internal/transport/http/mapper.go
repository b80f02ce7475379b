package http

import (
	"encoding/json"
	"errors"

	"github.com/fuelport/notify-server/internal/core"
	"github.com/fuelport/notify-server/internal/proto"
)

func identityFromJoin(data json.RawMessage) (core.Identity, *proto.Error) {
	var join proto.JoinData
	if err := json.Unmarshal(data, &join); err != nil {
		return core.Identity{}, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed join payload"}
	}
	if join.UserID == "" {
		return core.Identity{}, &proto.Error{Code: core.ErrCodeBadIdentity, Msg: "userId is required"}
	}
	role, err := core.ParseRole(join.UserType)
	if err != nil {
		return core.Identity{}, &proto.Error{Code: core.ErrCodeBadIdentity, Msg: err.Error()}
	}
	return core.Identity{UserID: join.UserID, Role: role}, nil
}

// routeFromPublish maps a publish frame to a routing key and event. An empty
// room key means "sender's own role room", resolved by the hub.
func routeFromPublish(data json.RawMessage) (string, *core.Event, *proto.Error) {
	var pub proto.PublishData
	if err := json.Unmarshal(data, &pub); err != nil {
		return "", nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed publish payload"}
	}
	if pub.Event == "" {
		return "", nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "event is required"}
	}
	if pub.Room != "" && pub.User != "" {
		return "", nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room and user are mutually exclusive"}
	}

	roomKey := pub.Room
	if pub.User != "" {
		roomKey = core.UserRoom(pub.User)
	}
	return roomKey, &core.Event{Name: pub.Event, Payload: pub.Data}, nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: event.Name,
		Data:  event.Payload,
	}
}

func errorOutbound(protoErr *proto.Error) *proto.Outbound {
	return &proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr}
}

func errorFromCore(err error) *proto.Error {
	var coreErr *core.CoreError
	if errors.As(err, &coreErr) {
		return &proto.Error{Code: coreErr.Code, Msg: coreErr.Message}
	}
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: err.Error()}
}
