package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/fuelport/notify-server/internal/config"
	"github.com/fuelport/notify-server/internal/core"
	"github.com/fuelport/notify-server/internal/proto"
	"github.com/fuelport/notify-server/internal/store/sqlite"
)

type outboundFrame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func startTestServer(t *testing.T) (*httptest.Server, *core.Hub) {
	t.Helper()

	hub := core.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Default()
	cfg.Addr = ":0"
	logger := zerolog.Nop()
	server := NewServer(hub, st, cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, hub
}

func wsURL(ts *httptest.Server) string {
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, wsURL(ts), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func sendJoin(t *testing.T, ctx context.Context, conn *websocket.Conn, userID, userType string) {
	t.Helper()

	payload, _ := json.Marshal(proto.JoinData{UserID: userID, UserType: userType})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeJoin, Data: payload}); err != nil {
		t.Fatalf("send join: %v", err)
	}
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) outboundFrame {
	t.Helper()

	var frame outboundFrame
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestJoinAckListsDerivedRooms(t *testing.T) {
	ts, hub := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	sendJoin(t, ctx, conn, "D1", "deliveryBoy")

	frame := readFrame(t, ctx, conn)
	if frame.Type != proto.OutboundTypeEvent || frame.Event != core.EventJoined {
		t.Fatalf("expected joined ack, got %+v", frame)
	}

	var joined proto.JoinedData
	if err := json.Unmarshal(frame.Data, &joined); err != nil {
		t.Fatalf("unmarshal joined: %v", err)
	}
	if joined.UserID != "D1" || len(joined.Rooms) != 2 {
		t.Fatalf("unexpected joined payload: %+v", joined)
	}

	// The ack precedes membership application, but ops are serialized: by the
	// time a later MembersOf runs, the join is in effect.
	if members := hub.MembersOf("user:D1"); len(members) != 1 {
		t.Fatalf("expected one member in user:D1, got %d", len(members))
	}
}

func TestPublishRoutedByRole(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	adminConn := dialWS(t, ctx, ts)
	userConn := dialWS(t, ctx, ts)

	sendJoin(t, ctx, adminConn, "A1", "admin")
	sendJoin(t, ctx, userConn, "U1", "user")

	// Consume the join acks so membership is applied before publishing.
	readFrame(t, ctx, adminConn)
	readFrame(t, ctx, userConn)

	payload, _ := json.Marshal(proto.PublishData{
		Event: "ping",
		Room:  core.RoleRoom(core.RoleAdmin),
		Data:  json.RawMessage(`{"n":1}`),
	})
	if err := wsjson.Write(ctx, userConn, proto.Inbound{Type: proto.InboundTypePublish, Data: payload}); err != nil {
		t.Fatalf("send publish: %v", err)
	}

	frame := readFrame(t, ctx, adminConn)
	if frame.Event != "ping" {
		t.Fatalf("expected ping event, got %+v", frame)
	}

	// The publisher is not an admin and must not receive its own event.
	shortCtx, shortCancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer shortCancel()
	var stray outboundFrame
	if err := wsjson.Read(shortCtx, userConn, &stray); err == nil {
		t.Fatalf("event leaked outside the room: %+v", stray)
	}
}

func TestMalformedJoinRejected(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)

	// Missing userId.
	sendJoin(t, ctx, conn, "", "admin")
	frame := readFrame(t, ctx, conn)
	if frame.Type != proto.OutboundTypeError || frame.Error == nil || frame.Error.Code != core.ErrCodeBadIdentity {
		t.Fatalf("expected bad_identity error, got %+v", frame)
	}

	// Unknown role.
	sendJoin(t, ctx, conn, "X1", "superuser")
	frame = readFrame(t, ctx, conn)
	if frame.Type != proto.OutboundTypeError || frame.Error == nil || frame.Error.Code != core.ErrCodeBadIdentity {
		t.Fatalf("expected bad_identity error, got %+v", frame)
	}

	// The connection survives and can join properly.
	sendJoin(t, ctx, conn, "A1", "admin")
	frame = readFrame(t, ctx, conn)
	if frame.Event != core.EventJoined {
		t.Fatalf("expected joined ack after recovery, got %+v", frame)
	}
}

func TestUnknownInboundType(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: "dance"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	frame := readFrame(t, ctx, conn)
	if frame.Type != proto.OutboundTypeError || frame.Error == nil || frame.Error.Code != core.ErrCodeUnknownType {
		t.Fatalf("expected unknown_type error, got %+v", frame)
	}
}
