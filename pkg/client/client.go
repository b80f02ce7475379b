// Package client is the session adapter for the notification server: it owns
// one WebSocket connection, re-announces the configured identity on every
// (re)connect, and exposes a subscribe/publish API to the application.
//
// The adapter is a constructed instance with an explicit Start/Close
// lifecycle; there is no package-level connection state.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/fuelport/notify-server/internal/proto"
)

// State of the session adapter's connection machine.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives the raw payload of a routed event.
type Handler func(data json.RawMessage)

// Config for the session adapter. URL is required; UserID/UserType form the
// identity announced after every connect and may be empty until SetIdentity.
type Config struct {
	URL      string
	UserID   string
	UserType string

	// ReconnectMin/ReconnectMax bound the exponential backoff between
	// connection attempts.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	DialTimeout  time.Duration

	// OnStateChange, if set, is invoked on every state transition.
	OnStateChange func(State)
	// OnError, if set, receives protocol error frames from the server.
	OnError func(code, msg string)

	Logger *zerolog.Logger
}

type subscription struct {
	event string
	fn    Handler
}

// Client is the session adapter. Safe for concurrent use.
type Client struct {
	cfg Config
	log *zerolog.Logger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	subs     map[string][]*subscription
	userID   string
	userType string
	started  bool
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}

	writeMu sync.Mutex
}

// New constructs a session adapter. Call Start to connect.
func New(cfg Config) *Client {
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = 500 * time.Millisecond
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 15 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		cfg:      cfg,
		log:      logger,
		subs:     make(map[string][]*subscription),
		userID:   cfg.UserID,
		userType: cfg.UserType,
	}
}

// Start launches the connection loop. The adapter keeps reconnecting with
// bounded exponential backoff until Close is called.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("client is closed")
	}
	if c.started {
		return errors.New("client already started")
	}
	c.started = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx)
	return nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the adapter is currently connected.
func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

// SetIdentity replaces the announced identity. If currently connected, the
// new identity is announced immediately; otherwise it is announced on the
// next connect.
func (c *Client) SetIdentity(userID, userType string) {
	c.mu.Lock()
	c.userID = userID
	c.userType = userType
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if connected && conn != nil {
		c.announce(context.Background(), conn, userID, userType)
	}
}

// Publish sends an event routed to the sender's own role room. Returns
// whether the send was attempted while connected; false otherwise, never an
// error.
func (c *Client) Publish(event string, payload any) bool {
	return c.publish(event, payload, "", "")
}

// PublishToRoom sends an event routed to one room key.
func (c *Client) PublishToRoom(room, event string, payload any) bool {
	return c.publish(event, payload, room, "")
}

// PublishToUser sends an event routed to every connection of one user.
func (c *Client) PublishToUser(userID, event string, payload any) bool {
	return c.publish(event, payload, "", userID)
}

func (c *Client) publish(event string, payload any, room, user string) bool {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		return false
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			c.log.Warn().Err(err).Str("event", event).Msg("marshal publish payload")
			return false
		}
		raw = data
	}

	frame, err := inbound(proto.InboundTypePublish, proto.PublishData{
		Event: event,
		Data:  raw,
		Room:  room,
		User:  user,
	})
	if err != nil {
		return false
	}
	if err := c.write(context.Background(), conn, frame); err != nil {
		c.log.Warn().Err(err).Str("event", event).Msg("publish failed")
		return false
	}
	return true
}

// Subscribe registers a handler for an event name. All handlers for an event
// run in registration order, once per received frame. The returned function
// removes the handler; calling it more than once is a no-op.
func (c *Client) Subscribe(event string, fn Handler) (unsubscribe func()) {
	sub := &subscription{event: event, fn: fn}

	c.mu.Lock()
	c.subs[event] = append(c.subs[event], sub)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			list := c.subs[event]
			for i, s := range list {
				if s == sub {
					c.subs[event] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
			if len(c.subs[event]) == 0 {
				delete(c.subs, event)
			}
		})
	}
}

// Close tears down the transport and discards all subscriptions. No handler
// fires after Close returns. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.subs = make(map[string][]*subscription)
	conn := c.conn
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client closed")
	}
	if done != nil {
		<-done
	}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	backoff := c.cfg.ReconnectMin
	for {
		c.setState(StateConnecting)

		dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
		conn, _, err := websocket.Dial(dialCtx, c.cfg.URL, nil)
		cancel()
		if err != nil {
			c.setState(StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			c.log.Debug().Err(err).Dur("backoff", backoff).Msg("dial failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.cfg.ReconnectMax)
			continue
		}
		backoff = c.cfg.ReconnectMin

		c.mu.Lock()
		c.conn = conn
		userID, userType := c.userID, c.userType
		c.mu.Unlock()

		// Membership does not survive a disconnect, so the identity is
		// announced on every transition into the connected state.
		if userID != "" {
			c.announce(ctx, conn, userID, userType)
		}
		c.setState(StateConnected)

		c.readLoop(ctx, conn)

		conn.Close(websocket.StatusNormalClosure, "closing")
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.setState(StateDisconnected)

		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if ctx.Err() == nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					c.log.Debug().Err(err).Msg("connection lost")
				}
			}
			return
		}

		switch frame.Type {
		case proto.OutboundTypeEvent:
			c.dispatch(frame.Event, frame.Data)
		case proto.OutboundTypeError:
			if frame.Error != nil {
				c.log.Warn().Str("code", frame.Error.Code).Str("msg", frame.Error.Msg).Msg("server error")
				if c.cfg.OnError != nil {
					c.cfg.OnError(frame.Error.Code, frame.Error.Msg)
				}
			}
		}
	}
}

func (c *Client) dispatch(event string, data json.RawMessage) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	handlers := append([]*subscription(nil), c.subs[event]...)
	c.mu.Unlock()

	for _, sub := range handlers {
		sub.fn(data)
	}
}

func (c *Client) announce(ctx context.Context, conn *websocket.Conn, userID, userType string) {
	frame, err := inbound(proto.InboundTypeJoin, proto.JoinData{
		UserID:   userID,
		UserType: userType,
	})
	if err != nil {
		return
	}
	if err := c.write(ctx, conn, frame); err != nil {
		c.log.Warn().Err(err).Msg("announce identity failed")
	}
}

func (c *Client) write(ctx context.Context, conn *websocket.Conn, frame proto.Inbound) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsjson.Write(ctx, conn, frame)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.closed || c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	cb := c.cfg.OnStateChange
	c.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}

func inbound(frameType string, data any) (proto.Inbound, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return proto.Inbound{}, err
	}
	return proto.Inbound{Type: frameType, Data: payload}, nil
}
