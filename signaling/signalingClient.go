package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	callrelay "github.com/BrownNPC/CallRelay"
	"github.com/coder/websocket"
	"github.com/pion/ice/v4"
)

// WebsocketScheme is the websocket scheme (ws:// or wss://)
type WebsocketScheme string

const (
	// Websocket (non-secure)
	SchemeWs WebsocketScheme = "ws://"
	// Websocket secure
	SchemeWss WebsocketScheme = "wss://"
)

// ServerEvent is one event received from the relay.
type ServerEvent interface {
	isServerEvent()
}

type IncomingCall struct {
	Caller callrelay.Identity
	Offer  any
}

type CallAnswered struct {
	Answerer callrelay.Identity
	Answer   any
}

type RelayedCandidate struct {
	Sender    callrelay.Identity
	Candidate any
}

type CallEnded struct {
	Caller callrelay.Identity
}

// UserList is the set of registered identities, in no particular order.
type UserList []callrelay.Identity

func (IncomingCall) isServerEvent()     {}
func (CallAnswered) isServerEvent()     {}
func (RelayedCandidate) isServerEvent() {}
func (CallEnded) isServerEvent()        {}
func (UserList) isServerEvent()         {}

// Client is a connection to the relay for one user.
//
// Send methods may be called concurrently. Receive must be called from a single goroutine.
type Client struct {
	conn    *websocket.Conn
	codec   Codec
	timeout time.Duration
	log     *slog.Logger
}

// host is the url address of the relay. codec selects the subprotocol.
//
// a nil log will use slog.Default().
func NewClient(ctx context.Context, host string, scheme WebsocketScheme, codec Codec, log *slog.Logger, opts websocket.DialOptions) (*Client, error) {
	u := url.URL{
		Host:   host,
		Scheme: strings.TrimSuffix(string(scheme), "://"),
		Path:   "ws",
	}
	return Dial(ctx, u.String(), codec, log, opts)
}

// Dial connects to the websocket endpoint at rawURL.
func Dial(ctx context.Context, rawURL string, codec Codec, log *slog.Logger, opts websocket.DialOptions) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	if codec == nil {
		codec = JSON
	}
	opts.Subprotocols = []string{codec.Subprotocol()}

	conn, _, err := websocket.Dial(ctx, rawURL, &opts)
	if err != nil {
		return nil, fmt.Errorf("signaling.Dial: failed to dial %v: %w", rawURL, err)
	}
	if got := conn.Subprotocol(); got != codec.Subprotocol() {
		conn.Close(websocket.StatusPolicyViolation, "subprotocol not negotiated")
		return nil, fmt.Errorf("signaling.Dial: %w: server chose %q", ErrUnsupportedSubprotocol, got)
	}
	return &Client{
		conn:    conn,
		codec:   codec,
		timeout: 2 * time.Second,
		log:     log,
	}, nil
}

// Client -> Server Msg{register: identity}
func (c *Client) Register(ctx context.Context, identity callrelay.Identity) error {
	return c.send(ctx, EventRegister, string(identity))
}

// Client -> Server Msg{call: target,offer}
//
// offer is forwarded untouched, typically a session description.
func (c *Client) Call(ctx context.Context, target callrelay.Identity, offer any) error {
	return c.send(ctx, EventCall, map[string]any{"target": string(target), "offer": offer})
}

// Client -> Server Msg{answer: target,answer}
func (c *Client) Answer(ctx context.Context, target callrelay.Identity, answer any) error {
	return c.send(ctx, EventAnswer, map[string]any{"target": string(target), "answer": answer})
}

// Client -> Server Msg{ice-candidate: target,candidate}
func (c *Client) SendCandidate(ctx context.Context, target callrelay.Identity, candidate any) error {
	return c.send(ctx, EventICECandidate, map[string]any{"target": string(target), "candidate": candidate})
}

// SendICECandidate trickles a pion ICE candidate to target in its SDP attribute form.
func (c *Client) SendICECandidate(ctx context.Context, target callrelay.Identity, candidate ice.Candidate) error {
	if candidate == nil {
		return nil
	}
	return c.SendCandidate(ctx, target, map[string]any{"candidate": "candidate:" + candidate.Marshal()})
}

// Client -> Server Msg{endCall: target}
func (c *Client) EndCall(ctx context.Context, target callrelay.Identity) error {
	return c.send(ctx, EventEndCall, map[string]any{"target": string(target)})
}

func (c *Client) send(ctx context.Context, event string, data any) error {
	return WriteMsg(ctx, c.conn, c.codec, Frame{Event: event, Data: data}, c.timeout)
}

// Receive blocks until the next known server event arrives.
// Frames with unknown event names are skipped.
func (c *Client) Receive(ctx context.Context) (ServerEvent, error) {
	for {
		f, err := ReadMsg(ctx, c.conn, c.codec)
		if errors.Is(err, ErrMalformedFrame) {
			c.log.Debug("skipping malformed frame", "error", err)
			continue
		} else if err != nil {
			return nil, err
		}
		ev, ok := parseServerEvent(f)
		if !ok {
			c.log.Debug("skipping unknown event", "event", f.Event)
			continue
		}
		return ev, nil
	}
}

func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "disconnecting")
}

func parseServerEvent(f Frame) (ServerEvent, bool) {
	identityField := func(key string) callrelay.Identity {
		s, _ := field(f.Data, key).(string)
		return callrelay.Identity(s)
	}
	switch f.Event {
	case EventIncomingCall:
		return IncomingCall{Caller: identityField("caller"), Offer: field(f.Data, "offer")}, true
	case EventCallAnswered:
		return CallAnswered{Answerer: identityField("answerer"), Answer: field(f.Data, "answer")}, true
	case EventRelayedCandidate:
		return RelayedCandidate{Sender: identityField("sender"), Candidate: field(f.Data, "candidate")}, true
	case EventCallEnded:
		return CallEnded{Caller: identityField("caller")}, true
	case EventUpdateUserList:
		items, _ := f.Data.([]any)
		users := make(UserList, 0, len(items))
		for _, it := range items {
			if s, ok := it.(string); ok {
				users = append(users, callrelay.Identity(s))
			}
		}
		return users, true
	}
	return nil, false
}

// ParseICECandidate reads a relayed candidate payload back into a pion candidate.
// It accepts the bare attribute string or an object with a "candidate" field,
// as browsers send.
func ParseICECandidate(payload any) (ice.Candidate, error) {
	raw, ok := payload.(string)
	if !ok {
		raw, ok = field(payload, "candidate").(string)
	}
	if !ok || raw == "" {
		return nil, fmt.Errorf("signaling.ParseICECandidate: payload %T has no candidate string", payload)
	}
	cand, err := ice.UnmarshalCandidate(strings.TrimPrefix(raw, "candidate:"))
	if err != nil {
		return nil, fmt.Errorf("signaling.ParseICECandidate: %w", err)
	}
	return cand, nil
}
