package signaling

import (
	"context"
	"errors"
	"fmt"
	"time"

	callrelay "github.com/BrownNPC/CallRelay"
	"github.com/coder/websocket"
)

// Event names on the wire. Inbound names come from clients, outbound names are
// what the server emits.
const (
	EventRegister     = "register"
	EventCall         = "call"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
	EventEndCall      = "endCall"

	EventIncomingCall   = "incomingCall"
	EventCallAnswered   = "callAnswered"
	EventCallEnded      = "callEnded"
	EventUpdateUserList = "updateUserList"
	// outbound candidates reuse the inbound name.
	EventRelayedCandidate = EventICECandidate
)

// Frame is the envelope of every websocket message.
//
// Client -> Server Frame{register, "alice"}
//
// Client -> Server Frame{call, {target, offer}}
//
// Server -> Target Frame{incomingCall, {caller, offer}}
type Frame struct {
	Event string `json:"event" msgpack:"event"`
	Data  any    `json:"data,omitempty" msgpack:"data"`
}

// Server -> Target Msg{incomingCall: caller,offer}
//
// Sent to the callee when a registered user calls it.
type IncomingCallPayload struct {
	Caller callrelay.Identity `json:"caller" msgpack:"caller"`
	Offer  any                `json:"offer" msgpack:"offer"`
}

// Server -> Target Msg{callAnswered: answerer,answer}
type CallAnsweredPayload struct {
	Answerer callrelay.Identity `json:"answerer" msgpack:"answerer"`
	Answer   any                `json:"answer" msgpack:"answer"`
}

// Server -> Target Msg{ice-candidate: sender,candidate}
//
// Trickled candidates are forwarded untouched.
type RelayedCandidatePayload struct {
	Sender    callrelay.Identity `json:"sender" msgpack:"sender"`
	Candidate any                `json:"candidate" msgpack:"candidate"`
}

// Server -> Target Msg{callEnded: caller}
type CallEndedPayload struct {
	Caller callrelay.Identity `json:"caller" msgpack:"caller"`
}

// Encode frame with codec and write to conn.
// Error if marshal or write fails.
func WriteMsg(ctx context.Context, conn *websocket.Conn, codec Codec, f Frame, timeout time.Duration) error {
	b, err := codec.Marshal(f)
	if err != nil {
		return fmt.Errorf("signaling.WriteMsg: %w", err)
	}
	return writeRaw(ctx, conn, codec, b, timeout)
}

func writeRaw(ctx context.Context, conn *websocket.Conn, codec Codec, b []byte, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// write to socket, return if error or timeout.
	if err := conn.Write(ctx, codec.MessageType(), b); err != nil {
		return fmt.Errorf("signaling.WriteMsg: failed to write: %w", err)
	}
	return nil
}

// ErrMalformedFrame wraps ReadMsg errors where the socket is fine but the
// message could not be decoded.
var ErrMalformedFrame = errors.New("malformed frame")

// Read one message from conn and decode it with codec.
// Error if the read fails, the frame type does not match the codec or decoding fails.
func ReadMsg(ctx context.Context, conn *websocket.Conn, codec Codec) (Frame, error) {
	t, b, err := conn.Read(ctx)
	if err != nil {
		return Frame{}, fmt.Errorf("signaling.ReadMsg: %w", err)
	}
	if t != codec.MessageType() {
		return Frame{}, fmt.Errorf("signaling.ReadMsg: %w: got %v frame, %s expects %v", ErrMalformedFrame, t, codec.Subprotocol(), codec.MessageType())
	}
	f, err := codec.Unmarshal(b)
	if err != nil {
		return Frame{}, fmt.Errorf("signaling.ReadMsg: %w: %w", ErrMalformedFrame, err)
	}
	return f, nil
}
