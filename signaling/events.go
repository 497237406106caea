package signaling

import (
	"errors"
	"fmt"

	callrelay "github.com/BrownNPC/CallRelay"
)

//go:generate stringer -type=Kind -trimprefix=Kind
type Kind int

const (
	KindInvalid Kind = iota
	// Client -> Server Msg{register: identity}
	//
	// Binds the sender's connection to identity and broadcasts the user list.
	KindRegister
	// Client -> Server -> Target Msg{call: target,offer}
	//
	// Forwarded to target as incomingCall{caller,offer}.
	KindCall
	// Client -> Server -> Target Msg{answer: target,answer}
	//
	// Forwarded to target as callAnswered{answerer,answer}.
	KindAnswer
	// Client -> Server -> Target Msg{ice-candidate: target,candidate}
	//
	// Forwarded to target as ice-candidate{sender,candidate}.
	KindICECandidate
	// Client -> Server -> Target Msg{endCall: target}
	//
	// Forwarded to target as callEnded{caller}.
	KindEndCall
	// Raised by the transport when a connection goes away. Never sent by clients.
	KindClosed
)

// Event is one inbound event. The set of implementations is closed.
type Event interface {
	Kind() Kind
	isEvent()
}

type Register struct {
	Identity callrelay.Identity
}

type Call struct {
	Target callrelay.Identity
	Offer  any
}

type Answer struct {
	Target callrelay.Identity
	Answer any
}

type ICECandidate struct {
	Target    callrelay.Identity
	Candidate any
}

type EndCall struct {
	Target callrelay.Identity
}

type Closed struct{}

func (Register) Kind() Kind     { return KindRegister }
func (Call) Kind() Kind         { return KindCall }
func (Answer) Kind() Kind       { return KindAnswer }
func (ICECandidate) Kind() Kind { return KindICECandidate }
func (EndCall) Kind() Kind      { return KindEndCall }
func (Closed) Kind() Kind       { return KindClosed }

func (Register) isEvent()     {}
func (Call) isEvent()         {}
func (Answer) isEvent()       {}
func (ICECandidate) isEvent() {}
func (EndCall) isEvent()      {}
func (Closed) isEvent()       {}

var ErrUnknownEvent = errors.New("unknown event")

// ParseEvent turns a decoded client frame into an Event.
//
// Fields of the wrong type are treated as absent, so a call without a usable
// target parses fine and later resolves to nobody.
func ParseEvent(f Frame) (Event, error) {
	switch f.Event {
	case EventRegister:
		id, _ := f.Data.(string)
		return Register{Identity: callrelay.Identity(id)}, nil
	case EventCall:
		return Call{Target: targetOf(f.Data), Offer: field(f.Data, "offer")}, nil
	case EventAnswer:
		return Answer{Target: targetOf(f.Data), Answer: field(f.Data, "answer")}, nil
	case EventICECandidate:
		return ICECandidate{Target: targetOf(f.Data), Candidate: field(f.Data, "candidate")}, nil
	case EventEndCall:
		return EndCall{Target: targetOf(f.Data)}, nil
	}
	return nil, fmt.Errorf("signaling.ParseEvent: %w %q", ErrUnknownEvent, f.Event)
}

func targetOf(data any) callrelay.Identity {
	s, _ := field(data, "target").(string)
	return callrelay.Identity(s)
}

// field reads key from a decoded object. Codecs normalize objects to
// map[string]any before they get here.
func field(data any, key string) any {
	m, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}
